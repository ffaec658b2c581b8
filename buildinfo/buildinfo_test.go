package buildinfo_test

import (
	"testing"

	"github.com/astangl/data-provenance/buildinfo"
	"github.com/stretchr/testify/assert"
)

func TestNewGeneratesBuildID(t *testing.T) {
	b := buildinfo.New("abc123")
	assert.Equal(t, "abc123", b.CommitID)
	assert.NotEmpty(t, b.BuildID)
}

func TestWithBuildIDOverride(t *testing.T) {
	b := buildinfo.New("abc123", buildinfo.WithBuildID("fixed-build"))
	assert.Equal(t, "fixed-build", b.BuildID)
}

func TestBrief(t *testing.T) {
	b := buildinfo.New("abc123", buildinfo.WithBuildID("fixed-build"), buildinfo.WithExtra("host", "ci-1"))
	assert.Equal(t, buildinfo.BuildInfoBrief{CommitID: "abc123", BuildID: "fixed-build"}, b.Brief())
}
