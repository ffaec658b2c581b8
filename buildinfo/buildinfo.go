// Package buildinfo carries the commit/build identity attached to every
// result recorded by this module. Capturing that identity from source
// control is out of scope; this package only defines the record shape and
// a constructor convenient for callers that don't have a build-info tool
// wired in yet.
package buildinfo

import (
	"time"

	"github.com/google/uuid"
)

// BuildInfoBrief is what's actually embedded in every result record: just
// enough to say which commit and which build produced it.
type BuildInfoBrief struct {
	CommitID string `json:"commitId"`
	BuildID  string `json:"buildId"`
}

// BuildInfo is the fuller record a build-info-capture tool would produce
// and hand to a ResultTracker as the "current" build context. Extra
// carries free-form tags (hostname, CI run URL) the way
// Mindburn-Labs-helm's ReceiptProvenance attaches a generator id to every
// recorded effect.
type BuildInfo struct {
	CommitID  string            `json:"commitId"`
	BuildID   string            `json:"buildId"`
	StartedAt time.Time         `json:"startedAt"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// Brief drops everything but the two identifiers, the form saved
// alongside every result record.
func (b BuildInfo) Brief() BuildInfoBrief {
	return BuildInfoBrief{CommitID: b.CommitID, BuildID: b.BuildID}
}

// Option customizes New.
type Option func(*BuildInfo)

// WithBuildID overrides the generated build id.
func WithBuildID(id string) Option {
	return func(b *BuildInfo) { b.BuildID = id }
}

// WithExtra attaches a free-form tag.
func WithExtra(key, value string) Option {
	return func(b *BuildInfo) {
		if b.Extra == nil {
			b.Extra = map[string]string{}
		}
		b.Extra[key] = value
	}
}

// New builds a BuildInfo for commitID, generating a random BuildID unless
// WithBuildID overrides it. Grounded on google/uuid being a direct
// dependency of the teacher's go.mod.
func New(commitID string, opts ...Option) BuildInfo {
	b := BuildInfo{CommitID: commitID, BuildID: uuid.NewString(), StartedAt: time.Now()}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}
