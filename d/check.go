// Package d provides two assertion helpers used throughout this module to
// state invariants inline instead of threading an error return through
// code paths that should be unreachable in a correct program.
package d

import (
	"fmt"

	"github.com/stretchr/testify/assert"
)

var (
	// Chk panics immediately on a failed assertion. Use it for invariants
	// that indicate a bug in this module itself, not bad caller input.
	Chk = assert.New(&panicker{})

	// Exp provides the same API as Chk, but the resulting panic carries a
	// recoverablePanic value that Try can catch and turn back into an
	// error. Use it for invariants about caller-supplied data.
	Exp = assert.New(&recoverablePanicker{})
)

type panicker struct{}

func (panicker) Errorf(format string, args ...interface{}) {
	panic(fmt.Sprintf(format, args...))
}

type recoverablePanic struct{ msg string }

func (r recoverablePanic) Error() string { return r.msg }

type recoverablePanicker struct{}

func (recoverablePanicker) Errorf(format string, args ...interface{}) {
	panic(recoverablePanic{fmt.Sprintf(format, args...)})
}

// Try runs fn and converts any panic raised through Exp into an error.
// Panics raised through Chk, or any other panic, propagate unchanged.
func Try(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if rp, ok := r.(recoverablePanic); ok {
				err = rp
				return
			}
			panic(r)
		}
	}()
	fn()
	return nil
}
