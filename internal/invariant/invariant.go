// Package invariant reports programming errors.
//
// A violated invariant (malformed configuration, illegal state transition, unknown id) is not
// recoverable at runtime. Assert panics with a *Violation so tests can match on it and the
// process dies loudly otherwise.
package invariant

import "fmt"

// Violation is the panic value raised by Assert and Fail.
type Violation struct {
	Msg string
}

func (v *Violation) Error() string {
	return "invariant violated: " + v.Msg
}

// Assert panics with a *Violation when cond is false.
func Assert(cond bool, format string, args ...any) {
	if !cond {
		Fail(format, args...)
	}
}

// Fail panics unconditionally.
func Fail(format string, args ...any) {
	panic(&Violation{Msg: fmt.Sprintf(format, args...)})
}
