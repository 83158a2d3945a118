package tui

import (
	"io"
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Styler colors status marks for w. Writers that are not terminals get plain text.
type Styler struct {
	out *termenv.Output
}

func NewStyler(w io.Writer) *Styler {
	return &Styler{out: termenv.NewOutput(w)}
}

// OK renders a success mark followed by s.
func (st *Styler) OK(s string) string {
	return st.out.String("✓").Foreground(st.out.Color("#22c55e")).String() + " " + s
}

// Fail renders a failure mark followed by s.
func (st *Styler) Fail(s string) string {
	return st.out.String("✗").Foreground(st.out.Color("#ef4444")).Bold().String() + " " + s
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
