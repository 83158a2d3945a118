package tui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStyler_PlainWriter(t *testing.T) {
	var buf bytes.Buffer
	st := NewStyler(&buf)

	assert.Equal(t, "✓ viewer", st.OK("viewer"))
	assert.Equal(t, "✗ broken: bad", st.Fail("broken: bad"))
	assert.False(t, IsTerminal(&buf))
}
