// Package voice contains the voice channel adapters that speak follow-ups
// to callers.
package voice

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Console prints what the agent would say as a colored transcript line.
// Used when no telephony bridge is configured.
type Console struct {
	out io.Writer
}

// NewConsole creates a Console writing to out (stdout when nil).
func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{out: out}
}

// Deliver writes the line for callerID.
func (c *Console) Deliver(ctx context.Context, callerID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(c.out, "%s %s\n", color.New(color.FgCyan, color.Bold).Sprintf("[agent → %s]", callerID), text)
	return err
}
