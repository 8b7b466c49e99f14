// Package alert tells supervisors that a caller is waiting on an answer.
package alert

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/fatih/color"

	"github.com/example/frontdesk/internal/ports/secondary"
)

// Console prints new escalations on the supervisor's terminal.
type Console struct {
	out io.Writer
}

// NewConsole creates a Console writing to out (stderr when nil).
func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stderr
	}
	return &Console{out: out}
}

// Alert prints one line per escalation.
func (c *Console) Alert(ctx context.Context, a secondary.SupervisorAlert) error {
	_, err := fmt.Fprintf(c.out, "%s %s %s: %q (answer by %s)\n",
		color.New(color.FgYellow, color.Bold).Sprint("🔔 needs help"),
		a.EscalationID,
		a.CallerID,
		a.Question,
		a.TimeoutAt.Local().Format(time.Kitchen),
	)
	return err
}

// messageSender is the slice of the Discord session this adapter uses.
type messageSender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts new escalations to a supervisor channel.
type Discord struct {
	session   messageSender
	channelID string
}

// NewDiscord creates a bot session for token. The session only uses the
// REST API, so no gateway connection is opened.
func NewDiscord(token, channelID string) (*Discord, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	return &Discord{session: session, channelID: channelID}, nil
}

// Alert sends the escalation summary to the channel.
func (d *Discord) Alert(ctx context.Context, a secondary.SupervisorAlert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	content := fmt.Sprintf("**%s** from `%s` needs an answer by <t:%d:t>\n> %s\nReply with `frontdesk escalation resolve %s \"<answer>\"`",
		a.EscalationID, a.CallerID, a.TimeoutAt.Unix(), a.Question, a.EscalationID)
	if _, err := d.session.ChannelMessageSend(d.channelID, content); err != nil {
		return fmt.Errorf("failed to post discord alert: %w", err)
	}
	return nil
}

// Multi fans an alert out to several alerters and returns the first error.
type Multi []secondary.SupervisorAlerter

// Alert calls every alerter.
func (m Multi) Alert(ctx context.Context, a secondary.SupervisorAlert) error {
	var first error
	for _, alerter := range m {
		if err := alerter.Alert(ctx, a); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var (
	_ secondary.SupervisorAlerter = (*Console)(nil)
	_ secondary.SupervisorAlerter = (*Discord)(nil)
	_ secondary.SupervisorAlerter = Multi(nil)
)
