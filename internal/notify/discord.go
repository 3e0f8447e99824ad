// Package notify pushes ledger events to a Discord channel.
package notify

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"hucha/internal/events"
)

type Discord struct {
	session   *discordgo.Session
	channelID string
}

// NewDiscord creates a send-only Discord client. No gateway connection is
// opened; messages go out over the REST API.
func NewDiscord(token, channelID string) (*Discord, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	return &Discord{session: session, channelID: channelID}, nil
}

func (d *Discord) Close() error {
	return d.session.Close()
}

// Notify renders the event as a channel message. Unknown event types are
// ignored so new producers never break the worker.
func (d *Discord) Notify(ctx context.Context, ev events.Event) error {
	msg := formatEvent(ev)
	if msg == "" {
		return nil
	}
	_, err := d.session.ChannelMessageSend(d.channelID, msg, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("send channel message: %w", err)
	}
	return nil
}

func formatEvent(ev events.Event) string {
	switch ev.Type {
	case events.MovementCreated:
		verb := "Expense"
		if ev.Kind == "income" {
			verb = "Income"
		}
		msg := fmt.Sprintf("%s of %s on **%s** (%s)", verb, ev.Amount, ev.CategoryName, ev.AccountName)
		if ev.Description != "" {
			msg += " — " + ev.Description
		}
		return msg
	case events.MovementUpdated:
		return fmt.Sprintf("Movement %d updated: %s on **%s** (%s)", ev.MovementID, ev.Amount, ev.CategoryName, ev.AccountName)
	case events.MovementDeleted:
		return fmt.Sprintf("Movement %d deleted, %s returned to %s", ev.MovementID, ev.Amount, ev.AccountName)
	case events.GoalContributed:
		return fmt.Sprintf("Saved %s toward **%s**", ev.Amount, ev.GoalName)
	case events.GoalReached:
		return fmt.Sprintf(":tada: Goal **%s** reached!", ev.GoalName)
	case events.GoalDeleted:
		return fmt.Sprintf("Goal **%s** deleted", ev.GoalName)
	}
	return ""
}
