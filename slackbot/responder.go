package slackbot

import (
	"context"
	"log/slog"

	"github.com/slack-go/slack"

	"github.com/trussworks/ephemeral-env/errors"
)

// MessageResponse is a threaded reply. Fallback is the plain text shown in
// notifications; Markdown is rendered in a section block.
type MessageResponse struct {
	Channel  string
	ThreadTS string
	Fallback string
	Markdown string
}

// Responder posts replies to Slack.
type Responder interface {
	SendMarkdownResponse(ctx context.Context, msg MessageResponse) (bool, error)
}

// Poster is the slack-go client method used by SlackResponder.
type Poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

var _ Poster = (*slack.Client)(nil)

// SlackResponder implements Responder with the Slack Web API.
type SlackResponder struct {
	poster Poster
	logger *slog.Logger
}

// NewSlackResponder creates a SlackResponder.
func NewSlackResponder(poster Poster, logger *slog.Logger) *SlackResponder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SlackResponder{poster: poster, logger: logger}
}

// MessageOptions returns the chat.postMessage options for msg.
func MessageOptions(msg MessageResponse) []slack.MsgOption {
	section := slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType, msg.Markdown, false, false), nil, nil)

	opts := []slack.MsgOption{
		slack.MsgOptionText(msg.Fallback, false),
		slack.MsgOptionBlocks(section),
	}
	if msg.ThreadTS != "" {
		opts = append(opts, slack.MsgOptionTS(msg.ThreadTS))
	}
	return opts
}

// SendMarkdownResponse implements Responder.
func (r *SlackResponder) SendMarkdownResponse(ctx context.Context, msg MessageResponse) (bool, error) {
	if msg.Channel == "" {
		return false, errors.New(errors.CodeInvalidInput, "response channel cannot be empty")
	}

	_, ts, err := r.poster.PostMessageContext(ctx, msg.Channel, MessageOptions(msg)...)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to post message", "channel", msg.Channel, "error", err)
		return false, errors.WrapWithContext(err, errors.CodeUnavailable,
			"failed to post slack message", map[string]interface{}{"channel": msg.Channel})
	}

	r.logger.DebugContext(ctx, "posted message", "channel", msg.Channel, "ts", ts)
	return true, nil
}
