// Package slackbot serves the review bot: it verifies Slack event
// callbacks, answers deploy, info and help mentions in the originating
// thread, and exposes health and metrics endpoints.
package slackbot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/trussworks/ephemeral-env/build"
	"github.com/trussworks/ephemeral-env/project"
)

// Commands recognised in a mention.
const (
	CommandDeploy = "deploy"
	CommandInfo   = "info"
	CommandHelp   = "help"
	CommandNone   = "none"
)

// Reply texts.
const (
	HelpText           = `Sorry, I don't understand. Try something like "deploy https://github.com/user/project/pull/123"`
	UnknownProjectText = "Sorry, I don't recognize that project URL"
	StartingDeployText = "Starting deploy"
)

const maxBodyBytes = 1 << 20

// Builder starts deploy builds.
type Builder interface {
	StartBuild(ctx context.Context, p *project.Project, pr, token string) (string, error)
}

var _ Builder = (*build.Trigger)(nil)

// Handler handles Slack Events API requests.
type Handler struct {
	signingSecret string
	projects      *project.Registry
	builder       Builder
	responder     Responder
	metrics       *Metrics
	logger        *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(signingSecret string, projects *project.Registry, builder Builder, responder Responder, metrics *Metrics, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		signingSecret: signingSecret,
		projects:      projects,
		builder:       builder,
		responder:     responder,
		metrics:       metrics,
		logger:        logger,
	}
}

func (h *Handler) count(command, outcome string) {
	if h.metrics != nil {
		h.metrics.Events.WithLabelValues(command, outcome).Inc()
	}
}

// HandleEvents is the POST /slack/events endpoint.
func (h *Handler) HandleEvents(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		h.count(CommandNone, OutcomeInvalid)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Request"})
		return
	}

	if err := h.verify(c.Request.Header, body); err != nil {
		h.logger.ErrorContext(ctx, "error verifying signature", "error", err)
		h.count(CommandNone, OutcomeUnauthorized)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		h.logger.ErrorContext(ctx, "request is not a slack event", "error", err)
		h.count(CommandNone, OutcomeInvalid)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Request"})
		return
	}

	if event.Type == slackevents.URLVerification {
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Request"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"challenge": challenge.Challenge})
		return
	}

	mention, ok := appMention(event)
	if !ok {
		h.logger.ErrorContext(ctx, "request is not an app mention", "type", event.Type)
		h.count(CommandNone, OutcomeInvalid)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Request"})
		return
	}

	command, outcome, msg := h.respond(ctx, mention)
	if _, err := h.responder.SendMarkdownResponse(ctx, msg); err != nil {
		h.logger.ErrorContext(ctx, "failed to respond", "channel", mention.Channel, "error", err)
		h.count(command, OutcomeRespondError)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "error"})
		return
	}

	h.count(command, outcome)
	c.JSON(http.StatusOK, gin.H{"ok": "ok"})
}

func (h *Handler) verify(header http.Header, body []byte) error {
	sv, err := slack.NewSecretsVerifier(header, h.signingSecret)
	if err != nil {
		return err
	}
	if _, err := sv.Write(body); err != nil {
		return err
	}
	return sv.Ensure()
}

// appMention returns the inner app_mention event of a callback.
func appMention(event slackevents.EventsAPIEvent) (*slackevents.AppMentionEvent, bool) {
	if event.Type != slackevents.CallbackEvent {
		return nil, false
	}
	mention, ok := event.InnerEvent.Data.(*slackevents.AppMentionEvent)
	if !ok || mention.User == "" || mention.Channel == "" || mention.TimeStamp == "" {
		return nil, false
	}
	return mention, true
}

// respond runs the mention's command and builds the threaded reply.
func (h *Handler) respond(ctx context.Context, mention *slackevents.AppMentionEvent) (string, string, MessageResponse) {
	msg := MessageResponse{Channel: mention.Channel, ThreadTS: mention.TimeStamp}

	var command, outcome, text string
	switch {
	case strings.Contains(mention.Text, "deploy "):
		command = CommandDeploy
		outcome, text = h.deploy(ctx, mention)
	case strings.Contains(mention.Text, "info "):
		command = CommandInfo
		outcome, text = h.info(ctx, mention.Text)
	default:
		command, outcome, text = CommandHelp, OutcomeOK, HelpText
	}

	msg.Fallback = text
	msg.Markdown = text
	return command, outcome, msg
}

func (h *Handler) deploy(ctx context.Context, mention *slackevents.AppMentionEvent) (string, string) {
	match, ok := h.projects.Match(mention.Text)
	if !ok {
		h.logger.WarnContext(ctx, "did not find project for message", "text", mention.Text)
		return OutcomeUnrecognized, UnknownProjectText
	}

	token, err := build.NewToken(mention.Channel, mention.TimeStamp)
	if err == nil {
		_, err = h.builder.StartBuild(ctx, match.Project, match.PR, token)
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "error starting build", "project", match.Project.Name, "pr", match.PR, "error", err)
		return OutcomeBuildError, fmt.Sprintf("Error starting build for %s: %v", match.Project.Name, err)
	}

	if h.metrics != nil {
		h.metrics.BuildsStarted.WithLabelValues(match.Project.Name).Inc()
	}
	h.logger.InfoContext(ctx, "starting deploy", "project", match.Project.Name, "pr", match.PR)
	return OutcomeOK, StartingDeployText
}

// info lists the environment's URLs.
func (h *Handler) info(ctx context.Context, text string) (string, string) {
	match, ok := h.projects.Match(text)
	if !ok {
		h.logger.WarnContext(ctx, "did not find project for message", "text", text)
		return OutcomeUnrecognized, UnknownProjectText
	}
	return OutcomeOK, match.Project.InfoMarkdown(match.PR)
}
