// Package notify reports finished deploy builds back to the Slack thread
// that requested them. Build state change events arrive on an SQS queue.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/trussworks/ephemeral-env/build"
	"github.com/trussworks/ephemeral-env/errors"
	"github.com/trussworks/ephemeral-env/project"
	"github.com/trussworks/ephemeral-env/services/aws/awsutil"
	"github.com/trussworks/ephemeral-env/slackbot"
)

// Receive parameters.
const (
	WaitTimeSeconds = 20
	MaxMessages     = 10
)

// DeployedText is the fallback text of the completion reply.
const DeployedText = "Environment is deployed"

// QueueAPI defines the subset of the SQS client used by Poller.
type QueueAPI interface {
	ReceiveMessage(
		ctx context.Context,
		params *sqs.ReceiveMessageInput,
		optFns ...func(*sqs.Options),
	) (*sqs.ReceiveMessageOutput, error)

	DeleteMessage(
		ctx context.Context,
		params *sqs.DeleteMessageInput,
		optFns ...func(*sqs.Options),
	) (*sqs.DeleteMessageOutput, error)
}

var _ QueueAPI = (*sqs.Client)(nil)

// BuildInfoSource recovers the token and PR of a build.
type BuildInfoSource interface {
	BuildInfo(ctx context.Context, buildID string) (*build.Info, bool, error)
}

var _ BuildInfoSource = (*build.Trigger)(nil)

// Poller consumes build events and replies in the originating thread.
type Poller struct {
	queue     QueueAPI
	queueURL  string
	builds    BuildInfoSource
	projects  *project.Registry
	responder slackbot.Responder
	metrics   *slackbot.Metrics
	logger    *slog.Logger
	backoff   time.Duration
}

// Option configures a Poller.
type Option func(*Poller)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) {
		p.logger = logger
	}
}

// WithMetrics counts handled messages.
func WithMetrics(m *slackbot.Metrics) Option {
	return func(p *Poller) {
		p.metrics = m
	}
}

// WithBackoff sets the pause after a failed receive.
func WithBackoff(d time.Duration) Option {
	return func(p *Poller) {
		p.backoff = d
	}
}

// NewPoller creates a Poller.
func NewPoller(queue QueueAPI, queueURL string, builds BuildInfoSource, projects *project.Registry, responder slackbot.Responder, opts ...Option) *Poller {
	p := &Poller{
		queue:     queue,
		queueURL:  queueURL,
		builds:    builds,
		projects:  projects,
		responder: responder,
		backoff:   5 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	return p
}

// NewPollerFromConfig creates a Poller with an SQS client built from cfg.
func NewPollerFromConfig(cfg aws.Config, queueURL string, builds BuildInfoSource, projects *project.Registry, responder slackbot.Responder, opts ...Option) *Poller {
	return NewPoller(sqs.NewFromConfig(cfg), queueURL, builds, projects, responder, opts...)
}

// Run polls until ctx is cancelled. Transient receive failures are logged
// and retried after the backoff; a missing queue or denied access ends the
// loop with the error.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.InfoContext(ctx, "polling for build events", "queue", p.queueURL)
	for {
		if _, err := p.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if !errors.IsRetryable(err) {
				return err
			}
			p.logger.ErrorContext(ctx, "failed to receive messages", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(p.backoff):
			}
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Queue error codes that no amount of retrying fixes.
var permanentQueueCodes = map[string]bool{
	"AWS.SimpleQueueService.NonExistentQueue": true,
	"QueueDoesNotExist":                       true,
	"AccessDenied":                            true,
	"AccessDeniedException":                   true,
}

func receiveError(err error) error {
	code := errors.CodeUnavailable
	if c, ok := awsutil.ErrorCode(err); ok {
		switch {
		case permanentQueueCodes[c]:
			code = errors.CodeInvalidConfig
		case awsutil.IsThrottle(err):
			code = errors.CodeRateLimit
		}
	}
	return errors.Wrap(awsutil.OperationError("ReceiveMessage", err), code, "failed to receive messages")
}

// PollOnce receives one batch and handles every message in it. It returns
// the number of messages deleted.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	out, err := p.queue.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(p.queueURL),
		MaxNumberOfMessages: MaxMessages,
		WaitTimeSeconds:     WaitTimeSeconds,
	})
	if err != nil {
		return 0, receiveError(err)
	}

	deleted := 0
	for _, msg := range out.Messages {
		if p.handleMessage(ctx, msg) {
			deleted++
		}
	}
	return deleted, nil
}

// handleMessage handles msg and deletes it unless handling failed in a way
// a redelivery could fix.
func (p *Poller) handleMessage(ctx context.Context, msg types.Message) bool {
	id := aws.ToString(msg.MessageId)

	outcome, err := p.Handle(ctx, aws.ToString(msg.Body))
	p.count(outcome)
	if err != nil {
		if outcome != slackbot.OutcomeMalformed {
			p.logger.ErrorContext(ctx, "failed to handle build event, leaving for redelivery",
				"message", id, "error", err)
			return false
		}
		p.logger.ErrorContext(ctx, "dropping malformed message", "message", id, "error", err)
	}

	_, err = p.queue.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(p.queueURL),
		ReceiptHandle: msg.ReceiptHandle,
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to delete message", "message", id, "error", awsutil.OperationError("DeleteMessage", err))
		return false
	}
	return true
}

func (p *Poller) count(outcome string) {
	if p.metrics != nil {
		p.metrics.Notifications.WithLabelValues(outcome).Inc()
	}
}

// Handle processes one message body and returns its outcome. Only
// SUCCEEDED builds produce a reply.
func (p *Poller) Handle(ctx context.Context, body string) (string, error) {
	ev, err := ParseBuildEvent(body)
	if err != nil {
		return slackbot.OutcomeMalformed, err
	}

	if ev.Status() != BuildSucceeded {
		p.logger.DebugContext(ctx, "ignoring build event", "build", ev.ID(), "status", ev.Status())
		return slackbot.OutcomeIgnored, nil
	}

	info, found, err := p.builds.BuildInfo(ctx, ev.ID())
	if err != nil {
		return slackbot.OutcomeRespondError, err
	}
	if !found {
		p.logger.ErrorContext(ctx, "cannot find build info", "build", ev.ID())
		return slackbot.OutcomeIgnored, nil
	}

	token, err := build.ParseToken(info.Token)
	if err != nil {
		return slackbot.OutcomeMalformed, err
	}

	proj, ok := p.projects.Get(info.Project)
	if !ok {
		return slackbot.OutcomeMalformed, errors.Newf(errors.CodeNotFound, "build %s names unknown project %q", ev.ID(), info.Project)
	}

	url := proj.DeployedURL(info.PR)
	if _, err := p.responder.SendMarkdownResponse(ctx, slackbot.MessageResponse{
		Channel:  token.Channel,
		ThreadTS: token.TS,
		Fallback: DeployedText,
		Markdown: fmt.Sprintf("<%s|%s>", url, DeployedText),
	}); err != nil {
		return slackbot.OutcomeRespondError, err
	}

	p.logger.InfoContext(ctx, "announced deploy", "project", proj.Name, "pr", info.PR, "url", url)
	return slackbot.OutcomeOK, nil
}
