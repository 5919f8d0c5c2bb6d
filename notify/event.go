package notify

import (
	"encoding/json"

	"github.com/trussworks/ephemeral-env/errors"
)

// BuildSucceeded is the terminal status that triggers a notification.
const BuildSucceeded = "SUCCEEDED"

// BuildEvent is an EventBridge build state change event. CodeBuild events
// carry build-status and build-id; CodePipeline-shaped events carry state
// and execution-id.
type BuildEvent struct {
	Source     string      `json:"source"`
	DetailType string      `json:"detail-type"`
	Region     string      `json:"region"`
	Detail     BuildDetail `json:"detail"`
}

// BuildDetail is the detail block of a BuildEvent.
type BuildDetail struct {
	BuildStatus string `json:"build-status"`
	BuildID     string `json:"build-id"`
	ProjectName string `json:"project-name"`

	State       string `json:"state"`
	ExecutionID string `json:"execution-id"`
}

// Status returns the build status.
func (e BuildEvent) Status() string {
	if e.Detail.BuildStatus != "" {
		return e.Detail.BuildStatus
	}
	return e.Detail.State
}

// ID returns the build id.
func (e BuildEvent) ID() string {
	if e.Detail.BuildID != "" {
		return e.Detail.BuildID
	}
	return e.Detail.ExecutionID
}

// ParseBuildEvent decodes a queue message body.
func ParseBuildEvent(body string) (BuildEvent, error) {
	var ev BuildEvent
	if err := json.Unmarshal([]byte(body), &ev); err != nil {
		return BuildEvent{}, errors.Wrap(err, errors.CodeInvalidInput, "message is not a build event")
	}
	if ev.Status() == "" || ev.ID() == "" {
		return BuildEvent{}, errors.New(errors.CodeInvalidInput, "build event has no status or build id")
	}
	return ev, nil
}
