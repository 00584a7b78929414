package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rancher/distros-deploy-framework/pkg/tracker"
	"github.com/rancher/distros-deploy-framework/shared"
)

const slackPostMsgURL = "https://slack.com/api/chat.postMessage"

type SlackClient struct {
	token     string
	channelID string
	client    *http.Client
	dryRun    bool
}

type slackMessage struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

type slackPostResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	TS    string `json:"ts,omitempty"`
}

// NewSlackClient builds a client for posting deployment outcomes. With an
// empty token the client is in dry-run mode and only logs what it would send.
func NewSlackClient(token, channelID string) *SlackClient {
	return &SlackClient{
		token:     token,
		channelID: channelID,
		client:    &http.Client{Timeout: 30 * time.Second},
		dryRun:    token == "" || channelID == "",
	}
}

// PostRunSummary posts the run outcome: id, status, exit code and the first
// failed stage if any.
func (s *SlackClient) PostRunSummary(run *tracker.DeploymentRun) error {
	text := fmt.Sprintf("Deployment %s finished with status *%s*", run.ID, run.Status)
	if run.ExitCode != nil {
		text += fmt.Sprintf(" (exit code %d)", *run.ExitCode)
	}
	for _, stage := range run.Stages {
		if stage.Status == tracker.StageFailure {
			text += fmt.Sprintf("\nFirst failed stage: `%s`", stage.Name)
			break
		}
	}

	return s.postMessage(text)
}

func (s *SlackClient) postMessage(text string) error {
	if s.dryRun {
		shared.LogLevel("info", "slack dry-run, would post: %s", text)
		return nil
	}

	payload, err := json.Marshal(slackMessage{Channel: s.channelID, Text: text})
	if err != nil {
		return fmt.Errorf("failed to marshal slack message: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, slackPostMsgURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post slack message: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read slack response: %w", err)
	}

	var posted slackPostResponse
	if err := json.Unmarshal(body, &posted); err != nil {
		return fmt.Errorf("failed to parse slack response: %w", err)
	}
	if !posted.OK {
		return fmt.Errorf("slack API error: %s", posted.Error)
	}

	return nil
}
