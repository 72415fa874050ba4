package gel_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

func NotifyViaSlack(ctx context.Context, body, slackURL string) error {

	slackCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(slackCtx, http.MethodPost, slackURL, strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}
	return nil
}

type SlackNotifier struct {
	url string
}

func NewSlackNotifier(url string) *SlackNotifier {
	return &SlackNotifier{url: url}
}

func (s *SlackNotifier) Name() string {
	return "slack"
}

// SlackSummary is the text posted for a finished run.
func SlackSummary(report RunReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "GMS case run %s (%s): %d cases tabulated, %d new samples",
		report.RunID, report.RunDate.Format(dateLayout), len(report.Cases), len(report.Samples))
	if len(report.Skipped) > 0 {
		fmt.Fprintf(&b, ", %d skipped (%s)", len(report.Skipped), strings.Join(report.Skipped, ", "))
	}
	return b.String()
}

func (s *SlackNotifier) Publish(ctx context.Context, report RunReport) error {
	body, err := json.Marshal(map[string]string{"text": SlackSummary(report)})
	if err != nil {
		return err
	}
	return NotifyViaSlack(ctx, string(body), s.url)
}
