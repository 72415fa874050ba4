package gel_api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RunReport describes one finished tabulation run.
type RunReport struct {
	RunID      string
	RunDate    time.Time
	Cases      []NormalizedCase
	Samples    []SampleRow // rows appended by this run
	Skipped    []string    // case ids skipped under SkipCase
	CaseFile   string
	SampleFile string
}

// RunPublisher forwards a finished run somewhere beyond the local files.
type RunPublisher interface {
	Name() string
	Publish(ctx context.Context, report RunReport) error
}

// PublishRun runs every publisher and joins their failures. A failing
// publisher does not stop the others.
func PublishRun(ctx context.Context, report RunReport, publishers []RunPublisher, logger *zap.Logger) error {
	var errs []error
	for _, p := range publishers {
		if err := p.Publish(ctx, report); err != nil {
			logger.Error("Publisher failed", zap.String("publisher", p.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		logger.Info("Published run", zap.String("publisher", p.Name()), zap.String("run_id", report.RunID))
	}
	return errors.Join(errs...)
}
