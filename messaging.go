package gel_api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

type natsPublisher interface {
	Publish(subject string, data []byte) error
	Flush() error
}

// CaseEventPublisher emits one message per tabulated case.
type CaseEventPublisher struct {
	conn    natsPublisher
	subject string
}

// CaseEvent is the message body published for a case.
type CaseEvent struct {
	RunID string         `json:"runId"`
	Case  NormalizedCase `json:"case"`
}

func NewCaseEventPublisher(url, certPath, keyPath, user, password, subject string) (*CaseEventPublisher, func(), error) {
	opts := []nats.Option{nats.Name("gel-api")}
	if certPath != "" && keyPath != "" {
		opts = append(opts, nats.ClientCert(certPath, keyPath))
	}
	if user != "" {
		opts = append(opts, nats.UserInfo(user, password))
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("Failed to create a nats messaging client: %q", err)
	}
	return &CaseEventPublisher{conn: nc, subject: subject}, func() { nc.Close() }, nil
}

func (p *CaseEventPublisher) Name() string {
	return "nats"
}

func (p *CaseEventPublisher) Publish(ctx context.Context, report RunReport) error {
	for _, nc := range report.Cases {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := json.Marshal(CaseEvent{RunID: report.RunID, Case: nc})
		if err != nil {
			return fmt.Errorf("Failed to marshal case '%s': %q", nc.CaseID, err)
		}
		if err := p.conn.Publish(p.subject, data); err != nil {
			return fmt.Errorf("Failed to publish case '%s': %q", nc.CaseID, err)
		}
	}
	return p.conn.Flush()
}
