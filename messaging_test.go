package gel_api

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNatsConn struct {
	subjects   []string
	messages   [][]byte
	flushes    int
	publishErr error
}

func (f *fakeNatsConn) Publish(subject string, data []byte) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.subjects = append(f.subjects, subject)
	f.messages = append(f.messages, data)
	return nil
}

func (f *fakeNatsConn) Flush() error {
	f.flushes++
	return nil
}

func TestCaseEventPublisher(t *testing.T) {
	referral := ExtractReferral([]byte(referralJSON)).Record
	family := []FamilyMember{member("p", "S1", RelationProband, Affected)}
	first, err := TabulateCase(testSummary("case-1", "FAM001"), referral, family)
	require.NoError(t, err)
	second, err := TabulateCase(testSummary("case-2", "FAM002"), UnknownReferral(), family)
	require.NoError(t, err)
	report := RunReport{RunID: "run-1", Cases: []NormalizedCase{first, second}}

	t.Run("one message per case", func(t *testing.T) {
		conn := &fakeNatsConn{}
		publisher := &CaseEventPublisher{conn: conn, subject: "gms.cases"}
		require.NoError(t, publisher.Publish(context.Background(), report))

		assert.Equal(t, []string{"gms.cases", "gms.cases"}, conn.subjects)
		assert.Equal(t, 1, conn.flushes)
		var event CaseEvent
		require.NoError(t, json.Unmarshal(conn.messages[1], &event))
		assert.Equal(t, "run-1", event.RunID)
		assert.Equal(t, "case-2", event.Case.CaseID)
		assert.Equal(t, Singleton, event.Case.FamilyStructure)
	})

	t.Run("publish failure", func(t *testing.T) {
		conn := &fakeNatsConn{publishErr: errors.New("disconnected")}
		publisher := &CaseEventPublisher{conn: conn, subject: "gms.cases"}
		err := publisher.Publish(context.Background(), report)
		assert.ErrorContains(t, err, "disconnected")
		assert.Zero(t, conn.flushes)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		publisher := &CaseEventPublisher{conn: &fakeNatsConn{}, subject: "gms.cases"}
		assert.ErrorIs(t, publisher.Publish(ctx, report), context.Canceled)
	})
}
