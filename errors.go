package gel_api

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrProbandWithoutSample = errors.New("proband has no sample")
	ErrMissingRelation      = errors.New("sequenced relative has no relation_to_proband")
	ErrNotRareDisease       = errors.New("interpretation request is not rare disease")
)

func UnmarshalT[T any](b []byte) (T, error) {
	var target T
	if err := json.Unmarshal(b, &target); err != nil {
		return target, err
	}
	return target, nil
}

// handleError records err on the span and ends it. It reports whether err was non-nil.
func handleError(err error, message string, span trace.Span) bool {
	if err != nil {
		msg := fmt.Sprintf("%s: %v", message, err)
		span.AddEvent(msg)
		span.SetStatus(codes.Error, msg)
		span.End()
		return true
	}
	return false
}
