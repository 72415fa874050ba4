package gel_api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// FailurePolicy decides whether a failing case aborts the run.
type FailurePolicy int

const (
	FailFast FailurePolicy = iota
	SkipCase
)

func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(s) {
	case "", "fail":
		return FailFast, nil
	case "skip":
		return SkipCase, nil
	}
	return FailFast, fmt.Errorf("Unknown failure policy %q, want fail or skip", s)
}

type PipelineConfig struct {
	Filter         CaseFilter
	RelationPolicy RelationPolicy
	FailurePolicy  FailurePolicy
	RunDate        time.Time
}

type TabulationPipeline struct {
	source     CaseSource
	samples    *SampleSink
	cases      *CaseSink
	publishers []RunPublisher
	config     PipelineConfig
	tracer     trace.Tracer
	logger     *zap.Logger
	newRunID   func() string
}

func NewTabulationPipeline(source CaseSource, samples *SampleSink, cases *CaseSink, publishers []RunPublisher,
	config PipelineConfig, tracer trace.Tracer, logger *zap.Logger) *TabulationPipeline {
	return &TabulationPipeline{
		source:     source,
		samples:    samples,
		cases:      cases,
		publishers: publishers,
		config:     config,
		tracer:     tracer,
		logger:     logger,
		newRunID:   uuid.NewString,
	}
}

const (
	runMsg            = "Tabulating GMS cases"
	listCasesErrMsg   = "Error listing cases"
	caseMsg           = "Tabulating case"
	caseErrMsg        = "Error tabulating case"
	caseSucMsg        = "Successfully tabulated case"
	writeCasesErrMsg  = "Error writing case file"
	CaseIDKey         = "Case ID"
	InterpretationKey = "Interpretation Request ID"
)

// Run tabulates every listed case, writes the case file and hands the finished
// run to the publishers. Sample rows are appended as each case completes, so
// they survive a failure later in the run.
func (tp *TabulationPipeline) Run(ctx context.Context) (RunReport, error) {
	report := RunReport{
		RunID:      tp.newRunID(),
		RunDate:    tp.config.RunDate,
		SampleFile: tp.samples.Path(),
	}
	runCtx, runSpan := tp.tracer.Start(ctx, runMsg)
	runSpan.SetAttributes(attribute.String("Run ID", report.RunID))

	summaries, err := tp.source.ListCases(runCtx, tp.config.Filter)
	if handleError(err, listCasesErrMsg, runSpan) {
		return report, fmt.Errorf("Failed to list cases: %w", err)
	}
	tp.logger.Info("Listed cases", zap.String("run_id", report.RunID), zap.Int("cases", len(summaries)))

	for _, summary := range summaries {
		caseCtx, caseSpan := tp.tracer.Start(runCtx, caseMsg)
		caseSpan.SetAttributes(
			attribute.String(CaseIDKey, summary.CaseID),
			attribute.String(InterpretationKey, summary.InterpretationRequestID),
		)
		nc, rows, err := tp.processCase(caseCtx, summary)
		if errors.Is(err, ErrNotRareDisease) {
			tp.logger.Info("Skipping case that is not rare disease", zap.String("case_id", summary.CaseID))
			caseSpan.End()
			continue
		}
		if handleError(err, caseErrMsg, caseSpan) {
			if tp.config.FailurePolicy == FailFast {
				runSpan.End()
				return report, err
			}
			tp.logger.Error("Skipping case", zap.String("case_id", summary.CaseID), zap.Error(err))
			report.Skipped = append(report.Skipped, summary.CaseID)
			continue
		}
		caseSpan.AddEvent(caseSucMsg)
		caseSpan.End()
		report.Cases = append(report.Cases, nc)
		report.Samples = append(report.Samples, rows...)
	}

	report.CaseFile, err = tp.cases.Write(report.Cases)
	if handleError(err, writeCasesErrMsg, runSpan) {
		return report, err
	}
	tp.logger.Info("Wrote case file",
		zap.String("path", report.CaseFile),
		zap.Int("cases", len(report.Cases)),
		zap.Int("new_samples", len(report.Samples)),
		zap.Int("skipped", len(report.Skipped)),
	)
	runSpan.End()

	return report, PublishRun(ctx, report, tp.publishers, tp.logger)
}

func (tp *TabulationPipeline) processCase(ctx context.Context, summary CaseSummary) (NormalizedCase, []SampleRow, error) {
	id, version, err := summary.InterpretationRequestRef()
	if err != nil {
		return NormalizedCase{}, nil, err
	}
	ir, err := tp.source.GetInterpretationRequest(ctx, id, version)
	if err != nil {
		return NormalizedCase{}, nil, err
	}
	rd, err := ir.RareDiseaseRequest()
	if err != nil {
		return NormalizedCase{}, nil, err
	}

	referral := ExtractReferral(ir.ReferralData())
	if referral.Outcome == ReferralDefaulted {
		tp.logger.Warn("No usable referral data",
			zap.String("case_id", summary.CaseID),
			zap.Error(referral.Cause),
		)
	}

	family, dropped, err := ExtractFamily(rd.Pedigree.Members, tp.config.RelationPolicy)
	if err != nil {
		return NormalizedCase{}, nil, fmt.Errorf("case '%s': %w", summary.CaseID, err)
	}
	for _, participant := range dropped {
		tp.logger.Warn("Dropped sequenced relative without relation_to_proband",
			zap.String("case_id", summary.CaseID),
			zap.String("participant_id", participant),
		)
	}

	nc, err := TabulateCase(summary, referral.Record, family)
	if err != nil {
		return NormalizedCase{}, nil, err
	}
	rows, err := tp.samples.Append(nc)
	if err != nil {
		return NormalizedCase{}, nil, err
	}
	return nc, rows, nil
}

// FilePipeline downloads the sequencing files of the families named in an input list.
type FilePipeline struct {
	source    CaseSource
	retriever *FileRetriever
	filter    CaseFilter
	logger    *zap.Logger
}

func NewFilePipeline(source CaseSource, retriever *FileRetriever, filter CaseFilter, logger *zap.Logger) *FilePipeline {
	return &FilePipeline{source: source, retriever: retriever, filter: filter, logger: logger}
}

// Run processes the identifiers in order and stops at the first failure.
// It returns the names of the files requested.
func (fp *FilePipeline) Run(ctx context.Context, familyIDs []string) ([]string, error) {
	var requested []string
	for _, familyID := range familyIDs {
		filter := fp.filter
		filter.FamilyID = familyID
		summaries, err := fp.source.ListCases(ctx, filter)
		if err != nil {
			return requested, fmt.Errorf("Failed to list cases for family '%s': %w", familyID, err)
		}
		if len(summaries) == 0 {
			fp.logger.Warn("No cases found for family", zap.String("family_id", familyID))
		}
		for _, summary := range summaries {
			id, version, err := summary.InterpretationRequestRef()
			if err != nil {
				return requested, err
			}
			ir, err := fp.source.GetInterpretationRequest(ctx, id, version)
			if err != nil {
				return requested, err
			}
			names, err := fp.retriever.Retrieve(ctx, summary, ir)
			requested = append(requested, names...)
			if err != nil {
				return requested, err
			}
			fp.logger.Info("Requested case files",
				zap.String("family_id", summary.FamilyID),
				zap.String("case_id", summary.CaseID),
				zap.Strings("sites", summary.Sites),
				zap.Int("files", len(names)),
			)
		}
	}
	return requested, nil
}
