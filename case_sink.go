package gel_api

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const hpoSeparator = "; "

var CaseColumns = []string{
	"referral_id",
	"status",
	"last_modified",
	"case_id",
	"proband_id",
	"proband",
	"mother",
	"father",
	"family_structure",
	"affected",
	"clinical_indication",
	"hpo_terms",
	"requester",
	"interpreter_name",
	"interpreter_code",
	"test_order_date",
}

// CaseRecord renders a case in CaseColumns order.
func CaseRecord(nc NormalizedCase) []string {
	return []string{
		nc.ReferralID,
		nc.Status,
		nc.LastModified,
		nc.CaseID,
		nc.ProbandID,
		nc.ProbandSampleID,
		nc.MotherSampleID,
		nc.FatherSampleID,
		nc.FamilyStructure,
		nc.Affected,
		nc.ClinicalIndication,
		strings.Join(nc.HPOTerms, hpoSeparator),
		nc.Requester,
		nc.InterpreterName,
		nc.InterpreterCode,
		nc.TestOrderDate,
	}
}

func CaseFileName(runDate time.Time, ext string) string {
	return fmt.Sprintf("pilot_cases_%s.%s", runDate.Format(dateLayout), ext)
}

// CaseSink writes the run's cases to a fresh CSV named after the run date.
type CaseSink struct {
	outputDir string
	runDate   time.Time
}

func NewCaseSink(outputDir string, runDate time.Time) *CaseSink {
	return &CaseSink{outputDir: outputDir, runDate: runDate}
}

func (c *CaseSink) Path() string {
	return filepath.Join(c.outputDir, CaseFileName(c.runDate, "csv"))
}

// Write overwrites the run's case file with a header and one row per case.
func (c *CaseSink) Write(cases []NormalizedCase) (string, error) {
	path := c.Path()
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("Failed to create case file '%s': %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(CaseColumns); err != nil {
		return "", fmt.Errorf("Failed to write case file header: %w", err)
	}
	for _, nc := range cases {
		if err := w.Write(CaseRecord(nc)); err != nil {
			return "", fmt.Errorf("Failed to write case '%s': %w", nc.CaseID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("Failed to flush case file '%s': %w", path, err)
	}
	return path, f.Close()
}
