package gel_api

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const SampleDetailsFile = "sample_details.tsv"

// SampleColumns is the column order of the sample details file. The file has no header.
var SampleColumns = []string{
	"sampleId",
	"referral_id",
	"participant_id",
	"sex",
	"relation",
	"clinical_indication",
}

type SampleRow struct {
	SampleID           string
	ReferralID         string
	ParticipantID      string
	Sex                string
	Relation           string
	ClinicalIndication string
}

func (r SampleRow) record() []string {
	return []string{r.SampleID, r.ReferralID, r.ParticipantID, r.Sex, r.Relation, r.ClinicalIndication}
}

// SampleRows reformats a case into one row per family member.
func SampleRows(nc NormalizedCase) []SampleRow {
	rows := make([]SampleRow, 0, len(nc.Members))
	for _, m := range nc.Members {
		row := SampleRow{
			SampleID:      m.SampleID,
			ReferralID:    nc.ReferralID,
			ParticipantID: m.ParticipantID,
			Sex:           m.Sex,
		}
		if m.Relation == RelationProband {
			row.Relation = m.Relation
			row.ClinicalIndication = nc.ClinicalIndication
		} else {
			row.Relation = m.Affection.Capitalized() + " " + m.Relation
		}
		rows = append(rows, row)
	}
	return rows
}

// SampleSink appends sample rows to a long-lived TSV shared across runs.
// It never truncates the file and is not safe for concurrent runs.
type SampleSink struct {
	path string
}

func NewSampleSink(outputDir string) *SampleSink {
	return &SampleSink{path: filepath.Join(outputDir, SampleDetailsFile)}
}

func (s *SampleSink) Path() string {
	return s.path
}

// Append writes the case's sample rows, skipping any sample id already
// present in the file. It returns the rows written. Only the first column of
// existing lines is matched, so legacy files with the sample id elsewhere
// are not deduplicated against.
func (s *SampleSink) Append(nc NormalizedCase) ([]SampleRow, error) {
	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("Failed to open sample details file '%s': %w", s.path, err)
	}
	defer f.Close()

	existing, err := sampleIndex(f)
	if err != nil {
		return nil, fmt.Errorf("Failed to read sample details file '%s': %w", s.path, err)
	}

	var pending []SampleRow
	for _, row := range SampleRows(nc) {
		if !existing[row.SampleID] {
			pending = append(pending, row)
		}
	}

	w := csv.NewWriter(f)
	w.Comma = '\t'
	for _, row := range pending {
		if err := w.Write(row.record()); err != nil {
			return nil, fmt.Errorf("Failed to write sample '%s': %w", row.SampleID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("Failed to flush sample details file '%s': %w", s.path, err)
	}
	return pending, nil
}

// sampleIndex collects the sample id column of every line in r.
func sampleIndex(r io.Reader) (map[string]bool, error) {
	index := map[string]bool{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		id, _, _ := strings.Cut(line, "\t")
		index[id] = true
	}
	return index, scanner.Err()
}
