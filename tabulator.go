package gel_api

import (
	"fmt"
	"strings"
	"time"
)

const (
	Singleton = "Singleton"
	Trio      = "Trio"

	labelSeparator = ", "
)

// FamilyStructure classifies the family as Singleton, Trio or the joined
// relation labels in pedigree order.
func FamilyStructure(family []FamilyMember) string {
	if len(family) == 1 {
		return Singleton
	}
	if len(family) == 3 && isTrio(family) {
		return Trio
	}
	return strings.Join(relations(family, nil), labelSeparator)
}

func isTrio(family []FamilyMember) bool {
	seen := map[string]bool{}
	for _, m := range family {
		seen[m.Relation] = true
	}
	return len(seen) == 3 && seen[RelationProband] && seen[RelationMother] && seen[RelationFather]
}

func relations(family []FamilyMember, keep func(FamilyMember) bool) []string {
	labels := []string{}
	for _, m := range family {
		if keep == nil || keep(m) {
			labels = append(labels, m.Relation)
		}
	}
	return labels
}

func sampleIDsFor(family []FamilyMember, relation string) string {
	var b strings.Builder
	for _, m := range family {
		if m.Relation == relation {
			b.WriteString(m.SampleID)
		}
	}
	return b.String()
}

// LastModifiedDate reduces a CIP-API timestamp to its calendar date.
func LastModifiedDate(ts string) (string, error) {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return "", fmt.Errorf("Failed to parse last_modified %q: %w", ts, err)
	}
	return t.Format(dateLayout), nil
}

// TabulateCase merges the case summary, referral and family into one record.
func TabulateCase(summary CaseSummary, referral ReferralRecord, family []FamilyMember) (NormalizedCase, error) {
	lastModified, err := LastModifiedDate(summary.LastModified)
	if err != nil {
		return NormalizedCase{}, fmt.Errorf("case '%s': %w", summary.CaseID, err)
	}

	structure := FamilyStructure(family)
	affected := strings.Join(relations(family, func(m FamilyMember) bool {
		return m.Affection == Affected
	}), labelSeparator)

	var mother, father string
	if structure == Trio {
		mother = sampleIDsFor(family, RelationMother)
		father = sampleIDsFor(family, RelationFather)
	}

	return NormalizedCase{
		ReferralID:             summary.FamilyID,
		Status:                 summary.LastStatus,
		LastModified:           lastModified,
		CaseID:                 summary.CaseID,
		ProbandID:              summary.Proband,
		ProbandSampleID:        sampleIDsFor(family, RelationProband),
		MotherSampleID:         mother,
		FatherSampleID:         father,
		Members:                family,
		FamilyStructure:        structure,
		Affected:               affected,
		ClinicalIndication:     referral.ClinicalIndication,
		ClinicalIndicationCode: referral.ClinicalIndicationCode,
		HPOTerms:               referral.HPOTerms,
		Requester:              referral.Requester,
		InterpreterName:        referral.InterpreterName,
		InterpreterCode:        referral.InterpreterCode,
		TestOrderDate:          referral.TestOrderDate,
	}, nil
}
