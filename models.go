package gel_api

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	RareDiseaseSampleType = "raredisease"

	RelationProband = "Proband"
	RelationMother  = "Mother"
	RelationFather  = "Father"

	relationToProbandKey = "relation_to_proband"
)

// CaseSummary is one entry of the CIP-API interpretation request list.
type CaseSummary struct {
	CaseID                  string   `json:"case_id"`
	Proband                 string   `json:"proband"`
	LastStatus              string   `json:"last_status"`
	LastModified            string   `json:"last_modified"`
	SampleType              string   `json:"sample_type"`
	FamilyID                string   `json:"family_id"`
	Sites                   []string `json:"sites"`
	InterpretationRequestID string   `json:"interpretation_request_id"`
}

// InterpretationRequestRef splits the "<id>-<version>" identifier.
func (cs CaseSummary) InterpretationRequestRef() (string, string, error) {
	id, version, ok := strings.Cut(cs.InterpretationRequestID, "-")
	if !ok || id == "" || version == "" {
		return "", "", fmt.Errorf("Malformed interpretation request id %q for case '%s'", cs.InterpretationRequestID, cs.CaseID)
	}
	return id, version, nil
}

// InterpretationRequestRecord is the raw interpretation request payload for
// one case. Referral data is kept raw so that its extraction can degrade.
type InterpretationRequestRecord struct {
	SampleType                string                    `json:"sample_type"`
	InterpretationRequestData InterpretationRequestData `json:"interpretation_request_data"`
	Referral                  *ReferralEnvelope         `json:"referral"`
}

type InterpretationRequestData struct {
	JSONRequest json.RawMessage `json:"json_request"`
}

type ReferralEnvelope struct {
	ReferralData json.RawMessage `json:"referral_data"`
}

// ReferralData returns the raw referral sub-record or nil when absent.
func (ir InterpretationRequestRecord) ReferralData() json.RawMessage {
	if ir.Referral == nil {
		return nil
	}
	return ir.Referral.ReferralData
}

// InterpretationRequestRD is the decoded rare disease json_request.
type InterpretationRequestRD struct {
	Pedigree Pedigree         `json:"pedigree"`
	Bams     []FileDescriptor `json:"bams"`
}

type Pedigree struct {
	Members []PedigreeMember `json:"members"`
}

type PedigreeMember struct {
	ParticipantID         string            `json:"participantId"`
	IsProband             bool              `json:"isProband"`
	Sex                   string            `json:"sex"`
	AffectionStatus       string            `json:"affectionStatus"`
	Samples               []PedigreeSample  `json:"samples"`
	AdditionalInformation map[string]string `json:"additionalInformation"`
}

type PedigreeSample struct {
	SampleID string `json:"sampleId"`
}

type FileDescriptor struct {
	URIFile  string `json:"uriFile"`
	FileType string `json:"fileType"`
}

// RareDiseaseRequest decodes the json_request of a rare disease case.
func (ir InterpretationRequestRecord) RareDiseaseRequest() (InterpretationRequestRD, error) {
	var rd InterpretationRequestRD
	if ir.SampleType != RareDiseaseSampleType {
		return rd, fmt.Errorf("%w: sample type %q", ErrNotRareDisease, ir.SampleType)
	}
	if len(ir.InterpretationRequestData.JSONRequest) == 0 {
		return rd, fmt.Errorf("Interpretation request has no json_request")
	}
	rd, err := UnmarshalT[InterpretationRequestRD](ir.InterpretationRequestData.JSONRequest)
	if err != nil {
		return rd, fmt.Errorf("Failed to decode json_request: %w", err)
	}
	return rd, nil
}

type AffectionStatus string

const (
	Affected         AffectionStatus = "AFFECTED"
	Unaffected       AffectionStatus = "UNAFFECTED"
	Uncertain        AffectionStatus = "UNCERTAIN"
	AffectionUnknown AffectionStatus = "UNKNOWN"
)

// ParseAffectionStatus upper-cases the pedigree value and keeps it, so
// UNCERTAIN and any other enum value survive. Only a blank status is UNKNOWN.
func ParseAffectionStatus(s string) AffectionStatus {
	status := strings.ToUpper(strings.TrimSpace(s))
	if status == "" {
		return AffectionUnknown
	}
	return AffectionStatus(status)
}

// Capitalized renders the status as "Affected", "Uncertain" and so on.
func (a AffectionStatus) Capitalized() string {
	return Capitalize(string(a))
}

// Capitalize upper-cases the first letter and lower-cases the rest.
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	lower := strings.ToLower(s)
	return strings.ToUpper(lower[:1]) + lower[1:]
}

type FamilyMember struct {
	ParticipantID string          `json:"participant_id"`
	SampleID      string          `json:"sample_id"`
	Relation      string          `json:"relation"`
	Sex           string          `json:"sex"`
	Affection     AffectionStatus `json:"affected"`
}

type NormalizedCase struct {
	ReferralID             string         `json:"referral_id"`
	Status                 string         `json:"status"`
	LastModified           string         `json:"last_modified"`
	CaseID                 string         `json:"case_id"`
	ProbandID              string         `json:"proband_id"`
	ProbandSampleID        string         `json:"proband"`
	MotherSampleID         string         `json:"mother"`
	FatherSampleID         string         `json:"father"`
	Members                []FamilyMember `json:"members"`
	FamilyStructure        string         `json:"family_structure"`
	Affected               string         `json:"affected"`
	ClinicalIndication     string         `json:"clinical_indication"`
	ClinicalIndicationCode string         `json:"clinical_indication_code"`
	HPOTerms               []string       `json:"hpo_terms"`
	Requester              string         `json:"requester"`
	InterpreterName        string         `json:"interpreter_name"`
	InterpreterCode        string         `json:"interpreter_code"`
	TestOrderDate          string         `json:"test_order_date"`
}
