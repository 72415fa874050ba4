package gel_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Unknown    = "unknown"
	dateLayout = "2006-01-02"
)

type ReferralRecord struct {
	ReferralID             string
	ParticipantID          string
	ParticipantUID         string
	Sex                    string
	HPOTerms               []string
	Requester              string
	InterpreterName        string
	InterpreterCode        string
	ClinicalIndication     string
	ClinicalIndicationCode string
	TestOrderDate          string
}

// UnknownReferral is substituted whenever referral data cannot be parsed.
func UnknownReferral() ReferralRecord {
	return ReferralRecord{
		ReferralID:             Unknown,
		ParticipantID:          Unknown,
		ParticipantUID:         Unknown,
		Sex:                    Unknown,
		Requester:              Unknown,
		InterpreterName:        Unknown,
		InterpreterCode:        Unknown,
		ClinicalIndication:     Unknown,
		ClinicalIndicationCode: Unknown,
		TestOrderDate:          Unknown,
	}
}

type ReferralOutcome int

const (
	ReferralParsed ReferralOutcome = iota
	ReferralDefaulted
)

func (o ReferralOutcome) String() string {
	if o == ReferralParsed {
		return "parsed"
	}
	return "defaulted"
}

// ReferralResult tags the extracted record with how it was obtained. Cause is
// set only for ReferralDefaulted.
type ReferralResult struct {
	Record  ReferralRecord
	Outcome ReferralOutcome
	Cause   error
}

type referralPayload struct {
	ReferralID         *string             `json:"referralId"`
	Requester          *organisation       `json:"requester"`
	ClinicalIndication *clinicalIndication `json:"clinicalIndication"`
	ReferralTests      []referralTest      `json:"referralTests"`
	Pedigree           *referralPedigree   `json:"pedigree"`
}

type organisation struct {
	OrganisationName *string `json:"organisationName"`
	OrganisationCode *string `json:"organisationCode"`
}

type clinicalIndication struct {
	FullName *string `json:"clinicalIndicationFullName"`
	Code     *string `json:"clinicalIndicationCode"`
}

type referralTest struct {
	Interpreter  *organisation `json:"interpreter"`
	OrderingDate *orderingDate `json:"referralTestOrderingDate"`
}

type orderingDate struct {
	Year  *int `json:"year"`
	Month *int `json:"month"`
	Day   *int `json:"day"`
}

type referralPedigree struct {
	Members []referralMember `json:"members"`
}

type referralMember struct {
	IsProband      bool      `json:"isProband"`
	ParticipantID  *string   `json:"participantId"`
	ParticipantUID *string   `json:"participantUid"`
	Sex            *string   `json:"sex"`
	HPOTermList    []hpoTerm `json:"hpoTermList"`
}

type hpoTerm struct {
	Term *string `json:"term"`
}

// ExtractReferral parses a referral sub-record. It never fails: any problem
// yields UnknownReferral with Outcome ReferralDefaulted.
func ExtractReferral(raw json.RawMessage) ReferralResult {
	record, err := parseReferral(raw)
	if err != nil {
		return ReferralResult{Record: UnknownReferral(), Outcome: ReferralDefaulted, Cause: err}
	}
	return ReferralResult{Record: record, Outcome: ReferralParsed}
}

func parseReferral(raw json.RawMessage) (ReferralRecord, error) {
	var record ReferralRecord
	if len(raw) == 0 || string(raw) == "null" {
		return record, errors.New("no referral data")
	}
	payload, err := UnmarshalT[referralPayload](raw)
	if err != nil {
		return record, fmt.Errorf("Failed to decode referral: %w", err)
	}
	if len(payload.ReferralTests) == 0 {
		return record, errors.New("referral has no referral tests")
	}
	test := payload.ReferralTests[0]

	orderDate, err := test.OrderingDate.date()
	if err != nil {
		return record, err
	}
	if test.Interpreter == nil {
		return record, errors.New("referral test has no interpreter")
	}
	if payload.Requester == nil {
		return record, errors.New("referral has no requester")
	}
	if payload.ClinicalIndication == nil {
		return record, errors.New("referral has no clinical indication")
	}
	if payload.Pedigree == nil {
		return record, errors.New("referral has no pedigree")
	}

	var proband *referralMember
	for i := range payload.Pedigree.Members {
		if payload.Pedigree.Members[i].IsProband {
			proband = &payload.Pedigree.Members[i]
		}
	}
	if proband == nil {
		return record, errors.New("referral pedigree has no proband")
	}
	hpoTerms := make([]string, 0, len(proband.HPOTermList))
	for _, t := range proband.HPOTermList {
		if t.Term != nil {
			hpoTerms = append(hpoTerms, *t.Term)
		}
	}

	fields := []struct {
		dst  *string
		src  *string
		name string
	}{
		{&record.ParticipantID, proband.ParticipantID, "participantId"},
		{&record.Sex, proband.Sex, "sex"},
		{&record.Requester, payload.Requester.OrganisationName, "requester.organisationName"},
		{&record.InterpreterName, test.Interpreter.OrganisationName, "interpreter.organisationName"},
		{&record.ClinicalIndication, payload.ClinicalIndication.FullName, "clinicalIndicationFullName"},
	}
	for _, f := range fields {
		v, err := required(f.src, f.name)
		if err != nil {
			return ReferralRecord{}, err
		}
		*f.dst = v
	}
	// identifiers and codes are informational and may be null
	record.ReferralID = optional(payload.ReferralID)
	record.ParticipantUID = optional(proband.ParticipantUID)
	record.InterpreterCode = optional(test.Interpreter.OrganisationCode)
	record.ClinicalIndicationCode = optional(payload.ClinicalIndication.Code)
	record.Sex = strings.ToLower(record.Sex)
	record.HPOTerms = hpoTerms
	record.TestOrderDate = orderDate.Format(dateLayout)
	return record, nil
}

func (d *orderingDate) date() (time.Time, error) {
	if d == nil || d.Year == nil || d.Month == nil || d.Day == nil {
		return time.Time{}, errors.New("referral test has no complete ordering date")
	}
	t := time.Date(*d.Year, time.Month(*d.Month), *d.Day, 0, 0, 0, 0, time.UTC)
	if t.Year() != *d.Year || int(t.Month()) != *d.Month || t.Day() != *d.Day {
		return time.Time{}, fmt.Errorf("invalid ordering date %d-%d-%d", *d.Year, *d.Month, *d.Day)
	}
	return t, nil
}

func required(v *string, name string) (string, error) {
	if v == nil {
		return "", fmt.Errorf("referral field %s is missing", name)
	}
	return *v, nil
}

func optional(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
