package gel_api

import (
	"context"
	"encoding/json"
	"fmt"
)

var referralJSON = `
{
  "referralId": "r21-0ABC",
  "requester": {
    "organisationName": "Royal Devon University Healthcare",
    "organisationCode": "RH8"
  },
  "clinicalIndication": {
    "clinicalIndicationCode": "R29",
    "clinicalIndicationFullName": "Intellectual disability"
  },
  "referralTests": [
    {
      "referralTestOrderingDate": {"year": 2021, "month": 3, "day": 9},
      "interpreter": {
        "organisationName": "South West Genomic Laboratory Hub",
        "organisationCode": "698A0"
      }
    }
  ],
  "pedigree": {
    "members": [
      {
        "isProband": false,
        "participantId": "p-mother",
        "participantUid": "uid-mother",
        "sex": "FEMALE",
        "hpoTermList": []
      },
      {
        "isProband": true,
        "participantId": "p-proband",
        "participantUid": "uid-proband",
        "sex": "MALE",
        "hpoTermList": [{"term": "HP:0001249"}, {"term": "HP:0001250"}]
      }
    ]
  }
}
`

var trioRequestJSON = `
{
  "pedigree": {
    "members": [
      {
        "participantId": "p-proband",
        "isProband": true,
        "sex": "MALE",
        "affectionStatus": "AFFECTED",
        "samples": [{"sampleId": "P1"}]
      },
      {
        "participantId": "p-mother",
        "isProband": false,
        "sex": "FEMALE",
        "affectionStatus": "AFFECTED",
        "samples": [{"sampleId": "M1"}],
        "additionalInformation": {"relation_to_proband": "Mother"}
      },
      {
        "participantId": "p-father",
        "isProband": false,
        "sex": "MALE",
        "affectionStatus": "UNAFFECTED",
        "samples": [{"sampleId": "F1"}],
        "additionalInformation": {"relation_to_proband": "Father"}
      },
      {
        "participantId": "p-sibling",
        "isProband": false,
        "sex": "FEMALE",
        "affectionStatus": "UNAFFECTED",
        "samples": []
      }
    ]
  },
  "bams": [
    {"uriFile": "/genomes/by_date/2021-03-09/P1/P1.cram", "fileType": "CRAM"},
    {"uriFile": "/genomes/by_date/2021-03-09/M1/M1.cram", "fileType": "CRAM"},
    {"uriFile": "/genomes/by_date/2021-03-09/F1/F1.cram", "fileType": "CRAM"}
  ]
}
`

func testSummary(caseID, familyID string) CaseSummary {
	return CaseSummary{
		CaseID:                  caseID,
		Proband:                 "p-proband",
		LastStatus:              "sent_to_gmcs",
		LastModified:            "2021-04-01T12:30:45.123456Z",
		SampleType:              RareDiseaseSampleType,
		FamilyID:                familyID,
		Sites:                   []string{"69A50", "RA7"},
		InterpretationRequestID: "1234-2",
	}
}

func testRecord(jsonRequest, referral string) InterpretationRequestRecord {
	ir := InterpretationRequestRecord{
		SampleType:                RareDiseaseSampleType,
		InterpretationRequestData: InterpretationRequestData{JSONRequest: json.RawMessage(jsonRequest)},
	}
	if referral != "" {
		ir.Referral = &ReferralEnvelope{ReferralData: json.RawMessage(referral)}
	}
	return ir
}

func member(participant, sample, relation string, affection AffectionStatus) FamilyMember {
	return FamilyMember{ParticipantID: participant, SampleID: sample, Relation: relation, Sex: "FEMALE", Affection: affection}
}

// fakeCaseSource serves cases and records from memory.
type fakeCaseSource struct {
	cases   []CaseSummary
	records map[string]InterpretationRequestRecord
	filters []CaseFilter
	fetched []string
	listErr error
}

func (f *fakeCaseSource) ListCases(_ context.Context, filter CaseFilter) ([]CaseSummary, error) {
	f.filters = append(f.filters, filter)
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []CaseSummary
	for _, c := range f.cases {
		if filter.FamilyID == "" || filter.FamilyID == c.FamilyID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCaseSource) GetInterpretationRequest(_ context.Context, id, version string) (InterpretationRequestRecord, error) {
	key := id + "-" + version
	f.fetched = append(f.fetched, key)
	ir, ok := f.records[key]
	if !ok {
		return ir, fmt.Errorf("no interpretation request %s", key)
	}
	return ir, nil
}
