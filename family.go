package gel_api

import (
	"fmt"
	"strings"
)

// RelationPolicy decides what happens to a sequenced relative whose pedigree
// entry carries no relation_to_proband.
type RelationPolicy int

const (
	RelationDrop RelationPolicy = iota
	RelationFail
)

func ParseRelationPolicy(s string) (RelationPolicy, error) {
	switch strings.ToLower(s) {
	case "", "drop":
		return RelationDrop, nil
	case "fail":
		return RelationFail, nil
	}
	return RelationDrop, fmt.Errorf("Unknown relation policy %q, want drop or fail", s)
}

// ExtractFamily returns the proband and sequenced relatives in pedigree order.
// Dropped lists the participant ids skipped under RelationDrop.
func ExtractFamily(members []PedigreeMember, policy RelationPolicy) (family []FamilyMember, dropped []string, err error) {
	for _, member := range members {
		if member.IsProband {
			if len(member.Samples) == 0 {
				return nil, nil, fmt.Errorf("%w: participant '%s'", ErrProbandWithoutSample, member.ParticipantID)
			}
			family = append(family, newFamilyMember(member, RelationProband))
			continue
		}
		if len(member.Samples) == 0 {
			continue
		}
		relation, ok := member.AdditionalInformation[relationToProbandKey]
		if !ok {
			if policy == RelationFail {
				return nil, nil, fmt.Errorf("%w: participant '%s'", ErrMissingRelation, member.ParticipantID)
			}
			dropped = append(dropped, member.ParticipantID)
			continue
		}
		family = append(family, newFamilyMember(member, relation))
	}
	return family, dropped, nil
}

func newFamilyMember(member PedigreeMember, relation string) FamilyMember {
	return FamilyMember{
		ParticipantID: member.ParticipantID,
		SampleID:      member.Samples[0].SampleID,
		Relation:      relation,
		Sex:           member.Sex,
		Affection:     ParseAffectionStatus(member.AffectionStatus),
	}
}
