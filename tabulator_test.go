package gel_api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFamilyStructure(t *testing.T) {
	tests := []struct {
		name   string
		family []FamilyMember
		want   string
	}{
		{
			name:   "singleton",
			family: []FamilyMember{member("p", "S1", RelationProband, Affected)},
			want:   Singleton,
		},
		{
			name: "trio in any order",
			family: []FamilyMember{
				member("f", "F1", RelationFather, Unaffected),
				member("p", "P1", RelationProband, Affected),
				member("m", "M1", RelationMother, Unaffected),
			},
			want: Trio,
		},
		{
			name: "duo",
			family: []FamilyMember{
				member("p", "P1", RelationProband, Affected),
				member("m", "M1", RelationMother, Unaffected),
			},
			want: "Proband, Mother",
		},
		{
			name: "three members that are not a trio",
			family: []FamilyMember{
				member("p", "P1", RelationProband, Affected),
				member("m", "M1", RelationMother, Unaffected),
				member("s", "B1", "Full Sibling", Affected),
			},
			want: "Proband, Mother, Full Sibling",
		},
		{
			name: "quad",
			family: []FamilyMember{
				member("p", "P1", RelationProband, Affected),
				member("m", "M1", RelationMother, Unaffected),
				member("f", "F1", RelationFather, Unaffected),
				member("s", "B1", "Full Sibling", Affected),
			},
			want: "Proband, Mother, Father, Full Sibling",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FamilyStructure(tt.family))
		})
	}
}

func TestTabulateCase(t *testing.T) {
	referral := ExtractReferral([]byte(referralJSON)).Record

	t.Run("singleton", func(t *testing.T) {
		summary := testSummary("case-1", "FAM001")
		family := []FamilyMember{member("p-proband", "S1", RelationProband, Affected)}
		nc, err := TabulateCase(summary, referral, family)
		require.NoError(t, err)
		assert.Equal(t, Singleton, nc.FamilyStructure)
		assert.Equal(t, "FAM001", nc.ReferralID)
		assert.Equal(t, "S1", nc.ProbandSampleID)
		assert.Equal(t, "Proband", nc.Affected)
		assert.Empty(t, nc.MotherSampleID)
		assert.Empty(t, nc.FatherSampleID)
		assert.Equal(t, "2021-04-01", nc.LastModified)
	})

	t.Run("trio with affected mother", func(t *testing.T) {
		family := []FamilyMember{
			member("p", "P1", RelationProband, Unaffected),
			member("m", "M1", RelationMother, Affected),
			member("f", "F1", RelationFather, Unaffected),
		}
		nc, err := TabulateCase(testSummary("case-2", "FAM002"), referral, family)
		require.NoError(t, err)
		assert.Equal(t, Trio, nc.FamilyStructure)
		assert.Equal(t, "M1", nc.MotherSampleID)
		assert.Equal(t, "F1", nc.FatherSampleID)
		assert.Equal(t, "P1", nc.ProbandSampleID)
		assert.Equal(t, "Mother", nc.Affected)
	})

	t.Run("parent sample ids only for trios", func(t *testing.T) {
		family := []FamilyMember{
			member("p", "P1", RelationProband, Affected),
			member("m", "M1", RelationMother, Affected),
		}
		nc, err := TabulateCase(testSummary("case-3", "FAM003"), referral, family)
		require.NoError(t, err)
		assert.Equal(t, "Proband, Mother", nc.FamilyStructure)
		assert.Equal(t, "Proband, Mother", nc.Affected)
		assert.Empty(t, nc.MotherSampleID)
		assert.Empty(t, nc.FatherSampleID)
	})

	t.Run("no affected members", func(t *testing.T) {
		family := []FamilyMember{member("p", "P1", RelationProband, AffectionUnknown)}
		nc, err := TabulateCase(testSummary("case-4", "FAM004"), UnknownReferral(), family)
		require.NoError(t, err)
		assert.Equal(t, "", nc.Affected)
		assert.Equal(t, Unknown, nc.ClinicalIndication)
		assert.Nil(t, nc.HPOTerms)
	})

	t.Run("referral fields are carried", func(t *testing.T) {
		family := []FamilyMember{member("p", "P1", RelationProband, Affected)}
		nc, err := TabulateCase(testSummary("case-5", "FAM005"), referral, family)
		require.NoError(t, err)
		assert.Equal(t, "Intellectual disability", nc.ClinicalIndication)
		assert.Equal(t, []string{"HP:0001249", "HP:0001250"}, nc.HPOTerms)
		assert.Equal(t, "698A0", nc.InterpreterCode)
		assert.Equal(t, "2021-03-09", nc.TestOrderDate)
		assert.Equal(t, "p-proband", nc.ProbandID)
	})

	t.Run("unparseable last_modified", func(t *testing.T) {
		summary := testSummary("case-6", "FAM006")
		summary.LastModified = "yesterday"
		_, err := TabulateCase(summary, referral, nil)
		assert.Error(t, err)
	})

	t.Run("last_modified without fraction", func(t *testing.T) {
		got, err := LastModifiedDate("2020-12-31T23:59:59Z")
		require.NoError(t, err)
		assert.Equal(t, "2020-12-31", got)
	})
}
