package gel_api

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertStatement(t *testing.T) {
	assert.Equal(t, "INSERT INTO gms.samples (a, b, c) VALUES (?, ?, ?)",
		insertStatement("gms.samples", []string{"a", "b", "c"}))
	assert.Equal(t, "gms_cases", qualify("", "gms_cases"))
}

func TestDatabricksService(t *testing.T) {
	referral := ExtractReferral([]byte(referralJSON)).Record
	family := []FamilyMember{member("p", "S1", RelationProband, Affected)}
	nc, err := TabulateCase(testSummary("case-1", "FAM001"), referral, family)
	require.NoError(t, err)
	report := RunReport{Cases: []NormalizedCase{nc}, Samples: SampleRows(nc)}

	caseArgs := func() []driver.Value {
		var args []driver.Value
		for _, v := range CaseRecord(nc) {
			args = append(args, v)
		}
		return args
	}

	t.Run("replaces case and sample rows", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		service := newDatabricksService(db, "gms", "cases", "samples")

		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM gms.cases WHERE case_id = ?")).
			WithArgs("case-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta(insertStatement("gms.cases", CaseColumns))).
			WithArgs(caseArgs()...).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM gms.samples WHERE sampleId = ?")).
			WithArgs("S1").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta(insertStatement("gms.samples", SampleColumns))).
			WithArgs("S1", "FAM001", "p", "FEMALE", "Proband", "Intellectual disability").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, service.Publish(context.Background(), report))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("delete failure stops the publish", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		service := newDatabricksService(db, "", "cases", "samples")

		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM cases WHERE case_id = ?")).
			WithArgs("case-1").
			WillReturnError(errors.New("warehouse stopped"))

		err = service.Publish(context.Background(), report)
		assert.ErrorContains(t, err, "warehouse stopped")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
