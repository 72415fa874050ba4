package gel_api

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	dbsql "github.com/databricks/databricks-sql-go"
)

// DatabricksService mirrors the run into a case table and a sample table.
type DatabricksService struct {
	db          *sql.DB
	caseTable   string
	sampleTable string
}

func NewDatabricksService(token, hostname, httpPath, schema, caseTable, sampleTable string, port int) (*DatabricksService, func(), error) {
	connector, err := dbsql.NewConnector(
		dbsql.WithServerHostname(hostname),
		dbsql.WithPort(port),
		dbsql.WithHTTPPath(httpPath),
		dbsql.WithAccessToken(token),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("Cannot create a databricks connector: %v", err)
	}
	db := sql.OpenDB(connector)
	return newDatabricksService(db, schema, caseTable, sampleTable), func() { db.Close() }, nil
}

func newDatabricksService(db *sql.DB, schema, caseTable, sampleTable string) *DatabricksService {
	return &DatabricksService{
		db:          db,
		caseTable:   qualify(schema, caseTable),
		sampleTable: qualify(schema, sampleTable),
	}
}

func qualify(schema, table string) string {
	if schema == "" {
		return table
	}
	return schema + "." + table
}

func (d *DatabricksService) Name() string {
	return "databricks"
}

func (d *DatabricksService) Publish(ctx context.Context, report RunReport) error {
	for _, nc := range report.Cases {
		if err := d.ReplaceCase(ctx, nc); err != nil {
			return err
		}
	}
	for _, row := range report.Samples {
		if err := d.ReplaceSample(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func insertStatement(table string, columns []string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), placeholders)
}

func toArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

// ReplaceCase deletes any earlier row for the case id, then inserts the case.
func (d *DatabricksService) ReplaceCase(ctx context.Context, nc NormalizedCase) error {
	deleteStmt := fmt.Sprintf("DELETE FROM %s WHERE case_id = ?", d.caseTable)
	if _, err := d.db.ExecContext(ctx, deleteStmt, nc.CaseID); err != nil {
		return fmt.Errorf("Failed to remove case '%s' from Databricks: %v", nc.CaseID, err)
	}
	if _, err := d.db.ExecContext(ctx, insertStatement(d.caseTable, CaseColumns), toArgs(CaseRecord(nc))...); err != nil {
		return fmt.Errorf("Failed to insert case '%s' into Databricks: %v", nc.CaseID, err)
	}
	return nil
}

func (d *DatabricksService) ReplaceSample(ctx context.Context, row SampleRow) error {
	deleteStmt := fmt.Sprintf("DELETE FROM %s WHERE sampleId = ?", d.sampleTable)
	if _, err := d.db.ExecContext(ctx, deleteStmt, row.SampleID); err != nil {
		return fmt.Errorf("Failed to remove sample '%s' from Databricks: %v", row.SampleID, err)
	}
	if _, err := d.db.ExecContext(ctx, insertStatement(d.sampleTable, SampleColumns), toArgs(row.record())...); err != nil {
		return fmt.Errorf("Failed to insert sample '%s' into Databricks: %v", row.SampleID, err)
	}
	return nil
}
