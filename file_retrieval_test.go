package gel_api

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// fakeArchive resolves every file to "id-<name>" and records downloads.
type fakeArchive struct {
	resolved    []string
	downloaded  []string
	resolveErr  map[string]error
	downloadErr error
}

func (f *fakeArchive) ResolveFileID(_ context.Context, study, fileFormat, fileName string) (string, error) {
	f.resolved = append(f.resolved, study+"/"+fileFormat+"/"+fileName)
	if err := f.resolveErr[fileName]; err != nil {
		return "", err
	}
	return "id-" + fileName, nil
}

func (f *fakeArchive) Download(_ context.Context, fileID, study, fileName, destinationDir string) error {
	if f.downloadErr != nil {
		return f.downloadErr
	}
	f.downloaded = append(f.downloaded, fileID)
	return os.WriteFile(filepath.Join(destinationDir, fileName), []byte(study), 0o644)
}

func testTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer("test")
}

func TestFileNameFromURI(t *testing.T) {
	assert.Equal(t, "P1.cram", FileNameFromURI("/genomes/by_date/2021-03-09/P1/P1.cram"))
	assert.Equal(t, "P1.cram", FileNameFromURI("P1.cram"))
	assert.Equal(t, "", FileNameFromURI("/genomes/"))
}

func TestFamilyFolder(t *testing.T) {
	base := t.TempDir()
	folder, err := FamilyFolder(base, "FAM001")
	require.NoError(t, err)
	assert.DirExists(t, folder)

	again, err := FamilyFolder(base, "FAM001")
	require.NoError(t, err)
	assert.Equal(t, folder, again)
}

func TestFileRetrieverRetrieve(t *testing.T) {
	summary := testSummary("case-1", "FAM001")
	ir := testRecord(trioRequestJSON, "")

	t.Run("downloads every file into the family folder", func(t *testing.T) {
		dir := t.TempDir()
		archive := &fakeArchive{}
		retriever := NewFileRetriever(archive, "", dir, testTracer(), zap.NewNop())

		names, err := retriever.Retrieve(context.Background(), summary, ir)
		require.NoError(t, err)
		assert.Equal(t, []string{"P1.cram", "M1.cram", "F1.cram"}, names)
		assert.Equal(t, []string{"id-P1.cram", "id-M1.cram", "id-F1.cram"}, archive.downloaded)
		assert.Equal(t, DefaultStudyID+"/CRAM/P1.cram", archive.resolved[0])
		for _, name := range names {
			assert.FileExists(t, filepath.Join(dir, "FAM001", name))
		}
	})

	t.Run("stops at the first unresolved file", func(t *testing.T) {
		archive := &fakeArchive{resolveErr: map[string]error{"M1.cram": errors.New("not found")}}
		retriever := NewFileRetriever(archive, "study-2", t.TempDir(), testTracer(), zap.NewNop())

		names, err := retriever.Retrieve(context.Background(), summary, ir)
		assert.Error(t, err)
		assert.Equal(t, []string{"P1.cram"}, names)
		assert.Len(t, archive.resolved, 2)
	})

	t.Run("download failure", func(t *testing.T) {
		archive := &fakeArchive{downloadErr: errors.New("timeout")}
		retriever := NewFileRetriever(archive, "", t.TempDir(), testTracer(), zap.NewNop())
		_, err := retriever.Retrieve(context.Background(), summary, ir)
		assert.EqualError(t, err, "timeout")
	})

	t.Run("cancer requests are rejected", func(t *testing.T) {
		cancer := ir
		cancer.SampleType = "cancer"
		retriever := NewFileRetriever(&fakeArchive{}, "", t.TempDir(), testTracer(), zap.NewNop())
		_, err := retriever.Retrieve(context.Background(), summary, cancer)
		assert.ErrorIs(t, err, ErrNotRareDisease)
	})
}

func TestReadIdentifiers(t *testing.T) {
	ids, err := ReadIdentifiers(strings.NewReader("FAM001\n  FAM002 \r\n\n\nFAM003"))
	require.NoError(t, err)
	assert.Equal(t, []string{"FAM001", "FAM002", "FAM003"}, ids)

	ids, err = ReadIdentifiers(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, ids)
}
