package gel_api

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	DefaultStudyID = "1053593329"
	CRAMFormat     = "CRAM"
)

// FileNameFromURI returns the last path segment of a file URI.
func FileNameFromURI(uri string) string {
	return uri[strings.LastIndex(uri, "/")+1:]
}

// FamilyFolder creates <base>/<familyID> unless it already exists.
func FamilyFolder(base, familyID string) (string, error) {
	folder := filepath.Join(base, familyID)
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return "", fmt.Errorf("Failed to create family folder '%s': %w", folder, err)
	}
	return folder, nil
}

type FileRetriever struct {
	archive   FileArchive
	study     string
	outputDir string
	tracer    trace.Tracer
	logger    *zap.Logger
}

func NewFileRetriever(archive FileArchive, study, outputDir string, tracer trace.Tracer, logger *zap.Logger) *FileRetriever {
	if study == "" {
		study = DefaultStudyID
	}
	return &FileRetriever{archive: archive, study: study, outputDir: outputDir, tracer: tracer, logger: logger}
}

const (
	retrieveFileMsg    = "Retrieving sequencing file"
	resolveFileErrMsg  = "Error resolving archive file id"
	downloadFileErrMsg = "Error downloading file"
	downloadFileSucMsg = "Successfully requested file download"
	FileNameKey        = "File Name"
	FamilyIDKey        = "Family ID"
)

// Retrieve downloads every BAM/CRAM listed in the request into the case's
// family folder and returns the requested file names.
func (fr *FileRetriever) Retrieve(ctx context.Context, summary CaseSummary, ir InterpretationRequestRecord) ([]string, error) {
	rd, err := ir.RareDiseaseRequest()
	if err != nil {
		return nil, fmt.Errorf("case '%s': %w", summary.CaseID, err)
	}
	folder, err := FamilyFolder(fr.outputDir, summary.FamilyID)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, bam := range rd.Bams {
		name := FileNameFromURI(bam.URIFile)
		_, span := fr.tracer.Start(ctx, retrieveFileMsg)
		span.SetAttributes(attribute.String(FileNameKey, name), attribute.String(FamilyIDKey, summary.FamilyID))

		fileID, err := fr.archive.ResolveFileID(ctx, fr.study, CRAMFormat, name)
		if handleError(err, resolveFileErrMsg, span) {
			return names, err
		}
		fr.logger.Info("Downloading file",
			zap.String("family_id", summary.FamilyID),
			zap.String("file", name),
			zap.String("file_id", fileID),
		)
		err = fr.archive.Download(ctx, fileID, fr.study, name, folder)
		if handleError(err, downloadFileErrMsg, span) {
			return names, err
		}
		span.AddEvent(downloadFileSucMsg)
		span.End()
		names = append(names, name)
	}
	return names, nil
}

// ReadIdentifiers reads one case or family identifier per line.
func ReadIdentifiers(r io.Reader) ([]string, error) {
	var ids []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if id := strings.TrimSpace(scanner.Text()); id != "" {
			ids = append(ids, id)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("Failed to read identifiers: %w", err)
	}
	return ids, nil
}
