package gel_api

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type s3PutAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// AWSS3Service uploads the run's output files. When a saml2aws script is
// configured it is re-run whenever the session expires.
type AWSS3Service struct {
	saml2AWSBin     string
	samlProfile     string
	samlRegion      string
	bucket          string
	sessionStart    time.Time
	sessionDuration float64
	client          s3PutAPI
}

func NewAWSS3Service(saml2awsBin, samlProfile, samlRegion, bucket string, sessionDuration float64) *AWSS3Service {
	return &AWSS3Service{saml2AWSBin: saml2awsBin, samlProfile: samlProfile, samlRegion: samlRegion, bucket: bucket, sessionDuration: sessionDuration}
}

func (a *AWSS3Service) Name() string {
	return "s3"
}

// RunObjectKey places a run's files under <run date>/<run id>/.
func RunObjectKey(report RunReport, file string) string {
	return path.Join(report.RunDate.Format(dateLayout), report.RunID, filepath.Base(file))
}

func (a *AWSS3Service) Publish(ctx context.Context, report RunReport) error {
	s3Client, err := a.getClient(ctx)
	if err != nil {
		return fmt.Errorf("Failed to get s3 client: %q", err)
	}
	for _, file := range []string{report.CaseFile, report.SampleFile} {
		if file == "" {
			continue
		}
		content, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("Failed to read '%s': %w", file, err)
		}
		contentType := "text/csv"
		if filepath.Ext(file) == ".tsv" {
			contentType = "text/tab-separated-values"
		}
		if err := putObject(ctx, s3Client, content, RunObjectKey(report, file), a.bucket, contentType); err != nil {
			return fmt.Errorf("Failed to put '%s': %w", file, err)
		}
	}
	return nil
}

func putObject(ctx context.Context, client s3PutAPI, content []byte, bucketKey, bucketName, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(bucketName),
		Key:         aws.String(bucketKey),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	}

	_, err := client.PutObject(ctx, input)
	if err != nil {
		return fmt.Errorf("Failed to upload object, %v", err)
	}

	return nil
}

func generateToken(saml2awsBin string) error {
	cmd := exec.Command("sh", saml2awsBin)
	err := cmd.Run()
	if err != nil {
		return fmt.Errorf("Failed to run %q, err: %v", saml2awsBin, err)
	}
	return nil
}

func createClient(ctx context.Context, credsProfile, region string) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if credsProfile != "" {
		opts = append(opts, config.WithSharedConfigProfile(credsProfile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("Failed to load SDK configuration: %v", err)
	}
	return s3.NewFromConfig(cfg), nil
}

func (a *AWSS3Service) getClient(ctx context.Context) (s3PutAPI, error) {
	if a.client == nil || a.sessionIsExpired() {
		if a.saml2AWSBin != "" {
			err := generateToken(a.saml2AWSBin)
			if err != nil {
				return nil, fmt.Errorf("Failed to generate AWS token: %q", err)
			}
		}
		s3Client, err := createClient(ctx, a.samlProfile, a.samlRegion)
		if err != nil {
			return nil, fmt.Errorf("Failed to create S3 client: %q", err)
		}

		a.sessionStart = time.Now()
		a.client = s3Client
	}
	return a.client, nil
}

func (a *AWSS3Service) sessionIsExpired() bool {
	if a.sessionDuration <= 0 {
		return false
	}
	return time.Since(a.sessionStart).Seconds() >= a.sessionDuration
}
