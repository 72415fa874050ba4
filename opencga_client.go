package gel_api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// FileArchive resolves and downloads sequencing files.
type FileArchive interface {
	ResolveFileID(ctx context.Context, study, fileFormat, fileName string) (string, error)
	Download(ctx context.Context, fileID, study, fileName, destinationDir string) error
}

type OpenCGAConfig struct {
	BaseURL         string
	User            string
	Password        string
	Timeout         time.Duration
	DownloadTimeout time.Duration
}

type OpenCGAClient struct {
	httpClient     *resty.Client
	downloadClient *resty.Client
	user           string
	password       string
	breaker        *gobreaker.CircuitBreaker
	logger         *zap.Logger

	mu    sync.Mutex
	token string
}

func NewOpenCGAClient(config OpenCGAConfig, logger *zap.Logger) *OpenCGAClient {
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.DownloadTimeout == 0 {
		config.DownloadTimeout = 6 * time.Hour
	}
	newClient := func(timeout time.Duration) *resty.Client {
		return resty.New().
			SetBaseURL(config.BaseURL).
			SetTimeout(timeout).
			SetRetryCount(2).
			SetRetryWaitTime(2 * time.Second).
			SetHeader("Accept", "application/json")
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "OpenCGA",
		MaxRequests: 1,
		Interval:    5 * time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker changed state",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &OpenCGAClient{
		httpClient:     newClient(config.Timeout),
		downloadClient: newClient(config.DownloadTimeout),
		user:           config.User,
		password:       config.Password,
		breaker:        breaker,
		logger:         logger,
	}
}

type openCGAResponse[T any] struct {
	Responses []struct {
		Results []T `json:"results"`
	} `json:"responses"`
}

func (r openCGAResponse[T]) first() (T, bool) {
	var zero T
	if len(r.Responses) == 0 || len(r.Responses[0].Results) == 0 {
		return zero, false
	}
	return r.Responses[0].Results[0], true
}

type openCGAToken struct {
	Token string `json:"token"`
}

type openCGAFile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (o *OpenCGAClient) login(ctx context.Context) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.token != "" {
		return o.token, nil
	}
	var out openCGAResponse[openCGAToken]
	resp, err := o.httpClient.R().
		SetContext(ctx).
		SetBody(map[string]string{"user": o.user, "password": o.password}).
		SetResult(&out).
		Post("users/login")
	if err != nil {
		return "", fmt.Errorf("Failed to log in to OpenCGA: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("OpenCGA login returned status %d", resp.StatusCode())
	}
	tok, ok := out.first()
	if !ok || tok.Token == "" {
		return "", errors.New("OpenCGA login returned no token")
	}
	o.token = tok.Token
	return o.token, nil
}

// expireToken forgets token unless another call already replaced it.
func (o *OpenCGAClient) expireToken(token string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.token == token {
		o.token = ""
	}
}

// withSession runs call with the session token and logs in again once when
// OpenCGA rejects an expired session.
func (o *OpenCGAClient) withSession(ctx context.Context, call func(token string) (*resty.Response, error)) (*resty.Response, error) {
	for attempt := 0; ; attempt++ {
		token, err := o.login(ctx)
		if err != nil {
			return nil, err
		}
		resp, err := call(token)
		if err != nil || resp.StatusCode() != http.StatusUnauthorized || attempt > 0 {
			return resp, err
		}
		o.logger.Info("OpenCGA session expired, logging in again")
		o.expireToken(token)
	}
}

func (o *OpenCGAClient) execute(fn func() error) error {
	_, err := o.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

func (o *OpenCGAClient) ResolveFileID(ctx context.Context, study, fileFormat, fileName string) (string, error) {
	var fileID string
	err := o.execute(func() error {
		var out openCGAResponse[openCGAFile]
		resp, err := o.withSession(ctx, func(token string) (*resty.Response, error) {
			return o.httpClient.R().
				SetContext(ctx).
				SetAuthToken(token).
				SetQueryParams(map[string]string{
					"study":   study,
					"format":  fileFormat,
					"name":    fileName,
					"include": "id,name",
				}).
				SetResult(&out).
				Get("files/search")
		})
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("OpenCGA file search returned status %d", resp.StatusCode())
		}
		file, ok := out.first()
		if !ok {
			return fmt.Errorf("no %s file named '%s' in study %s", fileFormat, fileName, study)
		}
		fileID = file.ID
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("Failed to resolve file id for '%s': %w", fileName, err)
	}
	return fileID, nil
}

// Download streams the file into destinationDir/fileName.
func (o *OpenCGAClient) Download(ctx context.Context, fileID, study, fileName, destinationDir string) error {
	output := filepath.Join(destinationDir, fileName)
	err := o.execute(func() error {
		resp, err := o.withSession(ctx, func(token string) (*resty.Response, error) {
			return o.downloadClient.R().
				SetContext(ctx).
				SetAuthToken(token).
				SetQueryParam("study", study).
				SetOutput(output).
				Get(fmt.Sprintf("files/%s/download", fileID))
		})
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("OpenCGA download returned status %d", resp.StatusCode())
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("Failed to download '%s' to '%s': %w", fileName, destinationDir, err)
	}
	o.logger.Info("Downloaded file", zap.String("file", fileName), zap.String("destination", output))
	return nil
}
