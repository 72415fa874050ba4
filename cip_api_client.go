package gel_api

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	LiveCIPAPIURL = "https://cipapi.genomicsengland.nhs.uk/api/2/"
	BetaCIPAPIURL = "https://cipapi-gms-beta.genomicsengland.nhs.uk/api/2/"

	LiveAuthURL = "https://login.microsoftonline.com/0a99a061-37d0-475e-aa91-f497b83269b2/oauth2/token"
	BetaAuthURL = "https://login.microsoftonline.com/afee026d-8f37-400e-8869-72d9124873e4/oauth2/token"

	interpretationRequestPath = "interpretation-request"
	listPageSize              = 100
	tokenExpiryMargin         = time.Minute
)

// CaseFilter narrows the interpretation request list. Empty fields are not sent.
type CaseFilter struct {
	SampleType                  string
	InterpreterOrganisationName string
	FamilyID                    string
}

func (f CaseFilter) params() map[string]string {
	params := map[string]string{"page_size": strconv.Itoa(listPageSize)}
	if f.SampleType != "" {
		params["sample_type"] = f.SampleType
	}
	if f.InterpreterOrganisationName != "" {
		params["interpreter_organisation_name"] = f.InterpreterOrganisationName
	}
	if f.FamilyID != "" {
		params["family_id"] = f.FamilyID
	}
	return params
}

// CaseSource lists cases and fetches their interpretation requests.
type CaseSource interface {
	ListCases(ctx context.Context, filter CaseFilter) ([]CaseSummary, error)
	GetInterpretationRequest(ctx context.Context, id, version string) (InterpretationRequestRecord, error)
}

type CIPAPIConfig struct {
	BaseURL      string
	AuthURL      string
	ClientID     string
	ClientSecret string
	Resource     string
	Timeout      time.Duration
	RateLimit    float64 // requests per second
	RetryCount   int
}

// NewCIPAPIConfig picks the beta or live endpoints.
func NewCIPAPIConfig(testing bool, clientID, clientSecret, resource string) CIPAPIConfig {
	cfg := CIPAPIConfig{
		BaseURL:      LiveCIPAPIURL,
		AuthURL:      LiveAuthURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Resource:     resource,
	}
	if testing {
		cfg.BaseURL = BetaCIPAPIURL
		cfg.AuthURL = BetaAuthURL
	}
	return cfg
}

type CIPAPIClient struct {
	httpClient *resty.Client
	authURL    string
	clientID   string
	secret     string
	resource   string
	limiter    *rate.Limiter
	logger     *zap.Logger
	now        func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewCIPAPIClient(config CIPAPIConfig, logger *zap.Logger) *CIPAPIClient {
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 5
	}
	if config.RetryCount == 0 {
		config.RetryCount = 3
	}
	client := resty.New().
		SetBaseURL(config.BaseURL).
		SetTimeout(config.Timeout).
		SetRetryCount(config.RetryCount).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		SetHeader("Accept", "application/json")

	return &CIPAPIClient{
		httpClient: client,
		authURL:    config.AuthURL,
		clientID:   config.ClientID,
		secret:     config.ClientSecret,
		resource:   config.Resource,
		limiter:    rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		logger:     logger,
		now:        time.Now,
	}
}

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   jsonSeconds `json:"expires_in"`
}

// jsonSeconds accepts both 3599 and "3599".
type jsonSeconds int

func (s *jsonSeconds) UnmarshalJSON(b []byte) error {
	var n json.Number
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		n = json.Number(str)
	} else if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	v, err := n.Int64()
	if err != nil {
		return err
	}
	*s = jsonSeconds(v)
	return nil
}

// accessToken returns the cached token, requesting a new one when it is close to expiry.
func (c *CIPAPIClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	var tok tokenResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type":    "client_credentials",
			"client_id":     c.clientID,
			"client_secret": c.secret,
			"resource":      c.resource,
		}).
		SetResult(&tok).
		Post(c.authURL)
	if err != nil {
		return "", fmt.Errorf("Failed to request CIP-API token: %w", err)
	}
	if resp.IsError() || tok.AccessToken == "" {
		return "", fmt.Errorf("CIP-API token request returned status %d", resp.StatusCode())
	}

	c.token = tok.AccessToken
	c.tokenExpiry = c.now().Add(time.Duration(tok.ExpiresIn)*time.Second - tokenExpiryMargin)
	c.logger.Debug("Obtained CIP-API access token", zap.Time("expires", c.tokenExpiry))
	return c.token, nil
}

func (c *CIPAPIClient) get(ctx context.Context, url string, params map[string]string, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParams(params).
		SetResult(result).
		Get(url)
	if err != nil {
		return fmt.Errorf("Failed to call CIP-API '%s': %w", url, err)
	}
	if resp.IsError() {
		return fmt.Errorf("CIP-API '%s' returned status %d: %s", url, resp.StatusCode(), resp.String())
	}
	return nil
}

type caseListPage struct {
	Count   int           `json:"count"`
	Next    *string       `json:"next"`
	Results []CaseSummary `json:"results"`
}

// ListCases follows the paginated list until no next page is returned.
func (c *CIPAPIClient) ListCases(ctx context.Context, filter CaseFilter) ([]CaseSummary, error) {
	var cases []CaseSummary
	url := interpretationRequestPath
	params := filter.params()
	for page := 1; ; page++ {
		var p caseListPage
		if err := c.get(ctx, url, params, &p); err != nil {
			return nil, fmt.Errorf("Failed to list cases (page %d): %w", page, err)
		}
		cases = append(cases, p.Results...)
		c.logger.Debug("Fetched case list page",
			zap.Int("page", page),
			zap.Int("results", len(p.Results)),
			zap.Int("count", p.Count),
		)
		if p.Next == nil || *p.Next == "" {
			return cases, nil
		}
		// next carries the query string already
		url, params = *p.Next, nil
	}
}

func (c *CIPAPIClient) GetInterpretationRequest(ctx context.Context, id, version string) (InterpretationRequestRecord, error) {
	var ir InterpretationRequestRecord
	url := fmt.Sprintf("%s/%s/%s/", interpretationRequestPath, id, version)
	if err := c.get(ctx, url, map[string]string{"reports_v6": "true"}, &ir); err != nil {
		return ir, fmt.Errorf("Failed to get interpretation request %s-%s: %w", id, version, err)
	}
	return ir, nil
}
