package gel_api

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	OutputDir      string  `docopt:"--outdir"`
	Testing        bool    `docopt:"--testing"`
	Organisation   string  `docopt:"--organisation"`
	ClientID       string  `docopt:"--clientid"`
	ClientSecret   string  `docopt:"--clientsecret"`
	Resource       string  `docopt:"--resource"`
	RateLimit      float64 `docopt:"--ratelimit"`
	EnvFile        string  `docopt:"--envfile"`
	Debug          bool    `docopt:"--debug"`
	RelationPolicy string  `docopt:"--relationpolicy"`
	FailurePolicy  string  `docopt:"--onerror"`
	TracerHost     string  `docopt:"--tracerhost"`
	TracerPort     int     `docopt:"--tracerport"`
	ServiceName    string  `docopt:"--servicename"`
	Workbook       bool    `docopt:"--xlsx"`

	AWSBucket      string  `docopt:"--awsbucket"`
	SAML2AWSBin    string  `docopt:"--saml2aws"`
	SAMLProfile    string  `docopt:"--saml2profile"`
	SAMLRegion     string  `docopt:"--saml2region"`
	AWSSessionSecs float64 `docopt:"--awssession"`
	DBHostname     string  `docopt:"--dbhost"`
	DBPort         int     `docopt:"--dbport"`
	DBToken        string  `docopt:"--dbtoken"`
	DBHttpPath     string  `docopt:"--dbhttppath"`
	DBSchema       string  `docopt:"--dbschema"`
	CaseTable      string  `docopt:"--casetable"`
	SampleTable    string  `docopt:"--sampletable"`
	MomURL         string  `docopt:"--momurl"`
	MomCert        string  `docopt:"--momcert"`
	MomKey         string  `docopt:"--momkey"`
	MomUser        string  `docopt:"--momuser"`
	MomPw          string  `docopt:"--mompw"`
	MomSub         string  `docopt:"--momsub"`
	SlackURL       string  `docopt:"--slackurl"`

	OpenCGAURL      string `docopt:"--opencga"`
	OpenCGAUser     string `docopt:"--opencgauser"`
	OpenCGAPassword string `docopt:"--opencgapw"`
	Study           string `docopt:"--study"`
	CasesFile       string `docopt:"--cases"`
}

var TestConfig = Config{
	OutputDir:      "",
	Testing:        true,
	Organisation:   "South West Genomic Laboratory Hub",
	RelationPolicy: "drop",
	FailurePolicy:  "fail",
	ServiceName:    "gel-api",
	CaseTable:      "gms_cases",
	SampleTable:    "gms_samples",
	Study:          DefaultStudyID,
}

// LoadSecrets fills secrets not given on the command line from the
// environment, after loading EnvFile when one is set.
func (c *Config) LoadSecrets() error {
	if c.EnvFile != "" {
		if err := godotenv.Load(c.EnvFile); err != nil {
			return fmt.Errorf("Failed to load env file '%s': %w", c.EnvFile, err)
		}
	}
	for env, field := range map[string]*string{
		"CIPAPI_CLIENT_ID":     &c.ClientID,
		"CIPAPI_CLIENT_SECRET": &c.ClientSecret,
		"CIPAPI_RESOURCE":      &c.Resource,
		"OPENCGA_USER":         &c.OpenCGAUser,
		"OPENCGA_PASSWORD":     &c.OpenCGAPassword,
		"DATABRICKS_TOKEN":     &c.DBToken,
		"NATS_PASSWORD":        &c.MomPw,
		"SLACK_URL":            &c.SlackURL,
	} {
		if *field == "" {
			*field = os.Getenv(env)
		}
	}
	return nil
}

func (c Config) validateCommon() error {
	var errs []error
	if c.OutputDir == "" {
		errs = append(errs, errors.New("--outdir is required"))
	}
	if c.ClientID == "" || c.ClientSecret == "" {
		errs = append(errs, errors.New("CIP-API client id and secret are required"))
	}
	return errors.Join(errs...)
}

// ValidateCases checks the settings of the tabulation command.
func (c Config) ValidateCases() error {
	errs := []error{c.validateCommon()}
	if _, err := ParseRelationPolicy(c.RelationPolicy); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseFailurePolicy(c.FailurePolicy); err != nil {
		errs = append(errs, err)
	}
	if c.DBHostname != "" && (c.DBToken == "" || c.DBHttpPath == "") {
		errs = append(errs, errors.New("--dbhost needs a Databricks token and --dbhttppath"))
	}
	if c.MomURL != "" && c.MomSub == "" {
		errs = append(errs, errors.New("--momurl needs --momsub"))
	}
	return errors.Join(errs...)
}

// ValidateFiles checks the settings of the file download command.
func (c Config) ValidateFiles() error {
	errs := []error{c.validateCommon()}
	if c.OpenCGAURL == "" || c.OpenCGAUser == "" || c.OpenCGAPassword == "" {
		errs = append(errs, errors.New("OpenCGA url, user and password are required"))
	}
	return errors.Join(errs...)
}

func (c Config) CIPAPI() CIPAPIConfig {
	cfg := NewCIPAPIConfig(c.Testing, c.ClientID, c.ClientSecret, c.Resource)
	cfg.RateLimit = c.RateLimit
	return cfg
}

func (c Config) OpenCGA() OpenCGAConfig {
	return OpenCGAConfig{BaseURL: c.OpenCGAURL, User: c.OpenCGAUser, Password: c.OpenCGAPassword}
}

func (c Config) CaseFilter() CaseFilter {
	return CaseFilter{SampleType: RareDiseaseSampleType, InterpreterOrganisationName: c.Organisation}
}

// Publishers builds the publishers enabled by the configuration. The returned
// func closes their connections.
func (c Config) Publishers(logger *zap.Logger) ([]RunPublisher, func(), error) {
	var publishers []RunPublisher
	var closers []func()
	closeAll := func() {
		for _, close := range closers {
			close()
		}
	}

	if c.Workbook {
		publishers = append(publishers, NewWorkbookWriter(c.OutputDir))
	}
	if c.AWSBucket != "" {
		publishers = append(publishers, NewAWSS3Service(c.SAML2AWSBin, c.SAMLProfile, c.SAMLRegion, c.AWSBucket, c.AWSSessionSecs))
	}
	if c.DBHostname != "" {
		databricksService, close, err := NewDatabricksService(c.DBToken, c.DBHostname, c.DBHttpPath, c.DBSchema, c.CaseTable, c.SampleTable, c.DBPort)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, close)
		publishers = append(publishers, databricksService)
	}
	if c.MomURL != "" {
		eventPublisher, close, err := NewCaseEventPublisher(c.MomURL, c.MomCert, c.MomKey, c.MomUser, c.MomPw, c.MomSub)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, close)
		publishers = append(publishers, eventPublisher)
	}
	if c.SlackURL != "" {
		publishers = append(publishers, NewSlackNotifier(c.SlackURL))
	}

	for _, p := range publishers {
		logger.Info("Publisher enabled", zap.String("publisher", p.Name()))
	}
	return publishers, closeAll, nil
}
