package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/docopt/docopt-go"
	ga "github.com/rdemolgen/GeL-API"
	"go.uber.org/zap"
)

const usage = `gms-cases.

Tabulates the rare disease GMS cases of an interpreter organisation from the
CIP-API into sample_details.tsv and pilot_cases_<date>.csv.

Usage:
  gms-cases -h | --help
  gms-cases --outdir=<dir> [options]

Options:
  -h --help                      Show this screen.
  --outdir=<dir>                 Directory holding sample_details.tsv and the case files.
  --testing                      Use the CIP-API beta environment.
  --organisation=<name>          Interpreter organisation name [default: South West Genomic Laboratory Hub].
  --clientid=<id>                CIP-API client id (or CIPAPI_CLIENT_ID).
  --clientsecret=<secret>        CIP-API client secret (or CIPAPI_CLIENT_SECRET).
  --resource=<resource>          CIP-API token resource (or CIPAPI_RESOURCE).
  --ratelimit=<rps>              CIP-API requests per second [default: 5].
  --envfile=<file>               Dotenv file with secrets.
  --relationpolicy=<policy>      Relatives without relation_to_proband: drop or fail [default: drop].
  --onerror=<policy>             On a failing case: fail or skip [default: fail].
  --xlsx                         Also write pilot_cases_<date>.xlsx.
  --debug                        Debug logging.
  --tracerhost=<hostname>        OTel Tracer hostname.
  --tracerport=<port>            OTel Tracer port [default: 4317].
  --servicename=<name>           Tracing service name [default: gel-api].
  --awsbucket=<bucket>           Upload the run's files to this S3 bucket.
  --saml2aws=<saml2aws>          The saml2aws script.
  --saml2profile=<profile>       The aws creds profile.
  --saml2region=<region>         The aws region [default: eu-west-2].
  --awssession=<seconds>         AWS session duration in seconds [default: 3600].
  --dbhost=<hostname>            Databricks hostname.
  --dbport=<port>                Databricks port [default: 443].
  --dbtoken=<token>              Databricks personal access token (or DATABRICKS_TOKEN).
  --dbhttppath=<path>            The HTTP path to the Databricks SQL Warehouse.
  --dbschema=<schema>            The Databricks schema of the case and sample tables.
  --casetable=<table>            The Databricks case table [default: gms_cases].
  --sampletable=<table>          The Databricks sample table [default: gms_samples].
  --momurl=<momurl>              The messaging system URL.
  --momcert=<momcert>            The messaging system certificate.
  --momkey=<momkey>              The messaging system cert key.
  --momuser=<momuser>            The messaging system user.
  --mompw=<mompw>                The messaging system password (or NATS_PASSWORD).
  --momsub=<momsub>              The messaging system subject for case events.
  --slackurl=<url>               Slack webhook for the run summary (or SLACK_URL).
`

func main() {
	args, err := docopt.ParseDoc(usage)
	if err != nil {
		panic(err)
	}

	var config ga.Config
	bindErr := args.Bind(&config)

	logger, err := ga.NewLogger(config.Debug)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	handleError := func(err error, message string) {
		if err != nil {
			logger.Fatal(message, zap.Error(err))
		}
	}
	handleError(bindErr, "Error binding arguments")
	handleError(config.LoadSecrets(), "Error loading secrets")
	handleError(config.ValidateCases(), "Invalid configuration")

	relationPolicy, _ := ga.ParseRelationPolicy(config.RelationPolicy)
	failurePolicy, _ := ga.ParseFailurePolicy(config.FailurePolicy)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	tracer, shutdownTracer, err := ga.NewTracer(ctx, config.TracerHost, config.TracerPort, config.ServiceName, "prod", logger)
	handleError(err, "Tracer cannot be created")
	defer shutdownTracer()

	publishers, closePublishers, err := config.Publishers(logger)
	handleError(err, "Publishers cannot be created")
	defer closePublishers()

	runDate := time.Now()
	pipeline := ga.NewTabulationPipeline(
		ga.NewCIPAPIClient(config.CIPAPI(), logger),
		ga.NewSampleSink(config.OutputDir),
		ga.NewCaseSink(config.OutputDir, runDate),
		publishers,
		ga.PipelineConfig{
			Filter:         config.CaseFilter(),
			RelationPolicy: relationPolicy,
			FailurePolicy:  failurePolicy,
			RunDate:        runDate,
		},
		tracer,
		logger,
	)

	report, err := pipeline.Run(ctx)
	if err != nil {
		logger.Error("GMS case run failed", zap.String("run_id", report.RunID), zap.Error(err))
		shutdownTracer()
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("Exiting gms-cases",
		zap.String("run_id", report.RunID),
		zap.Int("cases", len(report.Cases)),
		zap.String("case_file", report.CaseFile),
	)
}
