package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/docopt/docopt-go"
	ga "github.com/rdemolgen/GeL-API"
	"go.uber.org/zap"
)

const usage = `gel-files.

Downloads the CRAM files of the families listed in the cases file, one family
id per line, into <outdir>/<family id>.

Usage:
  gel-files -h | --help
  gel-files --outdir=<dir> --opencga=<url> [options]

Options:
  -h --help                      Show this screen.
  --outdir=<dir>                 Base directory of the family folders.
  --cases=<file>                 Newline-delimited family ids [default: cases_to_process].
  --opencga=<url>                OpenCGA REST base URL (ending in webservices/rest/v2/).
  --opencgauser=<user>           OpenCGA user (or OPENCGA_USER).
  --opencgapw=<password>         OpenCGA password (or OPENCGA_PASSWORD).
  --study=<id>                   OpenCGA study id [default: 1053593329].
  --testing                      Use the CIP-API beta environment.
  --organisation=<name>          Interpreter organisation name [default: South West Genomic Laboratory Hub].
  --clientid=<id>                CIP-API client id (or CIPAPI_CLIENT_ID).
  --clientsecret=<secret>        CIP-API client secret (or CIPAPI_CLIENT_SECRET).
  --resource=<resource>          CIP-API token resource (or CIPAPI_RESOURCE).
  --ratelimit=<rps>              CIP-API requests per second [default: 5].
  --envfile=<file>               Dotenv file with secrets.
  --debug                        Debug logging.
  --tracerhost=<hostname>        OTel Tracer hostname.
  --tracerport=<port>            OTel Tracer port [default: 4317].
  --servicename=<name>           Tracing service name [default: gel-api].
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
	handleError(config.ValidateFiles(), "Invalid configuration")

	in, err := os.Open(config.CasesFile)
	handleError(err, "Cases file cannot be opened")
	familyIDs, err := ga.ReadIdentifiers(in)
	in.Close()
	handleError(err, "Cases file cannot be read")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	tracer, shutdownTracer, err := ga.NewTracer(ctx, config.TracerHost, config.TracerPort, config.ServiceName, "prod", logger)
	handleError(err, "Tracer cannot be created")
	defer shutdownTracer()

	retriever := ga.NewFileRetriever(ga.NewOpenCGAClient(config.OpenCGA(), logger), config.Study, config.OutputDir, tracer, logger)
	pipeline := ga.NewFilePipeline(ga.NewCIPAPIClient(config.CIPAPI(), logger), retriever, config.CaseFilter(), logger)

	files, err := pipeline.Run(ctx, familyIDs)
	if err != nil {
		logger.Error("File retrieval failed", zap.Int("files", len(files)), zap.Error(err))
		shutdownTracer()
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("Exiting gel-files", zap.Int("families", len(familyIDs)), zap.Int("files", len(files)))
}
