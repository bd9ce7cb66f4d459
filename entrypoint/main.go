package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/kirklandnuts/ontology-batch-query/api"
	"github.com/kirklandnuts/ontology-batch-query/bioportal"
	"github.com/kirklandnuts/ontology-batch-query/logger"
	"github.com/kirklandnuts/ontology-batch-query/report"
	"github.com/kirklandnuts/ontology-batch-query/resolver"
	"github.com/kirklandnuts/ontology-batch-query/types"
	"github.com/kirklandnuts/ontology-batch-query/utils"
	"github.com/kirklandnuts/ontology-batch-query/worker"
	"github.com/rs/zerolog"
)

type Config struct {
	APIKey       string        `envconfig:"BIOPORTAL_API_KEY" required:"true"`
	RestURL      string        `envconfig:"BIOPORTAL_REST_URL" default:"http://data.bioontology.org"`
	HTTPTimeout  time.Duration `envconfig:"BIOPORTAL_HTTP_TIMEOUT" default:"30s"`
	RequestDelay time.Duration `envconfig:"OBQ_REQUEST_DELAY" default:"150ms"`
	ProfilesPath string        `envconfig:"OBQ_PROFILES_PATH"`
	RestAPIPort  string        `envconfig:"OBQ_REST_API_PORT" default:"10000"`
}

type options struct {
	directory   string
	inputFile   string
	outputFile  string
	scope       scopeFlag
	limit       int
	omitParents bool
	profile     string
	serveAPI    bool
	runWorker   bool
}

// scopeFlag collects -s values, each of which may hold comma separated acronyms.
type scopeFlag []string

func (s *scopeFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *scopeFlag) Set(value string) error {
	*s = append(*s, value)
	return nil
}

const workerRestartDelay = 5 * time.Second

var errUsage = errors.New("usage: ontology-batch-query [flags] <directory> <input_file>")

func main() {
	logger.SetupLogging()
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer, logOut io.Writer) error {
	obqLogger := logger.NewLoggerTo(logOut, "Main")

	opts, flags, err := parseArgs(args, logOut)
	if err != nil {
		return err
	}

	var config Config
	if err = envconfig.Process("", &config); err != nil {
		obqLogger.Err(err).Msg("Failed to read environment")
		return err
	}

	if opts.profile != "" {
		if err = applyProfile(&opts, flags, config.ProfilesPath); err != nil {
			obqLogger.Err(err).Str("profile", opts.profile).Msg("Failed to load profile")
			return err
		}
	}
	if opts.limit <= 0 {
		return fmt.Errorf("%w: got %d", resolver.ErrInvalidLimit, opts.limit)
	}

	client := bioportal.NewClient(
		bioportal.NewHTTPClient(config.HTTPTimeout),
		config.APIKey,
		bioportal.WithRestURL(config.RestURL),
		bioportal.WithLogger(logger.NewLoggerTo(logOut, "BioPortal")),
	)
	// One runner per process: the API and the worker share its lock and pacing.
	termResolver := resolver.NewRunner(client, config.RequestDelay, logger.NewLoggerTo(logOut, "Resolver"))

	switch {
	case opts.runWorker:
		if opts.serveAPI {
			go func() {
				err := serveAPI(config, opts, termResolver, &obqLogger)
				obqLogger.Fatal().Caller().Err(err).Msg("REST API stopped with error")
			}()
		}
		return runWorkers(termResolver, &obqLogger)
	case opts.serveAPI:
		return serveAPI(config, opts, termResolver, &obqLogger)
	}
	return runBatch(opts, termResolver, stdout, &obqLogger)
}

func parseArgs(args []string, output io.Writer) (options, map[string]bool, error) {
	var opts options
	fs := flag.NewFlagSet("ontology-batch-query", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.outputFile, "o", "", "name of the output file (default <input_file>_resolved_<timestamp>.csv)")
	fs.Var(&opts.scope, "s", "ontology acronyms to query, comma separated or repeated (default all ontologies)")
	fs.IntVar(&opts.limit, "n", types.DefaultMatchLimit, "maximum number of matches returned for each term")
	fs.BoolVar(&opts.omitParents, "omit-parents", false, "leave the parent(s) column out of the report")
	fs.StringVar(&opts.profile, "profile", "", "name of a query profile in OBQ_PROFILES_PATH")
	fs.BoolVar(&opts.serveAPI, "api", false, "serve the REST API")
	fs.BoolVar(&opts.runWorker, "worker", false, "consume batch requests from RMQ")
	if err := fs.Parse(args); err != nil {
		return opts, nil, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	if opts.serveAPI || opts.runWorker {
		return opts, set, nil
	}
	if fs.NArg() != 2 {
		return opts, nil, errUsage
	}
	opts.directory = fs.Arg(0)
	opts.inputFile = fs.Arg(1)
	return opts, set, nil
}

// applyProfile fills every option the command line left unset from the named profile.
func applyProfile(opts *options, set map[string]bool, profilesPath string) error {
	if profilesPath == "" {
		return errors.New("OBQ_PROFILES_PATH is not set")
	}
	profile, err := types.FindProfile(profilesPath, opts.profile)
	if err != nil {
		return err
	}
	if !set["s"] {
		opts.scope = scopeFlag(profile.Scope)
	}
	if !set["n"] {
		opts.limit = profile.MatchLimit()
	}
	if !set["omit-parents"] {
		opts.omitParents = profile.OmitParents
	}
	return nil
}

func runBatch(opts options, termResolver *resolver.Runner, stdout io.Writer, obqLogger *zerolog.Logger) error {
	inputPath := filepath.Join(opts.directory, opts.inputFile)
	outputFile := opts.outputFile
	if outputFile == "" {
		outputFile = report.DefaultOutputName(opts.inputFile, time.Now())
	}
	outputPath := filepath.Join(opts.directory, outputFile)

	terms, err := utils.ReadTermsFile(inputPath)
	if err != nil {
		obqLogger.Err(err).Str("file", inputPath).Msg("Could not read term list")
		return err
	}

	scope := types.ParseScope(opts.scope...)
	if scope.IsEmpty() {
		fmt.Fprintln(stdout, "\nYou have not defined a scope; the program will query all ontologies.")
	} else {
		fmt.Fprintf(stdout, "\nYour scope is: %s\n", scope.Param())
	}

	results, err := termResolver.ResolveBatch(context.Background(), terms, scope, opts.limit)
	if err != nil {
		obqLogger.Err(err).Msg("Batch resolution failed, no report written")
		return err
	}
	if err = report.WriteFile(outputPath, results, report.Options{OmitParents: opts.omitParents}); err != nil {
		obqLogger.Err(err).Str("file", outputPath).Msg("Could not write report")
		return err
	}

	fmt.Fprintf(stdout, "\nThe terms in %s have been resolved through BioPortal.\n\nResults have been stored in %s.\n",
		inputPath, outputPath)
	return nil
}

func serveAPI(config Config, opts options, termResolver *resolver.Runner, obqLogger *zerolog.Logger) error {
	apiLogger := logger.NewLogger("API")
	apiRequest := &api.Request{
		Resolver:     termResolver,
		DefaultLimit: opts.limit,
		Logger:       &apiLogger,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/resolve", apiRequest.ResolveTerms)
	host := fmt.Sprintf(":%s", config.RestAPIPort)
	obqLogger.Info().Msgf("REST API on %s", host)
	return http.ListenAndServe(host, mux)
}

func runWorkers(termResolver *resolver.Runner, obqLogger *zerolog.Logger) error {
	obqLogger.Info().Msg("Start batch worker")
	for {
		rmqWorker, err := worker.New(termResolver)
		if err != nil {
			obqLogger.Err(err).Msg("Could not initialize RMQ worker")
			return err
		}
		if err = rmqWorker.StartWorker(); err != nil {
			obqLogger.Err(err).Msgf("Worker returned with error. Launching new in %s", workerRestartDelay)
			time.Sleep(workerRestartDelay)
		}
	}
}
