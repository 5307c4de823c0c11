package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"imoscraper/pkg/checkpoint"
	"imoscraper/pkg/config"
	"imoscraper/pkg/crawl"
	"imoscraper/pkg/extract"
	"imoscraper/pkg/fetch"
	"imoscraper/pkg/location"
	"imoscraper/pkg/storage"
	"imoscraper/pkg/tasks"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "crawl":
		runCrawl(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "version":
		fmt.Printf("imoscraper %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `imoscraper - Portuguese property listing crawler

Usage:
  imoscraper <command> [options]

Commands:
  crawl     Start or resume the crawl from the saved checkpoint
  validate  Validate configuration and seed list
  version   Show version info

Run 'imoscraper <command> -h' for command-specific help.`)
}

// crawlFlags holds the flag values shared by the crawl and validate
// subcommands.
type crawlFlags struct {
	configFile string
	envFile    string
	seedFile   string
	ckptFile   string
	logLevel   string
}

func registerFlags(fs *flag.FlagSet) *crawlFlags {
	f := &crawlFlags{}
	fs.StringVar(&f.configFile, "config", "config.yaml", "Path to config file (missing file uses defaults)")
	fs.StringVar(&f.envFile, "env", ".env", "Path to env file with DB_* settings")
	fs.StringVar(&f.seedFile, "seeds", "", "Seed URL list, one search URL per line (overrides config)")
	fs.StringVar(&f.ckptFile, "checkpoint", "", "Progress checkpoint file (overrides config)")
	fs.StringVar(&f.logLevel, "loglevel", "info", "Log level (debug, info, warn, error, fatal)")
	return f
}

// setupLogger creates a configured logrus.Logger with the given log level.
func setupLogger(logLevelStr string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", logLevelStr, err)
	} else {
		log.SetLevel(level)
	}

	return log
}

// loadAndValidateConfig loads the env file and config file, applies flag
// overrides, validates, and logs warnings.
func loadAndValidateConfig(f *crawlFlags, log *logrus.Logger) *config.AppConfig {
	// The env file carries DB credentials; a deployment may provide them
	// through the environment instead.
	if err := godotenv.Load(f.envFile); err != nil {
		log.Debugf("No env file loaded from %s: %v", f.envFile, err)
	}

	appCfg, err := config.Load(f.configFile)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	if f.seedFile != "" {
		appCfg.Crawl.SeedFile = f.seedFile
	}
	if f.ckptFile != "" {
		appCfg.Crawl.CheckpointFile = f.ckptFile
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	return appCfg
}

// runCrawl handles the crawl subcommand.
func runCrawl(args []string) {
	fs := flag.NewFlagSet("crawl", flag.ExitOnError)
	f := registerFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: imoscraper crawl [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  imoscraper crawl\n")
		fmt.Fprintf(os.Stderr, "  imoscraper crawl -seeds freguesias_list.txt -loglevel debug\n")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	executeCrawl(f)
}

func executeCrawl(f *crawlFlags) {
	log := setupLogger(f.logLevel)
	appCfg := loadAndValidateConfig(f, log)

	taskList, err := tasks.Load(appCfg.Crawl.SeedFile, log)
	if err != nil {
		log.Fatalf("Seed list error: %v", err)
	}
	if len(taskList) == 0 {
		log.Warn("Seed list is empty, nothing to crawl")
		return
	}
	log.Infof("Loaded %d tasks from %s", len(taskList), appCfg.Crawl.SeedFile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Warnf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()
	}()

	client := fetch.NewClient(appCfg.HTTPClientSettings, log)
	fetch.CheckRobots(ctx, client, taskList[0].SeedURL, appCfg.Crawl.UserAgent, log)

	fetcher := fetch.NewFetcher(client, &appCfg.Crawl, log)
	pipeline := extract.NewPipeline(appCfg.Crawl.ListingURLPrefix, log)
	ckpt := checkpoint.NewManager(appCfg.Crawl.CheckpointFile, log)

	newSink := func(ctx context.Context) (storage.ListingSink, error) {
		sink, err := storage.NewPostgresSink(ctx, appCfg.DB, log)
		if err != nil {
			return nil, err
		}
		if err := sink.EnsureSchema(ctx); err != nil {
			sink.Close()
			return nil, err
		}
		return sink, nil
	}

	crawler := crawl.New(appCfg, taskList, fetcher, pipeline, ckpt, newSink, log)
	if err := crawler.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("Crawl stopped; rerun 'imoscraper crawl' to resume from the checkpoint")
			return
		}
		log.Fatalf("Crawl error: %v", err)
	}
}

// runValidate handles the validate subcommand.
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	f := registerFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: imoscraper validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doValidate(f, os.Stdout, os.Stderr))
}

// doValidate checks the config and seed list and writes output to the
// provided writers. Returns exit code (0 = success, 1 = error).
func doValidate(f *crawlFlags, stdout, stderr io.Writer) int {
	if err := godotenv.Load(f.envFile); err == nil {
		fmt.Fprintf(stdout, "Loaded env file %s\n", f.envFile)
	}

	appCfg, err := config.Load(f.configFile)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if f.seedFile != "" {
		appCfg.Crawl.SeedFile = f.seedFile
	}
	if f.ckptFile != "" {
		appCfg.Crawl.CheckpointFile = f.ckptFile
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	log := logrus.New()
	log.SetOutput(io.Discard)
	taskList, err := tasks.Load(appCfg.Crawl.SeedFile, log)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: seed list: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "OK: %d seed URLs in %s\n", len(taskList), appCfg.Crawl.SeedFile)
	for _, t := range taskList {
		if t.Parish == location.Unknown.Parish {
			fmt.Fprintf(stdout, "WARN: could not resolve location from %s\n", t.SeedURL)
		}
	}

	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}
