package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/go-kit/kit/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/caraveld/caravel/config"
	"github.com/caraveld/caravel/deploy"
	"github.com/caraveld/caravel/executor"
	"github.com/caraveld/caravel/history"
	caravelhttp "github.com/caraveld/caravel/http"
	"github.com/caraveld/caravel/probe"
	"github.com/caraveld/caravel/registry"
	"github.com/caraveld/caravel/server"

	_ "github.com/mattn/go-sqlite3"
)

func main() {
	// Flag domain.
	fs := pflag.NewFlagSet("default", pflag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "DESCRIPTION\n")
		fmt.Fprintf(os.Stderr, "  caraveld promotes application versions through environments,\n")
		fmt.Fprintf(os.Stderr, "  verifying health after each rollout and rolling back on failure.\n")
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "FLAGS\n")
		fs.PrintDefaults()
	}
	var (
		listenAddr = fs.StringP("listen", "l", "", "Listen address for API clients (overrides config)")
		configPath = fs.String("config", "caravel.yaml", "Path to configuration file")
		dryRun     = fs.Bool("dry-run", false, "Keep state in memory and pretend fleet updates succeed")
	)
	fs.Parse(os.Args)

	// Logger domain.
	var logger log.Logger
	{
		logger = log.NewLogfmtLogger(os.Stderr)
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}

	// Configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Log("err", err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.Listen = *listenAddr
	}
	logger.Log("config", *configPath, "environments", len(cfg.Environments), "dry_run", *dryRun)

	// Store components.
	var (
		versions    registry.Store
		deployments history.Store
	)
	{
		logger := log.With(logger, "component", "store")
		if *dryRun {
			logger.Log("kind", "inmem")
			versions = registry.NewInMem()
			deployments = history.NewInMem()
		} else {
			logger.Log("kind", "sqlite", "path", cfg.Database)
			regDB, err := registry.NewSQL("sqlite3", cfg.Database)
			if err != nil {
				logger.Log("err", err)
				os.Exit(1)
			}
			defer regDB.Close()
			histDB, err := history.NewSQL("sqlite3", cfg.Database)
			if err != nil {
				logger.Log("err", err)
				os.Exit(1)
			}
			defer histDB.Close()
			versions = regDB
			deployments = histDB
		}
		versions = registry.Instrument(versions)
		deployments = history.Instrument(deployments)
	}

	// Fleet executor component.
	var exec executor.Executor
	{
		logger := log.With(logger, "component", "executor")
		if *dryRun {
			logger.Log("kind", "mock")
			exec = &executor.Mock{}
		} else {
			logger.Log("kind", "asg", "region", cfg.AWS.Region)
			sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.AWS.Region)})
			if err != nil {
				logger.Log("err", err)
				os.Exit(1)
			}
			exec = executor.NewASG(sess, logger)
		}
	}

	// Health prober component.
	prober := probe.NewHTTP(
		cfg.Probe.Attempts,
		time.Duration(cfg.Probe.Interval),
		time.Duration(cfg.Probe.RequestTimeout),
		log.With(logger, "component", "probe"),
	)

	// Orchestrator (business logic) domain.
	orchestrator := deploy.New(deploy.Config{
		Registry:        versions,
		History:         deployments,
		Executor:        exec,
		Prober:          prober,
		Logger:          log.With(logger, "component", "deploy"),
		PollInterval:    time.Duration(cfg.Rollout.PollInterval),
		RolloutTimeout:  time.Duration(cfg.Rollout.Timeout),
		ApprovalTimeout: time.Duration(cfg.Approval.Timeout),
	})
	if err := orchestrator.Recover(cfg.Environments); err != nil {
		logger.Log("err", err)
		os.Exit(1)
	}
	defer orchestrator.Stop()

	apiServer := server.New(orchestrator, versions, deployments, cfg.Environment, log.With(logger, "component", "server"))

	// Mechanical stuff.
	errc := make(chan error)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	// Transport domain.
	go func() {
		logger := log.With(logger, "transport", "HTTP")
		logger.Log("addr", cfg.Listen)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.Handle("/", caravelhttp.NewHandler(apiServer, caravelhttp.NewRouter(), logger))
		errc <- http.ListenAndServe(cfg.Listen, mux)
	}()

	logger.Log("exiting", <-errc)
}
