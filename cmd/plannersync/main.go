package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	zaplogfmt "github.com/sykesm/zap-logfmt"
	"github.com/thecodeteam/goodbye"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/simplesurance/plannersync/internal/cfg"
	"github.com/simplesurance/plannersync/internal/githubclt"
	"github.com/simplesurance/plannersync/internal/logfields"
	"github.com/simplesurance/plannersync/internal/planner"
	"github.com/simplesurance/plannersync/internal/provider/github"
	"github.com/simplesurance/plannersync/internal/tracking"
)

const appName = "plannersync"

var logger *zap.Logger

// Version is set via a ldflag on compilation
var Version = "unknown"

func exitOnErr(msg string, err error) {
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "ERROR:", msg+", error:", err.Error())
	os.Exit(1)
}

func panicHandler() {
	if r := recover(); r != nil {
		logger.Info(
			"panic caught , terminating gracefully",
			zap.String("panic", fmt.Sprintf("%v", r)),
			zap.StackSkip("stacktrace", 1),
		)

		ctx, cancelFn := context.WithTimeout(context.Background(), time.Minute)
		defer cancelFn()

		goodbye.Exit(ctx, 1)
	}
}

const shutdownTimeout = 30 * time.Second

// startServer starts srv in a go-routine and registers a goodbye hook that
// shuts it down. If certFile is set, it serves HTTPS.
func startServer(srv *http.Server, proto, certFile, keyFile string) {
	goodbye.Register(func(context.Context, os.Signal) {
		ctx, cancelFn := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelFn()

		logger.Debug(
			"terminating "+proto+" server",
			logfields.Event(proto+"_server_terminating"),
			zap.Duration("shutdown_timeout", shutdownTimeout),
		)

		err := srv.Shutdown(ctx)
		if err != nil {
			logger.Warn(
				"shutting down "+proto+" server failed",
				logfields.Event(proto+"_server_termination_failed"),
				zap.Error(err),
			)
		}
	})

	go func() {
		defer panicHandler()

		logger.Info(
			proto+" server started",
			logfields.Event(proto+"_server_started"),
			zap.String("listenAddr", srv.Addr),
		)

		var err error
		if certFile != "" {
			err = srv.ListenAndServeTLS(certFile, keyFile)
		} else {
			err = srv.ListenAndServe()
		}

		if errors.Is(err, http.ErrServerClosed) {
			logger.Info(proto+" server terminated", logfields.Event(proto+"_server_terminated"))
			return
		}

		logger.Fatal(
			proto+" server terminated unexpectedly",
			logfields.Event(proto+"_server_terminated_unexpectedly"),
			zap.Error(err),
		)
	}()
}

func startHTTPSServer(listenAddr string, certFile, keyFile string, mux *http.ServeMux) {
	startServer(
		&http.Server{
			Addr:              listenAddr,
			Handler:           mux,
			ReadHeaderTimeout: time.Minute,
		},
		"https",
		certFile,
		keyFile,
	)
}

func startHTTPServer(listenAddr string, mux *http.ServeMux) {
	startServer(
		&http.Server{
			Addr:              listenAddr,
			Handler:           mux,
			ReadHeaderTimeout: time.Minute,
		},
		"http",
		"",
		"",
	)
}

type arguments struct {
	Verbose     *bool
	ConfigFile  *string
	ShowVersion *bool
}

var args arguments

const defConfigFile = "/etc/plannersync/config.toml"

func mustParseCommandlineParams() {
	args = arguments{
		Verbose: pflag.BoolP(
			"verbose",
			"v",
			false,
			"enable verbose logging",
		),
		ConfigFile: pflag.StringP(
			"cfg-file",
			"c",
			defConfigFile,
			"path to the plannersync configuration file",
		),
		ShowVersion: pflag.Bool(
			"version",
			false,
			"print the version and exit",
		),
	}

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTION]\nReceive GitHub webhook events and report the state of a GitHub project board.\n", appName)
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()
}

func mustParseCfg() *cfg.Config {
	// we use exitOnErr in this function instead of logger.Fatal() because
	// the logger is not initialized yet

	file, err := os.Open(*args.ConfigFile)
	exitOnErr("could not open configuration files", err)
	defer file.Close()

	config, err := cfg.Load(file)
	exitOnErr(fmt.Sprintf("could not load configuration file: %s", *args.ConfigFile), err)

	exitOnErr(fmt.Sprintf("configuration file %s is invalid", *args.ConfigFile), config.Validate())

	return config
}

func initLogFmtLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	cfg := zapEncoderConfig(config)

	logger := zap.New(zapcore.NewCore(
		zaplogfmt.NewEncoder(cfg),
		os.Stdout,
		logLevel),
	)

	return logger
}

func zapEncoderConfig(config *cfg.Config) zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()

	cfg.LevelKey = "loglevel"
	cfg.TimeKey = config.LogTimeKey
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.StringDurationEncoder

	return cfg
}

func mustInitZapFormatLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Sampling = nil
	cfg.EncoderConfig = zapEncoderConfig(config)
	cfg.OutputPaths = []string{"stdout"}
	cfg.Encoding = config.LogFormat
	cfg.Level = zap.NewAtomicLevelAt(logLevel)

	logger, err := cfg.Build()
	exitOnErr("could not initialize logger", err)

	return logger
}

func mustInitLogger(config *cfg.Config) {
	var logLevel zapcore.Level
	if *args.Verbose {
		logLevel = zapcore.DebugLevel
	} else {
		if err := (&logLevel).Set(config.LogLevel); err != nil {
			fmt.Fprintf(os.Stderr, "can not set log level to %q: %s \n", config.LogLevel, err)
			os.Exit(2)
		}
	}

	switch config.LogFormat {
	case "logfmt":
		logger = initLogFmtLogger(config, logLevel)
	case "console", "json":
		logger = mustInitZapFormatLogger(config, logLevel)
	default:
		fmt.Fprintf(os.Stderr, "unsupported log-format argument: %q\n", config.LogFormat)
		os.Exit(2)
	}

	logger = logger.Named("main")
	zap.ReplaceGlobals(logger)

	goodbye.Register(func(context.Context, os.Signal) {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "flushing logs failed: %s\n", err)
		}
	})
}

func hide(in string) string {
	if in == "" {
		return in
	}

	return "**hidden**"
}

func mustNewMatcher(config *cfg.Config) *tracking.Matcher {
	var opts []tracking.Option

	if config.Tracking.FilterQuery != "" {
		q, err := tracking.ParseFilterQuery(config.Tracking.FilterQuery)
		exitOnErr(fmt.Sprintf("could not parse tracking.filter_query from configuration file: %s", *args.ConfigFile), err)

		opts = append(opts, tracking.WithFilterQuery(q))
	}

	return tracking.NewMatcher(config.Tracking.Actions, config.Tracking.Labels, opts...)
}

func mustNewGithubClient(config *cfg.Config) *githubclt.Client {
	var opts []githubclt.Option

	if config.Github.GraphQLURL != "" {
		opts = append(opts, githubclt.WithGraphQLURL(config.Github.GraphQLURL))
	}

	clt, err := githubclt.New(config.Github.APIToken, opts...)
	exitOnErr("could not create github client", err)

	return clt
}

func main() {
	defer panicHandler()

	defer goodbye.Exit(context.Background(), 1)
	goodbye.Notify(context.Background())

	mustParseCommandlineParams()

	if *args.ShowVersion {
		fmt.Printf("%s %s\n", appName, Version)
		os.Exit(0) // nolint:gocritic // defer functions won't run
	}

	config := mustParseCfg()

	mustInitLogger(config)

	matcher := mustNewMatcher(config)
	githubClient := mustNewGithubClient(config)

	router := planner.NewRouter(
		matcher,
		githubClient,
		config.Github.Organization,
		config.Github.ProjectNumber,
		config.Github.StatusField,
	)

	logger.Info(
		"loaded cfg file",
		logfields.Event("cfg_loaded"),
		zap.String("cfg_file", *args.ConfigFile),
		zap.String("http_server_listen_addr", config.HTTPListenAddr),
		zap.String("https_server_listen_addr", config.HTTPSListenAddr),
		zap.String("https_ssl_cert_file", config.HTTPSCertFile),
		zap.String("https_ssl_key_file", config.HTTPSKeyFile),
		zap.String("github_webhook_endpoint", config.HTTPGithubWebhookEndpoint),
		zap.String("github_webhook_secret", hide(config.GithubWebHookSecret)),
		zap.String("prometheus_metrics_endpoint", config.PrometheusMetricsEndpoint),
		zap.String("log_format", config.LogFormat),
		zap.String("log_time_key", config.LogTimeKey),
		zap.String("log_level", config.LogLevel),
		zap.String("github.api_token", hide(config.Github.APIToken)),
		zap.String("github.graphql_url", config.Github.GraphQLURL),
		logfields.Organization(config.Github.Organization),
		logfields.ProjectNumber(config.Github.ProjectNumber),
		zap.String("github.status_field", config.Github.StatusField),
		zap.String("tracking", matcher.String()),
	)

	logger.Debug("tracking configuration:\n" + matcher.DetailedString())

	goodbye.Register(func(_ context.Context, sig os.Signal) {
		logger.Info(fmt.Sprintf("terminating, received signal %s", sig.String()))
	})

	mux := http.NewServeMux()

	gh := github.New(
		router,
		github.WithPayloadSecret(config.GithubWebHookSecret),
	)

	mux.HandleFunc(config.HTTPGithubWebhookEndpoint, gh.HTTPHandler)
	logger.Info(
		"registered github webhook event http endpoint",
		logfields.Event("github_http_handler_registered"),
		zap.String("endpoint", config.HTTPGithubWebhookEndpoint),
	)

	mux.HandleFunc(cfg.HealthEndpoint, github.HealthHandler)
	logger.Info(
		"registered health check http endpoint",
		logfields.Event("health_http_handler_registered"),
		zap.String("endpoint", cfg.HealthEndpoint),
	)

	if config.PrometheusMetricsEndpoint != "" {
		mux.Handle(config.PrometheusMetricsEndpoint, promhttp.Handler())
		logger.Info(
			"registered prometheus metrics http endpoint",
			logfields.Event("prometheus_http_handler_registered"),
			zap.String("endpoint", config.PrometheusMetricsEndpoint),
		)
	}

	if config.HTTPListenAddr != "" {
		startHTTPServer(config.HTTPListenAddr, mux)
	}

	if config.HTTPSListenAddr != "" {
		startHTTPSServer(
			config.HTTPSListenAddr,
			config.HTTPSCertFile,
			config.HTTPSKeyFile,
			mux,
		)
	}

	// goodbye terminates the process when a signal is received
	select {}
}
