package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/fluxcd/rgcomposer/pkg/chat"
	"github.com/fluxcd/rgcomposer/pkg/cluster/kubectl"
	"github.com/fluxcd/rgcomposer/pkg/compose"
	"github.com/fluxcd/rgcomposer/pkg/config"
	"github.com/fluxcd/rgcomposer/pkg/daemon"
	daemonhttp "github.com/fluxcd/rgcomposer/pkg/http/daemon"
	"github.com/fluxcd/rgcomposer/pkg/schema"
)

var version = "unversioned"

const (
	// How long to give kubectl to tell us its version at startup.
	versionCheckTimeout = 10 * time.Second
	shutdownTimeout     = 10 * time.Second
)

func usage(fs *pflag.FlagSet) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "DESCRIPTION\n")
		fmt.Fprintf(os.Stderr, "  composerd serves the API for composing, validating and applying\n")
		fmt.Fprintf(os.Stderr, "  resource group manifests.\n")
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "FLAGS\n")
		fs.PrintDefaults()
	}
}

func main() {
	// Flag domain.
	fs := pflag.NewFlagSet("default", pflag.ExitOnError)
	fs.Usage = usage(fs)

	v := viper.New()
	defineConfigFlags(v, fs, func(err error) {
		fmt.Fprintf(os.Stderr, "error defining flags: %s\n", err)
		os.Exit(2)
	})
	var (
		configFile  = fs.String("config-file", "", fmt.Sprintf("path to a config file (e.g., %s/%s); flags and %s_* environment variables take precedence", config.ConfigPath, config.ConfigName, strings.ToUpper(config.EnvPrefix)))
		versionFlag = fs.Bool("version", false, "get version number")
	)
	fs.Parse(os.Args[1:])

	if *versionFlag {
		fmt.Println(version)
		os.Exit(0)
	}

	cfg, err := loadConfig(v, *configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}

	// Logger component.
	var logger log.Logger
	{
		switch cfg.LogFormat {
		case "json":
			logger = log.NewJSONLogger(log.NewSyncWriter(os.Stderr))
		default:
			logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
		}
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}
	logger.Log("version", version)

	// Validator component.
	validator := schema.Disabled()
	{
		logger := log.With(logger, "component", "schema")
		if cfg.SchemaPath == "" {
			logger.Log("validation", "disabled", "reason", "no --schema-path given")
		} else if loaded, err := schema.Load(cfg.SchemaPath); err != nil {
			// Without a schema we can still compose and apply; the
			// API server will check whatever it's given anyway.
			logger.Log("validation", "disabled", "path", cfg.SchemaPath, "err", err)
		} else {
			validator = loaded
			logger.Log("validation", "enabled", "path", cfg.SchemaPath, "crd", loaded.Identity)
		}
	}

	// Cluster component.
	var cluster *kubectl.Kubectl
	{
		logger := log.With(logger, "component", "cluster")
		opts := kubectl.Options{Kubeconfig: cfg.Kubeconfig, Context: cfg.KubeContext}
		cluster = kubectl.New(cfg.Kubectl, opts, logger)

		ctx, cancel := context.WithTimeout(context.Background(), versionCheckTimeout)
		clientVersion, err := cluster.ClientVersion(ctx)
		cancel()
		switch {
		case err != nil:
			logger.Log("kubectl", cfg.Kubectl, "err", err)
		case !kubectl.Supported(clientVersion):
			logger.Log("kubectl", cfg.Kubectl, "version", clientVersion, "warning", fmt.Sprintf("kubectl older than %s may not apply resource groups correctly", kubectl.MinimumClientVersion))
		default:
			logger.Log("kubectl", cfg.Kubectl, "version", clientVersion)
		}

		if info, err := kubectl.ResolveContext(opts); err != nil {
			logger.Log("kubeconfig", "unresolved", "err", err)
		} else {
			logger.Log("context", info.Name, "cluster", info.Cluster, "server", info.Server, "namespace", info.Namespace)
		}
	}

	// Chat component.
	var relay *chat.Relay
	{
		logger := log.With(logger, "component", "chat")
		relay = chat.NewRelay(chat.Config{
			BaseURL: cfg.ChatBaseURL,
			RPS:     cfg.ChatRPS,
			Burst:   cfg.ChatBurst,
		}, &http.Client{Timeout: cfg.ChatTimeout}, logger)
		logger.Log("base-url", cfg.ChatBaseURL, "rps", cfg.ChatRPS)
	}

	d := &daemon.Daemon{
		V:         version,
		Validator: validator,
		Builder:   compose.NewBuilder(cfg.DenyKind),
		Cluster:   cluster,
		Chat:      relay,
		Logger:    log.With(logger, "component", "daemon"),
	}

	// Mechanical stuff.
	errc := make(chan error)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	// Transport domain.
	var servers []*http.Server
	{
		logger := log.With(logger, "component", "http")
		handler := daemonhttp.NewHandler(d, daemonhttp.NewRouter(), daemonhttp.Options{
			AllowedOrigins: cfg.CORSAllowedOrigin,
			Logger:         logger,
		})

		mux := http.NewServeMux()
		mux.Handle("/api/", handler)
		if cfg.ListenMetrics == "" {
			mux.Handle("/metrics", promhttp.Handler())
		} else {
			metricsMux := http.NewServeMux()
			metricsMux.Handle("/metrics", promhttp.Handler())
			servers = append(servers, &http.Server{Addr: cfg.ListenMetrics, Handler: metricsMux})
		}
		servers = append(servers, &http.Server{Addr: cfg.Listen, Handler: mux})

		for _, srv := range servers {
			go func(srv *http.Server) {
				logger.Log("addr", srv.Addr)
				errc <- srv.ListenAndServe()
			}(srv)
		}
	}

	// Go!
	logger.Log("exiting", <-errc)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Log("shutdown", srv.Addr, "err", err)
		}
	}
}
