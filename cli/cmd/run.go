package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/rlfeed/adapter"
	"github.com/justapithecus/rlfeed/adapter/redis"
	"github.com/justapithecus/rlfeed/adapter/webhook"
	"github.com/justapithecus/rlfeed/cli/config"
	"github.com/justapithecus/rlfeed/client"
	"github.com/justapithecus/rlfeed/iox"
	"github.com/justapithecus/rlfeed/log"
	"github.com/justapithecus/rlfeed/metrics"
	"github.com/justapithecus/rlfeed/runtime"
	"github.com/justapithecus/rlfeed/types"
)

// notifyTimeout bounds the completion notification after the run.
const notifyTimeout = 30 * time.Second

// RunCommand returns the run command.
// This is the only command that calls the client.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Feed an NDJSON event stream from stdin to the client",
		ArgsUsage: "<config-json|@file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to a YAML config file (flags override its values)",
			},
			&cli.StringSliceFlag{
				Name:  "env-file",
				Usage: "Dotenv file(s) loaded before the config (default: .env if present)",
			},
			&cli.StringFlag{
				Name:  "input",
				Usage: "Read events from this file instead of stdin",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn, error",
				Value: "info",
			},
			&cli.StringFlag{
				Name:  "run-id",
				Usage: "Run ID tagging stored records (default: random UUID)",
			},
			&cli.IntFlag{
				Name:  "max-line-size",
				Usage: "Longest accepted input line in bytes",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve /metrics and /healthz on this address during the run",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Suppress the run summary",
			},
			// Adapter flags
			&cli.StringFlag{
				Name:  "adapter",
				Usage: "Completion notification adapter: webhook or redis",
			},
			&cli.StringFlag{
				Name:  "adapter-url",
				Usage: "Webhook endpoint or redis URL",
			},
			&cli.StringFlag{
				Name:  "adapter-channel",
				Usage: "Redis pub/sub channel (default: " + redis.DefaultChannel + ")",
			},
			&cli.StringSliceFlag{
				Name:  "adapter-header",
				Usage: "Webhook header as Key=Value (repeatable)",
			},
			&cli.DurationFlag{
				Name:  "adapter-timeout",
				Usage: "Per-attempt publish timeout",
			},
			&cli.IntFlag{
				Name:  "adapter-retries",
				Usage: "Retries after a failed publish",
				Value: adapter.DefaultRetries,
			},
			&cli.DurationFlag{
				Name:  "adapter-backoff",
				Usage: "Delay before the first retry, doubled per attempt",
				Value: adapter.DefaultBackoff,
			},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	fileCfg, err := loadRunConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitInitError)
	}

	clientText := c.Args().First()
	if clientText == "" {
		clientText = fileCfg.Client
	}
	if clientText == "" {
		return cli.Exit("client configuration required: rlfeed run <config-json|@file>", runtime.ExitInitError)
	}

	level, err := log.ParseLevel(resolveString(c, "log-level", fileCfg.LogLevel))
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitInitError)
	}

	clientCfg, err := client.CreateConfig(clientText)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitInitError)
	}

	choice, err := parseAdapterConfigWithPrecedence(c, &fileCfg.Adapter, resolveString(c, "adapter", fileCfg.Adapter.Type))
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitInitError)
	}
	notifier, err := buildAdapter(choice)
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitInitError)
	}
	if notifier != nil {
		defer iox.DiscardClose(notifier)
	}

	runID := resolveString(c, "run-id", fileCfg.RunID)
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := log.New(&types.RunMeta{RunID: runID, AppID: clientCfg.AppID}, os.Stderr, level)

	collector := metrics.NewCollector(
		clientCfg.AppID,
		runID,
		clientCfg.Interaction.Backend(),
		string(clientCfg.QueueMode),
	)
	if addr := resolveString(c, "metrics-addr", fileCfg.MetricsAddr); addr != "" {
		srv, err := serveMetrics(addr, collector)
		if err != nil {
			return cli.Exit(fmt.Sprintf("metrics server: %v", err), runtime.ExitInitError)
		}
		logger.Info("metrics server listening", map[string]any{"addr": srv.Addr()})
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	input, err := iox.OpenInput(c.String("input"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("open input: %v", err), runtime.ExitInitError)
	}
	defer iox.DiscardClose(input)

	orchestrator, err := runtime.NewRunOrchestrator(&runtime.RunConfig{
		Client:      clientCfg,
		Input:       input,
		RunID:       runID,
		Diagnostics: os.Stderr,
		Logger:      logger,
		Collector:   collector,
		MaxLineSize: resolveInt(c, "max-line-size", fileCfg.MaxLineSize),
	})
	if err != nil {
		return cli.Exit(err.Error(), runtime.ExitInitError)
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	result := orchestrator.Execute(ctx)

	if !c.Bool("quiet") {
		printRunResult(os.Stderr, result)
	}

	if notifier != nil {
		nctx, ncancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		// Publish failures are logged by Notify and never change the exit code.
		_ = adapter.Notify(nctx, notifier, result.Event(), logger)
		ncancel()
	}

	return cli.Exit(exitMessage(result), result.ExitCode)
}

// loadRunConfig loads dotenv files, then the YAML config if --config is set.
// Without --env-file, a .env file in the working directory is loaded if present.
func loadRunConfig(c *cli.Context) (*config.Config, error) {
	if files := c.StringSlice("env-file"); len(files) > 0 {
		if err := config.LoadEnvFiles(true, files...); err != nil {
			return nil, err
		}
	} else if err := config.LoadEnvFiles(false, ".env"); err != nil {
		return nil, err
	}

	path := c.String("config")
	if path == "" {
		return &config.Config{}, nil
	}
	return config.Load(path)
}

func serveMetrics(addr string, collector *metrics.Collector) (*metrics.Server, error) {
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg, collector); err != nil {
		return nil, err
	}
	return metrics.Serve(addr, reg)
}

// adapterChoice is the resolved adapter configuration.
type adapterChoice struct {
	adapterType string
	url         string
	channel     string
	headers     map[string]string
	timeout     time.Duration
	retries     int
	backoff     time.Duration
}

// parseAdapterConfigWithPrecedence merges adapter flags over the config
// file section. An empty adapterType means no adapter.
func parseAdapterConfigWithPrecedence(c *cli.Context, cfg *config.AdapterConfig, adapterType string) (*adapterChoice, error) {
	if adapterType == "" {
		return nil, nil
	}
	if cfg == nil {
		cfg = &config.AdapterConfig{}
	}

	retries := c.Int("adapter-retries")
	if cfg.Retries != nil && !c.IsSet("adapter-retries") {
		retries = *cfg.Retries
	}

	choice := &adapterChoice{
		adapterType: adapterType,
		url:         resolveString(c, "adapter-url", cfg.URL),
		channel:     resolveString(c, "adapter-channel", cfg.Channel),
		timeout:     resolveDuration(c, "adapter-timeout", cfg.Timeout.Duration),
		retries:     retries,
		backoff:     resolveDuration(c, "adapter-backoff", cfg.Backoff.Duration),
		headers:     make(map[string]string, len(cfg.Headers)),
	}
	for k, v := range cfg.Headers {
		choice.headers[k] = v
	}
	for _, h := range c.StringSlice("adapter-header") {
		k, v, ok := strings.Cut(h, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --adapter-header %q (want Key=Value)", h)
		}
		choice.headers[k] = v
	}

	switch adapterType {
	case config.AdapterWebhook, config.AdapterRedis:
	default:
		return nil, fmt.Errorf("unknown adapter %q (want %s or %s)", adapterType, config.AdapterWebhook, config.AdapterRedis)
	}
	if choice.url == "" {
		return nil, fmt.Errorf("--adapter-url is required for the %s adapter", adapterType)
	}
	if choice.retries < 0 {
		return nil, fmt.Errorf("--adapter-retries must be >= 0, got %d", choice.retries)
	}
	return choice, nil
}

// buildAdapter constructs the adapter for choice. A nil choice returns a
// nil adapter.
func buildAdapter(choice *adapterChoice) (adapter.Adapter, error) {
	if choice == nil {
		return nil, nil
	}
	switch choice.adapterType {
	case config.AdapterWebhook:
		a, err := webhook.New(webhook.Config{
			URL:     choice.url,
			Headers: choice.headers,
			Timeout: choice.timeout,
			Retries: choice.retries,
			Backoff: choice.backoff,
		})
		if err != nil {
			return nil, err
		}
		return a, nil
	case config.AdapterRedis:
		a, err := redis.New(redis.Config{
			URL:     choice.url,
			Channel: choice.channel,
			Timeout: choice.timeout,
			Retries: choice.retries,
			Backoff: choice.backoff,
		})
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown adapter %q", choice.adapterType)
	}
}

// resolveString returns the flag value if it was set, else the config value.
func resolveString(c *cli.Context, name, cfgVal string) string {
	if c.IsSet(name) || cfgVal == "" {
		return c.String(name)
	}
	return cfgVal
}

// resolveInt returns the flag value if it was set, else the config value
// when non-zero.
func resolveInt(c *cli.Context, name string, cfgVal int) int {
	if c.IsSet(name) || cfgVal == 0 {
		return c.Int(name)
	}
	return cfgVal
}

// resolveDuration returns the flag value if it was set, else the config
// value when non-zero.
func resolveDuration(c *cli.Context, name string, cfgVal time.Duration) time.Duration {
	if c.IsSet(name) || cfgVal == 0 {
		return c.Duration(name)
	}
	return cfgVal
}

func exitMessage(result *runtime.RunResult) string {
	err := errors.Join(result.Err, result.CloseErr)
	if err == nil {
		return ""
	}
	return "rlfeed: " + err.Error()
}

func printRunResult(w io.Writer, result *runtime.RunResult) {
	fmt.Fprintf(w, "\n=== Run Result ===\n")
	fmt.Fprintf(w, "Run ID:        %s\n", result.RunID)
	fmt.Fprintf(w, "App ID:        %s\n", result.AppID)
	fmt.Fprintf(w, "Exit code:     %d\n", result.ExitCode)
	fmt.Fprintf(w, "Duration:      %s\n", result.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "Lines:         %d (decisions=%d, outcomes=%d)\n",
		result.Dispatch.Lines, result.Dispatch.DecisionRecords, result.Dispatch.OutcomeRecords)
	fmt.Fprintf(w, "Client calls:  choose=%d, report_outcome=%d\n",
		result.Dispatch.ChooseCalls, result.Dispatch.OutcomeCalls)
	fmt.Fprintf(w, "Entries:       persisted=%d, dropped=%d\n",
		result.Metrics.EntriesPersisted, result.Metrics.EntriesDropped)
	fmt.Fprintf(w, "Background errors: %d\n", result.Metrics.BackgroundErrors)
}
