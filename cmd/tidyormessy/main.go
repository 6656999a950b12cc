package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/menta2k/tidyormessy"
	"github.com/menta2k/tidyormessy/internal/config"
	"github.com/menta2k/tidyormessy/internal/logger"
	"github.com/menta2k/tidyormessy/internal/utils"
	"github.com/menta2k/tidyormessy/pkg/predict"
	"github.com/menta2k/tidyormessy/pkg/retry"
	"github.com/menta2k/tidyormessy/pkg/session"
	"github.com/menta2k/tidyormessy/pkg/types"
)

// outcome is one line of output
type outcome struct {
	Source     string `json:"source"`
	Prediction string `json:"prediction,omitempty"`
	Quote      string `json:"quote,omitempty"`
	Error      string `json:"error,omitempty"`
	ErrorKind  string `json:"error_kind,omitempty"`
	Message    string `json:"message,omitempty"`
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet(filepath.Base(os.Args[0]), flag.ContinueOnError)

	var configPath, in, endpoint, logLevel string
	var timeout time.Duration
	var retries, sendSize, sendQ, concurrency int
	var asJSON, version, initConfig bool

	fs.StringVar(&configPath, "config", "", "path to config file (yaml/json)")
	fs.StringVar(&in, "in", "", "comma separated image paths, directories or URLs (jpg/png/webp/gif)")
	fs.StringVar(&endpoint, "url", "", "prediction endpoint (default "+predict.DefaultEndpoint+")")
	fs.DurationVar(&timeout, "timeout", 0, "per-request timeout (default 30s)")
	fs.IntVar(&retries, "retries", 0, "attempts per image for network failures (default 1)")
	fs.IntVar(&sendSize, "sendsize", 0, "max long side sent to the service (px), 0 keeps the original size")
	fs.IntVar(&sendQ, "sendq", 0, "JPEG quality for the uploaded image (1-100)")
	fs.IntVar(&concurrency, "concurrency", 0, "images classified in parallel")
	fs.StringVar(&logLevel, "log", "", "log level: debug|info|warn|error")
	fs.BoolVar(&asJSON, "json", false, "print one JSON object per image")
	fs.BoolVar(&version, "version", false, "print version and exit")
	fs.BoolVar(&initConfig, "init-config", false, "write the default config to -config (or "+config.GetConfigPath()+") and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if version {
		fmt.Fprintln(stdout, tidyormessy.GetVersion())
		return nil
	}

	if configPath == "" && utils.FileExists(config.GetConfigPath()) {
		configPath = config.GetConfigPath()
	}
	if initConfig {
		path := configPath
		if path == "" {
			path = config.GetConfigPath()
		}
		if err := config.Default().SaveToFile(path); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "wrote %s\n", path)
		return nil
	}

	inputs := splitInputs(in)
	inputs = append(inputs, fs.Args()...)
	if len(inputs) == 0 {
		return fmt.Errorf("usage: %s -in room.jpg|dir|URL [-url endpoint] [-timeout 30s] [-retries 3] [-json]", fs.Name())
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Flags override file and environment
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "url":
			cfg.Client.Endpoint = endpoint
		case "timeout":
			cfg.Client.Timeout = timeout
		case "retries":
			cfg.Retry.MaxAttempts = retries
		case "sendsize":
			cfg.Image.MaxDim = sendSize
		case "sendq":
			cfg.Image.Quality = sendQ
		case "concurrency":
			cfg.Client.Concurrency = concurrency
		case "log":
			cfg.Log.Level = logLevel
		}
	})
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	sources, err := utils.ExpandSources(inputs)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := predict.NewClient(cfg.Client.Endpoint,
		predict.WithTimeout(cfg.Client.Timeout),
		predict.WithMaxResponseBytes(cfg.Client.MaxResponseBytes),
		predict.WithLogger(log.Named("predict")),
	)

	policy := retry.NewPolicy(cfg.Retry.MaxAttempts, cfg.Retry.BaseDelay)
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		log.Warn("retrying prediction", zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
	}

	classifier := tidyormessy.New(client).
		WithEncodeOptions(types.EncodeOptions{
			MaxDim:  cfg.Image.MaxDim,
			Quality: cfg.Image.Quality,
			MinSide: cfg.Image.MinSide,
		}).
		WithRetry(policy)

	log.Info("classifying images",
		zap.Int("count", len(sources)),
		zap.String("endpoint", cfg.Client.Endpoint),
		zap.Int("concurrency", cfg.Client.Concurrency))

	outcomes := classifyAll(ctx, classifier, sources, cfg.Client.Concurrency, log)

	failed := 0
	enc := json.NewEncoder(stdout)
	for _, o := range outcomes {
		if o.Error != "" {
			failed++
		}
		if asJSON {
			if err := enc.Encode(o); err != nil {
				return err
			}
			continue
		}
		printText(stdout, o)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(outcomes))
	}
	return nil
}

// classifyAll runs at most limit classifications at once and keeps input order
func classifyAll(ctx context.Context, c *tidyormessy.Classifier, sources []string, limit int, log *zap.Logger) []outcome {
	outcomes := make([]outcome, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, src := range sources {
		g.Go(func() error {
			// Each image owns a session so late replies cannot mix
			s := session.New(0)
			token := s.Begin()

			start := time.Now()
			result, err := c.ClassifyFile(ctx, src)
			s.Finish(token, result, err)
			view := s.Snapshot()

			o := outcome{Source: src}
			if err != nil {
				o.Error = err.Error()
				o.ErrorKind = view.ErrKind.String()
				o.Message = view.Message
				log.Debug("classification failed", zap.String("source", src), zap.Error(err))
			} else {
				o.Prediction = view.Prediction
				o.Quote = view.Quote
				log.Debug("classified", zap.String("source", src),
					zap.String("prediction", view.Prediction),
					zap.Duration("elapsed", time.Since(start)))
			}
			outcomes[i] = o
			// Failures are reported per image, never abort the batch
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func printText(w io.Writer, o outcome) {
	if o.Error != "" {
		fmt.Fprintf(w, "%s: error (%s): %s\n", o.Source, o.ErrorKind, o.Message)
		return
	}
	fmt.Fprintf(w, "%s: %s  %q\n", o.Source, o.Prediction, o.Quote)
}

func splitInputs(in string) []string {
	var out []string
	for _, s := range strings.Split(in, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
