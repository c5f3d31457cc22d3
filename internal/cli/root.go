// Package cli implements invoicectl, a command-line client for the invoice
// API that keeps its session between invocations.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"go-invoice/pkg/client"
	"go-invoice/pkg/tokenstore"
)

const (
	defaultAPIURL   = "http://localhost:5000/api"
	redisKeyPrefix  = "invoicectl:session"
	sessionFileName = "session.json"
)

type options struct {
	apiURL    string
	tokenFile string
	redisURL  string
	timeout   time.Duration
	verbose   bool
}

// app carries the state shared by every subcommand of one invocation.
type app struct {
	opts   options
	out    io.Writer
	client *client.Client
	closer func()

	// newStore overrides store selection in tests.
	newStore func(opts options) (tokenstore.Store, func(), error)
}

// NewRootCommand builds the invoicectl command tree writing to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	_ = godotenv.Load()

	a := &app{out: out, newStore: openStore}

	root := &cobra.Command{
		Use:           "invoicectl",
		Short:         "Command-line client for the invoice API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.connect()
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			a.close()
		},
	}
	root.SetOut(out)
	root.SetErr(out)

	flags := root.PersistentFlags()
	flags.StringVar(&a.opts.apiURL, "api-url", envOr("INVOICE_API_URL", defaultAPIURL), "API base URL including the /api prefix")
	flags.StringVar(&a.opts.tokenFile, "token-file", envOr("INVOICE_TOKEN_FILE", ""), "session file (default: user config dir)")
	flags.StringVar(&a.opts.redisURL, "redis-url", envOr("INVOICE_REDIS_URL", ""), "keep the session in Redis instead of a file")
	flags.DurationVar(&a.opts.timeout, "timeout", envDuration("INVOICE_REQUEST_TIMEOUT", client.DefaultTimeout), "per-request timeout")
	flags.BoolVarP(&a.opts.verbose, "verbose", "v", false, "log session activity to stderr")

	root.AddCommand(
		newRegisterCommand(a),
		newLoginCommand(a),
		newLogoutCommand(a),
		newWhoamiCommand(a),
		newProductsCommand(a),
		newInvoiceCommand(a),
	)

	return root
}

// Execute runs invoicectl with os.Args.
func Execute(ctx context.Context) error {
	return NewRootCommand(os.Stdout).ExecuteContext(ctx)
}

func (a *app) connect() error {
	if a.client != nil {
		return nil
	}

	store, closer, err := a.newStore(a.opts)
	if err != nil {
		return err
	}

	level := slog.LevelError
	if a.opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	c, err := client.New(client.Config{
		BaseURL: a.opts.apiURL,
		Store:   store,
		Timeout: a.opts.timeout,
		Logger:  logger,
	})
	if err != nil {
		closer()
		return fmt.Errorf("invalid client configuration: %w", err)
	}

	a.client = c
	a.closer = closer
	return nil
}

func (a *app) close() {
	if a.closer != nil {
		a.closer()
		a.closer = nil
	}
}

func (a *app) requireSession() error {
	if !a.client.Session().Snapshot().IsAuthenticated {
		return fmt.Errorf("not logged in; run `invoicectl login` first")
	}
	return nil
}

func openStore(opts options) (tokenstore.Store, func(), error) {
	if opts.redisURL != "" {
		redisOpts, err := redis.ParseURL(opts.redisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid redis url: %w", err)
		}
		rdb := redis.NewClient(redisOpts)
		return tokenstore.NewRedisStore(rdb, redisKeyPrefix), func() { _ = rdb.Close() }, nil
	}

	path := opts.tokenFile
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, nil, fmt.Errorf("cannot locate config directory: %w", err)
		}
		path = filepath.Join(dir, "invoicectl", sessionFileName)
	}

	store, err := tokenstore.NewFileStore(path)
	if err != nil {
		return nil, nil, err
	}
	return store, func() {}, nil
}

func envOr(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
