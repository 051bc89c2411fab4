package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"anihub/internal/auth"
	"anihub/internal/catalog"
	"anihub/internal/config"
	"anihub/internal/logging"
	"anihub/internal/settings"
	"anihub/internal/tui"
	"anihub/internal/upstream"
	"anihub/pkg/database"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	in  io.Reader
	out io.Writer

	configPath  string
	verbose     bool
	upstreamURL string
	timeout     time.Duration

	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	a := &app{in: in, out: out}

	root := &cobra.Command{
		Use:   "anihub",
		Short: "Browse the anime catalog from the terminal",
		Long: `anihub talks to the catalog API directly.

Each lookup command prints the upstream data as indented JSON. "browse" opens
the interactive terminal UI with live search.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.SetOut(out)

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to YAML config (or set ANIHUB_CONFIG)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")
	root.PersistentFlags().StringVar(&a.upstreamURL, "upstream", "", "catalog API base URL (overrides config)")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 30*time.Second, "Operation timeout")

	root.AddCommand(
		&cobra.Command{
			Use:   "home",
			Short: "Show the home listings",
			Args:  cobra.NoArgs,
			RunE: a.lookup(func(ctx context.Context, p upstream.Provider, _ []string) (any, error) {
				return p.Home(ctx)
			}),
		},
		&cobra.Command{
			Use:   "info [id]",
			Short: "Show one anime's details",
			Args:  cobra.ExactArgs(1),
			RunE: a.lookup(func(ctx context.Context, p upstream.Provider, args []string) (any, error) {
				return p.Info(ctx, args[0])
			}),
		},
		&cobra.Command{
			Use:   "random",
			Short: "Print a random anime id",
			Args:  cobra.NoArgs,
			RunE: a.lookup(func(ctx context.Context, p upstream.Provider, _ []string) (any, error) {
				id, err := p.RandomID(ctx)
				if err != nil {
					return nil, err
				}
				return map[string]string{"id": id}, nil
			}),
		},
		&cobra.Command{
			Use:   "suggest [keyword]",
			Short: "Search-as-you-type suggestions for a keyword",
			Args:  cobra.MinimumNArgs(1),
			RunE: a.lookup(func(ctx context.Context, p upstream.Provider, args []string) (any, error) {
				return p.Suggest(ctx, strings.Join(args, " "))
			}),
		},
		a.charactersCmd(),
		a.watchCmd(),
		&cobra.Command{
			Use:   "qtip [id]",
			Short: "Show the quick tooltip for an anime",
			Args:  cobra.ExactArgs(1),
			RunE: a.lookup(func(ctx context.Context, p upstream.Provider, args []string) (any, error) {
				return p.QTip(ctx, args[0])
			}),
		},
		&cobra.Command{
			Use:   "bundle [id]",
			Short: "Fetch details, first character page and tooltip together",
			Args:  cobra.ExactArgs(1),
			RunE: a.lookup(func(ctx context.Context, p upstream.Provider, args []string) (any, error) {
				return catalog.FetchBundle(ctx, p, args[0], a.logger)
			}),
		},
		&cobra.Command{
			Use:   "browse",
			Short: "Open the interactive terminal UI",
			Args:  cobra.NoArgs,
			RunE:  a.browse,
		},
		&cobra.Command{
			Use:   "token",
			Short: "Sign an admin token for the gateway's protected routes",
			Args:  cobra.NoArgs,
			RunE:  a.token,
		},
		&cobra.Command{
			Use:   "hash-password [password]",
			Short: "Print the bcrypt hash for auth.admin_password_hash",
			Long:  "Hashes the argument, or the first line of stdin when no argument is given.",
			Args:  cobra.MaximumNArgs(1),
			RunE:  a.hashPassword,
		},
	)
	return root
}

func (a *app) charactersCmd() *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   "characters [id]",
		Short: "List characters and voice actors",
		Args:  cobra.ExactArgs(1),
		RunE: a.lookup(func(ctx context.Context, p upstream.Provider, args []string) (any, error) {
			return p.Characters(ctx, args[0], page)
		}),
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	return cmd
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	path := a.configPath
	if path == "" {
		path = strings.TrimSpace(os.Getenv("ANIHUB_CONFIG"))
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if a.upstreamURL != "" {
		cfg.Upstream.BaseURL = a.upstreamURL
	}
	a.cfg = cfg

	if cmd.Name() == "browse" && cfg.Log.File == "" {
		// stderr output would tear the UI
		a.logger = zap.NewNop()
		return nil
	}
	if !a.verbose && cfg.Log.File == "" {
		a.logger = zap.NewNop()
		return nil
	}
	logger, err := logging.New(cfg.Log, a.verbose)
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

func (a *app) provider() *upstream.Client {
	return upstream.NewClient(a.cfg.Upstream.BaseURL, a.cfg.Upstream.Timeout,
		upstream.WithRateLimit(a.cfg.Upstream.RateLimit, a.cfg.Upstream.RateBurst),
		upstream.WithLogger(a.logger),
	)
}

type lookupFunc func(ctx context.Context, p upstream.Provider, args []string) (any, error)

// lookup runs fn against the upstream and prints its result as JSON.
func (a *app) lookup(fn lookupFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), a.timeout)
		defer cancel()

		v, err := fn(ctx, a.provider(), args)
		if err != nil {
			return describe(err)
		}
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

func (a *app) browse(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	store := settings.NewStore(a.cfg.Language, nil, a.logger)
	m := tui.New(ctx, a.provider(), store, a.cfg.Search.Debounce, a.logger)
	defer m.Shutdown()

	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

func (a *app) token(cmd *cobra.Command, _ []string) error {
	db, err := database.OpenAndMigrate(database.Config{Path: a.cfg.DBPath})
	if err != nil {
		return err
	}
	defer db.Close()

	version, err := auth.NewRepo(db).TokenVersion(cmd.Context())
	if err != nil {
		return err
	}
	tokens := auth.TokenService{
		Secret:   []byte(a.cfg.Auth.JWTSecret),
		Issuer:   a.cfg.Auth.JWTIssuer,
		Duration: a.cfg.Auth.JWTDuration,
	}
	tok, exp, err := tokens.Sign(version)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, tok)
	fmt.Fprintf(a.out, "expires %s\n", exp.UTC().Format(time.RFC3339))
	return nil
}

func (a *app) hashPassword(_ *cobra.Command, args []string) error {
	var password string
	if len(args) == 1 {
		password = args[0]
	} else {
		line, err := bufio.NewReader(a.in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return errors.New("password required")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	fmt.Fprintln(a.out, hash)
	return nil
}

// describe keeps the full chain for unexpected errors and shortens the
// upstream taxonomy to something readable.
func describe(err error) error {
	switch {
	case errors.Is(err, upstream.ErrEmptyResult):
		return fmt.Errorf("not found: %w", err)
	case errors.Is(err, upstream.ErrNetworkFailure):
		return fmt.Errorf("upstream unavailable: %w", err)
	default:
		return err
	}
}
