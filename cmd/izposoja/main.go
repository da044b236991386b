package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erazemk/izposoja/internal/api"
	"github.com/erazemk/izposoja/internal/auth"
	"github.com/erazemk/izposoja/internal/config"
	"github.com/erazemk/izposoja/internal/db"
	"github.com/erazemk/izposoja/internal/insight"
	"github.com/erazemk/izposoja/internal/lending"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/erazemk/izposoja/internal/store"
	"github.com/erazemk/izposoja/internal/web"
)

// levelRouter is a slog.Handler that routes INFO/WARN to stdout and ERROR+ to stderr.
type levelRouter struct {
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithAttrs(attrs),
		stderr: lr.stderr.WithAttrs(attrs),
	}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithGroup(name),
		stderr: lr.stderr.WithGroup(name),
	}
}

// setupLogger configures structured logging. If logPath is non-empty, all
// levels are also appended to that file. The returned cleanup closes it.
func setupLogger(logPath string) (func(), error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var cleanup func()

	stdoutW := io.Writer(os.Stdout)
	stderrW := io.Writer(os.Stderr)

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		stdoutW = io.MultiWriter(os.Stdout, f)
		stderrW = io.MultiWriter(os.Stderr, f)
	}

	handler := &levelRouter{
		stdout: slog.NewTextHandler(stdoutW, opts),
		stderr: slog.NewTextHandler(stderrW, opts),
	}
	slog.SetDefault(slog.New(handler))
	return cleanup, nil
}

// options are the command-line overrides shared by all commands. Empty values
// leave the configuration untouched.
type options struct {
	configPath string
	dbPath     string
	addr       string
	backend    string
	adminUser  string
	logPath    string
}

func (o *options) register(fs *flag.FlagSet) {
	fs.StringVar(&o.configPath, "config", "", "")
	fs.StringVar(&o.configPath, "c", "", "")
	fs.StringVar(&o.dbPath, "db", "", "")
	fs.StringVar(&o.dbPath, "d", "", "")
	fs.StringVar(&o.addr, "addr", "", "")
	fs.StringVar(&o.addr, "a", "", "")
	fs.StringVar(&o.backend, "store", "", "")
	fs.StringVar(&o.backend, "s", "", "")
	fs.StringVar(&o.adminUser, "user", "", "")
	fs.StringVar(&o.adminUser, "u", "", "")
	fs.StringVar(&o.logPath, "log", "", "")
	fs.StringVar(&o.logPath, "l", "", "")
}

func (o *options) apply(cfg *config.Config) {
	if o.dbPath != "" {
		cfg.Database.Path = o.dbPath
	}
	if o.addr != "" {
		cfg.Server.Addr = o.addr
	}
	if o.backend != "" {
		cfg.Store.Backend = o.backend
	}
	if o.adminUser != "" {
		cfg.Admin.Username = o.adminUser
	}
	if o.logPath != "" {
		cfg.Server.LogFile = o.logPath
	}
}

const usage = `Usage: izposoja [command] [flags]

Commands:
  (none)                  serve the web interface and API
  overdue                 print overdue and due-soon loans and exit
  config                  write the effective configuration to a file

Flags:
  -c, -config <path>      TOML configuration file (default: ./izposoja.toml if present)
  -d, -db <path>          SQLite database path (default: izposoja.sqlite3)
  -a, -addr <host:port>   listen address (default: :8080)
  -s, -store <backend>    item store: sqlite, memory or mongo (default: sqlite)
  -u, -user <name>        admin username on first run (default: admin)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -o <path>               output file for the config command (default: izposoja.toml)
  -h, -help               show this help and exit
`

func main() {
	args := os.Args[1:]
	command := ""
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		command, args = args[0], args[1:]
	}

	fs := flag.NewFlagSet("izposoja", flag.ContinueOnError)
	var opts options
	opts.register(fs)

	var out string
	if command == "config" {
		fs.StringVar(&out, "o", config.DefaultConfigFileName, "")
	}

	fs.Usage = func() { fmt.Fprint(os.Stdout, usage) }

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", fs.Arg(0))
		fs.Usage()
		os.Exit(1)
	}

	cfg, cfgPath, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	opts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	switch command {
	case "":
		err = serve(cfg, cfgPath)
	case "overdue":
		err = printOverdue(os.Stdout, cfg)
	case "config":
		err = config.Save(cfg, out)
		if err == nil {
			fmt.Printf("Configuration written to %s\n", out)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		fs.Usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func serve(cfg *config.Config, cfgPath string) error {
	closeLog, err := setupLogger(cfg.Server.LogFile)
	if err != nil {
		return err
	}
	if closeLog != nil {
		defer closeLog()
	}

	if cfgPath != "" {
		slog.Info("configuration loaded", "path", cfgPath)
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := context.Background()

	secret, err := store.GetAuthSecret(ctx, database)
	if err != nil {
		return fmt.Errorf("loading auth secret: %w", err)
	}
	tokens := auth.NewTokens(secret)

	if n, err := store.PurgeRevokedTokens(ctx, database, time.Now()); err != nil {
		slog.Warn("failed to purge revoked tokens", "error", err)
	} else if n > 0 {
		slog.Info("purged revoked tokens", "count", n)
	}

	backend, closeBackend, err := openBackend(ctx, cfg, database)
	if err != nil {
		return err
	}
	defer closeBackend()

	svc := lending.New(backend)

	generator, err := newGenerator(ctx, cfg)
	if err != nil {
		return err
	}
	insights := &insight.Adapter{
		Generator: generator,
		Timeout:   cfg.Insights.Timeout.Duration,
	}

	apiRouter := api.NewRouter(api.Deps{
		DB:       database,
		Tokens:   tokens,
		Lending:  svc,
		Insights: insights,
	})
	webRouter, err := web.NewRouter(database, tokens, svc, cfg.Insights.DueSoon())
	if err != nil {
		return fmt.Errorf("setting up web router: %w", err)
	}

	// API routes take priority, web routes handle the rest.
	mux := http.NewServeMux()
	mux.Handle("/api/", apiRouter)
	mux.Handle("/", webRouter)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Server.Addr, "store", cfg.Store.Backend)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}

	slog.Info("server stopped, closing database")
	return nil
}

// openDatabase opens and migrates the SQLite database. When it holds no
// users yet, an admin account is created and its password printed once.
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	path := cfg.Database.Path
	_, statErr := os.Stat(path)
	created := os.IsNotExist(statErr)

	database, err := db.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	n, err := store.CountUsers(context.Background(), database)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("counting users: %w", err)
	}
	if n == 0 {
		password, err := createAdmin(database, cfg.Admin.Username)
		if err != nil {
			database.Close()
			if created {
				os.Remove(path)
			}
			return nil, err
		}
		printInitResult(path, cfg.Admin.Username, password)
		fmt.Println()
	}

	slog.Info("database ready", "path", path)
	return database, nil
}

func createAdmin(database *sql.DB, username string) (string, error) {
	password, err := auth.GeneratePassword(16)
	if err != nil {
		return "", fmt.Errorf("generating password: %w", err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	if _, err := store.CreateUser(context.Background(), database, username, "Administrator", hash, model.RoleAdmin); err != nil {
		return "", fmt.Errorf("creating admin user: %w", err)
	}
	return password, nil
}

// printInitResult prints the first-run result to stdout.
func printInitResult(dbPath, username, password string) {
	fmt.Printf("Database ready: %s\n", dbPath)
	fmt.Println()
	fmt.Println("Admin account created:")
	fmt.Printf("  Username: %s\n", username)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("The admin can change it after logging in.")
}

// openBackend returns the configured item store. The returned func releases
// any connection it holds.
func openBackend(ctx context.Context, cfg *config.Config, database *sql.DB) (store.Backend, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		slog.Warn("using in-memory item store, items are lost on exit")
		return store.NewMemory(), func() {}, nil
	case config.BackendMongo:
		ctx, cancel := context.WithTimeout(ctx, cfg.Store.Mongo.Timeout.Duration)
		defer cancel()

		backend, client, err := store.ConnectMongo(ctx, cfg.Store.Mongo.URI, cfg.Store.Mongo.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to mongo: %w", err)
		}
		slog.Info("connected to mongo", "database", cfg.Store.Mongo.Database)

		disconnect := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(ctx); err != nil {
				slog.Error("failed to disconnect from mongo", "error", err)
			}
		}
		return backend, disconnect, nil
	default:
		return store.NewSQLite(database), func() {}, nil
	}
}

func newGenerator(ctx context.Context, cfg *config.Config) (insight.Generator, error) {
	if !cfg.Insights.UseGemini() {
		slog.Info("insights use local rules")
		return insight.Rules{DueSoon: cfg.Insights.DueSoon()}, nil
	}

	g, err := insight.NewGemini(ctx, cfg.Insights.APIKey, cfg.Insights.Model)
	if err != nil {
		return nil, err
	}
	slog.Info("insights use gemini")
	return g, nil
}
