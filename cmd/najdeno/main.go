package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/najdeno/internal/api"
	"github.com/erazemk/najdeno/internal/config"
	"github.com/erazemk/najdeno/internal/db"
	"github.com/erazemk/najdeno/internal/handoff"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/moderation"
	"github.com/erazemk/najdeno/internal/service"
	"github.com/erazemk/najdeno/internal/store"
)

func main() {
	fs := flag.NewFlagSet("najdeno", flag.ContinueOnError)

	var dbPath string
	fs.StringVar(&dbPath, "db", "najdeno.sqlite3", "")
	fs.StringVar(&dbPath, "d", "najdeno.sqlite3", "")

	var addr string
	fs.StringVar(&addr, "addr", ":8080", "")
	fs.StringVar(&addr, "a", ":8080", "")

	var adminUser string
	fs.StringVar(&adminUser, "user", "Admin", "")
	fs.StringVar(&adminUser, "u", "Admin", "")

	var logPath string
	fs.StringVar(&logPath, "log", "", "")
	fs.StringVar(&logPath, "l", "", "")

	var verbose bool
	fs.BoolVar(&verbose, "verbose", false, "")
	fs.BoolVar(&verbose, "v", false, "")

	var configPath string
	fs.StringVar(&configPath, "config", "", "")
	fs.StringVar(&configPath, "c", "", "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: najdeno [flags]

Flags:
  -d, -db <path>          SQLite database path (default: najdeno.sqlite3)
  -a, -addr <host:port>   listen address (default: :8080)
  -u, -user <name>        admin username on first run (default: Admin)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -c, -config <path>      YAML policy file (default: built-in policy)
  -v, -verbose            also log debug messages
  -h, -help               show this help and exit
`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
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

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	closeLog, err := setupLogger(logPath, level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if closeLog != nil {
		defer closeLog()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Check if DB exists, auto-init if not.
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		database, password, err := initDatabase(dbPath, adminUser)
		if err != nil {
			slog.Error("failed to initialize database", "error", err)
			os.Exit(1)
		}
		database.Close()

		printInitResult(dbPath, adminUser, password)
		fmt.Println()
	}

	database, err := db.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	// Ensure schema exists (idempotent).
	if err := db.EnsureSchema(database); err != nil {
		slog.Error("failed to ensure database schema", "error", err)
		os.Exit(1)
	}

	slog.Info("database ready", "path", dbPath)

	ctx := context.Background()
	jwtSecret, err := store.GetJWTSecret(ctx, database)
	if err != nil {
		slog.Error("failed to get JWT secret", "error", err)
		os.Exit(1)
	}
	handoffSecret, err := store.GetHandoffSecret(ctx, database)
	if err != nil {
		slog.Error("failed to get handoff secret", "error", err)
		os.Exit(1)
	}

	var classifier moderation.Classifier
	if cfg.Classifier.URL != "" {
		classifier = moderation.NewHTTPClassifier(cfg.Classifier.URL, cfg.Classifier.Timeout)
		slog.Info("photo classifier enabled", "url", cfg.Classifier.URL)
	}
	gate, err := moderation.NewGate(cfg.Moderation, classifier)
	if err != nil {
		slog.Error("invalid moderation policy", "error", err)
		os.Exit(1)
	}

	svc, err := service.New(service.Options{
		DB:         database,
		Gate:       gate,
		Codec:      handoff.NewCodec(handoffSecret),
		FeedWindow: cfg.Feed.Window,
		PageSize:   cfg.Feed.PageSize,
		CacheSize:  cfg.Feed.CacheSize,
	})
	if err != nil {
		slog.Error("failed to set up service", "error", err)
		os.Exit(1)
	}

	handler := api.LoggingMiddleware(api.NewRouter(database, jwtSecret, svc))

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	purgeCtx, stopPurge := context.WithCancel(ctx)
	defer stopPurge()
	go purgeRevokedTokens(purgeCtx, database, time.Hour)

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())

		// Event streams never finish on their own.
		svc.Hub().Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped, waiting for alert matching")
	svc.Wait()
	slog.Info("closing database")
}

// purgeRevokedTokens drops logged-out tokens once they would have expired
// anyway.
func purgeRevokedTokens(ctx context.Context, database *sql.DB, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := store.PurgeRevokedTokens(ctx, database, now)
			if err != nil {
				slog.Error("failed to purge revoked tokens", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("purged revoked tokens", "count", n)
			}
		}
	}
}

// initDatabase creates a new database with the schema and the first admin.
// On failure the half-written file is removed.
func initDatabase(path, adminUsername string) (database *sql.DB, password string, err error) {
	database, err = db.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if err != nil {
			database.Close()
			os.Remove(path)
			database = nil
		}
	}()

	if err = db.EnsureSchema(database); err != nil {
		return nil, "", fmt.Errorf("ensuring schema: %w", err)
	}
	if password, err = generatePassword(16); err != nil {
		return nil, "", fmt.Errorf("generating password: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hashing password: %w", err)
	}
	if _, err = store.CreateUser(context.Background(), database, adminUsername, "Administrator", string(hash), model.RoleAdmin); err != nil {
		return nil, "", fmt.Errorf("creating admin user: %w", err)
	}
	return database, password, nil
}

// printInitResult prints the database initialization result to stdout.
func printInitResult(dbPath, username, password string) {
	fmt.Printf("Created %s with an empty lost-and-found board.\n\n", dbPath)
	fmt.Println("Moderator account (admin role):")
	fmt.Printf("  Username: %s\n", username)
	fmt.Printf("  Password: %s\n\n", password)
	fmt.Println("The password is shown only once. Change it with PUT /api/auth/password.")
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
