package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/term"
	"golang.org/x/time/rate"

	"github.com/vrischmann/servare/internal/auth"
	"github.com/vrischmann/servare/internal/config"
	"github.com/vrischmann/servare/internal/database"
	"github.com/vrischmann/servare/internal/favicon"
	"github.com/vrischmann/servare/internal/feedservice"
	"github.com/vrischmann/servare/internal/feedstore"
	"github.com/vrischmann/servare/internal/handler"
	"github.com/vrischmann/servare/internal/httpfetch"
	"github.com/vrischmann/servare/internal/jobmetrics"
	"github.com/vrischmann/servare/internal/jobqueue"
	"github.com/vrischmann/servare/internal/logger"
	"github.com/vrischmann/servare/internal/middleware"
	"github.com/vrischmann/servare/internal/rungroup"
	"github.com/vrischmann/servare/internal/security"
	"github.com/vrischmann/servare/internal/workpool"
)

// Init loads Config from the environment (optionally layered over a
// YAML file) and wires the global JSON structured logger. Logging is
// set up before config is loaded; Load's errors are returned to the
// caller, not logged.
func Init(w io.Writer) (*config.Config, error) {
	logger.SetupDefault(w)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run resolves the subcommand from args (os.Args[1:]) and dispatches
// to the matching mode.
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck is a lightweight subcommand: skip the full config
	// load and database dial it doesn't need.
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandCreateUser:
		return runCreateUser(cfg, args[1:])
	default:
		return runServe(cfg)
	}
}

// runServe wires every collaborator and runs the HTTP server and the
// Job Runner together under a Run Group Supervisor: SIGINT/SIGTERM, or
// either task's first error, triggers a coordinated graceful shutdown
// of both.
func runServe(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")

	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	feeds := feedstore.NewStore(db)
	jobs := jobqueue.NewStore(db)
	authStore := auth.NewStore(db)

	fetcher := httpfetch.New(cfg.FetchTimeout, cfg.FetchMaxSize, ssrfGuard)
	faviconFetcher := favicon.NewFetcher(fetcher.Underlying())

	registry := jobqueue.NewRegistry()
	registry.Register(jobqueue.TagRefreshFeed, &jobqueue.RefreshFeedHandler{
		Fetcher:   fetcher,
		Feeds:     feeds,
		Sanitizer: sanitizer,
	})
	registry.Register(jobqueue.TagFetchFavicon, &jobqueue.FetchFaviconHandler{
		HomepageFetcher: fetcher,
		FaviconFetcher:  faviconFetcher,
		Feeds:           feeds,
	})

	metrics := jobmetrics.NewMetrics(prometheus.DefaultRegisterer)

	runner := jobqueue.NewRunner(jobs, feeds, registry, slog.Default(), cfg.JobRunInterval)
	runner.ManageJobsLimit = cfg.ManageJobsLimit
	runner.RunJobsLimit = cfg.RunJobsLimit
	runner.MaxAttempts = cfg.MaxJobAttempts
	runner.Metrics = metrics

	parsePool := workpool.New(0, 64)
	defer parsePool.Close()

	authService := auth.New(authStore, time.Duration(cfg.SessionMaxAge)*time.Second)
	feedSvc := feedservice.New(fetcher, feeds, jobs, parsePool)
	entrySvc := feedservice.NewEntryService(feeds)

	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.FeedRegRate = rate.Limit(float64(cfg.RateLimitFeedReg) / 60.0)
	rateLimiterCfg.FeedRegBurst = cfg.RateLimitFeedReg
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		SessionFinder:     authStore,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		HealthChecker:     db,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		FeedService:  feedSvc,
		EntryService: entrySvc,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	group := rungroup.New(context.Background())

	group.Add(func(ctx context.Context, shutdown <-chan struct{}) error {
		go func() {
			<-shutdown
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				slog.Error("server shutdown failed", slog.String("error", err.Error()))
			}
		}()

		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	})

	group.Add(runner.Run)

	if err := group.Start(context.Background()); err != nil {
		return fmt.Errorf("run group failed: %w", err)
	}

	slog.Info("servare stopped gracefully")
	return nil
}

// runMigrate applies every pending database migration in order.
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runCreateUser creates a user account from the command line,
// prompting for the password on stdin so it never appears in shell
// history or process listings. Usage: create-user --email E
func runCreateUser(cfg *config.Config, args []string) error {
	email := flagValue(args, "--email")
	if email == "" {
		return fmt.Errorf("usage: create-user --email <email>")
	}

	fmt.Fprint(os.Stdout, "Password: ")
	password, err := readPassword()
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("password must not be empty")
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	authService := auth.New(auth.NewStore(db), time.Duration(cfg.SessionMaxAge)*time.Second)
	user, err := authService.CreateUser(context.Background(), email, password)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	slog.Info("user created", slog.String("id", user.ID), slog.String("email", user.Email))
	return nil
}

func flagValue(args []string, name string) string {
	for i, a := range args {
		if a == name && i+1 < len(args) {
			return args[i+1]
		}
		if strings.HasPrefix(a, name+"=") {
			return strings.TrimPrefix(a, name+"=")
		}
	}
	return ""
}

func readPassword() (string, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stdout)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// runHealthcheck probes the local /health endpoint, for a container's
// HEALTHCHECK instruction.
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL redacts credentials from a database URL before it
// is logged.
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
