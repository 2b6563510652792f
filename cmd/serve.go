package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/apiview/internal/db"
	"github.com/ziadkadry99/apiview/internal/journal"
	"github.com/ziadkadry99/apiview/internal/loader"
	"github.com/ziadkadry99/apiview/internal/server"
	"github.com/ziadkadry99/apiview/internal/session"
)

var (
	servePort     int
	serveIndexURL string
)

const (
	// journalRetention is how long navigation events are kept.
	journalRetention = 7 * 24 * time.Hour
	shutdownTimeout  = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the viewer server",
	Long:  `Loads the document index and serves the viewer, its selection endpoints and the index API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Port = servePort
		}
		if serveIndexURL != "" {
			cfg.IndexURL = serveIndexURL
		}

		logger := newLogger(os.Stderr, cfg.LogFormat)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sessionOpts := []session.Option{session.WithLogger(logger)}
		var journalStore *journal.Store
		if path := cfg.JournalPath(); path != "" {
			database, err := db.Open(path)
			if err != nil {
				return fmt.Errorf("opening journal: %w", err)
			}
			defer database.Close()
			journalStore = journal.NewStore(database)
			sessionOpts = append(sessionOpts, session.WithJournal(journalStore))
			go pruneJournal(ctx, journalStore, logger)
		}
		sessions := session.NewManager(sessionOpts...)
		go sessions.Run(ctx, cfg.SessionTTL.Std(), time.Minute)

		newLoader := func() *loader.Loader {
			return loader.New(cfg.IndexURL, loaderOptions(cfg, logger)...)
		}
		srv, err := server.New(server.Config{
			Port:     cfg.Port,
			SiteName: cfg.SiteName,
			AllowAll: cfg.AllowAllOrigins,
		}, newLoader, sessions, journalStore, logger)
		if err != nil {
			return err
		}
		srv.Mount(ctx)

		logger.Info("apiview starting",
			"version", Version,
			"port", cfg.Port,
			"index", cfg.IndexURL,
			"journal", cfg.JournalPath(),
		)
		return runServer(ctx, srv, shutdownTimeout, logger)
	},
}

// httpServer is the part of *server.Server that runServer drives.
type httpServer interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// runServer serves until ctx is done, then shuts srv down and waits for
// the shutdown to finish, so deferred cleanup runs after in-flight
// requests have completed.
func runServer(ctx context.Context, srv httpServer, timeout time.Duration, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown failed", "error", err)
	}
	return <-errCh
}

// pruneJournal drops old navigation events once an hour.
func pruneJournal(ctx context.Context, store *journal.Store, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := store.Prune(ctx, time.Now().Add(-journalRetention)); err != nil {
				logger.Warn("journal prune failed", "error", err)
			}
		}
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "port to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveIndexURL, "index", "", "index URL or file (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
