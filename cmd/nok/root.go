package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/xonecas/nok/internal/alert"
	"github.com/xonecas/nok/internal/chat"
	"github.com/xonecas/nok/internal/config"
	"github.com/xonecas/nok/internal/core"
	"github.com/xonecas/nok/internal/matrix"
	"github.com/xonecas/nok/internal/office"
	"github.com/xonecas/nok/internal/store"
	"github.com/xonecas/nok/internal/tui"
)

// flags holds the command line overrides. Empty values leave the config
// untouched.
type flags struct {
	homeserver string
	username   string
	backend    string
	configPath string
	debug      bool
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "nok",
		Short: "Terminal chat client for Matrix homeservers",
		Long: `nok is a keyboard-driven terminal chat client. It talks to a Matrix
homeserver, or to an office chat backend over websocket, and lets you
knock on other users to get their attention.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(f)
		},
	}
	cmd.SetVersionTemplate("nok {{.Version}}\n")

	pf := cmd.PersistentFlags()
	pf.StringVar(&f.homeserver, "homeserver", "", "Server URL (homeserver for matrix, base URL for office)")
	pf.StringVar(&f.username, "username", "", "Username to prefill on the login screen")
	pf.StringVar(&f.backend, "backend", "", "Chat backend: matrix or office")
	pf.StringVar(&f.configPath, "config", "", "Path to config file (default ~/.nok/config.toml)")
	pf.BoolVar(&f.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(newForgetDeviceCmd(&f))
	return cmd
}

// loadConfig resolves the config file, then applies flags on top of the
// file and environment.
func loadConfig(f flags) (*config.Config, error) {
	path := f.configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
		path = p
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := applyFlags(cfg, f); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyFlags(cfg *config.Config, f flags) error {
	if f.backend != "" {
		cfg.Backend = f.backend
	}
	if f.username != "" {
		cfg.Username = f.username
	}
	if f.homeserver != "" {
		cfg.SetServerURL(f.homeserver)
	}
	return cfg.Validate()
}

func initLogging(debug bool) error {
	dataDir, err := config.EnsureDataDir()
	if err != nil {
		return fmt.Errorf("ensure data dir: %w", err)
	}

	// Truncate on startup.
	logPath := filepath.Join(dataDir, "nok.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// The TUI owns stdout and stderr.
	log.Logger = zerolog.New(logFile).With().Timestamp().Logger()
	return nil
}

// service is a messaging client that owns background connections.
type service interface {
	chat.Service
	Close()
}

// newService builds the messaging client for the configured backend.
func newService(cfg *config.Config, s *store.Store) service {
	if cfg.Backend == config.BackendOffice {
		return office.NewClient(cfg.Office.BaseURL, cfg.Matrix.RequestTimeout)
	}
	return matrix.NewClient(matrix.Config{
		Homeserver:     cfg.Matrix.Homeserver,
		ServerName:     cfg.Matrix.ServerName,
		DeviceID:       cfg.Matrix.DeviceID,
		DeviceName:     cfg.Matrix.DeviceName,
		SyncTimeout:    cfg.Matrix.SyncTimeout,
		RequestTimeout: cfg.Matrix.RequestTimeout,
		RateLimit:      cfg.Matrix.RateLimit,
		RateBurst:      cfg.Matrix.RateBurst,
	}, s)
}

// sessionTracker records logins and logouts for the TUI hooks.
type sessionTracker struct {
	store   *store.Store
	backend string
	current int64
}

func (t *sessionTracker) signIn(user chat.User, username, server string) {
	sess, err := t.store.RecordLogin(t.backend, server, username, user.ID)
	if err != nil {
		log.Warn().Err(err).Str("user", user.ID).Msg("Failed to record login")
		return
	}
	t.current = sess.ID
}

func (t *sessionTracker) signOut(user chat.User) {
	if t.current == 0 {
		return
	}
	if err := t.store.RecordLogout(t.current); err != nil {
		log.Warn().Err(err).Str("user", user.ID).Msg("Failed to record logout")
	}
	t.current = 0
}

func run(f flags) error {
	if err := initLogging(f.debug); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	log.Info().Str("version", Version).Msg("Starting nok")

	cfg, err := loadConfig(f)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log.Debug().Interface("config", cfg).Msg("Configuration loaded")

	s, err := store.New()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	username := cfg.Username
	server := cfg.ServerURL()
	if last, err := s.LastSession(cfg.Backend); err != nil {
		log.Warn().Err(err).Msg("Failed to read last session")
	} else if last != nil {
		if username == "" {
			username = last.Username
		}
		if server == "" {
			server = last.Server
		}
	}

	svc := newService(cfg, s)
	defer svc.Close()

	alerter := alert.New(cfg.Audio.Enabled)
	defer alerter.Wait()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl := core.NewController(ctx, svc, core.Options{
		Timing: core.Timing{
			NotificationTTL:      cfg.UI.NotificationTTL,
			ShortNotificationTTL: cfg.UI.ShortNotificationTTL,
		},
		Alerter: alerter,
	})
	defer ctrl.Close()

	tracker := &sessionTracker{store: s, backend: cfg.Backend}
	model := tui.New(ctrl, tui.Options{
		Backend:       cfg.Backend,
		Server:        server,
		Username:      username,
		NeedsPassword: cfg.Backend == config.BackendMatrix,
		OnSignIn:      tracker.signIn,
		OnSignOut:     tracker.signOut,
	})
	program := tea.NewProgram(model, tea.WithAltScreen())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			log.Info().Msg("Received shutdown signal")
			program.Quit()
		case <-ctx.Done():
		}
	}()

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run tui: %w", err)
	}

	// Quitting without logging out still ends the recorded session.
	if tracker.current != 0 {
		if err := s.RecordLogout(tracker.current); err != nil {
			log.Warn().Err(err).Msg("Failed to close session")
		}
	}

	log.Info().Msg("nok shutdown complete")
	return nil
}
