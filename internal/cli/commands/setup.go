package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/campaignhq/campaignhq/internal/api"
	"github.com/campaignhq/campaignhq/internal/cli/config"
	"github.com/campaignhq/campaignhq/internal/cli/output"
	"github.com/campaignhq/campaignhq/internal/state"
	"github.com/campaignhq/campaignhq/internal/wizard"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Store    *state.SQLiteStore
	Client   *api.Client
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with the state store and API client.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cc := NewCommandContextWithoutStore(cmd)

	store, err := openStore(cc.Cfg, cc.Logger)
	if err != nil {
		return nil, nil, err
	}
	cc.Store = store

	client, err := newClient(cc.Cfg, cc.Logger, tokenSource(cc.Cfg, store))
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	cc.Client = client

	cleanup := func() {
		_ = store.Close()
	}
	return cc, cleanup, nil
}

// NewCommandContextWithoutStore creates a CommandContext without a state store
// or client. Useful for commands that only render.
func NewCommandContextWithoutStore(cmd *cobra.Command) *CommandContext {
	cfg := getConfig(cmd.Context())
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// OpenSession opens the wizard session named in the config.
func (cc *CommandContext) OpenSession(ctx context.Context) (*wizard.Session, error) {
	s, err := wizard.Open(ctx, cc.Store, cc.Client, wizard.Options{
		Session: cc.Cfg.Session,
		Logger:  cc.Logger,
	})
	if err != nil {
		return nil, err
	}
	if s.Recovered() {
		cc.Logger.Debug("recovered wizard draft", "session", s.Name(), "step", s.Wizard().Step().String())
	}
	return s, nil
}

// Profile returns the credential profile for the configured backend.
func (cc *CommandContext) Profile() string {
	return profileFor(cc.Cfg)
}

// getConfig returns the configuration stored by the root command, or the
// defaults resolved against the working directory.
func getConfig(ctx context.Context) *config.Config {
	if cfg := config.FromContext(ctx); cfg != nil {
		return cfg
	}
	return config.Defaults()
}

func openStore(cfg *config.Config, logger *slog.Logger) (*state.SQLiteStore, error) {
	stateDir := filepath.Dir(cfg.StatePath)
	if stateDir != "." && stateDir != "" {
		if err := os.MkdirAll(stateDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	return state.OpenStore(cfg.StatePath, logger)
}

func newClient(cfg *config.Config, logger *slog.Logger, ts api.TokenSource) (*api.Client, error) {
	return api.New(cfg.APIURL,
		api.WithTimeout(cfg.Timeout),
		api.WithLogger(logger),
		api.WithWebSocketURL(cfg.WSURL),
		api.WithTokenSource(ts),
	)
}

// profileFor keys stored credentials by backend, so switching api_url never
// sends one server's token to another.
func profileFor(cfg *config.Config) string {
	return cfg.APIURL
}

// tokenSource prefers a configured token and falls back to the stored login.
func tokenSource(cfg *config.Config, store *state.SQLiteStore) api.TokenSource {
	if cfg.Token != "" {
		return api.StaticToken(cfg.Token)
	}
	profile := profileFor(cfg)
	return api.TokenFunc(func(ctx context.Context) (string, error) {
		creds, err := store.LoadCredentials(ctx, profile)
		if err != nil {
			return "", err
		}
		if creds == nil || creds.AccessToken == "" {
			return "", api.ErrNotAuthenticated
		}
		return creds.AccessToken, nil
	})
}

// errCancelled is returned when the user declines a confirmation prompt.
var errCancelled = errors.New("cancelled")
