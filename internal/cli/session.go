package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"mrilo/internal/client"
	"mrilo/internal/config"
	"mrilo/internal/repository/localstore"
	"mrilo/internal/service/history"
)

// KeyAuthToken is the local storage key of the Supabase access token
const KeyAuthToken = "sb-auth-token"

// session is everything one command invocation works with
type session struct {
	storage history.LocalStorage
	client  *client.Client
	store   *history.Store
	logger  *slog.Logger
	closers []func() error
}

// openSession is replaced in tests
var openSession = defaultOpenSession

func defaultOpenSession(cmd *cobra.Command) (_ *session, err error) {
	logger, closeLog, err := openLogger(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	if closeLog != nil {
		defer func() {
			if err != nil {
				closeLog()
			}
		}()
	}

	path := dataPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, ".mrilo", "local.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	storage, err := localstore.OpenSQLite(path, logger)
	if err != nil {
		return nil, err
	}

	s, err := newSession(ctxOf(cmd), storage, serverURL, nil, logger, cmd.ErrOrStderr())
	if err != nil {
		storage.Close()
		return nil, err
	}
	s.closers = append(s.closers, storage.Close)
	if closeLog != nil {
		s.closers = append(s.closers, closeLog)
	}
	return s, nil
}

// newSession wires the history store to storage and the server at baseURL
func newSession(ctx context.Context, storage history.LocalStorage, baseURL string, httpClient *http.Client, logger *slog.Logger, errOut io.Writer) (*session, error) {
	token, _, err := storage.Get(ctx, KeyAuthToken)
	if err != nil {
		return nil, fmt.Errorf("failed to read auth token: %w", err)
	}

	var opts []client.Option
	if token != "" {
		opts = append(opts, client.WithToken(token))
	}
	if httpClient != nil {
		opts = append(opts, client.WithHTTPClient(httpClient))
	}
	c := client.New(baseURL, logger, opts...)

	cfg := history.Config{
		Storage: storage,
		Chat:    c,
		Notifier: history.NotifierFunc(func(title, message string) {
			fmt.Fprintf(errOut, "%s %s\n", errorStyle.Render(title+":"), message)
		}),
		Logger: logger,
	}
	if c.HasToken() {
		cfg.Remote = c
	}
	store := history.NewStore(cfg)

	user, err := history.LoadUser(ctx, storage)
	if err != nil {
		logger.Warn("stored user is unreadable, continuing signed out", "error", err)
	}
	store.SetUser(ctx, user)

	return &session{
		storage: storage,
		client:  c,
		store:   store,
		logger:  logger,
	}, nil
}

// Close releases the session's resources in reverse order
func (s *session) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// openLogger is replaced in tests
var openLogger = newLogger

// newLogger logs warnings to errOut, everything with --verbose, and to a
// rotated file when a log directory is set.
func newLogger(errOut io.Writer) (*slog.Logger, func() error, error) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	if logDir == "" {
		return slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level})), nil, nil
	}

	f, err := config.SetupLogFile(logDir, "mrilo", config.MaxLogFiles)
	if err != nil {
		return nil, nil, err
	}
	handler := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(handler), f.Close, nil
}
