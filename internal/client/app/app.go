// Package app wires the sync core into one client process and exposes the
// commands the fieldrec binary dispatches to.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/fieldrec/internal/client/api"
	"github.com/dmitrijs2005/fieldrec/internal/client/audiostore"
	"github.com/dmitrijs2005/fieldrec/internal/client/backup"
	"github.com/dmitrijs2005/fieldrec/internal/client/config"
	"github.com/dmitrijs2005/fieldrec/internal/client/queue"
	"github.com/dmitrijs2005/fieldrec/internal/client/reachability"
	"github.com/dmitrijs2005/fieldrec/internal/client/reconcile"
	"github.com/dmitrijs2005/fieldrec/internal/client/repositories/kv"
	"github.com/dmitrijs2005/fieldrec/internal/client/session"
	"github.com/dmitrijs2005/fieldrec/internal/client/store"
	"github.com/dmitrijs2005/fieldrec/internal/client/upload"
	"github.com/dmitrijs2005/fieldrec/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	out     io.Writer
	now     func() time.Time
	stores  *store.Provider
	kv      *kv.SQLiteStore
	session *session.State
	api     *api.Client
	queue   *queue.Queue
	monitor *reachability.Monitor
	history *reconcile.Engine
	sender  *upload.Pipeline
}

type Option func(*App)

func WithOutput(w io.Writer) Option {
	return func(a *App) { a.out = w }
}

func WithLogger(l logging.Logger) Option {
	return func(a *App) { a.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// NewApp opens both local stores, restores the saved session and builds the
// queue, history engine and upload pipeline on top of them.
func NewApp(ctx context.Context, c *config.Config, opts ...Option) (*App, error) {
	a := &App{config: c, out: os.Stdout, now: time.Now}
	for _, o := range opts {
		o(a)
	}
	if a.logger == nil {
		a.logger = logging.New(logging.Options{
			Level:      c.LogLevel,
			Format:     c.LogFormat,
			File:       c.LogFile,
			MaxSizeMB:  10,
			MaxBackups: 3,
		})
	}

	kvs, err := kv.OpenSQLite(ctx, c.KVPath)
	if err != nil {
		return nil, fmt.Errorf("open key-value store: %w", err)
	}
	a.kv = kvs

	a.session = session.New()
	if err := a.session.Load(ctx, kvs); err != nil && !errors.Is(err, session.ErrNoSession) {
		a.logger.Warn(ctx, "saved session unreadable", "error", err)
	}
	if a.session.User() != "" && a.session.Expired(a.now()) {
		a.logger.Warn(ctx, "session token expired, sign in again", "user", a.session.User())
	}

	a.api, err = api.New(api.Config{
		BaseURL:          c.BaseURL,
		Sesion:           api.Sesion{Pais: c.Pais, Sistema: c.Sistema, Ambiente: c.Ambiente},
		VariantCountries: c.VariantCountries,
		Timeout:          c.RequestTimeout,
	}, a.session, a.logger)
	if err != nil {
		_ = kvs.Close()
		return nil, err
	}

	uploader, err := a.newUploader(ctx)
	if err != nil {
		_ = kvs.Close()
		return nil, err
	}

	// The provider opens lazily, so a broken store still leaves the
	// backup path usable.
	a.stores = store.Shared(c.DBPath, a.logger)
	a.queue = queue.New(a.stores, backup.New(kvs, a.logger), a.logger,
		queue.WithQueryTimeout(c.QueryTimeout),
		queue.WithClock(a.now))

	a.monitor = reachability.NewMonitor(a.api.Ping, c.OnlineCheckInterval, a.logger)
	a.history = reconcile.New(a.api, a.queue, kvs, a.monitor.Online, a.logger,
		reconcile.WithFetchTimeout(c.FetchTimeout),
		reconcile.WithObserver(func(s reconcile.State) {
			a.logger.Debug(ctx, "history state", "state", s)
		}))

	pipeOpts := []upload.Option{upload.WithCountListener(func(n int) {
		a.logger.Debug(ctx, "pending count", "count", n)
	})}
	if uploader != nil {
		pipeOpts = append(pipeOpts, upload.WithUploader(uploader))
	}
	a.sender = upload.New(a.queue, a.api, a.history, a.monitor.Online, a.session.User,
		upload.Config{Pais: c.Pais, PurgeBeforeSend: c.PurgeBeforeSend}, a.logger, pipeOpts...)

	a.monitor.OnChange(a.onConnectivity)
	return a, nil
}

func (a *App) newUploader(ctx context.Context) (audiostore.Uploader, error) {
	c := a.config
	switch c.AudioStorage {
	case "", config.StorageNone:
		return nil, nil
	case config.StorageHTTP:
		if c.StorageEndpoint == "" {
			return nil, errors.New("audio storage http needs storage_endpoint")
		}
		return audiostore.NewHTTPUploader(a.api, c.StorageEndpoint, c.StorageFolder, c.Pais), nil
	case config.StorageS3:
		return audiostore.NewS3Uploader(ctx, audiostore.S3Config{
			Region:    c.S3Region,
			Endpoint:  c.S3Endpoint,
			Bucket:    c.S3Bucket,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
			PublicURL: c.S3PublicURL,
		}, c.StorageFolder, c.Pais)
	default:
		return nil, fmt.Errorf("unknown audio storage %q", c.AudioStorage)
	}
}

// onConnectivity replays the backup lists and refreshes the history when
// the server becomes reachable again.
func (a *App) onConnectivity(online bool) {
	ctx := context.Background()
	if !online {
		a.logger.Info(ctx, "switched mode", "mode", ModeOffline)
		return
	}
	a.logger.Info(ctx, "switched mode", "mode", ModeOnline)

	f, err := a.queue.FlushBackups(ctx)
	if err != nil {
		a.logger.Warn(ctx, "backup flush failed", "error", err)
	} else if f.Pending() > 0 {
		a.logger.Warn(ctx, "backup entries left for the next flush", "count", f.Pending())
	}

	if user := a.session.User(); user != "" {
		if _, err := a.history.Load(ctx, user); err != nil {
			a.logger.Warn(ctx, "history refresh failed", "error", err)
		}
	}
}

func (a *App) mode() Mode {
	if a.monitor.Online() {
		return ModeOnline
	}
	return ModeOffline
}

// Close releases the cached store handle and the key-value file.
func (a *App) Close() error {
	return errors.Join(a.stores.Reset(), a.kv.Close())
}
