package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"versync/internal/config"
	"versync/internal/history"
	"versync/internal/peer"
	"versync/internal/storage"
	"versync/internal/syncer"
	"versync/internal/transfer"
)

// repo bundles what the repository commands operate on.
type repo struct {
	cfg     config.Config
	log     *logrus.Entry
	store   storage.Store
	backend transfer.Backend
	syncer  *syncer.Syncer
}

// loadConfig reads the config file named by --config.
func (o *RootOptions) loadConfig(cmd *cobra.Command) (config.Config, *logrus.Entry, error) {
	cfg, err := config.Load(o.Config)
	if err != nil {
		return config.Config{}, nil, err
	}
	log, err := o.logger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, log, nil
}

// openRepo opens the local store and the remote backend of the configured
// repository.
func (o *RootOptions) openRepo(cmd *cobra.Command) (*repo, error) {
	cfg, log, err := o.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	store, err := storage.OpenSQLite(cfg.Database)
	if err != nil {
		return nil, err
	}
	backend, err := newBackend(cmd.Context(), cfg.Remote)
	if err != nil {
		store.Close()
		return nil, err
	}

	s, err := syncer.New(store, backend, syncer.Options{
		Machine: cfg.Machine,
		History: history.LoaderOptions{Window: cfg.History.Window},
		Timeout: cfg.Sync.Timeout,
		Now:     o.Now,
	}, log)
	if err != nil {
		store.Close()
		backend.Close()
		return nil, err
	}

	return &repo{cfg: cfg, log: log, store: store, backend: backend, syncer: s}, nil
}

func (r *repo) Close() error {
	return multierr.Combine(r.store.Close(), r.backend.Close())
}

// newBackend opens the remote store described by cfg.
func newBackend(ctx context.Context, cfg config.Remote) (transfer.Backend, error) {
	switch cfg.Type {
	case config.RemoteFile:
		return transfer.NewFileBackend(cfg.Path)
	case config.RemoteS3:
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		return transfer.NewS3Backend(ctx, transfer.S3Config{
			Bucket:       cfg.Bucket,
			Region:       cfg.Region,
			Endpoint:     cfg.Endpoint,
			Prefix:       cfg.Prefix,
			UsePathStyle: cfg.PathStyle,
		})
	case config.RemotePeer:
		return peer.Dial(cfg.Addr)
	default:
		return nil, fmt.Errorf("unknown remote type %q", cfg.Type)
	}
}
