package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/barysiuk/profiler/internal/core"
	"github.com/barysiuk/profiler/internal/core/host"
	"github.com/barysiuk/profiler/internal/core/store"
)

// deps holds shared dependencies for CLI commands.
type deps struct {
	config *core.ConfigManager
	cfg    *core.Config
	env    *core.EnvResolver
}

// newDeps loads the configuration selected by --config-dir and fills its
// secrets from the environment. Called lazily by commands that need it.
func newDeps(cmd *cobra.Command) (*deps, error) {
	var config *core.ConfigManager
	if dir, _ := cmd.Flags().GetString("config-dir"); dir != "" {
		config = core.NewConfigManagerWithDir(core.ExpandPath(dir))
	} else {
		var err error
		config, err = core.NewConfigManager()
		if err != nil {
			return nil, fmt.Errorf("initializing config: %w", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	env := core.NewEnvResolver(config.ConfigDir())
	env.Apply(cfg)

	return &deps{
		config: config,
		cfg:    cfg,
		env:    env,
	}, nil
}

// hostClient connects to the configured host. Callers must Close it.
func (d *deps) hostClient() (*host.Client, error) {
	t, err := host.NewTransport(d.cfg.Host.Transport, d.cfg.Host.URL, d.cfg.Host.Username, d.cfg.Host.Password)
	if err != nil {
		return nil, fmt.Errorf("connecting to host: %w", err)
	}
	return host.NewClient(t, d.cfg.HostOptions()), nil
}

// localStore is the backups directory.
func (d *deps) localStore() *store.DirStore {
	return store.NewDirStore(d.config.BackupsDir(d.cfg))
}

// remoteStore is the configured bucket. It returns store.ErrNotConfigured
// when no bucket is set.
func (d *deps) remoteStore(ctx context.Context) (store.Store, error) {
	keyID, appKey := d.env.StoreCredentials()
	s, err := store.NewS3Store(ctx, store.S3Config{
		Bucket:   d.cfg.Store.Bucket,
		Region:   d.cfg.Store.Region,
		Endpoint: d.cfg.Store.Endpoint,
		Prefix:   d.cfg.Store.Prefix,
		KeyID:    keyID,
		AppKey:   appKey,
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}
