package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/zjrosen/datarep/internal/buffer"
	"github.com/zjrosen/datarep/internal/cachemanager"
	"github.com/zjrosen/datarep/internal/config"
	"github.com/zjrosen/datarep/internal/gpu"
	"github.com/zjrosen/datarep/internal/infrastructure/sqlite"
	"github.com/zjrosen/datarep/internal/log"
	"github.com/zjrosen/datarep/internal/registry"
	"github.com/zjrosen/datarep/internal/representation"
	"github.com/zjrosen/datarep/internal/tracing"
	"github.com/zjrosen/datarep/internal/volume"
)

// runtime is everything a command needs: the process registry directory
// with the volume and buffer families installed, the blob store and the
// emulated device.
type runtime struct {
	cfg      config.Config
	tracing  *tracing.Provider
	dir      *registry.Directory
	scope    *registry.Scope
	db       *sqlite.DB
	device   *gpu.MemoryDevice
	handles  representation.Handles
	closeLog func()
}

func newRuntime(cfg config.Config) (*runtime, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	rt := &runtime{cfg: cfg}
	if err := rt.open(); err != nil {
		_ = rt.Close()
		return nil, err
	}
	log.Debug(log.CatConfig, "runtime ready", "store", rt.db.Path(), "families", len(rt.dir.Families()))
	return rt, nil
}

func (rt *runtime) open() error {
	cfg := rt.cfg
	var err error

	if cfg.Log.Enabled {
		closeLog, err := log.InitWithTeaLog(cfg.Log.Path, "datarep")
		if err != nil {
			return fmt.Errorf("opening log: %w", err)
		}
		rt.closeLog = closeLog
		if level, err := log.ParseLevel(cfg.Log.Level); err == nil {
			log.SetMinLevel(level)
		}
	}

	rt.tracing, err = tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("starting tracing: %w", err)
	}

	rt.db, err = sqlite.NewDB(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	var devOpts []gpu.Option
	if cfg.Device.MaxTextures > 0 {
		devOpts = append(devOpts, gpu.WithMaxTextures(cfg.Device.MaxTextures))
	}
	rt.device = gpu.NewMemoryDevice(devOpts...)

	rt.dir, err = registry.Init()
	if err != nil {
		return err
	}

	volumes := registry.NewPair(volume.Family, rt.conversionOptions(volume.Family)...)
	rt.handles = append(rt.handles, volume.Module{Device: rt.device, Store: rt.db.Blobs()}.Register(volumes)...)
	rt.handles = append(rt.handles, rt.dir.RegisterFamily(volume.Family, volumes))

	buffers := registry.NewPair(buffer.Family, rt.conversionOptions(buffer.Family)...)
	rt.handles = append(rt.handles, buffer.Module{Device: rt.device}.Register(buffers)...)
	rt.handles = append(rt.handles, rt.dir.RegisterFamily(buffer.Family, buffers))

	rt.scope = registry.NewScope(registry.WithDirectory(rt.dir))
	return nil
}

func (rt *runtime) conversionOptions(family representation.Family) []representation.ConversionOption {
	opts := []representation.ConversionOption{representation.WithTracer(rt.tracing.Tracer())}
	if rt.cfg.PathCache.Enabled {
		ttl := rt.cfg.PathCache.TTL
		cache := cachemanager.NewInMemoryCacheManager[string, representation.Path]("paths:"+string(family), ttl, 2*ttl)
		opts = append(opts, representation.WithPathCache(cache, ttl))
	}
	return opts
}

// Close releases registrations and shuts everything down in reverse order.
func (rt *runtime) Close() error {
	var errs []error
	rt.handles.Release()
	rt.handles = nil
	if rt.dir != nil {
		errs = append(errs, registry.Shutdown())
		rt.dir = nil
	}
	if rt.db != nil {
		errs = append(errs, rt.db.Close())
		rt.db = nil
	}
	if rt.tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, rt.tracing.Shutdown(ctx))
		cancel()
		rt.tracing = nil
	}
	if rt.closeLog != nil {
		rt.closeLog()
		rt.closeLog = nil
	}
	return errors.Join(errs...)
}

// withRuntime opens a runtime for the duration of fn and wraps fn in a
// command span.
func withRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *runtime) error) (err error) {
	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rt.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return tracing.RunCommand(cmd.Context(), rt.tracing.Tracer(), commandName(cmd), func(ctx context.Context) error {
		return fn(ctx, rt)
	})
}

// commandName turns "datarep volume create" into "volume.create".
func commandName(cmd *cobra.Command) string {
	path := strings.TrimPrefix(cmd.CommandPath(), cmd.Root().Name()+" ")
	return strings.ReplaceAll(path, " ", ".")
}
