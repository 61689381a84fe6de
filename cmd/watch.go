package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zjrosen/datarep/internal/log"
	"github.com/zjrosen/datarep/internal/presentation"
	"github.com/zjrosen/datarep/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch <key>",
	Short: "Follow a stored volume and report external rewrites",
	Long: `Open the volume stored under <key> and watch the blob store. Whenever
another process rewrites the blob, the volume's disk representation becomes
authoritative again and the new state is printed. Stop with Ctrl-C.

Examples:
  datarep watch volume/0b7c...
  datarep watch volume/0b7c... --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watchVolume(ctx, cmd, rt, args[0])
		})
	},
}

// watchVolume blocks until ctx is done, printing the volume state and value
// statistics once up front and again after every external rewrite.
func watchVolume(ctx context.Context, cmd *cobra.Command, rt *runtime, key string) error {
	v, err := openVolume(ctx, rt, key)
	if err != nil {
		return err
	}
	defer func() { _ = v.Close() }()

	w, err := watcher.New(watcher.Config{Path: rt.db.Path(), DebounceDur: rt.cfg.Watch.Debounce})
	if err != nil {
		return err
	}
	changes, err := w.Start()
	if err != nil {
		_ = w.Stop()
		return err
	}
	defer func() { _ = w.Stop() }()

	out := formatter(cmd)
	report := func() error {
		// Reading ram loads the blob, which is what Sync compares against.
		ram, err := v.RAM(ctx)
		if err != nil {
			return err
		}
		return out.FormatVolume(describeVolume(v, presentation.StatsOf(ram.Data())))
	}
	if err := report(); err != nil {
		return err
	}

	w.Notify(ctx, changes, func() {
		changed, err := v.Sync(ctx)
		if err != nil {
			log.ErrorErr(log.CatWatcher, "sync after store change", err, "key", key)
			return
		}
		if !changed {
			return
		}
		if err := report(); err != nil {
			log.ErrorErr(log.CatWatcher, "report volume state", err, "key", key)
		}
	})
	return nil
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
