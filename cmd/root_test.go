package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/datarep/internal/config"
	"github.com/zjrosen/datarep/internal/format"
	"github.com/zjrosen/datarep/internal/infrastructure/sqlite"
	"github.com/zjrosen/datarep/internal/presentation"
	"github.com/zjrosen/datarep/internal/volume"
)

// resetFlags restores every flag to its default so that consecutive
// Execute calls on the shared rootCmd do not leak state.
func resetFlags(c *cobra.Command) {
	for _, fs := range []*pflag.FlagSet{c.Flags(), c.PersistentFlags()} {
		fs.VisitAll(func(f *pflag.Flag) {
			if sv, ok := f.Value.(pflag.SliceValue); ok {
				_ = sv.Replace(nil)
			} else {
				_ = f.Value.Set(f.DefValue)
			}
			f.Changed = false
		})
	}
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// writeConfig writes a config pointing the store into a temp directory.
func writeConfig(t *testing.T, mutate func(*config.Config)) string {
	t.Helper()
	dir := t.TempDir()
	c := config.Defaults()
	c.Store.Path = filepath.Join(dir, "volumes.db")
	c.Watch.Debounce = 50 * time.Millisecond
	if mutate != nil {
		mutate(&c)
	}
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, config.Save(path, c))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func executeJSON(t *testing.T, cfgPath string, v any, args ...string) {
	t.Helper()
	out, err := execute(t, append([]string{"--config", cfgPath, "--json"}, args...)...)
	require.NoError(t, err, out)
	require.NoError(t, json.Unmarshal([]byte(out), v), out)
}

func TestFormats(t *testing.T) {
	cfgPath := writeConfig(t, nil)

	var formats []presentation.FormatDTO
	executeJSON(t, cfgPath, &formats, "formats")
	require.Len(t, formats, len(format.All()))

	out, err := execute(t, "--config", cfgPath, "formats")
	require.NoError(t, err)
	require.Contains(t, out, "Vec3UINT8")
	require.Contains(t, out, "RANGE")
}

func TestFamilies(t *testing.T) {
	cfgPath := writeConfig(t, nil)

	var families []presentation.FamilyDTO
	executeJSON(t, cfgPath, &families, "families")
	require.Len(t, families, 2)
	require.Equal(t, "buffer", families[0].Family)
	require.Equal(t, "volume", families[1].Family)
	require.Equal(t, []string{"disk", "gpu", "ram"}, families[1].Creators)

	var rules []string
	for _, r := range families[1].Rules {
		rules = append(rules, r.Name)
		require.True(t, r.Updates, "%s should refresh in place", r.Name)
	}
	require.Equal(t, []string{"disk->ram", "gpu->ram", "ram->disk", "ram->gpu"}, rules)
}

func TestPath(t *testing.T) {
	cfgPath := writeConfig(t, nil)

	var path presentation.PathDTO
	executeJSON(t, cfgPath, &path, "path", "volume", "gpu", "--from", "disk")
	require.True(t, path.Found)
	require.Equal(t, []string{"disk->ram", "ram->gpu"}, path.Hops)

	var direct presentation.PathDTO
	executeJSON(t, cfgPath, &direct, "path", "volume", "disk", "--from", "gpu", "--from", "ram")
	require.Equal(t, []string{"ram->disk"}, direct.Hops, "ram is one hop closer than gpu")

	var none presentation.PathDTO
	executeJSON(t, cfgPath, &none, "path", "buffer", "disk", "--from", "ram")
	require.False(t, none.Found)
}

func TestPath_UnknownFamily(t *testing.T) {
	cfgPath := writeConfig(t, nil)

	_, err := execute(t, "--config", cfgPath, "path", "mesh", "gpu")
	require.Error(t, err)
	require.Contains(t, err.Error(), `unknown family "mesh"`)
}

func TestVolumeLifecycle(t *testing.T) {
	cfgPath := writeConfig(t, nil)

	var created presentation.VolumeDTO
	executeJSON(t, cfgPath, &created, "volume", "create", "--format", "uint8", "--dims", "2,2,2", "--fill", "7")
	require.NotEmpty(t, created.Location)
	require.Equal(t, "UINT8", created.Format)
	require.Equal(t, []int{2, 2, 2}, created.Dims)
	key := created.Location

	var inspected presentation.VolumeDTO
	executeJSON(t, cfgPath, &inspected, "volume", "inspect", key)
	require.NotNil(t, inspected.Values)
	require.Equal(t, &presentation.ValueStatsDTO{Count: 8, Min: 7, Max: 7, Mean: 7}, inspected.Values)

	var converted presentation.VolumeDTO
	executeJSON(t, cfgPath, &converted, "volume", "convert", key, "--to", "gpu")
	require.Equal(t, []presentation.KindStateDTO{
		{Kind: "disk", Authoritative: true},
		{Kind: "gpu"},
		{Kind: "ram"},
	}, converted.Kinds)

	var blobs []presentation.BlobDTO
	executeJSON(t, cfgPath, &blobs, "volume", "list")
	require.Len(t, blobs, 1)
	require.Equal(t, key, blobs[0].Key)
	require.Equal(t, 8, blobs[0].Size)

	out, err := execute(t, "--config", cfgPath, "volume", "rm", key)
	require.NoError(t, err)
	require.Contains(t, out, "removed "+key)

	blobs = nil
	executeJSON(t, cfgPath, &blobs, "volume", "list")
	require.Empty(t, blobs)

	_, err = execute(t, "--config", cfgPath, "volume", "inspect", key)
	require.ErrorIs(t, err, sqlite.ErrBlobNotFound)
}

func TestVolumeCreate_RejectsBadInput(t *testing.T) {
	cfgPath := writeConfig(t, nil)

	_, err := execute(t, "--config", cfgPath, "volume", "create", "--format", "FLOAT12")
	require.ErrorIs(t, err, format.ErrUnknownFormat)

	_, err = execute(t, "--config", cfgPath, "volume", "create", "--dims", "2,two,2")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid dims")

	_, err = execute(t, "--config", cfgPath, "volume", "create", "--dims", "2,2")
	require.Error(t, err)
	require.Contains(t, err.Error(), "3 dimensions")
}

func TestStoreFlagOverridesConfig(t *testing.T) {
	cfgPath := writeConfig(t, nil)
	store := filepath.Join(t.TempDir(), "other.db")

	_, err := execute(t, "--config", cfgPath, "--store", store, "volume", "create")
	require.NoError(t, err)

	_, err = os.Stat(store)
	require.NoError(t, err)
}

func TestInvalidConfigIsRejected(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("log:\n  level: chatty\n"), 0o600))

	_, err := execute(t, "--config", cfgPath, "families")
	require.Error(t, err)
	require.Contains(t, err.Error(), "log.level")
}

func TestInitConfig_WritesDefaultWhenMissing(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", dir)

	_, err := execute(t, "formats")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, ".datarep", "config.yaml"))
	require.NoError(t, err)
}

func TestCommandName(t *testing.T) {
	require.Equal(t, "volume.create", commandName(volumeCreateCmd))
	require.Equal(t, "families", commandName(familiesCmd))
}

func TestParseDims(t *testing.T) {
	dims, err := parseDims("64x32x8")
	require.NoError(t, err)
	require.Equal(t, []int{64, 32, 8}, dims)

	dims, err = parseDims("1, 2, 3")
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, dims)
}

func TestRuntime_ReopensAfterClose(t *testing.T) {
	c := config.Defaults()
	c.Store.Path = filepath.Join(t.TempDir(), "volumes.db")

	rt, err := newRuntime(c)
	require.NoError(t, err)
	require.NoError(t, rt.Close())

	rt, err = newRuntime(c)
	require.NoError(t, err, "the process directory is released on close")
	require.NoError(t, rt.Close())
}

// syncBuffer guards a bytes.Buffer written from the watch goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchVolume_ReportsExternalRewrite(t *testing.T) {
	c := config.Defaults()
	c.Store.Path = filepath.Join(t.TempDir(), "volumes.db")
	c.Watch.Debounce = 20 * time.Millisecond

	rt, err := newRuntime(c)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	ctx := context.Background()
	f := format.MustLookup(format.Float, 1, 32)
	v, err := volume.New(rt.scope, f, []int{1, 1, 2})
	require.NoError(t, err)
	key, err := v.Save(ctx)
	require.NoError(t, err)
	require.NoError(t, v.Close())

	out := &syncBuffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(out)

	watchCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- watchVolume(watchCtx, cmd, rt, key) }()

	require.Eventually(t, func() bool { return strings.Count(out.String(), "KIND") == 1 }, 2*time.Second, 10*time.Millisecond)

	data, err := format.Encode(f, []float64{3, 4})
	require.NoError(t, err)
	require.NoError(t, rt.db.Blobs().Put(ctx, &sqlite.Blob{Key: key, Format: f.Name(), Dims: []int{1, 1, 2}, Data: data}))

	require.Eventually(t, func() bool { return strings.Count(out.String(), "KIND") >= 2 }, 5*time.Second, 20*time.Millisecond)
	require.Contains(t, out.String(), "mean 3.5")

	cancel()
	require.NoError(t, <-done)
}
