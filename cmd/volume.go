package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zjrosen/datarep/internal/format"
	"github.com/zjrosen/datarep/internal/presentation"
	"github.com/zjrosen/datarep/internal/representation"
	"github.com/zjrosen/datarep/internal/volume"
)

var (
	volFormat string
	volDims   string
	volFill   float64
	volTo     string
)

var volumeCmd = &cobra.Command{
	Use:   "volume",
	Short: "Create, convert and inspect stored volumes",
}

var volumeCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a volume filled with a constant and save it to the store",
	Long: `Create a volume in memory, fill every element with --fill and save it to
the blob store. The new blob key is printed with the volume state.

Examples:
  datarep volume create --format FLOAT32 --dims 64,64,32 --fill 0.5
  datarep volume create --format vec4uint8 --dims 8,8,8 --json | jq -r .location`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := format.Parse(volFormat)
		if err != nil {
			return err
		}
		dims, err := parseDims(volDims)
		if err != nil {
			return err
		}
		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			v, err := volume.New(rt.scope, f, dims)
			if err != nil {
				return err
			}
			defer func() { _ = v.Close() }()

			ram, err := v.EditableRAM(ctx)
			if err != nil {
				return err
			}
			ram.Fill(volFill)
			if _, err := v.Save(ctx); err != nil {
				return err
			}
			return formatter(cmd).FormatVolume(describeVolume(v, nil))
		})
	},
}

var volumeConvertCmd = &cobra.Command{
	Use:   "convert <key>",
	Short: "Load a stored volume and convert it to another kind",
	Long: `Open the volume stored under <key> and bring the --to representation up to
date, printing which representations were produced along the way.

Examples:
  datarep volume convert volume/0b7c... --to gpu`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			v, err := openVolume(ctx, rt, args[0])
			if err != nil {
				return err
			}
			defer func() { _ = v.Close() }()

			if err := v.Read(ctx, representation.Kind(volTo), func(representation.Representation) error { return nil }); err != nil {
				return err
			}
			return formatter(cmd).FormatVolume(describeVolume(v, nil))
		})
	},
}

var volumeInspectCmd = &cobra.Command{
	Use:   "inspect <key>",
	Short: "Show a stored volume's layout and value statistics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			v, err := openVolume(ctx, rt, args[0])
			if err != nil {
				return err
			}
			defer func() { _ = v.Close() }()

			ram, err := v.RAM(ctx)
			if err != nil {
				return err
			}
			return formatter(cmd).FormatVolume(describeVolume(v, presentation.StatsOf(ram.Data())))
		})
	},
}

var volumeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored volumes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			infos, err := rt.db.Blobs().List(ctx)
			if err != nil {
				return err
			}
			return formatter(cmd).FormatBlobs(presentation.FromBlobInfos(infos))
		})
	},
}

var volumeRemoveCmd = &cobra.Command{
	Use:   "rm <key>",
	Short: "Delete a stored volume",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			if err := rt.db.Blobs().Delete(ctx, args[0]); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "removed", args[0])
			return err
		})
	},
}

// parseDims reads "x,y,z" or "xXyXz" extents.
func parseDims(s string) ([]int, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == 'x' || r == 'X' })
	dims := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("invalid dims %q: %w", s, err)
		}
		dims[i] = n
	}
	return dims, nil
}

// openVolume opens the stored volume under key using the layout recorded
// with its blob.
func openVolume(ctx context.Context, rt *runtime, key string) (*volume.Volume, error) {
	blob, err := rt.db.Blobs().Get(ctx, key)
	if err != nil {
		return nil, err
	}
	f, err := format.Parse(blob.Format)
	if err != nil {
		return nil, fmt.Errorf("blob %s: %w", key, err)
	}
	return volume.Open(ctx, rt.scope, key, f, blob.Dims)
}

func describeVolume(v *volume.Volume, stats *presentation.ValueStatsDTO) presentation.VolumeDTO {
	location, _ := v.Location()
	states := v.State()
	kinds := make([]presentation.KindState, len(states))
	for i, s := range states {
		kinds[i] = presentation.KindState{Kind: s.Kind, Stale: s.Stale, Authoritative: s.Authoritative}
	}
	dto := presentation.FromVolumeState(location, v.Format(), v.Dims(), kinds)
	dto.Values = stats
	return dto
}

func init() {
	volumeCreateCmd.Flags().StringVar(&volFormat, "format", "FLOAT32", "element format, e.g. FLOAT32, Vec3UINT8, int16")
	volumeCreateCmd.Flags().StringVar(&volDims, "dims", "4,4,4", "extents x,y,z")
	volumeCreateCmd.Flags().Float64Var(&volFill, "fill", 0, "initial value of every element")

	volumeConvertCmd.Flags().StringVar(&volTo, "to", string(volume.KindGPU), "kind to convert to (ram, gpu, disk)")

	volumeCmd.AddCommand(volumeCreateCmd, volumeConvertCmd, volumeInspectCmd, volumeListCmd, volumeRemoveCmd)
	rootCmd.AddCommand(volumeCmd)
}
