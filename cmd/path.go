package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/datarep/internal/presentation"
	"github.com/zjrosen/datarep/internal/representation"
)

var pathFrom []string

var pathCmd = &cobra.Command{
	Use:   "path <family> <target>",
	Short: "Show the conversion path to a kind",
	Long: `Resolve the shortest conversion path that produces <target> from the
kinds given with --from. With no --from the search starts from source-less
rules, the way a new data object bootstraps.

Examples:
  datarep path volume gpu --from disk
  datarep path volume disk --from gpu --from ram`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		family := representation.Family(args[0])
		target := representation.Kind(args[1])
		available := make([]representation.Kind, len(pathFrom))
		for i, k := range pathFrom {
			available[i] = representation.Kind(k)
		}

		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			pair, ok := rt.scope.Lookup(family)
			if !ok {
				return fmt.Errorf("unknown family %q", family)
			}
			path, found := pair.Conversions.Resolve(available, target)
			return formatter(cmd).FormatPath(presentation.FromPath(family, available, target, path, found))
		})
	},
}

func init() {
	pathCmd.Flags().StringArrayVarP(&pathFrom, "from", "f", nil, "kind already available (repeatable, in preference order)")
	rootCmd.AddCommand(pathCmd)
}
