package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/zjrosen/datarep/internal/presentation"
)

var familiesCmd = &cobra.Command{
	Use:   "families",
	Short: "List registered families with their creators and conversion rules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
			dtos := make([]presentation.FamilyDTO, 0)
			for _, f := range rt.dir.Families() {
				pair, ok := rt.dir.Get(f)
				if !ok {
					continue
				}
				dtos = append(dtos, presentation.FromPair(pair))
			}
			return formatter(cmd).FormatFamilies(dtos)
		})
	},
}

func init() {
	rootCmd.AddCommand(familiesCmd)
}
