package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/zjrosen/datarep/internal/format"
	"github.com/zjrosen/datarep/internal/presentation"
	"github.com/zjrosen/datarep/internal/tracing"
)

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List supported element formats",
	Long: `List every supported element format with its class, component count,
bit width, size in bytes and representable range.

Examples:
  datarep formats
  datarep formats --json | jq '.[] | select(.class == "FLOAT") | .name'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return tracing.RunCommand(cmd.Context(), nil, "formats", func(context.Context) error {
			return formatter(cmd).FormatFormats(presentation.FromDescriptors(format.All()))
		})
	},
}

func init() {
	rootCmd.AddCommand(formatsCmd)
}
