package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tingold/geoconform"
)

var srsDiffCmd = &cobra.Command{
	Use:   "srs-diff <expected.wkt> <actual.wkt>",
	Short: "Compare two WKT spatial reference definitions",
	Long: `Compare two WKT spatial reference definitions the way conformance cases
do: names and formatting are ignored, datum, ellipsoid, units and projection
parameters must match. Exits 1 when they differ.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		var srs [2]*geoconform.SpatialReference
		for i, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				die("%s", err)
			}
			if srs[i], err = geoconform.ParseSRS(string(data)); err != nil {
				die("%s: %s", path, err)
			}
		}
		if diff := srs[0].Compare(srs[1]); diff != nil {
			fmt.Fprintln(cmd.OutOrStdout(), diff.String())
			os.Exit(1)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "equivalent")
	},
}

func init() {
	rootCmd.AddCommand(srsDiffCmd)
}
