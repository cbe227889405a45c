package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tingold/geoconform/internal/fixture"
)

var fixtureCmd = &cobra.Command{
	Use:   "fixture [dir]",
	Short: "Write the sample datasets and a suite that checks them",
	Long: `Write a GRASS-style elevation raster, a three layer FlatGeobuf vector
dataset and a conformance.yaml suite to dir (default: the current directory).
Run the suite with "geoconform run dir/conformance.yaml".`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			die("%s", err)
		}
		suite, err := fixture.WriteAll(dir)
		if err != nil {
			die("failed to write fixtures: %s", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), suite)
	},
}

func init() {
	rootCmd.AddCommand(fixtureCmd)
}
