package cmd

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tingold/geoconform"
	"github.com/tingold/geoconform/report"
)

var runCmd = &cobra.Command{
	Use:   "run <suite.yaml>...",
	Short: "Run the cases of one or more suite files",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		run, err := runSuites(ctx, args)
		if err != nil {
			die("%s", err)
		}
		format, err := report.ParseFormat(viper.GetString("format"))
		if err != nil {
			die("%s", err)
		}

		if path := viper.GetString("results_db"); path != "" {
			store, err := report.OpenStore(ctx, path)
			if err != nil {
				die("failed to open results database: %s", err)
			}
			defer store.Close()
			if err := store.Save(ctx, run); err != nil {
				die("failed to save results: %s", err)
			}
		}

		if err := report.Write(cmd.OutOrStdout(), run, format); err != nil {
			die("failed to write report: %s", err)
		}
		if run.Err != nil || !run.Summary().OK() {
			os.Exit(1)
		}
	},
}

// runSuites loads every suite and runs their cases together.
func runSuites(ctx context.Context, paths []string) (*report.Run, error) {
	log := logger()
	var cases []*geoconform.Case
	for _, path := range paths {
		loaded, err := geoconform.LoadSuite(path)
		if err != nil {
			return nil, err
		}
		cases = append(cases, loaded...)
	}

	reg, err := newRegistry(log)
	if err != nil {
		return nil, err
	}
	runner := geoconform.NewRunner(reg,
		geoconform.WithParallelism(viper.GetInt("parallelism")),
		geoconform.WithCaseTimeout(viper.GetDuration("timeout")),
		geoconform.WithAbortOnDriverNotFound(!viper.GetBool("keep_going")),
		geoconform.WithLogger(log.WithName("runner")),
	)

	run := &report.Run{Suites: paths, Started: time.Now()}
	run.Results, run.Err = runner.Run(ctx, cases)
	run.Duration = time.Since(run.Started)
	return run, nil
}

func init() {
	flags := runCmd.Flags()
	flags.IntP("parallelism", "j", 0, "cases to run at once (default: number of CPUs)")
	flags.Duration("timeout", 0, "per-case timeout, 0 for none")
	flags.StringP("format", "f", string(report.FormatTable), "output format: table or json")
	flags.String("results-db", "", "SQLite database to append results to")
	flags.Bool("keep-going", false, "do not abort the run when a driver is missing")
	for key, flag := range map[string]string{
		"parallelism": "parallelism",
		"timeout":     "timeout",
		"format":      "format",
		"results_db":  "results-db",
		"keep_going":  "keep-going",
	} {
		cobra.CheckErr(viper.BindPFlag(key, flags.Lookup(flag)))
	}
	rootCmd.AddCommand(runCmd)
}
