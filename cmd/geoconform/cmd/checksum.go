package cmd

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/tingold/geoconform"
)

var checksumCmd = &cobra.Command{
	Use:   "checksum <driver> <path> [band]",
	Short: "Print the checksum and statistics of a raster band",
	Long: `Print the checksum and statistics of a raster band. The band index is
1-based and defaults to 1. A driver of "" tries every registered driver.`,
	Args: cobra.RangeArgs(2, 3),
	Run: func(cmd *cobra.Command, args []string) {
		index := 1
		if len(args) == 3 {
			var err error
			if index, err = strconv.Atoi(args[2]); err != nil {
				die("invalid band index %q", args[2])
			}
		}
		reg, err := newRegistry(logger())
		if err != nil {
			die("%s", err)
		}
		ctx := context.Background()
		ds, err := reg.Open(ctx, args[0], args[1])
		if err != nil {
			die("%s", err)
		}
		defer ds.Close()

		rc, ok := ds.(geoconform.RasterCapable)
		if !ok {
			die("%s: %s", args[1], geoconform.ErrNotRasterDataset)
		}
		band, err := rc.RasterBand(index)
		if err != nil {
			die("%s", err)
		}
		stats, err := geoconform.ProbeBand(ctx, band)
		if err != nil {
			die("%s", err)
		}
		if err := printStats(cmd.OutOrStdout(), stats); err != nil {
			die("%s", err)
		}
	},
}

func printStats(w io.Writer, st geoconform.BandStats) error {
	rows := [][]string{
		{"size:", fmt.Sprintf("%d x %d", st.Cols, st.Rows)},
		{"checksum:", strconv.Itoa(st.Checksum)},
		{"nodata:", "none"},
		{"minimum:", "none"},
		{"maximum:", "none"},
		{"color interpretation:", st.ColorInterp.String()},
	}
	if st.HasNoData {
		rows[2][1] = strconv.FormatFloat(st.NoData, 'g', -1, 64)
	}
	if st.HasExtrema {
		rows[3][1] = strconv.FormatFloat(st.Minimum, 'g', -1, 64)
		rows[4][1] = strconv.FormatFloat(st.Maximum, 'g', -1, 64)
	}

	buf := &bytes.Buffer{}
	tw := tablewriter.NewWriter(buf)
	tw.SetBorder(false)
	tw.SetAutoWrapText(false)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetColumnSeparator("")
	tw.AppendBulk(rows)
	tw.Render()
	// This tablewriter puts a leading space on the lines, so remove it.
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		if _, err := fmt.Fprintln(w, strings.TrimLeft(scanner.Text(), " ")); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func init() {
	rootCmd.AddCommand(checksumCmd)
}
