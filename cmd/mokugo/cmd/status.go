package cmd

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/MeKo-Tech/mokugo/internal/generator"
	"github.com/MeKo-Tech/mokugo/internal/volume"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [paths...]",
	Short: "Show the processing status of volumes",
	Long: `List the volumes found at the given paths and whether they have been
processed. Nothing is written.

Examples:
  mokugo status "manga/Title/Volume 1"
  mokugo status --parent-dir manga/Title`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		parentDir, _ := cmd.Flags().GetString("parent-dir")
		if len(args) == 0 && parentDir == "" {
			return errors.New("no input paths provided")
		}

		vc, err := generator.Collect(args, parentDir)
		if err != nil {
			return err
		}
		if vc.Len() == 0 {
			return generator.ErrNoVolumes
		}
		return writeVolumeTable(cmd.OutOrStdout(), vc.Volumes())
	},
}

// writeVolumeTable lists volumes with their status and cached page count.
func writeVolumeTable(w io.Writer, volumes []*volume.Volume) error {
	rows := make([][]string, 0, len(volumes))
	for i, v := range volumes {
		cached := 0
		if pages, err := v.CachedPages(); err == nil {
			cached = len(pages)
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			v.Name,
			v.InputPath(),
			volume.DisplayStatus(v.Status),
			strconv.Itoa(cached),
		})
	}

	table := renderTable(
		[]string{"#", "Volume", "Input", "Status", "Cached pages"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight},
	)
	_, err := fmt.Fprintln(w, table)
	return err
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().String("parent-dir", "", "also list every volume directly inside this directory")
}
