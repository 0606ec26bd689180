package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/mokugo/internal/cache"
	"github.com/MeKo-Tech/mokugo/internal/volume"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <page.json|volume.mokuro>",
	Short: "Show the text blocks of a cached page or the pages of a .mokuro file",
	Long: `Print a cached page result as a table of text blocks, including the
z-index a reader uses to stack overlapping blocks. Given a .mokuro file,
print one row per page instead.

Examples:
  mokugo inspect "manga/Title/_ocr/Volume 1/001.json"
  mokugo inspect "manga/Title/Volume 1.mokuro"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		out := cmd.OutOrStdout()

		if strings.EqualFold(filepath.Ext(args[0]), volume.ManifestExt) {
			m, err := cache.DecodeManifest(data)
			if err != nil {
				return err
			}
			return writeManifestTable(out, m)
		}

		p, err := cache.DecodePage(data)
		if err != nil {
			return err
		}
		return writePageTable(out, p)
	},
}

func writePageTable(w io.Writer, p *cache.Page) error {
	if _, err := fmt.Fprintf(w, "Page %dx%d, version %s, %d block(s)\n", p.ImgWidth, p.ImgHeight, p.Version, len(p.Blocks)); err != nil {
		return err
	}
	if len(p.Blocks) == 0 {
		return nil
	}

	z := cache.StackingOrder(p.Blocks)
	rows := make([][]string, 0, len(p.Blocks))
	for i, b := range p.Blocks {
		orientation := "horizontal"
		if b.Vertical {
			orientation = "vertical"
		}
		rows = append(rows, []string{
			strconv.Itoa(i),
			strconv.Itoa(z[i]),
			orientation,
			strconv.FormatFloat(b.FontSize, 'f', 1, 64),
			fmt.Sprintf("%.0f,%.0f,%.0f,%.0f", b.Box[0], b.Box[1], b.Box[2], b.Box[3]),
			strings.Join(b.Lines, " / "),
		})
	}
	table := renderTable(
		[]string{"#", "Z", "Orientation", "Font size", "Box", "Text"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignLeft, alignRight, alignLeft, alignLeft},
	)
	_, err := fmt.Fprintln(w, table)
	return err
}

func writeManifestTable(w io.Writer, m *cache.Manifest) error {
	if _, err := fmt.Fprintf(w, "%s / %s (%s), version %s, %d page(s)\n", m.Title, m.Volume, m.VolumeUUID, m.Version, len(m.Pages)); err != nil {
		return err
	}
	rows := make([][]string, 0, len(m.Pages))
	for i, p := range m.Pages {
		lines := 0
		for _, b := range p.Blocks {
			lines += len(b.Lines)
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			p.ImgPath,
			fmt.Sprintf("%dx%d", p.ImgWidth, p.ImgHeight),
			strconv.Itoa(len(p.Blocks)),
			strconv.Itoa(lines),
		})
	}
	table := renderTable(
		[]string{"#", "Image", "Size", "Blocks", "Lines"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight},
	)
	_, err := fmt.Fprintln(w, table)
	return err
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
