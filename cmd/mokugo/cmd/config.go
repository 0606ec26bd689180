package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/mokugo/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the mokugo configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init [file]",
	Short: "Write the default configuration to a YAML file",
	Long: `Write the default configuration to mokugo.yaml in the current directory,
or to the given file. Place it in one of the search paths to use it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filename := ""
		if len(args) == 1 {
			filename = args[0]
		}
		force, _ := cmd.Flags().GetBool("force")
		written, err := config.WriteDefaultConfigFile(filename, force)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", written)
		return err
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := config.Render(*GetConfig())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if used := config.NewLoader().ConfigFileUsed(); used != "" {
			if _, err := fmt.Fprintf(out, "# loaded from %s\n", used); err != nil {
				return err
			}
		}
		_, err = out.Write(data)
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
}
