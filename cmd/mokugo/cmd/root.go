package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/mokugo/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	// Global configuration, loaded before every command.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "mokugo",
	Short: "Generate .mokuro OCR files for manga volumes",
	Long: `mokugo detects and recognizes the Japanese text on every page of a manga
volume and writes a .mokuro file next to it, for use with the mokuro reader.

A volume is a directory of page images or a .zip/.cbz archive. OCR results
are cached per page under _ocr/, so interrupted runs resume where they
stopped.

Examples:
  mokugo run "manga/Title/Volume 1"
  mokugo run --parent-dir manga/Title --yes
  mokugo status --parent-dir manga/Title
  mokugo inspect "manga/Title/_ocr/Volume 1/001.json"`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		globalConfig = cfg
		slog.SetDefault(newLogger(cmd.ErrOrStderr(), cfg))
		return nil
	},
}

// Execute adds all child commands to the root command and runs it.
// Ctrl-C cancels the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is search in ., $HOME, $XDG_CONFIG_HOME/mokugo, /etc/mokugo)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().String("models-dir", "", "model cache directory (default $XDG_CACHE_HOME/manga-ocr)")

	bindFlags(rootCmd.PersistentFlags(), []flagBinding{
		{"verbose", "verbose"},
		{"log_level", "log-level"},
		{"log_format", "log-format"},
		{"models.cache_dir", "models-dir"},
	})
}

// loadConfig resolves the configuration from file, environment and the
// flags bound to the global viper instance.
func loadConfig() (*config.Config, error) {
	cfg, err := config.NewLoader().LoadWithFile(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}
	return cfg, nil
}

// GetConfig returns the configuration of the running command.
func GetConfig() *config.Config {
	if globalConfig == nil {
		cfg := config.DefaultConfig()
		return &cfg
	}
	return globalConfig
}

// logLevel maps the configured level; verbose wins.
func logLevel(cfg *config.Config) slog.Level {
	if cfg.Verbose {
		return slog.LevelDebug
	}
	switch cfg.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: logLevel(cfg)}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

type flagBinding struct {
	key  string
	flag string
}

// bindFlags binds flags to configuration keys on the global viper instance.
func bindFlags(fs *pflag.FlagSet, bindings []flagBinding) {
	for _, b := range bindings {
		if err := viper.BindPFlag(b.key, fs.Lookup(b.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", b.flag, err))
		}
	}
}
