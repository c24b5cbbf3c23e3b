package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/MeKo-Tech/chatocr/internal/config"
	"github.com/MeKo-Tech/chatocr/internal/models"
	"github.com/MeKo-Tech/chatocr/internal/version"
)

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
	// Rotating log file, if one is configured.
	logFile *lumberjack.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "chatocr",
	Short: "Chat screenshot analysis: text recognition and chat window detection",
	Long: `chatocr reads screenshots of chat conversations and reports two things
side by side: every text line found in the image, and the chat windows
detected in it together with the sender bubbles, receiver bubbles and emojis
that belong to each window.

Images without a chat window are reported as "Not a Screenshot".

Examples:
  chatocr image screenshot.png
  chatocr image a.png b.jpg --format text --overlay-dir overlays
  chatocr serve --port 8080
  chatocr config init`,
	Version:           version.String(),
	SilenceUsage:      true,
	PersistentPreRunE: rootPreRun,
	PersistentPostRun: func(*cobra.Command, []string) { closeLogFile() },
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.SetVersionTemplate("chatocr version {{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/chatocr, /etc/chatocr)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-file", "", "also write logs to this file (rotated)")

	defaultModelsDir := models.DefaultModelsDir
	if envDir := os.Getenv(models.EnvModelsDir); envDir != "" {
		defaultModelsDir = envDir
	}
	rootCmd.PersistentFlags().String("models-dir", defaultModelsDir,
		"directory containing the detector model and tessdata (also "+models.EnvModelsDir+")")

	bindFlags(rootCmd.PersistentFlags().Lookup, []flagBinding{
		{"verbose", "verbose"},
		{"log_level", "log-level"},
		{"log_file", "log-file"},
		{"models_dir", "models-dir"},
	})
}

func rootPreRun(cmd *cobra.Command, args []string) error {
	if err := initConfig(); err != nil {
		return err
	}
	setupLogging(globalConfig, cmd.ErrOrStderr())
	return nil
}

// initConfig reads in the config file and ENV variables.
func initConfig() error {
	configLoader = config.NewLoaderWithViper(newViper())

	var err error
	if cfgFile != "" {
		globalConfig, err = configLoader.LoadWithFile(cfgFile)
	} else {
		globalConfig, err = configLoader.Load()
	}
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	return nil
}

// setupLogging installs a JSON slog handler. Logs go to stderr so JSON
// results on stdout stay parseable.
func setupLogging(cfg *config.Config, stderr io.Writer) {
	closeLogFile()

	var out io.Writer = stderr
	if cfg.LogFile != "" {
		logFile = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		}
		out = io.MultiWriter(stderr, logFile)
	}

	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: logLevel(cfg),
	}))
	slog.SetDefault(logger)
}

func closeLogFile() {
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

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

// GetConfig returns the configuration with command-line flags applied.
func GetConfig() *config.Config {
	if globalConfig == nil {
		if err := initConfig(); err != nil {
			slog.Warn("Falling back to default configuration", "error", err)
			def := config.DefaultConfig()
			globalConfig = &def
		}
	}

	// Flags are bound after the initial load, so unmarshal again.
	var cfg config.Config
	if err := GetConfigLoader().GetViper().Unmarshal(&cfg); err != nil {
		slog.Warn("Error unmarshaling updated configuration", "error", err)
		return globalConfig
	}
	return &cfg
}

// GetConfigLoader returns the global configuration loader.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = config.NewLoaderWithViper(newViper())
	}
	return configLoader
}

type flagBinding struct {
	key  string
	flag string
}

type boundFlag struct {
	key  string
	flag *pflag.Flag
}

// boundFlags lists the flags that override configuration keys.
var boundFlags []boundFlag

// bindFlags registers flags as overrides for viper configuration keys.
func bindFlags(lookup func(string) *pflag.Flag, bindings []flagBinding) {
	for _, b := range bindings {
		if f := lookup(b.flag); f != nil {
			boundFlags = append(boundFlags, boundFlag{key: b.key, flag: f})
		}
	}
}

// newViper returns a viper instance with every registered flag bound. Each
// load starts from a fresh instance so a previously found config file is
// never reused.
func newViper() *viper.Viper {
	v := viper.New()
	for _, b := range boundFlags {
		_ = v.BindPFlag(b.key, b.flag)
	}
	return v
}
