package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/sif/internal/config"
	"github.com/MeKo-Tech/sif/internal/version"
)

var (
	// Configuration loader of the running command.
	configLoader *config.Loader
	// Configuration of the running command.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
)

// lenientConfig marks commands that must work with an invalid configuration.
const lenientConfig = "sif/lenient-config"

// flagBinding maps a command line flag onto a configuration key.
type flagBinding struct {
	key  string
	flag string
}

// rootBindings apply to every command.
var rootBindings = []flagBinding{
	{"log_level", "log-level"},
	{"verbose", "verbose"},
}

// commandBindings holds the per-command bindings, keyed by command path.
var commandBindings = map[string][]flagBinding{}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "sif",
	Short: "Content-based image retrieval over a local image corpus",
	Long: `sif finds the images of a local corpus that are most similar to a query
image. Each query is routed either to an object matcher (colour, local
features and geometric verification) or to a logo matcher (contour shape
and scale-invariant descriptors).

Examples:
  sif query photo.jpg --dataset ./corpus
  sif query brand.png --dataset ./corpus --route logo --format json
  sif classify photo.jpg
  sif serve --dataset ./corpus --port 8080`,
	Version:      version.String(),
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(cmd); err != nil {
			return err
		}
		setupLogging(cmd, globalConfig)
		return nil
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
// This allows tests to execute commands without calling os.Exit().
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.SetVersionTemplate("sif version {{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/sif, /etc/sif)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
}

// registerBindings records the config keys that the flags of cmd override.
func registerBindings(cmd *cobra.Command, bindings ...flagBinding) {
	for _, b := range bindings {
		if cmd.Flags().Lookup(b.flag) == nil {
			panic(fmt.Sprintf("no flag %s on command %s", b.flag, cmd.Name()))
		}
	}
	commandBindings[cmd.CommandPath()] = append(commandBindings[cmd.CommandPath()], bindings...)
}

// initConfig loads the configuration for cmd from its flags, the environment,
// the config file and the defaults, in that order of precedence.
func initConfig(cmd *cobra.Command) error {
	v := viper.New()
	if err := bindFlags(v, cmd.Flags(), rootBindings); err != nil {
		return err
	}
	if err := bindFlags(v, cmd.Flags(), commandBindings[cmd.CommandPath()]); err != nil {
		return err
	}

	configLoader = config.NewLoaderWithViper(v)

	var (
		cfg *config.Config
		err error
	)
	if cmd.Annotations[lenientConfig] != "" {
		cfg, err = configLoader.LoadWithFileWithoutValidation(cfgFile)
	} else {
		cfg, err = configLoader.LoadWithFile(cfgFile)
	}
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	globalConfig = cfg
	return nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet, bindings []flagBinding) error {
	for _, b := range bindings {
		f := flags.Lookup(b.flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(b.key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", b.flag, err)
		}
	}
	return nil
}

// setupLogging installs a JSON slog handler on stderr. Stdout carries results.
func setupLogging(cmd *cobra.Command, cfg *config.Config) {
	var logLevel slog.Level
	if cfg.Verbose {
		logLevel = slog.LevelDebug
	} else {
		switch strings.ToLower(cfg.LogLevel) {
		case "debug":
			logLevel = slog.LevelDebug
		case "warn":
			logLevel = slog.LevelWarn
		case "error":
			logLevel = slog.LevelError
		default:
			logLevel = slog.LevelInfo
		}
	}

	logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
}

// GetConfig returns the configuration of the running command, or the
// validated defaults outside of a command run.
func GetConfig() *config.Config {
	if globalConfig == nil {
		cfg := config.DefaultConfig()
		return &cfg
	}
	return globalConfig
}

// GetConfigLoader returns the configuration loader of the running command.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = config.NewLoaderWithViper(viper.New())
	}
	return configLoader
}
