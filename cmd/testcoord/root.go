package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/giantswarm/testcoord"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "testcoord",
	Short: "Coordinate ports, tools, and helper processes of parallel test runs",
	Long: `testcoord partitions port ranges between concurrent test processes on one
machine and runs the helper processes integration tests depend on.

Every flag can also be set through a TESTCOORD_* environment variable or a
YAML config file. The group index defaults to TESTCOORD_AGENT_INDEX.`,
	SilenceUsage: true,
	PersistentPreRunE: func(*cobra.Command, []string) error {
		return setupLogging(viper.GetString("log-level"))
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "Config file (default: ./.testcoord.yaml)")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.IntP("group", "g", 0, "Group index selecting this process's port block")
	flags.String("manifest", testcoord.DefaultManifestPath, "Local tool manifest")
	flags.String("dotnet", testcoord.DefaultDotnetCommand, "Executable that runs local tools")
	flags.Duration("stop-timeout", testcoord.DefaultStopTimeout, "Grace period before a helper process is killed")
	flags.Duration("smtp-ready-timeout", testcoord.DefaultSMTPReadyTimeout, "How long smtp4dev may take to start")

	_ = viper.BindPFlag("log-level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("agent-index", flags.Lookup("group"))
	_ = viper.BindPFlag("manifest", flags.Lookup("manifest"))
	_ = viper.BindPFlag("dotnet", flags.Lookup("dotnet"))
	_ = viper.BindPFlag("stop-timeout", flags.Lookup("stop-timeout"))
	_ = viper.BindPFlag("smtp-ready-timeout", flags.Lookup("smtp-ready-timeout"))

	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(smtpCmd)
	rootCmd.AddCommand(snapshotCmd)
}

func initConfig() {
	if cfgFile := rootCmd.PersistentFlags().Lookup("config").Value.String(); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(".testcoord")
		viper.SetConfigType("yaml")
	}

	// agent-index reads TESTCOORD_AGENT_INDEX.
	viper.SetEnvPrefix("TESTCOORD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("ignoring unreadable config file", "error", err)
		}
	}
}

func setupLogging(level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	testcoord.SetLogger(logger.With("component", "testcoord"))
	return nil
}

// coordinatorOptions turns the resolved flags, environment, and config file
// into Coordinator options.
func coordinatorOptions() ([]testcoord.CoordinatorOption, error) {
	group := viper.GetInt("agent-index")
	if group < 0 {
		return nil, fmt.Errorf("group index must not be negative, got %d", group)
	}
	stopTimeout := viper.GetDuration("stop-timeout")
	readyTimeout := viper.GetDuration("smtp-ready-timeout")
	for name, d := range map[string]time.Duration{"stop-timeout": stopTimeout, "smtp-ready-timeout": readyTimeout} {
		if d <= 0 {
			return nil, fmt.Errorf("%s must be greater than 0, got %s", name, d)
		}
	}
	manifest := viper.GetString("manifest")
	dotnet := viper.GetString("dotnet")
	if manifest == "" || dotnet == "" {
		return nil, errors.New("manifest and dotnet must not be empty")
	}

	opts := []testcoord.CoordinatorOption{
		testcoord.WithGroupIndex(group),
		testcoord.WithManifestPath(manifest),
		testcoord.WithDotnetCommand(dotnet),
		testcoord.WithRestoreCommand(dotnet, "tool", "restore"),
		testcoord.WithStopTimeout(stopTimeout),
		testcoord.WithSMTPReadyTimeout(readyTimeout),
	}
	for name, r := range viper.GetStringMap("ranges") {
		pr, err := parseRange(name, r)
		if err != nil {
			return nil, err
		}
		opts = append(opts, testcoord.WithPortRange(name, pr.base, pr.blockSize))
	}
	return opts, nil
}

type portRange struct {
	base      int
	blockSize int
}

// parseRange reads one entry of the "ranges" config section:
//
//	ranges:
//	  db: {base: 15000, block-size: 10}
func parseRange(name string, raw any) (portRange, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return portRange{}, fmt.Errorf("range %q: expected a map, got %T", name, raw)
	}
	sub := viper.New()
	if err := sub.MergeConfigMap(m); err != nil {
		return portRange{}, fmt.Errorf("range %q: %w", name, err)
	}
	pr := portRange{base: sub.GetInt("base"), blockSize: sub.GetInt("block-size")}
	if name == "" || pr.base < 1 || pr.blockSize < 1 {
		return portRange{}, fmt.Errorf("range %q: base and block-size must be greater than 0", name)
	}
	return pr, nil
}

// newCoordinator builds a Coordinator from the resolved configuration.
//
//nolint:ireturn // mirrors testcoord.NewCoordinator
func newCoordinator() (c testcoord.Coordinator, err error) {
	opts, err := coordinatorOptions()
	if err != nil {
		return nil, err
	}
	// A group index beyond the configured ranges is a configuration error
	// here, not a programmer error.
	defer func() {
		if r := recover(); r != nil {
			c, err = nil, fmt.Errorf("create coordinator: %v", r)
		}
	}()
	return testcoord.NewCoordinator(opts...), nil
}
