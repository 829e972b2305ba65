package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/CZERTAINLY/osal/internal/log"
	"github.com/CZERTAINLY/osal/internal/model"
	"github.com/CZERTAINLY/osal/internal/reexec"
)

var (
	userConfigPath string // /default/config/path/osal on given OS
	configPath     string // actual config file used (if loaded)
	config         model.Config
	logCloser      io.Closer = io.NopCloser(nil)

	// flags and OSAL_* environment variables
	flags = viper.New()
)

func init() {
	d, err := os.UserConfigDir()
	if err != nil {
		d = "."
	}
	userConfigPath = filepath.Join(d, "osal")

	flags.SetEnvPrefix("OSAL")
	flags.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	flags.AutomaticEnv()

	reexec.Register("echo", func(args []string) int {
		fmt.Println(strings.Join(args, " "))
		return 0
	})
}

func main() {
	// a re-executed function never reaches cobra
	if reexec.Init() {
		os.Exit(0)
	}

	// root flags
	rootCmd.PersistentFlags().String("config", "", "Config file to load - default is osal.yaml in current directory or in "+userConfigPath)
	rootCmd.PersistentFlags().Bool("verbose", false, "verbose logging")

	// never print messages
	rootCmd.SilenceErrors = true

	rootCmd.PersistentPreRunE = initOsal
	rootCmd.PersistentPostRunE = func(*cobra.Command, []string) error {
		return logCloser.Close()
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serviceCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		var st statusError
		if !errors.As(err, &st) {
			slog.Error("osalctl failed", "err", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "osalctl",
	Short:        "Runs external commands and controls OS services",
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version provide version of an osalctl",
	Run: func(cmd *cobra.Command, args []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("osalctl: version info not available")
			return
		}

		if configPath != "" {
			fmt.Printf("config:  %s\n", configPath)
		}
		fmt.Printf("osalctl: %s\n", info.Main.Version)
		fmt.Printf("go:      %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Printf("commit:  %s\n", s.Value)
			case "vcs.time":
				fmt.Printf("date:    %s\n", s.Value)
			case "vcs.modified":
				fmt.Printf("dirty:   %s\n", s.Value)
			}
		}
		fmt.Println()
	},
}

// statusError carries a non-successful status already printed to the user.
type statusError struct {
	status model.Status
	err    error
}

func (e statusError) Error() string { return e.status.String() + ": " + e.err.Error() }
func (e statusError) Unwrap() error { return e.err }

// report prints the status name and turns a failure into an exit code.
func report(ctx context.Context, status model.Status, name string, err error) error {
	fmt.Println(name)
	if err == nil {
		return nil
	}
	slog.DebugContext(ctx, "operation failed", "status", status.String(), "error", err)
	return statusError{status: status, err: err}
}

func initOsal(cmd *cobra.Command, _ []string) error {
	if err := flags.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}

	if path := flags.GetString("config"); path != "" {
		configPath = path
	} else {
		for _, d := range []string{userConfigPath, "."} {
			path := filepath.Join(d, "osal.yaml")
			if exists(path) {
				configPath = path
				break
			}
		}
	}

	// store default configuration
	if configPath == "" {
		config = model.DefaultConfig(cmd.Context())
		configPath = filepath.Join(userConfigPath, "osal.yaml")
		if err := storeDefault(configPath, config); err != nil {
			// a read-only home is not fatal, defaults are in memory
			slog.Warn("default configuration not stored", "path", configPath, "error", err)
			configPath = ""
		}
		if err := config.Expand(); err != nil {
			return fmt.Errorf("expanding default config: %w", err)
		}
	} else {
		f, err := os.Open(configPath)
		if err != nil {
			return fmt.Errorf("opening config file: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()
		config, err = model.LoadConfig(f)
		if err != nil {
			for _, d := range model.ConfigErrDetails(err) {
				slog.Error("invalid configuration", d.Attr("detail"))
			}
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	// --verbose and OSAL_VERBOSE have a precedence over config file
	if flags.GetBool("verbose") {
		verbose := true
		config.Log.Verbose = &verbose
	}
	if backend := flags.GetString("service.backend"); backend != "" {
		config.Service.Backend = backend
	}

	logger, closer, err := log.New(model.Get(config.Log.Verbose), model.Get(config.Log.Output))
	if err != nil {
		return err
	}
	logCloser = closer
	slog.SetDefault(logger)

	slog.Debug("osalctl run", "configPath", configPath)
	slog.Debug("osalctl run", "config", config)
	return nil
}

func storeDefault(path string, cfg model.Config) error {
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return fmt.Errorf("creating directory %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	enc := yaml.NewEncoder(f)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("storing configuration: %w", err)
	}
	return enc.Close()
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
