package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/forge3d/assetsync/internal/log"
	"github.com/forge3d/assetsync/internal/model"
	"github.com/forge3d/assetsync/internal/service"
)

var (
	userConfigPath string // default config dir for assetsync on given OS
	configPath     string // actual config file used
	config         model.Config

	flagConfigFilePath string // value of --config flag
	flagVerbose        bool   // value of --verbose flag
)

func init() {
	d, err := os.UserConfigDir()
	if err != nil {
		panic(err)
	}
	userConfigPath = filepath.Join(d, "assetsync")
}

func main() {
	rootCmd.PersistentFlags().StringVar(&flagConfigFilePath, "config", "", "Config file to load - default is assetsync.yaml in current directory or in "+userConfigPath)
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")

	rootCmd.SilenceErrors = true
	rootCmd.PersistentPreRunE = initAssetsync

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("assetsync failed", "err", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "assetsync",
	Short:        "Synchronizes an asset catalog through a headless worker instance of the host application",
	SilenceUsage: true,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "sync runs one batch over the whole catalog and waits for it to drain",
	RunE:  doSync,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run executes scheduled batches until interrupted (timer mode)",
	RunE:  doRun,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version provides the version of assetsync",
	Run: func(cmd *cobra.Command, args []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("assetsync: version info not available")
			return
		}

		if configPath != "" {
			fmt.Printf("config:    %s\n", configPath)
		}
		fmt.Printf("assetsync: %s\n", info.Main.Version)
		fmt.Printf("go:        %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Printf("commit:    %s\n", s.Value)
			case "vcs.time":
				fmt.Printf("date:      %s\n", s.Value)
			case "vcs.modified":
				fmt.Printf("dirty:     %s\n", s.Value)
			}
		}
	},
}

func doSync(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx = log.ContextAttrs(ctx, slog.Group("assetsync",
		slog.String("cmd", "sync"),
		slog.Int("pid", os.Getpid()),
	))

	counters, err := service.SyncOnce(ctx, config)
	if err != nil {
		return err
	}

	fmt.Printf("queued:    %d\n", counters.Queued)
	fmt.Printf("succeeded: %d\n", counters.Succeeded)
	fmt.Printf("failed:    %d\n", counters.Failed)

	if counters.Queued > 0 && counters.Succeeded == 0 {
		return fmt.Errorf("all %d jobs failed", counters.Queued)
	}
	return nil
}

func doRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx = log.ContextAttrs(ctx, slog.Group("assetsync",
		slog.String("cmd", "run"),
		slog.Int("pid", os.Getpid()),
	))

	return service.RunTimer(ctx, config)
}

func initAssetsync(cmd *cobra.Command, _ []string) error {
	if envConfig, ok := os.LookupEnv("ASSETSYNC_CONFIG"); ok {
		configPath = envConfig
	} else if flagConfigFilePath != "" {
		configPath = flagConfigFilePath
	} else {
		for _, d := range []string{userConfigPath, "."} {
			path := filepath.Join(d, "assetsync.yaml")
			if exists(path) {
				configPath = path
				break
			}
		}
	}

	if configPath == "" {
		return fmt.Errorf("no config file found, pass --config or create assetsync.yaml")
	}

	f, err := os.Open(configPath)
	if err != nil {
		return fmt.Errorf("opening config file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	config, err = model.LoadConfig(f)
	if err != nil {
		for _, d := range model.CueErrDetails(err) {
			slog.Error(d)
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// --verbose has precedence over the config file
	verbose := config.Service.VerboseEnabled() || flagVerbose
	log.Setup(verbose)

	slog.Debug("assetsync run", "configPath", configPath)
	return nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
