package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/hea-tools/mxstar/internal/log"
	"github.com/hea-tools/mxstar/internal/model"
	"gopkg.in/yaml.v3"

	"github.com/spf13/cobra"
)

var (
	userConfigPath string // /default/config/path/mxstar on given OS
	configPath     string // actual config file used (if loaded)
	config         model.Config

	flagConfigFilePath string // value of --config flag
	flagVerbose        bool   // value of --verbose flag
	flagWorkDir        string
	flagWorkers        int
	flagLogFile        string
	flagKeepLog        bool
	flagTag            string
	flagBaseFits       string
)

func init() {
	d, err := os.UserConfigDir()
	if err != nil {
		panic(err)
	}
	userConfigPath = filepath.Join(d, "mxstar")
}

func main() {
	// root flags
	rootCmd.PersistentFlags().StringVar(&flagConfigFilePath, "config", "", "Config file to load - default is mxstar.yaml in current directory or in "+userConfigPath)
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")

	runCmd.Flags().StringVarP(&flagWorkDir, "workdir", "w", "", "work directory to save results of the run")
	runCmd.Flags().IntVarP(&flagWorkers, "nproc", "n", 0, "max number of worker processes, 0 means logical CPU count")
	runCmd.Flags().StringVarP(&flagLogFile, "logfile", "l", "", "file to save the run log, relative paths resolve against the model directory")
	runCmd.Flags().BoolVarP(&flagKeepLog, "keep-log", "k", false, "keep log file after a fully successful run")
	runCmd.Flags().StringVar(&flagTag, "tag", "", "extra qualifier in the run directory name")

	collateCmd.Flags().StringVar(&flagBaseFits, "base-fits", "", "FITS file to seed the base tables from, default is the generated one in the run directory")

	// never print messages
	rootCmd.SilenceErrors = true

	// parse or create a config, setup logging
	rootCmd.PersistentPreRunE = initMxstar

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(collateCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("mxstar failed", "err", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "mxstar",
	Short:        "Manages parallel execution of multiple XSTAR jobs",
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run [joblist|xstinitable params...]",
	Short: "run executes all jobs of a joblist in parallel and collates the table model",
	RunE:  doRun,
}

var collateCmd = &cobra.Command{
	Use:   "collate <modeldir>",
	Short: "collate re-verifies an existing model directory and rebuilds the table model",
	Args:  cobra.ExactArgs(1),
	RunE:  doCollate,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version provides version of mxstar",
	Run: func(cmd *cobra.Command, args []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("mxstar: version info not available")
			return
		}

		if configPath != "" {
			fmt.Printf("config: %s\n", configPath)
		}
		fmt.Printf("mxstar: %s\n", info.Main.Version)
		fmt.Printf("go:     %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Printf("commit: %s\n", s.Value)
			case "vcs.time":
				fmt.Printf("date:   %s\n", s.Value)
			case "vcs.modified":
				fmt.Printf("dirty:  %s\n", s.Value)
			}
		}
		fmt.Println()
	},
}

func initMxstar(cmd *cobra.Command, _ []string) error {
	if envConfig, ok := os.LookupEnv("MXSTARCONFIG"); ok {
		configPath = envConfig
	} else if flagConfigFilePath != "" {
		configPath = flagConfigFilePath
	} else {
		for _, d := range []string{userConfigPath, "."} {
			path := filepath.Join(d, "mxstar.yaml")
			if exists(path) {
				configPath = path
				break
			}
		}
	}

	// store default configuration
	if configPath == "" {
		config = model.DefaultConfig()
		configPath = filepath.Join(userConfigPath, "mxstar.yaml")
		err := os.MkdirAll(filepath.Dir(configPath), 0755)
		if err != nil {
			return fmt.Errorf("creating directory %s: %w", filepath.Dir(configPath), err)
		}

		f, err := os.Create(configPath)
		if err != nil {
			return fmt.Errorf("creating file %s: %w", configPath, err)
		}
		defer func() {
			_ = f.Close()
		}()
		enc := yaml.NewEncoder(f)
		err = enc.Encode(config)
		if err != nil {
			return fmt.Errorf("storing configuration: %w", err)
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
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	// flags have a precedence over the config file
	if flagVerbose {
		config.Verbose = true
	}
	if flagWorkDir != "" {
		config.WorkDir = flagWorkDir
	}
	if flagWorkers != 0 {
		config.Workers = flagWorkers
	}
	if flagLogFile != "" {
		config.LogFile = flagLogFile
	}
	if flagKeepLog {
		config.KeepLog = true
	}
	if config.Workers < 0 {
		return fmt.Errorf("nproc must not be negative: %d", config.Workers)
	}

	// console-only logging until the run log is open
	slog.SetDefault(log.New(config.Verbose))

	slog.Debug("mxstar", "configPath", configPath)
	slog.Debug("mxstar", "config", config)
	return nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
