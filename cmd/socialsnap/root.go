package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/tvpsh2021/social-snap-sub001/pkg/config"
	"github.com/tvpsh2021/social-snap-sub001/pkg/logger"
	"github.com/tvpsh2021/social-snap-sub001/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool
	quiet      bool
	headless   bool

	// cfg is loaded once per invocation in PersistentPreRunE
	cfg *config.Config
)

// skipConfigAnnotation marks commands that run without loading a config
const skipConfigAnnotation = "socialsnap/skip-config"

var rootCmd = &cobra.Command{
	Use:   "socialsnap",
	Short: "Extract and download full-size images from social media posts",
	Long: `socialsnap finds the images of a single Threads, Instagram or Facebook post
and downloads them at full resolution.

Features:
  - Multi-strategy extraction that skips avatars, comments and UI images
  - Instagram carousel navigation over partially rendered slides
  - Rate-limited downloads with retry and exponential backoff
  - Resume interrupted downloads
  - HTTP relay for browser integrations`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor {
			ui.SetColor(false)
		} else {
			ui.ConfigureColor(os.Stdout)
		}

		if cmd.Annotations[skipConfigAnnotation] == "true" {
			return nil
		}

		flags := map[string]interface{}{}
		collectFlags(cmd, flags)
		if quiet {
			flags["log-level"] = "error"
		}

		loaded, err := config.Load(configFile, flags)
		if err != nil {
			return err
		}
		cfg = loaded

		if err := logger.Initialize(&cfg.Logging); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if !quiet && cmd.Name() != "platforms" && cmd.Name() != "show" {
			ui.PrintLogo()
		}
		return nil
	},
}

// Execute adds all child commands to the root command and runs it
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .socialsnap.yaml or ~/.config/socialsnap/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&headless, "headless", true, "run the browser without a window")

	rootCmd.SetVersionTemplate(`socialsnap {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// collectFlags turns explicitly set flags into the map config.Load merges
// on top of the file and environment
func collectFlags(cmd *cobra.Command, flags map[string]interface{}) {
	fs := cmd.Flags()
	if fs.Changed("log-level") {
		flags["log-level"] = logLevel
	}
	if fs.Changed("headless") {
		flags["headless"] = headless
	}
	if f := fs.Lookup("output"); f != nil && f.Changed {
		flags["output"] = f.Value.String()
	}
	if fs.Changed("concurrent") {
		if n, err := fs.GetInt("concurrent"); err == nil {
			flags["concurrent"] = n
		}
	}
	if fs.Changed("max-retries") {
		if n, err := fs.GetInt("max-retries"); err == nil {
			flags["max-retries"] = n
		}
	}
	if fs.Changed("delay") {
		if d, err := fs.GetDuration("delay"); err == nil {
			flags["delay"] = d
		}
	}
	if fs.Changed("addr") {
		if addr, err := fs.GetString("addr"); err == nil {
			flags["addr"] = addr
		}
	}
}
