package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/canopywm/canopy/internal/atoms"
	"github.com/canopywm/canopy/internal/bar"
	"github.com/canopywm/canopy/internal/lifecycle"
	"github.com/canopywm/canopy/internal/manager"
	"github.com/canopywm/canopy/internal/x11"
	"github.com/canopywm/canopy/pkg/config"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// restartExitCode tells the supervising process to re-exec us.
const restartExitCode = 45

func main() {
	var rootCmd = &cobra.Command{
		Use:   "canopy",
		Short: "Canopy tiling window manager",
		Long:  "A tiling window manager for X11 with per-monitor workspaces",
		Run:   runWM,
	}

	rootCmd.Flags().String("config", "", "config file (default is $HOME/.config/canopy/canopy.yaml)")
	rootCmd.Flags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.Flags().String("display", "", "X display to manage (default $DISPLAY)")
	rootCmd.Flags().String("font", "fixed", "server font for bar text")

	viper.BindPFlags(rootCmd.Flags())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runWM(cmd *cobra.Command, args []string) {
	cfgManager := config.NewManager(viper.GetString("config"))
	cfg, err := cfgManager.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger := initLogger(cfg)
	logger.WithFields(logrus.Fields{
		"version": Version,
		"commit":  Commit,
		"built":   BuildTime,
	}).Info("Starting canopy")

	os.Exit(run(logger, cfg))
}

func run(logger *logrus.Logger, cfg *config.Config) int {
	calls, err := x11.Connect(logger, viper.GetString("display"))
	if err != nil {
		logger.WithError(err).Error("Failed to connect to display")
		return 1
	}
	defer calls.Close()

	registry, err := atoms.NewRegistry(calls)
	if err != nil {
		logger.WithError(err).Error("Failed to build atom registry")
		return 1
	}
	calls.SetRegistry(registry)

	if err := calls.BecomeWM(); err != nil {
		logger.WithError(err).Error("Failed to become window manager")
		return 1
	}

	font, err := x11.NewCoreFontDrawer(calls, viper.GetString("font"))
	if err != nil {
		logger.WithError(err).Error("Failed to open bar font")
		return 1
	}
	defer font.Close()
	barMgr := bar.NewManager(logger, font, calls, bar.Config{
		Height:       cfg.Bar.Height,
		TabBarHeight: cfg.Bar.TabBarHeight,
		TagPadding:   cfg.Bar.TagPadding,
		Palette:      barPalette(cfg),
	})

	events := make(chan manager.Event, 64)
	go manager.Pump(calls.Conn(), events)

	for {
		st, err := lifecycle.Build(logger, calls, cfg, barMgr)
		if err != nil {
			logger.WithError(err).Error("Failed to build state")
			return 1
		}
		mgr := manager.New(logger, calls, st, barMgr, registry, cfg)
		if err := mgr.Scan(); err != nil {
			logger.WithError(err).Warn("Startup scan incomplete")
		}
		calls.Flush()

		err = mgr.Run(context.Background(), events)
		switch {
		case errors.Is(err, manager.ErrStateInvalidated):
			logger.Info("Rebuilding after screen change")
			lifecycle.TearDown(calls, st)
			continue
		case errors.Is(err, manager.ErrFullRestart):
			mgr.Cleanup()
			logger.Info("Restarting")
			return restartExitCode
		case errors.Is(err, manager.ErrGracefulShutdown):
			mgr.Cleanup()
			logger.Info("Shutting down")
			return 0
		default:
			logger.WithError(err).Error("Event loop failed")
			mgr.Cleanup()
			return 1
		}
	}
}

func initLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	level := cfg.Logging.Level
	if flagLevel := viper.GetString("log-level"); flagLevel != "" {
		level = flagLevel
	}
	if parsed, err := logrus.ParseLevel(level); err == nil {
		logger.SetLevel(parsed)
	}
	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

func barPalette(cfg *config.Config) bar.Palette {
	palette, err := config.ParseColors(&cfg.Colors)
	if err != nil {
		return bar.Palette{}
	}
	return bar.Palette{
		Background:     palette.BarBackground,
		Text:           palette.BarText,
		FocusedTag:     palette.TagFocused,
		UrgentTag:      palette.TagUrgent,
		TabFocused:     palette.TabBarFocused,
		TabUnfocused:   palette.TabBarUnfocused,
		ShortcutColor:  palette.ShortcutBackground,
		StatusBackdrop: palette.StatusBackground,
	}
}
