package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rfwatch/rfwatch/cmd/rfwatch/app"
	"github.com/rfwatch/rfwatch/internal/sweep"
)

func main() {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))

	var configPath string
	var listDevices bool
	var testSend bool
	flag.StringVar(&configPath, "c", "", "Path to the configuration file")
	flag.BoolVar(&listDevices, "list", false, "List connected HackRF devices and exit")
	flag.BoolVar(&testSend, "test", false, "Send a CoT test marker and exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if listDevices {
		devices := sweep.ListDevices(ctx)
		if len(devices) == 0 {
			fmt.Println("No HackRF devices found")
			return
		}
		for _, device := range devices {
			fmt.Println(device)
		}
		return
	}

	if configPath == "" {
		logger.Error("no configuration file provided")
		os.Exit(1)
	}

	config, err := app.LoadConfig(configPath)
	if err != nil {
		logger.Error(fmt.Sprintf("failed to load configuration file: %s", err.Error()), slog.String("path", configPath))
		os.Exit(1)
	}

	logLevel.Set(config.Settings.SlogLevel())

	if testSend {
		if err = app.TestSend(ctx, config, logger); err != nil {
			logger.Error(err.Error())
			os.Exit(1)
		}
		return
	}

	if err = app.Run(ctx, config, logger); err != nil {
		logger.Error(err.Error())

		cancel()
		os.Exit(1)
	}
}
