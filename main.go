package main

import (
	"log"
	"os"

	"github.com/avstrong/reservations/internal/app"
	"github.com/avstrong/reservations/internal/config"
	"github.com/avstrong/reservations/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Failed to load config: %v", err.Error())
		os.Exit(1)
	}

	l, err := logger.New(logger.Conf{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		log.Printf("Failed to init logger: %v", err.Error())
		os.Exit(1)
	}

	var exitCode int

	if err := app.Run(cfg, l); err != nil {
		l.LogErrorf("Failed to run app: %v", err.Error())

		exitCode = 1
	}

	os.Exit(exitCode)
}
