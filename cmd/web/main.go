package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	// Embedded tzdata keeps the market clock working on hosts without a
	// system zoneinfo database.
	_ "time/tzdata"

	"etfcli/internal/app"
	"etfcli/pkg/contracts"
)

func main() {
	configPath := flag.String("config", "", "path to config file (searches well-known locations when empty)")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(contracts.GetFullVersionString())
		return
	}

	// Create application instance
	application, err := app.NewApplication(*configPath)
	if err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start application
	if err := application.Run(); err != nil {
		slog.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
