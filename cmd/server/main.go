package main

import (
	"log/slog"
	"os"

	"go-invoice/internal/app"
	"go-invoice/internal/logger"
)

func main() {
	logHandler := logger.NewPrettyHandler(os.Stdout, &logger.Options{
		Level:   logger.ParseLevel(os.Getenv("LOG_LEVEL")),
		NoColor: os.Getenv("NO_COLOR") != "",
	})
	slog.SetDefault(slog.New(logHandler))

	application, err := app.New()
	if err != nil {
		slog.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}
