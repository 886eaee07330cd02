// Command veriscoped runs the Veriscope analysis daemon without the
// operator CLI around it. It is the entrypoint used by service managers.
package main

import (
	"context"
	"flag"
	"log"

	"github.com/joho/godotenv"

	"veriscope/internal/config"
	"veriscope/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	logLevel := flag.String("log-level", "", "override the configured log level")
	flag.Parse()

	_ = godotenv.Load()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	level := cfg.Logging.Level
	if *logLevel != "" {
		level = *logLevel
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{LogLevel: level}); err != nil {
		log.Fatalf("veriscoped: %v", err)
	}
}
