package main

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type environment struct {
	ConfigPath string
	LogLevel   string
}

// loadEnvironment reads ./.env (if any) and then the RUNTRIGGER_* variables.
// Variables already set in the process win over .env.
func loadEnvironment() (environment, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return environment{}, err
	}
	return environment{
		ConfigPath: strings.TrimSpace(os.Getenv("RUNTRIGGER_CONFIG")),
		LogLevel:   strings.TrimSpace(os.Getenv("RUNTRIGGER_LOG_LEVEL")),
	}, nil
}
