package tests

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/interlay/interbtc-indexer/internal/config"
)

// GetDbConfigFromEnv reads the test database location from the environment,
// falling back to a local default so `go test` works out of the box.
func GetDbConfigFromEnv() *config.DatabaseConfig {
	port := 5432
	if p := os.Getenv("TEST_DATABASE_PORT"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil {
			port = parsed
		}
	}
	host := os.Getenv("TEST_DATABASE_HOST")
	if host == "" {
		host = "localhost"
	}
	user := os.Getenv("TEST_DATABASE_USER")
	if user == "" {
		user = "postgres"
	}
	return &config.DatabaseConfig{
		Host:     host,
		Port:     port,
		User:     user,
		Password: os.Getenv("TEST_DATABASE_PASSWORD"),
	}
}

// GenerateTestDbName produces a unique, postgres-safe database name.
func GenerateTestDbName() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("test_%s", strings.ReplaceAll(id.String(), "-", "")), nil
}

func ReplaceEnv(newValues map[string]string, previousValues *map[string]string) {
	for k, v := range newValues {
		(*previousValues)[k] = os.Getenv(k)
		os.Setenv(k, v)
	}
}

func RestoreEnv(previousValues map[string]string) {
	for k, v := range previousValues {
		os.Setenv(k, v)
	}
}
