package config

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables holding credentials. Each one may instead be given
// as a file path through the same name with a _FILE suffix.
const (
	EnvPostgresPassword = "PGPASSWORD"
	EnvMQTTPassword     = "TRAFFIC_MQTT_PASSWORD"
	EnvAdminPassword    = "TRAFFIC_ADMIN_PASSWORD"
	EnvOperatorPassword = "TRAFFIC_OPERATOR_PASSWORD"
)

// ResolveSecret reads a secret value using the *_FILE convention.
// If envName+"_FILE" is set, reads the secret from that file path.
// Otherwise falls back to the value of envName.
// Returns empty string if neither is set.
func ResolveSecret(envName string) (string, error) {
	fileEnv := envName + "_FILE"
	if filePath := os.Getenv(fileEnv); filePath != "" {
		content, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("failed to read secret from %s=%s: %w", fileEnv, filePath, err)
		}
		return strings.TrimSpace(string(content)), nil
	}
	return os.Getenv(envName), nil
}

// Secrets holds every credential the simulator may need.
type Secrets struct {
	PostgresPassword string
	MQTTPassword     string
	AdminPassword    string
	OperatorPassword string
}

// LoadSecrets resolves all credentials. The first unreadable file aborts.
func LoadSecrets() (Secrets, error) {
	var s Secrets
	targets := []struct {
		env string
		dst *string
	}{
		{EnvPostgresPassword, &s.PostgresPassword},
		{EnvMQTTPassword, &s.MQTTPassword},
		{EnvAdminPassword, &s.AdminPassword},
		{EnvOperatorPassword, &s.OperatorPassword},
	}
	for _, t := range targets {
		v, err := ResolveSecret(t.env)
		if err != nil {
			return Secrets{}, err
		}
		*t.dst = v
	}
	return s, nil
}
