package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/supermen-api/pkg/config"
)

func TestDSNEscapesCredentials(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host:     "db",
		Port:     5432,
		User:     "supermen",
		Password: "p@ss/word",
		Name:     "supermen",
	})

	assert.Equal(t, "postgres://supermen:p%40ss%2Fword@db:5432/supermen?sslmode=disable", dsn)
}

func TestDSNKeepsSSLMode(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "require"})

	assert.Contains(t, dsn, "sslmode=require")
}
