package cmd

import (
	"context"
	"path/filepath"
	"testing"
)

func TestMigrateCommand(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "relay.db")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_DSN", dsn)
	t.Setenv("LOG_LEVEL", "error")

	if err := executeContext(context.Background(), "migrate"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func TestMigrateCommand_InvalidConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "loud")
	if err := executeContext(context.Background(), "migrate"); err == nil {
		t.Fatalf("expected config error")
	}
}

func TestCommandTree(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	if !names["serve"] || !names["migrate"] || !names["role"] {
		t.Fatalf("commands = %v", names)
	}
}

func TestRoleCommand(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_DSN", filepath.Join(t.TempDir(), "relay.db"))
	t.Setenv("LOG_LEVEL", "error")

	if err := executeContext(context.Background(), "role", "123", "performer"); err != nil {
		t.Fatalf("role: %v", err)
	}
	if err := executeContext(context.Background(), "role", "abc", "performer"); err == nil {
		t.Fatalf("expected tg_id parse error")
	}
	if err := executeContext(context.Background(), "role", "123", "emperor"); err == nil {
		t.Fatalf("expected unknown role error")
	}
}
