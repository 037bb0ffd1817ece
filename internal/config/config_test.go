package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"alive-keeper/internal/config"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("API_URL", "http://localhost:3000/")
	t.Setenv("RPC_URL", "http://localhost:8545")
	t.Setenv("TOKEN_CONTRACT", "0x1111111111111111111111111111111111111111")
	t.Setenv("CLAIM_CONTRACT", "0x2222222222222222222222222222222222222222")
	t.Setenv("ACTIVATION_CONTRACT", "0x3333333333333333333333333333333333333333")
	t.Setenv("TREASURY_ADDRESS", "0x4444444444444444444444444444444444444444")
	t.Setenv("ACTIVATION_FEE", "0.015")
	t.Setenv("WALLET_PRIVATE_KEY", "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	t.Setenv("CONFIG_FILE", "")
}

func TestLoad(t *testing.T) {
	setRequired(t)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.APIURL != "http://localhost:3000" {
		t.Errorf("Expected trailing slash trimmed, got %s", cfg.APIURL)
	}
	if cfg.ChainID != config.DefaultChainID {
		t.Errorf("Expected default chain id %d, got %d", config.DefaultChainID, cfg.ChainID)
	}
	if cfg.ActivationFee.String() != "15000000000000000" {
		t.Errorf("Expected fee 15000000000000000 wei, got %s", cfg.ActivationFee)
	}
	if cfg.Tuning.LoginMaxAttempts != 3 {
		t.Errorf("Expected 3 login attempts, got %d", cfg.Tuning.LoginMaxAttempts)
	}
}

func TestLoadFailsFastOnMissingKeys(t *testing.T) {
	setRequired(t)
	t.Setenv("CLAIM_CONTRACT", "")
	t.Setenv("TREASURY_ADDRESS", "")

	_, err := config.Load()
	if err == nil {
		t.Fatal("Expected error for missing keys")
	}
	if !strings.Contains(err.Error(), "CLAIM_CONTRACT") || !strings.Contains(err.Error(), "TREASURY_ADDRESS") {
		t.Errorf("Error should name every missing key, got %v", err)
	}
}

func TestLoadRejectsBadAddress(t *testing.T) {
	setRequired(t)
	t.Setenv("TOKEN_CONTRACT", "not-an-address")

	if _, err := config.Load(); err == nil {
		t.Fatal("Expected error for invalid address")
	}
}

func TestTuningFileOverlay(t *testing.T) {
	setRequired(t)

	path := filepath.Join(t.TempDir(), "tuning.yaml")
	data := "reconcile_interval: 30s\nlogin_max_attempts: 5\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Tuning.ReconcileInterval != 30*time.Second {
		t.Errorf("Expected 30s reconcile interval, got %v", cfg.Tuning.ReconcileInterval)
	}
	if cfg.Tuning.LoginMaxAttempts != 5 {
		t.Errorf("Expected 5 login attempts, got %d", cfg.Tuning.LoginMaxAttempts)
	}
	if cfg.Tuning.DecayInterval != time.Second {
		t.Errorf("Untouched fields keep defaults, got decay %v", cfg.Tuning.DecayInterval)
	}
}
