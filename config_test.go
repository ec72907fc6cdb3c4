package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tenderbench/internal/cart"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func noDotenv(t *testing.T) []string {
	return []string{"-env", filepath.Join(t.TempDir(), "missing.env")}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(noDotenv(t), envMap(nil))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg != defaultConfig() {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.UnknownTotalPolicy() != cart.ZeroFillUnknown {
		t.Error("zero fill should be the default policy")
	}
}

func TestLoadConfig_YAML(t *testing.T) {
	path := writeFile(t, "tenderbench.yaml", `
port: 8080
db_path: /var/lib/tenderbench/data.db
min_score: 0.5
locale: en
unknown_totals: exclude
rate_limit: 0
`)
	cfg, err := loadConfig(append(noDotenv(t), "-config", path), envMap(nil))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Port != 8080 || cfg.DBPath != "/var/lib/tenderbench/data.db" || cfg.MinScore != 0.5 || cfg.Locale != "en" || cfg.RateLimit != 0 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.AutopickThreshold != 0.35 {
		t.Errorf("unset keys should keep defaults, got threshold %v", cfg.AutopickThreshold)
	}
	if cfg.UnknownTotalPolicy() != cart.ExcludeUnknown {
		t.Error("unknown_totals: exclude not applied")
	}
}

func TestLoadConfig_Precedence(t *testing.T) {
	yamlPath := writeFile(t, "c.yaml", "port: 8080\noffer_limit: 10\n")
	envPath := writeFile(t, ".env", "TENDER_PORT=7000\nTENDER_OFFER_LIMIT=50\nTENDER_SEED_DEMO=true\n")
	env := envMap(map[string]string{"TENDER_PORT": "7100"})

	cfg, err := loadConfig([]string{"-config", yamlPath, "-env", envPath}, env)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Port != 7100 {
		t.Errorf("process env should win over .env and YAML, port = %d", cfg.Port)
	}
	if cfg.OfferLimit != 50 || !cfg.SeedDemo {
		t.Errorf(".env should fill unset variables: %+v", cfg)
	}

	cfg, err = loadConfig([]string{"-config", yamlPath, "-env", envPath, "-port", "6000", "-db", "x.db"}, env)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 6000 || cfg.DBPath != "x.db" {
		t.Errorf("flags should win, got %+v", cfg)
	}
}

func TestLoadConfig_GenKey(t *testing.T) {
	cfg, err := loadConfig(append(noDotenv(t), "-gen-key"), envMap(nil))
	if err != nil || !cfg.GenKey {
		t.Errorf("GenKey = %v, %v", cfg.GenKey, err)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		args    []string
		wantErr string
	}{
		{name: "bad env number", env: map[string]string{"TENDER_MIN_SCORE": "abc"}, wantErr: "TENDER_MIN_SCORE"},
		{name: "bad env bool", env: map[string]string{"TENDER_SEED_DEMO": "maybe"}, wantErr: "TENDER_SEED_DEMO"},
		{name: "score out of range", yaml: "min_score: 2\n", wantErr: "min_score"},
		{name: "bad policy", yaml: "unknown_totals: skip\n", wantErr: "unknown_totals"},
		{name: "bad port flag", args: []string{"-port", "0"}, wantErr: "port"},
		{name: "broken yaml", yaml: "port: [\n", wantErr: "parse config"},
		{name: "unknown flag", args: []string{"-nope"}, wantErr: "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := noDotenv(t)
			if tt.yaml != "" {
				args = append(args, "-config", writeFile(t, "c.yaml", tt.yaml))
			}
			args = append(args, tt.args...)
			_, err := loadConfig(args, envMap(tt.env))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
