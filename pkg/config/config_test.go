package config

import (
	"reflect"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Model.Kind != "logistic" {
		t.Errorf("Model.Kind = %q, want logistic", cfg.Model.Kind)
	}
	if cfg.Explain.NumFeatures != 10 || cfg.Explain.NumSamples != 5000 {
		t.Errorf("Explain = %+v", cfg.Explain)
	}
	if cfg.LLM.APIKey != "" {
		t.Error("LLM.APIKey must not have a default")
	}
	if cfg.LLM.Temperature != 0.3 || cfg.LLM.MaxTokens != 4096 {
		t.Errorf("LLM = %+v", cfg.LLM)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("Store.Backend = %q, want memory", cfg.Store.Backend)
	}
	if cfg.Features.StrictMaterials {
		t.Error("unknown materials should be accepted by default")
	}
	if cfg.QRCode.Color != "#28a745" {
		t.Errorf("QRCode.Color = %q", cfg.QRCode.Color)
	}
	if cfg.Fly.Binary != "flyctl" || cfg.Fly.ConfigPath != "fly.toml" {
		t.Errorf("Fly = %+v", cfg.Fly)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("ECOTRACKER_LLM_APIKEY", "test-key")
	t.Setenv("ECOTRACKER_REDIS_PASSWORD", "s3cret")
	t.Setenv("ECOTRACKER_STORE_BACKEND", "sqlite")
	t.Setenv("PORT", "9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLM.APIKey != "test-key" {
		t.Errorf("LLM.APIKey = %q", cfg.LLM.APIKey)
	}
	if cfg.Redis.Password != "s3cret" {
		t.Errorf("Redis.Password = %q", cfg.Redis.Password)
	}
	if cfg.Store.Backend != "sqlite" {
		t.Errorf("Store.Backend = %q", cfg.Store.Backend)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
}

func TestLoadInvalidPort(t *testing.T) {
	t.Setenv("PORT", "eighty")

	if _, err := Load(); err == nil {
		t.Error("expected error for non-numeric PORT")
	}
}

// Keys without a default are invisible to AutomaticEnv, so every field
// needs one for its ECOTRACKER_ variable to take effect.
func TestEveryFieldHasDefault(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	known := map[string]bool{}
	for _, k := range v.AllKeys() {
		known[k] = true
	}

	root := reflect.TypeOf(Config{})
	for i := 0; i < root.NumField(); i++ {
		section := root.Field(i)
		for j := 0; j < section.Type.NumField(); j++ {
			key := strings.ToLower(section.Name + "." + section.Type.Field(j).Name)
			if !known[key] {
				t.Errorf("no default for %s", key)
			}
		}
	}
}
