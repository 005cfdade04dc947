package config

import "testing"

func withEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func TestLoadRequiresBrokerCredentials(t *testing.T) {
	if _, err := Load(); err == nil {
		t.Fatalf("expected Load to fail without broker credentials")
	}
}

func TestLoadAppliesDefaultsAndOverrides(t *testing.T) {
	withEnv(t, map[string]string{
		"BROKERD_BROKER_API_KEY": "key",
		"BROKERD_BROKER_SECRET":  "secret",
		"BROKERD_HTTP_ADDR":      ":9999",
	})
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Fatalf("expected overridden HTTP addr, got %s", cfg.HTTPAddr)
	}
	if cfg.WSAddr != ":8081" {
		t.Fatalf("expected default WS addr, got %s", cfg.WSAddr)
	}
	if cfg.ReconnectMaxAttempts != 5 {
		t.Fatalf("expected default reconnect attempts 5, got %d", cfg.ReconnectMaxAttempts)
	}
}

func TestLoadRejectsInvalidIntEnv(t *testing.T) {
	withEnv(t, map[string]string{
		"BROKERD_BROKER_API_KEY":  "key",
		"BROKERD_BROKER_SECRET":   "secret",
		"BROKERD_BUS_QUEUE_DEPTH": "not-a-number",
	})
	if _, err := Load(); err == nil {
		t.Fatalf("expected Load to reject a malformed integer env var")
	}
}
