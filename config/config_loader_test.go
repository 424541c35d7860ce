package config

import "testing"

func TestLoadAppliesOverridesOnTopOfDefaults(t *testing.T) {
	content := `chain_id = 7
log_level = "debug"

[threshold]
k = 4
n = 7

[vdf]
iterations = 4096
security_bits = 256

[redistribution]
redistribution_fraction = 0.5
dust_threshold = 10
`
	cfg, err := Load([]byte(content))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ChainID != 7 {
		t.Errorf("ChainID = %d, want 7", cfg.ChainID)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.K != 4 || cfg.N != 7 {
		t.Errorf("K/N = %d/%d, want 4/7", cfg.K, cfg.N)
	}
	if cfg.VDFIterations != 4096 {
		t.Errorf("VDFIterations = %d, want 4096", cfg.VDFIterations)
	}
	if cfg.VDFSecurityBits != 256 {
		t.Errorf("VDFSecurityBits = %d, want 256", cfg.VDFSecurityBits)
	}
	if cfg.RedistributionFraction != 0.5 {
		t.Errorf("RedistributionFraction = %v, want 0.5", cfg.RedistributionFraction)
	}
	if cfg.DustThreshold != 10 {
		t.Errorf("DustThreshold = %d, want 10", cfg.DustThreshold)
	}
	// Untouched fields keep their default value.
	if cfg.Name != "mevshieldd" {
		t.Errorf("Name = %q, want default mevshieldd", cfg.Name)
	}
}

func TestLoadIgnoresCommentsAndBlankLines(t *testing.T) {
	content := `# this is a comment
chain_id = 3

# another comment
log_level = "warn"
`
	cfg, err := Load([]byte(content))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ChainID != 3 {
		t.Errorf("ChainID = %d, want 3", cfg.ChainID)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
}

func TestLoadRejectsUnknownSection(t *testing.T) {
	_, err := Load([]byte("[bogus]\nfoo = 1\n"))
	if err == nil {
		t.Fatal("expected error for unknown section")
	}
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	_, err := Load([]byte("bogus_key = 1\n"))
	if err == nil {
		t.Fatal("expected error for unknown top-level key")
	}
}

func TestLoadRejectsMalformedLine(t *testing.T) {
	_, err := Load([]byte("this has no equals sign\n"))
	if err == nil {
		t.Fatal("expected error for line without '='")
	}
}

func TestLoadRejectsUnclosedSection(t *testing.T) {
	_, err := Load([]byte("[threshold\nk = 3\n"))
	if err == nil {
		t.Fatal("expected error for unclosed section header")
	}
}

func TestApplyEnvironmentOverridesDefaults(t *testing.T) {
	cfg := Default()
	env := map[string]string{
		"MEVSHIELD_CHAIN_ID":    "42",
		"MEVSHIELD_LOG_LEVEL":   "debug",
		"MEVSHIELD_METRICS":     "true",
		"MEVSHIELD_SLOT_SECONDS": "6",
	}
	ApplyEnvironment(&cfg, func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if cfg.ChainID != 42 {
		t.Errorf("ChainID = %d, want 42", cfg.ChainID)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if !cfg.Metrics {
		t.Error("Metrics should be true")
	}
	if cfg.SlotSeconds != 6 {
		t.Errorf("SlotSeconds = %d, want 6", cfg.SlotSeconds)
	}
}

func TestApplyEnvironmentIgnoresInvalidValues(t *testing.T) {
	cfg := Default()
	origChainID := cfg.ChainID
	ApplyEnvironment(&cfg, func(k string) (string, bool) {
		if k == "MEVSHIELD_CHAIN_ID" {
			return "notanumber", true
		}
		return "", false
	})
	if cfg.ChainID != origChainID {
		t.Errorf("ChainID = %d, want unchanged %d", cfg.ChainID, origChainID)
	}
}
