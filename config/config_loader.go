package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Load parses a TOML-like configuration file into a Config seeded with
// Default(). Unset keys keep their default value. Sections mirror Config's
// grouping: [threshold], [vdf], [mempool], [detection], [builder],
// [reputation], [redistribution].
func Load(data []byte) (*Config, error) {
	cfg := Default()
	section := ""

	for lineNum, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || line[0] == '#' {
			continue
		}
		if line[0] == '[' {
			end := strings.Index(line, "]")
			if end < 0 {
				return nil, fmt.Errorf("line %d: unclosed section header", lineNum+1)
			}
			section = strings.TrimSpace(line[1:end])
			continue
		}
		eqIdx := strings.Index(line, "=")
		if eqIdx < 0 {
			return nil, fmt.Errorf("line %d: expected key = value", lineNum+1)
		}
		key := strings.TrimSpace(line[:eqIdx])
		val := strings.TrimSpace(line[eqIdx+1:])
		if err := applyValue(&cfg, section, key, val, lineNum+1); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

func applyValue(cfg *Config, section, key, val string, lineNum int) error {
	switch section {
	case "":
		return applyTopLevel(cfg, key, val, lineNum)
	case "threshold":
		return applyThreshold(cfg, key, val, lineNum)
	case "vdf":
		return applyVDF(cfg, key, val, lineNum)
	case "mempool":
		return applyMempool(cfg, key, val, lineNum)
	case "detection":
		return applyDetection(cfg, key, val, lineNum)
	case "builder":
		return applyBuilder(cfg, key, val, lineNum)
	case "reputation":
		return applyReputation(cfg, key, val, lineNum)
	case "redistribution":
		return applyRedistribution(cfg, key, val, lineNum)
	default:
		return fmt.Errorf("line %d: unknown section [%s]", lineNum, section)
	}
}

func applyTopLevel(cfg *Config, key, val string, lineNum int) error {
	switch key {
	case "datadir":
		cfg.DataDir = unquote(val)
	case "name":
		cfg.Name = unquote(val)
	case "chain_id":
		n, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid chain_id: %w", lineNum, err)
		}
		cfg.ChainID = n
	case "slot_seconds":
		n, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid slot_seconds: %w", lineNum, err)
		}
		cfg.SlotSeconds = n
	case "log_level":
		cfg.LogLevel = unquote(val)
	case "metrics":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("line %d: invalid metrics: %w", lineNum, err)
		}
		cfg.Metrics = b
	default:
		return fmt.Errorf("line %d: unknown key %q in top-level", lineNum, key)
	}
	return nil
}

func applyThreshold(cfg *Config, key, val string, lineNum int) error {
	switch key {
	case "k":
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("line %d: invalid k: %w", lineNum, err)
		}
		cfg.K = n
	case "n":
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("line %d: invalid n: %w", lineNum, err)
		}
		cfg.N = n
	default:
		return fmt.Errorf("line %d: unknown key %q in [threshold]", lineNum, key)
	}
	return nil
}

func applyVDF(cfg *Config, key, val string, lineNum int) error {
	switch key {
	case "iterations":
		n, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid iterations: %w", lineNum, err)
		}
		cfg.VDFIterations = n
	case "security_bits":
		n, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid security_bits: %w", lineNum, err)
		}
		cfg.VDFSecurityBits = n
	default:
		return fmt.Errorf("line %d: unknown key %q in [vdf]", lineNum, key)
	}
	return nil
}

func applyMempool(cfg *Config, key, val string, lineNum int) error {
	switch key {
	case "grace_window_seconds":
		n, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid grace_window_seconds: %w", lineNum, err)
		}
		cfg.GraceWindowSeconds = n
	case "retry_limit":
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("line %d: invalid retry_limit: %w", lineNum, err)
		}
		cfg.RetryLimit = n
	case "max_unlock_skew_seconds":
		n, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid max_unlock_skew_seconds: %w", lineNum, err)
		}
		cfg.MaxUnlockSkewSeconds = n
	case "high_watermark":
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("line %d: invalid high_watermark: %w", lineNum, err)
		}
		cfg.HighWatermark = n
	default:
		return fmt.Errorf("line %d: unknown key %q in [mempool]", lineNum, key)
	}
	return nil
}

func applyDetection(cfg *Config, key, val string, lineNum int) error {
	switch key {
	case "confidence_threshold":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid confidence_threshold: %w", lineNum, err)
		}
		cfg.ConfidenceThreshold = f
	default:
		return fmt.Errorf("line %d: unknown key %q in [detection]", lineNum, key)
	}
	return nil
}

func applyBuilder(cfg *Config, key, val string, lineNum int) error {
	switch key {
	case "min_reputation":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid min_reputation: %w", lineNum, err)
		}
		cfg.MinReputation = f
	case "min_stake":
		n, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid min_stake: %w", lineNum, err)
		}
		cfg.MinStake = n
	case "active_window":
		n, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid active_window: %w", lineNum, err)
		}
		cfg.ActiveWindow = n
	case "rotation_cap":
		n, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid rotation_cap: %w", lineNum, err)
		}
		cfg.RotationCap = n
	default:
		return fmt.Errorf("line %d: unknown key %q in [builder]", lineNum, key)
	}
	return nil
}

func applyReputation(cfg *Config, key, val string, lineNum int) error {
	switch key {
	case "alpha_accept":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid alpha_accept: %w", lineNum, err)
		}
		cfg.AlphaAccept = f
	case "beta_age":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid beta_age: %w", lineNum, err)
		}
		cfg.BetaAge = f
	case "gamma_reject":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid gamma_reject: %w", lineNum, err)
		}
		cfg.GammaReject = f
	case "sigma":
		n, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid sigma: %w", lineNum, err)
		}
		cfg.Sigma = n
	case "delta_slash":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid delta_slash: %w", lineNum, err)
		}
		cfg.DeltaSlash = f
	default:
		return fmt.Errorf("line %d: unknown key %q in [reputation]", lineNum, key)
	}
	return nil
}

func applyRedistribution(cfg *Config, key, val string, lineNum int) error {
	switch key {
	case "redistribution_fraction":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid redistribution_fraction: %w", lineNum, err)
		}
		cfg.RedistributionFraction = f
	case "weight_gas":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid weight_gas: %w", lineNum, err)
		}
		cfg.WeightGas = f
	case "weight_value":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid weight_value: %w", lineNum, err)
		}
		cfg.WeightValue = f
	case "dust_threshold":
		n, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid dust_threshold: %w", lineNum, err)
		}
		cfg.DustThreshold = n
	case "epoch_slots":
		n, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid epoch_slots: %w", lineNum, err)
		}
		cfg.EpochSlots = n
	default:
		return fmt.Errorf("line %d: unknown key %q in [redistribution]", lineNum, key)
	}
	return nil
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// ApplyEnvironment overrides Config fields from MEVSHIELD_-prefixed
// environment variables, applied after a config file and before CLI flags.
func ApplyEnvironment(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup("MEVSHIELD_DATADIR"); ok && v != "" {
		cfg.DataDir = v
	}
	if v, ok := lookup("MEVSHIELD_CHAIN_ID"); ok && v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.ChainID = n
		}
	}
	if v, ok := lookup("MEVSHIELD_LOG_LEVEL"); ok && v != "" {
		cfg.LogLevel = v
	}
	if v, ok := lookup("MEVSHIELD_METRICS"); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics = b
		}
	}
	if v, ok := lookup("MEVSHIELD_SLOT_SECONDS"); ok && v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.SlotSeconds = n
		}
	}
}
