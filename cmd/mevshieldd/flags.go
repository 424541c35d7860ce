package main

import (
	"flag"
	"fmt"
	"strconv"

	"github.com/mevshield/mevshield/config"
)

// flagSet wraps flag.FlagSet to add support for uint64 flags.
type flagSet struct {
	*flag.FlagSet
}

// newCustomFlagSet creates a flagSet with ContinueOnError behavior.
func newCustomFlagSet(name string) *flagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	return &flagSet{FlagSet: fs}
}

// Uint64Var defines a uint64 flag. Go's standard flag package lacks uint64
// support, so we use a custom Value implementation.
func (fs *flagSet) Uint64Var(p *uint64, name string, value uint64, usage string) {
	fs.FlagSet.Var(&uint64Value{p: p}, name, usage)
	*p = value
}

// Bool wraps flag.FlagSet.Bool.
func (fs *flagSet) Bool(name string, value bool, usage string) *bool {
	return fs.FlagSet.Bool(name, value, usage)
}

// uint64Value implements flag.Value for uint64 flags.
type uint64Value struct {
	p *uint64
}

func (v *uint64Value) String() string {
	if v.p == nil {
		return "0"
	}
	return strconv.FormatUint(*v.p, 10)
}

func (v *uint64Value) Set(s string) error {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid uint64 value %q", s)
	}
	*v.p = n
	return nil
}

// newFlagSet creates a flagSet that binds all CLI flags to the given Config.
func newFlagSet(cfg *config.Config) *flagSet {
	fs := newCustomFlagSet("mevshieldd")
	fs.StringVar(&cfg.DataDir, "datadir", cfg.DataDir, "data directory path")
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "path to a TOML-like config file")
	fs.Uint64Var(&cfg.ChainID, "chainid", cfg.ChainID, "chain identifier this instance serves")
	fs.IntVar(&cfg.K, "threshold.k", cfg.K, "threshold scheme: shares required to decrypt")
	fs.IntVar(&cfg.N, "threshold.n", cfg.N, "threshold scheme: total validator shares")
	fs.Uint64Var(&cfg.VDFIterations, "vdf.iterations", cfg.VDFIterations, "VDF sequential squarings per slot")
	fs.Uint64Var(&cfg.VDFSecurityBits, "vdf.security-bits", cfg.VDFSecurityBits, "VDF modulus security bits")
	fs.Uint64Var(&cfg.SlotSeconds, "slot-seconds", cfg.SlotSeconds, "wall-clock seconds between slots")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	fs.BoolVar(&cfg.Metrics, "metrics", cfg.Metrics, "enable metrics collection")
	return fs
}
