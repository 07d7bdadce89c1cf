// Package cacheio glues cache.Config to the outside world: JSONC config
// files (tailscale/hujson) and YAML debug dumps (gopkg.in/yaml.v3),
// standardizing JSONC to JSON before unmarshaling.
package cacheio

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"

	"github.com/haldor/blockcache/internal/cache"
)

// FileConfig is the on-disk JSONC representation of a cache.Config. Zero
// values mean "use the default" — LoadFile starts from cache.DefaultConfig
// and overlays only the fields present in the file.
type FileConfig struct {
	BlockSize      int     `json:"block_size,omitempty"`
	Associativity  string  `json:"associativity,omitempty"` // "direct", "nway:<W>", "full"
	Replacement    string  `json:"replacement,omitempty"`   // "random", "lru", "lfu", "lrfu", "fifo"
	LRFURate       float64 `json:"lrfu_rate,omitempty"`
	Lookup         string  `json:"lookup,omitempty"` // "identity", "table", "scan"
	WritePolicy    string  `json:"write_policy,omitempty"` // "back", "through"
	AsyncWrite     bool    `json:"async_write,omitempty"`
	BlocksPerFetch int     `json:"blocks_per_fetch,omitempty"`
	Mem            int64   `json:"mem,omitempty"`
	StrictBudget   bool    `json:"strict_budget,omitempty"`
	AsyncQueueLen  int     `json:"async_queue_len,omitempty"`
}

// LoadFile reads a JSONC config file at path, standardizes it to plain
// JSON, and overlays it onto cache.DefaultConfig(). A missing file is not
// an error: the default config is returned unchanged.
func LoadFile(path string) (cache.Config, error) {
	cfg := cache.DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cache.Config{}, errors.Wrapf(err, "blockcache: read config %s", path)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return cache.Config{}, errors.Wrapf(err, "blockcache: invalid JSONC in %s", path)
	}

	var fc FileConfig
	if err := json.Unmarshal(standardized, &fc); err != nil {
		return cache.Config{}, errors.Wrapf(err, "blockcache: invalid config JSON in %s", path)
	}

	return overlay(cfg, fc)
}

// overlay applies fc's non-zero fields onto base.
func overlay(base cache.Config, fc FileConfig) (cache.Config, error) {
	if fc.BlockSize != 0 {
		base.BlockSize = fc.BlockSize
	}
	if fc.Associativity != "" {
		a, err := parseAssociativity(fc.Associativity)
		if err != nil {
			return cache.Config{}, err
		}
		base.Associativity = a
	}
	if fc.Replacement != "" {
		r, err := parseReplacement(fc.Replacement)
		if err != nil {
			return cache.Config{}, err
		}
		base.Replacement = r
	}
	if fc.LRFURate != 0 {
		base.LRFURate = fc.LRFURate
	}
	if fc.Lookup != "" {
		l, err := parseLookup(fc.Lookup)
		if err != nil {
			return cache.Config{}, err
		}
		base.Lookup = l
	}
	if fc.WritePolicy != "" {
		switch fc.WritePolicy {
		case "back":
			base.WritePolicy = cache.WriteBack
		case "through":
			base.WritePolicy = cache.WriteThrough
		default:
			return cache.Config{}, fmt.Errorf("blockcache: unknown write_policy %q", fc.WritePolicy)
		}
	}
	base.AsyncWrite = base.AsyncWrite || fc.AsyncWrite
	if fc.BlocksPerFetch != 0 {
		base.BlocksPerFetch = fc.BlocksPerFetch
	}
	if fc.Mem != 0 {
		base.Mem = fc.Mem
	}
	base.StrictBudget = base.StrictBudget || fc.StrictBudget
	if fc.AsyncQueueLen != 0 {
		base.AsyncQueueLen = fc.AsyncQueueLen
	}
	return base, nil
}

func parseAssociativity(s string) (cache.Associativity, error) {
	switch {
	case s == "direct":
		return cache.DirectMapped(), nil
	case s == "full":
		return cache.FullyAssociative(), nil
	default:
		var w int
		if _, err := fmt.Sscanf(s, "nway:%d", &w); err != nil || w <= 0 {
			return cache.Associativity{}, fmt.Errorf("blockcache: unknown associativity %q", s)
		}
		return cache.NWay(w), nil
	}
}

func parseReplacement(s string) (cache.ReplacementKind, error) {
	switch s {
	case "random":
		return cache.ReplacementRandom, nil
	case "lru":
		return cache.ReplacementLRU, nil
	case "lfu":
		return cache.ReplacementLFU, nil
	case "lrfu":
		return cache.ReplacementLRFU, nil
	case "fifo":
		return cache.ReplacementFIFO, nil
	default:
		return 0, fmt.Errorf("blockcache: unknown replacement %q", s)
	}
}

func parseLookup(s string) (cache.LookupKind, error) {
	switch s {
	case "identity":
		return cache.LookupIdentity, nil
	case "table":
		return cache.LookupTable, nil
	case "scan":
		return cache.LookupScan, nil
	default:
		return 0, fmt.Errorf("blockcache: unknown lookup %q", s)
	}
}

// debugConfig is the YAML-friendly mirror of an effective cache.Config,
// used by DumpYAML for operator-facing diagnostics (--dump-config).
type debugConfig struct {
	BlockSize      int     `yaml:"block_size"`
	Associativity  string  `yaml:"associativity"`
	Replacement    string  `yaml:"replacement"`
	LRFURate       float64 `yaml:"lrfu_rate,omitempty"`
	Lookup         string  `yaml:"lookup"`
	WritePolicy    string  `yaml:"write_policy"`
	AsyncWrite     bool    `yaml:"async_write"`
	BlocksPerFetch int     `yaml:"blocks_per_fetch"`
	Mem            int64   `yaml:"mem"`
	StrictBudget   bool    `yaml:"strict_budget"`
	AsyncQueueLen  int     `yaml:"async_queue_len,omitempty"`
}

// DumpYAML renders the effective configuration as YAML, for
// blockcachectl's --dump-config diagnostic.
func DumpYAML(cfg cache.Config) (string, error) {
	dc := debugConfig{
		BlockSize:      cfg.BlockSize,
		Associativity:  cfg.Associativity.String(),
		Replacement:    cfg.Replacement.String(),
		LRFURate:       cfg.LRFURate,
		Lookup:         cfg.Lookup.String(),
		WritePolicy:    cfg.WritePolicy.String(),
		AsyncWrite:     cfg.AsyncWrite,
		BlocksPerFetch: cfg.BlocksPerFetch,
		Mem:            cfg.Mem,
		StrictBudget:   cfg.StrictBudget,
		AsyncQueueLen:  cfg.AsyncQueueLen,
	}
	out, err := yaml.Marshal(dc)
	if err != nil {
		return "", errors.Wrap(err, "blockcache: marshal config to yaml")
	}
	return string(out), nil
}
