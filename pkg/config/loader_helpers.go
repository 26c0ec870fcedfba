package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// loadAndMerge loads a YAML file and merges it into the config. Only fields
// present in the file override the base (so defaults stay intact for
// anything the file omits).
func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	mergeConfigs(cfg, &override, raw)
	return nil
}

// mergeConfigs merges override into base, field by field. raw is consulted
// only for boolean fields, to distinguish an explicit false from an absent
// key; for other fields a zero or empty value never overrides base.
func mergeConfigs(base, override *Config, raw map[string]any) {
	if override == nil {
		return
	}

	if override.Orchestrator.MaxBranches != 0 {
		base.Orchestrator.MaxBranches = override.Orchestrator.MaxBranches
	}
	if override.Orchestrator.DefaultTimeout != 0 {
		base.Orchestrator.DefaultTimeout = override.Orchestrator.DefaultTimeout
	}
	if override.Orchestrator.EngineConcurrency != 0 {
		base.Orchestrator.EngineConcurrency = override.Orchestrator.EngineConcurrency
	}

	if override.Storage.DSN != "" {
		base.Storage.DSN = override.Storage.DSN
	}

	if override.Session.Root != "" {
		base.Session.Root = override.Session.Root
	}
	if override.Session.Backend != "" {
		base.Session.Backend = override.Session.Backend
	}

	if override.Merge.DefaultStrategy != "" {
		base.Merge.DefaultStrategy = override.Merge.DefaultStrategy
	}

	if override.Log.Dir != "" {
		base.Log.Dir = override.Log.Dir
	}
	if override.Log.Level != "" {
		base.Log.Level = override.Log.Level
	}

	if boolFieldSet(raw, "metrics", "enabled") {
		base.Metrics.Enabled = override.Metrics.Enabled
	}
	if override.Metrics.Namespace != "" {
		base.Metrics.Namespace = override.Metrics.Namespace
	}

	if boolFieldSet(raw, "tracing", "enabled") {
		base.Tracing.Enabled = override.Tracing.Enabled
	}
	if override.Tracing.ServiceName != "" {
		base.Tracing.ServiceName = override.Tracing.ServiceName
	}
}

// boolFieldSet reports whether a nested bool key was explicitly present in
// the raw YAML document, so an explicit "false" is distinguishable from an
// absent key (which the typed override can't tell apart on its own).
func boolFieldSet(raw map[string]any, path ...string) bool {
	cur := raw
	for i, key := range path {
		v, ok := cur[key]
		if !ok {
			return false
		}
		if i == len(path)-1 {
			_, isBool := v.(bool)
			return isBool
		}
		next, ok := v.(map[string]any)
		if !ok {
			return false
		}
		cur = next
	}
	return false
}
