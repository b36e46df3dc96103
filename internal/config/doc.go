// Package config loads and validates pipette settings.
//
// Settings are resolved in layers, with higher layers overriding lower:
//
//  3. Environment variables   <- PIPETTE_* (highest priority)
//  2. Config file              <- ~/.config/pipette/config.toml
//  1. Built-in defaults        <- lowest priority
//
// The on-disk format is TOML. Configurations can also be imported from
// and exported to JSON, which hosts use to persist per-project overrides.
//
// Basic usage:
//
//	cfg, err := config.Load(config.DefaultPath())
//	if err != nil { ... }
//	opts, err := cfg.SessionOptions()
package config
