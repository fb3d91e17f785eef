// Package config round-trips an Optimizer's configuration through YAML,
// the way the teacher's own Config struct in engine.go is a plain struct
// meant to be built from a file by its caller (SPEC_FULL.md's AMBIENT STACK:
// "cascade.Options and its nested StageSpec list round-trip through
// YAML via config.Load/config.Save").
package config

import (
	"fmt"
	"io/ioutil"

	"gopkg.in/yaml.v2"

	"github.com/quantumish/cascadeopt/cascade"
)

// Load reads and parses an Options value from a YAML file at path.
// Logger and Tracer are never populated from YAML (cascade.Options tags
// them yaml:"-"); cascade.New fills them with sensible defaults when
// left zero.
func Load(path string) (cascade.Options, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return cascade.Options{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var opts cascade.Options
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return cascade.Options{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return opts, nil
}

// Save writes opts to path as YAML.
func Save(path string, opts cascade.Options) error {
	data, err := yaml.Marshal(opts)
	if err != nil {
		return fmt.Errorf("config: marshal options: %w", err)
	}
	if err := ioutil.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
