// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package config loads the YAML scan configuration that names root
// assemblies, test-method attributes, and reflection-marker attributes —
// the parts of a scan that are specific to one codebase's conventions and
// so do not belong on the command line every time.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// ReflectionSymbol names one specific symbol known, from outside the
// binaries themselves, to be reached reflectively.
type ReflectionSymbol struct {
	Assembly string `yaml:"assembly"`
	Symbol   string `yaml:"symbol"`
}

// Config is the on-disk shape of a scan configuration file.
type Config struct {
	RootAssemblies             []string           `yaml:"root_assemblies"`
	TestMethodAttributes       []string           `yaml:"test_method_attributes"`
	ReflectionMarkerAttributes []string           `yaml:"reflection_marker_attributes"`
	ReflectionSymbols          []ReflectionSymbol `yaml:"reflection_symbols"`
}

// defaultTestMethodAttributes covers the common .NET test framework entry
// point attributes, used when a configuration file does not override them.
var defaultTestMethodAttributes = []string{
	"Xunit.FactAttribute",
	"Xunit.TheoryAttribute",
	"NUnit.Framework.TestAttribute",
	"NUnit.Framework.TestCaseAttribute",
	"Microsoft.VisualStudio.TestTools.UnitTesting.TestMethodAttribute",
}

// Load reads and parses a scan configuration file at path. A missing file is
// not an error: Load returns an empty Config with the built-in defaults
// applied, so a driver can always call Load unconditionally.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return applyDefaults(cfg), nil
			}
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}
	return applyDefaults(cfg), nil
}

func applyDefaults(cfg *Config) *Config {
	if len(cfg.TestMethodAttributes) == 0 {
		cfg.TestMethodAttributes = append([]string(nil), defaultTestMethodAttributes...)
	}
	return cfg
}
