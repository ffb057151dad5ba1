// Package config loads the YAML service manifest gosv starts from.
//
// Adapted from kornnellio-gosv/main.go's Config/ServiceConfig
// (encoding/json), generalized to the full variable set spec §3 defines
// (tags/args/fds/triggers/restart_interval) and switched to YAML, the
// format the rest of the retrieval pack's service-definition tools use
// (dagu-org/dagu, canonical/pebble).
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/opsvisor/gosv/internal/svc"
)

// ServiceSpec is one service entry in the manifest.
type ServiceSpec struct {
	Name            string   `yaml:"name"`
	Tags            string   `yaml:"tags"`
	Command         string   `yaml:"command"`
	Args            []string `yaml:"args"`
	Fds             []string `yaml:"fds"`
	Triggers        []string `yaml:"triggers"`
	RestartInterval float64  `yaml:"restart_interval_seconds"`
	MemoryLimitMB   int      `yaml:"memory_limit_mb"`
	CPUQuotaPercent int      `yaml:"cpu_quota_percent"`
}

// Manifest is the top-level YAML document.
type Manifest struct {
	Services []ServiceSpec `yaml:"services"`
}

// Load reads and parses a YAML manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &m, nil
}

// Limits carries the optional per-service resource limits a manifest
// entry may declare; ApplyManifest hands these back to the caller since
// they are not part of the core service_s data model (spec §3) but a
// supplement applied post-fork (SPEC_FULL.md "SUPPLEMENTED FEATURES").
type Limits struct {
	MemoryLimitMB   int
	CPUQuotaPercent int
}

// ApplyManifest creates or updates a Record per ServiceSpec in the
// registry, returning per-service resource limits for the caller to wire
// into internal/cgroup after each fork. The first setter failure stops the
// load and returns an error; records created or updated before that point
// are not rolled back and stay in the registry.
func ApplyManifest(reg *svc.Registry, m *Manifest) (map[string]Limits, error) {
	limits := make(map[string]Limits, len(m.Services))

	for _, s := range m.Services {
		if !reg.CheckName(s.Name) {
			return nil, fmt.Errorf("config: invalid service name %q", s.Name)
		}
		rec, ok := reg.ByName(s.Name, true)
		if !ok {
			return nil, fmt.Errorf("config: could not create service %q", s.Name)
		}

		if s.Tags != "" && !reg.SetTags(rec, s.Tags) {
			return nil, fmt.Errorf("config: service %q: tags too large", s.Name)
		}

		argv := append([]string{s.Command}, s.Args...)
		if !reg.SetArgv(rec, strings.Join(argv, "\t")) {
			return nil, fmt.Errorf("config: service %q: argv too large", s.Name)
		}

		if len(s.Fds) > 0 {
			if !reg.SetFds(rec, strings.Join(s.Fds, "\t")) {
				return nil, fmt.Errorf("config: service %q: fds too large", s.Name)
			}
		}

		if s.RestartInterval > 0 {
			if !rec.SetRestartInterval(svc.FixedSeconds(s.RestartInterval)) {
				return nil, fmt.Errorf("config: service %q: restart_interval_seconds must be >= 1", s.Name)
			}
		} else {
			rec.SetRestartInterval(svc.SecondsFixed)
		}

		if len(s.Triggers) > 0 {
			if !reg.SetTriggers(rec, strings.Join(s.Triggers, "\t")) {
				return nil, fmt.Errorf("config: service %q: invalid trigger token", s.Name)
			}
		}

		limits[s.Name] = Limits{MemoryLimitMB: s.MemoryLimitMB, CPUQuotaPercent: s.CPUQuotaPercent}
	}

	return limits, nil
}
