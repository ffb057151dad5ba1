// Package cgroup applies the optional per-service resource limits
// described in SPEC_FULL.md's "SUPPLEMENTED FEATURES": a manifest entry
// may request a memory cap and/or CPU quota, applied to a service's
// cgroup v2 leaf right after a successful fork. Failures here are always
// best-effort — they are logged and never fail the fork itself, since the
// spec's Non-goals exclude mandatory quota/cgroup management as a core
// concern (spec §1).
//
// Adapted from kornnellio-gosv/cgroup.go, repurposed from a single-process
// CLI concern into a per-service helper the launcher's caller invokes
// after Launcher.ForkChild returns a pid.
package cgroup

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/opsvisor/gosv/internal/log"
)

const cgroupRoot = "/sys/fs/cgroup"

// Manager locates a writable cgroup v2 base and creates one leaf cgroup
// per service under it.
type Manager struct {
	basePath string
}

// NewManager finds a writable cgroup base and enables the cpu/memory/pids
// controllers for its children. It never fails fatally: if no writable
// location is found, the returned Manager's methods become no-ops and the
// daemon continues without resource limits.
func NewManager() *Manager {
	m := &Manager{}
	path, err := findWritableCgroupBase()
	if err != nil {
		log.Warn().Err(err).Msg("cgroup setup unavailable, continuing without resource limits")
		return m
	}
	m.basePath = path

	controlPath := filepath.Join(m.basePath, "cgroup.subtree_control")
	if err := os.WriteFile(controlPath, []byte("+cpu +memory +pids"), 0644); err != nil {
		log.Warn().Err(err).Msg("could not enable all cgroup controllers")
	}
	log.Info().Str("path", m.basePath).Msg("cgroup base ready")
	return m
}

// Available reports whether a writable cgroup base was found.
func (m *Manager) Available() bool { return m.basePath != "" }

// ApplyLimits creates (or reuses) a leaf cgroup named for the service,
// moves pid into it, and applies the given limits. memoryLimitMB/
// cpuQuotaPercent of 0 mean "no limit" for that dimension.
func (m *Manager) ApplyLimits(serviceName string, pid int, memoryLimitMB, cpuQuotaPercent int) {
	if !m.Available() || (memoryLimitMB <= 0 && cpuQuotaPercent <= 0) {
		return
	}

	path := filepath.Join(m.basePath, serviceName)
	if err := os.MkdirAll(path, 0755); err != nil {
		log.Warn().Err(err).Str("service", serviceName).Msg("failed to create cgroup")
		return
	}

	if err := os.WriteFile(filepath.Join(path, "cgroup.procs"), []byte(strconv.Itoa(pid)), 0644); err != nil {
		log.Warn().Err(err).Str("service", serviceName).Msg("failed to add process to cgroup")
		return
	}

	if memoryLimitMB > 0 {
		bytes := int64(memoryLimitMB) * 1024 * 1024
		if err := os.WriteFile(filepath.Join(path, "memory.max"), []byte(strconv.FormatInt(bytes, 10)), 0644); err != nil {
			log.Warn().Err(err).Str("service", serviceName).Msg("failed to set memory limit")
		}
	}
	if cpuQuotaPercent > 0 {
		const period = 100000 // 100ms, matching kornnellio-gosv/cgroup.go's choice
		quota := (cpuQuotaPercent * period) / 100
		value := fmt.Sprintf("%d %d", quota, period)
		if err := os.WriteFile(filepath.Join(path, "cpu.max"), []byte(value), 0644); err != nil {
			log.Warn().Err(err).Str("service", serviceName).Msg("failed to set CPU quota")
		}
	}

	log.Info().Str("service", serviceName).Int("memory_mb", memoryLimitMB).
		Int("cpu_percent", cpuQuotaPercent).Msg("applied cgroup limits")
}

func getSelfCgroup() (string, error) {
	data, err := os.ReadFile("/proc/self/cgroup")
	if err != nil {
		return "", err
	}
	line := strings.TrimSpace(string(data))
	parts := strings.SplitN(line, "::", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("unexpected cgroup format: %s", line)
	}
	return parts[1], nil
}

// findWritableCgroupBase locates a cgroup path where per-service leaf
// cgroups can be created: the supervisor's own cgroup (after moving
// itself into a "supervisor" leaf so the parent can enable controllers,
// per the cgroup v2 "no internal processes" rule), or /sys/fs/cgroup
// directly for root/non-systemd setups.
func findWritableCgroupBase() (string, error) {
	if selfCgroup, err := getSelfCgroup(); err == nil && selfCgroup != "" {
		parentPath := filepath.Join(cgroupRoot, selfCgroup)

		supervisorPath := filepath.Join(parentPath, "supervisor")
		if err := os.MkdirAll(supervisorPath, 0755); err == nil {
			procsPath := filepath.Join(supervisorPath, "cgroup.procs")
			if err := os.WriteFile(procsPath, []byte(strconv.Itoa(os.Getpid())), 0644); err == nil {
				return parentPath, nil
			}
		}

		path := filepath.Join(parentPath, "gosv")
		if err := os.MkdirAll(path, 0755); err == nil {
			return path, nil
		}
	}

	path := filepath.Join(cgroupRoot, "gosv")
	if err := os.MkdirAll(path, 0755); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("no writable cgroup location found")
}
