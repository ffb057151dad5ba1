// Package procinfo reads /proc/[pid]/* to build the SIGUSR1 debug dump
// described in SPEC_FULL.md's "SUPPLEMENTED FEATURES".
//
// Adapted from kornnellio-gosv/proc.go's ProcInfo/ReadProcInfo, unchanged
// in mechanism (same files read, same parsing), swapped from a
// fmt.Println-based Supervisor.Introspect into a Dump(reg) that walks an
// svc.Registry and logs through internal/log.
package procinfo

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/opsvisor/gosv/internal/log"
	"github.com/opsvisor/gosv/internal/svc"
)

// Info holds what was read from /proc/[pid] for one running process.
type Info struct {
	PID        int
	Name       string
	State      string
	PPid       int
	Threads    int
	VmRSS      int64 // KB
	VmSize     int64 // KB
	FDs        []FD
	MemoryMaps []MemoryMap
}

// FD describes one open file descriptor, resolved via /proc/[pid]/fd/N.
type FD struct {
	FD   int
	Path string
}

// MemoryMap is one line of /proc/[pid]/maps.
type MemoryMap struct {
	Start    uint64
	End      uint64
	Perms    string
	Pathname string
}

// Read collects process info for pid from procfs.
func Read(pid int) (*Info, error) {
	procPath := fmt.Sprintf("/proc/%d", pid)
	if _, err := os.Stat(procPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("process %d does not exist", pid)
	}

	info := &Info{PID: pid}
	if err := info.readStatus(procPath); err != nil {
		return nil, err
	}
	info.FDs = readFDs(procPath)
	info.MemoryMaps = readMaps(procPath)
	return info, nil
}

func (p *Info) readStatus(procPath string) error {
	data, err := os.ReadFile(filepath.Join(procPath, "status"))
	if err != nil {
		return err
	}
	for _, line := range strings.Split(string(data), "\n") {
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])

		switch key {
		case "Name":
			p.Name = val
		case "State":
			p.State = val
		case "PPid":
			p.PPid, _ = strconv.Atoi(val)
		case "Threads":
			p.Threads, _ = strconv.Atoi(val)
		case "VmRSS":
			if fields := strings.Fields(val); len(fields) > 0 {
				p.VmRSS, _ = strconv.ParseInt(fields[0], 10, 64)
			}
		case "VmSize":
			if fields := strings.Fields(val); len(fields) > 0 {
				p.VmSize, _ = strconv.ParseInt(fields[0], 10, 64)
			}
		}
	}
	return nil
}

func readFDs(procPath string) []FD {
	fdPath := filepath.Join(procPath, "fd")
	entries, err := os.ReadDir(fdPath)
	if err != nil {
		return nil
	}

	var fds []FD
	for _, entry := range entries {
		fd, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		target, err := os.Readlink(filepath.Join(fdPath, entry.Name()))
		if err != nil {
			continue
		}
		fds = append(fds, FD{FD: fd, Path: target})
	}
	return fds
}

func readMaps(procPath string) []MemoryMap {
	data, err := os.ReadFile(filepath.Join(procPath, "maps"))
	if err != nil {
		return nil
	}

	var maps []MemoryMap
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}
		addrParts := strings.Split(fields[0], "-")
		if len(addrParts) != 2 {
			continue
		}
		start, _ := strconv.ParseUint(addrParts[0], 16, 64)
		end, _ := strconv.ParseUint(addrParts[1], 16, 64)

		pathname := ""
		if len(fields) >= 6 {
			pathname = fields[5]
		}
		maps = append(maps, MemoryMap{Start: start, End: end, Perms: fields[1], Pathname: pathname})
	}
	return maps
}

// String renders Info the way a SIGUSR1 dump line prints it.
func (p *Info) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("pid=%d name=%s state=%s ppid=%d threads=%d rss=%dKB vsz=%dKB",
		p.PID, p.Name, p.State, p.PPid, p.Threads, p.VmRSS, p.VmSize))

	sb.WriteString(fmt.Sprintf(" fds=%d", len(p.FDs)))
	for _, fd := range p.FDs {
		sb.WriteString(fmt.Sprintf(" %d->%s", fd.FD, fd.Path))
	}
	return sb.String()
}

// Dump logs procfs info for every service currently up, triggered on
// SIGUSR1. Services with no live pid, or whose proc entry has already
// gone (the child exited between the signal and the read), are skipped.
func Dump(reg *svc.Registry) {
	var rec *svc.Record
	for {
		next, ok := reg.IterNext(rec, "")
		if !ok {
			return
		}
		rec = next

		if rec.State() != svc.Up || rec.Pid() == 0 {
			continue
		}
		info, err := Read(rec.Pid())
		if err != nil {
			log.Warn().Str("service", rec.Name()).Err(err).Msg("proc dump unavailable")
			continue
		}
		log.Info().Str("service", rec.Name()).Msg(info.String())
	}
}
