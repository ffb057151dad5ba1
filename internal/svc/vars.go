package svc

import (
	"strings"

	"github.com/opsvisor/gosv/internal/log"
)

const defaultFds = "null\tnull\tnull"

// GetTags returns the opaque "tags" variable, or "" if unset.
func (reg *Registry) GetTags(rec *Record) string { return rec.vars.GetOr("tags", "") }

// SetTags sets the opaque "tags" variable. An empty value clears it.
func (reg *Registry) SetTags(rec *Record, value string) bool {
	return rec.vars.Set("tags", value)
}

// GetArgv returns the tab-separated "args" variable, or "" if unset.
func (reg *Registry) GetArgv(rec *Record) string { return rec.vars.GetOr("args", "") }

// SetArgv sets the tab-separated argv list.
func (reg *Registry) SetArgv(rec *Record, value string) bool {
	return rec.vars.Set("args", value)
}

// GetFds returns the tab-separated fd-name list, defaulting to
// "null\tnull\tnull" when unset (spec §4.4).
func (reg *Registry) GetFds(rec *Record) string { return rec.vars.GetOr("fds", defaultFds) }

// SetFds sets the fd-name list and recomputes uses_control_event/cmd/socket
// by scanning for the literal tokens control.event/control.cmd/
// control.socket. Setting it to exactly the default canonicalizes to
// "unset" so the default isn't wastefully stored. Grounded on svc_set_fds.
func (reg *Registry) SetFds(rec *Record, value string) bool {
	if value == defaultFds {
		value = ""
	}
	if !rec.vars.Set("fds", value) {
		return false
	}

	rec.usesControlEvent = false
	rec.usesControlCmd = false
	rec.usesControlSocket = false
	for _, name := range strings.Split(value, "\t") {
		switch name {
		case "control.event":
			rec.usesControlEvent = true
		case "control.cmd":
			rec.usesControlCmd = true
		case "control.socket":
			rec.usesControlSocket = true
		}
	}
	return true
}

// GetTriggers returns the tab-separated triggers list, or "" if unset.
func (reg *Registry) GetTriggers(rec *Record) string { return rec.vars.GetOr("triggers", "") }

// SetTriggers parses triggersTsv as a tab-separated list of "always" and/or
// signal names, validating every token before applying anything (setters
// never partially mutate, spec §7). On success it updates auto_restart and
// autostart_signals, toggles sigwake-list membership, and — if a trigger is
// already satisfied — immediately starts the service. Grounded on
// svc_set_triggers.
func (reg *Registry) SetTriggers(rec *Record, triggersTsv string) bool {
	autostart := false
	sigs := make(map[int]bool)

	if triggersTsv != "" {
		for _, tok := range strings.Split(triggersTsv, "\t") {
			if tok == "" {
				continue
			}
			if tok == "always" {
				autostart = true
				continue
			}
			num := reg.signums.NumByName(tok)
			if num <= 0 {
				return false // unrecognized token: leave triggers/autostart_signals unchanged
			}
			sigs[num] = true
		}
	}

	if !rec.vars.Set("triggers", triggersTsv) {
		return false
	}

	rec.autoRestart = autostart
	rec.autostartSigs = sigs
	reg.setSigwake(rec, len(sigs) > 0)

	if rec.autoRestart || reg.checkSigwake(rec) {
		log.Trace().Str("service", rec.name).Msg("service needs started now")
		reg.HandleStart(rec, reg.clock.Now())
	}
	return true
}
