package svc

// RunActive is the scheduler entry point (spec §4.2): it sweeps the
// sigwake list against new signal events, then runs the state machine on
// every active record, tolerating self-modification in both passes. After
// the sweep, the wake clock's Next reflects the earliest pending Start
// record, since HandleStart/Run already lower it as they go.
//
// Grounded on svc_run_active (original_source/src/service.c:558-583).
func (reg *Registry) RunActive() {
	if reg.sigwake.head != nil {
		for {
			ev, ok := reg.sigSource.NextEvent(reg.lastSignalTs)
			if !ok {
				break
			}
			reg.sigwake.forEachSafe(sigwakeAccessor, func(rec *Record) {
				if rec.autostartSigs[ev.Signum] {
					reg.HandleStart(rec, reg.clock.Now())
				}
			})
			reg.lastSignalTs = ev.Ts
		}
	}

	reg.active.forEachSafe(activeAccessor, func(rec *Record) {
		reg.Run(rec)
	})
}
