package duofern

import "time"

// registrarDebounce is the Registrar's coalescing window (spec.md §4.6):
// restarted on every qualifying observation (new or repeat) of a device
// outside PairSet, so a burst of status frames triggers one reopen
// rather than one per device.
const registrarDebounce = 2 * time.Second

// registrarBackoff is the exponential retry schedule after a failed
// reopen (spec.md §4.6): 2s, 4s, 8s, then give up.
var registrarBackoff = []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}

// registrarMaxAttempts bounds the number of reopen retries before the
// pending batch is dropped and RegistrationExhausted is logged.
const registrarMaxAttempts = len(registrarBackoff)

// Registrar tracks devices heard on the wire but absent from the current
// PairSet (spec.md §4.6). Like Dispatcher, it carries no goroutine or
// lock: it is mutated only from Session's run loop.
type Registrar struct {
	pending    []DeviceCode
	pendingSet map[DeviceCode]bool
	attempts   int
	reopening  bool
}

func newRegistrar() *Registrar {
	return &Registrar{pendingSet: make(map[DeviceCode]bool)}
}

// observe records a device code seen on a status frame. It reports true
// for every observation of a code not in PairSet, whether or not that
// code is already pending — see DESIGN.md's note on spec.md §4.6 vs. its
// scenario 7 for why a repeat observation also (re)arms the debounce
// timer, not just the first.
func (r *Registrar) observe(code DeviceCode, inPairSet bool) bool {
	if inPairSet {
		return false
	}
	if !r.pendingSet[code] {
		r.pendingSet[code] = true
		r.pending = append(r.pending, code)
	}
	return true
}

// drain removes and returns the pending batch in first-observed order.
func (r *Registrar) drain() []DeviceCode {
	out := r.pending
	r.pending = nil
	r.pendingSet = make(map[DeviceCode]bool)
	return out
}

// restore re-arms a batch that failed to reopen, so it is retried on the
// next backoff fire.
func (r *Registrar) restore(batch []DeviceCode) {
	r.pending = batch
	r.pendingSet = make(map[DeviceCode]bool, len(batch))
	for _, c := range batch {
		r.pendingSet[c] = true
	}
}

// backoff returns the wait before retry attempt n (1-based).
func (r *Registrar) backoff(attempt int) time.Duration {
	if attempt-1 < len(registrarBackoff) {
		return registrarBackoff[attempt-1]
	}
	return registrarBackoff[len(registrarBackoff)-1]
}
