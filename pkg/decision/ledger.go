package decision

import "sync"

// Ledger tracks the running monetary spend per app. All accounting goes
// through CheckAndAdd so the compare and the increment are one atomic
// step; two concurrent costed events can never both slip under the cap.
//
// Each live engine owns one ledger. Simulation runs construct their own
// so replays never touch live totals.
type Ledger struct {
	mu     sync.Mutex
	totals map[string]float64
}

// NewLedger creates an empty spend ledger.
func NewLedger() *Ledger {
	return &Ledger{totals: make(map[string]float64)}
}

// CheckAndAdd atomically checks whether adding cost for the app would
// exceed cap and, if not, increments the running total. It returns true
// when the charge was accepted. A cap of zero or less means no limit; the
// total is still tracked. A denied charge leaves the total unchanged.
func (l *Ledger) CheckAndAdd(appID string, cost, cap float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cap > 0 && l.totals[appID]+cost > cap {
		return false
	}
	l.totals[appID] += cost
	return true
}

// Total returns the running spend total for the app.
func (l *Ledger) Total(appID string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totals[appID]
}

// Reset clears the running total for the app, for example when the app is
// relaunched.
func (l *Ledger) Reset(appID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.totals, appID)
}
