// Package ledger keeps a rolling in-memory accumulator of realized profit.
// There is no persistence: a restart resets the ledger to zero, which is a
// deliberate simplicity trade-off.
package ledger

import (
	"sync"
	"time"

	"github.com/you/flash-arb/internal/metrics"
	"github.com/you/flash-arb/internal/types"
)

const (
	reportWindow = 24 * time.Hour
	// retention runs past the report window so a sample never falls out of
	// the 24h sum before it has aged out of it
	retention = 48 * time.Hour
)

type Ledger struct {
	mu      sync.Mutex
	entries []types.ProfitLogEntry
	now     func() time.Time
}

func New() *Ledger {
	return &Ledger{now: time.Now}
}

// Record appends one realized-profit sample and prunes entries past the
// retention window.
func (l *Ledger) Record(amountUSD float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.entries = append(l.entries, types.ProfitLogEntry{Ts: now, AmountUSD: amountUSD})

	cutoff := now.Add(-retention)
	kept := l.entries[:0]
	for _, e := range l.entries {
		if !e.Ts.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	l.entries = kept

	metrics.Profit24h.Set(l.sumSince(now.Add(-reportWindow)))
}

// Last24h sums samples inside the report window, boundary inclusive. It does
// not mutate state.
func (l *Ledger) Last24h() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sumSince(l.now().Add(-reportWindow))
}

func (l *Ledger) sumSince(cutoff time.Time) float64 {
	var sum float64
	for _, e := range l.entries {
		if !e.Ts.Before(cutoff) {
			sum += e.AmountUSD
		}
	}
	return sum
}
