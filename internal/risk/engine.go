package risk

import "github.com/you/flash-arb/internal/config"

// Engine is the last gate before capital is borrowed: thresholds may have
// been relaxed for scanning, but execution re-checks them.
type Engine struct{ cfg *config.Config }

func NewEngine(cfg *config.Config) *Engine { return &Engine{cfg: cfg} }

func (e *Engine) AllowTrade(netUSD, gasUSD, loanUSD float64) bool {
	if netUSD < e.cfg.Risk.MinProfitUSD {
		return false
	}
	if e.cfg.Risk.MaxGasUSD > 0 && gasUSD > e.cfg.Risk.MaxGasUSD {
		return false
	}
	if loanUSD > e.cfg.Risk.MaxFlashUSD {
		return false
	}
	return true
}
