package core

import (
	"context"
	"fmt"
	"math/big"

	"github.com/you/flash-arb/internal/types"
)

// Dispatcher routes quote requests to the venue-specific strategy. It is an
// instance (not a package global) so tests can wire fake quoters.
type Dispatcher struct {
	byKind map[VenueKind]Quoter
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{byKind: make(map[VenueKind]Quoter, 3)}
}

func (d *Dispatcher) Register(kind VenueKind, q Quoter) { d.byKind[kind] = q }

// QuoteOut implements Quoter by venue dispatch. Unknown venue kinds and
// strategy failures both collapse to ErrNoQuote: the caller only ever needs
// "priced" or "not priced this cycle".
func (d *Dispatcher) QuoteOut(ctx context.Context, pool types.CandidatePool, tokenIn, tokenOut types.TokenMeta, amountIn *big.Int) (*big.Int, error) {
	q, ok := d.byKind[pool.Kind]
	if !ok {
		return nil, fmt.Errorf("venue kind %d: %w", pool.Kind, ErrNoQuote)
	}
	out, err := q.QuoteOut(ctx, pool, tokenIn, tokenOut, amountIn)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrNoQuote)
	}
	if out == nil || out.Sign() <= 0 {
		return nil, ErrNoQuote
	}
	return out, nil
}
