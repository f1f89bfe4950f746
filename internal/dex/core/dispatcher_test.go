package core

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/you/flash-arb/internal/types"
)

type stubQuoter struct {
	out *big.Int
	err error
}

func (s *stubQuoter) QuoteOut(context.Context, types.CandidatePool, types.TokenMeta, types.TokenMeta, *big.Int) (*big.Int, error) {
	return s.out, s.err
}

func TestDispatcherRoutesByKind(t *testing.T) {
	d := NewDispatcher()
	d.Register(KindUniswapV3, &stubQuoter{out: big.NewInt(100)})
	d.Register(KindBalancerV2, &stubQuoter{out: big.NewInt(200)})

	out, err := d.QuoteOut(context.Background(), types.CandidatePool{Kind: KindUniswapV3}, types.TokenMeta{}, types.TokenMeta{}, big.NewInt(1))
	assert.NoError(t, err)
	assert.Equal(t, big.NewInt(100), out)

	out, err = d.QuoteOut(context.Background(), types.CandidatePool{Kind: KindBalancerV2}, types.TokenMeta{}, types.TokenMeta{}, big.NewInt(1))
	assert.NoError(t, err)
	assert.Equal(t, big.NewInt(200), out)
}

func TestDispatcherCollapsesFailuresToErrNoQuote(t *testing.T) {
	d := NewDispatcher()
	d.Register(KindUniswapV3, &stubQuoter{err: errors.New("execution reverted")})
	d.Register(KindCamelotV3, &stubQuoter{out: big.NewInt(0)})

	_, err := d.QuoteOut(context.Background(), types.CandidatePool{Kind: KindUniswapV3}, types.TokenMeta{}, types.TokenMeta{}, big.NewInt(1))
	assert.ErrorIs(t, err, ErrNoQuote)

	_, err = d.QuoteOut(context.Background(), types.CandidatePool{Kind: KindCamelotV3}, types.TokenMeta{}, types.TokenMeta{}, big.NewInt(1))
	assert.ErrorIs(t, err, ErrNoQuote)

	// unregistered venue
	_, err = d.QuoteOut(context.Background(), types.CandidatePool{Kind: 9}, types.TokenMeta{}, types.TokenMeta{}, big.NewInt(1))
	assert.ErrorIs(t, err, ErrNoQuote)
}
