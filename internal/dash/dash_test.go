package dash

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/you/flash-arb/internal/types"
)

type fakeStatus struct{}

func (fakeStatus) PoolCount() int         { return 7 }
func (fakeStatus) LastRefresh() time.Time { return time.Unix(1_750_000_000, 0) }
func (fakeStatus) ProfitLast24h() float64 { return 8 }
func (fakeStatus) IsDryRun() bool         { return true }

func TestStoreKeepsLatestPerPair(t *testing.T) {
	s := NewStore()

	s.Update(&types.ArbOpportunity{PairKey: "a:b", NetProfitUSD: 5})
	s.Update(&types.ArbOpportunity{PairKey: "a:b", NetProfitUSD: 12})
	s.Update(&types.ArbOpportunity{PairKey: "c:d", NetProfitUSD: 30})

	rows := s.List()
	assert.Len(t, rows, 2)
	// sorted by net descending
	assert.Equal(t, "c:d", rows[0].Pair)
	assert.Equal(t, 30.0, rows[0].NetUSD)
	assert.Equal(t, 12.0, rows[1].NetUSD)
}

func TestOpportunitiesEndpoint(t *testing.T) {
	s := NewStore()
	s.Update(&types.ArbOpportunity{
		PairKey:      "a:b",
		LoanAsset:    types.TokenMeta{Symbol: "USDC"},
		LoanUSD:      1000,
		NetProfitUSD: 22.5,
	})
	mux := newMux(s, fakeStatus{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/opportunities", nil))
	assert.Equal(t, 200, rec.Code)

	var rows []Row
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&rows))
	if assert.Len(t, rows, 1) {
		assert.Equal(t, "USDC", rows[0].Loan)
		assert.Equal(t, 22.5, rows[0].NetUSD)
	}
}

func TestStatusEndpoint(t *testing.T) {
	mux := newMux(NewStore(), fakeStatus{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/api/status", nil))
	assert.Equal(t, 200, rec.Code)

	var st Status
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&st))
	assert.Equal(t, 7, st.Pools)
	assert.Equal(t, 8.0, st.Profit24h)
	assert.True(t, st.DryRun)
}
