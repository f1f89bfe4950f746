// Package dash is a small operator dashboard: the active pool set, the last
// detected opportunity per pair and the trailing realized profit, as JSON and
// a single self-contained HTML page.
package dash

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/you/flash-arb/internal/types"
)

type Row struct {
	Pair     string  `json:"pair"`
	Loan     string  `json:"loan"`
	LoanUSD  float64 `json:"loanUsd"`
	BuyKind  uint8   `json:"buyKind"`
	SellKind uint8   `json:"sellKind"`
	GrossUSD float64 `json:"grossUsd"`
	FeeUSD   float64 `json:"feeUsd"`
	GasUSD   float64 `json:"gasUsd"`
	NetUSD   float64 `json:"netUsd"`
	TS       int64   `json:"ts"`
}

type Status struct {
	Pools       int     `json:"pools"`
	LastRefresh int64   `json:"lastRefresh"`
	Profit24h   float64 `json:"profit24h"`
	DryRun      bool    `json:"dryRun"`
}

// StatusSource is implemented by the engine.
type StatusSource interface {
	PoolCount() int
	LastRefresh() time.Time
	ProfitLast24h() float64
	IsDryRun() bool
}

type Store struct {
	mu   sync.RWMutex
	rows map[string]Row
}

func NewStore() *Store { return &Store{rows: make(map[string]Row, 32)} }

func (s *Store) Update(opp *types.ArbOpportunity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[opp.PairKey] = Row{
		Pair:     opp.PairKey,
		Loan:     opp.LoanAsset.Symbol,
		LoanUSD:  opp.LoanUSD,
		BuyKind:  opp.BuyPool.Kind,
		SellKind: opp.SellPool.Kind,
		GrossUSD: opp.GrossProfitUSD,
		FeeUSD:   opp.LendingFeeUSD,
		GasUSD:   opp.GasUSD,
		NetUSD:   opp.NetProfitUSD,
		TS:       time.Now().UnixMilli(),
	}
}

func (s *Store) List() []Row {
	s.mu.RLock()
	out := make([]Row, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].NetUSD > out[j].NetUSD })
	return out
}

func newMux(s *Store, src StatusSource) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/opportunities", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(s.List())
	})
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Status{
			Pools:       src.PoolCount(),
			LastRefresh: src.LastRefresh().UnixMilli(),
			Profit24h:   src.ProfitLast24h(),
			DryRun:      src.IsDryRun(),
		})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, indexHTML)
	})
	return mux
}

func StartHTTP(ctx context.Context, s *Store, src StatusSource, addr string) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           newMux(s, src),
		ReadHeaderTimeout: 3 * time.Second,
	}

	go func() { <-ctx.Done(); _ = srv.Close() }()

	log.Printf("[dash] listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !strings.Contains(err.Error(), "Server closed") {
		log.Printf("[dash] http server error: %v", err)
	}
}

const indexHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8"/>
  <title>Flash-Arb Monitor</title>
  <style>
    body{margin:0;background:#f8fafc;font:14px/1.4 ui-sans-serif,system-ui;color:#111827;}
    .wrap{max-width:960px;margin:24px auto;padding:0 16px;}
    table{width:100%;border-collapse:collapse;background:#fff;border-radius:12px;overflow:hidden;}
    thead{background:#f3f4f6;} th,td{padding:10px 12px;text-align:left;}
    tbody tr{border-top:1px solid #f3f4f6;}
    .sub{color:#6b7280;font-size:12px;}
  </style>
</head>
<body>
<div class="wrap">
  <h1 style="font-size:20px">Flash-Arb Monitor</h1>
  <p class="sub" id="status">loading…</p>
  <table>
    <thead><tr>
      <th>Pair</th><th>Loan</th><th>Size</th><th>Buy</th><th>Sell</th>
      <th>Gross</th><th>Fee</th><th>Gas</th><th>Net</th><th>Seen</th>
    </tr></thead>
    <tbody id="rows"></tbody>
  </table>
</div>
<script>
  var kinds = ['uniswap_v3','camelot_v3','balancer_v2'];
  function usd(x){ return x==null ? '—' : '$'+Number(x).toFixed(2); }
  async function tick(){
    try{
      var st = await (await fetch('/api/status')).json();
      document.getElementById('status').textContent =
        st.pools+' pools, refreshed '+new Date(st.lastRefresh).toLocaleTimeString()
        +', 24h profit '+usd(st.profit24h)+(st.dryRun?' (dry-run)':'');
      var data = await (await fetch('/api/opportunities')).json();
      document.getElementById('rows').innerHTML = data.map(function(r){
        return '<tr><td>'+r.pair.slice(0,10)+'…</td><td>'+r.loan+'</td><td>'+usd(r.loanUsd)
          +'</td><td>'+kinds[r.buyKind]+'</td><td>'+kinds[r.sellKind]
          +'</td><td>'+usd(r.grossUsd)+'</td><td>'+usd(r.feeUsd)+'</td><td>'+usd(r.gasUsd)
          +'</td><td><strong>'+usd(r.netUsd)+'</strong></td>'
          +'<td class="sub">'+new Date(r.ts).toLocaleTimeString()+'</td></tr>';
      }).join('');
    }catch(e){}
  }
  tick(); setInterval(tick, 2000);
</script>
</body>
</html>`
