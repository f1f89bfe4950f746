package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// The pool index is a ranked, best-effort HTTP catalogue of venue liquidity
// (a GeckoTerminal-style top-pools feed). It knows token pairs, venues and
// TVL; on-chain truth (pool address, fee tier, token metadata) is resolved
// separately during enrichment.

type indexToken struct {
	Address string `json:"address"`
}

type indexPool struct {
	Venue  string       `json:"venue"`
	TVLUSD float64      `json:"tvl_usd"`
	Tokens []indexToken `json:"tokens"`
}

type indexResponse struct {
	Pools []indexPool `json:"pools"`
}

type indexClient struct {
	url string
	cli *http.Client
}

func newIndexClient(url string) *indexClient {
	return &indexClient{
		url: url,
		cli: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *indexClient) TopPools(ctx context.Context) ([]indexPool, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build index request: %w", err)
	}
	resp, err := c.cli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch pool index: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pool index status %d", resp.StatusCode)
	}
	var out indexResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode pool index: %w", err)
	}
	return out.Pools, nil
}
