package multicall

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

var mcAddr = common.HexToAddress("0xcA11bde05977b3631167028862bE2a173976CA11")

type cannedCaller struct {
	lastMsg ethereum.CallMsg
	resp    []byte
	err     error
}

func (c *cannedCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	c.lastMsg = msg
	return c.resp, c.err
}

func packResults(t *testing.T, results []Result) []byte {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(multicallABI))
	assert.NoError(t, err)

	type ret struct {
		Success    bool
		ReturnData []byte
	}
	rets := make([]ret, len(results))
	for i, r := range results {
		rets[i] = ret{Success: r.Success, ReturnData: r.Data}
	}
	out, err := parsed.Methods["tryAggregate"].Outputs.Pack(rets)
	assert.NoError(t, err)
	return out
}

func TestTryAggregatePerCallSuccess(t *testing.T) {
	ec := &cannedCaller{resp: packResults(t, []Result{
		{Success: true, Data: []byte{0x01}},
		{Success: false, Data: nil},
	})}
	mc, err := New(ec, mcAddr)
	assert.NoError(t, err)

	calls := []Call{
		{Target: common.HexToAddress("0x01"), CallData: []byte{0xaa}},
		{Target: common.HexToAddress("0x02"), CallData: []byte{0xbb}},
	}
	res, err := mc.TryAggregate(context.Background(), calls)
	assert.NoError(t, err)
	assert.Len(t, res, 2)
	assert.True(t, res[0].Success)
	assert.False(t, res[1].Success)
	assert.Equal(t, mcAddr, *ec.lastMsg.To)
}

func TestTryAggregateEmptyReturnDataIsFailure(t *testing.T) {
	// some targets answer success with zero bytes; that is useless data
	ec := &cannedCaller{resp: packResults(t, []Result{{Success: true, Data: nil}})}
	mc, err := New(ec, mcAddr)
	assert.NoError(t, err)

	res, err := mc.TryAggregate(context.Background(), []Call{{Target: common.HexToAddress("0x01")}})
	assert.NoError(t, err)
	assert.False(t, res[0].Success)
}

func TestTryAggregateLengthMismatch(t *testing.T) {
	ec := &cannedCaller{resp: packResults(t, []Result{{Success: true, Data: []byte{0x01}}})}
	mc, err := New(ec, mcAddr)
	assert.NoError(t, err)

	_, err = mc.TryAggregate(context.Background(), []Call{
		{Target: common.HexToAddress("0x01")},
		{Target: common.HexToAddress("0x02")},
	})
	assert.Error(t, err)
}

func TestTryAggregateCallError(t *testing.T) {
	mc, err := New(&cannedCaller{err: errors.New("rpc down")}, mcAddr)
	assert.NoError(t, err)

	_, err = mc.TryAggregate(context.Background(), []Call{{Target: common.HexToAddress("0x01")}})
	assert.Error(t, err)
}
