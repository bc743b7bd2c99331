package registry

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	hvAddr     = common.HexToAddress("0x1111111111111111111111111111111111111111")
	poolAddr   = common.HexToAddress("0x2222222222222222222222222222222222222222")
	token0Addr = common.HexToAddress("0x3333333333333333333333333333333333333333")
	token1Addr = common.HexToAddress("0x4444444444444444444444444444444444444444")
)

type fakeCaller struct {
	responses map[string][]byte
}

func callKey(to common.Address, selector []byte) string {
	return to.Hex() + ":" + hex.EncodeToString(selector)
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	resp, ok := f.responses[callKey(*msg.To, msg.Data[:4])]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return resp, nil
}

func mustABI(t *testing.T, l *lazyABI) abi.ABI {
	t.Helper()
	parsed, err := l.get()
	require.NoError(t, err)
	return parsed
}

func pack(t *testing.T, parsed abi.ABI, method string, value interface{}) []byte {
	t.Helper()
	out, err := parsed.Methods[method].Outputs.Pack(value)
	require.NoError(t, err)
	return out
}

func newFakeCaller(t *testing.T) *fakeCaller {
	hv := mustABI(t, hypervisorABI)
	str := mustABI(t, erc20SymbolString)
	b32 := mustABI(t, erc20SymbolBytes)

	var mkr [32]byte
	copy(mkr[:], "MKR")

	r := make(map[string][]byte)
	r[callKey(hvAddr, hv.Methods["pool"].ID)] = pack(t, hv, "pool", poolAddr)
	r[callKey(hvAddr, hv.Methods["token0"].ID)] = pack(t, hv, "token0", token0Addr)
	r[callKey(hvAddr, hv.Methods["token1"].ID)] = pack(t, hv, "token1", token1Addr)
	r[callKey(token0Addr, str.Methods["symbol"].ID)] = pack(t, str, "symbol", "WETH")
	r[callKey(token1Addr, b32.Methods["symbol"].ID)] = pack(t, b32, "symbol", mkr)
	return &fakeCaller{responses: r}
}

func TestOnChainFetch(t *testing.T) {
	oc := NewOnChain(newFakeCaller(t), zaptest.NewLogger(t))
	fixed := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	oc.now = func() time.Time { return fixed }

	got, err := oc.Fetch(context.Background(), "ethereum", "uniswapv3", hvAddr.Hex())
	require.NoError(t, err)

	assert.Equal(t, "0x1111111111111111111111111111111111111111", got.Address)
	assert.Equal(t, "0x2222222222222222222222222222222222222222", got.Pool)
	assert.Equal(t, "WETH-MKR", got.Symbol)
	assert.Equal(t, "ethereum", got.Chain)
	assert.Equal(t, "uniswapv3", got.Protocol)
	assert.Equal(t, fixed, got.UpdatedAt)
}

func TestOnChainFetchSymbolFallsBackToAddress(t *testing.T) {
	caller := newFakeCaller(t)
	str := mustABI(t, erc20SymbolString)
	delete(caller.responses, callKey(token0Addr, str.Methods["symbol"].ID))

	got, err := NewOnChain(caller, nil).Fetch(context.Background(), "ethereum", "uniswapv3", hvAddr.Hex())
	require.NoError(t, err)
	assert.Equal(t, token0Addr.Hex()+"-MKR", got.Symbol)
}

func TestOnChainFetchErrors(t *testing.T) {
	_, err := NewOnChain(newFakeCaller(t), nil).Fetch(context.Background(), "ethereum", "uniswapv3", "not-an-address")
	require.Error(t, err)

	caller := newFakeCaller(t)
	hv := mustABI(t, hypervisorABI)
	delete(caller.responses, callKey(hvAddr, hv.Methods["pool"].ID))
	_, err = NewOnChain(caller, nil).Fetch(context.Background(), "ethereum", "uniswapv3", hvAddr.Hex())
	require.ErrorContains(t, err, "call pool")
}
