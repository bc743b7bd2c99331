package registry

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"hypervisorReturns/internal/model"
)

// ContractCaller performs read-only contract calls.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// OnChain reads hypervisor metadata from its contracts.
type OnChain struct {
	caller ContractCaller
	logger *zap.Logger
	now    func() time.Time
}

func NewOnChain(caller ContractCaller, logger *zap.Logger) *OnChain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OnChain{caller: caller, logger: logger, now: time.Now}
}

// Fetch builds a registry entry for a hypervisor. The symbol is "SYM0-SYM1";
// a token whose symbol cannot be read contributes its address instead.
func (o *OnChain) Fetch(ctx context.Context, chain, protocol, address string) (model.Hypervisor, error) {
	if o.caller == nil {
		return model.Hypervisor{}, fmt.Errorf("contract caller is nil")
	}
	if !common.IsHexAddress(address) {
		return model.Hypervisor{}, fmt.Errorf("address %q: %w", address, model.ErrInvalidAddress)
	}
	hv := common.HexToAddress(address)

	parsed, err := hypervisorABI.get()
	if err != nil {
		return model.Hypervisor{}, fmt.Errorf("parse hypervisor abi: %w", err)
	}

	pool, err := o.callAddress(ctx, hv, parsed, "pool")
	if err != nil {
		return model.Hypervisor{}, err
	}
	token0, err := o.callAddress(ctx, hv, parsed, "token0")
	if err != nil {
		return model.Hypervisor{}, err
	}
	token1, err := o.callAddress(ctx, hv, parsed, "token1")
	if err != nil {
		return model.Hypervisor{}, err
	}

	return model.Hypervisor{
		Address:   model.NormalizeAddress(hv.Hex()),
		Chain:     chain,
		Symbol:    o.symbol(ctx, token0) + "-" + o.symbol(ctx, token1),
		Pool:      model.NormalizeAddress(pool.Hex()),
		Protocol:  protocol,
		UpdatedAt: o.now().UTC(),
	}, nil
}

func (o *OnChain) callAddress(ctx context.Context, to common.Address, parsed abi.ABI, method string) (common.Address, error) {
	values, err := o.call(ctx, to, parsed, method)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%s: unsupported address type %T", method, values[0])
	}
	return addr, nil
}

// symbol tries the string ABI, then the bytes32 one used by older tokens.
func (o *OnChain) symbol(ctx context.Context, token common.Address) string {
	if parsed, err := erc20SymbolString.get(); err == nil {
		if values, err := o.call(ctx, token, parsed, "symbol"); err == nil {
			if s, ok := values[0].(string); ok && s != "" {
				return s
			}
		}
	}
	if parsed, err := erc20SymbolBytes.get(); err == nil {
		values, err := o.call(ctx, token, parsed, "symbol")
		if err == nil {
			if s, ok := bytes32ToString(values[0]); ok && s != "" {
				return s
			}
		} else {
			o.logger.Debug("symbol call failed", zap.String("token", token.Hex()), zap.Error(err))
		}
	}
	return token.Hex()
}

func (o *OnChain) call(ctx context.Context, to common.Address, parsed abi.ABI, method string) ([]interface{}, error) {
	data, err := parsed.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := o.caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", method)
	}
	return values, nil
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}
