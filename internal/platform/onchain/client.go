// Package onchain reads V2-style pair state directly from pool contracts
// over an Ethereum JSON-RPC endpoint. It backs the reserve-enrichment path
// for subgraph payloads that arrive without reserves.
package onchain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

const pairABIJSON = `[
  {"constant": true, "inputs": [], "name": "getReserves", "outputs": [
    {"internalType": "uint112", "name": "_reserve0", "type": "uint112"},
    {"internalType": "uint112", "name": "_reserve1", "type": "uint112"},
    {"internalType": "uint32", "name": "_blockTimestampLast", "type": "uint32"}
  ], "stateMutability": "view", "type": "function"}
]`

var (
	pairABI     abi.ABI
	pairABIOnce sync.Once
	pairABIErr  error
)

func getPairABI() (abi.ABI, error) {
	pairABIOnce.Do(func() {
		pairABI, pairABIErr = abi.JSON(strings.NewReader(pairABIJSON))
	})
	return pairABI, pairABIErr
}

// Client wraps an ethclient connection to one network's RPC endpoint.
type Client struct {
	ec *ethclient.Client
}

// Dial connects to the given JSON-RPC endpoint.
func Dial(ctx context.Context, rpcURL string) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("onchain: dial %s: %w", rpcURL, err)
	}
	return &Client{ec: ec}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.ec.Close()
}

// PairReserves calls getReserves on a V2-style pair contract and returns the
// raw token amounts in native units (not decimal-adjusted).
func (c *Client) PairReserves(ctx context.Context, pair string) (*big.Int, *big.Int, error) {
	if !common.IsHexAddress(pair) {
		return nil, nil, fmt.Errorf("onchain: invalid pair address %q", pair)
	}

	parsedABI, err := getPairABI()
	if err != nil {
		return nil, nil, fmt.Errorf("onchain: pair abi: %w", err)
	}

	data, err := parsedABI.Pack("getReserves")
	if err != nil {
		return nil, nil, fmt.Errorf("onchain: pack getReserves: %w", err)
	}

	addr := common.HexToAddress(pair)
	msg := ethereum.CallMsg{To: &addr, Data: data}
	resp, err := c.ec.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("onchain: call getReserves on %s: %w", pair, err)
	}

	values, err := parsedABI.Unpack("getReserves", resp)
	if err != nil {
		return nil, nil, fmt.Errorf("onchain: unpack getReserves: %w", err)
	}
	if len(values) != 3 {
		return nil, nil, fmt.Errorf("onchain: getReserves returned %d values", len(values))
	}

	r0, ok0 := values[0].(*big.Int)
	r1, ok1 := values[1].(*big.Int)
	if !ok0 || !ok1 {
		return nil, nil, fmt.Errorf("onchain: getReserves unexpected types %T, %T", values[0], values[1])
	}
	return r0, r1, nil
}

// ReserveFloat converts a raw reserve amount to token units given the
// token's decimals.
func ReserveFloat(raw *big.Int, decimals int) float64 {
	if raw == nil {
		return 0
	}
	f := new(big.Float).SetInt(raw)
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	out, _ := new(big.Float).Quo(f, scale).Float64()
	return out
}
