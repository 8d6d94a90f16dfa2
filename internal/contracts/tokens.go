package contracts

import (
	"sort"
	"strings"

	"ActionKit-Chain/internal/network"

	"github.com/ethereum/go-ethereum/common"
)

// Token is a well known ERC20 deployment.
type Token struct {
	Symbol   string
	Address  common.Address
	Decimals int
}

var tokensByNetwork = map[string][]Token{
	network.BaseMainnet: {
		{Symbol: "USDC", Address: common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"), Decimals: 6},
		{Symbol: "EURC", Address: common.HexToAddress("0x60a3E35Cc302bFA44Cb288Bc5a4F316Fdb1adb42"), Decimals: 6},
		{Symbol: "CBBTC", Address: common.HexToAddress("0xcbB7C0000aB88B473b1f5aFd9ef808440eed33Bf"), Decimals: 8},
		{Symbol: "WETH", Address: common.HexToAddress("0x4200000000000000000000000000000000000006"), Decimals: 18},
	},
	network.BaseSepolia: {
		{Symbol: "USDC", Address: common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e"), Decimals: 6},
		{Symbol: "EURC", Address: common.HexToAddress("0x808456652fdb597867f38412077A9182bf77359F"), Decimals: 6},
		{Symbol: "WETH", Address: common.HexToAddress("0x4200000000000000000000000000000000000006"), Decimals: 18},
	},
	network.EthereumMainnet: {
		{Symbol: "USDC", Address: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), Decimals: 6},
		{Symbol: "WETH", Address: common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"), Decimals: 18},
	},
	network.EthereumSepolia: {
		{Symbol: "USDC", Address: common.HexToAddress("0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238"), Decimals: 6},
		{Symbol: "WETH", Address: common.HexToAddress("0xfFf9976782d46CC05630D1f6eBAb18b2324d6B14"), Decimals: 18},
	},
	network.OptimismMainnet: {
		{Symbol: "USDC", Address: common.HexToAddress("0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85"), Decimals: 6},
		{Symbol: "WETH", Address: common.HexToAddress("0x4200000000000000000000000000000000000006"), Decimals: 18},
	},
	network.ArbitrumMainnet: {
		{Symbol: "USDC", Address: common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831"), Decimals: 6},
		{Symbol: "WETH", Address: common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1"), Decimals: 18},
	},
	network.PolygonMainnet: {
		{Symbol: "USDC", Address: common.HexToAddress("0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359"), Decimals: 6},
		{Symbol: "WETH", Address: common.HexToAddress("0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619"), Decimals: 18},
	},
}

// TokenBySymbol resolves a symbol on a network id. Matching ignores case.
func TokenBySymbol(networkID, symbol string) (Token, bool) {
	for _, t := range tokensByNetwork[networkID] {
		if strings.EqualFold(t.Symbol, symbol) {
			return t, true
		}
	}
	return Token{}, false
}

// TokenByAddress resolves an address on a network id.
func TokenByAddress(networkID string, addr common.Address) (Token, bool) {
	for _, t := range tokensByNetwork[networkID] {
		if t.Address == addr {
			return t, true
		}
	}
	return Token{}, false
}

// Symbols lists the known token symbols on a network id.
func Symbols(networkID string) []string {
	tokens := tokensByNetwork[networkID]
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, t.Symbol)
	}
	sort.Strings(out)
	return out
}
