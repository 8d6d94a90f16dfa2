package x402

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"ActionKit-Chain/internal/amount"
	"ActionKit-Chain/internal/contracts"
	"ActionKit-Chain/internal/network"
	"ActionKit-Chain/internal/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// DefaultFacilitator is queried when discovery names none.
const DefaultFacilitator = "cdp"

type facilitator struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Type string `json:"type"`
}

var knownFacilitators = []facilitator{
	{Name: "cdp", URL: "https://api.cdp.coinbase.com/platform/v2/x402", Type: "known"},
	{Name: "payai", URL: "https://facilitator.payai.network", Type: "known"},
}

var supportedNetworks = map[string]string{
	network.BaseMainnet:   network.FamilyEVM,
	network.BaseSepolia:   network.FamilyEVM,
	network.SolanaMainnet: network.FamilySolana,
	network.SolanaDevnet:  network.FamilySolana,
}

// networkAliases maps a network id to its v1 name and v2 CAIP-2 id.
var networkAliases = map[string][]string{
	network.BaseMainnet:   {"base", "eip155:8453"},
	network.BaseSepolia:   {"base-sepolia", "eip155:84532"},
	network.SolanaMainnet: {"solana", "solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp"},
	network.SolanaDevnet:  {"solana-devnet", "solana:EtWTRABZaYq6iMfeYKouRu166VU2xqa1"},
}

var solanaUSDC = map[string]string{
	network.SolanaDevnet:  "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU",
	network.SolanaMainnet: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
}

const usdcDecimals = 6

// walletNetworks returns the x402 identifiers a wallet can pay on.
func walletNetworks(n network.Network) []string {
	if n.NetworkID == "" {
		return nil
	}
	if aliases, ok := networkAliases[n.NetworkID]; ok {
		return append([]string(nil), aliases...)
	}
	return []string{n.NetworkID}
}

// networkIDFor maps a v1 or CAIP-2 identifier back to a network id.
func networkIDFor(x402Network string) string {
	for id, aliases := range networkAliases {
		for _, alias := range aliases {
			if alias == x402Network {
				return id
			}
		}
	}
	return x402Network
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

type assetInfo struct {
	symbol   string
	decimals int
}

// lookupAsset resolves symbol and decimals from the token tables, falling
// back to on chain metadata for unknown EVM tokens.
func lookupAsset(ctx context.Context, w wallet.Wallet, asset string) (assetInfo, bool) {
	n := w.Network()
	switch {
	case n.IsEVM():
		if !common.IsHexAddress(asset) {
			return assetInfo{}, false
		}
		addr := common.HexToAddress(asset)
		if t, ok := contracts.TokenByAddress(n.NetworkID, addr); ok {
			return assetInfo{symbol: t.Symbol, decimals: t.Decimals}, true
		}
		details, err := contracts.ReadTokenDetails(ctx, w, addr)
		if err != nil {
			return assetInfo{}, false
		}
		return assetInfo{symbol: details.Name, decimals: int(details.Decimals)}, true
	case n.IsSolana():
		if usdc, ok := solanaUSDC[n.NetworkID]; ok && asset == usdc {
			return assetInfo{symbol: "USDC", decimals: usdcDecimals}, true
		}
	}
	return assetInfo{}, false
}

// isUSDC reports whether asset is the USDC deployment on the wallet network.
func isUSDC(n network.Network, asset string) bool {
	switch {
	case n.IsEVM():
		usdc, ok := contracts.TokenBySymbol(n.NetworkID, "USDC")
		return ok && strings.EqualFold(usdc.Address.Hex(), asset)
	case n.IsSolana():
		usdc, ok := solanaUSDC[n.NetworkID]
		return ok && asset == usdc
	}
	return false
}

// formatPrice renders an atomic amount such as "0.01 USDC on base-sepolia".
func formatPrice(ctx context.Context, w wallet.Wallet, asset, atomic, x402Network string) string {
	on := networkIDFor(x402Network)
	if value, ok := new(big.Int).SetString(atomic, 10); ok {
		if info, ok := lookupAsset(ctx, w, asset); ok {
			return fmt.Sprintf("%s %s on %s", amount.FormatUnits(value, info.decimals), info.symbol, on)
		}
	}
	return fmt.Sprintf("%s %s on %s", asset, atomic, on)
}

// toAtomic converts whole units of asset into its smallest unit. Unknown
// assets are assumed to have 18 decimals.
func toAtomic(ctx context.Context, w wallet.Wallet, whole float64, asset string) *big.Int {
	decimals := 18
	if info, ok := lookupAsset(ctx, w, asset); ok {
		decimals = info.decimals
	}
	return decimal.NewFromFloat(whole).Shift(int32(decimals)).BigInt()
}

type paymentCheck struct {
	valid     bool
	requested string
	max       string
}

// checkPaymentLimit compares an atomic USDC amount with a whole unit limit.
func checkPaymentLimit(atomic string, maxUSDC float64) (paymentCheck, error) {
	requested, ok := new(big.Int).SetString(strings.TrimSpace(atomic), 10)
	if !ok {
		return paymentCheck{}, fmt.Errorf("payment amount %q is not an integer", atomic)
	}
	limit := decimal.NewFromFloat(maxUSDC)
	return paymentCheck{
		valid:     requested.Cmp(limit.Shift(usdcDecimals).BigInt()) <= 0,
		requested: amount.FormatUnits(requested, usdcDecimals),
		max:       limit.String(),
	}, nil
}
