package aave

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"ActionKit-Chain/internal/amount"
	"ActionKit-Chain/internal/contracts"
	"ActionKit-Chain/internal/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

var (
	baseUnitScale = decimal.New(1, 8)
	bpsScale      = decimal.New(1, 4)
	hundred       = decimal.NewFromInt(100)
)

// health is a health factor. Accounts without debt have an infinite one.
type health struct {
	value    decimal.Decimal
	infinite bool
}

var infiniteHealth = health{infinite: true}

func healthFromRaw(raw *big.Int) health {
	if raw == nil || raw.Sign() == 0 || raw.Cmp(amount.MaxUint256) == 0 {
		return infiniteHealth
	}
	return health{value: decimal.NewFromBigInt(raw, -18)}
}

func (h health) String() string {
	if h.infinite {
		return "Infinity"
	}
	return h.value.StringFixed(2)
}

func (h health) below(limit float64) bool {
	return !h.infinite && h.value.LessThan(decimal.NewFromFloat(limit))
}

// accountData is getUserAccountData with USD values derived from the
// 8 decimal base currency.
type accountData struct {
	CollateralBase *big.Int
	DebtBase       *big.Int
	AvailableBase  *big.Int

	CollateralUSD        decimal.Decimal
	DebtUSD              decimal.Decimal
	AvailableUSD         decimal.Decimal
	LiquidationThreshold decimal.Decimal
	LTV                  decimal.Decimal
	MaxLTV               decimal.Decimal
	Health               health
}

func readAccount(ctx context.Context, w wallet.Wallet, pool, account common.Address) (accountData, error) {
	out, err := w.ReadContract(ctx, wallet.ReadRequest{
		Contract: pool,
		ABI:      contracts.AavePool,
		Method:   "getUserAccountData",
		Args:     []any{account},
	})
	if err != nil {
		return accountData{}, err
	}
	if len(out) != 6 {
		return accountData{}, fmt.Errorf("getUserAccountData returned %d values", len(out))
	}
	values := make([]*big.Int, 6)
	for i, v := range out {
		n, ok := v.(*big.Int)
		if !ok {
			return accountData{}, fmt.Errorf("getUserAccountData value %d has type %T", i, v)
		}
		values[i] = n
	}

	data := accountData{
		CollateralBase:       values[0],
		DebtBase:             values[1],
		AvailableBase:        values[2],
		CollateralUSD:        decimal.NewFromBigInt(values[0], 0).Div(baseUnitScale),
		DebtUSD:              decimal.NewFromBigInt(values[1], 0).Div(baseUnitScale),
		AvailableUSD:         decimal.NewFromBigInt(values[2], 0).Div(baseUnitScale),
		LiquidationThreshold: decimal.NewFromBigInt(values[3], 0).Div(bpsScale),
		MaxLTV:               decimal.NewFromBigInt(values[4], 0).Div(bpsScale),
		Health:               healthFromRaw(values[5]),
	}
	if values[0].Sign() > 0 {
		data.LTV = decimal.NewFromBigInt(values[1], 0).Div(decimal.NewFromBigInt(values[0], 0)).Mul(hundred)
	}
	return data, nil
}

func readHealth(ctx context.Context, w wallet.Wallet, pool common.Address) (health, error) {
	data, err := readAccount(ctx, w, pool, w.Address())
	if err != nil {
		return health{}, err
	}
	return data.Health, nil
}

func readAssetPrice(ctx context.Context, w wallet.Wallet, oracle, asset common.Address) (*big.Int, error) {
	out, err := w.ReadContract(ctx, wallet.ReadRequest{
		Contract: oracle,
		ABI:      contracts.AaveOracle,
		Method:   "getAssetPrice",
		Args:     []any{asset},
	})
	if err != nil {
		return nil, err
	}
	return contracts.One[*big.Int](out)
}

func healthChange(before, after health) string {
	if before.infinite && after.infinite {
		return ""
	}
	return fmt.Sprintf("\nHealth factor changed from %s to %s", before, after)
}

func portfolioMarkdown(account common.Address, data accountData) string {
	addr := account.Hex()
	var b strings.Builder
	fmt.Fprintf(&b, "# Aave Portfolio for %s...%s\n\n", addr[:6], addr[len(addr)-4:])

	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "**Total Collateral (USD):** %s\n", data.CollateralUSD.StringFixed(3))
	fmt.Fprintf(&b, "**Total Collateral (Base Units):** %s\n", data.CollateralBase)
	fmt.Fprintf(&b, "**Total Debt (USD):** %s\n", data.DebtUSD.StringFixed(3))
	fmt.Fprintf(&b, "**Total Debt (Base Units):** %s\n", data.DebtBase)
	fmt.Fprintf(&b, "**Available to Borrow (USD):** %s\n", data.AvailableUSD.StringFixed(3))
	fmt.Fprintf(&b, "**Available to Borrow (Base Units):** %s\n", data.AvailableBase)
	fmt.Fprintf(&b, "**Liquidation Threshold:** %s%%\n", data.LiquidationThreshold.Mul(hundred).StringFixed(3))
	fmt.Fprintf(&b, "**LTV:** %s\n", amount.Percent(data.LTV))
	fmt.Fprintf(&b, "**Max LTV:** %s%%\n", data.MaxLTV.Mul(hundred).StringFixed(3))

	h := data.Health
	switch {
	case h.infinite:
		b.WriteString("**Health Factor:** ∞ (No borrows)\n")
	case !h.below(2):
		fmt.Fprintf(&b, "**Health Factor:** %s (Healthy)\n", h.value.StringFixed(3))
	case !h.below(1.1):
		fmt.Fprintf(&b, "**Health Factor:** %s (Caution)\n", h.value.StringFixed(3))
	default:
		fmt.Fprintf(&b, "**Health Factor:** %s (Danger - Risk of Liquidation)\n", h.value.StringFixed(3))
	}

	b.WriteString("\n## Recommendations\n\n")
	hasCollateral := data.CollateralBase.Sign() > 0
	hasDebt := data.DebtBase.Sign() > 0
	switch {
	case hasCollateral && hasDebt:
		fmt.Fprintf(&b, "- You have borrowed %s USD (%s) against your collateral. ", data.DebtUSD.StringFixed(2), data.DebtBase)
		if h.below(1.5) {
			b.WriteString("Your health factor is low, consider repaying some debt or adding more collateral to avoid liquidation.\n")
		} else {
			b.WriteString("Your position is healthy. You can borrow more or repay your existing debt as needed.\n")
		}
	case hasCollateral:
		fmt.Fprintf(&b, "- You have supplied %s USD (%s) as collateral but have no borrows. ", data.CollateralUSD.StringFixed(2), data.CollateralBase)
		b.WriteString("You can borrow against your collateral or withdraw if needed.\n")
	case !hasDebt && h.below(1.5):
		b.WriteString("- Your account shows no collateral and no debt, but has a low health factor. ")
		b.WriteString("This could be due to dust amounts or rounding. Consider adding more collateral to improve your position.\n")
	case !hasDebt:
		b.WriteString("- You have no collateral supplied and no borrows in this Aave market.\n")
	default:
		b.WriteString("- Review your account status and consider adjusting your position based on market conditions.\n")
	}
	return b.String()
}
