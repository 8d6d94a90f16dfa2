// Package aave exposes lending actions against the Aave V3 pool.
package aave

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"ActionKit-Chain/internal/action"
	"ActionKit-Chain/internal/amount"
	"ActionKit-Chain/internal/contracts"
	xerrors "ActionKit-Chain/internal/errors"
	"ActionKit-Chain/internal/network"
	"ActionKit-Chain/internal/schema"
	"ActionKit-Chain/internal/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Name is the provider namespace.
const Name = "aave"

const (
	rateStable   = 1
	rateVariable = 2
	maxAmount    = "max"
)

type market struct {
	pool   common.Address
	oracle common.Address
	assets map[string]common.Address
}

var markets = map[string]market{
	network.BaseMainnet: {
		pool:   common.HexToAddress("0xA238Dd80C259a72e81d7e4664a9801593F98d1c5"),
		oracle: common.HexToAddress("0x2Cc0Fc26eD4563A5ce5e8bdcfe1A2878676Ae156"),
		assets: map[string]common.Address{
			"weth":   common.HexToAddress("0x4200000000000000000000000000000000000006"),
			"usdc":   common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
			"cbeth":  common.HexToAddress("0x2Ae3F1Ec7F1F5012CFEab0185bfc7aa3cf0DEc22"),
			"wstETH": common.HexToAddress("0xc1CBa3fCea344f92D9239c08C0568f6F2F0ee452"),
			"cbBTC":  common.HexToAddress("0xcbB7C0000aB88B473b1f5aFd9ef808440eed33Bf"),
			"GHO":    common.HexToAddress("0x6Bb7a212910682DCFdbd5BCBb3e28FB4E8da10Ee"),
		},
	},
}

const assetEnum = `"enum": ["weth", "usdc", "cbeth", "wstETH", "cbBTC", "GHO"]`

var supplySchema = schema.MustCompile(`{
  "type": "object",
  "properties": {
    "asset_id": {"type": "string", ` + assetEnum + `, "description": "The asset ID to supply to the Aave market"},
    "amount": {"type": "string", "description": "The amount of the asset to supply, e.g. 0.125 weth; 19.99 usdc"},
    "on_behalf_of": {"type": "string", "pattern": "` + schema.AddressPattern + `", "description": "Optional address to supply assets on behalf of"},
    "referral_code": {"type": "integer", "minimum": 0, "maximum": 65535, "default": 0}
  },
  "required": ["asset_id", "amount"]
}`)

var withdrawSchema = schema.MustCompile(`{
  "type": "object",
  "properties": {
    "asset_id": {"type": "string", ` + assetEnum + `},
    "amount": {"type": "string", "description": "The amount to withdraw, or 'max' to withdraw all"},
    "to": {"type": "string", "pattern": "` + schema.AddressPattern + `", "description": "Optional address to withdraw assets to"}
  },
  "required": ["asset_id", "amount"]
}`)

var borrowSchema = schema.MustCompile(`{
  "type": "object",
  "properties": {
    "asset_id": {"type": "string", ` + assetEnum + `},
    "amount": {"type": "string", "description": "The amount of the asset to borrow"},
    "interest_rate_mode": {"type": "integer", "enum": [1, 2], "default": 2, "description": "1 for stable, 2 for variable"},
    "on_behalf_of": {"type": "string", "pattern": "` + schema.AddressPattern + `"},
    "referral_code": {"type": "integer", "minimum": 0, "maximum": 65535, "default": 0}
  },
  "required": ["asset_id", "amount"]
}`)

var repaySchema = schema.MustCompile(`{
  "type": "object",
  "properties": {
    "asset_id": {"type": "string", ` + assetEnum + `},
    "amount": {"type": "string", "description": "The amount to repay, or 'max' to repay all"},
    "interest_rate_mode": {"type": "integer", "enum": [1, 2], "default": 2},
    "on_behalf_of": {"type": "string", "pattern": "` + schema.AddressPattern + `"}
  },
  "required": ["asset_id", "amount"]
}`)

var collateralSchema = schema.MustCompile(`{
  "type": "object",
  "properties": {
    "asset_id": {"type": "string", ` + assetEnum + `},
    "use_as_collateral": {"type": "boolean", "default": true}
  },
  "required": ["asset_id"]
}`)

var portfolioSchema = schema.MustCompile(`{
  "type": "object",
  "properties": {
    "account": {"type": "string", "pattern": "` + schema.AddressPattern + `", "description": "Optional address to get portfolio details for"}
  }
}`)

type supplyArgs struct {
	AssetID      string `json:"asset_id"`
	Amount       string `json:"amount"`
	OnBehalfOf   string `json:"on_behalf_of"`
	ReferralCode uint16 `json:"referral_code"`
}

type withdrawArgs struct {
	AssetID string `json:"asset_id"`
	Amount  string `json:"amount"`
	To      string `json:"to"`
}

type borrowArgs struct {
	AssetID          string `json:"asset_id"`
	Amount           string `json:"amount"`
	InterestRateMode int64  `json:"interest_rate_mode"`
	OnBehalfOf       string `json:"on_behalf_of"`
	ReferralCode     uint16 `json:"referral_code"`
}

type repayArgs struct {
	AssetID          string `json:"asset_id"`
	Amount           string `json:"amount"`
	InterestRateMode int64  `json:"interest_rate_mode"`
	OnBehalfOf       string `json:"on_behalf_of"`
}

type collateralArgs struct {
	AssetID         string `json:"asset_id"`
	UseAsCollateral bool   `json:"use_as_collateral"`
}

type portfolioArgs struct {
	Account string `json:"account"`
}

// Provider implements the Aave actions.
type Provider struct {
	action.Base
}

// New returns the Aave provider.
func New() *Provider {
	return &Provider{Base: action.NewBase(Name)}
}

// SupportsNetwork accepts the EVM networks with a configured market.
func (p *Provider) SupportsNetwork(n network.Network) bool {
	if !n.IsEVM() {
		return false
	}
	_, ok := markets[n.NetworkID]
	return ok
}

// Actions lists the lending actions.
func (p *Provider) Actions() []action.Descriptor {
	return []action.Descriptor{
		{
			Name: "supply",
			Description: `This tool allows supplying assets to Aave V3 protocol as collateral for borrowing or earning interest.
It takes:
- asset_id: The asset to supply, one of weth, usdc, cbeth, wstETH, cbBTC, or GHO
- amount: The amount of tokens to supply in human-readable format, e.g. 0.1 WETH or 100 USDC
- on_behalf_of: (Optional) The address to supply on behalf of, defaults to wallet address
- referral_code: (Optional) Referral code, default is 0

Supplying assets will enable them as collateral by default.`,
			Schema: supplySchema,
			Invoke: p.supply,
		},
		{
			Name: "withdraw",
			Description: `This tool allows withdrawing assets from Aave V3 protocol.
It takes:
- asset_id: The asset to withdraw, one of weth, usdc, cbeth, wstETH, cbBTC, or GHO
- amount: The amount of tokens to withdraw in human-readable format or 'max' to withdraw all
- to: (Optional) The address to withdraw to, defaults to wallet address

If you have active borrows, you may not be able to withdraw all collateral.`,
			Schema: withdrawSchema,
			Invoke: p.withdraw,
		},
		{
			Name: "borrow",
			Description: `This tool allows borrowing assets from Aave V3 protocol against your supplied collateral.
It takes:
- asset_id: The asset to borrow, one of weth, usdc, cbeth, wstETH, cbBTC, or GHO
- amount: The amount of tokens to borrow in human-readable format
- interest_rate_mode: (Optional) 1 for stable, 2 for variable. Default is variable (2).
- on_behalf_of: (Optional) The address to borrow on behalf of, defaults to wallet address
- referral_code: (Optional) Referral code, default is 0

Borrowing will reduce your health factor. Keep it above 1 to avoid liquidation.`,
			Schema: borrowSchema,
			Invoke: p.borrow,
		},
		{
			Name: "repay",
			Description: `This tool allows repaying borrowed assets to Aave V3 protocol.
It takes:
- asset_id: The asset to repay, one of weth, usdc, cbeth, wstETH, cbBTC, or GHO
- amount: The amount of tokens to repay in human-readable format or 'max' to repay all
- interest_rate_mode: (Optional) 1 for stable, 2 for variable. Default is variable (2).
- on_behalf_of: (Optional) The address to repay debt for, defaults to wallet address`,
			Schema: repaySchema,
			Invoke: p.repay,
		},
		{
			Name: "get_portfolio",
			Description: `This tool retrieves your Aave V3 portfolio details, showing your supplied collateral, borrowed assets, and health factor.
It takes:
- account: (Optional) The address to get portfolio details for, defaults to wallet address

A health factor above 1 means your position is safe from liquidation.`,
			Schema: portfolioSchema,
			Invoke: p.portfolio,
		},
		{
			Name: "set_collateral",
			Description: `This tool allows setting whether an asset is used as collateral in Aave V3 protocol.
It takes:
- asset_id: The asset to set as collateral, one of weth, usdc, cbeth, wstETH, cbBTC, or GHO
- use_as_collateral: Whether to use the asset as collateral, defaults to true

The asset must already be supplied to Aave.`,
			Schema: collateralSchema,
			Invoke: p.setCollateral,
		},
	}
}

// marketFor resolves the pool and asset for the wallet's network. A non
// empty message is returned to the caller verbatim.
func marketFor(w wallet.Wallet, assetID string) (market, common.Address, string) {
	n := w.Network()
	m, ok := markets[n.NetworkID]
	if !ok || !n.IsEVM() {
		return market{}, common.Address{}, fmt.Sprintf("Error: Network %s is not supported by Aave", n.NetworkID)
	}
	asset, ok := m.assets[assetID]
	if !ok {
		return market{}, common.Address{}, fmt.Sprintf("Error: Asset %s not supported on %s", assetID, n.NetworkID)
	}
	return m, asset, ""
}

// atomicAmount converts a human amount into base units. Excess fraction
// digits are truncated and "max" is 2^256 - 1.
func atomicAmount(value string, decimals int) (*big.Int, error) {
	if strings.EqualFold(value, maxAmount) {
		return new(big.Int).Set(amount.MaxUint256), nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %s", value)
	}
	if d.IsNegative() {
		return nil, amount.ErrNegative
	}
	return d.Shift(int32(decimals)).Truncate(0).BigInt(), nil
}

func addressOr(raw string, fallback common.Address) common.Address {
	if raw == "" {
		return fallback
	}
	return common.HexToAddress(raw)
}

func rateName(mode int64) string {
	if mode == rateStable {
		return "stable"
	}
	return "variable"
}

func readDecimals(ctx context.Context, w wallet.Wallet, token common.Address) (int, error) {
	out, err := w.ReadContract(ctx, wallet.ReadRequest{Contract: token, ABI: contracts.ERC20, Method: "decimals"})
	if err != nil {
		return 0, err
	}
	d, err := contracts.One[uint8](out)
	return int(d), err
}

func readSymbol(ctx context.Context, w wallet.Wallet, token common.Address) string {
	out, err := w.ReadContract(ctx, wallet.ReadRequest{Contract: token, ABI: contracts.ERC20, Method: "symbol"})
	if err != nil {
		return token.Hex()
	}
	symbol, err := contracts.One[string](out)
	if err != nil {
		return token.Hex()
	}
	return symbol
}

// submit sends a pool call and waits for its receipt. A reverted receipt
// is returned without error.
func submit(ctx context.Context, w wallet.Wallet, pool common.Address, method string, args ...any) (*wallet.Receipt, error) {
	data, err := contracts.AavePool.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	hash, err := w.SendTransaction(ctx, wallet.TransactionRequest{To: pool, Data: data})
	if err != nil {
		return nil, err
	}
	return w.WaitForTransactionReceipt(ctx, hash)
}

func (p *Provider) supply(ctx context.Context, w wallet.Wallet, raw map[string]any) (string, error) {
	var args supplyArgs
	if err := schema.Decode(raw, &args); err != nil {
		return "", err
	}
	m, asset, msg := marketFor(w, args.AssetID)
	if msg != "" {
		return msg, nil
	}
	netID := w.Network().NetworkID

	decimals, err := readDecimals(ctx, w, asset)
	if err != nil {
		return fmt.Sprintf("Error: Could not get token information for %s on %s. The token contract may not be properly deployed or accessible: %v", args.AssetID, netID, err), nil
	}
	value, err := atomicAmount(args.Amount, decimals)
	if err != nil {
		return "", xerrors.External("supplying to Aave", err)
	}

	balance, err := contracts.BalanceOf(ctx, w, asset, w.Address())
	if err != nil {
		return fmt.Sprintf("Error: Could not check balance for %s on %s. The token contract may not be properly deployed or accessible: %v", args.AssetID, netID, err), nil
	}
	if balance.Cmp(value) < 0 {
		return fmt.Sprintf("Error: Insufficient balance. You have %s %s, but trying to supply %s",
			amount.FormatUnits(balance, decimals), args.AssetID, args.Amount), nil
	}

	before, err := readHealth(ctx, w, m.pool)
	if err != nil {
		before = infiniteHealth
	}

	if _, err := contracts.Approve(ctx, w, asset, m.pool, value); err != nil {
		return "", xerrors.External("approving token for Aave", err)
	}

	onBehalfOf := addressOr(args.OnBehalfOf, w.Address())
	receipt, err := submit(ctx, w, m.pool, "supply", asset, value, onBehalfOf, args.ReferralCode)
	if err == nil && !receipt.Succeeded() {
		err = fmt.Errorf("transaction %s reverted", receipt.TxHash.Hex())
	}
	if err != nil {
		lower := strings.ToLower(err.Error())
		if strings.Contains(lower, "not deployed") || strings.Contains(lower, "call contract function") {
			return fmt.Sprintf("Error: Could not supply %s to Aave on %s. This token may not be properly supported by Aave on this network.", args.AssetID, netID), nil
		}
		return "", xerrors.External("executing supply transaction", err)
	}

	after, err := readHealth(ctx, w, m.pool)
	if err != nil {
		after = before
	}
	return fmt.Sprintf("Successfully supplied %s %s to Aave.\nTransaction hash: %s%s",
		args.Amount, readSymbol(ctx, w, asset), receipt.TxHash.Hex(), healthChange(before, after)), nil
}

func (p *Provider) withdraw(ctx context.Context, w wallet.Wallet, raw map[string]any) (string, error) {
	var args withdrawArgs
	if err := schema.Decode(raw, &args); err != nil {
		return "", err
	}
	m, asset, msg := marketFor(w, args.AssetID)
	if msg != "" {
		return msg, nil
	}

	decimals, err := readDecimals(ctx, w, asset)
	if err != nil {
		return "", xerrors.External("withdrawing from Aave", err)
	}
	value, err := atomicAmount(args.Amount, decimals)
	if err != nil {
		return "", xerrors.External("withdrawing from Aave", err)
	}

	account, err := readAccount(ctx, w, m.pool, w.Address())
	if err != nil {
		return "", xerrors.External("checking account data", err)
	}
	isMax := strings.EqualFold(args.Amount, maxAmount)
	if account.DebtBase.Sign() > 0 && isMax {
		return "Error: You have active borrows. You cannot withdraw all your collateral. Specify an exact amount instead.", nil
	}

	to := addressOr(args.To, w.Address())
	receipt, err := submit(ctx, w, m.pool, "withdraw", asset, value, to)
	if err != nil {
		return "", xerrors.External("executing withdraw transaction", err)
	}
	if !receipt.Succeeded() {
		return "Error: Transaction failed. Your health factor may be at risk if you withdraw this amount.", nil
	}

	after, err := readHealth(ctx, w, m.pool)
	if err != nil {
		after = infiniteHealth
	}
	display := args.Amount
	if isMax {
		display = "all available"
	}
	return fmt.Sprintf("Successfully withdrew %s %s from Aave.\nTransaction hash: %s%s",
		display, readSymbol(ctx, w, asset), receipt.TxHash.Hex(), healthChange(account.Health, after)), nil
}

func (p *Provider) borrow(ctx context.Context, w wallet.Wallet, raw map[string]any) (string, error) {
	var args borrowArgs
	if err := schema.Decode(raw, &args); err != nil {
		return "", err
	}
	m, asset, msg := marketFor(w, args.AssetID)
	if msg != "" {
		return msg, nil
	}

	decimals, err := readDecimals(ctx, w, asset)
	if err != nil {
		return "", xerrors.External("borrowing from Aave", err)
	}
	value, err := atomicAmount(args.Amount, decimals)
	if err != nil {
		return "", xerrors.External("borrowing from Aave", err)
	}

	account, err := readAccount(ctx, w, m.pool, w.Address())
	if err != nil {
		return "", xerrors.External("checking account data", err)
	}
	if account.CollateralBase.Sign() == 0 {
		return "Error: You have no collateral supplied. Supply assets as collateral before borrowing.", nil
	}

	price, err := readAssetPrice(ctx, w, m.oracle, asset)
	if err != nil {
		if account.AvailableBase.Sign() == 0 {
			return "Error: You have no borrowing capacity available.", nil
		}
		return fmt.Sprintf("Error getting asset price: %v. Please try again.", err), nil
	}
	// The oracle quotes in the same 8 decimal base currency as the account data.
	required := amount.ToDecimal(value, decimals).Mul(decimal.NewFromBigInt(price, 0))
	if required.GreaterThan(decimal.NewFromBigInt(account.AvailableBase, 0)) {
		return fmt.Sprintf("Error: Insufficient borrowing capacity. You can borrow up to $%s worth of assets.",
			account.AvailableUSD.StringFixed(4)), nil
	}

	onBehalfOf := addressOr(args.OnBehalfOf, w.Address())
	receipt, err := submit(ctx, w, m.pool, "borrow", asset, value, big.NewInt(args.InterestRateMode), args.ReferralCode, onBehalfOf)
	if err != nil {
		return "", xerrors.External("executing borrow transaction", err)
	}
	if !receipt.Succeeded() {
		return "Error: Transaction failed. The borrow may exceed your available borrowing capacity.", nil
	}

	after := health{}
	if updated, err := readAccount(ctx, w, m.pool, w.Address()); err == nil {
		after = updated.Health
	}
	warning := ""
	if after.below(1.1) {
		warning = fmt.Sprintf("\n⚠️ WARNING: Your health factor is now %s, which is dangerously low. Consider repaying some debt or adding more collateral to avoid liquidation.", after)
	}
	return fmt.Sprintf("Successfully borrowed %s %s from Aave with %s interest rate.\nTransaction hash: %s\nHealth factor changed from %s to %s%s",
		args.Amount, readSymbol(ctx, w, asset), rateName(args.InterestRateMode), receipt.TxHash.Hex(),
		account.Health, after, warning), nil
}

func (p *Provider) repay(ctx context.Context, w wallet.Wallet, raw map[string]any) (string, error) {
	var args repayArgs
	if err := schema.Decode(raw, &args); err != nil {
		return "", err
	}
	m, asset, msg := marketFor(w, args.AssetID)
	if msg != "" {
		return msg, nil
	}

	decimals, err := readDecimals(ctx, w, asset)
	if err != nil {
		return "", xerrors.External("repaying to Aave", err)
	}
	value, err := atomicAmount(args.Amount, decimals)
	if err != nil {
		return "", xerrors.External("repaying to Aave", err)
	}
	isMax := strings.EqualFold(args.Amount, maxAmount)
	if !isMax {
		balance, err := contracts.BalanceOf(ctx, w, asset, w.Address())
		if err != nil {
			return "", xerrors.External("repaying to Aave", err)
		}
		if balance.Cmp(value) < 0 {
			return fmt.Sprintf("Error: Insufficient balance. You have %s %s, but trying to repay %s",
				amount.FormatUnits(balance, decimals), args.AssetID, args.Amount), nil
		}
	}

	before, err := readHealth(ctx, w, m.pool)
	if err != nil {
		before = infiniteHealth
	}
	if _, err := contracts.Approve(ctx, w, asset, m.pool, value); err != nil {
		return "", xerrors.External("approving token", err)
	}

	onBehalfOf := addressOr(args.OnBehalfOf, w.Address())
	receipt, err := submit(ctx, w, m.pool, "repay", asset, value, big.NewInt(args.InterestRateMode), onBehalfOf)
	if err != nil {
		return "", xerrors.External("executing repay transaction", err)
	}
	if !receipt.Succeeded() {
		return "Error: Transaction failed. You may not have borrowed this asset with the specified interest rate mode.", nil
	}

	after, err := readHealth(ctx, w, m.pool)
	if err != nil {
		after = before
	}
	display := args.Amount
	if isMax {
		display = "all outstanding"
	}
	healthMsg := fmt.Sprintf("\nHealth factor changed from %s to %s", before, after)
	if after.infinite {
		healthMsg = "\nYou have repaid all your debt and have no active borrows."
	}
	return fmt.Sprintf("Successfully repaid %s %s to Aave with %s interest rate.\nTransaction hash: %s%s",
		display, readSymbol(ctx, w, asset), rateName(args.InterestRateMode), receipt.TxHash.Hex(), healthMsg), nil
}

func (p *Provider) portfolio(ctx context.Context, w wallet.Wallet, raw map[string]any) (string, error) {
	var args portfolioArgs
	if err := schema.Decode(raw, &args); err != nil {
		return "", err
	}
	m, ok := markets[w.Network().NetworkID]
	if !ok {
		return fmt.Sprintf("Error: Network %s is not supported by Aave", w.Network().NetworkID), nil
	}
	account := addressOr(args.Account, w.Address())
	data, err := readAccount(ctx, w, m.pool, account)
	if err != nil {
		return "", xerrors.External("fetching Aave portfolio", err)
	}
	return portfolioMarkdown(account, data), nil
}

func (p *Provider) setCollateral(ctx context.Context, w wallet.Wallet, raw map[string]any) (string, error) {
	var args collateralArgs
	if err := schema.Decode(raw, &args); err != nil {
		return "", err
	}
	m, asset, msg := marketFor(w, args.AssetID)
	if msg != "" {
		return msg, nil
	}

	before, err := readHealth(ctx, w, m.pool)
	if err != nil {
		before = infiniteHealth
	}
	receipt, err := submit(ctx, w, m.pool, "setUserUseReserveAsCollateral", asset, args.UseAsCollateral)
	if err == nil && !receipt.Succeeded() {
		err = fmt.Errorf("transaction %s reverted", receipt.TxHash.Hex())
	}
	if err != nil {
		return "", xerrors.External("setting asset as collateral", err)
	}

	after := before
	collateralUSD, collateralBase := decimal.Zero, big.NewInt(0)
	if data, err := readAccount(ctx, w, m.pool, w.Address()); err == nil {
		after = data.Health
		collateralUSD, collateralBase = data.CollateralUSD, data.CollateralBase
	}
	verb := "disabled"
	if args.UseAsCollateral {
		verb = "enabled"
	}
	return fmt.Sprintf("Successfully %s %s as collateral.\nTransaction hash: %s\nTotal collateral now: %s USD (%s base units)%s",
		verb, readSymbol(ctx, w, asset), receipt.TxHash.Hex(), collateralUSD.StringFixed(2), collateralBase, healthChange(before, after)), nil
}
