// Package walletprovider exposes actions that describe and move the
// wallet's native asset.
package walletprovider

import (
	"context"
	"fmt"
	"strings"

	"ActionKit-Chain/internal/action"
	"ActionKit-Chain/internal/amount"
	"ActionKit-Chain/internal/contracts"
	xerrors "ActionKit-Chain/internal/errors"
	"ActionKit-Chain/internal/network"
	"ActionKit-Chain/internal/schema"
	"ActionKit-Chain/internal/wallet"

	"github.com/ethereum/go-ethereum/common"
)

// Name is the provider namespace.
const Name = "wallet"

const nativeDecimals = 18

var detailsSchema = schema.MustCompile(`{"type": "object", "properties": {}}`)

var nativeTransferSchema = schema.MustCompile(`{
  "type": "object",
  "properties": {
    "to": {"type": "string", "pattern": "` + schema.AddressPattern + `", "description": "The destination address to receive the funds"},
    "value": {"type": "string", "pattern": "^[0-9]+(\\.[0-9]+)?$", "description": "The amount to transfer in whole units e.g. 1 ETH or 0.00001 ETH"}
  },
  "required": ["to", "value"]
}`)

type transferArgs struct {
	To    string `json:"to"`
	Value string `json:"value"`
}

// Provider implements the wallet actions.
type Provider struct {
	action.Base
}

// New returns the wallet provider.
func New() *Provider {
	return &Provider{Base: action.NewBase(Name)}
}

// SupportsNetwork accepts every network; native_transfer checks the family
// itself.
func (p *Provider) SupportsNetwork(network.Network) bool { return true }

// Actions lists get_wallet_details and native_transfer.
func (p *Provider) Actions() []action.Descriptor {
	return []action.Descriptor{
		{
			Name: "get_wallet_details",
			Description: `This tool will return the details of the connected wallet including:
- Wallet address
- Network information (protocol family, network ID, chain ID)
- Native token balance`,
			Schema: detailsSchema,
			Invoke: p.details,
		},
		{
			Name: "native_transfer",
			Description: `This tool will transfer native tokens from the wallet to another onchain address.

It takes the following inputs:
- to: The destination address to receive the funds
- value: The amount to transfer in whole units (e.g. '1' for 1 ETH)

Important notes:
- Ensure sufficient balance of the input asset before transferring
- Ensure there is sufficient native token balance for gas fees`,
			Schema: nativeTransferSchema,
			Invoke: p.nativeTransfer,
		},
	}
}

func (p *Provider) details(ctx context.Context, w wallet.Wallet, _ map[string]any) (string, error) {
	balance, err := w.Balance(ctx)
	if err != nil {
		return "", xerrors.External("getting wallet details", err)
	}
	n := w.Network()

	var b strings.Builder
	b.WriteString("Wallet Details:\n")
	fmt.Fprintf(&b, "- Address: %s\n", w.Address().Hex())
	b.WriteString("- Network:\n")
	fmt.Fprintf(&b, "  * Protocol Family: %s\n", orNA(n.ProtocolFamily))
	fmt.Fprintf(&b, "  * Network ID: %s\n", orNA(n.NetworkID))
	fmt.Fprintf(&b, "  * Chain ID: %s\n", orNA(n.ChainID))
	fmt.Fprintf(&b, "- Native Balance: %s WEI (%s ETH)", balance.String(), amount.FormatUnits(balance, nativeDecimals))
	return b.String(), nil
}

func (p *Provider) nativeTransfer(ctx context.Context, w wallet.Wallet, raw map[string]any) (string, error) {
	var args transferArgs
	if err := schema.Decode(raw, &args); err != nil {
		return "", err
	}
	if !w.Network().IsEVM() {
		return fmt.Sprintf("Native transfers are not supported on network %s", w.Network()), nil
	}

	value, err := amount.ParseUnits(args.Value, nativeDecimals)
	if err != nil {
		return "", xerrors.External("transferring the asset", err)
	}
	balance, err := w.Balance(ctx)
	if err != nil {
		return "", xerrors.External("transferring the asset", err)
	}
	if balance.Cmp(value) < 0 {
		return fmt.Sprintf("Insufficient balance. Requested %s ETH, but only %s ETH is available.",
			args.Value, amount.FormatUnits(balance, nativeDecimals)), nil
	}

	to := common.HexToAddress(args.To)
	receipt, err := contracts.SendAndWait(ctx, w, wallet.TransactionRequest{To: to, Value: value})
	if err != nil {
		return "", xerrors.External("transferring the asset", err)
	}
	return fmt.Sprintf("Transferred %s ETH to %s.\nTransaction hash: %s", args.Value, to.Hex(), receipt.TxHash.Hex()), nil
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
