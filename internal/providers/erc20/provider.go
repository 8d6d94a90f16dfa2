// Package erc20 exposes balance and transfer actions for ERC20 tokens.
package erc20

import (
	"context"
	"fmt"

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
const Name = "erc20"

var getBalanceSchema = schema.MustCompile(`{
  "type": "object",
  "properties": {
    "contract_address": {"type": "string", "pattern": "` + schema.AddressPattern + `", "description": "The contract address of the token to get the balance for"}
  },
  "required": ["contract_address"]
}`)

var transferSchema = schema.MustCompile(`{
  "type": "object",
  "properties": {
    "amount": {"type": "string", "pattern": "^[0-9]+(\\.[0-9]+)?$", "description": "The amount of the asset to transfer in whole units"},
    "contract_address": {"type": "string", "pattern": "` + schema.AddressPattern + `", "description": "The contract address of the token to transfer"},
    "destination": {"type": "string", "pattern": "` + schema.AddressPattern + `", "description": "The destination to transfer the funds"}
  },
  "required": ["amount", "contract_address", "destination"]
}`)

type balanceArgs struct {
	ContractAddress string `json:"contract_address"`
}

type transferArgs struct {
	Amount          string `json:"amount"`
	ContractAddress string `json:"contract_address"`
	Destination     string `json:"destination"`
}

// Provider implements the erc20 actions.
type Provider struct {
	action.Base
}

// New returns the erc20 provider.
func New() *Provider {
	return &Provider{Base: action.NewBase(Name)}
}

// SupportsNetwork accepts every EVM network.
func (p *Provider) SupportsNetwork(n network.Network) bool {
	return n.IsEVM()
}

// Actions lists get_balance and transfer.
func (p *Provider) Actions() []action.Descriptor {
	return []action.Descriptor{
		{
			Name: "get_balance",
			Description: `This tool will get the balance of an ERC20 asset in the wallet. It takes the contract address as input.
The balance is returned in whole units of the token.`,
			Schema: getBalanceSchema,
			Invoke: p.getBalance,
		},
		{
			Name: "transfer",
			Description: `This tool will transfer an ERC20 token from the wallet to another onchain address.

It takes the following inputs:
- amount: The amount to transfer in whole units e.g. 10.5 USDC
- contract_address: The contract address of the token to transfer
- destination: Where to send the funds (must be a valid onchain address)

Important notes:
- Ensure sufficient balance of the input asset before transferring
- Never assume token or address, they have to be provided as inputs`,
			Schema: transferSchema,
			Invoke: p.transfer,
		},
	}
}

func (p *Provider) getBalance(ctx context.Context, w wallet.Wallet, raw map[string]any) (string, error) {
	var args balanceArgs
	if err := schema.Decode(raw, &args); err != nil {
		return "", err
	}
	token := common.HexToAddress(args.ContractAddress)

	details, err := contracts.ReadTokenDetails(ctx, w, token)
	if err != nil {
		return "", xerrors.External("getting balance", err)
	}
	balance, err := contracts.BalanceOf(ctx, w, token, w.Address())
	if err != nil {
		return "", xerrors.External("getting balance", err)
	}
	return fmt.Sprintf("Balance of %s (%s) at address %s is %s",
		details.Name, token.Hex(), w.Address().Hex(), amount.FormatUnits(balance, details.Decimals)), nil
}

func (p *Provider) transfer(ctx context.Context, w wallet.Wallet, raw map[string]any) (string, error) {
	var args transferArgs
	if err := schema.Decode(raw, &args); err != nil {
		return "", err
	}
	token := common.HexToAddress(args.ContractAddress)
	destination := common.HexToAddress(args.Destination)

	details, err := contracts.ReadTokenDetails(ctx, w, token)
	if err != nil {
		return "", xerrors.External("transferring the asset", err)
	}
	value, err := amount.ParseUnits(args.Amount, details.Decimals)
	if err != nil {
		return "", xerrors.External("transferring the asset", err)
	}
	balance, err := contracts.BalanceOf(ctx, w, token, w.Address())
	if err != nil {
		return "", xerrors.External("transferring the asset", err)
	}
	if balance.Cmp(value) < 0 {
		return fmt.Sprintf("Insufficient %s balance. Requested %s, but only %s is available.",
			details.Symbol, args.Amount, amount.FormatUnits(balance, details.Decimals)), nil
	}

	data, err := contracts.ERC20.Pack("transfer", destination, value)
	if err != nil {
		return "", xerrors.External("transferring the asset", err)
	}
	receipt, err := contracts.SendAndWait(ctx, w, wallet.TransactionRequest{To: token, Data: data})
	if err != nil {
		return "", xerrors.External("transferring the asset", err)
	}
	return fmt.Sprintf("Transferred %s of %s to %s.\nTransaction hash for the transfer: %s",
		args.Amount, details.Symbol, destination.Hex(), receipt.TxHash.Hex()), nil
}
