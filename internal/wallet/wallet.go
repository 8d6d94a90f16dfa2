// Package wallet defines the capability actions use to read chain state,
// send transactions and sign data. Actions never mutate a wallet.
package wallet

import (
	"context"
	"math/big"

	"ActionKit-Chain/internal/network"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// ReadRequest describes a contract call. A non nil Value simulates a
// payable call from the wallet address.
type ReadRequest struct {
	Contract common.Address
	ABI      abi.ABI
	Method   string
	Args     []any
	Value    *big.Int
}

// TransactionRequest describes a transaction to sign and broadcast.
// A zero GasLimit asks the wallet to estimate.
type TransactionRequest struct {
	To       common.Address
	Data     []byte
	Value    *big.Int
	GasLimit uint64
}

// Receipt is the part of a transaction receipt actions care about.
type Receipt struct {
	TxHash      common.Hash
	Status      uint64
	BlockNumber *big.Int
	GasUsed     uint64
	Logs        []*types.Log
}

// Succeeded reports whether the transaction executed without reverting.
func (r *Receipt) Succeeded() bool {
	return r != nil && r.Status == types.ReceiptStatusSuccessful
}

// Wallet is the capability consumed by actions.
type Wallet interface {
	Address() common.Address
	Network() network.Network
	Balance(ctx context.Context) (*big.Int, error)
	ReadContract(ctx context.Context, req ReadRequest) ([]any, error)
	SendTransaction(ctx context.Context, req TransactionRequest) (common.Hash, error)
	WaitForTransactionReceipt(ctx context.Context, hash common.Hash) (*Receipt, error)
	SignTypedData(ctx context.Context, data apitypes.TypedData) ([]byte, error)
}

// FromGeth converts a go-ethereum receipt.
func FromGeth(r *types.Receipt) *Receipt {
	if r == nil {
		return nil
	}
	return &Receipt{
		TxHash:      r.TxHash,
		Status:      r.Status,
		BlockNumber: r.BlockNumber,
		GasUsed:     r.GasUsed,
		Logs:        r.Logs,
	}
}
