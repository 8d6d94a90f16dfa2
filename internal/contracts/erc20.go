package contracts

import (
	"context"
	"fmt"
	"math/big"

	"ActionKit-Chain/internal/wallet"

	"github.com/ethereum/go-ethereum/common"
)

// TokenDetails is the on-chain metadata of an ERC20.
type TokenDetails struct {
	Address  common.Address
	Name     string
	Symbol   string
	Decimals int
}

// ReadTokenDetails reads name, symbol and decimals.
func ReadTokenDetails(ctx context.Context, w wallet.Wallet, token common.Address) (TokenDetails, error) {
	details := TokenDetails{Address: token}

	out, err := w.ReadContract(ctx, wallet.ReadRequest{Contract: token, ABI: ERC20, Method: "name"})
	if err != nil {
		return details, err
	}
	if details.Name, err = One[string](out); err != nil {
		return details, fmt.Errorf("name: %w", err)
	}

	out, err = w.ReadContract(ctx, wallet.ReadRequest{Contract: token, ABI: ERC20, Method: "symbol"})
	if err != nil {
		return details, err
	}
	if details.Symbol, err = One[string](out); err != nil {
		return details, fmt.Errorf("symbol: %w", err)
	}

	out, err = w.ReadContract(ctx, wallet.ReadRequest{Contract: token, ABI: ERC20, Method: "decimals"})
	if err != nil {
		return details, err
	}
	decimals, err := One[uint8](out)
	if err != nil {
		return details, fmt.Errorf("decimals: %w", err)
	}
	details.Decimals = int(decimals)
	return details, nil
}

// BalanceOf reads the token balance of owner.
func BalanceOf(ctx context.Context, w wallet.Wallet, token, owner common.Address) (*big.Int, error) {
	out, err := w.ReadContract(ctx, wallet.ReadRequest{Contract: token, ABI: ERC20, Method: "balanceOf", Args: []any{owner}})
	if err != nil {
		return nil, err
	}
	return One[*big.Int](out)
}

// Allowance reads the amount spender may move on behalf of owner.
func Allowance(ctx context.Context, w wallet.Wallet, token, owner, spender common.Address) (*big.Int, error) {
	out, err := w.ReadContract(ctx, wallet.ReadRequest{Contract: token, ABI: ERC20, Method: "allowance", Args: []any{owner, spender}})
	if err != nil {
		return nil, err
	}
	return One[*big.Int](out)
}

// Approve sets the allowance of spender and waits for the receipt.
func Approve(ctx context.Context, w wallet.Wallet, token, spender common.Address, value *big.Int) (common.Hash, error) {
	data, err := ERC20.Pack("approve", spender, value)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack approve: %w", err)
	}
	receipt, err := SendAndWait(ctx, w, wallet.TransactionRequest{To: token, Data: data})
	if err != nil {
		return common.Hash{}, err
	}
	return receipt.TxHash, nil
}

// EnsureAllowance approves value when the current allowance is lower. It
// reports whether a transaction was sent.
func EnsureAllowance(ctx context.Context, w wallet.Wallet, token, spender common.Address, value *big.Int) (bool, error) {
	current, err := Allowance(ctx, w, token, w.Address(), spender)
	if err != nil {
		return false, fmt.Errorf("read allowance: %w", err)
	}
	if current.Cmp(value) >= 0 {
		return false, nil
	}
	if _, err := Approve(ctx, w, token, spender, value); err != nil {
		return false, err
	}
	return true, nil
}

// SendAndWait broadcasts req and waits for a successful receipt.
func SendAndWait(ctx context.Context, w wallet.Wallet, req wallet.TransactionRequest) (*wallet.Receipt, error) {
	hash, err := w.SendTransaction(ctx, req)
	if err != nil {
		return nil, err
	}
	receipt, err := w.WaitForTransactionReceipt(ctx, hash)
	if err != nil {
		return nil, err
	}
	if !receipt.Succeeded() {
		return receipt, fmt.Errorf("transaction %s reverted", hash.Hex())
	}
	return receipt, nil
}
