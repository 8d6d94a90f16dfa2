package erc20

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"ActionKit-Chain/internal/action"
	"ActionKit-Chain/internal/contracts"
	"ActionKit-Chain/internal/network"
	"ActionKit-Chain/internal/wallet"
	"ActionKit-Chain/internal/wallet/wallettest"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	tokenAddr = "0x036CbD53842c5426634e7929541eC2318f3dCF7e"
	dest      = "0x9876543210fedcba9876543210fedcba98765432"
)

func usdcWallet(balance int64) *wallettest.Fake {
	n, _ := network.Lookup(network.BaseSepolia)
	return wallettest.New(n).
		OnRead("name", wallettest.Returns("USD Coin")).
		OnRead("symbol", wallettest.Returns("USDC")).
		OnRead("decimals", wallettest.Returns(uint8(6))).
		OnRead("balanceOf", wallettest.Returns(big.NewInt(balance)))
}

func dispatcher(t *testing.T, w wallet.Wallet) *action.Dispatcher {
	t.Helper()
	reg, err := action.NewRegistry(New())
	require.NoError(t, err)
	return action.NewDispatcher(reg, w)
}

func TestSupportsNetwork(t *testing.T) {
	t.Parallel()

	p := New()
	assert.True(t, p.SupportsNetwork(network.Network{ProtocolFamily: network.FamilyEVM}))
	assert.False(t, p.SupportsNetwork(network.Network{ProtocolFamily: network.FamilySolana, NetworkID: "mainnet"}))
	assert.False(t, p.SupportsNetwork(network.Network{}))
}

func TestGetBalance(t *testing.T) {
	t.Parallel()

	w := usdcWallet(12_500_000)
	out, err := dispatcher(t, w).Invoke(context.Background(), "get_balance", map[string]any{"contract_address": tokenAddr})
	require.NoError(t, err)
	assert.Equal(t, "Balance of USD Coin ("+common.HexToAddress(tokenAddr).Hex()+") at address "+w.Address().Hex()+" is 12.5", out)
}

func TestGetBalanceRejectsBadAddress(t *testing.T) {
	t.Parallel()

	_, err := dispatcher(t, usdcWallet(1)).Invoke(context.Background(), "get_balance", map[string]any{"contract_address": "0x123"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contract_address")
}

func TestTransfer(t *testing.T) {
	t.Parallel()

	w := usdcWallet(5_000_000)
	out, err := dispatcher(t, w).Invoke(context.Background(), "transfer", map[string]any{
		"amount":           "1.5",
		"contract_address": tokenAddr,
		"destination":      dest,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Transferred 1.5 of USDC to "+common.HexToAddress(dest).Hex()), out)
	assert.Contains(t, out, "Transaction hash for the transfer: 0x")

	sent := w.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, common.HexToAddress(tokenAddr), sent[0].To)

	args, err := contracts.ERC20.Methods["transfer"].Inputs.Unpack(sent[0].Data[4:])
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(dest), args[0])
	assert.Equal(t, big.NewInt(1_500_000), args[1])
}

func TestTransferInsufficientBalance(t *testing.T) {
	t.Parallel()

	w := usdcWallet(1_000_000)
	out, err := dispatcher(t, w).Invoke(context.Background(), "transfer", map[string]any{
		"amount":           "2",
		"contract_address": tokenAddr,
		"destination":      dest,
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Insufficient USDC balance")
	assert.Empty(t, w.Sent())
}

func TestTransferSendFailure(t *testing.T) {
	t.Parallel()

	w := usdcWallet(5_000_000)
	w.SendErr = errors.New("nonce too low")
	out, err := dispatcher(t, w).Invoke(context.Background(), "transfer", map[string]any{
		"amount":           "1",
		"contract_address": tokenAddr,
		"destination":      dest,
	})
	require.NoError(t, err)
	assert.Equal(t, "Error transferring the asset: nonce too low", out)
}
