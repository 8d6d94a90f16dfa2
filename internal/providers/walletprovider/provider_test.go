package walletprovider

import (
	"context"
	"math/big"
	"testing"

	"ActionKit-Chain/internal/action"
	"ActionKit-Chain/internal/network"
	"ActionKit-Chain/internal/wallet/wallettest"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDispatcher(t *testing.T, w *wallettest.Fake) *action.Dispatcher {
	t.Helper()
	reg, err := action.NewRegistry(New())
	require.NoError(t, err)
	return action.NewDispatcher(reg, w)
}

func TestWalletDetails(t *testing.T) {
	t.Parallel()

	n, _ := network.Lookup(network.BaseSepolia)
	w := wallettest.New(n)
	w.NativeBalance = big.NewInt(1_500_000_000_000_000_000)

	out, err := newDispatcher(t, w).Invoke(context.Background(), "get_wallet_details", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "- Address: "+w.Address().Hex())
	assert.Contains(t, out, "* Network ID: base-sepolia")
	assert.Contains(t, out, "* Chain ID: 84532")
	assert.Contains(t, out, "1500000000000000000 WEI (1.5 ETH)")
}

func TestWalletDetailsPartialNetwork(t *testing.T) {
	t.Parallel()

	w := wallettest.New(network.Network{ProtocolFamily: network.FamilySolana})
	out, err := newDispatcher(t, w).Invoke(context.Background(), "get_wallet_details", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "* Chain ID: N/A")
}

func TestNativeTransfer(t *testing.T) {
	t.Parallel()

	n, _ := network.Lookup(network.BaseSepolia)
	w := wallettest.New(n)
	w.NativeBalance = big.NewInt(2_000_000_000_000_000_000)
	to := "0x9876543210fedcba9876543210fedcba98765432"

	out, err := newDispatcher(t, w).Invoke(context.Background(), "native_transfer", map[string]any{"to": to, "value": "0.25"})
	require.NoError(t, err)
	assert.Contains(t, out, "Transferred 0.25 ETH to "+common.HexToAddress(to).Hex())

	sent := w.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, big.NewInt(250_000_000_000_000_000), sent[0].Value)
}

func TestNativeTransferInsufficient(t *testing.T) {
	t.Parallel()

	n, _ := network.Lookup(network.BaseSepolia)
	w := wallettest.New(n)
	out, err := newDispatcher(t, w).Invoke(context.Background(), "native_transfer", map[string]any{
		"to":    "0x9876543210fedcba9876543210fedcba98765432",
		"value": "1",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Insufficient balance")
	assert.Empty(t, w.Sent())
}
