package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZeroValueIsInert(t *testing.T) {
	t.Parallel()

	var n Network
	assert.False(t, n.IsEVM())
	assert.False(t, n.IsSolana())
	assert.False(t, n.IsTestnet())
	assert.Nil(t, n.ChainIDInt())
	assert.Equal(t, "unknown", n.String())
	assert.Equal(t, n, n.Complete())
}

func TestLookupAndResolve(t *testing.T) {
	t.Parallel()

	base, ok := Lookup("Base-Mainnet")
	require.True(t, ok)
	assert.Equal(t, "8453", base.ChainID)
	assert.True(t, base.IsEVM())

	byID, ok := Resolve("84532")
	require.True(t, ok)
	assert.Equal(t, BaseSepolia, byID.NetworkID)
	assert.True(t, byID.IsTestnet())

	_, ok = Resolve("not-a-chain")
	assert.False(t, ok)
}

func TestComplete(t *testing.T) {
	t.Parallel()

	n := Network{ChainID: "1"}.Complete()
	assert.Equal(t, Network{ProtocolFamily: FamilyEVM, NetworkID: EthereumMainnet, ChainID: "1"}, n)
	assert.Equal(t, int64(1), n.ChainIDInt().Int64())

	sol := Network{ProtocolFamily: FamilySolana, NetworkID: "mainnet"}
	assert.False(t, sol.IsEVM())
	assert.Equal(t, sol, sol.Complete())
}
