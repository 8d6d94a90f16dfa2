// Package network describes the chains an action provider may target.
package network

import (
	"math/big"
	"sort"
	"strings"
)

// Protocol families.
const (
	FamilyEVM    = "evm"
	FamilySolana = "solana"
)

// Well known network identifiers.
const (
	EthereumMainnet = "ethereum-mainnet"
	EthereumSepolia = "ethereum-sepolia"
	BaseMainnet     = "base-mainnet"
	BaseSepolia     = "base-sepolia"
	OptimismMainnet = "optimism-mainnet"
	ArbitrumMainnet = "arbitrum-mainnet"
	PolygonMainnet  = "polygon-mainnet"
	SolanaMainnet   = "solana-mainnet"
	SolanaDevnet    = "solana-devnet"
)

// Network identifies the chain a wallet is connected to. Every field is
// optional; predicates must treat a partially populated value as unknown.
type Network struct {
	ProtocolFamily string `json:"protocol_family" yaml:"protocol_family"`
	NetworkID      string `json:"network_id,omitempty" yaml:"network_id"`
	ChainID        string `json:"chain_id,omitempty" yaml:"chain_id"`
}

var known = map[string]Network{
	EthereumMainnet: {ProtocolFamily: FamilyEVM, NetworkID: EthereumMainnet, ChainID: "1"},
	EthereumSepolia: {ProtocolFamily: FamilyEVM, NetworkID: EthereumSepolia, ChainID: "11155111"},
	BaseMainnet:     {ProtocolFamily: FamilyEVM, NetworkID: BaseMainnet, ChainID: "8453"},
	BaseSepolia:     {ProtocolFamily: FamilyEVM, NetworkID: BaseSepolia, ChainID: "84532"},
	OptimismMainnet: {ProtocolFamily: FamilyEVM, NetworkID: OptimismMainnet, ChainID: "10"},
	ArbitrumMainnet: {ProtocolFamily: FamilyEVM, NetworkID: ArbitrumMainnet, ChainID: "42161"},
	PolygonMainnet:  {ProtocolFamily: FamilyEVM, NetworkID: PolygonMainnet, ChainID: "137"},
	SolanaMainnet:   {ProtocolFamily: FamilySolana, NetworkID: SolanaMainnet},
	SolanaDevnet:    {ProtocolFamily: FamilySolana, NetworkID: SolanaDevnet},
}

var testnets = map[string]bool{
	EthereumSepolia: true,
	BaseSepolia:     true,
	SolanaDevnet:    true,
}

// Lookup returns the known descriptor for a network id.
func Lookup(id string) (Network, bool) {
	n, ok := known[strings.ToLower(strings.TrimSpace(id))]
	return n, ok
}

// ByChainID returns the known EVM descriptor for a numeric chain id.
func ByChainID(chainID string) (Network, bool) {
	chainID = strings.TrimSpace(chainID)
	if chainID == "" {
		return Network{}, false
	}
	for _, n := range known {
		if n.ChainID == chainID {
			return n, true
		}
	}
	return Network{}, false
}

// Resolve accepts either a network id or a chain id.
func Resolve(ref string) (Network, bool) {
	if n, ok := Lookup(ref); ok {
		return n, true
	}
	return ByChainID(ref)
}

// Known returns the sorted ids of every known network.
func Known() []string {
	ids := make([]string, 0, len(known))
	for id := range known {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsEVM reports whether the descriptor names the EVM family.
func (n Network) IsEVM() bool {
	return strings.EqualFold(n.ProtocolFamily, FamilyEVM)
}

// IsSolana reports whether the descriptor names the Solana family.
func (n Network) IsSolana() bool {
	return strings.EqualFold(n.ProtocolFamily, FamilySolana)
}

// IsTestnet reports whether the network id is a known testnet.
func (n Network) IsTestnet() bool {
	return testnets[n.NetworkID]
}

// Is reports whether the descriptor matches family and network id exactly.
func (n Network) Is(family, id string) bool {
	return strings.EqualFold(n.ProtocolFamily, family) && n.NetworkID == id
}

// ChainIDInt parses ChainID. It returns nil when absent or malformed.
func (n Network) ChainIDInt() *big.Int {
	if n.ChainID == "" {
		return nil
	}
	id, ok := new(big.Int).SetString(n.ChainID, 10)
	if !ok {
		return nil
	}
	return id
}

// Complete fills missing fields from the known table.
func (n Network) Complete() Network {
	ref, ok := Lookup(n.NetworkID)
	if !ok {
		ref, ok = ByChainID(n.ChainID)
	}
	if !ok {
		return n
	}
	if n.ProtocolFamily == "" {
		n.ProtocolFamily = ref.ProtocolFamily
	}
	if n.NetworkID == "" {
		n.NetworkID = ref.NetworkID
	}
	if n.ChainID == "" {
		n.ChainID = ref.ChainID
	}
	return n
}

func (n Network) String() string {
	switch {
	case n.NetworkID != "":
		return n.NetworkID
	case n.ChainID != "":
		return n.ProtocolFamily + ":" + n.ChainID
	case n.ProtocolFamily != "":
		return n.ProtocolFamily
	default:
		return "unknown"
	}
}
