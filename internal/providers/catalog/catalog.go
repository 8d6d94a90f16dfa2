// Package catalog builds the configured action providers.
package catalog

import (
	"fmt"

	"ActionKit-Chain/internal/action"
	"ActionKit-Chain/internal/config"
	xerrors "ActionKit-Chain/internal/errors"
	"ActionKit-Chain/internal/network"
	"ActionKit-Chain/internal/providers/aave"
	"ActionKit-Chain/internal/providers/across"
	"ActionKit-Chain/internal/providers/erc20"
	"ActionKit-Chain/internal/providers/opensea"
	"ActionKit-Chain/internal/providers/walletprovider"
	"ActionKit-Chain/internal/providers/x402"
)

// Backends are optional shared stores handed to providers that can use them.
type Backends struct {
	X402Services  x402.ServiceStore
	X402Discovery x402.DiscoveryCache
}

// Build returns one provider per name in cfg.Enabled, in order. The
// OpenSea network defaults to the wallet's when it trades there.
func Build(cfg config.ProvidersConfig, netw network.Network, backends Backends) ([]action.Provider, error) {
	out := make([]action.Provider, 0, len(cfg.Enabled))
	seen := make(map[string]bool, len(cfg.Enabled))
	for _, name := range cfg.Enabled {
		if seen[name] {
			return nil, xerrors.Configuration("provider %q enabled twice", name)
		}
		seen[name] = true
		p, err := build(name, cfg, netw, backends)
		if err != nil {
			return nil, fmt.Errorf("build provider %s: %w", name, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func build(name string, cfg config.ProvidersConfig, netw network.Network, backends Backends) (action.Provider, error) {
	switch name {
	case walletprovider.Name:
		return walletprovider.New(), nil
	case erc20.Name:
		return erc20.New(), nil
	case aave.Name:
		return aave.New(), nil
	case opensea.Name:
		osCfg := cfg.OpenSea
		if osCfg.NetworkID == "" && (netw.NetworkID == network.BaseMainnet || netw.NetworkID == network.BaseSepolia) {
			osCfg.NetworkID = netw.NetworkID
		}
		return opensea.New(osCfg)
	case across.Name:
		return across.New(cfg.Across)
	case x402.Name:
		var opts []x402.Option
		if backends.X402Services != nil {
			opts = append(opts, x402.WithServiceStore(backends.X402Services))
		}
		if backends.X402Discovery != nil {
			opts = append(opts, x402.WithDiscoveryCache(backends.X402Discovery))
		}
		return x402.New(cfg.X402, opts...)
	default:
		return nil, xerrors.Configuration("unknown provider %q", name)
	}
}
