// Package across bridges tokens between EVM chains through Across Protocol
// spoke pools.
package across

import (
	"context"
	"net/http"
	"time"

	"ActionKit-Chain/internal/action"
	xerrors "ActionKit-Chain/internal/errors"
	"ActionKit-Chain/internal/httpclient"
	"ActionKit-Chain/internal/lazy"
	"ActionKit-Chain/internal/network"
	"ActionKit-Chain/internal/providers"
	"ActionKit-Chain/internal/retry"
	"ActionKit-Chain/internal/schema"
	"ActionKit-Chain/internal/wallet"
	"ActionKit-Chain/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
)

// Name is the provider namespace.
const Name = "across"

// DefaultMaxSlippage is the percentage used when a call leaves it out.
const DefaultMaxSlippage = 1.5

var spokePools = map[string]common.Address{
	"1":        common.HexToAddress("0x5c7BCd6E7De5423a257D81B442095A1a6ced35C5"),
	"10":       common.HexToAddress("0x6f26Bf09B1C792e3228e5467807a900A503c0281"),
	"137":      common.HexToAddress("0x9295ee1d8C5b022Be115A2AD3c30C72E34e7F096"),
	"8453":     common.HexToAddress("0x09aea4b2242abC8bb4BB78D537A67a245A7bEC64"),
	"42161":    common.HexToAddress("0xe35e9842fceaCA96570B734083f4a58e8F7C5f2A"),
	"84532":    common.HexToAddress("0x82B564983aE7274c86695917BBf8C99ECb6F0F8F"),
	"11155111": common.HexToAddress("0x5ef6C01E11889d86803e0B23e3cB3F9E9d97B662"),
}

// Config configures the provider. An empty APIURL picks the mainnet or
// testnet API from the wallet network.
type Config struct {
	APIURL            string       `yaml:"api_url" validate:"omitempty,url"`
	MaxSlippage       float64      `yaml:"max_slippage" validate:"gte=0,lte=100"`
	RequestsPerSecond float64      `yaml:"requests_per_second" validate:"gte=0"`
	Retry             retry.Config `yaml:"-"`

	HTTPClient *http.Client `yaml:"-"`
}

// Option customises the provider.
type Option func(*Provider)

// WithClock replaces time.Now for quote timestamps the API leaves out.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// Provider implements the Across actions.
type Provider struct {
	action.Base
	cfg     Config
	mainnet *lazy.Handle[*apiClient]
	testnet *lazy.Handle[*apiClient]
	now     func() time.Time
}

// New validates cfg and returns the provider.
func New(cfg Config, opts ...Option) (*Provider, error) {
	if cfg.MaxSlippage == 0 {
		cfg.MaxSlippage = DefaultMaxSlippage
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	if cfg.Retry.Retryable == nil {
		cfg.Retry.Retryable = httpclient.Transient
	}
	if err := providers.Validate(Name, cfg); err != nil {
		return nil, err
	}

	p := &Provider{Base: action.NewBase(Name), cfg: cfg, now: time.Now}
	p.mainnet = lazy.New(p.newClient(mainnetAPI))
	p.testnet = lazy.New(p.newClient(testnetAPI))
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Provider) newClient(defaultURL string) func(context.Context) (*apiClient, error) {
	return func(context.Context) (*apiClient, error) {
		base := p.cfg.APIURL
		if base == "" {
			base = defaultURL
		}
		opts := []httpclient.Option{httpclient.WithRateLimit(p.cfg.RequestsPerSecond, 1)}
		if p.cfg.HTTPClient != nil {
			opts = append(opts, httpclient.WithHTTPClient(p.cfg.HTTPClient))
		}
		return newAPIClient(base, httpclient.New(opts...)), nil
	}
}

func (p *Provider) clientFor(n network.Network) *lazy.Handle[*apiClient] {
	if n.IsTestnet() {
		return p.testnet
	}
	return p.mainnet
}

// SupportsNetwork accepts EVM chains with a known spoke pool.
func (p *Provider) SupportsNetwork(n network.Network) bool {
	if !n.IsEVM() {
		return false
	}
	_, ok := spokePools[n.Complete().ChainID]
	return ok
}

var bridgeSchema = schema.MustCompile(`{
  "type": "object",
  "properties": {
    "destination_chain": {"type": "string", "minLength": 1, "description": "The destination chain id or network id, e.g. 8453 or base-mainnet"},
    "amount": {"type": "string", "pattern": "^[0-9]+(\\.[0-9]+)?$", "description": "The amount of tokens to bridge in whole units"},
    "input_token_symbol": {"type": "string", "default": "ETH", "description": "The symbol of the token to bridge, ETH for the native asset"},
    "max_slippage": {"type": "number", "minimum": 0, "maximum": 100, "description": "The maximum slippage percentage, 1.5 when omitted"},
    "recipient": {"type": "string", "pattern": "` + schema.AddressPattern + `", "description": "Optional recipient on the destination chain, defaults to the wallet address"}
  },
  "required": ["destination_chain", "amount"]
}`)

var statusSchema = schema.MustCompile(`{
  "type": "object",
  "properties": {
    "origin_chain_id": {"type": "string", "pattern": "^[0-9]+$", "description": "The origin chain id, defaults to the wallet chain"},
    "deposit_tx_hash": {"type": "string", "pattern": "` + schema.TxHashPattern + `", "description": "The transaction hash of the deposit"}
  },
  "required": ["deposit_tx_hash"]
}`)

type statusArgs struct {
	OriginChainID string `json:"origin_chain_id"`
	DepositTxHash string `json:"deposit_tx_hash"`
}

// Actions lists bridge_token and check_deposit_status.
func (p *Provider) Actions() []action.Descriptor {
	return []action.Descriptor{
		{
			Name: "bridge_token",
			Description: `This tool will bridge tokens from the current chain to another chain using the Across Protocol.

It takes the following inputs:
- destination_chain: The chain to bridge to, as a chain id or network id
- amount: The amount of tokens to bridge in whole units
- input_token_symbol: The token to bridge, ETH by default
- max_slippage: The maximum slippage percentage, 1.5 by default

Important notes:
- Origin and destination must both be mainnets or both be testnets
- The deposit is rejected before submission when the quoted slippage is too high`,
			Schema: bridgeSchema,
			Invoke: p.bridgeToken,
		},
		{
			Name: "check_deposit_status",
			Description: `This tool checks the status of a cross chain deposit on the Across Protocol.

It takes the following inputs:
- origin_chain_id: The chain the deposit was made on, the wallet chain by default
- deposit_tx_hash: The transaction hash of the deposit`,
			Schema: statusSchema,
			Invoke: p.checkDepositStatus,
		},
	}
}

func (p *Provider) bridgeToken(ctx context.Context, w wallet.Wallet, raw map[string]any) (string, error) {
	var args bridgeArgs
	if err := schema.Decode(raw, &args); err != nil {
		return "", err
	}
	if _, present := raw["max_slippage"]; !present {
		args.MaxSlippage = p.cfg.MaxSlippage
	}
	b := &bridge{p: p, w: w, args: args, log: logger.Named("across.bridge")}
	return b.run(ctx)
}

func (p *Provider) checkDepositStatus(ctx context.Context, w wallet.Wallet, raw map[string]any) (string, error) {
	var args statusArgs
	if err := schema.Decode(raw, &args); err != nil {
		return "", err
	}
	origin := w.Network().Complete()
	if args.OriginChainID != "" {
		if n, ok := network.ByChainID(args.OriginChainID); ok {
			origin = n
		} else {
			origin = network.Network{ProtocolFamily: network.FamilyEVM, ChainID: args.OriginChainID}
		}
	}
	chainID := origin.ChainIDInt()
	if chainID == nil {
		return "", xerrors.External("checking deposit status", errNoChainID)
	}

	client, err := p.clientFor(origin).Get(ctx)
	if err != nil {
		return "", xerrors.External("checking deposit status", err)
	}
	status, err := client.depositStatus(ctx, chainID.Int64(), args.DepositTxHash)
	if err != nil {
		return "", xerrors.External("checking deposit status", err)
	}
	status["depositTxHash"] = args.DepositTxHash
	status["originChainId"] = chainID.String()
	return action.JSON(status), nil
}

type constError string

func (e constError) Error() string { return string(e) }

const errNoChainID = constError("origin chain id is unknown")
