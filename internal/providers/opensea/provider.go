// Package opensea lists NFTs on the OpenSea marketplace through Seaport
// signatures and the OpenSea REST API.
package opensea

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"ActionKit-Chain/internal/action"
	"ActionKit-Chain/internal/amount"
	"ActionKit-Chain/internal/contracts"
	xerrors "ActionKit-Chain/internal/errors"
	"ActionKit-Chain/internal/lazy"
	"ActionKit-Chain/internal/network"
	"ActionKit-Chain/internal/providers"
	"ActionKit-Chain/internal/schema"
	"ActionKit-Chain/internal/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Name is the provider namespace.
const Name = "opensea"

// EnvAPIKey is read when Config.APIKey is empty.
const EnvAPIKey = "OPENSEA_API_KEY"

const defaultDuration = 15552000 // six months

// Config configures the provider.
type Config struct {
	APIKey            string  `yaml:"api_key" validate:"required"`
	NetworkID         string  `yaml:"network_id" validate:"oneof=base-mainnet base-sepolia"`
	BaseURL           string  `yaml:"base_url" validate:"omitempty,url"`
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`

	HTTPClient *http.Client `yaml:"-"`
}

// Option customises the provider.
type Option func(*Provider)

// WithClock replaces time.Now for listing start times.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// WithSalt replaces the random order salt source.
func WithSalt(salt func() (*big.Int, error)) Option {
	return func(p *Provider) { p.salt = salt }
}

// Provider implements the OpenSea actions.
type Provider struct {
	action.Base
	cfg    Config
	client *lazy.Handle[*apiClient]
	now    func() time.Time
	salt   func() (*big.Int, error)
}

// New validates cfg and returns the provider. The API key falls back to
// OPENSEA_API_KEY and the network to base-sepolia.
func New(cfg Config, opts ...Option) (*Provider, error) {
	cfg.APIKey = providers.Env(cfg.APIKey, EnvAPIKey)
	if cfg.NetworkID == "" {
		cfg.NetworkID = network.BaseSepolia
	}
	if err := providers.Validate(Name, cfg); err != nil {
		return nil, err
	}

	p := &Provider{
		Base: action.NewBase(Name),
		cfg:  cfg,
		now:  time.Now,
		salt: randomSalt,
	}
	p.client = lazy.New(func(context.Context) (*apiClient, error) {
		return newAPIClient(p.cfg)
	})
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// SupportsNetwork accepts Base mainnet and Base Sepolia.
func (p *Provider) SupportsNetwork(n network.Network) bool {
	if !n.IsEVM() {
		return false
	}
	_, ok := chainSlugs[n.NetworkID]
	return ok
}

var approveSchema = schema.MustCompile(`{
  "type": "object",
  "properties": {
    "contract_address": {"type": "string", "pattern": "` + schema.AddressPattern + `", "description": "The NFT contract address to approve for trading"}
  },
  "required": ["contract_address"]
}`)

var listSchema = schema.MustCompile(`{
  "type": "object",
  "properties": {
    "contract_address": {"type": "string", "pattern": "` + schema.AddressPattern + `", "description": "The NFT contract address to list"},
    "token_id": {"type": "string", "pattern": "^[0-9]+$", "description": "The ID of the NFT to list"},
    "price_in_wei": {"type": "string", "pattern": "^[0-9]+$", "description": "Listing price in wei (1 ETH = 1000000000000000000 wei)"},
    "duration_in_seconds": {"type": "integer", "minimum": 60, "default": 15552000, "description": "Duration of listing in seconds"}
  },
  "required": ["contract_address", "token_id", "price_in_wei"]
}`)

var nftsSchema = schema.MustCompile(`{
  "type": "object",
  "properties": {
    "account_address": {"type": "string", "pattern": "` + schema.AddressPattern + `", "description": "The account to list NFTs for, defaults to the wallet address"},
    "limit": {"type": "integer", "minimum": 1, "maximum": 200, "default": 50}
  }
}`)

type approveArgs struct {
	ContractAddress string `json:"contract_address"`
}

type listArgs struct {
	ContractAddress   string `json:"contract_address"`
	TokenID           string `json:"token_id"`
	PriceInWei        string `json:"price_in_wei"`
	DurationInSeconds int64  `json:"duration_in_seconds"`
}

type nftsArgs struct {
	AccountAddress string `json:"account_address"`
	Limit          int    `json:"limit"`
}

// Actions lists the marketplace actions.
func (p *Provider) Actions() []action.Descriptor {
	return []action.Descriptor{
		{
			Name: "approve_nft_for_trading",
			Description: `This tool approves an NFT contract for trading on OpenSea marketplace.

Inputs:
- contract_address: The NFT contract address to approve

Important notes:
- This approval is required before listing NFTs from this contract
- Approval is per contract, not per NFT
- Only supported on Base and Base Sepolia networks`,
			Schema: approveSchema,
			Invoke: p.approve,
		},
		{
			Name: "list_nft",
			Description: `This tool will list an NFT for sale on OpenSea marketplace.

Inputs:
- contract_address: The NFT contract address
- token_id: The ID of the NFT to list
- price_in_wei: Listing price in wei (1 ETH = 1000000000000000000 wei)
- duration_in_seconds: Optional listing duration (default 6 months)

Important notes:
- Ensure you own the NFT before listing
- The contract is approved for trading automatically when needed
- The listing is created off-chain using a signature
- Only supported on Base and Base Sepolia networks`,
			Schema: listSchema,
			Invoke: p.listNFT,
		},
		{
			Name: "get_nfts_by_account",
			Description: `This tool fetches NFTs owned by a specific wallet address on OpenSea.

Inputs:
- account_address: (Optional) The account to fetch NFTs for, defaults to the wallet address
- limit: (Optional) Maximum number of NFTs to return, default 50`,
			Schema: nftsSchema,
			Invoke: p.nftsByAccount,
		},
	}
}

func (p *Provider) isApproved(ctx context.Context, w wallet.Wallet, token common.Address) (bool, error) {
	out, err := w.ReadContract(ctx, wallet.ReadRequest{
		Contract: token,
		ABI:      contracts.ERC721,
		Method:   "isApprovedForAll",
		Args:     []any{w.Address(), conduitAddress},
	})
	if err != nil {
		return false, err
	}
	return contracts.One[bool](out)
}

func setApproval(ctx context.Context, w wallet.Wallet, token common.Address) (common.Hash, error) {
	data, err := contracts.ERC721.Pack("setApprovalForAll", conduitAddress, true)
	if err != nil {
		return common.Hash{}, err
	}
	receipt, err := contracts.SendAndWait(ctx, w, wallet.TransactionRequest{To: token, Data: data})
	if err != nil {
		return common.Hash{}, err
	}
	return receipt.TxHash, nil
}

func (p *Provider) approve(ctx context.Context, w wallet.Wallet, raw map[string]any) (string, error) {
	var args approveArgs
	if err := schema.Decode(raw, &args); err != nil {
		return "", err
	}
	token := common.HexToAddress(args.ContractAddress)

	if approved, err := p.isApproved(ctx, w, token); err == nil && approved {
		return fmt.Sprintf("OpenSea is already approved to trade NFTs from contract %s.", token.Hex()), nil
	}
	hash, err := setApproval(ctx, w, token)
	if err != nil {
		return "", xerrors.External("approving marketplace", err)
	}
	return fmt.Sprintf("Approved OpenSea to trade NFTs. Transaction hash: %s", hash.Hex()), nil
}

func (p *Provider) listNFT(ctx context.Context, w wallet.Wallet, raw map[string]any) (string, error) {
	var args listArgs
	if err := schema.Decode(raw, &args); err != nil {
		return "", err
	}
	if args.DurationInSeconds == 0 {
		args.DurationInSeconds = defaultDuration
	}
	token := common.HexToAddress(args.ContractAddress)
	tokenID, _ := new(big.Int).SetString(args.TokenID, 10)
	price, _ := new(big.Int).SetString(args.PriceInWei, 10)
	if tokenID == nil || price == nil {
		return "", xerrors.External("listing NFT", fmt.Errorf("token id and price must be integers"))
	}

	n := w.Network()
	chainID := n.ChainIDInt()
	if chainID == nil {
		return "", xerrors.External("listing NFT", fmt.Errorf("network %s has no chain id", n))
	}

	approved, err := p.isApproved(ctx, w, token)
	if err != nil {
		return "", xerrors.External("listing NFT", fmt.Errorf("check approval: %w", err))
	}
	if !approved {
		if _, err := setApproval(ctx, w, token); err != nil {
			return "", xerrors.External("approving marketplace", err)
		}
	}

	out, err := w.ReadContract(ctx, wallet.ReadRequest{Contract: seaportAddress, ABI: contracts.Seaport, Method: "getCounter", Args: []any{w.Address()}})
	if err != nil {
		return "", xerrors.External("listing NFT", fmt.Errorf("read seaport counter: %w", err))
	}
	counter, err := contracts.One[*big.Int](out)
	if err != nil {
		return "", xerrors.External("listing NFT", err)
	}
	salt, err := p.salt()
	if err != nil {
		return "", xerrors.External("listing NFT", err)
	}

	start := p.now().Unix()
	order := newListingOrder(w.Address(), token, tokenID, price, start, start+args.DurationInSeconds, salt, counter, chainID)
	typed := order.typedData()
	hash, err := orderHash(typed)
	if err != nil {
		return "", xerrors.External("listing NFT", err)
	}
	signature, err := w.SignTypedData(ctx, typed)
	if err != nil {
		return "", xerrors.External("creating listing signature", err)
	}

	client, err := p.client.Get(ctx)
	if err != nil {
		return "", xerrors.External("listing NFT", err)
	}
	resp, err := client.postListing(ctx, listingRequest{
		Parameters:      order.parameters(),
		Signature:       hexutil.Encode(signature),
		ProtocolAddress: seaportAddress.Hex(),
	})
	if err != nil {
		return "", xerrors.External("listing NFT", err)
	}
	if resp.Order.OrderHash != "" {
		hash = resp.Order.OrderHash
	}

	return fmt.Sprintf("Successfully listed NFT %s token %s for %s ETH (%s wei).\nOrder Hash: %s\nListing valid until: %s\nListing link: %s",
		token.Hex(), args.TokenID, amount.FormatUnits(price, 18), price, hash,
		time.Unix(order.end, 0).UTC().Format(time.RFC3339),
		listingLink(n.NetworkID, strings.ToLower(token.Hex()), args.TokenID)), nil
}

func (p *Provider) nftsByAccount(ctx context.Context, w wallet.Wallet, raw map[string]any) (string, error) {
	var args nftsArgs
	if err := schema.Decode(raw, &args); err != nil {
		return "", err
	}
	account := w.Address().Hex()
	if args.AccountAddress != "" {
		account = common.HexToAddress(args.AccountAddress).Hex()
	}
	if args.Limit == 0 {
		args.Limit = 50
	}

	client, err := p.client.Get(ctx)
	if err != nil {
		return "", xerrors.External("fetching NFTs", err)
	}
	nfts, err := client.accountNFTs(ctx, account, args.Limit)
	if err != nil {
		return "", xerrors.External("fetching NFTs", err)
	}
	if len(nfts) == 0 {
		return fmt.Sprintf("No NFTs found for account %s on %s.", account, p.cfg.NetworkID), nil
	}
	return action.JSON(nfts), nil
}

func randomSalt() (*big.Int, error) {
	return rand.Int(rand.Reader, amount.MaxUint256)
}
