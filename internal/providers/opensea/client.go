package opensea

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"ActionKit-Chain/internal/httpclient"
	"ActionKit-Chain/internal/network"
)

const (
	mainnetAPI = "https://api.opensea.io"
	testnetAPI = "https://testnets-api.opensea.io"

	mainnetSite = "https://opensea.io"
	testnetSite = "https://testnets.opensea.io"
)

var chainSlugs = map[string]string{
	network.BaseMainnet: "base",
	network.BaseSepolia: "base_sepolia",
}

// apiClient talks to the OpenSea v2 REST API.
type apiClient struct {
	http    *httpclient.Client
	baseURL string
	chain   string
}

func newAPIClient(cfg Config) (*apiClient, error) {
	chain, ok := chainSlugs[cfg.NetworkID]
	if !ok {
		return nil, fmt.Errorf("no OpenSea chain for network %s", cfg.NetworkID)
	}
	base := cfg.BaseURL
	if base == "" {
		base = mainnetAPI
		if cfg.NetworkID == network.BaseSepolia {
			base = testnetAPI
		}
	}
	opts := []httpclient.Option{
		httpclient.WithHeader("X-API-KEY", cfg.APIKey),
		httpclient.WithRateLimit(cfg.RequestsPerSecond, 1),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, httpclient.WithHTTPClient(cfg.HTTPClient))
	}
	return &apiClient{
		http:    httpclient.New(opts...),
		baseURL: strings.TrimRight(base, "/"),
		chain:   chain,
	}, nil
}

type listingRequest struct {
	Parameters      orderParameters `json:"parameters"`
	Signature       string          `json:"signature"`
	ProtocolAddress string          `json:"protocol_address"`
}

type listingResponse struct {
	Order struct {
		OrderHash string `json:"order_hash"`
	} `json:"order"`
}

func (c *apiClient) postListing(ctx context.Context, req listingRequest) (listingResponse, error) {
	var resp listingResponse
	endpoint := fmt.Sprintf("%s/api/v2/orders/%s/seaport/listings", c.baseURL, c.chain)
	err := c.http.PostJSON(ctx, endpoint, req, &resp)
	return resp, err
}

// NFT is the subset of an account NFT the action reports.
type NFT struct {
	Identifier  string `json:"identifier"`
	Collection  string `json:"collection"`
	Contract    string `json:"contract"`
	TokenStd    string `json:"token_standard"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	OpenSeaURL  string `json:"opensea_url,omitempty"`
}

type nftsResponse struct {
	NFTs []NFT  `json:"nfts"`
	Next string `json:"next,omitempty"`
}

func (c *apiClient) accountNFTs(ctx context.Context, account string, limit int) ([]NFT, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprint(limit))
	endpoint := fmt.Sprintf("%s/api/v2/chain/%s/account/%s/nfts?%s", c.baseURL, c.chain, account, q.Encode())
	var resp nftsResponse
	if err := c.http.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	return resp.NFTs, nil
}

func listingLink(networkID, contract, tokenID string) string {
	site, chain := mainnetSite, chainSlugs[networkID]
	if networkID == network.BaseSepolia {
		site = testnetSite
	}
	return fmt.Sprintf("%s/assets/%s/%s/%s", site, chain, contract, tokenID)
}
