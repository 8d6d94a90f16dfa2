package opensea

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"ActionKit-Chain/internal/action"
	xerrors "ActionKit-Chain/internal/errors"
	"ActionKit-Chain/internal/network"
	"ActionKit-Chain/internal/wallet/wallettest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nftContract = "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd"

type fakeAPI struct {
	mu       sync.Mutex
	listings []listingRequest
	apiKeys  []string
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/orders/base_sepolia/seaport/listings", func(w http.ResponseWriter, r *http.Request) {
		var req listingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		f.listings = append(f.listings, req)
		f.apiKeys = append(f.apiKeys, r.Header.Get("X-API-KEY"))
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"order":{"order_hash":"0xfeed"}}`))
	})
	mux.HandleFunc("/api/v2/chain/base_sepolia/account/", func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "0x0000000000000000000000000000000000000001") {
			_, _ = w.Write([]byte(`{"nfts":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"nfts":[{"identifier":"7","collection":"cats","contract":"` + nftContract + `","token_standard":"erc721","name":"Cat #7"}]}`))
	})
	return mux
}

func newProvider(t *testing.T, api *fakeAPI) *Provider {
	t.Helper()
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	p, err := New(Config{APIKey: "test-key", NetworkID: network.BaseSepolia, BaseURL: srv.URL},
		WithClock(func() time.Time { return time.Unix(1_700_000_000, 0) }),
		WithSalt(func() (*big.Int, error) { return big.NewInt(42), nil }),
	)
	require.NoError(t, err)
	return p
}

func sepoliaWallet() *wallettest.Fake {
	n, _ := network.Lookup(network.BaseSepolia)
	return wallettest.New(n).
		OnRead("isApprovedForAll", wallettest.Returns(false)).
		OnRead("getCounter", wallettest.Returns(big.NewInt(0)))
}

func invoke(t *testing.T, p *Provider, w *wallettest.Fake, name string, args map[string]any) string {
	t.Helper()
	reg, err := action.NewRegistry(p)
	require.NoError(t, err)
	out, err := action.NewDispatcher(reg, w).Invoke(context.Background(), name, args)
	require.NoError(t, err)
	return out
}

func TestNewRequiresAPIKey(t *testing.T) {
	t.Setenv(EnvAPIKey, "")

	_, err := New(Config{NetworkID: network.BaseSepolia})
	require.Error(t, err)
	assert.True(t, xerrors.HasCode(err, xerrors.CodeConfiguration))
	assert.Contains(t, err.Error(), "APIKey")
}

func TestNewReadsEnvironment(t *testing.T) {
	t.Setenv(EnvAPIKey, "from-env")

	p, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, "from-env", p.cfg.APIKey)
	assert.Equal(t, network.BaseSepolia, p.cfg.NetworkID)
}

func TestNewRejectsUnsupportedNetwork(t *testing.T) {
	t.Parallel()

	_, err := New(Config{APIKey: "k", NetworkID: network.EthereumMainnet})
	require.Error(t, err)
	assert.True(t, xerrors.HasCode(err, xerrors.CodeConfiguration))
}

func TestSupportsNetwork(t *testing.T) {
	t.Parallel()

	p := newProvider(t, &fakeAPI{})
	base, _ := network.Lookup(network.BaseMainnet)
	assert.True(t, p.SupportsNetwork(base))
	assert.False(t, p.SupportsNetwork(network.Network{ProtocolFamily: network.FamilySolana, NetworkID: "mainnet"}))
	assert.False(t, p.SupportsNetwork(network.Network{}))
}

func TestApprove(t *testing.T) {
	t.Parallel()

	p := newProvider(t, &fakeAPI{})
	w := sepoliaWallet()
	out := invoke(t, p, w, "approve_nft_for_trading", map[string]any{"contract_address": nftContract})
	assert.Contains(t, out, "Approved OpenSea to trade NFTs. Transaction hash: 0x")
	require.Len(t, w.Sent(), 1)

	w.OnRead("isApprovedForAll", wallettest.Returns(true))
	out = invoke(t, p, w, "approve_nft_for_trading", map[string]any{"contract_address": nftContract})
	assert.Contains(t, out, "already approved")
	assert.Len(t, w.Sent(), 1)
}

func TestListNFT(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	p := newProvider(t, api)
	w := sepoliaWallet()

	out := invoke(t, p, w, "list_nft", map[string]any{
		"contract_address": nftContract,
		"token_id":         "7",
		"price_in_wei":     "1000000000000000000",
	})
	assert.Contains(t, out, "Successfully listed NFT")
	assert.Contains(t, out, "for 1 ETH (1000000000000000000 wei)")
	assert.Contains(t, out, "Order Hash: 0xfeed")
	assert.Contains(t, out, "https://testnets.opensea.io/assets/base_sepolia/"+nftContract+"/7")

	// approval was missing so one approval tx was sent first
	require.Len(t, w.Sent(), 1)
	signed := w.Signed()
	require.Len(t, signed, 1)
	assert.Equal(t, "OrderComponents", signed[0].PrimaryType)
	assert.Equal(t, "84532", (*big.Int)(signed[0].Domain.ChainId).String())

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Len(t, api.listings, 1)
	assert.Equal(t, "test-key", api.apiKeys[0])
	params := api.listings[0].Parameters
	assert.Equal(t, "1700000000", params.StartTime)
	assert.Equal(t, "1715552000", params.EndTime)
	assert.Equal(t, "42", params.Salt)
	require.Len(t, params.Consideration, 2)
	assert.Equal(t, "975000000000000000", params.Consideration[0].StartAmount)
	assert.Equal(t, "25000000000000000", params.Consideration[1].StartAmount)
	assert.Equal(t, feeRecipient.Hex(), params.Consideration[1].Recipient)
}

func TestOrderHashIsDeterministic(t *testing.T) {
	t.Parallel()

	w := sepoliaWallet()
	order := newListingOrder(w.Address(), w.Address(), big.NewInt(1), big.NewInt(1000), 1, 2, big.NewInt(3), big.NewInt(0), big.NewInt(84532))
	first, err := orderHash(order.typedData())
	require.NoError(t, err)
	second, err := orderHash(order.typedData())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 66)
}

func TestNFTsByAccount(t *testing.T) {
	t.Parallel()

	p := newProvider(t, &fakeAPI{})
	w := sepoliaWallet()

	out := invoke(t, p, w, "get_nfts_by_account", nil)
	var nfts []NFT
	require.NoError(t, json.Unmarshal([]byte(out), &nfts))
	require.Len(t, nfts, 1)
	assert.Equal(t, "Cat #7", nfts[0].Name)

	out = invoke(t, p, w, "get_nfts_by_account", map[string]any{"account_address": "0x0000000000000000000000000000000000000001"})
	assert.Contains(t, out, "No NFTs found")
}

func TestNFTsByAccountHTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)
	p, err := New(Config{APIKey: "k", NetworkID: network.BaseSepolia, BaseURL: srv.URL})
	require.NoError(t, err)

	out := invoke(t, p, sepoliaWallet(), "get_nfts_by_account", nil)
	assert.True(t, strings.HasPrefix(out, "Error fetching NFTs: HTTP 401"), out)
}
