package x402

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ActionKit-Chain/internal/action"
	xerrors "ActionKit-Chain/internal/errors"
	"ActionKit-Chain/internal/network"
	"ActionKit-Chain/internal/retry"
	"ActionKit-Chain/internal/wallet/wallettest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	sepoliaUSDC = "0x036CbD53842c5426634e7929541eC2318f3dCF7e"
	seller      = "0x9999999999999999999999999999999999999999"
)

type seller402 struct {
	url string

	mu       sync.Mutex
	payments []paymentPayload
	headers  []string
}

func (s *seller402) option(network, amount string) map[string]any {
	return map[string]any{
		"scheme":            "exact",
		"network":           network,
		"maxAmountRequired": amount,
		"resource":          s.url + "/weather",
		"description":       "Weather data",
		"mimeType":          "application/json",
		"payTo":             seller,
		"maxTimeoutSeconds": 60,
		"asset":             sepoliaUSDC,
		"extra":             map[string]any{"name": "USDC", "version": "2"},
	}
}

func (s *seller402) record(t *testing.T, header, value string) {
	raw, err := base64.StdEncoding.DecodeString(value)
	require.NoError(t, err)
	var payload paymentPayload
	require.NoError(t, json.Unmarshal(raw, &payload))
	s.mu.Lock()
	s.payments = append(s.payments, payload)
	s.headers = append(s.headers, header)
	s.mu.Unlock()
}

func (s *seller402) handler(t *testing.T) http.Handler {
	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/weather", func(w http.ResponseWriter, r *http.Request) {
		if v := r.Header.Get(headerXPayment); v != "" {
			s.record(t, headerXPayment, v)
			settle, _ := json.Marshal(map[string]any{"success": true, "transaction": "0xabc"})
			w.Header().Set(headerXPaymentResponse, base64.StdEncoding.EncodeToString(settle))
			writeJSON(w, http.StatusOK, map[string]any{"temp": 20})
			return
		}
		writeJSON(w, http.StatusPaymentRequired, map[string]any{
			"x402Version": 1,
			"error":       "X-PAYMENT header is required",
			"accepts":     []any{s.option("base-sepolia", "10000")},
		})
	})
	mux.HandleFunc("/v2/data", func(w http.ResponseWriter, r *http.Request) {
		if v := r.Header.Get(headerPaymentSignature); v != "" {
			s.record(t, headerPaymentSignature, v)
			_, _ = w.Write([]byte("paid content"))
			return
		}
		opt := s.option("eip155:84532", "")
		delete(opt, "maxAmountRequired")
		opt["amount"] = "5000"
		required, _ := json.Marshal(map[string]any{
			"x402Version": 2,
			"resource":    map[string]any{"url": s.url + "/v2/data"},
			"accepts":     []any{opt},
			"description": "Paid data",
		})
		w.Header().Set(headerPaymentRequired, base64.StdEncoding.EncodeToString(required))
		writeJSON(w, http.StatusPaymentRequired, map[string]any{})
	})
	mux.HandleFunc("/expensive", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusPaymentRequired, map[string]any{
			"x402Version": 1,
			"accepts":     []any{s.option("base-sepolia", "5000000")},
		})
	})
	mux.HandleFunc("/euro", func(w http.ResponseWriter, r *http.Request) {
		opt := s.option("base-sepolia", "100")
		opt["asset"] = "0x808456652fdb597867f38412077A9182bf77359F"
		writeJSON(w, http.StatusPaymentRequired, map[string]any{"x402Version": 1, "accepts": []any{opt}})
	})
	mux.HandleFunc("/free", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "NYC", r.URL.Query().Get("location"))
		writeJSON(w, http.StatusOK, map[string]any{"free": true})
	})
	mux.HandleFunc("/post-only", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("posted"))
	})
	return mux
}

func newSeller(t *testing.T) *seller402 {
	t.Helper()
	s := &seller402{}
	srv := httptest.NewServer(s.handler(t))
	t.Cleanup(srv.Close)
	s.url = srv.URL
	return s
}

func newProvider(t *testing.T, cfg Config, opts ...Option) *Provider {
	t.Helper()
	if cfg.MaxPaymentUSDC == 0 {
		cfg.MaxPaymentUSDC = 1
	}
	cfg.DiscoveryRetry = retry.Config{MaxAttempts: 4, InitialBackoff: time.Millisecond}
	opts = append([]Option{
		WithClock(func() time.Time { return time.Unix(1_700_000_000, 0) }),
		WithNonce(func() [32]byte { return [32]byte{31: 7} }),
	}, opts...)
	p, err := New(cfg, opts...)
	require.NoError(t, err)
	p.pageDelay = 0
	return p
}

func sepoliaWallet() *wallettest.Fake {
	n, _ := network.Lookup(network.BaseSepolia)
	return wallettest.New(n)
}

func invoke(t *testing.T, p *Provider, w *wallettest.Fake, name string, args map[string]any) map[string]any {
	t.Helper()
	reg, err := action.NewRegistry(p)
	require.NoError(t, err)
	out, err := action.NewDispatcher(reg, w).Invoke(context.Background(), name, args)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded), out)
	return decoded
}

func TestNewReadsEnvironment(t *testing.T) {
	t.Setenv(EnvAllowDynamicRegistration, "TRUE")
	t.Setenv(EnvMaxPaymentUSDC, "2.5")

	p, err := New(Config{})
	require.NoError(t, err)
	assert.True(t, p.cfg.AllowDynamicServiceRegistration)
	assert.Equal(t, 2.5, p.cfg.MaxPaymentUSDC)
}

func TestNewRejectsBadEnvironment(t *testing.T) {
	t.Setenv(EnvMaxPaymentUSDC, "lots")

	_, err := New(Config{})
	require.Error(t, err)
	assert.True(t, xerrors.HasCode(err, xerrors.CodeConfiguration))
}

func TestNewRejectsInvalidServiceURL(t *testing.T) {
	t.Parallel()

	_, err := New(Config{MaxPaymentUSDC: 1, RegisteredServices: []string{"not a url"}})
	require.Error(t, err)
	assert.True(t, xerrors.HasCode(err, xerrors.CodeConfiguration))
}

func TestSupportsNetwork(t *testing.T) {
	t.Parallel()

	p := newProvider(t, Config{})
	for _, id := range []string{network.BaseMainnet, network.BaseSepolia, network.SolanaMainnet, network.SolanaDevnet} {
		n, _ := network.Lookup(id)
		assert.True(t, p.SupportsNetwork(n), id)
	}
	assert.True(t, p.SupportsNetwork(network.Network{ProtocolFamily: network.FamilyEVM, ChainID: "84532"}))
	assert.False(t, p.SupportsNetwork(network.Network{ProtocolFamily: network.FamilySolana, NetworkID: network.BaseSepolia}))
	eth, _ := network.Lookup(network.EthereumMainnet)
	assert.False(t, p.SupportsNetwork(eth))
	assert.False(t, p.SupportsNetwork(network.Network{}))
}

func TestMakeHTTPRequestRequiresRegistration(t *testing.T) {
	t.Parallel()

	s := newSeller(t)
	p := newProvider(t, Config{})
	out := invoke(t, p, sepoliaWallet(), "make_http_request", map[string]any{"url": s.url + "/free"})
	assert.Equal(t, "Service not registered", out["message"])
	assert.Contains(t, out["suggestion"], "Dynamic service registration is disabled")
	assert.Empty(t, out["registeredServices"])
}

func TestMakeHTTPRequestFree(t *testing.T) {
	t.Parallel()

	s := newSeller(t)
	p := newProvider(t, Config{RegisteredServices: []string{s.url}})
	out := invoke(t, p, sepoliaWallet(), "make_http_request", map[string]any{
		"url":          s.url + "/free",
		"query_params": map[string]any{"location": "NYC"},
	})
	assert.Equal(t, true, out["success"])
	assert.Equal(t, float64(200), out["status"])
	assert.Equal(t, map[string]any{"free": true}, out["data"])
	assert.Equal(t, s.url+"/free?location=NYC", out["url"])
}

func TestMakeHTTPRequestSwapsMethodOn404(t *testing.T) {
	t.Parallel()

	s := newSeller(t)
	p := newProvider(t, Config{RegisteredServices: []string{s.url}})
	out := invoke(t, p, sepoliaWallet(), "make_http_request", map[string]any{"url": s.url + "/post-only"})
	assert.Equal(t, "POST", out["method"])
	assert.Equal(t, "posted", out["data"])
}

func TestMakeHTTPRequestDescribesPayment(t *testing.T) {
	t.Parallel()

	s := newSeller(t)
	p := newProvider(t, Config{RegisteredServices: []string{s.url + "/weather"}})
	out := invoke(t, p, sepoliaWallet(), "make_http_request", map[string]any{"url": s.url + "/weather"})
	assert.Equal(t, "error_402_payment_required", out["status"])
	options := out["acceptablePaymentOptions"].([]any)
	require.Len(t, options, 1)
	assert.Equal(t, "10000", options[0].(map[string]any)["maxAmountRequired"])
	steps := out["nextSteps"].([]any)
	assert.Contains(t, steps, "The USDC payment options are: 0.01 USDC on base-sepolia")
}

func TestMakeHTTPRequestReadsV2Header(t *testing.T) {
	t.Parallel()

	s := newSeller(t)
	p := newProvider(t, Config{RegisteredServices: []string{s.url}})
	out := invoke(t, p, sepoliaWallet(), "make_http_request", map[string]any{"url": s.url + "/v2/data"})
	assert.Equal(t, "error_402_payment_required", out["status"])
	assert.Equal(t, map[string]any{"description": "Paid data"}, out["discoveryInfo"])
	steps := out["nextSteps"].([]any)
	assert.Contains(t, steps, "The USDC payment options are: 0.005 USDC on base-sepolia")
}

func TestMakeHTTPRequestWithoutUSDC(t *testing.T) {
	t.Parallel()

	s := newSeller(t)
	p := newProvider(t, Config{RegisteredServices: []string{s.url}})
	out := invoke(t, p, sepoliaWallet(), "make_http_request", map[string]any{"url": s.url + "/euro"})
	assert.Equal(t, "No USDC payment option available", out["message"])
	assert.Len(t, out["originalOptions"], 1)
}

func TestRetryWithPaymentV1(t *testing.T) {
	t.Parallel()

	s := newSeller(t)
	p := newProvider(t, Config{RegisteredServices: []string{s.url}})
	w := sepoliaWallet()
	out := invoke(t, p, w, "retry_http_request_with_x402", map[string]any{
		"url": s.url + "/weather",
		"selected_payment_option": map[string]any{
			"scheme":            "exact",
			"network":           "base-sepolia",
			"asset":             sepoliaUSDC,
			"maxAmountRequired": "10000",
		},
	})
	require.Equal(t, "success", out["status"], out)
	assert.Equal(t, map[string]any{"temp": float64(20)}, out["data"])
	details := out["details"].(map[string]any)
	assert.Equal(t, map[string]any{"success": true, "transaction": "0xabc"}, details["paymentProof"])
	assert.Equal(t, "10000", details["paymentUsed"].(map[string]any)["amount"])

	signed := w.Signed()
	require.Len(t, signed, 1)
	assert.Equal(t, "TransferWithAuthorization", signed[0].PrimaryType)
	assert.Equal(t, "USDC", signed[0].Domain.Name)
	assert.Equal(t, "2", signed[0].Domain.Version)
	assert.Equal(t, "84532", (*big.Int)(signed[0].Domain.ChainId).String())
	assert.Equal(t, "10000", signed[0].Message["value"])
	assert.Equal(t, "1699999400", signed[0].Message["validAfter"])
	assert.Equal(t, "1700000060", signed[0].Message["validBefore"])

	s.mu.Lock()
	defer s.mu.Unlock()
	require.Len(t, s.payments, 1)
	assert.Equal(t, headerXPayment, s.headers[0])
	assert.Equal(t, 1, s.payments[0].X402Version)
	assert.Equal(t, "base-sepolia", s.payments[0].Network)
	auth := s.payments[0].Payload.Authorization
	assert.Equal(t, w.Address().Hex(), auth.From)
	assert.True(t, strings.EqualFold(seller, auth.To))
	assert.Equal(t, "0x"+strings.Repeat("00", 31)+"07", auth.Nonce)
}

func TestMakeHTTPRequestWithX402V2(t *testing.T) {
	t.Parallel()

	s := newSeller(t)
	p := newProvider(t, Config{RegisteredServices: []string{s.url}})
	out := invoke(t, p, sepoliaWallet(), "make_http_request_with_x402", map[string]any{"url": s.url + "/v2/data"})
	assert.Equal(t, true, out["success"], out)
	assert.Equal(t, "paid content", out["data"])

	s.mu.Lock()
	defer s.mu.Unlock()
	require.Len(t, s.payments, 1)
	assert.Equal(t, headerPaymentSignature, s.headers[0])
	assert.Equal(t, 2, s.payments[0].X402Version)
	require.NotNil(t, s.payments[0].Accepted)
	assert.Equal(t, "5000", s.payments[0].Accepted.Amount)
	assert.JSONEq(t, `{"url":"`+s.url+`/v2/data"}`, string(s.payments[0].Resource))
}

func TestPaymentLimit(t *testing.T) {
	t.Parallel()

	s := newSeller(t)
	p := newProvider(t, Config{RegisteredServices: []string{s.url}})
	w := sepoliaWallet()

	out := invoke(t, p, w, "retry_http_request_with_x402", map[string]any{
		"url": s.url + "/expensive",
		"selected_payment_option": map[string]any{
			"scheme": "exact", "network": "base-sepolia", "asset": sepoliaUSDC, "maxAmountRequired": "5000000",
		},
	})
	assert.Equal(t, "Payment exceeds limit", out["message"])
	assert.Equal(t, "The requested payment of 5 USDC exceeds the maximum spending limit of 1 USDC.", out["details"])

	out = invoke(t, p, w, "make_http_request_with_x402", map[string]any{"url": s.url + "/expensive"})
	assert.Contains(t, out["details"], "exceeds the maximum spending limit")
	assert.Empty(t, w.Signed())
}

func TestRetryRejectsMismatchedNetwork(t *testing.T) {
	t.Parallel()

	s := newSeller(t)
	p := newProvider(t, Config{RegisteredServices: []string{s.url}})
	out := invoke(t, p, sepoliaWallet(), "retry_http_request_with_x402", map[string]any{
		"url": s.url + "/weather",
		"selected_payment_option": map[string]any{
			"scheme": "exact", "network": "base", "asset": sepoliaUSDC, "maxAmountRequired": "10",
		},
	})
	assert.Equal(t, "Network mismatch", out["message"])
}

func TestRetryRejectsNonUSDC(t *testing.T) {
	t.Parallel()

	s := newSeller(t)
	p := newProvider(t, Config{RegisteredServices: []string{s.url}})
	out := invoke(t, p, sepoliaWallet(), "retry_http_request_with_x402", map[string]any{
		"url": s.url + "/euro",
		"selected_payment_option": map[string]any{
			"scheme": "exact", "network": "base-sepolia", "asset": "0x808456652fdb597867f38412077A9182bf77359F", "maxAmountRequired": "100",
		},
	})
	assert.Equal(t, "Only USDC payments are supported", out["message"])
}

func TestSolanaWalletCannotPay(t *testing.T) {
	t.Parallel()

	s := newSeller(t)
	p := newProvider(t, Config{RegisteredServices: []string{s.url}})
	n, _ := network.Lookup(network.SolanaDevnet)
	out := invoke(t, p, wallettest.New(n), "make_http_request_with_x402", map[string]any{"url": s.url + "/weather"})
	assert.Equal(t, "Unsupported wallet provider", out["message"])
}

func TestRegisterService(t *testing.T) {
	t.Parallel()

	s := newSeller(t)
	disabled := newProvider(t, Config{})
	out := invoke(t, disabled, sepoliaWallet(), "register_x402_service", map[string]any{"url": s.url})
	assert.Equal(t, "Dynamic service registration is disabled", out["message"])

	store := NewMemoryStore()
	p := newProvider(t, Config{AllowDynamicServiceRegistration: true, RegisteredServices: []string{"https://static.example"}}, WithServiceStore(store))
	out = invoke(t, p, sepoliaWallet(), "register_x402_service", map[string]any{"url": "nonsense"})
	assert.Equal(t, "Invalid URL format", out["message"])

	out = invoke(t, p, sepoliaWallet(), "register_x402_service", map[string]any{"url": s.url})
	assert.Equal(t, true, out["success"])
	assert.Equal(t, float64(2), out["totalRegisteredServices"])

	out = invoke(t, p, sepoliaWallet(), "list_registered_services", nil)
	assert.Equal(t, []any{"https://static.example", s.url}, out["registeredServices"])
	assert.Equal(t, "You can register new services using register_x402_service.", out["note"])

	out = invoke(t, p, sepoliaWallet(), "make_http_request", map[string]any{"url": s.url + "/free?location=NYC"})
	assert.Equal(t, true, out["success"])
}

func TestListFacilitators(t *testing.T) {
	t.Parallel()

	p := newProvider(t, Config{RegisteredFacilitators: map[string]string{"zeta": "https://z.example", "alpha": "https://a.example"}})
	out := invoke(t, p, sepoliaWallet(), "list_registered_facilitators", nil)
	assert.Equal(t, float64(2), out["knownCount"])
	assert.Equal(t, float64(2), out["customCount"])
	list := out["facilitators"].([]any)
	require.Len(t, list, 4)
	assert.Equal(t, "cdp", list[0].(map[string]any)["name"])
	assert.Equal(t, "alpha", list[2].(map[string]any)["name"])
	assert.Equal(t, "custom", list[2].(map[string]any)["type"])
}

type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttl  time.Duration
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = map[string][]byte{}
	}
	c.data[key] = value
	c.ttl = ttl
	return nil
}

func discoveryServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	page1 := `{"pagination": {"total": 4}, "items": [
  {"resource": "https://weather.example/forecast", "x402Version": 1, "accepts": [
    {"scheme": "exact", "network": "base-sepolia", "asset": "` + sepoliaUSDC + `", "maxAmountRequired": "10000", "description": "Weather forecasts"}]},
  {"resource": "https://premium.example/data", "x402Version": 2, "metadata": {"description": "Premium market data"}, "accepts": [
    {"scheme": "exact", "network": "eip155:84532", "asset": "` + sepoliaUSDC + `", "amount": "2000000"}]}
]}`
	page2 := `{"pagination": {"total": 4}, "items": [
  {"resource": "https://mainnet.example", "x402Version": 1, "accepts": [
    {"scheme": "exact", "network": "base", "asset": "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", "maxAmountRequired": "1", "description": "Mainnet only"}]},
  {"resource": "https://placeholder.example", "x402Version": 1, "accepts": [
    {"scheme": "exact", "network": "base-sepolia", "asset": "` + sepoliaUSDC + `", "maxAmountRequired": "1", "description": "Access to protected content"}]}
]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		assert.Equal(t, "/discovery/resources", r.URL.Path)
		assert.Equal(t, "1000", r.URL.Query().Get("limit"))
		if n == 1 {
			http.Error(w, "try again", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("offset") == "0" {
			_, _ = w.Write([]byte(page1))
			return
		}
		_, _ = w.Write([]byte(page2))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDiscoverServices(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := discoveryServer(t, &calls)
	cache := &fakeCache{}
	p := newProvider(t, Config{RegisteredFacilitators: map[string]string{"local": srv.URL}}, WithDiscoveryCache(cache))
	w := sepoliaWallet()

	out := invoke(t, p, w, "discover_x402_services", map[string]any{"facilitator": "local"})
	assert.Equal(t, true, out["success"])
	assert.Equal(t, float64(4), out["total"])
	assert.Equal(t, float64(1), out["returned"])
	services := out["services"].([]any)
	require.Len(t, services, 1)
	assert.Equal(t, map[string]any{
		"url":         "https://weather.example/forecast",
		"price":       "0.01 USDC on base-sepolia",
		"description": "Weather forecasts",
	}, services[0])
	assert.Equal(t, []any{"base-sepolia", "eip155:84532"}, out["walletNetworks"])
	// one failed attempt plus two pages
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, DefaultDiscoveryTTL, cache.ttl)

	out = invoke(t, p, w, "discover_x402_services", map[string]any{"facilitator": "local", "max_usdc_price": 5, "keyword": "PREMIUM"})
	assert.Equal(t, float64(1), out["returned"])
	assert.Equal(t, "https://premium.example/data", out["services"].([]any)[0].(map[string]any)["url"])
	assert.Equal(t, int32(3), calls.Load(), "second call is served from the cache")

	out = invoke(t, p, w, "discover_x402_services", map[string]any{"facilitator": "local", "max_usdc_price": 5, "x402_versions": []any{1}})
	assert.Equal(t, float64(1), out["returned"])
}

func TestDiscoverRejectsUnknownFacilitator(t *testing.T) {
	t.Parallel()

	p := newProvider(t, Config{})
	out := invoke(t, p, sepoliaWallet(), "discover_x402_services", map[string]any{"facilitator": "evil"})
	assert.Equal(t, "Facilitator not allowed", out["message"])
	assert.Contains(t, out["details"], "cdp, payai")
}

func TestDiscoverWithNoReachableFacilitator(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	p := newProvider(t, Config{RegisteredFacilitators: map[string]string{"down": srv.URL}})
	out := invoke(t, p, sepoliaWallet(), "discover_x402_services", map[string]any{"facilitator": "down"})
	assert.Equal(t, "No services found", out["message"])
}

func TestAllowedMatchesOriginOrPrefix(t *testing.T) {
	t.Parallel()

	registered := []string{"https://api.example", "https://other.example/v1/"}
	assert.True(t, allowed("https://api.example/anything?x=1", registered))
	assert.True(t, allowed("https://other.example/v1/weather", registered))
	assert.False(t, allowed("https://other.example/v2/weather", registered))
	assert.False(t, allowed("https://api.example.evil.com/", registered))
	assert.False(t, allowed("https://api.example", nil))
}
