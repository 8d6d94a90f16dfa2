package x402

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"ActionKit-Chain/internal/network"
	"ActionKit-Chain/internal/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Header names for both protocol versions.
const (
	headerPaymentRequired  = "PAYMENT-REQUIRED"
	headerPaymentSignature = "PAYMENT-SIGNATURE"
	headerPaymentResponse  = "PAYMENT-RESPONSE"
	headerXPayment         = "X-PAYMENT"
	headerXPaymentResponse = "X-PAYMENT-RESPONSE"
)

const (
	schemeExact       = "exact"
	defaultTimeoutSec = 60
	// validAfter is backdated to tolerate clock skew with the facilitator
	clockSkewSec = 600
	maxBody      = 4 << 20
)

// usdcDomains are the EIP-712 domain name and version of USDC when the
// requirement carries no extra metadata.
var usdcDomains = map[string][2]string{
	network.BaseMainnet: {"USD Coin", "2"},
	network.BaseSepolia: {"USDC", "2"},
}

var transferWithAuthorizationTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"TransferWithAuthorization": {
		{Name: "from", Type: "address"},
		{Name: "to", Type: "address"},
		{Name: "value", Type: "uint256"},
		{Name: "validAfter", Type: "uint256"},
		{Name: "validBefore", Type: "uint256"},
		{Name: "nonce", Type: "bytes32"},
	},
}

// paymentRequired is the body of a 402 response, or the decoded
// PAYMENT-REQUIRED header in v2.
type paymentRequired struct {
	X402Version int             `json:"x402Version"`
	Error       string          `json:"error,omitempty"`
	Resource    json.RawMessage `json:"resource,omitempty"`
	Accepts     []paymentOption `json:"accepts"`
	Description string          `json:"description,omitempty"`
	MimeType    string          `json:"mimeType,omitempty"`
	Extensions  map[string]any  `json:"extensions,omitempty"`
}

// request is an outbound call described by action arguments.
type request struct {
	URL         string            `json:"url"`
	Method      string            `json:"method"`
	Headers     map[string]string `json:"headers"`
	QueryParams map[string]string `json:"query_params"`
	Body        any               `json:"body"`
}

func (r request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(r.Method)
}

func canHaveBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

// finalURL appends query parameters, keeping any already present.
func (r request) finalURL() string {
	if len(r.QueryParams) == 0 {
		return r.URL
	}
	q := url.Values{}
	for k, v := range r.QueryParams {
		q.Set(k, v)
	}
	sep := "?"
	if strings.Contains(r.URL, "?") {
		sep = "&"
	}
	return r.URL + sep + q.Encode()
}

func (r request) build(ctx context.Context, method string, extra http.Header) (*http.Request, error) {
	var body io.Reader
	withBody := canHaveBody(method) && r.Body != nil
	if withBody {
		encoded, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.finalURL(), body)
	if err != nil {
		return nil, err
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	if withBody {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, values := range extra {
		for _, v := range values {
			req.Header.Set(k, v)
		}
	}
	return req, nil
}

// response is a fully read HTTP response.
type response struct {
	Status int
	Header http.Header
	Raw    []byte
	Data   any
}

func (p *Provider) send(ctx context.Context, r request, method string, extra http.Header) (*response, error) {
	req, err := r.build(ctx, method, extra)
	if err != nil {
		return nil, err
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	out := &response{Status: resp.StatusCode, Header: resp.Header, Raw: raw, Data: string(raw)}
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err == nil {
			out.Data = decoded
		}
	}
	return out, nil
}

// requirements reads the v2 header first and falls back to the v1 body.
func (r *response) requirements() (paymentRequired, error) {
	if header := r.Header.Get(headerPaymentRequired); header != "" {
		var pr paymentRequired
		if decoded, err := base64.StdEncoding.DecodeString(header); err == nil {
			if err := json.Unmarshal(decoded, &pr); err == nil && len(pr.Accepts) > 0 {
				if pr.X402Version == 0 {
					pr.X402Version = 2
				}
				return pr, nil
			}
		}
	}
	var pr paymentRequired
	if err := json.Unmarshal(r.Raw, &pr); err != nil {
		return paymentRequired{}, fmt.Errorf("decode payment requirements: %w", err)
	}
	if pr.X402Version == 0 {
		pr.X402Version = 1
	}
	return pr, nil
}

// proof decodes the settlement header, keeping it raw when undecodable.
func (r *response) proof() any {
	header := r.Header.Get(headerPaymentResponse)
	if header == "" {
		header = r.Header.Get(headerXPaymentResponse)
	}
	if header == "" {
		return nil
	}
	decoded, err := base64.StdEncoding.DecodeString(header)
	if err == nil {
		var out map[string]any
		if err := json.Unmarshal(decoded, &out); err == nil {
			return out
		}
	}
	return map[string]any{"raw": header}
}

type authorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
}

type exactPayload struct {
	Signature     string        `json:"signature"`
	Authorization authorization `json:"authorization"`
}

type paymentPayload struct {
	X402Version int             `json:"x402Version"`
	Scheme      string          `json:"scheme,omitempty"`
	Network     string          `json:"network,omitempty"`
	Resource    json.RawMessage `json:"resource,omitempty"`
	Accepted    *paymentOption  `json:"accepted,omitempty"`
	Payload     exactPayload    `json:"payload"`
}

// authorize signs an EIP-3009 transferWithAuthorization for opt and
// returns the header carrying it.
func (p *Provider) authorize(ctx context.Context, w wallet.Wallet, pr paymentRequired, opt paymentOption) (http.Header, error) {
	if opt.Scheme != "" && opt.Scheme != schemeExact {
		return nil, fmt.Errorf("unsupported payment scheme %q", opt.Scheme)
	}
	target, ok := network.Lookup(networkIDFor(opt.Network))
	if !ok || !target.IsEVM() {
		return nil, fmt.Errorf("unsupported payment network %q", opt.Network)
	}
	if !common.IsHexAddress(opt.Asset) || !common.IsHexAddress(opt.PayTo) {
		return nil, fmt.Errorf("payment option needs hex asset and payTo addresses")
	}
	value, ok := new(big.Int).SetString(opt.atomicAmount(), 10)
	if !ok {
		return nil, fmt.Errorf("payment amount %q is not an integer", opt.atomicAmount())
	}

	timeout := opt.MaxTimeoutSeconds
	if timeout <= 0 {
		timeout = defaultTimeoutSec
	}
	now := p.now().Unix()
	nonce := p.nonce()
	auth := authorization{
		From:        w.Address().Hex(),
		To:          common.HexToAddress(opt.PayTo).Hex(),
		Value:       value.String(),
		ValidAfter:  strconv.FormatInt(now-clockSkewSec, 10),
		ValidBefore: strconv.FormatInt(now+timeout, 10),
		Nonce:       hexutil.Encode(nonce[:]),
	}

	name, version := domainFor(target.NetworkID, opt.Extra)
	typed := apitypes.TypedData{
		Types:       transferWithAuthorizationTypes,
		PrimaryType: "TransferWithAuthorization",
		Domain: apitypes.TypedDataDomain{
			Name:              name,
			Version:           version,
			ChainId:           (*math.HexOrDecimal256)(target.ChainIDInt()),
			VerifyingContract: common.HexToAddress(opt.Asset).Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"from":        auth.From,
			"to":          auth.To,
			"value":       auth.Value,
			"validAfter":  auth.ValidAfter,
			"validBefore": auth.ValidBefore,
			"nonce":       auth.Nonce,
		},
	}
	sig, err := w.SignTypedData(ctx, typed)
	if err != nil {
		return nil, fmt.Errorf("sign payment authorization: %w", err)
	}

	payload := paymentPayload{
		X402Version: pr.X402Version,
		Payload:     exactPayload{Signature: hexutil.Encode(sig), Authorization: auth},
	}
	headerName := headerXPayment
	if pr.X402Version >= 2 {
		payload.Resource = pr.Resource
		payload.Accepted = &opt
		headerName = headerPaymentSignature
	} else {
		payload.Scheme = schemeExact
		payload.Network = opt.Network
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payment payload: %w", err)
	}
	h := http.Header{}
	h.Set(headerName, base64.StdEncoding.EncodeToString(encoded))
	return h, nil
}

func domainFor(networkID string, extra map[string]any) (string, string) {
	def := usdcDomains[networkID]
	name, version := def[0], def[1]
	if v, ok := extra["name"].(string); ok && v != "" {
		name = v
	}
	if v, ok := extra["version"].(string); ok && v != "" {
		version = v
	}
	return name, version
}

// payAndSend sends r and, when the server answers 402, signs the option
// picked by choose and sends r again with the payment header.
func (p *Provider) payAndSend(ctx context.Context, w wallet.Wallet, r request, choose func(paymentRequired) (paymentOption, error)) (*response, error) {
	method := r.method()
	first, err := p.send(ctx, r, method, nil)
	if err != nil {
		return nil, err
	}
	if first.Status != http.StatusPaymentRequired {
		return first, nil
	}
	pr, err := first.requirements()
	if err != nil {
		return nil, err
	}
	opt, err := choose(pr)
	if err != nil {
		return nil, err
	}
	header, err := p.authorize(ctx, w, pr, opt)
	if err != nil {
		return nil, err
	}
	return p.send(ctx, r, method, header)
}
