// Package x402 calls HTTP services that charge through the x402 payment
// protocol, paying in USDC with EIP-3009 authorizations signed by the wallet.
package x402

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"ActionKit-Chain/internal/action"
	xerrors "ActionKit-Chain/internal/errors"
	"ActionKit-Chain/internal/httpclient"
	"ActionKit-Chain/internal/network"
	"ActionKit-Chain/internal/providers"
	"ActionKit-Chain/internal/retry"
	"ActionKit-Chain/internal/schema"
	"ActionKit-Chain/internal/wallet"
	"ActionKit-Chain/pkg/logger"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// Name is the provider namespace.
const Name = "x402"

// Environment fallbacks.
const (
	EnvAllowDynamicRegistration = "X402_ALLOW_DYNAMIC_SERVICE_REGISTRATION"
	EnvMaxPaymentUSDC           = "X402_MAX_PAYMENT_USDC"
)

const (
	DefaultMaxPaymentUSDC = 1.0
	DefaultDiscoveryTTL   = 5 * time.Minute
	defaultPageDelay      = 250 * time.Millisecond
)

// Config configures the provider.
type Config struct {
	// RegisteredServices are the service URLs, or URL prefixes, that may be called.
	RegisteredServices              []string          `yaml:"registered_services" validate:"dive,url"`
	AllowDynamicServiceRegistration bool              `yaml:"allow_dynamic_service_registration"`
	RegisteredFacilitators          map[string]string `yaml:"registered_facilitators" validate:"dive,keys,required,endkeys,url"`
	// MaxPaymentUSDC caps a single payment in whole USDC.
	MaxPaymentUSDC    float64       `yaml:"max_payment_usdc" validate:"gte=0"`
	DiscoveryTTL      time.Duration `yaml:"discovery_ttl" validate:"gte=0"`
	RequestsPerSecond float64       `yaml:"requests_per_second" validate:"gte=0"`
	DiscoveryRetry    retry.Config  `yaml:"-"`

	HTTPClient *http.Client `yaml:"-"`
}

// Option customises the provider.
type Option func(*Provider)

// WithServiceStore replaces the in memory registry of dynamic services.
func WithServiceStore(s ServiceStore) Option {
	return func(p *Provider) {
		if s != nil {
			p.store = s
		}
	}
}

// WithDiscoveryCache caches discovery listings for Config.DiscoveryTTL.
func WithDiscoveryCache(c DiscoveryCache) Option {
	return func(p *Provider) { p.cache = c }
}

// WithClock replaces time.Now for authorization validity windows.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// WithNonce replaces the authorization nonce source.
func WithNonce(nonce func() [32]byte) Option {
	return func(p *Provider) { p.nonce = nonce }
}

// Provider implements the x402 actions.
type Provider struct {
	action.Base
	cfg   Config
	http  *httpclient.Client
	store ServiceStore
	cache DiscoveryCache
	log   *slog.Logger

	now       func() time.Time
	nonce     func() [32]byte
	pageDelay time.Duration
}

// New resolves environment fallbacks, validates cfg and returns the provider.
func New(cfg Config, opts ...Option) (*Provider, error) {
	if !cfg.AllowDynamicServiceRegistration {
		cfg.AllowDynamicServiceRegistration = strings.EqualFold(os.Getenv(EnvAllowDynamicRegistration), "true")
	}
	if cfg.MaxPaymentUSDC == 0 {
		cfg.MaxPaymentUSDC = DefaultMaxPaymentUSDC
		if raw := providers.Env("", EnvMaxPaymentUSDC); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, xerrors.Configuration("%s must be a number, got %q", EnvMaxPaymentUSDC, raw)
			}
			cfg.MaxPaymentUSDC = v
		}
	}
	if cfg.DiscoveryTTL == 0 {
		cfg.DiscoveryTTL = DefaultDiscoveryTTL
	}
	if cfg.DiscoveryRetry.MaxAttempts == 0 {
		cfg.DiscoveryRetry = retry.Config{MaxAttempts: 4, InitialBackoff: time.Second, Multiplier: 2}
	}
	if err := providers.Validate(Name, cfg); err != nil {
		return nil, err
	}

	httpOpts := []httpclient.Option{httpclient.WithRateLimit(cfg.RequestsPerSecond, 1)}
	if cfg.HTTPClient != nil {
		httpOpts = append(httpOpts, httpclient.WithHTTPClient(cfg.HTTPClient))
	}
	p := &Provider{
		Base:      action.NewBase(Name),
		cfg:       cfg,
		http:      httpclient.New(httpOpts...),
		store:     NewMemoryStore(),
		log:       logger.Named("x402"),
		now:       time.Now,
		nonce:     randomNonce,
		pageDelay: defaultPageDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// randomNonce derives a 32 byte authorization nonce from a random UUID.
func randomNonce() [32]byte {
	id := uuid.New()
	return crypto.Keccak256Hash(id[:])
}

// SupportsNetwork accepts Base and Solana mainnet and test networks.
func (p *Provider) SupportsNetwork(n network.Network) bool {
	n = n.Complete()
	family, ok := supportedNetworks[n.NetworkID]
	return ok && strings.EqualFold(n.ProtocolFamily, family)
}

const requestProperties = `
    "url": {"type": "string", "minLength": 1, "description": "The URL of the API endpoint (can be localhost for development)"},
    "method": {"type": "string", "enum": ["GET", "POST", "PUT", "DELETE", "PATCH"], "default": "GET", "description": "The HTTP method to use for the request"},
    "headers": {"type": "object", "additionalProperties": {"type": "string"}, "description": "Optional headers to include in the request"},
    "query_params": {"type": "object", "additionalProperties": {"type": "string"}, "description": "Query parameters to append to the URL. Use only for GET and DELETE requests, send data for POST, PUT and PATCH in body"},
    "body": {"description": "Request body for POST, PUT and PATCH requests. Do not use for GET or DELETE"}`

var (
	emptySchema = schema.MustCompile(`{"type": "object", "properties": {}}`)

	discoverSchema = schema.MustCompile(`{
  "type": "object",
  "properties": {
    "facilitator": {"type": "string", "default": "cdp", "description": "Facilitator to query: cdp, payai or a registered custom facilitator name"},
    "max_usdc_price": {"type": "number", "minimum": 0, "default": 1.0, "description": "Maximum price in whole USDC, e.g. 0.1 for 0.10 USDC"},
    "x402_versions": {"type": "array", "items": {"type": "integer", "enum": [1, 2]}, "default": [1, 2], "description": "Protocol versions to accept"},
    "keyword": {"type": "string", "description": "Optional case insensitive keyword matched against descriptions and URLs"}
  }
}`)

	requestSchema = schema.MustCompile(`{
  "type": "object",
  "properties": {` + requestProperties + `
  },
  "required": ["url"]
}`)

	retrySchema = schema.MustCompile(`{
  "type": "object",
  "properties": {` + requestProperties + `,
    "selected_payment_option": {
      "type": "object",
      "description": "The exact payment option from acceptablePaymentOptions, unmodified. Amounts are atomic units",
      "properties": {
        "scheme": {"type": "string"},
        "network": {"type": "string"},
        "asset": {"type": "string"},
        "maxAmountRequired": {"type": "string"},
        "max_amount_required": {"type": "string"},
        "amount": {"type": "string"},
        "price": {"type": "string"},
        "payTo": {"type": "string"},
        "pay_to": {"type": "string"}
      },
      "required": ["scheme", "network", "asset"]
    }
  },
  "required": ["url", "selected_payment_option"]
}`)

	registerSchema = schema.MustCompile(`{
  "type": "object",
  "properties": {
    "url": {"type": "string", "minLength": 1, "description": "Service URL to register for x402 requests"}
  },
  "required": ["url"]
}`)
)

type discoverArgs struct {
	Facilitator  string  `json:"facilitator"`
	MaxUSDCPrice float64 `json:"max_usdc_price"`
	X402Versions []int   `json:"x402_versions"`
	Keyword      string  `json:"keyword"`
}

type selectedOption struct {
	Scheme            string `json:"scheme"`
	Network           string `json:"network"`
	Asset             string `json:"asset"`
	MaxAmountRequired string `json:"maxAmountRequired"`
	SnakeMaxAmount    string `json:"max_amount_required"`
	Amount            string `json:"amount"`
	Price             string `json:"price"`
}

func (s selectedOption) amount() string {
	for _, v := range []string{s.MaxAmountRequired, s.SnakeMaxAmount, s.Amount, s.Price} {
		if v != "" {
			return v
		}
	}
	return "0"
}

type retryArgs struct {
	Selected selectedOption `json:"selected_payment_option"`
}

type registerArgs struct {
	URL string `json:"url"`
}

// Actions lists the x402 actions.
func (p *Provider) Actions() []action.Descriptor {
	return []action.Descriptor{
		{
			Name:        "discover_x402_services",
			Description: "Discover available x402 services. Only services available on the current network will be returned. Optionally filter by a maximum price in whole units of USDC (only USDC payment options will be considered when filter is applied).",
			Schema:      discoverSchema,
			Invoke:      p.discover,
		},
		{
			Name: "make_http_request",
			Description: `Makes a basic HTTP request to an API endpoint. If the endpoint requires payment (returns 402),
it will return payment details that can be used with retry_http_request_with_x402.

If you receive a 402 Payment Required response, use retry_http_request_with_x402 to handle the payment.`,
			Schema: requestSchema,
			Invoke: p.makeRequest,
		},
		{
			Name: "retry_http_request_with_x402",
			Description: `Retries an HTTP request with x402 payment after receiving a 402 Payment Required response.
This should be used after make_http_request returns a 402 response.

Pass the EXACT payment option object from acceptablePaymentOptions as selected_payment_option.
Do not modify any values, the amount field is in atomic units (10000 means 0.01 USDC).

Do not use this action directly without first trying make_http_request.`,
			Schema: retrySchema,
			Invoke: p.retryWithPayment,
		},
		{
			Name: "make_http_request_with_x402",
			Description: `WARNING: This action automatically handles payments without asking for confirmation.
Only use this when explicitly told to skip the confirmation flow.

Unless specifically instructed otherwise, prefer make_http_request followed by retry_http_request_with_x402.`,
			Schema: requestSchema,
			Invoke: p.makePaidRequest,
		},
		{
			Name: "register_x402_service",
			Description: `Registers a service URL for x402 requests. Use this after discovering a service
via discover_x402_services to enable HTTP requests to that service.

This action only works when dynamic service registration is enabled.`,
			Schema: registerSchema,
			Invoke: p.registerService,
		},
		{
			Name:        "list_registered_services",
			Description: "Lists all service URLs that are currently approved for x402 requests. These are the only services that can be called using make_http_request or make_http_request_with_x402.",
			Schema:      emptySchema,
			Invoke:      p.listServices,
		},
		{
			Name:        "list_registered_facilitators",
			Description: "Lists all facilitators that can be used with discover_x402_services.",
			Schema:      emptySchema,
			Invoke:      p.listFacilitators,
		},
	}
}

type result map[string]any

func failure(message, details string) result {
	return result{"error": true, "message": message, "details": details}
}

// httpFailure renders a failed outbound call.
func httpFailure(err error, target string) string {
	var uerr *url.Error
	if stdErrors.As(err, &uerr) {
		return action.JSON(result{
			"error":      true,
			"message":    "Network error when accessing " + target,
			"details":    err.Error(),
			"suggestion": "Check your internet connection and verify the API endpoint is accessible.",
		})
	}
	return action.JSON(result{
		"error":      true,
		"message":    "Error making request to " + target,
		"details":    err.Error(),
		"suggestion": "Please check the request parameters and try again.",
	})
}

func (p *Provider) facilitators() []facilitator {
	out := append([]facilitator(nil), knownFacilitators...)
	names := make([]string, 0, len(p.cfg.RegisteredFacilitators))
	for name := range p.cfg.RegisteredFacilitators {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out = append(out, facilitator{Name: name, URL: p.cfg.RegisteredFacilitators[name], Type: "custom"})
	}
	return out
}

func (p *Provider) facilitatorURL(name string) (string, bool) {
	for _, f := range p.facilitators() {
		if f.Name == name {
			return f.URL, true
		}
	}
	return "", false
}

func (p *Provider) discover(ctx context.Context, w wallet.Wallet, raw map[string]any) (string, error) {
	var args discoverArgs
	if err := schema.Decode(raw, &args); err != nil {
		return "", err
	}
	base, ok := p.facilitatorURL(args.Facilitator)
	if !ok {
		names := make([]string, 0)
		for _, f := range p.facilitators() {
			names = append(names, f.Name)
		}
		return action.JSON(failure("Facilitator not allowed",
			fmt.Sprintf("The facilitator %q is not recognized. Use one of: %s", args.Facilitator, strings.Join(names, ", ")))), nil
	}

	all, err := p.fetchAll(ctx, strings.TrimRight(base, "/")+discoveryPath)
	if err != nil {
		return action.JSON(failure("Failed to list x402 services", err.Error())), nil
	}
	if len(all) == 0 {
		return action.JSON(result{"error": true, "message": "No services found"}), nil
	}

	networks := walletNetworks(w.Network())
	filtered := filterByNetwork(all, networks)
	filtered = filterByDescription(filtered)
	filtered = filterByVersion(filtered, args.X402Versions)
	if args.Keyword != "" {
		filtered = filterByKeyword(filtered, args.Keyword)
	}
	filtered = filterByMaxPrice(ctx, w, filtered, args.MaxUSDCPrice, networks)
	services := simplify(ctx, w, filtered, networks)

	return action.JSON(result{
		"success":        true,
		"services":       services,
		"walletNetworks": networks,
		"total":          len(all),
		"returned":       len(services),
	}), nil
}

// gate returns a rendered refusal when target is not registered.
func (p *Provider) gate(ctx context.Context, target, details string, suggest bool) (string, bool, error) {
	registered, err := p.registered(ctx)
	if err != nil {
		return "", false, xerrors.External("reading registered services", err)
	}
	if allowed(target, registered) {
		return "", true, nil
	}
	out := failure("Service not registered", fmt.Sprintf("The service URL %q is not registered. %s", target, details))
	out["registeredServices"] = registered
	if suggest {
		out["suggestion"] = p.registrationHint()
	}
	return action.JSON(out), false, nil
}

func (p *Provider) registrationHint() string {
	if p.cfg.AllowDynamicServiceRegistration {
		return "Use register_x402_service to register this service first."
	}
	return "Dynamic service registration is disabled. Only pre-registered services can be used. Set allow_dynamic_service_registration to true in the agent configuration to enable dynamic service registration."
}

func unsupportedWallet() string {
	return action.JSON(failure("Unsupported wallet provider", "Only EVM wallets are currently supported for x402 payments"))
}

func (p *Provider) makeRequest(ctx context.Context, w wallet.Wallet, raw map[string]any) (string, error) {
	var r request
	if err := schema.Decode(raw, &r); err != nil {
		return "", err
	}
	if refusal, ok, err := p.gate(ctx, r.URL, "Only approved services can be called.", true); !ok || err != nil {
		return refusal, err
	}

	method := r.method()
	res, err := p.send(ctx, r, method, nil)
	if err != nil {
		return httpFailure(err, r.URL), nil
	}
	if res.Status == http.StatusNotFound {
		// some sellers only answer one verb, try the other once
		method = http.MethodGet
		if r.method() == http.MethodGet {
			method = http.MethodPost
		}
		if res, err = p.send(ctx, r, method, nil); err != nil {
			return httpFailure(err, r.URL), nil
		}
	}
	if res.Status != http.StatusPaymentRequired {
		return action.JSON(result{
			"success": true,
			"url":     r.finalURL(),
			"method":  method,
			"status":  res.Status,
			"data":    res.Data,
		}), nil
	}

	pr, err := res.requirements()
	if err != nil {
		return httpFailure(err, r.URL), nil
	}
	return p.describePaymentRequired(ctx, w, pr), nil
}

func (p *Provider) describePaymentRequired(ctx context.Context, w wallet.Wallet, pr paymentRequired) string {
	networks := walletNetworks(w.Network())
	var usdc []paymentOption
	for _, opt := range pr.Accepts {
		if isUSDC(w.Network(), opt.Asset) {
			usdc = append(usdc, opt)
		}
	}
	if len(usdc) == 0 {
		out := failure("No USDC payment option available", "This service does not accept USDC payments. Only USDC payments are supported.")
		out["originalOptions"] = pr.Accepts
		return action.JSON(out)
	}

	available := make([]string, 0, len(usdc))
	var formatted []string
	for _, opt := range usdc {
		available = append(available, opt.Network)
		if contains(networks, opt.Network) {
			atomic := opt.atomicAmount()
			if atomic == "" {
				atomic = "0"
			}
			formatted = append(formatted, formatPrice(ctx, w, opt.Asset, atomic, opt.Network))
		}
	}
	matching := len(formatted) > 0

	optionsText := fmt.Sprintf("The wallet networks %s do not match any available USDC payment options (%s).",
		strings.Join(networks, ", "), strings.Join(available, ", "))
	if matching {
		optionsText = "The USDC payment options are: " + strings.Join(formatted, ", ")
	}
	steps := []string{
		"Inform the user that the requested server replied with a 402 Payment Required response.",
		optionsText,
		"Include the description of the service in the response.",
		"IMPORTANT: Identify required or optional query or body parameters based on this response. If there are any, you must inform the user and request them to provide the values. Always suggest example values.",
		"CRITICAL: For POST/PUT/PATCH requests, you MUST use the 'body' parameter (NOT query_params) to send data.",
	}
	if matching {
		steps = append(steps,
			"Ask the user if they want to retry the request with payment.",
			"CRITICAL: When calling retry_http_request_with_x402, you MUST pass the EXACT payment option object from acceptablePaymentOptions as selected_payment_option. Do NOT modify, interpret, or convert any values. The 'amount' field is in atomic units (e.g., '10000' = 0.01 USDC) and must be passed exactly as-is.")
	}

	out := result{
		"status":                   "error_402_payment_required",
		"acceptablePaymentOptions": usdc,
		"nextSteps":                steps,
	}
	info := result{}
	if pr.Description != "" {
		info["description"] = pr.Description
	}
	if pr.MimeType != "" {
		info["mimeType"] = pr.MimeType
	}
	if len(pr.Extensions) > 0 {
		info["extensions"] = pr.Extensions
	}
	if len(info) > 0 {
		out["discoveryInfo"] = info
	}
	return action.JSON(out)
}

func (p *Provider) retryWithPayment(ctx context.Context, w wallet.Wallet, raw map[string]any) (string, error) {
	var (
		r    request
		args retryArgs
	)
	if err := schema.Decode(raw, &r); err != nil {
		return "", err
	}
	if err := schema.Decode(raw, &args); err != nil {
		return "", err
	}
	sel := args.Selected
	if refusal, ok, err := p.gate(ctx, r.URL, "Only pre-registered services can be called.", false); !ok || err != nil {
		return refusal, err
	}
	if !isUSDC(w.Network(), sel.Asset) {
		return action.JSON(failure("Only USDC payments are supported", fmt.Sprintf("The selected payment asset %q is not USDC.", sel.Asset))), nil
	}
	if refusal, ok := p.withinLimit(sel.amount()); !ok {
		return refusal, nil
	}
	networks := walletNetworks(w.Network())
	if !contains(networks, sel.Network) {
		return action.JSON(failure("Network mismatch",
			fmt.Sprintf("Wallet is on %s but payment requires %s", strings.Join(networks, ", "), sel.Network))), nil
	}
	if !w.Network().IsEVM() {
		return unsupportedWallet(), nil
	}

	res, err := p.payAndSend(ctx, w, r, func(pr paymentRequired) (paymentOption, error) {
		for _, opt := range pr.Accepts {
			if opt.Network == sel.Network && strings.EqualFold(opt.Asset, sel.Asset) {
				return opt, p.limitError(opt.atomicAmount())
			}
		}
		return paymentOption{}, fmt.Errorf("the service no longer offers a %s payment on %s", sel.Asset, sel.Network)
	})
	if err != nil {
		return httpFailure(err, r.URL), nil
	}

	details := result{"url": r.finalURL(), "method": r.method()}
	if res.Status != http.StatusOK {
		return action.JSON(result{
			"status":     "error",
			"message":    fmt.Sprintf("Request failed with status %d. Payment was not settled.", res.Status),
			"httpStatus": res.Status,
			"data":       res.Data,
			"details":    details,
		}), nil
	}
	details["paymentUsed"] = result{"network": sel.Network, "asset": sel.Asset, "amount": sel.amount()}
	details["paymentProof"] = res.proof()
	return action.JSON(result{
		"status":  "success",
		"data":    res.Data,
		"message": "Request completed successfully with payment",
		"details": details,
	}), nil
}

func (p *Provider) makePaidRequest(ctx context.Context, w wallet.Wallet, raw map[string]any) (string, error) {
	var r request
	if err := schema.Decode(raw, &r); err != nil {
		return "", err
	}
	if refusal, ok, err := p.gate(ctx, r.URL, "Only pre-registered services can be called.", true); !ok || err != nil {
		return refusal, err
	}
	if !w.Network().IsEVM() {
		return unsupportedWallet(), nil
	}

	networks := walletNetworks(w.Network())
	res, err := p.payAndSend(ctx, w, r, func(pr paymentRequired) (paymentOption, error) {
		for _, opt := range pr.Accepts {
			if contains(networks, opt.Network) && isUSDC(w.Network(), opt.Asset) {
				return opt, p.limitError(opt.atomicAmount())
			}
		}
		return paymentOption{}, fmt.Errorf("no USDC payment option on %s", strings.Join(networks, ", "))
	})
	if err != nil {
		return httpFailure(err, r.URL), nil
	}

	out := result{
		"url":    r.finalURL(),
		"method": r.method(),
		"status": res.Status,
		"data":   res.Data,
	}
	if res.Status != http.StatusOK {
		out["success"] = false
		out["message"] = fmt.Sprintf("Request failed with status %d. Payment was not settled.", res.Status)
		return action.JSON(out), nil
	}
	out["success"] = true
	out["message"] = "Request completed successfully (payment handled automatically if required)"
	out["paymentProof"] = res.proof()
	return action.JSON(out), nil
}

func (p *Provider) withinLimit(atomic string) (string, bool) {
	check, err := checkPaymentLimit(atomic, p.cfg.MaxPaymentUSDC)
	if err != nil {
		return action.JSON(failure("Invalid payment amount", err.Error())), false
	}
	if !check.valid {
		out := failure("Payment exceeds limit", fmt.Sprintf("The requested payment of %s USDC exceeds the maximum spending limit of %s USDC.", check.requested, check.max))
		out["maxPaymentUsdc"] = p.cfg.MaxPaymentUSDC
		return action.JSON(out), false
	}
	return "", true
}

func (p *Provider) limitError(atomic string) error {
	check, err := checkPaymentLimit(atomic, p.cfg.MaxPaymentUSDC)
	if err != nil {
		return err
	}
	if !check.valid {
		return fmt.Errorf("payment of %s USDC exceeds the maximum spending limit of %s USDC", check.requested, check.max)
	}
	return nil
}

func (p *Provider) registerService(ctx context.Context, _ wallet.Wallet, raw map[string]any) (string, error) {
	if !p.cfg.AllowDynamicServiceRegistration {
		return action.JSON(failure("Dynamic service registration is disabled",
			"The agent is configured with allow_dynamic_service_registration: false. Services must be pre-registered.")), nil
	}
	var args registerArgs
	if err := schema.Decode(raw, &args); err != nil {
		return "", err
	}
	parsed, err := url.Parse(args.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return action.JSON(failure("Invalid URL format", fmt.Sprintf("%q is not a valid URL.", args.URL))), nil
	}
	if err := p.store.Add(ctx, args.URL); err != nil {
		return "", xerrors.External("registering service", err)
	}
	registered, err := p.registered(ctx)
	if err != nil {
		return "", xerrors.External("registering service", err)
	}
	p.log.Info("x402 service registered", slog.String("url", args.URL))
	return action.JSON(result{
		"success":                 true,
		"message":                 "Service registered successfully",
		"registeredUrl":           args.URL,
		"totalRegisteredServices": len(registered),
	}), nil
}

func (p *Provider) listServices(ctx context.Context, _ wallet.Wallet, _ map[string]any) (string, error) {
	registered, err := p.registered(ctx)
	if err != nil {
		return "", xerrors.External("listing registered services", err)
	}
	note := "Dynamic service registration is disabled. Only pre-registered services can be used."
	if p.cfg.AllowDynamicServiceRegistration {
		note = "You can register new services using register_x402_service."
	}
	return action.JSON(result{
		"success":                         true,
		"registeredServices":              registered,
		"count":                           len(registered),
		"allowDynamicServiceRegistration": p.cfg.AllowDynamicServiceRegistration,
		"note":                            note,
	}), nil
}

func (p *Provider) listFacilitators(context.Context, wallet.Wallet, map[string]any) (string, error) {
	all := p.facilitators()
	return action.JSON(result{
		"success":      true,
		"facilitators": all,
		"knownCount":   len(knownFacilitators),
		"customCount":  len(all) - len(knownFacilitators),
		"totalCount":   len(all),
		"note":         "Use the 'facilitator' parameter in discover_x402_services to query a specific facilitator by name.",
	}), nil
}
