package x402

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"ActionKit-Chain/internal/retry"
	"ActionKit-Chain/internal/wallet"
)

const (
	discoveryPageSize = 1000
	discoveryPath     = "/discovery/resources"
	// placeholder text some sellers leave in place of a description
	placeholderDescription = "Access to protected content"
)

// DiscoveryCache keeps fetched discovery listings between calls.
type DiscoveryCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// paymentOption is one entry of an accepts list, in either protocol version.
type paymentOption struct {
	Scheme            string         `json:"scheme"`
	Network           string         `json:"network"`
	Asset             string         `json:"asset"`
	MaxAmountRequired string         `json:"maxAmountRequired,omitempty"`
	Amount            string         `json:"amount,omitempty"`
	Price             string         `json:"price,omitempty"`
	PayTo             string         `json:"payTo,omitempty"`
	Resource          string         `json:"resource,omitempty"`
	Description       string         `json:"description,omitempty"`
	MimeType          string         `json:"mimeType,omitempty"`
	MaxTimeoutSeconds int64          `json:"maxTimeoutSeconds,omitempty"`
	Extra             map[string]any `json:"extra,omitempty"`
}

func (o *paymentOption) UnmarshalJSON(data []byte) error {
	type plain paymentOption
	var aux struct {
		plain
		SnakeMaxAmount string `json:"max_amount_required"`
		SnakePayTo     string `json:"pay_to"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*o = paymentOption(aux.plain)
	if o.MaxAmountRequired == "" {
		o.MaxAmountRequired = aux.SnakeMaxAmount
	}
	if o.PayTo == "" {
		o.PayTo = aux.SnakePayTo
	}
	return nil
}

// atomicAmount is the amount to pay in the asset's smallest unit.
func (o paymentOption) atomicAmount() string {
	for _, v := range []string{o.MaxAmountRequired, o.Amount, o.Price} {
		if v != "" {
			return v
		}
	}
	return ""
}

type resource struct {
	Resource    string          `json:"resource,omitempty"`
	URL         string          `json:"url,omitempty"`
	Type        string          `json:"type,omitempty"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
	Accepts     []paymentOption `json:"accepts"`
	X402Version *int            `json:"x402Version,omitempty"`
	LastUpdated string          `json:"lastUpdated,omitempty"`
}

func (r *resource) UnmarshalJSON(data []byte) error {
	type plain resource
	var aux struct {
		plain
		SnakeVersion *int   `json:"x402_version"`
		SnakeUpdated string `json:"last_updated"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = resource(aux.plain)
	if r.X402Version == nil {
		r.X402Version = aux.SnakeVersion
	}
	if r.LastUpdated == "" {
		r.LastUpdated = aux.SnakeUpdated
	}
	return nil
}

func (r resource) location() string {
	if r.Resource != "" {
		return r.Resource
	}
	return r.URL
}

// description reads metadata.description for v2 and the first non blank
// accepts description otherwise.
func (r resource) description() string {
	if r.X402Version != nil && *r.X402Version == 2 {
		if desc, ok := r.Metadata["description"].(string); ok {
			return desc
		}
		return ""
	}
	for _, opt := range r.Accepts {
		if strings.TrimSpace(opt.Description) != "" {
			return opt.Description
		}
	}
	return ""
}

type discoveryPage struct {
	Resources  []resource `json:"resources"`
	Items      []resource `json:"items"`
	Pagination struct {
		Total int `json:"total"`
	} `json:"pagination"`
}

func (p discoveryPage) entries() []resource {
	if p.Resources != nil {
		return p.Resources
	}
	return p.Items
}

// fetchAll walks the discovery listing page by page. A failed page is
// skipped once a total is known; a failure before any success ends the walk.
func (p *Provider) fetchAll(ctx context.Context, discoveryURL string) ([]resource, error) {
	if p.cache != nil {
		if cached, ok, err := p.cache.Get(ctx, discoveryURL); err == nil && ok {
			var out []resource
			if err := json.Unmarshal(cached, &out); err == nil {
				return out, nil
			}
		}
	}

	var (
		all        []resource
		offset     int
		knownTotal int
	)
	for page := 1; ; page++ {
		url := fmt.Sprintf("%s?limit=%d&offset=%d", discoveryURL, discoveryPageSize, offset)
		data, err := retry.Value(ctx, p.cfg.DiscoveryRetry, func(ctx context.Context) (discoveryPage, error) {
			var out discoveryPage
			err := p.http.GetJSON(ctx, url, &out)
			return out, err
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.log.Warn("discovery page failed", slog.Int("page", page), slog.Int("offset", offset), slog.Any("error", err))
			offset += discoveryPageSize
			if knownTotal == 0 || offset >= knownTotal {
				break
			}
			if err := p.pause(ctx); err != nil {
				return nil, err
			}
			continue
		}

		entries := data.entries()
		if data.Pagination.Total > 0 {
			knownTotal = data.Pagination.Total
		}
		all = append(all, entries...)
		offset += len(entries)
		if len(entries) == 0 || offset >= knownTotal {
			break
		}
		if err := p.pause(ctx); err != nil {
			return nil, err
		}
	}

	if p.cache != nil && len(all) > 0 {
		if encoded, err := json.Marshal(all); err == nil {
			if err := p.cache.Set(ctx, discoveryURL, encoded, p.cfg.DiscoveryTTL); err != nil {
				p.log.Warn("cache discovery listing", slog.Any("error", err))
			}
		}
	}
	return all, nil
}

func (p *Provider) pause(ctx context.Context) error {
	if p.pageDelay <= 0 {
		return nil
	}
	t := time.NewTimer(p.pageDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func filterByNetwork(in []resource, networks []string) []resource {
	var out []resource
	for _, r := range in {
		for _, opt := range r.Accepts {
			if contains(networks, opt.Network) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

func filterByDescription(in []resource) []resource {
	var out []resource
	for _, r := range in {
		desc := strings.TrimSpace(r.description())
		if desc != "" && desc != placeholderDescription {
			out = append(out, r)
		}
	}
	return out
}

// filterByVersion keeps resources without version information.
func filterByVersion(in []resource, versions []int) []resource {
	var out []resource
	for _, r := range in {
		if r.X402Version == nil {
			out = append(out, r)
			continue
		}
		for _, v := range versions {
			if *r.X402Version == v {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

func filterByKeyword(in []resource, keyword string) []resource {
	keyword = strings.ToLower(keyword)
	var out []resource
	for _, r := range in {
		if strings.Contains(strings.ToLower(r.description()), keyword) ||
			strings.Contains(strings.ToLower(r.location()), keyword) {
			out = append(out, r)
		}
	}
	return out
}

// filterByMaxPrice keeps resources with a USDC option on the wallet
// networks priced at or below maxUSDC.
func filterByMaxPrice(ctx context.Context, w wallet.Wallet, in []resource, maxUSDC float64, networks []string) []resource {
	var out []resource
	for _, r := range in {
		for _, opt := range r.Accepts {
			if !contains(networks, opt.Network) || opt.Asset == "" || !isUSDC(w.Network(), opt.Asset) {
				continue
			}
			price, ok := new(big.Int).SetString(opt.atomicAmount(), 10)
			if !ok {
				continue
			}
			if price.Cmp(toAtomic(ctx, w, maxUSDC, opt.Asset)) <= 0 {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

type service struct {
	URL         string `json:"url"`
	Price       string `json:"price"`
	Description string `json:"description"`
}

func simplify(ctx context.Context, w wallet.Wallet, in []resource, networks []string) []service {
	out := make([]service, 0, len(in))
	for _, r := range in {
		var match *paymentOption
		for i := range r.Accepts {
			if contains(networks, r.Accepts[i].Network) {
				match = &r.Accepts[i]
				break
			}
		}
		if match == nil {
			continue
		}
		price := "Unknown"
		if atomic := match.atomicAmount(); atomic != "" && match.Asset != "" {
			price = formatPrice(ctx, w, match.Asset, atomic, match.Network)
		}
		out = append(out, service{URL: r.location(), Price: price, Description: r.description()})
	}
	return out
}
