package across

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"net/url"
	"strconv"
	"strings"

	"ActionKit-Chain/internal/httpclient"
)

const (
	mainnetAPI = "https://app.across.to/api"
	testnetAPI = "https://testnet.across.to/api"
)

// flexInt decodes integers sent either as JSON numbers or strings.
type flexInt struct {
	v *big.Int
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	raw := string(bytes.Trim(data, `"`))
	if raw == "" || raw == "null" {
		f.v = nil
		return nil
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return fmt.Errorf("invalid integer %q", raw)
	}
	f.v = v
	return nil
}

func (f flexInt) Int() *big.Int {
	if f.v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(f.v)
}

func (f flexInt) Uint32() uint32 {
	if f.v == nil || !f.v.IsUint64() {
		return 0
	}
	return uint32(f.v.Uint64())
}

type quote struct {
	TotalRelayFee struct {
		Total flexInt `json:"total"`
	} `json:"totalRelayFee"`
	OutputAmount        *flexInt `json:"outputAmount"`
	Timestamp           flexInt  `json:"timestamp"`
	FillDeadline        flexInt  `json:"fillDeadline"`
	ExclusiveRelayer    string   `json:"exclusiveRelayer"`
	ExclusivityDeadline flexInt  `json:"exclusivityDeadline"`
	SpokePoolAddress    string   `json:"spokePoolAddress"`
	IsAmountTooLow      bool     `json:"isAmountTooLow"`
}

// output is the quoted output amount, or the input minus the total fee
// when the API leaves it out.
func (q quote) output(input *big.Int) *big.Int {
	if q.OutputAmount != nil && q.OutputAmount.v != nil {
		return q.OutputAmount.Int()
	}
	return new(big.Int).Sub(input, q.TotalRelayFee.Total.Int())
}

type quoteRequest struct {
	InputToken         string
	OutputToken        string
	OriginChainID      string
	DestinationChainID string
	Amount             *big.Int
	Recipient          string
}

type apiClient struct {
	http    *httpclient.Client
	baseURL string
}

func newAPIClient(baseURL string, hc *httpclient.Client) *apiClient {
	return &apiClient{http: hc, baseURL: strings.TrimRight(baseURL, "/")}
}

func (c *apiClient) suggestedFees(ctx context.Context, req quoteRequest) (quote, error) {
	q := url.Values{}
	q.Set("inputToken", req.InputToken)
	q.Set("outputToken", req.OutputToken)
	q.Set("originChainId", req.OriginChainID)
	q.Set("destinationChainId", req.DestinationChainID)
	q.Set("amount", req.Amount.String())
	if req.Recipient != "" {
		q.Set("recipient", req.Recipient)
	}
	var out quote
	err := c.http.GetJSON(ctx, c.baseURL+"/suggested-fees?"+q.Encode(), &out)
	return out, err
}

func (c *apiClient) depositStatus(ctx context.Context, originChainID int64, txHash string) (map[string]any, error) {
	q := url.Values{}
	q.Set("originChainId", strconv.FormatInt(originChainID, 10))
	q.Set("depositTxHash", txHash)
	var out map[string]any
	if err := c.http.GetJSON(ctx, c.baseURL+"/deposit/status?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return out, nil
}
