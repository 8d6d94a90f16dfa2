package opensea

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Seaport 1.6 deployment shared by every supported chain.
const (
	seaportName    = "Seaport"
	seaportVersion = "1.6"
)

var (
	seaportAddress = common.HexToAddress("0x0000000000000068F116a894984e2DB1123eB395")
	conduitAddress = common.HexToAddress("0x1E0049783F008A0085193E00003D00cd54003c71")
	feeRecipient   = common.HexToAddress("0x0000a26b00c1F0DF003000390027140000fAa719")
	conduitKey     = "0x0000007b02230091a7ed01230072f7006a004d60a8d4e71d599b8104250f0000"
	zeroHash       = "0x0000000000000000000000000000000000000000000000000000000000000000"
)

// Fee in basis points kept by OpenSea.
const feeBps = 250

// Seaport item types.
const (
	itemNative = 0
	itemERC721 = 2
)

var orderTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"OrderComponents": {
		{Name: "offerer", Type: "address"},
		{Name: "zone", Type: "address"},
		{Name: "offer", Type: "OfferItem[]"},
		{Name: "consideration", Type: "ConsiderationItem[]"},
		{Name: "orderType", Type: "uint8"},
		{Name: "startTime", Type: "uint256"},
		{Name: "endTime", Type: "uint256"},
		{Name: "zoneHash", Type: "bytes32"},
		{Name: "salt", Type: "uint256"},
		{Name: "conduitKey", Type: "bytes32"},
		{Name: "counter", Type: "uint256"},
	},
	"OfferItem": {
		{Name: "itemType", Type: "uint8"},
		{Name: "token", Type: "address"},
		{Name: "identifierOrCriteria", Type: "uint256"},
		{Name: "startAmount", Type: "uint256"},
		{Name: "endAmount", Type: "uint256"},
	},
	"ConsiderationItem": {
		{Name: "itemType", Type: "uint8"},
		{Name: "token", Type: "address"},
		{Name: "identifierOrCriteria", Type: "uint256"},
		{Name: "startAmount", Type: "uint256"},
		{Name: "endAmount", Type: "uint256"},
		{Name: "recipient", Type: "address"},
	},
}

type offerItem struct {
	ItemType             int    `json:"itemType"`
	Token                string `json:"token"`
	IdentifierOrCriteria string `json:"identifierOrCriteria"`
	StartAmount          string `json:"startAmount"`
	EndAmount            string `json:"endAmount"`
}

type considerationItem struct {
	offerItem
	Recipient string `json:"recipient"`
}

// orderParameters is the listing body OpenSea expects.
type orderParameters struct {
	Offerer                         string              `json:"offerer"`
	Zone                            string              `json:"zone"`
	Offer                           []offerItem         `json:"offer"`
	Consideration                   []considerationItem `json:"consideration"`
	OrderType                       int                 `json:"orderType"`
	StartTime                       string              `json:"startTime"`
	EndTime                         string              `json:"endTime"`
	ZoneHash                        string              `json:"zoneHash"`
	Salt                            string              `json:"salt"`
	ConduitKey                      string              `json:"conduitKey"`
	Counter                         string              `json:"counter"`
	TotalOriginalConsiderationItems int                 `json:"totalOriginalConsiderationItems"`
}

type listingOrder struct {
	offerer  common.Address
	token    common.Address
	tokenID  *big.Int
	price    *big.Int
	start    int64
	end      int64
	salt     *big.Int
	counter  *big.Int
	chainID  *big.Int
	sellerAt *big.Int
	feeAt    *big.Int
}

func newListingOrder(offerer, token common.Address, tokenID, price *big.Int, start, end int64, salt, counter, chainID *big.Int) listingOrder {
	fee := new(big.Int).Mul(price, big.NewInt(feeBps))
	fee.Quo(fee, big.NewInt(10_000))
	return listingOrder{
		offerer:  offerer,
		token:    token,
		tokenID:  tokenID,
		price:    price,
		start:    start,
		end:      end,
		salt:     salt,
		counter:  counter,
		chainID:  chainID,
		sellerAt: new(big.Int).Sub(price, fee),
		feeAt:    fee,
	}
}

func (o listingOrder) parameters() orderParameters {
	native := func(amount *big.Int, to common.Address) considerationItem {
		return considerationItem{
			offerItem: offerItem{
				ItemType:             itemNative,
				Token:                common.Address{}.Hex(),
				IdentifierOrCriteria: "0",
				StartAmount:          amount.String(),
				EndAmount:            amount.String(),
			},
			Recipient: to.Hex(),
		}
	}
	return orderParameters{
		Offerer: o.offerer.Hex(),
		Zone:    common.Address{}.Hex(),
		Offer: []offerItem{{
			ItemType:             itemERC721,
			Token:                o.token.Hex(),
			IdentifierOrCriteria: o.tokenID.String(),
			StartAmount:          "1",
			EndAmount:            "1",
		}},
		Consideration: []considerationItem{
			native(o.sellerAt, o.offerer),
			native(o.feeAt, feeRecipient),
		},
		OrderType:                       0,
		StartTime:                       fmt.Sprint(o.start),
		EndTime:                         fmt.Sprint(o.end),
		ZoneHash:                        zeroHash,
		Salt:                            o.salt.String(),
		ConduitKey:                      conduitKey,
		Counter:                         o.counter.String(),
		TotalOriginalConsiderationItems: 2,
	}
}

// typedData renders the order as EIP-712 data for signing.
func (o listingOrder) typedData() apitypes.TypedData {
	p := o.parameters()
	offer := make([]interface{}, len(p.Offer))
	for i, item := range p.Offer {
		offer[i] = map[string]interface{}{
			"itemType":             fmt.Sprint(item.ItemType),
			"token":                item.Token,
			"identifierOrCriteria": item.IdentifierOrCriteria,
			"startAmount":          item.StartAmount,
			"endAmount":            item.EndAmount,
		}
	}
	consideration := make([]interface{}, len(p.Consideration))
	for i, item := range p.Consideration {
		consideration[i] = map[string]interface{}{
			"itemType":             fmt.Sprint(item.ItemType),
			"token":                item.Token,
			"identifierOrCriteria": item.IdentifierOrCriteria,
			"startAmount":          item.StartAmount,
			"endAmount":            item.EndAmount,
			"recipient":            item.Recipient,
		}
	}
	return apitypes.TypedData{
		Types:       orderTypes,
		PrimaryType: "OrderComponents",
		Domain: apitypes.TypedDataDomain{
			Name:              seaportName,
			Version:           seaportVersion,
			ChainId:           (*math.HexOrDecimal256)(o.chainID),
			VerifyingContract: seaportAddress.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"offerer":       p.Offerer,
			"zone":          p.Zone,
			"offer":         offer,
			"consideration": consideration,
			"orderType":     fmt.Sprint(p.OrderType),
			"startTime":     p.StartTime,
			"endTime":       p.EndTime,
			"zoneHash":      p.ZoneHash,
			"salt":          p.Salt,
			"conduitKey":    p.ConduitKey,
			"counter":       p.Counter,
		},
	}
}

// orderHash is the Seaport order hash: the EIP-712 struct hash of the
// order components.
func orderHash(data apitypes.TypedData) (string, error) {
	hash, err := data.HashStruct(data.PrimaryType, data.Message)
	if err != nil {
		return "", fmt.Errorf("hash order: %w", err)
	}
	return hexutil.Encode(hash), nil
}
