package across

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"ActionKit-Chain/internal/amount"
	"ActionKit-Chain/internal/contracts"
	xerrors "ActionKit-Chain/internal/errors"
	"ActionKit-Chain/internal/network"
	"ActionKit-Chain/internal/retry"
	"ActionKit-Chain/internal/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

const nativeSymbol = "ETH"

// Failure prefixes rendered by the dispatcher.
const (
	opQuote  = "with Across SDK"
	opBridge = "bridging token"
)

const defaultFillWindow = 6 * time.Hour

type stage string

const (
	stageValidating       stage = "validating"
	stageQuoting          stage = "quoting"
	stageBalanceChecking  stage = "balance-checking"
	stageSlippageChecking stage = "slippage-checking"
	stageApproving        stage = "approving"
	stageSimulating       stage = "simulating"
	stageSubmitting       stage = "submitting"
	stageConfirming       stage = "confirming"
	stageDone             stage = "done"
)

type bridgeArgs struct {
	DestinationChain string  `json:"destination_chain"`
	Amount           string  `json:"amount"`
	InputTokenSymbol string  `json:"input_token_symbol"`
	MaxSlippage      float64 `json:"max_slippage"`
	Recipient        string  `json:"recipient"`
}

// bridge carries one bridge_token invocation through its stages. A stage
// either fails, sets halt to end with a message, or advances.
type bridge struct {
	p    *Provider
	w    wallet.Wallet
	args bridgeArgs
	log  *slog.Logger

	origin      network.Network
	destination network.Network
	symbol      string
	native      bool
	inputToken  contracts.Token
	outputToken contracts.Token
	recipient   common.Address
	amountIn    *big.Int
	amountOut   *big.Int
	quote       quote
	spokePool   common.Address
	calldata    []byte
	txHash      common.Hash

	halt string
}

type bridgeStage struct {
	name stage
	run  func(b *bridge, ctx context.Context) error
}

var bridgeStages = []bridgeStage{
	{stageValidating, (*bridge).validate},
	{stageQuoting, (*bridge).fetchQuote},
	{stageBalanceChecking, (*bridge).checkBalance},
	{stageSlippageChecking, (*bridge).checkSlippage},
	{stageApproving, (*bridge).approve},
	{stageSimulating, (*bridge).simulate},
	{stageSubmitting, (*bridge).submit},
	{stageConfirming, (*bridge).confirm},
}

// run walks the stages in order and stops at the first failure or halt.
// Submitted transactions are never rolled back.
func (b *bridge) run(ctx context.Context) (string, error) {
	for _, s := range bridgeStages {
		b.log.Debug("bridge stage", slog.String("stage", string(s.name)))
		if err := s.run(b, ctx); err != nil {
			b.log.Warn("bridge stage failed", slog.String("stage", string(s.name)), slog.Any("error", err))
			if s.name == stageQuoting {
				return "", xerrors.External(opQuote, err)
			}
			return "", xerrors.External(opBridge, err)
		}
		if b.halt != "" {
			b.log.Info("bridge halted", slog.String("stage", string(s.name)))
			return b.halt, nil
		}
	}
	b.log.Info("bridge deposit confirmed", slog.String("stage", string(stageDone)), slog.String("tx", b.txHash.Hex()))
	return b.summary(), nil
}

func (b *bridge) validate(context.Context) error {
	b.origin = b.w.Network().Complete()
	if b.origin.ChainIDInt() == nil {
		return fmt.Errorf("wallet network %s has no chain id", b.origin)
	}
	dest, ok := network.Resolve(b.args.DestinationChain)
	if !ok || !dest.IsEVM() {
		return fmt.Errorf("unsupported destination chain %q", b.args.DestinationChain)
	}
	if dest.ChainID == b.origin.ChainID {
		return fmt.Errorf("origin and destination chains must differ")
	}
	if dest.IsTestnet() != b.origin.IsTestnet() {
		return fmt.Errorf("cannot bridge between %s and %s: mainnet and testnet cannot be mixed", b.origin, dest)
	}
	b.destination = dest

	b.symbol = strings.ToUpper(strings.TrimSpace(b.args.InputTokenSymbol))
	if b.symbol == "" {
		b.symbol = nativeSymbol
	}
	b.native = b.symbol == nativeSymbol
	lookup := b.symbol
	if b.native {
		// native deposits are quoted and filled as WETH
		lookup = "WETH"
	}
	in, ok := contracts.TokenBySymbol(b.origin.NetworkID, lookup)
	if !ok {
		return fmt.Errorf("token %s is not supported on %s", b.symbol, b.origin)
	}
	out, ok := contracts.TokenBySymbol(dest.NetworkID, lookup)
	if !ok {
		return fmt.Errorf("token %s is not supported on %s", b.symbol, dest)
	}
	b.inputToken, b.outputToken = in, out

	value, err := amount.ParseUnits(b.args.Amount, in.Decimals)
	if err != nil {
		return err
	}
	if value.Sign() == 0 {
		return fmt.Errorf("amount must be greater than zero")
	}
	b.amountIn = value

	b.recipient = b.w.Address()
	if b.args.Recipient != "" {
		b.recipient = common.HexToAddress(b.args.Recipient)
	}
	return nil
}

func (b *bridge) fetchQuote(ctx context.Context) error {
	client, err := b.p.clientFor(b.origin).Get(ctx)
	if err != nil {
		return err
	}
	req := quoteRequest{
		InputToken:         b.inputToken.Address.Hex(),
		OutputToken:        b.outputToken.Address.Hex(),
		OriginChainID:      b.origin.ChainID,
		DestinationChainID: b.destination.ChainID,
		Amount:             b.amountIn,
		Recipient:          b.recipient.Hex(),
	}
	q, err := retry.Value(ctx, b.p.cfg.Retry, func(ctx context.Context) (quote, error) {
		return client.suggestedFees(ctx, req)
	})
	if err != nil {
		return err
	}
	if q.IsAmountTooLow {
		return fmt.Errorf("amount %s %s is too low to cover relay fees", b.args.Amount, b.symbol)
	}
	b.quote = q
	b.amountOut = q.output(b.amountIn)
	if b.amountOut.Sign() <= 0 {
		return fmt.Errorf("quoted output amount %s is not positive", b.amountOut)
	}

	switch {
	case common.IsHexAddress(q.SpokePoolAddress):
		b.spokePool = common.HexToAddress(q.SpokePoolAddress)
	default:
		pool, ok := spokePools[b.origin.ChainID]
		if !ok {
			return fmt.Errorf("no spoke pool known for chain %s", b.origin.ChainID)
		}
		b.spokePool = pool
	}
	return nil
}

func (b *bridge) checkBalance(ctx context.Context) error {
	var (
		balance *big.Int
		err     error
	)
	if b.native {
		balance, err = b.w.Balance(ctx)
	} else {
		balance, err = contracts.BalanceOf(ctx, b.w, b.inputToken.Address, b.w.Address())
	}
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}
	if balance.Cmp(b.amountIn) < 0 {
		b.halt = fmt.Sprintf("Insufficient balance. Requested to bridge %s %s but only %s %s is available.",
			b.args.Amount, b.symbol, amount.FormatUnits(balance, b.inputToken.Decimals), b.symbol)
	}
	return nil
}

func (b *bridge) checkSlippage(context.Context) error {
	slippage := amount.PercentDifference(b.amountIn, b.amountOut)
	limit := decimal.NewFromFloat(b.args.MaxSlippage)
	if slippage.GreaterThan(limit) {
		b.halt = fmt.Sprintf("Output amount has high slippage of %s, which exceeds the maximum allowed slippage of %s%%. Try a smaller amount or raise max_slippage.",
			amount.Percent(slippage), limit.String())
	}
	return nil
}

func (b *bridge) approve(ctx context.Context) error {
	if b.native {
		return nil
	}
	if _, err := contracts.EnsureAllowance(ctx, b.w, b.inputToken.Address, b.spokePool, b.amountIn); err != nil {
		return fmt.Errorf("approve %s: %w", b.symbol, err)
	}
	return nil
}

func (b *bridge) deposit() (wallet.ReadRequest, error) {
	timestamp := b.quote.Timestamp.Uint32()
	if timestamp == 0 {
		timestamp = uint32(b.p.now().Unix())
	}
	fillDeadline := b.quote.FillDeadline.Uint32()
	if fillDeadline == 0 {
		fillDeadline = timestamp + uint32(defaultFillWindow/time.Second)
	}
	relayer := common.Address{}
	if common.IsHexAddress(b.quote.ExclusiveRelayer) {
		relayer = common.HexToAddress(b.quote.ExclusiveRelayer)
	}
	var value *big.Int
	if b.native {
		value = b.amountIn
	}
	args := []any{
		b.w.Address(),
		b.recipient,
		b.inputToken.Address,
		b.outputToken.Address,
		b.amountIn,
		b.amountOut,
		b.destination.ChainIDInt(),
		relayer,
		timestamp,
		fillDeadline,
		b.quote.ExclusivityDeadline.Uint32(),
		[]byte{},
	}
	data, err := contracts.SpokePool.Pack("depositV3", args...)
	if err != nil {
		return wallet.ReadRequest{}, fmt.Errorf("pack deposit: %w", err)
	}
	b.calldata = data
	return wallet.ReadRequest{Contract: b.spokePool, ABI: contracts.SpokePool, Method: "depositV3", Args: args, Value: value}, nil
}

func (b *bridge) simulate(ctx context.Context) error {
	req, err := b.deposit()
	if err != nil {
		return err
	}
	if _, err := b.w.ReadContract(ctx, req); err != nil {
		return fmt.Errorf("deposit simulation failed: %w", err)
	}
	return nil
}

func (b *bridge) submit(ctx context.Context) error {
	req := wallet.TransactionRequest{To: b.spokePool, Data: b.calldata}
	if b.native {
		req.Value = b.amountIn
	}
	hash, err := b.w.SendTransaction(ctx, req)
	if err != nil {
		return fmt.Errorf("submit deposit: %w", err)
	}
	b.txHash = hash
	return nil
}

func (b *bridge) confirm(ctx context.Context) error {
	receipt, err := b.w.WaitForTransactionReceipt(ctx, b.txHash)
	if err != nil {
		return fmt.Errorf("wait for deposit %s: %w", b.txHash.Hex(), err)
	}
	if !receipt.Succeeded() {
		return fmt.Errorf("deposit transaction %s reverted", b.txHash.Hex())
	}
	return nil
}

func (b *bridge) summary() string {
	return fmt.Sprintf(`Successfully deposited tokens:
- From: Chain %s (%s)
- To: Chain %s (%s)
- Token: %s
- Input Amount: %s %s
- Output Amount: %s %s
- Slippage: %s
- Transaction hash: %s`,
		b.origin.ChainID, b.origin.NetworkID,
		b.destination.ChainID, b.destination.NetworkID,
		b.symbol,
		amount.FormatUnits(b.amountIn, b.inputToken.Decimals), b.symbol,
		amount.FormatUnits(b.amountOut, b.outputToken.Decimals), b.symbol,
		amount.Percent(amount.PercentDifference(b.amountIn, b.amountOut)),
		b.txHash.Hex())
}
