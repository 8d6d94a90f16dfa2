// Package evm implements the wallet capability for EVM chains on top of a
// go-ethereum backend.
package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"ActionKit-Chain/internal/network"
	"ActionKit-Chain/internal/wallet"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/abi/bind/backends"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

const defaultPollInterval = 2 * time.Second

// Backend is the subset of an Ethereum client the wallet needs. Both
// *ethclient.Client and the simulated backend satisfy it.
type Backend interface {
	bind.ContractBackend
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, block *big.Int) (*big.Int, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*coretypes.Receipt, error)
}

// Config describes how to build a wallet against a JSON-RPC endpoint.
type Config struct {
	PrivateKey   string
	RPCURL       string
	Network      network.Network
	PollInterval time.Duration
}

// Wallet signs with a local key and talks to the chain through Backend.
type Wallet struct {
	key          *ecdsa.PrivateKey
	address      common.Address
	network      network.Network
	chainID      *big.Int
	backend      Backend
	rpcClient    *gethrpc.Client
	pollInterval time.Duration
	afterSend    func()

	// serialises nonce selection
	mu sync.Mutex
}

// Option customises a Wallet.
type Option func(*Wallet)

// WithPollInterval sets how often receipts are polled.
func WithPollInterval(d time.Duration) Option {
	return func(w *Wallet) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithAfterSend runs hook after every broadcast transaction.
func WithAfterSend(hook func()) Option {
	return func(w *Wallet) {
		w.afterSend = hook
	}
}

// ParsePrivateKey accepts a hex key with or without 0x.
func ParsePrivateKey(raw string) (*ecdsa.PrivateKey, error) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	if raw == "" {
		return nil, errors.New("private key is empty")
	}
	key, err := crypto.HexToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

// New dials cfg.RPCURL and returns a wallet for cfg.PrivateKey. The chain id
// reported by the node must match cfg.Network when the latter names one.
func New(ctx context.Context, cfg Config, opts ...Option) (*Wallet, error) {
	key, err := ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, errors.New("rpc url is not configured")
	}
	rpcClient, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial ethereum node: %w", err)
	}
	eth := ethclient.NewClient(rpcClient)

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		rpcClient.Close()
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}
	netw := cfg.Network.Complete()
	if want := netw.ChainIDInt(); want != nil && want.Cmp(chainID) != 0 {
		rpcClient.Close()
		return nil, fmt.Errorf("node chain id %s does not match network %s (%s)", chainID, netw, netw.ChainID)
	}
	if netw.ChainID == "" {
		netw.ChainID = chainID.String()
		netw = netw.Complete()
	}
	if netw.ProtocolFamily == "" {
		netw.ProtocolFamily = network.FamilyEVM
	}
	if cfg.PollInterval > 0 {
		opts = append([]Option{WithPollInterval(cfg.PollInterval)}, opts...)
	}

	w := NewWithBackend(key, netw, chainID, eth, opts...)
	w.rpcClient = rpcClient
	return w, nil
}

// NewWithBackend wraps an existing backend.
func NewWithBackend(key *ecdsa.PrivateKey, netw network.Network, chainID *big.Int, backend Backend, opts ...Option) *Wallet {
	w := &Wallet{
		key:          key,
		address:      crypto.PubkeyToAddress(key.PublicKey),
		network:      netw,
		chainID:      new(big.Int).Set(chainID),
		backend:      backend,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// NewSimulated wraps a simulated backend and mines a block after every send.
func NewSimulated(key *ecdsa.PrivateKey, netw network.Network, chainID *big.Int, backend *backends.SimulatedBackend) *Wallet {
	return NewWithBackend(key, netw, chainID, backend,
		WithPollInterval(10*time.Millisecond),
		WithAfterSend(func() { backend.Commit() }),
	)
}

// Close releases the RPC connection, if the wallet dialed one.
func (w *Wallet) Close() {
	if w.rpcClient != nil {
		w.rpcClient.Close()
		w.rpcClient = nil
	}
}

// Address returns the signer address.
func (w *Wallet) Address() common.Address {
	return w.address
}

// Network returns the network descriptor.
func (w *Wallet) Network() network.Network {
	return w.network
}

// Balance returns the native balance in wei.
func (w *Wallet) Balance(ctx context.Context) (*big.Int, error) {
	balance, err := w.backend.BalanceAt(ctx, w.address, nil)
	if err != nil {
		return nil, fmt.Errorf("query balance: %w", err)
	}
	return balance, nil
}

// ReadContract packs the call, executes it at the latest block and unpacks
// the outputs.
func (w *Wallet) ReadContract(ctx context.Context, req wallet.ReadRequest) ([]any, error) {
	data, err := req.ABI.Pack(req.Method, req.Args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", req.Method, err)
	}
	to := req.Contract
	out, err := w.backend.CallContract(ctx, gethcore.CallMsg{
		From:  w.address,
		To:    &to,
		Data:  data,
		Value: req.Value,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", req.Method, err)
	}
	values, err := req.ABI.Unpack(req.Method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", req.Method, err)
	}
	return values, nil
}

// SendTransaction signs an EIP-1559 transaction and broadcasts it.
func (w *Wallet) SendTransaction(ctx context.Context, req wallet.TransactionRequest) (common.Hash, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	nonce, err := w.backend.PendingNonceAt(ctx, w.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pending nonce: %w", err)
	}
	tipCap, err := w.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("suggest gas tip: %w", err)
	}
	head, err := w.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("latest header: %w", err)
	}
	feeCap := new(big.Int).Set(tipCap)
	if head.BaseFee != nil {
		feeCap = new(big.Int).Add(tipCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	to := req.To
	gas := req.GasLimit
	if gas == 0 {
		gas, err = w.backend.EstimateGas(ctx, gethcore.CallMsg{
			From:  w.address,
			To:    &to,
			Value: value,
			Data:  req.Data,
		})
		if err != nil {
			return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
		}
	}

	tx := coretypes.NewTx(&coretypes.DynamicFeeTx{
		ChainID:   w.chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      req.Data,
	})
	signed, err := coretypes.SignTx(tx, coretypes.LatestSignerForChainID(w.chainID), w.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign transaction: %w", err)
	}
	if err := w.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send transaction: %w", err)
	}
	if w.afterSend != nil {
		w.afterSend()
	}
	return signed.Hash(), nil
}

// WaitForTransactionReceipt polls until the transaction is mined or ctx ends.
func (w *Wallet) WaitForTransactionReceipt(ctx context.Context, hash common.Hash) (*wallet.Receipt, error) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := w.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return wallet.FromGeth(receipt), nil
		}
		if err != nil && !errors.Is(err, gethcore.NotFound) {
			return nil, fmt.Errorf("fetch receipt %s: %w", hash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// SignTypedData signs the EIP-712 digest of data. The recovery id is
// shifted to 27/28.
func (w *Wallet) SignTypedData(_ context.Context, data apitypes.TypedData) ([]byte, error) {
	digest, _, err := apitypes.TypedDataAndHash(data)
	if err != nil {
		return nil, fmt.Errorf("hash typed data: %w", err)
	}
	sig, err := crypto.Sign(digest, w.key)
	if err != nil {
		return nil, fmt.Errorf("sign typed data: %w", err)
	}
	sig[64] += 27
	return sig, nil
}

var _ wallet.Wallet = (*Wallet)(nil)
