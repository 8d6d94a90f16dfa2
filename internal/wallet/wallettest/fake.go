// Package wallettest provides a scriptable in-memory wallet for tests.
package wallettest

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"ActionKit-Chain/internal/network"
	"ActionKit-Chain/internal/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// ReadFunc answers a contract read.
type ReadFunc func(req wallet.ReadRequest) ([]any, error)

// Fake records every transaction and answers reads through Reads.
type Fake struct {
	Addr          common.Address
	Net           network.Network
	NativeBalance *big.Int

	// Reads is keyed by method name; Fallback answers the rest.
	Reads    map[string]ReadFunc
	Fallback ReadFunc

	SendErr       error
	ReceiptErr    error
	ReceiptStatus uint64
	SignErr       error

	mu     sync.Mutex
	sent   []wallet.TransactionRequest
	reads  []wallet.ReadRequest
	signed []apitypes.TypedData
}

// New returns a fake on network with a deterministic address.
func New(netw network.Network) *Fake {
	return &Fake{
		Addr:          common.HexToAddress("0x1234567890AbcdEF1234567890aBcdef12345678"),
		Net:           netw,
		NativeBalance: big.NewInt(0),
		Reads:         map[string]ReadFunc{},
		ReceiptStatus: types.ReceiptStatusSuccessful,
	}
}

// OnRead registers an answer for method.
func (f *Fake) OnRead(method string, fn ReadFunc) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reads[method] = fn
	return f
}

// Returns is a ReadFunc that always yields values.
func Returns(values ...any) ReadFunc {
	return func(wallet.ReadRequest) ([]any, error) { return values, nil }
}

func (f *Fake) Address() common.Address  { return f.Addr }
func (f *Fake) Network() network.Network { return f.Net }

func (f *Fake) Balance(context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.NativeBalance), nil
}

func (f *Fake) ReadContract(_ context.Context, req wallet.ReadRequest) ([]any, error) {
	f.mu.Lock()
	f.reads = append(f.reads, req)
	fn, ok := f.Reads[req.Method]
	fallback := f.Fallback
	f.mu.Unlock()
	if ok {
		return fn(req)
	}
	if fallback != nil {
		return fallback(req)
	}
	return nil, errors.New("wallettest: no answer for " + req.Method)
}

func (f *Fake) SendTransaction(_ context.Context, req wallet.TransactionRequest) (common.Hash, error) {
	if f.SendErr != nil {
		return common.Hash{}, f.SendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, req)
	return crypto.Keccak256Hash(big.NewInt(int64(len(f.sent))).Bytes()), nil
}

func (f *Fake) WaitForTransactionReceipt(_ context.Context, hash common.Hash) (*wallet.Receipt, error) {
	if f.ReceiptErr != nil {
		return nil, f.ReceiptErr
	}
	return &wallet.Receipt{TxHash: hash, Status: f.ReceiptStatus, BlockNumber: big.NewInt(1)}, nil
}

func (f *Fake) SignTypedData(_ context.Context, data apitypes.TypedData) ([]byte, error) {
	if f.SignErr != nil {
		return nil, f.SignErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signed = append(f.signed, data)
	sig := make([]byte, 65)
	sig[64] = 27
	return sig, nil
}

// Sent returns the broadcast transactions.
func (f *Fake) Sent() []wallet.TransactionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]wallet.TransactionRequest(nil), f.sent...)
}

// ReadCalls returns the recorded contract reads.
func (f *Fake) ReadCalls() []wallet.ReadRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]wallet.ReadRequest(nil), f.reads...)
}

// Signed returns the typed data passed to SignTypedData.
func (f *Fake) Signed() []apitypes.TypedData {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]apitypes.TypedData(nil), f.signed...)
}

var _ wallet.Wallet = (*Fake)(nil)
