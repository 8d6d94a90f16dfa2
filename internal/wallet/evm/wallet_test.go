package evm

import (
	"context"
	"math/big"
	"strings"
	"testing"
	"time"

	"ActionKit-Chain/internal/network"
	"ActionKit-Chain/internal/wallet"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/abi/bind/backends"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

const (
	// answer() returns 42 for any call data
	answerABI = `[{"inputs":[],"name":"answer","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`
	answerBin = "0x600a600c600039600a6000f3602a60005260206000f3"
)

var simChainID = big.NewInt(1337)

func newSimulatedWallet(t *testing.T) (*Wallet, *backends.SimulatedBackend, *bind.TransactOpts) {
	t.Helper()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	auth, err := bind.NewKeyedTransactorWithChainID(key, simChainID)
	if err != nil {
		t.Fatalf("new transactor: %v", err)
	}
	alloc := core.GenesisAlloc{
		auth.From: {Balance: new(big.Int).Mul(big.NewInt(10), big.NewInt(1_000_000_000_000_000_000))},
	}
	backend := backends.NewSimulatedBackend(alloc, 8_000_000)
	t.Cleanup(func() { _ = backend.Close() })

	netw := network.Network{ProtocolFamily: network.FamilyEVM, NetworkID: "simulated", ChainID: simChainID.String()}
	return NewSimulated(key, netw, simChainID, backend), backend, auth
}

func TestWalletTransferAndReceipt(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	w, _, _ := newSimulatedWallet(t)
	before, err := w.Balance(ctx)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}

	recipient := common.HexToAddress("0x000000000000000000000000000000000000dEaD")
	value := big.NewInt(1_000_000_000_000_000)
	hash, err := w.SendTransaction(ctx, wallet.TransactionRequest{To: recipient, Value: value})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	receipt, err := w.WaitForTransactionReceipt(ctx, hash)
	if err != nil {
		t.Fatalf("receipt: %v", err)
	}
	if !receipt.Succeeded() {
		t.Fatalf("expected successful receipt, got status %d", receipt.Status)
	}

	after, err := w.Balance(ctx)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	spent := new(big.Int).Sub(before, after)
	if spent.Cmp(value) <= 0 {
		t.Fatalf("expected balance to drop by more than %s, dropped %s", value, spent)
	}
}

func TestWalletReadContract(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	w, backend, auth := newSimulatedWallet(t)
	parsed, err := abi.JSON(strings.NewReader(answerABI))
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}
	addr, _, _, err := bind.DeployContract(auth, parsed, common.FromHex(answerBin), backend)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	backend.Commit()

	out, err := w.ReadContract(ctx, wallet.ReadRequest{Contract: addr, ABI: parsed, Method: "answer"})
	if err != nil {
		t.Fatalf("read contract: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected one output, got %d", len(out))
	}
	got, ok := out[0].(*big.Int)
	if !ok || got.Int64() != 42 {
		t.Fatalf("unexpected output %v", out[0])
	}

	if _, err := w.ReadContract(ctx, wallet.ReadRequest{Contract: addr, ABI: parsed, Method: "missing"}); err == nil {
		t.Fatal("expected unknown method to fail")
	}
}

func TestWalletSignTypedData(t *testing.T) {
	t.Parallel()

	w, _, _ := newSimulatedWallet(t)
	data := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			"Mail": {
				{Name: "contents", Type: "string"},
			},
		},
		PrimaryType: "Mail",
		Domain: apitypes.TypedDataDomain{
			Name:    "Test",
			ChainId: math.NewHexOrDecimal256(1337),
		},
		Message: apitypes.TypedDataMessage{"contents": "hello"},
	}

	sig, err := w.SignTypedData(context.Background(), data)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if len(sig) != 65 || (sig[64] != 27 && sig[64] != 28) {
		t.Fatalf("unexpected signature shape %x", sig)
	}

	digest, _, err := apitypes.TypedDataAndHash(data)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	recoverable := append([]byte{}, sig...)
	recoverable[64] -= 27
	pub, err := crypto.SigToPub(digest, recoverable)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if crypto.PubkeyToAddress(*pub) != w.Address() {
		t.Fatal("signature does not recover to the wallet address")
	}
}

func TestParsePrivateKey(t *testing.T) {
	t.Parallel()

	if _, err := ParsePrivateKey(""); err == nil {
		t.Fatal("expected empty key to fail")
	}
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	raw := "0x" + common.Bytes2Hex(crypto.FromECDSA(key))
	parsed, err := ParsePrivateKey(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if crypto.PubkeyToAddress(parsed.PublicKey) != crypto.PubkeyToAddress(key.PublicKey) {
		t.Fatal("parsed key mismatch")
	}
}
