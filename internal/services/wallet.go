package services

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Wallet signs on behalf of the player. SignMessage may block on a user
// prompt; a cancelled context is reported as a user rejection.
type Wallet interface {
	Address() common.Address
	ChainID(ctx context.Context) (*big.Int, error)
	SignMessage(ctx context.Context, message string) (string, error)
	SwitchChain(ctx context.Context, chainID *big.Int) error
}

// ChainIDReader reports the chain an RPC endpoint serves.
type ChainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// KeyWallet signs with a local private key. Its chain is whatever chain
// the RPC endpoint serves, so it cannot switch chains itself.
type KeyWallet struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chain   ChainIDReader
}

func NewKeyWallet(hexKey string, chain ChainIDReader) (*KeyWallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid wallet private key: %v", err)
	}

	return &KeyWallet{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chain:   chain,
	}, nil
}

func (w *KeyWallet) Address() common.Address {
	return w.address
}

func (w *KeyWallet) ChainID(ctx context.Context) (*big.Int, error) {
	if w.chain == nil {
		return nil, fmt.Errorf("wallet has no chain connection")
	}
	return w.chain.ChainID(ctx)
}

// SignMessage produces an EIP-191 personal_sign signature, hex encoded with
// a 27/28 recovery byte.
func (w *KeyWallet) SignMessage(ctx context.Context, message string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", newActionError(KindUserRejected, "sign_message", "signature request was closed", err)
	}

	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), w.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign message: %v", err)
	}
	sig[crypto.RecoveryIDOffset] += 27

	return hexutil.Encode(sig), nil
}

func (w *KeyWallet) SwitchChain(_ context.Context, chainID *big.Int) error {
	return fmt.Errorf("key wallet cannot switch chains: point RPC_URL at chain %s", chainID)
}

// Transactor returns signing options for a contract write.
func (w *KeyWallet) Transactor(ctx context.Context) (*bind.TransactOpts, error) {
	chainID, err := w.ChainID(ctx)
	if err != nil {
		return nil, err
	}

	opts, err := bind.NewKeyedTransactorWithChainID(w.key, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %v", err)
	}
	opts.Context = ctx
	return opts, nil
}

// RecoverSigner returns the address that produced a personal_sign signature.
func RecoverSigner(message, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid signature encoding: %v", err)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length: %d", len(sig))
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover signer: %v", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
