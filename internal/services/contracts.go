package services

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"alive-keeper/internal/models"
)

const activationABI = `[
	{"type":"function","name":"isActivated","stateMutability":"view",
	 "inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"activate","stateMutability":"payable",
	 "inputs":[{"name":"referrer","type":"address"}],"outputs":[]}
]`

const claimABI = `[
	{"type":"function","name":"nonces","stateMutability":"view",
	 "inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"claim","stateMutability":"nonpayable",
	 "inputs":[
		{"name":"request","type":"tuple","components":[
			{"name":"user","type":"address"},
			{"name":"amount","type":"uint256"},
			{"name":"nonce","type":"uint256"},
			{"name":"deadline","type":"uint256"}]},
		{"name":"signature","type":"bytes"}],
	 "outputs":[]}
]`

const erc20ABI = `[
	{"type":"function","name":"balanceOf","stateMutability":"view",
	 "inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"transfer","stateMutability":"nonpayable",
	 "inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

// ChainReader is the read-only contract surface.
type ChainReader interface {
	IsActivated(ctx context.Context, account common.Address) (bool, error)
	ClaimNonce(ctx context.Context, account common.Address) (uint64, error)
	TokenBalance(ctx context.Context, account common.Address) (*big.Int, error)
}

// ChainClient adds the writes. Each write waits for the receipt and fails
// unless the transaction succeeded.
type ChainClient interface {
	ChainReader
	Activate(ctx context.Context, referrer common.Address, fee *big.Int) (*models.TxReceipt, error)
	Claim(ctx context.Context, auth models.ClaimAuthorization) (*models.TxReceipt, error)
	TransferToken(ctx context.Context, to common.Address, amount *big.Int) (*models.TxReceipt, error)
}

type ContractAddresses struct {
	Token      common.Address
	Claim      common.Address
	Activation common.Address
}

// claimRequest mirrors the claim contract's request tuple.
type claimRequest struct {
	User     common.Address
	Amount   *big.Int
	Nonce    *big.Int
	Deadline *big.Int
}

type ContractService struct {
	client     *ethclient.Client
	wallet     *KeyWallet
	activation *bind.BoundContract
	claim      *bind.BoundContract
	token      *bind.BoundContract
}

func NewContractService(client *ethclient.Client, wallet *KeyWallet, addrs ContractAddresses) (*ContractService, error) {
	bound := func(address common.Address, def string) (*bind.BoundContract, error) {
		parsed, err := abi.JSON(strings.NewReader(def))
		if err != nil {
			return nil, fmt.Errorf("failed to parse contract abi: %v", err)
		}
		return bind.NewBoundContract(address, parsed, client, client, client), nil
	}

	s := &ContractService{client: client, wallet: wallet}

	var err error
	if s.activation, err = bound(addrs.Activation, activationABI); err != nil {
		return nil, err
	}
	if s.claim, err = bound(addrs.Claim, claimABI); err != nil {
		return nil, err
	}
	if s.token, err = bound(addrs.Token, erc20ABI); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *ContractService) IsActivated(ctx context.Context, account common.Address) (bool, error) {
	var out []interface{}
	if err := s.activation.Call(&bind.CallOpts{Context: ctx}, &out, "isActivated", account); err != nil {
		return false, wrapOp("is_activated", err)
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

func (s *ContractService) ClaimNonce(ctx context.Context, account common.Address) (uint64, error) {
	var out []interface{}
	if err := s.claim.Call(&bind.CallOpts{Context: ctx}, &out, "nonces", account); err != nil {
		return 0, wrapOp("claim_nonce", err)
	}
	return nonceValue(*abi.ConvertType(out[0], new(*big.Int)).(**big.Int))
}

// nonceValue narrows the contract's uint256 nonce.
func nonceValue(n *big.Int) (uint64, error) {
	if n == nil || !n.IsUint64() {
		return 0, fmt.Errorf("claim nonce %v does not fit in uint64", n)
	}
	return n.Uint64(), nil
}

func (s *ContractService) TokenBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	var out []interface{}
	if err := s.token.Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", account); err != nil {
		return nil, wrapOp("token_balance", err)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (s *ContractService) Activate(ctx context.Context, referrer common.Address, fee *big.Int) (*models.TxReceipt, error) {
	return s.transact(ctx, "activate", s.activation, fee, "activate", referrer)
}

func (s *ContractService) Claim(ctx context.Context, auth models.ClaimAuthorization) (*models.TxReceipt, error) {
	amount, err := models.ParseWei(auth.Amount)
	if err != nil {
		return nil, newActionError(KindServerRejected, "claim", "invalid claim amount from server", err)
	}
	signature, err := hexutil.Decode(auth.Signature)
	if err != nil {
		return nil, newActionError(KindServerRejected, "claim", "invalid claim signature from server", err)
	}

	req := claimRequest{
		User:     common.HexToAddress(auth.User),
		Amount:   amount,
		Nonce:    new(big.Int).SetUint64(auth.Nonce),
		Deadline: big.NewInt(auth.Deadline),
	}
	return s.transact(ctx, "claim", s.claim, nil, "claim", req, signature)
}

func (s *ContractService) TransferToken(ctx context.Context, to common.Address, amount *big.Int) (*models.TxReceipt, error) {
	return s.transact(ctx, "transfer", s.token, nil, "transfer", to, amount)
}

func (s *ContractService) transact(ctx context.Context, op string, contract *bind.BoundContract, value *big.Int, method string, params ...interface{}) (*models.TxReceipt, error) {
	opts, err := s.wallet.Transactor(ctx)
	if err != nil {
		return nil, wrapOp(op, err)
	}
	opts.Value = value

	tx, err := contract.Transact(opts, method, params...)
	if err != nil {
		return nil, wrapOp(op, err)
	}

	receipt, err := bind.WaitMined(ctx, s.client, tx)
	if err != nil {
		return nil, wrapOp(op, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, newActionError(KindServerRejected, op, "transaction reverted", fmt.Errorf("tx %s reverted", tx.Hash().Hex()))
	}

	return &models.TxReceipt{
		TxHash:      tx.Hash().Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
	}, nil
}
