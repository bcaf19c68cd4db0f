package chain

import (
	"context"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/abi"
	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/mnemonic"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"
)

// Escrow calls the match escrow contract as the admin account.
type Escrow struct {
	client     *algod.Client
	admin      crypto.Account
	setWinner  abi.Method
	sendFunds  abi.Method
	fee        uint64
	waitRounds uint64
}

type EscrowConfig struct {
	AlgodURL   string
	AlgodToken string
	Mnemonic   string
	FlatFee    uint64
	WaitRounds uint64
}

func NewEscrow(cfg EscrowConfig) (*Escrow, error) {
	client, err := algod.MakeClient(cfg.AlgodURL, cfg.AlgodToken)
	if err != nil {
		return nil, fmt.Errorf("algod client: %w", err)
	}
	sk, err := mnemonic.ToPrivateKey(cfg.Mnemonic)
	if err != nil {
		return nil, fmt.Errorf("admin mnemonic: %w", err)
	}
	admin, err := crypto.AccountFromPrivateKey(sk)
	if err != nil {
		return nil, fmt.Errorf("admin account: %w", err)
	}
	setWinner, err := abi.MethodFromSignature(MethodSetWinner)
	if err != nil {
		return nil, err
	}
	sendFunds, err := abi.MethodFromSignature(MethodSendFunds)
	if err != nil {
		return nil, err
	}

	fee := cfg.FlatFee
	if fee == 0 {
		fee = DefaultFlatFee
	}
	wait := cfg.WaitRounds
	if wait == 0 {
		wait = DefaultWaitRounds
	}
	return &Escrow{
		client:     client,
		admin:      admin,
		setWinner:  setWinner,
		sendFunds:  sendFunds,
		fee:        fee,
		waitRounds: wait,
	}, nil
}

// AdminAddress is the account that signs payouts.
func (e *Escrow) AdminAddress() string {
	return e.admin.Address.String()
}

// compose builds the setWinner + sendFunds group for winner.
func (e *Escrow) compose(appID uint64, winner types.Address, sp types.SuggestedParams) (*transaction.AtomicTransactionComposer, error) {
	sp.FlatFee = true
	sp.Fee = types.MicroAlgos(e.fee)

	signer := transaction.BasicAccountTransactionSigner{Account: e.admin}
	atc := &transaction.AtomicTransactionComposer{}
	for _, m := range []abi.Method{e.setWinner, e.sendFunds} {
		err := atc.AddMethodCall(transaction.AddMethodCallParams{
			AppID:           appID,
			Method:          m,
			MethodArgs:      []interface{}{winner[:]},
			Sender:          e.admin.Address,
			SuggestedParams: sp,
			OnComplete:      types.NoOpOC,
			Signer:          signer,
			ForeignAccounts: []string{winner.String()},
		})
		if err != nil {
			return nil, fmt.Errorf("add %s call: %w", m.Name, err)
		}
	}
	return atc, nil
}

// Payout designates winnerAddress and transfers the pot in one atomic group.
// Either both calls confirm or neither does; the first transaction id is returned.
// When the group was submitted but its confirmation was not observed, the
// first transaction id is returned together with the error.
func (e *Escrow) Payout(ctx context.Context, appID uint64, winnerAddress string) (string, error) {
	winner, err := types.DecodeAddress(winnerAddress)
	if err != nil {
		return "", fmt.Errorf("winner address: %w", err)
	}
	sp, err := e.client.SuggestedParams().Do(ctx)
	if err != nil {
		return "", fmt.Errorf("suggested params: %w", err)
	}
	atc, err := e.compose(appID, winner, sp)
	if err != nil {
		return "", err
	}
	txIDs, err := atc.Submit(e.client, ctx)
	if err != nil {
		return "", fmt.Errorf("submit payout group: %w", err)
	}
	if len(txIDs) == 0 {
		return "", fmt.Errorf("payout group returned no transaction ids")
	}
	info, err := transaction.WaitForConfirmation(e.client, txIDs[0], e.waitRounds, ctx)
	if err != nil {
		if info.PoolError != "" {
			return "", fmt.Errorf("payout group rejected: %w", err)
		}
		return txIDs[0], fmt.Errorf("confirm payout group: %w", err)
	}
	return txIDs[0], nil
}
