package payments

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	pkgerrors "github.com/actioncore/blink-backend/pkg/errors"
)

type accountProber interface {
	AccountExists(ctx context.Context, account solana.PublicKey) (bool, error)
}

// TokenAccounts is the resolved associated-token-account layout for one
// SPL payment: the three derived addresses plus which receiving accounts
// still need to be created inside the transaction.
type TokenAccounts struct {
	Payer    solana.PublicKey
	Merchant solana.PublicKey
	Fee      solana.PublicKey

	CreateMerchant bool
	CreateFee      bool
}

// Resolver derives associated token accounts and probes chain state for
// their existence.
type Resolver struct {
	prober accountProber
}

// NewResolver builds a resolver backed by the given chain prober.
func NewResolver(prober accountProber) (*Resolver, error) {
	if prober == nil {
		return nil, fmt.Errorf("account prober required")
	}
	return &Resolver{prober: prober}, nil
}

// Resolve derives the payer, merchant, and fee associated accounts for mint
// and checks which exist. The payer's account must already exist: the payer
// funds everything in the transaction, and an absent account means they
// cannot hold the token at all, so construction fails fast instead of
// adding a creation the payer would have no use for. Missing merchant or
// fee accounts are flagged for creation, funded by the payer.
func (r *Resolver) Resolve(ctx context.Context, payer, merchant, fee, mint solana.PublicKey) (TokenAccounts, error) {
	payerATA, _, err := solana.FindAssociatedTokenAddress(payer, mint)
	if err != nil {
		return TokenAccounts{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "derive payer token account")
	}
	merchantATA, _, err := solana.FindAssociatedTokenAddress(merchant, mint)
	if err != nil {
		return TokenAccounts{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "derive merchant token account")
	}
	feeATA, _, err := solana.FindAssociatedTokenAddress(fee, mint)
	if err != nil {
		return TokenAccounts{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "derive fee token account")
	}

	payerExists, err := r.prober.AccountExists(ctx, payerATA)
	if err != nil {
		return TokenAccounts{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "probe payer token account")
	}
	if !payerExists {
		return TokenAccounts{}, pkgerrors.New(pkgerrors.CodePrecondition, "payer has no token account for this mint").
			WithDetails(map[string]string{"mint": mint.String()})
	}

	merchantExists, err := r.prober.AccountExists(ctx, merchantATA)
	if err != nil {
		return TokenAccounts{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "probe merchant token account")
	}
	feeExists, err := r.prober.AccountExists(ctx, feeATA)
	if err != nil {
		return TokenAccounts{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "probe fee token account")
	}

	return TokenAccounts{
		Payer:          payerATA,
		Merchant:       merchantATA,
		Fee:            feeATA,
		CreateMerchant: !merchantExists,
		CreateFee:      !feeExists,
	}, nil
}
