package blinks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"gorm.io/gorm"

	"github.com/actioncore/blink-backend/internal/orders"
	"github.com/actioncore/blink-backend/internal/payments"
	pkgerrors "github.com/actioncore/blink-backend/pkg/errors"
)

// CreateTransaction builds the unsigned fee-split transaction for a blink
// and writes the PENDING order it will settle against. Side-effect order is
// load-bearing: the rate limit gate runs before anything else, chain
// preconditions are probed before the order row exists, and the blockhash
// is fetched last so it is as fresh as possible when the wallet signs.
func (s *Service) CreateTransaction(ctx context.Context, input CreateTransactionInput) (*TransactionResponse, error) {
	payer, err := solana.PublicKeyFromBase58(strings.TrimSpace(input.Account))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse payer wallet")
	}

	allowed, _, err := s.cache.FixedWindowAllow(ctx, "wallet:"+payer.String(), int64(s.rateCfg.WalletLimit), s.rateCfg.WalletWindow)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limit check")
	}
	if !allowed {
		return nil, pkgerrors.New(pkgerrors.CodeRateLimit, "too many payment requests from this wallet")
	}

	blink, err := s.repo.FindBySlug(ctx, strings.ToLower(strings.TrimSpace(input.Slug)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment link not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load blink")
	}
	if !blink.Active {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment link not found")
	}
	if blink.Merchant == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "blink has no merchant")
	}
	if blink.Merchant.Subscription == nil || !blink.Merchant.Subscription.IsActive() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "merchant subscription inactive")
	}

	merchantWallet, err := solana.PublicKeyFromBase58(blink.Merchant.Payout())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "parse merchant payout wallet")
	}

	resolved, err := s.tokens.Resolve(ctx, blink.Currency)
	if err != nil {
		return nil, err
	}

	split, err := payments.ComputeSplit(blink.Amount, s.payCfg.FeeRate())
	if err != nil {
		return nil, err
	}

	// For SPL flows the payer's token account is a hard precondition.
	// Probing before order creation keeps failed builds from leaving rows.
	var tokenAccounts payments.TokenAccounts
	if !resolved.Native {
		tokenAccounts, err = s.resolver.Resolve(ctx, payer, merchantWallet, s.feeWallet, resolved.Mint)
		if err != nil {
			return nil, err
		}
	}

	order, err := s.orders.CreatePending(ctx, orders.CreatePendingInput{
		MerchantID:       blink.MerchantID,
		BlinkID:          &blink.ID,
		CustomerWallet:   payer.String(),
		Currency:         resolved.Symbol,
		TokenMintID:      resolved.TokenID,
		TokenDecimals:    resolved.Decimals,
		Split:            split,
		RequiresShipping: blink.RequiresShipping,
		Shipping:         shippingDetails(input.Shipping),
	})
	if err != nil {
		return nil, err
	}

	var instructions []solana.Instruction
	if resolved.Native {
		instructions, err = s.builder.BuildNativeTransfer(payments.NativeBuildRequest{
			Payer:       payer,
			Merchant:    merchantWallet,
			FeeWallet:   s.feeWallet,
			Split:       split,
			OrderIDMemo: order.OrderIDMemo,
		})
	} else {
		instructions, err = s.builder.BuildTokenTransferResolved(payments.TokenBuildRequest{
			Payer:       payer,
			Merchant:    merchantWallet,
			FeeWallet:   s.feeWallet,
			Mint:        resolved.Mint,
			Decimals:    resolved.Decimals,
			Split:       split,
			OrderIDMemo: order.OrderIDMemo,
		}, tokenAccounts)
	}
	if err != nil {
		return nil, err
	}

	blockhash, err := s.chain.LatestBlockhash(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch blockhash")
	}

	tx, err := payments.AssembleUnsigned(instructions, blockhash, payer)
	if err != nil {
		return nil, err
	}
	encoded, err := tx.ToBase64()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode transaction")
	}

	return &TransactionResponse{
		Transaction: encoded,
		Message:     fmt.Sprintf("Pay %s %s to %s", blink.Amount.String(), resolved.Symbol, blink.Title),
		OrderMemo:   order.OrderIDMemo,
		OrderID:     order.ID.String(),
	}, nil
}

func shippingDetails(input *ShippingInput) *orders.ShippingDetails {
	if input == nil {
		return nil
	}
	return &orders.ShippingDetails{
		Email:   input.Email,
		Name:    input.Name,
		Address: input.Address,
		Phone:   input.Phone,
	}
}
