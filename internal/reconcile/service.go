package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/actioncore/blink-backend/internal/orders"
	"github.com/actioncore/blink-backend/internal/payments"
	"github.com/actioncore/blink-backend/pkg/db/models"
	"github.com/actioncore/blink-backend/pkg/enums"
	pkgerrors "github.com/actioncore/blink-backend/pkg/errors"
	"github.com/actioncore/blink-backend/pkg/logger"
	"github.com/actioncore/blink-backend/pkg/metrics"
	solpkg "github.com/actioncore/blink-backend/pkg/solana"
)

type orderConfirmer interface {
	Confirm(ctx context.Context, input orders.ConfirmInput) (*orders.ConfirmResult, error)
	GetByMemo(ctx context.Context, orderIDMemo string) (*models.Order, error)
}

type transactionFetcher interface {
	FetchTransaction(ctx context.Context, signature solana.Signature) (*solana.Transaction, error)
}

// Input is the confirmation evidence handed to the reconciler: always a
// signature, optionally the order memo when the sender already knows it.
type Input struct {
	Signature   string
	OrderIDMemo string
}

// Result reports the order state after reconciliation.
type Result struct {
	Order        *models.Order
	Transitioned bool
}

// Service resolves on-chain payment evidence to orders and settles them.
// Redelivered evidence is a success no-op, never an error.
type Service struct {
	orders        orderConfirmer
	chain         transactionFetcher
	verifyAmounts bool
	payment       *metrics.PaymentMetrics
	logg          *logger.Logger
}

// NewService wires the reconciler. verifyAmounts enables instruction-level
// comparison of on-chain transfer amounts against the order's frozen split.
func NewService(
	orderSvc orderConfirmer,
	chain transactionFetcher,
	verifyAmounts bool,
	payment *metrics.PaymentMetrics,
	logg *logger.Logger,
) (*Service, error) {
	if orderSvc == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if chain == nil {
		return nil, fmt.Errorf("chain client required")
	}
	return &Service{
		orders:        orderSvc,
		chain:         chain,
		verifyAmounts: verifyAmounts,
		payment:       payment,
		logg:          logg,
	}, nil
}

// Process settles the order identified by the evidence. When no memo is
// supplied, the transaction is fetched and its memo instruction decoded;
// absent or malformed memos fail rather than guess.
func (s *Service) Process(ctx context.Context, input Input) (*Result, error) {
	rawSignature := strings.TrimSpace(input.Signature)
	if rawSignature == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction signature required")
	}
	signature, err := solana.SignatureFromBase58(rawSignature)
	if err != nil {
		s.payment.IncReconcileOutcome("bad_signature")
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse transaction signature")
	}

	var fetched *solana.Transaction

	memo := strings.TrimSpace(input.OrderIDMemo)
	if memo != "" {
		// Accept either the bare identifier or the full on-chain memo text.
		if strings.HasPrefix(memo, payments.MemoPrefix) {
			memo, err = payments.ParseMemo(memo)
			if err != nil {
				s.payment.IncReconcileOutcome("bad_memo")
				return nil, err
			}
		} else if !payments.ValidOrderMemo(memo) {
			s.payment.IncReconcileOutcome("bad_memo")
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "malformed order identifier")
		}
	} else {
		fetched, err = s.fetchTransaction(ctx, signature)
		if err != nil {
			return nil, err
		}
		memo, err = extractOrderMemo(fetched)
		if err != nil {
			s.payment.IncReconcileOutcome("no_memo")
			return nil, err
		}
	}

	order, err := s.orders.GetByMemo(ctx, memo)
	if err != nil {
		if pkgerrors.As(err) != nil && pkgerrors.As(err).Code() == pkgerrors.CodeNotFound {
			s.payment.IncReconcileOutcome("unknown_order")
		}
		return nil, err
	}

	if order.Status != enums.OrderStatusPending {
		s.payment.IncReconcileOutcome("duplicate")
		return &Result{Order: order, Transitioned: false}, nil
	}

	if s.verifyAmounts {
		if fetched == nil {
			fetched, err = s.fetchTransaction(ctx, signature)
			if err != nil {
				return nil, err
			}
		}
		if err := verifyTransferAmounts(fetched, order); err != nil {
			s.payment.IncReconcileOutcome("amount_mismatch")
			if s.logg != nil {
				s.logg.Warn(s.logg.WithOrderMemo(ctx, memo), "on-chain amounts do not match order")
			}
			return nil, err
		}
	}

	confirmed, err := s.orders.Confirm(ctx, orders.ConfirmInput{
		OrderIDMemo: memo,
		Signature:   rawSignature,
	})
	if err != nil {
		return nil, err
	}

	if confirmed.Transitioned {
		s.payment.IncReconcileOutcome("confirmed")
	} else {
		s.payment.IncReconcileOutcome("duplicate")
	}
	return &Result{Order: confirmed.Order, Transitioned: confirmed.Transitioned}, nil
}

func (s *Service) fetchTransaction(ctx context.Context, signature solana.Signature) (*solana.Transaction, error) {
	tx, err := s.chain.FetchTransaction(ctx, signature)
	if err != nil {
		if errors.Is(err, solpkg.ErrAccountNotFound) {
			s.payment.IncReconcileOutcome("tx_not_found")
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "transaction not found on chain")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch transaction")
	}
	return tx, nil
}

// extractOrderMemo finds the memo instruction and recovers the order
// identifier from its payload.
func extractOrderMemo(tx *solana.Transaction) (string, error) {
	if tx == nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "empty transaction")
	}
	memoProgram := payments.MemoProgramID()
	keys := tx.Message.AccountKeys

	for _, instruction := range tx.Message.Instructions {
		if int(instruction.ProgramIDIndex) >= len(keys) {
			continue
		}
		if !keys[instruction.ProgramIDIndex].Equals(memoProgram) {
			continue
		}
		memo, err := payments.ParseMemo(string(instruction.Data))
		if err != nil {
			continue
		}
		return memo, nil
	}
	return "", pkgerrors.New(pkgerrors.CodeValidation, "transaction carries no order memo")
}
