package reconcile

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"

	"github.com/actioncore/blink-backend/internal/payments"
	"github.com/actioncore/blink-backend/pkg/db/models"
	pkgerrors "github.com/actioncore/blink-backend/pkg/errors"
)

// verifyTransferAmounts checks that the transaction's transfer legs carry
// exactly the raw amounts frozen on the order. The memo alone identifies
// the order; this guards against a transaction reusing a real memo while
// moving different value.
func verifyTransferAmounts(tx *solana.Transaction, order *models.Order) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "empty transaction")
	}

	split := payments.Split{
		Total:    order.Amount,
		Merchant: order.MerchantAmount,
		Fee:      order.FeeAmount,
	}

	var merchantRaw, feeRaw uint64
	var program solana.PublicKey
	var err error
	if order.IsNative() {
		program = solana.SystemProgramID
		merchantRaw, feeRaw, err = split.NativeLamports()
	} else {
		program = solana.TokenProgramID
		_, merchantRaw, feeRaw, err = split.TokenRaw(order.TokenDecimals)
	}
	if err != nil {
		return err
	}

	observed := transferAmounts(tx, program, order.IsNative())
	if !containsBoth(observed, merchantRaw, feeRaw) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "on-chain transfer amounts do not match order").
			WithDetails(map[string]any{
				"expectedMerchantRaw": merchantRaw,
				"expectedFeeRaw":      feeRaw,
				"observed":            observed,
			})
	}
	return nil
}

// transferAmounts decodes every transfer instruction of the given program
// in the transaction and returns the raw amounts moved.
func transferAmounts(tx *solana.Transaction, program solana.PublicKey, native bool) []uint64 {
	keys := tx.Message.AccountKeys
	var amounts []uint64

	for _, instruction := range tx.Message.Instructions {
		if int(instruction.ProgramIDIndex) >= len(keys) {
			continue
		}
		if !keys[instruction.ProgramIDIndex].Equals(program) {
			continue
		}
		data := instruction.Data
		if native {
			// System transfer: u32 index 2, then u64 lamports.
			if len(data) >= 12 && binary.LittleEndian.Uint32(data[0:4]) == 2 {
				amounts = append(amounts, binary.LittleEndian.Uint64(data[4:12]))
			}
			continue
		}
		// Token transfer: tag byte 3, then u64 amount.
		if len(data) >= 9 && data[0] == 3 {
			amounts = append(amounts, binary.LittleEndian.Uint64(data[1:9]))
		}
	}
	return amounts
}

// containsBoth checks that observed holds merchantRaw and feeRaw as two
// distinct legs, counting duplicates when the values coincide.
func containsBoth(observed []uint64, merchantRaw, feeRaw uint64) bool {
	merchantSeen := 0
	feeSeen := 0
	for _, amount := range observed {
		if amount == merchantRaw {
			merchantSeen++
		}
		if amount == feeRaw {
			feeSeen++
		}
	}
	if merchantRaw == feeRaw {
		return merchantSeen >= 2
	}
	return merchantSeen >= 1 && feeSeen >= 1
}
