package payments

import (
	"github.com/shopspring/decimal"

	pkgerrors "github.com/actioncore/blink-backend/pkg/errors"
)

// NativeDecimals is the decimal count of the native asset (1 SOL = 1e9 lamports).
const NativeDecimals = 9

// Split is the frozen fee division for a single payment. Amounts are in
// display units; Total always equals Merchant + Fee exactly.
type Split struct {
	Total    decimal.Decimal
	Merchant decimal.Decimal
	Fee      decimal.Decimal
}

// ComputeSplit divides total between the merchant and the platform at the
// given fee rate. The fee is computed first and the merchant leg is the
// remainder, so the two legs always sum back to the total.
func ComputeSplit(total decimal.Decimal, feeRate decimal.Decimal) (Split, error) {
	if !total.IsPositive() {
		return Split{}, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if feeRate.IsNegative() || feeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return Split{}, pkgerrors.New(pkgerrors.CodeValidation, "fee rate must be in [0, 1)")
	}

	fee := total.Mul(feeRate)
	merchant := total.Sub(fee)
	return Split{Total: total, Merchant: merchant, Fee: fee}, nil
}

// NativeLamports converts both legs to lamports, each rounded independently.
// The legs may not sum to round(total) by a single lamport; for the native
// asset nobody owns the remainder so the drift is acceptable.
func (s Split) NativeLamports() (merchantRaw uint64, feeRaw uint64, err error) {
	merchantRaw, err = toRaw(s.Merchant, NativeDecimals)
	if err != nil {
		return 0, 0, err
	}
	feeRaw, err = toRaw(s.Fee, NativeDecimals)
	if err != nil {
		return 0, 0, err
	}
	return merchantRaw, feeRaw, nil
}

// TokenRaw converts the split to integer base units of a mint. The fee leg
// is derived as totalRaw - merchantRaw rather than rounded on its own, so
// the two legs sum to the raw total exactly even when total * 10^decimals
// is not an integer.
func (s Split) TokenRaw(decimals int) (totalRaw, merchantRaw, feeRaw uint64, err error) {
	if decimals < 0 || decimals > 18 {
		return 0, 0, 0, pkgerrors.New(pkgerrors.CodeValidation, "token decimals out of range")
	}
	totalRaw, err = toRaw(s.Total, decimals)
	if err != nil {
		return 0, 0, 0, err
	}
	merchantRaw, err = toRaw(s.Merchant, decimals)
	if err != nil {
		return 0, 0, 0, err
	}
	if merchantRaw > totalRaw {
		return 0, 0, 0, pkgerrors.New(pkgerrors.CodeValidation, "merchant leg exceeds total after rounding")
	}
	feeRaw = totalRaw - merchantRaw
	return totalRaw, merchantRaw, feeRaw, nil
}

func toRaw(amount decimal.Decimal, decimals int) (uint64, error) {
	raw := amount.Shift(int32(decimals)).Round(0)
	if raw.IsNegative() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative")
	}
	bi := raw.BigInt()
	if !bi.IsUint64() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "amount exceeds representable range")
	}
	return bi.Uint64(), nil
}
