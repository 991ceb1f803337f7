package payments

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/actioncore/blink-backend/pkg/errors"
)

const testMemo = "AC-1700000000000-ABC123"

type stubProber struct {
	existing map[solana.PublicKey]bool
	probed   []solana.PublicKey
}

func (s *stubProber) AccountExists(_ context.Context, account solana.PublicKey) (bool, error) {
	s.probed = append(s.probed, account)
	return s.existing[account], nil
}

func newTestBuilder(t *testing.T, prober *stubProber) *Builder {
	t.Helper()
	resolver, err := NewResolver(prober)
	require.NoError(t, err)
	builder, err := NewBuilder(resolver)
	require.NoError(t, err)
	return builder
}

func mustSplit(t *testing.T, total string) Split {
	t.Helper()
	split, err := ComputeSplit(decimal.RequireFromString(total), decimal.New(1, -2))
	require.NoError(t, err)
	return split
}

func instructionData(t *testing.T, ix solana.Instruction) []byte {
	t.Helper()
	data, err := ix.Data()
	require.NoError(t, err)
	return data
}

func TestBuildNativeTransfer_ThreeInstructions(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	merchant := solana.NewWallet().PublicKey()
	feeWallet := solana.NewWallet().PublicKey()
	builder := newTestBuilder(t, &stubProber{})

	instructions, err := builder.BuildNativeTransfer(NativeBuildRequest{
		Payer:       payer,
		Merchant:    merchant,
		FeeWallet:   feeWallet,
		Split:       mustSplit(t, "0.1"),
		OrderIDMemo: testMemo,
	})
	require.NoError(t, err)
	require.Len(t, instructions, 3)

	assert.Equal(t, solana.SystemProgramID, instructions[0].ProgramID())
	assert.Equal(t, solana.SystemProgramID, instructions[1].ProgramID())
	assert.Equal(t, MemoProgramID(), instructions[2].ProgramID())

	merchantData := instructionData(t, instructions[0])
	require.Len(t, merchantData, 12)
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(merchantData[0:4]))
	assert.Equal(t, uint64(99_000_000), binary.LittleEndian.Uint64(merchantData[4:12]))
	assert.Equal(t, merchant, instructions[0].Accounts()[1].PublicKey)

	feeData := instructionData(t, instructions[1])
	assert.Equal(t, uint64(1_000_000), binary.LittleEndian.Uint64(feeData[4:12]))
	assert.Equal(t, feeWallet, instructions[1].Accounts()[1].PublicKey)

	assert.Equal(t, []byte("AC:"+testMemo), instructionData(t, instructions[2]))
}

func TestBuildTokenTransfer_AllAccountsExist(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	merchant := solana.NewWallet().PublicKey()
	feeWallet := solana.NewWallet().PublicKey()
	mint := solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

	payerATA, _, err := solana.FindAssociatedTokenAddress(payer, mint)
	require.NoError(t, err)
	merchantATA, _, err := solana.FindAssociatedTokenAddress(merchant, mint)
	require.NoError(t, err)
	feeATA, _, err := solana.FindAssociatedTokenAddress(feeWallet, mint)
	require.NoError(t, err)

	prober := &stubProber{existing: map[solana.PublicKey]bool{
		payerATA:    true,
		merchantATA: true,
		feeATA:      true,
	}}
	builder := newTestBuilder(t, prober)

	instructions, err := builder.BuildTokenTransfer(context.Background(), TokenBuildRequest{
		Payer:       payer,
		Merchant:    merchant,
		FeeWallet:   feeWallet,
		Mint:        mint,
		Decimals:    6,
		Split:       mustSplit(t, "100"),
		OrderIDMemo: testMemo,
	})
	require.NoError(t, err)
	require.Len(t, instructions, 3, "no creation instructions when all accounts exist")

	assert.Equal(t, solana.TokenProgramID, instructions[0].ProgramID())
	assert.Equal(t, solana.TokenProgramID, instructions[1].ProgramID())
	assert.Equal(t, MemoProgramID(), instructions[2].ProgramID())

	merchantData := instructionData(t, instructions[0])
	require.Len(t, merchantData, 9)
	assert.Equal(t, byte(3), merchantData[0])
	assert.Equal(t, uint64(99_000_000), binary.LittleEndian.Uint64(merchantData[1:9]))
	assert.Equal(t, merchantATA, instructions[0].Accounts()[1].PublicKey)

	feeData := instructionData(t, instructions[1])
	assert.Equal(t, uint64(1_000_000), binary.LittleEndian.Uint64(feeData[1:9]))
	assert.Equal(t, feeATA, instructions[1].Accounts()[1].PublicKey)
}

func TestBuildTokenTransfer_CreatesMissingMerchantATA(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	merchant := solana.NewWallet().PublicKey()
	feeWallet := solana.NewWallet().PublicKey()
	mint := solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

	payerATA, _, err := solana.FindAssociatedTokenAddress(payer, mint)
	require.NoError(t, err)
	merchantATA, _, err := solana.FindAssociatedTokenAddress(merchant, mint)
	require.NoError(t, err)
	feeATA, _, err := solana.FindAssociatedTokenAddress(feeWallet, mint)
	require.NoError(t, err)

	prober := &stubProber{existing: map[solana.PublicKey]bool{
		payerATA: true,
		feeATA:   true,
	}}
	builder := newTestBuilder(t, prober)

	instructions, err := builder.BuildTokenTransfer(context.Background(), TokenBuildRequest{
		Payer:       payer,
		Merchant:    merchant,
		FeeWallet:   feeWallet,
		Mint:        mint,
		Decimals:    6,
		Split:       mustSplit(t, "100"),
		OrderIDMemo: testMemo,
	})
	require.NoError(t, err)
	require.Len(t, instructions, 4, "exactly one creation instruction")

	create := instructions[0]
	assert.Equal(t, solana.SPLAssociatedTokenAccountProgramID, create.ProgramID())
	assert.Equal(t, merchantATA, create.Accounts()[1].PublicKey)
	assert.Equal(t, payer, create.Accounts()[0].PublicKey)
	assert.True(t, create.Accounts()[0].IsSigner, "payer funds the creation")

	// Creation must precede the transfer targeting the same account.
	assert.Equal(t, solana.TokenProgramID, instructions[1].ProgramID())
	assert.Equal(t, merchantATA, instructions[1].Accounts()[1].PublicKey)
}

func TestBuildTokenTransfer_PayerATAMissingFailsFast(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	merchant := solana.NewWallet().PublicKey()
	feeWallet := solana.NewWallet().PublicKey()
	mint := solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

	builder := newTestBuilder(t, &stubProber{})

	_, err := builder.BuildTokenTransfer(context.Background(), TokenBuildRequest{
		Payer:       payer,
		Merchant:    merchant,
		FeeWallet:   feeWallet,
		Mint:        mint,
		Decimals:    6,
		Split:       mustSplit(t, "100"),
		OrderIDMemo: testMemo,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodePrecondition, pkgerrors.As(err).Code())
}

func TestBuildNativeTransfer_MissingFeeWallet(t *testing.T) {
	builder := newTestBuilder(t, &stubProber{})

	_, err := builder.BuildNativeTransfer(NativeBuildRequest{
		Payer:       solana.NewWallet().PublicKey(),
		Merchant:    solana.NewWallet().PublicKey(),
		Split:       mustSplit(t, "1"),
		OrderIDMemo: testMemo,
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestAssembleUnsigned_SetsFeePayer(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	merchant := solana.NewWallet().PublicKey()
	feeWallet := solana.NewWallet().PublicKey()
	builder := newTestBuilder(t, &stubProber{})

	instructions, err := builder.BuildNativeTransfer(NativeBuildRequest{
		Payer:       payer,
		Merchant:    merchant,
		FeeWallet:   feeWallet,
		Split:       mustSplit(t, "0.5"),
		OrderIDMemo: testMemo,
	})
	require.NoError(t, err)

	blockhash := solana.MustHashFromBase58("4uQeVj5tqViQh7yWWGStvkEG1Zmhx6uasJtWCJziofM")
	tx, err := AssembleUnsigned(instructions, blockhash, payer)
	require.NoError(t, err)

	require.NotEmpty(t, tx.Message.AccountKeys)
	assert.Equal(t, payer, tx.Message.AccountKeys[0], "fee payer is first account")
	assert.Equal(t, blockhash, tx.Message.RecentBlockhash)

	encoded, err := tx.ToBase64()
	require.NoError(t, err)
	assert.NotEmpty(t, encoded)
}
