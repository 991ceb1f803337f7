package payments

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"

	pkgerrors "github.com/actioncore/blink-backend/pkg/errors"
)

// Memo Program ID: MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr
var memoProgramID = solana.MustPublicKeyFromBase58("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr")

const (
	systemTransferIndex   = uint32(2)
	tokenTransferTag      = byte(3)
	nativeInstructionsLen = 3
)

// NativeBuildRequest describes a SOL payment to construct.
type NativeBuildRequest struct {
	Payer       solana.PublicKey
	Merchant    solana.PublicKey
	FeeWallet   solana.PublicKey
	Split       Split
	OrderIDMemo string
}

// TokenBuildRequest describes an SPL token payment to construct.
type TokenBuildRequest struct {
	Payer       solana.PublicKey
	Merchant    solana.PublicKey
	FeeWallet   solana.PublicKey
	Mint        solana.PublicKey
	Decimals    int
	Split       Split
	OrderIDMemo string
}

// Builder constructs unsigned fee-split payment transactions. It never
// signs and never submits; callers fetch a blockhash and assemble the
// final transaction immediately before handing it to the wallet, so a
// cached blockhash can't expire in between.
type Builder struct {
	resolver *Resolver
}

// NewBuilder wires the builder with the ATA resolver used for SPL flows.
func NewBuilder(resolver *Resolver) (*Builder, error) {
	if resolver == nil {
		return nil, fmt.Errorf("resolver required")
	}
	return &Builder{resolver: resolver}, nil
}

// BuildNativeTransfer produces exactly three instructions: merchant
// transfer, fee transfer, memo.
func (b *Builder) BuildNativeTransfer(req NativeBuildRequest) ([]solana.Instruction, error) {
	if err := validateParties(req.Payer, req.Merchant, req.FeeWallet); err != nil {
		return nil, err
	}
	if !ValidOrderMemo(req.OrderIDMemo) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "malformed order identifier")
	}

	merchantRaw, feeRaw, err := req.Split.NativeLamports()
	if err != nil {
		return nil, err
	}
	if merchantRaw == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "merchant amount rounds to zero lamports")
	}

	instructions := make([]solana.Instruction, 0, nativeInstructionsLen)
	instructions = append(instructions,
		systemTransfer(req.Payer, req.Merchant, merchantRaw),
		systemTransfer(req.Payer, req.FeeWallet, feeRaw),
		memoInstruction(req.OrderIDMemo),
	)
	return instructions, nil
}

// BuildTokenTransfer resolves associated token accounts and produces the
// transfer legs plus the memo, prepending account-creation instructions
// only for receiving accounts that do not exist yet. Each creation comes
// before the transfer that targets it; on-chain execution is atomic, so a
// wrong order would revert the whole transaction.
func (b *Builder) BuildTokenTransfer(ctx context.Context, req TokenBuildRequest) ([]solana.Instruction, error) {
	if err := validateTokenRequest(req); err != nil {
		return nil, err
	}
	accounts, err := b.resolver.Resolve(ctx, req.Payer, req.Merchant, req.FeeWallet, req.Mint)
	if err != nil {
		return nil, err
	}
	return b.BuildTokenTransferResolved(req, accounts)
}

// BuildTokenTransferResolved assembles the SPL instruction list from
// accounts the caller already resolved, for flows that must probe chain
// state before committing any other side effects.
func (b *Builder) BuildTokenTransferResolved(req TokenBuildRequest, accounts TokenAccounts) ([]solana.Instruction, error) {
	if err := validateTokenRequest(req); err != nil {
		return nil, err
	}

	_, merchantRaw, feeRaw, err := req.Split.TokenRaw(req.Decimals)
	if err != nil {
		return nil, err
	}
	if merchantRaw == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "merchant amount rounds to zero base units")
	}

	instructions := make([]solana.Instruction, 0, 5)
	if accounts.CreateMerchant {
		instructions = append(instructions, createATA(req.Payer, accounts.Merchant, req.Merchant, req.Mint))
	}
	if accounts.CreateFee {
		instructions = append(instructions, createATA(req.Payer, accounts.Fee, req.FeeWallet, req.Mint))
	}
	instructions = append(instructions,
		tokenTransfer(accounts.Payer, accounts.Merchant, req.Payer, merchantRaw),
		tokenTransfer(accounts.Payer, accounts.Fee, req.Payer, feeRaw),
		memoInstruction(req.OrderIDMemo),
	)
	return instructions, nil
}

// AssembleUnsigned wraps the instructions into a transaction with the
// payer as fee payer. The caller supplies a blockhash fetched immediately
// beforehand.
func AssembleUnsigned(instructions []solana.Instruction, blockhash solana.Hash, payer solana.PublicKey) (*solana.Transaction, error) {
	tx, err := solana.NewTransaction(
		instructions,
		blockhash,
		solana.TransactionPayer(payer),
	)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "assemble transaction")
	}
	return tx, nil
}

func validateTokenRequest(req TokenBuildRequest) error {
	if err := validateParties(req.Payer, req.Merchant, req.FeeWallet); err != nil {
		return err
	}
	if req.Mint.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "token mint required")
	}
	if !ValidOrderMemo(req.OrderIDMemo) {
		return pkgerrors.New(pkgerrors.CodeValidation, "malformed order identifier")
	}
	return nil
}

func validateParties(payer, merchant, feeWallet solana.PublicKey) error {
	if payer.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "payer wallet required")
	}
	if merchant.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "merchant wallet required")
	}
	if feeWallet.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "platform fee wallet not configured")
	}
	return nil
}

// systemTransfer moves lamports: u32 transfer index, then u64 amount,
// both little-endian.
func systemTransfer(from, to solana.PublicKey, lamports uint64) solana.Instruction {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], systemTransferIndex)
	binary.LittleEndian.PutUint64(data[4:12], lamports)

	return solana.NewInstruction(
		solana.SystemProgramID,
		solana.AccountMetaSlice{
			{PublicKey: from, IsSigner: true, IsWritable: true},
			{PublicKey: to, IsSigner: false, IsWritable: true},
		},
		data,
	)
}

// tokenTransfer moves raw token units: tag byte 3, then u64 amount
// little-endian.
func tokenTransfer(source, dest, owner solana.PublicKey, amount uint64) solana.Instruction {
	data := make([]byte, 9)
	data[0] = tokenTransferTag
	binary.LittleEndian.PutUint64(data[1:9], amount)

	return solana.NewInstruction(
		solana.TokenProgramID,
		solana.AccountMetaSlice{
			{PublicKey: source, IsSigner: false, IsWritable: true},
			{PublicKey: dest, IsSigner: false, IsWritable: true},
			{PublicKey: owner, IsSigner: true, IsWritable: false},
		},
		data,
	)
}

// createATA creates owner's associated token account for mint, funded by
// the payer.
func createATA(payer, ata, owner, mint solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		solana.SPLAssociatedTokenAccountProgramID,
		solana.AccountMetaSlice{
			{PublicKey: payer, IsSigner: true, IsWritable: true},
			{PublicKey: ata, IsSigner: false, IsWritable: true},
			{PublicKey: owner, IsSigner: false, IsWritable: false},
			{PublicKey: mint, IsSigner: false, IsWritable: false},
			{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
			{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
		},
		nil,
	)
}

func memoInstruction(orderIDMemo string) solana.Instruction {
	return solana.NewInstruction(
		memoProgramID,
		solana.AccountMetaSlice{},
		[]byte(MemoText(orderIDMemo)),
	)
}

// MemoProgramID exposes the memo program identifier for reconciliation.
func MemoProgramID() solana.PublicKey {
	return memoProgramID
}
