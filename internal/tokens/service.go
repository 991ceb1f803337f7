package tokens

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/actioncore/blink-backend/pkg/db/models"
	pkgerrors "github.com/actioncore/blink-backend/pkg/errors"
)

// USDC is accepted even when the registry has no row for it.
const (
	usdcSymbol   = "USDC"
	usdcMint     = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	usdcDecimals = 6

	nativeSymbol   = "SOL"
	nativeDecimals = 9
)

type decimalsFetcher interface {
	TokenDecimals(ctx context.Context, mint solana.PublicKey) (int, error)
}

// Resolved is a currency descriptor frozen for one payment: either the
// native asset or a mint with its decimal count.
type Resolved struct {
	Symbol   string
	Native   bool
	TokenID  *uuid.UUID
	Mint     solana.PublicKey
	Decimals int
}

// Service resolves currency symbols against the token registry, falling
// back to the chain for decimal counts the registry does not carry.
type Service struct {
	repo  Repository
	chain decimalsFetcher
}

// NewService wires the registry and the chain fallback.
func NewService(repo Repository, chain decimalsFetcher) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("tokens repository required")
	}
	if chain == nil {
		return nil, fmt.Errorf("chain client required")
	}
	return &Service{repo: repo, chain: chain}, nil
}

// Resolve maps a currency symbol to its payment descriptor.
func (s *Service) Resolve(ctx context.Context, symbol string) (*Resolved, error) {
	normalized := strings.ToUpper(strings.TrimSpace(symbol))
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "currency required")
	}
	if normalized == nativeSymbol {
		return &Resolved{Symbol: nativeSymbol, Native: true, Decimals: nativeDecimals}, nil
	}

	token, err := s.repo.FindBySymbol(ctx, normalized)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if normalized == usdcSymbol {
				return &Resolved{
					Symbol:   usdcSymbol,
					Mint:     solana.MustPublicKeyFromBase58(usdcMint),
					Decimals: usdcDecimals,
				}, nil
			}
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "unsupported currency").
				WithDetails(map[string]string{"currency": normalized})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up token")
	}

	return s.fromRegistry(ctx, token)
}

// ResolveMint maps a raw mint address to its descriptor, for callers that
// hold an address rather than a symbol.
func (s *Service) ResolveMint(ctx context.Context, mintAddress string) (*Resolved, error) {
	mint, err := solana.PublicKeyFromBase58(strings.TrimSpace(mintAddress))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse mint address")
	}

	token, err := s.repo.FindByMint(ctx, mint.String())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			decimals, err := s.chain.TokenDecimals(ctx, mint)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "unknown mint")
			}
			return &Resolved{Symbol: mint.String(), Mint: mint, Decimals: decimals}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up token")
	}
	return s.fromRegistry(ctx, token)
}

// List returns the supported token registry.
func (s *Service) List(ctx context.Context) ([]models.Token, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tokens")
	}
	return rows, nil
}

func (s *Service) fromRegistry(ctx context.Context, token *models.Token) (*Resolved, error) {
	mint, err := solana.PublicKeyFromBase58(token.MintAddress)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "registry holds invalid mint address")
	}

	decimals := token.Decimals
	if decimals <= 0 {
		decimals, err = s.chain.TokenDecimals(ctx, mint)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch mint decimals")
		}
	}

	id := token.ID
	return &Resolved{
		Symbol:   token.Symbol,
		TokenID:  &id,
		Mint:     mint,
		Decimals: decimals,
	}, nil
}
