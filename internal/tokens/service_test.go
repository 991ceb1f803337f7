package tokens

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/actioncore/blink-backend/pkg/db/models"
	pkgerrors "github.com/actioncore/blink-backend/pkg/errors"
)

type stubTokenRepo struct {
	bySymbol map[string]*models.Token
	byMint   map[string]*models.Token
}

func (s *stubTokenRepo) FindBySymbol(_ context.Context, symbol string) (*models.Token, error) {
	if token, ok := s.bySymbol[symbol]; ok {
		return token, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubTokenRepo) FindByMint(_ context.Context, mint string) (*models.Token, error) {
	if token, ok := s.byMint[mint]; ok {
		return token, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubTokenRepo) List(_ context.Context) ([]models.Token, error) {
	return nil, nil
}

type stubDecimals struct {
	decimals int
	err      error
	calls    int
}

func (s *stubDecimals) TokenDecimals(_ context.Context, _ solana.PublicKey) (int, error) {
	s.calls++
	return s.decimals, s.err
}

const bonkMint = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"

func TestResolve_NativeCurrency(t *testing.T) {
	svc, err := NewService(&stubTokenRepo{}, &stubDecimals{})
	require.NoError(t, err)

	resolved, err := svc.Resolve(context.Background(), "sol")
	require.NoError(t, err)
	assert.True(t, resolved.Native)
	assert.Equal(t, 9, resolved.Decimals)
	assert.Nil(t, resolved.TokenID)
}

func TestResolve_RegistryToken(t *testing.T) {
	tokenID := uuid.New()
	repo := &stubTokenRepo{bySymbol: map[string]*models.Token{
		"BONK": {ID: tokenID, Symbol: "BONK", MintAddress: bonkMint, Decimals: 5},
	}}
	chain := &stubDecimals{}
	svc, err := NewService(repo, chain)
	require.NoError(t, err)

	resolved, err := svc.Resolve(context.Background(), "bonk")
	require.NoError(t, err)
	assert.False(t, resolved.Native)
	assert.Equal(t, 5, resolved.Decimals)
	require.NotNil(t, resolved.TokenID)
	assert.Equal(t, tokenID, *resolved.TokenID)
	assert.Zero(t, chain.calls, "registry decimals used without a chain call")
}

func TestResolve_ChainFallbackForMissingDecimals(t *testing.T) {
	repo := &stubTokenRepo{bySymbol: map[string]*models.Token{
		"BONK": {ID: uuid.New(), Symbol: "BONK", MintAddress: bonkMint},
	}}
	chain := &stubDecimals{decimals: 5}
	svc, err := NewService(repo, chain)
	require.NoError(t, err)

	resolved, err := svc.Resolve(context.Background(), "BONK")
	require.NoError(t, err)
	assert.Equal(t, 5, resolved.Decimals)
	assert.Equal(t, 1, chain.calls)
}

func TestResolve_USDCFallbackWithoutRegistryRow(t *testing.T) {
	svc, err := NewService(&stubTokenRepo{}, &stubDecimals{})
	require.NoError(t, err)

	resolved, err := svc.Resolve(context.Background(), "USDC")
	require.NoError(t, err)
	assert.Equal(t, "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", resolved.Mint.String())
	assert.Equal(t, 6, resolved.Decimals)
}

func TestResolve_UnknownSymbol(t *testing.T) {
	svc, err := NewService(&stubTokenRepo{}, &stubDecimals{})
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), "DOGE")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestResolveMint_UnknownMintUsesChain(t *testing.T) {
	chain := &stubDecimals{decimals: 8}
	svc, err := NewService(&stubTokenRepo{}, chain)
	require.NoError(t, err)

	resolved, err := svc.ResolveMint(context.Background(), bonkMint)
	require.NoError(t, err)
	assert.Equal(t, 8, resolved.Decimals)
	assert.Equal(t, 1, chain.calls)
}

func TestResolveMint_ChainFailure(t *testing.T) {
	chain := &stubDecimals{err: errors.New("unknown mint")}
	svc, err := NewService(&stubTokenRepo{}, chain)
	require.NoError(t, err)

	_, err = svc.ResolveMint(context.Background(), bonkMint)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestResolveMint_BadAddress(t *testing.T) {
	svc, err := NewService(&stubTokenRepo{}, &stubDecimals{})
	require.NoError(t, err)

	_, err = svc.ResolveMint(context.Background(), "not-a-key")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}
