package solana

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/actioncore/blink-backend/pkg/config"
)

type stubRPC struct {
	blockhashCalls int
	blockhashErrs  []error
	blockhash      solana.Hash

	accountInfo    *rpc.GetAccountInfoResult
	accountInfoErr error

	tokenSupply    *rpc.GetTokenSupplyResult
	tokenSupplyErr error

	txCalls int
	txErr   error
}

func (s *stubRPC) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	s.blockhashCalls++
	if len(s.blockhashErrs) > 0 {
		err := s.blockhashErrs[0]
		s.blockhashErrs = s.blockhashErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &rpc.GetLatestBlockhashResult{
		Value: &rpc.LatestBlockhashResult{Blockhash: s.blockhash},
	}, nil
}

func (s *stubRPC) GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error) {
	return s.accountInfo, s.accountInfoErr
}

func (s *stubRPC) GetTokenSupply(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenSupplyResult, error) {
	return s.tokenSupply, s.tokenSupplyErr
}

func (s *stubRPC) GetTransaction(ctx context.Context, signature solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error) {
	s.txCalls++
	return nil, s.txErr
}

func newTestClient(stub *stubRPC) *Client {
	return &Client{
		rpc: stub,
		cfg: config.SolanaConfig{
			MaxRetries:     3,
			RetryBaseDelay: time.Millisecond,
		},
		commitment: rpc.CommitmentConfirmed,
	}
}

func TestLatestBlockhash_RetriesTransientFailure(t *testing.T) {
	hash := solana.MustHashFromBase58("4uQeVj5tqViQh7yWWGStvkEG1Zmhx6uasJtWCJziofM")
	stub := &stubRPC{
		blockhashErrs: []error{errors.New("connection refused"), nil},
		blockhash:     hash,
	}
	client := newTestClient(stub)

	retries := 0
	client.onRetry = func() { retries++ }

	got, err := client.LatestBlockhash(context.Background())
	require.NoError(t, err)
	assert.Equal(t, hash, got)
	assert.Equal(t, 2, stub.blockhashCalls)
	assert.Equal(t, 1, retries)
}

func TestAccountExists_NotFoundIsNotAnError(t *testing.T) {
	stub := &stubRPC{accountInfoErr: rpc.ErrNotFound}
	client := newTestClient(stub)

	exists, err := client.AccountExists(context.Background(), solana.SystemProgramID)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestAccountExists_PresentAccount(t *testing.T) {
	stub := &stubRPC{
		accountInfo: &rpc.GetAccountInfoResult{
			Value: &rpc.Account{Owner: solana.TokenProgramID},
		},
	}
	client := newTestClient(stub)

	exists, err := client.AccountExists(context.Background(), solana.SystemProgramID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestTokenDecimals(t *testing.T) {
	stub := &stubRPC{
		tokenSupply: &rpc.GetTokenSupplyResult{
			Value: &rpc.UiTokenAmount{Decimals: 6},
		},
	}
	client := newTestClient(stub)

	decimals, err := client.TokenDecimals(context.Background(), solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"))
	require.NoError(t, err)
	assert.Equal(t, 6, decimals)
}

func TestTokenDecimals_UnknownMint(t *testing.T) {
	stub := &stubRPC{tokenSupplyErr: rpc.ErrNotFound}
	client := newTestClient(stub)

	_, err := client.TokenDecimals(context.Background(), solana.SystemProgramID)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestFetchTransaction_NotFoundDoesNotRetry(t *testing.T) {
	stub := &stubRPC{txErr: rpc.ErrNotFound}
	client := newTestClient(stub)

	_, err := client.FetchTransaction(context.Background(), solana.Signature{})
	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.Equal(t, 1, stub.txCalls)
}

func TestParseCommitment(t *testing.T) {
	assert.Equal(t, rpc.CommitmentProcessed, parseCommitment("processed"))
	assert.Equal(t, rpc.CommitmentFinalized, parseCommitment("Finalized"))
	assert.Equal(t, rpc.CommitmentConfirmed, parseCommitment("confirmed"))
	assert.Equal(t, rpc.CommitmentConfirmed, parseCommitment(""))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(errors.New("503 Service Unavailable")))
	assert.True(t, isTransient(errors.New("dial tcp: i/o timeout")))
	assert.True(t, isTransient(context.DeadlineExceeded))
	assert.False(t, isTransient(context.Canceled))
	assert.False(t, isTransient(rpc.ErrNotFound))
	assert.False(t, isTransient(errors.New("invalid param: unrecognized Pubkey")))
}
