package solana

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sethvargo/go-retry"

	"github.com/actioncore/blink-backend/pkg/config"
	"github.com/actioncore/blink-backend/pkg/logger"
)

// ErrAccountNotFound is returned when an on-chain account does not exist.
var ErrAccountNotFound = errors.New("account not found")

// maxTxVersion lets GetTransaction return versioned transactions.
var maxTxVersion uint64 = 0

// Client wraps the Solana JSON-RPC client with the commitment and bounded
// retry policy used across the platform. Network failures and node errors
// are retried; malformed inputs and not-found results are not.
type Client struct {
	rpc        rpcCaller
	cfg        config.SolanaConfig
	commitment rpc.CommitmentType
	logg       *logger.Logger
	onRetry    func()
}

type rpcCaller interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	GetAccountInfoWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetAccountInfoOpts) (*rpc.GetAccountInfoResult, error)
	GetTokenSupply(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenSupplyResult, error)
	GetTransaction(ctx context.Context, signature solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error)
}

// Option customizes the client.
type Option func(*Client)

// WithRetryHook registers a callback fired on every retried RPC attempt.
func WithRetryHook(fn func()) Option {
	return func(c *Client) { c.onRetry = fn }
}

// New builds a client for the configured RPC endpoint.
func New(cfg config.SolanaConfig, logg *logger.Logger, opts ...Option) *Client {
	c := &Client{
		rpc:        rpc.New(cfg.RPCURL),
		cfg:        cfg,
		commitment: parseCommitment(cfg.Commitment),
		logg:       logg,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func parseCommitment(value string) rpc.CommitmentType {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "processed":
		return rpc.CommitmentProcessed
	case "finalized":
		return rpc.CommitmentFinalized
	default:
		return rpc.CommitmentConfirmed
	}
}

// Commitment exposes the configured commitment level.
func (c *Client) Commitment() rpc.CommitmentType {
	return c.commitment
}

// LatestBlockhash fetches a fresh blockhash at the configured commitment.
func (c *Client) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	var hash solana.Hash
	err := c.withRetry(ctx, "getLatestBlockhash", func(ctx context.Context) error {
		out, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
		if err != nil {
			return err
		}
		hash = out.Value.Blockhash
		return nil
	})
	return hash, err
}

// AccountExists reports whether the account has been created on chain.
func (c *Client) AccountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	exists := false
	err := c.withRetry(ctx, "getAccountInfo", func(ctx context.Context) error {
		out, err := c.rpc.GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{
			Commitment: c.commitment,
		})
		if err != nil {
			if errors.Is(err, rpc.ErrNotFound) {
				exists = false
				return nil
			}
			return err
		}
		exists = out != nil && out.Value != nil
		return nil
	})
	return exists, err
}

// TokenDecimals reads the mint's decimal count from the chain.
func (c *Client) TokenDecimals(ctx context.Context, mint solana.PublicKey) (int, error) {
	decimals := 0
	err := c.withRetry(ctx, "getTokenSupply", func(ctx context.Context) error {
		out, err := c.rpc.GetTokenSupply(ctx, mint, c.commitment)
		if err != nil {
			if errors.Is(err, rpc.ErrNotFound) {
				return ErrAccountNotFound
			}
			return err
		}
		if out == nil || out.Value == nil {
			return ErrAccountNotFound
		}
		decimals = int(out.Value.Decimals)
		return nil
	})
	return decimals, err
}

// FetchTransaction retrieves and decodes a confirmed transaction by signature.
func (c *Client) FetchTransaction(ctx context.Context, signature solana.Signature) (*solana.Transaction, error) {
	var tx *solana.Transaction
	err := c.withRetry(ctx, "getTransaction", func(ctx context.Context) error {
		out, err := c.rpc.GetTransaction(ctx, signature, &rpc.GetTransactionOpts{
			Encoding:                       solana.EncodingBase64,
			Commitment:                     c.commitment,
			MaxSupportedTransactionVersion: &maxTxVersion,
		})
		if err != nil {
			if errors.Is(err, rpc.ErrNotFound) {
				return ErrAccountNotFound
			}
			return err
		}
		if out == nil || out.Transaction == nil {
			return ErrAccountNotFound
		}
		decoded, err := out.Transaction.GetTransaction()
		if err != nil {
			return fmt.Errorf("decode transaction: %w", err)
		}
		tx = decoded
		return nil
	})
	return tx, err
}

// withRetry applies bounded exponential backoff around an RPC call. Only
// transient failures are retried; deterministic failures surface immediately.
func (c *Client) withRetry(ctx context.Context, method string, fn func(ctx context.Context) error) error {
	maxRetries := c.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	baseDelay := c.cfg.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = 250 * time.Millisecond
	}

	backoff := retry.WithMaxRetries(uint64(maxRetries), retry.NewExponential(baseDelay))

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		callCtx := ctx
		if c.cfg.RequestTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
			defer cancel()
		}

		attempt++
		err := fn(callCtx)
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		if attempt > 1 && c.onRetry != nil {
			c.onRetry()
		}
		if c.logg != nil {
			logCtx := c.logg.WithFields(ctx, map[string]any{
				"method":  method,
				"attempt": attempt,
			})
			c.logg.Warn(logCtx, "solana rpc call failed, will retry")
		}
		return retry.RetryableError(err)
	})
}

// isTransient classifies RPC failures. Network errors, timeouts, and node
// unavailability are worth retrying; everything else is deterministic.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAccountNotFound) || errors.Is(err, rpc.ErrNotFound) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporarily unavailable",
		"too many requests",
		"502",
		"503",
		"504",
		"node is behind",
		"eof",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
