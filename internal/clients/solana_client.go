package clients

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
)

// SolanaClient thin wrapper over the Solana JSON-RPC API.
type SolanaClient struct {
	rpc *rpc.Client
}

// NewSolanaClient creates an RPC client for endpoint.
func NewSolanaClient(endpoint string) *SolanaClient {
	return &SolanaClient{rpc: rpc.New(endpoint)}
}

// LatestBlockhash returns a recent finalized blockhash for new transactions.
func (c *SolanaClient) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	out, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Hash{}, errors.Wrap(err, "getLatestBlockhash")
	}
	if out == nil || out.Value == nil {
		return solana.Hash{}, errors.New("getLatestBlockhash: empty response")
	}
	return out.Value.Blockhash, nil
}

// AccountExists reports whether account is initialised on chain.
func (c *SolanaClient) AccountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	out, err := c.rpc.GetAccountInfo(ctx, account)
	if errors.Is(err, rpc.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "getAccountInfo %s", account)
	}
	return out != nil && out.Value != nil, nil
}
