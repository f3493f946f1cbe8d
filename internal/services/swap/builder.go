// Package swap builds signed swap transactions from rebalance legs using the
// Jupiter routing API.
package swap

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/basket/internal/clients"
	"github.com/vadiminshakov/basket/internal/domain"
	"github.com/vadiminshakov/basket/internal/signer"
)

// DefaultSlippageBps 1% slippage tolerance.
const DefaultSlippageBps = 100

// BuildError swap transaction for one leg could not be constructed.
type BuildError struct {
	Leg domain.Leg
	Err error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build swap %s->%s: %v", e.Leg.From, e.Leg.To, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

type router interface {
	Quote(ctx context.Context, r clients.QuoteRequest) (*clients.Quote, error)
	SwapInstructions(ctx context.Context, user string, quote *clients.Quote) (*clients.SwapInstructions, error)
}

type blockhashSource interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
}

// Builder turns legs into signed single-swap transactions.
type Builder struct {
	table       domain.AssetTable
	router      router
	chain       blockhashSource
	slippageBps int
	l           *zap.Logger
}

// NewBuilder creates a builder. A non-positive slippage falls back to DefaultSlippageBps.
func NewBuilder(l *zap.Logger, table domain.AssetTable, router router, chain blockhashSource, slippageBps int) *Builder {
	if slippageBps <= 0 {
		slippageBps = DefaultSlippageBps
	}
	return &Builder{
		table:       table,
		router:      router,
		chain:       chain,
		slippageBps: slippageBps,
		l:           l,
	}
}

// Build quotes the leg, fetches its instructions and returns a transaction signed by s.
// Routes are restricted to direct (single hop) swaps.
func (b *Builder) Build(ctx context.Context, s signer.Signer, leg domain.Leg) (*solana.Transaction, error) {
	tx, err := b.build(ctx, s, leg)
	if err != nil {
		return nil, &BuildError{Leg: leg, Err: err}
	}
	return tx, nil
}

func (b *Builder) build(ctx context.Context, s signer.Signer, leg domain.Leg) (*solana.Transaction, error) {
	from, ok := b.table.Get(leg.From)
	if !ok {
		return nil, errors.Errorf("unknown asset %s", leg.From)
	}
	to, ok := b.table.Get(leg.To)
	if !ok {
		return nil, errors.Errorf("unknown asset %s", leg.To)
	}

	amount, err := domain.ToBaseUnits(leg.Amount, from.Decimals)
	if err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, errors.Errorf("amount %s %s rounds to zero base units", leg.Amount, leg.From)
	}

	b.l.Info("creating swap transaction",
		zap.String("from", leg.From),
		zap.String("to", leg.To),
		zap.String("amount", leg.Amount.String()))

	quote, err := b.router.Quote(ctx, clients.QuoteRequest{
		InputMint:        from.Mint,
		OutputMint:       to.Mint,
		Amount:           amount,
		SlippageBps:      b.slippageBps,
		OnlyDirectRoutes: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "quote unavailable")
	}
	b.l.Debug("received quote",
		zap.String("in_amount", quote.InAmount),
		zap.String("out_amount", quote.OutAmount))

	owner := s.PublicKey()
	resp, err := b.router.SwapInstructions(ctx, owner.String(), quote)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get swap instructions")
	}

	instructions, err := assemble(resp)
	if err != nil {
		return nil, err
	}

	blockhash, err := b.chain.LatestBlockhash(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(owner))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create transaction")
	}
	if err := s.Sign(tx); err != nil {
		return nil, err
	}

	return tx, nil
}

// assemble orders instructions: compute budget, setup, swap, then optional cleanup.
func assemble(resp *clients.SwapInstructions) ([]solana.Instruction, error) {
	if resp == nil || resp.SwapInstruction == nil {
		return nil, errors.New("router returned no swap instruction")
	}

	raw := make([]clients.Instruction, 0, len(resp.ComputeBudgetInstructions)+len(resp.SetupInstructions)+2)
	raw = append(raw, resp.ComputeBudgetInstructions...)
	raw = append(raw, resp.SetupInstructions...)
	raw = append(raw, *resp.SwapInstruction)
	if resp.CleanupInstruction != nil {
		raw = append(raw, *resp.CleanupInstruction)
	}

	out := make([]solana.Instruction, 0, len(raw))
	for i, r := range raw {
		ix, err := toInstruction(r)
		if err != nil {
			return nil, errors.Wrapf(err, "instruction %d", i)
		}
		out = append(out, ix)
	}
	return out, nil
}

func toInstruction(r clients.Instruction) (solana.Instruction, error) {
	programID, err := solana.PublicKeyFromBase58(r.ProgramID)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid program id %q", r.ProgramID)
	}

	accounts := make(solana.AccountMetaSlice, 0, len(r.Accounts))
	for _, acc := range r.Accounts {
		pub, err := solana.PublicKeyFromBase58(acc.Pubkey)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid account %q", acc.Pubkey)
		}
		accounts = append(accounts, solana.NewAccountMeta(pub, acc.IsWritable, acc.IsSigner))
	}

	data, err := base64.StdEncoding.DecodeString(r.Data)
	if err != nil {
		return nil, errors.Wrap(err, "invalid instruction data")
	}

	return solana.NewInstruction(programID, accounts, data), nil
}
