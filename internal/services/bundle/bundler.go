// Package bundle assembles swap transactions with the tip and reserve transfers
// into one Jito bundle and submits it for all-or-nothing execution.
package bundle

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/basket/internal/domain"
	"github.com/vadiminshakov/basket/internal/signer"
)

// DefaultMaxSize Jito accepts at most five transactions per bundle.
const DefaultMaxSize = 5

// BuildError the auxiliary transaction could not be constructed.
type BuildError struct {
	Err error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build auxiliary transaction: %v", e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// SubmissionError the relay rejected the bundle or could not be reached.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit bundle: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

type chain interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	AccountExists(ctx context.Context, account solana.PublicKey) (bool, error)
}

type relay interface {
	SendBundle(ctx context.Context, encoded []string) (string, error)
}

// Config fixed parameters of the auxiliary transaction and the bundle.
type Config struct {
	// TipAccounts receive TipLamports each in every bundle.
	TipAccounts []solana.PublicKey
	TipLamports uint64
	// ReserveAccount owner of the token account that receives reserve transfers.
	ReserveAccount solana.PublicKey
	// StableMint mint of the asset moved to the reserve.
	StableMint     solana.PublicKey
	StableDecimals int32
	// MaxSize maximum number of transactions in one bundle.
	MaxSize int
}

// Bundler builds auxiliary transactions and submits bundles.
type Bundler struct {
	cfg   Config
	chain chain
	relay relay
	l     *zap.Logger
}

// NewBundler creates a bundler. MaxSize below 2 falls back to DefaultMaxSize,
// a bundle needs room for at least one swap and the auxiliary transaction.
func NewBundler(l *zap.Logger, cfg Config, chain chain, relay relay) *Bundler {
	if cfg.MaxSize < 2 {
		cfg.MaxSize = DefaultMaxSize
	}
	return &Bundler{cfg: cfg, chain: chain, relay: relay, l: l}
}

// MaxSize maximum number of transactions per bundle.
func (b *Bundler) MaxSize() int {
	return b.cfg.MaxSize
}

// BuildAuxiliary returns a signed transaction with the tip transfers and, when
// reserve is not nil, a transfer of reserve stable units to the reserve account.
// The reserve token account is created first if it does not exist yet.
func (b *Bundler) BuildAuxiliary(ctx context.Context, s signer.Signer, reserve *decimal.Decimal) (*solana.Transaction, error) {
	tx, err := b.buildAuxiliary(ctx, s, reserve)
	if err != nil {
		return nil, &BuildError{Err: err}
	}
	return tx, nil
}

func (b *Bundler) buildAuxiliary(ctx context.Context, s signer.Signer, reserve *decimal.Decimal) (*solana.Transaction, error) {
	owner := s.PublicKey()

	instructions := make([]solana.Instruction, 0, len(b.cfg.TipAccounts)+2)
	for _, tip := range b.cfg.TipAccounts {
		instructions = append(instructions, system.NewTransferInstruction(b.cfg.TipLamports, owner, tip).Build())
	}

	if reserve != nil {
		reserveIxs, err := b.reserveInstructions(ctx, owner, *reserve)
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, reserveIxs...)
	}

	if len(instructions) == 0 {
		return nil, errors.New("auxiliary transaction has no instructions")
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

func (b *Bundler) reserveInstructions(ctx context.Context, owner solana.PublicKey, amount decimal.Decimal) ([]solana.Instruction, error) {
	units, err := domain.ToBaseUnits(amount, b.cfg.StableDecimals)
	if err != nil {
		return nil, errors.Wrap(err, "reserve amount")
	}
	if units == 0 {
		return nil, errors.Errorf("reserve amount %s rounds to zero", amount)
	}

	source, _, err := solana.FindAssociatedTokenAddress(owner, b.cfg.StableMint)
	if err != nil {
		return nil, errors.Wrap(err, "derive source token account")
	}
	destination, _, err := solana.FindAssociatedTokenAddress(b.cfg.ReserveAccount, b.cfg.StableMint)
	if err != nil {
		return nil, errors.Wrap(err, "derive reserve token account")
	}

	exists, err := b.chain.AccountExists(ctx, destination)
	if err != nil {
		return nil, err
	}

	var out []solana.Instruction
	if !exists {
		b.l.Info("reserve token account does not exist, creating it", zap.String("account", destination.String()))
		out = append(out, associatedtokenaccount.NewCreateInstruction(owner, b.cfg.ReserveAccount, b.cfg.StableMint).Build())
	}
	out = append(out, token.NewTransferInstruction(units, source, destination, owner, []solana.PublicKey{}).Build())

	return out, nil
}

// Assemble orders swaps before the auxiliary transaction and enforces the bundle
// size. Swaps are expected in priority order; those beyond the limit are dropped
// for this cycle. The auxiliary transaction is always kept.
func (b *Bundler) Assemble(swaps []*solana.Transaction, aux *solana.Transaction) []*solana.Transaction {
	maxSwaps := b.cfg.MaxSize - 1
	if len(swaps) > maxSwaps {
		b.l.Warn("bundle size limit reached, dropping lowest priority swaps",
			zap.Int("swaps", len(swaps)),
			zap.Int("kept", maxSwaps),
			zap.Int("dropped", len(swaps)-maxSwaps))
		swaps = swaps[:maxSwaps]
	}

	units := make([]*solana.Transaction, 0, len(swaps)+1)
	units = append(units, swaps...)
	return append(units, aux)
}

// Submit serializes units and sends them as one bundle. It returns the bundle id.
func (b *Bundler) Submit(ctx context.Context, units []*solana.Transaction) (string, error) {
	if len(units) == 0 {
		return "", &SubmissionError{Err: errors.New("empty bundle")}
	}
	if len(units) > b.cfg.MaxSize {
		return "", &SubmissionError{Err: errors.Errorf("bundle has %d transactions, limit is %d", len(units), b.cfg.MaxSize)}
	}

	encoded := make([]string, 0, len(units))
	for i, tx := range units {
		raw, err := tx.MarshalBinary()
		if err != nil {
			return "", &SubmissionError{Err: errors.Wrapf(err, "serialize transaction %d", i)}
		}
		encoded = append(encoded, base58.Encode(raw))
	}

	b.l.Info("sending transaction bundle", zap.Int("transactions", len(encoded)))
	id, err := b.relay.SendBundle(ctx, encoded)
	if err != nil {
		return "", &SubmissionError{Err: err}
	}

	return id, nil
}
