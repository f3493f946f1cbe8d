// Package signer adapts a wallet key to the signing capability the rebalancer needs.
package signer

import (
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

const privateKeyLength = 64

// Signer pays for and signs transactions on behalf of the wallet.
type Signer interface {
	PublicKey() solana.PublicKey
	Sign(tx *solana.Transaction) error
}

// Keypair signs transactions with an in-memory ed25519 key.
type Keypair struct {
	key solana.PrivateKey
}

// FromBase58 loads a keypair from its base58-encoded 64 byte secret key.
func FromBase58(secret string) (*Keypair, error) {
	if secret == "" {
		return nil, errors.New("private key is empty")
	}
	key, err := solana.PrivateKeyFromBase58(secret)
	if err != nil {
		return nil, errors.Wrap(err, "invalid private key format")
	}
	if len(key) != privateKeyLength {
		return nil, errors.Errorf("invalid private key length %d, want %d", len(key), privateKeyLength)
	}
	return &Keypair{key: key}, nil
}

// New wraps an existing private key.
func New(key solana.PrivateKey) *Keypair {
	return &Keypair{key: key}
}

// PublicKey wallet identity.
func (k *Keypair) PublicKey() solana.PublicKey {
	return k.key.PublicKey()
}

// Sign adds the wallet signature to tx.
func (k *Keypair) Sign(tx *solana.Transaction) error {
	owner := k.key.PublicKey()
	_, err := tx.Sign(func(pub solana.PublicKey) *solana.PrivateKey {
		if pub.Equals(owner) {
			return &k.key
		}
		return nil
	})
	return errors.Wrap(err, "sign transaction")
}
