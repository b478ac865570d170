package crypto

// signatures.go wraps sr25519 (schnorrkel), the key-store signature scheme
// actually used to sign extrinsics on the chain this node talks to. The key
// store itself (where the secret key material lives) is an external
// collaborator per spec.md's Non-goals; this package only turns a key pair
// and a message into a signature, or a signature into a yes/no answer.

import (
	"crypto/rand"
	"errors"

	schnorrkel "github.com/ChainSafe/go-schnorrkel"
)

const (
	PublicKeySize = 32
	SecretKeySize = 32
	SignatureSize = 64
)

type (
	PublicKey [PublicKeySize]byte
	SecretKey [SecretKeySize]byte
	Signature [SignatureSize]byte
)

var (
	ErrNilInput         = errors.New("cannot use nil input")
	ErrInvalidSignature = errors.New("invalid signature")
)

// signingContext is the domain-separation transcript label Substrate chains
// use for sr25519 account signatures.
const signingContext = "substrate"

// GenerateKeyPair creates a new sr25519 secret/public key pair.
func GenerateKeyPair() (sk SecretKey, pk PublicKey, err error) {
	var seed [32]byte
	if _, err = rand.Read(seed[:]); err != nil {
		return
	}
	return GenerateKeyPairDeterministic(seed)
}

// GenerateKeyPairDeterministic derives a key pair from 32 bytes of seed
// entropy, for reproducible test fixtures.
func GenerateKeyPairDeterministic(seed [32]byte) (sk SecretKey, pk PublicKey, err error) {
	msk, err := schnorrkel.NewMiniSecretKeyFromRaw(seed)
	if err != nil {
		return sk, pk, err
	}
	secret := msk.ExpandEd25519()
	secretEnc := secret.Encode()
	copy(sk[:], secretEnc[:])
	public := msk.Public()
	pubEnc := public.Encode()
	copy(pk[:], pubEnc[:])
	return sk, pk, nil
}

// SignHash signs data (already a digest, typically the Blake2b-256 hash of a
// SCALE-encoded extrinsic payload) with sk, under the chain's sr25519
// signing context.
func SignHash(data Hash, sk SecretKey) (sig Signature, err error) {
	secret := new(schnorrkel.SecretKey)
	if err = secret.Decode([32]byte(sk)); err != nil {
		return sig, err
	}
	transcript := schnorrkel.NewSigningContext([]byte(signingContext), data[:])
	s, err := secret.Sign(transcript)
	if err != nil {
		return sig, err
	}
	enc := s.Encode()
	copy(sig[:], enc[:])
	return sig, nil
}

// VerifyHash checks that sig is a valid sr25519 signature by pk over data.
func VerifyHash(data Hash, pk PublicKey, sig Signature) error {
	public := new(schnorrkel.PublicKey)
	if err := public.Decode([32]byte(pk)); err != nil {
		return err
	}
	s := new(schnorrkel.Signature)
	if err := s.Decode([64]byte(sig)); err != nil {
		return err
	}
	transcript := schnorrkel.NewSigningContext([]byte(signingContext), data[:])
	ok, err := public.Verify(s, transcript)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidSignature
	}
	return nil
}
