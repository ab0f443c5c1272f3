// Package sig implements ionova's multi-algorithm Signature Engine: pure,
// side-effect-free verification over ECDSA (secp256k1), Dilithium5,
// SPHINCS+-SHA2-256f-robust, and Hybrid (ECDSA + one PQ leg) signatures.
package sig

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/cloudflare/circl/sign/dilithium"
	"github.com/cloudflare/circl/sign/sphincs"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	log "github.com/erigontech/erigon-lib/log/v3"

	"github.com/vipechan/ionova/address"
)

// Algorithm names the supported signature schemes.
type Algorithm uint8

const (
	AlgorithmECDSA Algorithm = iota
	AlgorithmDilithium
	AlgorithmSPHINCSPlus
	AlgorithmHybrid
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmECDSA:
		return "ECDSA"
	case AlgorithmDilithium:
		return "Dilithium"
	case AlgorithmSPHINCSPlus:
		return "SPHINCSPlus"
	case AlgorithmHybrid:
		return "Hybrid"
	default:
		return "Unknown"
	}
}

// Failure kinds the Signature Engine can report (§4.1).
var (
	ErrWrongKeyVariant = errors.New("sig: wrong public key variant for this signature algorithm")
	ErrBadSize         = errors.New("sig: signature or public key has an invalid size for its algorithm")
	ErrParse           = errors.New("sig: failed to parse signature or public key bytes")
	ErrCryptoFail      = errors.New("sig: signature verification raised a cryptographic error")
)

var (
	dilithiumScheme = dilithium.Mode5.Scheme()
	sphincsScheme   = sphincs.Sha2256fRobust.Scheme()
)

// Signature is a tagged union over the four supported algorithms.
type Signature struct {
	algo Algorithm

	// ECDSA fields.
	r [32]byte
	s [32]byte
	v byte

	// Dilithium / SPHINCSPlus field.
	data []byte

	// Hybrid fields.
	ecdsaLeg *Signature
	pqLeg    *Signature
}

// NewECDSASignature builds a compact (r, s, v) ECDSA signature envelope.
func NewECDSASignature(r, s [32]byte, v byte) Signature {
	return Signature{algo: AlgorithmECDSA, r: r, s: s, v: v}
}

// NewDilithiumSignature wraps raw Dilithium5 signature bytes.
func NewDilithiumSignature(data []byte) Signature {
	return Signature{algo: AlgorithmDilithium, data: data}
}

// NewSPHINCSPlusSignature wraps raw SPHINCS+ signature bytes.
func NewSPHINCSPlusSignature(data []byte) Signature {
	return Signature{algo: AlgorithmSPHINCSPlus, data: data}
}

// NewHybridSignature pairs an ECDSA leg with a PQ leg.
func NewHybridSignature(ecdsaLeg, pqLeg Signature) Signature {
	return Signature{algo: AlgorithmHybrid, ecdsaLeg: &ecdsaLeg, pqLeg: &pqLeg}
}

// Algorithm reports which variant this signature holds.
func (s Signature) Algorithm() Algorithm { return s.algo }

// Size reports the signature's encoded size in bytes.
func (s Signature) Size() int {
	switch s.algo {
	case AlgorithmECDSA:
		return 65
	case AlgorithmDilithium, AlgorithmSPHINCSPlus:
		return len(s.data)
	case AlgorithmHybrid:
		return s.ecdsaLeg.Size() + s.pqLeg.Size()
	default:
		return 0
	}
}

// PublicKey is a tagged union over the four supported key algorithms.
type PublicKey struct {
	algo Algorithm

	ecdsaBytes [33]byte
	data       []byte

	ecdsaLeg *PublicKey
	pqLeg    *PublicKey
}

// NewECDSAPublicKey wraps a 33-byte compressed secp256k1 public key.
func NewECDSAPublicKey(b [33]byte) PublicKey {
	return PublicKey{algo: AlgorithmECDSA, ecdsaBytes: b}
}

// NewDilithiumPublicKey wraps raw Dilithium5 public key bytes.
func NewDilithiumPublicKey(data []byte) PublicKey {
	return PublicKey{algo: AlgorithmDilithium, data: data}
}

// NewSPHINCSPlusPublicKey wraps raw SPHINCS+ public key bytes.
func NewSPHINCSPlusPublicKey(data []byte) PublicKey {
	return PublicKey{algo: AlgorithmSPHINCSPlus, data: data}
}

// NewHybridPublicKey pairs an ECDSA leg with a PQ leg.
func NewHybridPublicKey(ecdsaLeg, pqLeg PublicKey) PublicKey {
	return PublicKey{algo: AlgorithmHybrid, ecdsaLeg: &ecdsaLeg, pqLeg: &pqLeg}
}

// Algorithm reports which variant this public key holds.
func (pk PublicKey) Algorithm() Algorithm { return pk.algo }

// ToAddress derives the ionova address owning this public key (§4.1, §3).
func (pk PublicKey) ToAddress() address.Address {
	switch pk.algo {
	case AlgorithmECDSA:
		return address.FromECDSAPublicKey(pk.ecdsaBytes[:])
	case AlgorithmDilithium, AlgorithmSPHINCSPlus:
		return address.FromPQPublicKey(pk.data)
	case AlgorithmHybrid:
		return pk.ecdsaLeg.ToAddress()
	default:
		return address.Address{}
	}
}

// Verify checks signature against message under public key, dispatching
// by algorithm. It never panics; all failure modes surface as one of the
// sentinel errors above, or a (false, nil) cryptographic "no match".
func Verify(message []byte, signature Signature, publicKey PublicKey) (bool, error) {
	log.Debug("sig: starting verification", "algorithm", signature.Algorithm().String(), "messageLen", len(message))

	ok, err := verifyDispatch(message, signature, publicKey)

	switch {
	case err != nil:
		log.Error("sig: verification error", "algorithm", signature.Algorithm().String(), "err", err)
	case ok:
		log.Info("sig: verification succeeded", "algorithm", signature.Algorithm().String())
	default:
		log.Warn("sig: verification failed: invalid signature", "algorithm", signature.Algorithm().String())
	}
	return ok, err
}

func verifyDispatch(message []byte, signature Signature, publicKey PublicKey) (bool, error) {
	switch signature.algo {
	case AlgorithmECDSA:
		return verifyECDSA(message, signature, publicKey)
	case AlgorithmDilithium:
		return verifyDilithium(message, signature, publicKey)
	case AlgorithmSPHINCSPlus:
		return verifySPHINCS(message, signature, publicKey)
	case AlgorithmHybrid:
		return verifyHybrid(message, signature, publicKey)
	default:
		return false, fmt.Errorf("%w: unknown signature algorithm %d", ErrParse, signature.algo)
	}
}

func verifyECDSA(message []byte, signature Signature, publicKey PublicKey) (bool, error) {
	if publicKey.algo != AlgorithmECDSA {
		return false, ErrWrongKeyVariant
	}

	msgHash := sha256.Sum256(message)

	pubKey, err := secp256k1.ParsePubKey(publicKey.ecdsaBytes[:])
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrParse, err)
	}

	// v is accepted per §4.1 but unused for verify — recovery is not
	// needed since the public key is supplied directly.
	sigR, sigS := new(secp256k1.ModNScalar), new(secp256k1.ModNScalar)
	sigR.SetByteSlice(signature.r[:])
	sigS.SetByteSlice(signature.s[:])
	sig := ecdsa.NewSignature(sigR, sigS)

	return sig.Verify(msgHash[:], pubKey), nil
}

const (
	dilithiumPublicKeySize = 2528
	dilithiumSignatureSize = 4595
)

func verifyDilithium(message []byte, signature Signature, publicKey PublicKey) (bool, error) {
	if publicKey.algo != AlgorithmDilithium {
		return false, ErrWrongKeyVariant
	}
	if len(publicKey.data) != dilithiumPublicKeySize {
		return false, fmt.Errorf("%w: dilithium public key size %d, want %d", ErrBadSize, len(publicKey.data), dilithiumPublicKeySize)
	}
	if len(signature.data) != dilithiumSignatureSize {
		return false, fmt.Errorf("%w: dilithium signature size %d, want %d", ErrBadSize, len(signature.data), dilithiumSignatureSize)
	}

	pk, err := dilithiumScheme.UnmarshalBinaryPublicKey(publicKey.data)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrParse, err)
	}

	return dilithiumScheme.Verify(pk, message, signature.data, nil), nil
}

func verifySPHINCS(message []byte, signature Signature, publicKey PublicKey) (bool, error) {
	if publicKey.algo != AlgorithmSPHINCSPlus {
		return false, ErrWrongKeyVariant
	}
	if len(publicKey.data) != sphincsScheme.PublicKeySize() {
		return false, fmt.Errorf("%w: sphincs+ public key size %d, want %d", ErrBadSize, len(publicKey.data), sphincsScheme.PublicKeySize())
	}
	if len(signature.data) != sphincsScheme.SignatureSize() {
		return false, fmt.Errorf("%w: sphincs+ signature size %d, want %d", ErrBadSize, len(signature.data), sphincsScheme.SignatureSize())
	}

	pk, err := sphincsScheme.UnmarshalBinaryPublicKey(publicKey.data)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrParse, err)
	}

	return sphincsScheme.Verify(pk, message, signature.data, nil), nil
}

func verifyHybrid(message []byte, signature Signature, publicKey PublicKey) (bool, error) {
	if publicKey.algo != AlgorithmHybrid {
		return false, ErrWrongKeyVariant
	}
	if signature.ecdsaLeg == nil || signature.pqLeg == nil {
		return false, fmt.Errorf("%w: hybrid signature missing a leg", ErrParse)
	}

	ecdsaOK, err := verifyDispatch(message, *signature.ecdsaLeg, *publicKey.ecdsaLeg)
	if err != nil {
		return false, err
	}
	pqOK, err := verifyDispatch(message, *signature.pqLeg, *publicKey.pqLeg)
	if err != nil {
		return false, err
	}
	return ecdsaOK && pqOK, nil
}
