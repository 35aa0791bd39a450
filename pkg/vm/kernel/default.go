package kernel

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"

	"github.com/cobaltchain/cobalt-fvm/internal/types"
	"github.com/cobaltchain/cobalt-fvm/pkg/externs"
	"github.com/cobaltchain/cobalt-fvm/pkg/gas"
)

// UnsealedSectorCodec is the CID codec for unsealed sector
// commitments.
const UnsealedSectorCodec = cid.FilCommitmentUnsealed

// MaxReturnValueSize bounds a single value on the return stack.
const MaxReturnValueSize = 1 << 20

// MaxReturnValues bounds the depth of the return stack.
const MaxReturnValues = 64

// DefaultKernel is the standard capability implementation. One kernel
// serves one call frame and charges that frame's gas tracker; like the
// tracker it is exclusively owned and performs no locking.
type DefaultKernel struct {
	tracker  *gas.GasTracker
	prices   PriceList
	verifier ProofVerifier
	externs  externs.Externs

	returnStack [][]byte
}

// New creates a kernel for one call frame. The tracker and price list
// are required; verifier and ext may be nil when the frame cannot
// reach the corresponding operations.
func New(tracker *gas.GasTracker, prices PriceList, verifier ProofVerifier, ext externs.Externs) *DefaultKernel {
	return &DefaultKernel{
		tracker:  tracker,
		prices:   prices,
		verifier: verifier,
		externs:  ext,
	}
}

// GasUsed implements GasKernel.
func (k *DefaultKernel) GasUsed() gas.Gas {
	return k.tracker.Used()
}

// GasAvailable implements GasKernel.
func (k *DefaultKernel) GasAvailable() gas.Gas {
	return k.tracker.Available()
}

// VerifySignature implements CryptoKernel.
func (k *DefaultKernel) VerifySignature(sig *types.Signature, signer types.Address, plaintext []byte) (bool, error) {
	t, err := k.tracker.ApplyCharge(k.prices.OnVerifySignature(sig.Type, len(plaintext)))
	if err != nil {
		return false, err
	}
	defer t.Stop()
	ok, err := sig.Verify(signer, plaintext)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrIllegalArgument, err)
	}
	return ok, nil
}

// HashBlake2b implements CryptoKernel.
func (k *DefaultKernel) HashBlake2b(data []byte) ([32]byte, error) {
	t, err := k.tracker.ApplyCharge(k.prices.OnHashing(HashBlake2b, len(data)))
	if err != nil {
		return [32]byte{}, err
	}
	defer t.Stop()
	return blake2b.Sum256(data), nil
}

// Hash implements CryptoKernel.
func (k *DefaultKernel) Hash(code uint64, data []byte) (mh.Multihash, error) {
	t, err := k.tracker.ApplyCharge(k.prices.OnHashing(code, len(data)))
	if err != nil {
		return nil, err
	}
	defer t.Stop()

	var digest []byte
	switch code {
	case HashSha256:
		d := sha256.Sum256(data)
		digest = d[:]
	case HashBlake2b:
		d := blake2b.Sum256(data)
		digest = d[:]
	case HashKeccak256:
		h := sha3.NewLegacyKeccak256()
		h.Write(data)
		digest = h.Sum(nil)
	case HashBlake3:
		h := blake3.New()
		h.Write(data)
		digest = h.Sum(nil)
	default:
		return nil, fmt.Errorf("%w: unsupported multihash code %#x", ErrIllegalArgument, code)
	}

	hash, err := mh.Encode(digest, code)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding multihash: %v", ErrFatal, err)
	}
	return mh.Multihash(hash), nil
}

// ComputeUnsealedSectorCID implements CryptoKernel. The commitment is
// the blake2b-256 digest of the canonical piece encoding: the proof
// type followed by each piece's size and commitment, in order.
func (k *DefaultKernel) ComputeUnsealedSectorCID(proof types.RegisteredSealProof, pieces []types.PieceInfo) (cid.Cid, error) {
	t, err := k.tracker.ApplyCharge(k.prices.OnComputeUnsealedSectorCID(proof, pieces))
	if err != nil {
		return cid.Undef, err
	}
	defer t.Stop()

	if proof < types.SealProofStacked2K || proof > types.SealProofStacked64G {
		return cid.Undef, fmt.Errorf("%w: unknown seal proof type %d", ErrIllegalArgument, proof)
	}

	h, err := blake2b.New256(nil)
	if err != nil {
		return cid.Undef, fmt.Errorf("%w: %v", ErrFatal, err)
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(proof))
	h.Write(buf[:])
	for i := range pieces {
		binary.BigEndian.PutUint64(buf[:], pieces[i].Size)
		h.Write(buf[:])
		h.Write(pieces[i].PieceCID.Bytes())
	}

	hash, err := mh.Encode(h.Sum(nil), HashBlake2b)
	if err != nil {
		return cid.Undef, fmt.Errorf("%w: encoding multihash: %v", ErrFatal, err)
	}
	return cid.NewCidV1(UnsealedSectorCodec, mh.Multihash(hash)), nil
}

// VerifySeal implements CryptoKernel.
func (k *DefaultKernel) VerifySeal(info *types.SealVerifyInfo) (bool, error) {
	t, err := k.tracker.ApplyCharge(k.prices.OnVerifySeal(info))
	if err != nil {
		return false, err
	}
	defer t.Stop()
	if k.verifier == nil {
		return false, fmt.Errorf("%w: no proof verifier configured", ErrUnsupported)
	}
	return k.verifier.VerifySeal(info)
}

// VerifyPoSt implements CryptoKernel.
func (k *DefaultKernel) VerifyPoSt(info *types.WindowPoStVerifyInfo) (bool, error) {
	t, err := k.tracker.ApplyCharge(k.prices.OnVerifyPoSt(info))
	if err != nil {
		return false, err
	}
	defer t.Stop()
	if k.verifier == nil {
		return false, fmt.Errorf("%w: no proof verifier configured", ErrUnsupported)
	}
	return k.verifier.VerifyPoSt(info)
}

// VerifyConsensusFault implements CryptoKernel. The extern reports the
// gas its evaluation consumed; that cost is charged here on top of the
// operation's base price.
func (k *DefaultKernel) VerifyConsensusFault(h1, h2, extra []byte) (*types.ConsensusFault, error) {
	t, err := k.tracker.ApplyCharge(k.prices.OnVerifyConsensusFault())
	if err != nil {
		return nil, err
	}
	defer t.Stop()
	if k.externs == nil {
		return nil, fmt.Errorf("%w: no externs configured", ErrUnsupported)
	}

	fault, gasUsed, err := k.externs.VerifyConsensusFault(h1, h2, extra)
	if _, chargeErr := k.tracker.Charge("OnVerifyConsensusFaultExtern", gasUsed); chargeErr != nil {
		return nil, chargeErr
	}
	if err != nil {
		return nil, fmt.Errorf("consensus fault evaluation: %w", err)
	}
	return fault, nil
}

// VerifyAggregateSeals implements CryptoKernel.
func (k *DefaultKernel) VerifyAggregateSeals(agg *types.AggregateSealVerifyProofAndInfos) (bool, error) {
	t, err := k.tracker.ApplyCharge(k.prices.OnVerifyAggregateSeals(agg))
	if err != nil {
		return false, err
	}
	defer t.Stop()
	if k.verifier == nil {
		return false, fmt.Errorf("%w: no proof verifier configured", ErrUnsupported)
	}
	return k.verifier.VerifyAggregateSeals(agg)
}

// BatchVerifySeals implements CryptoKernel. The batching semantics are
// deliberately left undefined; see the interface documentation.
func (k *DefaultKernel) BatchVerifySeals(batch []BatchSealRequest) ([][]bool, error) {
	return nil, fmt.Errorf("%w: batch seal verification", ErrUnsupported)
}

// ReturnPush implements ReturnKernel.
func (k *DefaultKernel) ReturnPush(data []byte) error {
	if len(data) > MaxReturnValueSize {
		return fmt.Errorf("%w: return value of %d bytes exceeds limit", ErrFatal, len(data))
	}
	if len(k.returnStack) >= MaxReturnValues {
		return fmt.Errorf("%w: return stack overflow", ErrFatal)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	k.returnStack = append(k.returnStack, cp)
	return nil
}

// ReturnPeekSize implements ReturnKernel.
func (k *DefaultKernel) ReturnPeekSize() (uint64, bool) {
	if len(k.returnStack) == 0 {
		return 0, false
	}
	return uint64(len(k.returnStack[len(k.returnStack)-1])), true
}

// ReturnPop implements ReturnKernel.
func (k *DefaultKernel) ReturnPop() ([]byte, bool) {
	if len(k.returnStack) == 0 {
		return nil, false
	}
	top := k.returnStack[len(k.returnStack)-1]
	k.returnStack = k.returnStack[:len(k.returnStack)-1]
	return top, true
}
