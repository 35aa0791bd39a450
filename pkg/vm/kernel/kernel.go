// Package kernel exposes the host capability surface that sandboxed
// actor code reaches through the syscall bridge: signature checks,
// hashing, sector proof verification, and consensus-fault detection.
//
// Every operation is byte-for-byte deterministic across conforming
// implementations, since its results feed consensus. Gas for each
// operation is charged here, against the calling frame's tracker,
// using prices supplied by the PriceList collaborator; the syscall
// bridge itself never charges gas.
package kernel

import (
	"errors"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"

	"github.com/cobaltchain/cobalt-fvm/internal/types"
	"github.com/cobaltchain/cobalt-fvm/pkg/gas"
)

// Execution errors. Everything fatal to the current guest call wraps
// one of these so the bridge can classify it into an abort.
var (
	// ErrOutOfGas aborts the call stack when a charge exceeds the
	// frame's limit. Usage stays clamped at the limit for billing.
	ErrOutOfGas = gas.ErrOutOfGas

	// ErrIllegalArgument is returned for arguments that decoded but
	// cannot be evaluated (unknown hash code, bad proof type).
	ErrIllegalArgument = errors.New("illegal argument")

	// ErrUnsupported is returned for capability operations that are
	// declared but have no defined algorithm.
	ErrUnsupported = errors.New("unsupported operation")

	// ErrFatal marks an internal contract violation: a defect in the
	// host or bridge, never a consequence of guest input.
	ErrFatal = errors.New("fatal execution error")
)

// Supported multihash codes for the generalized hash operation.
const (
	HashSha256    = uint64(mh.SHA2_256)
	HashBlake2b   = uint64(mh.BLAKE2B_MIN + 31)
	HashKeccak256 = uint64(mh.KECCAK_256)
	HashBlake3    = uint64(mh.BLAKE3)
)

// BatchSealRequest groups the seal descriptors of one miner for batch
// verification.
type BatchSealRequest struct {
	Miner types.Address
	Infos []types.SealVerifyInfo
}

// Kernel is the capability interface the syscall bridge dispatches to.
type Kernel interface {
	CryptoKernel
	ReturnKernel
	GasKernel
}

// CryptoKernel exposes the cryptographic and consensus verification
// operations.
type CryptoKernel interface {
	// VerifySignature checks sig over plaintext for the signer
	// address. A mismatching signature is (false, nil), not an error.
	VerifySignature(sig *types.Signature, signer types.Address, plaintext []byte) (bool, error)

	// HashBlake2b computes the 256-bit blake2b digest of data.
	HashBlake2b(data []byte) ([32]byte, error)

	// Hash computes a digest of data under the given multihash code
	// and returns the full multihash bytes.
	Hash(code uint64, data []byte) (mh.Multihash, error)

	// ComputeUnsealedSectorCID computes the unsealed sector commitment
	// for the given pieces.
	ComputeUnsealedSectorCID(proof types.RegisteredSealProof, pieces []types.PieceInfo) (cid.Cid, error)

	// VerifySeal verifies a single sector seal proof.
	VerifySeal(info *types.SealVerifyInfo) (bool, error)

	// VerifyPoSt verifies a window proof-of-spacetime.
	VerifyPoSt(info *types.WindowPoStVerifyInfo) (bool, error)

	// VerifyConsensusFault checks whether two serialized block headers
	// (plus an optional disambiguating extra header) prove a consensus
	// fault. The outcome is tri-state: (fault, nil) when a fault is
	// proven, (nil, nil) when none is found, and (nil, err) when the
	// evaluation itself failed.
	VerifyConsensusFault(h1, h2, extra []byte) (*types.ConsensusFault, error)

	// VerifyAggregateSeals verifies an aggregated seal proof.
	VerifyAggregateSeals(agg *types.AggregateSealVerifyProofAndInfos) (bool, error)

	// BatchVerifySeals maps each request to the per-sector outcomes of
	// its seal descriptors, aligned with the input order. The grouping
	// and scheduling semantics are an open extension point; the
	// default kernel reports ErrUnsupported.
	BatchVerifySeals(batch []BatchSealRequest) ([][]bool, error)
}

// ReturnKernel is the auxiliary return-value stack. Variable-size
// syscall results are pushed here and retrieved by the guest through a
// separate call, keeping the fixed-width syscall return path narrow.
type ReturnKernel interface {
	// ReturnPush pushes a value for later retrieval.
	ReturnPush(data []byte) error

	// ReturnPeekSize reports the size of the topmost pending value.
	// The second result is false when nothing is pending.
	ReturnPeekSize() (uint64, bool)

	// ReturnPop removes and returns the topmost pending value. The
	// second result is false when nothing is pending.
	ReturnPop() ([]byte, bool)
}

// GasKernel exposes the frame's gas accounting state.
type GasKernel interface {
	// GasUsed returns the gas consumed by the frame so far.
	GasUsed() gas.Gas

	// GasAvailable returns the gas remaining in the frame.
	GasAvailable() gas.Gas
}

// PriceList prices capability operations. The concrete table lives
// with the network-version pricing layer, outside this core.
type PriceList interface {
	OnVerifySignature(sigType types.SigType, plaintextSize int) gas.Charge
	OnHashing(code uint64, dataSize int) gas.Charge
	OnComputeUnsealedSectorCID(proof types.RegisteredSealProof, pieces []types.PieceInfo) gas.Charge
	OnVerifySeal(info *types.SealVerifyInfo) gas.Charge
	OnVerifyPoSt(info *types.WindowPoStVerifyInfo) gas.Charge
	OnVerifyConsensusFault() gas.Charge
	OnVerifyAggregateSeals(agg *types.AggregateSealVerifyProofAndInfos) gas.Charge
}

// ProofVerifier performs the actual storage-proof evaluation. Proof
// systems are heavyweight external machinery; the kernel only defines
// the deterministic contract.
type ProofVerifier interface {
	VerifySeal(info *types.SealVerifyInfo) (bool, error)
	VerifyPoSt(info *types.WindowPoStVerifyInfo) (bool, error)
	VerifyAggregateSeals(agg *types.AggregateSealVerifyProofAndInfos) (bool, error)
}
