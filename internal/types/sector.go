package types

import "github.com/ipfs/go-cid"

// RegisteredSealProof identifies a seal proof circuit and sector size.
type RegisteredSealProof int64

// RegisteredPoStProof identifies a proof-of-spacetime circuit.
type RegisteredPoStProof int64

// Known seal proof types. The verifier decides which it accepts.
const (
	SealProofInvalid RegisteredSealProof = -1 + iota
	SealProofStacked2K
	SealProofStacked8M
	SealProofStacked512M
	SealProofStacked32G
	SealProofStacked64G
)

// Known PoSt proof types.
const (
	PoStProofInvalid RegisteredPoStProof = -1 + iota
	PoStProofWindow2K
	PoStProofWindow8M
	PoStProofWindow512M
	PoStProofWindow32G
	PoStProofWindow64G
)

// RegisteredAggregateProof identifies an aggregation scheme for seal
// proofs.
type RegisteredAggregateProof int64

// Known aggregation schemes.
const (
	AggregateInvalid RegisteredAggregateProof = -1 + iota
	AggregateSnarkPackV1
	AggregateSnarkPackV2
)

// SectorNumber identifies a sector within a miner's namespace.
type SectorNumber uint64

// ActorID is a numeric actor identifier (the payload of an ID address).
type ActorID uint64

// SectorID uniquely identifies a sector across all miners.
type SectorID struct {
	Miner  ActorID
	Number SectorNumber
}

// PieceInfo describes one deal piece within a sector: its padded size
// and its piece commitment.
type PieceInfo struct {
	Size     uint64
	PieceCID cid.Cid
}

// SealVerifyInfo carries everything needed to verify a single sector
// seal proof.
type SealVerifyInfo struct {
	SealProof             RegisteredSealProof
	Sector                SectorID
	DealIDs               []uint64
	Randomness            Randomness
	InteractiveRandomness Randomness
	Proof                 []byte

	// SealedCID is the commitment to the sealed replica (CommR).
	SealedCID cid.Cid

	// UnsealedCID is the commitment to the unsealed data (CommD).
	UnsealedCID cid.Cid
}

// SectorInfo describes one challenged sector within a PoSt.
type SectorInfo struct {
	SealProof    RegisteredSealProof
	SectorNumber SectorNumber
	SealedCID    cid.Cid
}

// PoStProofResult is a single proof-of-spacetime proof blob.
type PoStProofResult struct {
	PoStProof  RegisteredPoStProof
	ProofBytes []byte
}

// WindowPoStVerifyInfo carries everything needed to verify a window
// proof-of-spacetime.
type WindowPoStVerifyInfo struct {
	Randomness        Randomness
	Proofs            []PoStProofResult
	ChallengedSectors []SectorInfo
	Prover            ActorID
}

// AggregateSealVerifyInfo describes one sector within an aggregated
// seal proof.
type AggregateSealVerifyInfo struct {
	Number                SectorNumber
	Randomness            Randomness
	InteractiveRandomness Randomness
	SealedCID             cid.Cid
	UnsealedCID           cid.Cid
}

// AggregateSealVerifyProofAndInfos carries an aggregated seal proof and
// the per-sector infos it covers.
type AggregateSealVerifyProofAndInfos struct {
	Miner          ActorID
	SealProof      RegisteredSealProof
	AggregateProof RegisteredAggregateProof
	Proof          []byte
	Infos          []AggregateSealVerifyInfo
}
