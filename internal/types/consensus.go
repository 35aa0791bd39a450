package types

// ConsensusFaultType classifies a provable consensus fault.
type ConsensusFaultType int64

const (
	// FaultDoubleForkMining: two distinct blocks by the same producer
	// at the same epoch.
	FaultDoubleForkMining ConsensusFaultType = iota + 1

	// FaultParentGrinding: a block produced on top of a parent the
	// producer provably withheld a sibling of.
	FaultParentGrinding

	// FaultTimeOffsetMining: two blocks by the same producer at
	// different epochs sharing the same parent tipset.
	FaultTimeOffsetMining
)

// String returns the canonical fault name.
func (t ConsensusFaultType) String() string {
	switch t {
	case FaultDoubleForkMining:
		return "double-fork-mining"
	case FaultParentGrinding:
		return "parent-grinding"
	case FaultTimeOffsetMining:
		return "time-offset-mining"
	default:
		return "unknown"
	}
}

// ConsensusFault is the payload produced when two conflicting signed
// block headers prove a protocol violation by the same producer. It is
// pushed onto the syscall return stack for the guest to retrieve.
type ConsensusFault struct {
	// Target is the faulting block producer.
	Target Address

	// Epoch of the later of the two proving blocks.
	Epoch ChainEpoch

	// Type of the proven fault.
	Type ConsensusFaultType
}
