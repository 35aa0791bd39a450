// Package externs defines the chain-side collaborators the VM core
// consumes but does not implement: randomness, chain lookups, and
// consensus-fault evaluation.
package externs

import (
	"errors"

	"github.com/ipfs/go-cid"

	"github.com/cobaltchain/cobalt-fvm/internal/types"
	"github.com/cobaltchain/cobalt-fvm/pkg/gas"
)

// ErrTipsetNotFound is returned when no tipset exists for an epoch.
var ErrTipsetNotFound = errors.New("tipset not found")

// RandomnessLength is the length of every randomness value.
const RandomnessLength = 32

// Rand supplies deterministic randomness keyed by a personalization
// tag, a round, and caller entropy.
type Rand interface {
	GetChainRandomness(pers int64, round types.ChainEpoch, entropy []byte) ([RandomnessLength]byte, error)
	GetBeaconRandomness(pers int64, round types.ChainEpoch, entropy []byte) ([RandomnessLength]byte, error)
}

// Chain resolves chain state the VM cannot see directly.
type Chain interface {
	// GetTipsetCID returns the identifier of the tipset at the given
	// epoch, or ErrTipsetNotFound.
	GetTipsetCID(epoch types.ChainEpoch) (cid.Cid, error)
}

// Consensus evaluates consensus-fault evidence.
type Consensus interface {
	// VerifyConsensusFault inspects two serialized block headers (and
	// an optional extra header for parent-grinding disambiguation).
	// It returns the proven fault, or nil when the headers do not
	// prove one; an error means the evaluation itself failed. The gas
	// value reports the cost the evaluation consumed.
	VerifyConsensusFault(h1, h2, extra []byte) (*types.ConsensusFault, gas.Gas, error)
}

// Externs is the full collaborator surface.
type Externs interface {
	Rand
	Chain
	Consensus
}
