package syscall

import (
	"bytes"
	"fmt"

	"github.com/cobaltchain/cobalt-fvm/internal/types"
	"github.com/cobaltchain/cobalt-fvm/pkg/vm/kernel"
)

// Blake2bDigestLen is the exact output size of the hashing syscall.
const Blake2bDigestLen = 32

// VerifySignature checks an encoded signature over a plaintext for a
// signer address. Returns 1 when the signature matches and 0 when it
// does not; a malformed signature or address encoding traps instead.
func VerifySignature(ctx *Context, sigOff, sigLen, addrOff, addrLen, plaintextOff, plaintextLen uint32) (uint64, error) {
	var sig types.Signature
	if err := ctx.ReadCBOR(&sig, sigOff, sigLen); err != nil {
		return 0, err
	}
	addr, err := ctx.ReadAddress(addrOff, addrLen)
	if err != nil {
		return 0, err
	}
	// Copied out so the kernel never borrows guest memory.
	plaintext, err := ctx.ReadSlice(plaintextOff, plaintextLen)
	if err != nil {
		return 0, err
	}

	ok, err := ctx.Kernel.VerifySignature(&sig, addr, plaintext)
	if err != nil {
		return 0, err
	}
	if ok {
		return 1, nil
	}
	return 0, nil
}

// HashBlake2b hashes a guest region with blake2b-256 and writes the
// 32-byte digest into the guest output buffer, which must be declared
// at exactly Blake2bDigestLen bytes.
func HashBlake2b(ctx *Context, dataOff, dataLen, obufOff uint32) error {
	data, err := ctx.ReadSlice(dataOff, dataLen)
	if err != nil {
		return err
	}
	digest, err := ctx.Kernel.HashBlake2b(data)
	if err != nil {
		return err
	}
	return ctx.WriteExact(obufOff, Blake2bDigestLen, digest[:])
}

// Hash hashes a guest region under the given multihash code and writes
// the multihash bytes into the guest output buffer, returning the
// number of bytes written. The buffer must be large enough for the
// encoded multihash; a too-small buffer traps with an illegal memory
// access before anything is written.
func Hash(ctx *Context, code uint64, dataOff, dataLen, obufOff, obufLen uint32) (uint64, error) {
	data, err := ctx.ReadSlice(dataOff, dataLen)
	if err != nil {
		return 0, err
	}
	hash, err := ctx.Kernel.Hash(code, data)
	if err != nil {
		return 0, err
	}
	if uint64(len(hash)) > uint64(obufLen) {
		return 0, NewTrap(ErrIllegalMemoryAccess)
	}
	if err := ctx.WriteExact(obufOff, uint32(len(hash)), hash); err != nil {
		return 0, err
	}
	return uint64(len(hash)), nil
}

// ComputeUnsealedSectorCID computes an unsealed sector commitment from
// an encoded piece list and writes the CID bytes into the guest output
// buffer, returning the number of bytes written.
func ComputeUnsealedSectorCID(ctx *Context, proofType int64, piecesOff, piecesLen, obufOff, obufLen uint32) (uint64, error) {
	view, err := ctx.Memory.Slice(piecesOff, piecesLen)
	if err != nil {
		return 0, err
	}
	pieces, err := decodePieces(view)
	if err != nil {
		return 0, err
	}

	c, err := ctx.Kernel.ComputeUnsealedSectorCID(types.RegisteredSealProof(proofType), pieces)
	if err != nil {
		return 0, err
	}
	out := c.Bytes()
	if uint64(len(out)) > uint64(obufLen) {
		return 0, NewTrap(ErrIllegalMemoryAccess)
	}
	if err := ctx.WriteExact(obufOff, uint32(len(out)), out); err != nil {
		return 0, err
	}
	return uint64(len(out)), nil
}

// VerifySeal verifies an encoded sector seal proof descriptor.
// Returns 1 for a valid proof and 0 for an invalid one.
func VerifySeal(ctx *Context, infoOff, infoLen uint32) (uint64, error) {
	var info types.SealVerifyInfo
	if err := ctx.ReadCBOR(&info, infoOff, infoLen); err != nil {
		return 0, err
	}
	ok, err := ctx.Kernel.VerifySeal(&info)
	if err != nil {
		return 0, err
	}
	if ok {
		return 1, nil
	}
	return 0, nil
}

// VerifyPoSt verifies an encoded window proof-of-spacetime descriptor.
// Returns 1 for a valid proof and 0 for an invalid one.
func VerifyPoSt(ctx *Context, infoOff, infoLen uint32) (uint64, error) {
	var info types.WindowPoStVerifyInfo
	if err := ctx.ReadCBOR(&info, infoOff, infoLen); err != nil {
		return 0, err
	}
	ok, err := ctx.Kernel.VerifyPoSt(&info)
	if err != nil {
		return 0, err
	}
	if ok {
		return 1, nil
	}
	return 0, nil
}

// VerifyConsensusFault checks whether two serialized block headers
// (plus an optional extra header consulted for parent-grinding faults)
// prove a consensus fault. Three outcomes:
//
//   - a fault was proven: its payload is pushed onto the return stack
//     and the call returns 1;
//   - no fault was found: the call returns 0, a normal outcome;
//   - the evaluation itself failed: the call traps.
func VerifyConsensusFault(ctx *Context, h1Off, h1Len, h2Off, h2Len, extraOff, extraLen uint32) (uint64, error) {
	// All three headers are copied into owned buffers up front; the
	// kernel call below must not overlap a live guest-memory view.
	h1, err := ctx.ReadSlice(h1Off, h1Len)
	if err != nil {
		return 0, err
	}
	h2, err := ctx.ReadSlice(h2Off, h2Len)
	if err != nil {
		return 0, err
	}
	extra, err := ctx.ReadSlice(extraOff, extraLen)
	if err != nil {
		return 0, err
	}

	fault, err := ctx.Kernel.VerifyConsensusFault(h1, h2, extra)
	if err != nil {
		return 0, err
	}
	if fault == nil {
		return 0, nil
	}

	payload, err := encodeFault(fault)
	if err != nil {
		return 0, err
	}
	if err := ctx.Kernel.ReturnPush(payload); err != nil {
		return 0, err
	}
	return 1, nil
}

// VerifyAggregateSeals verifies an encoded aggregated seal proof.
// Returns 1 for a valid proof and 0 for an invalid one.
func VerifyAggregateSeals(ctx *Context, aggOff, aggLen uint32) (uint64, error) {
	var agg types.AggregateSealVerifyProofAndInfos
	if err := ctx.ReadCBOR(&agg, aggOff, aggLen); err != nil {
		return 0, err
	}
	ok, err := ctx.Kernel.VerifyAggregateSeals(&agg)
	if err != nil {
		return 0, err
	}
	if ok {
		return 1, nil
	}
	return 0, nil
}

// BatchVerifySeals is declared in the syscall surface but its batching
// semantics are an open extension point; the call traps with an
// unsupported-operation cause until a defined algorithm exists.
func BatchVerifySeals(ctx *Context, batchOff, batchLen uint32) (uint64, error) {
	if _, err := ctx.Memory.Slice(batchOff, batchLen); err != nil {
		return 0, err
	}
	if _, err := ctx.Kernel.BatchVerifySeals(nil); err != nil {
		return 0, err
	}
	return 0, nil
}

func decodePieces(view []byte) ([]types.PieceInfo, error) {
	pieces, err := types.DecodePieceInfos(bytes.NewReader(view))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kernel.ErrIllegalArgument, err)
	}
	return pieces, nil
}

func encodeFault(fault *types.ConsensusFault) ([]byte, error) {
	var buf bytes.Buffer
	if err := fault.MarshalCBOR(&buf); err != nil {
		return nil, fmt.Errorf("%w: encoding consensus fault payload: %v", kernel.ErrFatal, err)
	}
	return buf.Bytes(), nil
}
