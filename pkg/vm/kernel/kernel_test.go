package kernel

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"

	"github.com/cobaltchain/cobalt-fvm/internal/types"
	"github.com/cobaltchain/cobalt-fvm/pkg/externs"
	"github.com/cobaltchain/cobalt-fvm/pkg/gas"
)

// flatPrices charges one gas unit per operation regardless of inputs.
type flatPrices struct{}

func (flatPrices) OnVerifySignature(types.SigType, int) gas.Charge {
	return gas.NewCharge("OnVerifySignature", gas.NewGas(1), gas.Zero)
}
func (flatPrices) OnHashing(uint64, int) gas.Charge {
	return gas.NewCharge("OnHashing", gas.NewGas(1), gas.Zero)
}
func (flatPrices) OnComputeUnsealedSectorCID(types.RegisteredSealProof, []types.PieceInfo) gas.Charge {
	return gas.NewCharge("OnComputeUnsealedSectorCID", gas.NewGas(1), gas.Zero)
}
func (flatPrices) OnVerifySeal(*types.SealVerifyInfo) gas.Charge {
	return gas.NewCharge("OnVerifySeal", gas.NewGas(1), gas.Zero)
}
func (flatPrices) OnVerifyPoSt(*types.WindowPoStVerifyInfo) gas.Charge {
	return gas.NewCharge("OnVerifyPoSt", gas.NewGas(1), gas.Zero)
}
func (flatPrices) OnVerifyConsensusFault() gas.Charge {
	return gas.NewCharge("OnVerifyConsensusFault", gas.NewGas(1), gas.Zero)
}
func (flatPrices) OnVerifyAggregateSeals(*types.AggregateSealVerifyProofAndInfos) gas.Charge {
	return gas.NewCharge("OnVerifyAggregateSeals", gas.NewGas(1), gas.Zero)
}

// stubVerifier accepts proofs whose bytes equal "good".
type stubVerifier struct{}

func (stubVerifier) VerifySeal(info *types.SealVerifyInfo) (bool, error) {
	return bytes.Equal(info.Proof, []byte("good")), nil
}
func (stubVerifier) VerifyPoSt(info *types.WindowPoStVerifyInfo) (bool, error) {
	return len(info.Proofs) > 0 && bytes.Equal(info.Proofs[0].ProofBytes, []byte("good")), nil
}
func (stubVerifier) VerifyAggregateSeals(agg *types.AggregateSealVerifyProofAndInfos) (bool, error) {
	return bytes.Equal(agg.Proof, []byte("good")), nil
}

// stubExterns reports a fault when the two headers differ and h2 is
// non-empty, and fails the evaluation on the magic header "broken".
type stubExterns struct{}

func (stubExterns) GetChainRandomness(pers int64, round types.ChainEpoch, entropy []byte) ([32]byte, error) {
	return [32]byte{1}, nil
}
func (stubExterns) GetBeaconRandomness(pers int64, round types.ChainEpoch, entropy []byte) ([32]byte, error) {
	return [32]byte{2}, nil
}
func (stubExterns) GetTipsetCID(epoch types.ChainEpoch) (cid.Cid, error) {
	return cid.Undef, externs.ErrTipsetNotFound
}
func (stubExterns) VerifyConsensusFault(h1, h2, extra []byte) (*types.ConsensusFault, gas.Gas, error) {
	if bytes.Equal(h1, []byte("broken")) {
		return nil, gas.NewGas(1), errors.New("malformed header")
	}
	if !bytes.Equal(h1, h2) && len(h2) > 0 {
		return &types.ConsensusFault{
			Target: types.NewIDAddress(99),
			Epoch:  10,
			Type:   types.FaultDoubleForkMining,
		}, gas.NewGas(2), nil
	}
	return nil, gas.NewGas(2), nil
}

func newTestKernel(limit int64) *DefaultKernel {
	tracker := gas.NewGasTracker(gas.NewGas(limit), gas.Zero, true)
	return New(tracker, flatPrices{}, stubVerifier{}, stubExterns{})
}

// TestVerifySignature tests the match/mismatch/error contract.
func TestVerifySignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := types.NewPubkeyAddress(pub)
	if err != nil {
		t.Fatalf("address: %v", err)
	}
	plaintext := []byte("message")
	sig := types.Signature{Type: types.SigTypeEd25519, Data: ed25519.Sign(priv, plaintext)}

	k := newTestKernel(100)
	ok, err := k.VerifySignature(&sig, signer, plaintext)
	if err != nil || !ok {
		t.Errorf("valid: ok=%v err=%v, want true", ok, err)
	}
	ok, err = k.VerifySignature(&sig, signer, []byte("tampered"))
	if err != nil {
		t.Errorf("tampered errored: %v", err)
	}
	if ok {
		t.Error("tampered verified")
	}
	if k.GasUsed() != gas.NewGas(2) {
		t.Errorf("gas used = %v, want 2", k.GasUsed())
	}
}

// TestHashBlake2bVector tests the reference digest for "abc".
func TestHashBlake2bVector(t *testing.T) {
	// blake2b-256("abc"), per the RFC 7693 reference implementation.
	want, err := hex.DecodeString("bddd813c634239723171ef3fee98579b94964e3bb1cb3e427262c8c068d52319")
	if err != nil {
		t.Fatalf("bad vector: %v", err)
	}
	k := newTestKernel(100)
	digest, err := k.HashBlake2b([]byte("abc"))
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !bytes.Equal(digest[:], want) {
		t.Errorf("digest = %x, want %x", digest, want)
	}
}

// TestHashCodes tests the generalized hash across supported codes.
func TestHashCodes(t *testing.T) {
	k := newTestKernel(100)
	for _, code := range []uint64{HashSha256, HashBlake2b, HashKeccak256, HashBlake3} {
		hash, err := k.Hash(code, []byte("abc"))
		if err != nil {
			t.Errorf("code %#x: %v", code, err)
			continue
		}
		dec, err := mh.Decode(hash)
		if err != nil {
			t.Errorf("code %#x: decoding multihash: %v", code, err)
			continue
		}
		if dec.Code != code || dec.Length != 32 {
			t.Errorf("code %#x: decoded code=%#x length=%d", code, dec.Code, dec.Length)
		}
	}

	if _, err := k.Hash(0xFFFF, []byte("abc")); !errors.Is(err, ErrIllegalArgument) {
		t.Errorf("unknown code: err = %v, want ErrIllegalArgument", err)
	}
}

// TestComputeUnsealedSectorCID tests determinism and input validation.
func TestComputeUnsealedSectorCID(t *testing.T) {
	k := newTestKernel(100)
	pieces := []types.PieceInfo{{Size: 128, PieceCID: cid.Undef}}

	c1, err := k.ComputeUnsealedSectorCID(types.SealProofStacked2K, pieces)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	c2, err := k.ComputeUnsealedSectorCID(types.SealProofStacked2K, pieces)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !c1.Equals(c2) {
		t.Error("same inputs produced different commitments")
	}
	if c1.Prefix().Codec != uint64(UnsealedSectorCodec) {
		t.Errorf("codec = %#x, want %#x", c1.Prefix().Codec, uint64(UnsealedSectorCodec))
	}

	c3, err := k.ComputeUnsealedSectorCID(types.SealProofStacked8M, pieces)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if c1.Equals(c3) {
		t.Error("different proof types produced the same commitment")
	}

	if _, err := k.ComputeUnsealedSectorCID(types.SealProofInvalid, pieces); !errors.Is(err, ErrIllegalArgument) {
		t.Errorf("invalid proof type: err = %v, want ErrIllegalArgument", err)
	}
}

// TestVerifyConsensusFaultTriState tests the three distinct outcomes.
func TestVerifyConsensusFaultTriState(t *testing.T) {
	k := newTestKernel(100)

	fault, err := k.VerifyConsensusFault([]byte("h1"), []byte("h2"), nil)
	if err != nil {
		t.Fatalf("fault case errored: %v", err)
	}
	if fault == nil || fault.Type != types.FaultDoubleForkMining {
		t.Errorf("fault = %+v, want double-fork", fault)
	}

	fault, err = k.VerifyConsensusFault([]byte("same"), []byte("same"), nil)
	if err != nil {
		t.Fatalf("no-fault case errored: %v", err)
	}
	if fault != nil {
		t.Errorf("fault = %+v, want none", fault)
	}

	if _, err := k.VerifyConsensusFault([]byte("broken"), []byte("h2"), nil); err == nil {
		t.Error("failed evaluation reported as no-fault")
	}
}

// TestConsensusFaultChargesExternGas tests that the extern's reported
// cost lands on the tracker.
func TestConsensusFaultChargesExternGas(t *testing.T) {
	k := newTestKernel(100)
	if _, err := k.VerifyConsensusFault([]byte("same"), []byte("same"), nil); err != nil {
		t.Fatalf("verify: %v", err)
	}
	// 1 for the operation, 2 reported by the extern.
	if k.GasUsed() != gas.NewGas(3) {
		t.Errorf("gas used = %v, want 3", k.GasUsed())
	}
}

// TestKernelOutOfGas tests that operations fail once the frame's
// budget is exhausted and the tracker stays clamped.
func TestKernelOutOfGas(t *testing.T) {
	k := newTestKernel(1)
	if _, err := k.HashBlake2b([]byte("x")); err != nil {
		t.Fatalf("first hash: %v", err)
	}
	if _, err := k.HashBlake2b([]byte("x")); !errors.Is(err, ErrOutOfGas) {
		t.Errorf("err = %v, want ErrOutOfGas", err)
	}
	if k.GasAvailable() != gas.Zero {
		t.Errorf("available = %v, want 0", k.GasAvailable())
	}
}

// TestProofVerification tests seal/post/aggregate dispatch.
func TestProofVerification(t *testing.T) {
	k := newTestKernel(100)

	ok, err := k.VerifySeal(&types.SealVerifyInfo{Proof: []byte("good")})
	if err != nil || !ok {
		t.Errorf("good seal: ok=%v err=%v", ok, err)
	}
	ok, err = k.VerifySeal(&types.SealVerifyInfo{Proof: []byte("bad")})
	if err != nil || ok {
		t.Errorf("bad seal: ok=%v err=%v, want false nil", ok, err)
	}

	ok, err = k.VerifyPoSt(&types.WindowPoStVerifyInfo{
		Proofs: []types.PoStProofResult{{ProofBytes: []byte("good")}},
	})
	if err != nil || !ok {
		t.Errorf("good post: ok=%v err=%v", ok, err)
	}

	ok, err = k.VerifyAggregateSeals(&types.AggregateSealVerifyProofAndInfos{Proof: []byte("good")})
	if err != nil || !ok {
		t.Errorf("good aggregate: ok=%v err=%v", ok, err)
	}
}

// TestBatchVerifySealsUnsupported tests the declared extension point.
func TestBatchVerifySealsUnsupported(t *testing.T) {
	k := newTestKernel(100)
	if _, err := k.BatchVerifySeals(nil); !errors.Is(err, ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
}

// TestReturnStack tests push/peek/pop ordering and the empty case.
func TestReturnStack(t *testing.T) {
	k := newTestKernel(100)

	if _, ok := k.ReturnPeekSize(); ok {
		t.Error("peek on empty stack reported a value")
	}
	if err := k.ReturnPush([]byte("first")); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := k.ReturnPush([]byte("second!")); err != nil {
		t.Fatalf("push: %v", err)
	}
	if size, ok := k.ReturnPeekSize(); !ok || size != 7 {
		t.Errorf("peek = (%d, %v), want (7, true)", size, ok)
	}
	top, ok := k.ReturnPop()
	if !ok || string(top) != "second!" {
		t.Errorf("pop = (%q, %v), want second!", top, ok)
	}
	top, ok = k.ReturnPop()
	if !ok || string(top) != "first" {
		t.Errorf("pop = (%q, %v), want first", top, ok)
	}
	if _, ok := k.ReturnPop(); ok {
		t.Error("pop on empty stack reported a value")
	}
}
