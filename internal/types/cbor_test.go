package types

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

func testCID(t *testing.T, seed string) cid.Cid {
	t.Helper()
	hash, err := mh.Sum([]byte(seed), mh.SHA2_256, -1)
	if err != nil {
		t.Fatalf("multihash: %v", err)
	}
	return cid.NewCidV1(cid.Raw, hash)
}

// TestSignatureCBOR tests the type-prefixed byte-string codec.
func TestSignatureCBOR(t *testing.T) {
	sig := Signature{Type: SigTypeEd25519, Data: bytes.Repeat([]byte{7}, 64)}
	var buf bytes.Buffer
	if err := sig.MarshalCBOR(&buf); err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got Signature
	if err := got.UnmarshalCBOR(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != sig.Type || !bytes.Equal(got.Data, sig.Data) {
		t.Errorf("roundtrip mismatch: %+v", got)
	}

	// A truncated encoding must fail, not produce a partial signature.
	var bad Signature
	err := bad.UnmarshalCBOR(bytes.NewReader(buf.Bytes()[:10]))
	if !errors.Is(err, ErrCBORDecode) {
		t.Errorf("truncated: err = %v, want ErrCBORDecode", err)
	}
	if bad.Data != nil {
		t.Error("failed decode populated the output")
	}

	// Unknown signature type byte is a decode failure. The payload
	// starts after the two-byte string header (0x58 0x41 for 65 bytes).
	raw := buf.Bytes()
	raw[2] = 0x7F
	if err := bad.UnmarshalCBOR(bytes.NewReader(raw)); !errors.Is(err, ErrCBORDecode) {
		t.Errorf("unknown type: err = %v, want ErrCBORDecode", err)
	}
}

// TestSealVerifyInfoCBOR tests the seal descriptor codec and its
// no-partial-output property.
func TestSealVerifyInfoCBOR(t *testing.T) {
	info := SealVerifyInfo{
		SealProof:             SealProofStacked32G,
		Sector:                SectorID{Miner: 1001, Number: 42},
		DealIDs:               []uint64{5, 6, 7},
		Randomness:            []byte("ticket"),
		InteractiveRandomness: []byte("seed"),
		Proof:                 bytes.Repeat([]byte{1, 2}, 96),
		SealedCID:             testCID(t, "sealed"),
		UnsealedCID:           testCID(t, "unsealed"),
	}
	var buf bytes.Buffer
	if err := info.MarshalCBOR(&buf); err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got SealVerifyInfo
	if err := got.UnmarshalCBOR(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Sector != info.Sector || got.SealProof != info.SealProof {
		t.Errorf("roundtrip mismatch: %+v", got.Sector)
	}
	if !got.SealedCID.Equals(info.SealedCID) || !got.UnsealedCID.Equals(info.UnsealedCID) {
		t.Error("cid mismatch after roundtrip")
	}
	if len(got.DealIDs) != 3 || got.DealIDs[2] != 7 {
		t.Errorf("deal ids = %v", got.DealIDs)
	}

	var bad SealVerifyInfo
	if err := bad.UnmarshalCBOR(bytes.NewReader(buf.Bytes()[:20])); err == nil {
		t.Fatal("truncated decode succeeded")
	}
	if bad.Proof != nil || bad.Sector.Miner != 0 {
		t.Error("failed decode populated the output")
	}
}

// TestPieceInfosDecode tests the piece list decoder and its limits.
func TestPieceInfosDecode(t *testing.T) {
	pieces := []PieceInfo{
		{Size: 128, PieceCID: testCID(t, "p0")},
		{Size: 256, PieceCID: testCID(t, "p1")},
	}
	var buf bytes.Buffer
	// Encode the list by hand: array header then each element.
	buf.WriteByte(0x82) // array(2)
	for i := range pieces {
		if err := pieces[i].MarshalCBOR(&buf); err != nil {
			t.Fatalf("marshal piece: %v", err)
		}
	}

	got, err := DecodePieceInfos(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0].Size != 128 || !got[1].PieceCID.Equals(pieces[1].PieceCID) {
		t.Errorf("decoded pieces = %+v", got)
	}

	// A list claiming more elements than the payload carries fails.
	if _, err := DecodePieceInfos(bytes.NewReader([]byte{0x85})); err == nil {
		t.Error("oversized list header decoded")
	}
}

// TestConsensusFaultCBOR tests the fault payload codec.
func TestConsensusFaultCBOR(t *testing.T) {
	fault := ConsensusFault{
		Target: NewIDAddress(4242),
		Epoch:  ChainEpoch(-1),
		Type:   FaultParentGrinding,
	}
	var buf bytes.Buffer
	if err := fault.MarshalCBOR(&buf); err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got ConsensusFault
	if err := got.UnmarshalCBOR(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !got.Target.Equals(fault.Target) || got.Epoch != fault.Epoch || got.Type != fault.Type {
		t.Errorf("roundtrip mismatch: %+v", got)
	}
}

// TestWindowPoStCBOR tests the PoSt descriptor codec.
func TestWindowPoStCBOR(t *testing.T) {
	info := WindowPoStVerifyInfo{
		Randomness: []byte("rand"),
		Proofs: []PoStProofResult{
			{PoStProof: PoStProofWindow32G, ProofBytes: []byte("proof")},
		},
		ChallengedSectors: []SectorInfo{
			{SealProof: SealProofStacked32G, SectorNumber: 9, SealedCID: testCID(t, "s9")},
		},
		Prover: 1001,
	}
	var buf bytes.Buffer
	if err := info.MarshalCBOR(&buf); err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got WindowPoStVerifyInfo
	if err := got.UnmarshalCBOR(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Prover != 1001 || len(got.Proofs) != 1 || len(got.ChallengedSectors) != 1 {
		t.Errorf("roundtrip mismatch: %+v", got)
	}
	if got.ChallengedSectors[0].SectorNumber != 9 {
		t.Errorf("sector number = %d, want 9", got.ChallengedSectors[0].SectorNumber)
	}
}
