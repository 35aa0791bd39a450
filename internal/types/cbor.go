package types

import (
	"errors"
	"fmt"
	"io"

	cbg "github.com/whyrusleeping/cbor-gen"
)

// CBOR decode limits. Oversized guest input must fail deterministically
// instead of allocating without bound.
const (
	// MaxProofBytes bounds a single proof blob.
	MaxProofBytes = 8 << 20

	// MaxRandomnessBytes bounds a randomness field.
	MaxRandomnessBytes = 64

	// MaxListLength bounds any decoded list (pieces, deals, sectors).
	MaxListLength = 8192
)

// ErrCBORDecode is wrapped by every codec failure in this package.
var ErrCBORDecode = errors.New("cbor decode")

func decodeErr(what string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrCBORDecode, what, err)
}

func writeInt64(cw *cbg.CborWriter, v int64) error {
	if v >= 0 {
		return cw.WriteMajorTypeHeader(cbg.MajUnsignedInt, uint64(v))
	}
	return cw.WriteMajorTypeHeader(cbg.MajNegativeInt, uint64(-v-1))
}

func readInt64(cr *cbg.CborReader) (int64, error) {
	maj, extra, err := cr.ReadHeader()
	if err != nil {
		return 0, err
	}
	switch maj {
	case cbg.MajUnsignedInt:
		return int64(extra), nil
	case cbg.MajNegativeInt:
		return -1 - int64(extra), nil
	default:
		return 0, fmt.Errorf("expected integer, got major type %d", maj)
	}
}

func readUint64(cr *cbg.CborReader) (uint64, error) {
	maj, extra, err := cr.ReadHeader()
	if err != nil {
		return 0, err
	}
	if maj != cbg.MajUnsignedInt {
		return 0, fmt.Errorf("expected unsigned integer, got major type %d", maj)
	}
	return extra, nil
}

func writeByteString(cw *cbg.CborWriter, b []byte) error {
	if err := cw.WriteMajorTypeHeader(cbg.MajByteString, uint64(len(b))); err != nil {
		return err
	}
	_, err := cw.Write(b)
	return err
}

func readArrayHeader(cr *cbg.CborReader, want uint64) error {
	maj, extra, err := cr.ReadHeader()
	if err != nil {
		return err
	}
	if maj != cbg.MajArray {
		return fmt.Errorf("expected array, got major type %d", maj)
	}
	if extra != want {
		return fmt.Errorf("expected %d fields, got %d", want, extra)
	}
	return nil
}

func readListHeader(cr *cbg.CborReader) (uint64, error) {
	maj, extra, err := cr.ReadHeader()
	if err != nil {
		return 0, err
	}
	if maj != cbg.MajArray {
		return 0, fmt.Errorf("expected array, got major type %d", maj)
	}
	if extra > MaxListLength {
		return 0, fmt.Errorf("list of %d elements exceeds limit %d", extra, MaxListLength)
	}
	return extra, nil
}

// MarshalCBOR encodes the signature as a single byte string: the type
// byte followed by the raw signature data.
func (s *Signature) MarshalCBOR(w io.Writer) error {
	cw := cbg.NewCborWriter(w)
	if err := cw.WriteMajorTypeHeader(cbg.MajByteString, uint64(1+len(s.Data))); err != nil {
		return err
	}
	if _, err := cw.Write([]byte{byte(s.Type)}); err != nil {
		return err
	}
	_, err := cw.Write(s.Data)
	return err
}

// UnmarshalCBOR decodes a type-prefixed signature byte string. The
// output is not touched until decoding has fully succeeded.
func (s *Signature) UnmarshalCBOR(r io.Reader) error {
	cr := cbg.NewCborReader(r)
	buf, err := cbg.ReadByteArray(cr, MaxSignatureLen)
	if err != nil {
		return decodeErr("signature", err)
	}
	if len(buf) == 0 {
		return decodeErr("signature", errors.New("empty byte string"))
	}
	typ := SigType(buf[0])
	if typ != SigTypeEd25519 {
		return decodeErr("signature", fmt.Errorf("unknown type %d", buf[0]))
	}
	s.Type = typ
	s.Data = buf[1:]
	return nil
}

// MarshalCBOR encodes the address as a byte string of its binary form.
func (a *Address) MarshalCBOR(w io.Writer) error {
	cw := cbg.NewCborWriter(w)
	return writeByteString(cw, a.Bytes())
}

// UnmarshalCBOR decodes and validates an address byte string.
func (a *Address) UnmarshalCBOR(r io.Reader) error {
	cr := cbg.NewCborReader(r)
	buf, err := cbg.ReadByteArray(cr, MaxAddressLen)
	if err != nil {
		return decodeErr("address", err)
	}
	addr, err := AddressFromBytes(buf)
	if err != nil {
		return decodeErr("address", err)
	}
	*a = addr
	return nil
}

// MarshalCBOR encodes the piece as [size, cid].
func (p *PieceInfo) MarshalCBOR(w io.Writer) error {
	cw := cbg.NewCborWriter(w)
	if err := cw.WriteMajorTypeHeader(cbg.MajArray, 2); err != nil {
		return err
	}
	if err := cw.WriteMajorTypeHeader(cbg.MajUnsignedInt, p.Size); err != nil {
		return err
	}
	return cbg.WriteCid(cw, p.PieceCID)
}

// UnmarshalCBOR decodes a [size, cid] piece descriptor.
func (p *PieceInfo) UnmarshalCBOR(r io.Reader) error {
	cr := cbg.NewCborReader(r)
	return p.unmarshalFrom(cr)
}

func (p *PieceInfo) unmarshalFrom(cr *cbg.CborReader) error {
	var out PieceInfo
	if err := readArrayHeader(cr, 2); err != nil {
		return decodeErr("piece info", err)
	}
	size, err := readUint64(cr)
	if err != nil {
		return decodeErr("piece info size", err)
	}
	out.Size = size
	c, err := cbg.ReadCid(cr)
	if err != nil {
		return decodeErr("piece cid", err)
	}
	out.PieceCID = c
	*p = out
	return nil
}

// DecodePieceInfos decodes a CBOR list of piece descriptors.
func DecodePieceInfos(r io.Reader) ([]PieceInfo, error) {
	cr := cbg.NewCborReader(r)
	n, err := readListHeader(cr)
	if err != nil {
		return nil, decodeErr("piece list", err)
	}
	pieces := make([]PieceInfo, n)
	for i := range pieces {
		if err := pieces[i].unmarshalFrom(cr); err != nil {
			return nil, err
		}
	}
	return pieces, nil
}

// MarshalCBOR encodes the seal info as an 8-element array.
func (s *SealVerifyInfo) MarshalCBOR(w io.Writer) error {
	cw := cbg.NewCborWriter(w)
	if err := cw.WriteMajorTypeHeader(cbg.MajArray, 8); err != nil {
		return err
	}
	if err := writeInt64(cw, int64(s.SealProof)); err != nil {
		return err
	}
	if err := cw.WriteMajorTypeHeader(cbg.MajArray, 2); err != nil {
		return err
	}
	if err := cw.WriteMajorTypeHeader(cbg.MajUnsignedInt, uint64(s.Sector.Miner)); err != nil {
		return err
	}
	if err := cw.WriteMajorTypeHeader(cbg.MajUnsignedInt, uint64(s.Sector.Number)); err != nil {
		return err
	}
	if err := cw.WriteMajorTypeHeader(cbg.MajArray, uint64(len(s.DealIDs))); err != nil {
		return err
	}
	for _, id := range s.DealIDs {
		if err := cw.WriteMajorTypeHeader(cbg.MajUnsignedInt, id); err != nil {
			return err
		}
	}
	if err := writeByteString(cw, s.Randomness); err != nil {
		return err
	}
	if err := writeByteString(cw, s.InteractiveRandomness); err != nil {
		return err
	}
	if err := writeByteString(cw, s.Proof); err != nil {
		return err
	}
	if err := cbg.WriteCid(cw, s.SealedCID); err != nil {
		return err
	}
	return cbg.WriteCid(cw, s.UnsealedCID)
}

// UnmarshalCBOR decodes a seal verification descriptor. On any failure
// the receiver is left untouched.
func (s *SealVerifyInfo) UnmarshalCBOR(r io.Reader) error {
	cr := cbg.NewCborReader(r)
	var out SealVerifyInfo
	if err := readArrayHeader(cr, 8); err != nil {
		return decodeErr("seal info", err)
	}
	proof, err := readInt64(cr)
	if err != nil {
		return decodeErr("seal proof type", err)
	}
	out.SealProof = RegisteredSealProof(proof)
	if err := readArrayHeader(cr, 2); err != nil {
		return decodeErr("sector id", err)
	}
	miner, err := readUint64(cr)
	if err != nil {
		return decodeErr("sector miner", err)
	}
	number, err := readUint64(cr)
	if err != nil {
		return decodeErr("sector number", err)
	}
	out.Sector = SectorID{Miner: ActorID(miner), Number: SectorNumber(number)}
	n, err := readListHeader(cr)
	if err != nil {
		return decodeErr("deal ids", err)
	}
	if n > 0 {
		out.DealIDs = make([]uint64, n)
		for i := range out.DealIDs {
			id, err := readUint64(cr)
			if err != nil {
				return decodeErr("deal id", err)
			}
			out.DealIDs[i] = id
		}
	}
	if out.Randomness, err = cbg.ReadByteArray(cr, MaxRandomnessBytes); err != nil {
		return decodeErr("randomness", err)
	}
	if out.InteractiveRandomness, err = cbg.ReadByteArray(cr, MaxRandomnessBytes); err != nil {
		return decodeErr("interactive randomness", err)
	}
	if out.Proof, err = cbg.ReadByteArray(cr, MaxProofBytes); err != nil {
		return decodeErr("proof", err)
	}
	if out.SealedCID, err = cbg.ReadCid(cr); err != nil {
		return decodeErr("sealed cid", err)
	}
	if out.UnsealedCID, err = cbg.ReadCid(cr); err != nil {
		return decodeErr("unsealed cid", err)
	}
	*s = out
	return nil
}

// MarshalCBOR encodes the window PoSt info as a 4-element array.
func (w *WindowPoStVerifyInfo) MarshalCBOR(wr io.Writer) error {
	cw := cbg.NewCborWriter(wr)
	if err := cw.WriteMajorTypeHeader(cbg.MajArray, 4); err != nil {
		return err
	}
	if err := writeByteString(cw, w.Randomness); err != nil {
		return err
	}
	if err := cw.WriteMajorTypeHeader(cbg.MajArray, uint64(len(w.Proofs))); err != nil {
		return err
	}
	for i := range w.Proofs {
		if err := cw.WriteMajorTypeHeader(cbg.MajArray, 2); err != nil {
			return err
		}
		if err := writeInt64(cw, int64(w.Proofs[i].PoStProof)); err != nil {
			return err
		}
		if err := writeByteString(cw, w.Proofs[i].ProofBytes); err != nil {
			return err
		}
	}
	if err := cw.WriteMajorTypeHeader(cbg.MajArray, uint64(len(w.ChallengedSectors))); err != nil {
		return err
	}
	for i := range w.ChallengedSectors {
		sec := &w.ChallengedSectors[i]
		if err := cw.WriteMajorTypeHeader(cbg.MajArray, 3); err != nil {
			return err
		}
		if err := writeInt64(cw, int64(sec.SealProof)); err != nil {
			return err
		}
		if err := cw.WriteMajorTypeHeader(cbg.MajUnsignedInt, uint64(sec.SectorNumber)); err != nil {
			return err
		}
		if err := cbg.WriteCid(cw, sec.SealedCID); err != nil {
			return err
		}
	}
	return cw.WriteMajorTypeHeader(cbg.MajUnsignedInt, uint64(w.Prover))
}

// UnmarshalCBOR decodes a window PoSt descriptor. On any failure the
// receiver is left untouched.
func (w *WindowPoStVerifyInfo) UnmarshalCBOR(r io.Reader) error {
	cr := cbg.NewCborReader(r)
	var out WindowPoStVerifyInfo
	if err := readArrayHeader(cr, 4); err != nil {
		return decodeErr("post info", err)
	}
	var err error
	if out.Randomness, err = cbg.ReadByteArray(cr, MaxRandomnessBytes); err != nil {
		return decodeErr("post randomness", err)
	}
	n, err := readListHeader(cr)
	if err != nil {
		return decodeErr("post proofs", err)
	}
	if n > 0 {
		out.Proofs = make([]PoStProofResult, n)
		for i := range out.Proofs {
			if err := readArrayHeader(cr, 2); err != nil {
				return decodeErr("post proof", err)
			}
			typ, err := readInt64(cr)
			if err != nil {
				return decodeErr("post proof type", err)
			}
			out.Proofs[i].PoStProof = RegisteredPoStProof(typ)
			if out.Proofs[i].ProofBytes, err = cbg.ReadByteArray(cr, MaxProofBytes); err != nil {
				return decodeErr("post proof bytes", err)
			}
		}
	}
	n, err = readListHeader(cr)
	if err != nil {
		return decodeErr("challenged sectors", err)
	}
	if n > 0 {
		out.ChallengedSectors = make([]SectorInfo, n)
		for i := range out.ChallengedSectors {
			sec := &out.ChallengedSectors[i]
			if err := readArrayHeader(cr, 3); err != nil {
				return decodeErr("sector info", err)
			}
			typ, err := readInt64(cr)
			if err != nil {
				return decodeErr("sector seal proof", err)
			}
			sec.SealProof = RegisteredSealProof(typ)
			num, err := readUint64(cr)
			if err != nil {
				return decodeErr("sector number", err)
			}
			sec.SectorNumber = SectorNumber(num)
			if sec.SealedCID, err = cbg.ReadCid(cr); err != nil {
				return decodeErr("sector sealed cid", err)
			}
		}
	}
	prover, err := readUint64(cr)
	if err != nil {
		return decodeErr("prover", err)
	}
	out.Prover = ActorID(prover)
	*w = out
	return nil
}

// MarshalCBOR encodes the aggregate as a 5-element array.
func (a *AggregateSealVerifyProofAndInfos) MarshalCBOR(w io.Writer) error {
	cw := cbg.NewCborWriter(w)
	if err := cw.WriteMajorTypeHeader(cbg.MajArray, 5); err != nil {
		return err
	}
	if err := cw.WriteMajorTypeHeader(cbg.MajUnsignedInt, uint64(a.Miner)); err != nil {
		return err
	}
	if err := writeInt64(cw, int64(a.SealProof)); err != nil {
		return err
	}
	if err := writeInt64(cw, int64(a.AggregateProof)); err != nil {
		return err
	}
	if err := writeByteString(cw, a.Proof); err != nil {
		return err
	}
	if err := cw.WriteMajorTypeHeader(cbg.MajArray, uint64(len(a.Infos))); err != nil {
		return err
	}
	for i := range a.Infos {
		info := &a.Infos[i]
		if err := cw.WriteMajorTypeHeader(cbg.MajArray, 5); err != nil {
			return err
		}
		if err := cw.WriteMajorTypeHeader(cbg.MajUnsignedInt, uint64(info.Number)); err != nil {
			return err
		}
		if err := writeByteString(cw, info.Randomness); err != nil {
			return err
		}
		if err := writeByteString(cw, info.InteractiveRandomness); err != nil {
			return err
		}
		if err := cbg.WriteCid(cw, info.SealedCID); err != nil {
			return err
		}
		if err := cbg.WriteCid(cw, info.UnsealedCID); err != nil {
			return err
		}
	}
	return nil
}

// UnmarshalCBOR decodes an aggregate seal descriptor. On any failure
// the receiver is left untouched.
func (a *AggregateSealVerifyProofAndInfos) UnmarshalCBOR(r io.Reader) error {
	cr := cbg.NewCborReader(r)
	var out AggregateSealVerifyProofAndInfos
	if err := readArrayHeader(cr, 5); err != nil {
		return decodeErr("aggregate info", err)
	}
	miner, err := readUint64(cr)
	if err != nil {
		return decodeErr("aggregate miner", err)
	}
	out.Miner = ActorID(miner)
	typ, err := readInt64(cr)
	if err != nil {
		return decodeErr("aggregate seal proof", err)
	}
	out.SealProof = RegisteredSealProof(typ)
	typ, err = readInt64(cr)
	if err != nil {
		return decodeErr("aggregate proof type", err)
	}
	out.AggregateProof = RegisteredAggregateProof(typ)
	if out.Proof, err = cbg.ReadByteArray(cr, MaxProofBytes); err != nil {
		return decodeErr("aggregate proof bytes", err)
	}
	n, err := readListHeader(cr)
	if err != nil {
		return decodeErr("aggregate infos", err)
	}
	if n > 0 {
		out.Infos = make([]AggregateSealVerifyInfo, n)
		for i := range out.Infos {
			info := &out.Infos[i]
			if err := readArrayHeader(cr, 5); err != nil {
				return decodeErr("aggregate sector info", err)
			}
			num, err := readUint64(cr)
			if err != nil {
				return decodeErr("aggregate sector number", err)
			}
			info.Number = SectorNumber(num)
			if info.Randomness, err = cbg.ReadByteArray(cr, MaxRandomnessBytes); err != nil {
				return decodeErr("aggregate randomness", err)
			}
			if info.InteractiveRandomness, err = cbg.ReadByteArray(cr, MaxRandomnessBytes); err != nil {
				return decodeErr("aggregate interactive randomness", err)
			}
			if info.SealedCID, err = cbg.ReadCid(cr); err != nil {
				return decodeErr("aggregate sealed cid", err)
			}
			if info.UnsealedCID, err = cbg.ReadCid(cr); err != nil {
				return decodeErr("aggregate unsealed cid", err)
			}
		}
	}
	*a = out
	return nil
}

// MarshalCBOR encodes the fault as [target, epoch, type]. This is the
// payload the guest pops from the return stack after a fault is found.
func (c *ConsensusFault) MarshalCBOR(w io.Writer) error {
	cw := cbg.NewCborWriter(w)
	if err := cw.WriteMajorTypeHeader(cbg.MajArray, 3); err != nil {
		return err
	}
	if err := c.Target.MarshalCBOR(cw); err != nil {
		return err
	}
	if err := writeInt64(cw, int64(c.Epoch)); err != nil {
		return err
	}
	return writeInt64(cw, int64(c.Type))
}

// UnmarshalCBOR decodes a consensus fault payload.
func (c *ConsensusFault) UnmarshalCBOR(r io.Reader) error {
	cr := cbg.NewCborReader(r)
	var out ConsensusFault
	if err := readArrayHeader(cr, 3); err != nil {
		return decodeErr("consensus fault", err)
	}
	if err := out.Target.UnmarshalCBOR(cr); err != nil {
		return err
	}
	epoch, err := readInt64(cr)
	if err != nil {
		return decodeErr("fault epoch", err)
	}
	out.Epoch = ChainEpoch(epoch)
	typ, err := readInt64(cr)
	if err != nil {
		return decodeErr("fault type", err)
	}
	out.Type = ConsensusFaultType(typ)
	*c = out
	return nil
}
