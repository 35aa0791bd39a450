package externs

import (
	"fmt"
	"io"

	"github.com/ipfs/go-cid"
	cbg "github.com/whyrusleeping/cbor-gen"

	"github.com/cobaltchain/cobalt-fvm/internal/types"
)

// Wire messages for the chain oracle RPC surface. All messages are
// CBOR fixed-length arrays; the oracle service speaks the same shapes.

const maxHeaderBytes = 1 << 20

// randomnessRequest asks for a randomness value drawn from the chain
// or the beacon, mixed with caller entropy.
type randomnessRequest struct {
	Personalization int64
	Round           types.ChainEpoch
	Entropy         []byte
}

func (r *randomnessRequest) MarshalCBOR(w io.Writer) error {
	cw := cbg.NewCborWriter(w)
	if err := cw.WriteMajorTypeHeader(cbg.MajArray, 3); err != nil {
		return err
	}
	if err := writeWireInt64(cw, r.Personalization); err != nil {
		return err
	}
	if err := writeWireInt64(cw, int64(r.Round)); err != nil {
		return err
	}
	return writeWireBytes(cw, r.Entropy)
}

func (r *randomnessRequest) UnmarshalCBOR(rd io.Reader) error {
	cr := cbg.NewCborReader(rd)
	if err := readWireArray(cr, 3); err != nil {
		return err
	}
	pers, err := readWireInt64(cr)
	if err != nil {
		return err
	}
	round, err := readWireInt64(cr)
	if err != nil {
		return err
	}
	entropy, err := cbg.ReadByteArray(cr, types.MaxRandomnessBytes)
	if err != nil {
		return fmt.Errorf("entropy: %w", err)
	}
	r.Personalization = pers
	r.Round = types.ChainEpoch(round)
	r.Entropy = entropy
	return nil
}

// randomnessResponse carries the fixed-size randomness value.
type randomnessResponse struct {
	Randomness [RandomnessLength]byte
}

func (r *randomnessResponse) MarshalCBOR(w io.Writer) error {
	cw := cbg.NewCborWriter(w)
	if err := cw.WriteMajorTypeHeader(cbg.MajArray, 1); err != nil {
		return err
	}
	return writeWireBytes(cw, r.Randomness[:])
}

func (r *randomnessResponse) UnmarshalCBOR(rd io.Reader) error {
	cr := cbg.NewCborReader(rd)
	if err := readWireArray(cr, 1); err != nil {
		return err
	}
	val, err := cbg.ReadByteArray(cr, RandomnessLength)
	if err != nil {
		return err
	}
	if len(val) != RandomnessLength {
		return fmt.Errorf("randomness is %d bytes, want %d", len(val), RandomnessLength)
	}
	copy(r.Randomness[:], val)
	return nil
}

// tipsetRequest asks for the tipset identifier at an epoch.
type tipsetRequest struct {
	Epoch types.ChainEpoch
}

func (r *tipsetRequest) MarshalCBOR(w io.Writer) error {
	cw := cbg.NewCborWriter(w)
	if err := cw.WriteMajorTypeHeader(cbg.MajArray, 1); err != nil {
		return err
	}
	return writeWireInt64(cw, int64(r.Epoch))
}

func (r *tipsetRequest) UnmarshalCBOR(rd io.Reader) error {
	cr := cbg.NewCborReader(rd)
	if err := readWireArray(cr, 1); err != nil {
		return err
	}
	epoch, err := readWireInt64(cr)
	if err != nil {
		return err
	}
	r.Epoch = types.ChainEpoch(epoch)
	return nil
}

// tipsetResponse carries the tipset CID; Found is false past the
// oracle's horizon.
type tipsetResponse struct {
	Found bool
	CID   cid.Cid
}

func (r *tipsetResponse) MarshalCBOR(w io.Writer) error {
	cw := cbg.NewCborWriter(w)
	if err := cw.WriteMajorTypeHeader(cbg.MajArray, 2); err != nil {
		return err
	}
	if err := cbg.WriteBool(cw, r.Found); err != nil {
		return err
	}
	if !r.Found {
		return cbg.WriteMajorTypeHeader(cw, cbg.MajOther, 22) // null
	}
	return cbg.WriteCid(cw, r.CID)
}

func (r *tipsetResponse) UnmarshalCBOR(rd io.Reader) error {
	cr := cbg.NewCborReader(rd)
	if err := readWireArray(cr, 2); err != nil {
		return err
	}
	found, err := readWireBool(cr)
	if err != nil {
		return err
	}
	if !found {
		maj, extra, err := cr.ReadHeader()
		if err != nil {
			return err
		}
		if maj != cbg.MajOther || extra != 22 {
			return fmt.Errorf("expected null cid")
		}
		r.Found = false
		r.CID = cid.Undef
		return nil
	}
	c, err := cbg.ReadCid(cr)
	if err != nil {
		return fmt.Errorf("tipset cid: %w", err)
	}
	r.Found = true
	r.CID = c
	return nil
}

// faultRequest carries the block headers to evaluate.
type faultRequest struct {
	Header1 []byte
	Header2 []byte
	Extra   []byte
}

func (r *faultRequest) MarshalCBOR(w io.Writer) error {
	cw := cbg.NewCborWriter(w)
	if err := cw.WriteMajorTypeHeader(cbg.MajArray, 3); err != nil {
		return err
	}
	for _, h := range [][]byte{r.Header1, r.Header2, r.Extra} {
		if err := writeWireBytes(cw, h); err != nil {
			return err
		}
	}
	return nil
}

func (r *faultRequest) UnmarshalCBOR(rd io.Reader) error {
	cr := cbg.NewCborReader(rd)
	if err := readWireArray(cr, 3); err != nil {
		return err
	}
	for _, dst := range []*[]byte{&r.Header1, &r.Header2, &r.Extra} {
		h, err := cbg.ReadByteArray(cr, maxHeaderBytes)
		if err != nil {
			return err
		}
		*dst = h
	}
	return nil
}

// faultResponse reports the evaluation outcome plus the gas the
// oracle spent evaluating it. Fault is present only when Found.
type faultResponse struct {
	Found   bool
	Fault   *types.ConsensusFault
	GasUsed int64
}

func (r *faultResponse) MarshalCBOR(w io.Writer) error {
	cw := cbg.NewCborWriter(w)
	if err := cw.WriteMajorTypeHeader(cbg.MajArray, 3); err != nil {
		return err
	}
	if err := cbg.WriteBool(cw, r.Found); err != nil {
		return err
	}
	if r.Found {
		if err := r.Fault.MarshalCBOR(cw); err != nil {
			return err
		}
	} else {
		if err := cbg.WriteMajorTypeHeader(cw, cbg.MajOther, 22); err != nil { // null
			return err
		}
	}
	return writeWireInt64(cw, r.GasUsed)
}

func (r *faultResponse) UnmarshalCBOR(rd io.Reader) error {
	cr := cbg.NewCborReader(rd)
	if err := readWireArray(cr, 3); err != nil {
		return err
	}

	found, err := readWireBool(cr)
	if err != nil {
		return err
	}
	if found {
		var fault types.ConsensusFault
		if err := fault.UnmarshalCBOR(cr); err != nil {
			return err
		}
		r.Fault = &fault
	} else {
		maj, extra, err := cr.ReadHeader()
		if err != nil {
			return err
		}
		if maj != cbg.MajOther || extra != 22 {
			return fmt.Errorf("expected null fault")
		}
		r.Fault = nil
	}
	r.Found = found

	gasUsed, err := readWireInt64(cr)
	if err != nil {
		return err
	}
	r.GasUsed = gasUsed
	return nil
}

func writeWireInt64(cw *cbg.CborWriter, v int64) error {
	if v >= 0 {
		return cw.WriteMajorTypeHeader(cbg.MajUnsignedInt, uint64(v))
	}
	return cw.WriteMajorTypeHeader(cbg.MajNegativeInt, uint64(-v-1))
}

func readWireInt64(cr *cbg.CborReader) (int64, error) {
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

func writeWireBytes(cw *cbg.CborWriter, b []byte) error {
	if err := cw.WriteMajorTypeHeader(cbg.MajByteString, uint64(len(b))); err != nil {
		return err
	}
	_, err := cw.Write(b)
	return err
}

func readWireArray(cr *cbg.CborReader, want uint64) error {
	maj, extra, err := cr.ReadHeader()
	if err != nil {
		return err
	}
	if maj != cbg.MajArray || extra != want {
		return fmt.Errorf("expected %d-element array", want)
	}
	return nil
}

func readWireBool(cr *cbg.CborReader) (bool, error) {
	maj, extra, err := cr.ReadHeader()
	if err != nil {
		return false, err
	}
	if maj != cbg.MajOther {
		return false, fmt.Errorf("expected bool")
	}
	switch extra {
	case 20:
		return false, nil
	case 21:
		return true, nil
	default:
		return false, fmt.Errorf("expected bool")
	}
}
