// Package types defines the domain types shared between the syscall
// bridge, the kernel, and the stores: addresses, signatures, sector
// proof descriptors, and consensus faults.
//
// Structured types carry hand-rolled CBOR codecs (see cbor.go) because
// they cross the guest/host boundary as self-describing binary values
// and must decode deterministically.
package types

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// Size constants for core types.
const (
	// PubkeyPayloadSize is the payload length of a public-key address.
	PubkeyPayloadSize = 32

	// ActorPayloadSize is the payload length of an actor-hash address.
	ActorPayloadSize = 20

	// MaxAddressLen bounds an encoded address (protocol byte + payload).
	MaxAddressLen = 1 + PubkeyPayloadSize

	// MaxSignatureLen bounds an encoded signature (type byte + data).
	MaxSignatureLen = 1 + ed25519.SignatureSize
)

var (
	// ErrInvalidAddress is returned when address bytes fail validation.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrInvalidSignature is returned when signature bytes fail validation.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrUnsupportedSigType is returned for signature types the host
	// does not implement.
	ErrUnsupportedSigType = errors.New("unsupported signature type")
)

// Protocol identifies how an address payload is interpreted.
type Protocol byte

const (
	// ProtocolID is a numeric actor ID address (uvarint payload).
	ProtocolID Protocol = iota

	// ProtocolPubkey embeds a 32-byte ed25519 public key.
	ProtocolPubkey

	// ProtocolActor is a 20-byte hash of non-key actor creation data.
	ProtocolActor
)

// Address is a protocol-tagged actor address: one protocol byte
// followed by a protocol-defined payload.
type Address struct {
	raw []byte
}

// NewPubkeyAddress creates an address embedding an ed25519 public key.
func NewPubkeyAddress(pubkey []byte) (Address, error) {
	if len(pubkey) != PubkeyPayloadSize {
		return Address{}, fmt.Errorf("%w: pubkey payload must be %d bytes, got %d",
			ErrInvalidAddress, PubkeyPayloadSize, len(pubkey))
	}
	raw := make([]byte, 1+PubkeyPayloadSize)
	raw[0] = byte(ProtocolPubkey)
	copy(raw[1:], pubkey)
	return Address{raw: raw}, nil
}

// NewIDAddress creates a numeric actor ID address.
func NewIDAddress(id uint64) Address {
	raw := make([]byte, 1, 11)
	raw[0] = byte(ProtocolID)
	for id >= 0x80 {
		raw = append(raw, byte(id)|0x80)
		id >>= 7
	}
	raw = append(raw, byte(id))
	return Address{raw: raw}
}

// NewActorAddress creates an address from a 20-byte actor hash.
func NewActorAddress(hash []byte) (Address, error) {
	if len(hash) != ActorPayloadSize {
		return Address{}, fmt.Errorf("%w: actor payload must be %d bytes, got %d",
			ErrInvalidAddress, ActorPayloadSize, len(hash))
	}
	raw := make([]byte, 1+ActorPayloadSize)
	raw[0] = byte(ProtocolActor)
	copy(raw[1:], hash)
	return Address{raw: raw}, nil
}

// AddressFromBytes validates and decodes an address from its binary
// form. The input is copied.
func AddressFromBytes(b []byte) (Address, error) {
	if len(b) == 0 {
		return Address{}, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	payload := b[1:]
	switch Protocol(b[0]) {
	case ProtocolID:
		if len(payload) == 0 || len(payload) > 10 {
			return Address{}, fmt.Errorf("%w: bad ID payload length %d", ErrInvalidAddress, len(payload))
		}
		// The final uvarint byte must not have its continuation bit set.
		if payload[len(payload)-1]&0x80 != 0 {
			return Address{}, fmt.Errorf("%w: truncated ID payload", ErrInvalidAddress)
		}
	case ProtocolPubkey:
		if len(payload) != PubkeyPayloadSize {
			return Address{}, fmt.Errorf("%w: pubkey payload must be %d bytes, got %d",
				ErrInvalidAddress, PubkeyPayloadSize, len(payload))
		}
	case ProtocolActor:
		if len(payload) != ActorPayloadSize {
			return Address{}, fmt.Errorf("%w: actor payload must be %d bytes, got %d",
				ErrInvalidAddress, ActorPayloadSize, len(payload))
		}
	default:
		return Address{}, fmt.Errorf("%w: unknown protocol %d", ErrInvalidAddress, b[0])
	}
	raw := make([]byte, len(b))
	copy(raw, b)
	return Address{raw: raw}, nil
}

// Protocol returns the address protocol.
func (a Address) Protocol() Protocol {
	if len(a.raw) == 0 {
		return ProtocolID
	}
	return Protocol(a.raw[0])
}

// Payload returns the protocol-defined payload bytes.
func (a Address) Payload() []byte {
	if len(a.raw) == 0 {
		return nil
	}
	return a.raw[1:]
}

// Bytes returns the binary form: protocol byte followed by payload.
func (a Address) Bytes() []byte {
	return a.raw
}

// Empty reports whether the address is the zero value.
func (a Address) Empty() bool {
	return len(a.raw) == 0
}

// Equals reports whether two addresses are byte-for-byte identical.
func (a Address) Equals(other Address) bool {
	return bytes.Equal(a.raw, other.raw)
}

// String renders the address as "c" + protocol digit + base58 payload.
func (a Address) String() string {
	if a.Empty() {
		return "<empty>"
	}
	return fmt.Sprintf("c%d%s", a.raw[0], base58.Encode(a.Payload()))
}

// SigType identifies a signature scheme.
type SigType byte

const (
	// SigTypeEd25519 is an ed25519 signature over the plaintext.
	SigTypeEd25519 SigType = 1
)

// Signature is a typed signature: the scheme tag plus the raw
// signature bytes.
type Signature struct {
	Type SigType
	Data []byte
}

// Verify checks the signature over plaintext for the given signer
// address. A failed check is reported as (false, nil); an error means
// the signature or address could not be evaluated at all.
func (s *Signature) Verify(signer Address, plaintext []byte) (bool, error) {
	switch s.Type {
	case SigTypeEd25519:
		if signer.Protocol() != ProtocolPubkey {
			return false, fmt.Errorf("%w: ed25519 signer must be a pubkey address", ErrInvalidAddress)
		}
		if len(s.Data) != ed25519.SignatureSize {
			return false, fmt.Errorf("%w: ed25519 signature must be %d bytes, got %d",
				ErrInvalidSignature, ed25519.SignatureSize, len(s.Data))
		}
		return ed25519.Verify(ed25519.PublicKey(signer.Payload()), plaintext, s.Data), nil
	default:
		return false, fmt.Errorf("%w: %d", ErrUnsupportedSigType, s.Type)
	}
}

// ChainEpoch is a chain height. Epochs before genesis are negative.
type ChainEpoch int64

// Randomness is entropy drawn from the chain or the beacon.
type Randomness []byte
