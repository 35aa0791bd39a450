package types

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"testing"
)

// TestAddressRoundtrip tests binary encode/decode of each protocol.
func TestAddressRoundtrip(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pk, err := NewPubkeyAddress(pub)
	if err != nil {
		t.Fatalf("pubkey address: %v", err)
	}
	actor, err := NewActorAddress(bytes.Repeat([]byte{0xAB}, ActorPayloadSize))
	if err != nil {
		t.Fatalf("actor address: %v", err)
	}

	for _, addr := range []Address{NewIDAddress(0), NewIDAddress(1 << 40), pk, actor} {
		got, err := AddressFromBytes(addr.Bytes())
		if err != nil {
			t.Errorf("decode %v: %v", addr, err)
			continue
		}
		if !got.Equals(addr) {
			t.Errorf("roundtrip mismatch: %v != %v", got, addr)
		}
	}
}

// TestAddressFromBytesRejects tests malformed address inputs.
func TestAddressFromBytesRejects(t *testing.T) {
	tests := []struct {
		name string
		b    []byte
	}{
		{"empty", nil},
		{"unknown protocol", []byte{9, 1, 2, 3}},
		{"short pubkey", append([]byte{byte(ProtocolPubkey)}, make([]byte, 31)...)},
		{"long actor", append([]byte{byte(ProtocolActor)}, make([]byte, 21)...)},
		{"empty id payload", []byte{byte(ProtocolID)}},
		{"truncated id varint", []byte{byte(ProtocolID), 0x80}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := AddressFromBytes(tt.b); !errors.Is(err, ErrInvalidAddress) {
				t.Errorf("err = %v, want ErrInvalidAddress", err)
			}
		})
	}
}

// TestSignatureVerify tests match, mismatch, and malformed inputs.
func TestSignatureVerify(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := NewPubkeyAddress(pub)
	if err != nil {
		t.Fatalf("pubkey address: %v", err)
	}
	plaintext := []byte("the quick brown fox")
	sig := Signature{Type: SigTypeEd25519, Data: ed25519.Sign(priv, plaintext)}

	ok, err := sig.Verify(signer, plaintext)
	if err != nil || !ok {
		t.Errorf("valid signature: ok=%v err=%v, want true", ok, err)
	}

	// Tampered plaintext fails verification without erroring.
	ok, err = sig.Verify(signer, []byte("the quick brown fax"))
	if err != nil {
		t.Errorf("tampered plaintext errored: %v", err)
	}
	if ok {
		t.Error("tampered plaintext verified")
	}

	// Wrong sized signature data is an error, not a false.
	bad := Signature{Type: SigTypeEd25519, Data: sig.Data[:32]}
	if _, err := bad.Verify(signer, plaintext); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("short signature: err = %v, want ErrInvalidSignature", err)
	}

	// Verifying against a non-pubkey address cannot be evaluated.
	if _, err := sig.Verify(NewIDAddress(101), plaintext); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("id signer: err = %v, want ErrInvalidAddress", err)
	}
}
