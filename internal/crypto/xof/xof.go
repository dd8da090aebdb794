package xof

import (
	"encoding/binary"
	"io"

	"golang.org/x/crypto/sha3"
)

// Hash function based on the SHAKE256 XOF with a mandatory domain separation tag and an unambiguous encoding of its
// typed arguments. It serves as random oracle for the TPKE mask (H1), as key derivation function of the per-message
// encryption keys, and as source of Fiat-Shamir challenges.

var _ io.Reader = &XOF{}

type XOF struct {
	dst        string
	shake      sha3.ShakeHash
	digest     []byte
	readCalled bool
}

type argType byte

const (
	_ argType = iota
	argTypeNil
	argTypeFalse
	argTypeTrue
	argTypeInt
	argTypeBytes
	argTypeString
)

// DigestLength is the length of the value returned by Digest.
const DigestLength = 32

// New initializes a XOF instance and absorbs the given domain separation tag.
func New(dst string) *XOF {
	h := &XOF{dst: dst, shake: sha3.NewShake256()}
	h.WriteString(h.dst)
	return h
}

func (h *XOF) writeArgType(t argType) {
	if h.digest != nil || h.readCalled {
		panic("xof: write after squeezing")
	}
	_, _ = h.shake.Write([]byte{byte(t)})
}

func (h *XOF) writeLength(n int) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(n))
	_, _ = h.shake.Write(b[:])
}

func (h *XOF) WriteBool(value bool) {
	if value {
		h.writeArgType(argTypeTrue)
	} else {
		h.writeArgType(argTypeFalse)
	}
}

func (h *XOF) WriteInt(value int) {
	h.writeArgType(argTypeInt)
	h.writeLength(value)
}

// WriteBytes absorbs a byte slice; nil and empty slices are distinguished.
func (h *XOF) WriteBytes(data []byte) {
	if data == nil {
		h.writeArgType(argTypeNil)
		return
	}
	h.writeArgType(argTypeBytes)
	h.writeLength(len(data))
	_, _ = h.shake.Write(data)
}

func (h *XOF) WriteString(str string) {
	h.writeArgType(argTypeString)
	h.writeLength(len(str))
	_, _ = h.shake.Write([]byte(str))
}

// Read squeezes output from the XOF. Successive calls continue the output stream. No writes or Digest calls are
// allowed afterwards. The returned error is always nil.
func (h *XOF) Read(out []byte) (n int, err error) {
	if h.digest != nil {
		panic("xof: Read after Digest")
	}
	h.readCalled = true
	return h.shake.Read(out)
}

// Bytes squeezes n bytes of output.
func (h *XOF) Bytes(n int) []byte {
	out := make([]byte, n)
	_, _ = h.Read(out)
	return out
}

// Digest returns a DigestLength byte digest. Repeated calls return the same value.
func (h *XOF) Digest() []byte {
	if h.readCalled {
		panic("xof: Digest after Read")
	}
	if h.digest == nil {
		h.digest = make([]byte, DigestLength)
		_, _ = h.shake.Read(h.digest)
	}
	return append([]byte(nil), h.digest...)
}

// Clone returns an independent copy of the current state, e.g., to derive several outputs from a common prefix.
func (h *XOF) Clone() *XOF {
	return &XOF{
		dst:        h.dst,
		shake:      h.shake.Clone(),
		digest:     append([]byte(nil), h.digest...),
		readCalled: h.readCalled,
	}
}

// Reset restores the state right after New, including the domain separation tag.
func (h *XOF) Reset() {
	h.shake.Reset()
	h.digest = nil
	h.readCalled = false
	h.WriteString(h.dst)
}
