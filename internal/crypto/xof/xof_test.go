package xof

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDomainSeparation(t *testing.T) {
	a := New("a")
	b := New("b")
	a.WriteInt(1)
	b.WriteInt(1)
	require.NotEqual(t, a.Digest(), b.Digest())
}

func TestArgumentEncodingIsUnambiguous(t *testing.T) {
	a := New("dst")
	a.WriteBytes([]byte("ab"))
	a.WriteBytes([]byte("c"))

	b := New("dst")
	b.WriteBytes([]byte("a"))
	b.WriteBytes([]byte("bc"))
	require.NotEqual(t, a.Digest(), b.Digest())

	c := New("dst")
	c.WriteBytes(nil)
	d := New("dst")
	d.WriteBytes([]byte{})
	require.NotEqual(t, c.Digest(), d.Digest())
}

func TestDigestIsStable(t *testing.T) {
	h := New("dst")
	h.WriteString("x")
	d1 := h.Digest()
	d2 := h.Digest()
	require.Equal(t, d1, d2)
	require.Len(t, d1, DigestLength)

	h.Reset()
	h.WriteString("x")
	require.Equal(t, d1, h.Digest())
}

func TestCloneIsIndependent(t *testing.T) {
	h := New("dst")
	h.WriteInt(7)
	c := h.Clone()
	c.WriteInt(8)

	ref := New("dst")
	ref.WriteInt(7)
	require.Equal(t, ref.Digest(), h.Digest())
	require.NotEqual(t, ref.Digest(), c.Digest())
}

func TestWriteAfterReadPanics(t *testing.T) {
	h := New("dst")
	_ = h.Bytes(10)
	require.Panics(t, func() { h.WriteInt(1) })
	require.Panics(t, func() { h.Digest() })
}
