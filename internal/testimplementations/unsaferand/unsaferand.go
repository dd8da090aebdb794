package unsaferand

import (
	crand "crypto/rand"
	"fmt"
	"io"

	"github.com/bftkit/thresholdcore/internal/crypto/xof"
)

// UnsafeRand is a deterministic io.Reader for tests. Its output stream is derived from the seed arguments only, so it
// must never be used to generate real key material. Not safe for concurrent use.
type UnsafeRand struct {
	stream *xof.XOF
}

var _ io.Reader = &UnsafeRand{}

// New returns a reader whose output depends only on fmt.Sprintf("%#v", seedArgs). Maps must not be passed as seed
// arguments, their formatting is not deterministic.
func New(seedArgs ...any) *UnsafeRand {
	h := xof.New("thresholdcore/testing/unsaferand")
	h.WriteString(fmt.Sprintf("%#v", seedArgs))
	return &UnsafeRand{h}
}

// NewNondeterministic returns a reader seeded from crypto/rand, useful to vary inputs across test runs.
func NewNondeterministic() *UnsafeRand {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		panic(err)
	}
	return New(seed)
}

// Read never fails.
func (r *UnsafeRand) Read(p []byte) (int, error) {
	return r.stream.Read(p)
}
