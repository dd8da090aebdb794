package codec

import "fmt"

// Binary codec shared by every wire and persistence format of this module. All integers are encoded as 32-bit signed
// values in little-endian byte order.
//
// Marshaling code writes into a Target, unmarshaling code reads from a Source and panics on malformed input. The
// top-level functions of this package recover those panics and turn them into errors, so individual MarshalTo and
// UnmarshalFrom implementations stay free of error plumbing.

const IntSize = 4

type Marshaler interface {
	MarshalTo(target Target)
}

type MarshalerWithNilSupport interface {
	Marshaler

	// IsNil returns true if the object is nil.
	IsNil() bool
}

type Unmarshaler[T any] interface {
	UnmarshalFrom(source Source) T
}

type Codec[T any] interface {
	MarshalerWithNilSupport
	Unmarshaler[T]
}

type Target = *target
type Source = *source

// NewSource returns a source reading from the given bytes. The slice is not copied.
func NewSource(data []byte) Source {
	return &source{data}
}

// Marshal encodes the given (non-nil) object into a new byte slice.
func Marshal(object Marshaler) ([]byte, error) {
	target := &target{}
	if err := target.Marshal(object); err != nil {
		return nil, err
	}
	return target.buffer, nil
}

// MarshalUsing encodes a value using the given function. Panics raised by the function are returned as errors.
func MarshalUsing(marshalFunc func(Target)) (result []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("recovered panic during marshaling: %v", r)
		}
	}()

	t := &target{}
	marshalFunc(t)
	return t.buffer, nil
}

// Unmarshal decodes the given bytes into a new instance of type T and fails if any input bytes remain unread.
func Unmarshal[T any](data []byte, unmarshaler Unmarshaler[T]) (T, error) {
	return UnmarshalUsing(data, unmarshaler.UnmarshalFrom)
}

// UnmarshalUsing decodes the given bytes using the provided function and fails if any input bytes remain unread.
func UnmarshalUsing[T any](data []byte, unmarshalFunc func(Source) T) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			result, err = zero, fmt.Errorf("recovered panic while unmarshaling: %v", r)
		}
	}()

	src := &source{data}
	result = unmarshalFunc(src)
	if src.Available() > 0 {
		var zero T
		return zero, fmt.Errorf("unmarshaling did not consume all bytes, %d bytes remaining", src.Available())
	}
	return result, nil
}

// UnmarshalFromSource reads the next object of type T from the given source. Additional data remaining in the source
// is not considered an error.
func UnmarshalFromSource[T any](source Source, obj Unmarshaler[T]) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			result, err = zero, fmt.Errorf("recovered panic while unmarshaling: %v", r)
		}
	}()
	return obj.UnmarshalFrom(source), nil
}

// ReadOptional reads an optional object written by Target.WriteOptional. A missing value yields the zero value of T.
// The factory is only invoked if a value is present.
func ReadOptional[T any, F Unmarshaler[T]](source Source, factory func() F) T {
	if !source.ReadBool() {
		var zero T
		return zero
	}
	return factory().UnmarshalFrom(source)
}

// ReadOptionalValue is like ReadOptional, but reports whether a value was present.
func ReadOptionalValue[T any](s Source, u Unmarshaler[T]) (T, bool) {
	if !s.ReadBool() {
		var zero T
		return zero, false
	}
	return u.UnmarshalFrom(s), true
}

// ReadList reads a count-prefixed list written by WriteList. The count must not exceed maxLength.
func ReadList[T any](s Source, maxLength int, readFunc func(Source) T) []T {
	n := s.ReadIntInRange(0, maxLength)
	list := make([]T, n)
	for i := range list {
		list[i] = readFunc(s)
	}
	return list
}

// WriteList writes the number of elements followed by each element.
func WriteList[T any](t Target, list []T, writeFunc func(Target, T)) {
	t.WriteInt(len(list))
	for _, e := range list {
		writeFunc(t, e)
	}
}
