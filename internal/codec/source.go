package codec

import (
	"encoding/binary"
	"fmt"
)

// The buffer slice is advanced during reading.
type source struct {
	buffer []byte
}

// Available returns the number of bytes not consumed yet.
func (s *source) Available() int {
	return len(s.buffer)
}

// ReadInt reads a 32-bit signed little-endian integer.
func (s *source) ReadInt() int {
	if len(s.buffer) < IntSize {
		panic(fmt.Sprintf("ReadInt called, %d bytes required, but only %d bytes available", IntSize, len(s.buffer)))
	}
	value := int(int32(binary.LittleEndian.Uint32(s.buffer)))
	s.buffer = s.buffer[IntSize:]
	return value
}

// ReadNonNegativeInt reads an integer and panics if it is negative.
func (s *source) ReadNonNegativeInt() int {
	value := s.ReadInt()
	if value < 0 {
		panic(fmt.Sprintf("ReadNonNegativeInt call failed, negative value %d read", value))
	}
	return value
}

// ReadIntInRange reads an integer and panics unless min <= value <= max.
func (s *source) ReadIntInRange(min int, max int) int {
	value := s.ReadInt()
	if value < min || value > max {
		panic(fmt.Sprintf("ReadIntInRange call failed, value %d not in [%d, %d]", value, min, max))
	}
	return value
}

// ReadIndex reads an index into a collection of n elements.
func (s *source) ReadIndex(n int) int {
	return s.ReadIntInRange(0, n-1)
}

func (s *source) ReadBool() bool {
	if len(s.buffer) < 1 {
		panic("ReadBool called on empty source buffer")
	}
	switch s.buffer[0] {
	case 0:
		s.buffer = s.buffer[1:]
		return false
	case 1:
		s.buffer = s.buffer[1:]
		return true
	default:
		panic(fmt.Sprintf("ReadBool call failed, invalid encoding %d", s.buffer[0]))
	}
}

// ReadBytes returns the next length bytes without copying them. The capacity of the result is limited, so appending
// to it never overwrites the remaining source buffer.
func (s *source) ReadBytes(length int) []byte {
	if length < 0 || len(s.buffer) < length {
		panic(fmt.Sprintf("ReadBytes called with length %d, but only %d bytes available", length, len(s.buffer)))
	}
	value := s.buffer[:length:length]
	s.buffer = s.buffer[length:]
	return value
}

// ReadBytesInto fills the provided buffer.
func (s *source) ReadBytesInto(buffer []byte) {
	copy(buffer, s.ReadBytes(len(buffer)))
}

// ReadLengthPrefixedBytes reads a byte slice written by WriteLengthPrefixedBytes. A length of -1 denotes nil.
func (s *source) ReadLengthPrefixedBytes() []byte {
	length := s.ReadInt()
	if length == -1 {
		return nil
	}
	if length < 0 {
		panic("ReadLengthPrefixedBytes call failed, negative length field")
	}
	return s.ReadBytes(length)
}
