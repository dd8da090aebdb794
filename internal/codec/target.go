package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

type target struct {
	buffer []byte
}

func (t *target) Written() int {
	return len(t.buffer)
}

// Marshal writes the given object into this target, recovering panics raised by the marshaling of child objects.
// Use Write to propagate them instead.
func (t *target) Marshal(object Marshaler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recovered panic during marshaling: %v", r)
		}
	}()

	t.Write(object)
	return nil
}

// Write is an alias for object.MarshalTo(t). The object must not be nil.
func (t *target) Write(object Marshaler) {
	if object == nil {
		panic("Write called with nil object")
	}
	object.MarshalTo(t)
}

// WriteOptional writes a presence flag followed by the object if it is not nil.
func (t *target) WriteOptional(object MarshalerWithNilSupport) {
	if object == nil || object.IsNil() {
		t.WriteBool(false)
		return
	}
	t.WriteBool(true)
	object.MarshalTo(t)
}

func (t *target) WriteInt(value int) {
	if value > math.MaxInt32 || value < math.MinInt32 {
		panic(fmt.Sprintf("WriteInt called with value %d, which is out of range of int32", value))
	}
	t.buffer = binary.LittleEndian.AppendUint32(t.buffer, uint32(value))
}

func (t *target) WriteBool(value bool) {
	if value {
		t.buffer = append(t.buffer, 1)
	} else {
		t.buffer = append(t.buffer, 0)
	}
}

func (t *target) WriteBytes(value []byte) {
	t.buffer = append(t.buffer, value...)
}

// WriteLengthPrefixedBytes writes len(value) followed by value; nil is written as length -1.
func (t *target) WriteLengthPrefixedBytes(value []byte) {
	if value == nil {
		t.WriteInt(-1)
		return
	}
	t.WriteInt(len(value))
	t.WriteBytes(value)
}

func (t *target) WriteString(value string) {
	t.WriteInt(len(value))
	t.buffer = append(t.buffer, value...)
}
