package tensor

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/x448/float16"
)

// EncodeFloat32 packs values as little-endian IEEE 754 single precision,
// the layout GPU storage buffers expect.
func EncodeFloat32(values []float32) []byte {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// EncodeFloat16 packs values as little-endian half precision.
func EncodeFloat16(values []float32) []byte {
	buf := make([]byte, len(values)*2)
	for i, v := range values {
		binary.LittleEndian.PutUint16(buf[i*2:], float16.Fromfloat32(v).Bits())
	}
	return buf
}

// DecodeFloats unpacks raw little-endian data of the given type into float32 values.
// Only floating point types are accepted.
func DecodeFloats(raw []byte, dt DataType) ([]float32, error) {
	switch dt {
	case Float32:
		if len(raw)%4 != 0 {
			return nil, fmt.Errorf("float32 data length %d is not a multiple of 4", len(raw))
		}
		out := make([]float32, len(raw)/4)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		return out, nil
	case Float16:
		if len(raw)%2 != 0 {
			return nil, fmt.Errorf("float16 data length %d is not a multiple of 2", len(raw))
		}
		out := make([]float32, len(raw)/2)
		for i := range out {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(raw[i*2:])).Float32()
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cannot decode %s data as floats", dt)
	}
}
