package format

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/x448/float16"
)

// Encode packs values little-endian in d's layout. Integer formats clamp to
// Range and round to nearest; float16 and float32 round to the narrower type.
func Encode(d Descriptor, values []float64) ([]byte, error) {
	if !d.Valid() {
		return nil, &UnknownFormatError{Name: d.Name()}
	}
	width := int(d.bits) / 8
	out := make([]byte, len(values)*width)
	lo, hi := d.Range()

	for i, v := range values {
		b := out[i*width : (i+1)*width]
		switch d.class {
		case Float:
			switch d.bits {
			case 16:
				binary.LittleEndian.PutUint16(b, float16.Fromfloat32(float32(v)).Bits())
			case 32:
				binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
			default:
				binary.LittleEndian.PutUint64(b, math.Float64bits(v))
			}
		case SignedInteger:
			putUint(b, uint64(int64(clampRound(v, lo, hi))))
		case UnsignedInteger:
			putUint(b, uint64(clampRound(v, lo, hi)))
		}
	}
	return out, nil
}

// Decode unpacks data written by Encode.
func Decode(d Descriptor, data []byte) ([]float64, error) {
	if !d.Valid() {
		return nil, &UnknownFormatError{Name: d.Name()}
	}
	width := int(d.bits) / 8
	if len(data)%width != 0 {
		return nil, fmt.Errorf("decode %s: %d bytes is not a multiple of %d", d, len(data), width)
	}
	out := make([]float64, len(data)/width)

	for i := range out {
		b := data[i*width : (i+1)*width]
		switch d.class {
		case Float:
			switch d.bits {
			case 16:
				out[i] = float64(float16.Frombits(binary.LittleEndian.Uint16(b)).Float32())
			case 32:
				out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
			default:
				out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b))
			}
		case SignedInteger:
			out[i] = float64(signExtend(getUint(b), int(d.bits)))
		case UnsignedInteger:
			out[i] = float64(getUint(b))
		}
	}
	return out, nil
}

func clampRound(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(math.Max(math.Round(v), lo), hi)
}

func putUint(b []byte, v uint64) {
	switch len(b) {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(v))
	default:
		binary.LittleEndian.PutUint64(b, v)
	}
}

func getUint(b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	default:
		return binary.LittleEndian.Uint64(b)
	}
}

func signExtend(v uint64, bits int) int64 {
	shift := 64 - bits
	return int64(v<<shift) >> shift
}
