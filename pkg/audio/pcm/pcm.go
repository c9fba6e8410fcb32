// Package pcm converts between raw PCM bytes and interleaved float32 samples
// normalized to [-1, 1].
package pcm

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/xaionaro-go/stretch/pkg/audio"
)

// Decode converts PCM bytes of the given format into float32 samples.
// It returns the amount of samples written to output.
func Decode(format audio.PCMFormat, output []float32, input []byte) (int, error) {
	sampleSize := int(format.Size())
	if sampleSize == 0 {
		return 0, fmt.Errorf("unsupported PCM format: %v", format)
	}
	if len(input)%sampleSize != 0 {
		return 0, fmt.Errorf("the size of the input is not a multiple of the sample size: %d %% %d != 0", len(input), sampleSize)
	}
	count := len(input) / sampleSize
	if len(output) < count {
		return 0, fmt.Errorf("the output is too short: %d < %d", len(output), count)
	}
	for idx := 0; idx < count; idx++ {
		output[idx] = float32(getFloat64(format, input[idx*sampleSize:]))
	}
	return count, nil
}

// Encode converts float32 samples into PCM bytes of the given format.
// Values outside [-1, 1] are clipped for integer formats.
// It returns the amount of bytes written to output.
func Encode(format audio.PCMFormat, output []byte, input []float32) (int, error) {
	sampleSize := int(format.Size())
	if sampleSize == 0 {
		return 0, fmt.Errorf("unsupported PCM format: %v", format)
	}
	size := len(input) * sampleSize
	if len(output) < size {
		return 0, fmt.Errorf("the output is too short: %d < %d", len(output), size)
	}
	for idx, v := range input {
		setFloat64(format, output[idx*sampleSize:], float64(v))
	}
	return size, nil
}

func getFloat64(f audio.PCMFormat, p []byte) float64 {
	switch f {
	case audio.PCMFormatU8:
		return (float64(p[0]) - 128) / 128
	case audio.PCMFormatS16LE:
		return float64(int16(binary.LittleEndian.Uint16(p))) / 32768
	case audio.PCMFormatS16BE:
		return float64(int16(binary.BigEndian.Uint16(p))) / 32768
	case audio.PCMFormatS24LE:
		return float64(signExtend24(uint32(p[0])|uint32(p[1])<<8|uint32(p[2])<<16)) / 8388608
	case audio.PCMFormatS24BE:
		return float64(signExtend24(uint32(p[2])|uint32(p[1])<<8|uint32(p[0])<<16)) / 8388608
	case audio.PCMFormatS32LE:
		return float64(int32(binary.LittleEndian.Uint32(p))) / 2147483648
	case audio.PCMFormatS32BE:
		return float64(int32(binary.BigEndian.Uint32(p))) / 2147483648
	case audio.PCMFormatFloat32LE:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(p)))
	case audio.PCMFormatFloat32BE:
		return float64(math.Float32frombits(binary.BigEndian.Uint32(p)))
	case audio.PCMFormatFloat64LE:
		return math.Float64frombits(binary.LittleEndian.Uint64(p))
	case audio.PCMFormatFloat64BE:
		return math.Float64frombits(binary.BigEndian.Uint64(p))
	default:
		panic(fmt.Sprintf("unknown format: %v", f))
	}
}

func setFloat64(f audio.PCMFormat, p []byte, v float64) {
	switch f {
	case audio.PCMFormatU8:
		p[0] = byte(clampInt(math.Round(v*128+128), 0, math.MaxUint8))
	case audio.PCMFormatS16LE:
		binary.LittleEndian.PutUint16(p, uint16(int16(clampInt(math.Round(v*32768), math.MinInt16, math.MaxInt16))))
	case audio.PCMFormatS16BE:
		binary.BigEndian.PutUint16(p, uint16(int16(clampInt(math.Round(v*32768), math.MinInt16, math.MaxInt16))))
	case audio.PCMFormatS24LE:
		val := int32(clampInt(math.Round(v*8388608), -8388608, 8388607))
		p[0] = byte(val)
		p[1] = byte(val >> 8)
		p[2] = byte(val >> 16)
	case audio.PCMFormatS24BE:
		val := int32(clampInt(math.Round(v*8388608), -8388608, 8388607))
		p[0] = byte(val >> 16)
		p[1] = byte(val >> 8)
		p[2] = byte(val)
	case audio.PCMFormatS32LE:
		binary.LittleEndian.PutUint32(p, uint32(int32(clampInt(math.Round(v*2147483648), math.MinInt32, math.MaxInt32))))
	case audio.PCMFormatS32BE:
		binary.BigEndian.PutUint32(p, uint32(int32(clampInt(math.Round(v*2147483648), math.MinInt32, math.MaxInt32))))
	case audio.PCMFormatFloat32LE:
		binary.LittleEndian.PutUint32(p, math.Float32bits(float32(v)))
	case audio.PCMFormatFloat32BE:
		binary.BigEndian.PutUint32(p, math.Float32bits(float32(v)))
	case audio.PCMFormatFloat64LE:
		binary.LittleEndian.PutUint64(p, math.Float64bits(v))
	case audio.PCMFormatFloat64BE:
		binary.BigEndian.PutUint64(p, math.Float64bits(v))
	default:
		panic(fmt.Sprintf("unknown format: %v", f))
	}
}

func signExtend24(v uint32) int32 {
	val := int32(v)
	if val&0x800000 != 0 {
		val |= -16777216
	}
	return val
}

func clampInt(v, min, max float64) int64 {
	if v < min {
		return int64(min)
	}
	if v > max {
		return int64(max)
	}
	return int64(v)
}
