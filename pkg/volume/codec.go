package volume

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/golang/snappy"
)

// BytesPerSample is the wire size of one float32 sample
const BytesPerSample = 4

// EncodePlane serialises samples as little-endian float32, row-major
func EncodePlane(data []float32) []byte {
	out := make([]byte, len(data)*BytesPerSample)
	for i, v := range data {
		binary.LittleEndian.PutUint32(out[i*BytesPerSample:], math.Float32bits(v))
	}
	return out
}

// DecodePlane parses a width×height plane, rejecting bodies of the wrong length
func DecodePlane(b []byte, width, height int) ([]float32, error) {
	n := width * height
	if len(b) != n*BytesPerSample {
		return nil, fmt.Errorf("plane body has %d bytes, expected %d for %dx%d float32",
			len(b), n*BytesPerSample, width, height)
	}
	data := make([]float32, n)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*BytesPerSample:]))
	}
	return data, nil
}

// EncodingHeader negotiates an optional compression of plane bodies. A client
// sets it on the request; the backend echoes it when the body is compressed.
const EncodingHeader = "X-Plane-Encoding"

// EncodingSnappy selects snappy block compression
const EncodingSnappy = "snappy"

// CompressPlane snappy-compresses an encoded plane
func CompressPlane(b []byte) []byte {
	return snappy.Encode(nil, b)
}

// DecompressPlane reverses CompressPlane
func DecompressPlane(b []byte) ([]byte, error) {
	out, err := snappy.Decode(nil, b)
	if err != nil {
		return nil, fmt.Errorf("bad snappy plane body: %w", err)
	}
	return out, nil
}
