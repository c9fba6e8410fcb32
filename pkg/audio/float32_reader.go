package audio

import (
	"encoding/binary"
	"io"
	"math"
)

type Float32Reader interface {
	Read([]float32) (int, error)
}

type readerFromFloat32Reader struct {
	backend Float32Reader
	samples []float32
	pending []byte
	err     error
}

// NewReaderFromFloat32Reader returns a reader of little-endian float32 PCM
// (PCMFormatFloat32LE) backed by a reader of samples, e.g. an Ogg Vorbis decoder.
func NewReaderFromFloat32Reader(r Float32Reader) io.Reader {
	return &readerFromFloat32Reader{
		backend: r,
		samples: make([]float32, 4096),
	}
}

func (r *readerFromFloat32Reader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		n, err := r.backend.Read(r.samples)
		r.err = err
		if n <= 0 {
			continue
		}
		buf := r.pending[:0]
		if cap(buf) < n*4 {
			buf = make([]byte, 0, n*4)
		}
		for _, v := range r.samples[:n] {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
		}
		r.pending = buf
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}
