// Package resampler converts a PCM stream between sample formats, channel
// layouts and sample rates (nearest-neighbour).
package resampler

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/xaionaro-go/stretch/pkg/audio"
	"github.com/xaionaro-go/stretch/pkg/audio/pcm"
)

const (
	distanceStep = 10000
)

type Format struct {
	Channels   audio.Channel
	SampleRate audio.SampleRate
	PCMFormat  audio.PCMFormat
}

func (f Format) bytesPerFrame() int {
	return int(audio.BytesPerFrame(f.PCMFormat, f.Channels))
}

type Resampler struct {
	inReader        io.Reader
	inFormat        Format
	outFormat       Format
	inDistance      uint64
	outDistance     uint64
	outDistanceStep uint64
	locker          sync.Mutex

	// buffer[:pending] holds input bytes not converted yet
	buffer  []byte
	pending int

	inFrame  []float32
	outFrame []float32
}

var _ io.Reader = (*Resampler)(nil)

func NewResampler(
	inFormat Format,
	inReader io.Reader,
	outFormat Format,
) (*Resampler, error) {
	r := &Resampler{
		inReader:  inReader,
		inFormat:  inFormat,
		outFormat: outFormat,
	}
	err := r.init()
	if err != nil {
		return nil, fmt.Errorf("unable to initialize a resampler from %#+v to %#+v: %w", inFormat, outFormat, err)
	}
	return r, nil
}

func (r *Resampler) init() error {
	for _, f := range []Format{r.inFormat, r.outFormat} {
		if f.PCMFormat.Size() == 0 {
			return fmt.Errorf("unsupported PCM format: %v", f.PCMFormat)
		}
		if f.Channels == 0 {
			return fmt.Errorf("the amount of channels must be positive")
		}
		if f.SampleRate == 0 {
			return fmt.Errorf("the sample rate must be positive")
		}
	}
	if r.inFormat.Channels != r.outFormat.Channels && r.inFormat.Channels != 1 && r.outFormat.Channels != 1 {
		return fmt.Errorf("do not know how to convert %d channels to %d", r.inFormat.Channels, r.outFormat.Channels)
	}

	sampleRateAdjust := float64(r.outFormat.SampleRate) / float64(r.inFormat.SampleRate)
	r.outDistanceStep = uint64(float64(distanceStep) / sampleRateAdjust)

	r.inDistance = 0
	r.outDistance = 0
	r.inFrame = make([]float32, r.inFormat.Channels)
	r.outFrame = make([]float32, r.outFormat.Channels)
	return nil
}

// Read returns only whole output frames. A trailing partial frame of the
// input is dropped.
func (r *Resampler) Read(p []byte) (int, error) {
	r.locker.Lock()
	defer r.locker.Unlock()

	for {
		n, err := r.readOnce(p)
		if n > 0 || err != nil || len(p) < r.outFormat.bytesPerFrame() {
			return n, err
		}
	}
}

func (r *Resampler) readOnce(p []byte) (int, error) {
	inFrameSize := r.inFormat.bytesPerFrame()
	outFrameSize := r.outFormat.bytesPerFrame()

	maxOutFrames := uint64(len(p) / outFrameSize)
	if maxOutFrames == 0 {
		return 0, nil
	}

	framesToRead := uint64(float64(maxOutFrames) * float64(r.inFormat.SampleRate) / float64(r.outFormat.SampleRate))
	if framesToRead == 0 {
		framesToRead = 1
	}
	size := r.pending + int(framesToRead)*inFrameSize
	if cap(r.buffer) < size {
		buf := make([]byte, size)
		copy(buf, r.buffer[:r.pending])
		r.buffer = buf
	}
	r.buffer = r.buffer[:size]
	n, err := r.inReader.Read(r.buffer[r.pending:])
	total := r.pending + n
	framesRead := uint64(total / inFrameSize)

	dstFrameIdx := uint64(0)
	srcFrameIdx := uint64(0)
	for srcFrameIdx < framesRead && dstFrameIdx < maxOutFrames {
		// If we are too far ahead in input distance, skip input frames
		for r.inDistance < r.outDistance && srcFrameIdx < framesRead {
			srcFrameIdx++
			r.inDistance += distanceStep
		}
		if srcFrameIdx >= framesRead {
			break
		}

		idxSrc := int(srcFrameIdx) * inFrameSize
		if _, decErr := pcm.Decode(r.inFormat.PCMFormat, r.inFrame, r.buffer[idxSrc:idxSrc+inFrameSize]); decErr != nil {
			return 0, decErr
		}
		r.convertChannels()

		// Write the output frame (possibly repeated)
		for dstFrameIdx < maxOutFrames && r.outDistance <= r.inDistance {
			idxDst := int(dstFrameIdx) * outFrameSize
			if _, encErr := pcm.Encode(r.outFormat.PCMFormat, p[idxDst:idxDst+outFrameSize], r.outFrame); encErr != nil {
				return 0, encErr
			}
			dstFrameIdx++
			r.outDistance += r.outDistanceStep
		}

		srcFrameIdx++
		r.inDistance += distanceStep
	}

	consumed := int(srcFrameIdx) * inFrameSize
	r.pending = copy(r.buffer, r.buffer[consumed:total])

	if errors.Is(err, io.EOF) && r.pending >= inFrameSize {
		// whole frames are still buffered, EOF is reported after them
		err = nil
	}
	return int(dstFrameIdx) * outFrameSize, err
}

func (r *Resampler) convertChannels() {
	switch {
	case len(r.inFrame) == len(r.outFrame):
		copy(r.outFrame, r.inFrame)
	case len(r.inFrame) == 1:
		for idx := range r.outFrame {
			r.outFrame[idx] = r.inFrame[0]
		}
	default:
		var sum float64
		for _, v := range r.inFrame {
			sum += float64(v)
		}
		r.outFrame[0] = float32(sum / float64(len(r.inFrame)))
	}
}
