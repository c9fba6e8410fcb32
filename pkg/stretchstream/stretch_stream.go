// Package stretchstream time-stretches a PCM byte stream.
package stretchstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/iamcalledrob/circular"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/stretch/pkg/audio"
	"github.com/xaionaro-go/stretch/pkg/audio/pcm"
	"github.com/xaionaro-go/stretch/pkg/stretch"
)

const (
	DefaultChunkFrames      = 1024
	DefaultOutputBufferSize = 1 << 20
)

type Options struct {
	// TimeFactor is the ratio of the output duration to the input duration.
	// Zero means 1.
	TimeFactor float64

	ChunkFrames      uint
	OutputBufferSize uint

	// CompensateLatency primes the stretcher with the beginning of the
	// stream and drops the engine delay, so the output starts aligned with
	// the input and has the same length (multiplied by TimeFactor).
	CompensateLatency bool
}

// Stream reads PCM from the input and produces the stretched PCM of the
// same format. It owns the Stretch and closes it on Close.
type Stream struct {
	stretch *stretch.Stretch
	format  audio.PCMFormat
	options Options

	readCtx    context.Context
	cancelFunc context.CancelFunc
	workerDone chan struct{}

	outputBufferLocker sync.Mutex
	outputBuffer       *circular.Buffer
	finished           bool
	resultError        error
	outputProgressedCh chan struct{}
	readProgressedCh   chan struct{}

	inputFrames  uint64
	outputFrames uint64
}

var _ io.ReadCloser = (*Stream)(nil)

func New(
	ctx context.Context,
	input io.Reader,
	s *stretch.Stretch,
	format audio.PCMFormat,
	opts Options,
) (*Stream, error) {
	if format.Size() == 0 {
		return nil, fmt.Errorf("unsupported PCM format: %v", format)
	}
	if opts.TimeFactor == 0 {
		opts.TimeFactor = 1
	}
	if opts.TimeFactor < 0 {
		return nil, fmt.Errorf("the time factor must be positive: %v", opts.TimeFactor)
	}
	if opts.ChunkFrames == 0 {
		opts.ChunkFrames = DefaultChunkFrames
	}
	if opts.OutputBufferSize == 0 {
		opts.OutputBufferSize = DefaultOutputBufferSize
	}
	if minSize := audio.BytesPerFrame(format, s.Channels()); opts.OutputBufferSize < minSize {
		return nil, fmt.Errorf("the output buffer size is smaller than one frame: %d < %d", opts.OutputBufferSize, minSize)
	}

	ctx, cancelFunc := context.WithCancel(ctx)
	stream := &Stream{
		stretch:    s,
		format:     format,
		options:    opts,
		readCtx:    ctx,
		cancelFunc: cancelFunc,
		workerDone: make(chan struct{}),

		outputBuffer:       circular.NewBuffer(int(opts.OutputBufferSize)),
		outputProgressedCh: make(chan struct{}),
		readProgressedCh:   make(chan struct{}),
	}
	observability.Go(ctx, func(ctx context.Context) {
		defer close(stream.workerDone)
		err := stream.workerLoop(ctx, input)
		stream.outputBufferLocker.Lock()
		defer stream.outputBufferLocker.Unlock()
		if err != nil && stream.resultError == nil {
			stream.resultError = fmt.Errorf("got an error from the stretcher loop: %w", err)
		}
		stream.finished = true
		stream.notifyOutputProgressed(ctx)
	})
	return stream, nil
}

type worker struct {
	*Stream
	input         io.Reader
	channels      int
	bytesPerFrame int
	inputBytes    []byte
	outputBytes   []byte
	inputSamples  []float32
	outputSamples []float32
	accumulator   float64
	framesToDrop  int
}

func (s *Stream) workerLoop(
	ctx context.Context,
	input io.Reader,
) (_err error) {
	logger.Tracef(ctx, "workerLoop")
	defer func() { logger.Tracef(ctx, "/workerLoop: %v", _err) }()

	w := &worker{
		Stream:        s,
		input:         input,
		channels:      int(s.stretch.Channels()),
		bytesPerFrame: int(audio.BytesPerFrame(s.format, s.stretch.Channels())),
	}

	outputLatency, err := s.stretch.OutputLatency()
	if err != nil {
		return fmt.Errorf("unable to get the output latency: %w", err)
	}

	var (
		eof     bool
		padding int
	)
	if s.options.CompensateLatency {
		inputLatency, err := s.stretch.InputLatency()
		if err != nil {
			return fmt.Errorf("unable to get the input latency: %w", err)
		}
		preroll := make([]float32, inputLatency*w.channels)
		var frames int
		frames, eof, err = w.readFrames(preroll)
		if err != nil {
			return err
		}
		logger.Debugf(ctx, "pre-rolling %d frames (input latency: %d)", frames, inputLatency)
		if err := s.stretch.Seek(ctx, preroll, 1/s.options.TimeFactor); err != nil {
			return fmt.Errorf("unable to seek: %w", err)
		}
		// the engine still holds the pre-rolled frames, push them out with silence
		padding = frames
		w.framesToDrop = outputLatency
	}

	chunk := make([]float32, int(s.options.ChunkFrames)*w.channels)
	for !eof {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var frames int
		frames, eof, err = w.readFrames(chunk)
		if err != nil {
			return err
		}
		if err := w.process(ctx, chunk[:frames*w.channels], frames); err != nil {
			return err
		}
	}

	clear(chunk)
	for padding > 0 {
		frames := min(padding, int(s.options.ChunkFrames))
		if err := w.process(ctx, chunk[:frames*w.channels], frames); err != nil {
			return err
		}
		padding -= frames
	}

	tail := w.samplesBuffer(outputLatency)
	if err := s.stretch.Flush(ctx, tail); err != nil {
		return fmt.Errorf("unable to flush: %w", err)
	}
	return w.emit(ctx, tail)
}

// readFrames fills the buffer with whole frames from the input. A trailing
// partial frame at the end of the input is dropped.
func (w *worker) readFrames(buf []float32) (int, bool, error) {
	frames := len(buf) / w.channels
	size := frames * w.bytesPerFrame
	if cap(w.inputBytes) < size {
		w.inputBytes = make([]byte, size)
	}
	b := w.inputBytes[:size]

	n, err := io.ReadFull(w.input, b)
	eof := false
	switch {
	case err == nil:
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		eof = true
	default:
		return 0, false, fmt.Errorf("unable to read the input: %w", err)
	}
	if remainder := n % w.bytesPerFrame; remainder != 0 {
		logger.Warnf(w.readCtx, "dropping %d bytes of a partial frame at the end of the input", remainder)
		n -= remainder
	}

	samples, err := pcm.Decode(w.format, buf, b[:n])
	if err != nil {
		return 0, false, fmt.Errorf("unable to decode the input: %w", err)
	}
	frames = samples / w.channels
	w.inputFrames += uint64(frames)
	return frames, eof, nil
}

func (w *worker) samplesBuffer(frames int) []float32 {
	size := frames * w.channels
	if cap(w.outputSamples) < size {
		w.outputSamples = make([]float32, size)
	}
	return w.outputSamples[:size]
}

func (w *worker) process(ctx context.Context, input []float32, inputFrames int) error {
	w.accumulator += float64(inputFrames) * w.options.TimeFactor
	outputFrames := int(w.accumulator)
	w.accumulator -= float64(outputFrames)

	output := w.samplesBuffer(outputFrames)
	if err := w.stretch.ProcessRaw(ctx, input, inputFrames, output, outputFrames); err != nil {
		return fmt.Errorf("unable to process %d frames: %w", inputFrames, err)
	}
	return w.emit(ctx, output)
}

func (w *worker) emit(ctx context.Context, samples []float32) error {
	if w.framesToDrop > 0 {
		drop := min(w.framesToDrop, len(samples)/w.channels)
		samples = samples[drop*w.channels:]
		w.framesToDrop -= drop
	}
	if len(samples) == 0 {
		return nil
	}

	size := len(samples) * int(w.format.Size())
	if cap(w.outputBytes) < size {
		w.outputBytes = make([]byte, size)
	}
	b := w.outputBytes[:size]
	if _, err := pcm.Encode(w.format, b, samples); err != nil {
		return fmt.Errorf("unable to encode the output: %w", err)
	}
	if err := w.write(ctx, b); err != nil {
		return err
	}
	w.outputFrames += uint64(len(samples) / w.channels)
	return nil
}

func (s *Stream) write(ctx context.Context, b []byte) error {
	s.outputBufferLocker.Lock()
	defer s.outputBufferLocker.Unlock()

	// a piece must fit into an empty buffer
	maxPiece := max(int(s.options.OutputBufferSize)/2, 1)
	for len(b) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		piece := b[:min(len(b), maxPiece)]
		n, err := s.outputBuffer.Write(piece)
		if err != nil {
			if errors.Is(err, circular.ErrNoSpace) {
				s.waitForRead(ctx)
				continue
			}
			return fmt.Errorf("unable to write to the circular buffer: %w", err)
		}
		if n != len(piece) {
			return fmt.Errorf("wrote != requested: %d != %d", n, len(piece))
		}
		b = b[n:]
		s.notifyOutputProgressed(ctx)
	}
	return nil
}

func (s *Stream) notifyOutputProgressed(ctx context.Context) {
	logger.Tracef(ctx, "closing outputProgressedCh")
	var oldCh chan struct{}
	oldCh, s.outputProgressedCh = s.outputProgressedCh, make(chan struct{})
	close(oldCh)
}

func (s *Stream) waitForRead(ctx context.Context) {
	logger.Tracef(ctx, "waitForRead")
	defer logger.Tracef(ctx, "/waitForRead")

	ch := s.readProgressedCh
	s.outputBufferLocker.Unlock()
	defer s.outputBufferLocker.Lock()
	select {
	case <-ctx.Done():
	case <-ch:
		logger.Tracef(ctx, "waitForRead: received an event")
	}
}

func (s *Stream) Read(p []byte) (_ret int, _err error) {
	logger.Tracef(s.readCtx, "Read, len:%d", len(p))
	defer func() { logger.Tracef(s.readCtx, "/Read, len:%d: %d, %v", len(p), _ret, _err) }()

	s.outputBufferLocker.Lock()
	defer s.outputBufferLocker.Unlock()

	for {
		n, err := s.outputBuffer.Read(p)
		if n > 0 {
			var oldCh chan struct{}
			oldCh, s.readProgressedCh = s.readProgressedCh, make(chan struct{})
			close(oldCh)
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return n, err
		}
		if n > 0 || len(p) == 0 {
			return n, nil
		}
		if s.resultError != nil {
			return 0, s.resultError
		}
		if s.finished {
			return 0, io.EOF
		}
		s.waitForOutputProgressed(s.readCtx)
		if err := s.readCtx.Err(); err != nil && !s.finished {
			return 0, err
		}
	}
}

func (s *Stream) waitForOutputProgressed(ctx context.Context) {
	logger.Tracef(ctx, "waitForOutputProgressed")
	defer logger.Tracef(ctx, "/waitForOutputProgressed")

	ch := s.outputProgressedCh
	s.outputBufferLocker.Unlock()
	defer s.outputBufferLocker.Lock()
	select {
	case <-ctx.Done():
	case <-ch:
		logger.Tracef(ctx, "waitForOutputProgressed: received an event")
	}
}

// Frames waits until the processing ends and returns how many frames were
// read from the input and written to the output.
func (s *Stream) Frames() (input uint64, output uint64) {
	<-s.workerDone
	return s.inputFrames, s.outputFrames
}

// Close stops the processing and closes the stretcher.
func (s *Stream) Close() error {
	s.cancelFunc()
	<-s.workerDone

	var mErr *multierror.Error
	s.outputBufferLocker.Lock()
	if s.resultError != nil && !errors.Is(s.resultError, context.Canceled) {
		mErr = multierror.Append(mErr, s.resultError)
	}
	s.outputBufferLocker.Unlock()
	if err := s.stretch.Close(); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf("unable to close the stretcher: %w", err))
	}
	return mErr.ErrorOrNil()
}
