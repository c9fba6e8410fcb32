package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/facebookincubator/go-belt/tool/logger"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/xaionaro-go/datacounter"
	"github.com/xaionaro-go/stretch/pkg/audio"
	"github.com/xaionaro-go/stretch/pkg/audio/pcm"
)

type output interface {
	WriteFrom(io.Reader) error
	Close() error
}

func createOutput(
	ctx context.Context,
	path string,
	format audio.PCMFormat,
	channels audio.Channel,
	sampleRate audio.SampleRate,
) (output, error) {
	if path == "-" {
		return &rawOutput{
			ctx:    ctx,
			writer: datacounter.NewWriterCounter(os.Stdout),
		}, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("unable to create '%s': %w", path, err)
	}
	if strings.ToLower(filepath.Ext(path)) != ".wav" {
		return &rawOutput{
			ctx:    ctx,
			writer: datacounter.NewWriterCounter(f),
			closer: f,
		}, nil
	}
	return &wavOutput{
		file:     f,
		encoder:  wav.NewEncoder(f, int(sampleRate), 32, int(channels), 1),
		format:   format,
		channels: channels,
		buffer: &goaudio.IntBuffer{
			Format: &goaudio.Format{
				NumChannels: int(channels),
				SampleRate:  int(sampleRate),
			},
			SourceBitDepth: 32,
		},
	}, nil
}

type rawOutput struct {
	ctx    context.Context
	writer *datacounter.WriterCounter
	closer io.Closer
}

func (o *rawOutput) WriteFrom(r io.Reader) error {
	_, err := io.Copy(o.writer, r)
	return err
}

func (o *rawOutput) Close() error {
	logger.Debugf(o.ctx, "raw output: %d bytes", o.writer.Count())
	if o.closer == nil {
		return nil
	}
	return o.closer.Close()
}

type wavOutput struct {
	file     *os.File
	encoder  *wav.Encoder
	format   audio.PCMFormat
	channels audio.Channel
	buffer   *goaudio.IntBuffer
}

func (o *wavOutput) WriteFrom(r io.Reader) error {
	frameSize := int(audio.BytesPerFrame(o.format, o.channels))
	chunk := make([]byte, frameSize*1024)
	var samples []float32
	pending := 0
	for {
		n, err := r.Read(chunk[pending:])
		pending += n
		if whole := pending - pending%frameSize; whole > 0 {
			count := whole / int(o.format.Size())
			if cap(samples) < count {
				samples = make([]float32, count)
			}
			samples = samples[:count]
			if _, err := pcm.Decode(o.format, samples, chunk[:whole]); err != nil {
				return err
			}
			if err := o.write(samples); err != nil {
				return err
			}
			pending = copy(chunk, chunk[whole:pending])
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (o *wavOutput) write(samples []float32) error {
	data := o.buffer.Data[:0]
	for _, v := range samples {
		v = max(-1, min(1, v))
		data = append(data, int(float64(v)*math.MaxInt32))
	}
	o.buffer.Data = data
	if err := o.encoder.Write(o.buffer); err != nil {
		return fmt.Errorf("unable to write to the WAV encoder: %w", err)
	}
	return nil
}

func (o *wavOutput) Close() error {
	if err := o.encoder.Close(); err != nil {
		o.file.Close()
		return fmt.Errorf("unable to finalize the WAV file: %w", err)
	}
	return o.file.Close()
}
