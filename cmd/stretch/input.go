package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/facebookincubator/go-belt/tool/logger"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/jfreymuth/oggvorbis"
	"github.com/xaionaro-go/stretch/pkg/audio"
	"github.com/xaionaro-go/stretch/pkg/audio/pcm"
)

type rawInputParams struct {
	Format     audio.PCMFormat
	Channels   audio.Channel
	SampleRate audio.SampleRate
}

type input struct {
	io.Reader
	closer     io.Closer
	Format     audio.PCMFormat
	Channels   audio.Channel
	SampleRate audio.SampleRate
}

func (in *input) Close() error {
	if in.closer == nil {
		return nil
	}
	return in.closer.Close()
}

func openInput(
	ctx context.Context,
	path string,
	raw rawInputParams,
) (*input, error) {
	if path == "-" {
		return &input{
			Reader:     os.Stdin,
			Format:     raw.Format,
			Channels:   raw.Channels,
			SampleRate: raw.SampleRate,
		}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open '%s': %w", path, err)
	}

	var in *input
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		in, err = openWAV(ctx, f)
	case ".ogg", ".oga":
		in, err = openVorbis(f)
	default:
		in = &input{
			Reader:     f,
			Format:     raw.Format,
			Channels:   raw.Channels,
			SampleRate: raw.SampleRate,
		}
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("unable to read '%s': %w", path, err)
	}
	in.closer = f
	return in, nil
}

func openWAV(ctx context.Context, f io.ReadSeeker) (*input, error) {
	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file")
	}
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("unable to decode the WAV file: %w", err)
	}
	logger.Debugf(ctx, "WAV: %d-bit, %d channels, %d Hz, %d samples", decoder.BitDepth, decoder.NumChans, decoder.SampleRate, len(buf.Data))

	samples := intsToFloats(buf, int(decoder.BitDepth))
	b := make([]byte, len(samples)*4)
	if _, err := pcm.Encode(audio.PCMFormatFloat32LE, b, samples); err != nil {
		return nil, err
	}
	return &input{
		Reader:     bytes.NewReader(b),
		Format:     audio.PCMFormatFloat32LE,
		Channels:   audio.Channel(decoder.NumChans),
		SampleRate: audio.SampleRate(decoder.SampleRate),
	}, nil
}

func intsToFloats(buf *goaudio.IntBuffer, bitDepth int) []float32 {
	result := make([]float32, len(buf.Data))
	if bitDepth == 8 {
		// 8-bit WAV is unsigned
		for i, v := range buf.Data {
			result[i] = float32(v-128) / 128
		}
		return result
	}
	scale := float32(int64(1) << (bitDepth - 1))
	for i, v := range buf.Data {
		result[i] = float32(v) / scale
	}
	return result
}

func openVorbis(r io.Reader) (*input, error) {
	oggReader, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize a vorbis reader: %w", err)
	}
	return &input{
		Reader:     audio.NewReaderFromFloat32Reader(oggReader),
		Format:     audio.PCMFormatFloat32LE,
		Channels:   audio.Channel(oggReader.Channels()),
		SampleRate: audio.SampleRate(oggReader.SampleRate()),
	}, nil
}
