// Package alignment estimates the delay between two recordings of the same
// signal using Generalized Cross-Correlation with Phase Transform (GCC-PHAT).
//
// It is used to check the latency reported by a stretcher against the delay
// that is actually observed between its input and its output.
package alignment

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/mjibson/go-dsp/fft"
	"github.com/xaionaro-go/stretch/pkg/audio"
)

type Result struct {
	// DelayFrames is how many frames the delayed track lags behind the reference.
	DelayFrames float64
	// Confidence is a score in 0..1.
	Confidence float64
}

type Options struct {
	// MinFreq and MaxFreq limit the band used for the correlation, in Hz.
	// Zero means no limit.
	MinFreq float64
	MaxFreq float64
}

// MixDown averages the channels of an interleaved buffer into a mono track.
// A trailing partial frame is ignored.
func MixDown(samples []float32, channels audio.Channel) []float64 {
	if channels == 0 {
		return nil
	}
	frames := len(samples) / int(channels)
	result := make([]float64, frames)
	for frame := range result {
		var sum float64
		for ch := 0; ch < int(channels); ch++ {
			sum += float64(samples[frame*int(channels)+ch])
		}
		result[frame] = sum / float64(channels)
	}
	return result
}

// EstimateDelay returns how much the interleaved `delayed` track lags behind
// the interleaved `reference` track.
func EstimateDelay(
	ctx context.Context,
	reference []float32,
	delayed []float32,
	channels audio.Channel,
	sampleRate audio.SampleRate,
	opts Options,
) (_ret Result, _err error) {
	logger.Tracef(ctx, "EstimateDelay, len:%d/%d", len(reference), len(delayed))
	defer func() { logger.Tracef(ctx, "/EstimateDelay: %v %v", _ret, _err) }()

	if channels == 0 {
		return Result{}, fmt.Errorf("channels must be greater than 0: got %d", channels)
	}
	if sampleRate == 0 {
		return Result{}, fmt.Errorf("sample rate is mandatory")
	}

	refSamples := MixDown(reference, channels)
	delayedSamples := MixDown(delayed, channels)
	if len(refSamples) == 0 || len(delayedSamples) == 0 {
		return Result{}, fmt.Errorf("both tracks must contain at least one frame: %d, %d", len(refSamples), len(delayedSamples))
	}

	// The next power of two of (n1 + n2 - 1) avoids circular convolution artifacts.
	n1 := len(refSamples)
	n2 := len(delayedSamples)
	n := 1
	for n < n1+n2-1 {
		n <<= 1
	}

	fref := make([]complex128, n)
	fdelayed := make([]complex128, n)
	for i, v := range refSamples {
		fref[i] = complex(v, 0)
	}
	for i, v := range delayedSamples {
		fdelayed[i] = complex(v, 0)
	}

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	shift, confidence, err := CrossCorrelate(fft.FFT(fref), fft.FFT(fdelayed), float64(sampleRate), opts.MinFreq, opts.MaxFreq)
	if err != nil {
		return Result{}, fmt.Errorf("unable to cross-correlate: %w", err)
	}
	return Result{
		DelayFrames: -shift,
		Confidence:  confidence,
	}, nil
}

// CrossCorrelate calculates the sample shift of 'fcomp' relative to 'fref' using GCC-PHAT.
// The fref and fcomp slices are expected to be the FFTs of the reference and comparison snippets.
// Both must have the same length N.
//
// Returns (shift, confidence, error). A positive shift means 'comp' leads 'ref'.
func CrossCorrelate(fref, fcomp []complex128, sampleRate float64, minFreq, maxFreq float64) (float64, float64, error) {
	if sampleRate <= 0 {
		return 0, 0, fmt.Errorf("sampleRate must be positive: got %v", sampleRate)
	}
	if len(fref) != len(fcomp) {
		return 0, 0, fmt.Errorf("fref and fcomp must have same length: %d != %d", len(fref), len(fcomp))
	}
	n := len(fref)
	if n == 0 {
		return 0, 0, nil
	}

	binMin := 0
	binMax := n / 2
	if minFreq > 0 {
		binMin = int(minFreq * float64(n) / sampleRate)
	}
	if maxFreq > 0 && maxFreq < sampleRate/2 {
		binMax = int(maxFreq * float64(n) / sampleRate)
	}

	cross := make([]complex128, n)
	maxMag := 0.0
	for i := range cross {
		cross[i] = fcomp[i] * cmplx.Conj(fref[i])
		if mag := cmplx.Abs(cross[i]); mag > maxMag {
			maxMag = mag
		}
	}
	// bins more than 60dB below the strongest one are not whitened
	threshold := maxMag * 0.001

	activeBins := 0
	for i := range cross {
		idx := i
		if i > n/2 {
			idx = n - i
		}
		mag := cmplx.Abs(cross[i])
		if idx < binMin || idx > binMax || mag <= threshold || mag <= 1e-12 {
			cross[i] = 0
			continue
		}
		cross[i] /= complex(mag, 0)
		activeBins++
	}
	if activeBins == 0 {
		return 0, 0, nil
	}

	timeDomain := fft.IFFT(cross)

	maxVal := -1.0
	maxIdx := 0
	for i, v := range timeDomain {
		if val := cmplx.Abs(v); val > maxVal {
			maxVal = val
			maxIdx = i
		}
	}

	// comp(t) = ref(t - shift)
	shift := float64(maxIdx)
	if shift > float64(n/2) {
		shift -= float64(n)
	}

	// parabolic sub-sample refinement
	if maxIdx > 0 && maxIdx < n-1 {
		y1 := cmplx.Abs(timeDomain[maxIdx-1])
		y3 := cmplx.Abs(timeDomain[maxIdx+1])
		denom := y1 - 2*maxVal + y3
		if math.Abs(denom) > 1e-12 {
			shift += (y1 - y3) / (2 * denom)
		}
	}

	// A perfect match yields maxVal == activeBins/n.
	confidence := math.Min(maxVal*float64(n)/float64(activeBins), 1)

	return -shift, confidence, nil
}
