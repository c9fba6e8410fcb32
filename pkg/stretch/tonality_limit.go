package stretch

import (
	"fmt"
)

// TonalityLimit is an optional upper frequency bound for the tonal correction
// applied while transposing. The zero value means "no limit".
type TonalityLimit struct {
	fraction float32
	isSet    bool
}

func NoTonalityLimit() TonalityLimit {
	return TonalityLimit{}
}

// WithTonalityLimit sets the limit as a fraction of the sample rate.
func WithTonalityLimit(fraction float32) TonalityLimit {
	return TonalityLimit{
		fraction: fraction,
		isSet:    true,
	}
}

// TonalityLimitHz sets the limit in Hz.
func TonalityLimitHz(hz float32, sampleRate uint32) TonalityLimit {
	return WithTonalityLimit(hz / float32(sampleRate))
}

func (l TonalityLimit) Get() (float32, bool) {
	return l.fraction, l.isSet
}

func (l TonalityLimit) String() string {
	if !l.isSet {
		return "none"
	}
	return fmt.Sprintf("%g", l.fraction)
}

// sentinel is the value the engine expects, where 0 means "no limit".
func (l TonalityLimit) sentinel() float32 {
	if !l.isSet {
		return 0
	}
	return l.fraction
}
