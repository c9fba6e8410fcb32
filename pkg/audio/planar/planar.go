// Package planar converts sample buffers between the interleaved layout
// (all channels of frame i, then all channels of frame i+1) and the planar
// layout (all frames of channel 0, then all frames of channel 1).
package planar

import (
	"fmt"

	"github.com/xaionaro-go/stretch/pkg/audio"
)

func checkLengths[T any](channels audio.Channel, output, input []T) (int, error) {
	if channels == 0 {
		return 0, fmt.Errorf("the amount of channels must be positive")
	}
	if len(input)%int(channels) != 0 {
		return 0, fmt.Errorf("expected a buffer length that is a multiple of %d, but received %d", channels, len(input))
	}
	if len(input) != len(output) {
		return 0, fmt.Errorf("the lengths of input and output are not equal: %d != %d", len(input), len(output))
	}
	return len(input) / int(channels), nil
}

// Planarize converts an interleaved buffer into a planar one.
func Planarize[T any](channels audio.Channel, output, input []T) error {
	frames, err := checkLengths(channels, output, input)
	if err != nil {
		return err
	}

	for ch := 0; ch < int(channels); ch++ {
		plane := output[ch*frames : (ch+1)*frames]
		for frame := range plane {
			plane[frame] = input[frame*int(channels)+ch]
		}
	}
	return nil
}

// Unplanarize converts a planar buffer into an interleaved one.
func Unplanarize[T any](channels audio.Channel, output, input []T) error {
	frames, err := checkLengths(channels, output, input)
	if err != nil {
		return err
	}

	for ch := 0; ch < int(channels); ch++ {
		plane := input[ch*frames : (ch+1)*frames]
		for frame, v := range plane {
			output[frame*int(channels)+ch] = v
		}
	}
	return nil
}
