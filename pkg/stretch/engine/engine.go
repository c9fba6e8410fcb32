// Package engine defines the interface of a DSP backend that performs the
// actual time-stretching and pitch-shifting.
//
// All buffers passed to an Engine are interleaved (frame-major, channel-minor)
// and must hold at least frames*channels samples. An Engine is not safe for
// concurrent use.
package engine

type Engine interface {
	Reset()

	// InputLatency is the distance (in frames) between the last frame
	// submitted to Process and the center of the window it affects.
	InputLatency() int

	// OutputLatency is the distance (in frames) between the center of the
	// window and the last frame emitted by Process.
	OutputLatency() int

	// SetTransposeFactor sets the frequency multiplier (1 is no shift).
	// tonalityLimit is a fraction of the sample rate; 0 means no limit.
	SetTransposeFactor(multiplier float32, tonalityLimit float32)
	SetTransposeSemitones(semitones float32, tonalityLimit float32)

	Seek(input []float32, frames int, playbackRate float64)
	Process(input []float32, inputFrames int, output []float32, outputFrames int)
	Flush(output []float32, frames int)

	// Destroy releases the resources. It must be called exactly once.
	Destroy()
}

type Factory interface {
	Name() string
	Create(channels int, blockLength int, interval int) (Engine, error)
	CreatePresetDefault(channels int, sampleRate float32) (Engine, error)
	CreatePresetCheaper(channels int, sampleRate float32) (Engine, error)
}
