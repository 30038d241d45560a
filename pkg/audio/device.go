package audio

import "errors"

// ErrOutputUnavailable is returned by [OutputDevice.Open] when the playback
// device cannot be opened at the requested sample rate.
var ErrOutputUnavailable = errors.New("audio: output device unavailable")

// OutputDevice is a playback sink for synthesised speech. It is owned
// exclusively by one playback goroutine at a time; a new playback session
// must not Open the device until the previous session has released it via
// Halt or Close.
type OutputDevice interface {
	// Open prepares the device for playback at the given sample rate.
	// Calling Open while the device is already open at a different rate
	// reconfigures it (synthesis sessions may change rates between turns).
	Open(sampleRate int) error

	// Write queues normalised mono samples for playout. Write may block
	// while earlier audio drains: the backlog it waits on is capped at
	// roughly one device period — it never blocks on the full amount of
	// queued audio.
	Write(samples []float32) error

	// Drain blocks until every sample accepted by Write has been handed to
	// the device for playout, or the device is halted or closed. When Drain
	// returns, the residual still sounding is bounded by the device's own
	// period buffer.
	Drain() error

	// Halt stops playout immediately, discarding any samples still buffered
	// in the device. It returns only once the device has actually ceased
	// producing sound, so callers may treat its return as the
	// no-overlapping-audio guarantee. Safe to call on a closed device.
	Halt() error

	// Close releases the device. Safe to call more than once.
	Close() error
}
