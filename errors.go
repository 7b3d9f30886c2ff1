package hdrhistogram

import "errors"

// Error taxonomy. Each sentinel maps to one failure category a caller can
// discriminate with errors.Is. Wrapped causes are attached with %w so the
// underlying detail survives alongside the category.
var (
	// ErrOutOfRange is returned when a recorded value exceeds the highest
	// trackable value and auto-resize is disabled, or when Add/Subtract
	// encounters a source value this layout cannot represent.
	ErrOutOfRange = errors.New("hdrhistogram: value out of range")

	// ErrCountOverflow is returned when a narrow-width counts backing would
	// exceed its maximum representable count on increment or addTo. The
	// slot and the histogram's totalCount are left unchanged.
	ErrCountOverflow = errors.New("hdrhistogram: count overflow")

	// ErrInvalidArgument covers negative values, negative counts, bad
	// significant-digits, a bad lowest/highest relation, or a non-power-of-
	// two stripe count.
	ErrInvalidArgument = errors.New("hdrhistogram: invalid argument")

	// ErrInvalidRecycledHistogram is returned when a recycled snapshot
	// handed back to a Recorder does not carry that recorder's instance id.
	ErrInvalidRecycledHistogram = errors.New("hdrhistogram: recycled histogram does not belong to this recorder")

	// ErrFormatError is returned by the codec when it detects an unknown
	// cookie, an inconsistent payload length, or a counts stream that over-
	// or under-runs the destination array.
	ErrFormatError = errors.New("hdrhistogram: format error")

	// ErrDecompressionError wraps a DEFLATE failure during compressed encode
	// or decode.
	ErrDecompressionError = errors.New("hdrhistogram: decompression error")

	// ErrIoError is surfaced by the log reader's underlying stream.
	ErrIoError = errors.New("hdrhistogram: io error")

	// ErrConcurrentModification is returned by a non-concurrent histogram's
	// iteration when totalCount changed mid-walk.
	ErrConcurrentModification = errors.New("hdrhistogram: concurrent modification detected during iteration")
)
