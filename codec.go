package hdrhistogram

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/flate"
)

// Wire format cookies (spec.md §4.7). spec.md describes the cookie as
// "0x1c849303 | (wordSize & 0xf0)"; V2's counts are a varint stream with an
// effective word size of 8, and 8 & 0xf0 == 0, so the literal V2 cookie is
// exactly the base value. The legacy cookies predate the varint codec and
// instead pick a distinct base per fixed counts width, which is what the
// original's per-width cookie constants amounted to in practice.
const (
	v2CookieBase           int32 = 0x1c849303
	v2CompressedCookieBase int32 = 0x1c849304
	v0CookieBase           int32 = 0x1c849301 // legacy, 4-byte counts
	v1CookieBase           int32 = 0x1c849302 // legacy, 8-byte counts

	v2HeaderSize = 40
)

// legacyWordSize returns the fixed counts width (in bytes) implied by a
// legacy cookie.
func legacyWordSize(cookie int32) int32 {
	if cookie == v0CookieBase {
		return 4
	}
	return 8
}

// EncodeIntoByteBuffer serializes h using the V2 format of spec.md §4.7.
func (h *Histogram) EncodeIntoByteBuffer() ([]byte, error) {
	payload, err := h.encodeCountsV2()
	if err != nil {
		return nil, err
	}

	buf := make([]byte, v2HeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(v2CookieBase))
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(payload)))
	binary.BigEndian.PutUint32(buf[8:12], uint32(h.normalizingIndexOffset))
	binary.BigEndian.PutUint32(buf[12:16], uint32(h.cfg.significantDigits))
	binary.BigEndian.PutUint64(buf[16:24], uint64(h.cfg.lowestDiscernibleValue))
	binary.BigEndian.PutUint64(buf[24:32], uint64(h.cfg.highestTrackableValue))
	binary.BigEndian.PutUint64(buf[32:40], math.Float64bits(h.integerToDoubleConversionRatio))
	copy(buf[v2HeaderSize:], payload)

	return buf, nil
}

// EncodeIntoCompressedByteBuffer wraps the V2 encoding of h in a DEFLATE
// stream, per spec.md §4.7's "Compressed wrapping".
func (h *Histogram) EncodeIntoCompressedByteBuffer(compressionLevel int) ([]byte, error) {
	raw, err := h.EncodeIntoByteBuffer()
	if err != nil {
		return nil, err
	}

	var compressed bytes.Buffer

	w, err := flate.NewWriter(&compressed, compressionLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecompressionError, err)
	}

	if _, err := w.Write(raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecompressionError, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecompressionError, err)
	}

	out := make([]byte, 8+compressed.Len())
	binary.BigEndian.PutUint32(out[0:4], uint32(v2CompressedCookieBase))
	binary.BigEndian.PutUint32(out[4:8], uint32(compressed.Len()))
	copy(out[8:], compressed.Bytes())

	return out, nil
}

// encodeCountsV2 writes the zero-run/ZigZag-varint counts stream for h in
// logical (unshifted) order, so the normalizingIndexOffset field alone is
// enough to reconstruct physical placement on decode.
func (h *Histogram) encodeCountsV2() ([]byte, error) {
	var out bytes.Buffer
	length := h.backend.length()

	idx := int32(0)
	for idx < length {
		count := h.backend.get(h.physicalIndex(idx))
		if count == 0 {
			runStart := idx
			for idx < length && h.backend.get(h.physicalIndex(idx)) == 0 {
				idx++
			}
			writeZigzagVarint(&out, -int64(idx-runStart))
			continue
		}

		writeZigzagVarint(&out, count)
		idx++
	}

	return out.Bytes(), nil
}

// DecodeFromByteBuffer reconstructs a Histogram from data, accepting V2 and
// the legacy V0/V1 fixed-width layouts (decode-only, per spec.md §9). The
// result's highest trackable value is grown to at least
// minBarForHighestTrackableValue if it would otherwise be smaller; pass 0
// to accept whatever was encoded.
func DecodeFromByteBuffer(data []byte, minBarForHighestTrackableValue int64) (*Histogram, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: buffer too small to contain a cookie", ErrFormatError)
	}

	cookie := int32(binary.BigEndian.Uint32(data[0:4]))

	switch {
	case cookie&^0xf0 == v2CookieBase:
		return decodeV2(data, minBarForHighestTrackableValue)
	case cookie&^0xf0 == v0CookieBase, cookie&^0xf0 == v1CookieBase:
		return decodeLegacy(data, cookie, minBarForHighestTrackableValue)
	default:
		return nil, fmt.Errorf("%w: unrecognized cookie 0x%x", ErrFormatError, uint32(cookie))
	}
}

// DecodeFromCompressedByteBuffer inflates a compressed-wrapped V2 payload
// and decodes it.
func DecodeFromCompressedByteBuffer(data []byte, minBarForHighestTrackableValue int64) (*Histogram, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: buffer too small to contain a compressed header", ErrFormatError)
	}

	cookie := int32(binary.BigEndian.Uint32(data[0:4]))
	if cookie&^0xf0 != v2CompressedCookieBase {
		return nil, fmt.Errorf("%w: unrecognized compressed cookie 0x%x", ErrFormatError, uint32(cookie))
	}

	compressedLength := binary.BigEndian.Uint32(data[4:8])
	if int(compressedLength) > len(data)-8 {
		return nil, fmt.Errorf("%w: declared compressed length %d exceeds available bytes", ErrFormatError, compressedLength)
	}

	r := flate.NewReader(bytes.NewReader(data[8 : 8+int(compressedLength)]))
	defer r.Close()

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecompressionError, err)
	}

	return DecodeFromByteBuffer(raw, minBarForHighestTrackableValue)
}

func decodeV2(data []byte, minBar int64) (*Histogram, error) {
	if len(data) < v2HeaderSize {
		return nil, fmt.Errorf("%w: buffer too small for a V2 header", ErrFormatError)
	}

	payloadLength := int32(binary.BigEndian.Uint32(data[4:8]))
	normalizingIndexOffset := int32(binary.BigEndian.Uint32(data[8:12]))
	significantDigits := int32(binary.BigEndian.Uint32(data[12:16]))
	lowestDiscernibleValue := int64(binary.BigEndian.Uint64(data[16:24]))
	highestTrackableValue := int64(binary.BigEndian.Uint64(data[24:32]))
	integerToDoubleRatio := math.Float64frombits(binary.BigEndian.Uint64(data[32:40]))

	if int(payloadLength) < 0 || v2HeaderSize+int(payloadLength) > len(data) {
		return nil, fmt.Errorf("%w: payload length %d inconsistent with buffer size %d", ErrFormatError, payloadLength, len(data))
	}

	h, err := New(lowestDiscernibleValue, highestTrackableValue, int(significantDigits))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormatError, err)
	}

	h.normalizingIndexOffset = normalizingIndexOffset
	if integerToDoubleRatio > 0 {
		h.integerToDoubleConversionRatio = integerToDoubleRatio
	}

	payload := data[v2HeaderSize : v2HeaderSize+int(payloadLength)]
	if err := h.fillCountsV2(payload); err != nil {
		return nil, err
	}

	if highestTrackableValue < minBar {
		if err := h.resize(minBar); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFormatError, err)
		}
	}

	return h, nil
}

// fillCountsV2 decodes the zero-run/ZigZag-varint stream into h's backend,
// recomputing totalCount, minNonZeroValue, and maxValue as it goes.
func (h *Histogram) fillCountsV2(payload []byte) error {
	length := h.backend.length()
	reader := bytes.NewReader(payload)

	idx := int32(0)
	for idx < length {
		v, err := readZigzagVarint(reader)
		if err != nil {
			return fmt.Errorf("%w: truncated counts stream: %w", ErrFormatError, err)
		}

		if v < 0 {
			runLen := int32(-v)
			if idx+runLen > length {
				return fmt.Errorf("%w: zero-run overruns counts array", ErrFormatError)
			}
			idx += runLen
			continue
		}

		if err := h.backend.set(h.physicalIndex(idx), v); err != nil {
			return fmt.Errorf("%w: %w", ErrFormatError, err)
		}

		value := h.cfg.valueFromCountsIndex(idx)
		h.totalCount += v
		h.updateMinMax(value)
		idx++
	}

	if reader.Len() != 0 {
		return fmt.Errorf("%w: counts stream has %d trailing bytes", ErrFormatError, reader.Len())
	}

	return nil
}

// decodeLegacy decodes the V0/V1 fixed-width-counts layouts. These predate
// the varint codec: counts are stored as consecutive big-endian words of
// the width encoded in the cookie, one per logical slot, with no zero-run
// compression.
func decodeLegacy(data []byte, cookie int32, minBar int64) (*Histogram, error) {
	wordSize := legacyWordSize(cookie)

	if len(data) < v2HeaderSize {
		return nil, fmt.Errorf("%w: buffer too small for a legacy header", ErrFormatError)
	}

	normalizingIndexOffset := int32(binary.BigEndian.Uint32(data[8:12]))
	significantDigits := int32(binary.BigEndian.Uint32(data[12:16]))
	lowestDiscernibleValue := int64(binary.BigEndian.Uint64(data[16:24]))
	highestTrackableValue := int64(binary.BigEndian.Uint64(data[24:32]))
	integerToDoubleRatio := math.Float64frombits(binary.BigEndian.Uint64(data[32:40]))

	h, err := New(lowestDiscernibleValue, highestTrackableValue, int(significantDigits))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormatError, err)
	}
	h.normalizingIndexOffset = normalizingIndexOffset
	if integerToDoubleRatio > 0 {
		h.integerToDoubleConversionRatio = integerToDoubleRatio
	}

	length := h.backend.length()
	needed := int(length) * int(wordSize)
	if v2HeaderSize+needed > len(data) {
		return nil, fmt.Errorf("%w: legacy payload shorter than declared counts array", ErrFormatError)
	}

	payload := data[v2HeaderSize : v2HeaderSize+needed]
	for idx := int32(0); idx < length; idx++ {
		off := int(idx) * int(wordSize)
		var v int64
		switch wordSize {
		case 2:
			v = int64(binary.BigEndian.Uint16(payload[off : off+2]))
		case 4:
			v = int64(binary.BigEndian.Uint32(payload[off : off+4]))
		default:
			v = int64(binary.BigEndian.Uint64(payload[off : off+8]))
		}

		if v == 0 {
			continue
		}

		if err := h.backend.set(h.physicalIndex(idx), v); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFormatError, err)
		}

		h.totalCount += v
		h.updateMinMax(h.cfg.valueFromCountsIndex(idx))
	}

	if highestTrackableValue < minBar {
		if err := h.resize(minBar); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFormatError, err)
		}
	}

	return h, nil
}

// --- ZigZag varint primitives (spec.md §4.7, GLOSSARY) ---

func zigzagEncode(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

func zigzagDecode(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

func writeZigzagVarint(buf *bytes.Buffer, v int64) {
	u := zigzagEncode(v)
	for u >= 0x80 {
		buf.WriteByte(byte(u) | 0x80)
		u >>= 7
	}
	buf.WriteByte(byte(u))
}

func readZigzagVarint(r *bytes.Reader) (int64, error) {
	var u uint64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		u |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
		if shift >= 64 {
			return 0, fmt.Errorf("%w: varint too long", ErrFormatError)
		}
	}
	return zigzagDecode(u), nil
}
