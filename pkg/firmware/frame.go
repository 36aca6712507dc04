// Package firmware implements the bootloader update session: reset the
// servo into its bootloader, handshake at a fixed 9600 baud, transfer
// the image as CRC-protected 133-byte frames, and signal
// end-of-transmission, all wrapped in bounded retry at the frame, phase
// and whole-session level.
package firmware

import "github.com/cds55xx/servobus/internal/crc"

// chunkSize is the payload size of one firmware frame, before the
// marker, sequence bytes and trailing CRC are added.
const chunkSize = 128

// frameSize is the total wire size of one firmware frame.
const frameSize = 1 + 1 + 1 + chunkSize + 2

// frameMarker begins every firmware frame.
const frameMarker = 0x01

// buildFrame assembles one 133-byte firmware frame for the given
// 1-based sequence number and up-to-128-byte chunk. Short chunks (the
// final one) are zero-padded. The CRC-16-CCITT is computed over the
// 128 payload bytes only — not over the marker or sequence bytes, and
// not over the declared chunk length.
func buildFrame(seq byte, chunk []byte) []byte {
	payload := make([]byte, chunkSize)
	copy(payload, chunk)

	frame := make([]byte, 0, frameSize)
	frame = append(frame, frameMarker, seq, 255-seq)
	frame = append(frame, payload...)

	sum := crc.Compute(payload)
	frame = append(frame, byte(sum>>8), byte(sum&0xFF))
	return frame
}

// chunks splits image into 128-byte slices, the last zero-padded by
// buildFrame rather than here so callers can see the true final length.
func chunks(image []byte) [][]byte {
	if len(image) == 0 {
		return [][]byte{{}}
	}
	var out [][]byte
	for i := 0; i < len(image); i += chunkSize {
		end := i + chunkSize
		if end > len(image) {
			end = len(image)
		}
		out = append(out, image[i:end])
	}
	return out
}
