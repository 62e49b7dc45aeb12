package persistence

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
)

// Constants for the snapshot binary container.
const (
	// MagicByte marks the start of a valid frame. It allows a quick sanity
	// check before paying for the checksum.
	MagicByte = 0xA5

	// HeaderSize is the fixed size of the frame metadata:
	// 1 byte (Magic) + 1 byte (OpCode) + 4 bytes (Length) + 4 bytes (CRC32) = 10 bytes.
	HeaderSize = 10

	// OpCodeSnapshot identifies a full-state snapshot payload.
	OpCodeSnapshot = 0x02
)

var (
	// ErrInvalidMagic indicates the file is not a valid snapshot container.
	ErrInvalidMagic = errors.New("invalid magic byte")
	// ErrChecksumMismatch indicates data corruption within the frame payload.
	ErrChecksumMismatch = errors.New("crc32 checksum mismatch")
	// ErrIncompleteFrame indicates the file ended abruptly (e.g., power loss during write).
	ErrIncompleteFrame = errors.New("incomplete frame")
)

// WriteFrame encodes the payload into a binary frame and writes it.
// Frame Format: [Magic(1)][OpCode(1)][Length(4)][CRC(4)][Payload(N)]
func WriteFrame(w io.Writer, payload []byte) error {
	header := make([]byte, HeaderSize)

	header[0] = MagicByte
	header[1] = OpCodeSnapshot

	binary.LittleEndian.PutUint32(header[2:6], uint32(len(payload)))
	binary.LittleEndian.PutUint32(header[6:10], crc32.ChecksumIEEE(payload))

	if _, err := w.Write(header); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	return nil
}

// ReadFrame reads the next frame from the reader, validating the magic byte
// and the CRC32 checksum. Returns the payload.
func ReadFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, HeaderSize)

	if _, err := io.ReadFull(r, header); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, ErrIncompleteFrame
	}

	if header[0] != MagicByte {
		return nil, ErrInvalidMagic
	}

	length := binary.LittleEndian.Uint32(header[2:6])
	expectedCRC := binary.LittleEndian.Uint32(header[6:10])

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		// EOF here still means corruption: we expected 'length' bytes.
		return nil, ErrIncompleteFrame
	}

	if crc32.ChecksumIEEE(payload) != expectedCRC {
		return nil, ErrChecksumMismatch
	}
	return payload, nil
}
