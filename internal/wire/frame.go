package wire

import "encoding/binary"

// FrameVersion is the only supported archive record frame version.
const FrameVersion = 1

// frameSize is the length in bytes of the frame header: version (u8),
// header length (u32), body length (u32), big-endian.
const frameSize = 1 + 4 + 4

// Frame builds the big-endian record prefix for a header/body pair of
// the given lengths.
func Frame(headerLen, bodyLen int) []byte {
	buf := make([]byte, frameSize)
	buf[0] = FrameVersion
	binary.BigEndian.PutUint32(buf[1:5], uint32(headerLen))
	binary.BigEndian.PutUint32(buf[5:9], uint32(bodyLen))
	return buf
}

// Unframe parses a record prefix, returning a FrameError if the buffer
// is the wrong length or the version is not FrameVersion.
func Unframe(buf []byte) (version uint8, headerLen, bodyLen uint32, err error) {
	if len(buf) != frameSize {
		return 0, 0, 0, &FrameError{Reason: "short frame header"}
	}
	version = buf[0]
	if version != FrameVersion {
		return 0, 0, 0, &FrameError{Reason: "unsupported frame version"}
	}
	headerLen = binary.BigEndian.Uint32(buf[1:5])
	bodyLen = binary.BigEndian.Uint32(buf[5:9])
	return version, headerLen, bodyLen, nil
}

// FrameSize returns the fixed byte length of a record frame header.
func FrameSize() int { return frameSize }
