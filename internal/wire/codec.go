package wire

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// Encode JSON-serializes header and compresses header and body
// independently with zlib. Compressing the two parts separately lets a
// consumer decide whether the body is worth decompressing after
// looking at the header alone (see internal/filelogger and
// internal/retriever).
func Encode(header Header, body string) (compressedHeader, compressedBody []byte, err error) {
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return nil, nil, &CodecError{Op: "marshal header", Err: err}
	}

	compressedHeader, err = deflate(headerJSON)
	if err != nil {
		return nil, nil, &CodecError{Op: "compress header", Err: err}
	}

	compressedBody, err = deflate([]byte(body))
	if err != nil {
		return nil, nil, &CodecError{Op: "compress body", Err: err}
	}

	return compressedHeader, compressedBody, nil
}

// Decode is the inverse of Encode.
func Decode(compressedHeader, compressedBody []byte) (header Header, body string, err error) {
	headerJSON, err := inflate(compressedHeader)
	if err != nil {
		return Header{}, "", &CodecError{Op: "decompress header", Err: err}
	}

	bodyBytes, err := inflate(compressedBody)
	if err != nil {
		return Header{}, "", &CodecError{Op: "decompress body", Err: err}
	}

	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return Header{}, "", &CodecError{Op: "unmarshal header", Err: err}
	}

	return header, string(bodyBytes), nil
}

// DecodeHeader decompresses and parses only the header, leaving the
// body compressed. Used by filters that can reject an event without
// paying for body decompression.
func DecodeHeader(compressedHeader []byte) (Header, error) {
	headerJSON, err := inflate(compressedHeader)
	if err != nil {
		return Header{}, &CodecError{Op: "decompress header", Err: err}
	}
	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return Header{}, &CodecError{Op: "unmarshal header", Err: err}
	}
	return header, nil
}

// DecodeBody decompresses a body frame on its own.
func DecodeBody(compressedBody []byte) (string, error) {
	bodyBytes, err := inflate(compressedBody)
	if err != nil {
		return "", &CodecError{Op: "decompress body", Err: err}
	}
	return string(bodyBytes), nil
}

func deflate(p []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(p); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := w.Close(); err != nil {
		return nil, errors.WithStack(err)
	}
	return buf.Bytes(), nil
}

func inflate(p []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(p))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return out, nil
}
