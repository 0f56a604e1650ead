// Package wire implements the log event envelope: header/body framing,
// zlib compression, and the record prefix used inside archive files.
package wire

// Header is the metadata carried alongside every log event. It is
// serialized to JSON exactly as shown here so that readers written in
// any language can decode it off the wire.
type Header struct {
	Hostname  string  `json:"hostname"`
	UUID      string  `json:"uuid"`
	Sequence  int64   `json:"sequence"`
	PID       int     `json:"pid"`
	Timestamp float64 `json:"timestamp"`
	LogPath   string  `json:"log_path"`
	Nodename  string  `json:"nodename,omitempty"`
}

// EventID returns the (uuid, sequence) pair that uniquely identifies
// this event across the whole deployment.
func (h Header) EventID() (uuid string, sequence int64) {
	return h.UUID, h.Sequence
}

// DedupKey returns the (timestamp, uuid) pair the retriever uses to
// suppress duplicate events produced by redundant aggregators.
func (h Header) DedupKey() (timestamp float64, uuid string) {
	return h.Timestamp, h.UUID
}
