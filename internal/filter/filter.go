// Package filter holds the shared regex-predicate composition used by
// the file logger (C6) to decide whether a live event should be
// written, and by the archive retriever (C7) to decide whether a
// stored record should be emitted.
package filter

import "regexp"

// Filter composes up to four regex predicates over a decoded event's
// hostname, nodename, log path, and body. A missing (nil) regex is
// always true; all provided regexes must match for MatchesHeader and
// MatchesBody to return true. Nodename is special: if NodenameRegexp is set but the event
// carries no nodename, the predicate fails.
type Filter struct {
	HostnameRegexp *regexp.Regexp
	NodenameRegexp *regexp.Regexp
	LogPathRegexp  *regexp.Regexp
	BodyRegexp     *regexp.Regexp
}

// matchAnchored reports whether re matches s starting at position 0,
// mirroring Python's re.match (as opposed to re.search/MatchString's
// unanchored "contains" semantics).
func matchAnchored(re *regexp.Regexp, s string) bool {
	loc := re.FindStringIndex(s)
	return loc != nil && loc[0] == 0
}

// MatchesHeader evaluates every predicate except the body regex, so
// callers can reject an event before paying to decompress its body.
func (f Filter) MatchesHeader(hostname, nodename, logPath string) bool {
	if f.HostnameRegexp != nil && !matchAnchored(f.HostnameRegexp, hostname) {
		return false
	}
	if f.NodenameRegexp != nil {
		if nodename == "" || !matchAnchored(f.NodenameRegexp, nodename) {
			return false
		}
	}
	if f.LogPathRegexp != nil && !matchAnchored(f.LogPathRegexp, logPath) {
		return false
	}
	return true
}

// MatchesBody evaluates the body regex alone.
func (f Filter) MatchesBody(body string) bool {
	return f.BodyRegexp == nil || matchAnchored(f.BodyRegexp, body)
}

// NeedsBody reports whether this filter has a body regex at all; when
// it does not, callers can skip body decompression unconditionally.
func (f Filter) NeedsBody() bool {
	return f.BodyRegexp != nil
}
