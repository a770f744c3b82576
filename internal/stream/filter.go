// Package stream implements the state machine that re-streams the language
// model's token output: it invisibly removes the hidden [PREFERENCES]
// metadata block, watches for upstream refusal wording, and forwards clean
// prose with a small constant amount of held-back tail.
package stream

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// Markers delimiting the hidden metadata block in the raw model output.
const (
	OpenMarker  = "[PREFERENCES]"
	CloseMarker = "[/PREFERENCES]"
)

// ErrRejected is returned through the consumer callback chain once the
// filter detects the upstream model's refusal wording; the caller must stop
// reading upstream fragments.
var ErrRejected = errors.New("upstream model refused the request")

type state int

const (
	stateStreaming state = iota
	stateHidden
	stateRejected
)

// Filter consumes model output fragment by fragment via Feed and returns
// the prose that is safe to forward. It is not safe for concurrent use;
// one filter serves exactly one response stream.
type Filter struct {
	state   state
	pending string
	full    strings.Builder
	window  string
	phrases []string
	// hold is the bounded tail kept back while streaming; it strictly
	// exceeds the longest delimiter and the longest watched phrase, so
	// neither can be split across a flush boundary.
	hold     int
	watchLen int
	flushed  bool
}

// NewFilter creates a filter watching for the given rejection phrases
// (matched case-insensitively).
func NewFilter(rejectionPhrases []string) *Filter {
	hold := len(CloseMarker)
	phrases := make([]string, 0, len(rejectionPhrases))
	for _, p := range rejectionPhrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		phrases = append(phrases, p)
		if len(p) > hold {
			hold = len(p)
		}
	}
	hold++
	return &Filter{
		phrases:  phrases,
		hold:     hold,
		watchLen: hold * 2,
	}
}

// Feed appends one fragment of model output and returns the prose that can
// be forwarded to the client now. The hidden block payload is never part
// of the return value. After a rejection Feed always returns "".
func (f *Filter) Feed(fragment string) string {
	if fragment == "" || f.state == stateRejected {
		return ""
	}
	f.full.WriteString(fragment)

	f.window += strings.ToLower(fragment)
	for _, p := range f.phrases {
		if strings.Contains(f.window, p) {
			f.state = stateRejected
			f.pending = ""
			f.window = ""
			return ""
		}
	}
	if len(f.window) > f.watchLen {
		cut := len(f.window) - f.watchLen
		for cut < len(f.window) && !utf8.RuneStart(f.window[cut]) {
			cut++
		}
		f.window = f.window[cut:]
	}

	f.pending += fragment
	return f.drain(false)
}

// Flush terminates the stream: any remaining buffered prose is returned
// after re-stripping a fully formed hidden block; an unterminated open
// marker drops the tail instead of leaking it. Flushing twice is a no-op.
func (f *Filter) Flush() string {
	if f.flushed || f.state == stateRejected {
		f.pending = ""
		f.flushed = true
		return ""
	}
	f.flushed = true
	out := f.drain(true)
	f.pending = ""
	return out
}

// Rejected reports whether the refusal wording was detected.
func (f *Filter) Rejected() bool {
	return f.state == stateRejected
}

// Text returns the full raw accumulation over all fragments, hidden block
// included. This is the value used for preference extraction and audit
// logging, never for client output.
func (f *Filter) Text() string {
	return f.full.String()
}

func (f *Filter) drain(final bool) string {
	var out strings.Builder
	for {
		switch f.state {
		case stateStreaming:
			if idx := strings.Index(f.pending, OpenMarker); idx >= 0 {
				out.WriteString(f.pending[:idx])
				f.pending = f.pending[idx+len(OpenMarker):]
				f.state = stateHidden
				continue
			}
			keep := f.hold
			if final {
				// A partial marker at end of stream never completed, so
				// it is ordinary prose.
				keep = 0
			}
			if len(f.pending) > keep {
				cut := len(f.pending) - keep
				for cut > 0 && cut < len(f.pending) && !utf8.RuneStart(f.pending[cut]) {
					cut--
				}
				out.WriteString(f.pending[:cut])
				f.pending = f.pending[cut:]
			}
			return out.String()

		case stateHidden:
			if idx := strings.Index(f.pending, CloseMarker); idx >= 0 {
				// The payload between the markers is discarded permanently.
				f.pending = f.pending[idx+len(CloseMarker):]
				f.state = stateStreaming
				continue
			}
			if final {
				// Unterminated block at end of stream: drop it.
				f.pending = ""
				return out.String()
			}
			// Only a tail long enough to recognize a split close marker
			// needs to be kept; the rest of the payload is already dropped.
			if len(f.pending) >= len(CloseMarker) {
				f.pending = f.pending[len(f.pending)-len(CloseMarker)+1:]
			}
			return out.String()

		default:
			return ""
		}
	}
}
