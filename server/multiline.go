package server

import (
	"bytes"
	"regexp"
)

// multilineState implements TextServer's line-joining policies by
// repeatedly pulling one physical line (via extractLine) and deciding
// whether to join it to the record under construction or to close the
// record and start a new one, mirroring the reference collector's
// indented/prefix/regexp multi-line framing modes.
type multilineState struct {
	opts    Options
	re      *regexp.Regexp
	pending []byte // bytes of the record under construction
	haveAny bool
}

func newMultilineState(opts Options) multilineState {
	st := multilineState{opts: opts}
	if opts.Multiline == MultilineRegexp && opts.MultilinePrefix != "" {
		if re, err := regexp.Compile(opts.MultilinePrefix); err == nil {
			st.re = re
		}
	}
	return st
}

func (m *multilineState) extract(buf []byte, atEOF bool) (int, []byte, Kind) {
	// Each call rebuilds the record from the front of buf: nothing is
	// reported consumed until a record is returned, so lines kept from an
	// earlier call would be joined twice.
	m.pending = nil
	m.haveAny = false
	totalConsumed := 0
	for {
		consumed, line, kind := extractLine(buf[totalConsumed:], atEOF, m.opts.MaxBufferSize, false, m.opts.MaxMessageSize, m.opts.TrimLargeMessages)
		switch kind {
		case KindAgain:
			return 0, nil, KindAgain
		case KindPartial, KindEOF:
			if m.haveAny {
				rec := m.pending
				m.pending = nil
				m.haveAny = false
				return totalConsumed, rec, KindNone
			}
			return totalConsumed, nil, kind
		}
		if kind != KindNone && kind != KindOverlongLine {
			return totalConsumed, nil, kind
		}

		totalConsumed += consumed
		starts := m.startsNewRecord(line)

		switch {
		case !m.haveAny:
			m.pending = append([]byte(nil), line...)
			m.haveAny = true
		case starts:
			// The line we just read begins a new record; return what we
			// had and leave this line unconsumed so the next call starts
			// the new record with it.
			rec := m.pending
			m.pending = nil
			m.haveAny = false
			return totalConsumed - consumed, rec, KindNone
		default:
			m.pending = append(m.pending, '\n')
			m.pending = append(m.pending, line...)
		}

		if m.opts.Multiline == MultilinePrefixSuffix && m.endsRecord(line) {
			rec := m.pending
			m.pending = nil
			m.haveAny = false
			return totalConsumed, rec, KindNone
		}
	}
}

// startsNewRecord reports whether line should begin a fresh record
// rather than continue the one under construction, per the configured
// policy.
func (m *multilineState) startsNewRecord(line []byte) bool {
	if !m.haveAny {
		return false
	}
	switch m.opts.Multiline {
	case MultilineIndented:
		return len(line) == 0 || (line[0] != ' ' && line[0] != '\t')
	case MultilinePrefixGarbage, MultilinePrefixSuffix:
		return bytes.HasPrefix(line, []byte(m.opts.MultilinePrefix))
	case MultilineRegexp:
		return m.re != nil && m.re.Match(line)
	default:
		return true
	}
}

func (m *multilineState) endsRecord(line []byte) bool {
	return m.opts.MultilineSuffix != "" && bytes.HasSuffix(line, []byte(m.opts.MultilineSuffix))
}
