package frame

import "strings"

const (
	lineFeed   = "\n"
	terminator = "\x00"
)

// Frame is one STOMP protocol unit.
type Frame struct {
	Command Command
	Headers Headers
	Body    string
}

// New builds a frame; headers repeat-by-name are dropped, first wins.
func New(cmd Command, hs ...Header) *Frame {
	return &Frame{Command: cmd, Headers: NewHeaders(hs...)}
}

// Destination returns the destination header value.
func (f *Frame) Destination() string { return f.Headers.Value(NameDestination) }

// Serialize renders the frame in wire format, headers in insertion order.
// No header is added beyond what the frame carries.
func (f *Frame) Serialize() string {
	var b strings.Builder
	b.WriteString(f.Command.String())
	b.WriteString(lineFeed)
	for _, h := range f.Headers.list {
		b.WriteString(h.Name())
		b.WriteByte(':')
		b.WriteString(h.value)
		b.WriteString(lineFeed)
	}
	b.WriteString(lineFeed)
	b.WriteString(f.Body)
	b.WriteString(terminator)
	return b.String()
}

func (f *Frame) String() string { return f.Serialize() }

// Parse reads a single frame from text. Any command of the closed set is
// accepted. The header block ends at the first blank line; the body runs
// up to the first NUL, which is stripped. A repeated header name keeps the
// last value seen.
func Parse(text string) (*Frame, error) {
	rest := strings.TrimLeft(text, "\r\n")
	if rest == "" {
		return nil, &ParseError{Reason: "empty frame"}
	}
	line, rest, ok := strings.Cut(rest, lineFeed)
	if !ok {
		return nil, &ParseError{Reason: "missing header terminator", Line: line}
	}
	cmd, err := ParseCommand(strings.TrimSuffix(line, "\r"))
	if err != nil {
		return nil, err
	}
	f := &Frame{Command: cmd}
	for {
		line, rest, ok = strings.Cut(rest, lineFeed)
		if !ok {
			return nil, &ParseError{Reason: "missing header terminator", Line: line}
		}
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			break
		}
		name, value, found := strings.Cut(line, ":")
		if !found {
			return nil, &ParseError{Reason: "header without separator", Line: line}
		}
		f.Headers.Set(NewHeader(name, value))
	}
	if i := strings.Index(rest, terminator); i >= 0 {
		rest = rest[:i]
	}
	f.Body = rest
	return f, nil
}

// ParseInbound is Parse restricted to the commands a server sends.
func ParseInbound(text string) (*Frame, error) {
	f, err := Parse(text)
	if err != nil {
		return nil, err
	}
	if !f.Command.Inbound() {
		return nil, &ParseError{Reason: "unexpected outbound command", Line: f.Command.String()}
	}
	return f, nil
}

// Split cuts a text carrying several NUL-terminated frames into one text
// per frame, each keeping its terminator. Segments made only of line
// feeds are heart-beats and are dropped. A trailing segment without a
// terminator is returned as is.
func Split(text string) []string {
	var out []string
	for text != "" {
		i := strings.Index(text, terminator)
		var seg string
		if i < 0 {
			seg, text = text, ""
		} else {
			seg, text = text[:i+1], text[i+1:]
		}
		if strings.Trim(seg, "\r\n") == "" {
			continue
		}
		out = append(out, seg)
	}
	return out
}

// IsHeartBeat reports whether text is a bare STOMP heart-beat.
func IsHeartBeat(text string) bool {
	return text != "" && strings.Trim(text, "\r\n") == ""
}
