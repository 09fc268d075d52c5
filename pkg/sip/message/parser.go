package message

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// ParseMessage parses one UDP datagram as a SIP message. The first blank
// line (CRLF CRLF or bare LF LF) ends the headers; everything after it is
// the body, regardless of Content-Length. Header lines without a colon are
// skipped, folded continuation lines are unfolded with a single space, and
// invalid UTF-8 in values is replaced with U+FFFD. A missing blank line or
// an undecodable start line yields ErrMalformedMessage.
func ParseMessage(data []byte) (Message, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty datagram", ErrMalformedMessage)
	}
	if len(data) > MaxMessageSize {
		return nil, ErrMessageTooLarge
	}

	headerData, body, ok := splitHeadersBody(data)
	if !ok {
		return nil, fmt.Errorf("%w: no header terminator", ErrMalformedMessage)
	}

	lines := splitLines(headerData)
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return nil, fmt.Errorf("%w: empty start line", ErrMalformedMessage)
	}
	startLine := strings.TrimRight(lines[0], " \t")
	headers := parseHeaderLines(lines[1:])

	if strings.HasPrefix(startLine, "SIP/") {
		resp, err := parseStatusLine(startLine)
		if err != nil {
			return nil, err
		}
		resp.Headers = headers
		resp.body = body
		return resp, nil
	}

	req, err := parseRequestLine(startLine)
	if err != nil {
		return nil, err
	}
	req.Headers = headers
	req.body = body
	return req, nil
}

// splitHeadersBody finds the first blank line under either line-ending
// convention and returns the header block and the body after it.
func splitHeadersBody(data []byte) (headers, body []byte, ok bool) {
	crlf := bytes.Index(data, []byte("\r\n\r\n"))
	lf := bytes.Index(data, []byte("\n\n"))
	switch {
	case crlf >= 0 && (lf < 0 || crlf <= lf):
		return data[:crlf], data[crlf+4:], true
	case lf >= 0:
		return data[:lf], data[lf+2:], true
	default:
		return nil, nil, false
	}
}

// splitLines splits the header block into lines, tolerating CRLF and bare
// LF endings in the same message.
func splitLines(headerData []byte) []string {
	raw := strings.Split(string(headerData), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		lines = append(lines, strings.TrimSuffix(l, "\r"))
	}
	return lines
}

func parseRequestLine(line string) (*Request, error) {
	parts := strings.Fields(line)
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: request line %q", ErrMalformedMessage, line)
	}
	if !strings.HasPrefix(parts[2], "SIP/2.0") {
		return nil, fmt.Errorf("%w: version %q", ErrMalformedMessage, parts[2])
	}
	return &Request{
		Method:     strings.ToUpper(parts[0]),
		RequestURI: parts[1],
	}, nil
}

func parseStatusLine(line string) (*Response, error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "SIP/2.0") {
		return nil, fmt.Errorf("%w: status line %q", ErrMalformedMessage, line)
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil || code < 100 || code > 699 {
		return nil, fmt.Errorf("%w: status code %q", ErrMalformedMessage, parts[1])
	}
	reason := ""
	if len(parts) == 3 {
		reason = strings.TrimSpace(parts[2])
	}
	if reason == "" {
		reason = DefaultReasonPhrase(code)
	}
	return &Response{StatusCode: code, ReasonPhrase: reason}, nil
}

// parseHeaderLines builds the ordered header list. Lines that do not look
// like headers are dropped rather than failing the whole message.
func parseHeaderLines(lines []string) *Headers {
	headers := NewHeaders()
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if line == "" {
			continue
		}
		// Unfold continuations onto the current line.
		for i+1 < len(lines) && len(lines[i+1]) > 0 &&
			(lines[i+1][0] == ' ' || lines[i+1][0] == '\t') {
			i++
			line = line + " " + strings.TrimSpace(lines[i])
		}
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			continue
		}
		name := strings.TrimSpace(line[:colon])
		if name == "" {
			continue
		}
		value := strings.TrimSpace(line[colon+1:])
		headers.Add(name, strings.ToValidUTF8(value, "�"))
	}
	return headers
}
