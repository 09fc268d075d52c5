// Package message implements the SIP message codec: parsing, construction
// and serialization of requests and responses as exchanged over UDP.
//
// The codec is deliberately lenient on receive (unknown headers and
// malformed header lines are tolerated) and canonical on send. Header
// receipt order is preserved exactly through parse and serialization so
// that Via sets are echoed unchanged.
package message

import (
	"fmt"
	"strings"
)

// MaxMessageSize is the largest datagram the codec will parse.
const MaxMessageSize = 64 * 1024

// SIP methods used by the endpoint.
const (
	MethodRegister = "REGISTER"
	MethodInvite   = "INVITE"
	MethodAck      = "ACK"
	MethodBye      = "BYE"
	MethodCancel   = "CANCEL"
	MethodOptions  = "OPTIONS"
)

// Canonical header names. Header lookup is case-sensitive and exact: names
// are stored as received, and the peers this endpoint talks to emit
// canonical forms only. Compact forms are not translated.
const (
	HeaderVia                = "Via"
	HeaderFrom               = "From"
	HeaderTo                 = "To"
	HeaderCallID             = "Call-ID"
	HeaderCSeq               = "CSeq"
	HeaderContact            = "Contact"
	HeaderExpires            = "Expires"
	HeaderMaxForwards        = "Max-Forwards"
	HeaderContentType        = "Content-Type"
	HeaderContentLength      = "Content-Length"
	HeaderUserAgent          = "User-Agent"
	HeaderAllow              = "Allow"
	HeaderWWWAuthenticate    = "WWW-Authenticate"
	HeaderProxyAuthenticate  = "Proxy-Authenticate"
	HeaderAuthorization      = "Authorization"
	HeaderProxyAuthorization = "Proxy-Authorization"
)

// Message is the common interface for SIP requests and responses.
type Message interface {
	IsRequest() bool
	IsResponse() bool

	// Header returns the ordered header list. Never nil for parsed
	// or built messages.
	Header() *Headers

	// GetHeader returns the first value of the named header, or "".
	GetHeader(name string) string

	Body() []byte
	Bytes() []byte
	String() string
}

// Header is a single header line: the name as received and the raw value.
type Header struct {
	Name  string
	Value string
}

// Headers is the ordered header list of a message. Every physical header
// line is one entry and receipt order survives serialization, so repeated
// headers such as Via are never merged or reordered.
type Headers struct {
	list []Header
}

// NewHeaders returns an empty header list.
func NewHeaders() *Headers {
	return &Headers{}
}

// Get returns the value of the first header with the given name.
func (h *Headers) Get(name string) (string, bool) {
	for _, hdr := range h.list {
		if hdr.Name == name {
			return hdr.Value, true
		}
	}
	return "", false
}

// GetAll returns the values of every header with the given name, in
// receipt order.
func (h *Headers) GetAll(name string) []string {
	var values []string
	for _, hdr := range h.list {
		if hdr.Name == name {
			values = append(values, hdr.Value)
		}
	}
	return values
}

// Has reports whether at least one header with the given name is present.
func (h *Headers) Has(name string) bool {
	_, ok := h.Get(name)
	return ok
}

// Add appends a header line, preserving any existing lines with the same
// name.
func (h *Headers) Add(name, value string) {
	h.list = append(h.list, Header{Name: name, Value: value})
}

// Set replaces the named header in place: the first occurrence keeps its
// position with the new value, later occurrences are removed. A missing
// header is appended at the end.
func (h *Headers) Set(name, value string) {
	replaced := false
	kept := h.list[:0]
	for _, hdr := range h.list {
		if hdr.Name == name {
			if replaced {
				continue
			}
			hdr.Value = value
			replaced = true
		}
		kept = append(kept, hdr)
	}
	h.list = kept
	if !replaced {
		h.Add(name, value)
	}
}

// Remove deletes every header with the given name.
func (h *Headers) Remove(name string) {
	kept := h.list[:0]
	for _, hdr := range h.list {
		if hdr.Name != name {
			kept = append(kept, hdr)
		}
	}
	h.list = kept
}

// Len returns the number of header lines.
func (h *Headers) Len() int {
	return len(h.list)
}

// Entries returns a copy of all header lines in order.
func (h *Headers) Entries() []Header {
	out := make([]Header, len(h.list))
	copy(out, h.list)
	return out
}

// Clone returns a deep copy.
func (h *Headers) Clone() *Headers {
	clone := &Headers{list: make([]Header, len(h.list))}
	copy(clone.list, h.list)
	return clone
}

func (h *Headers) write(sb *strings.Builder) {
	for _, hdr := range h.list {
		sb.WriteString(hdr.Name)
		sb.WriteString(": ")
		sb.WriteString(hdr.Value)
		sb.WriteString("\r\n")
	}
}

// Request is a SIP request. RequestURI is kept as opaque wire text: the
// endpoint echoes it for in-dialog requests and never rewrites it.
type Request struct {
	Method     string
	RequestURI string
	Headers    *Headers
	body       []byte
}

// IsRequest returns true.
func (r *Request) IsRequest() bool { return true }

// IsResponse returns false.
func (r *Request) IsResponse() bool { return false }

// Header returns the header list, allocating it when needed.
func (r *Request) Header() *Headers {
	if r.Headers == nil {
		r.Headers = NewHeaders()
	}
	return r.Headers
}

// GetHeader returns the first value of the named header, or "".
func (r *Request) GetHeader(name string) string {
	v, _ := r.Header().Get(name)
	return v
}

// Body returns the message body.
func (r *Request) Body() []byte { return r.body }

// String serializes the request to wire form.
func (r *Request) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s SIP/2.0\r\n", r.Method, r.RequestURI)
	r.Header().write(&sb)
	sb.WriteString("\r\n")
	sb.Write(r.body)
	return sb.String()
}

// Bytes serializes the request to wire form.
func (r *Request) Bytes() []byte { return []byte(r.String()) }

// Response is a SIP response.
type Response struct {
	StatusCode   int
	ReasonPhrase string
	Headers      *Headers
	body         []byte
}

// IsRequest returns false.
func (r *Response) IsRequest() bool { return false }

// IsResponse returns true.
func (r *Response) IsResponse() bool { return true }

// Header returns the header list, allocating it when needed.
func (r *Response) Header() *Headers {
	if r.Headers == nil {
		r.Headers = NewHeaders()
	}
	return r.Headers
}

// GetHeader returns the first value of the named header, or "".
func (r *Response) GetHeader(name string) string {
	v, _ := r.Header().Get(name)
	return v
}

// Body returns the message body.
func (r *Response) Body() []byte { return r.body }

// String serializes the response to wire form.
func (r *Response) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "SIP/2.0 %d %s\r\n", r.StatusCode, r.ReasonPhrase)
	r.Header().write(&sb)
	sb.WriteString("\r\n")
	sb.Write(r.body)
	return sb.String()
}

// Bytes serializes the response to wire form.
func (r *Response) Bytes() []byte { return []byte(r.String()) }

// Provisional reports whether the response is 1xx.
func (r *Response) Provisional() bool {
	return r.StatusCode >= 100 && r.StatusCode < 200
}

var reasonPhrases = map[int]string{
	100: "Trying",
	180: "Ringing",
	183: "Session Progress",
	200: "OK",
	202: "Accepted",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	407: "Proxy Authentication Required",
	408: "Request Timeout",
	415: "Unsupported Media Type",
	481: "Call/Transaction Does Not Exist",
	486: "Busy Here",
	487: "Request Terminated",
	488: "Not Acceptable Here",
	500: "Server Internal Error",
	503: "Service Unavailable",
	603: "Decline",
}

// DefaultReasonPhrase returns the canonical phrase for a status code, or
// "Unknown" for codes outside the table.
func DefaultReasonPhrase(code int) string {
	if phrase, ok := reasonPhrases[code]; ok {
		return phrase
	}
	return "Unknown"
}
