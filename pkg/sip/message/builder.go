package message

import (
	"fmt"
	"strconv"
	"strings"
)

// RequestBuilder assembles a SIP request. Header order on the wire is the
// order of builder calls; Content-Length is always emitted last by Build.
type RequestBuilder struct {
	method  string
	uri     string
	headers *Headers
	body    []byte
}

// NewRequest creates a request builder for the given method and Request-URI.
func NewRequest(method, requestURI string) *RequestBuilder {
	return &RequestBuilder{
		method:  strings.ToUpper(method),
		uri:     requestURI,
		headers: NewHeaders(),
	}
}

// Via appends a Via header with the given transport, sent-by address and
// branch. rport is always requested so the far side replies to the source
// port of the datagram rather than the advertised one.
func (b *RequestBuilder) Via(transport, host string, port int, branch string) *RequestBuilder {
	via := fmt.Sprintf("SIP/2.0/%s %s:%d", strings.ToUpper(transport), host, port)
	if branch != "" {
		via += ";branch=" + branch
	}
	via += ";rport"
	b.headers.Add(HeaderVia, via)
	return b
}

// From sets the From header as <uri>, with a tag parameter when tag is
// non-empty.
func (b *RequestBuilder) From(uri, tag string) *RequestBuilder {
	from := "<" + uri + ">"
	if tag != "" {
		from += ";tag=" + tag
	}
	b.headers.Set(HeaderFrom, from)
	return b
}

// To sets the To header as <uri>, with a tag parameter when tag is
// non-empty.
func (b *RequestBuilder) To(uri, tag string) *RequestBuilder {
	to := "<" + uri + ">"
	if tag != "" {
		to += ";tag=" + tag
	}
	b.headers.Set(HeaderTo, to)
	return b
}

// CallID sets the Call-ID header.
func (b *RequestBuilder) CallID(callID string) *RequestBuilder {
	b.headers.Set(HeaderCallID, callID)
	return b
}

// CSeq sets the CSeq header.
func (b *RequestBuilder) CSeq(seq uint32, method string) *RequestBuilder {
	b.headers.Set(HeaderCSeq, fmt.Sprintf("%d %s", seq, strings.ToUpper(method)))
	return b
}

// Contact sets the Contact header as <uri>.
func (b *RequestBuilder) Contact(uri string) *RequestBuilder {
	b.headers.Set(HeaderContact, "<"+uri+">")
	return b
}

// MaxForwards sets Max-Forwards at the current position. Without this call
// Build appends the default of 70.
func (b *RequestBuilder) MaxForwards(value int) *RequestBuilder {
	b.headers.Set(HeaderMaxForwards, strconv.Itoa(value))
	return b
}

// Header appends a header line at the current position.
func (b *RequestBuilder) Header(name, value string) *RequestBuilder {
	b.headers.Add(name, value)
	return b
}

// Body sets the message body and its Content-Type. Content-Length is
// deferred to Build so it lands after all other headers.
func (b *RequestBuilder) Body(contentType string, body []byte) *RequestBuilder {
	b.body = body
	if len(body) > 0 {
		b.headers.Set(HeaderContentType, contentType)
	} else {
		b.headers.Remove(HeaderContentType)
	}
	return b
}

// Build finalizes the request: Max-Forwards defaults to 70 when unset and
// Content-Length is set to the exact body length (0 without a body).
func (b *RequestBuilder) Build() *Request {
	if !b.headers.Has(HeaderMaxForwards) {
		b.headers.Set(HeaderMaxForwards, "70")
	}
	b.headers.Set(HeaderContentLength, strconv.Itoa(len(b.body)))
	return &Request{
		Method:     b.method,
		RequestURI: b.uri,
		Headers:    b.headers,
		body:       b.body,
	}
}

// ResponseBuilder assembles a response to a received request. NewResponse
// copies Via (every line, in receipt order), From, To, Call-ID and CSeq
// from the request, which is all the dialog correlation a UAS answer
// needs.
type ResponseBuilder struct {
	statusCode   int
	reasonPhrase string
	headers      *Headers
	body         []byte
}

// NewResponse creates a response builder for the given request.
// An empty reason phrase selects the canonical one for the code.
func NewResponse(req *Request, statusCode int, reasonPhrase string) *ResponseBuilder {
	headers := NewHeaders()
	for _, via := range req.Header().GetAll(HeaderVia) {
		headers.Add(HeaderVia, via)
	}
	for _, name := range []string{HeaderFrom, HeaderTo, HeaderCallID, HeaderCSeq} {
		if v, ok := req.Header().Get(name); ok {
			headers.Add(name, v)
		}
	}
	return &ResponseBuilder{
		statusCode:   statusCode,
		reasonPhrase: reasonPhrase,
		headers:      headers,
	}
}

// ToTag appends a tag parameter to the To header, only when one is not
// already present.
func (b *ResponseBuilder) ToTag(tag string) *ResponseBuilder {
	to, ok := b.headers.Get(HeaderTo)
	if ok && tag != "" && !strings.Contains(to, ";tag=") {
		b.headers.Set(HeaderTo, to+";tag="+tag)
	}
	return b
}

// Contact sets the Contact header as <uri>.
func (b *ResponseBuilder) Contact(uri string) *ResponseBuilder {
	b.headers.Set(HeaderContact, "<"+uri+">")
	return b
}

// Header appends a header line at the current position.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers.Add(name, value)
	return b
}

// Body sets the response body and its Content-Type.
func (b *ResponseBuilder) Body(contentType string, body []byte) *ResponseBuilder {
	b.body = body
	if len(body) > 0 {
		b.headers.Set(HeaderContentType, contentType)
	} else {
		b.headers.Remove(HeaderContentType)
	}
	return b
}

// Build finalizes the response with its Content-Length.
func (b *ResponseBuilder) Build() *Response {
	if b.reasonPhrase == "" {
		b.reasonPhrase = DefaultReasonPhrase(b.statusCode)
	}
	b.headers.Set(HeaderContentLength, strconv.Itoa(len(b.body)))
	return &Response{
		StatusCode:   b.statusCode,
		ReasonPhrase: b.reasonPhrase,
		Headers:      b.headers,
		body:         b.body,
	}
}
