package message

import "errors"

var (
	// ErrMalformedMessage reports input that cannot be decoded as a SIP
	// message: missing header terminator, unparseable start line, or a
	// status line without a numeric code. Datagrams rejected with this
	// error are dropped by callers, never answered.
	ErrMalformedMessage = errors.New("malformed SIP message")

	// ErrMessageTooLarge reports input above MaxMessageSize.
	ErrMessageTooLarge = errors.New("SIP message too large")

	// ErrInvalidURI reports a string that is not a sip: or sips: URI.
	ErrInvalidURI = errors.New("invalid SIP URI")
)
