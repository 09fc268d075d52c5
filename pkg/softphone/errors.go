package softphone

import "fmt"

// StatusError reports a final SIP response that ended an operation:
// a non-2xx answer to REGISTER, or a non-auth failure of an INVITE.
type StatusError struct {
	Code   int
	Reason string
}

func (e *StatusError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d %s", e.Code, e.Reason)
}
