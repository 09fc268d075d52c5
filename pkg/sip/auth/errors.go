package auth

import "errors"

// ErrChallengeUnusable reports a 401/407 whose challenge cannot be
// answered: no WWW-Authenticate or Proxy-Authenticate header, or a
// challenge missing the realm or nonce. Callers fail the attempt without
// retrying.
var ErrChallengeUnusable = errors.New("unusable digest challenge")
