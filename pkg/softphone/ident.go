package softphone

import (
	"fmt"
	"math/rand/v2"
	"sync/atomic"
)

// Identifier generation. Collision resistance, not unpredictability, is
// what these need: a per-process counter plus a random component keeps
// same-process values distinct, and the formats stay grep-compatible with
// what the platform's registrar logs.

const branchPrefix = "z9hG4bK"

// digits returns n random decimal digits, never starting with zero.
func digits(n int) string {
	buf := make([]byte, n)
	buf[0] = byte('1' + rand.IntN(9))
	for i := 1; i < n; i++ {
		buf[i] = byte('0' + rand.IntN(10))
	}
	return string(buf)
}

// NewBranch returns a fresh Via branch in RFC 3261 magic-cookie form.
func NewBranch() string {
	return branchPrefix + digits(9)
}

// NewTag returns an 8-digit From/To tag.
func NewTag() string {
	return digits(8)
}

var callIDSeq atomic.Uint64

// NewCallID returns a Call-ID in the registering endpoint's form,
// "<seq>_<random>@<host>". The sequence survives for the life of the
// process.
func NewCallID(host string) string {
	return fmt.Sprintf("%d_%s@%s", callIDSeq.Add(1), digits(7), host)
}

// NewCallerCallID returns a Call-ID in the originating endpoint's form,
// "<random>@<host>", where host is the proxy the call is placed through.
func NewCallerCallID(host string) string {
	return digits(10) + "@" + host
}
