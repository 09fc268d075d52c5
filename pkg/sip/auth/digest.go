// Package auth answers MD5 digest challenges (RFC 2617) for REGISTER and
// INVITE retries. Only the subset the registrar and proxy actually send is
// supported: algorithm MD5, qop "auth" or absent, single-shot nc.
package auth

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"

	"github.com/voipbin/sandbox/pkg/sip/message"
)

// NonceCount is the fixed nc value. The endpoint answers each challenge
// exactly once and never reuses a nonce, so the count never advances.
const NonceCount = "00000001"

var (
	realmRe = regexp.MustCompile(`realm="([^"]+)"`)
	nonceRe = regexp.MustCompile(`nonce="([^"]+)"`)
	qopRe   = regexp.MustCompile(`qop="?([^",]+)"?`)
)

// Challenge is the usable part of a WWW-Authenticate or Proxy-Authenticate
// value.
type Challenge struct {
	Realm string
	Nonce string
	QOP   string
}

// ExtractChallenge pulls the digest challenge out of a 401 or 407
// response. WWW-Authenticate is consulted first, then Proxy-Authenticate;
// a challenge without both realm and nonce yields ErrChallengeUnusable.
func ExtractChallenge(resp *message.Response) (*Challenge, error) {
	var value string
	if v, ok := resp.Header().Get(message.HeaderWWWAuthenticate); ok {
		value = v
	} else if v, ok := resp.Header().Get(message.HeaderProxyAuthenticate); ok {
		value = v
	} else {
		return nil, fmt.Errorf("%w: no challenge header in %d response", ErrChallengeUnusable, resp.StatusCode)
	}

	ch := &Challenge{}
	if m := realmRe.FindStringSubmatch(value); m != nil {
		ch.Realm = m[1]
	}
	if m := nonceRe.FindStringSubmatch(value); m != nil {
		ch.Nonce = m[1]
	}
	if m := qopRe.FindStringSubmatch(value); m != nil {
		// First option of a qop list; the proxy offers "auth".
		ch.QOP = strings.TrimSpace(m[1])
	}
	if ch.Realm == "" || ch.Nonce == "" {
		return nil, fmt.Errorf("%w: missing realm or nonce", ErrChallengeUnusable)
	}
	return ch, nil
}

// ComputeResponse computes the RFC 2617 response hash. With qop set the
// full form MD5(HA1:nonce:nc:cnonce:qop:HA2) is used, otherwise the legacy
// MD5(HA1:nonce:HA2). The result is 32 lowercase hex characters.
func ComputeResponse(username, realm, password, method, uri, nonce, nc, cnonce, qop string) string {
	ha1 := md5Hex(username + ":" + realm + ":" + password)
	ha2 := md5Hex(method + ":" + uri)
	if qop != "" {
		return md5Hex(ha1 + ":" + nonce + ":" + nc + ":" + cnonce + ":" + qop + ":" + ha2)
	}
	return md5Hex(ha1 + ":" + nonce + ":" + ha2)
}

// Credentials is a computed answer to one challenge.
type Credentials struct {
	Username string
	Realm    string
	Nonce    string
	URI      string
	Response string
	QOP      string
	NC       string
	CNonce   string
}

// Answer computes credentials for a challenge: fresh 8-digit cnonce, fixed
// nc, response hash over the given method and digest URI.
func Answer(ch *Challenge, username, password, method, uri string) Credentials {
	cred := Credentials{
		Username: username,
		Realm:    ch.Realm,
		Nonce:    ch.Nonce,
		URI:      uri,
		QOP:      ch.QOP,
	}
	if ch.QOP != "" {
		cred.NC = NonceCount
		cred.CNonce = fmt.Sprintf("%08d", rand.IntN(100000000))
	}
	cred.Response = ComputeResponse(username, ch.Realm, password, method, uri, ch.Nonce, cred.NC, cred.CNonce, ch.QOP)
	return cred
}

// Header renders the Authorization / Proxy-Authorization header value.
// Field order matches what the registrar's account checker expects.
func (c Credentials) Header() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `Digest username="%s", realm="%s", nonce="%s", uri="%s", response="%s", algorithm=MD5`,
		c.Username, c.Realm, c.Nonce, c.URI, c.Response)
	if c.QOP != "" {
		fmt.Fprintf(&sb, `, qop=%s, nc=%s, cnonce="%s"`, c.QOP, c.NC, c.CNonce)
	}
	return sb.String()
}

// HeaderName returns the request header that carries the credentials:
// Authorization for a 401, Proxy-Authorization for a 407.
func HeaderName(statusCode int) string {
	if statusCode == 407 {
		return message.HeaderProxyAuthorization
	}
	return message.HeaderAuthorization
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
