package message

import (
	"fmt"
	"strconv"
	"strings"
)

// URI is a sip: or sips: URI. Params keep their order so a parsed URI
// serializes back byte-for-byte. Port 0 means unset.
type URI struct {
	Scheme string
	User   string
	Host   string
	Port   int
	Params []URIParam
}

// URIParam is a single ;key=value URI parameter. Value is empty for flag
// parameters such as ;lr.
type URIParam struct {
	Key   string
	Value string
}

// ParseURI parses a sip: or sips: URI of the form
// scheme:[user@]host[:port][;params].
func ParseURI(s string) (*URI, error) {
	colon := strings.Index(s, ":")
	if colon < 0 {
		return nil, fmt.Errorf("%w: missing scheme in %q", ErrInvalidURI, s)
	}
	scheme := strings.ToLower(s[:colon])
	if scheme != "sip" && scheme != "sips" {
		return nil, fmt.Errorf("%w: scheme %q", ErrInvalidURI, scheme)
	}
	u := &URI{Scheme: scheme}
	rest := s[colon+1:]

	if at := strings.LastIndex(rest, "@"); at >= 0 {
		u.User = rest[:at]
		rest = rest[at+1:]
	}

	if semi := strings.Index(rest, ";"); semi >= 0 {
		for _, p := range strings.Split(rest[semi+1:], ";") {
			if p == "" {
				continue
			}
			if eq := strings.Index(p, "="); eq >= 0 {
				u.Params = append(u.Params, URIParam{Key: p[:eq], Value: p[eq+1:]})
			} else {
				u.Params = append(u.Params, URIParam{Key: p})
			}
		}
		rest = rest[:semi]
	}

	host, port, err := splitHostPort(rest)
	if err != nil {
		return nil, err
	}
	u.Host = host
	u.Port = port
	if u.Host == "" {
		return nil, fmt.Errorf("%w: empty host in %q", ErrInvalidURI, s)
	}
	return u, nil
}

// splitHostPort splits host[:port], keeping IPv6 brackets with the host.
func splitHostPort(s string) (string, int, error) {
	if strings.HasPrefix(s, "[") {
		end := strings.Index(s, "]")
		if end < 0 {
			return "", 0, fmt.Errorf("%w: unterminated IPv6 host %q", ErrInvalidURI, s)
		}
		host := s[:end+1]
		rest := s[end+1:]
		if rest == "" {
			return host, 0, nil
		}
		if !strings.HasPrefix(rest, ":") {
			return "", 0, fmt.Errorf("%w: trailing %q after host", ErrInvalidURI, rest)
		}
		port, err := strconv.Atoi(rest[1:])
		if err != nil {
			return "", 0, fmt.Errorf("%w: port %q", ErrInvalidURI, rest[1:])
		}
		return host, port, nil
	}
	colon := strings.LastIndex(s, ":")
	if colon < 0 {
		return s, 0, nil
	}
	port, err := strconv.Atoi(s[colon+1:])
	if err != nil {
		return "", 0, fmt.Errorf("%w: port %q", ErrInvalidURI, s[colon+1:])
	}
	return s[:colon], port, nil
}

// String serializes the URI.
func (u *URI) String() string {
	var sb strings.Builder
	sb.WriteString(u.Scheme)
	sb.WriteString(":")
	if u.User != "" {
		sb.WriteString(u.User)
		sb.WriteString("@")
	}
	sb.WriteString(u.Host)
	if u.Port > 0 {
		sb.WriteString(":")
		sb.WriteString(strconv.Itoa(u.Port))
	}
	for _, p := range u.Params {
		sb.WriteString(";")
		sb.WriteString(p.Key)
		if p.Value != "" {
			sb.WriteString("=")
			sb.WriteString(p.Value)
		}
	}
	return sb.String()
}

// Clone returns a deep copy.
func (u *URI) Clone() *URI {
	clone := *u
	clone.Params = make([]URIParam, len(u.Params))
	copy(clone.Params, u.Params)
	return &clone
}

// HostPort returns host:port with the scheme default (5060, or 5061 for
// sips) filled in when the port is unset.
func (u *URI) HostPort() string {
	port := u.Port
	if port == 0 {
		if u.Scheme == "sips" {
			port = 5061
		} else {
			port = 5060
		}
	}
	return fmt.Sprintf("%s:%d", u.Host, port)
}
