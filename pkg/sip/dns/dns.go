// Package dns resolves the signaling destination. The sandbox runs its
// own nameserver for the per-customer registrar domains, so lookups can
// be pointed at an explicit server instead of the system resolver. Only
// the RFC 3263 subset the deployment needs is implemented: SRV for
// _sip._udp and A records, no NAPTR (UDP is the only transport).
package dns

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// WellKnownPort is the fallback signaling port when no SRV record exists.
const WellKnownPort = 5060

// Resolver answers SIP address questions. The zero value uses the system
// resolver; setting NameServer (host or host:port) routes every query to
// that server.
type Resolver struct {
	NameServer string
	Timeout    time.Duration
}

// LookupSRV returns the SRV records for _service._proto.name ordered by
// priority, heaviest weight first within a priority.
func (r *Resolver) LookupSRV(ctx context.Context, service, proto, name string) ([]*net.SRV, error) {
	if r.NameServer == "" {
		_, srvs, err := net.DefaultResolver.LookupSRV(ctx, service, proto, name)
		return srvs, err
	}

	target := fmt.Sprintf("_%s._%s.%s", service, proto, name)
	resp, err := r.exchange(ctx, target, dns.TypeSRV)
	if err != nil {
		return nil, err
	}
	srvs := make([]*net.SRV, 0, len(resp.Answer))
	for _, ans := range resp.Answer {
		if rr, ok := ans.(*dns.SRV); ok {
			srvs = append(srvs, &net.SRV{
				Target:   rr.Target,
				Port:     rr.Port,
				Priority: rr.Priority,
				Weight:   rr.Weight,
			})
		}
	}
	slices.SortFunc(srvs, func(a, b *net.SRV) int {
		if c := cmp.Compare(a.Priority, b.Priority); c != 0 {
			return c
		}
		return cmp.Compare(b.Weight, a.Weight)
	})
	return srvs, nil
}

// LookupIP resolves host to a single IPv4 address. Literal addresses pass
// through without a query.
func (r *Resolver) LookupIP(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}

	if r.NameServer == "" {
		ips, err := net.DefaultResolver.LookupIP(ctx, "ip4", host)
		if err != nil {
			return nil, err
		}
		return ips[0], nil
	}

	resp, err := r.exchange(ctx, host, dns.TypeA)
	if err != nil {
		return nil, err
	}
	for _, ans := range resp.Answer {
		if rr, ok := ans.(*dns.A); ok {
			return rr.A, nil
		}
	}
	return nil, &net.DNSError{Err: "no A record", Name: host, IsNotFound: true}
}

// LookupUDPAddr resolves host:port to a UDP address.
func (r *Resolver) LookupUDPAddr(ctx context.Context, host string, port int) (*net.UDPAddr, error) {
	ip, err := r.LookupIP(ctx, host)
	if err != nil {
		return nil, err
	}
	return &net.UDPAddr{IP: ip, Port: port}, nil
}

// DiscoverPort finds the signaling port for host when the operator left
// it unset: the best _sip._udp SRV record supplies target and port, and
// anything else degrades to the well-known 5060. The returned host
// replaces the input when an SRV record redirects it.
func (r *Resolver) DiscoverPort(ctx context.Context, host string, logger *slog.Logger) (string, int) {
	srvs, err := r.LookupSRV(ctx, "sip", "udp", host)
	if err != nil {
		logger.Warn("SRV discovery failed, using well-known port",
			slog.String("host", host),
			slog.String("error", err.Error()))
		return host, WellKnownPort
	}
	if len(srvs) == 0 {
		logger.Warn("no SRV records, using well-known port", slog.String("host", host))
		return host, WellKnownPort
	}
	target := strings.TrimSuffix(srvs[0].Target, ".")
	logger.Info("resolved signaling target from SRV",
		slog.String("host", host),
		slog.String("target", target),
		slog.Int("port", int(srvs[0].Port)))
	return target, int(srvs[0].Port)
}

func (r *Resolver) exchange(ctx context.Context, name string, qtype uint16) (*dns.Msg, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), qtype)
	m.RecursionDesired = true

	client := &dns.Client{Timeout: r.timeout()}
	resp, _, err := client.ExchangeContext(ctx, m, r.nameserver())
	if err != nil {
		return nil, err
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, &net.DNSError{
			Err:        dns.RcodeToString[resp.Rcode],
			Name:       name,
			IsNotFound: resp.Rcode == dns.RcodeNameError,
		}
	}
	return resp, nil
}

func (r *Resolver) timeout() time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return 5 * time.Second
}

func (r *Resolver) nameserver() string {
	if _, _, err := net.SplitHostPort(r.NameServer); err != nil {
		return net.JoinHostPort(r.NameServer, "53")
	}
	return r.NameServer
}
