package softphone

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Defaults shared by the answering and originating roles. Registration
// refreshes 60 seconds ahead of the 300-second expiry.
const (
	DefaultBaseDomain       = "voipbin.net"
	DefaultRegisterExpires  = 300
	DefaultRegisterInterval = 240 * time.Second
	DefaultRegisterWait     = 5 * time.Second
	DefaultSettleDelay      = 500 * time.Millisecond
	DefaultAttempts         = 20
	DefaultAttemptWait      = 15 * time.Second
	DefaultHold             = 3 * time.Second

	idleRecvTimeout = time.Second

	// The advertised audio port sits above the signaling port; actual
	// RTP allocation is out of scope for the signaling core.
	mediaPortOffset = 1000
)

// RegistrarDomain builds the per-tenant registration domain,
// "<customerID>.registrar.<base>". An empty base selects the platform
// default.
func RegistrarDomain(customerID, base string) string {
	if base == "" {
		base = DefaultBaseDomain
	}
	return customerID + ".registrar." + base
}

// Config identifies the account and the proxy a Phone talks to.
type Config struct {
	// Server is the proxy/registrar address, an IP literal or a name
	// the platform resolver knows.
	Server string
	// Port is the proxy's SIP port.
	Port int
	// Domain is the registration domain, normally built with
	// RegistrarDomain.
	Domain string
	// Extension is the account user part, also the digest username.
	Extension string
	Password  string
	// LocalIP is the address advertised in Via and Contact. Empty
	// means derive it from the route the OS picks toward Server.
	LocalIP string
	// LocalPort fixes the signaling port; 0 binds an ephemeral one.
	LocalPort int
}

func (c Config) serverAddr() (*net.UDPAddr, error) {
	return net.ResolveUDPAddr("udp4", net.JoinHostPort(c.Server, strconv.Itoa(c.Port)))
}

// advertisedIP resolves the address to place in Via/Contact headers. A
// connected UDP socket never sends anything; it only asks the kernel
// which source address the route to the server would use.
func advertisedIP(server string, port int) (string, error) {
	conn, err := net.Dial("udp4", net.JoinHostPort(server, strconv.Itoa(port)))
	if err != nil {
		return "", fmt.Errorf("derive local address: %w", err)
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
