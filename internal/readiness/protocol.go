package readiness

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Protocol selects how a server's readiness is probed and how its resource
// identifier is rendered.
type Protocol string

const (
	ProtocolTCP      Protocol = "tcp"
	ProtocolSocket   Protocol = "socket"
	ProtocolHTTP     Protocol = "http"
	ProtocolHTTPS    Protocol = "https"
	ProtocolHTTPGet  Protocol = "http-get"
	ProtocolHTTPSGet Protocol = "https-get"
)

// ParseProtocol validates a protocol string. Empty input selects tcp.
func ParseProtocol(s string) (Protocol, error) {
	switch Protocol(strings.TrimSpace(strings.ToLower(s))) {
	case "":
		return ProtocolTCP, nil
	case ProtocolTCP:
		return ProtocolTCP, nil
	case ProtocolSocket:
		return ProtocolSocket, nil
	case ProtocolHTTP:
		return ProtocolHTTP, nil
	case ProtocolHTTPS:
		return ProtocolHTTPS, nil
	case ProtocolHTTPGet:
		return ProtocolHTTPGet, nil
	case ProtocolHTTPSGet:
		return ProtocolHTTPSGet, nil
	}
	return "", fmt.Errorf("unknown protocol %q (valid: tcp, socket, http, https, http-get, https-get)", s)
}

// httpFamily reports whether the probe speaks HTTP rather than raw TCP.
func (p Protocol) httpFamily() bool {
	switch p {
	case ProtocolHTTP, ProtocolHTTPS, ProtocolHTTPGet, ProtocolHTTPSGet:
		return true
	}
	return false
}

// scheme maps the protocol to the URL scheme used for HTTP probes.
func (p Protocol) scheme() string {
	switch p {
	case ProtocolHTTPS, ProtocolHTTPSGet:
		return "https"
	default:
		return "http"
	}
}

// Resource renders the identifier polled for readiness. TCP-family protocols
// use the "proto:host:port[/basePath]" form without slashes; HTTP-family
// protocols render a regular URL.
func (p Protocol) Resource(host string, port int, basePath string) string {
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	if p.httpFamily() {
		return fmt.Sprintf("%s://%s%s", p.scheme(), net.JoinHostPort(host, strconv.Itoa(port)), basePath)
	}
	return fmt.Sprintf("%s:%s:%d%s", p, host, port, basePath)
}
