// Package netinfo discovers how the relay is reachable on the local network.
package netinfo

import (
	"net"
	"strconv"
)

const fallbackHost = "localhost"

// probeAddr is never contacted: a UDP dial only selects the outbound
// interface.
var probeAddr = "8.8.8.8:80"

// LocalIP returns the address of the interface used for outbound traffic,
// or "localhost" when there is no route.
func LocalIP() string {
	conn, err := net.Dial("udp", probeAddr)
	if err != nil {
		return fallbackHost
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP == nil || addr.IP.IsUnspecified() {
		return fallbackHost
	}
	return addr.IP.String()
}

// URLs returns the local and network URLs for a server listening on port.
func URLs(port int) (local, network string) {
	p := strconv.Itoa(port)
	return "http://" + net.JoinHostPort("localhost", p), "http://" + net.JoinHostPort(LocalIP(), p)
}
