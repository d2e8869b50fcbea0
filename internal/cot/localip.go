package cot

import "net"

// probeTargets are public resolvers used for the connectionless outbound
// route probe. More than one in case a network blocks the first.
var probeTargets = []string{"8.8.8.8:53", "1.1.1.1:53"}

// detectPreferredLocalIP asks the OS which local IPv4 address it would use
// for outbound traffic. A UDP connect does not send any packets by itself.
// Returns "" when no route is available.
func detectPreferredLocalIP() string {
	for _, target := range probeTargets {
		conn, err := net.Dial("udp4", target)
		if err != nil {
			continue
		}

		addr, ok := conn.LocalAddr().(*net.UDPAddr)
		_ = conn.Close()

		if ok && addr.IP != nil && !addr.IP.IsUnspecified() {
			return addr.IP.String()
		}
	}
	return ""
}

// interfaceByIP finds the network interface holding the given IPv4 address,
// for multicast outbound interface selection. Returns nil when not found.
func interfaceByIP(ip string) *net.Interface {
	want := net.ParseIP(ip)
	if want == nil {
		return nil
	}

	interfaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	for i := range interfaces {
		addrs, err := interfaces[i].Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipNet, ok := addr.(*net.IPNet); ok && ipNet.IP.Equal(want) {
				return &interfaces[i]
			}
		}
	}
	return nil
}
