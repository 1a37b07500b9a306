// Package discovery finds WiFi CAN gateways on the local network with
// mDNS/DNS-SD.
//
// Gateways that advertise a "_wifican._tcp" service (or another service
// type from the configuration) are collected with their address, TCP port
// and TXT metadata. Discovery is optional: the gateway's access point
// address is usually known, and --host always skips the scan.
//
// # Usage Example
//
//	scanner := discovery.NewScanner()
//	scanner.Timeout = 3 * time.Second
//	gateways, err := scanner.Scan(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, gw := range gateways {
//	    fmt.Println(gw.Address())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Gateways must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
