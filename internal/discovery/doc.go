// Package discovery finds Remootio devices on the local network over mDNS.
//
// Devices announce their web interface as an "_http._tcp" service. The
// scanner browses that service type and keeps entries whose instance name or
// hostname starts with "remootio" (case-insensitive). The websocket API is
// always on port 8080, so Device.Port is fixed and the announced port is kept
// in AdvertisedPort.
//
// The serial number is not part of the announcement; it is only known after
// the config flow authenticated against the device.
//
// # Usage Example
//
//	devices, err := discovery.ScanForDevices(10 * time.Second)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, d := range devices {
//	    fmt.Printf("Found: %s, enter %s as host\n", d.Name, d.Host())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Devices must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
