// Package cot reports detections to a situational-awareness consumer
// (e.g. ATAK) as Cursor-on-Target XML events over UDP.
package cot

import "fmt"

// Config holds the outbound marker settings.
type Config struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`

	MulticastTTL int `yaml:"multicastTTL"`
	// BindLocalIP forces the multicast outbound interface. Optional; fixes
	// multi-NIC routing, especially on Windows.
	BindLocalIP string `yaml:"bindLocalIP"`

	// Fixed station coordinates for the marker.
	Lat float64 `yaml:"lat"`
	Lon float64 `yaml:"lon"`

	Type         string `yaml:"type"` // CoT type code, e.g. "a-f-G-U-C"
	StaleSeconds int    `yaml:"staleSeconds"`

	GroupName string `yaml:"groupName"`
	GroupRole string `yaml:"groupRole"`

	UsePerFrequencyUID bool   `yaml:"usePerFrequencyUID"`
	CallsignPrefix     string `yaml:"callsignPrefix"`

	StaticCallsign string `yaml:"staticCallsign"`
	StaticUID      string `yaml:"staticUID"`
}

// Identity resolves the (callsign, uid) pair for a detection. In
// per-frequency mode both are the same "<prefix><freq>MHz" string, which
// doubles as the rate-limit key; otherwise the static pair is returned.
func (c Config) Identity(freqMHz float64) (callsign, uid string) {
	if c.UsePerFrequencyUID && freqMHz > 0 {
		callsign = fmt.Sprintf("%s%.3fMHz", c.CallsignPrefix, freqMHz)
		return callsign, callsign
	}
	return c.StaticCallsign, c.StaticUID
}
