// Package obfuscate implements the repeating-key XOR transform applied to
// credential payloads on the wire, and the derivation of the device display
// name that doubles as the transform key.
package obfuscate

import (
	"fmt"
	"net"
	"strings"
)

// Transform XORs every byte of data with the key, repeating the key as
// needed. The transform is self-inverse: applying it twice with the same
// key recovers the original bytes. The input slice is not modified.
//
// Callers must guarantee a non-empty key; Transform panics otherwise.
func Transform(data []byte, key string) []byte {
	if len(key) == 0 {
		panic("obfuscate: empty key")
	}
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ key[i%len(key)]
	}
	return out
}

// DeviceName builds the stable advertised name for this device from its
// station MAC address, e.g. "ESP32-A4CF12DEF012". The name is also the
// obfuscation key, so it must be derived before any credential exchange.
func DeviceName(prefix string, mac net.HardwareAddr) string {
	hexID := strings.ToUpper(strings.ReplaceAll(mac.String(), ":", ""))
	return fmt.Sprintf("%s-%s", prefix, hexID)
}
