package domain

import "strings"

// DefaultChannelPrefix is the channel scheme used when none is configured.
const DefaultChannelPrefix = "whatsapp:"

// FormatAddress prefixes a bare number with the channel scheme.
// Addresses that already carry the prefix are returned unchanged.
func FormatAddress(prefix, address string) string {
	address = strings.TrimSpace(address)
	if address == "" || prefix == "" || strings.HasPrefix(address, prefix) {
		return address
	}
	return prefix + address
}

// BareNumber strips the channel scheme ("whatsapp:+1555" -> "+1555").
func BareNumber(address string) string {
	if _, rest, ok := strings.Cut(address, ":"); ok {
		return rest
	}
	return address
}
