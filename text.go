package tsinspect

import "github.com/tsinspect/tsinspect/dvbtext"

// decodeDVBText converts a raw DVB-SI text field (service name, event title,
// provider...) to a displayable string.
func decodeDVBText(b []byte) string {
	return dvbtext.Decode(b)
}
