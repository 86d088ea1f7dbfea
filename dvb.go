package tsinspect

import (
	"strconv"
	"time"
)

// parseDVBTime parses a DVB time field: 16 bits giving the Modified Julian
// Date, followed by 24 bits of 4-bit BCD hours/minutes/seconds. Annex C,
// ETSI EN 300 468.
func parseDVBTime(i []byte, offset *int) time.Time {
	mjd := uint16(i[*offset])<<8 | uint16(i[*offset+1])
	*offset += 2

	yt := int((float32(mjd) - 15078.2) / 365.25)
	mt := int((float64(mjd) - 14956.1 - float64(uint16(float64(yt)*365.25))) / 30.6001)
	d := int(mjd - 14956 - uint16(float64(yt)*365.25) - uint16(float64(mt)*30.6001))
	var k int
	if mt == 14 || mt == 15 {
		k = 1
	}
	y := yt + k
	m := mt - 1 - k*12

	dateStr := strconv.Itoa(y) + "-" + strconv.Itoa(m) + "-" + strconv.Itoa(d)
	t, _ := time.Parse("06-01-02", dateStr)

	t = t.Add(parseDVBDurationSeconds(i, offset))
	return t
}

// parseDVBDurationMinutes parses a 16-bit hours/minutes BCD duration.
func parseDVBDurationMinutes(i []byte, offset *int) time.Duration {
	d := parseDVBDurationByte(i[*offset])*time.Hour + parseDVBDurationByte(i[*offset+1])*time.Minute
	*offset += 2
	return d
}

// parseDVBDurationSeconds parses a 24-bit hours/minutes/seconds BCD
// duration.
func parseDVBDurationSeconds(i []byte, offset *int) time.Duration {
	d := parseDVBDurationByte(i[*offset])*time.Hour +
		parseDVBDurationByte(i[*offset+1])*time.Minute +
		parseDVBDurationByte(i[*offset+2])*time.Second
	*offset += 3
	return d
}

func parseDVBDurationByte(b byte) time.Duration {
	return time.Duration(b>>4*10 + b&0xf)
}
