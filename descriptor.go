package tsinspect

// Descriptor tags named by this package. Chapter 6.1, ETSI EN 300 468.
const (
	DescriptorTagISO639LanguageAndAudioType = 0x0a
	DescriptorTagMaximumBitrate             = 0x0e
	DescriptorTagCA                         = 0x09
	DescriptorTagService                    = 0x48
	DescriptorTagShortEvent                 = 0x4d
	DescriptorTagExtendedEvent              = 0x4e
	DescriptorTagStreamIdentifier           = 0x52
)

// Service types. Chapter 6.2.33.
const (
	ServiceTypeDigitalTelevisionService = 0x01
	ServiceTypeDigitalRadioSoundService = 0x02
)

// Descriptor represents a single PSI/SI descriptor. Only the tags with a
// typed field below are decoded; everything else is kept as raw content.
type Descriptor struct {
	Tag     uint8
	Length  uint8
	Content []byte

	CA                         *DescriptorCA
	Service                    *DescriptorService
	ShortEvent                 *DescriptorShortEvent
	ExtendedEvent              *DescriptorExtendedEvent
	StreamIdentifier           *DescriptorStreamIdentifier
	ISO639LanguageAndAudioType *DescriptorISO639LanguageAndAudioType
	MaximumBitrate             *DescriptorMaximumBitrate
}

// DescriptorCA represents a CA_descriptor (Chapter 2.6.16, ISO/IEC
// 13818-1): identifies the conditional access system and EMM/ECM PID for a
// scrambled program or elementary stream.
type DescriptorCA struct {
	CASystemID uint16
	CAPID      uint16
	PrivateData []byte
}

// DescriptorService represents a service_descriptor (Chapter 6.2.33).
type DescriptorService struct {
	Type     uint8
	Provider []byte
	Name     []byte
}

// DescriptorShortEvent represents a short_event_descriptor (Chapter 6.2.37).
type DescriptorShortEvent struct {
	Language  []byte // 3 bytes.
	EventName []byte
	Text      []byte
}

// DescriptorExtendedEvent represents an extended_event_descriptor (Chapter
// 6.2.15), trimmed to what a reporter needs: language and assembled text.
type DescriptorExtendedEvent struct {
	Number             uint8 // 4 bits.
	LastDescriptor     uint8 // 4 bits.
	ISO639LanguageCode []byte
	Text               []byte
}

// DescriptorStreamIdentifier represents a stream_identifier_descriptor
// (Chapter 6.2.39).
type DescriptorStreamIdentifier struct {
	ComponentTag uint8
}

// DescriptorISO639LanguageAndAudioType represents an ISO_639_language_
// descriptor (Chapter 2.6.18, ISO/IEC 13818-1).
type DescriptorISO639LanguageAndAudioType struct {
	Language []byte
	Type     uint8
}

// DescriptorMaximumBitrate represents a maximum_bitrate_descriptor (Chapter
// 2.6.26, ISO/IEC 13818-1); Bitrate is in units of 50 bytes/second.
type DescriptorMaximumBitrate struct {
	Bitrate uint32 // 22 bits.
}

// parseDescriptors reads a 12-bit descriptor_loop_length followed by that
// many bytes of descriptors, starting at *offset. *offset must already
// point at the two length bytes.
func parseDescriptors(i []byte, offset *int) (o []*Descriptor) {
	if *offset+2 > len(i) {
		return nil
	}
	length := int(i[*offset]&0xf)<<8 | int(i[*offset+1])
	*offset += 2

	end := *offset + length
	if end > len(i) {
		end = len(i)
	}

	for *offset < end && *offset+2 <= len(i) {
		d := &Descriptor{
			Tag:    i[*offset],
			Length: i[*offset+1],
		}
		*offset += 2

		descEnd := *offset + int(d.Length)
		if descEnd > len(i) {
			descEnd = len(i)
		}
		d.Content = i[*offset:descEnd]

		parseDescriptorData(d, i, *offset, descEnd)

		*offset = descEnd
		o = append(o, d)
	}
	return o
}

func parseDescriptorData(d *Descriptor, i []byte, start, end int) {
	switch d.Tag {
	case DescriptorTagCA:
		if end-start >= 4 {
			d.CA = &DescriptorCA{
				CASystemID: uint16(i[start])<<8 | uint16(i[start+1]),
				CAPID:      uint16(i[start+2]&0x1f)<<8 | uint16(i[start+3]),
			}
			if end > start+4 {
				d.CA.PrivateData = i[start+4 : end]
			}
		}
	case DescriptorTagService:
		if end-start < 1 {
			return
		}
		s := &DescriptorService{Type: i[start]}
		o := start + 1
		if o < end {
			pl := int(i[o])
			o++
			if o+pl <= end {
				s.Provider = i[o : o+pl]
				o += pl
			}
		}
		if o < end {
			nl := int(i[o])
			o++
			if o+nl <= end {
				s.Name = i[o : o+nl]
			}
		}
		d.Service = s
	case DescriptorTagShortEvent:
		if end-start < 3 {
			return
		}
		se := &DescriptorShortEvent{Language: i[start : start+3]}
		o := start + 3
		if o < end {
			el := int(i[o])
			o++
			if o+el <= end {
				se.EventName = i[o : o+el]
				o += el
			}
		}
		if o < end {
			tl := int(i[o])
			o++
			if o+tl <= end {
				se.Text = i[o : o+tl]
			}
		}
		d.ShortEvent = se
	case DescriptorTagExtendedEvent:
		if end-start < 4 {
			return
		}
		ee := &DescriptorExtendedEvent{
			Number:             i[start] >> 4,
			LastDescriptor:     i[start] & 0xf,
			ISO639LanguageCode: i[start+1 : start+4],
		}
		o := start + 4
		if o < end {
			itemsLen := int(i[o])
			o += 1 + itemsLen // Skip the item list; only the trailing free text is surfaced.
		}
		if o < end {
			tl := int(i[o])
			o++
			if o+tl <= end {
				ee.Text = i[o : o+tl]
			}
		}
		d.ExtendedEvent = ee
	case DescriptorTagStreamIdentifier:
		if end-start >= 1 {
			d.StreamIdentifier = &DescriptorStreamIdentifier{ComponentTag: i[start]}
		}
	case DescriptorTagISO639LanguageAndAudioType:
		n := end - start
		if n >= 1 {
			langLen := n - 1
			if langLen > 3 {
				langLen = 3
			}
			d.ISO639LanguageAndAudioType = &DescriptorISO639LanguageAndAudioType{
				Language: i[start : start+langLen],
				Type:     i[end-1],
			}
		}
	case DescriptorTagMaximumBitrate:
		if end-start >= 3 {
			v := uint32(i[start]&0x3f)<<16 | uint32(i[start+1])<<8 | uint32(i[start+2])
			d.MaximumBitrate = &DescriptorMaximumBitrate{Bitrate: v}
		}
	}
}
