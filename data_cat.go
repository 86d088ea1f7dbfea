package tsinspect

// CATData represents a CAT (Conditional Access Table) section. The CAT
// carries no stream-level information useful to TR 101 290; its descriptors
// are parsed but not surfaced in a report.
// https://en.wikipedia.org/wiki/Program-specific_information
type CATData struct {
	Descriptors []*Descriptor
}

// parseCATSection parses a CAT section.
func parseCATSection(i []byte, offset *int) (d *CATData) {
	d = &CATData{}
	d.Descriptors = parseDescriptors(i, offset)
	return
}
