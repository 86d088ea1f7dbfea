package tsinspect

// SICache holds the latest validated PAT, SDT, NIT and per-PID PMTs. Each
// update replaces the previous value wholesale; nothing is merged.
// Grounded on the teacher's program_map/stream_map single-slot replacement
// pattern, generalized from a single program map to the small set of tables
// an inspector needs to cross-reference.
type SICache struct {
	pat *PATData
	sdt *SDTData
	nit *NITData
	pmt map[uint16]*PMTData // keyed by the PMT's own PID.
}

// NewSICache returns an empty cache.
func NewSICache() *SICache {
	return &SICache{pmt: make(map[uint16]*PMTData)}
}

// SetPAT replaces the cached PAT.
func (c *SICache) SetPAT(d *PATData) { c.pat = d }

// SetSDT replaces the cached SDT.
func (c *SICache) SetSDT(d *SDTData) { c.sdt = d }

// SetNIT replaces the cached NIT.
func (c *SICache) SetNIT(d *NITData) { c.nit = d }

// SetPMT replaces the PMT cached under pid.
func (c *SICache) SetPMT(pid uint16, d *PMTData) { c.pmt[pid] = d }

// PAT returns the cached PAT, or nil.
func (c *SICache) PAT() *PATData { return c.pat }

// SDT returns the cached SDT, or nil.
func (c *SICache) SDT() *SDTData { return c.sdt }

// NIT returns the cached NIT, or nil.
func (c *SICache) NIT() *NITData { return c.nit }

// PMT returns the PMT cached under pid, or nil.
func (c *SICache) PMT(pid uint16) *PMTData { return c.pmt[pid] }

// PMTs returns every cached PMT keyed by PID.
func (c *SICache) PMTs() map[uint16]*PMTData { return c.pmt }

// CheckServiceIDMismatch reports whether at least one non-zero
// program_number in the cached PAT is absent from the set of service_ids in
// the cached SDT. Returns false if either table is missing.
func (c *SICache) CheckServiceIDMismatch() bool {
	if c.pat == nil || c.sdt == nil {
		return false
	}

	serviceIDs := make(map[uint16]struct{}, len(c.sdt.Services))
	for _, s := range c.sdt.Services {
		serviceIDs[s.ServiceID] = struct{}{}
	}

	for _, p := range c.pat.Programs {
		if p.ProgramNumber == 0 {
			continue
		}
		if _, ok := serviceIDs[p.ProgramNumber]; !ok {
			return true
		}
	}
	return false
}

// ServiceName returns the service descriptor's decoded name for a service
// ID, or "" if unknown.
func (c *SICache) ServiceName(serviceID uint16) string {
	if c.sdt == nil {
		return ""
	}
	for _, s := range c.sdt.Services {
		if s.ServiceID != serviceID {
			continue
		}
		for _, d := range s.Descriptors {
			if d.Service != nil {
				return decodeDVBText(d.Service.Name)
			}
		}
	}
	return ""
}
