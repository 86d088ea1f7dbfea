package tsinspect

import "time"

// TR101Priority selects how much of the TR101 counter set a Snapshot
// exposes. Lower-priority modes still compute every counter internally;
// only the exported view is zeroed.
type TR101Priority int

const (
	TR101Priority1 TR101Priority = iota
	TR101Priority12
	TR101PriorityAll
	TR101PriorityMux
)

// ParseTR101Priority maps the CLI's --tr101-priority values to a
// TR101Priority. An unrecognized value is a usage error.
func ParseTR101Priority(s string) (TR101Priority, bool) {
	switch s {
	case "1":
		return TR101Priority1, true
	case "12":
		return TR101Priority12, true
	case "all":
		return TR101PriorityAll, true
	}
	return 0, false
}

// Snapshot is the Reporter's output tuple for one refresh interval.
type Snapshot struct {
	Time     time.Time
	Programs []*ProgramInfo
	TR101    TR101Counters
}

// BuildSnapshot assembles a Snapshot from a Processor's current state,
// filtered to priority.
func BuildSnapshot(p *Processor, priority TR101Priority, now time.Time) *Snapshot {
	return &Snapshot{
		Time:     now,
		Programs: p.Programs(),
		TR101:    filterTR101(p.TR101().Counters(), priority),
	}
}

// filterTR101 zeroes fields above the requested priority. TR101PriorityMux
// passes every counter through unchanged, treating them as informational.
func filterTR101(c TR101Counters, priority TR101Priority) TR101Counters {
	if priority == TR101PriorityMux || priority == TR101PriorityAll {
		return c
	}
	if priority == TR101Priority1 {
		c.PCRRepetitionErrors = 0
		c.PCRAccuracyErrors = 0
		c.NullPacketRateErrors = 0
		c.CATCRCErrors = 0
		c.CATTimeout = 0
		c.PATVersionChanges = 0
		c.PMTVersionChanges = 0
		c.PTSErrors = 0
	}
	// Priority1 and Priority12 both drop Priority 3 fields.
	c.NITCRCErrors = 0
	c.NITTimeout = 0
	c.SDTCRCErrors = 0
	c.SDTTimeout = 0
	c.EITCRCErrors = 0
	c.EITTimeout = 0
	c.TDTTimeout = 0
	c.ServiceIDMismatch = 0
	c.SpliceCountErrors = 0
	return c
}

// ProgramJson is the wire shape of one ProgramInfo.
type ProgramJson struct {
	Program    uint16   `json:"program"`
	Streams    []EsJson `json:"streams"`
	PCRPID     *uint16  `json:"pcr_pid,omitempty"`
	PMTVersion *uint8   `json:"pmt_version,omitempty"`
}

// EsJson is the wire shape of one elementary stream entry.
type EsJson struct {
	PID         uint16   `json:"pid"`
	StreamType  uint8    `json:"stream_type"`
	Codec       string   `json:"codec"`
	BitrateKbps float64  `json:"bitrate_kbps"`
	Width       *uint16  `json:"width,omitempty"`
	Height      *uint16  `json:"height,omitempty"`
	FPS         *float32 `json:"fps,omitempty"`
	Chroma      *string  `json:"chroma,omitempty"`
	Channels    *uint8   `json:"channels,omitempty"`
	SampleRate  *uint32  `json:"sample_rate,omitempty"`
}

// Tr101Json is the flat wire shape of TR101Counters, one field per counter.
type Tr101Json struct {
	SyncByteErrors          uint64 `json:"sync_byte_errors"`
	TSSyncLoss              uint64 `json:"ts_sync_loss"`
	TransportErrorIndicator uint64 `json:"transport_error_indicator"`
	PATCRCErrors            uint64 `json:"pat_crc_errors"`
	PMTCRCErrors            uint64 `json:"pmt_crc_errors"`
	PATTimeout              uint64 `json:"pat_timeout"`
	PMTTimeout              uint64 `json:"pmt_timeout"`
	ContinuityCounterErrors uint64 `json:"continuity_counter_errors"`
	PIDErrors               uint64 `json:"pid_errors"`

	PCRRepetitionErrors  uint64 `json:"pcr_repetition_errors"`
	PCRAccuracyErrors    uint64 `json:"pcr_accuracy_errors"`
	NullPacketRateErrors uint64 `json:"null_packet_rate_errors"`
	CATCRCErrors         uint64 `json:"cat_crc_errors"`
	CATTimeout           uint64 `json:"cat_timeout"`
	PATVersionChanges    uint64 `json:"pat_version_changes"`
	PMTVersionChanges    uint64 `json:"pmt_version_changes"`
	PTSErrors            uint64 `json:"pts_errors"`

	NITCRCErrors      uint64 `json:"nit_crc_errors"`
	NITTimeout        uint64 `json:"nit_timeout"`
	SDTCRCErrors      uint64 `json:"sdt_crc_errors"`
	SDTTimeout        uint64 `json:"sdt_timeout"`
	EITCRCErrors      uint64 `json:"eit_crc_errors"`
	EITTimeout        uint64 `json:"eit_timeout"`
	TDTTimeout        uint64 `json:"tdt_timeout"`
	ServiceIDMismatch uint64 `json:"service_id_mismatch"`
	SpliceCountErrors uint64 `json:"splice_count_errors"`
}

// SnapshotJson is the root wire object emitted each refresh.
type SnapshotJson struct {
	TsTime   string        `json:"ts_time"`
	Programs []ProgramJson `json:"programs"`
	TR101    Tr101Json     `json:"tr101"`
}

// ToJSON converts a Snapshot to its wire representation.
func (s *Snapshot) ToJSON() SnapshotJson {
	out := SnapshotJson{
		TsTime: s.Time.UTC().Format(time.RFC3339),
		TR101:  tr101ToJSON(s.TR101),
	}
	for _, p := range s.Programs {
		out.Programs = append(out.Programs, programToJSON(p, s.Time))
	}
	return out
}

func programToJSON(p *ProgramInfo, now time.Time) ProgramJson {
	pj := ProgramJson{Program: p.ProgramNumber}
	if p.PCRPID != 0 {
		pcrPID := p.PCRPID
		pj.PCRPID = &pcrPID
	}
	if p.HasPMTVersion {
		v := p.PMTVersion
		pj.PMTVersion = &v
	}
	for _, s := range p.Streams {
		if s.Codec == "" {
			continue // skip streams with no codec yet identified.
		}
		pj.Streams = append(pj.Streams, esToJSON(s, now))
	}
	return pj
}

func esToJSON(s *StreamStats, now time.Time) EsJson {
	ej := EsJson{
		PID:         s.PID,
		StreamType:  s.StreamType,
		Codec:       s.Codec,
		BitrateKbps: streamBitrateKbps(s, now),
	}
	if s.Width > 0 {
		w := uint16(s.Width)
		ej.Width = &w
	}
	if s.Height > 0 {
		h := uint16(s.Height)
		ej.Height = &h
	}
	if s.FPS > 0 {
		fps := float32(s.FPS)
		ej.FPS = &fps
	}
	if s.Chroma != "" {
		chroma := s.Chroma
		ej.Chroma = &chroma
	}
	if s.Channels > 0 {
		ch := uint8(s.Channels)
		ej.Channels = &ch
	}
	if s.SampleRate > 0 {
		sr := uint32(s.SampleRate)
		ej.SampleRate = &sr
	}
	return ej
}

// streamBitrateKbps replicates StatsManager.CalculateBitrate's formula
// against an already-fetched StreamStats, so the reporter doesn't need a
// StatsManager reference of its own. now is the snapshot's own timestamp,
// not time.Now, so a reporter replaying historical snapshots gets
// consistent numbers: elapsed is since the stream started, not since it
// was last seen, so a stalled stream's rate keeps decaying.
func streamBitrateKbps(s *StreamStats, now time.Time) float64 {
	elapsed := now.Sub(s.StartedAt).Seconds()
	if elapsed < 0.1 {
		elapsed = 0.1
	}
	return float64(s.Bytes) * 8 / 1000 / elapsed
}

func tr101ToJSON(c TR101Counters) Tr101Json {
	return Tr101Json{
		SyncByteErrors:          c.SyncByteErrors,
		TSSyncLoss:              c.TSSyncLoss,
		TransportErrorIndicator: c.TransportErrorIndicator,
		PATCRCErrors:            c.PATCRCErrors,
		PMTCRCErrors:            c.PMTCRCErrors,
		PATTimeout:              c.PATTimeout,
		PMTTimeout:              c.PMTTimeout,
		ContinuityCounterErrors: c.ContinuityCounterErrors,
		PIDErrors:               c.PIDErrors,

		PCRRepetitionErrors:  c.PCRRepetitionErrors,
		PCRAccuracyErrors:    c.PCRAccuracyErrors,
		NullPacketRateErrors: c.NullPacketRateErrors,
		CATCRCErrors:         c.CATCRCErrors,
		CATTimeout:           c.CATTimeout,
		PATVersionChanges:    c.PATVersionChanges,
		PMTVersionChanges:    c.PMTVersionChanges,
		PTSErrors:            c.PTSErrors,

		NITCRCErrors:      c.NITCRCErrors,
		NITTimeout:        c.NITTimeout,
		SDTCRCErrors:      c.SDTCRCErrors,
		SDTTimeout:        c.SDTTimeout,
		EITCRCErrors:      c.EITCRCErrors,
		EITTimeout:        c.EITTimeout,
		TDTTimeout:        c.TDTTimeout,
		ServiceIDMismatch: c.ServiceIDMismatch,
		SpliceCountErrors: c.SpliceCountErrors,
	}
}
