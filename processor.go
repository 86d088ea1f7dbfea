package tsinspect

import (
	"fmt"
	"time"
)

// PSITableIDEITPresentFollowingActual/Other are the two EIT table IDs
// carrying present/following data, as opposed to the EIT schedule tables
// (0x50-0x6F).
const (
	PSITableIDEITPresentFollowingActual PSITableID = 0x4e
	PSITableIDEITPresentFollowingOther  PSITableID = 0x4f
)

// ProgramInfo is the Processor's per-program view, assembled from the
// cached PAT/PMT/SDT for reporting.
type ProgramInfo struct {
	ProgramNumber uint16
	ServiceName   string
	PMTPID        uint16
	PCRPID        uint16
	PMTVersion    uint8
	HasPMTVersion bool
	Streams       []*StreamStats
}

// Processor runs the per-packet pipeline described by the packet-processing
// model: decode, validate, dispatch to PSI/ES, and feed the TR101 engine.
// It owns the SI cache and stats manager and is the sole writer of both.
type Processor struct {
	cache *SICache
	stats *StatsManager
	tr101 *TR101Engine

	// psiBuffers accumulates partial PSI payloads per PID across packets
	// until a full PSIData can be parsed starting at the next
	// payload-unit-start-indicator boundary.
	psiBuffers map[uint16][]byte

	pmtPIDs map[uint16]struct{} // PMT PIDs declared by the cached PAT.

	analysisEnabled bool // false under --no-analysis; gates the TR101 engine only.
}

// NewProcessor returns a Processor wired to fresh SI cache, stats and TR101
// state.
func NewProcessor() *Processor {
	return &Processor{
		cache:           NewSICache(),
		stats:           NewStatsManager(),
		tr101:           NewTR101Engine(),
		psiBuffers:      make(map[uint16][]byte),
		pmtPIDs:         make(map[uint16]struct{}),
		analysisEnabled: true,
	}
}

// Cache exposes the SI cache for the Reporter.
func (p *Processor) Cache() *SICache { return p.cache }

// Stats exposes the stats manager for the Reporter.
func (p *Processor) Stats() *StatsManager { return p.stats }

// TR101 exposes the TR101 engine for the Reporter.
func (p *Processor) TR101() *TR101Engine { return p.tr101 }

// SetAnalysisEnabled toggles the TR 101 290 engine. PSI/ES dispatch (SI
// cache and Stats Manager updates) are unaffected; this only gates the
// counter-producing Observe* calls, matching --no-analysis's scope.
func (p *Processor) SetAnalysisEnabled(v bool) { p.analysisEnabled = v }

// ProcessPacket runs the 10-step pipeline over one 188-byte chunk.
func (p *Processor) ProcessPacket(raw []byte) error {
	// (1) length check.
	if len(raw) != PacketLength {
		return fmt.Errorf("tsinspect: packet length %d != %d", len(raw), PacketLength)
	}

	// (2) sync-byte & sync-loss check.
	validSync := raw[0] == syncByte
	if p.analysisEnabled {
		p.tr101.ObserveSyncByte(validSync)
	}
	if !validSync {
		return ErrPacketMustStartWithASyncByte
	}

	// (3) header decode.
	pkt, err := parsePacket(raw)
	if err != nil {
		return err
	}
	if p.analysisEnabled {
		p.tr101.ObserveHeader(pkt.Header)
		p.tr101.ObservePacketBytes(pkt.Header.PID)
	}

	// (4) PID-error check happened inside ObserveHeader.

	// (5) PCR extraction, when this PID is a designated PCR PID for some
	// cached PMT.
	if p.analysisEnabled {
		if ticks, ok := pkt.PCRValue(); ok && p.isPCRPID(pkt.Header.PID) {
			p.tr101.ObservePCR(pkt.Header.PID, ticks)
		}
	}

	// (9) splice-countdown check.
	if p.analysisEnabled && pkt.AdaptationField != nil && pkt.AdaptationField.HasSplicingCountdown {
		p.tr101.ObserveSpliceCountdown(pkt.Header.PID, pkt.AdaptationField.SpliceCountdown)
	}

	// (6) payload slice, (7)/(8) dispatch.
	if pkt.Header.HasPayload && len(pkt.Payload) > 0 {
		p.dispatchPayload(pkt)
	}

	// (10) service_id_mismatch is evaluated on every packet regardless of
	// payload, and timeout latches are checked once per packet.
	if p.analysisEnabled {
		p.tr101.ObserveServiceIDMismatch(p.cache.CheckServiceIDMismatch())
		p.tr101.CheckTimeouts()
	}

	return nil
}

func (p *Processor) isPCRPID(pid uint16) bool {
	for _, pmt := range p.cache.PMTs() {
		if pmt.PCRPID == pid {
			return true
		}
	}
	return false
}

func (p *Processor) dispatchPayload(pkt *Packet) {
	pid := pkt.Header.PID
	switch {
	case pid == PIDPAT:
		p.dispatchPSI(pkt, p.handlePATSection)
	case pid == PIDCAT:
		p.dispatchPSI(pkt, p.handleCATSection)
	case pid == PIDNIT:
		p.dispatchPSI(pkt, p.handleNITSection)
	case pid == PIDSDT: // == PIDBAT == 0x0011
		p.dispatchPSI(pkt, p.handleSDTOrEITPFSection)
	case pid == PIDTDT: // == PIDTOT == 0x0014
		p.dispatchPSI(pkt, p.handleTDTOrTOTSection)
	case p.isPMTPID(pid):
		p.dispatchPSI(pkt, func(s *PSISection) { p.handlePMTSection(pid, s) })
	default:
		p.dispatchES(pkt)
	}
}

func (p *Processor) isPMTPID(pid uint16) bool {
	_, ok := p.pmtPIDs[pid]
	return ok
}

// dispatchPSI reassembles a PID's PSI payload across packets (using
// payload_unit_start_indicator to know when a new pointer field begins) and
// hands every parsed section to handle.
func (p *Processor) dispatchPSI(pkt *Packet, handle func(*PSISection)) {
	pid := pkt.Header.PID
	payload := pkt.Payload

	if pkt.Header.PayloadUnitStartIndicator {
		p.psiBuffers[pid] = append([]byte(nil), payload...)
	} else if buf, ok := p.psiBuffers[pid]; ok && buf != nil {
		p.psiBuffers[pid] = append(buf, payload...)
	} else {
		return // mid-section payload with no start seen yet; drop.
	}

	data, err := parsePSIData(p.psiBuffers[pid])
	if err != nil {
		// A CRC failure on the accumulated buffer still yields the
		// section with CRC32Valid == false; other errors mean the buffer
		// isn't complete yet or is malformed, so keep it for now.
		if data == nil {
			return
		}
	}
	if data == nil {
		return
	}
	for _, s := range data.Sections {
		handle(s)
	}
}

func (p *Processor) handlePATSection(s *PSISection) {
	if s.Header.TableID != PSITableIDPAT || s.Syntax == nil || s.Syntax.Data.PAT == nil {
		return
	}
	version := uint8(0)
	if s.Syntax.Header != nil {
		version = s.Syntax.Header.VersionNumber
	}
	if p.analysisEnabled {
		p.tr101.ObservePATCRC(s.CRC32Valid, s.Syntax.Data.PAT.TransportStreamID, version)
	}
	if !s.CRC32Valid {
		return
	}
	p.cache.SetPAT(s.Syntax.Data.PAT)
	for _, prog := range s.Syntax.Data.PAT.Programs {
		if prog.ProgramNumber == 0 {
			continue // NIT PID, not a PMT.
		}
		p.pmtPIDs[prog.ProgramMapID] = struct{}{}
		if p.analysisEnabled {
			p.tr101.EnsurePMTLatch(prog.ProgramMapID)
		}
	}
}

func (p *Processor) handlePMTSection(pmtPID uint16, s *PSISection) {
	if s.Header.TableID != PSITableIDPMT || s.Syntax == nil || s.Syntax.Data.PMT == nil {
		return
	}
	version := uint8(0)
	if s.Syntax.Header != nil {
		version = s.Syntax.Header.VersionNumber
	}
	if p.analysisEnabled {
		p.tr101.ObservePMTCRC(s.CRC32Valid, pmtPID, version)
	}
	if !s.CRC32Valid {
		return
	}
	pmt := s.Syntax.Data.PMT
	p.cache.SetPMT(pmtPID, pmt)
	if p.analysisEnabled {
		p.tr101.RegisterKnownPIDs(pmt)
	}
	for _, es := range pmt.ElementaryStreams {
		p.stats.AddStream(es.ElementaryPID, es.StreamType)
	}
}

func (p *Processor) handleCATSection(s *PSISection) {
	if s.Header.TableID != PSITableIDCAT {
		return
	}
	if p.analysisEnabled {
		p.tr101.ObserveCATCRC(s.CRC32Valid)
	}
}

func (p *Processor) handleNITSection(s *PSISection) {
	if s.Syntax == nil || s.Syntax.Data.NIT == nil {
		return
	}
	if p.analysisEnabled {
		p.tr101.ObserveNITCRC(s.CRC32Valid)
	}
	if s.CRC32Valid {
		p.cache.SetNIT(s.Syntax.Data.NIT)
	}
}

func (p *Processor) handleSDTOrEITPFSection(s *PSISection) {
	switch {
	case s.Header.TableID == PSITableIDSDTVariant1 || s.Header.TableID == PSITableIDSDTVariant2:
		if p.analysisEnabled {
			p.tr101.ObserveSDTCRC(s.CRC32Valid)
		}
		if s.CRC32Valid && s.Syntax != nil && s.Syntax.Data.SDT != nil {
			p.cache.SetSDT(s.Syntax.Data.SDT)
		}
	case s.Header.TableID == PSITableIDEITPresentFollowingActual || s.Header.TableID == PSITableIDEITPresentFollowingOther:
		if p.analysisEnabled {
			p.tr101.ObserveEITCRC(s.CRC32Valid)
		}
	}
}

func (p *Processor) handleTDTOrTOTSection(s *PSISection) {
	if !p.analysisEnabled {
		return
	}
	switch s.Header.TableID {
	case PSITableIDTDT:
		p.tr101.ObserveTDT()
	case PSITableIDTOT:
		p.tr101.ObserveTDT()
	}
}

// dispatchES hands an elementary-stream payload to stats accounting and,
// for the first few packets of a PID, codec header detection.
func (p *Processor) dispatchES(pkt *Packet) {
	pid := pkt.Header.PID
	stream := p.stats.Stream(pid)
	if stream == nil {
		return // not declared by any cached PMT yet.
	}
	p.stats.UpdateBytes(pid, PacketLength)

	if !pkt.Header.PayloadUnitStartIndicator {
		return
	}

	pes := parsePESData(pkt.Payload)
	if pes == nil || pes.Header == nil {
		return
	}

	if pes.Header.OptionalHeader != nil && pes.Header.OptionalHeader.PTS != nil {
		ticks := pes.Header.OptionalHeader.PTS.Base
		if p.analysisEnabled {
			p.tr101.ObservePTS(pid, ticks)
		}
		if isVideoStreamType(stream.StreamType) {
			p.stats.PushPTS(pid, ticks)
		}
	}

	if stream.Codec != "" {
		return
	}
	if pes.Data == nil {
		return
	}
	if info, ok := detectVideoCodec(stream.StreamType, pes.Data); ok {
		if info.FPS == 0 {
			if fps, ok := fpsFromPTSHistory(stream.PTSHistory()); ok {
				info.FPS = fps
			}
		}
		p.stats.SetCodecInfo(pid, info)
		return
	}
	if info, ok := detectAudioCodec(stream.StreamType, pes.Data); ok {
		p.stats.SetCodecInfo(pid, info)
	}
}

// Cleanup drops streams first seen more than timeout ago, delegating to the stats
// manager. Call this from the driver loop on each refresh tick.
func (p *Processor) Cleanup(timeout time.Duration) {
	p.stats.CleanupOldStreams(timeout)
}

// Programs assembles the current ProgramInfo list from the SI cache and
// stats manager, for the Reporter.
func (p *Processor) Programs() []*ProgramInfo {
	pat := p.cache.PAT()
	if pat == nil {
		return nil
	}
	var out []*ProgramInfo
	for _, prog := range pat.Programs {
		if prog.ProgramNumber == 0 {
			continue
		}
		info := &ProgramInfo{
			ProgramNumber: prog.ProgramNumber,
			PMTPID:        prog.ProgramMapID,
			ServiceName:   p.cache.ServiceName(prog.ProgramNumber),
		}
		if pmt := p.cache.PMT(prog.ProgramMapID); pmt != nil {
			info.PCRPID = pmt.PCRPID
			for _, es := range pmt.ElementaryStreams {
				if s := p.stats.Stream(es.ElementaryPID); s != nil {
					info.Streams = append(info.Streams, s)
				}
			}
		}
		if v, ok := p.tr101.PMTVersion(prog.ProgramMapID); ok {
			info.PMTVersion = v
			info.HasPMTVersion = true
		}
		out = append(out, info)
	}
	return out
}
