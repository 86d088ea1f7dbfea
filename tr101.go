package tsinspect

import "time"

// PCR tick domain constants: a 33-bit base at 300 ticks/cycle (27 MHz / 90
// kHz) wraps at 2^33 * 300 ticks.
const (
	pcrBaseWrap    = int64(1) << 33
	pcrTicksWrap   = pcrBaseWrap * 300
	ptsBaseWrap    = int64(1) << 32
	ptsForwardJump = 60 * 90000
)

// Timeout windows for edge-triggered Priority 1/2/3 table counters.
const (
	patTimeout = 500 * time.Millisecond
	pmtTimeout = 500 * time.Millisecond
	catTimeout = 2 * time.Second
	nitTimeout = 2 * time.Second
	sdtTimeout = 2 * time.Second
	eitTimeout = 2 * time.Second
	tdtTimeout = 2 * time.Second
)

// TR101Counters is the flat set of ETSI TR 101 290 counters the engine
// maintains. All are monotonically increasing for the lifetime of a run;
// the Reporter is responsible for any windowed/rate presentation.
type TR101Counters struct {
	// Priority 1.
	SyncByteErrors         uint64
	TSSyncLoss             uint64
	TransportErrorIndicator uint64
	PATCRCErrors           uint64
	PMTCRCErrors           uint64
	PATTimeout             uint64
	PMTTimeout             uint64
	ContinuityCounterErrors uint64
	PIDErrors              uint64

	// Priority 2.
	PCRRepetitionErrors  uint64
	PCRAccuracyErrors    uint64
	NullPacketRateErrors uint64
	CATCRCErrors         uint64
	CATTimeout           uint64
	PATVersionChanges    uint64
	PMTVersionChanges    uint64
	PTSErrors            uint64

	// Priority 3.
	NITCRCErrors      uint64
	NITTimeout        uint64
	SDTCRCErrors      uint64
	SDTTimeout        uint64
	EITCRCErrors      uint64
	EITTimeout        uint64
	TDTTimeout        uint64
	ServiceIDMismatch uint64
	SpliceCountErrors uint64
}

// pcrPIDState tracks everything needed to evaluate pcr_repetition_errors
// and pcr_accuracy_errors for one PCR PID.
type pcrPIDState struct {
	havePrev  bool
	prevTicks int64
	prevWall  time.Time
}

// ccState tracks the last continuity counter seen on a PID.
type ccState struct {
	have bool
	last uint8
}

// timeoutLatch implements an edge-triggered "time since last valid X
// exceeds window" counter. Before the first arrival, the startup grace
// interval equals the timeout window itself.
type timeoutLatch struct {
	window     time.Duration
	lastValid  time.Time
	haveValid  bool
	firstSeen  time.Time
	haveFirst  bool
	inTimeout  bool
}

func newTimeoutLatch(window time.Duration) *timeoutLatch {
	return &timeoutLatch{window: window}
}

// Check evaluates the latch at wall clock now, returning true exactly once
// per transition into the timeout state.
func (l *timeoutLatch) Check(now time.Time) bool {
	if !l.haveFirst {
		l.firstSeen = now
		l.haveFirst = true
	}
	baseline := l.firstSeen
	if l.haveValid {
		baseline = l.lastValid
	}
	nowInTimeout := now.Sub(baseline) > l.window
	fired := nowInTimeout && !l.inTimeout
	l.inTimeout = nowInTimeout
	return fired
}

// Valid marks the table as freshly validated, clearing the latch.
func (l *timeoutLatch) Valid(now time.Time) {
	l.lastValid = now
	l.haveValid = true
	l.inTimeout = false
}

// versionState tracks the last-seen version_number for a table keyed by
// program number or PMT PID.
type versionState struct {
	have    bool
	version uint8
}

// ptsState tracks the last PTS seen for a PID for pts_errors detection.
type ptsState struct {
	have bool
	last int64
}

// spliceState tracks the last splice_countdown seen for a PID.
type spliceState struct {
	have bool
	last int
}

// TR101Engine is the single locus of TR 101 290 counter updates. It has no
// concurrency guard, matching the single-threaded driver loop it's fed
// from.
type TR101Engine struct {
	now func() time.Time

	counters TR101Counters

	consecutiveNonSync int

	cc  map[uint16]*ccState
	pcr map[uint16]*pcrPIDState
	pts map[uint16]*ptsState
	splice map[uint16]*spliceState

	knownPIDs map[uint16]struct{}

	patLatch *timeoutLatch
	pmtLatch map[uint16]*timeoutLatch
	catLatch *timeoutLatch
	nitLatch *timeoutLatch
	sdtLatch *timeoutLatch
	eitLatch *timeoutLatch
	tdtLatch *timeoutLatch

	patVersion map[uint16]*versionState // keyed by transport_stream_id
	pmtVersion map[uint16]*versionState // keyed by PMT PID

	nullBytesInWindow  uint64
	totalBytesInWindow uint64
	windowStart        time.Time
}

// NewTR101Engine returns an engine using time.Now for all wall-clock
// measurements.
func NewTR101Engine() *TR101Engine {
	return newTR101EngineWithClock(time.Now)
}

func newTR101EngineWithClock(now func() time.Time) *TR101Engine {
	return &TR101Engine{
		now:        now,
		cc:         make(map[uint16]*ccState),
		pcr:        make(map[uint16]*pcrPIDState),
		pts:        make(map[uint16]*ptsState),
		splice:     make(map[uint16]*spliceState),
		knownPIDs:  make(map[uint16]struct{}),
		pmtLatch:   make(map[uint16]*timeoutLatch),
		patLatch:   newTimeoutLatch(patTimeout),
		catLatch:   newTimeoutLatch(catTimeout),
		nitLatch:   newTimeoutLatch(nitTimeout),
		sdtLatch:   newTimeoutLatch(sdtTimeout),
		eitLatch:   newTimeoutLatch(eitTimeout),
		tdtLatch:   newTimeoutLatch(tdtTimeout),
		patVersion: make(map[uint16]*versionState),
		pmtVersion: make(map[uint16]*versionState),
	}
}

// Counters returns a snapshot of the accumulated counters.
func (e *TR101Engine) Counters() TR101Counters {
	return e.counters
}

// ObserveSyncByte records a packet's sync-byte validity and maintains the
// ts_sync_loss run counter: one increment each time the run of consecutive
// non-sync packets reaches 5.
func (e *TR101Engine) ObserveSyncByte(valid bool) {
	if valid {
		e.consecutiveNonSync = 0
		return
	}
	e.counters.SyncByteErrors++
	e.consecutiveNonSync++
	if e.consecutiveNonSync == 5 {
		e.counters.TSSyncLoss++
	}
}

// ObserveHeader evaluates the Priority 1 header-level counters: transport
// error indicator, PID errors, and continuity counter continuity.
func (e *TR101Engine) ObserveHeader(h *PacketHeader) {
	if h.TransportErrorIndicator {
		e.counters.TransportErrorIndicator++
	}

	if isPIDError(h.PID, e.knownPIDs) {
		e.counters.PIDErrors++
	}

	if h.PID == PIDNull {
		return
	}

	adaptationFieldControl := 0
	if h.HasAdaptationField {
		adaptationFieldControl |= 0x2
	}
	if h.HasPayload {
		adaptationFieldControl |= 0x1
	}
	if adaptationFieldControl == 0x2 { // adaptation field only, no payload
		return
	}

	st, ok := e.cc[h.PID]
	if !ok {
		st = &ccState{}
		e.cc[h.PID] = st
	}
	if st.have {
		expected := (st.last + 1) & 0xf
		if h.ContinuityCounter != expected {
			e.counters.ContinuityCounterErrors++
		}
	}
	st.have = true
	st.last = h.ContinuityCounter
}

// isPIDError reports whether pid falls in the reserved range 0x0002-0x000F
// (excluding system PIDs) or above 0x1FFE, and is not already a known PID
// declared by some PMT.
func isPIDError(pid uint16, known map[uint16]struct{}) bool {
	if pid == PIDNull {
		return false
	}
	if _, ok := known[pid]; ok {
		return false
	}
	if pid >= 0x0002 && pid <= 0x000f && !isSystemPID(pid) {
		return true
	}
	if pid > 0x1ffe {
		return true
	}
	return false
}

// RegisterKnownPIDs adds a PMT's pcr_pid and elementary PIDs to the
// known-PID set, as required before pid_errors stops flagging them.
func (e *TR101Engine) RegisterKnownPIDs(pmt *PMTData) {
	if pmt == nil {
		return
	}
	e.knownPIDs[pmt.PCRPID] = struct{}{}
	for _, es := range pmt.ElementaryStreams {
		e.knownPIDs[es.ElementaryPID] = struct{}{}
	}
}

// ObservePacketBytes feeds the 1-second null-packet-rate window.
func (e *TR101Engine) ObservePacketBytes(pid uint16) {
	now := e.now()
	if e.windowStart.IsZero() {
		e.windowStart = now
	}
	e.totalBytesInWindow += PacketLength
	if pid == PIDNull {
		e.nullBytesInWindow += PacketLength
	}
	if now.Sub(e.windowStart) >= time.Second {
		if e.totalBytesInWindow > 0 {
			rate := float64(e.nullBytesInWindow) / float64(e.totalBytesInWindow)
			if rate > 0.15 {
				e.counters.NullPacketRateErrors++
			}
		}
		e.nullBytesInWindow = 0
		e.totalBytesInWindow = 0
		e.windowStart = now
	}
}

// ObservePCR evaluates pcr_repetition_errors and pcr_accuracy_errors for a
// PCR-bearing packet on pid.
func (e *TR101Engine) ObservePCR(pid uint16, ticks int64) {
	now := e.now()
	st, ok := e.pcr[pid]
	if !ok {
		st = &pcrPIDState{}
		e.pcr[pid] = st
	}
	if !st.havePrev {
		st.havePrev = true
		st.prevTicks = ticks
		st.prevWall = now
		return
	}

	wallDelta := now.Sub(st.prevWall)
	if wallDelta > 40*time.Millisecond {
		e.counters.PCRRepetitionErrors++
	}

	actualTicks := ticks - st.prevTicks
	if actualTicks < 0 {
		actualTicks += pcrTicksWrap
	}
	if wallDelta >= 100*time.Millisecond && wallDelta <= time.Second {
		expectedTicks := int64(wallDelta.Seconds() * 27e6)
		diff := actualTicks - expectedTicks
		if diff < 0 {
			diff = -diff
		}
		var relError float64
		if expectedTicks != 0 {
			relError = float64(diff) / float64(expectedTicks)
		}
		if diff > 13500 && relError > 0.0001 {
			e.counters.PCRAccuracyErrors++
		}
	}

	st.prevTicks = ticks
	st.prevWall = now
}

// ObservePTS evaluates pts_errors for a video/audio PID carrying a PTS.
func (e *TR101Engine) ObservePTS(pid uint16, pts int64) {
	st, ok := e.pts[pid]
	if !ok {
		st = &ptsState{}
		e.pts[pid] = st
	}
	if !st.have {
		st.have = true
		st.last = pts
		return
	}

	delta := pts - st.last
	switch {
	case delta < 0:
		backward := -delta
		if backward < ptsBaseWrap {
			e.counters.PTSErrors++
		}
	case delta > ptsForwardJump:
		e.counters.PTSErrors++
	}
	st.last = pts
}

// ObservePATCRC records a PAT CRC outcome. valid sections additionally
// clear the PAT timeout latch and, when the version differs from the last
// observed one for this transport stream, bump pat_version_changes.
func (e *TR101Engine) ObservePATCRC(valid bool, transportStreamID uint16, version uint8) {
	if !valid {
		e.counters.PATCRCErrors++
		return
	}
	e.patLatch.Valid(e.now())

	vs, ok := e.patVersion[transportStreamID]
	if !ok {
		vs = &versionState{}
		e.patVersion[transportStreamID] = vs
	}
	if vs.have && vs.version != version {
		e.counters.PATVersionChanges++
	}
	vs.have = true
	vs.version = version
}

// ObservePMTCRC is ObservePATCRC's PMT-PID-keyed counterpart.
func (e *TR101Engine) ObservePMTCRC(valid bool, pmtPID uint16, version uint8) {
	if !valid {
		e.counters.PMTCRCErrors++
		return
	}
	e.pmtLatchFor(pmtPID).Valid(e.now())

	vs, ok := e.pmtVersion[pmtPID]
	if !ok {
		vs = &versionState{}
		e.pmtVersion[pmtPID] = vs
	}
	if vs.have && vs.version != version {
		e.counters.PMTVersionChanges++
	}
	vs.have = true
	vs.version = version
}

func (e *TR101Engine) pmtLatchFor(pmtPID uint16) *timeoutLatch {
	l, ok := e.pmtLatch[pmtPID]
	if !ok {
		l = newTimeoutLatch(pmtTimeout)
		e.pmtLatch[pmtPID] = l
	}
	return l
}

// ObserveCATCRC records a CAT CRC outcome and clears its timeout latch on
// success.
func (e *TR101Engine) ObserveCATCRC(valid bool) {
	if !valid {
		e.counters.CATCRCErrors++
		return
	}
	e.catLatch.Valid(e.now())
}

// ObserveNITCRC records an NIT CRC outcome and clears its timeout latch on
// success.
func (e *TR101Engine) ObserveNITCRC(valid bool) {
	if !valid {
		e.counters.NITCRCErrors++
		return
	}
	e.nitLatch.Valid(e.now())
}

// ObserveSDTCRC records an SDT CRC outcome and clears its timeout latch on
// success.
func (e *TR101Engine) ObserveSDTCRC(valid bool) {
	if !valid {
		e.counters.SDTCRCErrors++
		return
	}
	e.sdtLatch.Valid(e.now())
}

// ObserveEITCRC records an EIT CRC outcome and clears its timeout latch on
// success.
func (e *TR101Engine) ObserveEITCRC(valid bool) {
	if !valid {
		e.counters.EITCRCErrors++
		return
	}
	e.eitLatch.Valid(e.now())
}

// ObserveTDT marks the TDT/TOT table as freshly validated.
func (e *TR101Engine) ObserveTDT() {
	e.tdtLatch.Valid(e.now())
}

// ObserveServiceIDMismatch bumps service_id_mismatch when cache reports one.
func (e *TR101Engine) ObserveServiceIDMismatch(mismatch bool) {
	if mismatch {
		e.counters.ServiceIDMismatch++
	}
}

// ObserveSpliceCountdown checks the legality of a splice_countdown
// transition for pid: same value, previous-1, or the -1 -> 0 transition.
func (e *TR101Engine) ObserveSpliceCountdown(pid uint16, countdown int) {
	st, ok := e.splice[pid]
	if !ok {
		st = &spliceState{}
		e.splice[pid] = st
	}
	if st.have {
		legal := countdown == st.last ||
			countdown == st.last-1 ||
			(st.last == -1 && countdown == 0)
		if !legal {
			e.counters.SpliceCountErrors++
		}
	}
	st.have = true
	st.last = countdown
}

// CheckTimeouts evaluates every edge-triggered timeout latch against the
// current wall clock. Call this once per processed packet (or on a timer)
// so latches not tied to a specific table observation still fire.
func (e *TR101Engine) CheckTimeouts() {
	now := e.now()
	if e.patLatch.Check(now) {
		e.counters.PATTimeout++
	}
	for _, l := range e.pmtLatch {
		if l.Check(now) {
			e.counters.PMTTimeout++
		}
	}
	if e.catLatch.Check(now) {
		e.counters.CATTimeout++
	}
	if e.nitLatch.Check(now) {
		e.counters.NITTimeout++
	}
	if e.sdtLatch.Check(now) {
		e.counters.SDTTimeout++
	}
	if e.eitLatch.Check(now) {
		e.counters.EITTimeout++
	}
	if e.tdtLatch.Check(now) {
		e.counters.TDTTimeout++
	}
}

// EnsurePMTLatch registers pmtPID so its timeout latch starts its grace
// period even before any PMT section for it has been seen.
func (e *TR101Engine) EnsurePMTLatch(pmtPID uint16) {
	e.pmtLatchFor(pmtPID)
}

// PMTVersion returns the last observed version_number for pmtPID.
func (e *TR101Engine) PMTVersion(pmtPID uint16) (uint8, bool) {
	vs, ok := e.pmtVersion[pmtPID]
	if !ok || !vs.have {
		return 0, false
	}
	return vs.version, true
}
