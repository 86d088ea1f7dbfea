// Package metrics exports a tsinspect Snapshot as Prometheus gauges, for
// the CLI's optional --metrics-addr HTTP listener.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tsinspect/tsinspect"
)

// Registry owns the gauge/counter vectors mirroring one Snapshot. Counters
// are modeled as gauges since TR101Counters values come from the
// Processor's own running totals, not from per-scrape deltas.
type Registry struct {
	reg *prometheus.Registry

	tr101         *prometheus.GaugeVec
	streamBitrate *prometheus.GaugeVec
	streamWidth   *prometheus.GaugeVec
	streamHeight  *prometheus.GaugeVec
	streamFPS     *prometheus.GaugeVec
	pmtVersion    *prometheus.GaugeVec
	snapshotCount prometheus.Counter
}

// NewRegistry builds a fresh Registry with all vectors registered.
func NewRegistry() *Registry {
	r := &Registry{reg: prometheus.NewRegistry()}

	r.tr101 = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tsinspect",
		Subsystem: "tr101",
		Name:      "counter",
		Help:      "Current value of a TR 101 290 counter.",
	}, []string{"counter"})

	r.streamBitrate = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tsinspect",
		Subsystem: "stream",
		Name:      "bitrate_kbps",
		Help:      "Elementary stream bitrate, in kbps.",
	}, []string{"program", "pid", "codec"})

	r.streamWidth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tsinspect",
		Subsystem: "stream",
		Name:      "width_pixels",
		Help:      "Decoded video width, in pixels.",
	}, []string{"program", "pid"})

	r.streamHeight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tsinspect",
		Subsystem: "stream",
		Name:      "height_pixels",
		Help:      "Decoded video height, in pixels.",
	}, []string{"program", "pid"})

	r.streamFPS = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tsinspect",
		Subsystem: "stream",
		Name:      "fps",
		Help:      "Decoded video frame rate.",
	}, []string{"program", "pid"})

	r.pmtVersion = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tsinspect",
		Subsystem: "program",
		Name:      "pmt_version",
		Help:      "Last observed PMT version_number for a program.",
	}, []string{"program"})

	r.snapshotCount = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tsinspect",
		Name:      "snapshots_total",
		Help:      "Number of snapshots exported through this registry.",
	})

	r.reg.MustRegister(r.tr101, r.streamBitrate, r.streamWidth, r.streamHeight, r.streamFPS, r.pmtVersion, r.snapshotCount)
	return r
}

// Update overwrites every gauge from snap. Stale series (a stream that has
// left the Snapshot since the last Update) are not automatically removed;
// callers that want that should re-create the Registry per major mux
// change, which the CLI doesn't need to do for a single fixed input.
func (r *Registry) Update(snap *tsinspect.Snapshot) {
	j := snap.ToJSON()

	r.tr101.WithLabelValues("sync_byte_errors").Set(float64(j.TR101.SyncByteErrors))
	r.tr101.WithLabelValues("ts_sync_loss").Set(float64(j.TR101.TSSyncLoss))
	r.tr101.WithLabelValues("transport_error_indicator").Set(float64(j.TR101.TransportErrorIndicator))
	r.tr101.WithLabelValues("pat_crc_errors").Set(float64(j.TR101.PATCRCErrors))
	r.tr101.WithLabelValues("pmt_crc_errors").Set(float64(j.TR101.PMTCRCErrors))
	r.tr101.WithLabelValues("pat_timeout").Set(float64(j.TR101.PATTimeout))
	r.tr101.WithLabelValues("pmt_timeout").Set(float64(j.TR101.PMTTimeout))
	r.tr101.WithLabelValues("continuity_counter_errors").Set(float64(j.TR101.ContinuityCounterErrors))
	r.tr101.WithLabelValues("pid_errors").Set(float64(j.TR101.PIDErrors))
	r.tr101.WithLabelValues("pcr_repetition_errors").Set(float64(j.TR101.PCRRepetitionErrors))
	r.tr101.WithLabelValues("pcr_accuracy_errors").Set(float64(j.TR101.PCRAccuracyErrors))
	r.tr101.WithLabelValues("null_packet_rate_errors").Set(float64(j.TR101.NullPacketRateErrors))
	r.tr101.WithLabelValues("cat_crc_errors").Set(float64(j.TR101.CATCRCErrors))
	r.tr101.WithLabelValues("cat_timeout").Set(float64(j.TR101.CATTimeout))
	r.tr101.WithLabelValues("pat_version_changes").Set(float64(j.TR101.PATVersionChanges))
	r.tr101.WithLabelValues("pmt_version_changes").Set(float64(j.TR101.PMTVersionChanges))
	r.tr101.WithLabelValues("pts_errors").Set(float64(j.TR101.PTSErrors))
	r.tr101.WithLabelValues("nit_crc_errors").Set(float64(j.TR101.NITCRCErrors))
	r.tr101.WithLabelValues("nit_timeout").Set(float64(j.TR101.NITTimeout))
	r.tr101.WithLabelValues("sdt_crc_errors").Set(float64(j.TR101.SDTCRCErrors))
	r.tr101.WithLabelValues("sdt_timeout").Set(float64(j.TR101.SDTTimeout))
	r.tr101.WithLabelValues("eit_crc_errors").Set(float64(j.TR101.EITCRCErrors))
	r.tr101.WithLabelValues("eit_timeout").Set(float64(j.TR101.EITTimeout))
	r.tr101.WithLabelValues("tdt_timeout").Set(float64(j.TR101.TDTTimeout))
	r.tr101.WithLabelValues("service_id_mismatch").Set(float64(j.TR101.ServiceIDMismatch))
	r.tr101.WithLabelValues("splice_count_errors").Set(float64(j.TR101.SpliceCountErrors))

	for _, prog := range j.Programs {
		program := formatUint16(prog.Program)
		if prog.PMTVersion != nil {
			r.pmtVersion.WithLabelValues(program).Set(float64(*prog.PMTVersion))
		}
		for _, es := range prog.Streams {
			pid := formatUint16(es.PID)
			r.streamBitrate.WithLabelValues(program, pid, es.Codec).Set(es.BitrateKbps)
			if es.Width != nil {
				r.streamWidth.WithLabelValues(program, pid).Set(float64(*es.Width))
			}
			if es.Height != nil {
				r.streamHeight.WithLabelValues(program, pid).Set(float64(*es.Height))
			}
			if es.FPS != nil {
				r.streamFPS.WithLabelValues(program, pid).Set(float64(*es.FPS))
			}
		}
	}

	r.snapshotCount.Inc()
}

// Handler returns the /metrics HTTP handler for this Registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func formatUint16(v uint16) string {
	return strconv.FormatUint(uint64(v), 10)
}
