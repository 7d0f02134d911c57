package telemetry

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	packetsReceivedMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livetiming",
		Subsystem: "telemetry",
		Name:      "packets_received_total",
		Help:      "UDP telemetry packets received, by packet type.",
	}, []string{"packet_type"})

	bytesReceivedMetric = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "livetiming",
		Subsystem: "telemetry",
		Name:      "bytes_received_total",
		Help:      "UDP telemetry bytes received.",
	})

	packetErrorsMetric = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "livetiming",
		Subsystem: "telemetry",
		Name:      "packet_errors_total",
		Help:      "UDP telemetry packets which could not be decoded or handled.",
	})
)

// Statistics counts received packets. All methods are safe for concurrent use.
type Statistics struct {
	// 64 bit fields first for atomic alignment on 32 bit platforms
	packets uint64
	bytes   uint64
	errors  uint64

	lastPacket atomic.Value
}

type StatisticsSnapshot struct {
	Packets    uint64
	Bytes      uint64
	Errors     uint64
	LastPacket time.Time
}

func (s *Statistics) packetReceived(id PacketID, size int) {
	atomic.AddUint64(&s.packets, 1)
	atomic.AddUint64(&s.bytes, uint64(size))
	s.lastPacket.Store(time.Now())

	packetsReceivedMetric.WithLabelValues(id.String()).Inc()
	bytesReceivedMetric.Add(float64(size))
}

func (s *Statistics) packetError() {
	atomic.AddUint64(&s.errors, 1)
	packetErrorsMetric.Inc()
}

func (s *Statistics) Snapshot() StatisticsSnapshot {
	snapshot := StatisticsSnapshot{
		Packets: atomic.LoadUint64(&s.packets),
		Bytes:   atomic.LoadUint64(&s.bytes),
		Errors:  atomic.LoadUint64(&s.errors),
	}

	if t, ok := s.lastPacket.Load().(time.Time); ok {
		snapshot.LastPacket = t
	}

	return snapshot
}

// Log writes the packet rate to the logger every interval until ctx is done.
func (s *Statistics) Log(ctx context.Context, interval time.Duration, logger Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	previous := s.Snapshot()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			current := s.Snapshot()

			packets := current.Packets - previous.Packets

			if packets == 0 {
				logger.Debugf("Statistics: no telemetry packets received in the last %s", interval)
				previous = current
				continue
			}

			logger.Infof(
				"Statistics: %d packets (%.1f packets/second), %s received, %d errors. Total: %d packets, %s",
				packets,
				float64(packets)/interval.Seconds(),
				humanize.Bytes(current.Bytes-previous.Bytes),
				current.Errors-previous.Errors,
				current.Packets,
				humanize.Bytes(current.Bytes),
			)

			previous = current
		}
	}
}
