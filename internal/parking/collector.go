package parking

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StatusSource is anything that can report a lot snapshot.
type StatusSource interface {
	Status() Status
}

// LotCollector exposes the live occupancy of a lot on a Prometheus
// registry. The source is read at scrape time, so the values never drift
// from the engine.
type LotCollector struct {
	source func() StatusSource

	capacity *prometheus.Desc
	occupied *prometheus.Desc
	free     *prometheus.Desc
	waiting  *prometheus.Desc
}

// NewLotCollector takes a getter because the served lot can be replaced.
// A nil source yields no samples.
func NewLotCollector(source func() StatusSource) *LotCollector {
	return &LotCollector{
		source:   source,
		capacity: prometheus.NewDesc("parking_lot_capacity_slots", "Number of slots in the lot.", nil, nil),
		occupied: prometheus.NewDesc("parking_lot_occupied_slots", "Number of occupied slots.", []string{"vip"}, nil),
		free:     prometheus.NewDesc("parking_lot_free_slots", "Number of free slots.", nil, nil),
		waiting:  prometheus.NewDesc("parking_lot_waiting_vehicles", "Number of vehicles on the waiting list.", []string{"lane"}, nil),
	}
}

func (c *LotCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.capacity
	ch <- c.occupied
	ch <- c.free
	ch <- c.waiting
}

func (c *LotCollector) Collect(ch chan<- prometheus.Metric) {
	src := c.source()
	if src == nil {
		return
	}
	status := src.Status()

	var vipOccupied, vipWaiting int
	for _, record := range status.Occupied {
		if record.VIP {
			vipOccupied++
		}
	}
	for _, req := range status.Waiting {
		if req.VIP {
			vipWaiting++
		}
	}

	ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(status.Capacity))
	ch <- prometheus.MustNewConstMetric(c.free, prometheus.GaugeValue, float64(len(status.Free)))
	ch <- prometheus.MustNewConstMetric(c.occupied, prometheus.GaugeValue, float64(vipOccupied), "true")
	ch <- prometheus.MustNewConstMetric(c.occupied, prometheus.GaugeValue, float64(len(status.Occupied)-vipOccupied), "false")
	ch <- prometheus.MustNewConstMetric(c.waiting, prometheus.GaugeValue, float64(vipWaiting), "vip")
	ch <- prometheus.MustNewConstMetric(c.waiting, prometheus.GaugeValue, float64(len(status.Waiting)-vipWaiting), "standard")
}
