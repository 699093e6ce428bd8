package bridge

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"trafficstats-agent/internal/trafficstats"
)

type metricSource struct {
	desc      *prometheus.Desc
	direction string
	method    string
}

// MetricsCollector evaluates the table on every scrape. Counters that read
// as unavailable are left out of that scrape.
type MetricsCollector struct {
	table   *trafficstats.Table
	uids    []int32
	sources []metricSource
	uidDesc *prometheus.Desc
}

func NewMetricsCollector(table *trafficstats.Table, uids []int32) *MetricsCollector {
	dir := []string{"direction"}
	mobilePackets := prometheus.NewDesc("trafficstats_mobile_packets_total", "Packets across mobile radio interfaces.", dir, nil)
	mobileBytes := prometheus.NewDesc("trafficstats_mobile_bytes_total", "Bytes across mobile radio interfaces.", dir, nil)
	ifacePackets := prometheus.NewDesc("trafficstats_interface_packets_total", "Packets across all non-loopback interfaces.", dir, nil)
	ifaceBytes := prometheus.NewDesc("trafficstats_interface_bytes_total", "Bytes across all non-loopback interfaces.", dir, nil)

	return &MetricsCollector{
		table: table,
		uids:  uniqueUIDs(uids),
		sources: []metricSource{
			{mobilePackets, "tx", trafficstats.MethodMobileTxPackets},
			{mobilePackets, "rx", trafficstats.MethodMobileRxPackets},
			{mobileBytes, "tx", trafficstats.MethodMobileTxBytes},
			{mobileBytes, "rx", trafficstats.MethodMobileRxBytes},
			{ifacePackets, "tx", trafficstats.MethodTotalTxPackets},
			{ifacePackets, "rx", trafficstats.MethodTotalRxPackets},
			{ifaceBytes, "tx", trafficstats.MethodTotalTxBytes},
			{ifaceBytes, "rx", trafficstats.MethodTotalRxBytes},
		},
		uidDesc: prometheus.NewDesc("trafficstats_uid_bytes_total", "TCP bytes attributed to a uid.", []string{"uid", "direction"}, nil),
	}
}

func (c *MetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	seen := make(map[*prometheus.Desc]bool)
	for _, src := range c.sources {
		if !seen[src.desc] {
			seen[src.desc] = true
			ch <- src.desc
		}
	}
	ch <- c.uidDesc
}

func (c *MetricsCollector) Collect(ch chan<- prometheus.Metric) {
	for _, src := range c.sources {
		if v, err := c.table.Invoke(src.method); err == nil && v >= 0 {
			ch <- prometheus.MustNewConstMetric(src.desc, prometheus.CounterValue, float64(v), src.direction)
		}
	}
	for _, uid := range c.uids {
		label := strconv.FormatInt(int64(uid), 10)
		if v, err := c.table.Invoke(trafficstats.MethodUIDRxBytes, uid); err == nil && v >= 0 {
			ch <- prometheus.MustNewConstMetric(c.uidDesc, prometheus.CounterValue, float64(v), label, "rx")
		}
		if v, err := c.table.Invoke(trafficstats.MethodUIDTxBytes, uid); err == nil && v >= 0 {
			ch <- prometheus.MustNewConstMetric(c.uidDesc, prometheus.CounterValue, float64(v), label, "tx")
		}
	}
}

// uniqueUIDs keeps the first occurrence of each uid. A repeated uid would
// produce duplicate series and fail the whole gather.
func uniqueUIDs(uids []int32) []int32 {
	out := make([]int32, 0, len(uids))
	seen := make(map[int32]bool, len(uids))
	for _, uid := range uids {
		if seen[uid] {
			continue
		}
		seen[uid] = true
		out = append(out, uid)
	}
	return out
}
