package telemetry

import "github.com/prometheus/client_golang/prometheus"

const namespace = "imgcache"

type metricDesc struct {
	desc      *prometheus.Desc
	valueType prometheus.ValueType
	value     func(s Stats) float64
}

// Collector exposes Stats as Prometheus metrics. Stats are read once per scrape.
type Collector struct {
	source Source
	descs  []metricDesc
}

var _ prometheus.Collector = (*Collector)(nil)

func NewCollector(source Source) *Collector {
	gauge := func(subsystem, name, help string, fn func(s Stats) float64) metricDesc {
		return metricDesc{
			desc:      prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, nil, nil),
			valueType: prometheus.GaugeValue,
			value:     fn,
		}
	}
	counter := func(subsystem, name, help string, fn func(s Stats) float64) metricDesc {
		d := gauge(subsystem, name, help, fn)
		d.valueType = prometheus.CounterValue
		return d
	}

	return &Collector{
		source: source,
		descs: []metricDesc{
			gauge("memory", "bytes", "Summary cost of resident images.", func(s Stats) float64 { return float64(s.MemoryBytes) }),
			gauge("memory", "entries", "Number of resident images.", func(s Stats) float64 { return float64(s.MemoryEntries) }),
			gauge("memory", "limit_bytes", "Configured cost limit of the memory tier.", func(s Stats) float64 { return float64(s.MemoryLimit) }),
			counter("memory", "hits_total", "Memory tier lookups that found an image.", func(s Stats) float64 { return float64(s.Memory.Hits) }),
			counter("memory", "misses_total", "Memory tier lookups that found nothing.", func(s Stats) float64 { return float64(s.Memory.Misses) }),
			counter("memory", "evictions_total", "Images evicted to respect the cost limit.", func(s Stats) float64 { return float64(s.Memory.EvictedItems) }),
			counter("memory", "evicted_bytes_total", "Cost of images evicted to respect the cost limit.", func(s Stats) float64 { return float64(s.Memory.EvictedBytes) }),
			counter("memory", "pressure_clears_total", "Memory tier wipes caused by memory pressure.", func(s Stats) float64 { return float64(s.Memory.PressureClears) }),

			gauge("disk", "files", "Number of images on disk.", func(s Stats) float64 { return float64(s.DiskFiles) }),
			gauge("disk", "bytes", "Size of images on disk.", func(s Stats) float64 { return float64(s.DiskBytes) }),
			gauge("disk", "degraded", "1 when the disk tier is unavailable.", func(s Stats) float64 { return boolToFloat(s.DiskDegraded) }),
			counter("disk", "hits_total", "Disk tier reads that decoded an image.", func(s Stats) float64 { return float64(s.Disk.Hits) }),
			counter("disk", "misses_total", "Disk tier reads that found nothing usable.", func(s Stats) float64 { return float64(s.Disk.Misses) }),
			counter("disk", "writes_total", "Images written to disk.", func(s Stats) float64 { return float64(s.Disk.Writes) }),
			counter("disk", "write_failures_total", "Failed disk writes.", func(s Stats) float64 { return float64(s.Disk.WriteFailures) }),

			counter("cache", "sets_total", "Images stored through the cache.", func(s Stats) float64 { return float64(s.Cache.Sets) }),
			counter("cache", "promotions_total", "Disk hits copied into the memory tier.", func(s Stats) float64 { return float64(s.Cache.Promotions) }),

			counter("loader", "fetches_total", "Network downloads started.", func(s Stats) float64 { return float64(s.Loader.Fetches) }),
			counter("loader", "fetch_failures_total", "Network downloads that failed.", func(s Stats) float64 { return float64(s.Loader.FetchFailures) }),
			counter("loader", "decode_failures_total", "Downloads that were not decodable images.", func(s Stats) float64 { return float64(s.Loader.DecodeFailures) }),
			counter("loader", "coalesced_total", "Loads joined to an in-flight download.", func(s Stats) float64 { return float64(s.Loader.Coalesced) }),
			counter("loader", "cancelled_total", "Downloads cancelled explicitly.", func(s Stats) float64 { return float64(s.Loader.Cancelled) }),

			counter("pressure", "signals_total", "Memory pressure signals raised.", func(s Stats) float64 { return float64(s.PressureSignals) }),
			counter("sweeper", "runs_total", "Disk sweeps performed.", func(s Stats) float64 { return float64(s.SweeperRuns) }),
			counter("sweeper", "expired_total", "Disk entries removed for age.", func(s Stats) float64 { return float64(s.SweeperExpired) }),
			counter("sweeper", "evicted_total", "Disk entries removed for size.", func(s Stats) float64 { return float64(s.SweeperEvicted) }),
		},
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs {
		ch <- d.desc
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source()
	for _, d := range c.descs {
		ch <- prometheus.MustNewConstMetric(d.desc, d.valueType, d.value(stats))
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
