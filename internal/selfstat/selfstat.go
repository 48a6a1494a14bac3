// Package selfstat periodically samples this process's own CPU and
// memory usage and publishes them as gauges, so that a long-running
// publisher or subscriber can be monitored the same way the rest of
// this module's runtime behavior is.
package selfstat

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"
)

// Sampler periodically reads /proc (or the platform equivalent, via
// gopsutil) for this process's CPU percentage and resident set size.
type Sampler struct {
	proc *process.Process
	log  zerolog.Logger

	cpuPercent prometheus.Gauge
	rssBytes   prometheus.Gauge
	goroutines prometheus.Gauge
}

// New constructs a Sampler for the current process, registering its
// gauges against reg.
func New(reg prometheus.Registerer, log zerolog.Logger) (*Sampler, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}

	factory := promauto.With(reg)

	return &Sampler{
		proc: proc,
		log:  log,
		cpuPercent: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "lcm",
			Subsystem: "process",
			Name:      "cpu_percent",
			Help:      "CPU usage of this process, percent of one core.",
		}),
		rssBytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "lcm",
			Subsystem: "process",
			Name:      "rss_bytes",
			Help:      "Resident set size of this process, in bytes.",
		}),
		goroutines: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "lcm",
			Subsystem: "process",
			Name:      "goroutines",
			Help:      "Number of live goroutines.",
		}),
	}, nil
}

// Run samples at interval until ctx is canceled. Intended to run in
// its own goroutine for the lifetime of the process.
func (s *Sampler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sample()
		}
	}
}

func (s *Sampler) sample() {
	if pct, err := s.proc.CPUPercent(); err == nil {
		s.cpuPercent.Set(pct)
	} else {
		s.log.Debug().Err(err).Msg("selfstat: reading cpu percent failed")
	}

	if info, err := s.proc.MemoryInfo(); err == nil && info != nil {
		s.rssBytes.Set(float64(info.RSS))
	} else if err != nil {
		s.log.Debug().Err(err).Msg("selfstat: reading memory info failed")
	}

	s.goroutines.Set(float64(runtime.NumGoroutine()))
}
