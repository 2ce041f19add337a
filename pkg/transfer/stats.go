package transfer

import (
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rcrowley/go-metrics"
)

// Stats tracks run progress and prints a periodic throughput line.
type Stats struct {
	logger   Logger
	interval time.Duration

	mu        sync.Mutex
	total     int
	done      int
	succeeded int

	items metrics.Meter
	bytes metrics.Meter
	timer metrics.Timer

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewStats creates a Stats reporter that logs progress every interval.
func NewStats(logger Logger, interval time.Duration) *Stats {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Stats{
		logger:   logger,
		interval: interval,
		items:    metrics.NewMeter(),
		bytes:    metrics.NewMeter(),
		timer:    metrics.NewTimer(),
	}
}

// Start begins the background reporter for a run of total items.
func (s *Stats) Start(total int) {
	s.mu.Lock()
	s.total = total
	s.done = 0
	s.succeeded = 0
	s.mu.Unlock()

	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run()
}

func (s *Stats) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.report()
		}
	}
}

// Complete records a terminal classification of one item.
func (s *Stats) Complete(item Item, succeeded bool) {
	s.mu.Lock()
	s.done++
	if succeeded {
		s.succeeded++
		s.bytes.Mark(item.Size)
	}
	s.mu.Unlock()
	s.items.Mark(1)
}

// Observe records the duration of one copy attempt.
func (s *Stats) Observe(d time.Duration) {
	s.timer.Update(d)
}

func (s *Stats) report() {
	s.mu.Lock()
	done, total, succeeded := s.done, s.total, s.succeeded
	s.mu.Unlock()
	if done == 0 {
		return
	}
	s.logger.Info("finished %d/%d copies (%d successful, %s, %s/s, %s mean copy time)",
		done, total, succeeded,
		humanize.IBytes(uint64(s.bytes.Count())),
		humanize.IBytes(uint64(s.bytes.Rate1())),
		time.Duration(s.timer.Mean()).Round(time.Millisecond))
}

// Stop halts the background reporter and prints a final progress line.
func (s *Stats) Stop() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	s.wg.Wait()
	s.stop = nil
	s.report()
}
