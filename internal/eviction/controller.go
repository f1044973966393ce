package eviction

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/adred-codev/localcached/internal/config"
	"github.com/adred-codev/localcached/internal/memsensor"
	"github.com/adred-codev/localcached/internal/metrics"
	"github.com/adred-codev/localcached/internal/store"
)

// sampleSize bounds how many ring candidates a single eviction considers
// (§4.6 "Victim selection").
const sampleSize = 5

// maxEvictionsPerTick bounds per-tick work so the pressure loop backs off
// naturally rather than starving other goroutines under sustained pressure.
const maxEvictionsPerTick = 100

// ringTrimThreshold and ringTrimBatch govern the low-pressure
// garbage-collection pass over stale ring entries.
const ringTrimThreshold = 100000
const ringTrimBatch = 1000

// Controller drives sampled-LRU eviction: on-write bookkeeping, the
// background pressure loop, and forced synchronous eviction on SET_CONFIG.
type Controller struct {
	ring         *ring
	store        *store.KvStore
	sensor       memsensor.Sensor
	metrics      *metrics.Metrics
	runtime      *config.RuntimeConfig
	pollInterval time.Duration
	logger       zerolog.Logger
	nowMs        func() uint64
}

// New builds a Controller. nowMs supplies the current wall-clock time in
// milliseconds; tests can substitute a deterministic clock.
func New(st *store.KvStore, sensor memsensor.Sensor, m *metrics.Metrics, rc *config.RuntimeConfig, pollInterval time.Duration, logger zerolog.Logger, nowMs func() uint64) *Controller {
	return &Controller{
		ring:         newRing(),
		store:        st,
		sensor:       sensor,
		metrics:      m,
		runtime:      rc,
		pollInterval: pollInterval,
		logger:       logger,
		nowMs:        nowMs,
	}
}

// OnWrite records a successful SET in the write ring.
func (c *Controller) OnWrite(key string) {
	c.ring.pushBack(key)
}

// evictSampledLRU removes one key via sampled LRU, returning whether an
// eviction actually occurred (§4.6 step 3).
func (c *Controller) evictSampledLRU() bool {
	keys, indices := c.ring.sampleFront(sampleSize)
	if len(keys) == 0 {
		return false
	}

	var (
		staleIdx    []int
		bestIdx     = -1
		bestKey     string
		bestTouched uint64
	)
	for i, k := range keys {
		touched, found := c.store.PeekTouchedAt(k)
		if !found {
			staleIdx = append(staleIdx, indices[i])
			continue
		}
		if bestIdx == -1 || touched < bestTouched {
			bestIdx = indices[i]
			bestKey = k
			bestTouched = touched
		}
	}

	if len(staleIdx) > 0 {
		c.ring.removeIndices(staleIdx)
	}

	if bestIdx == -1 {
		// None of the sampled keys are still live; fall back to an
		// unconditional pop of the ring head (§4.6 step 2).
		k, ok := c.ring.popFront()
		if !ok {
			return false
		}
		if c.store.Del(k) {
			c.metrics.IncEvictions(1)
			return true
		}
		return false
	}

	c.ring.removeIndices([]int{bestIdx})
	if c.store.Del(bestKey) {
		c.metrics.IncEvictions(1)
		return true
	}
	return false
}

// ForceEvictToTarget evicts repeatedly until approx_mem_bytes is at or
// below the implied target for targetBp, or the write ring has no entries
// left (§4.6 "Forced eviction on SET_CONFIG"). Stale ring entries are
// skipped over; live keys that are no longer in the ring are not evicted.
// Called synchronously from the SET_CONFIG handler before it responds.
func (c *Controller) ForceEvictToTarget(ctx context.Context, targetBp uint16) {
	reading, err := c.sensor.Read(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("eviction: memory sensor read failed during forced eviction, skipping")
		return
	}
	targetBytes := reading.AvailableBytes * uint64(targetBp) / 10000
	// Every evictSampledLRU call on a non-empty ring removes at least one
	// ring entry, so the loop terminates even when an attempt evicts nothing.
	for c.store.ApproxMemBytes() > targetBytes && c.ring.len() > 0 {
		c.evictSampledLRU()
	}
}

// Run is the background pressure loop (§4.6 "Pressure loop"). It blocks
// until ctx is canceled.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("eviction: pressure loop stopped")
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *Controller) tick(ctx context.Context) {
	reading, err := c.sensor.Read(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("eviction: memory sensor read failed, treating as zero pressure")
		return
	}
	pressureBp := reading.PressureBp()
	if c.metrics != nil {
		c.metrics.ObservePressure(pressureBp, c.runtime.PressureHotBp())
	}

	thresholdBp := c.runtime.PressureHotBp()
	if pressureBp > thresholdBp {
		evicted := 0
		for evicted < maxEvictionsPerTick {
			if !c.evictSampledLRU() {
				break
			}
			evicted++
		}
		if evicted > 0 {
			c.logger.Debug().Int("evicted", evicted).Uint16("pressure_bp", pressureBp).
				Uint16("threshold_bp", thresholdBp).Msg("eviction: pressure tick evicted keys")
		}
		return
	}

	if c.ring.len() > ringTrimThreshold {
		c.ring.trimFront(ringTrimBatch)
	}
}
