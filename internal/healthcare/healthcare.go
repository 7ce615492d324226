// Package healthcare provides bed/ICU capacity accounting, the testing
// queue, detection policy, and recursive contact tracing. See design doc §4.6.
//
// This package never imports the person package: every agent-shaped value
// it needs arrives through the AgentQuery interface below, which the
// person package's registry satisfies structurally. That keeps the import
// graph acyclic even though person and healthcare call into each other.
package healthcare

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/talgya/epidemic-sim/internal/disease"
	"github.com/talgya/epidemic-sim/internal/randpool"
	"github.com/talgya/epidemic-sim/internal/simfault"
)

// TestingMode selects which symptomatic agents get queued for testing.
type TestingMode int32

const (
	NoTesting TestingMode = iota
	AllWithSymptomsCT
	AllWithSymptoms
	OnlySevereSymptoms
)

// AgentQuery is the narrow view of the agent population healthcare needs.
// person.Registry implements this without healthcare importing person.
type AgentQuery interface {
	IsInfected(idx int) bool
	IsDead(idx int) bool
	IsHospitalized(idx int) bool
	AlreadyDetected(idx int) bool
	IsQueued(idx int) bool
	MarkQueued(idx int)
	MarkDetected(idx int)
	SourceInfectiousness(idx int) float64
	Infector(idx int) (int, bool)
	Infectees(idx int) []int
}

// System is the healthcare subsystem: capacity accounting, testing queue,
// and contact tracing.
type System struct {
	rng *randpool.Pool

	mu               sync.Mutex
	beds             int
	icuUnits         int
	availableBeds    int
	availableICU     int
	pDetectedAnyway  float64
	mode             atomic.Int32

	testsRunPerDay atomic.Int64

	queueMu sync.Mutex
	queue   []int
}

// New constructs a HealthcareSystem with the given fixed capacity.
func New(beds, icuUnits int, pDetectedAnyway float64, rng *randpool.Pool) *System {
	s := &System{
		rng:             rng,
		beds:            beds,
		icuUnits:        icuUnits,
		availableBeds:   beds,
		availableICU:    icuUnits,
		pDetectedAnyway: pDetectedAnyway,
	}
	s.mode.Store(int32(NoTesting))
	return s
}

// Mode returns the current testing mode.
func (s *System) Mode() TestingMode {
	return TestingMode(s.mode.Load())
}

// SetMode changes the testing mode (applied by the test-* interventions).
func (s *System) SetMode(m TestingMode) {
	s.mode.Store(int32(m))
}

// AddBeds grows ward capacity (build-new-hospital-beds intervention).
func (s *System) AddBeds(n int) {
	s.mu.Lock()
	s.beds += n
	s.availableBeds += n
	s.mu.Unlock()
}

// AddICUUnits grows ICU capacity (build-new-icu-units intervention).
func (s *System) AddICUUnits(n int) {
	s.mu.Lock()
	s.icuUnits += n
	s.availableICU += n
	s.mu.Unlock()
}

// AvailableBeds returns the current number of free ward beds.
func (s *System) AvailableBeds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.availableBeds
}

// AvailableICUUnits returns the current number of free ICU units.
func (s *System) AvailableICUUnits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.availableICU
}

// TestsRunPerDay returns the size of the testing queue processed on the
// most recent Iterate call.
func (s *System) TestsRunPerDay() int64 {
	return s.testsRunPerDay.Load()
}

// Hospitalize reserves one ward bed if available.
func (s *System) Hospitalize() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.availableBeds <= 0 {
		return false
	}
	s.availableBeds--
	return true
}

// ToICU reserves one ICU unit if available.
func (s *System) ToICU() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.availableICU <= 0 {
		return false
	}
	s.availableICU--
	return true
}

// Release returns one ward bed to the pool.
func (s *System) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.availableBeds < s.beds {
		s.availableBeds++
	}
}

// ReleaseFromICU returns one ICU unit to the pool.
func (s *System) ReleaseFromICU() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.availableICU < s.icuUnits {
		s.availableICU++
	}
}

// QueueForTesting enqueues idx for testing unless it is dead, already
// detected, or already queued. Thread-safe: called from the parallel tick.
func (s *System) QueueForTesting(q AgentQuery, idx int) bool {
	if q.IsDead(idx) || q.AlreadyDetected(idx) || q.IsQueued(idx) {
		return false
	}
	s.queueMu.Lock()
	q.MarkQueued(idx)
	s.queue = append(s.queue, idx)
	s.queueMu.Unlock()
	return true
}

// SeekTesting decides, by testing mode, whether a newly symptomatic agent
// gets queued for testing.
func (s *System) SeekTesting(q AgentQuery, idx int, severity disease.Severity) bool {
	switch s.Mode() {
	case AllWithSymptomsCT, AllWithSymptoms:
		return s.QueueForTesting(q, idx)
	case OnlySevereSymptoms:
		if severity == disease.Severe || severity == disease.Critical {
			return s.QueueForTesting(q, idx)
		}
		if s.rng.Chance(s.pDetectedAnyway) {
			return s.QueueForTesting(q, idx)
		}
		return false
	default:
		return false
	}
}

// IsDetected reports whether idx would be caught by testing: either they
// are currently infectious enough to test positive, or they are already
// visible to the healthcare system by virtue of being hospitalized.
//
// Test sensitivity is not modeled (see design doc §9, Open Questions) —
// preserved intentionally.
func (s *System) IsDetected(q AgentQuery, idx int) bool {
	return q.SourceInfectiousness(idx) > 0 || q.IsHospitalized(idx)
}

// Iterate processes one day's testing queue: runs every queued test,
// detects agents that test positive, and triggers contact tracing in
// AllWithSymptomsCT mode. Called once per tick, single-threaded, between
// the previous tick's parallel pass and the next one.
func (s *System) Iterate(q AgentQuery) error {
	s.queueMu.Lock()
	snapshot := s.queue
	s.queue = nil
	s.queueMu.Unlock()

	s.testsRunPerDay.Store(int64(len(snapshot)))

	ctMode := s.Mode() == AllWithSymptomsCT

	for _, idx := range snapshot {
		if !q.IsQueued(idx) {
			return fmt.Errorf("healthcare: dequeued agent %d was never marked queued: %w",
				idx, simfaultError(simfault.OtherFailure))
		}
		if !q.IsInfected(idx) || q.AlreadyDetected(idx) {
			continue
		}
		if s.IsDetected(q, idx) {
			q.MarkDetected(idx)
			if ctMode {
				s.performContactTracing(q, idx, 0)
			}
		}
	}
	return nil
}

// performContactTracing queues the infector and every known infectee of
// idx, recursing one level deeper for each. Depth is statically bounded at
// 2 (root + one recursion), so a plain recursive call is safe.
func (s *System) performContactTracing(q AgentQuery, idx int, level int) {
	if level > 1 {
		return
	}
	if infector, ok := q.Infector(idx); ok {
		if s.QueueForTesting(q, infector) {
			s.performContactTracing(q, infector, level+1)
		}
	}
	for _, infectee := range q.Infectees(idx) {
		if s.QueueForTesting(q, infectee) {
			s.performContactTracing(q, infectee, level+1)
		}
	}
}

// simfaultError adapts a simfault.Problem into an error value for wrapping.
type simfaultError simfault.Problem

func (e simfaultError) Error() string {
	return simfault.Problem(e).String()
}
