// Package population maintains age-indexed epidemic counters and the
// population-wide mobility/gathering modifiers that scale daily contact
// sampling. See design doc §4.5.
//
// Counters are mutated from the parallel tick (§5), so every bucket is a
// sync/atomic counter rather than a plain int — the same approach the
// retrieved pack uses for hot per-tick counters (compare
// hellsoul86-voxelcraft.ai/internal/sim/world/world.go's atomic.Uint64
// tick/id counters).
package population

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/talgya/epidemic-sim/internal/classedvalues"
	"github.com/talgya/epidemic-sim/internal/randpool"
)

// ageCounters holds every per-age bucket as an atomic counter.
type ageCounters struct {
	susceptible  []atomic.Int64
	infected     []atomic.Int64
	allInfected  []atomic.Int64
	detected     []atomic.Int64
	allDetected  []atomic.Int64
	recovered    []atomic.Int64
	hospitalized []atomic.Int64
	inIcu        []atomic.Int64
	dead         []atomic.Int64
}

func newAgeCounters(size int) ageCounters {
	return ageCounters{
		susceptible:  make([]atomic.Int64, size),
		infected:     make([]atomic.Int64, size),
		allInfected:  make([]atomic.Int64, size),
		detected:     make([]atomic.Int64, size),
		allDetected:  make([]atomic.Int64, size),
		recovered:    make([]atomic.Int64, size),
		hospitalized: make([]atomic.Int64, size),
		inIcu:        make([]atomic.Int64, size),
		dead:         make([]atomic.Int64, size),
	}
}

// Population tracks per-age epidemic counters and mobility modifiers.
type Population struct {
	counters ageCounters
	maxAge   int

	avgContactsPerDay *classedvalues.ClassedValues
	rng               *randpool.Pool

	mu                     sync.RWMutex
	mobilityFactor         float64
	limitMassGatherings    int
}

// New constructs a Population from initial per-age counts (all Susceptible
// at construction) and the average-daily-contacts age curve.
func New(ageCounts map[int]int, avgContactsPerDay []classedvalues.Entry, rng *randpool.Pool) *Population {
	maxAge := 0
	for age := range ageCounts {
		if age > maxAge {
			maxAge = age
		}
	}

	p := &Population{
		counters:          newAgeCounters(maxAge + 1),
		maxAge:            maxAge,
		avgContactsPerDay: classedvalues.New(avgContactsPerDay...),
		rng:               rng,
		mobilityFactor:    1.0,
	}
	for age, count := range ageCounts {
		p.counters.susceptible[age].Store(int64(count))
	}
	return p
}

// MaxAge returns the highest age bucket present.
func (p *Population) MaxAge() int {
	return p.maxAge
}

// Infect moves one agent of the given age from susceptible to infected and
// bumps the cumulative all-time infected counter.
func (p *Population) Infect(age int) {
	p.counters.susceptible[age].Add(-1)
	p.counters.infected[age].Add(1)
	p.counters.allInfected[age].Add(1)
}

// Recover moves one agent of the given age from infected to recovered.
func (p *Population) Recover(age int) {
	p.counters.infected[age].Add(-1)
	p.counters.recovered[age].Add(1)
}

// Die moves one agent of the given age from infected to dead.
func (p *Population) Die(age int) {
	p.counters.infected[age].Add(-1)
	p.counters.dead[age].Add(1)
}

// Detect marks one more agent of the given age as detected.
func (p *Population) Detect(age int) {
	p.counters.detected[age].Add(1)
	p.counters.allDetected[age].Add(1)
}

// Hospitalize marks one more agent of the given age as occupying a ward bed.
func (p *Population) Hospitalize(age int) {
	p.counters.hospitalized[age].Add(1)
}

// TransferToICU marks one more agent of the given age as occupying an ICU unit.
func (p *Population) TransferToICU(age int) {
	p.counters.inIcu[age].Add(1)
}

// ReleaseFromHospital frees one ward-bed occupancy slot for the given age.
func (p *Population) ReleaseFromHospital(age int) {
	p.counters.hospitalized[age].Add(-1)
}

// ReleaseFromICU frees one ICU occupancy slot for the given age.
func (p *Population) ReleaseFromICU(age int) {
	p.counters.inIcu[age].Add(-1)
}

// SetMobilityFactor applies the limit-mobility intervention's effect.
func (p *Population) SetMobilityFactor(f float64) {
	p.mu.Lock()
	p.mobilityFactor = f
	p.mu.Unlock()
}

// SetGatheringLimit applies the limit-mass-gatherings intervention's effect.
// 0 disables the limit.
func (p *Population) SetGatheringLimit(n int) {
	p.mu.Lock()
	p.limitMassGatherings = n
	p.mu.Unlock()
}

// ContactsPerDay samples how many contacts an agent of the given age
// attempts today, with an optional severity-driven factor/limit.
//
// The raw sample can go negative (floor(f) - 1 with a small f); the
// reference implementation left that to callers, but per design doc §9 we
// saturate at 0 here rather than propagate a negative loop bound.
func (p *Population) ContactsPerDay(age int, factor float64, limit int) int {
	p.mu.RLock()
	mobility := p.mobilityFactor
	gatherLimit := p.limitMassGatherings
	p.mu.RUnlock()

	avg := p.avgContactsPerDay.GetGreatestLTE(age)
	f := factor * mobility * float64(p.rng.Lognormal(0, 0.5)) * avg
	contacts := int(math.Floor(f)) - 1
	if contacts < 0 {
		contacts = 0
	}
	if gatherLimit > 0 && contacts > gatherLimit {
		contacts = gatherLimit
	}
	if contacts > limit {
		contacts = limit
	}
	return contacts
}

// AgeSnapshot is a point-in-time read of every counter for one age bucket.
type AgeSnapshot struct {
	Susceptible  int64
	Infected     int64
	AllInfected  int64
	Detected     int64
	AllDetected  int64
	Recovered    int64
	Hospitalized int64
	InIcu        int64
	Dead         int64
}

// Snapshot returns a read of every age bucket from 0 to MaxAge.
func (p *Population) Snapshot() map[int]AgeSnapshot {
	out := make(map[int]AgeSnapshot, p.maxAge+1)
	for age := 0; age <= p.maxAge; age++ {
		out[age] = AgeSnapshot{
			Susceptible:  p.counters.susceptible[age].Load(),
			Infected:     p.counters.infected[age].Load(),
			AllInfected:  p.counters.allInfected[age].Load(),
			Detected:     p.counters.detected[age].Load(),
			AllDetected:  p.counters.allDetected[age].Load(),
			Recovered:    p.counters.recovered[age].Load(),
			Hospitalized: p.counters.hospitalized[age].Load(),
			InIcu:        p.counters.inIcu[age].Load(),
			Dead:         p.counters.dead[age].Load(),
		}
	}
	return out
}
