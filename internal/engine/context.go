// Package engine drives the simulation's daily tick: applying scheduled
// interventions, running healthcare's single-threaded queue pass, then
// advancing every agent in parallel. See design doc §4.7, §5, §7.
package engine

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/talgya/epidemic-sim/internal/disease"
	"github.com/talgya/epidemic-sim/internal/healthcare"
	"github.com/talgya/epidemic-sim/internal/person"
	"github.com/talgya/epidemic-sim/internal/population"
	"github.com/talgya/epidemic-sim/internal/randpool"
	"github.com/talgya/epidemic-sim/internal/simfault"
)

// tickChunkSize bounds how many agents one goroutine advances before the
// next goroutine takes over — a fixed chunk rather than a work-stealing
// pool, matching the "dynamic-chunk scheme" allowed by the concurrency
// model at this agent-count scale.
const tickChunkSize = 10000

// Context owns the agent registry, its subcomponents, the intervention
// schedule, and the per-day accumulators.
type Context struct {
	People     *person.Registry
	Population *population.Population
	Healthcare *healthcare.System
	Disease    *disease.Disease

	rng   *randpool.Pool
	fault *simfault.Flag

	startDate time.Time
	day       int

	interventions   []Intervention
	appliedThrough  int

	totalInfectors  atomic.Int64
	totalInfections atomic.Int64
	exposedPerDay   atomic.Int64
}

// Intervention is a dated, named parameter change applied at the start of
// its scheduled day.
type Intervention struct {
	Day   int
	Name  string
	Value int
}

// New constructs a Context over the given subcomponents and seeds every
// agent as Susceptible at the given ages. startDate anchors
// AddInterventionAt's date convenience form.
func New(pop *population.Population, health *healthcare.System, dis *disease.Disease, ages []int, rng *randpool.Pool, startDate time.Time) *Context {
	fault := &simfault.Flag{}
	ctx := &Context{
		Population: pop,
		Healthcare: health,
		Disease:    dis,
		rng:        rng,
		fault:      fault,
		startDate:  startDate,
	}
	ctx.People = person.NewRegistry(ages, dis, pop, health, rng, fault)
	return ctx
}

// AddIntervention schedules name/value to apply at the start of day.
// applyDueInterventions walks c.interventions with a monotonic cursor, so
// entries are inserted in Day order regardless of call order.
func (c *Context) AddIntervention(day int, name string, value int) {
	iv := Intervention{Day: day, Name: name, Value: value}
	i := sort.Search(len(c.interventions), func(i int) bool {
		return c.interventions[i].Day > day
	})
	c.interventions = append(c.interventions, Intervention{})
	copy(c.interventions[i+1:], c.interventions[i:])
	c.interventions[i] = iv
}

// AddInterventionAt schedules name/value to apply at the start of the day
// corresponding to the given ISO date, relative to the Context's start date.
func (c *Context) AddInterventionAt(date time.Time, name string, value int) {
	offset := int(date.Sub(c.startDate).Hours() / 24)
	c.AddIntervention(offset, name, value)
}

// Day returns the current simulation day (0-indexed from start date).
func (c *Context) Day() int {
	return c.day
}

// InfectPeople seeds count infections at uniformly random indices, with no
// recorded infector (an imported case).
func (c *Context) InfectPeople(count int) {
	n := len(c.People.People)
	if n == 0 {
		return
	}
	for i := 0; i < count; i++ {
		idx := c.rng.BoundedInt(n)
		c.People.Infect(idx, c.day, -1)
	}
}

// Iterate advances the simulation by one day: applies due interventions,
// resets per-day counters, runs healthcare's queue pass, then advances every
// infected agent in parallel; the same pass folds agents that resolved on an
// earlier tick into the run-wide totals. Returns an error if a
// SimulationProblem was flagged during the tick.
func (c *Context) Iterate() error {
	c.applyDueInterventions()

	c.exposedPerDay.Store(0)

	if err := c.Healthcare.Iterate(c.People); err != nil {
		return err
	}

	c.advanceAllParallel()

	if p := c.fault.Load(); p != simfault.NoProblem {
		return fmt.Errorf("engine: simulation problem on day %d: %s", c.day, p)
	}

	c.day++
	return nil
}

// advanceAllParallel runs the per-agent pass described in §5: resolved
// agents fold into the run totals, infected agents expose contacts and
// advance their own clock, chunked across goroutines joined by a
// WaitGroup before Iterate proceeds.
func (c *Context) advanceAllParallel() {
	n := len(c.People.People)
	var wg sync.WaitGroup

	for start := 0; start < n; start += tickChunkSize {
		end := start + tickChunkSize
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			c.advanceRange(lo, hi)
		}(start, end)
	}
	wg.Wait()
}

func (c *Context) advanceRange(lo, hi int) {
	for idx := lo; idx < hi; idx++ {
		state := c.People.State(idx)
		if (state == person.Recovered || state == person.Dead) && !c.People.MarkIncludedInTotals(idx) {
			infected := c.People.OtherPeopleInfected(idx)
			c.totalInfections.Add(int64(infected))
			c.totalInfectors.Add(1)
		}

		if !c.People.IsInfected(idx) {
			continue
		}

		exposed := c.People.Advance(idx, c.day)
		c.exposedPerDay.Add(int64(exposed))
	}
}

// applyDueInterventions applies every intervention scheduled for the
// current day, in the order they were added.
func (c *Context) applyDueInterventions() {
	for ; c.appliedThrough < len(c.interventions); c.appliedThrough++ {
		iv := c.interventions[c.appliedThrough]
		if iv.Day > c.day {
			break
		}
		if iv.Day < c.day {
			continue
		}
		c.apply(iv)
	}
}

// apply dispatches one intervention by name. See the effects table in
// design doc §4.7.
func (c *Context) apply(iv Intervention) {
	switch iv.Name {
	case "test-all-with-symptoms":
		c.Healthcare.SetMode(healthcare.AllWithSymptoms)
	case "test-only-severe-symptoms":
		c.Healthcare.SetMode(healthcare.OnlySevereSymptoms)
	case "test-with-contact-tracing":
		c.Healthcare.SetMode(healthcare.AllWithSymptomsCT)
	case "build-new-icu-units":
		c.Healthcare.AddICUUnits(iv.Value)
	case "build-new-hospital-beds":
		c.Healthcare.AddBeds(iv.Value)
	case "import-infections":
		c.InfectPeople(iv.Value)
	case "limit-mass-gatherings":
		c.Population.SetGatheringLimit(iv.Value)
	case "limit-mobility":
		c.Population.SetMobilityFactor(float64(100-iv.Value) / 100)
	}
}
