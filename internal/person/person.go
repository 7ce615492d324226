// Package person implements the per-agent state machine: the susceptible →
// incubation → illness → {hospitalized, in ICU} → {recovered, dead}
// transitions, exposure/infection sampling, and the bounded inline
// infectee list used for contact tracing. See design doc §3 and §4.3.
//
// Registry is the only type in this package that talks to healthcare and
// population. It depends on them through locally-defined interfaces
// (populationSink, healthSystem) rather than importing population
// directly, and through healthcare.AgentQuery in the other direction —
// so person, population, and healthcare form an acyclic graph even though
// all three call into each other at runtime.
package person

import (
	"sync"

	"github.com/talgya/epidemic-sim/internal/disease"
	"github.com/talgya/epidemic-sim/internal/healthcare"
	"github.com/talgya/epidemic-sim/internal/randpool"
	"github.com/talgya/epidemic-sim/internal/simfault"
)

// State is an agent's position in the epidemic state machine.
type State uint8

const (
	Susceptible State = iota
	Incubation
	Illness
	Hospitalized
	InICU
	Recovered
	Dead
)

func (s State) String() string {
	switch s {
	case Susceptible:
		return "Susceptible"
	case Incubation:
		return "Incubation"
	case Illness:
		return "Illness"
	case Hospitalized:
		return "Hospitalized"
	case InICU:
		return "InICU"
	case Recovered:
		return "Recovered"
	case Dead:
		return "Dead"
	default:
		return "Unknown"
	}
}

// MaxInfectees bounds the inline per-agent infectee list. An agent that
// infects more than this many contacts over its infectious period raises
// simfault.TooManyInfectees rather than growing the slice unbounded.
const MaxInfectees = 64

// noInfector marks an agent with no known infector (imported case).
const noInfector = -1

// Person is one simulated individual.
type Person struct {
	mu sync.Mutex

	idx int
	age int

	state    State
	severity disease.Severity

	isInfected       bool
	hasImmunity      bool
	wasDetected      bool
	queuedForTesting bool
	includedInTotals bool

	daysLeft       int
	dayOfIllness   int
	dayOfInfection int

	infector          int
	hasInfecteeBuffer bool
	infectees         [MaxInfectees]int
	nInfectees        int

	otherPeopleInfected     int
	otherPeopleExposedToday int
}

// Registry owns every Person and the shared collaborators needed to drive
// their state transitions.
type Registry struct {
	People []*Person

	disease *disease.Disease
	pop     populationSink
	health  healthSystem
	rng     *randpool.Pool
	fault   *simfault.Flag
}

// populationSink is the subset of population.Population's API the person
// state machine needs. Defined here, satisfied structurally, so person
// never imports population.
type populationSink interface {
	Infect(age int)
	Recover(age int)
	Die(age int)
	Detect(age int)
	Hospitalize(age int)
	TransferToICU(age int)
	ReleaseFromHospital(age int)
	ReleaseFromICU(age int)
	ContactsPerDay(age int, factor float64, limit int) int
}

// healthSystem is the subset of healthcare.System's API the person state
// machine needs, expressed against the healthcare package's own
// AgentQuery interface (which Registry implements below).
type healthSystem interface {
	SeekTesting(q healthcare.AgentQuery, idx int, severity disease.Severity) bool
	Hospitalize() bool
	ToICU() bool
	Release()
	ReleaseFromICU()
	Mode() healthcare.TestingMode
}

// NewRegistry builds a Registry with one susceptible Person per age in ages.
func NewRegistry(ages []int, d *disease.Disease, pop populationSink, health healthSystem, rng *randpool.Pool, fault *simfault.Flag) *Registry {
	people := make([]*Person, len(ages))
	for i, age := range ages {
		people[i] = &Person{
			idx:      i,
			age:      age,
			state:    Susceptible,
			infector: noInfector,
		}
	}
	return &Registry{People: people, disease: d, pop: pop, health: health, rng: rng, fault: fault}
}

// --- healthcare.AgentQuery -------------------------------------------------

func (r *Registry) IsInfected(idx int) bool {
	p := r.People[idx]
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isInfected
}

func (r *Registry) IsDead(idx int) bool {
	p := r.People[idx]
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == Dead
}

func (r *Registry) IsHospitalized(idx int) bool {
	p := r.People[idx]
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == Hospitalized || p.state == InICU
}

func (r *Registry) AlreadyDetected(idx int) bool {
	p := r.People[idx]
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.wasDetected
}

func (r *Registry) IsQueued(idx int) bool {
	p := r.People[idx]
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queuedForTesting
}

func (r *Registry) MarkQueued(idx int) {
	p := r.People[idx]
	p.mu.Lock()
	p.queuedForTesting = true
	p.mu.Unlock()
}

func (r *Registry) MarkDetected(idx int) {
	p := r.People[idx]
	p.mu.Lock()
	p.wasDetected = true
	age := p.age
	p.mu.Unlock()
	r.pop.Detect(age)
}

// SourceInfectiousness reports idx's current transmission probability,
// which healthcare.IsDetected treats as a proxy for testing positive.
func (r *Registry) SourceInfectiousness(idx int) float64 {
	p := r.People[idx]
	p.mu.Lock()
	defer p.mu.Unlock()
	return r.sourceInfectiousnessLocked(p)
}

func (r *Registry) sourceInfectiousnessLocked(p *Person) float64 {
	switch p.state {
	case Incubation:
		return r.disease.SourceInfectiousness(disease.StageIncubation, -p.daysLeft)
	case Illness:
		return r.disease.SourceInfectiousness(disease.StageIllness, p.dayOfIllness)
	default:
		return 0
	}
}

func (r *Registry) Infector(idx int) (int, bool) {
	p := r.People[idx]
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.infector == noInfector {
		return 0, false
	}
	return p.infector, true
}

func (r *Registry) Infectees(idx int) []int {
	p := r.People[idx]
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int, p.nInfectees)
	copy(out, p.infectees[:p.nInfectees])
	return out
}

// --- state transitions ------------------------------------------------------

// Infect transitions idx from Susceptible to Incubation. infector is the
// index of the agent that caused this infection, or noInfector for an
// imported case. day is the current simulation day, recorded as the day
// of infection.
func (r *Registry) Infect(idx, day, infector int) bool {
	p := r.People[idx]
	p.mu.Lock()
	if p.state != Susceptible || p.hasImmunity {
		p.mu.Unlock()
		return false
	}
	p.state = Incubation
	p.isInfected = true
	p.severity = r.disease.SymptomSeverity(r.rng, p.age)
	p.daysLeft = r.disease.IncubationDays(r.rng)
	p.dayOfInfection = day
	p.infector = infector
	// The infectee buffer is allocated only if contact tracing is active
	// at the moment of this agent's own infection — an agent infected
	// before test-with-contact-tracing is switched on never tracks who
	// it goes on to infect, even if tracing turns on later.
	p.hasInfecteeBuffer = r.health.Mode() == healthcare.AllWithSymptomsCT
	age := p.age
	p.mu.Unlock()

	r.pop.Infect(age)

	if infector != noInfector {
		r.recordInfectee(infector, idx)
	}
	return true
}

// recordInfectee appends idx to infectorIdx's inline infectee list, if
// infectorIdx has one (see hasInfecteeBuffer), raising TooManyInfectees if
// it would overflow MaxInfectees. otherPeopleInfected is tracked
// regardless of whether a buffer exists — only the traceable list is
// gated on tracing mode.
func (r *Registry) recordInfectee(infectorIdx, idx int) {
	src := r.People[infectorIdx]
	src.mu.Lock()
	defer src.mu.Unlock()
	src.otherPeopleInfected++
	if !src.hasInfecteeBuffer {
		return
	}
	if src.nInfectees >= MaxInfectees {
		r.fault.Raise(simfault.TooManyInfectees)
		return
	}
	src.infectees[src.nInfectees] = idx
	src.nInfectees++
}

// ExposeOthers samples how many contacts idx attempts today and rolls
// transmission against each, infecting susceptible targets. It returns the
// number of new infections caused.
func (r *Registry) ExposeOthers(idx, day int) int {
	p := r.People[idx]
	p.mu.Lock()
	stage, symptomatic, detected, age, dayArg := r.infectiousStateLocked(p)
	p.otherPeopleExposedToday = 0
	p.mu.Unlock()

	if stage == disease.StageOther {
		return 0
	}

	contacts := r.disease.PeopleExposed(stage, symptomatic, detected, age, contactSource{r.pop})
	if contacts <= 0 {
		return 0
	}

	p.mu.Lock()
	p.otherPeopleExposedToday = contacts
	p.mu.Unlock()

	newInfections := 0
	n := len(r.People)
	for i := 0; i < contacts; i++ {
		target := r.rng.BoundedInt(n)
		if target == idx {
			continue
		}
		if !r.disease.DidInfect(r.rng, stage, dayArg) {
			continue
		}
		if r.Infect(target, day, idx) {
			newInfections++
		}
	}
	return newInfections
}

// infectiousStateLocked reads the fields disease.PeopleExposed/DidInfect
// need. Caller must hold p.mu.
func (r *Registry) infectiousStateLocked(p *Person) (stage disease.Stage, symptomatic, detected bool, age, dayArg int) {
	detected = p.wasDetected
	age = p.age
	switch p.state {
	case Incubation:
		return disease.StageIncubation, false, detected, age, -p.daysLeft
	case Illness:
		symptomatic = p.severity != disease.Asymptomatic
		return disease.StageIllness, symptomatic, detected, age, p.dayOfIllness
	default:
		return disease.StageOther, false, detected, age, 0
	}
}

// contactSource adapts populationSink to disease.ContactSource.
type contactSource struct{ pop populationSink }

func (c contactSource) ContactsPerDay(age int, factor float64, limit int) int {
	return c.pop.ContactsPerDay(age, factor, limit)
}

// AdvanceOneDay ages idx's clock by one day and applies whatever state
// transition falls due. Call once per agent per tick, after exposure.
func (r *Registry) AdvanceOneDay(idx, day int) {
	p := r.People[idx]
	p.mu.Lock()

	seekTesting := false
	switch p.state {
	case Incubation:
		p.daysLeft--
		if p.daysLeft <= 0 {
			seekTesting = r.beginIllnessLocked(p)
		}
	case Illness:
		p.dayOfIllness++
		p.daysLeft--
		if p.daysLeft <= 0 {
			r.endIllnessLocked(p)
		}
	case Hospitalized:
		p.daysLeft--
		if p.daysLeft <= 0 {
			r.endHospitalStayLocked(p, false)
		}
	case InICU:
		p.daysLeft--
		if p.daysLeft <= 0 {
			r.endHospitalStayLocked(p, true)
		}
	}
	severity := p.severity
	p.mu.Unlock()

	// SeekTesting must run outside the lock: it calls back into the
	// Registry's AgentQuery methods, which re-lock the same Person.
	if seekTesting {
		r.health.SeekTesting(r, idx, severity)
	}
}

// beginIllnessLocked transitions Incubation -> Illness and reports whether
// the now-symptomatic agent should be offered testing. Caller must hold p.mu.
func (r *Registry) beginIllnessLocked(p *Person) bool {
	p.state = Illness
	p.dayOfIllness = 0
	p.daysLeft = r.disease.IllnessDays(r.rng)

	return p.severity != disease.Asymptomatic && r.health.Mode() != healthcare.NoTesting
}

// endIllnessLocked resolves Illness into Hospitalized, InICU, Recovered, or
// Dead by severity and bed availability. Caller must hold p.mu.
func (r *Registry) endIllnessLocked(p *Person) {
	switch p.severity {
	case disease.Critical:
		if r.health.ToICU() {
			p.state = InICU
			p.daysLeft = r.disease.ICUDays(r.rng)
			r.pop.TransferToICU(p.age)
			return
		}
		r.resolveDeathLocked(p, true, false)
	case disease.Severe:
		if r.health.Hospitalize() {
			p.state = Hospitalized
			p.daysLeft = r.disease.HospitalizationDays(r.rng)
			r.pop.Hospitalize(p.age)
			return
		}
		r.resolveDeathLocked(p, false, false)
	default:
		r.recoverLocked(p)
	}
}

// endHospitalStayLocked resolves a completed ward/ICU stay into Recovered
// or Dead, and releases the occupied bed. Caller must hold p.mu.
func (r *Registry) endHospitalStayLocked(p *Person, inICU bool) {
	if inICU {
		r.pop.ReleaseFromICU(p.age)
		r.health.ReleaseFromICU()
	} else {
		r.pop.ReleaseFromHospital(p.age)
		r.health.Release()
	}
	r.resolveDeathLocked(p, inICU, true)
}

// resolveDeathLocked rolls disease.DiesInHospital and transitions to Dead
// or Recovered. careAvailable reflects whether a bed was actually secured
// for this stay. Caller must hold p.mu.
func (r *Registry) resolveDeathLocked(p *Person, inICU, careAvailable bool) {
	if r.disease.DiesInHospital(r.rng, inICU, careAvailable) {
		p.state = Dead
		p.isInfected = false
		r.pop.Die(p.age)
		return
	}
	r.recoverLocked(p)
}

// recoverLocked transitions to Recovered with immunity. Caller must hold p.mu.
func (r *Registry) recoverLocked(p *Person) {
	p.state = Recovered
	p.hasImmunity = true
	p.isInfected = false
	r.pop.Recover(p.age)
}

// Advance runs one tick's worth of work for an already-infected agent:
// it exposes contacts, then advances the agent's own clock by one day. It
// returns the number of contacts exposed today, for the caller to fold
// into the day's exposed_per_day accumulator.
func (r *Registry) Advance(idx, day int) (exposedToday int) {
	r.ExposeOthers(idx, day)
	p := r.People[idx]
	p.mu.Lock()
	exposedToday = p.otherPeopleExposedToday
	p.mu.Unlock()
	r.AdvanceOneDay(idx, day)
	return exposedToday
}

// IsInState reports whether idx is currently in state s.
func (r *Registry) IsInState(idx int, s State) bool {
	return r.State(idx) == s
}

// MarkIncludedInTotals reports idx's current includedInTotals flag and, if
// unset, sets it and returns false — an at-most-once gate for folding a
// Recovered/Dead agent's contribution into the run-wide infection totals.
func (r *Registry) MarkIncludedInTotals(idx int) (alreadyIncluded bool) {
	p := r.People[idx]
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.includedInTotals {
		return true
	}
	p.includedInTotals = true
	return false
}

// State returns idx's current state.
func (r *Registry) State(idx int) State {
	p := r.People[idx]
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Age returns idx's age.
func (r *Registry) Age(idx int) int {
	return r.People[idx].age
}

// OtherPeopleInfected returns the cumulative count of agents idx has
// directly infected.
func (r *Registry) OtherPeopleInfected(idx int) int {
	p := r.People[idx]
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.otherPeopleInfected
}
