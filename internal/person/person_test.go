package person

import (
	"testing"

	"github.com/talgya/epidemic-sim/internal/classedvalues"
	"github.com/talgya/epidemic-sim/internal/disease"
	"github.com/talgya/epidemic-sim/internal/healthcare"
	"github.com/talgya/epidemic-sim/internal/randpool"
	"github.com/talgya/epidemic-sim/internal/simfault"
)

// fakePopulation is a minimal populationSink for exercising Registry
// without the real population package, counting calls rather than
// maintaining real per-age counters.
type fakePopulation struct {
	infected, recovered, dead, detected, hospitalized, inICU int
}

func (f *fakePopulation) Infect(age int)              { f.infected++ }
func (f *fakePopulation) Recover(age int)             { f.recovered++ }
func (f *fakePopulation) Die(age int)                 { f.dead++ }
func (f *fakePopulation) Detect(age int)              { f.detected++ }
func (f *fakePopulation) Hospitalize(age int)         { f.hospitalized++ }
func (f *fakePopulation) TransferToICU(age int)       { f.inICU++ }
func (f *fakePopulation) ReleaseFromHospital(age int) { f.hospitalized-- }
func (f *fakePopulation) ReleaseFromICU(age int)      { f.inICU-- }
func (f *fakePopulation) ContactsPerDay(age int, factor float64, limit int) int {
	return 0
}

// fakeHealth is a minimal healthSystem for exercising Registry without the
// real healthcare package's queue/capacity bookkeeping.
type fakeHealth struct {
	mode           healthcare.TestingMode
	bedsAvailable  bool
	icuAvailable   bool
	seekTestingLog []int
}

func (f *fakeHealth) SeekTesting(q healthcare.AgentQuery, idx int, severity disease.Severity) bool {
	f.seekTestingLog = append(f.seekTestingLog, idx)
	return true
}
func (f *fakeHealth) Hospitalize() bool     { return f.bedsAvailable }
func (f *fakeHealth) ToICU() bool           { return f.icuAvailable }
func (f *fakeHealth) Release()              {}
func (f *fakeHealth) ReleaseFromICU()       {}
func (f *fakeHealth) Mode() healthcare.TestingMode { return f.mode }

func testDisease() *disease.Disease {
	return disease.New(disease.Params{
		PInfection:             1.0,
		PAsymptomatic:          0,
		PSevere:                classedvalues.New(classedvalues.Entry{Class: 0, Value: 0}),
		PCritical:              classedvalues.New(classedvalues.Entry{Class: 0, Value: 0}),
		PHospitalDeath:         0,
		PICUDeath:              0,
		PHospitalDeathNoBeds:   0,
		PICUDeathNoBeds:        0,
		MeanIllnessDuration:    5,
		MeanHospitalizationDur: 5,
		MeanICUDuration:        5,
	})
}

func newTestRegistry(n int) (*Registry, *fakePopulation, *fakeHealth) {
	return newTestRegistryWithMode(n, healthcare.NoTesting)
}

func newTestRegistryWithMode(n int, mode healthcare.TestingMode) (*Registry, *fakePopulation, *fakeHealth) {
	ages := make([]int, n)
	for i := range ages {
		ages[i] = 40
	}
	pop := &fakePopulation{}
	health := &fakeHealth{mode: mode}
	r := NewRegistry(ages, testDisease(), pop, health, randpool.New(1), &simfault.Flag{})
	return r, pop, health
}

func TestInfectTransitionsSusceptibleToIncubation(t *testing.T) {
	r, pop, _ := newTestRegistry(5)

	if !r.Infect(0, 0, noInfector) {
		t.Fatalf("Infect(0) = false, want true")
	}
	if got := r.State(0); got != Incubation {
		t.Fatalf("State after Infect = %v, want Incubation", got)
	}
	if pop.infected != 1 {
		t.Fatalf("population.Infect called %d times, want 1", pop.infected)
	}
}

func TestInfectRefusesAlreadyInfectedAgent(t *testing.T) {
	r, _, _ := newTestRegistry(5)
	r.Infect(0, 0, noInfector)

	if r.Infect(0, 1, noInfector) {
		t.Fatalf("Infect succeeded on an already-infected agent")
	}
}

func TestInfectRefusesImmuneAgent(t *testing.T) {
	r, _, _ := newTestRegistry(5)
	// Simulate having already recovered, rather than driving the full
	// incubation+illness state machine to get there.
	r.People[0].hasImmunity = true
	r.People[0].state = Susceptible

	if r.Infect(0, 5, noInfector) {
		t.Fatalf("Infect succeeded on an immune agent")
	}
}

func TestRecordInfecteeTracksInfector(t *testing.T) {
	// The infector's infectee buffer is only populated if contact tracing
	// was active when the infector was itself infected.
	r, _, _ := newTestRegistryWithMode(5, healthcare.AllWithSymptomsCT)
	r.Infect(0, 0, noInfector)
	r.Infect(1, 0, 0)

	infector, ok := r.Infector(1)
	if !ok || infector != 0 {
		t.Fatalf("Infector(1) = (%d, %v), want (0, true)", infector, ok)
	}

	infectees := r.Infectees(0)
	if len(infectees) != 1 || infectees[0] != 1 {
		t.Fatalf("Infectees(0) = %v, want [1]", infectees)
	}
}

func TestNoInfecteeBufferOutsideContactTracingMode(t *testing.T) {
	// Infected while testing_mode != AllWithSymptomsCT: the infector never
	// allocates an infectee buffer, so infections it causes are not
	// tracked for tracing even if the infectee is recorded elsewhere.
	r, _, _ := newTestRegistry(5) // NoTesting
	r.Infect(0, 0, noInfector)
	r.Infect(1, 0, 0)

	if infectees := r.Infectees(0); len(infectees) != 0 {
		t.Fatalf("Infectees(0) = %v, want none (no contact tracing at infection time)", infectees)
	}
}

func TestTooManyInfecteesRaisesSimfaultOnlyUnderContactTracing(t *testing.T) {
	ages := make([]int, MaxInfectees+2)
	for i := range ages {
		ages[i] = 40
	}

	// Under NoTesting, the infector never allocates a buffer, so it can
	// never overflow MAX_INFECTEES regardless of how many it infects.
	pop := &fakePopulation{}
	health := &fakeHealth{mode: healthcare.NoTesting}
	fault := &simfault.Flag{}
	r := NewRegistry(ages, testDisease(), pop, health, randpool.New(1), fault)

	r.Infect(0, 0, noInfector)
	for i := 1; i < MaxInfectees+2; i++ {
		r.Infect(i, 0, 0)
	}
	if got := fault.Load(); got != simfault.NoProblem {
		t.Fatalf("fault.Load() = %v, want NoProblem under NoTesting", got)
	}

	// Under AllWithSymptomsCT, the same overflow does raise the fault.
	ctPop := &fakePopulation{}
	ctHealth := &fakeHealth{mode: healthcare.AllWithSymptomsCT}
	ctFault := &simfault.Flag{}
	ctR := NewRegistry(ages, testDisease(), ctPop, ctHealth, randpool.New(1), ctFault)

	ctR.Infect(0, 0, noInfector)
	for i := 1; i < MaxInfectees+2; i++ {
		ctR.Infect(i, 0, 0)
	}
	if got := ctFault.Load(); got != simfault.TooManyInfectees {
		t.Fatalf("fault.Load() = %v, want TooManyInfectees under AllWithSymptomsCT", got)
	}
}

func TestMarkIncludedInTotalsIsAtMostOnce(t *testing.T) {
	r, _, _ := newTestRegistry(1)

	if already := r.MarkIncludedInTotals(0); already {
		t.Fatalf("first MarkIncludedInTotals = true, want false")
	}
	if already := r.MarkIncludedInTotals(0); !already {
		t.Fatalf("second MarkIncludedInTotals = false, want true")
	}
}

func TestIsInfectedClearsOnRecovery(t *testing.T) {
	r, _, _ := newTestRegistry(1)
	r.Infect(0, 0, noInfector)
	if !r.IsInfected(0) {
		t.Fatalf("IsInfected after Infect = false, want true")
	}

	p := r.People[0]
	p.mu.Lock()
	r.recoverLocked(p)
	p.mu.Unlock()

	if r.IsInfected(0) {
		t.Fatalf("IsInfected after recovery = true, want false")
	}
}

func TestIsInfectedClearsOnDeath(t *testing.T) {
	alwaysDies := disease.New(disease.Params{
		PInfection:             1.0,
		PSevere:                classedvalues.New(classedvalues.Entry{Class: 0, Value: 0}),
		PCritical:              classedvalues.New(classedvalues.Entry{Class: 0, Value: 0}),
		PHospitalDeath:         1.0,
		MeanIllnessDuration:    5,
		MeanHospitalizationDur: 5,
		MeanICUDuration:        5,
	})
	pop := &fakePopulation{}
	health := &fakeHealth{mode: healthcare.NoTesting}
	r := NewRegistry([]int{40}, alwaysDies, pop, health, randpool.New(1), &simfault.Flag{})

	r.Infect(0, 0, noInfector)

	p := r.People[0]
	p.mu.Lock()
	r.resolveDeathLocked(p, false, true)
	p.mu.Unlock()

	if r.State(0) != Dead {
		t.Fatalf("State after resolveDeathLocked = %v, want Dead", r.State(0))
	}
	if r.IsInfected(0) {
		t.Fatalf("IsInfected after death = true, want false")
	}
}

func TestExposeOthersSkipsDetectedAgents(t *testing.T) {
	r, _, _ := newTestRegistry(5)
	r.Infect(0, 0, noInfector)
	r.People[0].wasDetected = true

	if got := r.ExposeOthers(0, 0); got != 0 {
		t.Fatalf("ExposeOthers on a detected agent = %d, want 0", got)
	}
}

func TestStateStringCoversAllStates(t *testing.T) {
	states := []State{Susceptible, Incubation, Illness, Hospitalized, InICU, Recovered, Dead}
	seen := map[string]bool{}
	for _, s := range states {
		str := s.String()
		if str == "" || str == "Unknown" {
			t.Errorf("State(%d).String() = %q, want a known name", s, str)
		}
		seen[str] = true
	}
	if len(seen) != len(states) {
		t.Errorf("expected %d distinct state names, got %d", len(states), len(seen))
	}
}
