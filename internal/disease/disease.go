// Package disease provides pure-function-style parameter sampling for the
// epidemic model: incubation/illness/hospitalization/ICU duration, symptom
// severity assignment, the infectiousness-over-time curve, and the
// Bernoulli tests for transmission and in-hospital death. See design doc §4.4.
//
// Disease carries no agent state of its own — every method takes the
// caller's relevant fields as arguments, which keeps this package a leaf
// with no dependency on the person package.
package disease

import (
	"math"

	"github.com/talgya/epidemic-sim/internal/classedvalues"
	"github.com/talgya/epidemic-sim/internal/randpool"
)

// Severity is the clinical severity assigned to an agent at infection time.
type Severity uint8

const (
	Asymptomatic Severity = iota
	Mild
	Severe
	Critical
)

func (s Severity) String() string {
	switch s {
	case Asymptomatic:
		return "Asymptomatic"
	case Mild:
		return "Mild"
	case Severe:
		return "Severe"
	case Critical:
		return "Critical"
	default:
		return "Unknown"
	}
}

// Stage is the subset of person states that matter for infectiousness
// sampling. It deliberately does not mirror person.State one-for-one —
// disease only needs to tell "before symptoms", "after symptoms", and
// "neither" apart.
type Stage uint8

const (
	StageOther Stage = iota
	StageIncubation
	StageIllness
)

// infectiousnessPoint is one entry of the hard-coded infectiousness curve.
type infectiousnessPoint struct {
	day    int
	weight float64
}

// infectiousnessOverTime is indexed relative to symptom onset (day 0).
// Negative days are before symptoms appear (during incubation).
var infectiousnessOverTime = []infectiousnessPoint{
	{-2, 0.12}, {-1, 0.29}, {0, 0.27}, {1, 0.07}, {2, 0.05}, {3, 0.04},
	{4, 0.03}, {5, 0.02}, {6, 0.02}, {7, 0.01}, {8, 0.01}, {9, 0.01}, {10, 0.01},
}

var infectiousnessByDay = func() map[int]float64 {
	m := make(map[int]float64, len(infectiousnessOverTime))
	for _, p := range infectiousnessOverTime {
		m[p.day] = p.weight
	}
	return m
}()

// ContactSource supplies the daily contact count for an agent of the given
// age. population.Population satisfies this without disease importing it.
type ContactSource interface {
	ContactsPerDay(age int, factor float64, limit int) int
}

// Params holds every sampled/age-indexed disease parameter, constructed
// once per run from the External Interfaces construction signature (§6).
type Params struct {
	PInfection               float64
	PAsymptomatic            float64
	PSevere                  *classedvalues.ClassedValues
	PCritical                *classedvalues.ClassedValues
	PHospitalDeath           float64
	PICUDeath                float64
	PHospitalDeathNoBeds     float64
	PICUDeathNoBeds          float64
	MeanIllnessDuration      float64
	MeanHospitalizationDur   float64
	MeanICUDuration          float64
}

// Disease is the constructed sampler built from Params.
type Disease struct {
	p Params
}

// New constructs a Disease sampler.
func New(p Params) *Disease {
	return &Disease{p: p}
}

// GetInfectiousnessOverTime returns the raw curve weight at day scaled by
// p_infection. The result is 0 for days outside the tabulated range.
func (d *Disease) GetInfectiousnessOverTime(day int) float64 {
	return infectiousnessByDay[day] * d.p.PInfection
}

// SourceInfectiousness returns the chance of transmission from a source
// agent currently in the given stage, at the given relative day.
//
// For incubation, day is the negative of days remaining until symptoms
// (days_left); for illness, day is day_of_illness; any other stage is
// non-infectious.
func (d *Disease) SourceInfectiousness(stage Stage, day int) float64 {
	if stage != StageIncubation && stage != StageIllness {
		return 0
	}
	return d.GetInfectiousnessOverTime(day)
}

// DidInfect rolls whether a source at the given stage/day transmits.
//
// This does not reduce transmission for asymptomatic sources, matching the
// reference implementation's FIXME-annotated behavior (see design doc §9,
// Open Questions) — preserved intentionally, not an oversight.
func (d *Disease) DidInfect(rng *randpool.Pool, stage Stage, day int) bool {
	return rng.Chance(d.SourceInfectiousness(stage, day))
}

// PeopleExposed returns how many contacts an infected agent attempts to
// expose today. detected agents (quarantined) never expose anyone.
// symptomatic Illness-stage agents get a halved, capped contact count;
// everyone else infectious gets the population's unmodified daily count.
func (d *Disease) PeopleExposed(stage Stage, symptomatic, detected bool, age int, pop ContactSource) int {
	if detected {
		return 0
	}
	switch stage {
	case StageIncubation:
		return pop.ContactsPerDay(age, 1.0, 100)
	case StageIllness:
		if symptomatic {
			return pop.ContactsPerDay(age, 0.5, 5)
		}
		return pop.ContactsPerDay(age, 1.0, 100)
	default:
		return 0
	}
}

// DiesInHospital rolls whether a hospitalized/ICU agent dies, selecting one
// of four probabilities by ICU-vs-ward and bed-available-vs-not.
func (d *Disease) DiesInHospital(rng *randpool.Pool, inICU, careAvailable bool) bool {
	var prob float64
	switch {
	case inICU && careAvailable:
		prob = d.p.PICUDeath
	case inICU && !careAvailable:
		prob = d.p.PICUDeathNoBeds
	case !inICU && careAvailable:
		prob = d.p.PHospitalDeath
	default:
		prob = d.p.PHospitalDeathNoBeds
	}
	return rng.Chance(prob)
}

// SymptomSeverity samples a severity class for a newly infected agent of
// the given age.
func (d *Disease) SymptomSeverity(rng *randpool.Pool, age int) Severity {
	u := float64(rng.Get())
	sc := d.p.PSevere.GetGreatestLTE(age)
	cc := d.p.PCritical.GetGreatestLTE(age)

	switch {
	case u < sc*cc:
		return Critical
	case u < sc:
		return Severe
	case u < 1-d.p.PAsymptomatic:
		return Mild
	default:
		return Asymptomatic
	}
}

// sampledDuration implements the shared "1 + floor(lognormal(0,σ)*mean)"
// shape used by every duration sampler below, clamped to [1, cap].
func sampledDuration(rng *randpool.Pool, sigma, mean float64, cap int) int {
	days := 1 + int(math.Floor(float64(rng.Lognormal(0, sigma))*mean))
	if days < 1 {
		days = 1
	}
	if days > cap {
		days = cap
	}
	return days
}

// clampDuration bounds a sampled day count to [1, cap].
func clampDuration(days, cap int) int {
	if days < 1 {
		days = 1
	}
	if days > cap {
		days = cap
	}
	return days
}

// IncubationDays samples the incubation period. Unlike the other duration
// samplers, the underlying normal mean passed to Lognormal is 1.0, not 0 —
// its mean (1.5) is fixed by the model, so it does not go through the
// shared sampledDuration helper.
func (d *Disease) IncubationDays(rng *randpool.Pool) int {
	days := 1 + int(math.Floor(float64(rng.Lognormal(1.0, 0.4))*1.5))
	return clampDuration(days, 14)
}

// IllnessDays samples the symptomatic illness period.
func (d *Disease) IllnessDays(rng *randpool.Pool) int {
	return sampledDuration(rng, 0.6, d.p.MeanIllnessDuration, 40)
}

// HospitalizationDays samples ward duration.
func (d *Disease) HospitalizationDays(rng *randpool.Pool) int {
	return sampledDuration(rng, 0.5, d.p.MeanHospitalizationDur, 50)
}

// ICUDays samples ICU duration.
func (d *Disease) ICUDays(rng *randpool.Pool) int {
	return sampledDuration(rng, 0.3, d.p.MeanICUDuration, 50)
}
