// Package config loads a run definition — population composition, disease
// parameters, healthcare capacity, the seed, and the intervention schedule
// — from a YAML file. See design doc §10.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/talgya/epidemic-sim/internal/classedvalues"
)

// AgeBin is one entry of the initial population's age distribution.
type AgeBin struct {
	Age   int `yaml:"age"`
	Count int `yaml:"count"`
}

// CurvePoint is one entry of an age-indexed curve (average daily contacts,
// severity probability, critical probability).
type CurvePoint struct {
	Age   int     `yaml:"age"`
	Value float64 `yaml:"value"`
}

// Intervention is one scheduled (day, name, value) record.
type Intervention struct {
	Day   int    `yaml:"day"`
	Name  string `yaml:"name"`
	Value int    `yaml:"value"`
}

// Disease holds the construction parameters for internal/disease.Disease.
type Disease struct {
	PInfection             float64      `yaml:"p_infection"`
	PAsymptomatic          float64      `yaml:"p_asymptomatic"`
	PSevere                []CurvePoint `yaml:"p_severe"`
	PCritical              []CurvePoint `yaml:"p_critical"`
	PHospitalDeath         float64      `yaml:"p_hospital_death"`
	PICUDeath              float64      `yaml:"p_icu_death"`
	PHospitalDeathNoBeds   float64      `yaml:"p_hospital_death_no_beds"`
	PICUDeathNoBeds        float64      `yaml:"p_icu_death_no_beds"`
	MeanIllnessDuration    float64      `yaml:"mean_illness_duration"`
	MeanHospitalizationDur float64      `yaml:"mean_hospitalization_duration"`
	MeanICUDuration        float64      `yaml:"mean_icu_duration"`
}

// Healthcare holds the construction parameters for internal/healthcare.System.
type Healthcare struct {
	Beds            int     `yaml:"beds"`
	ICUUnits        int     `yaml:"icu_units"`
	PDetectedAnyway float64 `yaml:"p_detected_anyway"`
}

// Run is a complete run definition.
type Run struct {
	Seed              int64        `yaml:"seed"`
	StartDate         string       `yaml:"start_date"`
	Days              int          `yaml:"days"`
	AgeCounts         []AgeBin     `yaml:"age_counts"`
	AvgContactsPerDay []CurvePoint `yaml:"avg_contacts_per_day"`
	Disease           Disease      `yaml:"disease"`
	Healthcare        Healthcare   `yaml:"healthcare"`
	Interventions     []Intervention `yaml:"interventions"`
	InitialInfections int          `yaml:"initial_infections"`
}

// Load reads and parses a run definition from path.
func Load(path string) (Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Run{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var run Run
	if err := yaml.Unmarshal(data, &run); err != nil {
		return Run{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return run, nil
}

// AgeCountMap flattens AgeCounts into the map form Population.New expects.
func (r Run) AgeCountMap() map[int]int {
	m := make(map[int]int, len(r.AgeCounts))
	for _, b := range r.AgeCounts {
		m[b.Age] = b.Count
	}
	return m
}

// ClassedEntries converts a curve point list into classedvalues.Entry form.
func ClassedEntries(points []CurvePoint) []classedvalues.Entry {
	out := make([]classedvalues.Entry, len(points))
	for i, p := range points {
		out[i] = classedvalues.Entry{Class: p.Age, Value: p.Value}
	}
	return out
}
