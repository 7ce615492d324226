package disease

import (
	"testing"

	"github.com/talgya/epidemic-sim/internal/classedvalues"
	"github.com/talgya/epidemic-sim/internal/randpool"
)

func testParams() Params {
	return Params{
		PInfection:             0.1,
		PAsymptomatic:          0.3,
		PSevere:                classedvalues.New(classedvalues.Entry{Class: 0, Value: 0.2}),
		PCritical:              classedvalues.New(classedvalues.Entry{Class: 0, Value: 0.1}),
		PHospitalDeath:         0.05,
		PICUDeath:              0.2,
		PHospitalDeathNoBeds:   0.5,
		PICUDeathNoBeds:        0.9,
		MeanIllnessDuration:    10,
		MeanHospitalizationDur: 8,
		MeanICUDuration:        12,
	}
}

func TestSourceInfectiousnessNonInfectiousStages(t *testing.T) {
	d := New(testParams())
	if got := d.SourceInfectiousness(StageOther, 0); got != 0 {
		t.Fatalf("SourceInfectiousness(StageOther) = %v, want 0", got)
	}
}

func TestGetInfectiousnessOverTimeOutsideTable(t *testing.T) {
	d := New(testParams())
	if got := d.GetInfectiousnessOverTime(1000); got != 0 {
		t.Fatalf("GetInfectiousnessOverTime(1000) = %v, want 0", got)
	}
}

func TestDidInfectZeroProbabilityNeverInfects(t *testing.T) {
	p := testParams()
	p.PInfection = 0
	d := New(p)
	rng := randpool.New(1)

	for i := 0; i < 1000; i++ {
		if d.DidInfect(rng, StageIllness, 0) {
			t.Fatalf("DidInfect returned true with p_infection = 0")
		}
	}
}

func TestPeopleExposedDetectedNeverExposes(t *testing.T) {
	d := New(testParams())
	pop := fakeContactSource{contacts: 50}
	if got := d.PeopleExposed(StageIllness, true, true, 30, pop); got != 0 {
		t.Fatalf("PeopleExposed(detected=true) = %d, want 0", got)
	}
}

func TestPeopleExposedSymptomaticIllnessIsCappedAndHalved(t *testing.T) {
	d := New(testParams())
	pop := fakeContactSource{contacts: 50}
	got := d.PeopleExposed(StageIllness, true, false, 30, pop)
	if got > 5 {
		t.Fatalf("symptomatic PeopleExposed = %d, want <= 5 (capped)", got)
	}
}

func TestSymptomSeverityAllAsymptomaticWhenPAsymptomaticIsOne(t *testing.T) {
	p := testParams()
	p.PAsymptomatic = 1
	p.PSevere = classedvalues.New(classedvalues.Entry{Class: 0, Value: 0})
	p.PCritical = classedvalues.New(classedvalues.Entry{Class: 0, Value: 0})
	d := New(p)
	rng := randpool.New(9)

	for i := 0; i < 1000; i++ {
		if got := d.SymptomSeverity(rng, 40); got != Asymptomatic {
			t.Fatalf("SymptomSeverity = %v, want Asymptomatic", got)
		}
	}
}

func TestDurationSamplersStayWithinBounds(t *testing.T) {
	d := New(testParams())
	rng := randpool.New(5)

	for i := 0; i < 500; i++ {
		if v := d.IncubationDays(rng); v < 1 || v > 14 {
			t.Fatalf("IncubationDays = %d, out of [1,14]", v)
		}
		if v := d.IllnessDays(rng); v < 1 || v > 40 {
			t.Fatalf("IllnessDays = %d, out of [1,40]", v)
		}
		if v := d.HospitalizationDays(rng); v < 1 || v > 50 {
			t.Fatalf("HospitalizationDays = %d, out of [1,50]", v)
		}
		if v := d.ICUDays(rng); v < 1 || v > 50 {
			t.Fatalf("ICUDays = %d, out of [1,50]", v)
		}
	}
}

func TestDiesInHospitalUsesNoBedsProbabilityWhenCareUnavailable(t *testing.T) {
	p := testParams()
	p.PHospitalDeathNoBeds = 1
	p.PHospitalDeath = 0
	d := New(p)
	rng := randpool.New(2)

	if d.DiesInHospital(rng, false, true) {
		t.Fatalf("DiesInHospital(careAvailable=true) = true, want false with PHospitalDeath=0")
	}
	if !d.DiesInHospital(rng, false, false) {
		t.Fatalf("DiesInHospital(careAvailable=false) = false, want true with PHospitalDeathNoBeds=1")
	}
}

type fakeContactSource struct{ contacts int }

func (f fakeContactSource) ContactsPerDay(age int, factor float64, limit int) int {
	n := int(float64(f.contacts) * factor)
	if n > limit {
		n = limit
	}
	return n
}
