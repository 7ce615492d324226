package engine

// sampleIterations is how many times Sample exercises a synthetic agent
// to build a distribution for diagnostic inspection.
const sampleIterations = 10000

// Sample exercises a single synthetic agent of the given age sampleIterations
// times and returns the resulting distribution, or the infectiousness-over-
// time curve across days [-100, 100) when what == "infectiousness_over_time"
// (age is ignored in that case). Purely diagnostic — never consulted by
// Iterate.
func (c *Context) Sample(what string, age int) []float64 {
	switch what {
	case "contacts_per_day":
		out := make([]float64, sampleIterations)
		for i := range out {
			out[i] = float64(c.Population.ContactsPerDay(age, 1.0, 100))
		}
		return out
	case "symptom_severity":
		out := make([]float64, sampleIterations)
		for i := range out {
			out[i] = float64(c.Disease.SymptomSeverity(c.rng, age))
		}
		return out
	case "incubation_period":
		return c.sampleDisease(func() int { return c.Disease.IncubationDays(c.rng) })
	case "illness_period":
		return c.sampleDisease(func() int { return c.Disease.IllnessDays(c.rng) })
	case "hospitalization_period":
		return c.sampleDisease(func() int { return c.Disease.HospitalizationDays(c.rng) })
	case "icu_period":
		return c.sampleDisease(func() int { return c.Disease.ICUDays(c.rng) })
	case "infectiousness_over_time":
		out := make([]float64, 0, 200)
		for day := -100; day < 100; day++ {
			out = append(out, c.Disease.GetInfectiousnessOverTime(day))
		}
		return out
	default:
		return nil
	}
}

func (c *Context) sampleDisease(draw func() int) []float64 {
	out := make([]float64, sampleIterations)
	for i := range out {
		out[i] = float64(draw())
	}
	return out
}
