// Command epidemicsim runs an epidemic simulation from a YAML run
// definition, optionally recording daily snapshots to SQLite and printing
// diagnostic distributions.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"
	"time"

	"github.com/talgya/epidemic-sim/internal/classedvalues"
	"github.com/talgya/epidemic-sim/internal/config"
	"github.com/talgya/epidemic-sim/internal/disease"
	"github.com/talgya/epidemic-sim/internal/engine"
	"github.com/talgya/epidemic-sim/internal/healthcare"
	"github.com/talgya/epidemic-sim/internal/persistence"
	"github.com/talgya/epidemic-sim/internal/population"
	"github.com/talgya/epidemic-sim/internal/randpool"
)

func main() {
	configPath := flag.String("config", "", "path to the run definition YAML file")
	days := flag.Int("days", 0, "number of days to run (0 = use the value from the run definition)")
	dbPath := flag.String("db", "", "path to a SQLite database to record the run to (optional)")
	sample := flag.String("sample", "", "print a diagnostic distribution instead of running (contacts_per_day, symptom_severity, incubation_period, illness_period, hospitalization_period, icu_period, infectiousness_over_time)")
	sampleAge := flag.Int("sample-age", 40, "age to use when -sample requires one")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "epidemicsim: -config is required")
		os.Exit(1)
	}

	run, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading run definition", "error", err)
		os.Exit(1)
	}

	startDate, err := time.Parse("2006-01-02", run.StartDate)
	if err != nil {
		slog.Error("parsing start_date", "start_date", run.StartDate, "error", err)
		os.Exit(1)
	}

	ctx := buildContext(run, startDate)

	if *sample != "" {
		printSample(ctx, *sample, *sampleAge)
		return
	}

	runDays := run.Days
	if *days > 0 {
		runDays = *days
	}

	var store *persistence.DB
	var runID int64
	if *dbPath != "" {
		store, err = persistence.Open(*dbPath)
		if err != nil {
			slog.Error("opening persistence database", "error", err)
			os.Exit(1)
		}
		defer store.Close()

		runID, err = store.StartRun(run.Seed, run.StartDate, run)
		if err != nil {
			slog.Error("recording run start", "error", err)
			os.Exit(1)
		}
	}

	for day := 0; day < runDays; day++ {
		if err := ctx.Iterate(); err != nil {
			slog.Error("simulation problem", "day", day, "error", err)
			os.Exit(1)
		}

		state := ctx.GenerateState()
		slog.Info("daily report",
			"day", state.Day,
			"exposed_per_day", state.ExposedPerDay,
			"tests_run_per_day", state.TestsRunPerDay,
			"available_beds", state.AvailableHospitalBeds,
			"available_icu", state.AvailableICUUnits,
			"r", state.R,
		)

		if store != nil {
			if err := store.SaveSnapshot(runID, state); err != nil {
				slog.Error("saving snapshot", "day", day, "error", err)
				os.Exit(1)
			}
			for _, iv := range pendingInterventionsOn(run, day) {
				if err := store.SaveEvent(runID, engine.Intervention{Day: iv.Day, Name: iv.Name, Value: iv.Value}); err != nil {
					slog.Error("saving event", "day", day, "error", err)
					os.Exit(1)
				}
			}
		}
	}
}

// pendingInterventionsOn returns the config interventions scheduled for
// exactly the given day, for event recording.
func pendingInterventionsOn(run config.Run, day int) []config.Intervention {
	var out []config.Intervention
	for _, iv := range run.Interventions {
		if iv.Day == day {
			out = append(out, iv)
		}
	}
	return out
}

// buildContext wires a config.Run into a constructed engine.Context.
func buildContext(run config.Run, startDate time.Time) *engine.Context {
	rng := randpool.New(run.Seed)

	pop := population.New(run.AgeCountMap(), config.ClassedEntries(run.AvgContactsPerDay), rng)

	health := healthcare.New(run.Healthcare.Beds, run.Healthcare.ICUUnits, run.Healthcare.PDetectedAnyway, rng)

	dis := disease.New(disease.Params{
		PInfection:             run.Disease.PInfection,
		PAsymptomatic:          run.Disease.PAsymptomatic,
		PSevere:                classedvalues.New(config.ClassedEntries(run.Disease.PSevere)...),
		PCritical:              classedvalues.New(config.ClassedEntries(run.Disease.PCritical)...),
		PHospitalDeath:         run.Disease.PHospitalDeath,
		PICUDeath:              run.Disease.PICUDeath,
		PHospitalDeathNoBeds:   run.Disease.PHospitalDeathNoBeds,
		PICUDeathNoBeds:        run.Disease.PICUDeathNoBeds,
		MeanIllnessDuration:    run.Disease.MeanIllnessDuration,
		MeanHospitalizationDur: run.Disease.MeanHospitalizationDur,
		MeanICUDuration:        run.Disease.MeanICUDuration,
	})

	ages := make([]int, 0)
	for _, bin := range run.AgeCounts {
		for i := 0; i < bin.Count; i++ {
			ages = append(ages, bin.Age)
		}
	}

	ctx := engine.New(pop, health, dis, ages, rng, startDate)

	for _, iv := range run.Interventions {
		ctx.AddIntervention(iv.Day, iv.Name, iv.Value)
	}

	if run.InitialInfections > 0 {
		ctx.InfectPeople(run.InitialInfections)
	}

	return ctx
}

// printSample prints summary statistics (mean/min/max/percentiles) for one
// of Context.Sample's diagnostic distributions.
func printSample(ctx *engine.Context, what string, age int) {
	values := ctx.Sample(what, age)
	if values == nil {
		fmt.Fprintf(os.Stderr, "epidemicsim: unknown -sample value %q\n", what)
		os.Exit(1)
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(len(sorted))

	percentile := func(p float64) float64 {
		idx := int(math.Round(p * float64(len(sorted)-1)))
		return sorted[idx]
	}

	fmt.Printf("%s (age=%d, n=%d)\n", what, age, len(sorted))
	fmt.Printf("  min:    %.4f\n", sorted[0])
	fmt.Printf("  p50:    %.4f\n", percentile(0.50))
	fmt.Printf("  mean:   %.4f\n", mean)
	fmt.Printf("  p95:    %.4f\n", percentile(0.95))
	fmt.Printf("  max:    %.4f\n", sorted[len(sorted)-1])
}
