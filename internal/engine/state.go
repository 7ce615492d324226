package engine

import (
	"github.com/talgya/epidemic-sim/internal/population"
)

// ModelState is a point-in-time snapshot of every observable simulation
// quantity, returned by Context.GenerateState.
type ModelState struct {
	Day int

	ByAge map[int]population.AgeSnapshot

	AvailableHospitalBeds int
	AvailableICUUnits     int
	ExposedPerDay         int64
	TestsRunPerDay        int64

	// R is total_infections / total_infectors once more than 5 agents
	// have resolved (Recovered or Dead), else 0 — too few resolved cases
	// to make the ratio meaningful.
	R float64
}

// GenerateState returns a snapshot of the simulation's current counters.
func (c *Context) GenerateState() ModelState {
	infectors := c.totalInfectors.Load()
	infections := c.totalInfections.Load()

	r := 0.0
	if infectors > 5 {
		r = float64(infections) / float64(infectors)
	}

	return ModelState{
		Day:                   c.day,
		ByAge:                 c.Population.Snapshot(),
		AvailableHospitalBeds: c.Healthcare.AvailableBeds(),
		AvailableICUUnits:     c.Healthcare.AvailableICUUnits(),
		ExposedPerDay:         c.exposedPerDay.Load(),
		TestsRunPerDay:        c.Healthcare.TestsRunPerDay(),
		R:                     r,
	}
}
