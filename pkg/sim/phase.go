package sim

import (
	"time"

	"tradeprobe/pkg/strategies"

	"github.com/pkg/errors"
)

// PhaseSpec describes a phase before the run length is known. A phase takes
// either a fixed Duration or a Weight share of whatever the fixed phases
// leave of the total.
type PhaseSpec struct {
	Name      string        `mapstructure:"name"`
	Generator string        `mapstructure:"generator"`
	Weight    float64       `mapstructure:"weight"`
	Duration  time.Duration `mapstructure:"duration"`
}

type Phase struct {
	Name      string
	Duration  time.Duration
	Generator strategies.Generator
}

// DefaultPhases splits a run 2:10:3, the proportions of the 15 minute
// reference simulation.
var DefaultPhases = []PhaseSpec{
	{Name: "burst-production", Generator: "burst-production", Weight: 2},
	{Name: "mixed-trading", Generator: "mixed-trading", Weight: 10},
	{Name: "competitive-trading", Generator: "competitive-trading", Weight: 3},
}

// Plan resolves specs against a total run length. An empty spec list means
// DefaultPhases.
func Plan(specs []PhaseSpec, total time.Duration) ([]Phase, error) {
	if len(specs) == 0 {
		specs = DefaultPhases
	}

	var fixed time.Duration
	var weights float64
	for i, s := range specs {
		switch {
		case s.Duration < 0 || s.Weight < 0:
			return nil, errors.Errorf("phase %d (%s): negative length", i, s.Name)
		case s.Duration > 0:
			fixed += s.Duration
		case s.Weight > 0:
			weights += s.Weight
		default:
			return nil, errors.Errorf("phase %d (%s): needs a duration or a weight", i, s.Name)
		}
	}

	rest := total - fixed
	if weights > 0 && rest <= 0 {
		return nil, errors.Errorf("fixed phases take %s of %s, nothing left for weighted phases", fixed, total)
	}

	phases := make([]Phase, 0, len(specs))
	for i, s := range specs {
		name := s.Generator
		if name == "" {
			name = s.Name
		}
		gen, err := strategies.GeneratorByName(name)
		if err != nil {
			return nil, errors.Wrapf(err, "phase %d (%s)", i, s.Name)
		}

		d := s.Duration
		if d == 0 {
			d = time.Duration(float64(rest) * s.Weight / weights)
		}
		label := s.Name
		if label == "" {
			label = gen.Name()
		}
		phases = append(phases, Phase{Name: label, Duration: d, Generator: gen})
	}
	return phases, nil
}

// Total is the planned run length.
func Total(phases []Phase) time.Duration {
	var d time.Duration
	for _, p := range phases {
		d += p.Duration
	}
	return d
}
