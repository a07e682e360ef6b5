// Package bench measures the matching algorithms over generated datasets of
// increasing size and records the timings.
package bench

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"linesearch/internal/match"
)

// Query modes.
const (
	QueryRandom  = "random"
	QueryPresent = "present"
)

// Plan describes one benchmark run.
type Plan struct {
	Sizes      []int    `toml:"sizes"`
	LineLength int      `toml:"line_length"`
	Algorithms []string `toml:"algorithms"`
	Seed       int64    `toml:"seed"`
	Reread     []bool   `toml:"reread"`
	QueryMode  string   `toml:"query_mode"`
	// Dir holds the generated files; empty means the OS temp dir.
	Dir string `toml:"dir"`
}

// DefaultPlan benchmarks every algorithm over 10k to 1M lines of 20
// alphanumeric characters, in both reread modes.
func DefaultPlan() Plan {
	return Plan{
		Sizes:      []int{10000, 50000, 100000, 250000, 500000, 750000, 1000000},
		LineLength: 20,
		Algorithms: match.Names(),
		Seed:       1,
		Reread:     []bool{false, true},
		QueryMode:  QueryRandom,
	}
}

// LoadPlan reads a TOML plan over the defaults. Unknown keys are an error.
func LoadPlan(path string) (Plan, error) {
	plan := DefaultPlan()
	md, err := toml.DecodeFile(path, &plan)
	if err != nil {
		return Plan{}, fmt.Errorf("failed to parse plan %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Plan{}, fmt.Errorf("unknown keys in plan %s: %s", path, strings.Join(keys, ", "))
	}
	return plan, plan.Validate()
}

// Validate checks the plan.
func (p Plan) Validate() error {
	if len(p.Sizes) == 0 {
		return fmt.Errorf("plan has no sizes")
	}
	for _, s := range p.Sizes {
		if s <= 0 {
			return fmt.Errorf("invalid size %d", s)
		}
	}
	if p.LineLength <= 0 {
		return fmt.Errorf("invalid line_length %d", p.LineLength)
	}
	if len(p.Reread) == 0 {
		return fmt.Errorf("plan has no reread modes")
	}
	if p.QueryMode != QueryRandom && p.QueryMode != QueryPresent {
		return fmt.Errorf("unsupported query_mode %q", p.QueryMode)
	}
	if _, err := match.Resolve(p.Algorithms); err != nil {
		return err
	}
	return nil
}
