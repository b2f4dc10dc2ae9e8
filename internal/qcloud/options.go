package qcloud

import "sort"

// Options is the set of backend execution knobs sent with a submission. Keys
// must come from the known schema below; Validate rejects anything else
// before a single byte goes over the wire.
type Options map[string]bool

// knownOptions is the closed option schema. Each knob gates a service-side
// processing step that has historically produced compilation or compensation
// failures on real hardware, which is why the minimal profile turns every one
// of them off.
var knownOptions = map[string]struct{}{
	"compensation":         {},
	"readout_mitigation":   {},
	"noise_correction":     {},
	"circuit_optimization": {},
	"mapping":              {},
	"calibration":          {},
}

// MinimalOptions returns the stability profile used by the experiments: all
// schema knobs explicitly disabled. The returned map doubles as the
// "applied options" metadata in the run report.
func MinimalOptions() Options {
	o := make(Options, len(knownOptions))
	for name := range knownOptions {
		o[name] = false
	}
	return o
}

// Validate checks every key against the schema. A nil Options is valid and
// means "backend defaults".
func (o Options) Validate() *PipelineError {
	for name := range o {
		if _, ok := knownOptions[name]; !ok {
			return newError(StageConfigure, CategoryConfiguration, "unknown execution option %q", name)
		}
	}
	return nil
}

// Names returns the option keys in stable order, for logging.
func (o Options) Names() []string {
	names := make([]string, 0, len(o))
	for name := range o {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
