package probe

import (
	"context"

	"go.uber.org/zap"

	"qscan/internal/circuit"
	"qscan/internal/qcloud"
)

// Config holds the calibration parameters.
type Config struct {
	// NbitsMax is the measured register width, shared with the search
	// circuits so one mapping serves both.
	NbitsMax int
	// Shots per calibration circuit.
	Shots int
	// MinMarginal is the minimum one-probability a channel must show to be
	// attributed to the excited qubit.
	MinMarginal float64
	// MinLead is the minimum gap over the runner-up channel. A winner that
	// does not lead decisively is ambiguous and the qubit stays unresolved.
	MinLead float64
}

// DefaultConfig matches the production calibration runs.
func DefaultConfig() Config {
	return Config{
		NbitsMax:    10,
		Shots:       2000,
		MinMarginal: 0.5,
		MinLead:     0.1,
	}
}

// TopOutcome is the most likely bitstring seen for one calibration trial,
// kept in the report as evidence for the inferred mapping.
type TopOutcome struct {
	Bitstring string  `json:"bitstring"`
	Prob      float64 `json:"prob"`
}

// Result is the full calibration output. Map is partial: a trial that failed
// or came back ambiguous leaves its qubit unresolved rather than guessed.
type Result struct {
	NbitsMax     int
	Shots        int
	Map          *BitOrderMap
	TopBitstring map[int]TopOutcome
	Marginals    map[int][]float64
}

// Prober runs the calibration protocol through the shared execution client.
type Prober struct {
	client *qcloud.Client
	cfg    Config
	logger *zap.Logger
}

// NewProber wires the prober to a client session. A nil logger disables
// logging.
func NewProber(client *qcloud.Client, cfg Config, logger *zap.Logger) *Prober {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prober{client: client, cfg: cfg, logger: logger}
}

// Run probes every qubit in turn: excite it alone, read which channel's
// marginal lights up. Trial failures and ambiguous distributions mark the
// qubit unresolved and probing continues with the rest; Run itself only
// fails on malformed configuration.
func (p *Prober) Run(ctx context.Context) (*Result, error) {
	res := &Result{
		NbitsMax:     p.cfg.NbitsMax,
		Shots:        p.cfg.Shots,
		Map:          NewBitOrderMap(p.cfg.NbitsMax),
		TopBitstring: make(map[int]TopOutcome),
		Marginals:    make(map[int][]float64),
	}

	for q := 0; q < p.cfg.NbitsMax; q++ {
		circ, err := circuit.Calibration(p.cfg.NbitsMax, q)
		if err != nil {
			return nil, err
		}

		outcome := p.client.Run(ctx, circ, p.cfg.Shots, qcloud.MinimalOptions())
		if !outcome.OK() {
			p.logger.Warn("calibration trial failed, leaving qubit unresolved",
				zap.Int("qubit", q),
				zap.String("stage", string(outcome.Err.Stage)),
				zap.String("error", outcome.Err.Message))
			continue
		}

		if top, ok := topOutcome(outcome.Probs); ok {
			res.TopBitstring[q] = top
		}

		marg := marginals(outcome.Probs)
		res.Marginals[q] = marg

		channel, ok := p.attribute(marg)
		if !ok {
			p.logger.Warn("ambiguous calibration distribution, leaving qubit unresolved",
				zap.Int("qubit", q))
			continue
		}
		if err := res.Map.Set(q, channel); err != nil {
			// Channel already claimed by an earlier qubit; keep the map
			// injective and let the fallback handle this position.
			p.logger.Warn("conflicting channel claim, leaving qubit unresolved",
				zap.Int("qubit", q),
				zap.Int("channel", channel),
				zap.Error(err))
			continue
		}
		p.logger.Debug("qubit resolved",
			zap.Int("qubit", q),
			zap.Int("channel", channel),
			zap.Float64("marginal", marg[channel]))
	}

	return res, nil
}

// attribute picks the channel whose marginal clearly indicates the excited
// qubit, or reports ambiguity.
func (p *Prober) attribute(marg []float64) (int, bool) {
	if len(marg) == 0 {
		return 0, false
	}
	best, second := -1, -1
	for ch, v := range marg {
		switch {
		case best < 0 || v > marg[best]:
			second = best
			best = ch
		case second < 0 || v > marg[second]:
			second = ch
		}
	}
	if marg[best] < p.cfg.MinMarginal {
		return 0, false
	}
	if second >= 0 && marg[best]-marg[second] < p.cfg.MinLead {
		return 0, false
	}
	return best, true
}

// marginals sums, per channel, the probability mass of outcomes where that
// channel reads 1. Channel 0 is the rightmost character.
func marginals(probs map[string]float64) []float64 {
	width := 0
	for bitstr := range probs {
		width = len(bitstr)
		break
	}
	if width == 0 {
		return nil
	}
	marg := make([]float64, width)
	for bitstr, p := range probs {
		if len(bitstr) != width {
			continue
		}
		for ch := 0; ch < width; ch++ {
			if bitstr[width-1-ch] == '1' {
				marg[ch] += p
			}
		}
	}
	return marg
}

func topOutcome(probs map[string]float64) (TopOutcome, bool) {
	var top TopOutcome
	found := false
	for bitstr, p := range probs {
		if !found || p > top.Prob || (p == top.Prob && bitstr < top.Bitstring) {
			top = TopOutcome{Bitstring: bitstr, Prob: p}
			found = true
		}
	}
	return top, found
}
