// Package circuit builds gate sequences for the equality-search experiments.
//
// The target hardware exposes exactly two native primitives: a general
// single-qubit rotation (U3) and a two-qubit controlled-phase (CZ). Everything
// else (H, X, Z, Rz, CNOT, Toffoli, multi-controlled Z) is decomposed here
// explicitly so the submitted program never references a gate the backend
// would have to synthesize.
package circuit

import (
	"errors"
	"fmt"
	"math"
)

// GateKind discriminates the three operations a Circuit may contain.
type GateKind int

const (
	// GateU3 is the native single-qubit rotation U3(theta, phi, lambda).
	GateU3 GateKind = iota
	// GateCZ is the native controlled-phase gate.
	GateCZ
	// GateMeasure reads one qubit into one classical bit.
	GateMeasure
)

func (k GateKind) String() string {
	switch k {
	case GateU3:
		return "u3"
	case GateCZ:
		return "cz"
	case GateMeasure:
		return "measure"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Gate is one operation in a circuit. Which fields are meaningful depends on
// Kind: U3 uses Qubit+angles, CZ uses Control+Target, Measure uses Qubit+CBit.
type Gate struct {
	Kind GateKind

	// U3 / Measure
	Qubit int
	CBit  int

	// U3 angles in radians.
	Theta  float64
	Phi    float64
	Lambda float64

	// CZ endpoints.
	Control int
	Target  int
}

// Circuit is an ordered gate sequence over NumQubits qubits.
type Circuit struct {
	NumQubits int
	Gates     []Gate
}

// ErrInvalidTarget marks a search target outside the representable range of
// the requested block width.
var ErrInvalidTarget = errors.New("target out of range for block width")

// Depth returns the number of native gate operations (measurements excluded).
// It is a conservative proxy for hardware depth, used to pre-check circuits
// against the backend's depth ceiling before submission.
func (c *Circuit) Depth() int {
	n := 0
	for _, g := range c.Gates {
		if g.Kind != GateMeasure {
			n++
		}
	}
	return n
}

func (c *Circuit) u3(q int, theta, phi, lambda float64) {
	c.Gates = append(c.Gates, Gate{Kind: GateU3, Qubit: q, Theta: theta, Phi: phi, Lambda: lambda})
}

func (c *Circuit) cz(ctrl, tgt int) {
	c.Gates = append(c.Gates, Gate{Kind: GateCZ, Control: ctrl, Target: tgt})
}

func (c *Circuit) measure(q, cbit int) {
	c.Gates = append(c.Gates, Gate{Kind: GateMeasure, Qubit: q, CBit: cbit})
}

// Derived single-qubit gates, all expressed through U3.

func (c *Circuit) rz(q int, lambda float64) { c.u3(q, 0, 0, lambda) }
func (c *Circuit) x(q int)                  { c.u3(q, math.Pi, 0, math.Pi) }
func (c *Circuit) z(q int)                  { c.rz(q, math.Pi) }
func (c *Circuit) h(q int)                  { c.u3(q, math.Pi/2, 0, math.Pi) }
func (c *Circuit) t(q int)                  { c.rz(q, math.Pi/4) }
func (c *Circuit) tdg(q int)                { c.rz(q, -math.Pi/4) }

// cnot is CNOT(ctrl, tgt) = H(tgt) · CZ(ctrl, tgt) · H(tgt).
func (c *Circuit) cnot(ctrl, tgt int) {
	c.h(tgt)
	c.cz(ctrl, tgt)
	c.h(tgt)
}

// ccx is the standard 6-CNOT Toffoli decomposition using T/Tdg phases.
func (c *Circuit) ccx(a, b, tgt int) {
	c.h(tgt)

	c.cnot(b, tgt)
	c.tdg(tgt)

	c.cnot(a, tgt)
	c.t(tgt)

	c.cnot(b, tgt)
	c.tdg(tgt)

	c.cnot(a, tgt)
	c.t(b)
	c.t(tgt)

	c.h(tgt)

	c.cnot(a, b)
	c.t(a)
	c.tdg(b)
	c.cnot(a, b)
}

// cmz applies Z on tgt controlled by every qubit in controls, computing the
// AND of the controls into an ancilla ladder of Toffolis and uncomputing it
// afterwards. The ladder needs len(controls)-1 ancillas when there are two or
// more controls.
func (c *Circuit) cmz(controls []int, tgt int, ancillas []int) error {
	m := len(controls)
	switch m {
	case 0:
		c.z(tgt)
		return nil
	case 1:
		c.cz(controls[0], tgt)
		return nil
	}

	need := m - 1
	if len(ancillas) < need {
		return fmt.Errorf("multi-controlled Z needs %d ancillas, have %d", need, len(ancillas))
	}

	c.ccx(controls[0], controls[1], ancillas[0])
	for i := 2; i < m; i++ {
		c.ccx(ancillas[i-2], controls[i], ancillas[i-1])
	}

	c.cz(ancillas[need-1], tgt)

	for i := m - 1; i >= 2; i-- {
		c.ccx(ancillas[i-2], controls[i], ancillas[i-1])
	}
	c.ccx(controls[0], controls[1], ancillas[0])
	return nil
}

// bitsOf returns the n low bits of x, index 0 = LSB, matching qubit ordering.
func bitsOf(x, n int) []int {
	bits := make([]int, n)
	for i := 0; i < n; i++ {
		bits[i] = (x >> i) & 1
	}
	return bits
}

// oraclePhaseFlip flips the phase of each target basis state: X on every
// zero bit, multi-controlled Z, X back.
func (c *Circuit) oraclePhaseFlip(active []int, ancillas []int, targets []int) error {
	n := len(active)
	if n == 0 {
		return nil
	}
	if n == 1 {
		for _, t := range targets {
			if t&1 == 0 {
				c.x(active[0])
				c.z(active[0])
				c.x(active[0])
			} else {
				c.z(active[0])
			}
		}
		return nil
	}

	controls := active[:n-1]
	tgt := active[n-1]
	ancUse := ancillas[:max(0, len(controls)-1)]

	for _, t := range targets {
		bits := bitsOf(t, n)
		for i, q := range active {
			if bits[i] == 0 {
				c.x(q)
			}
		}
		if err := c.cmz(controls, tgt, ancUse); err != nil {
			return err
		}
		for i, q := range active {
			if bits[i] == 0 {
				c.x(q)
			}
		}
	}
	return nil
}

// diffusion is the inversion-about-mean operator: H^n X^n C^{n-1}Z X^n H^n.
func (c *Circuit) diffusion(active []int, ancillas []int) error {
	n := len(active)
	if n == 0 {
		return nil
	}
	if n == 1 {
		c.h(active[0])
		c.x(active[0])
		c.z(active[0])
		c.x(active[0])
		c.h(active[0])
		return nil
	}

	for _, q := range active {
		c.h(q)
	}
	for _, q := range active {
		c.x(q)
	}

	controls := active[:n-1]
	tgt := active[n-1]
	if err := c.cmz(controls, tgt, ancillas[:max(0, len(controls)-1)]); err != nil {
		return err
	}

	for _, q := range active {
		c.x(q)
	}
	for _, q := range active {
		c.h(q)
	}
	return nil
}

// RecommendedIters is the textbook iteration count floor(pi/4 * sqrt(N/M)).
// The pipeline does not use it at runtime, where the iteration count is a
// fixed depth-bounded configuration value, but it is kept for planning math.
func RecommendedIters(n, m int) int {
	if m < 1 {
		m = 1
	}
	return int(math.Floor(math.Pi / 4.0 * math.Sqrt(float64(n)/float64(m))))
}

// Grover builds one block-local equality-search circuit: uniform superposition
// over blockBits active qubits, then iters rounds of oracle + diffusion, then
// measurement of the first nbitsMax qubits. Measuring a fixed width regardless
// of blockBits keeps the readout shape identical to the calibration circuits,
// so one bit-order map serves both.
//
// Targets are block-local record indices and must fit in blockBits bits;
// violations fail with ErrInvalidTarget before any gate is emitted.
func Grover(blockBits, nbitsMax int, targets []int, iters int) (*Circuit, error) {
	if blockBits < 1 {
		return nil, fmt.Errorf("block width must be >= 1, got %d", blockBits)
	}
	if blockBits > nbitsMax {
		return nil, fmt.Errorf("block width %d exceeds measured width %d", blockBits, nbitsMax)
	}
	if iters < 1 {
		return nil, fmt.Errorf("iteration count must be >= 1, got %d", iters)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no search targets given")
	}
	limit := 1 << blockBits
	for _, t := range targets {
		if t < 0 || t >= limit {
			return nil, fmt.Errorf("%w: target %d, block width %d", ErrInvalidTarget, t, blockBits)
		}
	}

	active := make([]int, blockBits)
	for i := range active {
		active[i] = i
	}

	// Ancillas for the C^{n-1}Z ladder live above the measured register.
	ancNeeded := max(0, blockBits-2)
	ancillas := make([]int, ancNeeded)
	for i := range ancillas {
		ancillas[i] = nbitsMax + i
	}

	c := &Circuit{NumQubits: nbitsMax + ancNeeded}

	for _, q := range active {
		c.h(q)
	}

	for i := 0; i < iters; i++ {
		if err := c.oraclePhaseFlip(active, ancillas, targets); err != nil {
			return nil, err
		}
		if err := c.diffusion(active, ancillas); err != nil {
			return nil, err
		}
	}

	for i := 0; i < nbitsMax; i++ {
		c.measure(i, i)
	}
	return c, nil
}

// Calibration builds the bit-order probe circuit: X on exactly one qubit,
// measure all nbitsMax qubits. The excited qubit shows up as a near-one
// marginal on whichever output channel the hardware routes it to.
func Calibration(nbitsMax, exciteQubit int) (*Circuit, error) {
	if nbitsMax < 1 {
		return nil, fmt.Errorf("measured width must be >= 1, got %d", nbitsMax)
	}
	if exciteQubit < 0 || exciteQubit >= nbitsMax {
		return nil, fmt.Errorf("excite qubit %d outside measured width %d", exciteQubit, nbitsMax)
	}

	c := &Circuit{NumQubits: nbitsMax}
	c.x(exciteQubit)
	for i := 0; i < nbitsMax; i++ {
		c.measure(i, i)
	}
	return c, nil
}
