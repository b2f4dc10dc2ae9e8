// Package decode turns raw measured bitstrings back into record identifiers
// and hit statistics. The transformation is the inverse of the block layout:
// a block-local index measured by the circuit, shifted into the global record
// space by the block id.
package decode

import (
	"sort"

	"qscan/internal/probe"
)

// LocalRID reads the block-local record index out of a raw bitstring using
// the calibrated bit order. Channel 0 is the rightmost character. Logical
// bits whose channel is unresolved or out of range for this payload simply
// contribute zero, the same lenient read the calibration path uses.
func LocalRID(bitstr string, m *probe.BitOrderMap, blockBits int) int {
	rid := 0
	for qi := 0; qi < blockBits; qi++ {
		ch, ok := m.Channel(qi)
		if !ok {
			continue
		}
		pos := len(bitstr) - 1 - ch
		if pos < 0 || pos >= len(bitstr) {
			continue
		}
		if bitstr[pos] == '1' {
			rid |= 1 << qi
		}
	}
	return rid
}

// GlobalRID composes a global record id from block coordinates.
func GlobalRID(blockID, blockBits, localRID int) int {
	return blockID<<blockBits | localRID
}

// SplitRID is the inverse of GlobalRID; the pair round-trips losslessly for
// any localRID representable in blockBits.
func SplitRID(globalRID, blockBits int) (blockID, localRID int) {
	return globalRID >> blockBits, globalRID & (1<<blockBits - 1)
}

// Hit is the per-scale hit statistics block of the run report.
type Hit struct {
	PAnyHit       float64 `json:"p_any_hit"`
	Top1Bitstring string  `json:"top1_bitstring,omitempty"`
	Top1Prob      float64 `json:"top1_prob"`
	Top1LocalRID  int     `json:"top1_local_rid"`
	Top1GlobalRID int     `json:"top1_global_rid"`
	Top1Hit       bool    `json:"top1_hit"`
}

// Outcome is one (bitstring, probability) pair of the measured distribution.
type Outcome struct {
	Bitstring string  `json:"bitstring"`
	Prob      float64 `json:"prob"`
}

// AnalyzeHits decodes a measured distribution against the target set:
// PAnyHit is the total mass landing on target records, and Top1 describes
// the most probable outcome with ties broken toward the lowest decoded
// global rid. Pure and deterministic: re-running over the same inputs
// yields identical results.
func AnalyzeHits(probs map[string]float64, m *probe.BitOrderMap, blockID, blockBits int, targetRIDs []int) Hit {
	var hit Hit
	if len(probs) == 0 {
		return hit
	}

	targets := make(map[int]struct{}, len(targetRIDs))
	for _, t := range targetRIDs {
		targets[t] = struct{}{}
	}

	bitstrs := make([]string, 0, len(probs))
	for bitstr := range probs {
		bitstrs = append(bitstrs, bitstr)
	}
	sort.Strings(bitstrs)

	first := true
	for _, bitstr := range bitstrs {
		p := probs[bitstr]
		local := LocalRID(bitstr, m, blockBits)
		global := GlobalRID(blockID, blockBits, local)

		if _, ok := targets[global]; ok {
			hit.PAnyHit += p
		}

		if first || p > hit.Top1Prob || (p == hit.Top1Prob && global < hit.Top1GlobalRID) {
			hit.Top1Bitstring = bitstr
			hit.Top1Prob = p
			hit.Top1LocalRID = local
			hit.Top1GlobalRID = global
			first = false
		}
	}

	_, hit.Top1Hit = targets[hit.Top1GlobalRID]
	return hit
}

// TopK returns the k most probable outcomes, probability descending, equal
// masses ordered by bitstring for a stable artifact.
func TopK(probs map[string]float64, k int) []Outcome {
	out := make([]Outcome, 0, len(probs))
	for bitstr, p := range probs {
		out = append(out, Outcome{Bitstring: bitstr, Prob: p})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Prob != out[j].Prob {
			return out[i].Prob > out[j].Prob
		}
		return out[i].Bitstring < out[j].Bitstring
	})
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}
