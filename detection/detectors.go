package detection

import (
	"math"

	"github.com/mevshield/mevshield/core/types"
	"github.com/mevshield/mevshield/ordering"
)

// sameCall reports whether two transactions touch the same (target,
// selector) pair, the signal every detector below anchors on: MEV against
// a pool or contract call only makes sense among transactions that call it.
func sameCall(a, b *types.TX) bool {
	return a.Target == b.Target && a.Target != (types.Address{}) && a.Selector == b.Selector
}

func gasPriceF(tx *types.TX) float64 {
	if tx.GasPrice == nil {
		return 0
	}
	return float64(tx.GasPrice.Uint64())
}

// SandwichDetector finds (A, V, B') triples from the spec: A and B' share a
// sender, V is a different sender, all three touch the same (target,
// selector), and A's gas-price premium over V together with a size
// asymmetry between V and A signals a bracket attack.
type SandwichDetector struct{}

func (SandwichDetector) Kind() IncidentKind { return IncidentSandwich }

func (SandwichDetector) Detect(batch *ordering.OrderedBatch) []Incident {
	if batch == nil {
		return nil
	}
	items := batch.Items
	var incidents []Incident
	for i := 0; i < len(items); i++ {
		a := items[i]
		for j := i + 1; j < len(items); j++ {
			v := items[j]
			if v.Sender == a.Sender || !sameCall(a, v) {
				continue
			}
			for k := j + 1; k < len(items); k++ {
				bPrime := items[k]
				if bPrime.Sender != a.Sender || !sameCall(a, bPrime) {
					continue
				}

				gasPremium := normalize(gasPriceF(a)-gasPriceF(v), gasPriceF(v)+1)
				sizeAsymmetry := normalize(math.Abs(float64(v.Size)-float64(a.Size)), float64(v.Size+a.Size+1))
				// Price-impact direction match: A and B' bracket V only if
				// A ranks strictly before V and B' strictly after, which
				// the loop bounds (i<j<k) already guarantee.
				directionMatch := 1.0

				c := confidence([]float64{0.4, 0.3, 0.3}, []float64{directionMatch, sizeAsymmetry, gasPremium})
				if c <= 0 {
					continue
				}
				idA, _ := a.Fingerprint()
				idV, _ := v.Fingerprint()
				idB, _ := bPrime.Fingerprint()
				incidents = append(incidents, Incident{
					Kind:           IncidentSandwich,
					TxIDs:          []types.Hash{idA, idV, idB},
					Confidence:     c,
					EstimatedValue: estimatedValue(a, v, bPrime),
				})
			}
		}
	}
	return incidents
}

// FrontRunDetector finds pairs (A, V) calling the same selector/target
// where A was submitted later than V but ranks before it in the ordered
// batch, and A's gas price exceeds V's by the configured margin.
type FrontRunDetector struct {
	Window    int
	GasMargin uint64
}

func (FrontRunDetector) Kind() IncidentKind { return IncidentFrontRun }

func (d FrontRunDetector) Detect(batch *ordering.OrderedBatch) []Incident {
	if batch == nil {
		return nil
	}
	items := batch.Items
	window := d.Window
	if window <= 0 {
		window = len(items)
	}
	var incidents []Incident
	for i := 0; i < len(items); i++ {
		a := items[i]
		hi := i + window
		if hi > len(items) {
			hi = len(items)
		}
		for j := i + 1; j < hi; j++ {
			v := items[j]
			if !sameCall(a, v) || a.Sender == v.Sender {
				continue
			}
			if a.SubmissionTime <= v.SubmissionTime {
				continue // A must have been submitted later than V
			}
			if gasPriceF(a) <= gasPriceF(v)+float64(d.GasMargin) {
				continue
			}

			submitGap := normalize(float64(a.SubmissionTime-v.SubmissionTime), 1)
			rankGap := normalize(float64(j-i), float64(window))
			gasPremium := normalize(gasPriceF(a)-gasPriceF(v), gasPriceF(v)+1)

			c := confidence([]float64{0.4, 0.2, 0.4}, []float64{gasPremium, rankGap, submitGap})
			if c <= 0 {
				continue
			}
			idA, _ := a.Fingerprint()
			idV, _ := v.Fingerprint()
			incidents = append(incidents, Incident{
				Kind:           IncidentFrontRun,
				TxIDs:          []types.Hash{idA, idV},
				Confidence:     c,
				EstimatedValue: estimatedValue(a, v),
			})
		}
	}
	return incidents
}

// BackRunJITDetector finds adjacent (V, B) pairs where B is a liquidity
// add/remove on the same pool immediately around V — a just-in-time
// liquidity insertion that captures V's fee/slippage without bracketing it.
type BackRunJITDetector struct {
	// LiquiditySelectors identifies which 4-byte selectors correspond to
	// add/remove-liquidity calls, configurable per chain/router.
	LiquiditySelectors map[[4]byte]bool
}

func (BackRunJITDetector) Kind() IncidentKind { return IncidentBackRunJIT }

func (d BackRunJITDetector) Detect(batch *ordering.OrderedBatch) []Incident {
	if batch == nil || len(d.LiquiditySelectors) == 0 {
		return nil
	}
	items := batch.Items
	var incidents []Incident
	for i := 0; i+1 < len(items); i++ {
		v, b := items[i], items[i+1]
		if d.LiquiditySelectors[v.Selector] {
			continue // V itself must be an ordinary call, not liquidity
		}
		if !d.LiquiditySelectors[b.Selector] || b.Target != v.Target {
			continue
		}
		c := confidence([]float64{1}, []float64{1})
		idV, _ := v.Fingerprint()
		idB, _ := b.Fingerprint()
		incidents = append(incidents, Incident{
			Kind:           IncidentBackRunJIT,
			TxIDs:          []types.Hash{idV, idB},
			Confidence:     c,
			EstimatedValue: estimatedValue(v, b),
		})
	}
	return incidents
}

// ArbitrageDetector finds a single sender calling through a cycle of same-
// slot DEX targets whose net extracted value exceeds a threshold.
type ArbitrageDetector struct {
	ValueThreshold uint64
}

func (ArbitrageDetector) Kind() IncidentKind { return IncidentArbitrage }

func (d ArbitrageDetector) Detect(batch *ordering.OrderedBatch) []Incident {
	if batch == nil {
		return nil
	}
	bySender := make(map[types.Address][]*types.TX)
	for _, tx := range batch.Items {
		bySender[tx.Sender] = append(bySender[tx.Sender], tx)
	}

	var incidents []Incident
	for _, txs := range bySender {
		if len(txs) < 2 {
			continue
		}
		seen := make(map[types.Address]bool)
		var cycle []*types.TX
		closed := false
		for _, tx := range txs {
			if tx.Target == (types.Address{}) {
				continue
			}
			if seen[tx.Target] {
				cycle = append(cycle, tx) // revisiting a target closes a cycle
				closed = true
				continue
			}
			seen[tx.Target] = true
			cycle = append(cycle, tx)
		}
		if !closed || len(cycle) < 2 {
			continue
		}

		var netValue uint64
		for _, tx := range cycle {
			netValue += tx.Size
		}
		if netValue <= d.ValueThreshold {
			continue
		}

		ids := make([]types.Hash, len(cycle))
		for i, tx := range cycle {
			ids[i], _ = tx.Fingerprint()
		}
		c := confidence([]float64{1}, []float64{normalize(float64(netValue-d.ValueThreshold), float64(d.ValueThreshold+1))})
		incidents = append(incidents, Incident{
			Kind:           IncidentArbitrage,
			TxIDs:          ids,
			Confidence:     c,
			EstimatedValue: netValue,
		})
	}
	return incidents
}

// estimatedValue is a conservative, oracle-free proxy for the value an
// incident extracted: the gas-price premium of the highest payer over the
// lowest, multiplied by the smallest declared size among the implicated
// transactions — computable entirely from fields already present on TX,
// with no external price-impact oracle.
func estimatedValue(txs ...*types.TX) uint64 {
	if len(txs) == 0 {
		return 0
	}
	maxGas, minGas := gasPriceF(txs[0]), gasPriceF(txs[0])
	minSize := txs[0].Size
	for _, tx := range txs[1:] {
		g := gasPriceF(tx)
		if g > maxGas {
			maxGas = g
		}
		if g < minGas {
			minGas = g
		}
		if tx.Size < minSize {
			minSize = tx.Size
		}
	}
	premium := maxGas - minGas
	if premium < 0 {
		premium = 0
	}
	return uint64(premium) * minSize
}
