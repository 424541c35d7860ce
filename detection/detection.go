// Package detection implements MEV Detection (C5): a set of detectors runs
// over a fair-ordered batch and annotates it with incidents and the actions
// they warrant, gated by a confidence threshold.
package detection

import (
	"github.com/mevshield/mevshield/core/types"
	"github.com/mevshield/mevshield/ordering"
)

// IncidentKind identifies the type of MEV incident a Detector can report,
// generalizing the builder coordinator's closed slashing-condition variant
// to the ordering layer's incident taxonomy.
type IncidentKind string

const (
	IncidentSandwich   IncidentKind = "sandwich"
	IncidentFrontRun   IncidentKind = "front_run"
	IncidentBackRunJIT IncidentKind = "back_run_jit"
	IncidentArbitrage  IncidentKind = "arbitrage"
)

// ActionKind is the remediation an incident may trigger.
type ActionKind string

const (
	ActionFlag       ActionKind = "flag"
	ActionStrip      ActionKind = "strip"
	ActionQuarantine ActionKind = "quarantine"
)

// Incident is one detector's finding: a kind, the tx ids it implicates, a
// confidence in [0,1], and an estimated value extracted (used by both the
// gating policy and the redistribution ledger's accrual).
type Incident struct {
	Kind          IncidentKind
	TxIDs         []types.Hash
	Confidence    float64
	EstimatedValue uint64
}

// Action pairs a remediation with the tx id it applies to.
type Action struct {
	Kind ActionKind
	TxID types.Hash
}

// Annotations is C5's public output: analyze(ordered_batch) → Annotations.
type Annotations struct {
	Incidents []Incident
	Actions   []Action
}

// Detector is implemented by each MEV pattern detector.
type Detector interface {
	Kind() IncidentKind
	Detect(batch *ordering.OrderedBatch) []Incident
}

// Policy configures per-chain detection gating and the incident→action map.
type Policy struct {
	ConfidenceThreshold float64
	ActionFor           map[IncidentKind]ActionKind
	// FrontRunWindow bounds how many ordered positions apart a pair may be
	// for the front-run detector to consider them related.
	FrontRunWindow int
	// FrontRunGasMargin is the minimum gas_price premium (in the same units
	// as TX.GasPrice) a later-submitted-but-earlier-ranked tx must show.
	FrontRunGasMargin uint64
}

// DefaultPolicy returns the spec's default gating/action policy:
// confidence_threshold=0.8, Sandwich→Quarantine, FrontRun→Strip,
// Arbitrage→Flag.
func DefaultPolicy() Policy {
	return Policy{
		ConfidenceThreshold: 0.8,
		ActionFor: map[IncidentKind]ActionKind{
			IncidentSandwich:   ActionQuarantine,
			IncidentFrontRun:   ActionStrip,
			IncidentBackRunJIT: ActionFlag,
			IncidentArbitrage:  ActionFlag,
		},
		FrontRunWindow:    8,
		FrontRunGasMargin: 1,
	}
}

// Engine runs a set of detectors over an ordered batch and turns their
// incidents into gated actions.
type Engine struct {
	detectors []Detector
	policy    Policy
}

// NewEngine builds a detection Engine from the given detectors and policy.
func NewEngine(policy Policy, detectors ...Detector) *Engine {
	return &Engine{detectors: detectors, policy: policy}
}

// Policy returns the gating/action policy this engine was built with, so
// callers downstream of Analyze (e.g. the orchestrator's accrual step) can
// tell which incidents actually triggered a redistributable action.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Analyze implements the public contract:
//
//	analyze(ordered_batch) → Annotations{incidents, actions}
//
// A detection is actionable only once confidence >= ConfidenceThreshold;
// below that it is recorded in Incidents but produces no Action.
func (e *Engine) Analyze(batch *ordering.OrderedBatch) Annotations {
	var out Annotations
	for _, d := range e.detectors {
		for _, inc := range d.Detect(batch) {
			out.Incidents = append(out.Incidents, inc)
			if inc.Confidence < e.policy.ConfidenceThreshold {
				continue
			}
			action, ok := e.policy.ActionFor[inc.Kind]
			if !ok {
				continue
			}
			for _, id := range targetsFor(inc) {
				out.Actions = append(out.Actions, Action{Kind: action, TxID: id})
			}
		}
	}
	return out
}

// targetsFor selects which of an incident's implicated tx ids the action
// applies to: Sandwich quarantines the victim (the middle of the A,V,B'
// triple); FrontRun strips the front-runner (the later-submitted tx);
// everything else applies to every implicated id.
func targetsFor(inc Incident) []types.Hash {
	switch inc.Kind {
	case IncidentSandwich:
		if len(inc.TxIDs) == 3 {
			return []types.Hash{inc.TxIDs[1]}
		}
	case IncidentFrontRun:
		if len(inc.TxIDs) == 2 {
			return []types.Hash{inc.TxIDs[0]}
		}
	}
	return inc.TxIDs
}

// confidence combines normalized, independent feature scores (each in
// [0,1]) into a single score via a weighted sum, clamped to [0,1]. Shared
// by every detector below so their confidence scales are comparable.
func confidence(weights []float64, features []float64) float64 {
	var sum, wsum float64
	for i := range features {
		sum += weights[i] * features[i]
		wsum += weights[i]
	}
	if wsum == 0 {
		return 0
	}
	c := sum / wsum
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// normalize maps a non-negative magnitude into [0,1] via x/(x+k), a
// smooth saturating curve that needs no fixed upper bound on the input.
func normalize(x, k float64) float64 {
	if x <= 0 {
		return 0
	}
	return x / (x + k)
}
