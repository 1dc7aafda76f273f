// Package passes implements graph rewrites applied at graph-load time,
// before any execution planning.
//
// The only pass currently provided is FreeDimensionsPass, which binds
// concrete sizes to the free, denoted dimensions of a graph's declared
// inputs. Internal node shapes are not touched: they are re-derived by shape
// inference afterwards.
package passes

import (
	"github.com/gomlx/graphrt"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DimensionOverride binds the denotation (semantic tag) of a free dimension
// to a concrete size.
type DimensionOverride struct {
	// Denotation identifies the free dimensions to bind, e.g. "DATA_BATCH".
	Denotation string

	// Value is the concrete size to bind. Must be non-negative.
	Value int
}

// FreeDimensionsPass rewrites a graph's declared input shapes, replacing
// every free dimension whose denotation matches an override with the
// override's concrete size. The denotation itself is kept, for diagnostics.
//
// The pass is pure given (graph, overrides): the override set is fixed at
// construction and owned by the pass instance. It is idempotent, and
// order-independent across distinct denotations. A denotation with no
// matching dimension is a no-op, not an error: graphs are not required to
// use every declared override.
type FreeDimensionsPass struct {
	overrides map[string]int
}

// NewFreeDimensionsPass creates the pass from the given overrides.
//
// If the same denotation appears more than once, the last value wins.
// A negative override value is rejected: dimensions are sizes.
func NewFreeDimensionsPass(overrides ...DimensionOverride) (*FreeDimensionsPass, error) {
	p := &FreeDimensionsPass{overrides: make(map[string]int, len(overrides))}
	for _, override := range overrides {
		if override.Denotation == "" {
			return nil, errors.New("free-dimensions override with empty denotation")
		}
		if override.Value < 0 {
			return nil, errors.Errorf("free-dimensions override %q must be non-negative, got %d",
				override.Denotation, override.Value)
		}
		if previous, found := p.overrides[override.Denotation]; found && previous != override.Value {
			klog.Warningf("free-dimensions override %q given more than once (%d, then %d): last one wins",
				override.Denotation, previous, override.Value)
		}
		p.overrides[override.Denotation] = override.Value
	}
	return p, nil
}

// Name of the pass, for diagnostics.
func (p *FreeDimensionsPass) Name() string { return "free-dimensions" }

// Apply rewrites the graph's declared input shapes in place.
//
// Apply is a graph-load-time rewrite: run it before session state is built
// for the graph (session.NewState). Session setup reads the declared shapes
// once, when deciding eager versus deferred output allocation, so bindings
// applied after a state exists are not picked up by that state.
func (p *FreeDimensionsPass) Apply(g *graphrt.Graph) error {
	if len(p.overrides) == 0 {
		return nil
	}
	for _, input := range g.Inputs() {
		for axis := range input.Shape.Dimensions {
			dim := &input.Shape.Dimensions[axis]
			if !dim.IsFree() || dim.Denotation == "" {
				continue
			}
			value, found := p.overrides[dim.Denotation]
			if !found {
				continue
			}
			klog.V(2).Infof("graph %q input %q axis %d: binding free dimension %s to %d",
				g.Name, input.Name, axis, dim, value)
			dim.Size = value
		}
	}
	return nil
}
