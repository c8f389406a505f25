// Package instrument holds the immutable set of concrete instruments plus the derived set of
// synthetic instruments materialized at pipeline build time, per spec §4.1.
package instrument

import (
	"sort"
	"strings"

	"github.com/coachpo/meltica/internal/domain/model"
	"github.com/coachpo/meltica/internal/errs"
	"github.com/google/uuid"
)

// syntheticNamespace seeds the deterministic v5 UUIDs minted for synthetic instruments so
// that materialization is stable across runs given the same configuration.
var syntheticNamespace = uuid.MustParse("6f9178b2-0c1f-4e8b-9a53-7a6d9e9ad9a4")

// indexVenue is the venue assigned to a synthetic instrument whose group-by mask does not
// include the venue dimension, per spec §4.1.
const indexVenue = "Index"

// SyntheticSpec defines one synthetic-instrument family: a selector over concrete
// instruments plus the attribute mask defining its group key.
type SyntheticSpec struct {
	Selector model.Selector
	GroupBy  model.GroupBy
}

// Registry holds the immutable instrument set resolved at startup: concrete instruments from
// configuration plus synthetic instruments materialized from SyntheticSpecs.
type Registry struct {
	byID       map[string]model.Instrument
	order      []string // stable iteration order: concrete first (config order), then synthetics
	syntheticM map[string][]string
}

// Build constructs a Registry from the concrete instrument set and the synthetic specs. It is
// called once at pipeline startup; the result is immutable for the lifetime of the run.
func Build(concrete []model.Instrument, synthetics []SyntheticSpec) (*Registry, error) {
	reg := &Registry{
		byID:       make(map[string]model.Instrument, len(concrete)),
		order:      make([]string, 0, len(concrete)),
		syntheticM: make(map[string][]string),
	}
	for _, inst := range concrete {
		if err := inst.Validate(); err != nil {
			return nil, err
		}
		if _, exists := reg.byID[inst.ID]; exists {
			return nil, errs.ConfigInvalid("registry.build", "duplicate instrument id: "+inst.ID)
		}
		inst.Synthetic = false
		reg.byID[inst.ID] = inst
		reg.order = append(reg.order, inst.ID)
	}
	for _, spec := range synthetics {
		if err := reg.materialize(spec); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// materialize groups the concrete instruments matching spec.Selector by spec.GroupBy and
// creates one synthetic instrument per distinct group tuple.
func (r *Registry) materialize(spec SyntheticSpec) error {
	groups := make(map[model.GroupKey][]string)
	var order []model.GroupKey
	for _, id := range r.order {
		inst := r.byID[id]
		if inst.Synthetic {
			continue
		}
		if !spec.Selector.Matches(inst) {
			continue
		}
		key := spec.GroupBy.Key(inst)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], id)
	}

	for _, key := range order {
		members := groups[key]
		sort.Strings(members)
		synID := syntheticID(key)
		venue := key.Venue
		if !spec.GroupBy.Venue {
			venue = indexVenue
		}
		synthetic := model.Instrument{
			ID:         synID,
			Venue:      venue,
			Kind:       model.InstrumentKindIndex,
			BaseAsset:  key.BaseAsset,
			QuoteAsset: key.QuoteAsset,
			Status:     model.InstrumentStatusTrading,
			Synthetic:  true,
			Members:    members,
		}
		if spec.GroupBy.InstrumentKind {
			synthetic.Kind = key.InstrumentKind
		}
		r.byID[synID] = synthetic
		r.order = append(r.order, synID)
		r.syntheticM[synID] = members
	}
	return nil
}

// syntheticID derives a stable synthetic instrument id from its group key, so that
// resolution is deterministic across runs given the same configuration, per spec §4.1.
func syntheticID(key model.GroupKey) string {
	return uuid.NewSHA1(syntheticNamespace, []byte(strings.ToUpper(key.String()))).String()
}

// Get returns the instrument registered under id.
func (r *Registry) Get(id string) (model.Instrument, error) {
	inst, ok := r.byID[id]
	if !ok {
		return model.Instrument{}, errs.UnknownInstrument("registry.get", id)
	}
	return inst, nil
}

// Resolve returns the ids of every concrete and synthetic instrument matching the selector.
// Results are deterministic and stable across runs given the same config, per spec §4.1.
func (r *Registry) Resolve(sel model.Selector) ([]string, error) {
	if sel.Empty() {
		return nil, errs.ConfigInvalid("registry.resolve", "selector must not be empty")
	}
	ids := make([]string, 0)
	for _, id := range r.order {
		if sel.Matches(r.byID[id]) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Members returns the constituent concrete instrument ids for a synthetic instrument.
func (r *Registry) Members(syntheticID string) ([]string, error) {
	inst, err := r.Get(syntheticID)
	if err != nil {
		return nil, err
	}
	if !inst.Synthetic {
		return nil, errs.ConfigInvalid("registry.members", "instrument is not synthetic: "+syntheticID)
	}
	members := r.syntheticM[syntheticID]
	out := make([]string, len(members))
	copy(out, members)
	return out, nil
}

// All returns every registered instrument in stable (concrete-then-synthetic) order.
func (r *Registry) All() []model.Instrument {
	out := make([]model.Instrument, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}
