package feature

import (
	"fmt"

	"github.com/coachpo/meltica/internal/domain/instrument"
	"github.com/coachpo/meltica/internal/domain/model"
	"github.com/coachpo/meltica/internal/errs"
)

// NodeID uniquely identifies one executor instance within a pipeline's DAG: the config it
// was instantiated from, plus the instrument(s) and group-key it was bound to, per the
// registry keyed by (config_index, instrument_id, group_key) from spec §9.
type NodeID string

func newNodeID(configIndex int, instrumentID, instrument2ID string) NodeID {
	if instrument2ID == "" {
		return NodeID(fmt.Sprintf("%d:%s", configIndex, instrumentID))
	}
	return NodeID(fmt.Sprintf("%d:%s:%s", configIndex, instrumentID, instrument2ID))
}

// Node is one executor instance: a FeatureConfig bound to a concrete instrument (and, for
// two-series variants, a second instrument), ready for edge inference and scheduling.
type Node struct {
	ID          NodeID
	ConfigIndex int
	Config      Config
	Instrument  string
	Instrument2 string // populated only for TwoValue/DualRange
	GroupKey    model.GroupKey
	Outputs     []string
	Inputs      []InputEdge // edges for Config.Inputs (or Config.Inputs for single-series kinds)
	Inputs2     []InputEdge // edges for Config.Inputs2 (TwoValue/DualRange second series)
}

// InputEdge resolves one input name to either a raw event field or a producing node.
type InputEdge struct {
	Name     string
	Raw      bool
	Producer NodeID
}

// DAG is the fully resolved, dependency-ordered computation graph for one pipeline.
type DAG struct {
	Nodes  map[NodeID]*Node
	Levels [][]NodeID // levels[i]: nodes independent of each other, dependent only on levels[<i]
}

// Registry is the subset of instrument.Registry the Resolver needs.
type Registry interface {
	Resolve(sel model.Selector) ([]string, error)
	Get(id string) (model.Instrument, error)
}

var _ Registry = (*instrument.Registry)(nil)

// Resolver builds an executable DAG from a validated PipelineConfig and an instrument Registry.
type Resolver struct {
	reg Registry
	cfg PipelineConfig
}

// NewResolver constructs a Resolver. cfg must already satisfy PipelineConfig.Validate.
func NewResolver(reg Registry, cfg PipelineConfig) (*Resolver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Resolver{reg: reg, cfg: cfg}, nil
}

// Plan instantiates nodes for every FeatureConfig, infers edges, and computes a level
// ordering where producers precede consumers, per spec §4.2.
func (r *Resolver) Plan() (*DAG, error) {
	outputOwner := make(map[string]int, 32) // output name -> owning config index
	for idx, cfg := range r.cfg.Features {
		for _, out := range cfg.Outputs {
			outputOwner[out] = idx
		}
	}

	dag := &DAG{Nodes: make(map[NodeID]*Node)}
	nodesByConfig := make([][]*Node, len(r.cfg.Features))

	for idx, cfg := range r.cfg.Features {
		nodes, err := r.instantiate(idx, cfg)
		if err != nil {
			return nil, err
		}
		nodesByConfig[idx] = nodes
		for _, n := range nodes {
			dag.Nodes[n.ID] = n
		}
	}

	for idx, cfg := range r.cfg.Features {
		for _, n := range nodesByConfig[idx] {
			inputs, err := resolveEdges(cfg.Inputs, idx, n, outputOwner, nodesByConfig, cfg.GroupBy.toGroupBy())
			if err != nil {
				return nil, err
			}
			n.Inputs = inputs
			if len(cfg.Inputs2) > 0 {
				inputs2, err := resolveEdges(cfg.Inputs2, idx, n, outputOwner, nodesByConfig, cfg.GroupBy.toGroupBy())
				if err != nil {
					return nil, err
				}
				n.Inputs2 = inputs2
			}
		}
	}

	levels, err := topoSort(dag)
	if err != nil {
		return nil, err
	}
	dag.Levels = levels
	return dag, nil
}

// instantiate creates one Node per (instrument, group-key) for a single/multi-series config,
// or one Node per matched instrument pair for TwoValue/DualRange, per spec §4.2 step 1.
func (r *Resolver) instantiate(configIndex int, cfg Config) ([]*Node, error) {
	switch cfg.Kind {
	case KindTwoValue, KindDualRange:
		return r.instantiatePaired(configIndex, cfg)
	default:
		return r.instantiateSingle(configIndex, cfg)
	}
}

func (r *Resolver) instantiateSingle(configIndex int, cfg Config) ([]*Node, error) {
	ids, err := r.resolveScoped(cfg.Selector.toSelector())
	if err != nil {
		return nil, err
	}
	mask := cfg.GroupBy.toGroupBy()
	nodes := make([]*Node, 0, len(ids))
	for _, id := range ids {
		inst, err := r.reg.Get(id)
		if err != nil {
			return nil, err
		}
		n := &Node{
			ID:          newNodeID(configIndex, id, ""),
			ConfigIndex: configIndex,
			Config:      cfg,
			Instrument:  id,
			GroupKey:    mask.Key(inst),
			Outputs:     cfg.Outputs,
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (r *Resolver) instantiatePaired(configIndex int, cfg Config) ([]*Node, error) {
	ids1, err := r.resolveScoped(cfg.Selector.toSelector())
	if err != nil {
		return nil, err
	}
	ids2, err := r.resolveScoped(cfg.Selector2.toSelector())
	if err != nil {
		return nil, err
	}
	mask := cfg.GroupBy.toGroupBy()
	op := "feature.instantiate:" + cfg.nodeLabel()

	if mask == (model.GroupBy{}) {
		if len(ids1) != 1 || len(ids2) != 1 {
			return nil, errs.ConfigInvalid(op,
				"two_value/dual_range without group_by requires each selector to resolve to exactly one instrument")
		}
		inst1, err := r.reg.Get(ids1[0])
		if err != nil {
			return nil, err
		}
		n := &Node{
			ID:          newNodeID(configIndex, ids1[0], ids2[0]),
			ConfigIndex: configIndex,
			Config:      cfg,
			Instrument:  ids1[0],
			Instrument2: ids2[0],
			GroupKey:    mask.Key(inst1),
			Outputs:     cfg.Outputs,
		}
		return []*Node{n}, nil
	}

	byKey1, err := r.groupByKey(ids1, mask)
	if err != nil {
		return nil, err
	}
	byKey2, err := r.groupByKey(ids2, mask)
	if err != nil {
		return nil, err
	}

	nodes := make([]*Node, 0, len(byKey1))
	for _, key := range sortedKeys(byKey1) {
		members1 := byKey1[key]
		members2, ok := byKey2[key]
		if !ok || len(members2) == 0 {
			return nil, errs.ConfigInvalid(op, "no matching instrument group in selector_2 for group key "+key.String())
		}
		if len(members1) != 1 || len(members2) != 1 {
			return nil, errs.ConfigInvalid(op, "grouped two_value/dual_range requires exactly one instrument per group per side (use a synthetic instrument selector)")
		}
		n := &Node{
			ID:          newNodeID(configIndex, members1[0], members2[0]),
			ConfigIndex: configIndex,
			Config:      cfg,
			Instrument:  members1[0],
			Instrument2: members2[0],
			GroupKey:    key,
			Outputs:     cfg.Outputs,
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// resolveScoped resolves sel against the registry and narrows the result to instruments
// also matching the pipeline's global_instrument_selector, per spec §3/§6: the global
// selector scopes the universe of instruments a pipeline operates over, applied on top of
// each feature's own selector rather than replacing it.
func (r *Resolver) resolveScoped(sel model.Selector) ([]string, error) {
	ids, err := r.reg.Resolve(sel)
	if err != nil {
		return nil, err
	}
	global := r.cfg.GlobalSelector.toSelector()
	if global.Empty() {
		return ids, nil
	}
	scoped := make([]string, 0, len(ids))
	for _, id := range ids {
		inst, err := r.reg.Get(id)
		if err != nil {
			return nil, err
		}
		if global.Matches(inst) {
			scoped = append(scoped, id)
		}
	}
	return scoped, nil
}

func (r *Resolver) groupByKey(ids []string, mask model.GroupBy) (map[model.GroupKey][]string, error) {
	out := make(map[model.GroupKey][]string)
	for _, id := range ids {
		inst, err := r.reg.Get(id)
		if err != nil {
			return nil, err
		}
		key := mask.Key(inst)
		out[key] = append(out[key], id)
	}
	return out, nil
}

func sortedKeys(m map[model.GroupKey][]string) []model.GroupKey {
	keys := make([]model.GroupKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Deterministic order: sort by string rendering, per spec §9's determinism requirement.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1].String() > keys[j].String(); j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

// resolveEdges resolves one node's input list to raw-field or producer-node edges, per
// spec §4.2 step 2. Producer lookup is restricted to configs strictly earlier in the feature
// list, per §3's invariant that inputs resolve to outputs "produced earlier in the feature list".
func resolveEdges(names []string, configIndex int, n *Node, outputOwner map[string]int, nodesByConfig [][]*Node, _ model.GroupBy) ([]InputEdge, error) {
	op := "feature.resolve_edges:" + n.Config.nodeLabel()
	edges := make([]InputEdge, 0, len(names))
	for _, name := range names {
		if model.IsRawField(name) {
			edges = append(edges, InputEdge{Name: name, Raw: true})
			continue
		}
		ownerIdx, ok := outputOwner[name]
		if !ok {
			return nil, errs.ConfigInvalid(op, "unresolved input: "+name)
		}
		if ownerIdx >= configIndex {
			return nil, errs.ConfigInvalid(op, "input "+name+" must be produced by an earlier feature")
		}
		producer, err := findProducer(nodesByConfig[ownerIdx], n)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		edges = append(edges, InputEdge{Name: name, Producer: producer.ID})
	}
	return edges, nil
}

// findProducer locates the node instance from a producing config that shares the consumer's
// instrument, or failing that, its group key, per spec §4.2 step 2 ("same instrument or
// group-key").
func findProducer(candidates []*Node, consumer *Node) (*Node, error) {
	for _, c := range candidates {
		if c.Instrument == consumer.Instrument {
			return c, nil
		}
	}
	for _, c := range candidates {
		if c.GroupKey == consumer.GroupKey {
			return c, nil
		}
	}
	return nil, errs.ConfigInvalid("feature.find_producer", "no producer node for instrument "+consumer.Instrument)
}
