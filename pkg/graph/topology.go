// Package graph implements the audio processing DAG (C4 Graph Node,
// C5 Graph Topology, C7 Graph Processor, §4.4, §4.6): a tagged union
// of node kinds wired by typed connections, a Kahn topological render
// order, and the per-block dispatch that drives note sources, synths,
// the FX chain, gain, mixer and master. Grounded on the teacher's
// capability-wrapper style (clean structs over a flat index space) and
// on the pack's chain-graph Kahn-sort implementation
// (other_examples/857fca4c_CWBudde-algo-dsp__internal-webdemo-effects_chain.go.go).
package graph

import "fmt"

// NodeId is a stable index into the graph's node vector (§4.4, §9
// "arena + index allocation"). Removal is soft; compaction only
// happens at a quiesced rebuild, never inside process().
type NodeId int32

// Kind tags a node's role in the graph. The render loop dispatches by
// tag rather than by interface method, keeping node storage flat
// (§9 "tagged union over polymorphic dispatch").
type Kind uint8

const (
	KindNoteSource Kind = iota
	KindSynth
	KindFX
	KindGain
	KindMixer
	KindMaster
)

func (k Kind) String() string {
	switch k {
	case KindNoteSource:
		return "note_source"
	case KindSynth:
		return "synth"
	case KindFX:
		return "fx"
	case KindGain:
		return "gain"
	case KindMixer:
		return "mixer"
	case KindMaster:
		return "master"
	default:
		return "unknown"
	}
}

// PortKind identifies what a Connection carries.
type PortKind uint8

const (
	PortAudio PortKind = iota
	PortEvents
)

// Connection is a declared edge (src, src_port, dst, dst_port, kind)
// per §4.4.
type Connection struct {
	Src     NodeId
	SrcPort int
	Dst     NodeId
	DstPort int
	Kind    PortKind
}

// Node is the tagged-union record for one graph node (§4.4). Only the
// fields relevant to Kind are meaningful; this mirrors the flat,
// allocation-stable Event struct in pkg/evt.
type Node struct {
	Kind Kind

	// Track/FXSlot identify which mixer track (and, for FX nodes, which
	// slot in that track's chain) this node belongs to. Unused by Mixer
	// and Master.
	Track  int
	FXSlot int // -1 for non-FX nodes; current *plugin.Instance for synth/FX
	// nodes is resolved from the block's state.Snapshot each block
	// (snap.TrackPlugins[Track] / snap.TrackFXPlugins[Track][FXSlot]),
	// never cached on the node itself — the snapshot is the single
	// source of truth for which plugin (if any) a slot currently holds.

	removed bool

	// Per-node state that must persist across blocks (§4.6 Phase 2/3):
	// whether the plugin is currently sleeping, and whether its output
	// buffers are already zeroed (avoids a redundant memset).
	sleeping     bool
	bufferZeroed bool
	blockActive  bool // scratch bit, zeroed each block in Phase 0 (§4.4 block_active)

	OutL, OutR []float32 // per-node output buffers, allocated once in Prepare
}

// Topology holds the declared nodes and connections plus everything
// Prepare derives from them: the Kahn render order, per-kind index
// vectors, and the incoming-audio adjacency (§4.4, §4.5).
type Topology struct {
	Nodes       []*Node
	connections []Connection

	maxFrames int

	RenderOrder []NodeId

	NoteSources []NodeId
	Synths      []NodeId
	FXNodes     []NodeId
	Gains       []NodeId
	Mixer       NodeId
	Master      NodeId

	IncomingAudio map[NodeId][]NodeId
	IncomingAny   map[NodeId][]NodeId // both audio and event sources, used for note-source lookup
}

// NewTopology creates an empty topology.
func NewTopology() *Topology {
	return &Topology{IncomingAudio: map[NodeId][]NodeId{}, IncomingAny: map[NodeId][]NodeId{}}
}

// AddNode appends a node and returns its stable id (§4.4 add_node).
func (t *Topology) AddNode(kind Kind, track, fxSlot int) NodeId {
	id := NodeId(len(t.Nodes))
	t.Nodes = append(t.Nodes, &Node{Kind: kind, Track: track, FXSlot: fxSlot})
	return id
}

// Connect declares an edge. Connections are only meaningful until the
// next Prepare call builds the derived indices.
func (t *Topology) Connect(src NodeId, srcPort int, dst NodeId, dstPort int, kind PortKind) {
	t.connections = append(t.connections, Connection{Src: src, SrcPort: srcPort, Dst: dst, DstPort: dstPort, Kind: kind})
}

// Prepare allocates per-node output buffers sized to maxFrames and
// builds the render order, per-kind indices, and incoming-audio
// adjacency (§4.4). Cycles are a programmer error and are rejected.
func (t *Topology) Prepare(maxFrames int) error {
	t.maxFrames = maxFrames
	for _, n := range t.Nodes {
		n.OutL = make([]float32, maxFrames)
		n.OutR = make([]float32, maxFrames)
		n.bufferZeroed = true
	}

	t.IncomingAudio = map[NodeId][]NodeId{}
	t.IncomingAny = map[NodeId][]NodeId{}
	outgoing := make(map[NodeId][]NodeId, len(t.Nodes))
	indegree := make(map[NodeId]int, len(t.Nodes))
	for i := range t.Nodes {
		indegree[NodeId(i)] = 0
	}
	for _, c := range t.connections {
		outgoing[c.Src] = append(outgoing[c.Src], c.Dst)
		indegree[c.Dst]++
		t.IncomingAny[c.Dst] = append(t.IncomingAny[c.Dst], c.Src)
		if c.Kind == PortAudio {
			t.IncomingAudio[c.Dst] = append(t.IncomingAudio[c.Dst], c.Src)
		}
	}

	// Kahn's algorithm, stable: FIFO among zero-indegree nodes (§4.4).
	queue := make([]NodeId, 0, len(t.Nodes))
	for i := range t.Nodes {
		id := NodeId(i)
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}
	order := make([]NodeId, 0, len(t.Nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, to := range outgoing[id] {
			indegree[to]--
			if indegree[to] == 0 {
				queue = append(queue, to)
			}
		}
	}
	if len(order) != len(t.Nodes) {
		return fmt.Errorf("graph: cycle detected at prepare time (%d/%d nodes ordered)", len(order), len(t.Nodes))
	}
	t.RenderOrder = order

	t.NoteSources = t.NoteSources[:0]
	t.Synths = t.Synths[:0]
	t.FXNodes = t.FXNodes[:0]
	t.Gains = t.Gains[:0]
	for i, n := range t.Nodes {
		id := NodeId(i)
		switch n.Kind {
		case KindNoteSource:
			t.NoteSources = append(t.NoteSources, id)
		case KindSynth:
			t.Synths = append(t.Synths, id)
		case KindFX:
			t.FXNodes = append(t.FXNodes, id)
		case KindGain:
			t.Gains = append(t.Gains, id)
		case KindMixer:
			t.Mixer = id
		case KindMaster:
			t.Master = id
		}
	}
	return nil
}

// Node returns the node record for id.
func (t *Topology) Node(id NodeId) *Node {
	return t.Nodes[id]
}

// MarkRemoved soft-removes a node (§4.11): subsequent blocks skip it.
// Physical compaction happens only at the next Prepare.
func (t *Topology) MarkRemoved(id NodeId) {
	t.Nodes[id].removed = true
}
