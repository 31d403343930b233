// Package dag implements the build action graph.
//
// Nodes are build actions keyed by their primary output path; edges point
// from an action to the actions that consume its outputs. The executor walks
// the graph in dependency order, so the only structural requirements are
// that edges reference known nodes and that the graph is acyclic.
package dag

import (
	"errors"
	"maps"
	"slices"
)

var (
	// ErrInvalidNodeID is returned by [DAG.AddNode] when the node ID is
	// empty. All nodes must have non-empty identifiers.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateNodeID is returned by [DAG.AddNode] when a node with the
	// same ID already exists in the graph. Node IDs must be unique.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownSourceNode is returned by [DAG.AddEdge] when the From node
	// does not exist in the graph.
	ErrUnknownSourceNode = errors.New("unknown source node")

	// ErrUnknownTargetNode is returned by [DAG.AddEdge] when the To node
	// does not exist in the graph.
	ErrUnknownTargetNode = errors.New("unknown target node")

	// ErrGraphHasCycle is returned by [DAG.Validate] when a cycle is
	// detected. Cycles are found using depth-first search with
	// white/gray/black coloring.
	ErrGraphHasCycle = errors.New("graph contains a cycle")
)

// Metadata stores arbitrary key-value pairs attached to nodes.
// The planner uses it to label nodes for the graph command (action kind,
// model directory). Metadata maps are never nil after AddNode.
type Metadata map[string]any

// Node represents one build action in the graph.
//
// The zero value is not usable - ID must be set before adding to a DAG.
type Node struct {
	ID   string   // Primary output path, unique within the graph
	Meta Metadata // Arbitrary key-value metadata (never nil after AddNode)
}

// Edge represents a directed dependency: To consumes an output of From.
type Edge struct {
	From string // Producer node ID
	To   string // Consumer node ID
}

// DAG is a directed acyclic graph of build actions.
//
// The zero value is not usable - use New to create a valid DAG instance.
// DAG is not safe for concurrent use without external synchronization.
type DAG struct {
	nodes    map[string]*Node
	edges    []Edge
	outgoing map[string][]string // nodeID -> consumer IDs
	incoming map[string]int      // nodeID -> producer count
}

// New creates an empty DAG.
func New() *DAG {
	return &DAG{
		nodes:    make(map[string]*Node),
		outgoing: make(map[string][]string),
		incoming: make(map[string]int),
	}
}

// AddNode inserts a node. The ID must be non-empty and unique.
func (g *DAG) AddNode(n Node) error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if _, exists := g.nodes[n.ID]; exists {
		return ErrDuplicateNodeID
	}
	if n.Meta == nil {
		n.Meta = make(Metadata)
	}
	g.nodes[n.ID] = &n
	return nil
}

// AddEdge inserts a directed edge between two existing nodes.
// Duplicate edges are ignored.
func (g *DAG) AddEdge(from, to string) error {
	if _, ok := g.nodes[from]; !ok {
		return ErrUnknownSourceNode
	}
	if _, ok := g.nodes[to]; !ok {
		return ErrUnknownTargetNode
	}
	if slices.Contains(g.outgoing[from], to) {
		return nil
	}
	g.edges = append(g.edges, Edge{From: from, To: to})
	g.outgoing[from] = append(g.outgoing[from], to)
	g.incoming[to]++
	return nil
}

// Node returns the node with the given ID, or nil if absent.
func (g *DAG) Node(id string) *Node {
	return g.nodes[id]
}

// Nodes returns all nodes sorted by ID for deterministic iteration.
func (g *DAG) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, id := range slices.Sorted(maps.Keys(g.nodes)) {
		out = append(out, g.nodes[id])
	}
	return out
}

// Edges returns a copy of all edges.
func (g *DAG) Edges() []Edge {
	return slices.Clone(g.edges)
}

// NodeCount returns the number of nodes.
func (g *DAG) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *DAG) EdgeCount() int { return len(g.edges) }

// Consumers returns the IDs of nodes that depend on the given node.
func (g *DAG) Consumers(id string) []string {
	return slices.Clone(g.outgoing[id])
}

// InDegree returns the number of producers the given node waits on.
func (g *DAG) InDegree(id string) int {
	return g.incoming[id]
}

// Roots returns the IDs of nodes with no producers, sorted.
func (g *DAG) Roots() []string {
	var roots []string
	for id := range g.nodes {
		if g.incoming[id] == 0 {
			roots = append(roots, id)
		}
	}
	slices.Sort(roots)
	return roots
}

// TopoSort returns node IDs in dependency order (producers before
// consumers). Returns ErrGraphHasCycle if the graph contains a cycle.
func (g *DAG) TopoSort() ([]string, error) {
	indegree := maps.Clone(g.incoming)
	if indegree == nil {
		indegree = make(map[string]int)
	}

	queue := g.Roots()
	order := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		next := slices.Clone(g.outgoing[id])
		slices.Sort(next)
		for _, consumer := range next {
			indegree[consumer]--
			if indegree[consumer] == 0 {
				queue = append(queue, consumer)
			}
		}
	}

	if len(order) != len(g.nodes) {
		return nil, ErrGraphHasCycle
	}
	return order, nil
}

// Validate checks structural integrity: every edge references existing
// nodes and the graph is acyclic.
func (g *DAG) Validate() error {
	for _, e := range g.edges {
		if _, ok := g.nodes[e.From]; !ok {
			return ErrUnknownSourceNode
		}
		if _, ok := g.nodes[e.To]; !ok {
			return ErrUnknownTargetNode
		}
	}
	_, err := g.TopoSort()
	return err
}
