package dag

import (
	"errors"
	"slices"
	"strings"
	"testing"
)

func buildGraph(t *testing.T, nodes []string, edges [][2]string) *DAG {
	t.Helper()
	g := New()
	for _, id := range nodes {
		if err := g.AddNode(Node{ID: id}); err != nil {
			t.Fatalf("AddNode(%s): %v", id, err)
		}
	}
	for _, e := range edges {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			t.Fatalf("AddEdge(%s, %s): %v", e[0], e[1], err)
		}
	}
	return g
}

func TestAddNode(t *testing.T) {
	g := New()

	if err := g.AddNode(Node{ID: ""}); !errors.Is(err, ErrInvalidNodeID) {
		t.Errorf("empty ID: err = %v, want ErrInvalidNodeID", err)
	}

	if err := g.AddNode(Node{ID: "widget.stl"}); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	if err := g.AddNode(Node{ID: "widget.stl"}); !errors.Is(err, ErrDuplicateNodeID) {
		t.Errorf("duplicate ID: err = %v, want ErrDuplicateNodeID", err)
	}

	// Meta is never nil after AddNode
	if g.Node("widget.stl").Meta == nil {
		t.Error("Meta should be initialized")
	}
}

func TestAddEdge(t *testing.T) {
	g := buildGraph(t, []string{"a", "b"}, nil)

	if err := g.AddEdge("missing", "b"); !errors.Is(err, ErrUnknownSourceNode) {
		t.Errorf("unknown source: err = %v", err)
	}
	if err := g.AddEdge("a", "missing"); !errors.Is(err, ErrUnknownTargetNode) {
		t.Errorf("unknown target: err = %v", err)
	}

	if err := g.AddEdge("a", "b"); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	// Duplicate edges collapse
	if err := g.AddEdge("a", "b"); err != nil {
		t.Fatalf("duplicate AddEdge: %v", err)
	}
	if g.EdgeCount() != 1 {
		t.Errorf("EdgeCount = %d, want 1", g.EdgeCount())
	}
	if g.InDegree("b") != 1 {
		t.Errorf("InDegree(b) = %d, want 1", g.InDegree("b"))
	}
}

func TestRoots(t *testing.T) {
	// stl and frames feed the zip; sources have no producers
	g := buildGraph(t,
		[]string{"widget.stl", "widget.png", "printables.zip"},
		[][2]string{
			{"widget.stl", "printables.zip"},
			{"widget.png", "printables.zip"},
		})

	roots := g.Roots()
	if !slices.Equal(roots, []string{"widget.png", "widget.stl"}) {
		t.Errorf("Roots = %v", roots)
	}
}

func TestTopoSort(t *testing.T) {
	g := buildGraph(t,
		[]string{"stl", "png", "pdf", "zip"},
		[][2]string{
			{"png", "pdf"}, // document embeds publish images
			{"stl", "zip"},
			{"png", "zip"},
			{"pdf", "zip"},
		})

	order, err := g.TopoSort()
	if err != nil {
		t.Fatalf("TopoSort: %v", err)
	}
	if len(order) != 4 {
		t.Fatalf("order = %v", order)
	}

	pos := make(map[string]int)
	for i, id := range order {
		pos[id] = i
	}
	for _, e := range g.Edges() {
		if pos[e.From] > pos[e.To] {
			t.Errorf("edge %s -> %s violated by order %v", e.From, e.To, order)
		}
	}
}

func TestTopoSortDeterministic(t *testing.T) {
	g := buildGraph(t,
		[]string{"c", "a", "b", "sink"},
		[][2]string{{"a", "sink"}, {"b", "sink"}, {"c", "sink"}})

	first, err := g.TopoSort()
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		next, _ := g.TopoSort()
		if !slices.Equal(first, next) {
			t.Fatalf("TopoSort not deterministic: %v vs %v", first, next)
		}
	}
}

func TestCycleDetection(t *testing.T) {
	g := buildGraph(t,
		[]string{"a", "b", "c"},
		[][2]string{{"a", "b"}, {"b", "c"}, {"c", "a"}})

	if _, err := g.TopoSort(); !errors.Is(err, ErrGraphHasCycle) {
		t.Errorf("TopoSort on cycle: err = %v, want ErrGraphHasCycle", err)
	}
	if err := g.Validate(); !errors.Is(err, ErrGraphHasCycle) {
		t.Errorf("Validate on cycle: err = %v, want ErrGraphHasCycle", err)
	}
}

func TestValidateOK(t *testing.T) {
	g := buildGraph(t, []string{"a", "b"}, [][2]string{{"a", "b"}})
	if err := g.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestToDOT(t *testing.T) {
	g := buildGraph(t, []string{"widget.stl", "zip"}, [][2]string{{"widget.stl", "zip"}})
	g.Node("widget.stl").Meta["kind"] = "stl"
	g.Node("widget.stl").Meta["model"] = "widget"

	dot := ToDOT(g, DOTOptions{})
	for _, want := range []string{
		"digraph actions",
		`"widget.stl"`,
		`"widget.stl" -> "zip";`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q:\n%s", want, dot)
		}
	}

	// Detailed labels include metadata
	detailed := ToDOT(g, DOTOptions{Detailed: true})
	if !strings.Contains(detailed, "kind: stl") || !strings.Contains(detailed, "model: widget") {
		t.Errorf("detailed DOT missing metadata:\n%s", detailed)
	}
}
