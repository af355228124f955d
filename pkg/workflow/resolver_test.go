package workflow

import "testing"

func names(phase Phase) []string {
	var out []string
	for _, s := range phase.Steps {
		out = append(out, s.Name)
	}
	return out
}

func TestResolveSequentialChain(t *testing.T) {
	steps := []Step{
		{Name: "A", Endpoint: "/a"},
		{Name: "B", Endpoint: "/b", DependsOn: []string{"A"}},
		{Name: "C", Endpoint: "/c", DependsOn: []string{"B"}},
	}
	phases, err := Resolve(steps)
	if err != nil {
		t.Fatal(err)
	}
	if len(phases) != 3 {
		t.Fatalf("expected 3 phases, got %d", len(phases))
	}
	for i, want := range []string{"A", "B", "C"} {
		if got := names(phases[i]); len(got) != 1 || got[0] != want {
			t.Errorf("phase %d: got %v, want [%s]", i, got, want)
		}
	}
}

func TestResolveParallelGroupLandsTogether(t *testing.T) {
	steps := []Step{
		{Name: "P1", Endpoint: "/p1", ParallelGroup: "g"},
		{Name: "P2", Endpoint: "/p2", ParallelGroup: "g"},
		{Name: "P3", Endpoint: "/p3", ParallelGroup: "g"},
		{Name: "J", Endpoint: "/j", DependsOn: []string{"g"}},
	}
	phases, err := Resolve(steps)
	if err != nil {
		t.Fatal(err)
	}
	if len(phases) != 2 {
		t.Fatalf("expected 2 phases, got %d", len(phases))
	}
	if got := names(phases[0]); len(got) != 3 {
		t.Errorf("expected all 3 group members in phase 0, got %v", got)
	}
	if got := names(phases[1]); len(got) != 1 || got[0] != "J" {
		t.Errorf("expected J alone in phase 1, got %v", got)
	}
}

func TestResolvePartialGroupReadinessWaits(t *testing.T) {
	// P2 depends on an earlier step, so only P1/P3 are ready in round 1;
	// the whole group g must still land together once P2 becomes ready.
	steps := []Step{
		{Name: "Pre", Endpoint: "/pre"},
		{Name: "P1", Endpoint: "/p1", ParallelGroup: "g"},
		{Name: "P2", Endpoint: "/p2", ParallelGroup: "g", DependsOn: []string{"Pre"}},
		{Name: "P3", Endpoint: "/p3", ParallelGroup: "g"},
	}
	phases, err := Resolve(steps)
	if err != nil {
		t.Fatal(err)
	}
	if len(phases) != 2 {
		t.Fatalf("expected 2 phases (Pre, then the whole group), got %d: %+v", len(phases), phases)
	}
	if got := names(phases[0]); len(got) != 1 || got[0] != "Pre" {
		t.Errorf("phase 0 should contain only Pre, got %v", got)
	}
	if got := names(phases[1]); len(got) != 3 {
		t.Errorf("phase 1 should contain all 3 group members together, got %v", got)
	}
}

func TestResolveDetectsCycle(t *testing.T) {
	steps := []Step{
		{Name: "A", Endpoint: "/a", DependsOn: []string{"B"}},
		{Name: "B", Endpoint: "/b", DependsOn: []string{"A"}},
	}
	_, err := Resolve(steps)
	if err == nil {
		t.Fatal("expected CircularDependencyError")
	}
	if _, ok := err.(*CircularDependencyError); !ok {
		t.Errorf("expected *CircularDependencyError, got %T", err)
	}
}

func TestResolveMissingDependency(t *testing.T) {
	steps := []Step{
		{Name: "A", Endpoint: "/a", DependsOn: []string{"ghost"}},
	}
	_, err := Resolve(steps)
	if err == nil {
		t.Fatal("expected DependencyError")
	}
	if _, ok := err.(*DependencyError); !ok {
		t.Errorf("expected *DependencyError, got %T", err)
	}
}

func TestResolveOrderingInvariant(t *testing.T) {
	steps := []Step{
		{Name: "A", Endpoint: "/a"},
		{Name: "B", Endpoint: "/b", DependsOn: []string{"A"}},
		{Name: "C", Endpoint: "/c", DependsOn: []string{"A"}},
		{Name: "D", Endpoint: "/d", DependsOn: []string{"B", "C"}},
	}
	phases, err := Resolve(steps)
	if err != nil {
		t.Fatal(err)
	}

	phaseOf := make(map[string]int)
	for i, p := range phases {
		for _, s := range p.Steps {
			phaseOf[s.Name] = i
		}
	}

	total := 0
	for _, p := range phases {
		total += len(p.Steps)
	}
	if total != len(steps) {
		t.Fatalf("phase concatenation should be a permutation of all steps, got %d of %d", total, len(steps))
	}

	for _, s := range steps {
		for _, dep := range s.DependsOn {
			if phaseOf[dep] >= phaseOf[s.Name] {
				t.Errorf("dependency %q (phase %d) must precede %q (phase %d)", dep, phaseOf[dep], s.Name, phaseOf[s.Name])
			}
		}
	}
}
