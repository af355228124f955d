package workflow

import "fmt"

// Phase is a maximal set of steps safe to run concurrently given the
// current completed set. Steps sharing the same ParallelGroup form a group
// within the phase.
type Phase struct {
	Steps []Step
}

// Resolve compiles steps into an ordered list of execution phases.
//
// The algorithm is iterative: each round computes the set of steps whose
// dependencies (step names or parallel-group labels) are all satisfied,
// emits that round as one phase, and repeats until every step has been
// placed. A parallel group is only placed once every declared member is
// ready; members that are individually ready before their groupmates wait
// for a later round so the whole group always lands together.
func Resolve(steps []Step) ([]Phase, error) {
	stepByName := make(map[string]Step, len(steps))
	groupMembers := make(map[string][]string)
	for _, s := range steps {
		stepByName[s.Name] = s
		if s.ParallelGroup != "" {
			groupMembers[s.ParallelGroup] = append(groupMembers[s.ParallelGroup], s.Name)
		}
	}

	if err := validateReferences(steps, stepByName, groupMembers); err != nil {
		return nil, err
	}
	if cycle := findCycle(steps, groupMembers); cycle != nil {
		return nil, &CircularDependencyError{Cycle: cycle}
	}

	completed := make(map[string]struct{}, len(steps))
	remaining := make(map[string]struct{}, len(steps))
	for _, s := range steps {
		remaining[s.Name] = struct{}{}
	}

	var phases []Phase
	for len(remaining) > 0 {
		ready := readySteps(remaining, completed, stepByName, groupMembers)
		if len(ready) == 0 {
			return nil, &DependencyError{Reason: "no progress possible: remaining steps form an unresolvable dependency set"}
		}

		phaseNames := partitionPhase(ready, stepByName, groupMembers)

		var phase Phase
		for _, name := range phaseNames {
			phase.Steps = append(phase.Steps, stepByName[name])
			delete(remaining, name)
			completed[name] = struct{}{}
		}
		phases = append(phases, phase)
	}

	return phases, nil
}

func validateReferences(steps []Step, stepByName map[string]Step, groupMembers map[string][]string) error {
	for _, s := range steps {
		for _, dep := range s.DependsOn {
			if _, isStep := stepByName[dep]; isStep {
				continue
			}
			if _, isGroup := groupMembers[dep]; isGroup {
				continue
			}
			return &DependencyError{Reason: fmt.Sprintf("step %q depends on unknown step or group %q", s.Name, dep)}
		}
	}
	return nil
}

// findCycle runs DFS with a recursion stack; a back-edge into the current
// path is a cycle. Dependencies on a group are expanded to depend on every
// member of that group for traversal purposes.
func findCycle(steps []Step, groupMembers map[string][]string) []string {
	adjacency := make(map[string][]string, len(steps))
	for _, s := range steps {
		for _, dep := range s.DependsOn {
			if members, isGroup := groupMembers[dep]; isGroup {
				adjacency[s.Name] = append(adjacency[s.Name], members...)
			} else {
				adjacency[s.Name] = append(adjacency[s.Name], dep)
			}
		}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(steps))
	var path []string

	var visit func(name string) []string
	visit = func(name string) []string {
		color[name] = gray
		path = append(path, name)

		for _, dep := range adjacency[name] {
			switch color[dep] {
			case gray:
				// Found the back-edge; return the cycle starting at dep.
				for i, n := range path {
					if n == dep {
						return append(append([]string{}, path[i:]...), dep)
					}
				}
				return []string{dep, name}
			case white:
				if cyc := visit(dep); cyc != nil {
					return cyc
				}
			}
		}

		path = path[:len(path)-1]
		color[name] = black
		return nil
	}

	for _, s := range steps {
		if color[s.Name] == white {
			if cyc := visit(s.Name); cyc != nil {
				return cyc
			}
		}
	}
	return nil
}

// readySteps returns the names of remaining steps whose every dependency is
// satisfied (a completed step, or a group all of whose members are completed).
func readySteps(remaining, completed map[string]struct{}, stepByName map[string]Step, groupMembers map[string][]string) []string {
	var ready []string
	for name := range remaining {
		if depsSatisfied(stepByName[name].DependsOn, completed, groupMembers) {
			ready = append(ready, name)
		}
	}
	return ready
}

func depsSatisfied(deps []string, completed map[string]struct{}, groupMembers map[string][]string) bool {
	for _, dep := range deps {
		if members, isGroup := groupMembers[dep]; isGroup {
			for _, m := range members {
				if _, ok := completed[m]; !ok {
					return false
				}
			}
			continue
		}
		if _, ok := completed[dep]; !ok {
			return false
		}
	}
	return true
}

// partitionPhase decides which ready steps actually land in this phase: a
// parallel group is included only when every one of its declared members is
// ready; otherwise its ready members wait for a future round.
func partitionPhase(ready []string, stepByName map[string]Step, groupMembers map[string][]string) []string {
	readySet := make(map[string]struct{}, len(ready))
	for _, r := range ready {
		readySet[r] = struct{}{}
	}

	var out []string
	handledGroups := make(map[string]bool)

	for _, name := range ready {
		group := stepByName[name].ParallelGroup
		if group == "" {
			out = append(out, name)
			continue
		}
		if handledGroups[group] {
			continue
		}
		handledGroups[group] = true

		members := groupMembers[group]
		allReady := true
		for _, m := range members {
			if _, ok := readySet[m]; !ok {
				allReady = false
				break
			}
		}
		if allReady {
			out = append(out, members...)
		}
	}

	return out
}
