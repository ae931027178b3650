package executor

// TopologicalSort validates the batch dependency graph and splits it into
// execution waves: wave 0 holds tasks with no dependencies, wave k holds
// tasks whose dependencies all live in waves < k. Waves are computed once,
// up front; runtime failures propagate as skips, not as replanning.
func TopologicalSort(tasks []TaskSpec) ([][]TaskSpec, error) {
	if len(tasks) == 0 {
		return nil, ErrEmptyBatch
	}

	index := make(map[string]int, len(tasks))
	for i, task := range tasks {
		if _, dup := index[task.ID]; dup {
			return nil, &DuplicateTaskIDError{TaskID: task.ID}
		}
		index[task.ID] = i
	}

	indeg := make([]int, len(tasks))
	dependents := make([][]int, len(tasks))
	for i, task := range tasks {
		for _, dep := range task.Dependencies {
			j, ok := index[dep]
			if !ok {
				return nil, &UnknownDependencyError{TaskID: task.ID, MissingID: dep}
			}
			if j == i {
				return nil, &CyclicDependencyError{Cycle: []string{task.ID, task.ID}}
			}
			indeg[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	// Kahn's algorithm, layered: each pass collects every node whose
	// dependencies are fully satisfied, preserving batch order within a wave.
	var layers [][]TaskSpec
	placed := 0
	current := make([]int, 0, len(tasks))
	for i := range tasks {
		if indeg[i] == 0 {
			current = append(current, i)
		}
	}

	for len(current) > 0 {
		layer := make([]TaskSpec, 0, len(current))
		next := current[:0:0]
		for _, i := range current {
			layer = append(layer, tasks[i])
			placed++
			for _, dep := range dependents[i] {
				indeg[dep]--
				if indeg[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		layers = append(layers, layer)
		current = next
	}

	if placed != len(tasks) {
		return nil, &CyclicDependencyError{Cycle: findCycle(tasks, index)}
	}
	return layers, nil
}

// findCycle extracts one witness cycle via DFS. Adjacency follows the batch
// declaration order, so the witness is deterministic for a given batch.
func findCycle(tasks []TaskSpec, index map[string]int) []string {
	const (
		white = iota
		gray
		black
	)

	color := make([]int, len(tasks))
	parent := make([]int, len(tasks))
	for i := range parent {
		parent[i] = -1
	}

	var cycle []int
	var dfs func(u int) bool
	dfs = func(u int) bool {
		color[u] = gray
		for _, dep := range tasks[u].Dependencies {
			v, ok := index[dep]
			if !ok {
				continue
			}
			switch color[v] {
			case white:
				parent[v] = u
				if dfs(v) {
					return true
				}
			case gray:
				// Back-edge u -> v closes the cycle.
				cycle = append(cycle, v)
				for cur := u; cur != -1 && cur != v; cur = parent[cur] {
					cycle = append(cycle, cur)
				}
				cycle = append(cycle, v)
				return true
			}
		}
		color[u] = black
		return false
	}

	for i := range tasks {
		if color[i] == white && dfs(i) {
			break
		}
	}

	if len(cycle) == 0 {
		return nil
	}

	out := make([]string, 0, len(cycle))
	for i := len(cycle) - 1; i >= 0; i-- {
		out = append(out, tasks[cycle[i]].ID)
	}
	return out
}
