package types

import "errors"

var (
	errNoNodes     = errors.New("task graph has no nodes")
	errEmptyNodeID = errors.New("task graph node has empty id")
)

// DuplicateNodeIDError reports a TaskGraph with two nodes sharing an id.
type DuplicateNodeIDError struct{ ID string }

func (e *DuplicateNodeIDError) Error() string {
	return "duplicate task graph node id: " + e.ID
}

// UnknownDependencyError reports a depends_on entry with no matching node.
type UnknownDependencyError struct{ Node, Dependency string }

func (e *UnknownDependencyError) Error() string {
	return "node " + e.Node + " depends on unknown node " + e.Dependency
}

// CyclicGraphError reports a dependency cycle reachable from Node.
type CyclicGraphError struct{ Node string }

func (e *CyclicGraphError) Error() string {
	return "task graph has a dependency cycle involving node " + e.Node
}
