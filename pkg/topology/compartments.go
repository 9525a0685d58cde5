package topology

import (
	"github.com/samber/lo"

	"oci-gpu-toolkit/pkg/oci"
)

// RootCompartmentName labels the tenancy in a compartment tree.
const RootCompartmentName = "root"

// CompartmentNode is one compartment with its children in listing order.
type CompartmentNode struct {
	Compartment oci.Compartment
	Children    []*CompartmentNode
}

// CompartmentTree is rooted at the tenancy. Unreachable holds compartments whose parent chain
// never reaches the tenancy, for example when a parent was filtered out of the listing.
type CompartmentTree struct {
	Root        *CompartmentNode
	Unreachable []oci.Compartment
}

// BuildCompartmentTree links compartments through their parent IDs.
func BuildCompartmentTree(tenancyID string, compartments []oci.Compartment) CompartmentTree {
	compartments = lo.UniqBy(compartments, func(c oci.Compartment) string { return c.ID })
	children := lo.GroupBy(compartments, func(c oci.Compartment) string { return c.ParentID })

	root := &CompartmentNode{Compartment: oci.Compartment{
		ID:             tenancyID,
		Name:           RootCompartmentName,
		LifecycleState: oci.StateActive,
	}}

	visited := map[string]bool{tenancyID: true}
	queue := []*CompartmentNode{root}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		for _, child := range children[node.Compartment.ID] {
			if visited[child.ID] {
				continue
			}

			visited[child.ID] = true
			childNode := &CompartmentNode{Compartment: child}
			node.Children = append(node.Children, childNode)
			queue = append(queue, childNode)
		}
	}

	unreachable := lo.Reject(compartments, func(c oci.Compartment, _ int) bool {
		return visited[c.ID]
	})

	return CompartmentTree{Root: root, Unreachable: unreachable}
}

// Walk visits the tree depth first. depth is 0 for the root.
func (n *CompartmentNode) Walk(visit func(node *CompartmentNode, depth int)) {
	n.walk(visit, 0)
}

func (n *CompartmentNode) walk(visit func(node *CompartmentNode, depth int), depth int) {
	visit(n, depth)

	for _, child := range n.Children {
		child.walk(visit, depth+1)
	}
}
