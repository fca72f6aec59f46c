package dom

import "slices"

// MutationKind distinguishes child-list changes from attribute changes.
type MutationKind string

const (
	ChildList  MutationKind = "childList"
	Attributes MutationKind = "attributes"
)

// ObserveOptions configures a mutation observation.
type ObserveOptions struct {
	// AttributeFilter restricts attribute mutations to these names. Empty
	// means no attribute mutations are reported.
	AttributeFilter []string
	// Probes are selectors evaluated against every node carried by a
	// mutation, so that consumers can classify nodes after the fact, even
	// nodes that were removed from the document.
	Probes []string
}

// Mutation is one record of a mutation batch.
type Mutation struct {
	Kind      MutationKind
	Attribute string
	// OldValue is the attribute value before the change, when known.
	OldValue string
	Target   Node
	Added    []Node
	Removed  []Node
}

// Node is a snapshot of a node taken when the mutation was recorded.
type Node struct {
	Element bool
	ID      NodeID
	Tag     string
	Classes []string
	// Is lists the probes the node itself matched.
	Is []string
	// Has lists the probes matched by at least one descendant.
	Has []string
}

// HasClass reports whether the node carried class when recorded.
func (n Node) HasClass(class string) bool {
	return slices.Contains(n.Classes, class)
}

// Matches reports whether the node itself matched probe.
func (n Node) Matches(probe string) bool {
	return n.Element && slices.Contains(n.Is, probe)
}

// Contains reports whether the node or any descendant matched probe.
func (n Node) Contains(probe string) bool {
	return n.Element && (slices.Contains(n.Is, probe) || slices.Contains(n.Has, probe))
}
