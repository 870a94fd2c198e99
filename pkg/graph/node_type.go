package graph

// NodeType is one typed node table plus its schema: the alias map
// established at first construction and the declared property kinds.
type NodeType struct {
	Name string

	// IDField and TitleField are the original source column names
	// registered at first construction. They are fixed for the type's
	// lifetime; re-registering different names is a schema conflict.
	IDField    string
	TitleField string

	// Kinds maps canonical property names to declared kinds.
	Kinds map[string]Kind

	aliases map[string]string
	nodes   map[string]*Node
	order   []string
}

func newNodeType(name, idField, titleField string) *NodeType {
	t := &NodeType{
		Name:       name,
		IDField:    idField,
		TitleField: titleField,
		Kinds:      make(map[string]Kind),
		aliases:    make(map[string]string),
		nodes:      make(map[string]*Node),
	}
	if idField != "" && idField != "id" {
		t.aliases[idField] = "id"
	}
	if titleField != "" && titleField != "title" {
		t.aliases[titleField] = "title"
	}
	return t
}

// Canonical resolves a caller-supplied field name to its canonical form.
// Both the original column name and the canonical name resolve identically;
// unknown names pass through unchanged.
func (t *NodeType) Canonical(field string) string {
	if c, ok := t.aliases[field]; ok {
		return c
	}
	return field
}

// Aliases returns a copy of the original-to-canonical alias map.
func (t *NodeType) Aliases() map[string]string {
	out := make(map[string]string, len(t.aliases))
	for k, v := range t.aliases {
		out[k] = v
	}
	return out
}

// checkFields verifies a batch's id/title field names against the
// established alias map. Empty incoming names mean "not specified" and are
// accepted; anything else must match exactly.
func (t *NodeType) checkFields(idField, titleField string) error {
	if idField != "" && idField != t.IDField {
		return &SchemaConflictError{TypeName: t.Name, Field: "id", Existing: t.IDField, Incoming: idField}
	}
	if titleField != "" && t.TitleField != "" && titleField != t.TitleField {
		return &SchemaConflictError{TypeName: t.Name, Field: "title", Existing: t.TitleField, Incoming: titleField}
	}
	return nil
}

// SetKind declares a property kind for a canonical field name. Redeclaring
// a field with a different kind is a schema conflict.
func (t *NodeType) SetKind(field string, k Kind) error {
	if existing, ok := t.Kinds[field]; ok && existing != k {
		return &SchemaConflictError{TypeName: t.Name, Field: field, Existing: string(existing), Incoming: string(k)}
	}
	t.Kinds[field] = k
	return nil
}

// Node returns the node with the given id.
func (t *NodeType) Node(id string) (*Node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// Has reports whether an id resolves in this type.
func (t *NodeType) Has(id string) bool {
	_, ok := t.nodes[id]
	return ok
}

// Len is the node count.
func (t *NodeType) Len() int { return len(t.nodes) }

// Nodes returns all nodes in insertion order.
func (t *NodeType) Nodes() []*Node {
	out := make([]*Node, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.nodes[id])
	}
	return out
}

// IDs returns all node ids in insertion order.
func (t *NodeType) IDs() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

func (t *NodeType) put(n *Node) {
	if _, ok := t.nodes[n.ID]; !ok {
		t.order = append(t.order, n.ID)
	}
	t.nodes[n.ID] = n
}

// EdgeType is one typed edge table. Source and target NodeType names are
// fixed at first construction.
type EdgeType struct {
	Name       string
	SourceType string
	TargetType string
	Kinds      map[string]Kind

	edges []*Edge
}

func newEdgeType(name, sourceType, targetType string) *EdgeType {
	return &EdgeType{
		Name:       name,
		SourceType: sourceType,
		TargetType: targetType,
		Kinds:      make(map[string]Kind),
	}
}

func (t *EdgeType) checkEndpoints(sourceType, targetType string) error {
	if sourceType != t.SourceType {
		return &SchemaConflictError{TypeName: t.Name, Field: "source", Existing: t.SourceType, Incoming: sourceType}
	}
	if targetType != t.TargetType {
		return &SchemaConflictError{TypeName: t.Name, Field: "target", Existing: t.TargetType, Incoming: targetType}
	}
	return nil
}

// SetKind declares an edge property kind.
func (t *EdgeType) SetKind(field string, k Kind) error {
	if existing, ok := t.Kinds[field]; ok && existing != k {
		return &SchemaConflictError{TypeName: t.Name, Field: field, Existing: string(existing), Incoming: string(k)}
	}
	t.Kinds[field] = k
	return nil
}

// Len is the edge count.
func (t *EdgeType) Len() int { return len(t.edges) }

// Edges returns all edges in insertion order.
func (t *EdgeType) Edges() []*Edge {
	out := make([]*Edge, len(t.edges))
	copy(out, t.edges)
	return out
}
