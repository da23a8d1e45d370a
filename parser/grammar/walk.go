package grammar

// Inspect traverses the tree rooted at node in depth-first order. If fn
// returns false the children of that node are skipped.
func Inspect(node Node, fn func(Node) bool) {
	if node == nil || !fn(node) {
		return
	}
	for _, child := range Children(node) {
		Inspect(child, fn)
	}
}

// Children returns the direct child nodes of node in source order.
func Children(node Node) []Node {
	var out []Node
	add := func(n Node) { out = append(out, n) }

	switch n := node.(type) {
	case *SourceFile:
		if n.Prelude != nil {
			add(n.Prelude)
		}
		for _, s := range n.Statements {
			add(s)
		}
	case *Prelude:
		for _, u := range n.UseClauses {
			add(u)
		}
	case *UseClause:
		if n.Service != nil {
			add(n.Service)
		}
	case *QualifiedIdentifier:
		for _, seg := range n.Path {
			add(seg)
		}
		if n.Selection != nil {
			add(n.Selection)
		}
	case *LetBinding:
		if n.Binding != nil {
			add(n.Binding)
		}
	case *OperationCall:
		if n.Name != nil {
			add(n.Name)
		}
		if n.Input != nil {
			add(n.Input)
		}
	case *OperationName:
		if n.Qualifier != nil {
			add(n.Qualifier)
		}
		if n.Name != nil {
			add(n.Name)
		}
	case *Binding:
		if n.Key != nil {
			add(n.Key)
		}
		if n.Value != nil {
			add(n.Value)
		}
	case *Struct:
		for _, f := range n.Fields {
			add(f)
		}
	case *List:
		for _, item := range n.Items {
			add(item)
		}
	}
	return out
}

// NodeAt returns the chain of nodes enclosing offset, outermost first; the
// last element is the innermost node. When two siblings touch at offset
// the one starting there wins.
func NodeAt(file *SourceFile, offset int) []Node {
	if file == nil || !file.Span.Contains(offset) {
		return nil
	}
	path := []Node{file}
	for node := Node(file); ; {
		var hit Node
		for _, child := range Children(node) {
			span := child.GetSpan()
			if span.Start.Offset <= offset && offset < span.End.Offset {
				hit = child
				break
			}
			if span.End.Offset == offset && hit == nil {
				hit = child
			}
		}
		if hit == nil {
			return path
		}
		path = append(path, hit)
		node = hit
	}
}
