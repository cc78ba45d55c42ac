package ufl

// Walk visits e and its operands depth first, parents before children.
// Returning false from visit skips the node's operands.
func Walk(e Expr, visit func(Expr) bool) {
	if !visit(e) {
		return
	}
	for _, op := range e.Operands() {
		Walk(op, visit)
	}
}

// Coefficients returns the distinct coefficients of f in order of first
// appearance. Operators come before their operands, which are included.
func Coefficients(f Form) []Coefficient {
	if f.IsEmpty() {
		return nil
	}
	var out []Coefficient
	seen := make(map[string]bool)
	Walk(f.Integrand, func(e Expr) bool {
		c, ok := e.(Coefficient)
		if !ok {
			return true
		}
		if !seen[c.Key()] {
			seen[c.Key()] = true
			out = append(out, c)
		}
		return true
	})
	return out
}

// Operators returns the distinct nested operators of f, outermost first.
func Operators(f Form) []*Operator {
	if f.IsEmpty() {
		return nil
	}
	var out []*Operator
	seen := make(map[string]bool)
	Walk(f.Integrand, func(e Expr) bool {
		if op, ok := e.(*Operator); ok && !seen[op.Key()] {
			seen[op.Key()] = true
			out = append(out, op)
		}
		return true
	})
	return out
}

// Arguments returns the distinct arguments of e in order of first appearance.
func Arguments(e Expr) []*Argument {
	if e == nil {
		return nil
	}
	var out []*Argument
	seen := make(map[*Argument]bool)
	Walk(e, func(n Expr) bool {
		if a, ok := n.(*Argument); ok && !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
		return true
	})
	return out
}

// Contains reports whether a node with the given key occurs in e.
func Contains(e Expr, key string) bool {
	found := false
	Walk(e, func(n Expr) bool {
		if found {
			return false
		}
		if n.Key() == key {
			found = true
		}
		return !found
	})
	return found
}
