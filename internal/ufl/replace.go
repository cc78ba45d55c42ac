package ufl

// Mapping maps node keys to replacement expressions.
type Mapping map[string]Expr

// Set maps from to to.
func (m Mapping) Set(from, to Expr) { m[from.Key()] = to }

// Replace applies m to the integrand of f.
func Replace(f Form, m Mapping) Form {
	if f.IsEmpty() || len(m) == 0 {
		return f
	}
	e := ReplaceExpr(f.Integrand, m)
	return Form{Integrand: e, Domain: f.Domain, Arguments: mergeArguments(f.Arguments, Arguments(e))}
}

// ReplaceExpr replaces every node of e whose key is in m, top down. A node that
// is replaced is not descended into, except that a replacement operator has m
// applied to its own operands: its operands are coefficients of the same
// expression and must be substituted consistently. A replacement operator whose
// operands are unaffected is used as is.
func ReplaceExpr(e Expr, m Mapping) Expr {
	if len(m) == 0 {
		return e
	}
	return replace(e, m)
}

func replace(e Expr, m Mapping) Expr {
	if isVariable(e) {
		if r, ok := m[e.Key()]; ok {
			if op, ok := r.(*Operator); ok {
				ops := replaceAll(op.operands, m)
				if sameKeys(ops, op.operands) {
					return op
				}
				return op.With(ops...)
			}
			return r
		}
	}
	ops := e.Operands()
	if len(ops) == 0 {
		return e
	}
	return e.Reconstruct(replaceAll(ops, m)...)
}

func replaceAll(es []Expr, m Mapping) []Expr {
	out := make([]Expr, len(es))
	for i, e := range es {
		out[i] = replace(e, m)
	}
	return out
}

func sameKeys(a, b []Expr) bool {
	for i := range a {
		if a[i] != b[i] && a[i].Key() != b[i].Key() {
			return false
		}
	}
	return true
}
