package ufl

// Derivative returns the Gateaux derivative of f with respect to w in the
// direction dir.
//
// w is matched by Key: every occurrence of a node with w's key is treated as the
// variable. When w is a SpatialCoordinate the derivative is a shape derivative:
// the measure contributes integrand·div(dir) and div terms already present are
// differentiated as d/dX div(V)[W] = -div(V)·div(W).
//
// Arguments in dir are appended to the form's arguments.
func Derivative(f Form, w, dir Expr) Form {
	if f.IsEmpty() {
		return f
	}
	d := Diff(f.Integrand, w, dir)
	if _, ok := w.(*SpatialCoordinate); ok {
		d = Add(d, Mul(f.Integrand, NewDiv(dir)))
	}
	return Form{
		Integrand: d,
		Domain:    f.Domain,
		Arguments: mergeArguments(f.Arguments, Arguments(dir)),
	}
}

// Diff returns the Gateaux derivative of e with respect to w in direction dir.
//
// Operators are opaque unless they are the variable, except under a shape
// derivative, which chains through their bodies: the blocks producing
// operators do not depend on the geometry.
func Diff(e, w, dir Expr) Expr {
	if isVariable(e) && e.Key() == w.Key() {
		return dir
	}
	switch n := e.(type) {
	case *Sum:
		terms := make([]Expr, len(n.terms))
		for i, t := range n.terms {
			terms[i] = Diff(t, w, dir)
		}
		return Add(terms...)
	case *Product:
		// Product rule: sum over factors of d(f_i) * prod_{j != i} f_j.
		terms := make([]Expr, 0, len(n.factors))
		for i, fi := range n.factors {
			dfi := Diff(fi, w, dir)
			if IsZero(dfi) {
				continue
			}
			factors := make([]Expr, 0, len(n.factors))
			factors = append(factors, dfi)
			for j, fj := range n.factors {
				if j != i {
					factors = append(factors, fj)
				}
			}
			terms = append(terms, Mul(factors...))
		}
		return Add(terms...)
	case *Power:
		db := Diff(n.base, w, dir)
		de := Diff(n.exp, w, dir)
		var terms []Expr
		if !IsZero(db) {
			// e * b^(e-1) * db
			terms = append(terms, Mul(n.exp, Pow(n.base, Sub(n.exp, Lit(1))), db))
		}
		if !IsZero(de) {
			// b^e * ln(b) * de
			terms = append(terms, Mul(n, Ln(n.base), de))
		}
		return Add(terms...)
	case *Func:
		da := Diff(n.arg, w, dir)
		if IsZero(da) {
			return Zero
		}
		return Mul(outer(n), da)
	case *Div:
		if _, ok := w.(*SpatialCoordinate); ok {
			return Neg(Mul(n, NewDiv(dir)))
		}
		return Zero
	case *Operator:
		if _, ok := w.(*SpatialCoordinate); ok {
			return Diff(n.expanded, w, dir)
		}
		return Zero
	default:
		return Zero
	}
}

// isVariable reports whether e can be a differentiation variable: a terminal or
// a nested operator.
func isVariable(e Expr) bool {
	if _, ok := e.(*Operator); ok {
		return true
	}
	return len(e.Operands()) == 0
}

// outer returns f'(arg) for an elementary function node.
func outer(f *Func) Expr {
	switch f.name {
	case "sin":
		return Cos(f.arg)
	case "cos":
		return Neg(Sin(f.arg))
	case "exp":
		return f
	case "ln":
		return Pow(f.arg, Lit(-1))
	case "tanh":
		return Sub(Lit(1), Pow(f, Lit(2)))
	}
	panic("ufl: no derivative rule for " + f.name)
}
