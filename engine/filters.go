package engine

import "strings"

// Filters select records by dimension value: OR within a dimension,
// AND across dimensions. A dimension with no values is unconstrained.
type Filters struct {
	Dimensions map[string][]string `json:"dimensions"`
}

// IsEmpty reports whether no dimension is constrained.
func (f Filters) IsEmpty() bool {
	for _, vals := range f.Dimensions {
		if len(vals) > 0 {
			return false
		}
	}
	return true
}

// clause is one constrained dimension with its normalised allowed values.
type clause struct {
	dim     string
	allowed map[string]struct{}
}

func (c clause) match(value string) bool {
	_, ok := c.allowed[normalize(value)]
	return ok
}

// compile turns f into clauses, narrowest first so rows fail early.
func (f Filters) compile() []clause {
	var clauses []clause
	for dim, vals := range f.Dimensions {
		if len(vals) == 0 {
			continue
		}
		c := clause{dim: dim, allowed: make(map[string]struct{}, len(vals))}
		for _, v := range vals {
			c.allowed[normalize(v)] = struct{}{}
		}
		clauses = append(clauses, c)
	}
	for i := 1; i < len(clauses); i++ {
		for j := i; j > 0 && len(clauses[j].allowed) < len(clauses[j-1].allowed); j-- {
			clauses[j], clauses[j-1] = clauses[j-1], clauses[j]
		}
	}
	return clauses
}

// ApplyFilters returns the rows of view that pass f, compared
// case-insensitively after trimming. With no constraint view itself is returned.
func ApplyFilters(view RecordView, f Filters) RecordView {
	clauses := f.compile()
	if len(clauses) == 0 {
		return view
	}

	var keep []int
rows:
	for i, n := 0, view.Len(); i < n; i++ {
		for _, c := range clauses {
			if !c.match(view.Dimension(i, c.dim)) {
				continue rows
			}
		}
		keep = append(keep, i)
	}
	return newSubView(view, keep)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
