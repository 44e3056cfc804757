package entity

// ItemCategory bounds a share of an opening's capacity independently of the
// overall limit.
type ItemCategory int

const (
	CategoryDefault ItemCategory = iota
	CategoryAlpha
	CategoryBeta
	CategoryGamma
	CategoryDelta
	CategoryLambda

	categoryCount
)

var categoryNames = [categoryCount]string{
	CategoryDefault: "DEFAULT",
	CategoryAlpha:   "ALPHA",
	CategoryBeta:    "BETA",
	CategoryGamma:   "GAMMA",
	CategoryDelta:   "DELTA",
	CategoryLambda:  "LAMBDA",
}

// CategoryOf maps a stored category code onto the enumeration. Unknown codes
// fall into CategoryDefault.
func CategoryOf(code int) ItemCategory {
	if code < 0 || code >= int(categoryCount) {
		return CategoryDefault
	}
	return ItemCategory(code)
}

// Categories lists every category in code order.
func Categories() []ItemCategory {
	all := make([]ItemCategory, 0, categoryCount)
	for c := CategoryDefault; c < categoryCount; c++ {
		all = append(all, c)
	}
	return all
}

// String returns the upper-case category name.
func (c ItemCategory) String() string {
	return categoryNames[CategoryOf(int(c))]
}
