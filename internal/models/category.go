package models

// Category is the closed set of expense categories.
type Category string

const (
	CategoryFoodDining    Category = "Food & Dining"
	CategoryTransport     Category = "Transportation"
	CategoryShopping      Category = "Shopping"
	CategoryEntertainment Category = "Entertainment"
	CategoryBills         Category = "Bills & Utilities"
	CategoryHealthcare    Category = "Healthcare"
	CategoryEducation     Category = "Education"
	CategoryTravel        Category = "Travel"
	CategoryOther         Category = "Other"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryFoodDining,
	CategoryTransport,
	CategoryShopping,
	CategoryEntertainment,
	CategoryBills,
	CategoryHealthcare,
	CategoryEducation,
	CategoryTravel,
	CategoryOther,
}

// CategoryMeta holds the display properties of a category.
type CategoryMeta struct {
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

// Meta returns the display properties of c.
func (c Category) Meta() CategoryMeta {
	switch c {
	case CategoryFoodDining:
		return CategoryMeta{Icon: "🍽️", Color: "blue"}
	case CategoryTransport:
		return CategoryMeta{Icon: "🚗", Color: "green"}
	case CategoryShopping:
		return CategoryMeta{Icon: "🛍️", Color: "purple"}
	case CategoryEntertainment:
		return CategoryMeta{Icon: "🎬", Color: "pink"}
	case CategoryBills:
		return CategoryMeta{Icon: "💡", Color: "orange"}
	case CategoryHealthcare:
		return CategoryMeta{Icon: "🏥", Color: "red"}
	case CategoryEducation:
		return CategoryMeta{Icon: "📚", Color: "indigo"}
	case CategoryTravel:
		return CategoryMeta{Icon: "✈️", Color: "teal"}
	default:
		return CategoryMeta{Icon: "📦", Color: "gray"}
	}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory matches s exactly against the category names.
func ParseCategory(s string) (Category, bool) {
	c := Category(s)
	return c, c.Valid()
}
