package extract

// Selectors locate each field inside the detail panel of a listing.
type Selectors struct {
	Name     string `yaml:"name"`
	Address  string `yaml:"address"`
	Phone    string `yaml:"phone"`
	Website  string `yaml:"website"`
	Rating   string `yaml:"rating"`
	Reviews  string `yaml:"reviews"`
	Category string `yaml:"category"`
	Hours    string `yaml:"hours"`
}

// DefaultSelectors returns the selectors for the map detail panel.
//
// Reviews and Category share one selector shape. The reviews probe keeps
// only the first run of digits, so the category value is the same text
// without that filtering.
func DefaultSelectors() Selectors {
	return Selectors{
		Name:     "h1",
		Address:  `[data-item-id="address"] .fontBodyMedium`,
		Phone:    `[data-item-id*="phone"] .fontBodyMedium`,
		Website:  `[data-item-id="authority"] a`,
		Rating:   ".fontDisplayLarge",
		Reviews:  ".fontBodyMedium .fontBodyMedium",
		Category: ".fontBodyMedium .fontBodyMedium",
		Hours:    `[data-item-id="oh"] .fontBodyMedium`,
	}
}

// Fields returns the selectors keyed by field name, in record order.
func (s Selectors) Fields() []Field {
	return []Field{
		{Name: FieldName, Selector: s.Name},
		{Name: FieldAddress, Selector: s.Address},
		{Name: FieldPhone, Selector: s.Phone},
		{Name: FieldWebsite, Selector: s.Website},
		{Name: FieldRating, Selector: s.Rating},
		{Name: FieldReviews, Selector: s.Reviews},
		{Name: FieldCategory, Selector: s.Category},
		{Name: FieldHours, Selector: s.Hours},
	}
}

// Ambiguous reports whether the reviews and category probes read the same
// element, which makes one of the two values unreliable.
func (s Selectors) Ambiguous() bool {
	return s.Reviews == s.Category
}

// Field is one named selector.
type Field struct {
	Name     string
	Selector string
}

// Field names as they appear in logs and errors.
const (
	FieldName     = "name"
	FieldAddress  = "address"
	FieldPhone    = "phone"
	FieldWebsite  = "website"
	FieldRating   = "rating"
	FieldReviews  = "reviewsCount"
	FieldCategory = "category"
	FieldHours    = "hours"
)
