package catalog

// Project is a normalized catalog listing.
type Project struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Slug           string   `json:"slug,omitempty"`
	Link           string   `json:"link,omitempty"`
	Location       string   `json:"location,omitempty"`
	PriceRange     string   `json:"price_range,omitempty"`
	Configurations []string `json:"configurations,omitempty"`
	Possession     string   `json:"possession,omitempty"`
	Images         []string `json:"images,omitempty"`
	Amenities      []string `json:"amenities,omitempty"`
}

// Query filters a catalog fetch.
type Query struct {
	Search           string
	Page             int
	PageSize         int
	PropertyCategory string
	Country          string
	IsComplete       bool
	PriceRange       string
}

// DefaultQuery returns the listing query used by the chat agent.
func DefaultQuery() Query {
	return Query{
		Page:             1,
		PageSize:         1000,
		PropertyCategory: "All",
		Country:          "india",
		IsComplete:       true,
		PriceRange:       "all",
	}
}
