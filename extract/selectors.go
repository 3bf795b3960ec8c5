package extract

import (
	"errors"
	"strings"
)

// Selectors describes where each record field lives in an instructor page.
type Selectors struct {
	// TitleMeta is the name attribute of the meta tag carrying the instructor name.
	TitleMeta string `yaml:"title_meta"`

	// NameSeparator splits the title; the left-hand segment is the name.
	NameSeparator string `yaml:"name_separator"`

	// DescriptionMeta is the name attribute of the meta tag carrying the department.
	DescriptionMeta string `yaml:"description_meta"`

	// DepartmentPrefix precedes the department in the description.
	DepartmentPrefix string `yaml:"department_prefix"`

	// DepartmentSuffix follows the department in the description.
	DepartmentSuffix string `yaml:"department_suffix"`

	// Rating is a CSS selector for the rating region.
	Rating string `yaml:"rating"`

	// Review is a CSS selector matching each review body.
	Review string `yaml:"review"`

	// MaxReviews caps the number of review snippets kept.
	MaxReviews int `yaml:"max_reviews"`
}

// DefaultSelectors matches the instructor rating page layout the system was built against.
func DefaultSelectors() Selectors {
	return Selectors{
		TitleMeta:        "title",
		NameSeparator:    " at ",
		DescriptionMeta:  "description",
		DepartmentPrefix: "in the ",
		DepartmentSuffix: " department",
		Rating:           "div.liyUjw",
		Review:           "div.Comments__StyledComments-dzzyvm-0.gRjWel",
		MaxReviews:       5,
	}
}

// WithDefaults fills zero fields from DefaultSelectors.
func (s Selectors) WithDefaults() Selectors {
	d := DefaultSelectors()
	if s.TitleMeta == "" {
		s.TitleMeta = d.TitleMeta
	}
	if s.NameSeparator == "" {
		s.NameSeparator = d.NameSeparator
	}
	if s.DescriptionMeta == "" {
		s.DescriptionMeta = d.DescriptionMeta
	}
	if s.DepartmentPrefix == "" {
		s.DepartmentPrefix = d.DepartmentPrefix
	}
	if s.DepartmentSuffix == "" {
		s.DepartmentSuffix = d.DepartmentSuffix
	}
	if s.Rating == "" {
		s.Rating = d.Rating
	}
	if s.Review == "" {
		s.Review = d.Review
	}
	if s.MaxReviews == 0 {
		s.MaxReviews = d.MaxReviews
	}
	return s
}

// Validate reports selectors that cannot be used.
func (s Selectors) Validate() error {
	if strings.TrimSpace(s.TitleMeta) == "" || strings.TrimSpace(s.DescriptionMeta) == "" {
		return errors.New("extract: meta names are required")
	}
	if strings.TrimSpace(s.Rating) == "" {
		return errors.New("extract: rating selector is required")
	}
	if s.MaxReviews < 0 {
		return errors.New("extract: max reviews cannot be negative")
	}
	return nil
}
