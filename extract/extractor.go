// Package extract turns a parsed instructor page into a validated record.
//
// Extraction is a pure function of the document. A record is only returned
// when name, department and rating are all present; otherwise the error
// wraps core.ErrExtraction and names the offending field.
package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/poiesic/profmatch/core"
)

// Extractor applies a fixed set of selectors to instructor pages.
// It is safe for concurrent use.
type Extractor struct {
	sel Selectors
}

// New creates an extractor. Zero selector fields take their defaults.
func New(sel Selectors) *Extractor {
	return &Extractor{sel: sel.WithDefaults()}
}

// Selectors returns the effective selectors.
func (e *Extractor) Selectors() Selectors {
	return e.sel
}

// Extract pulls an InstructorRecord out of doc.
func (e *Extractor) Extract(doc *goquery.Document) (*core.InstructorRecord, error) {
	if doc == nil {
		return nil, core.MissingField("document")
	}

	name, err := e.name(doc)
	if err != nil {
		return nil, err
	}
	department, err := e.department(doc)
	if err != nil {
		return nil, err
	}

	record := &core.InstructorRecord{
		Name:           name,
		Department:     department,
		RatingRaw:      strings.TrimSpace(doc.Find(e.sel.Rating).First().Text()),
		ReviewSnippets: e.reviews(doc),
	}
	if doc.Url != nil {
		record.SourceURL = doc.Url.String()
	}

	if err := core.ValidateRecord(record); err != nil {
		return nil, err
	}
	return record, nil
}

func (e *Extractor) meta(doc *goquery.Document, name string) (string, bool) {
	return doc.Find(fmt.Sprintf("meta[name=%q]", name)).First().Attr("content")
}

// name is the title segment before the separator, or the whole title.
func (e *Extractor) name(doc *goquery.Document) (string, error) {
	title, ok := e.meta(doc, e.sel.TitleMeta)
	if !ok {
		return "", core.MissingField("name")
	}
	name, _, _ := strings.Cut(title, e.sel.NameSeparator)
	return strings.TrimSpace(name), nil
}

// department is the description text between the prefix and suffix tokens.
// Without the prefix there is no department; without the suffix the rest
// of the description is used.
func (e *Extractor) department(doc *goquery.Document) (string, error) {
	desc, ok := e.meta(doc, e.sel.DescriptionMeta)
	if !ok {
		return "", core.MissingField("department")
	}
	_, after, found := strings.Cut(desc, e.sel.DepartmentPrefix)
	if !found {
		return "", nil
	}
	dept, _, _ := strings.Cut(after, e.sel.DepartmentSuffix)
	return strings.TrimSpace(dept), nil
}

// reviews keeps non-empty review texts in document order.
func (e *Extractor) reviews(doc *goquery.Document) []string {
	if e.sel.Review == "" || e.sel.MaxReviews == 0 {
		return nil
	}
	var out []string
	doc.Find(e.sel.Review).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if text := strings.TrimSpace(s.Text()); text != "" {
			out = append(out, text)
		}
		return len(out) < e.sel.MaxReviews
	})
	return out
}
