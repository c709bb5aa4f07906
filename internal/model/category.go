package model

import "strings"

// Category is the fixed document classification.
type Category string

const (
	CategoryPrescription Category = "Prescription"
	CategoryReport       Category = "Report"
	CategoryBill         Category = "Bill"
	CategoryInsurance    Category = "Insurance"
	CategoryOther        Category = "Other"
)

// Categories lists every bucket in display order.
var Categories = []Category{
	CategoryPrescription,
	CategoryReport,
	CategoryBill,
	CategoryInsurance,
	CategoryOther,
}

// ParseCategory matches s case-insensitively against the known categories.
// An empty string yields CategoryOther; anything else unknown reports ok=false.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return CategoryOther, true
	}
	for _, c := range Categories {
		if strings.EqualFold(string(c), s) {
			return c, true
		}
	}
	return "", false
}

// Bucket returns the grouping bucket for c; unknown values land in Other.
func (c Category) Bucket() Category {
	if parsed, ok := ParseCategory(string(c)); ok {
		return parsed
	}
	return CategoryOther
}

// GroupedDocuments is the category-bucketed listing.
type GroupedDocuments struct {
	Counts  map[Category]int               `json:"counts"`
	Records map[Category][]DocumentSummary `json:"records"`
}

// GroupDocuments partitions docs into every category bucket, keeping input order within a bucket.
func GroupDocuments(docs []Document, url func(Document) string) GroupedDocuments {
	g := GroupedDocuments{
		Counts:  make(map[Category]int, len(Categories)),
		Records: make(map[Category][]DocumentSummary, len(Categories)),
	}
	for _, c := range Categories {
		g.Counts[c] = 0
		g.Records[c] = []DocumentSummary{}
	}
	for _, d := range docs {
		b := d.Category.Bucket()
		g.Records[b] = append(g.Records[b], d.Summary(url(d)))
		g.Counts[b]++
	}
	return g
}
