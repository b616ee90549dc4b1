package model

import (
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"
)

// NotFoundName is the sentinel stored in BusinessRecord.Name when the
// heading of the detail panel could not be read.
const NotFoundName = "not found"

// BusinessRecord is the structured data extracted from one listing.
//
// Index, Name, SourceURL and ExtractedAt are always populated. Every other
// field is optional: a field that could not be read keeps its zero value
// (or nil for Website) and never prevents the record from being created.
//
// The JSON field order matches the CSV column order.
type BusinessRecord struct {
	// Index is the 1-based position of the listing within its search.
	Index int `json:"index"`

	// Name is the business name, or NotFoundName.
	Name string `json:"name"`

	// Address is the street address as displayed.
	Address string `json:"address"`

	// Phone is the phone number as displayed.
	Phone string `json:"phone"`

	// Website is the business website link target.
	// Nil means the listing has no website link.
	Website *string `json:"website"`

	// Rating is the displayed star rating (e.g., "4.5").
	Rating string `json:"rating"`

	// ReviewsCount is the first run of digits found in the reviews text.
	ReviewsCount string `json:"reviewsCount"`

	// Category is the business category as displayed.
	Category string `json:"category"`

	// Hours is the opening hours summary as displayed.
	Hours string `json:"hours"`

	// SourceURL is the page URL after the listing was selected.
	SourceURL string `json:"sourceUrl"`

	// ExtractedAt is when the record was created.
	ExtractedAt time.Time `json:"extractedAt"`

	// SearchQuery is the query of the task that produced this record.
	SearchQuery string `json:"searchQuery"`

	// SearchLocation is the location of the task that produced this record.
	SearchLocation string `json:"searchLocation"`
}

// NewBusinessRecord creates a record with every optional field at its
// default. Name starts as NotFoundName.
func NewBusinessRecord(index int, sourceURL string, extractedAt time.Time) *BusinessRecord {
	return &BusinessRecord{
		Index:       index,
		Name:        NotFoundName,
		SourceURL:   sourceURL,
		ExtractedAt: extractedAt,
	}
}

// Tag attaches the provenance fields of the task that produced the record.
// It is called once, right after extraction.
func (r *BusinessRecord) Tag(task SearchTask) {
	r.SearchQuery = task.Query
	r.SearchLocation = task.Location
}

// WebsiteOrEmpty returns the website, or "" when absent.
func (r *BusinessRecord) WebsiteOrEmpty() string {
	if r.Website == nil {
		return ""
	}
	return *r.Website
}

// HasName reports whether the name was actually read from the listing.
func (r *BusinessRecord) HasName() bool {
	return r.Name != "" && r.Name != NotFoundName
}

// Fingerprint identifies the business independent of which search found it.
// It hashes the normalized name, address and phone with SHA3-256 and is
// used to count distinct businesses across stored runs.
func (r *BusinessRecord) Fingerprint() string {
	parts := []string{
		strings.ToLower(strings.TrimSpace(r.Name)),
		strings.ToLower(strings.TrimSpace(r.Address)),
		strings.Join(strings.FieldsFunc(r.Phone, func(c rune) bool {
			return c < '0' || c > '9'
		}), ""),
	}
	sum := sha3.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}

// StringPtr returns a pointer to s. It is a convenience for Website.
func StringPtr(s string) *string {
	return &s
}
