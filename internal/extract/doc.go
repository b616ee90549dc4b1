// Package extract turns one rendered listing into a model.BusinessRecord.
//
// Extraction selects the listing, waits for its detail panel, then runs one
// probe per field. Probes are isolated from each other: a probe that fails
// or panics only leaves its own field at the default, and the record is
// still produced. Only failures that make the listing unusable as a whole
// (it cannot be selected, or the page URL cannot be read) are returned as
// errors so the caller can skip the listing.
//
// Probes read either the live page through the driver, or a snapshot of the
// document parsed once with goquery. The snapshot mode trades freshness for
// a single round trip to the browser per listing.
package extract
