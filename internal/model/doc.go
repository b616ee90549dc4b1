// Package model defines the core data structures used throughout mapharvest.
//
// This package contains the following main types:
//   - SearchTask: one (query, location, target count) search to run
//   - BusinessRecord: the structured record extracted from one listing
//
// Models live in their own package because the paginate, extract, pipeline,
// export and database packages all exchange them.
//
// Records are serializable to JSON and CSV for export and to sqlite rows for
// run history.
package model
