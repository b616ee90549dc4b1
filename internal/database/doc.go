// Package database provides SQLite-based run history for mapharvest.
//
// Every run is stored with the tasks it executed and the records it
// produced, so results can be listed and exported again later without
// repeating the search. Records carry a fingerprint of the business so
// the same listing found by different searches can be counted once.
//
// The database is a single file (modernc.org/sqlite, no cgo) in the XDG
// data directory.
package database
