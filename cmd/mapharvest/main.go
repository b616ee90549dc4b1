// Package main provides the entry point for the mapharvest CLI.
//
// mapharvest searches a map service for businesses, scrolls the results
// panel until enough listings are loaded, opens each listing and exports
// the extracted records as CSV and JSON.
//
// Usage:
//
//	mapharvest run
//	mapharvest run --task "bakery|Springfield|20"
//	mapharvest run --interactive
//
// See --help for all available options.
package main

func main() {
	Execute()
}
