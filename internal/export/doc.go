// Package export writes extracted business records to files.
//
// Writers implement the Writer interface, so they can be used
// interchangeably:
//   - CSVWriter: one row per record, header in record field order
//   - JSONWriter: an indented array with non-ASCII text kept as is
//   - MarkdownWriter: a human readable summary with per-search tables
//
// Exporter names the files, creates them and runs the writers.
package export
