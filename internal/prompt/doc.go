// Package prompt collects search tasks interactively from a terminal.
package prompt
