// Package driver defines the browser collaborator used by the scraper.
//
// The pagination controller and the record extractor never talk to a
// browser directly. They receive a Session, which is owned by the command
// that opened it and threaded through every call, and they work on Element
// handles returned by it. The roddriver subpackage provides the real
// implementation; tests provide in-memory fakes.
package driver
