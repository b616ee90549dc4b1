// Package roddriver implements driver.Session on top of a Chromium instance
// controlled through the DevTools protocol with go-rod.
//
// A session owns the launcher process, the browser connection, one page and
// an exclusive lock on its profile directory. Close releases all of them in
// reverse order of acquisition.
package roddriver
