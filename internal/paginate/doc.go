// Package paginate fills an infinitely scrolling results panel until enough
// listings are rendered or the panel stops growing.
//
// The loop itself lives in Poller, a bounded poll-until-stable helper that
// knows nothing about browsers. Controller binds it to a driver.Session:
// the action scrolls the panel, and the observation counts rendered
// listings and reads the panel's scroll extent.
//
// Termination is guaranteed. Every round either grows the extent, which
// resets the stability counter, or leaves it unchanged, which advances the
// counter toward MaxRounds.
package paginate
