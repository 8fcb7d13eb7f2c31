// Package advert defines the advertisement wire format and its transports.
//
// An advertisement is a JSON object with a mandatory "service" record and
// optional "resources" and "states" sections. Publishers send one through
// every configured Transport; subscribers receive them with a Listener.
//
// The Multicast transport opens its socket lazily and drops it after any
// send error, so a flapping interface heals on the next advertisement.
package advert
