// Package mongo implements the bus envelope store on MongoDB.
//
// Envelopes live in one collection. Claiming uses FindOneAndUpdate over the
// actionable filter sorted by creation time, so exactly one processor claim
// wins even when queue scans overlap. The collection's change stream feeds
// the processor's change-notification bridge, and a partial TTL index removes
// terminal envelopes after the retention period.
package mongo
