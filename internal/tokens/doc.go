// Package tokens keeps the primary and secondary access tokens required by
// the license-entry endpoint.
//
// A [Cache] stores one [models.CachedTokenEntry] in a [models.KVStore] slot.
// Calls to [Cache.Tokens] return the stored pair while it is younger than the
// TTL (thirty minutes by default). Older or missing entries trigger a fetch
// through the configured [Fetcher]; concurrent callers wait on the same fetch
// instead of issuing their own.
//
// Failed fetches never overwrite the stored entry and surface as
// [shared.TokenAcquisitionError].
package tokens
