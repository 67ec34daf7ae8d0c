// Package models defines the data exchanged between the token cache, the progress stream decoder, and the license-entry backend.
//
// The package contains two categories of types:
//
// 1. Credentials
//   - [TokenPair] : The two short-lived credentials required by the create-entry call
//   - [CachedTokenEntry] : A TokenPair stamped with its acquisition time, as persisted in the token slot
//
// 2. License entry workflow
//   - [LicenseEntry] : The user details submitted to the backend, validated client-side
//   - [ProgressEvent] : One decoded frame of the backend's progress stream
//
// [KVStore] is the persistence contract for the token slot; implementations live in the repositories package.
package models
