/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package snapshot provides durable stores for the last successfully fetched
// value of a key. A snapshot survives process restarts and lets a resilient
// source keep serving data when the remote side is down.
//
// Two drivers are provided. FileStore keeps one JSON file per key and writes
// atomically, so snapshots stay inspectable and editable on disk. BoltStore
// keeps all keys in a single bbolt database and batches writes in the
// background, which is cheaper when there are many small keys.
//
// Every entry is stored as a JSON envelope with the fetch time and the raw
// payload, so the payload itself must be a valid JSON document.
package snapshot
