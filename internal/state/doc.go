// Package state holds the gateway's in-memory view of the house: ambient
// readings, people counting, lighting, humidifier, door servo, and the
// current one-time door code.
//
// Values start explicitly unset ("--") or off, so views never branch on
// missing data. Nothing here is persisted; a restart starts from scratch.
package state
