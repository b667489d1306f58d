// Package storage keeps an append-only journal of announced slots.
//
// The journal is write-only from the tracker's point of view: it is never
// read back to seed History on startup, so a restart re-announces whatever
// the scheduler currently offers.
package storage
