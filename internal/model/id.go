package model

import (
	"crypto/rand"
	"encoding/hex"
)

// ID is a transaction's 128-bit identity, with a stable string form.
type ID [16]byte

// NewID generates a random 128-bit transaction id.
func NewID() ID {
	var id ID
	// crypto/rand.Read on the fixed-size array never returns a short
	// read or a non-nil error on any platform Go supports; a failure
	// here would mean the OS entropy source is gone, which nothing in
	// this package could recover from either.
	_, _ = rand.Read(id[:])
	return id
}

// String renders the id as lowercase hex, matching the stable string
// form required by the data model.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}
