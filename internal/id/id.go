// Package id mints job identifiers.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"sync/atomic"
	"time"
)

var fallbackSeq atomic.Uint64

// New returns 32 lowercase hex characters from crypto/rand. If the system
// source fails it falls back to a time and sequence based id, which is still
// unique within the process.
func New() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "t" + strconv.FormatInt(time.Now().UnixNano(), 16) + "-" + strconv.FormatUint(fallbackSeq.Add(1), 16)
	}
	return hex.EncodeToString(b[:])
}
