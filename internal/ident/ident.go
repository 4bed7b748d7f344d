// Package ident derives the external identifiers the console assigns to new
// API keys and indexes before they are first saved.
package ident

import (
	"crypto/md5"
	"encoding/hex"

	"github.com/google/uuid"
)

// Generate returns the hex MD5 of name plus a fresh random salt. Two calls with
// the same name give different ids. An empty name gives "".
//
// Uniqueness against existing ids is not checked; the backend rejects a
// duplicate like any other failed write.
func Generate(name string) string {
	if name == "" {
		return ""
	}
	sum := md5.Sum([]byte(name + uuid.NewString()))
	return hex.EncodeToString(sum[:])
}
