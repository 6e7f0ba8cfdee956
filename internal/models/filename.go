package models

import (
	"crypto/rand"
	"math/big"
)

// FilenameLength is the fixed length of generated artifact stems.
const FilenameLength = 11

// filenameAlphabet matches the catalog's generation alphabet.
const filenameAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateFilename produces a new artifact stem: FilenameLength characters
// drawn from [A-Za-z0-9] using crypto/rand. The taken set lets the caller
// enforce uniqueness against already-issued names; pass nil when no
// collision domain applies.
func GenerateFilename(taken map[string]struct{}) string {
	for {
		name := randomName()
		if _, exists := taken[name]; !exists {
			return name
		}
	}
}

func randomName() string {
	buf := make([]byte, FilenameLength)
	max := big.NewInt(int64(len(filenameAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the platform source is broken;
			// no usable fallback exists for name generation.
			panic(err)
		}
		buf[i] = filenameAlphabet[n.Int64()]
	}
	return string(buf)
}

// ValidFilename reports whether a name satisfies the length/alphabet
// contract for generated artifact stems.
func ValidFilename(name string) bool {
	if len(name) != FilenameLength {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}
