package entity

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/text/unicode/norm"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainScript = "scripthost/script/v1"
	DomainURL    = "scripthost/url/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash returns the content-addressed hash of script text.
//
// Text is NFC normalized first, so two sources that differ only in Unicode
// composition hash identically.
func ContentHash(source string) string {
	return hashWithDomain(DomainScript, []byte(norm.NFC.String(source)))
}

// URLHash returns a stable key for a script URL.
func URLHash(url string) string {
	return hashWithDomain(DomainURL, []byte(norm.NFC.String(url)))
}
