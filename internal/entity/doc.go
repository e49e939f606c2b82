// Package entity provides the identity types shared by every other package
// of the script host.
//
// This package contains value types only. All other internal packages
// import entity; entity imports nothing internal.
//
// Key design constraints:
//   - ID is a UUID; the zero value (Nil) means "no entity" (host-level code)
//   - Content hashes are domain-separated SHA-256 over NFC-normalized text
//   - Event argument types are plain data, never interpreter values
package entity
