// Package token defines the synthetic token space and the records derived
// from it.
//
// A token is identified by (level, number). Its content is a pure function
// of that pair:
//
//	content = fmt.Sprintf("%03d", level) + hex(sha256(decimal(number)))
//
// Content is never stored as a mutable business object; it is regenerated
// on demand and must be byte-for-byte identical on every call. The store
// persists Records, which pair content with the identifier an addresser
// computed for it.
package token
