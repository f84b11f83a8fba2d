// Package keystore keeps the set of OpenPGP key fingerprints trusted for
// artifact signatures.
package keystore

import (
	"slices"
	"strings"
)

// NormalizeFingerprint upper-cases a fingerprint and strips whitespace, so
// "abcd ef01" and "ABCDEF01" name the same key.
func NormalizeFingerprint(fp string) string {
	return strings.ToUpper(strings.Join(strings.Fields(fp), ""))
}

// Collection is an ordered set of fingerprints.
// Insertion order is kept for deterministic serialization.
type Collection struct {
	keys []string
}

// NewCollection creates a collection holding fps.
func NewCollection(fps ...string) *Collection {
	c := &Collection{}
	for _, fp := range fps {
		c.Add(fp)
	}
	return c
}

// Add inserts fp; it reports whether the collection changed.
func (c *Collection) Add(fp string) bool {
	fp = NormalizeFingerprint(fp)
	if fp == "" || c.Contains(fp) {
		return false
	}
	c.keys = append(c.keys, fp)
	return true
}

// Remove deletes fp; it reports whether the collection changed.
func (c *Collection) Remove(fp string) bool {
	fp = NormalizeFingerprint(fp)
	i := slices.Index(c.keys, fp)
	if i < 0 {
		return false
	}
	c.keys = slices.Delete(c.keys, i, i+1)
	return true
}

// Contains reports whether fp is in the collection.
func (c *Collection) Contains(fp string) bool {
	return slices.Contains(c.keys, NormalizeFingerprint(fp))
}

// ToArray returns a copy of the fingerprints in insertion order.
func (c *Collection) ToArray() []string {
	return slices.Clone(c.keys)
}

// Len returns the number of fingerprints.
func (c *Collection) Len() int {
	return len(c.keys)
}
