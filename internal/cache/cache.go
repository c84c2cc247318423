package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache is the shared evidence cache. It is safe for concurrent use across
// in-flight verification requests.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// EvidenceKey derives the cache key for a claim's retrieval from one source.
func EvidenceKey(sourceID, claim string) string {
	hash := sha256.Sum256([]byte(sourceID + "\x00" + claim))
	return "veracity:evidence:v1:" + hex.EncodeToString(hash[:])
}

// ContentKey derives a stable key from content alone. Used by the repeated
// quality-rejection tracker.
func ContentKey(content string) string {
	hash := sha256.Sum256([]byte(content))
	return "veracity:content:v1:" + hex.EncodeToString(hash[:])
}
