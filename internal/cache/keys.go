package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// DedupeKey names the delivery guard for one failure event. The publisher
// delivers at-least-once; the key is written only after a result persisted,
// so a held key means an analysis for this invocation already completed.
func DedupeKey(functionID, requestID string) string {
	return "lumen:dedupe:" + functionID + ":" + requestID
}

// KnowledgeKey names the cached knowledge-search response for one error
// signature. The signature is hashed because error messages can contain
// arbitrary payload fragments.
func KnowledgeKey(query string) string {
	sum := sha256.Sum256([]byte(query))
	return "lumen:knowledge:" + hex.EncodeToString(sum[:8])
}
