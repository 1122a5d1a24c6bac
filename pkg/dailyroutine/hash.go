package dailyroutine

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentHash computes the dedupe key used by posts.content_hash: the
// hex-encoded sha256 of content exactly as given, with no normalization of
// its own. The planner passes normalizeForHash output and checks
// ExistsByContentHash before inserting; the database's unique constraint on
// (agent_id, content_hash, content_bucket_date) is the final guard.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
