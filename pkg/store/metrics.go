package store

import (
	"context"

	"github.com/wisbric/postflow/pkg/domain"
)

// UpsertPostByExternalID inserts a platform-reported post, or returns the
// existing row's id when one already exists for (agent_id, external_id) —
// the partial unique index backs this on-conflict target.
func (s *Store) UpsertPostByExternalID(ctx context.Context, p domain.Post) (int64, error) {
	const q = `
		INSERT INTO posts (agent_id, external_id, content, type, posted_at, content_hash, content_bucket_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (agent_id, external_id) WHERE external_id IS NOT NULL
		DO UPDATE SET content = EXCLUDED.content
		RETURNING id`
	var id int64
	err := s.pool.QueryRow(ctx, q, p.AgentID, p.ExternalID, p.Content, p.Type, p.PostedAt, p.ContentHash, p.ContentBucketDate).Scan(&id)
	return id, err
}

// HasConfirmedMetrics reports whether a confirmed PostMetrics row already
// exists for this post, the guard that keeps re-runs of the daily routine
// from duplicating platform-authoritative metrics.
func (s *Store) HasConfirmedMetrics(ctx context.Context, postID int64) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM post_metrics WHERE post_id = $1 AND collection_type = 'confirmed')`
	var exists bool
	err := s.pool.QueryRow(ctx, q, postID).Scan(&exists)
	return exists, err
}

// InsertPostMetrics appends one metrics observation.
func (s *Store) InsertPostMetrics(ctx context.Context, m domain.PostMetrics) error {
	const q = `
		INSERT INTO post_metrics (post_id, collection_type, collected_at, impressions, likes, replies, retweets, clicks, engagements)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := s.pool.Exec(ctx, q, m.PostID, m.CollectionType, m.CollectedAt, m.Impressions, m.Likes, m.Replies, m.Retweets, m.Clicks, m.Engagements)
	return err
}
