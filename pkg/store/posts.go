package store

import (
	"context"
	"time"

	"github.com/wisbric/postflow/pkg/domain"
)

// CreatePost inserts a planned post. ContentHash/ContentBucketDate are
// computed by the caller (pkg/dailyroutine) so the uniqueness constraint is
// enforced consistently regardless of caller.
func (s *Store) CreatePost(ctx context.Context, p domain.Post) (int64, error) {
	const q = `
		INSERT INTO posts (agent_id, external_id, content, type, media_urls, scheduled_at,
			target_post_url, thread_parts, allow_url, content_hash, content_bucket_date)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`
	var id int64
	err := s.pool.QueryRow(ctx, q, p.AgentID, p.ExternalID, p.Content, p.Type, p.MediaURLs, p.ScheduledAt,
		p.TargetPostURL, p.ThreadParts, p.AllowURL, p.ContentHash, p.ContentBucketDate).Scan(&id)
	return id, err
}

// ExistsByContentHash reports whether a post with this (agent, hash, bucket
// date) already exists — the DB-authoritative half of the dedupe check; the
// Redis cache in front of this is pkg/posting's fast path.
func (s *Store) ExistsByContentHash(ctx context.Context, agentID int64, hash string, bucketDate time.Time) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM posts WHERE agent_id = $1 AND content_hash = $2 AND content_bucket_date = $3)`
	var exists bool
	err := s.pool.QueryRow(ctx, q, agentID, hash, bucketDate).Scan(&exists)
	return exists, err
}

// ClaimDuePosts atomically claims up to limit unpublished, due posts for an
// agent using SELECT ... FOR UPDATE SKIP LOCKED, so concurrent workers never
// double-publish the same row. Callers must run this inside a transaction
// and mark each returned post as posted (or leave it unclaimed) before
// committing.
func (s *Store) ClaimDuePosts(ctx context.Context, tx DBTX, agentID int64, now time.Time, limit int) ([]domain.Post, error) {
	const q = `
		SELECT id, agent_id, external_id, content, type, media_urls, scheduled_at, posted_at,
		       target_post_url, thread_parts, allow_url, content_hash, content_bucket_date, created_at
		FROM posts
		WHERE agent_id = $1 AND posted_at IS NULL AND (scheduled_at IS NULL OR scheduled_at <= $2)
		ORDER BY scheduled_at NULLS FIRST, id
		LIMIT $3
		FOR UPDATE SKIP LOCKED`
	rows, err := tx.Query(ctx, q, agentID, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// WithClaimedPosts opens a transaction, claims up to limit due posts via
// ClaimDuePosts, and hands them to fn along with a markPosted closure bound
// to the same transaction — so the posted_at write always lands in the
// transaction that observed posted_at = NULL, per the publish worker's
// claim-query invariant. The transaction commits iff fn returns nil.
func (s *Store) WithClaimedPosts(ctx context.Context, agentID int64, now time.Time, limit int, fn func(ctx context.Context, posts []domain.Post, markPosted func(ctx context.Context, postID int64, externalID string, postedAt time.Time) error) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	posts, err := s.ClaimDuePosts(ctx, tx, agentID, now, limit)
	if err != nil {
		return err
	}

	markPosted := func(ctx context.Context, postID int64, externalID string, postedAt time.Time) error {
		return s.MarkPosted(ctx, tx, postID, externalID, postedAt)
	}

	if err := fn(ctx, posts, markPosted); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// MarkPosted records the publish outcome for a single claimed post.
func (s *Store) MarkPosted(ctx context.Context, tx DBTX, postID int64, externalID string, postedAt time.Time) error {
	const q = `UPDATE posts SET external_id = NULLIF($2, ''), posted_at = $3 WHERE id = $1`
	_, err := tx.Exec(ctx, q, postID, externalID, postedAt)
	return err
}

// GetPost loads a single post by ID.
func (s *Store) GetPost(ctx context.Context, id int64) (domain.Post, error) {
	const q = `
		SELECT id, agent_id, external_id, content, type, media_urls, scheduled_at, posted_at,
		       target_post_url, thread_parts, allow_url, content_hash, content_bucket_date, created_at
		FROM posts WHERE id = $1`
	return scanPost(s.pool.QueryRow(ctx, q, id))
}

type postRow interface {
	Scan(dest ...any) error
}

func scanPost(row postRow) (domain.Post, error) {
	var p domain.Post
	var externalID *string
	err := row.Scan(&p.ID, &p.AgentID, &externalID, &p.Content, &p.Type, &p.MediaURLs, &p.ScheduledAt, &p.PostedAt,
		&p.TargetPostURL, &p.ThreadParts, &p.AllowURL, &p.ContentHash, &p.ContentBucketDate, &p.CreatedAt)
	if err != nil {
		return domain.Post{}, mapNotFound(err)
	}
	if externalID != nil {
		p.ExternalID = *externalID
	}
	return p, nil
}
