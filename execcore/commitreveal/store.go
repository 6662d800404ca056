package commitreveal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"nhbchain/execcore/execerr"
	"nhbchain/execcore/types"
	"nhbchain/storage"
)

const defaultTTL = 10 * time.Minute

// record is the JSON envelope persisted for a commitment, carrying its own
// expiry so the local mirror (which has no native TTL) can self-expire on
// read even without a background janitor.
type record struct {
	Commitment types.CommitmentRecord `json:"commitment"`
	ExpiresAt  int64                  `json:"expiresAt"` // unix millis
}

// Store is the hybrid commit-reveal store: a distributed KV (Redis, shared
// across executor replicas) with a process-local mirror (storage.Database)
// that is written through on every put, consulted when Redis has no entry,
// and used alone when no Redis client is configured, per spec.md §9. A Redis
// error is returned to the caller; it does not fall back to the mirror.
type Store struct {
	rdb   *redis.Client // nil disables the distributed tier
	local storage.Database
	ttl   time.Duration
	now   func() time.Time
}

// NewStore constructs a Store. rdb may be nil to run purely on the local
// mirror (single-process deployments / tests).
func NewStore(rdb *redis.Client, local storage.Database, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{rdb: rdb, local: local, ttl: ttl, now: time.Now}
}

func streamKey(commitmentHash string) string { return "commitreveal:" + commitmentHash }

// PutIfAbsent stores rec under commitmentHash only if no record currently
// exists there (set-if-absent), returning ERR_DUPLICATE_COMMITMENT if one
// already does. The distributed tier is authoritative when present; the
// local mirror is written through unconditionally as a durability backstop.
func (s *Store) PutIfAbsent(ctx context.Context, commitmentHash string, rec types.CommitmentRecord) error {
	payload := record{Commitment: rec, ExpiresAt: s.now().Add(s.ttl).UnixMilli()}
	raw, err := json.Marshal(payload)
	if err != nil {
		return execerr.Wrap(execerr.CodeUnexpected, "marshal commitment record", err)
	}

	if s.rdb != nil {
		ok, err := s.rdb.SetNX(ctx, streamKey(commitmentHash), raw, s.ttl).Result()
		if err != nil {
			return execerr.Wrap(execerr.CodeNoProvider, "commit-reveal store unreachable", err)
		}
		if !ok {
			return execerr.New(execerr.CodeDuplicateCommitment, fmt.Sprintf("commitment %s already exists", commitmentHash))
		}
	} else if s.local != nil {
		if _, err := s.local.Get([]byte(streamKey(commitmentHash))); err == nil {
			return execerr.New(execerr.CodeDuplicateCommitment, fmt.Sprintf("commitment %s already exists", commitmentHash))
		}
	}

	if s.local != nil {
		if err := s.local.Put([]byte(streamKey(commitmentHash)), raw); err != nil {
			return execerr.Wrap(execerr.CodeUnexpected, "write local commit-reveal mirror", err)
		}
	}
	return nil
}

// Get retrieves the commitment record for commitmentHash, preferring the
// distributed tier, and reports a not-found error if it has expired.
func (s *Store) Get(ctx context.Context, commitmentHash string) (types.CommitmentRecord, error) {
	var raw []byte
	if s.rdb != nil {
		v, err := s.rdb.Get(ctx, streamKey(commitmentHash)).Bytes()
		if err == nil {
			raw = v
		} else if err != redis.Nil {
			return types.CommitmentRecord{}, execerr.Wrap(execerr.CodeNoProvider, "commit-reveal store unreachable", err)
		}
	}
	if raw == nil && s.local != nil {
		v, err := s.local.Get([]byte(streamKey(commitmentHash)))
		if err == nil {
			raw = v
		}
	}
	if raw == nil {
		return types.CommitmentRecord{}, storage.ErrNotFound
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return types.CommitmentRecord{}, execerr.Wrap(execerr.CodeUnexpected, "unmarshal commitment record", err)
	}
	if s.now().UnixMilli() > rec.ExpiresAt {
		_ = s.Delete(ctx, commitmentHash)
		return types.CommitmentRecord{}, storage.ErrNotFound
	}
	return rec.Commitment, nil
}

// Delete removes commitmentHash from both tiers, called on reveal,
// cancellation or explicit expiry cleanup.
func (s *Store) Delete(ctx context.Context, commitmentHash string) error {
	if s.rdb != nil {
		if err := s.rdb.Del(ctx, streamKey(commitmentHash)).Err(); err != nil {
			return execerr.Wrap(execerr.CodeNoProvider, "delete from commit-reveal store", err)
		}
	}
	if s.local != nil {
		if err := s.local.Delete([]byte(streamKey(commitmentHash))); err != nil {
			return execerr.Wrap(execerr.CodeUnexpected, "delete from local commit-reveal mirror", err)
		}
	}
	return nil
}
