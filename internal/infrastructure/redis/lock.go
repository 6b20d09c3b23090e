package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/leaselens/leaselens/internal/infrastructure/logging"
	"github.com/leaselens/leaselens/pkg/errors"
)

// releaseScript deletes the lock key only when the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`)

// AnalysisLock guards against two pipelines running for the same document.
// Acquire is non-blocking: a held lock means an analysis is already underway
// and the caller should short-circuit, not wait.
type AnalysisLock struct {
	client *Client
	ttl    time.Duration
	log    logging.Logger
}

// NewAnalysisLock builds the lock manager.  ttl bounds how long a crashed
// worker can keep a document locked.
func NewAnalysisLock(client *Client, ttl time.Duration, log logging.Logger) *AnalysisLock {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &AnalysisLock{client: client, ttl: ttl, log: log.Named("analysis_lock")}
}

// Acquire attempts to take the lock for documentID.  On success it returns
// an owner token to pass to Release; acquired is false when another holder
// has the lock.
func (l *AnalysisLock) Acquire(ctx context.Context, documentID string) (token string, acquired bool, err error) {
	token = uuid.New().String()
	key := l.client.key("lock", "analysis", documentID)

	ok, err := l.client.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return "", false, errors.Wrapf(err, errors.ErrCodeCacheError, "acquire analysis lock for %s", documentID)
	}
	if !ok {
		return "", false, nil
	}

	l.log.Debug("analysis lock acquired", logging.String("document_id", documentID))
	return token, true, nil
}

// Release frees the lock if token still owns it.  Releasing an expired or
// stolen lock is a no-op.
func (l *AnalysisLock) Release(ctx context.Context, documentID, token string) error {
	key := l.client.key("lock", "analysis", documentID)
	if err := releaseScript.Run(ctx, l.client.rdb, []string{key}, token).Err(); err != nil {
		return errors.Wrapf(err, errors.ErrCodeCacheError, "release analysis lock for %s", documentID)
	}
	return nil
}
