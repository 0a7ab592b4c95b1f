// Package localfs persists the query logs, downloaded images and the
// provenance-index sidecar on the local filesystem.
package localfs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/user/discovery-service/internal/entity"
	"github.com/user/discovery-service/pkg/urlutil"
)

// QueryLogImpl writes one JSON document per (date, topic) under the
// discovery-logs directory. The deterministic name makes repeated runs on
// the same day for the same topic overwrite-consistent without colliding
// with other topics.
type QueryLogImpl struct {
	dir string
	now func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewQueryLog(dir string) *QueryLogImpl {
	return &QueryLogImpl{
		dir:   dir,
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}
}

// PathFor returns the log file path for a topic on the given date.
func (q *QueryLogImpl) PathFor(topic string, date time.Time) string {
	name := fmt.Sprintf("%s_%s.json", date.UTC().Format("20060102"), urlutil.SlugifyTopic(topic))
	return filepath.Join(q.dir, name)
}

// WriteTopicLog implements repository.QueryLog. The write is atomic from
// the caller's perspective: the document lands via a temp-file rename, so
// a crash leaves either the previous document or the new one, never a
// partial file. Concurrent writers for the same topic serialize on a
// per-path lock.
func (q *QueryLogImpl) WriteTopicLog(ctx context.Context, log *entity.TopicLog) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(q.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create logs dir: %w", err)
	}

	path := q.PathFor(log.Topic, q.now())
	lock := q.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	return path, writeJSONAtomic(path, log)
}

func (q *QueryLogImpl) lockFor(path string) *sync.Mutex {
	q.mu.Lock()
	defer q.mu.Unlock()
	l, ok := q.locks[path]
	if !ok {
		l = &sync.Mutex{}
		q.locks[path] = l
	}
	return l
}

// writeJSONAtomic marshals v and renames a temp file over path.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
