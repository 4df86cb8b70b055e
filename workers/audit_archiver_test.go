package workers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"battle-arena-system/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureUploader struct {
	mu      sync.Mutex
	uploads []struct {
		data        []byte
		key         string
		contentType string
	}
	err error
}

func (u *captureUploader) upload(data []byte, key, contentType string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return "", u.err
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	u.uploads = append(u.uploads, struct {
		data        []byte
		key         string
		contentType string
	}{buf, key, contentType})
	return "https://r2.example/" + key, nil
}

func (u *captureUploader) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.uploads)
}

func newTestArchiver(batchSize int, uploader *captureUploader) *AuditArchiver {
	a := NewAuditArchiver()
	a.batchSize = batchSize
	a.upload = uploader.upload
	return a
}

func admission(playerID string) services.QueueEntry {
	return services.QueueEntry{
		PlayerID: playerID,
		Username: "player-" + playerID,
		JoinedAt: time.Now().UTC(),
	}
}

func TestRecordFlushesFullBatch(t *testing.T) {
	uploader := &captureUploader{}
	a := newTestArchiver(3, uploader)

	a.Record(admission("p1"))
	a.Record(admission("p2"))
	require.Equal(t, 0, uploader.count(), "partial batch must not flush")

	a.Record(admission("p3"))
	require.Equal(t, 1, uploader.count())

	got := uploader.uploads[0]
	assert.True(t, strings.HasPrefix(got.key, "audit/admissions/"))
	assert.True(t, strings.HasSuffix(got.key, ".jsonl"))
	assert.Equal(t, "application/x-ndjson", got.contentType)

	var ids []string
	scanner := bufio.NewScanner(bytes.NewReader(got.data))
	for scanner.Scan() {
		var entry services.QueueEntry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		ids = append(ids, entry.PlayerID)
	}
	assert.Equal(t, []string{"p1", "p2", "p3"}, ids, "JSONL lines keep admission order")
}

func TestFlushPendingDrainsPartialBatch(t *testing.T) {
	uploader := &captureUploader{}
	a := newTestArchiver(50, uploader)

	a.Record(admission("p1"))
	a.FlushPending()
	require.Equal(t, 1, uploader.count())

	// Nothing left: a second flush uploads nothing.
	a.FlushPending()
	assert.Equal(t, 1, uploader.count())
}

func TestUploadFailureDropsBatch(t *testing.T) {
	uploader := &captureUploader{err: errors.New("bucket unavailable")}
	a := newTestArchiver(50, uploader)

	a.Record(admission("p1"))
	a.FlushPending()

	uploader.mu.Lock()
	uploader.err = nil
	uploader.mu.Unlock()

	// The failed batch is not retried.
	a.FlushPending()
	assert.Equal(t, 0, uploader.count())
}

func TestStartFlushesOnShutdown(t *testing.T) {
	uploader := &captureUploader{}
	a := newTestArchiver(50, uploader)

	a.Record(admission("p1"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Start(ctx, time.Hour)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("archiver did not stop after context cancellation")
	}

	assert.Equal(t, 1, uploader.count(), "shutdown flush must drain the buffer")
}
