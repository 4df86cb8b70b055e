package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"battle-arena-system/services"
	"battle-arena-system/utils"

	"github.com/google/uuid"
)

const defaultArchiveBatchSize = 50

// AuditArchiver collects admissions consumed from the queue bridge and
// flushes them as JSONL objects to R2. Batches flush when full or on the
// ticker, whichever comes first.
type AuditArchiver struct {
	mu        sync.Mutex
	pending   []services.QueueEntry
	batchSize int

	// upload is utils.UploadBytesToR2 in production; tests swap it out.
	upload func(data []byte, key, contentType string) (string, error)
}

func NewAuditArchiver() *AuditArchiver {
	return &AuditArchiver{
		batchSize: defaultArchiveBatchSize,
		upload:    utils.UploadBytesToR2,
	}
}

// Record buffers one admission, flushing immediately when the batch fills.
// The upload runs outside the mutex, so concurrent callers filling batches
// back to back may upload them out of admission order. Order within a batch
// is preserved; the JetStream stream keeps the authoritative ordering.
func (a *AuditArchiver) Record(entry services.QueueEntry) {
	a.mu.Lock()
	a.pending = append(a.pending, entry)
	var batch []services.QueueEntry
	if len(a.pending) >= a.batchSize {
		batch = a.pending
		a.pending = nil
	}
	a.mu.Unlock()

	if batch != nil {
		a.flush(batch)
	}
}

// Start flushes partial batches on an interval, and once more on shutdown.
func (a *AuditArchiver) Start(ctx context.Context, interval time.Duration) {
	log.Printf("🗂️ [AUDIT] Archiver running (batch %d, flush every %s)", a.batchSize, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.FlushPending()
		case <-ctx.Done():
			a.FlushPending()
			log.Println("⏹️ [AUDIT] Archiver stopped")
			return
		}
	}
}

// FlushPending uploads whatever is buffered right now.
func (a *AuditArchiver) FlushPending() {
	a.mu.Lock()
	batch := a.pending
	a.pending = nil
	a.mu.Unlock()

	if len(batch) > 0 {
		a.flush(batch)
	}
}

func (a *AuditArchiver) flush(batch []services.QueueEntry) {
	var buf bytes.Buffer
	for _, entry := range batch {
		line, err := json.Marshal(entry)
		if err != nil {
			log.Printf("⚠️ [AUDIT] Skipping unmarshalable entry for %s: %v", entry.PlayerID, err)
			continue
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	key := fmt.Sprintf("audit/admissions/%s-%s.jsonl",
		time.Now().UTC().Format("20060102T150405"), uuid.NewString())

	url, err := a.upload(buf.Bytes(), key, "application/x-ndjson")
	if err != nil {
		// The batch is lost for archival; the stream itself still holds the
		// durable copy.
		log.Printf("❌ [AUDIT] Failed to archive %d admission(s): %v", len(batch), err)
		return
	}

	log.Printf("✅ [AUDIT] Archived %d admission(s) to %s", len(batch), url)
}
