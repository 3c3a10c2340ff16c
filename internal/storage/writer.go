package storage

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ArchiveWriter buffers archive inserts so a slow or flapping database
// never blocks the wipe workflow.
type ArchiveWriter struct {
	db   *DB
	ch   chan *WipeOperation
	wg   sync.WaitGroup
	done chan struct{}
}

// NewArchiveWriter returns a writer with the given buffer size.
func NewArchiveWriter(db *DB, bufferSize int) *ArchiveWriter {
	if bufferSize < 1 {
		bufferSize = 1000
	}
	return &ArchiveWriter{
		db:   db,
		ch:   make(chan *WipeOperation, bufferSize),
		done: make(chan struct{}),
	}
}

// Start launches the background write loop.
func (w *ArchiveWriter) Start() {
	w.wg.Add(1)
	go w.processLoop()
}

// Archive enqueues an operation, dropping it if the buffer is full.
func (w *ArchiveWriter) Archive(op *WipeOperation) {
	select {
	case w.ch <- op:
	default:
		log.Warn().Str("record_id", op.RecordID).Msg("archive buffer full, dropping entry")
	}
}

// Flush drains pending writes, waiting at most timeout.
func (w *ArchiveWriter) Flush(timeout time.Duration) {
	close(w.done)

	doneCh := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(doneCh)
	}()

	select {
	case <-doneCh:
		log.Info().Msg("archive writer flushed")
	case <-time.After(timeout):
		log.Warn().Msg("archive writer flush timed out")
	}
}

func (w *ArchiveWriter) processLoop() {
	defer w.wg.Done()

	for {
		select {
		case op := <-w.ch:
			w.writeWithRetry(op)
		case <-w.done:
			for {
				select {
				case op := <-w.ch:
					w.writeWithRetry(op)
				default:
					return
				}
			}
		}
	}
}

func (w *ArchiveWriter) writeWithRetry(op *WipeOperation) {
	const maxRetries = 3

	for attempt := 0; attempt <= maxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := w.db.ArchiveWipe(ctx, op)
		cancel()

		if err == nil {
			return
		}

		if attempt < maxRetries {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * 100 * time.Millisecond
			log.Warn().
				Err(err).
				Str("record_id", op.RecordID).
				Int("attempt", attempt+1).
				Dur("backoff", backoff).
				Msg("archive write failed, retrying")
			time.Sleep(backoff)
		} else {
			log.Error().
				Err(err).
				Str("record_id", op.RecordID).
				Msg("archive write failed permanently after retries")
		}
	}
}
