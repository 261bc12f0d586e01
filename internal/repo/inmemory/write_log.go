package inmemory

import (
	"context"
	"forum-backend/internal/entity"
	"forum-backend/internal/repo"
	"strconv"
	"sync"
	"time"
)

type pendingEntry struct {
	entry    *entity.WriteLogEntry
	consumer string
}

// WriteLog лог записи в памяти с семантикой одной группы потребителей
type WriteLog struct {
	mu       sync.Mutex
	entries  []*entity.WriteLogEntry
	next     int
	released []*entity.WriteLogEntry
	pending  map[string]*pendingEntry
	acked    int
	seq      int64
	closed   bool
	// wakeup закрывается и пересоздается при появлении новых записей
	wakeup chan struct{}
}

func NewWriteLog() *WriteLog {
	return &WriteLog{
		pending: make(map[string]*pendingEntry),
		wakeup:  make(chan struct{}),
	}
}

func (l *WriteLog) EnsureGroup(ctx context.Context) error {
	return ctx.Err()
}

func (l *WriteLog) Append(ctx context.Context, fields map[string]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return "", repo.ErrWriteLogClosed
	}
	l.seq++
	copied := make(map[string]string, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	entry := &entity.WriteLogEntry{ID: strconv.FormatInt(l.seq, 10) + "-0", Fields: copied}
	l.entries = append(l.entries, entry)
	l.signal()
	return entry.ID, nil
}

func (l *WriteLog) Fetch(ctx context.Context, consumer string, count int, block time.Duration) ([]*entity.WriteLogEntry, error) {
	timer := time.NewTimer(block)
	defer timer.Stop()
	for {
		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			return nil, repo.ErrWriteLogClosed
		}
		batch := l.take(consumer, count)
		wakeup := l.wakeup
		l.mu.Unlock()
		if len(batch) > 0 {
			return batch, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case <-wakeup:
		}
	}
}

// take выдает сначала возвращенные записи, затем новые. Вызывается под мьютексом
func (l *WriteLog) take(consumer string, count int) []*entity.WriteLogEntry {
	var batch []*entity.WriteLogEntry
	for len(batch) < count && len(l.released) > 0 {
		entry := l.released[0]
		l.released = l.released[1:]
		batch = append(batch, entry)
	}
	for len(batch) < count && l.next < len(l.entries) {
		batch = append(batch, l.entries[l.next])
		l.next++
	}
	for _, entry := range batch {
		l.pending[entry.ID] = &pendingEntry{entry: entry, consumer: consumer}
	}
	return batch
}

func (l *WriteLog) Ack(ctx context.Context, ids ...string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range ids {
		if _, ok := l.pending[id]; ok {
			delete(l.pending, id)
			l.acked++
		}
	}
	return nil
}

func (l *WriteLog) Release(ctx context.Context, consumer string, ids ...string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range ids {
		p, ok := l.pending[id]
		if !ok || p.consumer != consumer {
			continue
		}
		delete(l.pending, id)
		l.released = append(l.released, p.entry)
	}
	if len(l.released) > 0 {
		l.signal()
	}
	return nil
}

func (l *WriteLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		l.signal()
	}
	return nil
}

// Pending число выданных, но не подтвержденных записей
func (l *WriteLog) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Acked число подтвержденных записей
func (l *WriteLog) Acked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.acked
}

// Backlog число записей, ожидающих выдачи
func (l *WriteLog) Backlog() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries) - l.next + len(l.released)
}

func (l *WriteLog) signal() {
	close(l.wakeup)
	l.wakeup = make(chan struct{})
}
