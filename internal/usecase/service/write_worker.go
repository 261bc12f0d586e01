package service

import (
	"context"
	"errors"
	"fmt"
	"forum-backend/internal/entity"
	"forum-backend/internal/repo"
	"forum-backend/internal/usecase"
	"time"

	"github.com/labstack/gommon/log"
)

const (
	DefaultWriteBatchSize      = 200
	DefaultWriteBlock          = 5 * time.Second
	DefaultFeedRefreshInterval = 60 * time.Second
	failureBackoff             = time.Second
)

type WriteWorkerConfig struct {
	// Consumer имя потребителя в группе, обычно имя хоста
	Consumer            string
	BatchSize           int
	Block               time.Duration
	FeedRefreshInterval time.Duration
}

// WriteWorker читает пачки из лога записи и применяет их: Fetch -> Claim + Apply в одной транзакции ->
// повышение версий кеша -> Ack. Если пачка не применилась, записи не подтверждаются и будут выданы снова
type WriteWorker struct {
	writeLog repo.WriteLog
	store    repo.WriteStore
	applier  *writeApplier
	versions usecase.CacheVersions
	config   WriteWorkerConfig
}

func NewWriteWorker(writeLog repo.WriteLog, store repo.WriteStore, ancestors *AncestorIndex, versions usecase.CacheVersions, config WriteWorkerConfig) *WriteWorker {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultWriteBatchSize
	}
	if config.Block <= 0 {
		config.Block = DefaultWriteBlock
	}
	if config.FeedRefreshInterval <= 0 {
		config.FeedRefreshInterval = DefaultFeedRefreshInterval
	}
	return &WriteWorker{
		writeLog: writeLog,
		store:    store,
		applier:  newWriteApplier(ancestors),
		versions: versions,
		config:   config,
	}
}

func (w *WriteWorker) Start(ctx context.Context) error {
	if err := w.writeLog.EnsureGroup(ctx); err != nil {
		return fmt.Errorf("ошибка создания группы потребителей: %w", err)
	}

	log.Infof("Запущен воркер очереди записи: %s", w.config.Consumer)
	lastFeedRefresh := time.Now()
	for {
		if ctx.Err() != nil {
			log.Infof("Остановка воркера очереди записи: %s", w.config.Consumer)
			return nil
		}

		if _, err := w.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			log.Errorf("Ошибка обработки пачки записи: %v", err)
			select {
			case <-ctx.Done():
			case <-time.After(failureBackoff):
			}
		}

		if time.Since(lastFeedRefresh) >= w.config.FeedRefreshInterval {
			w.RefreshFeed(ctx)
			lastFeedRefresh = time.Now()
		}
	}
}

// RunOnce обрабатывает одну пачку. Пустая пачка не ошибка
func (w *WriteWorker) RunOnce(ctx context.Context) (*entity.BatchResult, error) {
	entries, err := w.writeLog.Fetch(ctx, w.config.Consumer, w.config.BatchSize, w.config.Block)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	if len(entries) == 0 {
		return &entity.BatchResult{}, nil
	}

	ids := make([]string, 0, len(entries))
	events := make([]*entity.WriteEvent, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.ID)
		events = append(events, entry.Event())
	}

	started := time.Now()
	var result *entity.BatchResult
	err = w.store.InTx(ctx, func(tx repo.WriteTx) error {
		r, err := w.applier.Apply(tx, events)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	batchDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		processedBatches.WithLabelValues("failed").Inc()
		// Release не должен зависеть от отмены ctx, иначе записи останутся висеть до XAUTOCLAIM
		releaseErr := w.writeLog.Release(context.WithoutCancel(ctx), w.config.Consumer, ids...)
		return nil, errors.Join(fmt.Errorf("apply batch of %d entries: %w", len(entries), err), releaseErr)
	}

	families := make([]string, 0, len(result.ThreadPostIDs)+1)
	for _, postID := range result.ThreadPostIDs {
		families = append(families, ThreadFamily(postID))
	}
	if len(families) > 0 {
		families = append(families, RecentCommentsFamily)
	}
	bumpAll(ctx, w.versions, families...)

	if err := w.writeLog.Ack(ctx, ids...); err != nil {
		return result, fmt.Errorf("ack: %w", err)
	}
	result.AckedEntryIDs = ids

	processedBatches.WithLabelValues("applied").Inc()
	claimedEvents.Add(float64(result.Claimed))
	duplicateEvents.Add(float64(result.Duplicates))
	droppedEvents.Add(float64(result.Dropped))
	log.Infof("Пачка записи применена: записей %d, принято %d, повторов %d, отброшено %d",
		result.Entries, result.Claimed, result.Duplicates, result.Dropped)
	return result, nil
}

// RefreshFeed повышает версию ленты, чтобы очки, накопленные голосами, попали в выдачу
func (w *WriteWorker) RefreshFeed(ctx context.Context) {
	bumpAll(ctx, w.versions, FeedFamily)
}
