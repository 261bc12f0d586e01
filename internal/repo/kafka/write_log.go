package kafka

import (
	"context"
	"errors"
	"fmt"
	"forum-backend/internal/entity"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/segmentio/kafka-go"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	DefaultPartitions        = 3
	DefaultReplicationFactor = 3
	defaultDialTimeout       = 5 * time.Second
	// fetchLinger сколько ждать следующее сообщение, когда пачка уже не пустая
	fetchLinger = 100 * time.Millisecond
)

// Config настройки топика и группы потребителей лога записи
type Config struct {
	Brokers []string
	Topic   string
	Group   string
	// Partitions и ReplicationFactor применяются только при создании топика
	Partitions        int
	ReplicationFactor int
	DialTimeout       time.Duration
}

func (c *Config) validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("не предоставлены брокеры Kafka")
	}
	if c.Topic == "" || c.Group == "" {
		return errors.New("не заданы топик или группа потребителей Kafka")
	}
	if c.Partitions <= 0 {
		c.Partitions = DefaultPartitions
	}
	if c.ReplicationFactor <= 0 {
		c.ReplicationFactor = DefaultReplicationFactor
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = defaultDialTimeout
	}
	return nil
}

type inflightMessage struct {
	consumer string
	message  kafka.Message
}

// WriteLogKafkaRepository лог записи поверх топика Kafka. Группа потребителей Kafka дает те же гарантии,
// что и группа Redis Streams: подтверждение это коммит смещения
type WriteLogKafkaRepository struct {
	writer        *kafka.Writer
	readerFactory func() *kafka.Reader
	config        Config

	mu       sync.Mutex
	readers  map[string]*kafka.Reader
	inflight map[string]inflightMessage
}

// NewWriteLogKafkaRepository не обращается к брокерам: топик создается в EnsureGroup
func NewWriteLogKafkaRepository(config Config) (*WriteLogKafkaRepository, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &WriteLogKafkaRepository{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(config.Brokers...),
			Topic:    config.Topic,
			Balancer: &kafka.Hash{},
			// Append возвращается только после подтверждения всеми репликами
			RequiredAcks: kafka.RequireAll,
		},
		readerFactory: func() *kafka.Reader {
			return kafka.NewReader(kafka.ReaderConfig{
				Brokers:     config.Brokers,
				Topic:       config.Topic,
				GroupID:     config.Group,
				MinBytes:    1,
				MaxBytes:    10e6,
				StartOffset: kafka.FirstOffset,
			})
		},
		config:   config,
		readers:  make(map[string]*kafka.Reader),
		inflight: make(map[string]inflightMessage),
	}, nil
}

// EnsureGroup создает топик лога, если его нет. Группа потребителей Kafka создается сама при первом чтении
func (r *WriteLogKafkaRepository) EnsureGroup(ctx context.Context) error {
	conn, err := r.dial(ctx, r.config.Brokers[0])
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	exists, err := topicExists(conn, r.config.Topic)
	if err != nil {
		return fmt.Errorf("ошибка чтения партиций топика %s: %w", r.config.Topic, err)
	}
	if exists {
		return nil
	}

	brokers, err := conn.Brokers()
	if err != nil {
		return fmt.Errorf("ошибка получения метаданных о брокерах: %w", err)
	}
	replication := replicationFactor(len(brokers), r.config.ReplicationFactor)

	// Топики создаются только через контроллер
	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("ошибка поиска контроллера кластера: %w", err)
	}
	controllerConn, err := r.dial(ctx, net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return err
	}
	defer func() { _ = controllerConn.Close() }()

	err = controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             r.config.Topic,
		NumPartitions:     r.config.Partitions,
		ReplicationFactor: replication,
	})
	// топик мог создать соседний воркер
	if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return fmt.Errorf("ошибка при создании топика %s: %w", r.config.Topic, err)
	}
	log.Infof("Топик лога записи %s готов: партиций %d, фактор репликации %d",
		r.config.Topic, r.config.Partitions, replication)
	return nil
}

func (r *WriteLogKafkaRepository) dial(ctx context.Context, addr string) (*kafka.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, r.config.DialTimeout)
	defer cancel()
	conn, err := kafka.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к брокеру %s: %w", addr, err)
	}
	if err := conn.SetDeadline(time.Now().Add(r.config.DialTimeout)); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ошибка установки таймаута для брокера %s: %w", addr, err)
	}
	return conn, nil
}

func topicExists(conn *kafka.Conn, topic string) (bool, error) {
	partitions, err := conn.ReadPartitions(topic)
	if err != nil {
		if errors.Is(err, kafka.UnknownTopicOrPartition) {
			return false, nil
		}
		return false, err
	}
	return len(partitions) > 0, nil
}

// replicationFactor желаемый фактор, но не больше числа брокеров в кластере
func replicationFactor(brokers, desired int) int {
	return max(1, min(brokers, desired))
}

// entryID идентификатор записи лога: партиция и смещение
func entryID(m kafka.Message) string {
	return fmt.Sprintf("%d-%d", m.Partition, m.Offset)
}

func (r *WriteLogKafkaRepository) Append(ctx context.Context, fields map[string]string) (string, error) {
	b, err := msgpack.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("ошибка сериализации события: %w", err)
	}
	// Ключ по пользователю сохраняет порядок событий одного пользователя
	err = r.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(fields[entity.FieldUserID]),
		Value: b,
	})
	if err != nil {
		return "", fmt.Errorf("ошибка записи в топик %s: %w", r.config.Topic, err)
	}
	return fields[entity.FieldRequestID], nil
}

func (r *WriteLogKafkaRepository) Fetch(ctx context.Context, consumer string, count int, block time.Duration) ([]*entity.WriteLogEntry, error) {
	reader := r.reader(consumer)

	var entries []*entity.WriteLogEntry
	wait := block
	for len(entries) < count {
		fetchCtx, cancel := context.WithTimeout(ctx, wait)
		m, err := reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				break
			}
			return nil, fmt.Errorf("ошибка чтения из топика %s: %w", r.config.Topic, err)
		}

		id := entryID(m)
		fields := make(map[string]string)
		if err := msgpack.Unmarshal(m.Value, &fields); err != nil {
			// Нечитаемое сообщение превращается в пустое событие и будет отброшено воркером
			fields = map[string]string{}
		}
		r.mu.Lock()
		r.inflight[id] = inflightMessage{consumer: consumer, message: m}
		r.mu.Unlock()
		entries = append(entries, &entity.WriteLogEntry{ID: id, Fields: fields})
		wait = fetchLinger
	}
	return entries, nil
}

func (r *WriteLogKafkaRepository) Ack(ctx context.Context, ids ...string) error {
	byConsumer := make(map[string][]kafka.Message)
	r.mu.Lock()
	for _, id := range ids {
		msg, ok := r.inflight[id]
		if !ok {
			continue
		}
		delete(r.inflight, id)
		byConsumer[msg.consumer] = append(byConsumer[msg.consumer], msg.message)
	}
	r.mu.Unlock()

	for consumer, messages := range byConsumer {
		if err := r.reader(consumer).CommitMessages(ctx, messages...); err != nil {
			return fmt.Errorf("ошибка коммита смещений: %w", err)
		}
	}
	return nil
}

// Release закрывает читателя потребителя. Новый читатель начнет с последнего закоммиченного смещения,
// поэтому неподтвержденные сообщения будут выданы повторно
func (r *WriteLogKafkaRepository) Release(ctx context.Context, consumer string, ids ...string) error {
	r.mu.Lock()
	for _, id := range ids {
		if msg, ok := r.inflight[id]; ok && msg.consumer == consumer {
			delete(r.inflight, id)
		}
	}
	reader, ok := r.readers[consumer]
	delete(r.readers, consumer)
	r.mu.Unlock()

	if ok {
		return reader.Close()
	}
	return nil
}

func (r *WriteLogKafkaRepository) Close() error {
	r.mu.Lock()
	readers := r.readers
	r.readers = make(map[string]*kafka.Reader)
	r.mu.Unlock()

	var errs []error
	for _, reader := range readers {
		errs = append(errs, reader.Close())
	}
	errs = append(errs, r.writer.Close())
	return errors.Join(errs...)
}

func (r *WriteLogKafkaRepository) reader(consumer string) *kafka.Reader {
	r.mu.Lock()
	defer r.mu.Unlock()
	reader, ok := r.readers[consumer]
	if !ok {
		reader = r.readerFactory()
		r.readers[consumer] = reader
	}
	return reader
}
