package messaging

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// nonDurableRetention keeps a transient exchange's messages for an hour.
const nonDurableRetention = "3600000"

// KafkaDialer maps the topic-exchange model onto Kafka: an exchange is a
// topic, the routing key travels in a header, and each queue is a consumer
// group that filters by binding pattern.
type KafkaDialer struct {
	Brokers           []string
	Partitions        int
	ReplicationFactor int
	Timeout           time.Duration
}

func NewKafkaDialer(cfg Config) *KafkaDialer {
	cfg = cfg.withDefaults()
	return &KafkaDialer{
		Brokers:           cfg.Brokers,
		Partitions:        cfg.Partitions,
		ReplicationFactor: cfg.ReplicationFactor,
		Timeout:           cfg.DialTimeout,
	}
}

func (d *KafkaDialer) Dial(ctx context.Context) (Channel, error) {
	if len(d.Brokers) == 0 {
		return nil, fmt.Errorf("kafka dialer requires at least one broker")
	}
	dialer := &kafka.Dialer{Timeout: d.Timeout}
	var (
		conn *kafka.Conn
		err  error
	)
	for _, broker := range d.Brokers {
		conn, err = dialer.DialContext(ctx, "tcp", broker)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("dial kafka: %w", err)
	}
	return &kafkaChannel{
		dialer:            dialer,
		conn:              conn,
		brokers:           d.Brokers,
		partitions:        d.Partitions,
		replicationFactor: d.ReplicationFactor,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(d.Brokers...),
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
		},
	}, nil
}

type kafkaChannel struct {
	dialer            *kafka.Dialer
	conn              *kafka.Conn
	writer            *kafka.Writer
	brokers           []string
	partitions        int
	replicationFactor int
}

func (c *kafkaChannel) DeclareExchange(ctx context.Context, name string, kind ExchangeKind, durable bool) error {
	if kind != ExchangeTopic {
		return fmt.Errorf("kafka transport supports topic exchanges only, got %q", kind)
	}
	controller, err := c.conn.Controller()
	if err != nil {
		return fmt.Errorf("locate kafka controller: %w", err)
	}
	ctrl, err := c.dialer.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("dial kafka controller: %w", err)
	}
	defer ctrl.Close()

	topic := kafka.TopicConfig{
		Topic:             name,
		NumPartitions:     c.partitions,
		ReplicationFactor: c.replicationFactor,
	}
	if !durable {
		topic.ConfigEntries = []kafka.ConfigEntry{{ConfigName: "retention.ms", ConfigValue: nonDurableRetention}}
	}
	if err := ctrl.CreateTopics(topic); err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return err
	}
	return nil
}

func (c *kafkaChannel) Publish(ctx context.Context, exchange string, msg Message) error {
	headers := make([]kafka.Header, 0, len(msg.Headers)+1)
	headers = append(headers, kafka.Header{Key: HeaderRoutingKey, Value: []byte(msg.RoutingKey)})
	for k, v := range msg.Headers {
		if k == HeaderRoutingKey {
			continue
		}
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	ts := msg.Time
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return c.writer.WriteMessages(ctx, kafka.Message{
		Topic:   exchange,
		Key:     []byte(msg.Key),
		Value:   msg.Body,
		Headers: headers,
		Time:    ts,
	})
}

func (c *kafkaChannel) Bind(_ context.Context, binding Binding) (Queue, error) {
	if err := validatePattern(binding.Pattern); err != nil {
		return nil, err
	}
	start := kafka.FirstOffset
	if binding.Exclusive {
		start = kafka.LastOffset
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     c.brokers,
		GroupID:     binding.Queue,
		Topic:       binding.Exchange,
		Dialer:      c.dialer,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
		StartOffset: start,
	})
	return &kafkaQueue{name: binding.Queue, pattern: binding.Pattern, reader: reader}, nil
}

func (c *kafkaChannel) Close() error {
	return errors.Join(c.writer.Close(), c.conn.Close())
}

type kafkaQueue struct {
	name    string
	pattern string
	reader  *kafka.Reader
}

// Fetch skips and commits messages whose routing key does not match the
// binding, so the group offset never stalls behind foreign traffic.
func (q *kafkaQueue) Fetch(ctx context.Context) (Delivery, error) {
	for {
		msg, err := q.reader.FetchMessage(ctx)
		if err != nil {
			return Delivery{}, err
		}
		headers := make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		routingKey := headers[HeaderRoutingKey]
		if !MatchRoutingKey(q.pattern, routingKey) {
			if err := q.reader.CommitMessages(ctx, msg); err != nil {
				return Delivery{}, err
			}
			continue
		}
		return Delivery{
			Message: Message{
				RoutingKey: routingKey,
				Key:        string(msg.Key),
				Body:       msg.Value,
				Headers:    headers,
				Time:       msg.Time,
			},
			Queue:     q.name,
			Partition: msg.Partition,
			Offset:    msg.Offset,
			token:     msg,
		}, nil
	}
}

func (q *kafkaQueue) Ack(ctx context.Context, d Delivery) error {
	msg, ok := d.token.(kafka.Message)
	if !ok {
		return fmt.Errorf("delivery %d was not fetched from kafka queue %s", d.Offset, q.name)
	}
	return q.reader.CommitMessages(ctx, msg)
}

func (q *kafkaQueue) Close() error {
	return q.reader.Close()
}
