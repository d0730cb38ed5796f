package logger

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Publisher ships aggregated error records to an external sink (e.g. Kafka).
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	TimeInterval   time.Duration // flush interval (e.g., 30s)
	CountThreshold int           // max unique records before flush (e.g., 100)
	Topic          string        // topic for aggregated records
	Publisher      Publisher
}

type AggregatedRecord struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// ErrorCollector deduplicates repeated error log records and flushes them in
// batches, so a flapping dependency does not flood the sink.
type ErrorCollector struct {
	config  *CollectionConfig
	records map[string]*AggregatedRecord
	mutex   sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewErrorCollector(config *CollectionConfig) *ErrorCollector {
	ctx, cancel := context.WithCancel(context.Background())

	c := &ErrorCollector{
		config:  config,
		records: make(map[string]*AggregatedRecord),
		ctx:     ctx,
		cancel:  cancel,
	}

	c.wg.Add(1)
	go c.periodicFlush()

	return c
}

func (c *ErrorCollector) Add(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := c.recordKey(level, message, fields, caller)

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if rec, exists := c.records[key]; exists {
		rec.Count++
		rec.LastSeen = now
	} else {
		c.records[key] = &AggregatedRecord{
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}

	if len(c.records) >= c.config.CountThreshold {
		c.flush()
	}
}

func (c *ErrorCollector) recordKey(level, message string, fields map[string]interface{}, caller string) string {
	data := struct {
		Level   string                 `json:"level"`
		Message string                 `json:"message"`
		Fields  map[string]interface{} `json:"fields"`
		Caller  string                 `json:"caller"`
	}{level, message, fields, caller}

	b, _ := json.Marshal(data)
	hash := sha256.Sum256(b)
	return fmt.Sprintf("%x", hash)
}

func (c *ErrorCollector) periodicFlush() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.TimeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mutex.Lock()
			c.flush()
			c.mutex.Unlock()
		case <-c.ctx.Done():
			// Final flush before shutdown
			c.mutex.Lock()
			c.flush()
			c.mutex.Unlock()
			return
		}
	}
}

// flush requires c.mutex held.
func (c *ErrorCollector) flush() {
	if len(c.records) == 0 {
		return
	}

	batch := make([]AggregatedRecord, 0, len(c.records))
	for _, rec := range c.records {
		batch = append(batch, *rec)
	}
	c.records = make(map[string]*AggregatedRecord)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := c.config.Publisher.PublishMessage(ctx, c.config.Topic, batch); err != nil {
			fmt.Printf("error collector flush failed: %v\n", err)
		}
	}()
}

func (c *ErrorCollector) Close() {
	c.cancel()
	c.wg.Wait()
}
