package queue

import (
	"context"
	"encoding/json"
	"time"
)

// Publisher enqueues messages for asynchronous processing.
type Publisher interface {
	// Enqueue stores the message and returns its ID.
	Enqueue(ctx context.Context, msgType string, payload interface{}) (string, error)
}

// QueueConfig contains the configuration for the queue
type QueueConfig struct {
	Workers    int           // number of workers
	RetryLimit int           // retries before the message goes to the dead letter list
	RetryDelay time.Duration // delay before a failed message is retried
	JobTimeout time.Duration // max duration of one Handle call
	PollWait   time.Duration // BRPOP block time
}

func (c *QueueConfig) withDefaults() *QueueConfig {
	out := QueueConfig{}
	if c != nil {
		out = *c
	}
	if out.Workers <= 0 {
		out.Workers = 1
	}
	if out.RetryDelay <= 0 {
		out.RetryDelay = 10 * time.Second
	}
	if out.JobTimeout <= 0 {
		out.JobTimeout = 2 * time.Minute
	}
	if out.PollWait <= 0 {
		out.PollWait = time.Second
	}
	return &out
}

// Message is the envelope stored in Redis.
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Timestamp time.Time       `json:"timestamp"`
	LastError string          `json:"last_error,omitempty"`
}
