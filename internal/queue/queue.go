// Package queue provides the deduplicating work queue that decouples the
// reconciliation scheduler from its worker. Delivery is at-least-once in
// spirit: a lost message is simply re-produced by the next scheduler tick,
// so nothing here needs to be durable beyond the dedup window.
package queue

import (
	"context"
)

type Entry struct {
	Id      string `json:"id"`
	GroupId string `json:"groupId"`
	Body    []byte `json:"body"`
}

type Queue interface {
	// Enqueue appends entries in order. An entry whose body is identical to
	// one enqueued within the trailing dedup window is dropped by the queue,
	// not the caller.
	Enqueue(ctx context.Context, entries []Entry) error
	// Receive pops up to max entries. An empty result is not an error.
	Receive(ctx context.Context, max int) ([]Entry, error)
}
