package queue

import (
	"context"

	"rail-reservation/internal/model"
)

type Delivery struct {
	Data *model.BookingEvent
	Ack  func()
	Nack func(requeue bool)
}

// EventQueue carries committed booking transitions to downstream consumers.
type EventQueue interface {
	Publish(ctx context.Context, event *model.BookingEvent) error
	Subscribe(ctx context.Context) (<-chan Delivery, error)
}

// MemoryEventQueue is a buffered channel for single process deployments.
type MemoryEventQueue struct {
	ch chan *model.BookingEvent
}

func NewMemoryEventQueue(bufferSize int) EventQueue {
	return &MemoryEventQueue{
		ch: make(chan *model.BookingEvent, bufferSize),
	}
}

func (q *MemoryEventQueue) Publish(ctx context.Context, event *model.BookingEvent) error {
	select {
	case q.ch <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryEventQueue) Subscribe(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-q.ch:
				d := Delivery{
					Data: event,
					Ack:  func() {},
					Nack: func(requeue bool) {
						if requeue {
							go func() {
								select {
								case q.ch <- event:
								case <-ctx.Done():
								}
							}()
						}
					},
				}
				select {
				case out <- d:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
