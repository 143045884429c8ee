// Package stream реализует протокол потоковых ответов: ноль или больше событий partial,
// затем ровно одно completed; при ошибке поток закрывается без completed.
package stream

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"script-studio/internal/model"
)

// EventType - тип события потока.
type EventType string

const (
	EventPartial   EventType = "partial"
	EventCompleted EventType = "completed"
)

// Event - событие потока. Result заполнен только для completed.
type Event struct {
	Type   EventType
	Delta  string
	Result *model.ActionResult
}

// State - состояние потока: Idle -> Streaming -> Completed | Failed.
type State int32

const (
	StateIdle State = iota
	StateStreaming
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal сообщает, завершён ли поток.
func (s State) Terminal() bool { return s == StateCompleted || s == StateFailed }

// Emit передаёт очередной фрагмент потребителю. Возвращает ошибку, если поток отменён.
type Emit func(delta string) error

// Producer выполняет вызов, отдавая фрагменты через emit.
type Producer func(ctx context.Context, emit Emit) (model.ActionResult, error)

// CompleteHook вызывается один раз после успешного завершения, до отправки completed.
type CompleteHook func(ctx context.Context, result model.ActionResult)

const eventBuffer = 16

// Stream - один потоковый вызов. Поток не перезапускается: каждый вызов создаёт новый Stream.
type Stream struct {
	events chan Event
	state  atomic.Int32
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Start запускает producer в отдельной горутине. Отмена ctx или вызов Cancel доходит
// до транспорта через контекст producer. Потребитель обязан дочитать Events до закрытия,
// в том числе после Cancel: завершённый вызов всегда отдаёт completed.
func Start(ctx context.Context, producer Producer, onComplete CompleteHook) *Stream {
	streamCtx, cancel := context.WithCancel(ctx)
	s := &Stream{
		events: make(chan Event, eventBuffer),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.state.Store(int32(StateIdle))
	go s.run(streamCtx, producer, onComplete)
	return s
}

func (s *Stream) run(ctx context.Context, producer Producer, onComplete CompleteHook) {
	defer close(s.done)
	defer close(s.events)
	defer s.cancel()

	s.state.Store(int32(StateStreaming))

	emit := func(delta string) error {
		if delta == "" {
			return nil
		}
		select {
		case s.events <- Event{Type: EventPartial, Delta: delta}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	result, err := producer(ctx, emit)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		s.fail(err)
		return
	}

	s.state.Store(int32(StateCompleted))
	if onComplete != nil {
		onComplete(ctx, result)
	}
	// вызов уже записан в журнал, поэтому completed доставляется и после отмены
	s.events <- Event{Type: EventCompleted, Result: &result}
}

func (s *Stream) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.state.Store(int32(StateFailed))
}

// Events - канал событий; закрывается после терминального состояния.
func (s *Stream) Events() <-chan Event { return s.events }

// Cancel отменяет поток. Незавершённый поток переходит в Failed.
func (s *Stream) Cancel() { s.cancel() }

// Done закрывается, когда горутина потока завершилась.
func (s *Stream) Done() <-chan struct{} { return s.done }

// State возвращает текущее состояние.
func (s *Stream) State() State { return State(s.state.Load()) }

// Err возвращает ошибку потока в состоянии Failed.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// ErrIncomplete - поток закрылся без события completed.
var ErrIncomplete = errors.New("stream ended without completion")

// Collect дочитывает поток, накапливая фрагменты, и возвращает итоговый результат.
func Collect(s *Stream) (string, model.ActionResult, error) {
	var b strings.Builder
	var final *model.ActionResult
	for ev := range s.Events() {
		switch ev.Type {
		case EventPartial:
			b.WriteString(ev.Delta)
		case EventCompleted:
			final = ev.Result
		}
	}
	<-s.Done()
	if err := s.Err(); err != nil {
		return b.String(), model.ActionResult{}, err
	}
	if final == nil {
		return b.String(), model.ActionResult{}, ErrIncomplete
	}
	return b.String(), *final, nil
}
