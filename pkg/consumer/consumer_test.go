// pkg/consumer/consumer_test.go

package consumer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/YangYounghwa/asynkaf/pkg/kafka"
	"github.com/YangYounghwa/asynkaf/pkg/logger"
)

// scriptedClient выдаёт заранее заданную последовательность результатов Poll.
// Когда сценарий исчерпан, Poll ждёт timeout и возвращает (nil, nil).
type scriptedClient struct {
	mu         sync.Mutex
	steps      []pollStep
	closeCalls int
}

type pollStep struct {
	msg *kafka.Message
	err error
}

func (f *scriptedClient) Poll(ctx context.Context, timeout time.Duration) (*kafka.Message, error) {
	f.mu.Lock()
	if len(f.steps) == 0 {
		f.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(timeout):
			return nil, nil
		}
	}
	step := f.steps[0]
	f.steps = f.steps[1:]
	f.mu.Unlock()
	return step.msg, step.err
}

func (f *scriptedClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	return nil
}

func (f *scriptedClient) closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCalls
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", DevMode: true})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func testConfig() Config {
	return Config{PollTimeout: 10 * time.Millisecond}
}

func waitLen(t *testing.T, c *Consumer, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for c.Len() < want {
		if time.Now().After(deadline) {
			t.Fatalf("queue never reached %d messages, got %d", want, c.Len())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestConsumer_DeliversInOrder(t *testing.T) {
	fc := &scriptedClient{steps: []pollStep{
		{msg: testMsg("orders", 101)},
		{msg: testMsg("orders", 102)},
		{msg: testMsg("orders", 103)},
	}}
	c, err := NewFromClient(fc, testConfig(), testLogger(t))
	if err != nil {
		t.Fatalf("NewFromClient: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for _, want := range []int64{101, 102, 103} {
		msg, err := c.Pop(ctx)
		if err != nil {
			t.Fatalf("pop: %v", err)
		}
		if msg.Offset != want {
			t.Errorf("expected offset %d, got %d", want, msg.Offset)
		}
	}
}

func TestConsumer_PollErrorsObservable(t *testing.T) {
	steps := make([]pollStep, 0, 11)
	for i := 0; i < 10; i++ {
		steps = append(steps, pollStep{err: errors.New("broker hiccup")})
	}
	steps = append(steps, pollStep{msg: testMsg("orders", 7)})

	fc := &scriptedClient{steps: steps}
	c, err := NewFromClient(fc, testConfig(), testLogger(t))
	if err != nil {
		t.Fatalf("NewFromClient: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Ошибки не мешают доставке следующего сообщения.
	msg, err := c.Pop(ctx)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if msg.Offset != 7 {
		t.Errorf("expected offset 7, got %d", msg.Offset)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got := 0
	for range c.Errors() {
		got++
	}
	if got != 10 {
		t.Errorf("expected 10 observable errors, got %d", got)
	}
}

func TestConsumer_ErrorBufferOverflowDrops(t *testing.T) {
	steps := make([]pollStep, 0, 6)
	for i := 0; i < 5; i++ {
		steps = append(steps, pollStep{err: errors.New("broker hiccup")})
	}
	steps = append(steps, pollStep{msg: testMsg("orders", 1)})

	fc := &scriptedClient{steps: steps}
	cfg := testConfig()
	cfg.ErrorBuffer = 2
	c, err := NewFromClient(fc, cfg, testLogger(t))
	if err != nil {
		t.Fatalf("NewFromClient: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := c.Pop(ctx); err != nil {
		t.Fatalf("pop: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got := 0
	for range c.Errors() {
		got++
	}
	if got != 2 {
		t.Errorf("expected 2 buffered errors, got %d", got)
	}
}

func TestConsumer_CloseIdempotent(t *testing.T) {
	fc := &scriptedClient{}
	c, err := NewFromClient(fc, testConfig(), testLogger(t))
	if err != nil {
		t.Fatalf("NewFromClient: %v", err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if got := fc.closes(); got != 1 {
		t.Errorf("client must be closed exactly once, got %d", got)
	}
	if !c.IsClosed() {
		t.Error("IsClosed must report true after Close")
	}
}

func TestConsumer_PopAfterClose(t *testing.T) {
	fc := &scriptedClient{}
	c, err := NewFromClient(fc, testConfig(), testLogger(t))
	if err != nil {
		t.Fatalf("NewFromClient: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := c.Pop(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestConsumer_CloseUnblocksPop(t *testing.T) {
	fc := &scriptedClient{}
	c, err := NewFromClient(fc, testConfig(), testLogger(t))
	if err != nil {
		t.Fatalf("NewFromClient: %v", err)
	}

	popErr := make(chan error, 1)
	go func() {
		_, err := c.Pop(context.Background())
		popErr <- err
	}()
	time.Sleep(30 * time.Millisecond)

	startedAt := time.Now()
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if elapsed := time.Since(startedAt); elapsed > time.Second {
		t.Errorf("close took too long: %v", elapsed)
	}

	select {
	case err := <-popErr:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pop still blocked after close")
	}
}

func TestConsumer_DiscardsBacklogOnClose(t *testing.T) {
	fc := &scriptedClient{steps: []pollStep{
		{msg: testMsg("orders", 1)},
		{msg: testMsg("orders", 2)},
		{msg: testMsg("orders", 3)},
	}}
	c, err := NewFromClient(fc, testConfig(), testLogger(t))
	if err != nil {
		t.Fatalf("NewFromClient: %v", err)
	}
	waitLen(t, c, 3)

	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := c.Len(); got != 0 {
		t.Errorf("expected drained queue, got %d", got)
	}
	if got := fc.closes(); got != 1 {
		t.Errorf("client must be closed exactly once, got %d", got)
	}
}

// Сквозной сценарий: создание с реальным конфигом, доставка по порядку,
// закрытие с непрочитанным остатком.
func TestConsumer_EndToEnd(t *testing.T) {
	fc := &scriptedClient{steps: []pollStep{
		{msg: &kafka.Message{Topic: "events", Offset: 1, Value: []byte("A")}},
		{msg: &kafka.Message{Topic: "events", Offset: 2, Value: []byte("B")}},
		{msg: &kafka.Message{Topic: "events", Offset: 3, Value: []byte("C")}},
	}}
	cfg := Config{
		Brokers:     []string{"localhost:9092"},
		GroupID:     "g1",
		Topics:      []string{"events"},
		PollTimeout: 10 * time.Millisecond,
	}
	c, err := NewFromClient(fc, cfg, testLogger(t))
	if err != nil {
		t.Fatalf("NewFromClient: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for _, want := range []string{"A", "B"} {
		msg, err := c.Pop(ctx)
		if err != nil {
			t.Fatalf("pop %s: %v", want, err)
		}
		if string(msg.Value) != want {
			t.Errorf("expected %s, got %s", want, msg.Value)
		}
	}

	// "C" остаётся в очереди и отбрасывается при закрытии.
	waitLen(t, c, 1)
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := c.Len(); got != 0 {
		t.Errorf("expected empty queue after close, got %d", got)
	}
	if got := fc.closes(); got != 1 {
		t.Errorf("client must be closed exactly once, got %d", got)
	}
	if _, err := c.Pop(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after close, got %v", err)
	}
}

func TestConsumer_PopContextCanceled(t *testing.T) {
	fc := &scriptedClient{}
	c, err := NewFromClient(fc, testConfig(), testLogger(t))
	if err != nil {
		t.Fatalf("NewFromClient: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	popErr := make(chan error, 1)
	go func() {
		_, err := c.Pop(ctx)
		popErr <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-popErr:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pop did not return after cancel")
	}
}

func TestNew_ConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"empty", Config{}},
		{"no group", Config{Brokers: []string{"localhost:9092"}, Topics: []string{"t"}}},
		{"no topics", Config{Brokers: []string{"localhost:9092"}, GroupID: "g"}},
		{"blank broker", Config{Brokers: []string{" "}, GroupID: "g", Topics: []string{"t"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(context.Background(), tc.cfg, testLogger(t))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestNewFromClient_NilClient(t *testing.T) {
	_, err := NewFromClient(nil, testConfig(), testLogger(t))
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}
