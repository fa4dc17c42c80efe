// pkg/kafka/client/client_test.go

package client

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IBM/sarama"

	"github.com/YangYounghwa/asynkaf/pkg/kafka"
	"github.com/YangYounghwa/asynkaf/pkg/logger"
)

// -----------------------------------------------------------------------------
// Config
// -----------------------------------------------------------------------------

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Brokers: []string{"localhost:9092"}, GroupID: "g", Topics: []string{"t"}, InitialOffset: "newest"}, false},
		{"no brokers", Config{GroupID: "g", Topics: []string{"t"}, InitialOffset: "newest"}, true},
		{"no group", Config{Brokers: []string{"b"}, Topics: []string{"t"}, InitialOffset: "newest"}, true},
		{"no topics", Config{Brokers: []string{"b"}, GroupID: "g", InitialOffset: "newest"}, true},
		{"bad offset", Config{Brokers: []string{"b"}, GroupID: "g", Topics: []string{"t"}, InitialOffset: "latest"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.validate()
			if tc.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{Brokers: []string{"b"}, GroupID: "g", Topics: []string{"t"}}
	cfg.applyDefaults()

	if cfg.Version != "2.8.0" {
		t.Errorf("expected default version 2.8.0, got %q", cfg.Version)
	}
	if !strings.HasPrefix(cfg.ClientID, "asynkaf-") {
		t.Errorf("expected generated client id, got %q", cfg.ClientID)
	}
	if cfg.InitialOffset != "newest" {
		t.Errorf("expected default offset newest, got %q", cfg.InitialOffset)
	}
	if cfg.BufferSize != 256 {
		t.Errorf("expected default buffer 256, got %d", cfg.BufferSize)
	}
}

func TestBuildSaramaConfig_AutoCommitDisabled(t *testing.T) {
	cfg := Config{Brokers: []string{"b"}, GroupID: "g", Topics: []string{"t"}}
	cfg.applyDefaults()

	sc, err := buildSaramaConfig(cfg)
	if err != nil {
		t.Fatalf("buildSaramaConfig: %v", err)
	}
	if sc.Consumer.Offsets.AutoCommit.Enable {
		t.Error("auto-commit must be disabled")
	}
	if !sc.Consumer.Return.Errors {
		t.Error("Return.Errors must be enabled")
	}
	if sc.Consumer.Offsets.Initial != sarama.OffsetNewest {
		t.Errorf("expected OffsetNewest, got %d", sc.Consumer.Offsets.Initial)
	}
	if sc.ClientID != cfg.ClientID {
		t.Errorf("client id not propagated: %q", sc.ClientID)
	}
}

func TestBuildSaramaConfig_OldestOffset(t *testing.T) {
	cfg := Config{Brokers: []string{"b"}, GroupID: "g", Topics: []string{"t"}, InitialOffset: "oldest"}
	cfg.applyDefaults()

	sc, err := buildSaramaConfig(cfg)
	if err != nil {
		t.Fatalf("buildSaramaConfig: %v", err)
	}
	if sc.Consumer.Offsets.Initial != sarama.OffsetOldest {
		t.Errorf("expected OffsetOldest, got %d", sc.Consumer.Offsets.Initial)
	}
}

func TestBuildSaramaConfig_InvalidVersion(t *testing.T) {
	cfg := Config{Brokers: []string{"b"}, GroupID: "g", Topics: []string{"t"}, Version: "not-a-version"}
	if _, err := buildSaramaConfig(cfg); err == nil {
		t.Error("expected error for invalid version, got nil")
	}
}

// -----------------------------------------------------------------------------
// Poll pipeline (fake consumer group)
// -----------------------------------------------------------------------------

type fakeSession struct{ ctx context.Context }

func (s *fakeSession) Claims() map[string][]int32              { return map[string][]int32{"t": {0}} }
func (s *fakeSession) MemberID() string                        { return "member-1" }
func (s *fakeSession) GenerationID() int32                     { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string) {}
func (s *fakeSession) Commit()                                 {}
func (s *fakeSession) ResetOffset(string, int32, int64, string) {
}
func (s *fakeSession) MarkMessage(*sarama.ConsumerMessage, string) {}
func (s *fakeSession) Context() context.Context                    { return s.ctx }

type fakeClaim struct{ msgs chan *sarama.ConsumerMessage }

func (c *fakeClaim) Topic() string                             { return "t" }
func (c *fakeClaim) Partition() int32                          { return 0 }
func (c *fakeClaim) InitialOffset() int64                      { return sarama.OffsetNewest }
func (c *fakeClaim) HighWaterMarkOffset() int64                { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage  { return c.msgs }

type fakeGroup struct {
	pending  []*sarama.ConsumerMessage
	errs     chan error
	closed   atomic.Bool
	consumed atomic.Bool
}

func newFakeGroup(msgs ...*sarama.ConsumerMessage) *fakeGroup {
	return &fakeGroup{pending: msgs, errs: make(chan error, 4)}
}

func (f *fakeGroup) Consume(ctx context.Context, _ []string, h sarama.ConsumerGroupHandler) error {
	if f.closed.Load() {
		return sarama.ErrClosedConsumerGroup
	}
	if f.consumed.Swap(true) {
		// Сообщения уже отданы: блокируемся до закрытия, как настоящая сессия.
		<-ctx.Done()
		return ctx.Err()
	}

	sess := &fakeSession{ctx: ctx}
	claim := &fakeClaim{msgs: make(chan *sarama.ConsumerMessage, len(f.pending)+1)}
	for _, m := range f.pending {
		claim.msgs <- m
	}
	close(claim.msgs)

	if err := h.Setup(sess); err != nil {
		return err
	}
	if err := h.ConsumeClaim(sess, claim); err != nil {
		return err
	}
	return h.Cleanup(sess)
}

func (f *fakeGroup) Errors() <-chan error { return f.errs }

func (f *fakeGroup) Close() error {
	if !f.closed.Swap(true) {
		close(f.errs)
	}
	return nil
}

func (f *fakeGroup) Pause(map[string][]int32)  {}
func (f *fakeGroup) Resume(map[string][]int32) {}
func (f *fakeGroup) PauseAll()                 {}
func (f *fakeGroup) ResumeAll()                {}

func newTestClient(t *testing.T, fg *fakeGroup) *pollClient {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", DevMode: true})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	runCtx, cancel := context.WithCancel(context.Background())
	c := &pollClient{
		group:  fg,
		topics: []string{"t"},
		msgs:   make(chan *kafka.Message, 8),
		errs:   make(chan error, 4),
		cancel: cancel,
		done:   make(chan struct{}),
		log:    log.Named("kafka-client"),
	}
	go c.run(runCtx)
	go c.forwardErrors()
	return c
}

func TestPollClient_DeliversMessages(t *testing.T) {
	now := time.Now()
	fg := newFakeGroup(
		&sarama.ConsumerMessage{Topic: "t", Partition: 0, Offset: 1, Key: []byte("k1"), Value: []byte("v1"), Timestamp: now,
			Headers: []*sarama.RecordHeader{{Key: []byte("h"), Value: []byte("x")}}},
		&sarama.ConsumerMessage{Topic: "t", Partition: 0, Offset: 2, Value: []byte("v2"), Timestamp: now},
	)
	c := newTestClient(t, fg)
	defer c.Close()

	ctx := context.Background()

	msg, err := c.Poll(ctx, 2*time.Second)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if msg == nil || msg.Offset != 1 {
		t.Fatalf("expected offset 1, got %+v", msg)
	}
	if string(msg.Value) != "v1" {
		t.Errorf("expected value v1, got %q", msg.Value)
	}
	if string(msg.Headers["h"]) != "x" {
		t.Errorf("headers not converted: %+v", msg.Headers)
	}

	msg, err = c.Poll(ctx, 2*time.Second)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if msg == nil || msg.Offset != 2 {
		t.Fatalf("expected offset 2, got %+v", msg)
	}
}

func TestPollClient_TimeoutReturnsNil(t *testing.T) {
	fg := newFakeGroup()
	c := newTestClient(t, fg)
	defer c.Close()

	msg, err := c.Poll(context.Background(), 50*time.Millisecond)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if msg != nil {
		t.Errorf("expected nil message on timeout, got %+v", msg)
	}
}

func TestPollClient_SurfacesGroupErrors(t *testing.T) {
	fg := newFakeGroup()
	c := newTestClient(t, fg)
	defer c.Close()

	wantErr := errors.New("broker went away")
	fg.errs <- wantErr

	deadline := time.Now().Add(2 * time.Second)
	for {
		_, err := c.Poll(context.Background(), 50*time.Millisecond)
		if err != nil {
			if !errors.Is(err, wantErr) {
				t.Fatalf("unexpected error: %v", err)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("error never surfaced via Poll")
		}
	}
}

func TestPollClient_PollContextCanceled(t *testing.T) {
	fg := newFakeGroup()
	c := newTestClient(t, fg)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Poll(ctx, time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestPollClient_CloseIdempotent(t *testing.T) {
	fg := newFakeGroup()
	c := newTestClient(t, fg)

	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if !fg.closed.Load() {
		t.Error("group must be closed")
	}
}
