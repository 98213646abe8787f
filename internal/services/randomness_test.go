package services

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingConsumer struct {
	mu         sync.Mutex
	deliveries int
	lastID     string
	lastWords  []uint64
}

func (c *recordingConsumer) FulfillRandomness(requestID string, words []uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deliveries++
	c.lastID = requestID
	c.lastWords = words
	return nil
}

func (c *recordingConsumer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deliveries
}

func TestRandomnessService(t *testing.T) {
	t.Run("delivers exactly once", func(t *testing.T) {
		s := NewRandomnessService(false, 0)
		consumer := &recordingConsumer{}

		id, err := s.Request(consumer, 1)
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		if s.Pending() != 1 {
			t.Fatalf("Expected 1 pending request, got %d", s.Pending())
		}

		if err := s.Fulfill(id, []uint64{42}); err != nil {
			t.Fatalf("Fulfill failed: %v", err)
		}
		if consumer.count() != 1 || consumer.lastID != id || consumer.lastWords[0] != 42 {
			t.Errorf("Unexpected delivery: %+v", consumer)
		}

		if err := s.Fulfill(id, []uint64{42}); !errors.Is(err, ErrUnknownRequest) {
			t.Fatalf("Expected ErrUnknownRequest on re-delivery, got %v", err)
		}
		if consumer.count() != 1 {
			t.Errorf("Request delivered %d times", consumer.count())
		}
	})

	t.Run("rejects unknown ids", func(t *testing.T) {
		s := NewRandomnessService(false, 0)
		if err := s.Fulfill("nope", []uint64{1}); !errors.Is(err, ErrUnknownRequest) {
			t.Fatalf("Expected ErrUnknownRequest, got %v", err)
		}
	})

	t.Run("word count must match", func(t *testing.T) {
		s := NewRandomnessService(false, 0)
		consumer := &recordingConsumer{}
		id, err := s.Request(consumer, 2)
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		if err := s.Fulfill(id, []uint64{1}); err == nil {
			t.Fatal("Expected error for short delivery")
		}
		// The request stays pending for a correct retry.
		if s.Pending() != 1 {
			t.Fatalf("Short delivery consumed the request")
		}
		if err := s.Fulfill(id, []uint64{1, 2}); err != nil {
			t.Fatalf("Correct retry failed: %v", err)
		}
	})

	t.Run("rejects empty requests", func(t *testing.T) {
		s := NewRandomnessService(false, 0)
		if _, err := s.Request(&recordingConsumer{}, 0); err == nil {
			t.Fatal("Expected error for zero-word request")
		}
	})

	t.Run("auto mode self-fulfils", func(t *testing.T) {
		s := NewRandomnessService(true, time.Millisecond)
		consumer := &recordingConsumer{}
		if _, err := s.Request(consumer, 1); err != nil {
			t.Fatalf("Request failed: %v", err)
		}

		deadline := time.Now().Add(2 * time.Second)
		for consumer.count() == 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		if consumer.count() != 1 {
			t.Fatalf("Auto mode delivered %d times", consumer.count())
		}
		if s.Pending() != 0 {
			t.Errorf("Expected no pending requests, got %d", s.Pending())
		}
	})
}
