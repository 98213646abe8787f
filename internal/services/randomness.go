package services

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/logger"
	"github.com/google/uuid"
)

// ErrUnknownRequest is returned for a fulfillment whose id was never issued
// or was already delivered.
var ErrUnknownRequest = errors.New("unknown or already fulfilled randomness request")

// RandomnessConsumer receives the words for a previously issued request.
// Providers deliver outside the requester's call stack, never synchronously
// from Request.
type RandomnessConsumer interface {
	FulfillRandomness(requestID string, words []uint64) error
}

// RandomnessSource issues draw requests. Request returns immediately with
// the id the later delivery will carry.
type RandomnessSource interface {
	Request(consumer RandomnessConsumer, words int) (string, error)
}

type pendingRequest struct {
	consumer RandomnessConsumer
	words    int
}

// RandomnessService tracks outstanding randomness requests and delivers each
// at most once. In auto mode a background goroutine fulfills requests itself
// after a fixed delay, drawing words from crypto/rand; otherwise an external
// provider posts the words through Fulfill.
type RandomnessService struct {
	mu      sync.Mutex
	pending map[string]pendingRequest

	auto  bool
	delay time.Duration
}

// NewRandomnessService creates a randomness service. With auto set, every
// request self-fulfills after delay.
func NewRandomnessService(auto bool, delay time.Duration) *RandomnessService {
	return &RandomnessService{
		pending: make(map[string]pendingRequest),
		auto:    auto,
		delay:   delay,
	}
}

// Request registers a pending request and returns its id.
func (s *RandomnessService) Request(consumer RandomnessConsumer, words int) (string, error) {
	if words <= 0 {
		return "", errors.New("at least one random word must be requested")
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.pending[id] = pendingRequest{consumer: consumer, words: words}
	s.mu.Unlock()
	logger.Infof("randomness: issued request %s for %d words", id, words)

	if s.auto {
		go s.autoFulfill(id, words)
	}
	return id, nil
}

func (s *RandomnessService) autoFulfill(id string, n int) {
	time.Sleep(s.delay)
	words, err := randomWords(n)
	if err != nil {
		logger.Errorf("randomness: generating words for %s: %v", id, err)
		return
	}
	if err := s.Fulfill(id, words); err != nil {
		logger.Errorf("randomness: delivering %s: %v", id, err)
	}
}

// Fulfill delivers words to the consumer that requested them. The pending
// entry is removed before the consumer runs, so a request is delivered at
// most once even under concurrent calls.
func (s *RandomnessService) Fulfill(requestID string, words []uint64) error {
	s.mu.Lock()
	req, ok := s.pending[requestID]
	if !ok {
		s.mu.Unlock()
		return ErrUnknownRequest
	}
	if len(words) != req.words {
		s.mu.Unlock()
		return fmt.Errorf("request %s wants %d words, got %d", requestID, req.words, len(words))
	}
	delete(s.pending, requestID)
	s.mu.Unlock()

	return req.consumer.FulfillRandomness(requestID, words)
}

// Pending returns the number of outstanding requests.
func (s *RandomnessService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// randomWords draws n words from crypto/rand.
func randomWords(n int) ([]uint64, error) {
	buf := make([]byte, 8*n)
	if _, err := crand.Read(buf); err != nil {
		return nil, fmt.Errorf("read random words: %w", err)
	}
	words := make([]uint64, n)
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(buf[8*i:])
	}
	return words, nil
}
