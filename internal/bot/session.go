package bot

import (
	"sync"

	"github.com/KirillYabl/TgPizzaBot/internal/geo"
)

// Order is a payment pending confirmation. It lives only in memory: after a
// restart the pre-checkout hook finds no pending order and rejects the
// payment, which restarts the checkout instead of charging for a lost cart.
type Order struct {
	// Payload correlates the invoice with the pre-checkout query.
	Payload string
	// AmountMinor is the invoice total in minor currency units.
	AmountMinor int
	// Summary is the human-readable order text forwarded to the deliveryman.
	Summary string
	// Confirmation is the text sent to the customer once the order completes.
	Confirmation string
	// CourierChatID is notified after payment; empty for pickup orders.
	CourierChatID string
	// Pickup marks self-service orders, which get the pizzeria location
	// instead of a courier notification.
	Pickup bool
}

// Session holds the volatile per-chat checkout context that has no business
// being in the durable store.
type Session struct {
	CustomerID string
	Point      geo.Point
	Pizzeria   geo.Pizzeria
	DistanceKm float64
	Order      *Order
}

// Sessions is a concurrency-safe registry of per-chat sessions.
type Sessions struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessions constructs an empty registry.
func NewSessions() *Sessions {
	return &Sessions{sessions: make(map[string]*Session)}
}

// Get returns the session for a chat, creating it on first use.
func (s *Sessions) Get(chatID string) *Session {
	s.mu.RLock()
	sess, ok := s.sessions[chatID]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok = s.sessions[chatID]; ok {
		return sess
	}
	sess = &Session{}
	s.sessions[chatID] = sess
	return sess
}

// Reset drops the session for a chat.
func (s *Sessions) Reset(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, chatID)
}
