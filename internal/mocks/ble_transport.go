package mocks

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"sync"

	"github.com/benmeehan/ups-bridge/pkg/ble"
)

// FakeTransport is a scripted BLE transport. Each Connect pops the next entry
// of ConnectErrs (nil means success); when the list is exhausted Connect succeeds.
type FakeTransport struct {
	mu sync.Mutex

	ConnectErrs []error
	// Responses maps a request frame (hex of the 8 request bytes) to the
	// notification frames the device answers with.
	Responses map[string][][]byte

	// fault injection for the next sessions
	NotConnected   bool
	SubscribeErr   error
	WriteErr       error
	WriteErrAfter  int // number of successful writes before WriteErr applies
	UnsubscribeErr error
	DisconnectErr  error

	Connects int
	Sessions []*FakeSession
}

// NewFakeTransport returns a transport that answers with responses.
func NewFakeTransport(responses map[string][][]byte) *FakeTransport {
	if responses == nil {
		responses = map[string][][]byte{}
	}
	return &FakeTransport{Responses: responses}
}

// Connect implements ble.Transport.
func (f *FakeTransport) Connect(ctx context.Context, address string) (ble.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Connects++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(f.ConnectErrs) > 0 {
		err := f.ConnectErrs[0]
		f.ConnectErrs = f.ConnectErrs[1:]
		if err != nil {
			return nil, err
		}
	}

	s := &FakeSession{transport: f, Address: address, connected: !f.NotConnected}
	f.Sessions = append(f.Sessions, s)
	return s, nil
}

// LastSession returns the most recent session or nil.
func (f *FakeTransport) LastSession() *FakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Sessions) == 0 {
		return nil
	}
	return f.Sessions[len(f.Sessions)-1]
}

// FakeSession records the calls made on it. Notifications are delivered
// synchronously from Write.
type FakeSession struct {
	transport *FakeTransport
	Address   string

	mu           sync.Mutex
	connected    bool
	handler      ble.NotificationHandler
	Writes       [][]byte
	Subscribes   int
	Unsubscribes int
	Disconnects  int
}

func (s *FakeSession) Subscribe(_ string, handler ble.NotificationHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Subscribes++
	if s.transport.SubscribeErr != nil {
		return s.transport.SubscribeErr
	}
	s.handler = handler
	return nil
}

func (s *FakeSession) Write(_ string, data []byte) error {
	s.mu.Lock()
	if s.transport.WriteErr != nil && len(s.Writes) >= s.transport.WriteErrAfter {
		s.mu.Unlock()
		return s.transport.WriteErr
	}
	if !s.connected {
		s.mu.Unlock()
		return errors.New("fake: not connected")
	}
	s.Writes = append(s.Writes, append([]byte(nil), data...))
	handler := s.handler
	s.mu.Unlock()

	if handler == nil {
		return nil
	}
	for _, frame := range s.transport.responsesFor(data) {
		handler(frame)
	}
	return nil
}

func (s *FakeSession) Unsubscribe(_ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Unsubscribes++
	s.handler = nil
	return s.transport.UnsubscribeErr
}

func (s *FakeSession) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Disconnects++
	s.connected = false
	return s.transport.DisconnectErr
}

func (s *FakeSession) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Counts returns subscribe, unsubscribe and disconnect call counts.
func (s *FakeSession) Counts() (subscribes, unsubscribes, disconnects int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Subscribes, s.Unsubscribes, s.Disconnects
}

func (f *FakeTransport) responsesFor(request []byte) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Responses[hexKey(request)]
}

// RespondTo makes the device answer the request for prefix (hex) with frames.
func (f *FakeTransport) RespondTo(prefix string, frames ...[]byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := strings.ToUpper(prefix) + "FFFF"
	f.Responses[key] = append(f.Responses[key], frames...)
}

func hexKey(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}
