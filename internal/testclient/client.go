package testclient

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/battlecalc/internal/policy"
	"github.com/lawnchairsociety/battlecalc/internal/scenario"
	"github.com/lawnchairsociety/battlecalc/internal/server"
)

// TestClient is a websocket connection to the odds service that records
// every message it receives.
type TestClient struct {
	Name     string
	conn     *websocket.Conn
	messages []server.Outbound
	mu       sync.Mutex
	writeMu  sync.Mutex
	done     chan struct{}
}

// NewTestClientRaw connects without sending hello. Use this for testing
// the hello flow itself.
func NewTestClientRaw(name, url string) (*TestClient, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	c := &TestClient{Name: name, conn: conn, done: make(chan struct{})}
	go c.readMessages()
	return c, nil
}

// NewTestClient connects and says hello with the given access key.
func NewTestClient(name, url, accessKey string) (*TestClient, error) {
	c, err := NewTestClientRaw(name, url)
	if err != nil {
		return nil, err
	}
	if err := c.Send(server.Inbound{Type: server.MsgHello, AccessKey: accessKey}); err != nil {
		c.Close()
		return nil, err
	}
	msg, ok := c.WaitForAny([]string{server.MsgReady, server.MsgError}, 5*time.Second)
	if !ok {
		c.Close()
		return nil, fmt.Errorf("no reply to hello")
	}
	if msg.Type == server.MsgError {
		c.Close()
		return nil, fmt.Errorf("hello refused: %s: %s", msg.Code, msg.Message)
	}
	return c, nil
}

func (c *TestClient) readMessages() {
	defer close(c.done)
	for {
		var msg server.Outbound
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		c.mu.Lock()
		c.messages = append(c.messages, msg)
		c.mu.Unlock()
	}
}

// Send writes one message to the service.
func (c *TestClient) Send(msg server.Inbound) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(msg)
}

// Configure sends a scenario.
func (c *TestClient) Configure(sc *scenario.Scenario) error {
	return c.Send(server.Inbound{Type: server.MsgConfigure, Scenario: sc})
}

// SetPolicies sends both sides' policies.
func (c *TestClient) SetPolicies(attacker, defender policy.Policy) error {
	return c.Send(server.Inbound{Type: server.MsgPolicies, Attacker: &attacker, Defender: &defender})
}

// Run starts a run; the result arrives as a message.
func (c *TestClient) Run() error { return c.Send(server.Inbound{Type: server.MsgRun}) }

// Cancel asks the service to stop the current run.
func (c *TestClient) Cancel() error { return c.Send(server.Inbound{Type: server.MsgCancel}) }

// Status asks for the session status.
func (c *TestClient) Status() error { return c.Send(server.Inbound{Type: server.MsgStatus}) }

// GetMessages returns all messages received so far.
func (c *TestClient) GetMessages() []server.Outbound {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]server.Outbound(nil), c.messages...)
}

// ClearMessages clears the message buffer.
func (c *TestClient) ClearMessages() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
}

// WaitFor waits for a message of the given type and removes it and every
// earlier message from the buffer.
func (c *TestClient) WaitFor(typ string, timeout time.Duration) (server.Outbound, bool) {
	return c.WaitForAny([]string{typ}, timeout)
}

// WaitForAny is WaitFor for the first message of any of the given types.
func (c *TestClient) WaitForAny(types []string, timeout time.Duration) (server.Outbound, bool) {
	deadline := time.Now().Add(timeout)
	for {
		c.mu.Lock()
		for i, msg := range c.messages {
			for _, typ := range types {
				if msg.Type == typ {
					c.messages = c.messages[i+1:]
					c.mu.Unlock()
					return msg, true
				}
			}
		}
		c.mu.Unlock()

		if time.Now().After(deadline) {
			return server.Outbound{}, false
		}
		select {
		case <-c.done:
			return server.Outbound{}, false
		case <-time.After(20 * time.Millisecond):
		}
	}
}

// Closed reports whether the service has closed the connection.
func (c *TestClient) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Close closes the connection.
func (c *TestClient) Close() error {
	return c.conn.Close()
}

// PrintMessages prints all messages (for debugging)
func (c *TestClient) PrintMessages() {
	fmt.Printf("\n=== Messages for %s ===\n", c.Name)
	for i, msg := range c.GetMessages() {
		fmt.Printf("[%d] %s %s %s\n", i, msg.Type, msg.Code, msg.Message)
	}
	fmt.Println("======================")
}
