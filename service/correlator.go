package service

import (
	"encoding/json"
	"evpilot/utility"
	"fmt"
	"sync"
	"time"
)

// Outcome is the settlement of a pending command: exactly one of a
// response payload, an error or a timeout.
type Outcome struct {
	Payload  json.RawMessage
	Err      error
	TimedOut bool
}

type pendingCommand struct {
	chargerId string
	feature   string
	issued    time.Time
	result    chan Outcome
	timer     *time.Timer
}

// Correlator matches inbound responses to outbound commands by message
// id and enforces a deadline per command. Every pending entry settles
// exactly once: the first of resolve, error or expiry removes it from
// the map, the losers find nothing.
type Correlator struct {
	mu      sync.Mutex
	pending map[string]*pendingCommand
}

func NewCorrelator() *Correlator {
	return &Correlator{
		pending: make(map[string]*pendingCommand),
	}
}

// Add registers a new pending command and returns its unique message id
// together with the channel its outcome will be delivered on.
func (c *Correlator) Add(chargerId, feature string, timeout time.Duration) (string, <-chan Outcome) {
	messageId := utility.NewUUID()
	command := &pendingCommand{
		chargerId: chargerId,
		feature:   feature,
		issued:    time.Now(),
		result:    make(chan Outcome, 1),
	}
	c.mu.Lock()
	c.pending[messageId] = command
	c.mu.Unlock()
	command.timer = time.AfterFunc(timeout, func() {
		c.expire(messageId)
	})
	return messageId, command.result
}

// take removes and returns the pending entry, if it is still pending.
func (c *Correlator) take(messageId string) *pendingCommand {
	c.mu.Lock()
	defer c.mu.Unlock()
	command, ok := c.pending[messageId]
	if !ok {
		return nil
	}
	delete(c.pending, messageId)
	if command.timer != nil {
		command.timer.Stop()
	}
	return command
}

func (c *Correlator) Resolve(messageId string, payload json.RawMessage) {
	if command := c.take(messageId); command != nil {
		command.result <- Outcome{Payload: payload}
	}
}

func (c *Correlator) Fail(messageId string, err error) {
	if command := c.take(messageId); command != nil {
		command.result <- Outcome{Err: err}
	}
}

func (c *Correlator) expire(messageId string) {
	if command := c.take(messageId); command != nil {
		command.result <- Outcome{TimedOut: true}
	}
}

// FailAll settles every pending command with an error; used when the
// fleet connection drops so no caller is left hanging.
func (c *Correlator) FailAll(reason string) {
	c.mu.Lock()
	commands := make([]*pendingCommand, 0, len(c.pending))
	for _, command := range c.pending {
		if command.timer != nil {
			command.timer.Stop()
		}
		commands = append(commands, command)
	}
	c.pending = make(map[string]*pendingCommand)
	c.mu.Unlock()

	for _, command := range commands {
		command.result <- Outcome{Err: utility.Err(fmt.Sprintf("%s: %s", command.feature, reason))}
	}
}

func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
