package transport

import (
	"encoding/json"
	"evpilot/internal"
	"evpilot/ocpp"
	"evpilot/types"
	"evpilot/utility"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client keeps a persistent duplex channel to the fleet controller and
// reconnects after unexpected closure. At most one connection exists at
// any time; Disconnect is idempotent.
type Client struct {
	url       string
	handler   Handler
	logger    internal.LogHandler
	reconnect time.Duration

	mu           sync.Mutex
	conn         *websocket.Conn
	closing      bool
	reconnecting bool
}

func NewClient(url string, reconnectInterval time.Duration, logger internal.LogHandler) *Client {
	return &Client{
		url:       url,
		reconnect: reconnectInterval,
		logger:    logger,
	}
}

func (c *Client) SetHandler(handler Handler) {
	c.handler = handler
}

func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}
	c.closing = false
	dialer := websocket.Dialer{
		Subprotocols:     []string{types.SubProtocol16},
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.Dial(c.url, http.Header{})
	if err != nil {
		return fmt.Errorf("fleet connection to %s failed: %w", c.url, err)
	}
	c.conn = conn
	c.logger.Debug(fmt.Sprintf("connected to fleet controller at %s", c.url))
	go c.readPump(conn)
	return nil
}

func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closing = true
	if c.conn != nil {
		err := c.conn.Close()
		if err != nil {
			c.logger.Warn(fmt.Sprintf("error while closing fleet socket: %s", err))
		}
		c.conn = nil
	}
	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *Client) Send(chargerId string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return utility.Err("not connected to fleet controller")
	}
	frame := Frame{ChargerId: chargerId, Message: data}
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	c.logger.RawDataEvent("OUT", string(payload))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *Client) readPump(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			closing := c.closing
			c.mu.Unlock()
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) || closing {
				c.logger.Debug("fleet session closed")
			} else {
				c.logger.Warn(fmt.Sprintf("fleet connection lost: %s", err))
				if c.handler != nil {
					c.handler.OnDisconnect(err)
				}
				c.scheduleReconnect()
			}
			return
		}
		c.logger.RawDataEvent("IN", string(message))
		if err = c.handleFrame(message); err != nil {
			c.logger.Error("handling fleet message", err)
		}
	}
}

func (c *Client) handleFrame(data []byte) error {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return err
	}
	fields, err := utility.ParseJson(frame.Message)
	if err != nil {
		return err
	}
	callType, err := ocpp.MessageType(fields)
	if err != nil {
		return err
	}
	if c.handler == nil {
		return utility.Err("no handler registered for inbound traffic")
	}
	switch callType {
	case ocpp.CallTypeResult:
		result, err := ocpp.ParseResult(fields)
		if err != nil {
			return err
		}
		c.handler.OnResult(frame.ChargerId, result)
	case ocpp.CallTypeError:
		callError, err := ocpp.ParseErrorFrame(fields)
		if err != nil {
			return err
		}
		c.handler.OnCallError(frame.ChargerId, callError)
	case ocpp.CallTypeRequest:
		call, err := ocpp.ParseRequest(fields)
		if err != nil {
			return err
		}
		confirmation, err := c.handler.OnCall(frame.ChargerId, call)
		if err != nil {
			return err
		}
		callResult, _ := ocpp.CreateCallResult(confirmation, call.UniqueId)
		reply, err := callResult.MarshalJSON()
		if err != nil {
			return err
		}
		return c.Send(frame.ChargerId, reply)
	}
	return nil
}

// scheduleReconnect restores the channel after unexpected closure; only
// one reconnection loop runs at a time.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	if c.reconnecting || c.closing {
		c.mu.Unlock()
		return
	}
	c.reconnecting = true
	c.mu.Unlock()

	go func() {
		for {
			time.Sleep(c.reconnect)
			c.mu.Lock()
			if c.closing {
				c.reconnecting = false
				c.mu.Unlock()
				return
			}
			c.mu.Unlock()
			if err := c.Connect(); err != nil {
				c.logger.Warn(fmt.Sprintf("reconnect failed: %s", err))
				continue
			}
			c.mu.Lock()
			c.reconnecting = false
			c.mu.Unlock()
			c.logger.Debug("fleet connection restored")
			return
		}
	}()
}
