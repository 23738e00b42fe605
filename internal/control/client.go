package control

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentsolvr/shell/internal/ipc"
)

const (
	dialTimeout    = 3 * time.Second
	requestTimeout = 10 * time.Second
)

// Client talks to a running shell over the control endpoint.
type Client struct {
	conn *ipc.Conn
	seq  int
}

// Dial connects to the control endpoint at path.
func Dial(path string, key []byte) (*Client, error) {
	raw, err := dialSocket(path, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("control: connect to %s: %w (is the shell running?)", path, err)
	}
	return &Client{conn: ipc.NewConn(raw, key)}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	c.conn.SendTyped(c.nextID(), ipc.TypeDisconnect, nil)
	return c.conn.Close()
}

// Ping checks that the shell is alive.
func (c *Client) Ping() error {
	var res ipc.Result
	return c.roundTrip(ipc.TypePing, nil, ipc.TypePong, &res)
}

// Status fetches the shell's status snapshot.
func (c *Client) Status(verbose bool) (*ipc.StatusResult, error) {
	var res ipc.StatusResult
	if err := c.roundTrip(ipc.TypeStatus, ipc.StatusRequest{Verbose: verbose}, ipc.TypeStatusResult, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Notify queues a desktop notification.
func (c *Client) Notify(req ipc.NotifyRequest) (*ipc.NotifyResult, error) {
	var res ipc.NotifyResult
	if err := c.roundTrip(ipc.TypeNotify, req, ipc.TypeNotifyResult, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Dismiss removes a notification or group.
func (c *Client) Dismiss(req ipc.DismissRequest) (*ipc.Result, error) {
	var res ipc.Result
	if err := c.roundTrip(ipc.TypeDismiss, req, ipc.TypeResult, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Clear removes all notifications.
func (c *Client) Clear() (*ipc.Result, error) {
	var res ipc.Result
	if err := c.roundTrip(ipc.TypeClear, nil, ipc.TypeResult, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// DoNotDisturb toggles notification suppression.
func (c *Client) DoNotDisturb(req ipc.DoNotDisturbRequest) (*ipc.Result, error) {
	var res ipc.Result
	if err := c.roundTrip(ipc.TypeDoNotDisturb, req, ipc.TypeResult, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// UpdateCheck triggers an update check and reports the outcome.
func (c *Client) UpdateCheck(req ipc.UpdateCheckRequest) (*ipc.UpdateResult, error) {
	var res ipc.UpdateResult
	if err := c.roundTrip(ipc.TypeUpdateCheck, req, ipc.TypeUpdateResult, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) roundTrip(reqType string, payload any, wantType string, out any) error {
	id := c.nextID()
	if err := c.conn.SendTyped(id, reqType, payload); err != nil {
		return err
	}

	c.conn.SetReadDeadline(time.Now().Add(requestTimeout))
	env, err := c.conn.Recv()
	if err != nil {
		return fmt.Errorf("control: read reply: %w", err)
	}
	if env.ID != id {
		return fmt.Errorf("control: reply id %q does not match request %q", env.ID, id)
	}
	if env.Error != "" {
		return fmt.Errorf("control: %s", env.Error)
	}
	if env.Type != wantType {
		return fmt.Errorf("control: unexpected reply type %q", env.Type)
	}
	if out != nil && len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, out); err != nil {
			return fmt.Errorf("control: parse reply: %w", err)
		}
	}
	return nil
}

func (c *Client) nextID() string {
	c.seq++
	return fmt.Sprintf("req-%d", c.seq)
}
