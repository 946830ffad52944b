package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func call[Req any, Resp any](c *Client, method string, req Req) (*Resp, error) {
	var resp Resp
	if err := c.client.Call(ServiceName+"."+method, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon and queue status.
func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusRequest, StatusResponse](c, "Status", StatusRequest{})
}

// Enqueue queues screenshots by path.
func (c *Client) Enqueue(paths []string) (*EnqueueResponse, error) {
	return call[EnqueueRequest, EnqueueResponse](c, "Enqueue", EnqueueRequest{Paths: paths})
}

// Pause suspends processing after the current item.
func (c *Client) Pause() (*ControlResponse, error) {
	return call[ControlRequest, ControlResponse](c, "Pause", ControlRequest{})
}

// Resume continues processing.
func (c *Client) Resume() (*ControlResponse, error) {
	return call[ControlRequest, ControlResponse](c, "Resume", ControlRequest{})
}

// Stop stops processing at the next checkpoint; the daemon keeps running.
func (c *Client) Stop() (*ControlResponse, error) {
	return call[ControlRequest, ControlResponse](c, "Stop", ControlRequest{})
}

// Toggle applies the single-button action and reports which one ran.
func (c *Client) Toggle() (*ControlResponse, error) {
	return call[ControlRequest, ControlResponse](c, "Toggle", ControlRequest{})
}

// Clear removes queue items.
func (c *Client) Clear(terminalOnly bool) (*ClearResponse, error) {
	return call[ClearRequest, ClearResponse](c, "Clear", ClearRequest{TerminalOnly: terminalOnly})
}

// Remove drops items by id or source path.
func (c *Client) Remove(refs []string) (*RemoveResponse, error) {
	return call[RemoveRequest, RemoveResponse](c, "Remove", RemoveRequest{Refs: refs})
}

// QueueList returns journal items optionally filtered by statuses.
func (c *Client) QueueList(statuses []string) (*QueueListResponse, error) {
	return call[QueueListRequest, QueueListResponse](c, "QueueList", QueueListRequest{Statuses: statuses})
}

// Retry moves failed items back to pending.
func (c *Client) Retry(ids []int64) (*RetryResponse, error) {
	return call[RetryRequest, RetryResponse](c, "Retry", RetryRequest{IDs: ids})
}

// QueueHealth returns queue counts.
func (c *Client) QueueHealth() (*QueueHealthResponse, error) {
	return call[QueueHealthRequest, QueueHealthResponse](c, "QueueHealth", QueueHealthRequest{})
}

// DatabaseHealth retrieves detailed database diagnostics.
func (c *Client) DatabaseHealth() (*DatabaseHealthResponse, error) {
	return call[DatabaseHealthRequest, DatabaseHealthResponse](c, "DatabaseHealth", DatabaseHealthRequest{})
}

// LogTail returns log lines from the daemon.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	return call[LogTailRequest, LogTailResponse](c, "LogTail", req)
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	return call[TestNotificationRequest, TestNotificationResponse](c, "TestNotification", TestNotificationRequest{})
}
