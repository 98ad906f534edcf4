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
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Status retrieves the daemon status snapshot.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Vidpipe.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TriggerCycle runs one pipeline cycle and returns its outcome.
func (c *Client) TriggerCycle() (*TriggerResponse, error) {
	var resp TriggerResponse
	if err := c.client.Call("Vidpipe.TriggerCycle", TriggerRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueList returns live sheet rows plus up to history journal cycles.
func (c *Client) QueueList(history int) (*QueueListResponse, error) {
	var resp QueueListResponse
	req := QueueListRequest{History: history}
	if err := c.client.Call("Vidpipe.QueueList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop processing.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Vidpipe.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
