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

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Revoice.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Start begins batch processing, optionally limited to the given record ids.
func (c *Client) Start(ids []int64) (*StartResponse, error) {
	var resp StartResponse
	if err := c.client.Call("Revoice.Start", StartRequest{IDs: ids}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Shutdown asks the daemon process to exit.
func (c *Client) Shutdown() (*ShutdownResponse, error) {
	var resp ShutdownResponse
	if err := c.client.Call("Revoice.Shutdown", ShutdownRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueAdd enqueues source files for processing.
func (c *Client) QueueAdd(paths []string) (*QueueAddResponse, error) {
	var resp QueueAddResponse
	if err := c.client.Call("Revoice.QueueAdd", QueueAddRequest{Paths: paths}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueList returns records optionally filtered by statuses.
func (c *Client) QueueList(statuses []string) (*QueueListResponse, error) {
	var resp QueueListResponse
	if err := c.client.Call("Revoice.QueueList", QueueListRequest{Statuses: statuses}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueDescribe returns details for a single record.
func (c *Client) QueueDescribe(id int64) (*QueueDescribeResponse, error) {
	var resp QueueDescribeResponse
	if err := c.client.Call("Revoice.QueueDescribe", QueueDescribeRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueRemove removes a single record.
func (c *Client) QueueRemove(id int64) (*QueueRemoveResponse, error) {
	var resp QueueRemoveResponse
	if err := c.client.Call("Revoice.QueueRemove", QueueRemoveRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueClear removes records in the given scope.
func (c *Client) QueueClear(scope string) (*QueueClearResponse, error) {
	var resp QueueClearResponse
	if err := c.client.Call("Revoice.QueueClear", QueueClearRequest{Scope: scope}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueRetry retries failed records.
func (c *Client) QueueRetry(ids []int64) (*QueueRetryResponse, error) {
	var resp QueueRetryResponse
	if err := c.client.Call("Revoice.QueueRetry", QueueRetryRequest{IDs: ids}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Reprocess re-runs text processing for a record.
func (c *Client) Reprocess(id int64) (*ReprocessResponse, error) {
	var resp ReprocessResponse
	if err := c.client.Call("Revoice.Reprocess", ReprocessRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReviewList returns records waiting for review.
func (c *Client) ReviewList() (*ReviewListResponse, error) {
	var resp ReviewListResponse
	if err := c.client.Call("Revoice.ReviewList", ReviewListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReviewApprove approves a record, optionally with edited text.
func (c *Client) ReviewApprove(req ReviewApproveRequest) (*ReviewApproveResponse, error) {
	var resp ReviewApproveResponse
	if err := c.client.Call("Revoice.ReviewApprove", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReviewApproveAll approves every waiting record.
func (c *Client) ReviewApproveAll() (*ReviewApproveAllResponse, error) {
	var resp ReviewApproveAllResponse
	if err := c.client.Call("Revoice.ReviewApproveAll", ReviewApproveAllRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReviewReject rejects a record.
func (c *Client) ReviewReject(id int64, reason string) (*ReviewRejectResponse, error) {
	var resp ReviewRejectResponse
	if err := c.client.Call("Revoice.ReviewReject", ReviewRejectRequest{ID: id, Reason: reason}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Voices lists the voices available for speech generation.
func (c *Client) Voices() (*VoicesResponse, error) {
	var resp VoicesResponse
	if err := c.client.Call("Revoice.Voices", VoicesRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SettingsGet fetches the current runtime settings.
func (c *Client) SettingsGet() (*SettingsResponse, error) {
	var resp SettingsResponse
	if err := c.client.Call("Revoice.SettingsGet", SettingsGetRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SettingsSet replaces the runtime settings.
func (c *Client) SettingsSet(req SettingsSetRequest) (*SettingsResponse, error) {
	var resp SettingsResponse
	if err := c.client.Call("Revoice.SettingsSet", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Export bundles completed records of the given kind.
func (c *Client) Export(kind string) (*ExportResponse, error) {
	var resp ExportResponse
	if err := c.client.Call("Revoice.Export", ExportRequest{Kind: kind}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RecordHealth returns aggregate record diagnostics.
func (c *Client) RecordHealth() (*RecordHealthResponse, error) {
	var resp RecordHealthResponse
	if err := c.client.Call("Revoice.RecordHealth", RecordHealthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DatabaseHealth retrieves detailed database diagnostics.
func (c *Client) DatabaseHealth() (*DatabaseHealthResponse, error) {
	var resp DatabaseHealthResponse
	if err := c.client.Call("Revoice.DatabaseHealth", DatabaseHealthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Revoice.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
