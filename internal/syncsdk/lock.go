package syncsdk

import (
	"context"
	"fmt"
	"net/http"
)

// AcquireLock acquires or renews the project lease for clientID.
// A lease held by someone else comes back as *LockHeldError carrying the holder.
func (c *Client) AcquireLock(ctx context.Context, projectID, clientID string) (*Lock, error) {
	resp, err := c.send(ctx, http.MethodPost, pathLock, nil, projectParams(projectID), clientHeaders(clientID))
	if err == nil && resp.Status == http.StatusConflict {
		var held LockResponse
		_ = resp.Decode(&held)
		return nil, &LockHeldError{Lock: held.Lock}
	}
	return decodeLock(resp, err, "lock acquire")
}

// ReleaseLock deletes the lease if clientID holds it. The coordinator ignores
// releases from anyone else, so released may be false on success.
func (c *Client) ReleaseLock(ctx context.Context, projectID, clientID string) (released bool, err error) {
	resp, err := c.send(ctx, http.MethodDelete, pathLock, nil, projectParams(projectID), clientHeaders(clientID))
	if err := handleAPIError(resp, err, "lock release"); err != nil {
		return false, err
	}

	var out ReleaseResponse
	_ = resp.Decode(&out)
	return out.Released, nil
}

// Heartbeat pushes the lease expiry forward. Fails if clientID no longer holds it.
func (c *Client) Heartbeat(ctx context.Context, projectID, clientID string) (*Lock, error) {
	resp, err := c.send(ctx, http.MethodPost, pathHeartbeat, nil, projectParams(projectID), clientHeaders(clientID))
	return decodeLock(resp, err, "lock heartbeat")
}

func decodeLock(resp *Response, requestErr error, operation string) (*Lock, error) {
	if err := handleAPIError(resp, requestErr, operation); err != nil {
		return nil, err
	}

	var out LockResponse
	if err := resp.Decode(&out); err != nil || out.Lock == nil {
		return nil, fmt.Errorf("%s: %w", operation, &APIError{StatusCode: resp.Status, Code: CodeInternalError, Message: "malformed lock response"})
	}
	return out.Lock, nil
}

func projectParams(projectID string) map[string]string {
	return map[string]string{"project": projectID}
}

func clientHeaders(clientID string) map[string]string {
	return map[string]string{HeaderClientID: clientID}
}
