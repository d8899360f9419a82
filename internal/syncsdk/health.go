package syncsdk

import (
	"context"
	"net/http"
)

// Health checks that the coordinator is up and tells whether it wants a bearer token
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	resp, err := c.send(ctx, http.MethodGet, pathHealth, nil, nil, nil)
	if err := handleAPIError(resp, err, "health"); err != nil {
		return nil, err
	}

	var health HealthResponse
	if err := resp.Decode(&health); err != nil {
		return nil, &APIError{StatusCode: resp.Status, Code: CodeInternalError, Message: "malformed health response"}
	}
	return &health, nil
}
