package syncsdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"
)

// ListFiles returns name and modifiedAt of every file the coordinator has for the project
func (c *Client) ListFiles(ctx context.Context, projectID string) ([]FileInfo, error) {
	resp, err := c.send(ctx, http.MethodGet, pathFiles, nil, projectParams(projectID), nil)
	if err := handleAPIError(resp, err, "files list"); err != nil {
		return nil, err
	}

	var out ListFilesResponse
	if err := resp.Decode(&out); err != nil {
		return nil, fmt.Errorf("files list: decode: %w", err)
	}
	return out.Files, nil
}

// GetFile downloads one file. A missing file is ErrFileNotFound.
func (c *Client) GetFile(ctx context.Context, projectID, name string) (*FileContent, error) {
	resp, err := c.send(ctx, http.MethodGet, pathFile, nil, fileParams(projectID, name), nil)
	if err := handleAPIError(resp, err, "file get"); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
		}
		return nil, err
	}

	var out FileContent
	if err := resp.Decode(&out); err != nil {
		return nil, fmt.Errorf("file get: decode: %w", err)
	}
	return &out, nil
}

// PutFile uploads content. The coordinator stamps modifiedAt with its own clock.
func (c *Client) PutFile(ctx context.Context, projectID, clientID, name string, content []byte) (*PutFileResponse, error) {
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("file put %s: %w", name, ErrInvalidContent)
	}

	body := &PutFileRequest{Content: string(content)}
	resp, err := c.send(ctx, http.MethodPut, pathFile, body, fileParams(projectID, name), clientHeaders(clientID))
	if err := handleAPIError(resp, err, "file put"); err != nil {
		return nil, err
	}

	var out PutFileResponse
	if err := resp.Decode(&out); err != nil {
		return nil, fmt.Errorf("file put: decode: %w", err)
	}
	return &out, nil
}

func fileParams(projectID, name string) map[string]string {
	return map[string]string{"project": projectID, "name": name}
}
