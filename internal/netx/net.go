// Package netx holds small HTTP helpers shared by the CLI.
package netx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// httpClient is a seam for tests.
var httpClient = http.DefaultClient

// UploadToPresignedURL PUTs data to a presigned object storage URL.
// Anything but 200 OK is an error carrying the response status and body.
func UploadToPresignedURL(ctx context.Context, url, contentType string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("upload failed: %s; body: %s", resp.Status, string(b))
	}
	return nil
}
