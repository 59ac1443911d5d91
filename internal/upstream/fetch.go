package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// FetchMetadata issues GET baseURL+path (path carries its leading slash) against client and returns the
// (still compressed) response body and its content-encoding header. Used by
// the prefetcher and the synchronizer, which fetch on their own initiative
// rather than on behalf of an inbound client request.
func FetchMetadata(ctx context.Context, client *http.Client, baseURL, path string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+path, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, "", fmt.Errorf("upstream status %d for %s", resp.StatusCode, path)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return body, resp.Header.Get("Content-Encoding"), nil
}
