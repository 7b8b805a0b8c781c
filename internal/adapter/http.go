package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/amishk599/workmatch/internal/model"
)

// getJSON issues a GET and decodes a 200 response into out. Any other status
// becomes a *model.HTTPError carrying Retry-After so the retry and rate-limit
// layers can react to it.
func getJSON(ctx context.Context, client *http.Client, url, source string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%s fetch: %w", source, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s fetch: %w: %w", source, model.ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: model.ParseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("%s fetch: unexpected status %d", source, resp.StatusCode),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s fetch: decoding response: %w", source, err)
	}
	return nil
}
