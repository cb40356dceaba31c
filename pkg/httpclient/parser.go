package httpclient

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseJSON decodes a response body into dest. Responses with a non-JSON
// content type are rejected before decoding is attempted.
func ParseJSON(resp *Response, dest any) error {
	if resp == nil {
		return fmt.Errorf("nil response")
	}

	if resp.ContentType != "" && !strings.Contains(resp.ContentType, "json") {
		return fmt.Errorf("unexpected content type %q", resp.ContentType)
	}

	if len(resp.Body) == 0 {
		return fmt.Errorf("empty response body")
	}

	if err := json.Unmarshal(resp.Body, dest); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}

	return nil
}
