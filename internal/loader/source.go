package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ziadkadry99/apiview/internal/catalog"
)

// maxIndexBytes bounds the size of an index payload.
const maxIndexBytes = 8 << 20

// Fetch reads the raw index from an http(s) URL, a file:// URL or a local
// path. A non-2xx response is a fetch error carrying the response body.
func Fetch(ctx context.Context, client *http.Client, source string) ([]byte, error) {
	u, err := url.Parse(source)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return fetchHTTP(ctx, client, source)
	}
	path := source
	if err == nil && u.Scheme == "file" {
		path = u.Path
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fetchError(err.Error(), err)
	}
	return data, nil
}

func fetchHTTP(ctx context.Context, client *http.Client, source string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fetchError(err.Error(), err)
	}
	req.Header.Set("Accept", "application/json, application/yaml, text/yaml, */*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fetchError(err.Error(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxIndexBytes))
	if err != nil {
		return nil, fetchError(err.Error(), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = resp.Status
		}
		return nil, fetchError(msg, fmt.Errorf("GET %s: status %d", source, resp.StatusCode))
	}
	return body, nil
}

// Parse decodes a JSON or YAML payload, validates it against the index
// schema and the uniqueness invariants, and returns the index.
func Parse(data []byte) (catalog.Index, error) {
	var raw any
	if jsonErr := json.Unmarshal(data, &raw); jsonErr != nil {
		raw = nil
		if yamlErr := yaml.Unmarshal(data, &raw); yamlErr != nil {
			if looksLikeJSON(data) {
				return nil, parseError(jsonErr)
			}
			return nil, parseError(yamlErr)
		}
	}

	// Round-trip through JSON so the validator only sees JSON types
	// regardless of which decoder produced the value.
	normalized, err := json.Marshal(raw)
	if err != nil {
		return nil, parseError(err)
	}
	var doc any
	if err := json.Unmarshal(normalized, &doc); err != nil {
		return nil, parseError(err)
	}

	violations, err := catalog.ValidateSchema(doc)
	if err != nil {
		return nil, err
	}
	if len(violations) > 0 {
		return nil, validationError(violations)
	}

	var idx catalog.Index
	if err := json.Unmarshal(normalized, &idx); err != nil {
		return nil, parseError(err)
	}
	if violations := idx.Validate(); len(violations) > 0 {
		return nil, validationError(violations)
	}
	return idx, nil
}

func looksLikeJSON(data []byte) bool {
	s := strings.TrimSpace(string(data))
	return strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{")
}
