package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// openSearchTimeout bounds one document post.
const openSearchTimeout = 5 * time.Second

// OpenSearchSink indexes events through the OpenSearch document API: one
// POST to {base}/{index}/_doc per event. Elasticsearch exposes the same
// endpoint, so elasticsearch:// DSNs resolve here too.
type OpenSearchSink struct {
	http  *http.Client
	base  string
	index string
}

func NewOpenSearchSink(base, index string) *OpenSearchSink {
	return &OpenSearchSink{
		http:  &http.Client{Timeout: openSearchTimeout},
		base:  strings.TrimRight(base, "/"),
		index: index,
	}
}

func (s *OpenSearchSink) Send(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base+"/"+s.index+"/_doc", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("index event into %s: status %d", s.index, resp.StatusCode)
	}
	return nil
}
