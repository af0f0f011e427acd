package coach

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"
)

// FallbackAdvice is returned whenever the text-generation backend fails
// or times out, so skill summaries never fail on the narrative.
const FallbackAdvice = "You're doing great! Keep attending more events to strengthen your skills."

// Client calls the text-generation service for coaching narratives.
type Client struct {
	BaseURL string
	APIKey  string
	Model   string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client. With skip set, Advise returns the fallback
// without making network calls (dev and test environments).
func New(baseURL, apiKey string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   "gemini-2.0-flash",
		Skip:    skip,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Advise turns normalized skill scores into a short coaching paragraph.
// Any failure yields FallbackAdvice with a nil error; the narrative is
// best-effort by contract.
func (c *Client) Advise(ctx context.Context, scores map[string]float64) string {
	if c == nil || c.Skip || c.APIKey == "" {
		return FallbackAdvice
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: buildPrompt(scores)}}}},
	})
	if err != nil {
		return FallbackAdvice
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.BaseURL, c.Model, c.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return FallbackAdvice
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return FallbackAdvice
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return FallbackAdvice
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return FallbackAdvice
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return FallbackAdvice
	}
	text := out.Candidates[0].Content.Parts[0].Text
	if text == "" {
		return FallbackAdvice
	}
	return text
}

func buildPrompt(scores map[string]float64) string {
	keys := make([]string, 0, len(scores))
	for k := range scores {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteString("Based on the following soft skill scores (out of 10), give personalized career advice:\n")
	for _, k := range keys {
		fmt.Fprintf(&buf, "- %s: %g\n", k, scores[k])
	}
	buf.WriteString("Respond in one short paragraph, keep it concise and under 50 words.")
	return buf.String()
}
