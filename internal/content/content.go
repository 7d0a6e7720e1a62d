// Package content normalizes the heterogeneous message/content shapes the
// four inbound dialects accept into pivot.Part values: text joined in order,
// images inlined as base64.
//
// Builds on the same ad-hoc "data:<mime>;base64,..." URL construction used
// elsewhere in this codebase's provider request-building, generalized here
// to also decode inbound shapes rather than only produce them.
package content

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/goclaw/router/internal/pivot"
)

// MaxInlineImageBytes bounds a remote image fetch.
const MaxInlineImageBytes = 8 * 1024 * 1024

// TextFromAny coerces a message/content-part "text" field that may arrive as
// a bare string, a single {type, text} object, or an array mixing both, into
// one concatenated string. Recognized type tags: "text", "input_text",
// "output_text" — all treated identically; unrecognized array entries are
// skipped.
func TextFromAny(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []interface{}:
		var b strings.Builder
		for _, item := range val {
			b.WriteString(textFromPart(item))
		}
		return b.String()
	case map[string]interface{}:
		return textFromPart(val)
	default:
		return ""
	}
}

func textFromPart(v interface{}) string {
	m, ok := v.(map[string]interface{})
	if !ok {
		if s, ok := v.(string); ok {
			return s
		}
		return ""
	}
	typ, _ := m["type"].(string)
	switch typ {
	case "text", "input_text", "output_text", "":
		if s, ok := m["text"].(string); ok {
			return s
		}
	}
	return ""
}

// HTTPClient is the collaborator used to fetch remote images; tests inject a
// fake. Defaults to a bounded-timeout client, never the zero-value
// http.DefaultClient, so a slow upstream can't hang a translation.
var HTTPClient = &http.Client{Timeout: 10 * time.Second}

// ImageFromAny accepts an "image_url" shape in any of several forms: a bare
// URL string, {url}, or {base64|b64|b64_json|data|image_base64}. A data:
// URL is parsed in place. A remote http(s) URL is
// fetched (bounded to MaxInlineImageBytes) and inlined; on any failure
// (fetch, size, decode) it returns (nil, nil) — the caller drops the part,
// it does not treat this as a translation error.
func ImageFromAny(ctx context.Context, v interface{}) (*pivot.ImageData, error) {
	raw := extractImageRef(v)
	if raw.inlineMime != "" {
		return &pivot.ImageData{MimeType: raw.inlineMime, Data: raw.inlineData}, nil
	}
	if raw.url == "" {
		return nil, nil
	}
	if mime, data, ok := parseDataURL(raw.url); ok {
		return &pivot.ImageData{MimeType: mime, Data: data}, nil
	}
	if !strings.HasPrefix(raw.url, "http://") && !strings.HasPrefix(raw.url, "https://") {
		return nil, nil
	}
	return fetchAndInline(ctx, raw.url)
}

type imageRef struct {
	url        string
	inlineMime string
	inlineData string
}

func extractImageRef(v interface{}) imageRef {
	switch val := v.(type) {
	case string:
		return imageRef{url: val}
	case map[string]interface{}:
		if u, ok := val["url"].(string); ok && u != "" {
			return imageRef{url: u}
		}
		if iu, ok := val["image_url"].(map[string]interface{}); ok {
			return extractImageRef(iu)
		}
		for _, key := range []string{"base64", "b64", "b64_json", "data", "image_base64"} {
			if s, ok := val[key].(string); ok && s != "" {
				mime, _ := val["mime_type"].(string)
				if mime == "" {
					mime = "image/png"
				}
				return imageRef{inlineMime: mime, inlineData: s}
			}
		}
	}
	return imageRef{}
}

func parseDataURL(s string) (mime, data string, ok bool) {
	if !strings.HasPrefix(s, "data:") {
		return "", "", false
	}
	rest := strings.TrimPrefix(s, "data:")
	semi := strings.Index(rest, ";base64,")
	if semi < 0 {
		return "", "", false
	}
	return rest[:semi], rest[semi+len(";base64,"):], true
}

func fetchAndInline(ctx context.Context, url string) (*pivot.ImageData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil //nolint:nilerr // a fetch failure drops the part, not an error
	}
	resp, err := HTTPClient.Do(req)
	if err != nil {
		return nil, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	limited := io.LimitReader(resp.Body, MaxInlineImageBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil || len(body) > MaxInlineImageBytes {
		return nil, nil
	}

	// Decode to confirm the bytes are actually a raster image before paying
	// to base64-encode and forward them upstream.
	if _, _, err := imaging.Decode(bytes.NewReader(body)); err != nil {
		return nil, nil
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" || !strings.HasPrefix(mime, "image/") {
		mime = "image/png"
	} else if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = mime[:idx]
	}

	return &pivot.ImageData{
		MimeType: mime,
		Data:     base64.StdEncoding.EncodeToString(body),
	}, nil
}

// DataURL renders an ImageData back into a "data:<mime>;base64,<data>" URL,
// the shape OpenAI-compatible chat dialects expect for image_url.
func DataURL(img *pivot.ImageData) string {
	if img == nil {
		return ""
	}
	return fmt.Sprintf("data:%s;base64,%s", img.MimeType, img.Data)
}
