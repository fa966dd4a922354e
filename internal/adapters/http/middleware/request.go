package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

func extractIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		xForwardedFor := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
		if xForwardedFor != "" {
			parts := strings.Split(xForwardedFor, ",")
			if ip := strings.TrimSpace(parts[0]); ip != "" {
				return ip
			}
		}

		xRealIP := strings.TrimSpace(r.Header.Get("X-Real-IP"))
		if xRealIP != "" {
			return xRealIP
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}

	return host
}

// requestContext implementa domain.RequestContext sobre *http.Request.
// O corpo é lido uma única vez e devolvido intacto ao próximo handler.
type requestContext struct {
	r      *http.Request
	fields map[string]string
}

func newRequestContext(r *http.Request) *requestContext {
	return &requestContext{r: r}
}

func (c *requestContext) RouteParam(name string) string {
	return chi.URLParam(c.r, name)
}

// BodyField procura no corpo (JSON ou formulário) e depois na query string.
func (c *requestContext) BodyField(name string) string {
	if c.fields == nil {
		c.fields = readFields(c.r)
	}
	return c.fields[name]
}

func readFields(r *http.Request) map[string]string {
	fields := make(map[string]string)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}

	if r.Body == nil || r.Body == http.NoBody {
		return fields
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(raw), r.Body), r.Body}
	if err != nil || len(raw) == 0 {
		return fields
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		decoder := json.NewDecoder(bytes.NewReader(raw))
		decoder.UseNumber()
		var payload map[string]any
		if err := decoder.Decode(&payload); err != nil {
			return fields
		}
		for k, v := range payload {
			if s, ok := scalar(v); ok {
				fields[k] = s
			}
		}
	case mediaType == "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(raw))
		if err != nil {
			return fields
		}
		for k, v := range values {
			if len(v) > 0 {
				fields[k] = v[0]
			}
		}
	}

	return fields
}

func scalar(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}
