package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/text/language"

	"github.com/lehigh-university-libraries/panelator/internal/models"
)

const googleEndpoint = "https://translate.google.com/translate_a/single"

// GoogleTranslator uses the public web translation endpoint, one request per block.
type GoogleTranslator struct {
	endpoint string
	to       string
	client   *http.Client
	log      *slog.Logger
}

// NewGoogle returns a translator into to.
func NewGoogle(to language.Tag, log *slog.Logger) *GoogleTranslator {
	if log == nil {
		log = slog.Default()
	}
	return &GoogleTranslator{
		endpoint: googleEndpoint,
		to:       to.String(),
		client:   &http.Client{},
		log:      log,
	}
}

func (g *GoogleTranslator) Translate(ctx context.Context, pages models.DocumentResult) error {
	for _, page := range pages {
		for i := range page.Blocks {
			res, err := g.translateText(ctx, page.Blocks[i].Text)
			if err != nil {
				return err
			}
			page.Blocks[i].Translation = res
		}
	}
	return nil
}

// translateText returns "" when the response cannot be parsed.
func (g *GoogleTranslator) translateText(ctx context.Context, text string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", g.buildURL(text), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create new request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode, string(body))
	}

	res, err := parseGoogleResponse(body)
	if err != nil {
		g.log.Warn("Unreadable translation response", "err", err)
		return "", nil
	}
	return res, nil
}

func (g *GoogleTranslator) buildURL(text string) string {
	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", "auto")
	q.Set("tl", g.to)
	for _, dt := range []string{"at", "bd", "ex", "ld", "md", "qca", "rw", "rm", "ss", "t"} {
		q.Add("dt", dt)
	}
	q.Set("otf", "1")
	q.Set("ssel", "0")
	q.Set("tsel", "0")
	q.Set("kc", "1")
	q.Set("tk", token(text))
	q.Set("q", text)
	return g.endpoint + "?" + q.Encode()
}

// parseGoogleResponse concatenates the translated segments found at [0][i][0].
func parseGoogleResponse(body []byte) (string, error) {
	var root []json.RawMessage
	if err := json.Unmarshal(body, &root); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(root) == 0 {
		return "", fmt.Errorf("empty response")
	}
	var segments [][]interface{}
	if err := json.Unmarshal(root[0], &segments); err != nil {
		return "", fmt.Errorf("decode segments: %w", err)
	}
	var sb strings.Builder
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		if s, ok := seg[0].(string); ok {
			sb.WriteString(s)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no translated segments")
	}
	return sb.String(), nil
}

// token computes the tk request parameter over the UTF-8 bytes of text.
func token(text string) string {
	var a int64 = 406644
	for _, b := range []byte(text) {
		a = rl(a+int64(b), "+-a^+6")
	}
	r := rl(a, "+-3^+b+-f") ^ 3293161072
	if r < 0 {
		r = (r & 2147483647) + 2147483648
	}
	r %= 1000000
	return fmt.Sprintf("%d.%d", r, r^406644)
}

func rl(a int64, ops string) int64 {
	for i := 0; i < len(ops)-2; i += 3 {
		c := ops[i+2]
		var shift uint
		if c >= 'a' && c <= 'z' {
			shift = uint(c) - 87
		} else {
			shift = uint(c - '0')
		}
		var v int64
		if ops[i+1] == '+' {
			v = int64(uint64(a) >> shift)
		} else {
			v = a << shift
		}
		if ops[i] == '+' {
			a = (a + v) & 4294967295
		} else {
			a ^= v
		}
	}
	return a
}

func (g *GoogleTranslator) Close() error { return nil }
