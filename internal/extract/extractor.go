package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

var ErrExtractionFailed = errors.New("content extraction failed")

// тела больше этого не читаем, дальше обычно мусор
const maxBodyBytes = 2 << 20 // 2MB

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Page - извлеченный текстовый контент одной страницы
type Page struct {
	URL         string
	Title       string
	Description string
	Text        string
}

// SizeBytes - размер title+text+description в байтах UTF-8,
// по нему считается бюджет сбора
func (p *Page) SizeBytes() int {
	return len(p.Title) + len(p.Text) + len(p.Description)
}

type Extractor interface {
	Extract(ctx context.Context, url string) (*Page, error)
}

type Config struct {
	Timeout time.Duration
}

// HTTPExtractor тянет страницу и выдирает текст из HTML
type HTTPExtractor struct {
	client *http.Client
	logger *zap.Logger
}

func NewHTTP(cfg Config, logger *zap.Logger) *HTTPExtractor {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &HTTPExtractor{
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

func (e *HTTPExtractor) Extract(ctx context.Context, url string) (*Page, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("%w: empty url", ErrExtractionFailed)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrExtractionFailed, resp.StatusCode)
	}

	page, err := Parse(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	page.URL = url

	return page, nil
}

// Parse разбирает HTML: title, meta description и текст контентных
// элементов длиннее 50 символов. script/style выбрасываются.
func Parse(r io.Reader) (*Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	page := &Page{}
	var chunks []string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			case "title":
				if page.Title == "" {
					page.Title = strings.TrimSpace(textOf(n))
				}
				return
			case "meta":
				if attr(n, "name") == "description" && page.Description == "" {
					page.Description = strings.TrimSpace(attr(n, "content"))
				}
			case "p", "h1", "h2", "h3", "article", "li":
				text := strings.TrimSpace(textOf(n))
				if len(text) > 50 {
					chunks = append(chunks, text)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	page.Text = strings.Join(chunks, " ")
	return page, nil
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && (c.Data == "script" || c.Data == "style") {
				continue
			}
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
