package docconv

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTMLConverterName identifies the HTML-specific fallback variant.
const HTMLConverterName = "html-fallback"

// HTMLConverter sanitizes the page and renders it with
// html-to-markdown. Sanitization runs first so hidden-text and script
// injection never reach the markdown output.
type HTMLConverter struct {
	logger    *slog.Logger
	sanitizer *bluemonday.Policy
	md        *converter.Converter
}

func NewHTMLConverter(logger *slog.Logger) *HTMLConverter {
	if logger == nil {
		logger = slog.Default()
	}
	policy := bluemonday.UGCPolicy()
	policy.AllowElements("table", "thead", "tbody", "tr", "th", "td", "caption")
	return &HTMLConverter{
		logger:    logger,
		sanitizer: policy,
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

func (c *HTMLConverter) Name() string { return HTMLConverterName }

func (c *HTMLConverter) Convert(ctx context.Context, doc Document, opts Options) Result {
	opts = opts.normalized()
	start := time.Now()

	data, err := os.ReadFile(doc.Path)
	if err != nil {
		res := failure(c.Name(), ErrClassProcessing, fmt.Sprintf("read: %v", err))
		res.Duration = time.Since(start)
		return res
	}
	if cerr := ctx.Err(); cerr != nil {
		res := failure(c.Name(), ErrClassCancelled, cerr.Error())
		res.Duration = time.Since(start)
		return res
	}

	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		res := failure(c.Name(), ErrClassUnsupportedFormat, fmt.Sprintf("parse html: %v", err))
		res.Duration = time.Since(start)
		return res
	}

	var links []Hyperlink
	if opts.ExtractHyperlinks {
		links = collectLinks(root)
	}

	clean := c.sanitizer.SanitizeBytes(data)
	md, err := c.md.ConvertString(string(clean))
	if err != nil {
		res := failure(c.Name(), ErrClassProcessing, fmt.Sprintf("render markdown: %v", err))
		res.Duration = time.Since(start)
		return res
	}
	md = strings.TrimSpace(md)
	if md == "" {
		res := failure(c.Name(), ErrClassProcessing, "page has no visible content")
		res.Duration = time.Since(start)
		return res
	}

	res := Result{
		Success:       true,
		Markdown:      md + "\n",
		ConverterUsed: c.Name(),
		Hyperlinks:    links,
		Duration:      time.Since(start),
	}
	if opts.ExtractMetadata {
		res.Metadata = Metadata{
			Title:     htmlTitle(root),
			Author:    htmlMetaAuthor(root),
			WordCount: countWords(md),
		}
	}
	return res
}

// htmlTitle extracts the <title> text.
func htmlTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		if n.FirstChild != nil {
			return strings.TrimSpace(n.FirstChild.Data)
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if t := htmlTitle(child); t != "" {
			return t
		}
	}
	return ""
}

// htmlMetaAuthor extracts <meta name="author" content="...">.
func htmlMetaAuthor(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Meta {
		var name, content string
		for _, a := range n.Attr {
			switch strings.ToLower(a.Key) {
			case "name":
				name = strings.ToLower(a.Val)
			case "content":
				content = a.Val
			}
		}
		if name == "author" {
			return strings.TrimSpace(content)
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if a := htmlMetaAuthor(child); a != "" {
			return a
		}
	}
	return ""
}

// collectLinks gathers (href, anchor text) pairs from the raw DOM.
func collectLinks(root *html.Node) []Hyperlink {
	var links []Hyperlink
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			var href string
			for _, a := range n.Attr {
				if a.Key == "href" {
					href = a.Val
					break
				}
			}
			if href != "" && !strings.HasPrefix(href, "#") {
				links = append(links, Hyperlink{URL: href, Text: nodeText(n)})
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)
	return links
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return sb.String()
}
