package docconv

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// AIConverterName identifies the primary variant in results.
const AIConverterName = "ai"

// AIConverter is the primary variant. It delegates layout analysis to
// the injected Engine and renders the returned tree to markdown with
// metadata, images, and hyperlink spans.
type AIConverter struct {
	engine Engine
	logger *slog.Logger
}

// NewAIConverter wires the shared engine handle into a converter.
func NewAIConverter(engine Engine, logger *slog.Logger) *AIConverter {
	if logger == nil {
		logger = slog.Default()
	}
	return &AIConverter{engine: engine, logger: logger}
}

func (c *AIConverter) Name() string { return AIConverterName }

// Convert runs inference and renders the tree. Engine outages come back
// as ErrClassEngineUnavailable so the orchestrator advances to the
// format fallback. Cancellation is checked per tree node.
func (c *AIConverter) Convert(ctx context.Context, doc Document, opts Options) Result {
	opts = opts.normalized()
	start := time.Now()

	tree, err := c.engine.Infer(ctx, doc)
	if err != nil {
		c.logger.Warn("ai inference failed", "path", doc.Path, "error", err)
		r := failure(c.Name(), Classify(err), err.Error())
		r.Duration = time.Since(start)
		return r
	}
	if tree == nil || len(tree.Nodes) == 0 {
		r := failure(c.Name(), ErrClassProcessing, "engine returned empty document tree")
		r.Duration = time.Since(start)
		return r
	}

	md, images, links, err := c.render(ctx, tree, opts)
	if err != nil {
		r := failure(c.Name(), Classify(err), err.Error())
		r.Duration = time.Since(start)
		return r
	}
	if strings.TrimSpace(md) == "" {
		r := failure(c.Name(), ErrClassProcessing, "no renderable content in document tree")
		r.Duration = time.Since(start)
		return r
	}

	res := Result{
		Success:       true,
		Markdown:      md,
		ConverterUsed: c.Name(),
		Images:        images,
		Hyperlinks:    links,
		Duration:      time.Since(start),
	}
	if opts.ExtractMetadata {
		res.Metadata = tree.Metadata
		if res.Metadata.WordCount == 0 {
			res.Metadata.WordCount = countWords(md)
		}
	}
	return res
}

// render walks the tree once, observing ctx at each node boundary.
func (c *AIConverter) render(ctx context.Context, tree *DocTree, opts Options) (string, []ExtractedImage, []Hyperlink, error) {
	var sb strings.Builder
	var images []ExtractedImage
	var links []Hyperlink

	for i, node := range tree.Nodes {
		if err := ctx.Err(); err != nil {
			return "", nil, nil, err
		}

		switch node.Kind {
		case NodeHeading:
			writeHeading(&sb, node.Level, node.Text)
		case NodeParagraph:
			if t := strings.TrimSpace(node.Text); t != "" {
				sb.WriteString(t)
				sb.WriteString("\n\n")
			}
		case NodeTable:
			writeTable(&sb, node.Rows)
		case NodeList:
			writeList(&sb, node.Items)
		case NodeCode:
			sb.WriteString("```\n")
			sb.WriteString(node.Text)
			sb.WriteString("\n```\n\n")
		case NodeImage:
			if !opts.ExtractImages || len(node.ImageData) == 0 {
				continue
			}
			if int64(len(node.ImageData)) > opts.MaxImageSize {
				continue
			}
			format := node.ImageFormat
			if format == "" {
				format = opts.ImageFormat
			}
			img := ExtractedImage{
				Filename: fmt.Sprintf("image_%03d.%s", len(images)+1, format),
				Format:   format,
				Page:     node.Page,
				Data:     node.ImageData,
			}
			images = append(images, img)
			fmt.Fprintf(&sb, "![%s](images/%s)\n\n", img.Filename, img.Filename)
		default:
			c.logger.Debug("skipping unknown node kind", "kind", node.Kind, "index", i)
		}

		if opts.ExtractHyperlinks {
			links = append(links, node.Links...)
		}
	}

	return strings.TrimRight(sb.String(), "\n") + "\n", images, links, nil
}
