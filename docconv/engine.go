package docconv

import "context"

// Engine is the opaque model-inference dependency behind the AI-primary
// converter. One long-lived handle is injected into the converter at
// construction and shared read-only by all workers; implementations
// must be safe for concurrent Infer calls or serialize internally.
//
// A transient outage is reported by wrapping ErrEngineUnavailable so
// the orchestrator falls back instead of failing the document.
type Engine interface {
	// Infer runs layout analysis on the document and returns its
	// structured tree.
	Infer(ctx context.Context, doc Document) (*DocTree, error)

	// Healthy reports whether the engine can currently serve requests.
	Healthy(ctx context.Context) bool
}

// NodeKind discriminates DocTree nodes.
type NodeKind string

const (
	NodeHeading   NodeKind = "heading"
	NodeParagraph NodeKind = "paragraph"
	NodeTable     NodeKind = "table"
	NodeList      NodeKind = "list"
	NodeImage     NodeKind = "image"
	NodeCode      NodeKind = "code"
)

// DocTree is the engine's structured view of a document.
type DocTree struct {
	Metadata Metadata  `json:"metadata"`
	Nodes    []DocNode `json:"nodes"`
}

// DocNode is one structural element. Field use depends on Kind:
// headings carry Level+Text, tables carry Rows, images carry ImageData
// and ImageFormat, lists carry Items.
type DocNode struct {
	Kind        NodeKind    `json:"kind"`
	Level       int         `json:"level,omitempty"`
	Text        string      `json:"text,omitempty"`
	Items       []string    `json:"items,omitempty"`
	Rows        [][]string  `json:"rows,omitempty"`
	Page        int         `json:"page,omitempty"`
	ImageData   []byte      `json:"image_data,omitempty"`
	ImageFormat string      `json:"image_format,omitempty"`
	Links       []Hyperlink `json:"links,omitempty"`
}
