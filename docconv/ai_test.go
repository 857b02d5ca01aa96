package docconv

import (
	"context"
	"strings"
	"testing"
)

// stubEngine returns a canned tree or error without any network.
type stubEngine struct {
	tree *DocTree
	err  error
}

func (s *stubEngine) Infer(_ context.Context, _ Document) (*DocTree, error) {
	return s.tree, s.err
}

func (s *stubEngine) Healthy(context.Context) bool { return s.err == nil }

func richTree() *DocTree {
	return &DocTree{
		Metadata: Metadata{Title: "Annual Plan", Author: "Pat Example", PageCount: 2},
		Nodes: []DocNode{
			{Kind: NodeHeading, Level: 1, Text: "Annual Plan"},
			{Kind: NodeParagraph, Text: "Targets for the coming year.", Links: []Hyperlink{{URL: "https://example.com/plan", Text: "plan"}}},
			{Kind: NodeList, Items: []string{"grow revenue", "reduce churn"}},
			{Kind: NodeTable, Rows: [][]string{{"Quarter", "Target"}, {"Q1", "10"}}},
			{Kind: NodeCode, Text: "make release"},
			{Kind: NodeImage, Page: 1, ImageData: []byte{0x89, 0x50, 0x4e, 0x47}, ImageFormat: "png"},
		},
	}
}

func TestAIConvert(t *testing.T) {
	eng := &stubEngine{tree: richTree()}
	res := NewAIConverter(eng, nil).Convert(context.Background(), Document{Path: "plan.docx", Format: FormatDocx}, DefaultOptions())
	if !res.Success {
		t.Fatalf("conversion failed: %s %s", res.ErrClass, res.ErrMessage)
	}
	if res.ConverterUsed != AIConverterName {
		t.Errorf("converter = %q", res.ConverterUsed)
	}

	for _, want := range []string{
		"# Annual Plan",
		"Targets for the coming year.",
		"- grow revenue",
		"| Quarter | Target |",
		"| Q1 | 10 |",
		"```\nmake release\n```",
		"![image_001.png](images/image_001.png)",
	} {
		if !strings.Contains(res.Markdown, want) {
			t.Errorf("missing %q:\n%s", want, res.Markdown)
		}
	}

	if len(res.Images) != 1 || res.Images[0].Filename != "image_001.png" {
		t.Errorf("images = %+v", res.Images)
	}
	if len(res.Hyperlinks) != 1 || res.Hyperlinks[0].URL != "https://example.com/plan" {
		t.Errorf("hyperlinks = %+v", res.Hyperlinks)
	}
	if res.Metadata.Title != "Annual Plan" || res.Metadata.WordCount == 0 {
		t.Errorf("metadata = %+v", res.Metadata)
	}
}

func TestAIConvert_ImageGating(t *testing.T) {
	eng := &stubEngine{tree: richTree()}

	opts := DefaultOptions()
	opts.ExtractImages = false
	res := NewAIConverter(eng, nil).Convert(context.Background(), Document{Path: "plan.docx", Format: FormatDocx}, opts)
	if !res.Success {
		t.Fatal(res.ErrMessage)
	}
	if len(res.Images) != 0 || strings.Contains(res.Markdown, "![") {
		t.Error("images emitted despite ExtractImages=false")
	}

	// Oversize images are skipped, not failed.
	opts = DefaultOptions()
	opts.MaxImageSize = 2
	res = NewAIConverter(eng, nil).Convert(context.Background(), Document{Path: "plan.docx", Format: FormatDocx}, opts)
	if !res.Success {
		t.Fatal(res.ErrMessage)
	}
	if len(res.Images) != 0 {
		t.Errorf("oversize image not skipped: %+v", res.Images)
	}
}

func TestAIConvert_HyperlinkGating(t *testing.T) {
	eng := &stubEngine{tree: richTree()}
	opts := DefaultOptions()
	opts.ExtractHyperlinks = false
	res := NewAIConverter(eng, nil).Convert(context.Background(), Document{Path: "plan.docx", Format: FormatDocx}, opts)
	if !res.Success {
		t.Fatal(res.ErrMessage)
	}
	if len(res.Hyperlinks) != 0 {
		t.Errorf("hyperlinks = %+v", res.Hyperlinks)
	}
}

func TestAIConvert_EngineUnavailable(t *testing.T) {
	eng := &stubEngine{err: ErrEngineUnavailable}
	res := NewAIConverter(eng, nil).Convert(context.Background(), Document{Path: "plan.docx", Format: FormatDocx}, Options{})
	if res.Success || res.ErrClass != ErrClassEngineUnavailable {
		t.Fatalf("success=%v class=%q", res.Success, res.ErrClass)
	}
}

func TestAIConvert_EmptyTree(t *testing.T) {
	eng := &stubEngine{tree: &DocTree{}}
	res := NewAIConverter(eng, nil).Convert(context.Background(), Document{Path: "plan.docx", Format: FormatDocx}, Options{})
	if res.Success || res.ErrClass != ErrClassProcessing {
		t.Fatalf("success=%v class=%q", res.Success, res.ErrClass)
	}
}

func TestAIConvert_Cancelled(t *testing.T) {
	eng := &stubEngine{tree: richTree()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewAIConverter(eng, nil).Convert(ctx, Document{Path: "plan.docx", Format: FormatDocx}, Options{})
	if res.Success || res.ErrClass != ErrClassCancelled {
		t.Fatalf("success=%v class=%q", res.Success, res.ErrClass)
	}
}
