package service

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/echoflow/kit"
)

// RegisterMCP registers the conversion tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerConvertDocumentTool(srv)
	s.registerConvertDirectoryTool(srv)
	s.registerFormatsTool(srv)
	s.registerStatusTool(srv)
	s.registerHealthTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	sch := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sch["required"] = required
	}
	return sch
}

// --- convert_document ---

func (s *Service) registerConvertDocumentTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "convert_document",
		Description: "Convert a document file (pdf, docx, pptx, xlsx, odt, html, md, txt) to markdown.",
		InputSchema: inputSchema(map[string]any{
			"file_path":          map[string]any{"type": "string", "description": "Path of the document to convert"},
			"output_dir":         map[string]any{"type": "string", "description": "Directory to write the markdown into; omit to get the markdown inline"},
			"extract_images":     map[string]any{"type": "boolean", "description": "Extract embedded images"},
			"extract_metadata":   map[string]any{"type": "boolean", "description": "Extract document metadata"},
			"extract_hyperlinks": map[string]any{"type": "boolean", "description": "Extract hyperlinks"},
			"quality_threshold":  map[string]any{"type": "number", "description": "Minimum quality score to accept a converter's output (0-1)"},
		}, []string{"file_path"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		return s.ConvertDocument(ctx, *req.(*ConvertDocumentRequest))
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r ConvertDocumentRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- convert_directory ---

func (s *Service) registerConvertDirectoryTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "convert_directory",
		Description: "Convert every supported document under a directory to markdown.",
		InputSchema: inputSchema(map[string]any{
			"input_dir":          map[string]any{"type": "string", "description": "Directory containing documents"},
			"output_dir":         map[string]any{"type": "string", "description": "Directory to write markdown files into"},
			"recursive":          map[string]any{"type": "boolean", "description": "Descend into subdirectories"},
			"file_filter":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Base-name globs selecting input files (default: all supported extensions)"},
			"create_zip":         map[string]any{"type": "boolean", "description": "Bundle the output directory into a zip archive"},
			"extract_images":     map[string]any{"type": "boolean", "description": "Extract embedded images"},
			"extract_metadata":   map[string]any{"type": "boolean", "description": "Extract document metadata"},
			"extract_hyperlinks": map[string]any{"type": "boolean", "description": "Extract hyperlinks"},
			"quality_threshold":  map[string]any{"type": "number", "description": "Minimum quality score to accept a converter's output (0-1)"},
		}, []string{"input_dir", "output_dir"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		return s.ConvertDirectory(ctx, *req.(*ConvertDirectoryRequest))
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r ConvertDirectoryRequest
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- list_supported_formats ---

func (s *Service) registerFormatsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "list_supported_formats",
		Description: "List all supported document formats.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		return map[string]any{"formats": s.Formats()}, nil
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- get_conversion_status ---

type statusReq struct {
	JobID string `json:"job_id"`
}

func (s *Service) registerStatusTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "get_conversion_status",
		Description: "Get the status and counters of a directory-conversion job.",
		InputSchema: inputSchema(map[string]any{
			"job_id": map[string]any{"type": "string", "description": "Job ID returned by convert_directory"},
		}, []string{"job_id"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*statusReq)
		return s.Status(ctx, r.JobID)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r statusReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- health_check ---

func (s *Service) registerHealthTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "health_check",
		Description: "Report service, engine, and job-store health.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return s.Health(ctx), nil
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
