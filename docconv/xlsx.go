package docconv

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// XlsxConverterName identifies the XLSX-specific fallback variant.
const XlsxConverterName = "xlsx-fallback"

// XlsxConverter renders each sheet as a markdown pipe table, one
// section per sheet.
type XlsxConverter struct {
	logger *slog.Logger
}

func NewXlsxConverter(logger *slog.Logger) *XlsxConverter {
	if logger == nil {
		logger = slog.Default()
	}
	return &XlsxConverter{logger: logger}
}

func (c *XlsxConverter) Name() string { return XlsxConverterName }

func (c *XlsxConverter) Convert(ctx context.Context, doc Document, opts Options) Result {
	opts = opts.normalized()
	start := time.Now()

	f, err := excelize.OpenFile(doc.Path)
	if err != nil {
		res := failure(c.Name(), ErrClassUnsupportedFormat, fmt.Sprintf("open workbook: %v", err))
		res.Duration = time.Since(start)
		return res
	}
	defer f.Close()

	var sb strings.Builder
	sheets := f.GetSheetList()
	for _, sheet := range sheets {
		// Sheet boundary is the cancellation checkpoint.
		if cerr := ctx.Err(); cerr != nil {
			res := failure(c.Name(), ErrClassCancelled, cerr.Error())
			res.Duration = time.Since(start)
			return res
		}

		rows, err := f.GetRows(sheet)
		if err != nil {
			c.logger.Debug("skipping unreadable sheet", "sheet", sheet, "error", err)
			continue
		}
		rows = trimEmptyRows(rows)
		if len(rows) == 0 {
			continue
		}

		writeHeading(&sb, 2, sheet)
		writeTable(&sb, rows)
	}

	if sb.Len() == 0 {
		res := failure(c.Name(), ErrClassProcessing, "workbook has no cell content")
		res.Duration = time.Since(start)
		return res
	}

	res := Result{
		Success:       true,
		Markdown:      strings.TrimRight(sb.String(), "\n") + "\n",
		ConverterUsed: c.Name(),
		Duration:      time.Since(start),
	}
	if opts.ExtractMetadata {
		res.Metadata = xlsxMetadata(f)
		res.Metadata.PageCount = len(sheets)
		res.Metadata.WordCount = countWords(res.Markdown)
	}
	return res
}

func xlsxMetadata(f *excelize.File) Metadata {
	var md Metadata
	props, err := f.GetDocProps()
	if err != nil || props == nil {
		return md
	}
	md.Title = strings.TrimSpace(props.Title)
	md.Author = strings.TrimSpace(props.Creator)
	md.Subject = strings.TrimSpace(props.Subject)
	if t, err := time.Parse(time.RFC3339, props.Created); err == nil {
		md.CreationDate = t
	}
	if t, err := time.Parse(time.RFC3339, props.Modified); err == nil {
		md.ModificationDate = t
	}
	return md
}

// trimEmptyRows drops fully empty rows so a sparse sheet does not
// become a wall of blank table lines.
func trimEmptyRows(rows [][]string) [][]string {
	var out [][]string
	for _, row := range rows {
		empty := true
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				empty = false
				break
			}
		}
		if !empty {
			out = append(out, row)
		}
	}
	return out
}
