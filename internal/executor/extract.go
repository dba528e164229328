package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ventriloquist/api/schemas"
)

// ExtractKind names what an extraction pulls out of the page.
type ExtractKind string

const (
	ExtractText      ExtractKind = "text"
	ExtractAttribute ExtractKind = "attribute"
	ExtractHTML      ExtractKind = "html"
	// ExtractList collects the text of every match.
	ExtractList ExtractKind = "list"
	// ExtractTable reads an HTML table into rows; with a header row the
	// rows become name→value maps.
	ExtractTable ExtractKind = "table"
)

// ExtractParams drive the extract operation.
type ExtractParams struct {
	Common
	Selector  string      `json:"selector"`
	Kind      ExtractKind `json:"kind"`
	Attribute string      `json:"attribute,omitempty"`
}

// Extract pulls structured data out of the page. The page's rendered HTML
// is snapshotted once and parsed locally, so a mid-extraction DOM mutation
// cannot produce a torn read.
func (r *Runner) Extract(ctx context.Context, p ExtractParams) (*schemas.ActionResult, error) {
	id := p.resolveID()
	res := schemas.NewActionResult("extract", id)
	start := r.now()

	opCtx, cancel := p.opContext(ctx)
	defer cancel()

	h, err := r.session(opCtx, p.Common, id)
	if err != nil {
		return r.conclude(ctx, p.Common, res, start, nil, nil, err)
	}
	page, err := r.page(opCtx, h)
	if err != nil {
		return r.conclude(ctx, p.Common, res, start, nil, nil, err)
	}

	snapCtx, snapCancel := pageContext(page, p.Common)
	defer snapCancel()

	var html string
	if err := chromedp.Run(snapCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return r.conclude(ctx, p.Common, res, start, nil, nil, fmt.Errorf("reading page HTML failed: %w", err))
	}

	data, err := extractFrom(html, p)
	if err != nil {
		return r.conclude(ctx, p.Common, res, start, nil, nil, err)
	}
	res.Data = data

	r.logger.Debug("Extraction complete.",
		zap.String("correlation_id", id),
		zap.String("kind", string(p.Kind)),
		zap.String("selector", p.Selector),
	)
	return r.conclude(ctx, p.Common, res, start, h, page, nil)
}

// extractFrom parses the snapshot and applies the extraction. Split out so
// the parsing rules are testable against static documents.
func extractFrom(html string, p ExtractParams) (any, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing page HTML failed: %w", err)
	}

	sel := doc.Find(p.Selector)
	if sel.Length() == 0 {
		return nil, fmt.Errorf("no element matches %q", p.Selector)
	}

	switch p.Kind {
	case ExtractText, "":
		return strings.TrimSpace(sel.First().Text()), nil

	case ExtractAttribute:
		if p.Attribute == "" {
			return nil, fmt.Errorf("attribute extraction requires an attribute name")
		}
		value, ok := sel.First().Attr(p.Attribute)
		if !ok {
			return nil, fmt.Errorf("element %q has no attribute %q", p.Selector, p.Attribute)
		}
		return value, nil

	case ExtractHTML:
		out, err := goquery.OuterHtml(sel.First())
		if err != nil {
			return nil, fmt.Errorf("rendering element HTML failed: %w", err)
		}
		return out, nil

	case ExtractList:
		items := make([]string, 0, sel.Length())
		sel.Each(func(_ int, s *goquery.Selection) {
			items = append(items, strings.TrimSpace(s.Text()))
		})
		return items, nil

	case ExtractTable:
		return extractTable(sel.First())
	}
	return nil, fmt.Errorf("unknown extract kind %q", p.Kind)
}

// extractTable reads the first matched table. Header cells (th) in the
// first row turn the remaining rows into name→value maps; without them the
// result is a plain [][]string.
func extractTable(table *goquery.Selection) (any, error) {
	rows := table.Find("tr")
	if rows.Length() == 0 {
		return nil, fmt.Errorf("table has no rows")
	}

	var headers []string
	rows.First().Find("th").Each(func(_ int, s *goquery.Selection) {
		headers = append(headers, strings.TrimSpace(s.Text()))
	})

	cellsOf := func(row *goquery.Selection) []string {
		var cells []string
		row.Find("td").Each(func(_ int, s *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(s.Text()))
		})
		return cells
	}

	if len(headers) == 0 {
		grid := make([][]string, 0, rows.Length())
		rows.Each(func(_ int, row *goquery.Selection) {
			if cells := cellsOf(row); len(cells) > 0 {
				grid = append(grid, cells)
			}
		})
		return grid, nil
	}

	var records []map[string]string
	rows.Slice(1, rows.Length()).Each(func(_ int, row *goquery.Selection) {
		cells := cellsOf(row)
		if len(cells) == 0 {
			return
		}
		record := make(map[string]string, len(headers))
		for i, name := range headers {
			if i < len(cells) {
				record[name] = cells[i]
			}
		}
		records = append(records, record)
	})
	return records, nil
}
