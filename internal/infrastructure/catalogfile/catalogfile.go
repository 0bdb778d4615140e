// Package catalogfile parses marketplace catalog exports (csv, xlsx) into
// products. Header names are matched against known English and Turkish
// aliases, so files from different marketplaces import without mapping
// configuration.
package catalogfile

import (
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/sellerdesk/variant-engine/internal/domain"
)

// column identifies a canonical product field.
type column int

const (
	colUnknown column = iota
	colID
	colSKU
	colTitle
	colPrice
	colCategory
	colBrand
)

var headerAliases = map[string]column{
	"id":         colID,
	"product id": colID,
	"ürün id":    colID,
	"urun id":    colID,

	"sku":        colSKU,
	"stok kodu":  colSKU,
	"stokkodu":   colSKU,
	"stock code": colSKU,
	"ürün kodu":  colSKU,
	"urun kodu":  colSKU,
	"model kodu": colSKU,
	"barkod":     colSKU,
	"barcode":    colSKU,

	"title":        colTitle,
	"name":         colTitle,
	"product name": colTitle,
	"item name":    colTitle,
	"ürün adı":     colTitle,
	"ürün adi":     colTitle,
	"urun adi":     colTitle,

	"price":         colPrice,
	"sale price":    colPrice,
	"fiyat":         colPrice,
	"satış fiyatı":  colPrice,
	"satış fiyati":  colPrice,
	"satis fiyati":  colPrice,

	"category":         colCategory,
	"product category": colCategory,
	"kategori":         colCategory,

	"brand": colBrand,
	"marka": colBrand,
}

// attributeAliases maps variant-attribute headers onto the canonical keys
// the engine reports differences under. Columns outside this table are
// dropped: stock counts and the like must not show up as variant axes.
var attributeAliases = map[string]string{
	"color":    "color",
	"colour":   "color",
	"renk":     "color",
	"size":     "size",
	"beden":    "size",
	"numara":   "size",
	"material": "material",
	"malzeme":  "material",
	"model":    "model",
	"style":    "style",
	"stil":     "style",
	"pattern":  "pattern",
	"desen":    "pattern",
}

// Parse reads one catalog export into products. The reader format is picked
// by file extension. Files without a recognizable sku or title column fail
// with a ValidationError.
func Parse(r io.Reader, filename string) ([]domain.Product, error) {
	var (
		grid [][]string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".csv":
		grid, err = readCSV(r)
	case ".xlsx":
		grid, err = readXLSX(r)
	default:
		return nil, domain.NewValidationError("file", fmt.Sprintf("unsupported file type %q, expected .csv or .xlsx", ext))
	}
	if err != nil {
		return nil, err
	}
	return buildProducts(grid)
}

func buildProducts(grid [][]string) ([]domain.Product, error) {
	headerIdx := -1
	for i, row := range grid {
		if !rowEmpty(row) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, domain.NewValidationError("file", "file contains no rows")
	}

	fields, attrs := mapHeader(grid[headerIdx])
	if !hasColumn(fields, colSKU) && !hasColumn(fields, colTitle) {
		return nil, domain.NewValidationError("file", "no sku or title column recognized")
	}

	var products []domain.Product
	for _, row := range grid[headerIdx+1:] {
		if rowEmpty(row) {
			continue
		}
		p := buildProduct(row, fields, attrs)
		if p.ID == "" {
			p.ID = p.SKU
		}
		if p.ID == "" {
			// No identity to address the product by; the row is unusable.
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

// mapHeader resolves each header cell to a canonical field or a variant
// attribute. The first occurrence of a field wins; repeats are ignored.
func mapHeader(header []string) ([]column, map[int]string) {
	fields := make([]column, len(header))
	attrs := make(map[int]string)
	seen := make(map[column]bool)

	for i, h := range header {
		key := normalizeHeader(h)
		if col, ok := headerAliases[key]; ok && !seen[col] {
			fields[i] = col
			seen[col] = true
			continue
		}
		if name, ok := attributeAliases[key]; ok {
			attrs[i] = name
		}
	}
	return fields, attrs
}

func buildProduct(row []string, fields []column, attrs map[int]string) domain.Product {
	var p domain.Product
	for i, col := range fields {
		if i >= len(row) {
			break
		}
		val := strings.TrimSpace(row[i])
		if val == "" {
			continue
		}
		switch col {
		case colID:
			p.ID = val
		case colSKU:
			p.SKU = val
		case colTitle:
			p.Title = val
		case colPrice:
			if f, ok := parsePrice(val); ok {
				p.Price = f
			}
		case colCategory:
			p.Category = val
		case colBrand:
			p.Brand = val
		}
	}

	for i, name := range attrs {
		if i >= len(row) {
			continue
		}
		val := strings.TrimSpace(row[i])
		if val == "" {
			continue
		}
		if p.Attributes == nil {
			p.Attributes = make(map[string]string)
		}
		p.Attributes[name] = strings.ToLower(val)
	}
	return p
}

// normalizeHeader lowercases a header cell and strips the combining dot
// that Go's ToLower leaves behind on a Turkish dotted capital İ.
func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "̇", "")
	return strings.Join(strings.Fields(s), " ")
}

var nonNumeric = regexp.MustCompile(`[^\d.,-]`)

// parsePrice handles both decimal conventions found in marketplace exports:
// "1.234,56" (comma decimals) and "1,234.56" (dot decimals). Currency
// symbols and grouping spaces are stripped.
func parsePrice(s string) (float64, bool) {
	s = nonNumeric.ReplaceAllString(s, "")
	if s == "" || s == "-" {
		return 0, false
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	if lastComma > lastDot {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return f, true
}

func hasColumn(fields []column, want column) bool {
	for _, col := range fields {
		if col == want {
			return true
		}
	}
	return false
}

func rowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
