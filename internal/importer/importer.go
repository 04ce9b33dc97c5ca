package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/example/ec-inventory-engine/internal/domain/inventory"
	"github.com/example/ec-inventory-engine/internal/domain/product"
)

var (
	ErrMissingHeader = errors.New("missing or malformed csv header")
	ErrEmptyFile     = errors.New("import file is empty")
)

// Expected header columns, in order.
var header = []string{"product_id", "quantity_delta"}

// Row is one parsed adjustment line.
type Row struct {
	Line      int
	ProductID string
	Delta     int
}

// FailedRow reports one row that could not be applied, keyed by its line
// number in the uploaded file.
type FailedRow struct {
	Line      int    `json:"row"`
	ProductID string `json:"productId"`
	Reason    string `json:"reason"`
}

// Result summarizes an import run. FailedRows is never nil so the JSON
// shape stays stable.
type Result struct {
	ProcessedCount int         `json:"processedCount"`
	FailedRows     []FailedRow `json:"failedRows"`
}

// Importer applies bulk stock adjustments from CSV uploads. Each row is
// applied independently; a bad row is reported and skipped, never aborting
// the rest of the file.
type Importer struct {
	ledger   *inventory.Ledger
	products *product.Catalog
}

func NewImporter(ledger *inventory.Ledger, products *product.Catalog) *Importer {
	return &Importer{ledger: ledger, products: products}
}

// Run reads the whole CSV and applies every row, reporting per-row failures
// in the result rather than as errors. Only a structurally unreadable file
// fails the run.
func (im *Importer) Run(ctx context.Context, r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	head, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if err := checkHeader(head); err != nil {
		return nil, err
	}

	result := &Result{FailedRows: []FailedRow{}}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			result.FailedRows = append(result.FailedRows, FailedRow{
				Line: line, Reason: fmt.Sprintf("malformed row: %v", err),
			})
			continue
		}

		row, err := parseRow(line, record)
		if err != nil {
			result.FailedRows = append(result.FailedRows, FailedRow{
				Line: line, ProductID: rowProductID(record), Reason: err.Error(),
			})
			continue
		}

		if err := im.apply(ctx, row); err != nil {
			result.FailedRows = append(result.FailedRows, FailedRow{
				Line: row.Line, ProductID: row.ProductID, Reason: err.Error(),
			})
			continue
		}
		result.ProcessedCount++
	}

	log.Printf("[Importer] Processed %d rows, %d failed", result.ProcessedCount, len(result.FailedRows))
	return result, nil
}

// apply adjusts stock for one row. The product must exist in the catalog;
// imports adjust stock, they do not create products.
func (im *Importer) apply(ctx context.Context, row Row) error {
	if _, err := im.products.Get(ctx, row.ProductID); err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return fmt.Errorf("unknown product %s", row.ProductID)
		}
		return err
	}
	if _, err := im.ledger.Adjust(ctx, row.ProductID, row.Delta, "bulk import"); err != nil {
		return err
	}
	return nil
}

func checkHeader(head []string) error {
	if len(head) < len(header) {
		return fmt.Errorf("%w: want columns %s", ErrMissingHeader, strings.Join(header, ","))
	}
	for i, want := range header {
		if strings.TrimSpace(strings.ToLower(head[i])) != want {
			return fmt.Errorf("%w: column %d is %q, want %q", ErrMissingHeader, i+1, head[i], want)
		}
	}
	return nil
}

func parseRow(line int, record []string) (Row, error) {
	if len(record) < 2 {
		return Row{}, errors.New("missing columns")
	}
	productID := strings.TrimSpace(record[0])
	if productID == "" {
		return Row{}, errors.New("empty product id")
	}
	delta, err := strconv.Atoi(strings.TrimSpace(record[1]))
	if err != nil {
		return Row{}, fmt.Errorf("invalid quantity_delta %q", record[1])
	}
	return Row{Line: line, ProductID: productID, Delta: delta}, nil
}

func rowProductID(record []string) string {
	if len(record) > 0 {
		return strings.TrimSpace(record[0])
	}
	return ""
}
