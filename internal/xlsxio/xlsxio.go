// Package xlsxio exports GeoTables to XLSX workbooks and loads attribute-only
// tables from them. Geometry does not survive the trip: exports drop the
// geometry column and loads produce non-spatial tables.
package xlsxio

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/geotable/internal/crs"
	"github.com/sells-group/geotable/internal/geotable"
)

// ReadOptions configures the XLSX loader.
type ReadOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// Write exports the table's attribute columns to a single-sheet workbook,
// one header row plus one row per record. The workbook is written to a temp
// sibling and renamed into place.
func Write(t *geotable.GeoTable, path string) error {
	if !strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return eris.Wrapf(geotable.ErrUnsupportedFormat, "xlsxio: %s", path)
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("data")
	if err != nil {
		return eris.Wrapf(geotable.ErrWriteError, "xlsxio: add sheet: %v", err)
	}

	cols := t.AttributeColumns()
	header := sheet.AddRow()
	for _, col := range cols {
		header.AddCell().SetString(col)
	}

	for _, rec := range t.Records() {
		row := sheet.AddRow()
		for _, col := range cols {
			setCell(row.AddCell(), rec.Attrs[col])
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".geotable-*")
	if err != nil {
		return eris.Wrapf(geotable.ErrWriteError, "xlsxio: temp file: %v", err)
	}
	tmpName := tmp.Name()
	_ = tmp.Close()
	defer func() { _ = os.Remove(tmpName) }()

	if err := f.Save(tmpName); err != nil {
		return eris.Wrapf(geotable.ErrWriteError, "xlsxio: save: %v", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return eris.Wrapf(geotable.ErrWriteError, "xlsxio: rename: %v", err)
	}

	zap.L().Debug("xlsxio: wrote",
		zap.String("path", path),
		zap.Int("records", t.Len()),
		zap.Int("columns", len(cols)),
	)
	return nil
}

// Read loads a worksheet into a non-spatial GeoTable. The first row supplies
// column names; cell values are parsed into numbers and booleans where they
// look like them.
func Read(path string, opts ReadOptions) (*geotable.GeoTable, error) {
	if !strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return nil, eris.Wrapf(geotable.ErrUnsupportedFormat, "xlsxio: %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, eris.Wrapf(geotable.ErrFileNotFound, "xlsxio: %s", path)
		}
		return nil, eris.Wrapf(err, "xlsxio: stat %s", path)
	}

	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(geotable.ErrUnsupportedFormat, "xlsxio: open %s: %v", path, err)
	}
	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("xlsxio: sheet in %s is empty", path)
	}

	cols := rowToStrings(sheet.Rows[0])
	table := geotable.New(cols, crs.MustLookup(4326))
	for _, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)
		attrs := make(map[string]any, len(cols))
		for i, col := range cols {
			if i >= len(cells) || cells[i] == "" {
				attrs[col] = nil
				continue
			}
			attrs[col] = geotable.ParseScalar(cells[i])
		}
		if err := table.Append(geotable.Record{Attrs: attrs}); err != nil {
			return nil, err
		}
	}

	zap.L().Debug("xlsxio: loaded",
		zap.String("path", path),
		zap.Int("records", table.Len()),
	)
	return table, nil
}

func getSheet(f *xlsx.File, opts ReadOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsxio: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}
	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsxio: sheet index %d out of range (file has %d sheets)",
			opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func setCell(c *xlsx.Cell, v any) {
	switch x := v.(type) {
	case nil:
		c.SetString("")
	case string:
		c.SetString(x)
	case int64:
		c.SetInt64(x)
	case int:
		c.SetInt(x)
	case float64:
		c.SetFloat(x)
	case bool:
		c.SetBool(x)
	case time.Time:
		c.SetString(x.Format("2006-01-02"))
	default:
		c.SetValue(x)
	}
}
