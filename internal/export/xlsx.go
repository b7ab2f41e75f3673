// Package export writes pathway gene-set mappings as spreadsheets.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/compath-server/internal/domain"
)

// WriteGeneSets writes one column per pathway to
// <directory>/<moduleName>_gene_sets.xlsx: the pathway name in the header
// row, its gene symbols below. Columns and symbols are sorted so the
// output is reproducible. Returns the path of the written file.
func WriteGeneSets(geneSets map[string]domain.GeneSet, directory, moduleName string, logger *logrus.Logger) (string, error) {
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return "", fmt.Errorf("creating export directory: %w", err)
	}

	names := make([]string, 0, len(geneSets))
	for name := range geneSets {
		names = append(names, name)
	}
	sort.Strings(names)

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	for col, name := range names {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return "", fmt.Errorf("computing header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return "", fmt.Errorf("writing header %q: %w", name, err)
		}

		symbols := geneSets[name].Symbols()
		sort.Strings(symbols)
		for row, symbol := range symbols {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return "", fmt.Errorf("computing gene cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, symbol); err != nil {
				return "", fmt.Errorf("writing gene %q: %w", symbol, err)
			}
		}
	}

	path := filepath.Join(directory, fmt.Sprintf("%s_gene_sets.xlsx", moduleName))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("saving workbook: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"path":     path,
		"pathways": len(names),
	}).Info("Gene sets exported")

	return path, nil
}
