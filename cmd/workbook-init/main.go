package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/stockledger_backend/models"
	"bitbucket.org/mmdatafocus/stockledger_backend/utils"
	"github.com/xuri/excelize/v2"
)

// workbook-init scaffolds a starter ledger workbook for the local backend:
// a SalesData sheet with the title block, the header at its fixed row, an
// ОБЩО totals row, and an Inventory sheet seeded with the given products.

func main() {
	path := flag.String("path", "ledger.xlsx", "Output workbook path")
	products := flag.String("products", "", "Comma-separated initial product names")
	force := flag.Bool("force", false, "Overwrite an existing file")
	flag.Parse()

	if !*force {
		if _, err := os.Stat(*path); err == nil {
			fmt.Fprintf(os.Stderr, "%s already exists; use -force to overwrite\n", *path)
			os.Exit(1)
		}
	}

	productNames := utils.SplitAndTrim(*products)
	if len(productNames) == 0 {
		fmt.Fprintln(os.Stderr, "-products is required (record entry needs at least one product column)")
		os.Exit(1)
	}

	f := excelize.NewFile()
	defer f.Close()
	utils.ErrorPanic(f.SetSheetName("Sheet1", models.TableSales))
	_, err := f.NewSheet(models.TableInventory)
	utils.ErrorPanic(err)

	buildSalesSheet(f, productNames)
	buildInventorySheet(f, productNames)

	utils.ErrorPanic(f.SaveAs(*path))
	fmt.Printf("created %s with %d product column(s)\n", *path, len(productNames))
}

func buildSalesSheet(f *excelize.File, products []string) {
	sheet := models.TableSales

	utils.ErrorPanic(f.SetCellValue(sheet, "A1", "Складова книга"))
	utils.ErrorPanic(f.SetCellValue(sheet, "A2", "Колоните между 'Общо кол-во' и 'Цена' са продукти; редът 'ОБЩО' остава последен."))

	header := []string{
		models.ColumnClientName,
		models.ColumnNote,
		models.ColumnDate,
		models.ColumnDocNumber,
		models.ColumnTotalQuantity,
	}
	header = append(header, products...)
	header = append(header, models.ColumnUnitPrice, models.ColumnLineTotal)

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	utils.ErrorPanic(err)

	for i, name := range header {
		cell, err := excelize.CoordinatesToCellName(i+1, models.SalesHeaderRow)
		utils.ErrorPanic(err)
		utils.ErrorPanic(f.SetCellValue(sheet, cell, name))
		utils.ErrorPanic(f.SetCellStyle(sheet, cell, cell, bold))
	}

	// The totals row starts one blank row below the header; the first
	// append lands on the blank row's position and the repair pass fixes
	// the ranges from then on.
	firstDataRow := models.SalesHeaderRow + 1
	totalRow := firstDataRow + 1
	clientCell, err := excelize.CoordinatesToCellName(1, totalRow)
	utils.ErrorPanic(err)
	utils.ErrorPanic(f.SetCellValue(sheet, clientCell, models.AggregateRowMarker))
	utils.ErrorPanic(f.SetCellStyle(sheet, clientCell, clientCell, bold))

	// Formula-bearing cells opt a column into summation: total quantity,
	// each product, and the line total. Цена deliberately carries none.
	for i, name := range header {
		if name != models.ColumnTotalQuantity && name != models.ColumnLineTotal && !contains(products, name) {
			continue
		}
		letter, err := excelize.ColumnNumberToName(i + 1)
		utils.ErrorPanic(err)
		cell, err := excelize.CoordinatesToCellName(i+1, totalRow)
		utils.ErrorPanic(err)
		formula := fmt.Sprintf("SUM(%s%d:%s%d)", letter, firstDataRow, letter, firstDataRow)
		utils.ErrorPanic(f.SetCellFormula(sheet, cell, formula))
	}

	lastCol, err := excelize.ColumnNumberToName(len(header))
	utils.ErrorPanic(err)
	utils.ErrorPanic(f.SetColWidth(sheet, "A", "A", 24))
	utils.ErrorPanic(f.SetColWidth(sheet, "B", lastCol, 14))
}

func buildInventorySheet(f *excelize.File, products []string) {
	sheet := models.TableInventory

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	utils.ErrorPanic(err)
	utils.ErrorPanic(f.SetCellValue(sheet, "A1", models.InventoryColumnProduct))
	utils.ErrorPanic(f.SetCellValue(sheet, "B1", models.InventoryColumnQuantity))
	utils.ErrorPanic(f.SetCellStyle(sheet, "A1", "B1", bold))

	for i, name := range products {
		row := models.InventoryHeaderRow + 1 + i
		utils.ErrorPanic(f.SetCellValue(sheet, fmt.Sprintf("A%d", row), name))
		utils.ErrorPanic(f.SetCellValue(sheet, fmt.Sprintf("B%d", row), 0))
	}
	utils.ErrorPanic(f.SetColWidth(sheet, "A", "A", 24))
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}
