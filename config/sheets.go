package config

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Backend selection for the ledger store.
//
// Env:
// - LEDGER_BACKEND="sheets" (default) or "workbook"
// - LEDGER_WORKBOOK_PATH=/path/to/ledger.xlsx (workbook backend)
// - SALES_SPREADSHEET_ID / INVENTORY_SPREADSHEET_ID (sheets backend)
// - SHEETS_CREDENTIALS_FILE=/path/to/service-account.json

const (
	LedgerBackendSheets   = "sheets"
	LedgerBackendWorkbook = "workbook"
)

var (
	sheetsService *sheets.Service
)

func GetSheetsService() *sheets.Service {
	return sheetsService
}

func LedgerBackend() string {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("LEDGER_BACKEND")))
	if v == LedgerBackendWorkbook {
		return LedgerBackendWorkbook
	}
	return LedgerBackendSheets
}

func WorkbookPath() string {
	return strings.TrimSpace(os.Getenv("LEDGER_WORKBOOK_PATH"))
}

func SalesSpreadsheetID() string {
	return strings.TrimSpace(os.Getenv("SALES_SPREADSHEET_ID"))
}

func InventorySpreadsheetID() string {
	return strings.TrimSpace(os.Getenv("INVENTORY_SPREADSHEET_ID"))
}

// ConnectSheetsWithRetry builds the Sheets API client from a service-account
// credentials file and sets the global service.
// Call this from main() AFTER the HTTP server is listening; the readiness
// gate returns 503 for ledger endpoints until the client is up.
func ConnectSheetsWithRetry() {
	credsFile := strings.TrimSpace(os.Getenv("SHEETS_CREDENTIALS_FILE"))

	var attempt int
	for {
		attempt++
		opts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}
		if credsFile != "" {
			opts = append(opts, option.WithCredentialsFile(credsFile))
		}
		svc, err := sheets.NewService(context.Background(), opts...)
		if err == nil {
			sheetsService = svc
			log.Printf("connected to google sheets api (attempt=%d)", attempt)
			return
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.Printf("failed to init sheets client (attempt=%d): %v; retrying in %s", attempt, err, sleep)
		time.Sleep(sleep)
	}
}
