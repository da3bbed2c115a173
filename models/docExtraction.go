package models

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"

	"bitbucket.org/mmdatafocus/stockledger_backend/config"
	"bitbucket.org/mmdatafocus/stockledger_backend/utils"
	"github.com/google/generative-ai-go/genai"
)

// DocumentLineItem is one extracted line item of a sales document. The JSON
// keys are the extraction oracle's response contract, inherited from the
// ledger's own column language.
type DocumentLineItem struct {
	ClientName  string `json:"Име на клиент"`
	Note        string `json:"Бележка"`
	IssueDate   string `json:"Дата на издаване"`
	ProductName string `json:"Име на продукт"`
	Quantity    string `json:"Количество"`
	UnitPrice   string `json:"Цена"`
	LineTotal   string `json:"Сума лв."`
}

type extractionResponse struct {
	Documents []DocumentLineItem `json:"документи"`
}

// BuildDocumentSubsetCSV serializes the already-filtered rows for one
// document number as CSV, header first, columns in ledger order. Returns
// the CSV and how many rows matched. The oracle only ever sees this subset,
// never the whole ledger.
func BuildDocumentSubsetCSV(table *Table, docNumber string) (string, int, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(table.Header); err != nil {
		return "", 0, err
	}
	matched := 0
	for _, row := range table.Rows {
		if strings.TrimSpace(row[ColumnDocNumber]) != docNumber {
			continue
		}
		cells := make([]string, len(table.Header))
		for i, col := range table.Header {
			cells[i] = row[col]
		}
		if err := w.Write(cells); err != nil {
			return "", 0, err
		}
		matched++
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", 0, err
	}
	return buf.String(), matched, nil
}

// ParseExtractionResponse decodes the oracle's reply fail-closed: fenced or
// bare JSON with the expected top-level collection is accepted. Non-JSON
// text or a missing collection key yields no line items. A response is
// never partially trusted.
func ParseExtractionResponse(raw string) []DocumentLineItem {
	clean := strings.TrimSpace(raw)
	clean = strings.ReplaceAll(clean, "```json", "")
	clean = strings.ReplaceAll(clean, "```", "")
	clean = strings.TrimSpace(clean)
	if clean == "" || !strings.HasPrefix(clean, "{") {
		return nil
	}
	var resp extractionResponse
	if err := utils.UnmarshalFromJSON([]byte(clean), &resp); err != nil {
		return nil
	}
	return resp.Documents
}

// SearchDocuments finds every line item of one sales document. Rows are
// pre-filtered by exact document number; the oracle's job is only to pivot
// each row's product column (the one numeric cell between the sentinels)
// into a named line item. Multiple rows per document are valid and all of
// them are returned. Any oracle failure after a successful local match is
// reported as "no results", never raised past this boundary.
func SearchDocuments(ctx context.Context, store LedgerStore, docNumber string) ([]DocumentLineItem, error) {
	if !config.ExtractionEnabled() {
		return nil, ErrExtractionDisabled
	}
	docNumber = strings.TrimSpace(docNumber)
	if docNumber == "" {
		return []DocumentLineItem{}, nil
	}

	table, err := store.LoadTable(ctx, TableSales)
	if err != nil {
		return nil, err
	}
	subset, matched, err := BuildDocumentSubsetCSV(table, docNumber)
	if err != nil {
		return nil, err
	}
	if matched == 0 {
		return []DocumentLineItem{}, nil
	}

	model := config.GetGenAIClient().GenerativeModel(config.ExtractionModelName)
	resp, err := model.GenerateContent(ctx, genai.Text(buildExtractionPrompt(docNumber, subset)))
	if err != nil {
		config.LogWarnCtx(ctx, config.GetLogger(), "models", "SearchDocuments", "GenerateContent", err)
		return []DocumentLineItem{}, nil
	}

	items := ParseExtractionResponse(responseText(resp))
	if items == nil {
		return []DocumentLineItem{}, nil
	}
	return items, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}
	return sb.String()
}

func buildExtractionPrompt(docNumber, subset string) string {
	return fmt.Sprintf(`You are an expert AI assistant for analyzing tabular data from a CSV string.
Your task is to find all rows for document number '%[1]s' and extract the specified information for each row into a valid JSON format.
The main challenge is to correctly identify the 'Име на продукт' (Product Name) and 'Количество' (Quantity). The 'Име на продукт' is the *name of the column* that contains the quantity for that specific row. This column will be located between the 'Общо кол-во' and 'Цена' columns.
---
**EXAMPLE:**
*Input Data Snippet:*
`+"```csv"+`
Клиент име,Бележка,Дата,Фактура №,Общо кол-во,Product A,Product B,Цена,Сума лв.
ЗП ИВАН ПЕТРОВ,,2024-07-20,59460,10,,10,150.00,1500.00
`+"```"+`
*Desired JSON Output for the example:*
`+"```json"+`
{
  "документи": [
    {
      "Име на клиент": "ЗП ИВАН ПЕТРОВ",
      "Бележка": "",
      "Дата на издаване": "2024-07-20",
      "Име на продукт": "Product B",
      "Количество": "10",
      "Цена": "150.00",
      "Сума лв.": "1500.00"
    }
  ]
}
`+"```"+`
---
**NOW, ANALYZE THE FOLLOWING DATA AND PROVIDE THE JSON OUTPUT:**
**Document to find:** '%[1]s'
**Data:**
`+"```csv"+`
%[2]s
`+"```"+`
**Instructions:**
1. Find ALL rows where the '%[3]s' column is exactly '%[1]s'.
2. For each matching row:
    - Extract "Име на клиент", "Бележка", "Дата", "Цена", and "Сума лв." directly from their columns. Use the 'Дата' value for "Дата на издаване".
    - To find "Име на продукт" and "Количество": Look at the columns between "Общо кол-во" and "Цена". The one column that has a number in it for this specific row is the "Име на продукт", and the number itself is the "Количество".
3. If no document is found, return an empty JSON object like {"документи": []}.
`, docNumber, subset, ColumnDocNumber)
}
