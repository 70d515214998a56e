package dispatch

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/defter-erp/defter/internal/store"
)

// Collection is the entity store collection for dispatch notes.
const Collection = "dispatch_notes"

// Item is one shipped line. StockName is a snapshot frozen at creation.
type Item struct {
	StockID   string          `json:"stockId"`
	StockName string          `json:"stockName"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// Note records goods leaving the warehouse. Dispatch is always outbound;
// every line decrements stock on creation. LinkedInvoiceID is set only by an
// explicit link call, never by invoicing.
type Note struct {
	store.Meta
	DispatchNo      string    `json:"dispatchNo"`
	CustomerID      string    `json:"customerId"`
	CustomerName    string    `json:"customerName"`
	Date            time.Time `json:"date"`
	Items           []Item    `json:"items"`
	LinkedInvoiceID string    `json:"linkedInvoiceId,omitempty"`
	Description     string    `json:"description,omitempty"`
}
