package invoice

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/relaycrm/billing/internal/types"
	"github.com/shopspring/decimal"
)

// Invoice is produced by the lifecycle engine for positive proration amounts
// and handed to the invoice store. Collection and payment are upstream
// concerns; the core never mutates an invoice after creation.
type Invoice struct {
	ID             string              `db:"id" json:"id"`
	ClientID       string              `db:"client_id" json:"client_id"`
	SubscriptionID string              `db:"subscription_id" json:"subscription_id"`
	Amount         decimal.Decimal     `db:"amount" json:"amount"`
	TaxAmount      decimal.Decimal     `db:"tax_amount" json:"tax_amount"`
	TotalAmount    decimal.Decimal     `db:"total_amount" json:"total_amount"`
	InvoiceStatus  types.InvoiceStatus `db:"invoice_status" json:"invoice_status"`
	DueDate        time.Time           `db:"due_date" json:"due_date"`
	LineItems      LineItems           `db:"line_items" json:"line_items"`
	types.BaseModel
}

// LineItem is a single charge or credit line on an invoice
type LineItem struct {
	Description string          `json:"description"`
	PlanID      string          `json:"plan_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	PeriodStart time.Time       `json:"period_start"`
	PeriodEnd   time.Time       `json:"period_end"`
}

// LineItems is stored as a JSONB column
type LineItems []LineItem

// Scan implements the sql.Scanner interface for LineItems
func (l *LineItems) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to unmarshal JSONB value: %v", value)
	}

	var result LineItems
	if err := json.Unmarshal(bytes, &result); err != nil {
		return err
	}
	*l = result
	return nil
}

// Value implements the driver.Valuer interface for LineItems
func (l LineItems) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal(LineItems{})
	}
	return json.Marshal(l)
}
