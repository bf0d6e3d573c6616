package client

import (
	"github.com/relaycrm/billing/internal/types"
)

// Client is the CRM account that owns subscriptions. The billing core reads
// it for existence checks and writes only its status, through the suspend
// cascade.
type Client struct {
	ID           string             `db:"id" json:"id"`
	Name         string             `db:"name" json:"name"`
	Email        string             `db:"email" json:"email"`
	ClientStatus types.ClientStatus `db:"client_status" json:"client_status"`
	types.BaseModel
}
