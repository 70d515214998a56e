package customers

import (
	"github.com/shopspring/decimal"

	"github.com/defter-erp/defter/internal/store"
)

// Collection is the entity store collection for customers.
const Collection = "customers"

// CustomerType distinguishes individuals from companies.
type CustomerType string

const (
	TypeIndividual CustomerType = "Individual"
	TypeCorporate  CustomerType = "Corporate"
)

// Customer is a party we sell to or buy from. Balance is signed: positive
// means the customer owes us, negative means we owe them. Only the invoice
// engine mutates it.
type Customer struct {
	store.Meta
	Type      CustomerType    `json:"type"`
	Name      string          `json:"name"`
	TaxNumber string          `json:"taxNumber,omitempty"`
	Phone     string          `json:"phone,omitempty"`
	Email     string          `json:"email,omitempty"`
	Address   string          `json:"address,omitempty"`
	Balance   decimal.Decimal `json:"balance"`
	IsActive  bool            `json:"isActive"`
}
