package stock

import (
	"github.com/shopspring/decimal"

	"github.com/defter-erp/defter/internal/store"
)

// Collection is the entity store collection for stock items.
const Collection = "stocks"

// StockType separates countable products from services.
type StockType string

const (
	TypeProduct StockType = "Product"
	TypeService StockType = "Service"
)

// Unit enumerates supported measurement units.
type Unit string

const (
	UnitPiece Unit = "Piece"
	UnitKg    Unit = "Kg"
	UnitHour  Unit = "Hour"
	UnitMeter Unit = "Meter"
	UnitLitre Unit = "Litre"
)

// Stock is a catalog entry. Quantity is meaningless for services and stays
// zero; it may go negative for products, there is no stock-out floor.
type Stock struct {
	store.Meta
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Type      StockType       `json:"type"`
	Unit      Unit            `json:"unit"`
	VATRate   decimal.Decimal `json:"vatRate"`
	SalePrice decimal.Decimal `json:"salePrice"`
	Quantity  decimal.Decimal `json:"stockQuantity"`
}

// ValidUnit reports whether u is a known unit.
func ValidUnit(u Unit) bool {
	switch u {
	case UnitPiece, UnitKg, UnitHour, UnitMeter, UnitLitre:
		return true
	}
	return false
}

// ApplyDelta adds delta to the on-hand quantity. Services are exempt: the
// call leaves them untouched and reports false.
func (s *Stock) ApplyDelta(delta decimal.Decimal) bool {
	if s.Type == TypeService {
		return false
	}
	s.Quantity = s.Quantity.Add(delta)
	return true
}
