package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeRecord is one normalized row of the TradeHistories table.
//
// Nullable database values are nil pointers (or invalid NullDecimals). Enum-like
// codes (Digits, Type, State) are kept as raw integers.
//
// Column order:
//  1. ID
//  2. TradeAccountID
//  3. Ticket
//  4. SymbolName
//  5. Digits
//  6. Type
//  7. Quantity
//  8. State
//  9. OpenTime
//  10. OpenPrice
//  11. OpenRate
//  12. CloseTime
//  13. ClosePrice
//  14. CloseRate
//  15. StopLoss
//  16. TakeProfit
//  17. Expiration
//  18. Commission
//  19. CommissionAgent
//  20. Swap
//  21. Profit
//  22. Tax
//  23. Magic
//  24. Comment
//  25. TimeStamp
type TradeRecord struct {
	ID              int64
	TradeAccountID  *int64
	Ticket          *int64
	SymbolName      *string
	Digits          *int64
	Type            *int64
	Quantity        decimal.NullDecimal
	State           *int64
	OpenTime        *time.Time
	OpenPrice       decimal.NullDecimal
	OpenRate        decimal.NullDecimal
	CloseTime       *time.Time
	ClosePrice      decimal.NullDecimal
	CloseRate       decimal.NullDecimal
	StopLoss        decimal.NullDecimal
	TakeProfit      decimal.NullDecimal
	Expiration      *time.Time
	Commission      decimal.NullDecimal
	CommissionAgent *string
	Swap            decimal.NullDecimal
	Profit          decimal.NullDecimal
	Tax             decimal.NullDecimal
	Magic           *int64
	Comment         *string
	TimeStamp       *time.Time
}

// IsClosed reports whether the trade has a close time at or after its open time.
// A missing open or close time means the trade is not closed.
func (t TradeRecord) IsClosed() bool {
	if t.OpenTime == nil || t.CloseTime == nil {
		return false
	}
	return !t.CloseTime.Before(*t.OpenTime)
}
