package schema

import (
	"strings"

	"github.com/guttosm/tradeexport/internal/domain/errs"
)

// Canonical column names of the TradeHistories table, in export order.
const (
	ColID              = "ID"
	ColTradeAccountID  = "TradeAccountID"
	ColTicket          = "Ticket"
	ColSymbolName      = "SymbolName"
	ColDigits          = "Digits"
	ColType            = "Type"
	ColQuantity        = "Quantity"
	ColState           = "State"
	ColOpenTime        = "OpenTime"
	ColOpenPrice       = "OpenPrice"
	ColOpenRate        = "OpenRate"
	ColCloseTime       = "CloseTime"
	ColClosePrice      = "ClosePrice"
	ColCloseRate       = "CloseRate"
	ColStopLoss        = "StopLoss"
	ColTakeProfit      = "TakeProfit"
	ColExpiration      = "Expiration"
	ColCommission      = "Commission"
	ColCommissionAgent = "CommissionAgent"
	ColSwap            = "Swap"
	ColProfit          = "Profit"
	ColTax             = "Tax"
	ColMagic           = "Magic"
	ColComment         = "Comment"
	ColTimeStamp       = "TimeStamp"

	// ColIsClosed is derived, never read from the database.
	ColIsClosed = "IsClosed"
)

// RequiredColumns is the ordered list every query result must contain.
var RequiredColumns = []string{
	ColID, ColTradeAccountID, ColTicket, ColSymbolName, ColDigits, ColType,
	ColQuantity, ColState, ColOpenTime, ColOpenPrice, ColOpenRate, ColCloseTime,
	ColClosePrice, ColCloseRate, ColStopLoss, ColTakeProfit, ColExpiration,
	ColCommission, ColCommissionAgent, ColSwap, ColProfit, ColTax, ColMagic,
	ColComment, ColTimeStamp,
}

// ExportColumns is RequiredColumns followed by the derived IsClosed flag.
var ExportColumns = append(append([]string(nil), RequiredColumns...), ColIsClosed)

// IndexMap maps each canonical column name to its position in a result row.
type IndexMap map[string]int

// Validate matches columns against RequiredColumns, ignoring case and order.
// Unknown columns are ignored; for duplicated names the first position wins.
// All missing names are reported together in a *errs.MissingColumnsError.
func Validate(columns []string) (IndexMap, error) {
	positions := make(map[string]int, len(columns))
	for i, c := range columns {
		key := strings.ToLower(strings.TrimSpace(c))
		if _, seen := positions[key]; !seen {
			positions[key] = i
		}
	}

	idx := make(IndexMap, len(RequiredColumns))
	var missing []string
	for _, name := range RequiredColumns {
		pos, ok := positions[strings.ToLower(name)]
		if !ok {
			missing = append(missing, name)
			continue
		}
		idx[name] = pos
	}

	if len(missing) > 0 {
		return nil, &errs.MissingColumnsError{Missing: missing}
	}
	return idx, nil
}
