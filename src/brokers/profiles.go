package brokers

import (
	"github.com/shopspring/decimal"

	"github.com/username/tradejournal/backend/src/models"
	"github.com/username/tradejournal/backend/src/parsers/tabular"
	"github.com/username/tradejournal/backend/src/utils"
)

const (
	KeyMT4         = "mt4"
	KeyMT5         = "mt5"
	KeyGeneric     = "generic"
	KeyCTrader     = "ctrader"
	KeyTradeLocker = "tradelocker"
)

var allFileTypes = []tabular.FileType{tabular.FileTypeCSV, tabular.FileTypeExcel, tabular.FileTypeHTML}

// SumColumns derives a numeric field as the exact sum of several columns.
// MetaTrader 5 reports brokerage cost split into "Commission" and "Fee".
// The field is absent when none of the columns exist.
func SumColumns(names ...string) DeriveFunc {
	return func(row models.RawRow) (any, error) {
		sum := decimal.Zero
		found := false
		for _, n := range names {
			if v, ok := row.Get(n); ok {
				found = true
				sum = sum.Add(utils.CoerceDecimal(v))
			}
		}
		if !found {
			return nil, nil
		}
		return sum, nil
	}
}

func mt4Profile() BrokerProfile {
	return BrokerProfile{
		Key:       KeyMT4,
		Name:      "MetaTrader 4",
		FileTypes: allFileTypes,
		Aliases: AliasTable{
			models.FieldTicket:     Columns("Ticket", "Order", "Ticket #"),
			models.FieldSymbol:     Columns("Symbol", "Item", "Instrument"),
			models.FieldType:       Columns("Type", "Action"),
			models.FieldOpenTime:   Columns("Open Time", "Open Date"),
			models.FieldCloseTime:  Columns("Close Time", "Close Date"),
			models.FieldVolume:     Columns("Volume", "Size", "Lots"),
			models.FieldOpenPrice:  Columns("Open Price", "Price"),
			models.FieldClosePrice: Columns("Close Price", "Price 2"),
			models.FieldProfit:     Columns("Profit", "P/L"),
			models.FieldCommission: Columns("Commission", "Commissions"),
			models.FieldSwap:       Columns("Swap", "Swaps"),
			models.FieldComment:    Columns("Comment", "Comments"),
		},
		Strategy:       StrategySingleRow,
		Parser:         ParserMT4,
		ActionKeywords: []string{"buy", "sell"},
		RequireTicket:  true,
		Instructions: []string{
			"Open MetaTrader 4 and go to the Account History tab of the Terminal window.",
			"Right-click the history, choose the period (All History or a custom range).",
			"Right-click again and select \"Save as Detailed Report\".",
			"Upload the saved .htm file, or an export converted to .csv/.xlsx.",
		},
	}
}

func mt5Profile() BrokerProfile {
	return BrokerProfile{
		Key:       KeyMT5,
		Name:      "MetaTrader 5",
		FileTypes: allFileTypes,
		Aliases: AliasTable{
			models.FieldTicket:     Columns("Position", "Position ID", "Ticket", "Deal"),
			models.FieldSymbol:     Columns("Symbol"),
			models.FieldType:       Derived(JoinColumns("Type", "Direction")),
			models.FieldOpenTime:   Columns("Open Time", "Time"),
			models.FieldCloseTime:  Columns("Close Time", "Time 2", "Time"),
			models.FieldVolume:     Columns("Volume", "Lots"),
			models.FieldOpenPrice:  Columns("Open Price", "Price"),
			models.FieldClosePrice: Columns("Close Price", "Price 2", "Price"),
			models.FieldProfit:     Columns("Profit"),
			models.FieldCommission: Derived(SumColumns("Commission", "Fee")),
			models.FieldSwap:       Columns("Swap"),
			models.FieldComment:    Columns("Comment"),
		},
		Strategy:       StrategyTicketGrouped,
		Parser:         ParserMT5,
		ActionKeywords: []string{"buy", "sell", "in", "out"},
		RequireTicket:  true,
		Instructions: []string{
			"Open MetaTrader 5 and go to the History tab of the Toolbox window.",
			"Right-click, select Deals and choose the period to export.",
			"Right-click again and select Report, then Open XML (Excel) or HTML.",
			"Upload the saved .xlsx or .html report.",
		},
	}
}

func genericProfile() BrokerProfile {
	return BrokerProfile{
		Key:       KeyGeneric,
		Name:      "Other broker (generic CSV/Excel/HTML)",
		FileTypes: allFileTypes,
		Aliases: AliasTable{
			models.FieldTicket:     Columns("Ticket", "Order", "Order ID", "Position", "Position ID", "Trade ID", "Deal", "ID"),
			models.FieldSymbol:     Columns("Symbol", "Instrument", "Market", "Asset", "Pair", "Item"),
			models.FieldType:       Columns("Type", "Side", "Direction", "Action", "Buy/Sell"),
			models.FieldOpenTime:   Columns("Open Time", "Open Date", "Entry Time", "Opened", "Date", "Time"),
			models.FieldCloseTime:  Columns("Close Time", "Close Date", "Exit Time", "Closed"),
			models.FieldVolume:     Columns("Volume", "Lots", "Size", "Quantity", "Qty"),
			models.FieldOpenPrice:  Columns("Open Price", "Entry Price", "Entry", "Price"),
			models.FieldClosePrice: Columns("Close Price", "Exit Price", "Exit"),
			models.FieldProfit:     Columns("Profit", "P/L", "PnL", "Net Profit", "Realized P&L", "Gross P/L"),
			models.FieldCommission: Columns("Commission", "Commissions", "Fee", "Fees"),
			models.FieldSwap:       Columns("Swap", "Swaps", "Rollover", "Financing"),
			models.FieldComment:    Columns("Comment", "Comments", "Notes", "Note"),
		},
		Strategy:       StrategySingleRow,
		Parser:         ParserGeneric,
		ActionKeywords: []string{"buy", "sell", "long", "short"},
		BuyKeywords:    []string{"buy", "long"},
		Instructions: []string{
			"Export your closed trades from the broker platform as CSV, Excel or HTML.",
			"Make sure the first row contains column headers such as Symbol, Type, Open Time, Close Time, Volume and Profit.",
			"Pick the date format your broker uses before uploading.",
		},
	}
}

func cTraderProfile() BrokerProfile {
	return BrokerProfile{
		Key:       KeyCTrader,
		Name:      "cTrader",
		FileTypes: []tabular.FileType{tabular.FileTypeCSV, tabular.FileTypeExcel},
		Aliases: AliasTable{
			models.FieldTicket:     Columns("Position ID", "ID", "Order ID"),
			models.FieldSymbol:     Columns("Symbol"),
			models.FieldType:       Columns("Opening Direction", "Direction"),
			models.FieldOpenTime:   Columns("Opening Time", "Opening Time (UTC)"),
			models.FieldCloseTime:  Columns("Closing Time", "Closing Time (UTC)"),
			models.FieldVolume:     Columns("Closing Quantity", "Quantity", "Volume", "Lots"),
			models.FieldOpenPrice:  Columns("Entry Price"),
			models.FieldClosePrice: Columns("Closing Price"),
			models.FieldProfit:     Columns("Gross", "Gross $", "Gross USD", "Net", "Net $", "Net USD"),
			models.FieldCommission: Columns("Commissions", "Commission"),
			models.FieldSwap:       Columns("Swap", "Swaps"),
			models.FieldComment:    Columns("Comment", "Label"),
		},
		Strategy:       StrategySingleRow,
		Parser:         ParserGeneric,
		ActionKeywords: []string{"buy", "sell"},
		Instructions: []string{
			"In cTrader open the History tab at the bottom of the trading screen.",
			"Select the period, then click the export icon and choose CSV or Excel.",
		},
	}
}

func tradeLockerProfile() BrokerProfile {
	return BrokerProfile{
		Key:       KeyTradeLocker,
		Name:      "TradeLocker",
		FileTypes: []tabular.FileType{tabular.FileTypeCSV},
		Aliases: AliasTable{
			models.FieldTicket:     Columns("Position ID", "Order ID"),
			models.FieldSymbol:     Columns("Instrument", "Symbol"),
			models.FieldType:       Columns("Side"),
			models.FieldOpenTime:   Columns("Open Time", "Open Date"),
			models.FieldCloseTime:  Columns("Close Time", "Close Date"),
			models.FieldVolume:     Columns("Qty", "Lots", "Amount"),
			models.FieldOpenPrice:  Columns("Open Price", "Avg. Open Price"),
			models.FieldClosePrice: Columns("Close Price", "Avg. Close Price"),
			models.FieldProfit:     Columns("Profit", "Gross P/L"),
			models.FieldCommission: Columns("Commission", "Fee"),
			models.FieldSwap:       Columns("Swap"),
			models.FieldComment:    Columns("Comment"),
		},
		Strategy:       StrategySingleRow,
		Parser:         ParserGeneric,
		ActionKeywords: []string{"buy", "sell"},
		Instructions: []string{
			"In TradeLocker open Account, then Positions History.",
			"Choose the date range and click Export to download a CSV.",
		},
	}
}

// DefaultProfiles returns the built-in broker catalog.
func DefaultProfiles() []BrokerProfile {
	return []BrokerProfile{
		mt4Profile(),
		mt5Profile(),
		cTraderProfile(),
		tradeLockerProfile(),
		genericProfile(),
	}
}
