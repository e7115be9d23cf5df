// backend/src/parsers/factory.go
package parsers

import (
	"fmt"

	"github.com/username/tradejournal/backend/src/brokers"
	"github.com/username/tradejournal/backend/src/parsers/generic"
	"github.com/username/tradejournal/backend/src/parsers/mt4"
	"github.com/username/tradejournal/backend/src/parsers/mt5"
)

func GetParser(profile brokers.BrokerProfile) (Parser, error) {
	switch profile.Parser {
	case brokers.ParserMT4:
		return mt4.NewParser(), nil
	case brokers.ParserMT5:
		return mt5.NewParser(), nil
	case brokers.ParserGeneric, "":
		return generic.NewParser(), nil
	default:
		return nil, fmt.Errorf("no parser available for broker %s: %q", profile.Key, profile.Parser)
	}
}
