package format

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Money formats an amount in minor units, e.g. Money(490000, "USD") is
// "$4,900.00". Unknown currencies fall back to the ISO code.
func Money(cents int64, code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		code = "USD"
	}
	neg := cents < 0
	if neg {
		cents = -cents
	}
	amount := printer.Sprintf("%d", cents/100) + fmt.Sprintf(".%02d", cents%100)

	sym := code + " "
	if unit, err := currency.ParseISO(code); err == nil {
		if s := fmt.Sprint(currency.NarrowSymbol(unit)); s != code {
			sym = s
		}
	}
	if neg {
		return "-" + sym + amount
	}
	return sym + amount
}

// ParseMoney reads a field value stored in minor units.
func ParseMoney(v string) (int64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	return strconv.ParseInt(v, 10, 64)
}
