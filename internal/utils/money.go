package utils

import (
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidPrice is returned for prices that are not numbers or are negative.
var ErrInvalidPrice = errors.New("invalid price")

var hundred = decimal.NewFromInt(100)

// ParsePriceCents reads an admin-entered price.  A value containing "." is
// taken as major units ("12.99" -> 1299, rounded half away from zero);
// anything else must be an integer count of minor units.
func ParsePriceCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidPrice
	}
	var cents int64
	if strings.Contains(s, ".") {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return 0, ErrInvalidPrice
		}
		cents = d.Mul(hundred).Round(0).IntPart()
	} else {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, ErrInvalidPrice
		}
		cents = n
	}
	if cents < 0 {
		return 0, ErrInvalidPrice
	}
	return cents, nil
}

// VATPortion returns the VAT contained in a VAT-inclusive total, rounded to
// the nearest minor unit.
func VATPortion(totalCents int64, rate decimal.Decimal) int64 {
	if rate.Sign() <= 0 || totalCents == 0 {
		return 0
	}
	total := decimal.NewFromInt(totalCents)
	net := total.Div(decimal.NewFromInt(1).Add(rate))
	return total.Sub(net).Round(0).IntPart()
}
