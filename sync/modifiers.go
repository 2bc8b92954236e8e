package sync

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/biter777/countries"
	"github.com/tidwall/gjson"
	"github.com/ttacon/libphonenumber"
)

func init() {

	gjson.AddModifier("countryName", func(json, arg string) string {
		s := gjson.Parse(json).String()
		c := countries.ByName(s) // will match on Alpha-2 / Alpha-3 / Name
		if countries.Unknown == c {
			return ""
		}
		return fmt.Sprintf(`"%s"`, c.String()) // returns Country Name
	})

	// phone normalizes a ledger phone column to E.164-ish "+<cc><national>".
	// arg is the default country calling code for numbers stored without one.
	gjson.AddModifier("phone", func(json, arg string) string {
		number := gjson.Parse(json).String()
		number = strings.Trim(number, `"`)
		if number == "" {
			return ""
		}
		// numbers already carrying the default prefix pass through untouched
		if strings.HasPrefix(number, fmt.Sprintf("+%s", arg)) {
			return fmt.Sprintf(`"%s"`, number)
		}
		i, err := strconv.Atoi(arg)
		if err == nil {
			var num *libphonenumber.PhoneNumber
			num, err = libphonenumber.Parse(number, libphonenumber.GetRegionCodeForCountryCode(i))
			if err == nil {
				return fmt.Sprintf(`"+%d%s"`, num.GetCountryCode(), libphonenumber.GetNationalSignificantNumber(num))
			}
		}
		return ""
	})

}
