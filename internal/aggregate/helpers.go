package aggregate

import "github.com/shopspring/decimal"

const ratioScale = 18

// formatTokenAmount renders base units in whole tokens.
func formatTokenAmount(value decimal.Decimal, decimals uint8) string {
	return value.Shift(-int32(decimals)).String()
}

func computeFeeRates(fee0, fee1, volume0, volume1 decimal.Decimal) (*string, *string) {
	var feeRate0 *string
	var feeRate1 *string

	if rate := computeRate(fee0, volume0); rate != "" {
		feeRate0 = &rate
	}
	if rate := computeRate(fee1, volume1); rate != "" {
		feeRate1 = &rate
	}
	return feeRate0, feeRate1
}

// computeRate is fee over volume, both in base units.
func computeRate(fee, volume decimal.Decimal) string {
	if fee.IsZero() || volume.IsZero() {
		return ""
	}
	return fee.DivRound(volume, ratioScale).String()
}
