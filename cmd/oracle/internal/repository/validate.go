package repository

import (
	"math/big"

	"github.com/Zera-Labs/simple-oracle/pkg/models"
)

// maxMantissa is 2^128 - 1; mantissas must fit in 128 bits.
var maxMantissa = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// validatePriceRecord checks the caller-supplied fields of a record.
// The mantissa stays a string end to end; it is parsed here only to prove
// it is a non-negative integer in range, never converted to a float.
func validatePriceRecord(rec *models.PriceRecord) error {
	if rec.Token == "" {
		return models.Validationf("token", "must not be empty")
	}
	if err := validateMantissa(rec.Mantissa); err != nil {
		return err
	}
	if rec.Decimals != nil && *rec.Decimals < 0 {
		return models.Validationf("decimals", "must not be negative")
	}
	return nil
}

func validateMantissa(mantissa string) error {
	if mantissa == "" {
		return models.Validationf("usd_mantissa", "must not be empty")
	}
	for _, c := range mantissa {
		if c < '0' || c > '9' {
			return models.Validationf("usd_mantissa", "must contain only decimal digits")
		}
	}
	n, ok := new(big.Int).SetString(mantissa, 10)
	if !ok {
		return models.Validationf("usd_mantissa", "is not a valid integer")
	}
	if n.Cmp(maxMantissa) > 0 {
		return models.Validationf("usd_mantissa", "exceeds 128 bits")
	}
	return nil
}
