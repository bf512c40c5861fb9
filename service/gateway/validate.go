package gateway

import (
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/go-playground/validator/v10"
)

var (
	validatorOnce sync.Once
	validate      *validator.Validate
)

// solanaPubkeyValidator validates base58 Solana public keys.
func solanaPubkeyValidator(fl validator.FieldLevel) bool {
	_, err := solana.PublicKeyFromBase58(fl.Field().String())
	return err == nil
}

// NewValidator creates a validator with the custom rules used by request
// structs: solana_pubkey.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("solana_pubkey", solanaPubkeyValidator)
	return v
}

// Validate checks s against its `validate` tags with a shared validator. A
// failure is returned as an INVALID_REQUEST error.
func Validate(s any) error {
	validatorOnce.Do(func() {
		validate = NewValidator()
	})
	if err := validate.Struct(s); err != nil {
		return InvalidRequest(err)
	}
	return nil
}
