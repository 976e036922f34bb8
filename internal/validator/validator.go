package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pauljones0/offnbuy-bot/internal/models"
	"github.com/pauljones0/offnbuy-bot/internal/util"
)

// ErrBlocked marks a listing that is well-formed but filtered out by policy.
var ErrBlocked = errors.New("listing is blocked")

// Validator is a wrapper around the validator library plus the store and
// title blocklists applied to harvested listings.
type Validator struct {
	validate      *validator.Validate
	blockedStores []string
	blockedTerms  []string
}

// New creates a new Validator instance. It panics if a custom tag cannot be
// registered, which only happens on a programming error.
func New(blockedStores, blockedTitleTerms []string) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("http_url", func(fl validator.FieldLevel) bool {
		return util.IsHTTPURL(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("validator: register http_url: %v", err))
	}
	return &Validator{
		validate:      v,
		blockedStores: blockedStores,
		blockedTerms:  blockedTitleTerms,
	}
}

// ValidateStruct validates a struct based on its tags.
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// CheckListing applies the blocklists and then validates l. Blocked listings
// return an error wrapping ErrBlocked even when they are also malformed.
func (v *Validator) CheckListing(l models.Listing) error {
	for _, s := range v.blockedStores {
		if util.IsStore(l.Store, s) {
			return fmt.Errorf("%w: store %q", ErrBlocked, l.Store)
		}
	}
	for _, term := range v.blockedTerms {
		if strings.Contains(l.Title, term) {
			return fmt.Errorf("%w: title contains %q", ErrBlocked, term)
		}
	}
	return v.ValidateStruct(l)
}
