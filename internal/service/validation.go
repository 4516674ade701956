package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"asset-service/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// decimals validate as float64 so gte/gt apply to them
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	enums := map[string]func(string) bool{
		"category":       models.IsCategory,
		"asset_status":   models.IsAssetStatus,
		"payment_method": models.IsPaymentMethod,
		"invoice_type": func(s string) bool {
			return s == models.InvoiceTypeSale || s == models.InvoiceTypePurchase
		},
	}
	for tag, ok := range enums {
		ok := ok
		if err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return ok(fl.Field().String())
		}); err != nil {
			panic(fmt.Sprintf("register validation %s: %v", tag, err))
		}
	}
	return v
}

// checkScale rejects amounts with more decimal places than are stored
func checkScale(field string, d decimal.Decimal) error {
	if !d.Equal(d.Round(models.MoneyScale)) {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must have at most %d decimal places", models.MoneyScale),
		}
	}
	return nil
}

// validateStruct runs the struct tags and reports the first failure
func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	fe := verrs[0]
	return &ValidationError{Field: fieldPath(fe), Message: describe(fe)}
}

// fieldPath drops the top-level struct name from the namespace
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "category":
		return "must be one of " + strings.Join(models.Categories, ", ")
	case "asset_status":
		return "must be one of " + strings.Join(models.AssetStatuses, ", ")
	case "payment_method":
		return "must be one of " + strings.Join(models.PaymentMethods, ", ")
	case "invoice_type":
		return "must be sale or purchase"
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}

var dateLayouts = []string{"2006-01-02", time.RFC3339}

// parseDate accepts a calendar date or an RFC 3339 timestamp
func parseDate(field, s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, &ValidationError{Field: field, Message: "must be a date (YYYY-MM-DD)"}
}
