package service

import (
	"testing"

	"asset-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidator_RegistersEnumTags(t *testing.T) {
	require.NotPanics(t, func() { newValidator() })

	type categorized struct {
		Category string `json:"category" validate:"category"`
	}
	assert.NoError(t, validateStruct(&categorized{Category: models.CategoryOthers}))

	var ve *ValidationError
	require.ErrorAs(t, validateStruct(&categorized{Category: "Toys"}), &ve)
	assert.Equal(t, "category", ve.Field)
}

func TestCheckScale(t *testing.T) {
	tests := []struct {
		amount string
		ok     bool
	}{
		{"0", true},
		{"12.5", true},
		{"0.9999", true},
		{"1.50000", true},
		{"0.00001", false},
		{"-3.14159", false},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			err := checkScale("unitPrice", decimal.RequireFromString(tt.amount))
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, "unitPrice", ve.Field)
		})
	}
}
