package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_Normalize(t *testing.T) {
	v := NewValidator("")

	tests := []struct {
		name      string
		phone     string
		wantE164  string
		wantError bool
	}{
		{name: "Algerian mobile national format", phone: "0555 12 34 56", wantE164: "+213555123456"},
		{name: "Algerian mobile with dashes", phone: "066-123-4567", wantE164: "+213661234567"},
		{name: "International prefix overrides region", phone: "+1 (202) 456-1111", wantE164: "+12024561111"},
		{name: "Too short", phone: "0555", wantError: true},
		{name: "Letters", phone: "call me", wantError: true},
		{name: "Empty", phone: "   ", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Normalize(tt.phone)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantE164, got)
		})
	}
}

func TestValidator_Validate(t *testing.T) {
	v := NewValidator("dz")
	assert.Equal(t, "DZ", v.Region())

	result, err := v.Validate("0555123456")
	require.NoError(t, err)

	assert.True(t, result.IsValid)
	assert.Equal(t, "DZ", result.CountryCode)
	assert.Equal(t, TypeMobile, result.PhoneType)
}
