package valueobject

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIBAN(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    IBAN
		wantErr bool
	}{
		{name: "dutch iban", input: "NL91ABNA0417164300", want: "NL91ABNA0417164300"},
		{name: "spaces and lower case", input: "nl91 abna 0417 1643 00", want: "NL91ABNA0417164300"},
		{name: "german iban", input: "DE89 3704 0044 0532 0130 00", want: "DE89370400440532013000"},
		{name: "belgian iban", input: "BE68539007547034", want: "BE68539007547034"},
		{name: "wrong check digits", input: "NL92ABNA0417164300", wantErr: true},
		{name: "wrong country length", input: "NL91ABNA04171643001", wantErr: true},
		{name: "too short", input: "NL91", wantErr: true},
		{name: "invalid character", input: "NL91ABNA04171643-0", wantErr: true},
		{name: "unknown country", input: "XX91ABNA0417164300", wantErr: true},
		{name: "letters as check digits", input: "NLAAABNA0417164300", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewIBAN(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewIBAN_Messages(t *testing.T) {
	_, err := NewIBAN("XX91ABNA0417164300")
	assert.ErrorContains(t, err, "country code")

	_, err = NewIBAN("NL91ABNA04171643.0")
	assert.ErrorContains(t, err, "invalid characters")

	_, err = NewIBAN("NL92ABNA0417164300")
	assert.ErrorContains(t, err, "checksum")
}

func TestIBAN_Country(t *testing.T) {
	iban, err := NewIBAN("NL91ABNA0417164300")
	require.NoError(t, err)
	assert.Equal(t, "NL", iban.Country())
	assert.Equal(t, "", IBAN("").Country())
}

func TestNewBIC(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    BIC
		wantErr bool
	}{
		{name: "eight characters", input: "ABNANL2A", want: "ABNANL2A"},
		{name: "eleven characters", input: "rabonl2uxxx", want: "RABONL2UXXX"},
		{name: "wrong length", input: "ABNANL2", wantErr: true},
		{name: "digit in bank code", input: "AB1ANL2A", wantErr: true},
		{name: "symbol in location", input: "ABNANL2-", wantErr: true},
		{name: "digit in country code", input: "ABNAN12A", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewBIC(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBIC_SameInstitution(t *testing.T) {
	assert.True(t, BIC("RABONL2U").SameInstitution("RABONL2UXXX"))
	assert.True(t, BIC("rabonl2u").SameInstitution("RABONL2U"))
	assert.False(t, BIC("RABONL2U").SameInstitution("INGBNL2A"))
	assert.False(t, BIC("RABONL2U").SameInstitution("RABONL21"), "other location of the same bank")
}

func TestNewCurrency(t *testing.T) {
	c, err := NewCurrency(" eur ")
	require.NoError(t, err)
	assert.Equal(t, EUR, c)

	_, err = NewCurrency("EU")
	assert.Error(t, err)
	_, err = NewCurrency("E1R")
	assert.Error(t, err)
}
