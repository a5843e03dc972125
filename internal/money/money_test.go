package money

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/potfund-ledger/internal/domain"
)

func TestAdd(t *testing.T) {
	tests := []struct {
		name    string
		a, b    Amount
		want    Amount
		wantErr error
	}{
		{name: "simple", a: 500, b: 250, want: 750},
		{name: "zero", a: 0, b: 0, want: 0},
		{name: "negative delta", a: 500, b: -200, want: 300},
		{name: "overflow", a: math.MaxInt64, b: 1, wantErr: domain.ErrInvalidAmount},
		{name: "underflow", a: math.MinInt64, b: -1, wantErr: domain.ErrInvalidAmount},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Add(tc.a, tc.b)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSubtract(t *testing.T) {
	tests := []struct {
		name    string
		a, b    Amount
		want    Amount
		wantErr error
	}{
		{name: "leaves remainder", a: 1000, b: 400, want: 600},
		{name: "exactly drains balance", a: 1500, b: 1500, want: 0},
		{name: "would go negative", a: 1499, b: 1500, wantErr: domain.ErrInsufficientFunds},
		{name: "empty balance", a: 0, b: 1, wantErr: domain.ErrInsufficientFunds},
		{name: "negative operand", a: 100, b: -5, wantErr: domain.ErrInvalidAmount},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Subtract(tc.a, tc.b)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMultiply(t *testing.T) {
	got, err := Multiply(500, 3)
	require.NoError(t, err)
	assert.Equal(t, Amount(1500), got)

	_, err = Multiply(math.MaxInt64/2, 3)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = Multiply(500, -1)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestSum(t *testing.T) {
	got, err := Sum(500, -200, 1200)
	require.NoError(t, err)
	assert.Equal(t, Amount(1500), got)
}

func TestParseMajor(t *testing.T) {
	f := NewFormat(2)

	tests := []struct {
		name    string
		in      string
		want    Amount
		wantErr bool
	}{
		{name: "whole units", in: "12", want: 1200},
		{name: "two decimals", in: "12.50", want: 1250},
		{name: "one decimal", in: "0.5", want: 50},
		{name: "smallest unit", in: "0.01", want: 1},
		{name: "too precise", in: "1.005", wantErr: true},
		{name: "not a number", in: "twelve", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := f.ParseMajor(tc.in)
			if tc.wantErr {
				require.ErrorIs(t, err, domain.ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMajor(t *testing.T) {
	f := NewFormat(2)
	assert.Equal(t, "12.50", f.Major(1250))
	assert.Equal(t, "0.01", f.Major(1))
	assert.Equal(t, "-5.00", f.Major(-500))

	zeroDigit := NewFormat(0)
	assert.Equal(t, "1250", zeroDigit.Major(1250))
}
