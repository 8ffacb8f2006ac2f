package db

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	d, err := ParseMoney("120.50")
	require.NoError(t, err)
	assert.Equal(t, "120.50", d.StringFixed(2))

	_, err = ParseMoney("12,50")
	assert.Error(t, err)
}

func TestParseNullMoney(t *testing.T) {
	got, err := ParseNullMoney(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	s := "0.10"
	got, err = ParseNullMoney(&s)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, decimal.RequireFromString("0.1").Equal(*got))
}

func TestMoneyArg(t *testing.T) {
	assert.Nil(t, MoneyArg(nil))
	d := decimal.RequireFromString("15.00")
	assert.Equal(t, "15", *MoneyArg(&d))
}
