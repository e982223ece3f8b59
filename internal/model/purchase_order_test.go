package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLineTotal(t *testing.T) {
	assert.Equal(t, "50.00", LineTotal(20, decimal.RequireFromString("2.5")).StringFixed(2))
	assert.True(t, LineTotal(0, decimal.RequireFromString("9.99")).IsZero())
}

func TestItemIsLowStock(t *testing.T) {
	assert.True(t, (&Item{Quantity: 5, ReorderLevel: 5}).IsLowStock())
	assert.False(t, (&Item{Quantity: 6, ReorderLevel: 5}).IsLowStock())
}
