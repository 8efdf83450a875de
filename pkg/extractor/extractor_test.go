package extractor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/payrag/internal/types"
)

func TestSupported(t *testing.T) {
	assert.True(t, Supported("report.pdf"))
	assert.True(t, Supported("API_SPEC.JSON"))
	assert.True(t, Supported("transactions.csv"))
	assert.False(t, Supported("notes.txt"))
	assert.False(t, Supported("page.html"))
	assert.False(t, Supported("no_extension"))
}

func TestExtractJSONObject(t *testing.T) {
	e := New(nil)

	data := []byte(`{
		"bank": "HDFC Bank",
		"status": "active",
		"limits": {"daily": 100000, "per_txn": 25000},
		"channels": ["upi", "imps"]
	}`)

	text, err := e.Extract(context.Background(), data, "config.json")
	require.NoError(t, err)

	assert.Contains(t, text, "bank: HDFC Bank")
	assert.Contains(t, text, "limits.daily: 100000")
	assert.Contains(t, text, "channels: upi, imps")
}

func TestExtractJSONAPISpec(t *testing.T) {
	e := New(nil)

	data := []byte(`{
		"openapi": "3.0.0",
		"info": {"title": "UPI Gateway", "version": "2.1"},
		"paths": {
			"/api/v1/payments": {
				"post": {"summary": "Initiate a payment"}
			}
		}
	}`)

	text, err := e.Extract(context.Background(), data, "upi_gateway.json")
	require.NoError(t, err)

	assert.Contains(t, text, "API: UPI Gateway")
	assert.Contains(t, text, "POST /api/v1/payments")
	assert.Contains(t, text, "Summary: Initiate a payment")
}

func TestExtractJSONInvalid(t *testing.T) {
	e := New(nil)

	_, err := e.Extract(context.Background(), []byte("{not json"), "bad.json")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrExtractionFailed)
}

func TestExtractCSV(t *testing.T) {
	e := New(nil)

	data := []byte("txn_id,amount,status\nTXN00000001,250.00,SUCCESS\nTXN00000002,,FAILED\n")

	text, err := e.Extract(context.Background(), data, "transactions.csv")
	require.NoError(t, err)

	assert.Contains(t, text, "Total Rows: 2")
	assert.Contains(t, text, "Columns: txn_id, amount, status")
	assert.Contains(t, text, "amount: 1 unique values, 1 empty")
	assert.Contains(t, text, "Row 1: txn_id: TXN00000001 | amount: 250.00 | status: SUCCESS")
}

func TestExtractCSVEmpty(t *testing.T) {
	e := New(nil)

	_, err := e.Extract(context.Background(), []byte(""), "empty.csv")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrExtractionFailed)
}

func TestExtractUnsupportedExtension(t *testing.T) {
	e := New(nil)

	_, err := e.Extract(context.Background(), []byte("hello"), "notes.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrUnsupportedFormat)
}

func TestExtractCancelledContext(t *testing.T) {
	e := New(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Extract(ctx, []byte(`{"a": 1}`), "a.json")
	assert.ErrorIs(t, err, context.Canceled)
}
