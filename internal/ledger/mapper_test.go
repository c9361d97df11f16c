package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToStorePayload(t *testing.T) {
	row := Row{
		UniqueID:    "12345678",
		OccurredAt:  "2024-01-02 10:00:00",
		Amount:      "100.50",
		Memo:        "memoX",
		Kind:        "支出",
		Source:      "alipay",
		BatchNumber: "240101_000000",
	}

	payload := ToStorePayload(row)

	wantDate, err := time.ParseInLocation(DateLayout, "2024-01-02 10:00:00", time.Local)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"唯一字段":  "12345678",
		"日期":    wantDate.UnixMilli(),
		"金额":    100.5,
		"备注":    "memoX",
		"收支":    "支出",
		"导入批次号": "240101_000000",
	}, payload.Fields)

	// The provider source tag has no remote field and must not leak through.
	_, ok := payload.Fields["source"]
	assert.False(t, ok)
}

func TestToStorePayload_DateRoundTrip(t *testing.T) {
	row := Row{OccurredAt: "2023-06-15 08:30:45"}
	payload := ToStorePayload(row)

	ms, ok := payload.Fields[FieldDate].(int64)
	require.True(t, ok, "valid date must coerce to epoch milliseconds")

	back := time.UnixMilli(ms).In(time.Local)
	assert.Equal(t, "2023-06-15 08:30:45", back.Format(DateLayout))
}

func TestToStorePayload_LenientFallbacks(t *testing.T) {
	tests := []struct {
		name       string
		row        Row
		wantDate   any
		wantAmount any
	}{
		{
			name:       "unparseable date kept as string",
			row:        Row{OccurredAt: "02/01/2024", Amount: "10.00"},
			wantDate:   "02/01/2024",
			wantAmount: 10.0,
		},
		{
			name:       "unparseable amount kept as string",
			row:        Row{OccurredAt: "2024-01-02 10:00:00", Amount: "1,000.50"},
			wantDate:   mustEpochMS(t, "2024-01-02 10:00:00"),
			wantAmount: "1,000.50",
		},
		{
			name:       "both empty kept as strings",
			row:        Row{},
			wantDate:   "",
			wantAmount: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := ToStorePayload(tt.row)
			assert.Equal(t, tt.wantDate, payload.Fields[FieldDate])
			assert.Equal(t, tt.wantAmount, payload.Fields[FieldAmount])
		})
	}
}

func TestExtractAndMap_EndToEnd(t *testing.T) {
	line := "12345678,a,b,2024-01-02 10:00:00,e,f,g,h,memoX,100.50,支出"
	rows, _ := Extract([]byte(line), "240101_000000")
	require.Len(t, rows, 1)

	payload := ToStorePayload(rows[0])
	assert.Equal(t, "12345678", payload.Fields[FieldUniqueID])
	assert.Equal(t, mustEpochMS(t, "2024-01-02 10:00:00"), payload.Fields[FieldDate])
	assert.Equal(t, 100.5, payload.Fields[FieldAmount])
	assert.Equal(t, "memoX", payload.Fields[FieldMemo])
	assert.Equal(t, "支出", payload.Fields[FieldKind])
	assert.Equal(t, "240101_000000", payload.Fields[FieldBatchNumber])
}

func mustEpochMS(t *testing.T, value string) int64 {
	t.Helper()
	parsed, err := time.ParseInLocation(DateLayout, value, time.Local)
	require.NoError(t, err)
	return parsed.UnixMilli()
}
