package ledger

import (
	"strconv"
	"time"

	"github.com/zhanglc/feishu-bill-importer/internal/feishu"
)

// Bitable field names in the billing table. The mapper renames extracted row
// keys into this vocabulary; anything outside it (the source tag) is dropped.
const (
	FieldUniqueID    = "唯一字段"
	FieldDate        = "日期"
	FieldAmount      = "金额"
	FieldMemo        = "备注"
	FieldKind        = "收支"
	FieldBatchNumber = "导入批次号"
)

// DateLayout is the only date-time format Alipay exports use.
const DateLayout = "2006-01-02 15:04:05"

// ToStorePayload translates an extracted row into the Bitable record shape.
// The date becomes an epoch-millisecond integer and the amount a float; on
// either parse failure the original string is kept instead, so a malformed
// value surfaces in the sheet rather than aborting the import.
func ToStorePayload(row Row) feishu.RecordFields {
	return feishu.RecordFields{
		Fields: map[string]any{
			FieldUniqueID:    row.UniqueID,
			FieldDate:        coerceDate(row.OccurredAt),
			FieldAmount:      coerceAmount(row.Amount),
			FieldMemo:        row.Memo,
			FieldKind:        row.Kind,
			FieldBatchNumber: row.BatchNumber,
		},
	}
}

// coerceDate parses the export's local-time date text into epoch milliseconds.
func coerceDate(value string) any {
	t, err := time.ParseInLocation(DateLayout, value, time.Local)
	if err != nil {
		return value
	}
	return t.UnixMilli()
}

func coerceAmount(value string) any {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return value
	}
	return f
}
