package ledger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
)

const batch = "240101_000000"

func TestExtract_LineFiltering(t *testing.T) {
	tests := []struct {
		name string
		line string
		kept bool
	}{
		{
			name: "valid expense line",
			line: "12345678,a,b,2024-01-02 10:00:00,e,f,g,h,memoX,100.50,支出",
			kept: true,
		},
		{
			name: "valid income line",
			line: "20240102,a,b,2024-01-02 11:00:00,e,f,g,h,salary,5000.00,收入",
			kept: true,
		},
		{
			name: "header line without digit prefix",
			line: "交易号,商家订单号,交易创建时间,付款时间,最近修改时间,交易来源地,类型,交易对方,商品名称,金额,收/支",
			kept: false,
		},
		{
			name: "seven digit prefix",
			line: "1234567,a,b,2024-01-02 10:00:00,e,f,g,h,memoX,100.50,支出",
			kept: false,
		},
		{
			name: "too few columns",
			line: "12345678,a,b,2024-01-02 10:00:00,e,f,g,h,memoX,100.50",
			kept: false,
		},
		{
			name: "unrecognized kind",
			line: "12345678,a,b,2024-01-02 10:00:00,e,f,g,h,memoX,100.50,不计收支",
			kept: false,
		},
		{
			name: "empty kind",
			line: "12345678,a,b,2024-01-02 10:00:00,e,f,g,h,memoX,100.50,",
			kept: false,
		},
		{
			name: "blank line",
			line: "   ",
			kept: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, _ := Extract([]byte(tt.line+"\n"), batch)
			if tt.kept {
				assert.Len(t, rows, 1)
			} else {
				assert.Empty(t, rows)
			}
		})
	}
}

func TestExtract_RowFields(t *testing.T) {
	line := "12345678,a,b,2024-01-02 10:00:00,e,f,g,h,memoX,100.50,支出"
	rows, mode := Extract([]byte(line), batch)

	require.Len(t, rows, 1)
	assert.Equal(t, Row{
		UniqueID:    "12345678",
		OccurredAt:  "2024-01-02 10:00:00",
		Amount:      "100.50",
		Memo:        "memoX",
		Kind:        "支出",
		Source:      "alipay",
		BatchNumber: batch,
	}, rows[0])
	assert.Equal(t, DecodeLossyUTF8, mode, "UTF-8 source text takes the fallback branch")
}

func TestExtract_TrimsFieldsAndCarriageReturns(t *testing.T) {
	line := "12345678,a,b, 2024-01-02 10:00:00 ,e,f,g,h, memoX , 100.50 ,支出\r\n"
	rows, _ := Extract([]byte(line), batch)

	require.Len(t, rows, 1)
	assert.Equal(t, "2024-01-02 10:00:00", rows[0].OccurredAt)
	assert.Equal(t, "memoX", rows[0].Memo)
	assert.Equal(t, "100.50", rows[0].Amount)
}

func TestExtract_MultipleLines(t *testing.T) {
	input := strings.Join([]string{
		"支付宝交易记录明细查询",
		"12345678,a,b,2024-01-02 10:00:00,e,f,g,h,lunch,25.00,支出",
		"",
		"22345678,a,b,2024-01-03 09:00:00,e,f,g,h,salary,5000.00,收入",
		"导出时间：2024-01-04",
	}, "\n")

	rows, _ := Extract([]byte(input), batch)
	require.Len(t, rows, 2)
	assert.Equal(t, "12345678", rows[0].UniqueID)
	assert.Equal(t, "22345678", rows[1].UniqueID)
}

func TestExtract_GBKEncodedInput(t *testing.T) {
	line := "12345678,a,b,2024-01-02 10:00:00,e,f,g,h,午饭,25.00,支出\n"
	encoded, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte(line))
	require.NoError(t, err)

	rows, mode := Extract(encoded, batch)
	require.Len(t, rows, 1)
	assert.Equal(t, DecodeGBK, mode)
	assert.Equal(t, "午饭", rows[0].Memo)
	assert.Equal(t, "支出", rows[0].Kind)
}

func TestExtract_InvalidGBKFallsBackToUTF8(t *testing.T) {
	// 0x81 0x20 is not a valid GBK sequence, so the first attempt produces a
	// replacement rune and the UTF-8 branch takes over.
	input := append([]byte{0x81, 0x20, '\n'},
		[]byte("12345678,a,b,2024-01-02 10:00:00,e,f,g,h,memoX,100.50,支出\n")...)

	rows, mode := Extract(input, batch)
	assert.Equal(t, DecodeLossyUTF8, mode)
	require.Len(t, rows, 1)
	assert.Equal(t, "支出", rows[0].Kind)
}

func TestDecode_PureASCIIStaysOnGBKBranch(t *testing.T) {
	_, mode := decode([]byte("12345678,plain,ascii\n"))
	assert.Equal(t, DecodeGBK, mode)
}

func TestExtract_EmptyInput(t *testing.T) {
	rows, _ := Extract(nil, batch)
	assert.Empty(t, rows)
}
