// Package ledger recovers transaction rows from Alipay CSV exports and maps
// them into the Bitable field vocabulary.
package ledger

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
)

const (
	// Source tags every extracted row with the exporting provider.
	Source = "alipay"

	// KindIncome and KindExpense are the only transaction classifications
	// kept during extraction; rows with any other kind text are dropped.
	KindIncome  = "收入"
	KindExpense = "支出"

	// minColumns is the minimum comma-separated column count for a line to
	// be treated as a transaction.
	minColumns = 11
)

// Positional column indexes in the Alipay export. The format has no usable
// header row; data lines are detected by their 8-digit id prefix instead.
const (
	colUniqueID   = 0
	colOccurredAt = 3
	colMemo       = 8
	colAmount     = 9
	colKind       = 10
)

var dataLinePrefix = regexp.MustCompile(`^\d{8}`)

// Row is one transaction line that survived the extraction filter.
type Row struct {
	UniqueID    string
	OccurredAt  string
	Amount      string
	Memo        string
	Kind        string
	Source      string
	BatchNumber string
}

// DecodeMode names the decoding policy branch taken for one input.
type DecodeMode int

const (
	// DecodeGBK means the input decoded cleanly as GBK, the encoding Alipay
	// exports normally use.
	DecodeGBK DecodeMode = iota

	// DecodeLossyUTF8 means the GBK attempt failed and the input was read as
	// UTF-8 with invalid sequences dropped. Never a hard failure.
	DecodeLossyUTF8
)

func (m DecodeMode) String() string {
	switch m {
	case DecodeGBK:
		return "gbk"
	case DecodeLossyUTF8:
		return "utf-8-lossy"
	default:
		return "unknown"
	}
}

// Extract recovers transaction rows from a raw CSV export. Lines that do not
// start with an 8-digit id, yield fewer than 11 columns, or carry an
// unrecognized kind are skipped silently. Every surviving row is stamped with
// the provider source tag and the supplied batch number. The returned
// DecodeMode reports which decoding branch was taken.
func Extract(data []byte, batchNumber string) ([]Row, DecodeMode) {
	text, mode := decode(data)

	var rows []Row
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !dataLinePrefix.MatchString(line) {
			// Header, footer or free-text noise around the data block.
			continue
		}

		// The Alipay export never quotes commas inside fields.
		columns := strings.Split(line, ",")
		if len(columns) < minColumns {
			continue
		}

		kind := strings.TrimSpace(columns[colKind])
		if kind != KindIncome && kind != KindExpense {
			continue
		}

		rows = append(rows, Row{
			UniqueID:    strings.TrimSpace(columns[colUniqueID]),
			OccurredAt:  strings.TrimSpace(columns[colOccurredAt]),
			Amount:      strings.TrimSpace(columns[colAmount]),
			Memo:        strings.TrimSpace(columns[colMemo]),
			Kind:        kind,
			Source:      Source,
			BatchNumber: batchNumber,
		})
	}

	return rows, mode
}

// decode attempts GBK first and falls back to lossy UTF-8. The GBK attempt
// counts as failed when the decoder substitutes U+FFFD for unmappable byte
// sequences, or when the input is already valid UTF-8 with multibyte runes:
// such input would pass through the GBK decoder as silent mojibake.
func decode(data []byte) (string, DecodeMode) {
	if !utf8.Valid(data) || isASCII(data) {
		decoded, err := simplifiedchinese.GBK.NewDecoder().Bytes(data)
		if err == nil && !bytes.ContainsRune(decoded, '�') {
			return string(decoded), DecodeGBK
		}
	}
	return strings.ToValidUTF8(string(data), ""), DecodeLossyUTF8
}

func isASCII(data []byte) bool {
	for _, b := range data {
		if b >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
