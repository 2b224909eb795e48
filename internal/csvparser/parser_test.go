package csvparser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pretix-unofficial/pretix-itk-export/internal/types"
)

const fixture = `kind,id,timestamp,provider,organizer,event,order_code,email,amount,card_type,psp
payment,1,2024-03-01 10:00:00,dibs,aarhus,concert,ABC12,a@example.com,100.00,credit_card,XG-1
# refunds below
refund,7,2024-03-02T09:30:00Z,dibs,aarhus,concert,DEF34,,75.50,debit_card,

cash,3,2024-03-03,cash,aarhus,concert,GHI56,jane@example.com,200,,XG-1
`

func TestParse(t *testing.T) {
	data, err := Parse(strings.NewReader(fixture), Settings{})
	require.NoError(t, err)

	assert.Len(t, data.Headers, 11)
	require.Len(t, data.Rows, 3)
	assert.Equal(t, []int{2, 4, 6}, data.Lines)
	assert.Equal(t, "ABC12", data.Rows[0][ColumnOrderCode])
	assert.Equal(t, "", data.Rows[1][ColumnEmail])
}

func TestParseDelimiters(t *testing.T) {
	tests := []struct {
		delimiter string
		input     string
	}{
		{"", "a,b\n1,2\n"},
		{";", "a;b\n1;2\n"},
		{"semicolon", "a;b\n1;2\n"},
		{"tab", "a\tb\n1\t2\n"},
		{"pipe", "a|b\n1|2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.delimiter, func(t *testing.T) {
			data, err := Parse(strings.NewReader(tt.input), Settings{Delimiter: tt.delimiter})
			require.NoError(t, err)
			require.Len(t, data.Rows, 1)
			assert.Equal(t, map[string]string{"a": "1", "b": "2"}, data.Rows[0])
		})
	}
}

func TestParseCleansHeaders(t *testing.T) {
	data, err := Parse(strings.NewReader("\ufeffKind , ,Amount\npayment,x,1\n"), Settings{})
	require.NoError(t, err)
	assert.Equal(t, []string{"kind", "column_2", "amount"}, data.Headers)
}

func TestParseShortRows(t *testing.T) {
	data, err := Parse(strings.NewReader("a,b,c\n1\n"), Settings{})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "", "c": ""}, data.Rows[0])
}

func TestParseEmpty(t *testing.T) {
	_, err := Parse(strings.NewReader(""), Settings{})
	assert.Error(t, err)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.csv")
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o644))

	data, err := ParseFile(path, Settings{})
	require.NoError(t, err)
	assert.Equal(t, path, data.SourceFile)

	_, err = ParseFile(filepath.Join(t.TempDir(), "nope.csv"), Settings{})
	assert.Error(t, err)
}

func TestTransactions(t *testing.T) {
	data, err := Parse(strings.NewReader(fixture), Settings{})
	require.NoError(t, err)

	txs, err := Transactions(data)
	require.NoError(t, err)
	require.Len(t, txs, 3)

	payment := txs[0]
	assert.Equal(t, types.KindCardPayment, payment.Kind)
	assert.Equal(t, "1", payment.ID)
	assert.True(t, decimal.RequireFromString("100").Equal(payment.Amount))
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), payment.Timestamp)
	assert.Equal(t, "concert-ABC12", payment.OrderRef)
	assert.Equal(t, types.CardTypeCredit, payment.CardType)
	assert.Equal(t, "XG-1", payment.Meta.PSP())

	refund := txs[1]
	assert.Equal(t, types.KindCardRefund, refund.Kind)
	assert.Nil(t, refund.Meta)
	assert.Equal(t, "", refund.Meta.PSP())

	cash := txs[2]
	assert.Equal(t, types.KindCashPayment, cash.Kind)
	assert.Equal(t, "jane@example.com", cash.Email)
}

func TestTransactionsErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"missing column", "kind,timestamp,provider,order_code\npayment,2024-01-01,dibs,A\n", `missing required column "amount"`},
		{"bad kind", "kind,timestamp,provider,order_code,amount\ngift,2024-01-01,dibs,A,1\n", `line 2: unknown kind "gift"`},
		{"bad amount", "kind,timestamp,provider,order_code,amount\npayment,2024-01-01,dibs,A,ten\n", "line 2: invalid amount"},
		{"bad timestamp", "kind,timestamp,provider,order_code,amount\npayment,someday,dibs,A,1\n", "line 2: invalid timestamp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Parse(strings.NewReader(tt.input), Settings{})
			require.NoError(t, err)

			_, err = Transactions(data)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
