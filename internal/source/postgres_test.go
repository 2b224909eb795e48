package source

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pretix-unofficial/pretix-itk-export/internal/types"
)

var resultColumns = []string{
	"id", "amount", "payment_date", "provider", "info",
	"code", "email", "event", "organizer", "psp",
}

func newMockSource(t *testing.T, filter Filter) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewPostgres(db, PostgresOptions{Filter: filter}), mock
}

func TestLoadPayments(t *testing.T) {
	src, mock := newMockSource(t, Filter{
		Organizers:   []string{"aarhus"},
		CardProvider: "dibs",
		CashProvider: "cash",
	})

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	paid := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM pretixbase_orderpayment p")).
		WithArgs(
			"PSP",
			pq.Array([]string{"confirmed", "refunded"}),
			"dibs",
			pq.Array([]string{"aarhus"}),
			start,
			end,
		).
		WillReturnRows(sqlmock.NewRows(resultColumns).
			AddRow(1, "100.00", paid, "dibs", `{"card_type": "credit_card"}`, "ABC12", "a@example.com", "concert", "aarhus", "XG-1").
			AddRow(2, "50.00", paid, "dibs", "", "ABC12", "a@example.com", "concert", "aarhus", nil))

	txs, err := src.LoadPayments(context.Background(), types.NewWindow(start, end))
	require.NoError(t, err)
	require.Len(t, txs, 2)

	assert.Equal(t, types.KindCardPayment, txs[0].Kind)
	assert.Equal(t, "1", txs[0].ID)
	assert.Equal(t, "100", txs[0].Amount.String())
	assert.Equal(t, paid, txs[0].Timestamp)
	assert.Equal(t, "concert-ABC12", txs[0].OrderRef)
	assert.Equal(t, types.CardTypeCredit, txs[0].CardType)
	assert.Equal(t, "XG-1", txs[0].Meta.PSP())

	assert.Equal(t, "", txs[1].CardType)
	assert.Nil(t, txs[1].Meta)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadRefundsUsesRefundEntity(t *testing.T) {
	src, mock := newMockSource(t, Filter{CardProvider: "dibs"})

	executed := time.Date(2024, 3, 9, 8, 0, 0, 0, time.UTC)

	// Open window and no organizer scope: only the state and provider filters.
	mock.ExpectQuery(`FROM pretixbase_orderrefund r(.|\n)*LEFT JOIN pretixbase_orderpayment rp(.|\n)*r\.state = \$2(.|\n)*ORDER BY r\.execution_date`).
		WithArgs("PSP", "done", "dibs").
		WillReturnRows(sqlmock.NewRows(resultColumns).
			AddRow(7, "75.50", executed, "dibs", `{"card_type": "debit_card"}`, "DEF34", "", "concert", "aarhus", "XG-1"))

	txs, err := src.LoadRefunds(context.Background(), types.Window{})
	require.NoError(t, err)
	require.Len(t, txs, 1)

	assert.Equal(t, types.KindCardRefund, txs[0].Kind)
	assert.Equal(t, types.CardTypeDebit, txs[0].CardType)
	assert.Equal(t, executed, txs[0].Timestamp)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadCashPaymentsIgnoresCardType(t *testing.T) {
	src, mock := newMockSource(t, Filter{CardProvider: "dibs", CashProvider: "cash"})

	mock.ExpectQuery(regexp.QuoteMeta("p.amount > 0")).
		WithArgs("PSP", sqlmock.AnyArg(), "cash").
		WillReturnRows(sqlmock.NewRows(resultColumns).
			AddRow(3, "200", time.Now(), "cash", `{"card_type": "credit_card"}`, "GHI56", "jane@example.com", "concert", "aarhus", "XG-1"))

	txs, err := src.LoadCashPayments(context.Background(), types.Window{})
	require.NoError(t, err)
	require.Len(t, txs, 1)

	assert.Equal(t, types.KindCashPayment, txs[0].Kind)
	assert.Equal(t, "", txs[0].CardType)
	assert.Equal(t, "jane@example.com", txs[0].Email)
}

func TestLoadPropagatesQueryErrors(t *testing.T) {
	src, mock := newMockSource(t, Filter{CardProvider: "dibs"})

	boom := errors.New("relation does not exist")
	mock.ExpectQuery("SELECT").WillReturnError(boom)

	_, err := src.LoadPayments(context.Background(), types.Window{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failed to query payment transactions")
}

func TestLoadScanErrors(t *testing.T) {
	src, mock := newMockSource(t, Filter{CardProvider: "dibs"})

	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows(resultColumns).
			AddRow(1, "not a number", time.Now(), "dibs", "", "A", "", "e", "o", nil))

	_, err := src.LoadPayments(context.Background(), types.Window{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to scan payment transaction")
}

func TestCardType(t *testing.T) {
	tests := []struct {
		info string
		want string
	}{
		{"", ""},
		{"not json", ""},
		{`{"card_type": "credit_card"}`, "credit_card"},
		{`{"card_type": 7}`, "7"},
		{`{"card_type": null}`, ""},
		{`{"other": "x"}`, ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, cardType(tt.info, "card_type"), tt.info)
	}
}
