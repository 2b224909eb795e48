package l10n

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		name     string
		lang     string
		grouping bool
		amount   string
		want     string
	}{
		{"english plain", "en", false, "150", "150.00"},
		{"english rounds half up", "en", false, "75.505", "75.51"},
		{"english large without grouping", "en", false, "1234.5", "1234.50"},
		{"english grouping", "en", true, "1234.5", "1,234.50"},
		{"danish plain", "da", false, "1234.5", "1234,50"},
		{"danish grouping", "da", true, "1234.5", "1.234,50"},
		{"regional danish", "da-DK", false, "0.1", "0,10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := Parse(tt.lang, WithGrouping(tt.grouping))
			require.NoError(t, err)

			got := l.FormatAmount(decimal.RequireFromString(tt.amount))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAmountRoundTrip(t *testing.T) {
	amounts := []string{"0.01", "75.5", "150", "1234.5", "987654.32"}

	for _, lang := range []string{"en", "da"} {
		for _, grouping := range []bool{false, true} {
			l, err := Parse(lang, WithGrouping(grouping))
			require.NoError(t, err)

			for _, a := range amounts {
				want := decimal.RequireFromString(a)
				got, err := l.ParseAmount(l.FormatAmount(want))
				require.NoError(t, err, "lang=%s grouping=%v amount=%s", lang, grouping, a)
				assert.True(t, want.Equal(got), "lang=%s grouping=%v: want %s, got %s", lang, grouping, want, got)
			}
		}
	}
}

func TestParseAmountRejectsGarbage(t *testing.T) {
	l := New(language.English)

	_, err := l.ParseAmount("twelve")
	assert.Error(t, err)
}

func TestSprintfTranslates(t *testing.T) {
	en := New(language.English)
	da := New(language.Danish)

	assert.Equal(t, "Ticket sale: concert-ABC12", en.Sprintf(MsgTicketSale, "concert-ABC12"))
	assert.Equal(t, "Billetsalg: concert-ABC12", da.Sprintf(MsgTicketSale, "concert-ABC12"))
	assert.Equal(t, "Kontant betaling (jane@example.com): x-1", da.Sprintf(MsgCashPayment, "jane@example.com", "x-1"))
}

func TestCardType(t *testing.T) {
	en := New(language.English)
	da := New(language.Danish)

	assert.Equal(t, "credit", en.CardType("credit_card"))
	assert.Equal(t, "debit", en.CardType("debit_card"))
	assert.Equal(t, "kredit", da.CardType("credit_card"))
	assert.Equal(t, "debet", da.CardType("debit_card"))

	// Unknown codes are not touched.
	assert.Equal(t, "amex_gold", en.CardType("amex_gold"))
	assert.Equal(t, "amex_gold", da.CardType("amex_gold"))
}

func TestWithCardTypeLabels(t *testing.T) {
	l := New(language.English, WithCardTypeLabels(map[string]string{"visa": "Visa"}))

	assert.Equal(t, "Visa", l.CardType("visa"))
	assert.Equal(t, "credit_card", l.CardType("credit_card"))
}

func TestParseInvalidLocale(t *testing.T) {
	_, err := Parse("not a locale!")
	assert.Error(t, err)
}
