package csvwriter_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/pretix-unofficial/pretix-itk-export/internal/csvwriter"
	"github.com/pretix-unofficial/pretix-itk-export/internal/exporter"
	"github.com/pretix-unofficial/pretix-itk-export/internal/l10n"
	"github.com/pretix-unofficial/pretix-itk-export/internal/source"
	"github.com/pretix-unofficial/pretix-itk-export/internal/types"
	"github.com/pretix-unofficial/pretix-itk-export/internal/validation"
)

// csvLine pads values to the full row width and terminates the record.
func csvLine(values ...string) string {
	fields := make([]string, types.ColumnCount)
	copy(fields, values)
	return strings.Join(fields, ";") + "\r\n"
}

const fixture = `kind,id,timestamp,provider,organizer,event,order_code,email,amount,card_type,psp
payment,1,2024-03-01 10:00:00,dibs,aarhus,concert,ABC12,a@example.com,100.00,credit_card,XG-0000000001
payment,2,2024-03-01 10:05:00,dibs,aarhus,concert,ABC12,a@example.com,50.00,credit_card,XG-0000000001
payment,3,2024-03-01 11:00:00,dibs,aarhus,concert,FREE1,b@example.com,0.00,credit_card,XG-0000000001
refund,4,2024-03-02 09:00:00,dibs,aarhus,concert,DEF34,c@example.com,75.50,debit_card,XG-0000000001
cash,5,2024-03-03 12:00:00,cash,aarhus,concert,GHI56,jane@example.com,200.00,,XG-0000000001
`

func TestExportRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.csv")
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o644))

	src, err := source.LoadFixture(path, source.Filter{
		Organizers:   []string{"aarhus"},
		CardProvider: "dibs",
		CashProvider: "cash",
	})
	require.NoError(t, err)

	localizer := l10n.New(language.English)
	exp, err := exporter.New(exporter.Options{
		DebitAccount:  "1000",
		CreditAccount: "2000",
		CashAccount:   "3000",
		CardProvider:  "dibs",
		Granularity:   exporter.GroupedByAccountAndOrder,
		Localizer:     localizer,
	})
	require.NoError(t, err)

	rows, err := exp.GetData(context.Background(), src, types.Window{})
	require.NoError(t, err)

	_, err = validation.NewValidator(localizer, validation.ValidationOptions{CreditAccount: "2000"}).Validate(rows)
	require.NoError(t, err)

	out, err := csvwriter.Generate(rows)
	require.NoError(t, err)

	want := csvLine(types.Header[:]...) +
		csvLine("1000", "", "", "", "", "debet", "150.00", "", "Ticket sale (credit): concert-ABC12") +
		csvLine("2000", "", "XG-0000000001", "", "", "kredit", "150.00", "", "Ticket sale: concert-ABC12") +
		csvLine("1000", "", "", "", "", "kredit", "75.50", "", "Ticket refund (debit): concert-DEF34") +
		csvLine("2000", "", "XG-0000000001", "", "", "debet", "75.50", "", "Ticket refund: concert-DEF34") +
		csvLine("3000", "", "", "", "", "debet", "200.00", "", "Cash payment (jane@example.com): concert-GHI56") +
		csvLine("2000", "", "XG-0000000001", "", "", "kredit", "200.00", "", "Cash payment (jane@example.com): concert-GHI56")

	assert.Equal(t, want, string(out))
	assert.NotContains(t, string(out), "FREE1")
}

func TestGenerateHeaderOnly(t *testing.T) {
	out, err := csvwriter.Generate([]types.Row{types.Header})
	require.NoError(t, err)

	assert.Equal(t, csvLine(types.Header[:]...), string(out))
	assert.True(t, strings.HasPrefix(string(out), "Artskonto;Omkostningssted;PSP-element;"))
}

func TestGenerateQuotesMinimally(t *testing.T) {
	var row types.Row
	row[types.ColAccount] = "1000"
	row[types.ColText] = `Ticket sale: a;b, "c"`

	out, err := csvwriter.Generate([]types.Row{row})
	require.NoError(t, err)
	assert.Equal(t, csvLine("1000", "", "", "", "", "", "", "", `"Ticket sale: a;b, ""c"""`), string(out))
}

func TestGenerateWithOptions(t *testing.T) {
	var row types.Row
	row[types.ColAccount] = "1000"

	out, err := csvwriter.GenerateWithOptions([]types.Row{row}, csvwriter.GenerateOptions{Delimiter: ','})
	require.NoError(t, err)
	assert.Equal(t, "1000"+strings.Repeat(",", types.ColumnCount-1)+"\n", string(out))
}
