// Package source provides the transaction sources of an export: the pretix
// PostgreSQL database and CSV fixture files.
package source

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/pretix-unofficial/pretix-itk-export/internal/types"
)

// Payment and refund states of the pretix schema.
const (
	paymentStateConfirmed = "confirmed"
	paymentStateRefunded  = "refunded"
	refundStateDone       = "done"
)

// Filter is shared by all sources.
type Filter struct {
	// Organizers limits results to these organizer slugs. Empty means all.
	Organizers []string

	// CardProvider selects card payments and refunds.
	CardProvider string

	// CashProvider selects cash payments.
	CashProvider string
}

// PostgresOptions configures a Postgres source.
type PostgresOptions struct {
	Filter

	// MetaPSPKey is the event meta property holding the PSP element.
	MetaPSPKey string

	// CardTypeInfoKey is the key of the card type in the payment info JSON.
	CardTypeInfoKey string

	Logger *log.Logger
}

// Postgres loads transactions from a pretix database.
type Postgres struct {
	db   *sql.DB
	opts PostgresOptions
}

// OpenPostgres connects to the database at url and checks the connection.
func OpenPostgres(ctx context.Context, url string, opts PostgresOptions) (*Postgres, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return NewPostgres(db, opts), nil
}

// NewPostgres wraps an open database handle.
func NewPostgres(db *sql.DB, opts PostgresOptions) *Postgres {
	if opts.MetaPSPKey == "" {
		opts.MetaPSPKey = types.MetaPSP
	}
	if opts.CardTypeInfoKey == "" {
		opts.CardTypeInfoKey = "card_type"
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Postgres{db: db, opts: opts}
}

// Close closes the database handle.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// =============================================================================
// QUERIES
// =============================================================================

// The select list is shared by all three queries. The PSP element falls back
// to the property default like pretix's own event metadata lookup.
const selectColumns = `
	SELECT %[1]s.id, %[1]s.amount, %[2]s, %[1]s.provider, COALESCE(%[3]s.info, ''),
		o.code, COALESCE(o.email, ''), e.slug, org.slug,
		NULLIF(COALESCE(mv.value, mp."default"), '')
	FROM %[4]s %[1]s
	JOIN pretixbase_order o ON o.id = %[1]s.order_id
	JOIN pretixbase_event e ON e.id = o.event_id
	JOIN pretixbase_organizer org ON org.id = e.organizer_id
	LEFT JOIN pretixbase_eventmetaproperty mp ON mp.organizer_id = org.id AND mp.name = $1
	LEFT JOIN pretixbase_eventmetavalue mv ON mv.event_id = e.id AND mv.property_id = mp.id`

// query collects WHERE conditions and their positional arguments.
type query struct {
	sql        strings.Builder
	conditions []string
	args       []interface{}
}

func newQuery(selectSQL string, metaPSPKey string) *query {
	q := &query{args: []interface{}{metaPSPKey}}
	q.sql.WriteString(selectSQL)
	return q
}

// where adds a condition. Every "?" in cond is replaced by the next
// positional parameter.
func (q *query) where(cond string, args ...interface{}) {
	for _, arg := range args {
		q.args = append(q.args, arg)
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(q.args)), 1)
	}
	q.conditions = append(q.conditions, cond)
}

func (q *query) String(orderBy string) string {
	var b strings.Builder
	b.WriteString(q.sql.String())
	if len(q.conditions) > 0 {
		b.WriteString("\n\tWHERE ")
		b.WriteString(strings.Join(q.conditions, "\n\t\tAND "))
	}
	b.WriteString("\n\tORDER BY ")
	b.WriteString(orderBy)
	return b.String()
}

// scope adds the filters shared by every query: provider, amount > 0,
// organizer scope and the half-open time window on timeColumn.
func (p *Postgres) scope(q *query, alias, provider, timeColumn string, window types.Window) {
	q.where(alias+".provider = ?", provider)
	q.where(alias + ".amount > 0")
	if len(p.opts.Organizers) > 0 {
		q.where("org.slug = ANY(?)", pq.Array(p.opts.Organizers))
	}
	if window.Start != nil {
		q.where(timeColumn+" >= ?", *window.Start)
	}
	if window.End != nil {
		q.where(timeColumn+" < ?", *window.End)
	}
}

// LoadPayments returns confirmed or later refunded card payments.
func (p *Postgres) LoadPayments(ctx context.Context, window types.Window) ([]types.Transaction, error) {
	q := newQuery(fmt.Sprintf(selectColumns, "p", "p.payment_date", "p", "pretixbase_orderpayment"), p.opts.MetaPSPKey)
	q.where("p.state = ANY(?)", pq.Array([]string{paymentStateConfirmed, paymentStateRefunded}))
	p.scope(q, "p", p.opts.CardProvider, "p.payment_date", window)

	return p.load(ctx, types.KindCardPayment, q.String("p.payment_date, p.id"), q.args)
}

// LoadRefunds returns completed card refunds. The card type is read from
// the refunded payment.
func (p *Postgres) LoadRefunds(ctx context.Context, window types.Window) ([]types.Transaction, error) {
	selectSQL := fmt.Sprintf(selectColumns, "r", "r.execution_date", "rp", "pretixbase_orderrefund") +
		"\n\tLEFT JOIN pretixbase_orderpayment rp ON rp.id = r.payment_id"

	q := newQuery(selectSQL, p.opts.MetaPSPKey)
	q.where("r.state = ?", refundStateDone)
	p.scope(q, "r", p.opts.CardProvider, "r.execution_date", window)

	return p.load(ctx, types.KindCardRefund, q.String("r.execution_date, r.id"), q.args)
}

// LoadCashPayments returns confirmed or later refunded cash payments.
func (p *Postgres) LoadCashPayments(ctx context.Context, window types.Window) ([]types.Transaction, error) {
	q := newQuery(fmt.Sprintf(selectColumns, "p", "p.payment_date", "p", "pretixbase_orderpayment"), p.opts.MetaPSPKey)
	q.where("p.state = ANY(?)", pq.Array([]string{paymentStateConfirmed, paymentStateRefunded}))
	p.scope(q, "p", p.opts.CashProvider, "p.payment_date", window)

	return p.load(ctx, types.KindCashPayment, q.String("p.payment_date, p.id"), q.args)
}

// load runs a query built from selectColumns and scans the result.
func (p *Postgres) load(ctx context.Context, kind types.Kind, query string, args []interface{}) ([]types.Transaction, error) {
	p.opts.Logger.Debug("querying transactions", "kind", kind, "args", len(args))

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s transactions: %w", kind, err)
	}
	defer rows.Close()

	var transactions []types.Transaction
	for rows.Next() {
		var (
			tx        types.Transaction
			id        int64
			timestamp sql.NullTime
			info      string
			psp       sql.NullString
		)

		if err := rows.Scan(
			&id, &tx.Amount, &timestamp, &tx.Provider, &info,
			&tx.OrderCode, &tx.Email, &tx.EventSlug, &tx.Organizer,
			&psp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan %s transaction: %w", kind, err)
		}

		tx.Kind = kind
		tx.ID = fmt.Sprintf("%d", id)
		tx.Timestamp = timestamp.Time.UTC()
		tx.OrderRef = types.OrderReference(tx.EventSlug, tx.OrderCode)
		if psp.Valid {
			tx.Meta = types.EventMetadata{types.MetaPSP: psp.String}
		}
		if kind != types.KindCashPayment {
			tx.CardType = cardType(info, p.opts.CardTypeInfoKey)
		}

		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s transactions: %w", kind, err)
	}

	return transactions, nil
}

// cardType extracts the card type from a payment info document. Malformed or
// missing info yields "".
func cardType(info, key string) string {
	if info == "" {
		return ""
	}

	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(info), &doc); err != nil {
		return ""
	}

	switch v := doc[key].(type) {
	case string:
		return v
	case float64:
		return decimal.NewFromFloat(v).String()
	default:
		return ""
	}
}
