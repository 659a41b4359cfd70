package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abheet19/telemetry-ai-ops/internal/domain"
	"github.com/abheet19/telemetry-ai-ops/internal/ports"
)

const DefaultResultsTable = "ai_results"

// PostgresSink stores one row per classified record.
type PostgresSink struct {
	db        *sql.DB
	tableName string
}

func NewPostgresSink(db *sql.DB, table string) *PostgresSink {
	if table == "" {
		table = DefaultResultsTable
	}
	return &PostgresSink{db: db, tableName: table}
}

func (p *PostgresSink) Name() string { return "postgres" }

// EnsureSchema creates the results table when it does not exist yet.
func (p *PostgresSink) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+p.tableName+` (
	id SERIAL PRIMARY KEY,
	device_id TEXT NOT NULL,
	osnr DOUBLE PRECISION,
	ber DOUBLE PRECISION,
	power_dbm DOUBLE PRECISION,
	wavelength DOUBLE PRECISION,
	status TEXT NOT NULL,
	message TEXT,
	ai_output JSONB,
	batch_id TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`)
	if err != nil {
		return fmt.Errorf("create %s: %w", p.tableName, err)
	}
	return nil
}

func (p *PostgresSink) WriteResult(ctx context.Context, res *domain.BatchResult) error {
	if res == nil || res.Batch.Len() == 0 {
		return nil
	}
	records := res.Batch.Records
	if len(res.Outcomes) != len(records) {
		return fmt.Errorf("batch %s: %d outcomes for %d records", res.Batch.ID, len(res.Outcomes), len(records))
	}

	const cols = 9
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(p.tableName)
	b.WriteString(" (device_id, osnr, ber, power_dbm, wavelength, status, message, ai_output, batch_id) VALUES ")

	args := make([]any, 0, len(records)*cols)
	for i, r := range records {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(")
		for c := 1; c <= cols; c++ {
			if c > 1 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, "$%d", len(args)+c)
		}
		b.WriteString(")")

		o := res.Outcomes[i]
		output, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("marshal outcome: %w", err)
		}
		args = append(args,
			r.DeviceID,
			nullable(r, domain.KeyOSNR),
			nullable(r, domain.KeyBER),
			nullable(r, domain.KeyPowerDBM),
			nullable(r, domain.KeyWavelength),
			o.Verdict.String(),
			outcomeMessage(o),
			output,
			res.Batch.ID,
		)
	}

	if _, err := p.db.ExecContext(ctx, b.String(), args...); err != nil {
		return fmt.Errorf("insert into %s: %w", p.tableName, err)
	}
	return nil
}

func nullable(r *domain.Record, key string) sql.NullFloat64 {
	v, ok := r.Value(key)
	return sql.NullFloat64{Float64: v, Valid: ok}
}

func outcomeMessage(o domain.Outcome) string {
	if o.Message != "" {
		return o.Message
	}
	return o.Reason
}

var _ ports.ResultSink = (*PostgresSink)(nil)
