package repo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"drinktea/internal/domain"
	"drinktea/internal/infra/metrics"
)

// Postgres реализует domain.TeaRepo на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ domain.TeaRepo = (*Postgres)(nil)

const teaColumns = `id, name, category, year, origin, spec, price_min, price_max, intro, cover_url, status, weight, created_at, updated_at`

// Каждый плейсхолдер приведён явно: тип параметра задаёт SQL, а не контекст выражения.
const (
	insertTeaSQL = `
INSERT INTO tea (name, category, year, origin, spec, price_min, price_max, intro, cover_url, status, weight, created_at, updated_at)
VALUES ($1::text, $2::text, $3::integer, $4::text, $5::text, $6::integer, $7::integer, $8::text, $9::text, $10::text, $11::integer, $12::timestamptz, $12::timestamptz)
`
	getTeaSQL = `SELECT ` + teaColumns + ` FROM tea WHERE id = $1::bigint`

	insertEventSQL = `
INSERT INTO event (anon_user_id, tea_id, type, created_at)
VALUES ($1::text, $2::bigint, $3::text, $4::timestamptz)
`
	feedbackLockSQL = `SELECT pg_advisory_xact_lock(hashtext($1::text))`

	insertFeedbackOnceSQL = `
INSERT INTO feedback (anon_user_id, tea_id, action, created_at)
SELECT $1::text, $2::bigint, $3::text, $4::timestamptz
WHERE NOT EXISTS (
	SELECT 1 FROM feedback
	WHERE anon_user_id = $1::text AND tea_id = $2::bigint AND created_at >= $5::timestamptz AND created_at < $6::timestamptz
)
`
	insertMessageSQL = `
INSERT INTO message_feedback (anon_user_id, tea_id, message, contact, created_at)
VALUES ($1::text, $2::bigint, $3::text, $4::text, $5::timestamptz)
`
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// EnsureSchema создаёт таблицы, если их ещё нет.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	_, err := p.pool.Exec(ctx, schemaSQL)
	metrics.ObserveNetworkRequest("postgres", "ensure_schema", "schema", start, err)
	if err != nil {
		return fmt.Errorf("создание схемы: %w", err)
	}
	return nil
}

// SeedTeas заполняет каталог, если он пуст. Возвращает число добавленных позиций.
func (p *Postgres) SeedTeas(ctx context.Context, teas []domain.Tea) (int, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var count int
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT count(*) FROM tea`).Scan(&count)
	metrics.ObserveNetworkRequest("postgres", "tea_count", "tea", start, err)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, t := range teas {
		batch.Queue(insertTeaSQL, teaArgs(t)...)
	}
	start = time.Now()
	err = p.pool.SendBatch(ctx, batch).Close()
	metrics.ObserveNetworkRequest("postgres", "tea_seed", "tea", start, err)
	if err != nil {
		return 0, fmt.Errorf("заполнение каталога: %w", err)
	}
	return len(teas), nil
}

func teaArgs(t domain.Tea) []any {
	return []any{t.Name, string(t.Category), t.Year, t.Origin, t.Spec, t.PriceMin, t.PriceMax,
		t.Intro, t.CoverURL, string(t.Status), t.Weight, t.CreatedAt}
}

func buildTeaWhere(f domain.TeaFilter) (string, []any) {
	conds := []string{"status = 'online'"}
	var args []any
	arg := func(v any, typ string) string {
		args = append(args, v)
		return fmt.Sprintf("$%d::%s", len(args), typ)
	}
	if f.Category != "" {
		conds = append(conds, "category = "+arg(string(f.Category), "text"))
	}
	if len(f.IncludeIDs) > 0 {
		conds = append(conds, "id = ANY("+arg(f.IncludeIDs, "bigint[]")+")")
	}
	if f.JudgedBy != "" {
		conds = append(conds, fmt.Sprintf(
			"id NOT IN (SELECT tea_id FROM feedback WHERE anon_user_id = %s AND created_at >= %s AND created_at < %s)",
			arg(f.JudgedBy, "text"), arg(f.JudgedFrom, "timestamptz"), arg(f.JudgedUntil, "timestamptz")))
	}
	if len(f.ExcludeIDs) > 0 {
		conds = append(conds, "NOT (id = ANY("+arg(f.ExcludeIDs, "bigint[]")+"))")
	}
	return strings.Join(conds, " AND "), args
}

// teaListQueries строит запрос количества и запрос страницы с их аргументами.
func teaListQueries(f domain.TeaFilter) (countSQL string, countArgs []any, listSQL string, listArgs []any) {
	where, args := buildTeaWhere(f)
	n := len(args)
	countSQL = `SELECT count(*) FROM tea WHERE ` + where
	listSQL = fmt.Sprintf(`SELECT %s FROM tea WHERE %s ORDER BY weight DESC, created_at DESC LIMIT $%d::bigint OFFSET $%d::bigint`,
		teaColumns, where, n+1, n+2)
	listArgs = append(append([]any{}, args...), f.Limit, f.Offset)
	return countSQL, args, listSQL, listArgs
}

// ListOnline реализует domain.TeaRepo.
func (p *Postgres) ListOnline(ctx context.Context, filter domain.TeaFilter) ([]domain.Tea, int, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	countSQL, countArgs, listSQL, listArgs := teaListQueries(filter)

	var total int
	start := time.Now()
	err := p.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total)
	metrics.ObserveNetworkRequest("postgres", "tea_count", "tea", start, err)
	if err != nil {
		return nil, 0, err
	}

	start = time.Now()
	rows, err := p.pool.Query(ctx, listSQL, listArgs...)
	metrics.ObserveNetworkRequest("postgres", "tea_list", "tea", start, err)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var teas []domain.Tea
	for rows.Next() {
		t, err := scanTea(rows)
		if err != nil {
			return nil, 0, err
		}
		teas = append(teas, t)
	}
	return teas, total, rows.Err()
}

func scanTea(row pgx.Row) (domain.Tea, error) {
	var (
		t        domain.Tea
		category string
		status   string
	)
	err := row.Scan(&t.ID, &t.Name, &category, &t.Year, &t.Origin, &t.Spec,
		&t.PriceMin, &t.PriceMax, &t.Intro, &t.CoverURL, &status, &t.Weight, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.Tea{}, err
	}
	t.Category = domain.Category(category)
	t.Status = domain.TeaStatus(status)
	return t, nil
}

// GetTea реализует domain.TeaRepo.
func (p *Postgres) GetTea(ctx context.Context, id int64) (domain.Tea, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	t, err := scanTea(p.pool.QueryRow(ctx, getTeaSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		metrics.ObserveNetworkRequest("postgres", "tea_get", "tea", start, nil)
		return domain.Tea{}, domain.ErrTeaNotFound
	}
	metrics.ObserveNetworkRequest("postgres", "tea_get", "tea", start, err)
	return t, err
}

// InsertEvent реализует domain.TeaRepo.
func (p *Postgres) InsertEvent(ctx context.Context, ev domain.Event) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	_, err := p.pool.Exec(ctx, insertEventSQL, eventArgs(ev)...)
	metrics.ObserveNetworkRequest("postgres", "event_insert", "event", start, err)
	return err
}

// InsertFeedbackOnce реализует domain.TeaRepo. Параллельные вставки одной пары
// посетитель-позиция сериализуются advisory-блокировкой транзакции.
func (p *Postgres) InsertFeedbackOnce(ctx context.Context, fb domain.Feedback, from, until time.Time) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "feedback", start, err)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, feedbackLockSQL, feedbackLockKey(fb)); err != nil {
		return false, fmt.Errorf("блокировка оценки: %w", err)
	}
	start = time.Now()
	tag, err := tx.Exec(ctx, insertFeedbackOnceSQL, feedbackArgs(fb, from, until)...)
	metrics.ObserveNetworkRequest("postgres", "feedback_insert", "feedback", start, err)
	if err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// InsertMessage реализует domain.TeaRepo.
func (p *Postgres) InsertMessage(ctx context.Context, msg domain.MessageFeedback) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()
	start := time.Now()
	_, err := p.pool.Exec(ctx, insertMessageSQL, messageArgs(msg)...)
	metrics.ObserveNetworkRequest("postgres", "message_insert", "message_feedback", start, err)
	return err
}

func eventArgs(ev domain.Event) []any {
	return []any{ev.AnonUserID, ev.TeaID, string(ev.Type), ev.CreatedAt}
}

// feedbackLockKey собирает ключ advisory-блокировки пары посетитель-позиция.
func feedbackLockKey(fb domain.Feedback) string {
	return fb.AnonUserID + ":" + strconv.FormatInt(fb.TeaID, 10)
}

func feedbackArgs(fb domain.Feedback, from, until time.Time) []any {
	return []any{fb.AnonUserID, fb.TeaID, string(fb.Action), fb.CreatedAt, from, until}
}

func messageArgs(msg domain.MessageFeedback) []any {
	return []any{msg.AnonUserID, msg.TeaID, msg.Message, msg.Contact, msg.CreatedAt}
}
