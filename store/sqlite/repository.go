package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/warp/leave-ledger/ledger"
)

// repo implements ledger.Repository over a *sql.DB or *sql.Tx.
type repo struct {
	q   queryer
	now func() time.Time
}

var _ ledger.Repository = (*repo)(nil)

// =============================================================================
// POLICIES
// =============================================================================

const policyColumns = `id, name, leave_type, method, amount_value, amount_unit,
	approval_required_count, recurrence_unit, recurrence_interval,
	expiration_kind, expiration_n, effective_kind, effective_delay_days, created_at`

func (r *repo) SavePolicy(ctx context.Context, p ledger.Policy) error {
	var recurUnit sql.NullString
	var recurInterval sql.NullInt64
	if p.Recurrence != nil {
		recurUnit = sql.NullString{String: string(p.Recurrence.Unit), Valid: true}
		recurInterval = sql.NullInt64{Int64: int64(p.Recurrence.Interval), Valid: true}
	}
	unit := p.Amount.Unit
	if unit == "" {
		unit = ledger.UnitDays
	}
	now := formatTime(r.now())
	created := now
	if !p.CreatedAt.IsZero() {
		created = formatTime(p.CreatedAt)
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO policies (id, name, leave_type, method, amount_value, amount_unit,
			approval_required_count, recurrence_unit, recurrence_interval,
			expiration_kind, expiration_n, effective_kind, effective_delay_days,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			leave_type = excluded.leave_type,
			method = excluded.method,
			amount_value = excluded.amount_value,
			amount_unit = excluded.amount_unit,
			approval_required_count = excluded.approval_required_count,
			recurrence_unit = excluded.recurrence_unit,
			recurrence_interval = excluded.recurrence_interval,
			expiration_kind = excluded.expiration_kind,
			expiration_n = excluded.expiration_n,
			effective_kind = excluded.effective_kind,
			effective_delay_days = excluded.effective_delay_days,
			updated_at = excluded.updated_at
	`, p.ID, p.Name, p.LeaveType, p.Method, p.Amount.Value.String(), unit,
		p.ApprovalRequiredCount, recurUnit, recurInterval,
		p.Expiration.Kind, p.Expiration.N, p.Effective.Kind, p.Effective.DelayDays,
		created, now)
	if err != nil {
		return fmt.Errorf("failed to save policy %s: %w", p.ID, err)
	}
	return nil
}

func (r *repo) GetPolicy(ctx context.Context, id ledger.PolicyID) (*ledger.Policy, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+policyColumns+` FROM policies WHERE id = ?`, id)
	p, err := scanPolicy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ledger.ErrPolicyNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repo) ListPolicies(ctx context.Context) ([]ledger.Policy, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+policyColumns+` FROM policies ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []ledger.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, *p)
	}
	return policies, rows.Err()
}

func (r *repo) CountGrantsByPolicy(ctx context.Context, id ledger.PolicyID) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM grants WHERE policy_id = ?`, id).Scan(&n)
	return n, err
}

func scanPolicy(s scanner) (*ledger.Policy, error) {
	var (
		p                       ledger.Policy
		amountValue, amountUnit string
		recurUnit               sql.NullString
		recurInterval           sql.NullInt64
		expirationKind, effKind string
		createdAt               string
	)
	err := s.Scan(&p.ID, &p.Name, &p.LeaveType, &p.Method, &amountValue, &amountUnit,
		&p.ApprovalRequiredCount, &recurUnit, &recurInterval,
		&expirationKind, &p.Expiration.N, &effKind, &p.Effective.DelayDays, &createdAt)
	if err != nil {
		return nil, err
	}
	if p.Amount, err = parseAmount(amountValue, amountUnit); err != nil {
		return nil, fmt.Errorf("policy %s: %w", p.ID, err)
	}
	if recurUnit.Valid {
		p.Recurrence = &ledger.Recurrence{
			Unit:     ledger.RecurrenceUnit(recurUnit.String),
			Interval: int(recurInterval.Int64),
		}
	}
	p.Expiration.Kind = ledger.ExpirationKind(expirationKind)
	p.Effective.Kind = ledger.EffectiveKind(effKind)
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}

// =============================================================================
// ASSIGNMENTS
// =============================================================================

const assignmentColumns = `id, owner_id, policy_id, effective_from, effective_to, next_grant_date, created_at`

func (r *repo) SaveAssignment(ctx context.Context, a ledger.Assignment) error {
	created := a.CreatedAt
	if created.IsZero() {
		created = r.now()
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO assignments (`+assignmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			effective_from = excluded.effective_from,
			effective_to = excluded.effective_to,
			next_grant_date = excluded.next_grant_date
	`, a.ID, a.OwnerID, a.PolicyID, formatDate(a.EffectiveFrom),
		nullDate(a.EffectiveTo), nullDate(a.NextGrantDate), formatTime(created))
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: %s already assigned to %s", ledger.ErrInvalidInput, a.OwnerID, a.PolicyID)
		}
		return fmt.Errorf("failed to save assignment %s: %w", a.ID, err)
	}
	return nil
}

func (r *repo) GetAssignment(ctx context.Context, id ledger.AssignmentID) (*ledger.Assignment, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE id = ?`, id)
	a, err := scanAssignment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ledger.ErrAssignmentNotFound, id)
	}
	return a, err
}

func (r *repo) ListAssignmentsByOwner(ctx context.Context, owner ledger.OwnerID) ([]ledger.Assignment, error) {
	return r.queryAssignments(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE owner_id = ? ORDER BY id`, owner)
}

func (r *repo) ListDueAssignments(ctx context.Context, today ledger.Date) ([]ledger.Assignment, error) {
	return r.queryAssignments(ctx, `
		SELECT `+assignmentColumns+` FROM assignments
		WHERE next_grant_date IS NULL OR next_grant_date <= ?
		ORDER BY id
	`, formatDate(today))
}

func (r *repo) queryAssignments(ctx context.Context, query string, args ...any) ([]ledger.Assignment, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ledger.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (r *repo) AdvanceAssignment(ctx context.Context, id ledger.AssignmentID, expected *ledger.Date, next ledger.Date) error {
	var (
		res sql.Result
		err error
	)
	if expected == nil {
		res, err = r.q.ExecContext(ctx,
			`UPDATE assignments SET next_grant_date = ? WHERE id = ? AND next_grant_date IS NULL`,
			formatDate(next), id)
	} else {
		res, err = r.q.ExecContext(ctx,
			`UPDATE assignments SET next_grant_date = ? WHERE id = ? AND next_grant_date = ?`,
			formatDate(next), id, formatDate(*expected))
	}
	if err != nil {
		return fmt.Errorf("failed to advance assignment %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := r.GetAssignment(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: assignment %s", ledger.ErrDuplicateGrantSchedule, id)
	}
	return nil
}

func scanAssignment(s scanner) (*ledger.Assignment, error) {
	var (
		a               ledger.Assignment
		from, createdAt string
		to, next        sql.NullString
	)
	if err := s.Scan(&a.ID, &a.OwnerID, &a.PolicyID, &from, &to, &next, &createdAt); err != nil {
		return nil, err
	}
	var err error
	if a.EffectiveFrom, err = parseDate(from); err != nil {
		return nil, err
	}
	if a.EffectiveTo, err = datePtr(to); err != nil {
		return nil, err
	}
	if a.NextGrantDate, err = datePtr(next); err != nil {
		return nil, err
	}
	a.CreatedAt = parseTime(createdAt)
	return &a, nil
}

// =============================================================================
// GRANTS
// =============================================================================

const grantColumns = `id, owner_id, leave_type, policy_id, total_value, remaining_value, unit,
	valid_from, valid_to, status, requested_from, requested_to, reason, deleted, version,
	created_at, updated_at`

func (r *repo) InsertGrant(ctx context.Context, g *ledger.Grant) error {
	var reqFrom, reqTo sql.NullString
	if g.RequestedWindow != nil {
		reqFrom = sql.NullString{String: formatDate(g.RequestedWindow.From), Valid: true}
		reqTo = sql.NullString{String: formatDate(g.RequestedWindow.To), Valid: true}
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO grants (`+grantColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`, g.ID, g.OwnerID, g.LeaveType, nullString(string(g.PolicyID)),
		g.Total.Value.String(), g.Remaining.Value.String(), g.Total.Unit,
		formatDate(g.Window.From), formatDate(g.Window.To), g.Status,
		reqFrom, reqTo, g.Reason, g.Deleted,
		formatTime(g.CreatedAt), formatTime(g.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert grant %s: %w", g.ID, err)
	}
	g.Version = 1
	return nil
}

func (r *repo) UpdateGrant(ctx context.Context, g *ledger.Grant) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE grants SET
			remaining_value = ?, status = ?, reason = ?, deleted = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`, g.Remaining.Value.String(), g.Status, g.Reason, g.Deleted, formatTime(g.UpdatedAt),
		g.ID, g.Version)
	if err != nil {
		return fmt.Errorf("failed to update grant %s: %w", g.ID, err)
	}
	if err := r.checkVersioned(ctx, res, "grants", string(g.ID), ledger.ErrGrantNotFound); err != nil {
		return err
	}
	g.Version++
	return nil
}

func (r *repo) GetGrant(ctx context.Context, id ledger.GrantID) (*ledger.Grant, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+grantColumns+` FROM grants WHERE id = ?`, id)
	g, err := scanGrant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ledger.ErrGrantNotFound, id)
	}
	return g, err
}

func (r *repo) ListGrantsByOwner(ctx context.Context, owner ledger.OwnerID) ([]*ledger.Grant, error) {
	return r.queryGrants(ctx, `
		SELECT `+grantColumns+` FROM grants
		WHERE owner_id = ? AND deleted = FALSE
		ORDER BY created_at, id
	`, owner)
}

func (r *repo) ListActiveGrantsEndingBefore(ctx context.Context, d ledger.Date) ([]*ledger.Grant, error) {
	return r.queryGrants(ctx, `
		SELECT `+grantColumns+` FROM grants
		WHERE status = ? AND valid_to < ?
		ORDER BY created_at, id
	`, ledger.GrantActive, formatDate(d))
}

func (r *repo) queryGrants(ctx context.Context, query string, args ...any) ([]*ledger.Grant, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []*ledger.Grant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

func scanGrant(s scanner) (*ledger.Grant, error) {
	var (
		g                    ledger.Grant
		policyID             sql.NullString
		total, remaining     string
		unit                 string
		from, to             string
		reqFrom, reqTo       sql.NullString
		createdAt, updatedAt string
	)
	err := s.Scan(&g.ID, &g.OwnerID, &g.LeaveType, &policyID, &total, &remaining, &unit,
		&from, &to, &g.Status, &reqFrom, &reqTo, &g.Reason, &g.Deleted, &g.Version,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	g.PolicyID = ledger.PolicyID(policyID.String)
	if g.Total, err = parseAmount(total, unit); err != nil {
		return nil, fmt.Errorf("grant %s: %w", g.ID, err)
	}
	if g.Remaining, err = parseAmount(remaining, unit); err != nil {
		return nil, fmt.Errorf("grant %s: %w", g.ID, err)
	}
	if g.Window, err = scanWindow(from, to); err != nil {
		return nil, fmt.Errorf("grant %s: %w", g.ID, err)
	}
	if reqFrom.Valid && reqTo.Valid {
		w, err := scanWindow(reqFrom.String, reqTo.String)
		if err != nil {
			return nil, fmt.Errorf("grant %s: %w", g.ID, err)
		}
		g.RequestedWindow = &w
	}
	g.CreatedAt = parseTime(createdAt)
	g.UpdatedAt = parseTime(updatedAt)
	return &g, nil
}

func scanWindow(from, to string) (ledger.Window, error) {
	f, err := parseDate(from)
	if err != nil {
		return ledger.Window{}, err
	}
	t, err := parseDate(to)
	if err != nil {
		return ledger.Window{}, err
	}
	return ledger.Window{From: f, To: t}, nil
}

// checkVersioned turns a zero-row versioned UPDATE into not-found or a
// concurrent modification, depending on whether the row exists.
func (r *repo) checkVersioned(ctx context.Context, res sql.Result, table, id string, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var exists int
	err = r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table+` WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", notFound, id)
	}
	return fmt.Errorf("%w: %s %s", ledger.ErrConcurrentModification, table, id)
}

// =============================================================================
// USAGES
// =============================================================================

const usageColumns = `id, owner_id, leave_type, policy_id, amount_value, unit,
	window_from, window_to, status, reason, grant_id, version, created_at, updated_at`

func (r *repo) InsertUsage(ctx context.Context, u *ledger.UsageRequest) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO usages (`+usageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`, u.ID, u.OwnerID, u.LeaveType, nullString(string(u.PolicyID)),
		u.Amount.Value.String(), u.Amount.Unit,
		formatDate(u.Window.From), formatDate(u.Window.To), u.Status, u.Reason,
		nullString(string(u.GrantID)), formatTime(u.CreatedAt), formatTime(u.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert usage %s: %w", u.ID, err)
	}
	u.Version = 1
	return nil
}

func (r *repo) UpdateUsage(ctx context.Context, u *ledger.UsageRequest) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE usages SET
			status = ?, reason = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`, u.Status, u.Reason, formatTime(u.UpdatedAt), u.ID, u.Version)
	if err != nil {
		return fmt.Errorf("failed to update usage %s: %w", u.ID, err)
	}
	if err := r.checkVersioned(ctx, res, "usages", string(u.ID), ledger.ErrUsageNotFound); err != nil {
		return err
	}
	u.Version++
	return nil
}

func (r *repo) GetUsage(ctx context.Context, id ledger.UsageID) (*ledger.UsageRequest, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+usageColumns+` FROM usages WHERE id = ?`, id)
	u, err := scanUsage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ledger.ErrUsageNotFound, id)
	}
	return u, err
}

func (r *repo) ListUsagesByOwner(ctx context.Context, owner ledger.OwnerID) ([]*ledger.UsageRequest, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+usageColumns+` FROM usages WHERE owner_id = ? ORDER BY created_at, id`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var usages []*ledger.UsageRequest
	for rows.Next() {
		u, err := scanUsage(rows)
		if err != nil {
			return nil, err
		}
		usages = append(usages, u)
	}
	return usages, rows.Err()
}

func scanUsage(s scanner) (*ledger.UsageRequest, error) {
	var (
		u                    ledger.UsageRequest
		policyID, grantID    sql.NullString
		amount, unit         string
		from, to             string
		createdAt, updatedAt string
	)
	err := s.Scan(&u.ID, &u.OwnerID, &u.LeaveType, &policyID, &amount, &unit,
		&from, &to, &u.Status, &u.Reason, &grantID, &u.Version, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	u.PolicyID = ledger.PolicyID(policyID.String)
	u.GrantID = ledger.GrantID(grantID.String)
	if u.Amount, err = parseAmount(amount, unit); err != nil {
		return nil, fmt.Errorf("usage %s: %w", u.ID, err)
	}
	if u.Window, err = scanWindow(from, to); err != nil {
		return nil, fmt.Errorf("usage %s: %w", u.ID, err)
	}
	u.CreatedAt = parseTime(createdAt)
	u.UpdatedAt = parseTime(updatedAt)
	return &u, nil
}

// =============================================================================
// DEDUCTIONS
// =============================================================================

func (r *repo) InsertDeductions(ctx context.Context, ds []ledger.DeductionRecord) error {
	for _, d := range ds {
		if !d.Amount.IsPositive() {
			return fmt.Errorf("%w: deduction %s", ledger.ErrInvalidAmount, d.ID)
		}
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO deductions (id, usage_id, grant_id, amount_value, unit, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, d.ID, d.UsageID, d.GrantID, d.Amount.Value.String(), d.Amount.Unit, formatTime(d.CreatedAt))
		if err != nil {
			return fmt.Errorf("failed to insert deduction %s: %w", d.ID, err)
		}
	}
	return nil
}

func (r *repo) ListDeductionsByUsage(ctx context.Context, id ledger.UsageID) ([]ledger.DeductionRecord, error) {
	return r.queryDeductions(ctx, `WHERE usage_id = ?`, id)
}

func (r *repo) ListDeductionsByGrant(ctx context.Context, id ledger.GrantID) ([]ledger.DeductionRecord, error) {
	return r.queryDeductions(ctx, `WHERE grant_id = ?`, id)
}

func (r *repo) queryDeductions(ctx context.Context, where string, arg any) ([]ledger.DeductionRecord, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, usage_id, grant_id, amount_value, unit, created_at
		FROM deductions `+where+`
		ORDER BY created_at, id
	`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ledger.DeductionRecord
	for rows.Next() {
		var (
			d                       ledger.DeductionRecord
			amount, unit, createdAt string
		)
		if err := rows.Scan(&d.ID, &d.UsageID, &d.GrantID, &amount, &unit, &createdAt); err != nil {
			return nil, err
		}
		if d.Amount, err = parseAmount(amount, unit); err != nil {
			return nil, fmt.Errorf("deduction %s: %w", d.ID, err)
		}
		d.CreatedAt = parseTime(createdAt)
		result = append(result, d)
	}
	return result, rows.Err()
}

func (r *repo) DeleteDeductionsByUsage(ctx context.Context, id ledger.UsageID) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM deductions WHERE usage_id = ?`, id)
	return err
}

// =============================================================================
// APPROVAL STEPS
// =============================================================================

func (r *repo) InsertApprovalSteps(ctx context.Context, steps []ledger.ApprovalStep) error {
	for _, step := range steps {
		var decidedAt sql.NullString
		if step.DecidedAt != nil {
			decidedAt = sql.NullString{String: formatTime(*step.DecidedAt), Valid: true}
		}
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO approval_steps (id, usage_id, grant_id, sequence, approver_id, decision, decided_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, step.ID, step.UsageID, nullString(string(step.GrantID)), step.Sequence,
			step.ApproverID, step.Decision, decidedAt)
		if err != nil {
			return fmt.Errorf("failed to insert approval step %s: %w", step.ID, err)
		}
	}
	return nil
}

func (r *repo) ListApprovalSteps(ctx context.Context, id ledger.UsageID) ([]ledger.ApprovalStep, error) {
	return r.querySteps(ctx, `WHERE usage_id = ? ORDER BY sequence`, id)
}

func (r *repo) ListPendingStepsByApprover(ctx context.Context, approver ledger.OwnerID) ([]ledger.ApprovalStep, error) {
	return r.querySteps(ctx, `WHERE approver_id = ? AND decision = 'PENDING' ORDER BY usage_id, sequence`, approver)
}

func (r *repo) DecideApprovalStep(ctx context.Context, id ledger.StepID, d ledger.Decision, at time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE approval_steps SET decision = ?, decided_at = ?
		WHERE id = ? AND decision = 'PENDING'
	`, d, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("failed to decide approval step %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: step %s", ledger.ErrApprovalNotPending, id)
	}
	return nil
}

func (r *repo) querySteps(ctx context.Context, where string, arg any) ([]ledger.ApprovalStep, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, usage_id, grant_id, sequence, approver_id, decision, decided_at
		FROM approval_steps `+where, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []ledger.ApprovalStep
	for rows.Next() {
		var (
			step      ledger.ApprovalStep
			grantID   sql.NullString
			decidedAt sql.NullString
		)
		if err := rows.Scan(&step.ID, &step.UsageID, &grantID, &step.Sequence,
			&step.ApproverID, &step.Decision, &decidedAt); err != nil {
			return nil, err
		}
		step.GrantID = ledger.GrantID(grantID.String)
		if decidedAt.Valid {
			t := parseTime(decidedAt.String)
			step.DecidedAt = &t
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}
