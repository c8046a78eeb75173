package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-earnings-api/internal/models"
)

// EarningsRepository is the only reader of the bulk roster and payment ledger tables.
type EarningsRepository struct {
	db *sqlx.DB
}

// NewEarningsRepository instantiates the repository.
func NewEarningsRepository(db *sqlx.DB) *EarningsRepository {
	return &EarningsRepository{db: db}
}

// SQL renditions of the counting rules. Each takes the table alias it applies to.

func activeSQL(alias string) string {
	return fmt.Sprintf("%s.status = %s", alias, quote(models.StudentStatusActive))
}

func statusSQL(alias, status string) string {
	return fmt.Sprintf("%s.status = %s", alias, quote(status))
}

func payingSQL(alias string) string {
	return fmt.Sprintf("(%[1]s.package IS NULL OR %[1]s.package NOT IN (%[2]s))", alias, quoteList(models.FreePackages))
}

func qualifyingPaymentSQL(alias string) string {
	return fmt.Sprintf("(LOWER(%[1]s.payment_status) IN ('paid', 'complete', 'success') OR %[1]s.is_free_month = true)", alias)
}

func inWindowSQL(column string, startArg, endArg int) string {
	return fmt.Sprintf("%[1]s IS NOT NULL AND %[1]s >= $%[2]d AND %[1]s < $%[3]d", column, startArg, endArg)
}

func linkedSQL(alias string) string {
	return fmt.Sprintf("%[1]s.status IN (%[2]s, %[3]s) AND %[1]s.chat_id IS NOT NULL AND TRIM(%[1]s.chat_id) <> ''",
		alias, quote(models.StudentStatusActive), quote(models.StudentStatusNotYet))
}

func controllerMatchSQL(column string, arg int) string {
	return fmt.Sprintf("LOWER(TRIM(%s)) = LOWER(TRIM($%d))", column, arg)
}

// LoadAggregates runs one grouped query for the month window and returns the raw
// per-controller counts. Grouping is always by controller code.
func (r *EarningsRepository) LoadAggregates(ctx context.Context, window models.MonthWindow, schoolID, controllerID string) ([]models.RawAggregateRow, error) {
	args := []interface{}{window.YearMonth, window.Start, window.End}
	const monthArg, startArg, endArg = 1, 2, 3

	schoolArg := 0
	if schoolID != "" {
		args = append(args, schoolID)
		schoolArg = len(args)
	}
	controllerArg := 0
	if controllerID != "" {
		args = append(args, controllerID)
		controllerArg = len(args)
	}

	paying := fmt.Sprintf("%s AND %s", activeSQL("s"), payingSQL("s"))

	// A code may repeat across schools, so the name is looked up rather than joined.
	controllerName := "(SELECT MAX(c.name) FROM controllers c WHERE c.code = s.u_control"
	if schoolArg > 0 {
		controllerName += fmt.Sprintf(" AND c.school_id = $%d", schoolArg)
	}
	controllerName += ")"

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf(`WITH paid AS (
        SELECT DISTINCT m.studentid FROM months_table m
        WHERE m.month = $%d AND %s
        )
        SELECT s.u_control AS controller_code,
        %s AS controller_name,
        SUM(CASE WHEN %s THEN 1 ELSE 0 END) AS active_students,
        SUM(CASE WHEN %s THEN 1 ELSE 0 END) AS active_paying_students,
        SUM(CASE WHEN %s THEN 1 ELSE 0 END) AS not_yet_students,
        SUM(CASE WHEN %s AND %s THEN 1 ELSE 0 END) AS leave_students_this_month,
        SUM(CASE WHEN %s THEN 1 ELSE 0 END) AS ramadan_leave_students,
        SUM(CASE WHEN %s AND p.studentid IS NOT NULL THEN 1 ELSE 0 END) AS paid_this_month,
        SUM(CASE WHEN %s AND p.studentid IS NULL THEN 1 ELSE 0 END) AS unpaid_active_this_month,
        SUM(CASE WHEN %s THEN 1 ELSE 0 END) AS linked_students,
        `,
		monthArg, qualifyingPaymentSQL("m"),
		controllerName,
		activeSQL("s"),
		paying,
		statusSQL("s", models.StudentStatusNotYet),
		statusSQL("s", models.StudentStatusLeave), inWindowSQL("s.exitdate", startArg, endArg),
		statusSQL("s", models.StudentStatusRamadanLeave),
		paying,
		paying,
		linkedSQL("s"),
	))

	builder.WriteString(fmt.Sprintf(`(SELECT COUNT(*) FROM students r JOIN paid rp ON rp.studentid = r.id
        WHERE r.refer = s.u_control AND %s AND %s AND %s`,
		activeSQL("r"), payingSQL("r"), inWindowSQL("r.registrationdate", startArg, endArg)))
	if schoolArg > 0 {
		builder.WriteString(fmt.Sprintf(" AND r.school_id = $%d", schoolArg))
	}
	builder.WriteString(`) AS referenced_active_students
        FROM students s
        LEFT JOIN paid p ON p.studentid = s.id
        WHERE s.u_control IS NOT NULL AND TRIM(s.u_control) <> ''`)
	if schoolArg > 0 {
		builder.WriteString(fmt.Sprintf(" AND s.school_id = $%d", schoolArg))
	}
	if controllerArg > 0 {
		builder.WriteString(" AND " + controllerMatchSQL("s.u_control", controllerArg))
	}
	builder.WriteString(" GROUP BY s.u_control ORDER BY controller_name ASC NULLS LAST, s.u_control ASC")

	var rows []models.RawAggregateRow
	if err := r.db.SelectContext(ctx, &rows, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("query controller earnings aggregates %s: %w", window.YearMonth, err)
	}
	return rows, nil
}

// ListControllerStudents returns the controller's roster (status, exit date and package only).
func (r *EarningsRepository) ListControllerStudents(ctx context.Context, controllerID, schoolID string) ([]models.StudentRecord, error) {
	var builder strings.Builder
	builder.WriteString("SELECT s.id, s.status, s.package, s.exitdate, s.u_control FROM students s WHERE ")
	builder.WriteString(controllerMatchSQL("s.u_control", 1))
	args := []interface{}{controllerID}
	if schoolID != "" {
		args = append(args, schoolID)
		builder.WriteString(fmt.Sprintf(" AND s.school_id = $%d", len(args)))
	}
	builder.WriteString(" ORDER BY s.id ASC")

	var students []models.StudentRecord
	if err := r.db.SelectContext(ctx, &students, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list students for controller %s: %w", controllerID, err)
	}
	return students, nil
}

// ListControllerPayments returns ledger rows of the controller's students whose month
// matches the LIKE pattern (e.g. "2024-05" or "2024-%").
func (r *EarningsRepository) ListControllerPayments(ctx context.Context, controllerID, schoolID, monthPattern string) ([]models.PaymentMonthRecord, error) {
	var builder strings.Builder
	builder.WriteString(`SELECT m.studentid, m.month, m.payment_status, m.is_free_month
        FROM months_table m JOIN students s ON s.id = m.studentid WHERE `)
	builder.WriteString(controllerMatchSQL("s.u_control", 1))
	builder.WriteString(" AND m.month LIKE $2")
	args := []interface{}{controllerID, monthPattern}
	if schoolID != "" {
		args = append(args, schoolID)
		builder.WriteString(fmt.Sprintf(" AND s.school_id = $%d", len(args)))
	}
	builder.WriteString(" ORDER BY m.month ASC, m.studentid ASC")

	var payments []models.PaymentMonthRecord
	if err := r.db.SelectContext(ctx, &payments, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list payments for controller %s (%s): %w", controllerID, monthPattern, err)
	}
	return payments, nil
}

func quote(value string) string {
	return pq.QuoteLiteral(value)
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, value := range values {
		quoted[i] = quote(value)
	}
	return strings.Join(quoted, ", ")
}
