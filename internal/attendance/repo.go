package attendance

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository persists attendance data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetStudent returns ErrNotFound for unknown admission numbers.
func (r *Repository) GetStudent(ctx context.Context, admissionNo string) (Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT admission_no, name, class_name FROM students WHERE admission_no = $1
	`, admissionNo)
	var s Student
	if err := row.Scan(&s.AdmissionNo, &s.Name, &s.ClassName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Student{}, ErrNotFound
		}
		return Student{}, err
	}
	return s, nil
}

// CreateStudent inserts a student; duplicates return ErrAlreadyExists.
func (r *Repository) CreateStudent(ctx context.Context, s Student) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO students (admission_no, name, class_name)
		VALUES ($1, $2, $3)
	`, s.AdmissionNo, s.Name, s.ClassName)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAlreadyExists
	}
	return err
}

// ListStudents returns every student ordered by admission number.
func (r *Repository) ListStudents(ctx context.Context) ([]Student, error) {
	return r.queryStudents(ctx, `SELECT admission_no, name, class_name FROM students ORDER BY admission_no`)
}

// ClassStudents returns the students of one class.
func (r *Repository) ClassStudents(ctx context.Context, className string) ([]Student, error) {
	return r.queryStudents(ctx, `
		SELECT admission_no, name, class_name FROM students
		WHERE class_name = $1
		ORDER BY admission_no
	`, className)
}

func (r *Repository) queryStudents(ctx context.Context, query string, args ...any) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []Student{}
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.AdmissionNo, &s.Name, &s.ClassName); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// UpsertRecord writes the record for its (admission_no, date, session) slot.
func (r *Repository) UpsertRecord(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, admission_no, date, session, status, source, marked_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (admission_no, date, session) DO UPDATE SET
			status = EXCLUDED.status,
			source = EXCLUDED.source,
			marked_by = EXCLUDED.marked_by,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`, rec.ID, rec.AdmissionNo, rec.Date, string(rec.Session), string(rec.Status), string(rec.Source), rec.MarkedBy)
	if err := row.Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return Record{}, err
	}
	return rec, nil
}

const recordColumns = `ar.id, ar.admission_no, to_char(ar.date, 'YYYY-MM-DD'), ar.session, ar.status, ar.source, ar.marked_by, ar.created_at, ar.updated_at`

// StudentRecords returns the student's records, newest first.
func (r *Repository) StudentRecords(ctx context.Context, admissionNo string) ([]Record, error) {
	return r.queryRecords(ctx, `
		SELECT `+recordColumns+`
		FROM attendance_records ar
		WHERE ar.admission_no = $1
		ORDER BY ar.date DESC, ar.session = 'evening' DESC
	`, admissionNo)
}

// ClassRecords returns every record of a class on date.
func (r *Repository) ClassRecords(ctx context.Context, className, date string) ([]Record, error) {
	return r.queryRecords(ctx, `
		SELECT `+recordColumns+`
		FROM attendance_records ar
		JOIN students s ON s.admission_no = ar.admission_no
		WHERE s.class_name = $1 AND ar.date = $2
		ORDER BY ar.admission_no, ar.session
	`, className, date)
}

func (r *Repository) queryRecords(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []Record{}
	for rows.Next() {
		var rec Record
		var session, status, source string
		if err := rows.Scan(&rec.ID, &rec.AdmissionNo, &rec.Date, &session, &status, &source, &rec.MarkedBy, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.Session, rec.Status, rec.Source = Session(session), Status(status), Source(source)
		res = append(res, rec)
	}
	return res, rows.Err()
}
