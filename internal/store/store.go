package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	ErrResumeNotFound = errors.New("resume not found")
	ErrJobNotFound    = errors.New("job description not found")
)

// Store wraps the postgres connection for resume and job persistence.
type Store struct {
	DB *sql.DB
}

// New opens a postgres connection and verifies it.
func New(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{DB: db}, nil
}

// ResumeRecord is a stored candidate profile.
type ResumeRecord struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	Skills     []string  `json:"skills"`
	Experience string    `json:"experience"`
	Education  string    `json:"education"`
	Summary    string    `json:"summary"`
	CreatedAt  time.Time `json:"created_at"`
}

// Desensitized strips the fields that identify the candidate. The recruiter
// side of a negotiation only ever sees this view.
func (r ResumeRecord) Desensitized() ResumeRecord {
	r.Name = "Candidate"
	r.Email = ""
	r.Phone = ""
	return r
}

// JobRecord is a stored job description.
type JobRecord struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Company      string    `json:"company"`
	Location     string    `json:"location"`
	SalaryRange  string    `json:"salary_range"`
	Requirements []string  `json:"requirements"`
	Description  string    `json:"description"`
	Benefits     string    `json:"benefits"`
	CreatedAt    time.Time `json:"created_at"`
}

// Desensitized strips the fields that identify the employer. The candidate
// side of a negotiation only ever sees this view.
func (j JobRecord) Desensitized() JobRecord {
	j.Company = "A hiring company"
	j.SalaryRange = ""
	return j
}

func (s *Store) CreateResume(ctx context.Context, rec ResumeRecord) (ResumeRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO resumes (id, name, email, phone, skills, experience, education, summary, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW())
RETURNING created_at
`, rec.ID, rec.Name, rec.Email, rec.Phone, pq.Array(rec.Skills), rec.Experience, rec.Education, rec.Summary).Scan(&rec.CreatedAt)
	if err != nil {
		return ResumeRecord{}, fmt.Errorf("create resume: %w", err)
	}
	return rec, nil
}

func (s *Store) GetResume(ctx context.Context, id string) (ResumeRecord, error) {
	var rec ResumeRecord
	var skills pq.StringArray
	err := s.DB.QueryRowContext(ctx, `
SELECT id, name, email, phone, skills, experience, education, summary, created_at
FROM resumes
WHERE id=$1
`, id).Scan(&rec.ID, &rec.Name, &rec.Email, &rec.Phone, &skills, &rec.Experience, &rec.Education, &rec.Summary, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ResumeRecord{}, ErrResumeNotFound
	}
	if err != nil {
		return ResumeRecord{}, fmt.Errorf("get resume: %w", err)
	}
	rec.Skills = skills
	return rec, nil
}

func (s *Store) ListResumes(ctx context.Context) ([]ResumeRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, name, email, phone, skills, experience, education, summary, created_at
FROM resumes
ORDER BY created_at DESC
`)
	if err != nil {
		return nil, fmt.Errorf("list resumes: %w", err)
	}
	defer rows.Close()

	var out []ResumeRecord
	for rows.Next() {
		var rec ResumeRecord
		var skills pq.StringArray
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Email, &rec.Phone, &skills, &rec.Experience, &rec.Education, &rec.Summary, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan resume: %w", err)
		}
		rec.Skills = skills
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) DeleteResume(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM resumes WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete resume: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrResumeNotFound
	}
	return nil
}

func (s *Store) CreateJob(ctx context.Context, rec JobRecord) (JobRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO jobs (id, title, company, location, salary_range, requirements, description, benefits, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW())
RETURNING created_at
`, rec.ID, rec.Title, rec.Company, rec.Location, rec.SalaryRange, pq.Array(rec.Requirements), rec.Description, rec.Benefits).Scan(&rec.CreatedAt)
	if err != nil {
		return JobRecord{}, fmt.Errorf("create job: %w", err)
	}
	return rec, nil
}

func (s *Store) GetJob(ctx context.Context, id string) (JobRecord, error) {
	var rec JobRecord
	var reqs pq.StringArray
	err := s.DB.QueryRowContext(ctx, `
SELECT id, title, company, location, salary_range, requirements, description, benefits, created_at
FROM jobs
WHERE id=$1
`, id).Scan(&rec.ID, &rec.Title, &rec.Company, &rec.Location, &rec.SalaryRange, &reqs, &rec.Description, &rec.Benefits, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return JobRecord{}, ErrJobNotFound
	}
	if err != nil {
		return JobRecord{}, fmt.Errorf("get job: %w", err)
	}
	rec.Requirements = reqs
	return rec, nil
}

func (s *Store) ListJobs(ctx context.Context) ([]JobRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, title, company, location, salary_range, requirements, description, benefits, created_at
FROM jobs
ORDER BY created_at DESC
`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []JobRecord
	for rows.Next() {
		var rec JobRecord
		var reqs pq.StringArray
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Company, &rec.Location, &rec.SalaryRange, &reqs, &rec.Description, &rec.Benefits, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		rec.Requirements = reqs
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) DeleteJob(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM jobs WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrJobNotFound
	}
	return nil
}
