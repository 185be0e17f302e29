package notification

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AudienceResolver produces the recipient ids for one dispatch. Duplicates
// are allowed; the dispatcher removes them.
type AudienceResolver interface {
	Resolve(ctx context.Context) ([]string, error)
}

// AudienceFunc adapts a function to AudienceResolver.
type AudienceFunc func(ctx context.Context) ([]string, error)

// Resolve calls f.
func (f AudienceFunc) Resolve(ctx context.Context) ([]string, error) {
	return f(ctx)
}

// StaticAudience resolves to the given ids.
func StaticAudience(ids ...string) AudienceResolver {
	out := append([]string(nil), ids...)
	return AudienceFunc(func(context.Context) ([]string, error) {
		return out, nil
	})
}

// UnionAudience concatenates several resolvers in order.
func UnionAudience(resolvers ...AudienceResolver) AudienceResolver {
	return AudienceFunc(func(ctx context.Context) ([]string, error) {
		var out []string
		for _, r := range resolvers {
			ids, err := r.Resolve(ctx)
			if err != nil {
				return nil, err
			}
			out = append(out, ids...)
		}
		return out, nil
	})
}

// ClassRoster lists the students actively enrolled in a class.
type ClassRoster interface {
	ActiveStudents(ctx context.Context, classID string) ([]string, error)
}

// ClassAudience resolves to the active students of classID.
func ClassAudience(roster ClassRoster, classID string) AudienceResolver {
	return AudienceFunc(func(ctx context.Context) ([]string, error) {
		return roster.ActiveStudents(ctx, classID)
	})
}

// PostgresRoster reads the platform enrollments table.
type PostgresRoster struct {
	pool *pgxpool.Pool
}

// NewPostgresRoster creates a roster over pool.
func NewPostgresRoster(pool *pgxpool.Pool) *PostgresRoster {
	return &PostgresRoster{pool: pool}
}

// ActiveStudents returns student ids with an ACTIVE enrollment in classID.
func (r *PostgresRoster) ActiveStudents(ctx context.Context, classID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT student_id
		FROM enrollments
		WHERE class_id = $1 AND status = 'ACTIVE'
		ORDER BY enrolled_at, student_id`,
		classID,
	)
	if err != nil {
		return nil, fmt.Errorf("query enrollments for class %s: %w", classID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
