// Package profiles looks up roles and contact details for users.
package profiles

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-piano-orders/internal/postgres"
	"github.com/jackc/pgx/v5"
)

var ErrNotFound = errors.New("profile not found")

const RoleAdmin = "admin"

type Profile struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type Repo struct{ DB postgres.DB }

func (r *Repo) Get(ctx context.Context, id string) (Profile, error) {
	var p Profile
	err := r.DB.QueryRow(ctx, `SELECT id, email, full_name, role FROM profiles WHERE id = $1`, id).
		Scan(&p.ID, &p.Email, &p.FullName, &p.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	return p, err
}

func (r *Repo) IsAdmin(ctx context.Context, id string) (bool, error) {
	p, err := r.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.Role == RoleAdmin, nil
}

// Admins is ordered by creation so the first admin is stable.
func (r *Repo) Admins(ctx context.Context) ([]Profile, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, email, full_name, role FROM profiles
		WHERE role = $1 ORDER BY created_at, id`, RoleAdmin)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.Email, &p.FullName, &p.Role); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
