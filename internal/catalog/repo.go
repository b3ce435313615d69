// Package catalog is a read-only view over pianos and courses used for pricing.
package catalog

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-piano-orders/internal/postgres"
	"github.com/jackc/pgx/v5"
)

var ErrNotFound = errors.New("product not found")

type Piano struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	PricePerDay int64  `json:"price_per_day"`
	SalePrice   int64  `json:"sale_price"` // 0 = no explicit sale price
}

type Course struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Price     int64  `json:"price"`
	TeacherID string `json:"teacher_id"`
}

type Repo struct{ DB postgres.DB }

func (r *Repo) Piano(ctx context.Context, id int64) (Piano, error) {
	var p Piano
	err := r.DB.QueryRow(ctx, `SELECT id, name, price_per_day, sale_price FROM pianos WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.PricePerDay, &p.SalePrice)
	if errors.Is(err, pgx.ErrNoRows) {
		return Piano{}, ErrNotFound
	}
	return p, err
}

func (r *Repo) Course(ctx context.Context, id int64) (Course, error) {
	var c Course
	err := r.DB.QueryRow(ctx, `SELECT id, title, price, teacher_id FROM courses WHERE id = $1`, id).
		Scan(&c.ID, &c.Title, &c.Price, &c.TeacherID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Course{}, ErrNotFound
	}
	return c, err
}
