package payout

import (
	"context"
	"github.com/ariefcatur/go-piano-orders/internal/postgres"
)

type EnrollmentRepo struct{ DB postgres.DB }

func (r *EnrollmentRepo) Enroll(ctx context.Context, userID string, courseID, orderID int64) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO enrollments (user_id, course_id, order_id) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, course_id) DO NOTHING`, userID, courseID, orderID)
	return err
}
