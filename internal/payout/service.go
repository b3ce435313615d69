// Package payout applies what an approved order is worth: course enrollment
// and wallet credits for the teacher and the platform.
package payout

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-piano-orders/internal/catalog"
	"github.com/ariefcatur/go-piano-orders/internal/orders"
	"github.com/ariefcatur/go-piano-orders/internal/wallet"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"strconv"
)

type Crediter interface {
	Credit(ctx context.Context, userID string, amount int64, refType, refID, note string) (wallet.Entry, error)
}

type Courses interface {
	Course(ctx context.Context, id int64) (catalog.Course, error)
}

type Enrollments interface {
	// Enroll is a no-op when the user already has the course.
	Enroll(ctx context.Context, userID string, courseID, orderID int64) error
}

type Service struct {
	Wallet         Crediter
	Courses        Courses
	Enrollments    Enrollments
	PlatformUserID string
	TeacherShare   decimal.Decimal
}

// Apply is safe to repeat: enrollment and credits are keyed by order id.
func (s *Service) Apply(ctx context.Context, o orders.Order) error {
	if o.Status != orders.StatusApproved {
		return fmt.Errorf("order %d is %s, not approved", o.ID, o.Status)
	}
	if o.Type == orders.TypeCourse {
		return s.applyCourse(ctx, o)
	}
	return s.credit(ctx, s.PlatformUserID, o.TotalPrice, wallet.RefOrder, o, "order "+o.PaymentCode())
}

func (s *Service) applyCourse(ctx context.Context, o orders.Order) error {
	if o.CourseID == nil {
		return fmt.Errorf("course order %d has no course", o.ID)
	}
	c, err := s.Courses.Course(ctx, *o.CourseID)
	if err != nil {
		return fmt.Errorf("load course %d: %w", *o.CourseID, err)
	}
	if err := s.Enrollments.Enroll(ctx, o.BuyerID, c.ID, o.ID); err != nil {
		return fmt.Errorf("enroll: %w", err)
	}

	teacher, platform := Split(o.TotalPrice, s.TeacherShare)
	note := fmt.Sprintf("course %q order %s", c.Title, o.PaymentCode())
	if err := s.credit(ctx, c.TeacherID, teacher, wallet.RefOrderTeacherShare, o, note); err != nil {
		return err
	}
	return s.credit(ctx, s.PlatformUserID, platform, wallet.RefOrderPlatformShare, o, note)
}

func (s *Service) credit(ctx context.Context, userID string, amount int64, refType string, o orders.Order, note string) error {
	if amount <= 0 {
		return nil
	}
	if userID == "" {
		return fmt.Errorf("no wallet owner for %s of order %d", refType, o.ID)
	}
	_, err := s.Wallet.Credit(ctx, userID, amount, refType, strconv.FormatInt(o.ID, 10), note)
	if errors.Is(err, wallet.ErrDuplicateEntry) {
		zap.L().Info("payout already credited",
			zap.Int64("order_id", o.ID), zap.String("user_id", userID), zap.String("reference_type", refType))
		return nil
	}
	return err
}

// Split gives the teacher round-half-up(total × share) and the platform the rest.
func Split(total int64, share decimal.Decimal) (teacher, platform int64) {
	teacher = decimal.NewFromInt(total).Mul(share).Round(0).IntPart()
	if teacher > total {
		teacher = total
	}
	return teacher, total - teacher
}
