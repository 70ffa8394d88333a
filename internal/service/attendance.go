package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"infinitetms/internal/apperr"
	"infinitetms/internal/auth"
	"infinitetms/internal/models"
	"infinitetms/internal/repository"
)

const earthRadiusMeters = 6371000.0

type Office struct {
	Lat          float64
	Lng          float64
	RadiusMeters float64
}

// OutsideOfficeError rejects a check-in made too far from the office.
type OutsideOfficeError struct {
	Distance float64
	Radius   float64
}

func (e *OutsideOfficeError) Error() string {
	return fmt.Sprintf("You are %.0f meters away from the office. Please be within %.0f meters to mark attendance.", e.Distance, e.Radius)
}

func (e *OutsideOfficeError) Unwrap() error { return apperr.ErrForbidden }

// Distance is the great-circle distance in meters between two points.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	rad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := rad(lat2 - lat1)
	dLng := rad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

type MarkResult struct {
	Message    string             `json:"message"`
	Action     string             `json:"action"`
	Distance   float64            `json:"distance"`
	Attendance *models.Attendance `json:"attendance"`
}

type AttendanceService struct {
	repo   repository.AttendanceRepository
	office Office
	audit  *Auditor
	now    func() time.Time
}

func NewAttendanceService(repo repository.AttendanceRepository, office Office, audit *Auditor) *AttendanceService {
	return &AttendanceService{repo: repo, office: office, audit: audit, now: time.Now}
}

// Mark records the first call of the day as check-in and the second as
// check-out. Both must come from within the office radius.
func (s *AttendanceService) Mark(ctx context.Context, userID int64, lat, lng float64) (*MarkResult, error) {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, apperr.Validation("latitude and longitude are out of range")
	}
	dist := Distance(lat, lng, s.office.Lat, s.office.Lng)
	if dist > s.office.RadiusMeters {
		return nil, &OutsideOfficeError{Distance: dist, Radius: s.office.RadiusMeters}
	}

	now := s.now()
	date := now.Format(time.DateOnly)
	rec, err := s.repo.FindByUserDate(ctx, userID, date)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		rec = &models.Attendance{UserID: userID, Date: date}
	case err != nil:
		return nil, err
	}

	res := &MarkResult{Distance: math.Round(dist*100) / 100, Attendance: rec}
	switch {
	case rec.CheckInAt == nil:
		rec.CheckInAt = &now
		rec.Status = "Present"
		rec.LocationVerified = true
		res.Action, res.Message = "check-in", "Checked in successfully."
	case rec.CheckOutAt == nil:
		rec.CheckOutAt = &now
		res.Action, res.Message = "check-out", "Checked out successfully."
	default:
		return nil, apperr.Validation("Already checked out for today.")
	}
	if err := s.repo.Save(ctx, rec); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, userID, "attendance."+res.Action, map[string]any{"date": date})
	return res, nil
}

func (s *AttendanceService) History(ctx context.Context, actor auth.Claims, userID *int64) ([]models.Attendance, error) {
	scope, err := ownerScope(actor, userID)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, scope)
}

// ownerScope resolves which user's records a listing may show. Administrators
// see everyone (nil) or the requested user; others only themselves.
func ownerScope(actor auth.Claims, requested *int64) (*int64, error) {
	if auth.CanAdministerUsers(actor.Role) {
		return requested, nil
	}
	if requested != nil && *requested != actor.UserID {
		return nil, apperr.Forbidden("you can only view your own records")
	}
	self := actor.UserID
	return &self, nil
}
