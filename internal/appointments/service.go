package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/turnoslabs/turnosbot/internal/availability"
	"github.com/turnoslabs/turnosbot/internal/datetext"
	"github.com/turnoslabs/turnosbot/internal/notifications"
	"github.com/turnoslabs/turnosbot/internal/professionals"
	"github.com/turnoslabs/turnosbot/internal/schedule"
	"github.com/turnoslabs/turnosbot/pkg/logging"
)

const dateLayout = "2006-01-02"

// ErrNoProfessionalFree means every active professional already has a
// booking at the requested slot.
var ErrNoProfessionalFree = errors.New("appointments: no professional free at slot")

// Notifier enqueues a message for later delivery. Failures to enqueue are
// logged, never fatal to the booking.
type Notifier interface {
	Enqueue(ctx context.Context, recipient, message, kind string) error
}

// ScheduleSource provides the weekly configuration and blocked dates.
type ScheduleSource interface {
	GetDocument(ctx context.Context) (*schedule.Document, error)
	BlockedDates(ctx context.Context, today time.Time) (map[string]struct{}, error)
	BlockDate(ctx context.Context, date string) error
	UnblockDate(ctx context.Context, date string) error
}

// ProfessionalSource provides professional lookups for capacity decisions.
type ProfessionalSource interface {
	ListActive(ctx context.Context) ([]professionals.Professional, error)
	FreeAt(ctx context.Context, date, timeStr string) ([]professionals.Professional, error)
	Get(ctx context.Context, id uuid.UUID) (*professionals.Professional, error)
}

// Service is the single place appointment availability and booking run
// through; the bot, the admin API and tests all call it.
type Service struct {
	repo       *Repository
	pros       ProfessionalSource
	sched      ScheduleSource
	notifier   Notifier
	logger     *logging.Logger
	now        func() time.Time
	adminPhone string
}

// NewService wires the booking service.
func NewService(repo *Repository, pros ProfessionalSource, sched ScheduleSource, notifier Notifier, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:     repo,
		pros:     pros,
		sched:    sched,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock injects a deterministic clock for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// WithAdminPhone enables admin notifications for bookings and
// customer-initiated cancellations.
func (s *Service) WithAdminPhone(phone string) *Service {
	s.adminPhone = phone
	return s
}

// BookingRequest is what the conversation (or admin) submits.
type BookingRequest struct {
	CustomerName   string
	Date           string
	Time           string
	Phone          string
	ProfessionalID *uuid.UUID
}

// AvailableTimes computes the bookable times for a date.
//
// When professionalID is set only that professional's occupancy matters.
// Otherwise a time stays available while at least one active professional
// is free; with no professionals configured the whole slot is one unit of
// capacity.
func (s *Service) AvailableTimes(ctx context.Context, date string, professionalID *uuid.UUID) ([]string, error) {
	doc, err := s.sched.GetDocument(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	blocked, err := s.sched.BlockedDates(ctx, now)
	if err != nil {
		return nil, err
	}

	req := availability.Request{
		Date:     date,
		Schedule: doc.Weekly(),
		Blocked:  blocked,
		Now:      now,
	}

	if professionalID != nil {
		req.Occupied, err = s.repo.OccupiedTimes(ctx, date, professionalID)
		if err != nil {
			return nil, err
		}
		return availability.ListSlots(req), nil
	}

	active, err := s.pros.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		req.Occupied, err = s.repo.OccupiedTimes(ctx, date, nil)
		if err != nil {
			return nil, err
		}
		return availability.ListSlots(req), nil
	}

	counts, err := s.repo.BookedCountsByTime(ctx, date)
	if err != nil {
		return nil, err
	}
	free := make(map[string]int, len(counts))
	for t, booked := range counts {
		free[t] = len(active) - booked
	}
	req.FreeProfessionals = free
	return availability.ListSlots(req), nil
}

// FreeProfessionalsAt lists professionals still free at a slot.
func (s *Service) FreeProfessionalsAt(ctx context.Context, date, timeStr string) ([]professionals.Professional, error) {
	return s.pros.FreeAt(ctx, date, timeStr)
}

// ActiveProfessionals lists the bookable professionals.
func (s *Service) ActiveProfessionals(ctx context.Context) ([]professionals.Professional, error) {
	return s.pros.ListActive(ctx)
}

// Book creates an appointment. With no specific professional requested and
// professionals configured, the first free one in menu order is assigned
// here, at booking time, never earlier. ErrSlotTaken and
// ErrNoProfessionalFree are user-visible conflicts, not faults.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	professionalID := req.ProfessionalID
	professionalName := ""

	if professionalID == nil {
		active, err := s.pros.ListActive(ctx)
		if err != nil {
			return nil, err
		}
		if len(active) > 0 {
			free, err := s.pros.FreeAt(ctx, req.Date, req.Time)
			if err != nil {
				return nil, err
			}
			if len(free) == 0 {
				return nil, ErrNoProfessionalFree
			}
			professionalID = &free[0].ID
			professionalName = free[0].Name
		}
	} else {
		p, err := s.pros.Get(ctx, *professionalID)
		if err == nil {
			professionalName = p.Name
		}
	}

	appt, err := s.repo.Create(ctx, Appointment{
		CustomerName:   req.CustomerName,
		Date:           req.Date,
		Time:           req.Time,
		Phone:          req.Phone,
		ProfessionalID: professionalID,
	})
	if err != nil {
		return nil, err
	}
	appt.ProfessionalName = professionalName

	s.notifyAdmin(ctx, fmt.Sprintf("Nuevo turno: %s el %s (tel %s)",
		appt.CustomerName, datetext.FormatHuman(appt.Date, appt.Time), appt.Phone),
		notifications.KindBookingCreated)
	return appt, nil
}

// CancelByCustomer removes a customer's own appointment.
func (s *Service) CancelByCustomer(ctx context.Context, id uuid.UUID, phone string) (*Appointment, error) {
	appt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Phone != phone {
		return nil, ErrNotFound
	}
	if err := s.repo.DeleteByIDAndPhone(ctx, id, phone); err != nil {
		return nil, err
	}

	s.notifyAdmin(ctx, fmt.Sprintf("Turno cancelado por el cliente: %s el %s",
		appt.CustomerName, datetext.FormatHuman(appt.Date, appt.Time)),
		notifications.KindBookingCancelled)
	return appt, nil
}

// AdminDelete removes any appointment and queues a notice to the customer.
func (s *Service) AdminDelete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return nil, err
	}

	s.enqueue(ctx, appt.Phone, fmt.Sprintf(
		"Hola %s, lamentamos informarte que tu turno del %s fue cancelado. Escribe *hola* para reservar otro.",
		appt.CustomerName, datetext.FormatHuman(appt.Date, appt.Time)),
		notifications.KindBookingCancelled)
	return appt, nil
}

// BlockDate closes a date and queues a notice to every customer booked on
// it. Returns how many customers were notified.
func (s *Service) BlockDate(ctx context.Context, date string) (int, error) {
	if err := s.sched.BlockDate(ctx, date); err != nil {
		return 0, err
	}
	affected, err := s.repo.ListByDate(ctx, date)
	if err != nil {
		return 0, err
	}
	for _, appt := range affected {
		s.enqueue(ctx, appt.Phone, fmt.Sprintf(
			"Hola %s, el día %s fue bloqueado y tu turno de las %s quedó cancelado. Escribe *hola* para reservar otro.",
			appt.CustomerName, datetext.FormatHuman(appt.Date, ""), appt.Time),
			notifications.KindDayBlocked)
	}
	return len(affected), nil
}

// UnblockDate reopens a date.
func (s *Service) UnblockDate(ctx context.Context, date string) error {
	return s.sched.UnblockDate(ctx, date)
}

// UpcomingForPhone lists a customer's appointments from today on.
func (s *Service) UpcomingForPhone(ctx context.Context, phone string) ([]Appointment, error) {
	return s.repo.ListUpcomingByPhone(ctx, phone, s.now().Format(dateLayout))
}

// Week lists appointments for the seven days starting today.
func (s *Service) Week(ctx context.Context) ([]Appointment, error) {
	today := s.now()
	from := today.Format(dateLayout)
	to := today.AddDate(0, 0, 6).Format(dateLayout)
	return s.repo.ListBetween(ctx, from, to)
}

// ListByDate lists appointments on one date.
func (s *Service) ListByDate(ctx context.Context, date string) ([]Appointment, error) {
	return s.repo.ListByDate(ctx, date)
}

func (s *Service) notifyAdmin(ctx context.Context, message, kind string) {
	if s.adminPhone == "" {
		return
	}
	s.enqueue(ctx, s.adminPhone, message, kind)
}

func (s *Service) enqueue(ctx context.Context, recipient, message, kind string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Enqueue(ctx, recipient, message, kind); err != nil {
		s.logger.Error("failed to enqueue notification", "error", err, "kind", kind)
	}
}
