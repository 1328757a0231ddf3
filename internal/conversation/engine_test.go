package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turnoslabs/turnosbot/internal/appointments"
	"github.com/turnoslabs/turnosbot/internal/professionals"
)

// monday 2026-09-07 at 09:00, so every menu day is in the future.
var testNow = time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC)

type fakeBookingService struct {
	active    []professionals.Professional
	freeAt    []professionals.Professional
	times     []string
	upcoming  []appointments.Appointment
	bookErr   error
	booked    []appointments.BookingRequest
	cancelled []uuid.UUID
}

func (f *fakeBookingService) AvailableTimes(context.Context, string, *uuid.UUID) ([]string, error) {
	return f.times, nil
}

func (f *fakeBookingService) FreeProfessionalsAt(context.Context, string, string) ([]professionals.Professional, error) {
	return f.freeAt, nil
}

func (f *fakeBookingService) ActiveProfessionals(context.Context) ([]professionals.Professional, error) {
	return f.active, nil
}

func (f *fakeBookingService) Book(_ context.Context, req appointments.BookingRequest) (*appointments.Appointment, error) {
	if f.bookErr != nil {
		err := f.bookErr
		f.bookErr = nil
		return nil, err
	}
	f.booked = append(f.booked, req)
	name := ""
	if req.ProfessionalID != nil {
		for _, p := range f.active {
			if p.ID == *req.ProfessionalID {
				name = p.Name
			}
		}
	}
	return &appointments.Appointment{
		ID:               uuid.New(),
		CustomerName:     req.CustomerName,
		Date:             req.Date,
		Time:             req.Time,
		Phone:            req.Phone,
		ProfessionalID:   req.ProfessionalID,
		ProfessionalName: name,
	}, nil
}

func (f *fakeBookingService) CancelByCustomer(_ context.Context, id uuid.UUID, _ string) (*appointments.Appointment, error) {
	f.cancelled = append(f.cancelled, id)
	return &appointments.Appointment{ID: id}, nil
}

func (f *fakeBookingService) UpcomingForPhone(context.Context, string) ([]appointments.Appointment, error) {
	return f.upcoming, nil
}

type fakeBlocked struct{ dates map[string]struct{} }

func (f *fakeBlocked) BlockedDates(context.Context, time.Time) (map[string]struct{}, error) {
	if f.dates == nil {
		return map[string]struct{}{}, nil
	}
	return f.dates, nil
}

func newTestEngine(svc *fakeBookingService, blocked *fakeBlocked) *Engine {
	if blocked == nil {
		blocked = &fakeBlocked{}
	}
	return NewEngine(NewMemoryStore(), svc, blocked, nil).
		WithClock(func() time.Time { return testNow })
}

func TestGreetingShowsMenu(t *testing.T) {
	e := newTestEngine(&fakeBookingService{}, nil)
	reply := e.HandleMessage(context.Background(), "549111", "hola")
	assert.Contains(t, reply, "Bienvenido al sistema de turnos")
	assert.Contains(t, reply, "*1* - Reservar un turno")
}

func TestGlobalKeywordsRestartAnywhere(t *testing.T) {
	e := newTestEngine(&fakeBookingService{}, nil)
	ctx := context.Background()
	phone := "549111"

	e.HandleMessage(ctx, phone, "hola")
	e.HandleMessage(ctx, phone, "99") // invalid menu option, stays in menu
	reply := e.HandleMessage(ctx, phone, "menu")
	assert.Contains(t, reply, "Bienvenido")
}

func TestFullBookingFlowWithSpecificProfessional(t *testing.T) {
	laura := professionals.Professional{ID: uuid.New(), Name: "Laura"}
	marta := professionals.Professional{ID: uuid.New(), Name: "Marta"}
	svc := &fakeBookingService{
		active: []professionals.Professional{laura, marta},
		times:  []string{"10:00", "10:30", "11:00"},
	}
	e := newTestEngine(svc, nil)
	ctx := context.Background()
	phone := "549111"

	e.HandleMessage(ctx, phone, "hola")
	reply := e.HandleMessage(ctx, phone, "1")
	assert.Contains(t, reply, "Laura")
	assert.Contains(t, reply, "Cualquiera")

	reply = e.HandleMessage(ctx, phone, "1") // Laura
	assert.Contains(t, reply, "Has elegido a Laura")
	assert.Contains(t, reply, "¿Para qué día")

	reply = e.HandleMessage(ctx, phone, "2") // tomorrow
	assert.Contains(t, reply, "Horarios disponibles")
	assert.Contains(t, reply, "10:30")

	reply = e.HandleMessage(ctx, phone, "2") // 10:30
	assert.Contains(t, reply, "nombre completo")

	reply = e.HandleMessage(ctx, phone, "ana garcía")
	assert.Contains(t, reply, "Confirma tu turno")
	assert.Contains(t, reply, "Ana García")

	reply = e.HandleMessage(ctx, phone, "sí")
	assert.Contains(t, reply, "¡Turno confirmado!")

	require.Len(t, svc.booked, 1)
	assert.Equal(t, "Ana García", svc.booked[0].CustomerName)
	assert.Equal(t, "2026-09-08", svc.booked[0].Date)
	assert.Equal(t, "10:30", svc.booked[0].Time)
	require.NotNil(t, svc.booked[0].ProfessionalID)
	assert.Equal(t, laura.ID, *svc.booked[0].ProfessionalID)
}

func TestAnyProfessionalAsksWhenSeveralFree(t *testing.T) {
	laura := professionals.Professional{ID: uuid.New(), Name: "Laura"}
	marta := professionals.Professional{ID: uuid.New(), Name: "Marta"}
	svc := &fakeBookingService{
		active: []professionals.Professional{laura, marta},
		freeAt: []professionals.Professional{laura, marta},
		times:  []string{"10:00"},
	}
	e := newTestEngine(svc, nil)
	ctx := context.Background()
	phone := "549111"

	e.HandleMessage(ctx, phone, "hola")
	e.HandleMessage(ctx, phone, "1")
	e.HandleMessage(ctx, phone, "3") // Cualquiera (2 pros + 1)
	e.HandleMessage(ctx, phone, "1") // today
	reply := e.HandleMessage(ctx, phone, "1")
	assert.Contains(t, reply, "Profesionales disponibles")
	assert.Contains(t, reply, "Marta")

	reply = e.HandleMessage(ctx, phone, "2") // Marta
	assert.Contains(t, reply, "Has elegido a Marta")

	e.HandleMessage(ctx, phone, "Juan")
	e.HandleMessage(ctx, phone, "si")
	require.Len(t, svc.booked, 1)
	assert.Equal(t, marta.ID, *svc.booked[0].ProfessionalID)
}

func TestAnyProfessionalAutoAssignsSingleFree(t *testing.T) {
	laura := professionals.Professional{ID: uuid.New(), Name: "Laura"}
	svc := &fakeBookingService{
		active: []professionals.Professional{laura, {ID: uuid.New(), Name: "Marta"}},
		freeAt: []professionals.Professional{laura},
		times:  []string{"10:00"},
	}
	e := newTestEngine(svc, nil)
	ctx := context.Background()
	phone := "549111"

	e.HandleMessage(ctx, phone, "hola")
	e.HandleMessage(ctx, phone, "1")
	e.HandleMessage(ctx, phone, "3") // Cualquiera
	e.HandleMessage(ctx, phone, "1")
	reply := e.HandleMessage(ctx, phone, "1")
	assert.Contains(t, reply, "Profesional asignado:")
	assert.Contains(t, reply, "Laura")
	assert.Contains(t, reply, "nombre completo")
}

func TestNoProfessionalsConfiguredSkipsChoice(t *testing.T) {
	svc := &fakeBookingService{times: []string{"08:00", "08:30"}}
	e := newTestEngine(svc, nil)
	ctx := context.Background()
	phone := "549111"

	e.HandleMessage(ctx, phone, "hola")
	reply := e.HandleMessage(ctx, phone, "1")
	assert.Contains(t, reply, "¿Para qué día")

	e.HandleMessage(ctx, phone, "1")
	reply = e.HandleMessage(ctx, phone, "1")
	assert.Contains(t, reply, "nombre completo")

	e.HandleMessage(ctx, phone, "Ana")
	e.HandleMessage(ctx, phone, "si")
	require.Len(t, svc.booked, 1)
	assert.Nil(t, svc.booked[0].ProfessionalID)
}

func TestDayMenuSkipsSundaysAndBlocked(t *testing.T) {
	svc := &fakeBookingService{times: []string{"10:00"}}
	blocked := &fakeBlocked{dates: map[string]struct{}{
		"2026-09-13": {}, // the Sunday in the window
		"2026-09-09": {}, // a blocked Wednesday
	}}
	e := newTestEngine(svc, blocked)
	ctx := context.Background()
	phone := "549111"

	e.HandleMessage(ctx, phone, "hola")
	reply := e.HandleMessage(ctx, phone, "1")
	assert.Contains(t, reply, "Hoy (07/09)")
	assert.Contains(t, reply, "Mañana (08/09)")
	assert.NotContains(t, reply, "09/09")
	assert.NotContains(t, reply, "13/09")
	assert.Contains(t, reply, "Otra fecha")
}

func TestFreeTextDateWithinHorizon(t *testing.T) {
	svc := &fakeBookingService{times: []string{"10:00"}}
	e := newTestEngine(svc, nil)
	ctx := context.Background()
	phone := "549111"

	e.HandleMessage(ctx, phone, "hola")
	reply := e.HandleMessage(ctx, phone, "1")
	// Last option is "Otra fecha".
	e.HandleMessage(ctx, phone, "8")
	_ = reply

	reply = e.HandleMessage(ctx, phone, "25/12")
	assert.Contains(t, reply, "Solo puedes reservar turnos hasta 2 meses adelante.")

	reply = e.HandleMessage(ctx, phone, "20/09")
	assert.Contains(t, reply, "Horarios disponibles para 20/09/2026")
}

func TestInvalidInputReprompts(t *testing.T) {
	svc := &fakeBookingService{times: []string{"10:00", "10:30"}}
	e := newTestEngine(svc, nil)
	ctx := context.Background()
	phone := "549111"

	e.HandleMessage(ctx, phone, "hola")
	e.HandleMessage(ctx, phone, "1")
	e.HandleMessage(ctx, phone, "1")
	reply := e.HandleMessage(ctx, phone, "banana")
	assert.Contains(t, reply, "Por favor responde con un número del 1 al 2")

	// Progress is not lost: a valid choice still works.
	reply = e.HandleMessage(ctx, phone, "1")
	assert.Contains(t, reply, "nombre completo")
}

func TestSlotTakenAtConfirmReoffersTimes(t *testing.T) {
	svc := &fakeBookingService{
		times:   []string{"10:00", "10:30"},
		bookErr: appointments.ErrSlotTaken,
	}
	e := newTestEngine(svc, nil)
	ctx := context.Background()
	phone := "549111"

	e.HandleMessage(ctx, phone, "hola")
	e.HandleMessage(ctx, phone, "1")
	e.HandleMessage(ctx, phone, "1")
	e.HandleMessage(ctx, phone, "1") // 10:00
	e.HandleMessage(ctx, phone, "Ana")
	reply := e.HandleMessage(ctx, phone, "si")
	assert.Contains(t, reply, "ya fue reservado por otro usuario")
	assert.Contains(t, reply, "Horarios disponibles")

	// Retry on the remaining slot books fine.
	e.HandleMessage(ctx, phone, "2")
	e.HandleMessage(ctx, phone, "Ana")
	e.HandleMessage(ctx, phone, "si")
	require.Len(t, svc.booked, 1)
	assert.Equal(t, "10:30", svc.booked[0].Time)
}

func TestViewAppointments(t *testing.T) {
	svc := &fakeBookingService{upcoming: []appointments.Appointment{
		{ID: uuid.New(), Date: "2026-09-14", Time: "10:30", ProfessionalName: "Laura"},
	}}
	e := newTestEngine(svc, nil)
	ctx := context.Background()

	e.HandleMessage(ctx, "549111", "hola")
	reply := e.HandleMessage(ctx, "549111", "2")
	assert.Contains(t, reply, "Tus turnos reservados")
	assert.Contains(t, reply, "lunes 14 de septiembre, 10:30")
	assert.Contains(t, reply, "Laura")
}

func TestCancelFlow(t *testing.T) {
	apptID := uuid.New()
	svc := &fakeBookingService{upcoming: []appointments.Appointment{
		{ID: apptID, Date: "2026-09-14", Time: "10:30"},
	}}
	e := newTestEngine(svc, nil)
	ctx := context.Background()
	phone := "549111"

	e.HandleMessage(ctx, phone, "hola")
	reply := e.HandleMessage(ctx, phone, "3")
	assert.Contains(t, reply, "¿Qué turno deseas cancelar?")
	assert.Contains(t, reply, "Sin asignar")

	reply = e.HandleMessage(ctx, phone, "1")
	assert.Contains(t, reply, "Turno cancelado exitosamente")
	require.Len(t, svc.cancelled, 1)
	assert.Equal(t, apptID, svc.cancelled[0])
}

func TestIdleSessionExpiresBackToGreeting(t *testing.T) {
	svc := &fakeBookingService{times: []string{"10:00"}}
	current := testNow
	e := NewEngine(NewMemoryStore(), svc, &fakeBlocked{}, nil).
		WithClock(func() time.Time { return current })
	ctx := context.Background()
	phone := "549111"

	e.HandleMessage(ctx, phone, "hola")
	e.HandleMessage(ctx, phone, "1")

	current = current.Add(11 * time.Minute)
	reply := e.HandleMessage(ctx, phone, "1")
	// The old session was swept, so "1" lands on a fresh greeting.
	assert.Contains(t, reply, "Bienvenido")
}

func TestServiceErrorResetsWithApology(t *testing.T) {
	svc := &fakeBookingService{
		times:   []string{"10:00"},
		bookErr: context.DeadlineExceeded,
	}
	e := newTestEngine(svc, nil)
	ctx := context.Background()
	phone := "549111"

	e.HandleMessage(ctx, phone, "hola")
	e.HandleMessage(ctx, phone, "1")
	e.HandleMessage(ctx, phone, "1")
	e.HandleMessage(ctx, phone, "1")
	e.HandleMessage(ctx, phone, "Ana")
	reply := e.HandleMessage(ctx, phone, "si")
	assert.Equal(t, apology, reply)

	// Conversation restarts cleanly.
	reply = e.HandleMessage(ctx, phone, "cualquier cosa")
	assert.Contains(t, reply, "Bienvenido")
}
