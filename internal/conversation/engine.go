package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/turnoslabs/turnosbot/internal/appointments"
	"github.com/turnoslabs/turnosbot/internal/datetext"
	"github.com/turnoslabs/turnosbot/internal/professionals"
	"github.com/turnoslabs/turnosbot/pkg/logging"
)

const dateLayout = "2006-01-02"

// apology is the only reply a handler failure ever produces.
const apology = "❌ Ocurrió un error. Escribe *hola* para comenzar de nuevo."

// BookingService is the slice of the appointments service the dialogue
// needs.
type BookingService interface {
	AvailableTimes(ctx context.Context, date string, professionalID *uuid.UUID) ([]string, error)
	FreeProfessionalsAt(ctx context.Context, date, timeStr string) ([]professionals.Professional, error)
	ActiveProfessionals(ctx context.Context) ([]professionals.Professional, error)
	Book(ctx context.Context, req appointments.BookingRequest) (*appointments.Appointment, error)
	CancelByCustomer(ctx context.Context, id uuid.UUID, phone string) (*appointments.Appointment, error)
	UpcomingForPhone(ctx context.Context, phone string) ([]appointments.Appointment, error)
}

// BlockedSource reports which dates are closed for booking.
type BlockedSource interface {
	BlockedDates(ctx context.Context, today time.Time) (map[string]struct{}, error)
}

// Engine dispatches inbound messages on the session state and replies in
// Spanish. Every inbound message sweeps idle sessions first.
type Engine struct {
	store       SessionStore
	svc         BookingService
	blocked     BlockedSource
	logger      *logging.Logger
	now         func() time.Time
	horizonDays int
}

func NewEngine(store SessionStore, svc BookingService, blocked BlockedSource, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		store:       store,
		svc:         svc,
		blocked:     blocked,
		logger:      logger,
		now:         time.Now,
		horizonDays: 60,
	}
}

// WithClock injects a deterministic clock for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	if now != nil {
		e.now = now
	}
	return e
}

// WithHorizonDays bounds how far ahead free-text dates may fall.
func (e *Engine) WithHorizonDays(days int) *Engine {
	if days > 0 {
		e.horizonDays = days
	}
	return e
}

// HandleMessage advances the dialogue for one inbound message and returns
// the reply. It never propagates a failure: any handler error or panic
// resets the session and answers with a generic apology.
func (e *Engine) HandleMessage(ctx context.Context, phone, text string) (reply string) {
	now := e.now()
	if err := e.store.Sweep(ctx, now); err != nil {
		e.logger.Error("session sweep failed", "error", err)
	}

	sess, err := e.store.Get(ctx, phone)
	if err != nil {
		e.logger.Error("session load failed", "error", err, "phone", phone)
		sess = nil
	}
	if sess == nil {
		sess = NewSession(now)
	}
	sess.LastActive = now

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("handler panicked", "panic", fmt.Sprint(r), "phone", phone, "state", string(sess.State))
			sess.Reset()
			reply = apology
		}
		if err := e.store.Put(ctx, phone, sess); err != nil {
			e.logger.Error("session save failed", "error", err, "phone", phone)
		}
	}()

	normalized := strings.ToLower(strings.TrimSpace(text))

	var handlerErr error
	switch {
	case normalized == "hola" || normalized == "menu" || normalized == "inicio" || sess.State == StateGreeting:
		reply, handlerErr = e.handleGreeting(sess)
	default:
		switch sess.State {
		case StateMenu:
			reply, handlerErr = e.handleMenu(ctx, normalized, phone, sess)
		case StateChoosingProfessional:
			reply, handlerErr = e.handleChoosingProfessional(ctx, normalized, sess)
		case StateChoosingDay:
			reply, handlerErr = e.handleChoosingDay(ctx, normalized, sess)
		case StateWaitingDate:
			reply, handlerErr = e.handleDateInput(ctx, normalized, sess)
		case StateWaitingTime:
			reply, handlerErr = e.handleTimeInput(ctx, normalized, sess)
		case StateWaitingProfessional:
			reply, handlerErr = e.handleProfessionalSelection(normalized, sess)
		case StateWaitingName:
			reply, handlerErr = e.handleNameInput(text, sess)
		case StateConfirming:
			reply, handlerErr = e.handleConfirmation(ctx, normalized, phone, sess)
		case StateCanceling:
			reply, handlerErr = e.handleCancellation(ctx, normalized, phone, sess)
		default:
			reply, handlerErr = e.handleGreeting(sess)
		}
	}
	if handlerErr != nil {
		e.logger.Error("handler failed", "error", handlerErr, "phone", phone, "state", string(sess.State))
		sess.Reset()
		reply = apology
	}
	return reply
}

func (e *Engine) handleGreeting(sess *Session) (string, error) {
	sess.State = StateMenu
	sess.Data = Scratch{}
	return "👋 *¡Hola! Bienvenido al sistema de turnos.*\n\n" +
		"¿Qué deseas hacer?\n\n" +
		"*1* - Reservar un turno\n" +
		"*2* - Ver mis turnos\n" +
		"*3* - Cancelar un turno\n\n" +
		"Responde con el número de opción.", nil
}

func (e *Engine) handleMenu(ctx context.Context, msg, phone string, sess *Session) (string, error) {
	switch msg {
	case "1", "reservar", "turno", "nuevo":
		active, err := e.svc.ActiveProfessionals(ctx)
		if err != nil {
			return "", err
		}
		if len(active) == 0 {
			// No professionals configured: the slot itself is the unit
			// of capacity, skip straight to picking a day.
			sess.State = StateChoosingDay
			return e.dayMenu(ctx, sess, "")
		}
		opts := make([]ProfessionalOption, 0, len(active))
		for _, p := range active {
			opts = append(opts, ProfessionalOption{ID: p.ID, Name: p.Name})
		}
		sess.Data.Professionals = opts
		sess.State = StateChoosingProfessional

		var b strings.Builder
		b.WriteString("👥 *¿Con qué profesional deseas reservar tu turno?*\n\n")
		for i, p := range opts {
			fmt.Fprintf(&b, "*%d* - %s\n", i+1, p.Name)
		}
		fmt.Fprintf(&b, "*%d* - Cualquiera (mostrar toda la disponibilidad)\n", len(opts)+1)
		b.WriteString("\nResponde con el número de tu elección.")
		return b.String(), nil

	case "2", "ver", "mis turnos", "turnos":
		turnos, err := e.svc.UpcomingForPhone(ctx, phone)
		if err != nil {
			return "", err
		}
		sess.State = StateMenu
		if len(turnos) == 0 {
			return "📋 *No tienes turnos reservados.*\n\nEscribe *menu* para ver las opciones disponibles.", nil
		}
		var b strings.Builder
		b.WriteString("📋 *Tus turnos reservados:*\n\n")
		for _, t := range turnos {
			fmt.Fprintf(&b, "🗓️ %s\n", datetext.FormatHuman(t.Date, t.Time))
			fmt.Fprintf(&b, "👤 Con: %s\n\n", orUnassigned(t.ProfessionalName))
		}
		b.WriteString("Escribe *menu* para ver más opciones.")
		return b.String(), nil

	case "3", "cancelar":
		turnos, err := e.svc.UpcomingForPhone(ctx, phone)
		if err != nil {
			return "", err
		}
		if len(turnos) == 0 {
			sess.State = StateMenu
			return "📋 *No tienes turnos para cancelar.*\n\nEscribe *menu* para ver las opciones disponibles.", nil
		}
		opts := make([]CancelOption, 0, len(turnos))
		for _, t := range turnos {
			opts = append(opts, CancelOption{ID: t.ID, Date: t.Date, Time: t.Time, ProfessionalName: t.ProfessionalName})
		}
		sess.Data.Cancelable = opts
		sess.State = StateCanceling

		var b strings.Builder
		b.WriteString("❌ *¿Qué turno deseas cancelar?*\n\n")
		for i, o := range opts {
			fmt.Fprintf(&b, "*%d* - %s (Con: %s)\n", i+1, datetext.FormatHuman(o.Date, o.Time), orUnassigned(o.ProfessionalName))
		}
		b.WriteString("\nResponde con el número del turno a cancelar.")
		return b.String(), nil

	default:
		return "❌ Opción no válida. Por favor responde:\n*1* - Reservar turno\n*2* - Ver turnos\n*3* - Cancelar turno", nil
	}
}

func (e *Engine) handleChoosingProfessional(ctx context.Context, msg string, sess *Session) (string, error) {
	opts := sess.Data.Professionals
	n, err := strconv.Atoi(msg)
	if err != nil || n < 1 || n > len(opts)+1 {
		return fmt.Sprintf("❌ Por favor responde con un número del 1 al %d.", len(opts)+1), nil
	}
	var prefix string
	if n <= len(opts) {
		chosen := opts[n-1]
		sess.Data.ProfessionalID = &chosen.ID
		sess.Data.ProfessionalName = chosen.Name
		sess.Data.SpecificPro = true
		prefix = fmt.Sprintf("👤 *Has elegido a %s*\n\n", chosen.Name)
	} else {
		sess.Data.ProfessionalID = nil
		sess.Data.ProfessionalName = "Cualquiera"
		sess.Data.SpecificPro = false
		prefix = "👥 *Has elegido ver disponibilidad de todos los profesionales*\n\n"
	}
	sess.State = StateChoosingDay
	return e.dayMenu(ctx, sess, prefix)
}

// dayMenu lists the next seven days, skipping closed ones, plus a free-text
// date option.
func (e *Engine) dayMenu(ctx context.Context, sess *Session, prefix string) (string, error) {
	now := e.now()
	blocked := map[string]struct{}{}
	if e.blocked != nil {
		var err error
		blocked, err = e.blocked.BlockedDates(ctx, now)
		if err != nil {
			return "", err
		}
	}

	var days []DayOption
	for i := 0; i < 7; i++ {
		d := now.AddDate(0, 0, i)
		dateStr := d.Format(dateLayout)
		if _, off := blocked[dateStr]; off {
			continue
		}
		var label string
		switch i {
		case 0:
			label = "Hoy"
		case 1:
			label = "Mañana"
		default:
			label = capitalize(datetext.WeekdayName(d))
		}
		days = append(days, DayOption{
			Date:    dateStr,
			Label:   fmt.Sprintf("%s (%s)", label, d.Format("02/01")),
			Display: d.Format("02/01/2006"),
		})
	}
	sess.Data.Days = days

	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString("📅 *¿Para qué día necesitas el turno?*\n\n")
	for i, d := range days {
		fmt.Fprintf(&b, "*%d* - %s\n", i+1, d.Label)
	}
	fmt.Fprintf(&b, "*%d* - Otra fecha (escribe DD/MM)\n", len(days)+1)
	b.WriteString("\nResponde con el número del día.")
	return b.String(), nil
}

func (e *Engine) handleChoosingDay(ctx context.Context, msg string, sess *Session) (string, error) {
	days := sess.Data.Days
	n, err := strconv.Atoi(msg)
	if err != nil || n < 1 || n > len(days)+1 {
		return fmt.Sprintf("❌ Por favor responde con un número del 1 al %d.", len(days)+1), nil
	}
	if n == len(days)+1 {
		sess.State = StateWaitingDate
		return "📅 Escribe la fecha que prefieras en formato DD/MM (ejemplo: 15/03):", nil
	}
	chosen := days[n-1]
	sess.Data.Date = chosen.Date
	sess.Data.DateDisplay = chosen.Display
	return e.timeMenu(ctx, sess)
}

func (e *Engine) handleDateInput(ctx context.Context, msg string, sess *Session) (string, error) {
	date, err := datetext.ParseDate(msg, e.now(), e.horizonDays)
	var userErr *datetext.UserError
	if errors.As(err, &userErr) {
		return fmt.Sprintf("❌ %s\n\nIntenta nuevamente con formato DD/MM (ejemplo: 15/03)", userErr.Reason), nil
	}
	if err != nil {
		return "", err
	}
	if e.blocked != nil {
		blocked, err := e.blocked.BlockedDates(ctx, e.now())
		if err != nil {
			return "", err
		}
		if _, off := blocked[date]; off {
			return "❌ Ese día no está disponible.\n\nPrueba con otra fecha (DD/MM):", nil
		}
	}
	sess.Data.Date = date
	t, _ := time.Parse(dateLayout, date)
	sess.Data.DateDisplay = t.Format("02/01/2006")
	return e.timeMenu(ctx, sess)
}

// timeMenu fetches availability for the chosen date and moves to time
// selection, or re-prompts when the day is full.
func (e *Engine) timeMenu(ctx context.Context, sess *Session) (string, error) {
	times, err := e.svc.AvailableTimes(ctx, sess.Data.Date, sess.Data.ProfessionalID)
	if err != nil {
		return "", err
	}
	if len(times) == 0 {
		switch sess.Data.ProfessionalName {
		case "", "Cualquiera":
			return fmt.Sprintf("❌ No hay horarios disponibles para %s.\n\nEscribe *menu* para elegir otro día.", sess.Data.DateDisplay), nil
		default:
			return fmt.Sprintf("❌ No hay horarios disponibles para %s con %s.\n\nEscribe *menu* para elegir otro día.", sess.Data.DateDisplay, sess.Data.ProfessionalName), nil
		}
	}
	sess.Data.Times = times
	sess.State = StateWaitingTime

	var b strings.Builder
	switch sess.Data.ProfessionalName {
	case "", "Cualquiera":
		fmt.Fprintf(&b, "⏰ *Horarios disponibles para %s:*\n\n", sess.Data.DateDisplay)
	default:
		fmt.Fprintf(&b, "⏰ *Horarios disponibles para %s con %s:*\n\n", sess.Data.DateDisplay, sess.Data.ProfessionalName)
	}
	for i, h := range times {
		emoji := "🌅"
		if hourOf(h) >= 14 {
			emoji = "🌆"
		}
		fmt.Fprintf(&b, "*%d* - %s %s\n", i+1, emoji, h)
	}
	b.WriteString("\nResponde con el número de tu horario preferido.")
	return b.String(), nil
}

func (e *Engine) handleTimeInput(ctx context.Context, msg string, sess *Session) (string, error) {
	times := sess.Data.Times
	n, err := strconv.Atoi(msg)
	if err != nil || n < 1 || n > len(times) {
		return fmt.Sprintf("❌ Por favor responde con un número del 1 al %d.", len(times)), nil
	}
	sess.Data.Time = times[n-1]

	if sess.Data.SpecificPro && sess.Data.ProfessionalID != nil {
		sess.State = StateWaitingName
		return fmt.Sprintf("👤 *Profesional: %s*\n\n¿Cuál es tu nombre completo?", sess.Data.ProfessionalName), nil
	}
	if len(sess.Data.Professionals) == 0 {
		// No professionals configured at all.
		sess.State = StateWaitingName
		return "🙋 ¿Cuál es tu nombre completo?", nil
	}

	free, err := e.svc.FreeProfessionalsAt(ctx, sess.Data.Date, sess.Data.Time)
	if err != nil {
		return "", err
	}
	switch len(free) {
	case 0:
		return fmt.Sprintf("❌ No hay profesionales disponibles para %s a las %s.\n\nPrueba con otro horario.", sess.Data.DateDisplay, sess.Data.Time), nil
	case 1:
		sess.Data.ProfessionalID = &free[0].ID
		sess.Data.ProfessionalName = free[0].Name
		sess.State = StateWaitingName
		return fmt.Sprintf("👤 *Profesional asignado:* %s\n\n¿Cuál es tu nombre completo?", free[0].Name), nil
	default:
		opts := make([]ProfessionalOption, 0, len(free))
		for _, p := range free {
			opts = append(opts, ProfessionalOption{ID: p.ID, Name: p.Name})
		}
		sess.Data.Professionals = opts
		sess.State = StateWaitingProfessional

		var b strings.Builder
		fmt.Fprintf(&b, "👥 *Profesionales disponibles para %s a las %s:*\n\n", sess.Data.DateDisplay, sess.Data.Time)
		for i, p := range opts {
			fmt.Fprintf(&b, "*%d* - %s\n", i+1, p.Name)
		}
		b.WriteString("\n¿Con quién te gustaría reservar? Responde con el número.")
		return b.String(), nil
	}
}

func (e *Engine) handleProfessionalSelection(msg string, sess *Session) (string, error) {
	opts := sess.Data.Professionals
	n, err := strconv.Atoi(msg)
	if err != nil || n < 1 || n > len(opts) {
		return fmt.Sprintf("❌ Por favor responde con un número del 1 al %d.", len(opts)), nil
	}
	chosen := opts[n-1]
	sess.Data.ProfessionalID = &chosen.ID
	sess.Data.ProfessionalName = chosen.Name
	sess.State = StateWaitingName
	return fmt.Sprintf("👤 *Perfecto! Has elegido a %s*\n\n¿Cuál es tu nombre completo?", chosen.Name), nil
}

func (e *Engine) handleNameInput(raw string, sess *Session) (string, error) {
	name := titleCase(strings.TrimSpace(raw))
	if len([]rune(name)) < 2 {
		return "❌ Por favor ingresa un nombre válido.", nil
	}
	sess.Data.Name = name
	sess.State = StateConfirming

	var b strings.Builder
	b.WriteString("📋 *Confirma tu turno:*\n\n")
	fmt.Fprintf(&b, "📅 Fecha: %s\n", sess.Data.DateDisplay)
	fmt.Fprintf(&b, "⏰ Hora: %s\n", sess.Data.Time)
	if sess.Data.ProfessionalName != "" {
		fmt.Fprintf(&b, "👤 Profesional: %s\n", sess.Data.ProfessionalName)
	}
	fmt.Fprintf(&b, "🙋 Nombre: %s\n\n", name)
	b.WriteString("¿Está todo correcto?\nResponde *SÍ* para confirmar o *NO* para cancelar.")
	return b.String(), nil
}

func (e *Engine) handleConfirmation(ctx context.Context, msg, phone string, sess *Session) (string, error) {
	switch msg {
	case "si", "sí", "yes", "ok", "confirmar", "confirmo":
		appt, err := e.svc.Book(ctx, appointments.BookingRequest{
			CustomerName:   sess.Data.Name,
			Date:           sess.Data.Date,
			Time:           sess.Data.Time,
			Phone:          phone,
			ProfessionalID: sess.Data.ProfessionalID,
		})
		if errors.Is(err, appointments.ErrSlotTaken) || errors.Is(err, appointments.ErrNoProfessionalFree) {
			// Someone else won the slot between listing and confirming;
			// offer the remaining times.
			taken := sess.Data.Time
			reply, menuErr := e.timeMenu(ctx, sess)
			if menuErr != nil {
				return "", menuErr
			}
			if sess.State != StateWaitingTime {
				// Nothing left on that day either.
				sess.State = StateMenu
			}
			return fmt.Sprintf("❌ El horario %s ya fue reservado por otro usuario.\n\n%s", taken, reply), nil
		}
		if err != nil {
			return "", err
		}

		confirmed := sess.Data
		sess.State = StateMenu
		sess.Data = Scratch{}

		var b strings.Builder
		b.WriteString("✅ *¡Turno confirmado!*\n\n")
		fmt.Fprintf(&b, "📅 Fecha: %s\n", confirmed.DateDisplay)
		fmt.Fprintf(&b, "⏰ Hora: %s\n", confirmed.Time)
		if appt.ProfessionalName != "" {
			fmt.Fprintf(&b, "👤 Profesional: %s\n", appt.ProfessionalName)
		}
		fmt.Fprintf(&b, "🙋 Nombre: %s\n\n", confirmed.Name)
		b.WriteString("📝 *Recordatorio importante:*\n")
		b.WriteString("• Llega 5 minutos antes\n")
		b.WriteString("• Si no puedes asistir, cancela con anticipación\n\n")
		b.WriteString("Escribe *menu* para más opciones.")
		return b.String(), nil

	case "no", "cancelar", "cancel":
		sess.State = StateMenu
		sess.Data = Scratch{}
		return "❌ Turno cancelado.\n\nEscribe *menu* si deseas hacer otra consulta.", nil

	default:
		return "❌ Por favor responde *SÍ* para confirmar o *NO* para cancelar.", nil
	}
}

func (e *Engine) handleCancellation(ctx context.Context, msg, phone string, sess *Session) (string, error) {
	opts := sess.Data.Cancelable
	n, err := strconv.Atoi(msg)
	if err != nil || n < 1 || n > len(opts) {
		return fmt.Sprintf("❌ Por favor responde con un número del 1 al %d.", len(opts)), nil
	}
	chosen := opts[n-1]
	if _, err := e.svc.CancelByCustomer(ctx, chosen.ID, phone); err != nil {
		return "", err
	}
	sess.State = StateMenu
	sess.Data = Scratch{}

	var b strings.Builder
	b.WriteString("✅ *Turno cancelado exitosamente*\n\n")
	fmt.Fprintf(&b, "📅 %s\n", datetext.FormatHuman(chosen.Date, chosen.Time))
	fmt.Fprintf(&b, "👤 Profesional: %s\n\n", orUnassigned(chosen.ProfessionalName))
	b.WriteString("Escribe *menu* para más opciones.")
	return b.String(), nil
}

func orUnassigned(name string) string {
	if name == "" {
		return "Sin asignar"
	}
	return name
}

func hourOf(timeStr string) int {
	h, _, ok := strings.Cut(timeStr, ":")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(h)
	if err != nil {
		return 0
	}
	return n
}

func capitalize(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	return strings.ToUpper(string(r[0])) + string(r[1:])
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}
