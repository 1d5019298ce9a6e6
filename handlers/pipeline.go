// Package handlers wires the webhook pipeline together: normalize the
// inbound event, run the dialogue policy inside the caller's critical
// section, apply appointment side effects and compose the reply.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/consultorio-rincon/voice-frontdesk/calendar"
	"github.com/consultorio-rincon/voice-frontdesk/config"
	"github.com/consultorio-rincon/voice-frontdesk/dialogue"
	"github.com/consultorio-rincon/voice-frontdesk/metrics"
	"github.com/consultorio-rincon/voice-frontdesk/session"
	"github.com/consultorio-rincon/voice-frontdesk/texml"
	"github.com/consultorio-rincon/voice-frontdesk/types"
	"github.com/consultorio-rincon/voice-frontdesk/webhook"
)

// Scheduler is the consumed appointment collaborator.
type Scheduler interface {
	Schedule(ctx context.Context, cmd types.AppointmentCommand) (*calendar.Appointment, error)
	Availability(ctx context.Context, date string) ([]calendar.Slot, error)
}

// CallControl drives the out-of-band speak and gather sequence for event-ack
// providers. It may be absent.
type CallControl interface {
	Speak(ctx context.Context, callControlID, text string) error
	GatherUsingSpeak(ctx context.Context, callControlID, prompt string) error
	Hangup(ctx context.Context, callControlID string) error
}

// Pipeline is the single entry point every provider webhook collapses into.
type Pipeline struct {
	cfg      *config.Config
	menu     *config.Menu
	store    *session.Store
	policy   *dialogue.Policy
	book     Scheduler
	control  CallControl
	composer *texml.Composer
	log      zerolog.Logger
}

// NewPipeline assembles the pipeline. control may be nil when no
// call-control credentials are configured.
func NewPipeline(cfg *config.Config, menu *config.Menu, store *session.Store, policy *dialogue.Policy, book Scheduler, control CallControl, composer *texml.Composer, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		menu:     menu,
		store:    store,
		policy:   policy,
		book:     book,
		control:  control,
		composer: composer,
		log:      log,
	}
}

// Handle processes one inbound webhook request body and always produces a
// reply; caller-triggered failures are acked, never propagated.
func (p *Pipeline) Handle(ctx context.Context, contentType string, body []byte, query url.Values) texml.OutboundResponse {
	ev, err := webhook.Normalize(contentType, body, query)
	if err != nil {
		class := "malformed"
		if errors.Is(err, webhook.ErrEmptyPayload) {
			class = "empty"
		}
		metrics.NormalizationFailures.WithLabelValues(class).Inc()
		p.log.Warn().Err(err).Str("content_type", contentType).Msg("rejected webhook payload")
		return p.ack("error", class+" payload")
	}

	metrics.WebhookEvents.WithLabelValues(ev.Kind.String()).Inc()

	caller := ev.Caller
	if caller == "" {
		caller = ev.ProviderCallID
	}
	if caller == "" {
		caller = "unknown"
	}

	dialect := texml.DialectMarkup
	if strings.Contains(strings.ToLower(contentType), "application/json") {
		dialect = texml.DialectEventAck
	}

	switch ev.Kind {
	case types.EventFunctionInvocation:
		return p.handleFunction(ctx, ev)
	case types.EventUnknown:
		return p.ack("ignored", "unknown event")
	case types.EventCallEnded:
		p.store.Reset(caller)
		p.log.Info().Str("caller", caller).Msg("call ended, context reset")
		return p.ack("processed", ev.Kind.String())
	}

	var action types.DialogueAction
	p.store.Update(caller, func(c *types.ConversationContext) {
		action = p.policy.Decide(ctx, ev, c)
	})

	p.applyCommands(ctx, caller, action.Commands)

	if dialect == texml.DialectEventAck {
		p.speakOutOfBand(ctx, ev, action)
		return p.ack("processed", ev.Kind.String())
	}

	out, err := p.composer.Compose(action, dialect)
	if err != nil {
		// Composition failure is an internal fault, but the caller still
		// gets a well-formed reply.
		p.log.Error().Err(err).Msg("composing reply failed")
		return p.ack("error", "internal")
	}
	return out
}

func (p *Pipeline) applyCommands(ctx context.Context, caller string, commands []types.AppointmentCommand) {
	for _, cmd := range commands {
		if cmd.Op != types.OpSchedule {
			continue
		}
		appt, err := p.book.Schedule(ctx, cmd)
		if err != nil {
			p.log.Error().Err(err).Str("caller", caller).Msg("scheduling appointment failed")
			continue
		}
		metrics.AppointmentsBooked.Inc()
		p.log.Info().
			Str("caller", caller).
			Str("appointment_id", appt.ID).
			Str("date", appt.Date).
			Str("time", appt.Time).
			Msg("appointment scheduled from call")
	}
}

// speakOutOfBand pushes the spoken reply through the call-control API for
// providers that only accept a JSON ack on the webhook itself.
func (p *Pipeline) speakOutOfBand(ctx context.Context, ev types.CallEvent, action types.DialogueAction) {
	if p.control == nil || action.SpokenText == "" {
		return
	}
	callControlID := ev.Raw["call_control_id"]
	if callControlID == "" {
		return
	}

	if err := p.control.Speak(ctx, callControlID, action.SpokenText); err != nil {
		p.log.Warn().Err(err).Str("call_control_id", callControlID).Msg("speak action failed")
		return
	}
	if action.Terminal {
		if err := p.control.Hangup(ctx, callControlID); err != nil {
			p.log.Warn().Err(err).Str("call_control_id", callControlID).Msg("hangup action failed")
		}
		return
	}
	if err := p.control.GatherUsingSpeak(ctx, callControlID, "Estoy escuchando."); err != nil {
		p.log.Warn().Err(err).Str("call_control_id", callControlID).Msg("gather action failed")
	}
}

func (p *Pipeline) handleFunction(ctx context.Context, ev types.CallEvent) texml.OutboundResponse {
	office := p.menu.Office
	var result map[string]any

	switch ev.FunctionName {
	case "get_appointment_info":
		result = map[string]any{
			"horarios":    office.Hours,
			"ubicacion":   office.Location,
			"preparacion": office.Preparation,
		}
	case "get_doctor_info":
		result = map[string]any{
			"doctor":         p.cfg.DoctorName,
			"especialidades": office.Specialties,
		}
	case "get_specialties":
		result = map[string]any{"especialidades": office.Specialties}
	case "check_availability":
		date := argString(ev.FunctionArgs, "date")
		slots, err := p.book.Availability(ctx, date)
		if err != nil {
			result = map[string]any{"error": "fecha no válida: " + date}
		} else {
			result = map[string]any{"date": date, "available_slots": slots}
		}
	case "schedule_appointment":
		result = p.scheduleFromFunction(ctx, ev.FunctionArgs)
	default:
		result = map[string]any{"error": "función no encontrada: " + ev.FunctionName}
	}

	body, err := json.Marshal(map[string]any{"result": result})
	if err != nil {
		p.log.Error().Err(err).Msg("encoding function result failed")
		return p.ack("error", "internal")
	}
	return texml.OutboundResponse{ContentType: "application/json", Body: body}
}

func (p *Pipeline) scheduleFromFunction(ctx context.Context, args map[string]any) map[string]any {
	cmd := types.AppointmentCommand{
		Op:          types.OpSchedule,
		PatientName: argString(args, "patient_name"),
		Phone:       argString(args, "phone"),
		Reason:      argString(args, "reason"),
		Date:        argString(args, "date"),
		Time:        argString(args, "time"),
	}

	appt, err := p.book.Schedule(ctx, cmd)
	if err != nil {
		p.log.Warn().Err(err).Msg("function schedule rejected")
		return map[string]any{"success": false, "error": err.Error()}
	}
	metrics.AppointmentsBooked.Inc()

	return map[string]any{
		"success":     true,
		"appointment": appt,
		"message":     "Cita confirmada para " + appt.PatientName + " el " + appt.Date + " a las " + appt.Time,
	}
}

func (p *Pipeline) ack(status, message string) texml.OutboundResponse {
	out, err := p.composer.ComposeAck(status, message)
	if err != nil {
		// Marshal of two strings cannot realistically fail; keep the call
		// alive regardless.
		return texml.OutboundResponse{ContentType: "application/json", Body: []byte(`{"status":"error"}`)}
	}
	return out
}

func argString(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	if s, ok := args[key].(string); ok {
		return s
	}
	return ""
}
