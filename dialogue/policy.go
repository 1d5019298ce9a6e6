// Package dialogue decides, for each normalized call event, what the
// assistant says next and what input it expects back.
package dialogue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/consultorio-rincon/voice-frontdesk/config"
	"github.com/consultorio-rincon/voice-frontdesk/metrics"
	"github.com/consultorio-rincon/voice-frontdesk/types"
)

// Responder generates a conversational reply from the bounded history and a
// new utterance. Implementations must apply their own timeout and return an
// error instead of panicking past this boundary.
type Responder interface {
	Respond(ctx context.Context, history []types.Turn, utterance string) (string, error)
}

// Policy is the per-caller state machine. It performs no network I/O of its
// own; free-speech reply text is delegated to the Responder, whose failure
// only degrades fluency, never progression.
type Policy struct {
	menu          *config.Menu
	responder     Responder
	gatherTimeout int
	log           zerolog.Logger
}

// NewPolicy builds a policy over the menu configuration. responder may be
// nil, in which case every speech turn gets the step-indexed fallback line.
func NewPolicy(menu *config.Menu, responder Responder, gatherTimeoutSeconds int, log zerolog.Logger) *Policy {
	if gatherTimeoutSeconds <= 0 {
		gatherTimeoutSeconds = 10
	}
	return &Policy{
		menu:          menu,
		responder:     responder,
		gatherTimeout: gatherTimeoutSeconds,
		log:           log,
	}
}

// Decide advances the conversation for one event and returns the next
// action. It must be called inside the store's per-caller critical section.
func (p *Policy) Decide(ctx context.Context, ev types.CallEvent, c *types.ConversationContext) types.DialogueAction {
	if ev.Kind == types.EventCallEnded {
		*c = *types.NewConversationContext()
		return types.DialogueAction{Terminal: true}
	}

	fp := fingerprint(ev)
	if fp != "" && fp == c.LastFingerprint && c.LastAction != nil {
		// Redelivery of the event that emitted commands: repeat the reply
		// without re-applying side effects (LastAction is stored with
		// commands stripped). Only command-emitting decisions are
		// fingerprinted, so an identical digit pressed at two consecutive
		// prompts is still treated as fresh input.
		return *c.LastAction
	}

	if (ev.Kind == types.EventCallAnswered || ev.Kind == types.EventCallInitiated) &&
		c.Step != types.StepGreeting && c.Step != types.StepEnded && c.LastAction != nil {
		// Duplicate call-setup notification after the greeting was already
		// decided; re-issue the pending prompt.
		return *c.LastAction
	}

	action := p.decide(ctx, ev, c)

	c.LastFingerprint = ""
	if len(action.Commands) > 0 {
		c.LastFingerprint = fp
	}
	stored := action
	stored.Commands = nil
	c.LastAction = &stored
	if action.SpokenText != "" {
		c.PushTurn(types.RoleAssistant, action.SpokenText)
	}
	metrics.DialogueTransitions.WithLabelValues(c.Step.String()).Inc()
	return action
}

func (p *Policy) decide(ctx context.Context, ev types.CallEvent, c *types.ConversationContext) types.DialogueAction {
	if ev.Digits == "0" {
		return p.closing(c)
	}

	switch c.Step {
	case types.StepGreeting, types.StepEnded:
		return p.greet(c)
	case types.StepMainMenu:
		return p.mainMenu(ev, c)
	case types.StepAppointmentType:
		return p.appointmentType(ctx, ev, c)
	case types.StepScheduleCollect:
		return p.scheduleCollect(ctx, ev, c)
	case types.StepInfoDelivery:
		return p.infoDelivery(ev, c)
	case types.StepConfirm:
		return p.confirm(ev, c)
	default:
		// Impossible step. Reset and continue rather than failing the call.
		p.log.Error().Int("step", int(c.Step)).Str("caller", ev.Caller).Msg("conversation in impossible step, resetting")
		*c = *types.NewConversationContext()
		return p.greet(c)
	}
}

func (p *Policy) greet(c *types.ConversationContext) types.DialogueAction {
	c.Step = types.StepMainMenu
	c.MissCount = 0
	return types.DialogueAction{
		SpokenText:     p.menu.Greeting + " " + p.menu.MenuPrompt,
		Input:          types.InputDTMF,
		NumDigits:      1,
		TimeoutSeconds: p.gatherTimeout,
	}
}

func (p *Policy) mainMenu(ev types.CallEvent, c *types.ConversationContext) types.DialogueAction {
	switch ev.Kind {
	case types.EventDTMFDigits:
		switch ev.Digits {
		case "1":
			return p.toAppointmentType(c)
		case "2":
			return p.toInfo(c, p.menu.Office.Hours+" "+p.menu.Office.Location)
		case "3":
			return p.toInfo(c, p.menu.Office.Preparation)
		case "4", "5":
			return p.handoff(c)
		default:
			return p.clarify(c, types.InputDTMF)
		}
	case types.EventSpeechRecognized:
		c.PushTurn(types.RoleCaller, ev.SpeechText)
		switch Classify(ev.SpeechText) {
		case IntentBooking:
			return p.toAppointmentType(c)
		case IntentHours:
			return p.toInfo(c, p.menu.Office.Hours+" "+p.menu.Office.Location)
		case IntentPreparation:
			return p.toInfo(c, p.menu.Office.Preparation)
		case IntentHandoff:
			return p.handoff(c)
		case IntentGoodbye:
			return p.closing(c)
		default:
			return p.clarify(c, types.InputDTMF)
		}
	default:
		// The gather timed out with no input at all.
		return p.handoff(c)
	}
}

func (p *Policy) appointmentType(ctx context.Context, ev types.CallEvent, c *types.ConversationContext) types.DialogueAction {
	switch ev.Kind {
	case types.EventDTMFDigits:
		switch ev.Digits {
		case "1":
			return p.startCollect(ctx, c, "primera vez", "")
		case "2":
			return p.startCollect(ctx, c, "seguimiento", "")
		case "3":
			return p.backToMenu(c)
		default:
			return p.clarify(c, types.InputDTMF)
		}
	case types.EventSpeechRecognized:
		c.PushTurn(types.RoleCaller, ev.SpeechText)
		return p.startCollect(ctx, c, visitType(ev.SpeechText), ev.SpeechText)
	default:
		return p.clarify(c, types.InputDTMF)
	}
}

func visitType(utterance string) string {
	text := strings.ToLower(utterance)
	switch {
	case strings.Contains(text, "primera"):
		return "primera vez"
	case strings.Contains(text, "seguimiento"), strings.Contains(text, "control"):
		return "seguimiento"
	default:
		return ""
	}
}

func (p *Policy) startCollect(ctx context.Context, c *types.ConversationContext, visit, utterance string) types.DialogueAction {
	c.Step = types.StepScheduleCollect
	c.MissCount = 0
	if visit != "" {
		c.VisitType = visit
	}

	preamble := "Perfecto."
	if utterance != "" {
		preamble = p.aiReply(ctx, c, utterance)
	}

	return types.DialogueAction{
		SpokenText:     preamble + " " + p.menu.SlotPrompt(nextSlot(c)),
		Input:          types.InputSpeech,
		TimeoutSeconds: p.gatherTimeout,
	}
}

func (p *Policy) scheduleCollect(ctx context.Context, ev types.CallEvent, c *types.ConversationContext) types.DialogueAction {
	value := strings.TrimSpace(ev.SpeechText)
	if value == "" {
		value = ev.Digits
	}
	if value == "" {
		return p.clarify(c, types.InputSpeech)
	}

	if ev.Kind == types.EventSpeechRecognized {
		c.PushTurn(types.RoleCaller, value)
	}

	slot := nextSlot(c)
	if slot == "" {
		// Every slot already filled; the confirm step should have taken
		// over. Treat as the confirmation trigger.
		return p.confirmBooking(c)
	}
	c.Slots[slot] = value
	c.MissCount = 0

	if requiredFilled(c) {
		return p.confirmBooking(c)
	}

	preamble := "Gracias."
	if ev.Kind == types.EventSpeechRecognized {
		preamble = p.aiReply(ctx, c, value)
	}

	return types.DialogueAction{
		SpokenText:     preamble + " " + p.menu.SlotPrompt(nextSlot(c)),
		Input:          types.InputSpeech,
		TimeoutSeconds: p.gatherTimeout,
	}
}

func nextSlot(c *types.ConversationContext) string {
	for _, slot := range types.SlotOrder {
		if c.Slots[slot] == "" {
			return slot
		}
	}
	return ""
}

func requiredFilled(c *types.ConversationContext) bool {
	return c.Slots[types.SlotName] != "" &&
		c.Slots[types.SlotPhone] != "" &&
		c.Slots[types.SlotDate] != "" &&
		c.Slots[types.SlotTime] != ""
}

func (p *Policy) confirmBooking(c *types.ConversationContext) types.DialogueAction {
	c.Step = types.StepConfirm
	c.MissCount = 0

	cmd := types.AppointmentCommand{
		Op:          types.OpSchedule,
		PatientName: c.Slots[types.SlotName],
		Phone:       c.Slots[types.SlotPhone],
		Reason:      c.Slots[types.SlotReason],
		Date:        c.Slots[types.SlotDate],
		Time:        c.Slots[types.SlotTime],
		Payment:     c.Slots[types.SlotPayment],
	}

	summary := fmt.Sprintf(
		"Perfecto, %s. Su cita quedó registrada para el %s a las %s. Motivo: %s. "+
			"Recuerde traer documento de identidad, carnet de obra social y estudios previos. ",
		cmd.PatientName, cmd.Date, cmd.Time, cmd.Reason)

	return types.DialogueAction{
		SpokenText:     summary + p.menu.ConfirmFollowup,
		Input:          types.InputDTMF,
		NumDigits:      1,
		TimeoutSeconds: p.gatherTimeout,
		Commands:       []types.AppointmentCommand{cmd},
	}
}

func (p *Policy) infoDelivery(ev types.CallEvent, c *types.ConversationContext) types.DialogueAction {
	switch ev.Kind {
	case types.EventDTMFDigits:
		switch ev.Digits {
		case "1":
			return p.backToMenu(c)
		case "2":
			return p.toAppointmentType(c)
		default:
			return p.clarify(c, types.InputDTMF)
		}
	case types.EventSpeechRecognized:
		c.PushTurn(types.RoleCaller, ev.SpeechText)
		switch Classify(ev.SpeechText) {
		case IntentBooking:
			return p.toAppointmentType(c)
		case IntentHours:
			return p.toInfo(c, p.menu.Office.Hours+" "+p.menu.Office.Location)
		case IntentPreparation:
			return p.toInfo(c, p.menu.Office.Preparation)
		case IntentHandoff:
			return p.handoff(c)
		case IntentGoodbye:
			return p.closing(c)
		default:
			return p.clarify(c, types.InputDTMF)
		}
	default:
		return p.backToMenu(c)
	}
}

func (p *Policy) confirm(ev types.CallEvent, c *types.ConversationContext) types.DialogueAction {
	if ev.Digits == "1" {
		return p.backToMenu(c)
	}
	return p.closing(c)
}

func (p *Policy) toAppointmentType(c *types.ConversationContext) types.DialogueAction {
	c.Step = types.StepAppointmentType
	c.MissCount = 0
	return types.DialogueAction{
		SpokenText:     p.menu.AppointmentTypePrompt,
		Input:          types.InputDTMF,
		NumDigits:      1,
		TimeoutSeconds: p.gatherTimeout,
	}
}

func (p *Policy) toInfo(c *types.ConversationContext, info string) types.DialogueAction {
	c.Step = types.StepInfoDelivery
	c.MissCount = 0
	return types.DialogueAction{
		SpokenText:     info + " " + p.menu.InfoFollowup,
		Input:          types.InputDTMF,
		NumDigits:      1,
		TimeoutSeconds: p.gatherTimeout,
	}
}

func (p *Policy) backToMenu(c *types.ConversationContext) types.DialogueAction {
	c.Step = types.StepMainMenu
	c.MissCount = 0
	return types.DialogueAction{
		SpokenText:     p.menu.MenuPrompt,
		Input:          types.InputDTMF,
		NumDigits:      1,
		TimeoutSeconds: p.gatherTimeout,
	}
}

func (p *Policy) handoff(c *types.ConversationContext) types.DialogueAction {
	c.Step = types.StepEnded
	c.MissCount = 0
	return types.DialogueAction{
		SpokenText: p.menu.HandoffLine,
		Terminal:   true,
	}
}

func (p *Policy) closing(c *types.ConversationContext) types.DialogueAction {
	c.Step = types.StepEnded
	c.MissCount = 0
	return types.DialogueAction{
		SpokenText: p.menu.ClosingLine,
		Terminal:   true,
	}
}

// clarify repeats the question once; a second consecutive miss hands the
// caller to a human instead of looping.
func (p *Policy) clarify(c *types.ConversationContext, mode types.InputMode) types.DialogueAction {
	c.MissCount++
	if c.MissCount >= 2 {
		return p.handoff(c)
	}
	action := types.DialogueAction{
		SpokenText:     p.menu.ClarificationPrompt,
		Input:          mode,
		TimeoutSeconds: p.gatherTimeout,
	}
	if mode == types.InputDTMF {
		action.NumDigits = 1
	}
	return action
}

func (p *Policy) aiReply(ctx context.Context, c *types.ConversationContext, utterance string) string {
	if p.responder == nil {
		return p.menu.Fallback(c.Step.String())
	}

	start := time.Now()
	text, err := p.responder.Respond(ctx, c.History, utterance)
	metrics.AIRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil || strings.TrimSpace(text) == "" {
		metrics.AIFailures.Inc()
		p.log.Warn().Err(err).Str("step", c.Step.String()).Msg("responder failed, using fallback line")
		return p.menu.Fallback(c.Step.String())
	}
	return strings.TrimSpace(text)
}

func fingerprint(ev types.CallEvent) string {
	return strings.Join([]string{
		ev.Kind.String(),
		ev.ProviderCallID,
		ev.Digits,
		ev.SpeechText,
		ev.FunctionName,
	}, "|")
}
