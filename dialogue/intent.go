package dialogue

import "strings"

// Intent is the tagged classification of a free-speech utterance. The state
// machine, not the keyword match, decides what happens next.
type Intent int

const (
	IntentNone Intent = iota
	IntentBooking
	IntentHours
	IntentPreparation
	IntentHandoff
	IntentGoodbye
)

func (i Intent) String() string {
	switch i {
	case IntentBooking:
		return "booking"
	case IntentHours:
		return "hours"
	case IntentPreparation:
		return "preparation"
	case IntentHandoff:
		return "handoff"
	case IntentGoodbye:
		return "goodbye"
	default:
		return "none"
	}
}

// Keyword sets include accented and unaccented spellings; callers get
// transcribed both ways.
var intentKeywords = []struct {
	intent   Intent
	keywords []string
}{
	// Booking outranks the informational intents: when an utterance carries
	// both, unresolved scheduling is the higher-value outcome.
	{IntentBooking, []string{"cita", "agendar", "reservar", "turno", "appointment"}},
	{IntentHours, []string{"horario", "horarios", "ubicación", "ubicacion", "dirección", "direccion", "dónde", "donde", "hours", "location"}},
	{IntentPreparation, []string{"preparación", "preparacion", "documento", "documentos", "traer", "estudios", "requisitos"}},
	{IntentHandoff, []string{"equipo", "persona", "humano", "operador", "recepcionista"}},
	{IntentGoodbye, []string{"adiós", "adios", "hasta luego", "finalizar", "colgar", "terminar"}},
}

// Classify tags an utterance with the highest-precedence matching intent.
func Classify(utterance string) Intent {
	text := strings.ToLower(utterance)
	for _, set := range intentKeywords {
		for _, kw := range set.keywords {
			if strings.Contains(text, kw) {
				return set.intent
			}
		}
	}
	return IntentNone
}
