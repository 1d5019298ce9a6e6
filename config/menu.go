package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Menu holds every spoken prompt of the call flow plus the office knowledge
// base, so the wording can be changed without a rebuild.
type Menu struct {
	Greeting            string `json:"greeting"`
	MenuPrompt          string `json:"menu_prompt"`
	TimeoutWarning      string `json:"timeout_warning"`
	HandoffLine         string `json:"handoff_line"`
	ClosingLine         string `json:"closing_line"`
	ClarificationPrompt string `json:"clarification_prompt"`

	AppointmentTypePrompt string `json:"appointment_type_prompt"`
	InfoFollowup          string `json:"info_followup"`
	ConfirmFollowup       string `json:"confirm_followup"`

	SlotPrompts   map[string]string `json:"slot_prompts"`
	FallbackLines map[string]string `json:"fallback_lines"`

	Office Office `json:"office"`
}

// Office is the knowledge base read to callers and fed to the AI responder.
type Office struct {
	Hours       string   `json:"hours"`
	Location    string   `json:"location"`
	Preparation string   `json:"preparation"`
	Specialties []string `json:"specialties"`
	Emergencies string   `json:"emergencies"`
}

// LoadMenu loads the menu configuration from the JSON file.
func LoadMenu(path string) (*Menu, error) {
	if path == "" {
		path = "./configs/menu.json"
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening menu file: %w", err)
	}
	defer file.Close()

	var menu Menu
	if err := json.NewDecoder(file).Decode(&menu); err != nil {
		return nil, fmt.Errorf("error decoding menu JSON: %w", err)
	}

	defaults := DefaultMenu()
	if menu.Greeting == "" {
		menu.Greeting = defaults.Greeting
	}
	if menu.MenuPrompt == "" {
		menu.MenuPrompt = defaults.MenuPrompt
	}
	if menu.TimeoutWarning == "" {
		menu.TimeoutWarning = defaults.TimeoutWarning
	}
	if menu.HandoffLine == "" {
		menu.HandoffLine = defaults.HandoffLine
	}
	if menu.ClosingLine == "" {
		menu.ClosingLine = defaults.ClosingLine
	}
	if menu.ClarificationPrompt == "" {
		menu.ClarificationPrompt = defaults.ClarificationPrompt
	}
	if menu.AppointmentTypePrompt == "" {
		menu.AppointmentTypePrompt = defaults.AppointmentTypePrompt
	}
	if menu.InfoFollowup == "" {
		menu.InfoFollowup = defaults.InfoFollowup
	}
	if menu.ConfirmFollowup == "" {
		menu.ConfirmFollowup = defaults.ConfirmFollowup
	}
	if len(menu.SlotPrompts) == 0 {
		menu.SlotPrompts = defaults.SlotPrompts
	}
	if len(menu.FallbackLines) == 0 {
		menu.FallbackLines = defaults.FallbackLines
	}
	if menu.Office.Hours == "" {
		menu.Office = defaults.Office
	}

	return &menu, nil
}

// DefaultMenu returns the canonical five-option menu.
func DefaultMenu() *Menu {
	return &Menu{
		Greeting: "Hola, bienvenido al Consultorio de la Dra. Dolores Remedios del Rincón, " +
			"especialista en Medicina Interna. Soy su asistente virtual.",
		MenuPrompt: "Por favor, seleccione una opción. " +
			"Presione 1 para agendar una cita. " +
			"Presione 2 para consultar horarios y ubicación. " +
			"Presione 3 para información sobre preparación para consultas. " +
			"Presione 4 para hablar con un miembro del equipo. " +
			"Presione 0 para finalizar la llamada.",
		TimeoutWarning: "Si no selecciona una opción, lo conectaremos con un miembro del equipo.",
		HandoffLine:    "Un miembro de nuestro equipo se pondrá en contacto con usted pronto. Gracias por su paciencia.",
		ClosingLine: "Gracias por llamar al Consultorio de la Dra. Dolores Remedios del Rincón. " +
			"Que tenga un excelente día.",
		ClarificationPrompt: "Disculpe, no entendí su respuesta. ¿Podría repetirla?",
		AppointmentTypePrompt: "Para agendar su cita, necesito recopilar algunos datos. " +
			"Presione 1 si es primera consulta. " +
			"Presione 2 si es consulta de seguimiento. " +
			"Presione 3 para volver al menú principal. " +
			"Presione 0 para finalizar.",
		InfoFollowup: "Presione 1 para volver al menú principal. " +
			"Presione 2 para agendar una cita. " +
			"Presione 0 para finalizar.",
		ConfirmFollowup: "¿Puedo ayudarle en algo más? " +
			"Presione 1 para volver al menú principal o 0 para finalizar.",
		SlotPrompts: map[string]string{
			"name":    "¿Podría decirme su nombre completo?",
			"phone":   "¿Cuál es su número de teléfono de contacto?",
			"reason":  "¿Cuál es el motivo general de la consulta?",
			"date":    "¿Qué día le gustaría agendar la cita?",
			"time":    "¿A qué hora le acomoda la cita?",
			"payment": "¿Cuenta con obra social o cuál sería la forma de pago?",
		},
		FallbackLines: map[string]string{
			"greeting":         "Hola, bienvenido al Consultorio de la Dra. Dolores Remedios del Rincón. ¿En qué puedo ayudarle?",
			"main_menu":        "Perfecto, entiendo que desea agendar una cita. Un miembro de nuestro equipo se pondrá en contacto con usted.",
			"appointment_type": "Perfecto, continuemos con los datos de su cita.",
			"schedule_collect": "Excelente, he tomado nota de su información.",
			"info_delivery":    "Con gusto le comparto la información del consultorio.",
			"confirm":          "Gracias por su confianza. Recibirá una confirmación pronto.",
		},
		Office: Office{
			Hours:    "Nuestros horarios son de lunes a viernes de 8:00 a 18:00. Sábados de 9:00 a 14:00.",
			Location: "Estamos ubicados en Avenida Reforma 123, Hermosillo. Contamos con estacionamiento disponible.",
			Preparation: "Para la primera consulta traiga: documento de identidad, carnet de obra social, " +
				"estudios médicos previos, lista de medicamentos actuales y resumen de su historia clínica si tiene.",
			Specialties: []string{
				"Diabetes Mellitus tipo 1 y 2",
				"Hipertensión arterial",
				"Enfermedades cardiovasculares",
				"Problemas respiratorios",
				"Trastornos endocrinos",
				"Medicina preventiva",
			},
			Emergencies: "Para emergencias médicas, acuda inmediatamente al servicio de urgencias más cercano.",
		},
	}
}

// Fallback returns the step-indexed fallback line, never empty.
func (m *Menu) Fallback(step string) string {
	if line, ok := m.FallbackLines[step]; ok && line != "" {
		return line
	}
	return "Gracias por llamar. Que tenga un excelente día."
}

// SlotPrompt returns the question for a booking slot.
func (m *Menu) SlotPrompt(slot string) string {
	if prompt, ok := m.SlotPrompts[slot]; ok && prompt != "" {
		return prompt
	}
	return "¿Podría darme ese dato, por favor?"
}
