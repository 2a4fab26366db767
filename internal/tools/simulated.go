package tools

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type ProspectArgs struct {
	LeadName   string  `json:"leadName"`
	Score      float64 `json:"score" jsonschema:"Calificación del 1 al 10"`
	Indagacion string  `json:"indagacion" jsonschema:"Lo que el cliente quiere o necesita resaltar"`
	Status     string  `json:"status,omitempty"`
}

type SmartCalendarArgs struct {
	EventTitle  string `json:"eventTitle"`
	Date        string `json:"date" jsonschema:"Fecha y hora ISO 8601"`
	ClientEmail string `json:"clientEmail,omitempty"`
}

type CalendarArgs struct {
	Summary     string `json:"summary"`
	StartTime   string `json:"startTime" jsonschema:"Fecha y hora de inicio ISO 8601"`
	EndTime     string `json:"endTime,omitempty" jsonschema:"Fecha y hora de fin ISO 8601"`
	Description string `json:"description,omitempty"`
}

type EmailArgs struct {
	To      string `json:"to" jsonschema:"Dirección de correo del destinatario"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

var prospectStatuses = []any{"Frio", "Medio", "Caliente"}

// Simulated returns the built-in business tools. None of them has an external
// effect; they validate their arguments and acknowledge.
func Simulated() []Tool {
	prospect := MustNewTool("sync_prospect_to_drive",
		"Guarda los datos del prospecto, su calificación y el resumen en el Google Sheets de Drive con resaltado amarillo.",
		func(_ context.Context, a ProspectArgs) (map[string]any, error) {
			if strings.TrimSpace(a.LeadName) == "" {
				return nil, fmt.Errorf("leadName is required")
			}
			if a.Score < 1 || a.Score > 10 {
				return nil, fmt.Errorf("score %.1f outside 1..10", a.Score)
			}
			return map[string]any{"result": "ok", "drive_status": "highlight_yellow_applied"}, nil
		})
	if p := prospect.Parameters.Properties["status"]; p != nil {
		p.Enum = prospectStatuses
	}

	smart := MustNewTool("schedule_smart_calendar",
		"Agenda la cita actual y crea un recordatorio automático de seguimiento a las 48hs.",
		func(_ context.Context, a SmartCalendarArgs) (map[string]any, error) {
			start, err := time.Parse(time.RFC3339, a.Date)
			if err != nil {
				return nil, fmt.Errorf("date: %w", err)
			}
			return map[string]any{
				"result":    "ok",
				"event":     a.EventTitle,
				"follow_up": start.Add(48 * time.Hour).Format(time.RFC3339),
			}, nil
		})

	calendar := MustNewTool("manage_google_calendar",
		"Crea un evento en Google Calendar.",
		func(_ context.Context, a CalendarArgs) (map[string]any, error) {
			if strings.TrimSpace(a.Summary) == "" {
				return nil, fmt.Errorf("summary is required")
			}
			if _, err := time.Parse(time.RFC3339, a.StartTime); err != nil {
				return nil, fmt.Errorf("startTime: %w", err)
			}
			return map[string]any{"result": "ok", "calendar_status": "event_created"}, nil
		})

	email := MustNewTool("send_email",
		"Envía un correo de confirmación por Gmail.",
		func(_ context.Context, a EmailArgs) (map[string]any, error) {
			if !strings.Contains(a.To, "@") {
				return nil, fmt.Errorf("invalid recipient %q", a.To)
			}
			return map[string]any{"result": "ok", "email_status": "sent"}, nil
		})

	return []Tool{prospect, smart, calendar, email}
}

// DefaultRegistry returns a registry holding the simulated tools.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, t := range Simulated() {
		r.Replace(t)
	}
	return r
}
