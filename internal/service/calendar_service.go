package service

import (
	"alcyxob/progression/internal/domain"
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"
)

const icalProductID = "-//progression//Workout Scheduler//EN"

// CalendarService renders a cycle's scheduled sessions as an iCalendar
// document so the schedule can be subscribed to from any calendar client.
type CalendarService interface {
	RenderCycle(program *domain.Program, cycle domain.Cycle) ([]byte, error)
}

type calendarService struct{}

// NewCalendarService creates a new instance of calendarService.
func NewCalendarService() CalendarService {
	return &calendarService{}
}

// RenderCycle produces a VCALENDAR with one all-day VEVENT per scheduled
// session. Completed sessions are included with a done marker in the
// summary; calendars are a view of the schedule, not a filter of it.
func (s *calendarService) RenderCycle(program *domain.Program, cycle domain.Cycle) ([]byte, error) {
	name := fmt.Sprintf("%s - cycle %d", program.Name, cycle.CycleNumber)

	// The encoder rejects a component with no children, but a cycle with no
	// generated sessions is a valid schedule and still gets a calendar.
	if len(cycle.Sessions) == 0 {
		return emptyCalendar(name), nil
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, icalProductID)
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropName, name)

	now := time.Now().UTC()
	for _, session := range cycle.Sessions {
		event := &ical.Component{
			Name:  ical.CompEvent,
			Props: make(ical.Props),
		}
		event.Props.SetText(ical.PropUID, uuid.NewString())
		event.Props.SetDateTime(ical.PropDateTimeStamp, now)
		event.Props.SetText(ical.PropSummary, sessionSummary(program, cycle, session))
		if session.Notes != "" {
			event.Props.SetText(ical.PropDescription, session.Notes)
		}

		day := domain.DateOnly(session.Date)
		setAllDay(event.Props, ical.PropDateTimeStart, day)
		setAllDay(event.Props, ical.PropDateTimeEnd, day.AddDate(0, 0, 1))

		cal.Children = append(cal.Children, event)
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("encode calendar for cycle %d: %w", cycle.CycleNumber, err)
	}
	return buf.Bytes(), nil
}

func sessionSummary(program *domain.Program, cycle domain.Cycle, session domain.Session) string {
	summary := fmt.Sprintf("%s (cycle %d)", program.Name, cycle.CycleNumber)
	if session.Completed {
		summary += " (done)"
	}
	return summary
}

var icalTextEscaper = strings.NewReplacer("\\", "\\\\", ";", "\\;", ",", "\\,", "\n", "\\n")

func emptyCalendar(name string) []byte {
	var buf bytes.Buffer
	buf.WriteString("BEGIN:VCALENDAR\r\n")
	buf.WriteString("PRODID:" + icalProductID + "\r\n")
	buf.WriteString("VERSION:2.0\r\n")
	buf.WriteString("NAME:" + icalTextEscaper.Replace(name) + "\r\n")
	buf.WriteString("END:VCALENDAR\r\n")
	return buf.Bytes()
}

// setAllDay writes a DATE-valued (all-day) property.
func setAllDay(props ical.Props, name string, day time.Time) {
	p := ical.NewProp(name)
	p.SetValueType(ical.ValueDate)
	p.Value = day.Format("20060102")
	props.Set(p)
}
