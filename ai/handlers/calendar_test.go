package handlers_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/manas/ai/e2e/fakes"
	"github.com/hrygo/manas/ai/e2e/mocks"
	"github.com/hrygo/manas/ai/errs"
	"github.com/hrygo/manas/ai/handlers"
)

func TestCreateEvent(t *testing.T) {
	tests := []struct {
		name      string
		extracted string
		want      string
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "explicit date",
			extracted: `{"title": "Dentist", "date": "2025-03-17", "hour": 15, "minute": 30, "duration": 45}`,
			want:      "I've created 'Dentist' in your calendar at 3:30 PM on Monday, March 17.",
			wantStart: time.Date(2025, 3, 17, 15, 30, 0, 0, time.UTC),
			wantEnd:   time.Date(2025, 3, 17, 16, 15, 0, 0, time.UTC),
		},
		{
			name:      "past time moves to tomorrow",
			extracted: `{"title": "Gym", "date": null, "hour": 9, "minute": 0, "duration": null}`,
			want:      "I've created 'Gym' in your calendar at 9:00 AM tomorrow.",
			wantStart: time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC),
		},
		{
			name:      "no time defaults to the next hour",
			extracted: `{"title": "", "date": null, "hour": null, "minute": null, "duration": null}`,
			want:      "I've created 'New Event' in your calendar at 11:00 AM today.",
			wantStart: time.Date(2025, 3, 14, 11, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal := fakes.NewCalendar()
			llm := mocks.NewMockLLM().WithResponse("Extract calendar event details", tt.extracted)
			h := newHandlers(handlers.Config{LLM: llm, Calendar: cal})

			res := h.CreateEvent(context.Background(), request("schedule something"))

			assert.Equal(t, tt.want, res.Message)
			events := cal.Events()
			require.Len(t, events, 1)
			assert.Equal(t, tt.wantStart, events[0].Start)
			assert.Equal(t, tt.wantEnd, events[0].End)
		})
	}
}

func TestUpdateEvent(t *testing.T) {
	seed := func() *fakes.Calendar {
		return fakes.NewCalendar(
			handlers.Event{
				Summary: "Lunch with Sam",
				Start:   time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC),
				End:     time.Date(2025, 3, 15, 13, 30, 0, 0, time.UTC),
			},
			handlers.Event{
				Summary: "Study session",
				Start:   time.Date(2025, 3, 15, 18, 0, 0, 0, time.UTC),
				End:     time.Date(2025, 3, 15, 19, 0, 0, 0, time.UTC),
			},
		)
	}

	t.Run("reschedule keeps duration", func(t *testing.T) {
		cal := seed()
		llm := mocks.NewMockLLM().WithResponse("Extract the calendar update",
			`{"event_name": "lunch", "new_title": null, "new_hour": 13, "new_minute": 15}`)
		h := newHandlers(handlers.Config{LLM: llm, Calendar: cal})

		res := h.UpdateEvent(context.Background(), request("move lunch tomorrow to 1:15"))

		assert.Equal(t, "I've updated 'Lunch with Sam' - changed time to 1:15 PM.", res.Message)
		lunch := cal.Events()[0]
		assert.Equal(t, time.Date(2025, 3, 15, 13, 15, 0, 0, time.UTC), lunch.Start)
		assert.Equal(t, time.Date(2025, 3, 15, 14, 45, 0, 0, time.UTC), lunch.End)
	})

	t.Run("rename", func(t *testing.T) {
		cal := seed()
		llm := mocks.NewMockLLM().WithResponse("Extract the calendar update",
			`{"event_name": "study sesion", "new_title": "Exam prep", "new_hour": null, "new_minute": null}`)
		h := newHandlers(handlers.Config{LLM: llm, Calendar: cal})

		res := h.UpdateEvent(context.Background(), request("rename the study sesion to exam prep"))

		assert.Equal(t, "I've updated 'Study session' - changed name to 'Exam prep'.", res.Message)
		assert.Equal(t, "Exam prep", cal.Events()[1].Summary)
	})

	t.Run("unknown event lists the available ones", func(t *testing.T) {
		llm := mocks.NewMockLLM().WithResponse("Extract the calendar update",
			`{"event_name": "board meeting", "new_title": null, "new_hour": 10, "new_minute": 0}`)
		h := newHandlers(handlers.Config{LLM: llm, Calendar: seed()})

		res := h.UpdateEvent(context.Background(), request("move the board meeting to 10"))

		assert.Equal(t, "I couldn't find 'board meeting'. Available events: Lunch with Sam, Study session.", res.Message)
		assert.True(t, errs.Is(res.Err, errs.KindNotFound))
	})
}

func TestDeleteEvent(t *testing.T) {
	t.Run("matched", func(t *testing.T) {
		cal := fakes.NewCalendar(handlers.Event{
			ID:      "evt-1",
			Summary: "Dentist appointment",
			Start:   time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC),
			End:     time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC),
		})
		h := newHandlers(handlers.Config{Calendar: cal})

		res := h.DeleteEvent(context.Background(), request("cancel my dentist appointment tomorrow"))

		assert.Equal(t, "I've deleted 'Dentist appointment' from your calendar.", res.Message)
		assert.Empty(t, cal.Events())
	})

	t.Run("no events that day", func(t *testing.T) {
		h := newHandlers(handlers.Config{Calendar: fakes.NewCalendar()})

		res := h.DeleteEvent(context.Background(), request("delete the standup tomorrow"))

		assert.Equal(t, "You don't have any events tomorrow to delete.", res.Message)
		assert.Equal(t, "no_events", res.Data["error"])
	})
}
