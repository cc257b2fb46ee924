package tours

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/tourapi"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

type stubCatalogue struct {
	tour      *tourapi.Tour
	schedules []tourapi.Schedule
	err       error
}

func (s stubCatalogue) GetTour(context.Context, string) (*tourapi.Tour, error) {
	return s.tour, s.err
}

func (s stubCatalogue) ListSchedules(context.Context, string) ([]tourapi.Schedule, error) {
	return s.schedules, s.err
}

func TestScheduleFromAPIDropsMalformedEntries(t *testing.T) {
	raw := []tourapi.Schedule{
		{
			TourScheduleID: "sched-1",
			Date:           "2026-11-02",
			Tickets: []tourapi.Ticket{
				{TicketTypeID: "adult", TicketKind: "Adult", NetCost: decimal.NewFromInt(30), AvailableTicket: 5},
				{TicketTypeID: "grp3", TicketKind: "PerGroupOfThree", NetCost: decimal.NewFromInt(80), AvailableTicket: 1},
				{TicketTypeID: "bad-kind", TicketKind: "Senior", NetCost: decimal.NewFromInt(10), AvailableTicket: 1},
				{TicketTypeID: "neg-cost", TicketKind: "Child", NetCost: decimal.NewFromInt(-1), AvailableTicket: 1},
				{TicketTypeID: "adult", TicketKind: "Adult", NetCost: decimal.NewFromInt(1), AvailableTicket: 1},
			},
		},
		{TourScheduleID: "sched-2", Date: "not-a-date"},
		{TourScheduleID: "sched-3", Date: "2026-11-01"},
	}

	schedule, dropped := ScheduleFromAPI(raw)
	if got := len(multierr.Errors(dropped)); got != 4 {
		t.Fatalf("expected 4 dropped entries, got %d (%v)", got, dropped)
	}
	dates := schedule.Dates()
	if len(dates) != 2 || dates[0] != (civil.Date{Year: 2026, Month: time.November, Day: 1}) {
		t.Fatalf("unexpected ordered dates %v", dates)
	}
	entry, ok := schedule.Lookup(civil.Date{Year: 2026, Month: time.November, Day: 2})
	if !ok {
		t.Fatal("expected 2026-11-02 to be scheduled")
	}
	if len(entry.Tickets) != 2 || entry.Tickets[1].Kind != enums.TicketKindPerGroupOfThree {
		t.Fatalf("unexpected tickets %+v", entry.Tickets)
	}
}

func TestAPIFetcherLogsDroppedEntries(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf})
	fetcher, err := NewAPIFetcher(stubCatalogue{schedules: []tourapi.Schedule{{TourScheduleID: "s", Date: "bogus"}}}, logg, nil)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}

	schedule, err := fetcher.FetchTicketSchedule(context.Background(), "tour-1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(schedule) != 0 {
		t.Fatalf("expected empty schedule, got %v", schedule)
	}
	if !strings.Contains(buf.String(), "malformed entries") {
		t.Fatalf("expected warning log, got %s", buf.String())
	}
}

func TestAPIFetcherPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	fetcher, err := NewAPIFetcher(stubCatalogue{err: boom}, logger.Nop(), nil)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	if _, err := fetcher.FetchTicketSchedule(context.Background(), "tour-1"); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := fetcher.FetchTour(context.Background(), "tour-1"); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestAPIFetcherTourSummary(t *testing.T) {
	fetcher, err := NewAPIFetcher(stubCatalogue{tour: &tourapi.Tour{ID: "t1", Title: "Harbour walk", Images: []string{"a.jpg"}}}, logger.Nop(), nil)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	summary, err := fetcher.FetchTour(context.Background(), "t1")
	if err != nil {
		t.Fatalf("fetch tour: %v", err)
	}
	if summary.Title != "Harbour walk" || len(summary.Images) != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestParseWireTicketKind(t *testing.T) {
	cases := map[string]enums.TicketKind{
		"Adult":              enums.TicketKindAdult,
		"per_group_of_seven": enums.TicketKindPerGroupOfSeven,
		" PerGroupOfTen ":    enums.TicketKindPerGroupOfTen,
	}
	for in, want := range cases {
		got, err := ParseWireTicketKind(in)
		if err != nil || got != want {
			t.Fatalf("%q: expected %s got %s err=%v", in, want, got, err)
		}
		if back, err := ParseWireTicketKind(WireTicketKind(got)); err != nil || back != got {
			t.Fatalf("%q: wire round trip failed", in)
		}
	}
	if _, err := ParseWireTicketKind("Senior"); err == nil {
		t.Fatal("expected unknown kind to fail")
	}
}
