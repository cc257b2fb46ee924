package selection

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/angelmondragon/tourbook-backend/internal/tours"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	dayOne = civil.Date{Year: 2026, Month: time.November, Day: 2}
	dayTwo = civil.Date{Year: 2026, Month: time.November, Day: 3}
	offDay = civil.Date{Year: 2026, Month: time.November, Day: 9}
)

type fetchResponse struct {
	release  chan struct{}
	schedule tours.Schedule
	err      error
}

// scriptedFetcher answers FetchTicketSchedule calls in order, optionally
// blocking a response until its release channel is closed.
type scriptedFetcher struct {
	mu        sync.Mutex
	calls     int
	responses []fetchResponse
	started   chan int
}

func (f *scriptedFetcher) FetchTour(context.Context, string) (tours.TourSummary, error) {
	return tours.TourSummary{ID: "tour-1"}, nil
}

func (f *scriptedFetcher) FetchTicketSchedule(ctx context.Context, tourID string) (tours.Schedule, error) {
	f.mu.Lock()
	idx := f.calls
	f.calls++
	resp := f.responses[len(f.responses)-1]
	if idx < len(f.responses) {
		resp = f.responses[idx]
	}
	f.mu.Unlock()

	if f.started != nil {
		f.started <- idx
	}
	if resp.release != nil {
		<-resp.release
	}
	return resp.schedule, resp.err
}

func option(id string, kind enums.TicketKind, cost string, available int) tours.TicketOption {
	return tours.TicketOption{TicketTypeID: id, Kind: kind, NetCost: decimal.RequireFromString(cost), AvailableTicket: available}
}

func standardSchedule() tours.Schedule {
	return tours.Schedule{
		dayOne: {TourScheduleID: "sched-1", Date: dayOne, Tickets: []tours.TicketOption{
			option("adult", enums.TicketKindAdult, "30", 3),
			option("child", enums.TicketKindChild, "12.50", 2),
		}},
		dayTwo: {TourScheduleID: "sched-2", Date: dayTwo, Tickets: []tours.TicketOption{
			option("grp3", enums.TicketKindPerGroupOfThree, "75", 1),
		}},
	}
}

func newTestSession(t *testing.T, f tours.Fetcher) *Session {
	t.Helper()
	s, err := New(tours.TourSummary{ID: "tour-1", Title: "Harbour walk"}, f)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return s
}

func selectDay(t *testing.T, s *Session, day civil.Date) {
	t.Helper()
	outcome, err := s.SelectDate(context.Background(), day)
	if err != nil || outcome != enums.SelectApplied {
		t.Fatalf("select %s: outcome=%s err=%v", day, outcome, err)
	}
}

func TestNewRequiresFetcherAndTour(t *testing.T) {
	if _, err := New(tours.TourSummary{ID: "t"}, nil); err == nil {
		t.Fatal("expected missing fetcher error")
	}
	if _, err := New(tours.TourSummary{}, &scriptedFetcher{}); err == nil {
		t.Fatal("expected missing tour id error")
	}
}

func TestSelectDateAppliesOptions(t *testing.T) {
	s := newTestSession(t, &scriptedFetcher{responses: []fetchResponse{{schedule: standardSchedule()}}})
	selectDay(t, s, dayOne)

	v := s.View()
	if v.ChosenDate == nil || *v.ChosenDate != dayOne || v.TourScheduleID != "sched-1" || v.Loading {
		t.Fatalf("unexpected view %+v", v)
	}
	if len(v.Options) != 2 || v.Options[0].Quantity != 0 {
		t.Fatalf("expected two fresh options, got %+v", v.Options)
	}
}

func TestViewReportsGroupSizes(t *testing.T) {
	s := newTestSession(t, &scriptedFetcher{responses: []fetchResponse{{schedule: standardSchedule()}}})
	selectDay(t, s, dayTwo)

	v := s.View()
	if len(v.Options) != 1 || v.Options[0].GroupSize != 3 {
		t.Fatalf("expected a group-of-three option, got %+v", v.Options)
	}

	selectDay(t, s, dayOne)
	for _, opt := range s.View().Options {
		if opt.GroupSize != 1 {
			t.Fatalf("expected single-traveller option, got %+v", opt)
		}
	}
}

func TestSelectDateRejectsUnscheduledDay(t *testing.T) {
	f := &scriptedFetcher{responses: []fetchResponse{{schedule: standardSchedule()}}}
	s := newTestSession(t, f)

	dates, err := s.AvailableDates(context.Background())
	if err != nil {
		t.Fatalf("available dates: %v", err)
	}
	if len(dates) != 2 || dates[0] != dayOne || dates[1] != dayTwo {
		t.Fatalf("unexpected dates %v", dates)
	}

	outcome, err := s.SelectDate(context.Background(), offDay)
	if err != nil || outcome != enums.SelectRejected {
		t.Fatalf("expected silent rejection, got %s %v", outcome, err)
	}
	if f.calls != 1 {
		t.Fatalf("rejected day must not trigger a fetch, calls=%d", f.calls)
	}
	if s.View().ChosenDate != nil {
		t.Fatal("rejected day must not become the chosen date")
	}
}

func TestSelectDateRejectsDayMissingFromFreshSchedule(t *testing.T) {
	s := newTestSession(t, &scriptedFetcher{responses: []fetchResponse{{schedule: standardSchedule()}}})
	outcome, err := s.SelectDate(context.Background(), offDay)
	if err != nil || outcome != enums.SelectRejected {
		t.Fatalf("expected rejection after fetch, got %s %v", outcome, err)
	}
	if v := s.View(); v.ChosenDate != nil || v.Loading {
		t.Fatalf("unexpected view after rejection %+v", v)
	}
}

func TestSelectDateFetchFailure(t *testing.T) {
	boom := errors.New("connection reset")
	s := newTestSession(t, &scriptedFetcher{responses: []fetchResponse{{err: boom}}})

	outcome, err := s.SelectDate(context.Background(), dayOne)
	if outcome != enums.SelectFailed || !pkgerrors.IsCode(err, pkgerrors.CodeDependency) || !errors.Is(err, boom) {
		t.Fatalf("expected dependency failure, got %s %v", outcome, err)
	}
	v := s.View()
	if len(v.Options) != 0 || v.Loading {
		t.Fatalf("failed fetch must leave options empty and stop loading, got %+v", v)
	}
}

func TestSelectDateResetsQuantities(t *testing.T) {
	s := newTestSession(t, &scriptedFetcher{responses: []fetchResponse{{schedule: standardSchedule()}}})
	selectDay(t, s, dayOne)
	s.AdjustQuantity("adult", enums.QuantityIncrease)
	s.TogglePackage()

	selectDay(t, s, dayTwo)
	v := s.View()
	if !v.TotalPrice.IsZero() || len(v.Options) != 1 || v.Options[0].Quantity != 0 {
		t.Fatalf("expected a fresh selection for the new day, got %+v", v)
	}
}

func TestStaleFetchIsDiscarded(t *testing.T) {
	stale := tours.Schedule{
		dayOne: {TourScheduleID: "sched-1", Date: dayOne, Tickets: []tours.TicketOption{option("old", enums.TicketKindAdult, "1", 1)}},
		dayTwo: {TourScheduleID: "sched-2", Date: dayTwo, Tickets: []tours.TicketOption{option("old", enums.TicketKindAdult, "1", 1)}},
	}
	gate := make(chan struct{})
	f := &scriptedFetcher{
		responses: []fetchResponse{
			{release: gate, schedule: stale},
			{schedule: standardSchedule()},
		},
		started: make(chan int, 2),
	}
	s := newTestSession(t, f)

	type result struct {
		outcome enums.SelectOutcome
		err     error
	}
	first := make(chan result, 1)
	go func() {
		outcome, err := s.SelectDate(context.Background(), dayOne)
		first <- result{outcome, err}
	}()
	<-f.started
	if !s.View().Loading {
		t.Fatal("expected loading while the first fetch is in flight")
	}

	selectDay(t, s, dayTwo)
	<-f.started
	close(gate)

	res := <-first
	if res.err != nil || res.outcome != enums.SelectStale {
		t.Fatalf("expected first selection to be stale, got %s %v", res.outcome, res.err)
	}
	v := s.View()
	if v.ChosenDate == nil || *v.ChosenDate != dayTwo || v.TourScheduleID != "sched-2" {
		t.Fatalf("expected day two to win, got %+v", v)
	}
	if len(v.Options) != 1 || v.Options[0].TicketTypeID != "grp3" {
		t.Fatalf("expected day two options, got %+v", v.Options)
	}
}

func TestClearDiscardsInFlightFetch(t *testing.T) {
	gate := make(chan struct{})
	f := &scriptedFetcher{responses: []fetchResponse{{release: gate, schedule: standardSchedule()}}, started: make(chan int, 1)}
	s := newTestSession(t, f)

	done := make(chan enums.SelectOutcome, 1)
	go func() {
		outcome, _ := s.SelectDate(context.Background(), dayOne)
		done <- outcome
	}()
	<-f.started
	s.Clear()
	close(gate)

	if outcome := <-done; outcome != enums.SelectStale {
		t.Fatalf("expected stale after clear, got %s", outcome)
	}
	if v := s.View(); v.ChosenDate != nil || len(v.Options) != 0 || v.Loading {
		t.Fatalf("expected cleared session, got %+v", v)
	}
}

func TestAdjustQuantityBoundsAndTotal(t *testing.T) {
	s := newTestSession(t, &scriptedFetcher{responses: []fetchResponse{{schedule: standardSchedule()}}})
	if s.AdjustQuantity("adult", enums.QuantityIncrease) {
		t.Fatal("no options before a day is chosen")
	}
	selectDay(t, s, dayOne)

	for i := 0; i < 5; i++ {
		s.AdjustQuantity("adult", enums.QuantityIncrease)
	}
	if s.AdjustQuantity("child", enums.QuantityDecrease) {
		t.Fatal("decrease at zero must be a no-op")
	}
	s.AdjustQuantity("child", enums.QuantityIncrease)
	if s.AdjustQuantity("ghost", enums.QuantityIncrease) {
		t.Fatal("unknown ticket type must be a no-op")
	}

	v := s.View()
	if v.Options[0].Quantity != 3 || v.Options[1].Quantity != 1 {
		t.Fatalf("expected adult clamped to 3 and child 1, got %+v", v.Options)
	}
	if want := decimal.RequireFromString("102.50"); !s.TotalPrice().Equal(want) {
		t.Fatalf("expected total %s, got %s", want, s.TotalPrice())
	}

	s.AdjustQuantity("adult", enums.QuantityDecrease)
	if want := decimal.RequireFromString("72.50"); !s.TotalPrice().Equal(want) {
		t.Fatalf("expected total %s after decrease, got %s", want, s.TotalPrice())
	}
}

func TestTogglePackageKeepsQuantities(t *testing.T) {
	s := newTestSession(t, &scriptedFetcher{responses: []fetchResponse{{schedule: standardSchedule()}}})
	selectDay(t, s, dayOne)
	s.AdjustQuantity("adult", enums.QuantityIncrease)

	if !s.TogglePackage() {
		t.Fatal("expected package toggled on")
	}
	if s.TogglePackage() {
		t.Fatal("expected package toggled off")
	}
	if s.View().Options[0].Quantity != 1 {
		t.Fatal("toggling the package must not touch quantities")
	}
}

func TestCommitValidation(t *testing.T) {
	s := newTestSession(t, &scriptedFetcher{responses: []fetchResponse{{schedule: standardSchedule()}}})

	_, err := s.Commit()
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation || typed.Message() != MsgNoDateSelected {
		t.Fatalf("expected %q, got %v", MsgNoDateSelected, err)
	}

	selectDay(t, s, dayOne)
	_, err = s.Commit()
	if typed := pkgerrors.As(err); typed == nil || typed.Message() != MsgNoTicketsSelected {
		t.Fatalf("expected %q, got %v", MsgNoTicketsSelected, err)
	}
	if s.View().ChosenDate == nil {
		t.Fatal("failed commit must keep the session intact")
	}
}

func TestCommitBuildsLineAndResets(t *testing.T) {
	s := newTestSession(t, &scriptedFetcher{responses: []fetchResponse{{schedule: standardSchedule()}}})
	selectDay(t, s, dayOne)
	s.AdjustQuantity("adult", enums.QuantityIncrease)
	s.AdjustQuantity("adult", enums.QuantityIncrease)
	s.TogglePackage()

	line, err := s.Commit()
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if line.TourScheduleID != "sched-1" || line.Day != dayOne || line.Tour.ID != "tour-1" {
		t.Fatalf("unexpected line header %+v", line)
	}
	if len(line.Tickets) != 1 || line.Tickets[0].TicketTypeID != "adult" || line.Tickets[0].Quantity != 2 || line.Tickets[0].AvailableTicket != 3 {
		t.Fatalf("expected only the positive-quantity ticket, got %+v", line.Tickets)
	}
	if !line.TotalPrice.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected total 60, got %s", line.TotalPrice)
	}

	v := s.View()
	if v.ChosenDate != nil || len(v.Options) != 0 || !v.TotalPrice.IsZero() || v.PackageToggled {
		t.Fatalf("expected reset session, got %+v", v)
	}
}
