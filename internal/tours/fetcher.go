package tours

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/metrics"
	"github.com/angelmondragon/tourbook-backend/pkg/tourapi"
	"go.uber.org/multierr"
)

// Fetcher loads tour data from the external catalogue.
type Fetcher interface {
	FetchTour(ctx context.Context, tourID string) (TourSummary, error)
	FetchTicketSchedule(ctx context.Context, tourID string) (Schedule, error)
}

type catalogueClient interface {
	GetTour(ctx context.Context, tourID string) (*tourapi.Tour, error)
	ListSchedules(ctx context.Context, tourID string) ([]tourapi.Schedule, error)
}

type apiFetcher struct {
	client  catalogueClient
	logg    *logger.Logger
	metrics *metrics.StorefrontMetrics
}

// NewAPIFetcher adapts the tour API client to domain types.
func NewAPIFetcher(client catalogueClient, logg *logger.Logger, m *metrics.StorefrontMetrics) (Fetcher, error) {
	if client == nil {
		return nil, fmt.Errorf("tour api client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &apiFetcher{client: client, logg: logg, metrics: m}, nil
}

func (f *apiFetcher) FetchTour(ctx context.Context, tourID string) (TourSummary, error) {
	start := time.Now()
	tour, err := f.client.GetTour(ctx, tourID)
	f.metrics.ObserveFetch("tour", time.Since(start))
	if err != nil {
		return TourSummary{}, err
	}
	return TourSummary{
		ID:          tour.ID,
		Title:       tour.Title,
		Description: tour.Description,
		Images:      append([]string(nil), tour.Images...),
	}, nil
}

func (f *apiFetcher) FetchTicketSchedule(ctx context.Context, tourID string) (Schedule, error) {
	start := time.Now()
	raw, err := f.client.ListSchedules(ctx, tourID)
	f.metrics.ObserveFetch("ticket_schedule", time.Since(start))
	if err != nil {
		return nil, err
	}

	schedule, dropped := ScheduleFromAPI(raw)
	if dropped != nil {
		warnCtx := f.logg.WithFields(ctx, map[string]any{
			"tour_id": tourID,
			"dropped": len(multierr.Errors(dropped)),
			"reasons": dropped.Error(),
		})
		f.logg.Warn(warnCtx, "tour schedule contained malformed entries")
	}
	return schedule, nil
}

// ScheduleFromAPI converts wire schedules into a Schedule. Entries that cannot
// be represented are skipped and reported in the combined error.
func ScheduleFromAPI(raw []tourapi.Schedule) (Schedule, error) {
	schedule := make(Schedule, len(raw))
	var dropped error
	for _, entry := range raw {
		day, err := civil.ParseDate(strings.TrimSpace(entry.Date))
		if err != nil {
			dropped = multierr.Append(dropped, fmt.Errorf("schedule %s: invalid date %q", entry.TourScheduleID, entry.Date))
			continue
		}
		if strings.TrimSpace(entry.TourScheduleID) == "" {
			dropped = multierr.Append(dropped, fmt.Errorf("schedule on %s: missing id", day))
			continue
		}
		if _, dup := schedule[day]; dup {
			dropped = multierr.Append(dropped, fmt.Errorf("schedule %s: duplicate date %s", entry.TourScheduleID, day))
			continue
		}

		options := make([]TicketOption, 0, len(entry.Tickets))
		seen := make(map[string]struct{}, len(entry.Tickets))
		for _, ticket := range entry.Tickets {
			option, err := ticketOptionFromAPI(ticket)
			if err != nil {
				dropped = multierr.Append(dropped, fmt.Errorf("schedule %s: %w", entry.TourScheduleID, err))
				continue
			}
			if _, dup := seen[option.TicketTypeID]; dup {
				dropped = multierr.Append(dropped, fmt.Errorf("schedule %s: duplicate ticket type %s", entry.TourScheduleID, option.TicketTypeID))
				continue
			}
			seen[option.TicketTypeID] = struct{}{}
			options = append(options, option)
		}

		schedule[day] = ScheduledDate{
			TourScheduleID: entry.TourScheduleID,
			Date:           day,
			Tickets:        options,
		}
	}
	return schedule, dropped
}

func ticketOptionFromAPI(ticket tourapi.Ticket) (TicketOption, error) {
	id := strings.TrimSpace(ticket.TicketTypeID)
	if id == "" {
		return TicketOption{}, fmt.Errorf("ticket missing type id")
	}
	kind, err := ParseWireTicketKind(ticket.TicketKind)
	if err != nil {
		return TicketOption{}, fmt.Errorf("ticket %s: %w", id, err)
	}
	if ticket.NetCost.IsNegative() {
		return TicketOption{}, fmt.Errorf("ticket %s: negative net cost", id)
	}
	if ticket.AvailableTicket < 0 {
		return TicketOption{}, fmt.Errorf("ticket %s: negative availability", id)
	}
	return TicketOption{
		TicketTypeID:    id,
		Kind:            kind,
		NetCost:         ticket.NetCost,
		AvailableTicket: ticket.AvailableTicket,
	}, nil
}

var wireTicketKinds = map[string]enums.TicketKind{
	"adult":           enums.TicketKindAdult,
	"child":           enums.TicketKindChild,
	"pergroupofthree": enums.TicketKindPerGroupOfThree,
	"pergroupoffive":  enums.TicketKindPerGroupOfFive,
	"pergroupofseven": enums.TicketKindPerGroupOfSeven,
	"pergroupoften":   enums.TicketKindPerGroupOfTen,
}

// ParseWireTicketKind accepts the catalogue's PascalCase kinds ("PerGroupOfThree")
// as well as the snake_case values used by this service.
func ParseWireTicketKind(value string) (enums.TicketKind, error) {
	normalized := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(value), "_", ""))
	if kind, ok := wireTicketKinds[normalized]; ok {
		return kind, nil
	}
	return "", pkgerrors.Newf(pkgerrors.CodeValidation, "unknown ticket kind %q", value)
}

// WireTicketKind renders a kind the way the catalogue API spells it.
func WireTicketKind(kind enums.TicketKind) string {
	switch kind {
	case enums.TicketKindAdult:
		return "Adult"
	case enums.TicketKindChild:
		return "Child"
	case enums.TicketKindPerGroupOfThree:
		return "PerGroupOfThree"
	case enums.TicketKindPerGroupOfFive:
		return "PerGroupOfFive"
	case enums.TicketKindPerGroupOfSeven:
		return "PerGroupOfSeven"
	case enums.TicketKindPerGroupOfTen:
		return "PerGroupOfTen"
	}
	return string(kind)
}
