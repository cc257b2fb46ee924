package tourapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

func TestClientListSchedules(t *testing.T) {
	var capturedPath, capturedAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		capturedAuth = r.Header.Get("Authorization")
		_, _ = io.WriteString(w, `[{"tourScheduleId":"sched-1","date":"2026-11-02","tickets":[{"ticketTypeId":"adult-1","ticketKind":"Adult","netCost":45.5,"availableTicket":4}]}]`)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL+"/api/", WithAPIKey("key-1"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	schedules, err := client.ListSchedules(context.Background(), "tour 7")
	if err != nil {
		t.Fatalf("list schedules: %v", err)
	}
	if capturedPath != "/api/tours/tour 7/schedules" {
		t.Fatalf("unexpected path %q", capturedPath)
	}
	if capturedAuth != "Bearer key-1" {
		t.Fatalf("expected bearer api key, got %q", capturedAuth)
	}
	if len(schedules) != 1 || len(schedules[0].Tickets) != 1 {
		t.Fatalf("unexpected schedules %+v", schedules)
	}
	ticket := schedules[0].Tickets[0]
	if !ticket.NetCost.Equal(decimal.RequireFromString("45.5")) || ticket.AvailableTicket != 4 || ticket.TicketKind != "Adult" {
		t.Fatalf("unexpected ticket %+v", ticket)
	}
}

func TestClientGetTourNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such tour", http.StatusNotFound)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.GetTour(context.Background(), "missing")
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestClientServerErrorIsDependencyError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, strings.Repeat("x", 4096))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.ListSchedules(context.Background(), "tour-1")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if got := strings.Count(typed.Unwrap().Error(), "x"); got > int(responseBodyReadLimit) {
		t.Fatalf("error body should be truncated, got %d bytes", got)
	}
}

func TestClientCreateOrder(t *testing.T) {
	var payload OrderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/orders" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("missing json content type")
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"orderId":"ord-9","status":"pending"}`)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	confirmation, err := client.CreateOrder(context.Background(), OrderRequest{
		TourID:         "tour-1",
		TourScheduleID: "sched-1",
		Day:            "2026-11-02",
		Tickets:        []OrderTicket{{TicketTypeID: "adult-1", TicketKind: "adult", Quantity: 2, NetCost: decimal.NewFromInt(10)}},
		TotalPrice:     decimal.NewFromInt(20),
		Contact:        OrderContact{Name: "Ada", Email: "ada@example.com", Phone: "+15550100"},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if confirmation.OrderID != "ord-9" || confirmation.Status != "pending" {
		t.Fatalf("unexpected confirmation %+v", confirmation)
	}
	if payload.TourScheduleID != "sched-1" || !payload.TotalPrice.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestClientCreateOrderValidatesInput(t *testing.T) {
	client, err := NewClient("http://tours.test")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.CreateOrder(context.Background(), OrderRequest{TourScheduleID: "sched-1"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := NewClient("  "); err == nil {
		t.Fatalf("expected base url error")
	}
}
