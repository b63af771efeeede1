package server

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/company-extractor/internal/pipeline"
)

func TestHub_PublishAndFinish(t *testing.T) {
	h := NewHub(nil)
	a, cancelA := h.Subscribe("run-1")
	b, cancelB := h.Subscribe("run-1")
	other, cancelOther := h.Subscribe("run-2")
	defer cancelA()
	defer cancelB()
	defer cancelOther()

	h.Publish("run-1", Event{Type: EventProgress})
	h.Finish("run-1", Event{Type: EventStatus, Status: "COMPLETED"})

	for _, ch := range []<-chan Event{a, b} {
		var got []Event
		for ev := range ch {
			got = append(got, ev)
		}
		if len(got) != 2 || got[1].Status != "COMPLETED" || got[0].RunID != "run-1" {
			t.Fatalf("events = %+v", got)
		}
	}
	select {
	case ev := <-other:
		t.Fatalf("run-2 subscriber got %+v", ev)
	default:
	}
	if h.Subscribers("run-1") != 0 || h.Subscribers("run-2") != 1 {
		t.Fatalf("subscribers run-1=%d run-2=%d", h.Subscribers("run-1"), h.Subscribers("run-2"))
	}
}

func TestHub_CancelIsIdempotent(t *testing.T) {
	h := NewHub(nil)
	ch, cancel := h.Subscribe("run")
	cancel()
	cancel()
	h.Finish("run", Event{})
	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed")
	}
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub(nil)
	_, cancel := h.Subscribe("run")
	defer cancel()
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			h.Publish("run", Event{Type: EventProgress})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Publish blocked on a full subscriber")
	}
}

func TestHub_FinishReachesFullSubscriber(t *testing.T) {
	h := NewHub(nil)
	ch, cancel := h.Subscribe("run")
	defer cancel()

	for i := 0; i < subscriberBuffer; i++ {
		h.Publish("run", Event{Type: EventProgress, Progress: &pipeline.Progress{Done: i + 1}})
	}
	h.Finish("run", Event{Type: EventStatus, Status: "COMPLETED"})

	var got []Event
	for ev := range ch {
		got = append(got, ev)
	}
	if len(got) != subscriberBuffer {
		t.Fatalf("received %d events, want %d", len(got), subscriberBuffer)
	}
	last := got[len(got)-1]
	if last.Type != EventStatus || last.Status != "COMPLETED" {
		t.Fatalf("last event = %+v, want COMPLETED status", last)
	}
	// The oldest progress event made room for the status.
	if got[0].Progress == nil || got[0].Progress.Done != 2 {
		t.Fatalf("first event = %+v, want progress 2", got[0])
	}
}

func TestHealthServer(t *testing.T) {
	hs := NewHealthServer(nil)
	if err := hs.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer hs.Stop()

	conn, err := grpc.NewClient(hs.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client := grpc_health_v1.NewHealthClient(conn)
	resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Fatalf("status = %v", resp.GetStatus())
	}

	hs.SetServing(false)
	resp, err = client.Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("status = %v", resp.GetStatus())
	}
}
