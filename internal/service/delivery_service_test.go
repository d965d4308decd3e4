package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"ticket-service/internal/archive"
	"ticket-service/internal/broker"
	"ticket-service/internal/document"
	"ticket-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngSnapshot(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: uint8(y), B: 0, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type ticketMap map[string]models.Ticket

func (m ticketMap) GetByID(ctx context.Context, id string) (*models.Ticket, error) {
	ticket, ok := m[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &ticket, nil
}

func savedTicket() models.Ticket {
	return models.Ticket{
		ID:     "t1",
		Header: sampleHeader(),
		Total:  dec("551.42"),
	}
}

func newTestExporter(t *testing.T, tickets TicketSource, store archive.Store) *ExportService {
	t.Helper()
	s, err := NewExportService(tickets, store, document.BoundaryExact, document.Portrait, 2)
	require.NoError(t, err)
	return s
}

func TestExportInMemory(t *testing.T) {
	store := archive.NewMemory()
	exporter := newTestExporter(t, ticketMap{"t1": savedTicket()}, store)

	result, err := exporter.Export(context.Background(), "t1", ExportRequest{
		Snapshot: pngSnapshot(t, 100, 300),
	})
	require.NoError(t, err)
	assert.Equal(t, "T&M_Ticket_Harbor Expansion_17.pdf", result.Document.Filename)
	assert.Equal(t, 3, result.Document.Pages)
	assert.Equal(t, 3, result.Layout.PageCount())
	assert.True(t, bytes.HasPrefix(result.Document.Data, []byte("%PDF-")))
	assert.Nil(t, result.Archived)
	assert.Empty(t, store.Keys())
}

func TestExportSavesToArchive(t *testing.T) {
	store := archive.NewMemory()
	exporter := newTestExporter(t, ticketMap{"t1": savedTicket()}, store)

	result, err := exporter.Export(context.Background(), "t1", ExportRequest{
		Snapshot:    pngSnapshot(t, 200, 100),
		Orientation: "landscape",
		Scale:       1,
		Save:        true,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Archived)
	assert.Equal(t, "documents/t1/T&M_Ticket_Harbor Expansion_17.pdf", result.Archived.Key)
	assert.Equal(t, document.A4Landscape, result.Layout.Page)
	assert.Equal(t, 1, result.Document.Pages)

	data, err := store.Get(context.Background(), result.Archived.Key)
	require.NoError(t, err)
	assert.Equal(t, result.Document.Data, data)
}

func TestExportRejectsBadInput(t *testing.T) {
	exporter := newTestExporter(t, ticketMap{"t1": savedTicket()}, archive.NewMemory())
	ctx := context.Background()

	_, err := exporter.Export(ctx, "missing", ExportRequest{Snapshot: pngSnapshot(t, 10, 10)})
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = exporter.Export(ctx, "t1", ExportRequest{Snapshot: []byte("not a png")})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = exporter.Export(ctx, "t1", ExportRequest{Snapshot: pngSnapshot(t, 10, 10), Orientation: "sideways"})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = exporter.Export(ctx, "t1", ExportRequest{Snapshot: pngSnapshot(t, 10, 10), Scale: -1})
	assert.ErrorIs(t, err, models.ErrValidation)
}

type deliveryFixture struct {
	remote   *fakeRemote
	fallback *countingFallback
	archive  *archive.Memory
	events   *eventRecorder
	service  *DeliveryService
}

func newDeliveryFixture(t *testing.T, remoteHealthy bool) *deliveryFixture {
	t.Helper()
	f := &deliveryFixture{
		remote:   &fakeRemote{healthy: remoteHealthy},
		fallback: &countingFallback{inner: MailtoComposer{}},
		archive:  archive.NewMemory(),
		events:   &eventRecorder{},
	}
	tickets := ticketMap{"t1": savedTicket()}
	dispatcher := NewDeliveryDispatcher(context.Background(), f.remote, f.fallback)
	f.service = NewDeliveryService(tickets, newTestExporter(t, tickets, f.archive), dispatcher, f.archive, broker.NewEventPublisher(f.events))
	return f
}

func TestDeliverAttachesDocumentWithDefaults(t *testing.T) {
	f := newDeliveryFixture(t, true)

	outcome, err := f.service.Deliver(context.Background(), "t1", DeliveryRequest{
		To:       "pm@example.com",
		Snapshot: pngSnapshot(t, 100, 100),
	})
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.False(t, outcome.UsedFallback)

	require.Len(t, f.remote.submitted, 1)
	sent := f.remote.submitted[0]
	assert.Equal(t, "T&M Ticket #17 - Harbor Expansion", sent.Subject)
	assert.Contains(t, sent.Message, "Total: $551.42")

	prefix := "data:application/pdf;filename=T&M_Ticket_Harbor Expansion_17.pdf;base64,"
	require.True(t, strings.HasPrefix(sent.PDFData, prefix))
	pdf, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sent.PDFData, prefix))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))

	require.Equal(t, 1, f.events.count())
	completed := f.events.events[0].(*models.DeliveryCompletedEvent)
	assert.Equal(t, "t1", completed.TicketID)
	assert.True(t, completed.Outcome.Success)
}

func TestDeliverKeepsExplicitSubjectAndMessage(t *testing.T) {
	f := newDeliveryFixture(t, false)

	outcome, err := f.service.Deliver(context.Background(), "t1", DeliveryRequest{
		To:       "pm@example.com",
		CC:       "office@example.com",
		Subject:  "Pier 4 extras",
		Message:  "Signed copy attached",
		Snapshot: pngSnapshot(t, 100, 100),
	})
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.True(t, outcome.UsedFallback)
	require.NotNil(t, outcome.Draft)
	assert.Equal(t, "Pier 4 extras", outcome.Draft.Subject)
	assert.Equal(t, "Signed copy attached", outcome.Draft.Body)
	assert.Empty(t, f.remote.submitted)
}

func TestDeliverRejectsMissingRecipient(t *testing.T) {
	f := newDeliveryFixture(t, true)

	_, err := f.service.Deliver(context.Background(), "t1", DeliveryRequest{Snapshot: pngSnapshot(t, 10, 10)})
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Empty(t, f.remote.submitted)
	assert.Zero(t, f.fallback.calls)
	assert.Zero(t, f.events.count())
}

func TestEnqueueStoresSnapshotAndPublishes(t *testing.T) {
	f := newDeliveryFixture(t, true)
	ctx := context.Background()
	snapshot := pngSnapshot(t, 100, 100)

	deliveryID, err := f.service.Enqueue(ctx, "t1", DeliveryRequest{To: "pm@example.com", Snapshot: snapshot})
	require.NoError(t, err)
	require.NotEmpty(t, deliveryID)

	stored, err := f.archive.Get(ctx, archive.SnapshotKey(deliveryID))
	require.NoError(t, err)
	assert.Equal(t, snapshot, stored)

	require.Equal(t, 1, f.events.count())
	assert.Equal(t, "ticket-t1", f.events.keys[0])
	requested := f.events.events[0].(*models.DeliveryRequestedEvent)
	assert.Equal(t, deliveryID, requested.DeliveryID)
	assert.Equal(t, "Harbor Expansion", requested.Ticket.ProjectName)

	require.NoError(t, f.service.HandleDeliveryRequested(ctx, requested))
	assert.Len(t, f.remote.submitted, 1)
	_, err = f.archive.Get(ctx, archive.SnapshotKey(deliveryID))
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestEnqueueCleansUpWhenPublishFails(t *testing.T) {
	f := newDeliveryFixture(t, true)
	f.events.err = errors.New("broker down")

	_, err := f.service.Enqueue(context.Background(), "t1", DeliveryRequest{To: "pm@example.com", Snapshot: pngSnapshot(t, 10, 10)})
	require.Error(t, err)
	assert.Empty(t, f.archive.Keys())
}

func TestEnqueueValidation(t *testing.T) {
	f := newDeliveryFixture(t, true)
	ctx := context.Background()

	_, err := f.service.Enqueue(ctx, "t1", DeliveryRequest{To: "pm@example.com"})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = f.service.Enqueue(ctx, "t1", DeliveryRequest{Snapshot: []byte{1}})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = f.service.Enqueue(ctx, "nope", DeliveryRequest{To: "pm@example.com", Snapshot: []byte{1}})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestHandleDeliveryRequestedMissingSnapshotIsDropped(t *testing.T) {
	f := newDeliveryFixture(t, true)

	err := f.service.HandleDeliveryRequested(context.Background(), &models.DeliveryRequestedEvent{
		DeliveryID:  "d1",
		Ticket:      savedTicket(),
		To:          "pm@example.com",
		SnapshotKey: archive.SnapshotKey("d1"),
	})
	assert.NoError(t, err)
	assert.Empty(t, f.remote.submitted)
}

func TestRejectedQueuedDeliveryRemovesSnapshot(t *testing.T) {
	f := newDeliveryFixture(t, true)
	ctx := context.Background()

	key := archive.SnapshotKey("d1")
	_, err := f.archive.Put(ctx, key, []byte("not a png"), "image/png")
	require.NoError(t, err)

	err = f.service.HandleDeliveryRequested(ctx, &models.DeliveryRequestedEvent{
		DeliveryID:  "d1",
		Ticket:      savedTicket(),
		To:          "pm@example.com",
		SnapshotKey: key,
	})
	assert.NoError(t, err)
	assert.Empty(t, f.remote.submitted)
	assert.Empty(t, f.archive.Keys())
}

func TestQueuedDeliveriesPublishBackIntoTheBus(t *testing.T) {
	f := newDeliveryFixture(t, true)
	bus := broker.NewLocalBus(1)
	f.service.eventPublisher = broker.NewEventPublisher(bus)
	ctx := context.Background()

	const deliveries = 3
	for i := 0; i < deliveries; i++ {
		_, err := f.service.Enqueue(ctx, "t1", DeliveryRequest{To: "pm@example.com", Snapshot: pngSnapshot(t, 50, 50)})
		require.NoError(t, err)
	}

	handler := broker.NewEventHandler()
	handler.OnDeliveryRequested(f.service.HandleDeliveryRequested)
	completed := 0
	done := make(chan error, 1)
	go func() {
		done <- bus.StartConsuming(ctx, func(ctx context.Context, msg kafka.Message) error {
			var base models.BaseEvent
			if err := json.Unmarshal(msg.Value, &base); err != nil {
				return err
			}
			if base.EventType == models.EventTypeDeliveryCompleted {
				if completed++; completed == deliveries {
					return bus.Close()
				}
			}
			return handler.HandleMessage(ctx, msg)
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("queued deliveries did not drain")
	}
	assert.Len(t, f.remote.submitted, deliveries)
	assert.Empty(t, f.archive.Keys())
}

func TestQueuedDeliveryThroughLocalBus(t *testing.T) {
	f := newDeliveryFixture(t, true)
	bus := broker.NewLocalBus(4)
	f.service.eventPublisher = broker.NewEventPublisher(bus)
	ctx := context.Background()

	_, err := f.service.Enqueue(ctx, "t1", DeliveryRequest{To: "pm@example.com", Snapshot: pngSnapshot(t, 50, 50)})
	require.NoError(t, err)
	require.NoError(t, bus.Close())

	handler := broker.NewEventHandler()
	handler.OnDeliveryRequested(f.service.HandleDeliveryRequested)
	require.NoError(t, bus.StartConsuming(ctx, func(ctx context.Context, msg kafka.Message) error {
		return handler.HandleMessage(ctx, msg)
	}))

	assert.Len(t, f.remote.submitted, 1)
	assert.Empty(t, f.archive.Keys())
}
