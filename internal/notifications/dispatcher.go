package notifications

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/samber/lo"

	"realtime-service/internal/models"
	"realtime-service/internal/observability"
	"realtime-service/internal/repositories"
)

const chatMessageType = "chat_message"

// LiveConnections is the slice of the connection hub the dispatcher needs:
// who is present in a room right now, and a way to reach a user's live
// connections.
type LiveConnections interface {
	PresentUserIDs(roomID string) []string
	SendToUser(userID string, event models.ServerEvent) int
}

// TokenStore lists the push tokens registered for a user.
type TokenStore interface {
	Tokens(ctx context.Context, userID string) ([]string, error)
}

// messageJob is one broadcast message handed off for notification fan-out.
type messageJob struct {
	roomID   string
	senderID string
	content  string
}

// Dispatcher decides, per broadcast message, which room participants are
// absent and therefore get a persisted notification and a push attempt.
// Jobs are handed off through a queue so broadcasting never waits on
// persistence or push delivery.
type Dispatcher struct {
	rooms  repositories.RoomRepository
	notifs repositories.NotificationRepository
	live   LiveConnections
	tokens TokenStore
	push   PushSender

	jobs chan messageJob
	wg   sync.WaitGroup
}

// NewDispatcher constructs a Dispatcher with a bounded job queue.
func NewDispatcher(rooms repositories.RoomRepository, notifs repositories.NotificationRepository, live LiveConnections, tokens TokenStore, push PushSender, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Dispatcher{
		rooms:  rooms,
		notifs: notifs,
		live:   live,
		tokens: tokens,
		push:   push,
		jobs:   make(chan messageJob, queueSize),
	}
}

// Start launches the dispatch workers. They drain the queue until ctx is
// canceled; an in-flight dispatch cycle finishes independently.
func (d *Dispatcher) Start(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-d.jobs:
					d.process(context.Background(), job)
				}
			}
		}()
	}
}

// Wait blocks until all workers have exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// EnqueueMessage hands off a broadcast message. Never blocks: when the queue
// is full the job is dropped and counted, chat delivery is unaffected.
func (d *Dispatcher) EnqueueMessage(roomID, senderID, content string) {
	select {
	case d.jobs <- messageJob{roomID: roomID, senderID: senderID, content: content}:
	default:
		observability.IncDispatchDrop()
		log.Printf("dispatcher: queue full, dropping job room=%s", roomID)
	}
}

// process runs one dispatch cycle. The present set is read after fetching the
// participant list so presence is as fresh as possible at notify time.
func (d *Dispatcher) process(ctx context.Context, job messageJob) {
	participants, err := d.rooms.Participants(ctx, job.roomID)
	if err != nil {
		log.Printf("dispatcher: participant lookup failed room=%s: %v", job.roomID, err)
		return
	}

	present := d.live.PresentUserIDs(job.roomID)
	absent := lo.Reject(lo.Uniq(participants), func(userID string, _ int) bool {
		return userID == job.senderID || lo.Contains(present, userID)
	})

	for _, recipient := range absent {
		if err := d.notifyRecipient(ctx, job, recipient); err != nil {
			log.Printf("dispatcher: notify failed room=%s recipient=%s: %v", job.roomID, recipient, err)
		}
	}
}

func (d *Dispatcher) notifyRecipient(ctx context.Context, job messageJob, recipient string) error {
	_, err := d.Dispatch(ctx, models.Notification{
		RecipientID: recipient,
		SenderID:    job.senderID,
		Type:        chatMessageType,
		Content:     job.content,
		EntityID:    job.roomID,
		EntityType:  "chatRoom",
	})
	return err
}

// Dispatch persists one notification and performs its best-effort side
// effects: push delivery to registered devices and socket events (full record
// plus refreshed unread count) to the recipient's live connections. Creating
// the record is the durable effect; everything after it only logs on failure.
func (d *Dispatcher) Dispatch(ctx context.Context, n models.Notification) (models.Notification, error) {
	created, err := d.notifs.Create(ctx, n)
	if err != nil {
		return models.Notification{}, fmt.Errorf("create notification: %w", err)
	}
	observability.IncNotificationCreated(created.Type)

	d.pushToDevices(ctx, created)

	d.live.SendToUser(created.RecipientID, models.ServerEvent{
		Type:    models.EventNewNotification,
		Payload: created,
	})
	d.live.SendToUser(created.RecipientID, models.ServerEvent{
		Type: models.EventNotification,
		Payload: models.NotificationEvent{
			Type:       created.Type,
			Content:    created.Content,
			SenderInfo: models.SenderInfo{ID: created.SenderID},
			EntityInfo: models.EntityInfo{ID: created.EntityID, Type: created.EntityType},
			Timestamp:  created.CreatedAt,
		},
	})
	d.PublishUnreadCount(ctx, created.RecipientID)

	return created, nil
}

// PublishUnreadCount recounts a user's unread notifications and pushes the
// result to their live connections, if any.
func (d *Dispatcher) PublishUnreadCount(ctx context.Context, userID string) {
	count, err := d.notifs.CountUnread(ctx, userID)
	if err != nil {
		log.Printf("dispatcher: unread count failed user=%s: %v", userID, err)
		return
	}
	d.live.SendToUser(userID, models.ServerEvent{Type: models.EventUnreadCount, Payload: count})
}

func (d *Dispatcher) pushToDevices(ctx context.Context, n models.Notification) {
	tokens, err := d.tokens.Tokens(ctx, n.RecipientID)
	if err != nil {
		log.Printf("dispatcher: token lookup failed user=%s: %v", n.RecipientID, err)
		return
	}

	title := "New notification"
	if n.Type == chatMessageType {
		title = "New message"
	}
	for _, token := range tokens {
		payload := PushPayload{
			Token:      token,
			Title:      title,
			Body:       n.Content,
			EntityID:   n.EntityID,
			EntityType: n.EntityType,
		}
		if err := d.push.Send(ctx, payload); err != nil {
			observability.IncPushPublish("error")
			log.Printf("dispatcher: push send failed user=%s: %v", n.RecipientID, err)
			continue
		}
		observability.IncPushPublish("ok")
	}
}
