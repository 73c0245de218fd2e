// Package dispatch routes named inbound events to the presence, typing and
// room components and fans the resulting broadcasts out through the broker.
package dispatch

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"adopt-realtime/broker"
	"adopt-realtime/contract"
	"adopt-realtime/domain"
	"adopt-realtime/domain/event"
	"adopt-realtime/errors"
	"adopt-realtime/observability"
	"adopt-realtime/presence"
	"adopt-realtime/rooms"
	"adopt-realtime/typing"
)

type connection struct {
	session domain.Session
	sink    contract.EventSink
}

// Dispatcher drives the per-connection state machine:
// Unauthenticated -> Authenticated (Connect) -> any number of joins/leaves
// -> Disconnected (Disconnect, terminal). Cleanup on disconnect runs
// exactly once, in the order typing -> rooms -> presence.
//
// Presence, typing and room state are owned here as injected-per-instance
// components, never package globals, so tests build isolated dispatchers.
type Dispatcher struct {
	log      *slog.Logger
	guard    *Guard
	store    contract.ConversationStore
	relay    contract.Broker
	monitor  *observability.Monitor
	registry *rooms.Registry
	presence *presence.Tracker
	typing   *typing.Store

	mu          sync.RWMutex
	connections map[domain.ConnectionID]*connection
	channelRefs map[string]int
}

func NewDispatcher(
	log *slog.Logger,
	store contract.ConversationStore,
	relay contract.Broker,
	monitor *observability.Monitor,
	typingExpiry time.Duration,
) *Dispatcher {
	d := &Dispatcher{
		log:         log,
		guard:       NewGuard(store),
		store:       store,
		relay:       relay,
		monitor:     monitor,
		registry:    rooms.NewRegistry(),
		presence:    presence.NewTracker(),
		connections: make(map[domain.ConnectionID]*connection),
		channelRefs: make(map[string]int),
	}
	d.typing = typing.NewStore(typingExpiry, d.typingExpired)
	return d
}

// Connect registers an authenticated connection: the sink becomes
// reachable, the connection auto-joins its subject room, and presence
// flips to online if this is the subject's first open connection.
func (d *Dispatcher) Connect(ctx context.Context, session domain.Session, sink contract.EventSink) {
	d.mu.Lock()
	d.connections[session.ConnectionID] = &connection{session: session, sink: sink}
	d.mu.Unlock()

	d.registry.Join(session.ConnectionID, rooms.Subject(session.SubjectID))
	d.retainChannel(broker.StatusChannel(session.SubjectID))
	d.retainChannel(broker.SystemChannel)

	d.monitor.ConnectionOpened()
	d.log.Info("connection authenticated",
		"user", session.SubjectID, "role", string(session.Role),
		"connection", string(session.ConnectionID))

	if cameOnline := d.presence.Connect(session.SubjectID, session.ConnectionID); cameOnline {
		d.publishPresenceChanged(ctx, session.SubjectID)
	}
}

// Disconnect tears a connection down. Terminal and idempotent: the first
// call wins, later ones are no-ops.
func (d *Dispatcher) Disconnect(conn domain.ConnectionID) {
	d.mu.Lock()
	c, ok := d.connections[conn]
	if !ok {
		d.mu.Unlock()
		return
	}
	delete(d.connections, conn)
	d.mu.Unlock()

	ctx := context.Background()
	session := c.session

	// 1. Typing: every conversation this subject was composing in gets a
	// stopped-typing event.
	for _, chatID := range d.typing.ClearAllFor(session.SubjectID) {
		d.publish(ctx, broker.TypingChannel(chatID), domain.Envelope{
			Kind:           domain.KindTyping,
			Event:          event.NameUserStoppedTyping,
			ConversationID: chatID,
			Exclude:        conn,
		}, event.UserStoppedTyping{
			UserID:    session.SubjectID,
			ChatID:    chatID,
			Timestamp: time.Now().UTC(),
		})
	}

	// 2. Rooms: drop membership everywhere, release channel interest.
	joined := d.registry.RoomsOf(conn)
	d.registry.DropConnection(conn)
	for _, room := range joined {
		if chatID, ok := room.ConversationID(); ok {
			d.releaseChannel(broker.ChatChannel(chatID))
			d.releaseChannel(broker.TypingChannel(chatID))
		}
	}
	d.releaseChannel(broker.StatusChannel(session.SubjectID))
	d.releaseChannel(broker.SystemChannel)

	// 3. Presence: only the last connection flips the subject offline.
	if wentOffline := d.presence.Disconnect(session.SubjectID, conn); wentOffline {
		d.publishPresenceChanged(ctx, session.SubjectID)
	}

	_ = c.sink.Close()
	d.monitor.ConnectionClosed()
	d.log.Info("connection closed", "user", session.SubjectID, "connection", string(conn))
}

// HandleEvent decodes one inbound frame and runs its handler. Every error
// is converted into a scoped reply to the originating connection; nothing
// propagates far enough to take other connections down.
func (d *Dispatcher) HandleEvent(ctx context.Context, conn domain.ConnectionID, raw []byte) {
	d.mu.RLock()
	c, ok := d.connections[conn]
	d.mu.RUnlock()
	if !ok {
		return
	}

	inbound, err := event.Decode(raw)
	if err != nil {
		name := "unknown"
		var decodeErr *event.DecodeError
		if stderrors.As(err, &decodeErr) {
			name = decodeErr.Event
		}
		d.monitor.EventFailed()
		d.replyError(c, name, err)
		return
	}

	if err := d.route(ctx, c, inbound); err != nil {
		d.monitor.EventFailed()
		d.logHandlerError(c.session, inbound.EventName(), err)
		d.replyError(c, inbound.EventName(), err)
		return
	}
	d.monitor.EventHandled()
}

func (d *Dispatcher) route(ctx context.Context, c *connection, inbound event.Inbound) error {
	switch e := inbound.(type) {
	case *event.JoinChat:
		return d.handleJoinChat(ctx, c, e)
	case *event.LeaveChat:
		return d.handleLeaveChat(ctx, c, e)
	case *event.TypingStart:
		return d.handleTypingStart(ctx, c, e)
	case *event.TypingStop:
		return d.handleTypingStop(ctx, c, e)
	case *event.MarkAsRead:
		return d.handleMarkAsRead(ctx, c, e)
	case *event.AddReaction:
		return d.handleReaction(ctx, c, e.ChatID, e.MessageID, e.Emoji, true)
	case *event.RemoveReaction:
		return d.handleReaction(ctx, c, e.ChatID, e.MessageID, e.Emoji, false)
	case *event.GetPresence:
		return d.handleGetPresence(c, e)
	case *event.UpdatePresence:
		return d.handleUpdatePresence(ctx, c, e)
	case *event.MessageSentNotification:
		return d.handleMessageSentNotification(ctx, c, e)
	case *event.SendMessage:
		return d.handleSendMessage(ctx, c, e)
	default:
		return &event.DecodeError{Event: inbound.EventName(), Err: errors.ErrUnknownEvent}
	}
}

func (d *Dispatcher) handleJoinChat(ctx context.Context, c *connection, e *event.JoinChat) error {
	if err := d.guard.RequireMembership(ctx, c.session, e.ChatID); err != nil {
		return err
	}

	room := rooms.Conversation(e.ChatID)
	if !d.registry.IsMember(c.session.ConnectionID, room) {
		d.registry.Join(c.session.ConnectionID, room)
		d.retainChannel(broker.ChatChannel(e.ChatID))
		d.retainChannel(broker.TypingChannel(e.ChatID))
	}

	d.publish(ctx, broker.ChatChannel(e.ChatID), domain.Envelope{
		Kind:           domain.KindMessage,
		Event:          event.NameUserJoinedChat,
		ConversationID: e.ChatID,
		Exclude:        c.session.ConnectionID,
	}, event.UserJoinedChat{
		UserID:    c.session.SubjectID,
		ChatID:    e.ChatID,
		Timestamp: time.Now().UTC(),
	})

	d.log.Info("joined conversation", "user", c.session.SubjectID, "chat", e.ChatID)
	return nil
}

func (d *Dispatcher) handleLeaveChat(ctx context.Context, c *connection, e *event.LeaveChat) error {
	if err := d.guard.RequireMembership(ctx, c.session, e.ChatID); err != nil {
		return err
	}

	room := rooms.Conversation(e.ChatID)
	if !d.registry.IsMember(c.session.ConnectionID, room) {
		return nil
	}

	d.publish(ctx, broker.ChatChannel(e.ChatID), domain.Envelope{
		Kind:           domain.KindMessage,
		Event:          event.NameUserLeftChat,
		ConversationID: e.ChatID,
		Exclude:        c.session.ConnectionID,
	}, event.UserLeftChat{
		UserID:    c.session.SubjectID,
		ChatID:    e.ChatID,
		Timestamp: time.Now().UTC(),
	})

	d.registry.Leave(c.session.ConnectionID, room)
	d.releaseChannel(broker.ChatChannel(e.ChatID))
	d.releaseChannel(broker.TypingChannel(e.ChatID))

	d.log.Info("left conversation", "user", c.session.SubjectID, "chat", e.ChatID)
	return nil
}

func (d *Dispatcher) handleTypingStart(ctx context.Context, c *connection, e *event.TypingStart) error {
	if err := d.guard.RequireMembership(ctx, c.session, e.ChatID); err != nil {
		return err
	}

	displayName := strings.TrimSpace(e.FirstName + " " + e.LastName)
	d.typing.Start(e.ChatID, c.session.SubjectID, displayName)

	d.publish(ctx, broker.TypingChannel(e.ChatID), domain.Envelope{
		Kind:           domain.KindTyping,
		Event:          event.NameUserTyping,
		ConversationID: e.ChatID,
		Exclude:        c.session.ConnectionID,
	}, event.UserTyping{
		UserID:    c.session.SubjectID,
		FirstName: e.FirstName,
		LastName:  e.LastName,
		ChatID:    e.ChatID,
		Timestamp: time.Now().UTC(),
	})
	return nil
}

func (d *Dispatcher) handleTypingStop(ctx context.Context, c *connection, e *event.TypingStop) error {
	if err := d.guard.RequireMembership(ctx, c.session, e.ChatID); err != nil {
		return err
	}

	// Gated on actual removal so an already-expired indicator does not
	// produce a second stopped-typing broadcast.
	if !d.typing.Stop(e.ChatID, c.session.SubjectID) {
		return nil
	}

	d.publish(ctx, broker.TypingChannel(e.ChatID), domain.Envelope{
		Kind:           domain.KindTyping,
		Event:          event.NameUserStoppedTyping,
		ConversationID: e.ChatID,
		Exclude:        c.session.ConnectionID,
	}, event.UserStoppedTyping{
		UserID:    c.session.SubjectID,
		ChatID:    e.ChatID,
		Timestamp: time.Now().UTC(),
	})
	return nil
}

func (d *Dispatcher) handleMarkAsRead(ctx context.Context, c *connection, e *event.MarkAsRead) error {
	if err := d.guard.RequireMembership(ctx, c.session, e.ChatID); err != nil {
		return err
	}
	if err := d.store.MarkMessagesRead(ctx, e.ChatID, c.session.SubjectID); err != nil {
		return &errors.UpstreamError{Op: "mark messages read", Err: err}
	}

	// The reader's own connection is excluded: it already knows.
	d.publish(ctx, broker.ChatChannel(e.ChatID), domain.Envelope{
		Kind:           domain.KindMessage,
		Event:          event.NameMessagesRead,
		ConversationID: e.ChatID,
		Exclude:        c.session.ConnectionID,
	}, event.MessagesRead{
		UserID:    c.session.SubjectID,
		ChatID:    e.ChatID,
		Timestamp: time.Now().UTC(),
	})
	return nil
}

func (d *Dispatcher) handleReaction(ctx context.Context, c *connection, chatID, messageID, emoji string, add bool) error {
	if err := d.guard.RequireMembership(ctx, c.session, chatID); err != nil {
		return err
	}

	var (
		reactions []domain.ReactionSummary
		err       error
		name      = event.NameReactionAdded
		op        = "add reaction"
	)
	if add {
		reactions, err = d.store.AddReaction(ctx, messageID, c.session.SubjectID, emoji)
	} else {
		name = event.NameReactionRemoved
		op = "remove reaction"
		reactions, err = d.store.RemoveReaction(ctx, messageID, c.session.SubjectID, emoji)
	}
	if err != nil {
		return &errors.UpstreamError{Op: op, Err: err}
	}

	// Reactions go to the whole room, sender included, so every client
	// renders the same aggregate.
	d.publish(ctx, broker.ChatChannel(chatID), domain.Envelope{
		Kind:           domain.KindMessage,
		Event:          name,
		ConversationID: chatID,
	}, event.ReactionUpdate{
		MessageID: messageID,
		Emoji:     emoji,
		UserID:    c.session.SubjectID,
		Reactions: reactions,
		Timestamp: time.Now().UTC(),
	})
	return nil
}

func (d *Dispatcher) handleGetPresence(c *connection, e *event.GetPresence) error {
	snapshot := lo.Associate(e.UserIDs, func(subjectID string) (string, domain.PresenceSnapshot) {
		status, lastSeen := d.presence.StatusOf(subjectID)
		return subjectID, domain.PresenceSnapshot{Status: status, LastSeen: lastSeen}
	})

	// Reply to the caller only; presence queries are never broadcast.
	if err := c.sink.Send(event.NamePresenceUpdate, event.PresenceUpdate(snapshot)); err != nil {
		d.log.Warn("presence reply dropped", "user", c.session.SubjectID, "error", err)
	}
	return nil
}

func (d *Dispatcher) handleUpdatePresence(ctx context.Context, c *connection, e *event.UpdatePresence) error {
	d.presence.SetStatus(c.session.SubjectID, domain.PresenceStatus(e.Status))
	status, lastSeen := d.presence.StatusOf(c.session.SubjectID)

	// All of the subject's own devices sync through their private room.
	d.publish(ctx, broker.StatusChannel(c.session.SubjectID), domain.Envelope{
		Kind:      domain.KindPresence,
		Event:     event.NameOwnPresenceUpdate,
		SubjectID: c.session.SubjectID,
	}, event.OwnPresenceUpdate{Status: status, LastSeen: lastSeen})
	return nil
}

func (d *Dispatcher) handleMessageSentNotification(ctx context.Context, c *connection, e *event.MessageSentNotification) error {
	if err := d.guard.RequireMembership(ctx, c.session, e.ConversationID); err != nil {
		return err
	}

	// The message itself was already persisted by the REST path; this only
	// tells the other room members to fetch it.
	d.publish(ctx, broker.ChatChannel(e.ConversationID), domain.Envelope{
		Kind:           domain.KindMessage,
		Event:          event.NameMessageNotification,
		ConversationID: e.ConversationID,
		Exclude:        c.session.ConnectionID,
	}, event.MessageNotification{
		MessageID:      e.MessageID,
		ConversationID: e.ConversationID,
		TempID:         e.TempID,
		SenderID:       c.session.SubjectID,
		Timestamp:      time.Now().UTC(),
	})
	return nil
}

// handleSendMessage keeps the legacy direct-send path alive for old
// clients. New code should persist through REST and emit
// message_sent_notification instead.
func (d *Dispatcher) handleSendMessage(ctx context.Context, c *connection, e *event.SendMessage) error {
	if err := d.guard.RequireMembership(ctx, c.session, e.ChatID); err != nil {
		return err
	}

	contentType := e.ContentType
	if contentType == "" {
		contentType = "text"
	}
	msg, err := d.store.SendMessage(ctx, domain.SendMessageCommand{
		ChatID:      e.ChatID,
		SenderID:    c.session.SubjectID,
		Content:     e.Content,
		ContentType: contentType,
	})
	if err != nil {
		return &errors.UpstreamError{Op: "send message", Err: err}
	}

	d.publish(ctx, broker.ChatChannel(e.ChatID), domain.Envelope{
		Kind:           domain.KindMessage,
		Event:          event.NameNewMessage,
		ConversationID: e.ChatID,
	}, event.NewMessage{
		Message:   msg,
		ChatID:    e.ChatID,
		Timestamp: time.Now().UTC(),
	})

	// Sending implies the sender stopped composing; clear silently.
	d.typing.Stop(e.ChatID, c.session.SubjectID)
	return nil
}

// typingExpired runs on the store's timer goroutine when an indicator aged
// out without an explicit stop.
func (d *Dispatcher) typingExpired(conversationID, subjectID string) {
	d.publish(context.Background(), broker.TypingChannel(conversationID), domain.Envelope{
		Kind:           domain.KindTyping,
		Event:          event.NameUserStoppedTyping,
		ConversationID: conversationID,
	}, event.UserStoppedTyping{
		UserID:    subjectID,
		ChatID:    conversationID,
		Timestamp: time.Now().UTC(),
	})
}

// deliver is the broker handler for every channel this instance holds
// local interest in. It resolves the envelope's target room and writes to
// each member sink except the excluded connection.
func (d *Dispatcher) deliver(channel string, env domain.Envelope) {
	var targets []domain.ConnectionID
	switch {
	case env.ConversationID != "":
		targets = d.registry.MembersOf(rooms.Conversation(env.ConversationID))
	case env.SubjectID != "":
		targets = d.registry.MembersOf(rooms.Subject(env.SubjectID))
	case channel == broker.SystemChannel:
		targets = d.allConnections()
	default:
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, id := range targets {
		if id == env.Exclude {
			continue
		}
		c, ok := d.connections[id]
		if !ok {
			continue
		}
		if err := c.sink.Send(env.Event, env.Payload); err != nil {
			d.log.Warn("event dropped for slow connection",
				"event", env.Event, "connection", string(id), "error", err)
		}
	}
	d.monitor.Broadcast()
}

func (d *Dispatcher) allConnections() []domain.ConnectionID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return lo.Keys(d.connections)
}

// publish marshals the payload into the envelope and hands it to the
// relay. Best effort by design: a failed publish is logged and swallowed,
// it never blocks or fails the triggering operation.
func (d *Dispatcher) publish(ctx context.Context, channel string, env domain.Envelope, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		d.log.Error("marshal broadcast payload", "event", env.Event, "error", err)
		return
	}
	env.Payload = data
	if env.Timestamp.IsZero() {
		env.Timestamp = time.Now().UTC()
	}

	if err := d.relay.Publish(ctx, channel, env); err != nil {
		d.log.Error("broker publish failed", "channel", channel, "event", env.Event, "error", err)
	}
}

func (d *Dispatcher) publishPresenceChanged(ctx context.Context, subjectID string) {
	status, lastSeen := d.presence.StatusOf(subjectID)
	d.publish(ctx, broker.StatusChannel(subjectID), domain.Envelope{
		Kind:      domain.KindPresence,
		Event:     event.NamePresenceChanged,
		SubjectID: subjectID,
	}, event.PresenceChanged{UserID: subjectID, Status: status, LastSeen: lastSeen})
}

// retainChannel subscribes the delivery handler on the first local
// interest in a channel; releaseChannel unsubscribes on the last.
func (d *Dispatcher) retainChannel(channel string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.channelRefs[channel]++
	if d.channelRefs[channel] == 1 {
		if err := d.relay.Subscribe(channel, d.deliver); err != nil {
			d.log.Error("broker subscribe failed", "channel", channel, "error", err)
		}
	}
}

func (d *Dispatcher) releaseChannel(channel string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.channelRefs[channel] == 0 {
		return
	}
	d.channelRefs[channel]--
	if d.channelRefs[channel] == 0 {
		delete(d.channelRefs, channel)
		if err := d.relay.Unsubscribe(channel); err != nil {
			d.log.Error("broker unsubscribe failed", "channel", channel, "error", err)
		}
	}
}

func (d *Dispatcher) replyError(c *connection, name string, err error) {
	if sendErr := c.sink.Send(event.NameError, errors.MapToReply(name, err)); sendErr != nil {
		d.log.Warn("error reply dropped", "user", c.session.SubjectID, "error", sendErr)
	}
}

func (d *Dispatcher) logHandlerError(session domain.Session, name string, err error) {
	var upstream *errors.UpstreamError
	switch {
	case stderrors.Is(err, errors.ErrAccessDenied):
		d.log.Warn("access denied", "user", session.SubjectID, "event", name)
	case stderrors.As(err, &upstream):
		d.log.Error("conversation store failed", "user", session.SubjectID, "event", name, "error", err)
	default:
		d.log.Warn("event rejected", "user", session.SubjectID, "event", name, "error", err)
	}
}

// ActiveTypers exposes the typing state for a conversation.
func (d *Dispatcher) ActiveTypers(conversationID string) []domain.TypingRecord {
	return d.typing.ActiveTypers(conversationID)
}

// StatusOf exposes presence for server-side callers (debug endpoint,
// service facade).
func (d *Dispatcher) StatusOf(subjectID string) (domain.PresenceStatus, time.Time) {
	return d.presence.StatusOf(subjectID)
}

// Counts reports room and connection totals for monitoring.
func (d *Dispatcher) Counts() (roomCount, connectionCount int) {
	return d.registry.Counts()
}
