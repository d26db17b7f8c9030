// Package event provides event definitions and event bus for the axe engine.
package event

import (
	"time"
)

// EventType 事件类型
type EventType string

const (
	// Lock lifecycle events
	EventLockGranted   EventType = "lock.granted"
	EventLockPreempted EventType = "lock.preempted"
	EventLockCancelled EventType = "lock.cancelled"
	EventLockReleased  EventType = "lock.released"
	EventLockUnguarded EventType = "lock.unguarded"

	// Cleanup events
	EventCleanupBoundary EventType = "cleanup.boundary"
	EventCleanupAll      EventType = "cleanup.all"

	// Alert events
	EventAlertWarning  EventType = "alert.warning"
	EventAlertCritical EventType = "alert.critical"
)

// Event 事件
type Event struct {
	Type      EventType      // 事件类型
	Boundary  string         // 边界标识
	Strategy  string         // 策略标识
	Action    string         // 动作标识
	UniqueID  string         // 本次请求的唯一标识
	Timestamp time.Time      // 事件时间戳
	Data      map[string]any // 附加数据
	Error     error          // 错误信息（仅失败事件）
}

// NewEvent creates a new event with the given type and automatically sets the timestamp.
func NewEvent(eventType EventType) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      make(map[string]any),
	}
}

// WithBoundary sets the boundary identifier on the event.
func (e Event) WithBoundary(boundary string) Event {
	e.Boundary = boundary
	return e
}

// WithStrategy sets the strategy identifier on the event.
func (e Event) WithStrategy(strategy string) Event {
	e.Strategy = strategy
	return e
}

// WithAction sets the action identifier on the event.
func (e Event) WithAction(action string) Event {
	e.Action = action
	return e
}

// WithUniqueID sets the per-attempt unique identifier on the event.
func (e Event) WithUniqueID(uniqueID string) Event {
	e.UniqueID = uniqueID
	return e
}

// WithError sets the error on the event.
func (e Event) WithError(err error) Event {
	e.Error = err
	return e
}

// WithData sets a key-value pair in the event data.
func (e Event) WithData(key string, value any) Event {
	if e.Data == nil {
		e.Data = make(map[string]any)
	}
	e.Data[key] = value
	return e
}

// String returns the string representation of the event type.
func (t EventType) String() string {
	return string(t)
}
