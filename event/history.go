package event

import (
	"context"
	"sync"
	"time"
)

// History 事件历史
// 内存中的有界事件日志，用于排障。超过最大事件数时自动删除最旧的事件。
type History struct {
	events    []StoredEvent
	maxEvents int
	mu        sync.RWMutex
	nextID    int64
}

// StoredEvent 存储的事件
type StoredEvent struct {
	ID        int64          `json:"id"`
	Type      string         `json:"type"`
	Boundary  string         `json:"boundary"`
	Strategy  string         `json:"strategy,omitempty"`
	Action    string         `json:"action,omitempty"`
	UniqueID  string         `json:"unique_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// Filter 事件筛选条件
type Filter struct {
	Type     string // 事件类型筛选
	Boundary string // 边界筛选
	Action   string // 动作筛选
	Limit    int    // 返回数量限制
	Offset   int    // 偏移量
}

// NewHistory 创建事件历史
// maxEvents 指定最大存储事件数，超过时自动删除最旧的事件
func NewHistory(maxEvents int) *History {
	if maxEvents <= 0 {
		maxEvents = 1000 // 默认最大1000条事件
	}
	return &History{
		events:    make([]StoredEvent, 0, maxEvents),
		maxEvents: maxEvents,
	}
}

// Store 存储事件
// 将 Event 转换为 StoredEvent 并存储
func (h *History) Store(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++

	var errorMsg string
	if e.Error != nil {
		errorMsg = e.Error.Error()
	}

	h.events = append(h.events, StoredEvent{
		ID:        h.nextID,
		Type:      string(e.Type),
		Boundary:  e.Boundary,
		Strategy:  e.Strategy,
		Action:    e.Action,
		UniqueID:  e.UniqueID,
		Timestamp: e.Timestamp,
		Data:      e.Data,
		Error:     errorMsg,
	})

	// 如果超过最大数量，删除最旧的事件
	if len(h.events) > h.maxEvents {
		excess := len(h.events) - h.maxEvents
		h.events = h.events[excess:]
	}
}

// List 列出事件
// 根据筛选条件返回事件列表，按时间倒序排列（最新的在前）
func (h *History) List(filter Filter) []StoredEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if filter.Limit <= 0 {
		filter.Limit = 100
	}

	var filtered []StoredEvent
	for i := len(h.events) - 1; i >= 0; i-- {
		e := h.events[i]
		if !filter.matches(e) {
			continue
		}
		filtered = append(filtered, e)
	}

	if filter.Offset >= len(filtered) {
		return []StoredEvent{}
	}

	start := filter.Offset
	end := start + filter.Limit
	if end > len(filtered) {
		end = len(filtered)
	}

	return filtered[start:end]
}

// Count 返回符合筛选条件的事件总数
func (h *History) Count(filter Filter) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, e := range h.events {
		if filter.matches(e) {
			count++
		}
	}
	return count
}

func (f Filter) matches(e StoredEvent) bool {
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.Boundary != "" && e.Boundary != f.Boundary {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	return true
}

// Handler 返回事件处理器用于订阅事件总线
// 返回的处理器可以直接传递给 EventBus.SubscribeAll()
func (h *History) Handler() EventHandler {
	return func(ctx context.Context, e Event) error {
		h.Store(e)
		return nil
	}
}

// Clear 清空所有事件
// 主要用于测试
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = make([]StoredEvent, 0, h.maxEvents)
}

// Len 返回当前存储的事件数量
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.events)
}

// Types 返回所有已存储事件的类型列表（去重）
func (h *History) Types() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	typeSet := make(map[string]struct{})
	for _, e := range h.events {
		typeSet[e.Type] = struct{}{}
	}

	types := make([]string, 0, len(typeSet))
	for t := range typeSet {
		types = append(types, t)
	}
	return types
}
