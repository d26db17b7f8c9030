package axe

import (
	"fmt"

	"github.com/google/uuid"
)

// StrategyID identifies a registered strategy instance. Parametrized
// instances of the same strategy kind use a "name:configuration" form, see
// StrategyIDWithConfiguration.
type StrategyID string

// String returns the string representation of the strategy id.
func (id StrategyID) String() string {
	return string(id)
}

// StrategyIDWithConfiguration builds a strategy id for a parametrized
// instance, so the same strategy kind can be registered multiple times with
// different settings.
func StrategyIDWithConfiguration(name, configuration string) StrategyID {
	return StrategyID(name + ":" + configuration)
}

// ActionID groups logically-equivalent lock requests. Two requests with the
// same ActionID in the same boundary are "the same action" for exclusivity
// purposes; individual attempts are told apart by their unique id.
type ActionID string

// String returns the string representation of the action id.
func (id ActionID) String() string {
	return string(id)
}

// BoundaryID identifies a logical scope under which lock state is tracked
// independently (a screen, a feature, a subsystem). Any comparable value
// works — the same contract as a context.WithValue key. Heterogeneous
// boundary types can share one coordinator.
type BoundaryID = any

// Info is the per-attempt lock request record. Every constructor mints a
// fresh unique id, even for repeated attempts with the same action id; the
// unique id is the only field distinguishing otherwise-identical concurrent
// requests and is immutable for the life of the held lock.
type Info interface {
	// StrategyID returns the id of the strategy this request targets.
	StrategyID() StrategyID
	// ActionID returns the action this request belongs to.
	ActionID() ActionID
	// UniqueID returns the per-attempt token minted at construction.
	UniqueID() uuid.UUID
	// IsCancellationTarget reports whether a grant for this request is
	// tracked and may later be named in a preceding cancellation.
	IsCancellationTarget() bool
	// DebugLabel returns the optional human-readable label for diagnostics.
	DebugLabel() string
}

// baseInfo carries the identity fields shared by every lock info kind.
type baseInfo struct {
	strategyID StrategyID
	actionID   ActionID
	uniqueID   uuid.UUID
	debugLabel string
}

func newBaseInfo(strategyID StrategyID, actionID ActionID) baseInfo {
	return baseInfo{
		strategyID: strategyID,
		actionID:   actionID,
		uniqueID:   uuid.New(),
	}
}

// StrategyID returns the id of the strategy this request targets.
func (i baseInfo) StrategyID() StrategyID {
	return i.strategyID
}

// ActionID returns the action this request belongs to.
func (i baseInfo) ActionID() ActionID {
	return i.actionID
}

// UniqueID returns the per-attempt token minted at construction.
func (i baseInfo) UniqueID() uuid.UUID {
	return i.uniqueID
}

// DebugLabel returns the optional human-readable label for diagnostics.
func (i baseInfo) DebugLabel() string {
	return i.debugLabel
}

// ============================================================================
// Single execution
// ============================================================================

// ExecutionMode selects the exclusivity scope of a single-execution request.
type ExecutionMode int

const (
	// ModeDisabled opts the request out of exclusivity entirely: always
	// granted, never tracked.
	ModeDisabled ExecutionMode = iota
	// ModePerBoundary allows only one held lock per boundary, regardless of
	// action id.
	ModePerBoundary
	// ModePerAction allows only one held lock per (boundary, action id)
	// pair; distinct action ids run concurrently.
	ModePerAction
)

// String returns the string representation of the execution mode.
func (m ExecutionMode) String() string {
	switch m {
	case ModeDisabled:
		return "disabled"
	case ModePerBoundary:
		return "per-boundary"
	case ModePerAction:
		return "per-action"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// SingleExecutionInfo is the lock request payload for the single-execution
// strategy.
type SingleExecutionInfo struct {
	baseInfo
	mode ExecutionMode
}

// NewSingleExecutionInfo creates a single-execution lock request with a fresh
// unique id.
func NewSingleExecutionInfo(strategyID StrategyID, actionID ActionID, mode ExecutionMode) SingleExecutionInfo {
	return SingleExecutionInfo{
		baseInfo: newBaseInfo(strategyID, actionID),
		mode:     mode,
	}
}

// Mode returns the exclusivity mode of the request.
func (i SingleExecutionInfo) Mode() ExecutionMode {
	return i.mode
}

// IsCancellationTarget reports whether the grant is tracked. Disabled-mode
// requests are never tracked.
func (i SingleExecutionInfo) IsCancellationTarget() bool {
	return i.mode != ModeDisabled
}

// WithDebugLabel returns a copy of the info with the given debug label.
func (i SingleExecutionInfo) WithDebugLabel(label string) SingleExecutionInfo {
	i.debugLabel = label
	return i
}

// ============================================================================
// Priority
// ============================================================================

// PriorityLevel orders competing requests within a boundary.
type PriorityLevel int

const (
	// PriorityLevelNone bypasses priority tracking entirely.
	PriorityLevelNone PriorityLevel = iota
	// PriorityLevelLow is the lower tracked level.
	PriorityLevelLow
	// PriorityLevelHigh is the higher tracked level.
	PriorityLevelHigh
)

// PriorityBehavior decides what happens when an equal-priority request
// arrives while the entry is held.
type PriorityBehavior int

const (
	// BehaviorExclusive rejects equal-priority requests while held.
	BehaviorExclusive PriorityBehavior = iota
	// BehaviorReplaceable lets an equal-priority request displace the holder.
	BehaviorReplaceable
)

// Priority combines a level with an equal-priority behavior.
// PriorityLevelNone carries no behavior.
type Priority struct {
	level    PriorityLevel
	behavior PriorityBehavior
}

// PriorityNone returns the untracked priority: requests with it always
// succeed and are never held against later requests.
func PriorityNone() Priority {
	return Priority{level: PriorityLevelNone}
}

// PriorityLow returns a low priority with the given equal-priority behavior.
func PriorityLow(behavior PriorityBehavior) Priority {
	return Priority{level: PriorityLevelLow, behavior: behavior}
}

// PriorityHigh returns a high priority with the given equal-priority behavior.
func PriorityHigh(behavior PriorityBehavior) Priority {
	return Priority{level: PriorityLevelHigh, behavior: behavior}
}

// Level returns the priority level.
func (p Priority) Level() PriorityLevel {
	return p.level
}

// Behavior returns the equal-priority behavior. Meaningless for
// PriorityLevelNone.
func (p Priority) Behavior() PriorityBehavior {
	return p.behavior
}

// String returns the string representation of the priority.
func (p Priority) String() string {
	switch p.level {
	case PriorityLevelNone:
		return "none"
	case PriorityLevelLow:
		if p.behavior == BehaviorReplaceable {
			return "low/replaceable"
		}
		return "low/exclusive"
	case PriorityLevelHigh:
		if p.behavior == BehaviorReplaceable {
			return "high/replaceable"
		}
		return "high/exclusive"
	default:
		return fmt.Sprintf("unknown(%d)", int(p.level))
	}
}

// PriorityInfo is the lock request payload for the priority-based strategy.
type PriorityInfo struct {
	baseInfo
	priority Priority
}

// NewPriorityInfo creates a priority lock request with a fresh unique id.
func NewPriorityInfo(strategyID StrategyID, actionID ActionID, priority Priority) PriorityInfo {
	return PriorityInfo{
		baseInfo: newBaseInfo(strategyID, actionID),
		priority: priority,
	}
}

// Priority returns the priority of the request.
func (i PriorityInfo) Priority() Priority {
	return i.priority
}

// IsCancellationTarget reports whether the grant is tracked.
// PriorityLevelNone requests are never tracked.
func (i PriorityInfo) IsCancellationTarget() bool {
	return i.priority.level != PriorityLevelNone
}

// WithDebugLabel returns a copy of the info with the given debug label.
func (i PriorityInfo) WithDebugLabel(label string) PriorityInfo {
	i.debugLabel = label
	return i
}

// ============================================================================
// Group coordination
// ============================================================================

// GroupID identifies a coordination group within a boundary.
type GroupID string

// GroupRole is the role an action takes in the groups it joins.
type GroupRole int

const (
	// RoleNone joins the group without leader/member admission rules.
	RoleNone GroupRole = iota
	// RoleLeader may only join groups that are currently empty.
	RoleLeader
	// RoleMember may only join groups that already have an occupant.
	RoleMember
)

// String returns the string representation of the group role.
func (r GroupRole) String() string {
	switch r {
	case RoleNone:
		return "none"
	case RoleLeader:
		return "leader"
	case RoleMember:
		return "member"
	default:
		return fmt.Sprintf("unknown(%d)", int(r))
	}
}

// GroupInfo is the lock request payload for the group-coordination strategy.
// An action joins every group in its target set atomically: admission is
// all-or-nothing.
type GroupInfo struct {
	baseInfo
	groups []GroupID
	role   GroupRole
}

// NewGroupInfo creates a group lock request with a fresh unique id.
// Duplicate group ids in the target set are collapsed.
func NewGroupInfo(strategyID StrategyID, actionID ActionID, role GroupRole, groups ...GroupID) GroupInfo {
	seen := make(map[GroupID]struct{}, len(groups))
	uniq := make([]GroupID, 0, len(groups))
	for _, g := range groups {
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		uniq = append(uniq, g)
	}
	return GroupInfo{
		baseInfo: newBaseInfo(strategyID, actionID),
		groups:   uniq,
		role:     role,
	}
}

// Groups returns a copy of the target group set.
func (i GroupInfo) Groups() []GroupID {
	out := make([]GroupID, len(i.groups))
	copy(out, i.groups)
	return out
}

// Role returns the role the action takes in its target groups.
func (i GroupInfo) Role() GroupRole {
	return i.role
}

// IsCancellationTarget reports whether the grant is tracked.
func (i GroupInfo) IsCancellationTarget() bool {
	return len(i.groups) > 0
}

// WithDebugLabel returns a copy of the info with the given debug label.
func (i GroupInfo) WithDebugLabel(label string) GroupInfo {
	i.debugLabel = label
	return i
}

// ============================================================================
// Concurrency limit
// ============================================================================

// ConcurrencyKey buckets requests that share one concurrency bound.
type ConcurrencyKey string

// ConcurrencyLimit bounds how many entries sharing a key may be held at once.
type ConcurrencyLimit struct {
	n         int
	unlimited bool
}

// Limited returns a bound of n concurrent holders. n < 1 is treated as 1.
func Limited(n int) ConcurrencyLimit {
	if n < 1 {
		n = 1
	}
	return ConcurrencyLimit{n: n}
}

// Unlimited returns a limit that tracks entries but never rejects.
func Unlimited() ConcurrencyLimit {
	return ConcurrencyLimit{unlimited: true}
}

// Allows reports whether one more holder is admitted given the current count.
func (l ConcurrencyLimit) Allows(held int) bool {
	return l.unlimited || held < l.n
}

// String returns the string representation of the limit.
func (l ConcurrencyLimit) String() string {
	if l.unlimited {
		return "unlimited"
	}
	return fmt.Sprintf("limited(%d)", l.n)
}

// ConcurrencyInfo is the lock request payload for the concurrency-limited
// strategy.
type ConcurrencyInfo struct {
	baseInfo
	key   ConcurrencyKey
	limit ConcurrencyLimit
}

// NewConcurrencyInfo creates a concurrency-limited lock request with a fresh
// unique id.
func NewConcurrencyInfo(strategyID StrategyID, actionID ActionID, key ConcurrencyKey, limit ConcurrencyLimit) ConcurrencyInfo {
	return ConcurrencyInfo{
		baseInfo: newBaseInfo(strategyID, actionID),
		key:      key,
		limit:    limit,
	}
}

// Key returns the concurrency key of the request.
func (i ConcurrencyInfo) Key() ConcurrencyKey {
	return i.key
}

// Limit returns the concurrency limit of the request.
func (i ConcurrencyInfo) Limit() ConcurrencyLimit {
	return i.limit
}

// IsCancellationTarget reports whether the grant is tracked.
func (i ConcurrencyInfo) IsCancellationTarget() bool {
	return true
}

// WithDebugLabel returns a copy of the info with the given debug label.
func (i ConcurrencyInfo) WithDebugLabel(label string) ConcurrencyInfo {
	i.debugLabel = label
	return i
}

// ============================================================================
// Dynamic condition
// ============================================================================

// Condition is a caller-supplied admission predicate evaluated at lock time.
// A nil return admits the request; a non-nil error cancels it and is passed
// through to the caller unchanged.
type Condition func() error

// DynamicInfo is the lock request payload for the dynamic-condition strategy.
type DynamicInfo struct {
	baseInfo
	condition Condition
}

// NewDynamicInfo creates a dynamic-condition lock request with a fresh unique
// id. A nil condition always admits.
func NewDynamicInfo(strategyID StrategyID, actionID ActionID, condition Condition) DynamicInfo {
	return DynamicInfo{
		baseInfo:  newBaseInfo(strategyID, actionID),
		condition: condition,
	}
}

// Condition returns the admission predicate of the request.
func (i DynamicInfo) Condition() Condition {
	return i.condition
}

// IsCancellationTarget reports whether the grant is tracked.
func (i DynamicInfo) IsCancellationTarget() bool {
	return true
}

// WithDebugLabel returns a copy of the info with the given debug label.
func (i DynamicInfo) WithDebugLabel(label string) DynamicInfo {
	i.debugLabel = label
	return i
}

// ============================================================================
// Composite
// ============================================================================

// CompositeInfo is the lock request payload for a composite strategy: a tuple
// of sub-infos sharing one action id and one unique id. Build it with
// NewCompositeInfo so the shared identity is rebound onto every sub-info.
type CompositeInfo struct {
	baseInfo
	subs []Info
}

// NewCompositeInfo creates a composite lock request. It mints one shared
// unique id and rebinds every sub-info to the shared (actionID, uniqueID)
// identity. Only the built-in info kinds are supported; anything else returns
// ErrCompositeInfoMismatch. Between 2 and 5 sub-infos are required.
func NewCompositeInfo(strategyID StrategyID, actionID ActionID, subs ...Info) (CompositeInfo, error) {
	if len(subs) < 2 || len(subs) > 5 {
		return CompositeInfo{}, fmt.Errorf("%w: got %d sub-infos", ErrCompositeStrategyCount, len(subs))
	}
	base := newBaseInfo(strategyID, actionID)
	rebound := make([]Info, len(subs))
	for n, sub := range subs {
		r, err := rebindInfo(sub, actionID, base.uniqueID)
		if err != nil {
			return CompositeInfo{}, err
		}
		rebound[n] = r
	}
	return CompositeInfo{baseInfo: base, subs: rebound}, nil
}

// Subs returns a copy of the sub-info tuple.
func (i CompositeInfo) Subs() []Info {
	out := make([]Info, len(i.subs))
	copy(out, i.subs)
	return out
}

// IsCancellationTarget reports whether any sub-info grant is tracked.
func (i CompositeInfo) IsCancellationTarget() bool {
	for _, sub := range i.subs {
		if sub.IsCancellationTarget() {
			return true
		}
	}
	return false
}

// WithDebugLabel returns a copy of the info with the given debug label.
func (i CompositeInfo) WithDebugLabel(label string) CompositeInfo {
	i.debugLabel = label
	return i
}

// rebindInfo returns a copy of sub carrying the shared composite identity.
// The set of supported kinds is closed: the registry stores heterogeneous
// strategies behind closures, and rebinding is the one place that needs to
// enumerate payload kinds.
func rebindInfo(sub Info, actionID ActionID, id uuid.UUID) (Info, error) {
	switch s := sub.(type) {
	case SingleExecutionInfo:
		s.actionID, s.uniqueID = actionID, id
		return s, nil
	case PriorityInfo:
		s.actionID, s.uniqueID = actionID, id
		return s, nil
	case GroupInfo:
		s.actionID, s.uniqueID = actionID, id
		return s, nil
	case ConcurrencyInfo:
		s.actionID, s.uniqueID = actionID, id
		return s, nil
	case DynamicInfo:
		s.actionID, s.uniqueID = actionID, id
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unsupported sub-info %T", ErrCompositeInfoMismatch, sub)
	}
}
