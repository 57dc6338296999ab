package game

import (
	"fmt"

	"go.uber.org/zap"
)

// 监听器优先级的合法区间
const (
	MIN_LISTENER_PRIORITY = -10
	MAX_LISTENER_PRIORITY = 10
)

// 固定的生命周期事件通道名
const (
	EVENT_GAME_START    = "game_start"
	EVENT_NIGHT_START   = "night_start"
	EVENT_WOLF_LOCK     = "wolf_lock"
	EVENT_NIGHT_END     = "night_end"
	EVENT_PERSON_KILLED = "person_killed"
	EVENT_DAY_START     = "day_start"
	EVENT_VOTE_START    = "vote_start"
	EVENT_VOTE_INPUT    = "vote_input"
	EVENT_SKILL_INPUT   = "skill_input"
	EVENT_SKIP_INPUT    = "skip_input"
	EVENT_VOTE_END      = "vote_end"
	EVENT_DAY_END       = "day_end"
	EVENT_GAME_END      = "game_end"
)

// Listener 是事件回调。room 即触发事件的房间；userID 对应触发者（可能为空，
// 比如 person_killed 事件中是死者），args 携带事件附加参数。
type Listener func(room *Room, userID string, args []string)

type listenerEntry struct {
	priority int
	fn       Listener
}

// EventBase 是一条命名事件通道：一组按优先级排序的监听器，
// 外加一个计数门（lock/unlock），用于等待若干个独立贡献到齐后再触发。
type EventBase struct {
	name      string
	listeners []listenerEntry

	lockCount     int
	pendingUserID string
	pendingArgs   []string
}

func newEventBase(name string) *EventBase {
	return &EventBase{name: name}
}

func (eb *EventBase) Name() string {
	return eb.name
}

// AddListener 注册监听器。优先级必须在 [-10, 10] 内，越大越先执行；
// 同一优先级按注册顺序执行。
func (eb *EventBase) AddListener(fn Listener, priority int) error {
	if priority < MIN_LISTENER_PRIORITY || priority > MAX_LISTENER_PRIORITY {
		return fmt.Errorf(
			"事件 %s 的监听器优先级 %d 超出 [%d, %d]",
			eb.name, priority, MIN_LISTENER_PRIORITY, MAX_LISTENER_PRIORITY,
		)
	}

	// 按优先级降序插入；同优先级追加在末尾
	idx := len(eb.listeners)
	for i, entry := range eb.listeners {
		if entry.priority < priority {
			idx = i
			break
		}
	}

	eb.listeners = append(eb.listeners, listenerEntry{})
	copy(eb.listeners[idx+1:], eb.listeners[idx:])
	eb.listeners[idx] = listenerEntry{priority: priority, fn: fn}

	return nil
}

// Fire 按优先级降序依次执行所有监听器。监听器串行执行，
// 前一个完整返回后才运行下一个。
func (eb *EventBase) Fire(room *Room, userID string, args []string) {
	// 监听器体内可能继续注册监听器，遍历快照避免干扰
	snapshot := make([]listenerEntry, len(eb.listeners))
	copy(snapshot, eb.listeners)

	for _, entry := range snapshot {
		entry.fn(room, userID, args)
	}
}

// Lock 增加一个未到齐的贡献计数。
func (eb *EventBase) Lock() {
	eb.lockCount++
}

// Unlock 提交一个贡献。计数减到 0 时立刻以最近一次提交的参数触发通道；
// 计数仍大于 0 时只记录参数，不触发。
// 计数已经是 0 时直接触发（"直接推进"）：生命周期监听器依赖
// 先 Lock 再立即 Unlock 的 kick 写法来推进无人需要等待的链路。
func (eb *EventBase) Unlock(room *Room, userID string, args []string) {
	eb.pendingUserID = userID
	eb.pendingArgs = args

	if eb.lockCount > 0 {
		eb.lockCount--
	}
	if eb.lockCount > 0 {
		return
	}

	uid, fireArgs := eb.pendingUserID, eb.pendingArgs
	eb.pendingUserID, eb.pendingArgs = "", nil
	eb.Fire(room, uid, fireArgs)
}

// LockCount 返回当前未到齐的贡献数，仅用于诊断与测试。
func (eb *EventBase) LockCount() int {
	return eb.lockCount
}

// EventSystem 是一个房间的事件通道注册表：
// 固定的生命周期通道在构造时创建，角色自定义通道按名字惰性创建。
type EventSystem struct {
	channels map[string]*EventBase
}

func NewEventSystem() *EventSystem {
	es := &EventSystem{
		channels: make(map[string]*EventBase),
	}

	for _, name := range []string{
		EVENT_GAME_START,
		EVENT_NIGHT_START,
		EVENT_WOLF_LOCK,
		EVENT_NIGHT_END,
		EVENT_PERSON_KILLED,
		EVENT_DAY_START,
		EVENT_VOTE_START,
		EVENT_VOTE_INPUT,
		EVENT_SKILL_INPUT,
		EVENT_SKIP_INPUT,
		EVENT_VOTE_END,
		EVENT_DAY_END,
		EVENT_GAME_END,
	} {
		es.channels[name] = newEventBase(name)
	}

	return es
}

// Channel 返回指定名字的通道，不存在时创建（角色专属通道用）。
func (es *EventSystem) Channel(name string) *EventBase {
	ch, ok := es.channels[name]
	if !ok {
		zap.L().Debug("按需创建事件通道", zap.String("channel", name))
		ch = newEventBase(name)
		es.channels[name] = ch
	}
	return ch
}
