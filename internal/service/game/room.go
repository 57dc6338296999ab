package game

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Phase 是房间所处的阶段
type Phase string

const (
	PHASE_LOBBY  Phase = "lobby"
	PHASE_NIGHT  Phase = "night"
	PHASE_SPEECH Phase = "speech"
	PHASE_VOTE   Phase = "vote"
	PHASE_ENDED  Phase = "ended"
)

// 死亡原因，同时作为 person_killed 事件的参数
const (
	REASON_WOLF_KILL = "夜晚被狼人击杀"
	REASON_POISON    = "夜晚被女巫毒杀"
	REASON_EXILE     = "白天投票放逐"
)

// person_killed 事件里"最后一名死者已宣布，继续进入白天"的提示参数
const HINT_ADVANCE_DAY = "advance_day"

// 游戏结束事件的中止参数（管理员强制结束）
const GAME_END_ABORTED = "aborted"

// 默认的最少开局人数
const DEFAULT_MIN_PLAYERS = 4

// Messenger 是房间的对外消息出口（群发 / 私聊），由上层命令层注入。
// 投递方式（聊天平台、测试桩等）与核心逻辑无关。
type Messenger interface {
	Broadcast(text string)
	Notify(userID string, text string)
}

type deathRecord struct {
	userID string
	reason string
}

// Room 是一个房间的完整游戏状态。所有操作必须由调用方串行化
// （RoomService 为每个房间持有一把互斥锁），引擎内部不再加锁。
type Room struct {
	ID string

	messenger Messenger

	playerList []*Player
	id2Player  map[string]*Player

	events *EventSystem

	characterEnabled map[RoleKind]int
	minPlayers       int

	phase    Phase
	dayCount int

	// 白天发言
	speechOrder []string
	speechIndex int

	// 夜晚（每夜重置）
	nightKillVotes     map[string]string
	nightWolfDone      map[string]struct{}
	nightKillTarget    string
	nightKillLocked    bool
	nightPackGate      bool
	nightGateHolders   map[string]struct{}
	nightSeerDone      map[string]struct{}
	nightGuardTarget   map[string]string
	nightGuardDone     map[string]struct{}
	nightWitchDone     map[string]struct{}
	nightWitchSaved    bool
	nightPoisonTarget  map[string]string

	// 跨夜：守卫上一晚的守护目标（连续守护限制）
	guardLastTarget map[string]string

	// 结算期间累积的死亡记录与昨夜死亡名单
	pendingDeaths   []deathRecord
	lastNightDeaths []string

	// 投票（voter -> target，空串表示弃票）
	ballots         map[string]string
	ballotResponded map[string]struct{}
}

func NewRoom(id string, messenger Messenger) *Room {
	return &Room{
		ID:               id,
		messenger:        messenger,
		id2Player:        make(map[string]*Player),
		events:           NewEventSystem(),
		characterEnabled: make(map[RoleKind]int),
		minPlayers:       DEFAULT_MIN_PLAYERS,
		phase:            PHASE_LOBBY,
		guardLastTarget:  make(map[string]string),
	}
}

func (r *Room) Phase() Phase {
	return r.phase
}

func (r *Room) DayCount() int {
	return r.dayCount
}

func (r *Room) Players() []*Player {
	return r.playerList
}

func (r *Room) PlayerByID(userID string) *Player {
	return r.id2Player[userID]
}

func (r *Room) SetMinPlayers(n int) {
	if n > 0 {
		r.minPlayers = n
	}
}

func (r *Room) broadcast(text string) {
	r.messenger.Broadcast(text)
}

func (r *Room) notify(userID, text string) {
	r.messenger.Notify(userID, text)
}

// AddPlayer 把玩家加入房间，座位顺序即加入顺序。仅大厅阶段可用。
func (r *Room) AddPlayer(userID string) error {
	if r.phase != PHASE_LOBBY {
		return errors.New("游戏已开始，无法中途加入。")
	}
	if _, ok := r.id2Player[userID]; ok {
		return errors.New("不能重复加入游戏。")
	}

	p := NewPlayer(userID, len(r.playerList))
	r.playerList = append(r.playerList, p)
	r.id2Player[userID] = p
	return nil
}

// RemovePlayer 把玩家移出房间并重排座位，保持座位号连续。仅大厅阶段可用。
func (r *Room) RemovePlayer(userID string) error {
	if r.phase != PHASE_LOBBY {
		return errors.New("游戏已开始，无法中途退出。")
	}
	p, ok := r.id2Player[userID]
	if !ok {
		return errors.New("你不在房间内。")
	}

	r.playerList = append(r.playerList[:p.Order], r.playerList[p.Order+1:]...)
	for _, rest := range r.playerList[p.Order:] {
		rest.Order--
	}
	delete(r.id2Player, userID)
	return nil
}

// AddRoles 按别名启用角色（重复添加即增加数量），广播添加结果。
func (r *Room) AddRoles(aliases []string) error {
	if r.phase != PHASE_LOBBY {
		return errors.New("游戏已开始，无法修改角色配置。")
	}

	var added, unknown []string
	for _, alias := range aliases {
		alias = strings.TrimSpace(alias)
		if alias == "" {
			continue
		}
		kind, ok := KindByAlias(alias)
		if !ok {
			unknown = append(unknown, alias)
			continue
		}
		r.characterEnabled[kind]++
		added = append(added, alias)
	}

	var lines []string
	if len(added) > 0 {
		lines = append(lines, "添加了角色: "+strings.Join(added, ", "))
	}
	if len(unknown) > 0 {
		lines = append(lines, "未知角色别名: "+strings.Join(unknown, ", "))
	}
	if len(lines) == 0 {
		lines = append(lines, "没有添加任何角色")
	}
	r.broadcast(strings.Join(lines, "\n"))
	return nil
}

// RemoveRoles 按别名停用角色，广播移除结果。
func (r *Room) RemoveRoles(aliases []string) error {
	if r.phase != PHASE_LOBBY {
		return errors.New("游戏已开始，无法修改角色配置。")
	}

	var removed, notEnabled, unknown []string
	for _, alias := range aliases {
		alias = strings.TrimSpace(alias)
		if alias == "" {
			continue
		}
		kind, ok := KindByAlias(alias)
		if !ok {
			unknown = append(unknown, alias)
			continue
		}
		if r.characterEnabled[kind] <= 0 {
			notEnabled = append(notEnabled, alias)
			continue
		}
		r.characterEnabled[kind]--
		if r.characterEnabled[kind] <= 0 {
			delete(r.characterEnabled, kind)
		}
		removed = append(removed, alias)
	}

	var lines []string
	if len(removed) > 0 {
		lines = append(lines, "移除了角色: "+strings.Join(removed, ", "))
	}
	if len(notEnabled) > 0 {
		lines = append(lines, "未启用角色别名: "+strings.Join(notEnabled, ", "))
	}
	if len(unknown) > 0 {
		lines = append(lines, "未知角色别名: "+strings.Join(unknown, ", "))
	}
	if len(lines) == 0 {
		lines = append(lines, "没有移除任何角色")
	}
	r.broadcast(strings.Join(lines, "\n"))
	return nil
}

// EnabledRoles 返回当前启用的角色及数量（未配置的座位开局时补足为村民）。
func (r *Room) EnabledRoles() map[RoleKind]int {
	out := make(map[RoleKind]int, len(r.characterEnabled))
	for kind, count := range r.characterEnabled {
		out[kind] = count
	}
	return out
}

// AutoRoles 按人数套用一套常见配置：狼人数量随人数增长，1 预言家，其余村民。
func (r *Room) AutoRoles() error {
	if r.phase != PHASE_LOBBY {
		return errors.New("游戏已开始，无法修改角色配置。")
	}
	n := len(r.playerList)
	if n < r.minPlayers {
		return fmt.Errorf("玩家人数不足（至少 %d 人）。", r.minPlayers)
	}

	var wolves int
	switch {
	case n <= 5:
		wolves = 1
	case n <= 8:
		wolves = 2
	case n <= 11:
		wolves = 3
	default:
		wolves = 4
	}

	r.characterEnabled = map[RoleKind]int{
		KIND_WOLF:     wolves,
		KIND_SEER:     1,
		KIND_VILLAGER: n - wolves - 1,
	}
	r.broadcast(fmt.Sprintf("已自动配置角色：狼人 x%d，预言家 x1，其余为村民。", wolves))
	return nil
}

// ResetKeepingPlayers 在一局结束后重开大厅，保留玩家与角色配置。
func (r *Room) ResetKeepingPlayers() error {
	if r.phase != PHASE_ENDED && r.phase != PHASE_LOBBY {
		return errors.New("请先结束上一局游戏。")
	}
	for _, p := range r.playerList {
		p.Alive = true
		p.Role = nil
	}
	r.events = NewEventSystem()
	r.phase = PHASE_LOBBY
	r.dayCount = 0
	r.guardLastTarget = make(map[string]string)
	return nil
}

// StartGame 校验配置、洗牌发身份并进入第一夜。
func (r *Room) StartGame() error {
	if r.phase != PHASE_LOBBY {
		return errors.New("游戏已开始，无法重复开始。")
	}
	if len(r.playerList) < r.minPlayers {
		return fmt.Errorf("玩家人数不足（至少 %d 人）。", r.minPlayers)
	}

	pool, err := r.buildRolePool()
	if err != nil {
		return err
	}

	rand.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	r.dealRoles(pool)
	return nil
}

// buildRolePool 把启用的角色展开成与玩家数等长的身份池，空位补村民。
func (r *Room) buildRolePool() ([]RoleKind, error) {
	var pool []RoleKind
	for kind, count := range r.characterEnabled {
		for i := 0; i < count; i++ {
			pool = append(pool, kind)
		}
	}
	if len(pool) > len(r.playerList) {
		return nil, errors.New("已启用的角色数量超过玩家人数，请先删角色。")
	}
	for len(pool) < len(r.playerList) {
		pool = append(pool, KIND_VILLAGER)
	}

	hasWolfCamp := false
	for _, kind := range pool {
		if spec := specByKind(kind); spec != nil && spec.camp == CAMP_WOLF {
			hasWolfCamp = true
			break
		}
	}
	if !hasWolfCamp {
		return nil, errors.New("至少需要 1 个狼人阵营角色。")
	}
	return pool, nil
}

// dealRoles 重置运行期状态，按池子顺序给玩家发身份并触发开局事件。
// StartGame 在调用前洗牌；测试可以直接传入固定顺序的池子。
func (r *Room) dealRoles(pool []RoleKind) {
	r.events = NewEventSystem()
	r.wireLifecycle()

	r.dayCount = 0
	r.speechOrder = nil
	r.speechIndex = 0
	r.guardLastTarget = make(map[string]string)
	r.lastNightDeaths = nil
	r.ballots = make(map[string]string)
	r.ballotResponded = make(map[string]struct{})

	for i, p := range r.playerList {
		p.Alive = true
		spec := specByKind(pool[i])
		p.Role = spec.factory(r, p)
		if wirer, ok := p.Role.(channelWirer); ok {
			wirer.wireChannels(r.events)
		}
	}

	zap.L().Info(
		"游戏开局",
		zap.String("room_id", r.ID),
		zap.Int("players", len(r.playerList)),
	)

	r.events.Channel(EVENT_GAME_START).Fire(r, "", nil)
}

// wireLifecycle 注册房间自身的生命周期监听器。
// 约定：+10 为房间的前置逻辑（重置 / 布门），0 为角色分发，-10 为推进。
func (r *Room) wireLifecycle() {
	es := r.events

	mustListen(es.Channel(EVENT_GAME_START), r.onGameStartAnnounce, 10)
	mustListen(es.Channel(EVENT_GAME_START), r.onGameStartEnterNight, -10)

	mustListen(es.Channel(EVENT_NIGHT_START), r.onNightStartArm, 10)
	mustListen(es.Channel(EVENT_NIGHT_START), r.onNightStartDispatch, 0)
	mustListen(es.Channel(EVENT_NIGHT_START), r.onNightStartKick, -10)

	mustListen(es.Channel(EVENT_WOLF_LOCK), r.onWolfLockDispatch, 0)
	mustListen(es.Channel(EVENT_NIGHT_END), r.onNightEnd, 0)

	mustListen(es.Channel(EVENT_PERSON_KILLED), r.onPersonKilledDispatch, 0)
	mustListen(es.Channel(EVENT_PERSON_KILLED), r.onPersonKilledAdvance, -10)

	mustListen(es.Channel(EVENT_DAY_START), r.onDayStart, 10)
	mustListen(es.Channel(EVENT_DAY_END), r.onDayEnd, 0)

	mustListen(es.Channel(EVENT_VOTE_START), r.onVoteStartArm, 10)
	mustListen(es.Channel(EVENT_VOTE_INPUT), r.onVoteInput, 0)
	mustListen(es.Channel(EVENT_SKILL_INPUT), r.onSkillInput, 0)
	mustListen(es.Channel(EVENT_SKIP_INPUT), r.onSkipInput, 0)
	mustListen(es.Channel(EVENT_VOTE_END), r.onVoteEnd, 0)

	mustListen(es.Channel(EVENT_GAME_END), r.onGameEnd, 0)
}

// mustListen 只用于注册房间 / 角色自带的监听器：优先级常量写死在代码里，
// 越界属于编程错误，直接终止。
func mustListen(ch *EventBase, fn Listener, priority int) {
	if err := ch.AddListener(fn, priority); err != nil {
		panic(err)
	}
}

func (r *Room) onGameStartAnnounce(_ *Room, _ string, _ []string) {
	seats := make([]string, 0, len(r.playerList))
	for _, p := range r.playerList {
		seats = append(seats, fmt.Sprintf("%d号(%s)", p.Seat(), p.UserID))
	}
	r.broadcast("游戏开始！座位顺序: " + strings.Join(seats, " "))

	for _, p := range r.playerList {
		if p.Role == nil {
			continue
		}
		campName := "好人阵营"
		if p.Role.Camp() == CAMP_WOLF {
			campName = "狼人阵营"
		}
		r.notify(p.UserID, fmt.Sprintf(
			"你的编号: %d号\n你的身份: %s（%s）",
			p.Seat(), p.Role.RoleName(), campName,
		))
	}
}

func (r *Room) onGameStartEnterNight(_ *Room, _ string, _ []string) {
	r.startNight()
}

// GetPlayerBySeat 按 1 起始座位号取玩家，越界返回 nil。
func (r *Room) GetPlayerBySeat(seat int) *Player {
	if seat < 1 || seat > len(r.playerList) {
		return nil
	}
	return r.playerList[seat-1]
}

func (r *Room) alivePlayers() []*Player {
	var out []*Player
	for _, p := range r.playerList {
		if p.Alive {
			out = append(out, p)
		}
	}
	return out
}

func (r *Room) aliveKindUserIDs(kind RoleKind) []string {
	var out []string
	for _, p := range r.playerList {
		if p.Alive && p.Role != nil && p.Role.Kind() == kind {
			out = append(out, p.UserID)
		}
	}
	return out
}

// seatLabel 把 userID 转成"X号"展示文本。
func (r *Room) seatLabel(userID string) string {
	p := r.id2Player[userID]
	if p == nil {
		return userID
	}
	return fmt.Sprintf("%d号", p.Seat())
}

// requireActor 校验操作者是在场且存活的玩家，供各入口复用。
func (r *Room) requireActor(userID string) (*Player, error) {
	if r.phase == PHASE_ENDED {
		return nil, errors.New("游戏已结束。")
	}
	p := r.id2Player[userID]
	if p == nil || !p.Alive {
		return nil, errors.New("你不在游戏中，或已死亡。")
	}
	return p, nil
}

// SubmitSkill 受理一次技能输入并触发技能事件。
// 阶段 / 目标 / 次数等细化校验由角色逻辑完成，拒绝原因私聊给操作者。
func (r *Room) SubmitSkill(actorID, verb string, args []string) error {
	p, err := r.requireActor(actorID)
	if err != nil {
		return err
	}
	if p.Role == nil {
		return errors.New("游戏还未开始（尚未分配身份）。")
	}

	fireArgs := append([]string{verb}, args...)
	r.events.Channel(EVENT_SKILL_INPUT).Fire(r, actorID, fireArgs)
	return nil
}

// SubmitSkip 受理一次跳过输入：夜晚放弃行动 / 结束发言 / 弃票。
func (r *Room) SubmitSkip(actorID string) error {
	if _, err := r.requireActor(actorID); err != nil {
		return err
	}
	r.events.Channel(EVENT_SKIP_INPUT).Fire(r, actorID, nil)
	return nil
}

// SubmitVote 受理一次投票输入，仅投票阶段有效。
func (r *Room) SubmitVote(actorID string, targetSeat int) error {
	if _, err := r.requireActor(actorID); err != nil {
		return err
	}
	r.events.Channel(EVENT_VOTE_INPUT).Fire(r, actorID, []string{strconv.Itoa(targetSeat)})
	return nil
}

// EndGame 强制中止本局（管理员操作）。
func (r *Room) EndGame() error {
	if r.phase == PHASE_LOBBY {
		return errors.New("游戏还未开始。")
	}
	if r.phase == PHASE_ENDED {
		return errors.New("游戏已结束。")
	}
	r.events.Channel(EVENT_GAME_END).Fire(r, "", []string{GAME_END_ABORTED})
	return nil
}

func (r *Room) onSkillInput(_ *Room, actorID string, args []string) {
	p := r.id2Player[actorID]
	if p == nil || !p.Alive || p.Role == nil {
		return
	}
	if len(args) == 0 {
		r.notify(actorID, "用法：`skill <动作> [参数]`")
		return
	}

	user, ok := p.Role.(skillUser)
	if !ok {
		r.notify(actorID, "你的角色没有主动技能。")
		return
	}

	verb := strings.ToLower(args[0])
	if err := user.onSkillUse(verb, args[1:]); err != nil {
		r.notify(actorID, err.Error())
	}
}

func (r *Room) onSkipInput(_ *Room, actorID string, _ []string) {
	p := r.id2Player[actorID]
	if p == nil || !p.Alive {
		return
	}

	switch r.phase {
	case PHASE_NIGHT:
		if p.Role == nil {
			r.notify(actorID, "你还没有身份。")
			return
		}
		skipper, ok := p.Role.(nightSkipper)
		if !ok {
			r.notify(actorID, "你没有需要跳过的夜晚行动。")
			return
		}
		if err := skipper.onNightSkip(); err != nil {
			r.notify(actorID, err.Error())
		}

	case PHASE_SPEECH:
		r.endSpeechTurn(actorID)

	case PHASE_VOTE:
		r.castAbstain(actorID)

	default:
		r.notify(actorID, "当前阶段不支持跳过。")
	}
}

func (r *Room) onGameEnd(_ *Room, _ string, args []string) {
	if r.phase == PHASE_ENDED {
		return
	}

	result := ""
	if len(args) > 0 {
		result = args[0]
	}

	switch result {
	case string(CAMP_GOOD):
		r.broadcast("游戏结束: 好人胜利！")
	case string(CAMP_WOLF):
		r.broadcast("游戏结束: 狼人胜利！")
	case GAME_END_ABORTED:
		r.broadcast("游戏已中止。")
	default:
		r.broadcast("游戏结束。")
	}

	r.phase = PHASE_ENDED

	zap.L().Info(
		"游戏结束",
		zap.String("room_id", r.ID),
		zap.String("result", result),
		zap.Int("day_count", r.dayCount),
	)
}
