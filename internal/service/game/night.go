package game

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// startNight 进入夜晚并触发夜晚开始事件链。
func (r *Room) startNight() {
	if r.phase == PHASE_ENDED {
		return
	}
	r.phase = PHASE_NIGHT

	r.nightKillVotes = make(map[string]string)
	r.nightWolfDone = make(map[string]struct{})
	r.nightKillTarget = ""
	r.nightKillLocked = false
	r.nightPackGate = false
	r.nightGateHolders = make(map[string]struct{})
	r.nightSeerDone = make(map[string]struct{})
	r.nightGuardTarget = make(map[string]string)
	r.nightGuardDone = make(map[string]struct{})
	r.nightWitchDone = make(map[string]struct{})
	r.nightWitchSaved = false
	r.nightPoisonTarget = make(map[string]string)
	r.pendingDeaths = nil
	r.lastNightDeaths = nil

	r.broadcast("天黑请闭眼。")
	r.events.Channel(EVENT_NIGHT_START).Fire(r, "", nil)
}

// onNightStartArm 给夜晚结算布门：狼人整包占一个名额，
// 其余需要行动的角色每人占一个名额，行动或放弃时释放。
func (r *Room) onNightStartArm(_ *Room, _ string, _ []string) {
	nightEnd := r.events.Channel(EVENT_NIGHT_END)

	nightEnd.Lock()
	r.nightPackGate = true

	for _, p := range r.alivePlayers() {
		holder, ok := p.Role.(nightGateHolder)
		if !ok || !holder.wantsNightGate() {
			continue
		}
		nightEnd.Lock()
		r.nightGateHolders[p.UserID] = struct{}{}
	}

	zap.L().Debug(
		"夜晚结算门已布置",
		zap.String("room_id", r.ID),
		zap.Int("lock_count", nightEnd.LockCount()),
	)
}

func (r *Room) onNightStartDispatch(_ *Room, _ string, _ []string) {
	for _, p := range r.alivePlayers() {
		if starter, ok := p.Role.(nightStarter); ok {
			starter.onNightStart()
		}
	}
}

// onNightStartKick 处理无狼可等的边界：场上没有存活狼人时立即锁定"平安"。
func (r *Room) onNightStartKick(_ *Room, _ string, _ []string) {
	r.lockNightKillIfPossible()
}

// releaseNightGate 释放某玩家占用的夜晚结算名额（最多一次）。
func (r *Room) releaseNightGate(userID string) {
	if _, ok := r.nightGateHolders[userID]; !ok {
		return
	}
	delete(r.nightGateHolders, userID)
	r.events.Channel(EVENT_NIGHT_END).Unlock(r, userID, nil)
}

// lockNightKillIfPossible 尝试锁定狼人刀口：
// 某目标获得存活狼人的严格多数票时立即锁定；
// 所有狼人都已响应（投票或放弃）但未形成多数时锁定为"平安"。
// 锁定后触发 wolf_lock 事件并释放狼人整包的结算名额。
func (r *Room) lockNightKillIfPossible() {
	if r.phase != PHASE_NIGHT || r.nightKillLocked {
		return
	}

	wolves := r.aliveKindUserIDs(KIND_WOLF)

	locked := false
	target := ""

	if len(wolves) == 0 {
		locked = true
	} else {
		counts := make(map[string]int)
		for _, wolfID := range wolves {
			if t, ok := r.nightKillVotes[wolfID]; ok {
				counts[t]++
			}
		}
		for t, c := range counts {
			if c*2 > len(wolves) {
				locked = true
				target = t
				break
			}
		}
		if !locked {
			allDone := true
			for _, wolfID := range wolves {
				if _, ok := r.nightWolfDone[wolfID]; !ok {
					allDone = false
					break
				}
			}
			locked = allDone
		}
	}

	if !locked {
		return
	}

	r.nightKillLocked = true
	r.nightKillTarget = target

	zap.L().Debug(
		"狼人刀口已锁定",
		zap.String("room_id", r.ID),
		zap.String("target", target),
	)

	r.events.Channel(EVENT_WOLF_LOCK).Fire(r, target, nil)

	if r.nightPackGate {
		r.nightPackGate = false
		r.events.Channel(EVENT_NIGHT_END).Unlock(r, "", nil)
	}
}

// onWolfLockDispatch 把锁定结果分发给关心刀口的角色（狼人同步结果，女巫收到用药提示）。
func (r *Room) onWolfLockDispatch(_ *Room, targetID string, _ []string) {
	for _, p := range r.alivePlayers() {
		if observer, ok := p.Role.(wolfLockObserver); ok {
			observer.onWolfLock(targetID)
		}
	}
}

// wolfVoteKill 记录一名狼人的击杀投票。
func (r *Room) wolfVoteKill(wolfID string, seat int) error {
	if r.phase != PHASE_NIGHT {
		return errors.New("现在不是夜晚阶段。")
	}
	if r.nightKillLocked {
		return errors.New("狼人行动已锁定。")
	}
	if _, done := r.nightWolfDone[wolfID]; done {
		return errors.New("你本夜已经投票或放弃，无法再次行动。")
	}

	target := r.GetPlayerBySeat(seat)
	if target == nil {
		return errors.New("目标编号无效。")
	}
	if !target.Alive {
		return errors.New("目标已死亡。")
	}
	if target.UserID == wolfID {
		return errors.New("不能选择自己作为击杀目标。")
	}

	r.nightKillVotes[wolfID] = target.UserID
	r.nightWolfDone[wolfID] = struct{}{}
	r.notify(wolfID, fmt.Sprintf("已投票击杀 %d号。", target.Seat()))

	r.lockNightKillIfPossible()
	return nil
}

// wolfSkip 记录一名狼人的显式放弃。
func (r *Room) wolfSkip(wolfID string) error {
	if r.phase != PHASE_NIGHT {
		return errors.New("现在不是夜晚阶段。")
	}
	if r.nightKillLocked {
		return errors.New("狼人行动已锁定。")
	}
	if _, done := r.nightWolfDone[wolfID]; done {
		return errors.New("你本夜已经投票或放弃，无法再次行动。")
	}

	r.nightWolfDone[wolfID] = struct{}{}
	r.notify(wolfID, "你已放弃本夜击杀投票。")

	r.lockNightKillIfPossible()
	return nil
}

// seerCheck 查验目标阵营，结果经预言家的专属结果通道私发。
func (r *Room) seerCheck(seerID string, seat int) error {
	if r.phase != PHASE_NIGHT {
		return errors.New("现在不是夜晚阶段，无法查验。")
	}
	if _, done := r.nightSeerDone[seerID]; done {
		return errors.New("你今晚已经完成查验/放弃，无需重复操作。")
	}

	target := r.GetPlayerBySeat(seat)
	if target == nil {
		return errors.New("目标编号无效。")
	}
	if !target.Alive {
		return errors.New("目标已死亡。")
	}
	if target.Role == nil {
		return errors.New("目标身份未知。")
	}

	result := "好人"
	if target.Role.Camp() == CAMP_WOLF {
		result = "狼人"
	}

	r.nightSeerDone[seerID] = struct{}{}
	r.events.Channel(SEER_RESULT_CHANNEL).Fire(
		r, seerID,
		[]string{fmt.Sprintf("查验结果: %d号 是 %s。", target.Seat(), result)},
	)
	r.releaseNightGate(seerID)
	return nil
}

// seerSkip 记录预言家的显式放弃。
func (r *Room) seerSkip(seerID string) error {
	if r.phase != PHASE_NIGHT {
		return errors.New("现在不是夜晚阶段。")
	}
	if _, done := r.nightSeerDone[seerID]; done {
		return errors.New("你今晚已经完成查验/放弃，无需重复操作。")
	}

	r.nightSeerDone[seerID] = struct{}{}
	r.notify(seerID, "你已放弃本夜查验。")
	r.releaseNightGate(seerID)
	return nil
}

// guardProtect 记录守卫的守护目标（不能连续两晚守同一人）。
func (r *Room) guardProtect(guardID string, seat int) error {
	if r.phase != PHASE_NIGHT {
		return errors.New("现在不是夜晚阶段，无法守护。")
	}
	if _, done := r.nightGuardDone[guardID]; done {
		return errors.New("你今晚已经完成守护/放弃，无需重复操作。")
	}

	target := r.GetPlayerBySeat(seat)
	if target == nil {
		return errors.New("目标编号无效。")
	}
	if !target.Alive {
		return errors.New("目标已死亡。")
	}
	if last, ok := r.guardLastTarget[guardID]; ok && last == target.UserID {
		return errors.New("不能连续两晚守护同一名玩家。")
	}

	r.nightGuardTarget[guardID] = target.UserID
	r.nightGuardDone[guardID] = struct{}{}
	r.notify(guardID, fmt.Sprintf("你将守护 %d号。", target.Seat()))
	r.releaseNightGate(guardID)
	return nil
}

// guardSkip 记录守卫的显式放弃。
func (r *Room) guardSkip(guardID string) error {
	if r.phase != PHASE_NIGHT {
		return errors.New("现在不是夜晚阶段。")
	}
	if _, done := r.nightGuardDone[guardID]; done {
		return errors.New("你今晚已经完成守护/放弃，无需重复操作。")
	}

	r.nightGuardDone[guardID] = struct{}{}
	r.notify(guardID, "你已放弃本夜守护。")
	r.releaseNightGate(guardID)
	return nil
}

// witchSave 使用解药取消本夜的狼刀（每夜至多一次；解药本身的存量由角色实例管理）。
func (r *Room) witchSave(witchID string) error {
	if r.phase != PHASE_NIGHT {
		return errors.New("现在不是夜晚阶段，无法使用女巫技能。")
	}
	if r.nightWitchSaved {
		return errors.New("本夜已使用过解药。")
	}
	if !r.nightKillLocked || r.nightKillTarget == "" {
		return errors.New("当前没有可救的人（狼刀未确定或本夜平安）。")
	}

	r.nightWitchSaved = true
	r.notify(witchID, fmt.Sprintf("你使用了解药，救下了 %s。", r.seatLabel(r.nightKillTarget)))
	return nil
}

// witchPoison 记录毒杀目标（独立于狼刀的死亡来源）。
func (r *Room) witchPoison(witchID string, seat int) error {
	if r.phase != PHASE_NIGHT {
		return errors.New("现在不是夜晚阶段，无法使用女巫技能。")
	}

	target := r.GetPlayerBySeat(seat)
	if target == nil {
		return errors.New("目标编号无效。")
	}
	if !target.Alive {
		return errors.New("目标已死亡。")
	}
	if target.UserID == witchID {
		return errors.New("不能对自己使用毒药。")
	}
	if r.nightWitchSaved && target.UserID == r.nightKillTarget {
		return errors.New("不能毒杀你刚救下的玩家。")
	}

	r.nightPoisonTarget[witchID] = target.UserID
	r.notify(witchID, fmt.Sprintf("你对 %d号 使用了毒药。", target.Seat()))
	return nil
}

// witchMarkDone 标记女巫本夜行动完毕并释放结算名额（幂等）。
func (r *Room) witchMarkDone(witchID string) {
	if _, done := r.nightWitchDone[witchID]; done {
		return
	}
	r.nightWitchDone[witchID] = struct{}{}
	r.releaseNightGate(witchID)
}

// witchSkip 记录女巫的显式放弃。
func (r *Room) witchSkip(witchID string) error {
	if r.phase != PHASE_NIGHT {
		return errors.New("现在不是夜晚阶段。")
	}
	if _, done := r.nightWitchDone[witchID]; done {
		return errors.New("你今晚已经完成用药/放弃，无需重复操作。")
	}

	r.notify(witchID, "你已放弃本夜用药。")
	r.witchMarkDone(witchID)
	return nil
}

// onNightEnd 在所有夜晚行动到齐后结算死亡名单。
//
// 顺序：狼刀入列 -> 守卫抵消狼刀（不抵消毒杀）-> 毒杀按目标去重入列 ->
// 统一翻转存活标记并逐个触发 person_killed，最后一个事件带推进提示。
func (r *Room) onNightEnd(_ *Room, _ string, _ []string) {
	if r.phase != PHASE_NIGHT {
		return
	}

	r.pendingDeaths = nil

	// 狼刀（若未被解药取消）
	if r.nightKillTarget != "" && !r.nightWitchSaved {
		r.pendingDeaths = append(r.pendingDeaths, deathRecord{
			userID: r.nightKillTarget,
			reason: REASON_WOLF_KILL,
		})
	}

	// 守卫：记录本夜守护并滚动"上一晚目标"，守护只抵消狼刀
	protected := make(map[string]struct{})
	newLast := make(map[string]string, len(r.nightGuardTarget))
	for guardID, targetID := range r.nightGuardTarget {
		protected[targetID] = struct{}{}
		newLast[guardID] = targetID
	}
	r.guardLastTarget = newLast

	kept := r.pendingDeaths[:0]
	for _, d := range r.pendingDeaths {
		if d.reason == REASON_WOLF_KILL {
			if _, ok := protected[d.userID]; ok {
				continue
			}
		}
		kept = append(kept, d)
	}
	r.pendingDeaths = kept

	// 毒杀：独立死亡来源，按目标去重
	for _, targetID := range r.nightPoisonTarget {
		dup := false
		for _, d := range r.pendingDeaths {
			if d.userID == targetID {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		if p := r.id2Player[targetID]; p != nil && p.Alive {
			r.pendingDeaths = append(r.pendingDeaths, deathRecord{
				userID: targetID,
				reason: REASON_POISON,
			})
		}
	}

	victims := r.pendingDeaths
	r.pendingDeaths = nil

	for _, d := range victims {
		r.lastNightDeaths = append(r.lastNightDeaths, d.userID)
	}

	if len(victims) == 0 {
		r.enterDay()
		return
	}

	for i, d := range victims {
		r.killPlayer(d.userID, d.reason, i == len(victims)-1)
	}
}

// killPlayer 翻转存活标记并触发 person_killed 事件。
// hintAdvance 表示这是本轮结算的最后一名死者，事件携带进入白天的提示。
func (r *Room) killPlayer(userID, reason string, hintAdvance bool) {
	p := r.id2Player[userID]
	if p == nil || !p.Alive {
		return
	}
	p.Alive = false

	args := []string{reason}
	if hintAdvance {
		args = append(args, HINT_ADVANCE_DAY)
	}
	r.events.Channel(EVENT_PERSON_KILLED).Fire(r, userID, args)
}

func (r *Room) onPersonKilledDispatch(_ *Room, victimID string, args []string) {
	p := r.id2Player[victimID]
	if p == nil || p.Role == nil {
		return
	}
	reason := ""
	if len(args) > 0 {
		reason = args[0]
	}
	if observer, ok := p.Role.(deathObserver); ok {
		observer.onDeath(reason)
	}
}

// onPersonKilledAdvance 在最后一名夜晚死者宣布完毕后推进到白天。
func (r *Room) onPersonKilledAdvance(_ *Room, _ string, args []string) {
	for _, arg := range args {
		if arg == HINT_ADVANCE_DAY {
			r.enterDay()
			return
		}
	}
}

// enterDay 广播天亮信息并触发白天开始事件。
func (r *Room) enterDay() {
	if r.phase != PHASE_NIGHT {
		return
	}

	if len(r.lastNightDeaths) == 0 {
		r.broadcast("天亮了: 昨晚是平安夜。")
	} else {
		seats := make([]string, 0, len(r.lastNightDeaths))
		for _, id := range r.lastNightDeaths {
			seats = append(seats, r.seatLabel(id))
		}
		r.broadcast(fmt.Sprintf("天亮了: 昨晚 %s 死亡。", strings.Join(seats, "、")))
	}

	r.events.Channel(EVENT_DAY_START).Fire(r, "", nil)
}
