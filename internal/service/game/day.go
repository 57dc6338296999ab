package game

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"
)

// onDayStart 天亮后先判胜负，未分胜负则进入发言阶段。
func (r *Room) onDayStart(_ *Room, _ string, _ []string) {
	if winner := r.checkWinner(); winner != "" {
		r.endGame(winner)
		return
	}
	r.startDaySpeech()
}

// startDaySpeech 按天数奇偶决定发言方向：第一天从小号到大号，之后逐天反转。
func (r *Room) startDaySpeech() {
	r.phase = PHASE_SPEECH
	r.dayCount++

	living := r.alivePlayers()
	r.speechOrder = make([]string, 0, len(living))
	for _, p := range living {
		r.speechOrder = append(r.speechOrder, p.UserID)
	}
	if r.dayCount%2 == 0 {
		for i, j := 0, len(r.speechOrder)-1; i < j; i, j = i+1, j-1 {
			r.speechOrder[i], r.speechOrder[j] = r.speechOrder[j], r.speechOrder[i]
		}
	}
	r.speechIndex = 0

	direction := "从小到大"
	if r.dayCount%2 == 0 {
		direction = "从大到小"
	}
	r.broadcast(fmt.Sprintf(
		"第 %d 天，发言阶段开始（%s）。请 %s 发言，发言完毕请 `skip`。",
		r.dayCount, direction, r.seatLabel(r.speechOrder[0]),
	))
}

// endSpeechTurn 当前发言人确认结束后轮到下一位，全部发完进入投票。
func (r *Room) endSpeechTurn(userID string) {
	if r.phase != PHASE_SPEECH {
		return
	}
	if r.speechIndex >= len(r.speechOrder) || r.speechOrder[r.speechIndex] != userID {
		current := ""
		if r.speechIndex < len(r.speechOrder) {
			current = r.seatLabel(r.speechOrder[r.speechIndex])
		}
		r.notify(userID, fmt.Sprintf("还没轮到你发言。当前请 %s 发言。", current))
		return
	}

	r.speechIndex++
	if r.speechIndex >= len(r.speechOrder) {
		r.broadcast("发言结束，开始投票。")
		r.events.Channel(EVENT_DAY_END).Fire(r, "", nil)
		return
	}
	r.broadcast(fmt.Sprintf(
		"%s 发言结束。请 %s 发言。",
		r.seatLabel(userID), r.seatLabel(r.speechOrder[r.speechIndex]),
	))
}

func (r *Room) onDayEnd(_ *Room, _ string, _ []string) {
	r.startVote()
}

// startVote 进入投票阶段并触发投票开始事件。
func (r *Room) startVote() {
	r.phase = PHASE_VOTE
	r.ballots = make(map[string]string)
	r.ballotResponded = make(map[string]struct{})
	r.events.Channel(EVENT_VOTE_START).Fire(r, "", nil)
}

// onVoteStartArm 按存活人数给 vote_end 上计数门，每名玩家首次响应时释放一个名额。
func (r *Room) onVoteStartArm(_ *Room, _ string, _ []string) {
	voteEnd := r.events.Channel(EVENT_VOTE_END)
	living := r.alivePlayers()
	for range living {
		voteEnd.Lock()
	}

	r.broadcast(fmt.Sprintf(
		"投票阶段：`vote <编号>` 投票放逐，`skip` 弃票。共 %d 人需要表态。",
		len(living),
	))
}

// onVoteInput 受理一张选票。改票允许，只在首次表态时释放结算名额。
func (r *Room) onVoteInput(_ *Room, voterID string, args []string) {
	if r.phase != PHASE_VOTE {
		r.notify(voterID, "现在不是投票阶段。")
		return
	}
	voter := r.id2Player[voterID]
	if voter == nil || !voter.Alive {
		return
	}
	if len(args) == 0 {
		r.notify(voterID, "用法：`vote <编号>`")
		return
	}

	seat, err := strconv.Atoi(args[0])
	if err != nil {
		r.notify(voterID, "目标编号无效。")
		return
	}
	target := r.GetPlayerBySeat(seat)
	if target == nil {
		r.notify(voterID, "目标编号无效。")
		return
	}
	if !target.Alive {
		r.notify(voterID, "目标已死亡，无法投票。")
		return
	}

	r.ballots[voterID] = target.UserID
	r.broadcast(fmt.Sprintf("%s 投票给 %s。", r.seatLabel(voterID), r.seatLabel(target.UserID)))
	r.markBallotResponded(voterID)
}

// castAbstain 记录一张弃票。
func (r *Room) castAbstain(voterID string) {
	if r.phase != PHASE_VOTE {
		return
	}
	voter := r.id2Player[voterID]
	if voter == nil || !voter.Alive {
		return
	}

	r.ballots[voterID] = ""
	r.broadcast(fmt.Sprintf("%s 弃票。", r.seatLabel(voterID)))
	r.markBallotResponded(voterID)
}

func (r *Room) markBallotResponded(voterID string) {
	if _, ok := r.ballotResponded[voterID]; ok {
		return
	}
	r.ballotResponded[voterID] = struct{}{}
	r.events.Channel(EVENT_VOTE_END).Unlock(r, voterID, nil)
}

// onVoteEnd 结算选票：唯一最高票被放逐，平票或无有效票则无人出局，
// 随后判胜负，未结束则进入下一夜。
func (r *Room) onVoteEnd(_ *Room, _ string, _ []string) {
	if r.phase != PHASE_VOTE {
		return
	}

	counts := make(map[string]int)
	for _, targetID := range r.ballots {
		if targetID != "" {
			counts[targetID]++
		}
	}

	exiled := ""
	if len(counts) > 0 {
		max := 0
		tie := false
		for targetID, c := range counts {
			switch {
			case c > max:
				max = c
				exiled = targetID
				tie = false
			case c == max:
				tie = true
			}
		}
		if tie {
			exiled = ""
		}

		if exiled == "" {
			r.broadcast("投票结束: 票数相同，无人被放逐。")
		}
	} else {
		r.broadcast("投票结束: 无人被放逐。")
	}

	if exiled != "" {
		label := r.seatLabel(exiled)
		r.killPlayer(exiled, REASON_EXILE, false)
		r.broadcast(fmt.Sprintf("投票结束: %s 被放逐。", label))
	}

	zap.L().Debug(
		"投票结算完成",
		zap.String("room_id", r.ID),
		zap.Int("day_count", r.dayCount),
		zap.String("exiled", exiled),
	)

	if winner := r.checkWinner(); winner != "" {
		r.endGame(winner)
		return
	}
	r.startNight()
}

// checkWinner 判定胜负：狼人阵营全灭则好人胜，
// 狼人阵营数量不少于其余存活者则狼人胜，否则返回空串继续游戏。
func (r *Room) checkWinner() Camp {
	wolves := 0
	others := 0
	for _, p := range r.alivePlayers() {
		if p.Role != nil && p.Role.Camp() == CAMP_WOLF {
			wolves++
		} else {
			others++
		}
	}

	switch {
	case wolves == 0:
		return CAMP_GOOD
	case wolves >= others:
		return CAMP_WOLF
	default:
		return ""
	}
}

func (r *Room) endGame(winner Camp) {
	r.events.Channel(EVENT_GAME_END).Fire(r, "", []string{string(winner)})
}
