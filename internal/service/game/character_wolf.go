package game

import (
	"errors"
	"fmt"
	"strings"
)

// characterWolf 的夜晚行动是整包投票：某目标拿到存活狼人的
// 严格多数票时刀口锁定，所有狼人放弃则本夜平安。
type characterWolf struct {
	characterBase
}

func newCharacterWolf(room *Room, player *Player) Character {
	return &characterWolf{characterBase: newBase(room, player, KIND_WOLF)}
}

var wolfKillVerbs = map[string]struct{}{
	"kill": {}, "knife": {}, "sha": {}, "杀": {}, "刀": {},
}

func (c *characterWolf) onNightStart() {
	var packSeats []string
	for _, id := range c.room.aliveKindUserIDs(KIND_WOLF) {
		packSeats = append(packSeats, c.room.seatLabel(id))
	}
	c.sendPrivate(fmt.Sprintf(
		"狼人请行动：`skill kill <编号>` 投票击杀，`skip` 放弃。狼人阵营: %s。",
		strings.Join(packSeats, "、"),
	))
}

func (c *characterWolf) onSkillUse(verb string, args []string) error {
	if _, ok := wolfKillVerbs[verb]; !ok {
		return errors.New("未知动作。用法：`skill kill <编号>`。")
	}
	seat, err := parseSeatArg(args)
	if err != nil {
		return err
	}
	return c.room.wolfVoteKill(c.userID(), seat)
}

func (c *characterWolf) onNightSkip() error {
	return c.room.wolfSkip(c.userID())
}

func (c *characterWolf) onWolfLock(targetID string) {
	if targetID == "" {
		c.sendPrivate("本夜狼人放弃击杀。")
		return
	}
	c.sendPrivate(fmt.Sprintf("狼人刀口已锁定：%s。", c.room.seatLabel(targetID)))
}
