package game

import (
	"errors"
	"fmt"
)

// characterWitch 持有整局各一次的解药与毒药。解药只能救当夜的狼刀目标，
// 毒药是独立于狼刀的死亡来源，两药可在同一夜先后使用。
type characterWitch struct {
	characterBase

	hasAntidote bool
	hasPoison   bool
}

func newCharacterWitch(room *Room, player *Player) Character {
	return &characterWitch{
		characterBase: newBase(room, player, KIND_WITCH),
		hasAntidote:   true,
		hasPoison:     true,
	}
}

var (
	witchSaveVerbs = map[string]struct{}{
		"save": {}, "heal": {}, "antidote": {}, "jiu": {},
		"救": {}, "解药": {}, "救人": {},
	}
	witchPoisonVerbs = map[string]struct{}{
		"poison": {}, "drug": {}, "du": {},
		"毒": {}, "毒药": {}, "下毒": {},
	}
)

func (c *characterWitch) onNightStart() {
	if !c.hasAntidote && !c.hasPoison {
		c.sendPrivate("你的两瓶药都已用完，本夜无需行动。")
		return
	}
	potions := ""
	if c.hasAntidote {
		potions += "解药 x1 "
	}
	if c.hasPoison {
		potions += "毒药 x1 "
	}
	c.sendPrivate(fmt.Sprintf(
		"女巫请等待狼人行动。剩余: %s。`skill save` 用解药，`skill poison <编号>` 用毒药，`skip` 放弃。",
		potions,
	))
}

// onWolfLock 在刀口锁定后给女巫发用药提示（药已用完则无需等待，不会收到提示）。
func (c *characterWitch) onWolfLock(targetID string) {
	if !c.hasAntidote && !c.hasPoison {
		return
	}
	if targetID == "" {
		c.sendPrivate("女巫提示：本夜平安，无人倒在狼刀下。可 `skill poison <编号>` 或 `skip`。")
		return
	}
	if c.hasAntidote {
		c.sendPrivate(fmt.Sprintf(
			"女巫提示：狼刀落在 %s。可 `skill save` 使用解药，`skill poison <编号>` 使用毒药，或 `skip` 放弃。",
			c.room.seatLabel(targetID),
		))
		return
	}
	c.sendPrivate(fmt.Sprintf(
		"女巫提示：狼刀落在 %s。你已无解药，可 `skill poison <编号>` 或 `skip`。",
		c.room.seatLabel(targetID),
	))
}

func (c *characterWitch) onSkillUse(verb string, args []string) error {
	if _, ok := witchSaveVerbs[verb]; ok {
		if !c.hasAntidote {
			return errors.New("你的解药已用完。")
		}
		if err := c.room.witchSave(c.userID()); err != nil {
			return err
		}
		c.hasAntidote = false
		c.releaseIfSpent()
		return nil
	}

	if _, ok := witchPoisonVerbs[verb]; ok {
		if !c.hasPoison {
			return errors.New("你的毒药已用完。")
		}
		seat, err := parseSeatArg(args)
		if err != nil {
			return err
		}
		if err := c.room.witchPoison(c.userID(), seat); err != nil {
			return err
		}
		c.hasPoison = false
		c.releaseIfSpent()
		return nil
	}

	return errors.New("未知动作。用法：`skill save` 或 `skill poison <编号>`。")
}

func (c *characterWitch) onNightSkip() error {
	return c.room.witchSkip(c.userID())
}

// releaseIfSpent 两瓶药都用掉后不必再等 skip，直接视作本夜行动完毕。
func (c *characterWitch) releaseIfSpent() {
	if !c.hasAntidote && !c.hasPoison {
		c.room.witchMarkDone(c.userID())
	}
}

func (c *characterWitch) wantsNightGate() bool {
	return c.hasAntidote || c.hasPoison
}
