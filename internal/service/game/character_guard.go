package game

import "errors"

// characterGuard 每晚守护一人抵消狼刀，不能连续两晚守同一人。
type characterGuard struct {
	characterBase
}

func newCharacterGuard(room *Room, player *Player) Character {
	return &characterGuard{characterBase: newBase(room, player, KIND_GUARD)}
}

var guardProtectVerbs = map[string]struct{}{
	"guard": {}, "protect": {}, "shou": {}, "守": {}, "守护": {},
}

func (c *characterGuard) onNightStart() {
	c.sendPrivate("守卫请行动：`skill guard <编号>` 守护，`skip` 放弃。不能连续两晚守护同一名玩家。")
}

func (c *characterGuard) onSkillUse(verb string, args []string) error {
	if _, ok := guardProtectVerbs[verb]; !ok {
		return errors.New("未知动作。用法：`skill guard <编号>`。")
	}
	seat, err := parseSeatArg(args)
	if err != nil {
		return err
	}
	return c.room.guardProtect(c.userID(), seat)
}

func (c *characterGuard) onNightSkip() error {
	return c.room.guardSkip(c.userID())
}

func (c *characterGuard) wantsNightGate() bool {
	return true
}
