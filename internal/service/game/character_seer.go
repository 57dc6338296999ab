package game

import "errors"

// 预言家查验结果的专属通道。固定事件之外按需创建，
// 结果通过该通道回流并只投递给发起查验的预言家本人。
const SEER_RESULT_CHANNEL = "seer_result"

type characterSeer struct {
	characterBase
}

func newCharacterSeer(room *Room, player *Player) Character {
	return &characterSeer{characterBase: newBase(room, player, KIND_SEER)}
}

var seerCheckVerbs = map[string]struct{}{
	"check": {}, "see": {}, "inspect": {}, "yan": {},
	"验": {}, "查验": {}, "查": {},
}

func (c *characterSeer) wireChannels(es *EventSystem) {
	mustListen(es.Channel(SEER_RESULT_CHANNEL), c.onSeerResult, 0)
}

func (c *characterSeer) onSeerResult(_ *Room, seerID string, args []string) {
	if seerID != c.userID() || len(args) == 0 {
		return
	}
	c.sendPrivate(args[0])
}

func (c *characterSeer) onNightStart() {
	c.sendPrivate("预言家请行动：`skill check <编号>` 查验身份，`skip` 放弃。")
}

func (c *characterSeer) onSkillUse(verb string, args []string) error {
	if _, ok := seerCheckVerbs[verb]; !ok {
		return errors.New("未知动作。用法：`skill check <编号>`。")
	}
	seat, err := parseSeatArg(args)
	if err != nil {
		return err
	}
	return c.room.seerCheck(c.userID(), seat)
}

func (c *characterSeer) onNightSkip() error {
	return c.room.seerSkip(c.userID())
}

func (c *characterSeer) wantsNightGate() bool {
	return true
}
