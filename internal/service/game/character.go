package game

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// RoleKind 是角色的静态标识（区别于每局为玩家新建的角色实例）
type RoleKind string

const (
	KIND_VILLAGER RoleKind = "villager"
	KIND_WOLF     RoleKind = "wolf"
	KIND_SEER     RoleKind = "seer"
	KIND_GUARD    RoleKind = "guard"
	KIND_WITCH    RoleKind = "witch"
)

// Camp 是胜负判定相关的阵营
type Camp string

const (
	CAMP_GOOD    Camp = "good"
	CAMP_WOLF    Camp = "wolf"
	CAMP_NEUTRAL Camp = "neutral"
)

// Character 是角色实例的公共接口。每个活着的玩家在开局时获得一个实例，
// 实例与 Room 和 Player 绑定，下一局开始时整体丢弃。
type Character interface {
	Kind() RoleKind
	RoleName() string
	Camp() Camp
}

// 下面是可选的能力接口。Room 在对应事件上按能力分发，
// 角色只实现自己需要的部分，不依赖构造函数副作用注册监听器。

// nightStarter 在天黑时被唤起（通常发送行动提示并等待输入）
type nightStarter interface {
	onNightStart()
}

// skillUser 处理 skill 指令。verb 是动作词（kill/check/guard/save/poison 等别名），
// 返回的 error 是给玩家的拒绝原因，不会向上传播为故障。
type skillUser interface {
	onSkillUse(verb string, args []string) error
}

// nightSkipper 处理夜晚的显式放弃
type nightSkipper interface {
	onNightSkip() error
}

// wolfLockObserver 在狼人刀口锁定后被唤起（targetID 为空表示平安夜）
type wolfLockObserver interface {
	onWolfLock(targetID string)
}

// channelWirer 允许角色在开局时挂接自定义通道（如预言家的查验结果通道）
type channelWirer interface {
	wireChannels(es *EventSystem)
}

// nightGateHolder 声明本角色是否需要占用夜晚结算名额
// （如女巫药用完后不再占位，夜晚无需等她）
type nightGateHolder interface {
	wantsNightGate() bool
}

// deathObserver 在玩家死亡后被唤起
type deathObserver interface {
	onDeath(reason string)
}

// characterBase 提供角色实现共用的字段与私聊辅助，
// 并用注册表条目实现 Character 的静态元信息。
type characterBase struct {
	room   *Room
	player *Player
	spec   *characterSpec
}

func newBase(room *Room, player *Player, kind RoleKind) characterBase {
	return characterBase{room: room, player: player, spec: specByKind(kind)}
}

func (cb *characterBase) Kind() RoleKind {
	return cb.spec.kind
}

func (cb *characterBase) RoleName() string {
	return cb.spec.name
}

func (cb *characterBase) Camp() Camp {
	return cb.spec.camp
}

func (cb *characterBase) userID() string {
	return cb.player.UserID
}

func (cb *characterBase) alive() bool {
	return cb.player.Alive
}

func (cb *characterBase) sendPrivate(text string) {
	cb.room.notify(cb.player.UserID, text)
}

// onDeath 是所有角色共享的死亡通知
func (cb *characterBase) onDeath(reason string) {
	cb.sendPrivate(fmt.Sprintf("你已死亡（%s）。", reason))
}

// parseSeatArg 解析技能参数里的目标编号（允许带"号"后缀）。
func parseSeatArg(args []string) (int, error) {
	if len(args) == 0 {
		return 0, errors.New("请带上目标编号，例如 `skill check 3`。")
	}
	seat, err := strconv.Atoi(strings.TrimSuffix(args[0], "号"))
	if err != nil {
		return 0, errors.New("目标编号无效。")
	}
	return seat, nil
}

type characterFactory func(room *Room, player *Player) Character

// characterSpec 是注册表中的一条角色登记：静态元信息 + 构造函数
type characterSpec struct {
	kind    RoleKind
	name    string
	camp    Camp
	aliases []string
	factory characterFactory
}

// 静态注册表。新增角色在这里登记即可，重复的 kind / 别名
// 在注册表构建时检测（后登记者被忽略）。
var characterSpecs = []characterSpec{
	{
		kind:    KIND_VILLAGER,
		name:    "村民",
		camp:    CAMP_GOOD,
		aliases: []string{"villager", "person", "人", "民", "村民"},
		factory: newCharacterVillager,
	},
	{
		kind:    KIND_WOLF,
		name:    "狼人",
		camp:    CAMP_WOLF,
		aliases: []string{"wolf", "狼", "狼人"},
		factory: newCharacterWolf,
	},
	{
		kind:    KIND_SEER,
		name:    "预言家",
		camp:    CAMP_GOOD,
		aliases: []string{"seer", "预", "预言家"},
		factory: newCharacterSeer,
	},
	{
		kind:    KIND_GUARD,
		name:    "守卫",
		camp:    CAMP_GOOD,
		aliases: []string{"guard", "守", "守卫"},
		factory: newCharacterGuard,
	},
	{
		kind:    KIND_WITCH,
		name:    "女巫",
		camp:    CAMP_GOOD,
		aliases: []string{"witch", "女巫", "巫", "药", "药师"},
		factory: newCharacterWitch,
	},
}

var (
	kindToSpec  map[RoleKind]*characterSpec
	aliasToSpec map[string]*characterSpec
)

func init() {
	buildCharacterRegistry()
}

func buildCharacterRegistry() {
	kindToSpec = make(map[RoleKind]*characterSpec, len(characterSpecs))
	aliasToSpec = make(map[string]*characterSpec)

	for i := range characterSpecs {
		spec := &characterSpecs[i]

		if prev, ok := kindToSpec[spec.kind]; ok {
			zap.L().Error(
				"角色 kind 重复登记，后者被忽略",
				zap.String("kind", string(spec.kind)),
				zap.String("kept", prev.name),
			)
			continue
		}
		kindToSpec[spec.kind] = spec

		for _, alias := range spec.aliases {
			if alias == "" {
				continue
			}
			if prev, ok := aliasToSpec[alias]; ok {
				zap.L().Error(
					"角色别名冲突，后者被忽略",
					zap.String("alias", alias),
					zap.String("kept", prev.name),
				)
				continue
			}
			aliasToSpec[alias] = spec
		}
	}
}

// KindByAlias 把别名文本解析为角色 kind，未知别名返回 false。
func KindByAlias(alias string) (RoleKind, bool) {
	spec, ok := aliasToSpec[alias]
	if !ok {
		return "", false
	}
	return spec.kind, true
}

// KindName 返回角色 kind 的显示名。
func KindName(kind RoleKind) string {
	spec, ok := kindToSpec[kind]
	if !ok {
		return string(kind)
	}
	return spec.name
}

func specByKind(kind RoleKind) *characterSpec {
	return kindToSpec[kind]
}
