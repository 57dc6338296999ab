package game

// characterVillager 没有主动技能，夜晚也无需行动。
type characterVillager struct {
	characterBase
}

func newCharacterVillager(room *Room, player *Player) Character {
	return &characterVillager{characterBase: newBase(room, player, KIND_VILLAGER)}
}
