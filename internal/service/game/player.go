package game

// Player 是房间中的一个座位。Order 是 0 起始的加入顺序，
// 对外展示用 1 起始的 Seat。
type Player struct {
	UserID string
	Order  int
	Alive  bool

	// 开局时分配，下一局开始时丢弃重建
	Role Character
}

func NewPlayer(userID string, order int) *Player {
	return &Player{
		UserID: userID,
		Order:  order,
		Alive:  true,
	}
}

// Seat 返回 1 起始的展示座位号。
func (p *Player) Seat() int {
	return p.Order + 1
}
