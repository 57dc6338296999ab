package dto

// 房间内玩家的对外视图
type Player struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	// 座位号从 1 开始，旁观者为 0
	Seat  int  `json:"seat,omitempty"`
	Alive bool `json:"alive"`
}
