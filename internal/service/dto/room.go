package dto

type CreateRoomRequest struct {
	RoomName    string `json:"room_name"`
	CreatorName string `json:"creator_name"`
}

type CreateRoomResponse struct {
	RoomID string `json:"room_id"`
}

// 加入通过 WebSocket 的首帧完成：连接建立后必须先发一条
// JoinGame 请求，之后该连接才会被挂入房间的消息分发。
type JoinRoomRequest struct {
	RoomID   string `json:"room_id"`
	UserName string `json:"user_name"`
}

type JoinRoomResponse struct {
	Joiner Player `json:"joiner"`
	RoomID string `json:"room_id"`
	Phase  string `json:"phase"`
}

type RoomView struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Phase   string   `json:"phase"`
	Players []Player `json:"players"`
}
