package dto

import (
	"encoding/json"

	"go.uber.org/zap"
)

// 客户端请求类型
const (
	REQ_JOIN_GAME = "JoinGame"
	REQ_COMMAND   = "Command"
)

type RequestWrapper struct {
	ReqType string          `json:"request_type"`
	Data    json.RawMessage `json:"data"`
}

// 房间内的游戏指令。Action 是指令动词，Args 是其后的参数，
// 例如 {action: "skill", args: ["kill", "3"]}、{action: "vote", args: ["2"]}。
type Command struct {
	Action string   `json:"action"`
	Args   []string `json:"args,omitempty"`
}

func TryUnwrapJoinRoomRequest(wrapper RequestWrapper) *JoinRoomRequest {
	if wrapper.ReqType != REQ_JOIN_GAME {
		return nil
	}

	var req JoinRoomRequest

	if err := json.Unmarshal(wrapper.Data, &req); err != nil {
		zap.L().Error(
			"解析 JoinGame 请求失败",
			zap.Error(err),
			zap.Any("wrapper", wrapper),
		)
		return nil
	}

	return &req
}

func TryUnwrapCommand(wrapper RequestWrapper) *Command {
	if wrapper.ReqType != REQ_COMMAND {
		return nil
	}

	var cmd Command

	if err := json.Unmarshal(wrapper.Data, &cmd); err != nil {
		zap.L().Error(
			"解析游戏指令失败",
			zap.Error(err),
			zap.Any("wrapper", wrapper),
		)
		return nil
	}

	return &cmd
}

// 服务端响应类型
const (
	RESP_ERROR = "Error"

	RESP_JOIN_GAME = "JoinGame"
	RESP_BROADCAST = "Broadcast"
	RESP_PRIVATE   = "Private"
)

type ResponseWrapper struct {
	RespType string `json:"response_type"`
	Data     any    `json:"data,omitempty"`
	ErrMsg   string `json:"error_message,omitempty"`
}

// 群发 / 私发消息的载荷
type Message struct {
	Text string `json:"text"`
}

func WrapResponse(respType string, data any) ResponseWrapper {
	return ResponseWrapper{
		RespType: respType,
		Data:     data,
	}
}

func WrapErrResponse(errMsg string) ResponseWrapper {
	return ResponseWrapper{
		RespType: RESP_ERROR,
		ErrMsg:   errMsg,
	}
}
