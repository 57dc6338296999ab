package websocket

import (
	"encoding/json"
	"time"

	"werewolf-be/internal/service/dto"
	"werewolf-be/internal/state"

	"github.com/gorilla/websocket"
	"github.com/kataras/iris/v12"
	"go.uber.org/zap"
)

func JoinGame(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		conn, err := upgrader.Upgrade(
			ctx.ResponseWriter(),
			ctx.Request(),
			nil,
		)
		if err != nil {
			zap.L().Error("升级到WebSocket失败", zap.Error(err))
			ctx.StatusCode(iris.StatusBadRequest)
			return
		}

		defer conn.Close()

		conn.SetReadDeadline(time.Now().Add(HEARTBEAT_TIMEOUT))
		conn.SetPongHandler(heartbeatHandler(conn))

		// 带缓冲，游戏引擎的广播不会被慢客户端卡住
		respCh := make(chan dto.ResponseWrapper, 64)

		clientIP := ctx.RemoteAddr()

		// 读取首帧，必须是 JoinGame 请求
		_, msg, err := conn.ReadMessage()
		if err != nil {
			zap.L().Error(
				"读取首次请求失败",
				zap.String("client_ip", clientIP),
				zap.Error(err),
			)
			return
		}

		var wrapper dto.RequestWrapper

		if err := json.Unmarshal(msg, &wrapper); err != nil {
			zap.L().Error(
				"解析首次请求失败",
				zap.String("client_ip", clientIP),
				zap.Error(err),
			)
			return
		}

		joinReq := dto.TryUnwrapJoinRoomRequest(wrapper)
		if joinReq == nil {
			zap.L().Error(
				"首次请求不是JoinGame类型",
				zap.String("client_ip", clientIP),
				zap.Any("wrapper", wrapper),
			)
			return
		}

		sess, err := appState.RoomSvc.JoinRoom(ctx.Request().Context(), *joinReq, respCh)
		if err != nil {
			zap.L().Warn(
				"加入房间失败",
				zap.String("client_ip", clientIP),
				zap.Error(err),
			)
			_ = conn.WriteJSON(dto.WrapErrResponse(err.Error()))
			return
		}

		zap.L().Info(
			"玩家成功加入房间",
			zap.String("client_ip", clientIP),
			zap.String("room_id", sess.RoomID),
			zap.String("user_id", sess.UserID),
			zap.String("user_name", sess.Name),
		)

		// 写协程的退出信号
		writeDoneCh := make(chan struct{})

		// 写入协程：转发响应并维持心跳
		go func() {
			ticker := time.NewTicker(HEARTBEAT_INTERVAL)
			defer ticker.Stop()

			for {
				select {
				case <-writeDoneCh:
					zap.L().Debug(
						"WebSocket写入协程退出",
						zap.String("client_ip", clientIP),
					)
					return

				case <-ticker.C:
					if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
						zap.L().Error(
							"发送心跳失败",
							zap.String("client_ip", clientIP),
							zap.Error(err),
						)
						return
					}

					conn.SetWriteDeadline(time.Now().Add(HEARTBEAT_TIMEOUT))

				case resp, ok := <-respCh:
					// 通道关闭表示玩家已被服务端摘除（封禁 / 房间注销）
					if !ok {
						zap.L().Info(
							"响应通道已关闭，退出写协程",
							zap.String("client_ip", clientIP),
						)
						_ = conn.Close()
						return
					}

					if err := conn.WriteJSON(resp); err != nil {
						zap.L().Error(
							"发送消息失败",
							zap.String("client_ip", clientIP),
							zap.Error(err),
						)
						return
					}
				}
			}
		}()

		// 读取协程（主协程）：解析指令帧并交给服务层
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(
					err,
					websocket.CloseGoingAway,
					websocket.CloseAbnormalClosure,
				) {
					zap.L().Error(
						"读取消息失败",
						zap.String("client_ip", clientIP),
						zap.Error(err),
					)
				}
				break
			}

			var wrapper dto.RequestWrapper

			if err := json.Unmarshal(msg, &wrapper); err != nil {
				zap.L().Error(
					"解析消息失败",
					zap.String("client_ip", clientIP),
					zap.Error(err),
				)
				respCh <- dto.WrapErrResponse("无效的请求格式")
				continue
			}

			cmd := dto.TryUnwrapCommand(wrapper)
			if cmd == nil {
				respCh <- dto.WrapErrResponse("未知的请求类型")
				continue
			}

			appState.RoomSvc.HandleCommand(ctx.Request().Context(), sess, *cmd)
		}

		close(writeDoneCh)

		// 读循环退出表示客户端断开，摘除会话
		appState.RoomSvc.LeaveRoom(sess)

		zap.L().Info(
			"WebSocket连接处理完成",
			zap.String("client_ip", clientIP),
			zap.String("user_id", sess.UserID),
		)
	}
}
