package http

import (
	"werewolf-be/internal/service/dto"
	"werewolf-be/internal/state"

	"github.com/kataras/iris/v12"
)

func CreateRoom(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		var req dto.CreateRoomRequest

		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StatusCode(iris.StatusBadRequest)
			ctx.JSON(iris.Map{
				"error": "请求参数无效",
			})
			return
		}

		resp, err := appState.RoomSvc.CreateRoom(ctx.Request().Context(), req)
		if err != nil {
			ctx.StatusCode(iris.StatusBadRequest)
			ctx.JSON(iris.Map{
				"error": err.Error(),
			})
			return
		}

		ctx.JSON(resp)
	}
}

func ListRooms(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		ctx.JSON(iris.Map{
			"rooms": appState.RoomSvc.RoomViews(),
		})
	}
}

func RemoveRoom(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		roomID := ctx.Params().Get("id")

		if err := appState.RoomSvc.RemoveRoom(ctx.Request().Context(), roomID); err != nil {
			ctx.StatusCode(iris.StatusNotFound)
			ctx.JSON(iris.Map{
				"error": err.Error(),
			})
			return
		}

		ctx.JSON(iris.Map{"removed": roomID})
	}
}
