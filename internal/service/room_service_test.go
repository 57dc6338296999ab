package service

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"werewolf-be/internal/service/dto"
	"werewolf-be/internal/store"

	"github.com/stretchr/testify/require"
)

func drain(ch chan dto.ResponseWrapper) []dto.ResponseWrapper {
	var out []dto.ResponseWrapper
	for {
		select {
		case resp := <-ch:
			out = append(out, resp)
		default:
			return out
		}
	}
}

func hasText(resps []dto.ResponseWrapper, substr string) bool {
	for _, resp := range resps {
		if msg, ok := resp.Data.(dto.Message); ok && strings.Contains(msg.Text, substr) {
			return true
		}
		if strings.Contains(resp.ErrMsg, substr) {
			return true
		}
	}
	return false
}

func joinTestRoom(t *testing.T, rs *RoomService, roomID, name string) (*Session, chan dto.ResponseWrapper) {
	t.Helper()

	respCh := make(chan dto.ResponseWrapper, 64)
	sess, err := rs.JoinRoom(context.Background(), dto.JoinRoomRequest{
		RoomID:   roomID,
		UserName: name,
	}, respCh)
	require.NoError(t, err)

	return sess, respCh
}

func TestJoinUnknownRoomFails(t *testing.T) {
	rs := NewRoomService(nil, 0)
	defer rs.Close()

	_, err := rs.JoinRoom(context.Background(), dto.JoinRoomRequest{
		RoomID:   "nope",
		UserName: "alice",
	}, make(chan dto.ResponseWrapper, 4))
	require.Error(t, err)
}

func TestCreateJoinAndStartGame(t *testing.T) {
	rs := NewRoomService(nil, 0)
	defer rs.Close()
	ctx := context.Background()

	created, err := rs.CreateRoom(ctx, dto.CreateRoomRequest{RoomName: "一号房"})
	require.NoError(t, err)
	require.NotEmpty(t, created.RoomID)

	admin, adminCh := joinTestRoom(t, rs, created.RoomID, "admin")
	_, bobCh := joinTestRoom(t, rs, created.RoomID, "bob")
	joinTestRoom(t, rs, created.RoomID, "carol")
	joinTestRoom(t, rs, created.RoomID, "dave")

	views := rs.RoomViews()
	require.Len(t, views, 1)
	require.Len(t, views[0].Players, 4)

	rs.HandleCommand(ctx, admin, dto.Command{Action: "autoroles"})
	rs.HandleCommand(ctx, admin, dto.Command{Action: "start"})

	// 开局公告与天黑广播应送达所有连接
	adminResps := drain(adminCh)
	require.True(t, hasText(adminResps, "游戏开始"), "admin responses: %v", adminResps)
	require.True(t, hasText(adminResps, "天黑请闭眼"))
	require.True(t, hasText(drain(bobCh), "天黑请闭眼"))

	views = rs.RoomViews()
	require.Equal(t, "night", views[0].Phase)
}

func TestCommandErrorsGoBackToSender(t *testing.T) {
	rs := NewRoomService(nil, 0)
	defer rs.Close()
	ctx := context.Background()

	created, err := rs.CreateRoom(ctx, dto.CreateRoomRequest{RoomName: "一号房"})
	require.NoError(t, err)

	admin, adminCh := joinTestRoom(t, rs, created.RoomID, "admin")
	drain(adminCh)

	// 人数不足时开局报错，错误只回给操作者
	rs.HandleCommand(ctx, admin, dto.Command{Action: "start"})
	require.True(t, hasText(drain(adminCh), "玩家人数不足"))

	rs.HandleCommand(ctx, admin, dto.Command{Action: "bogus"})
	require.True(t, hasText(drain(adminCh), "未知指令"))
}

func TestOnlyAdminMayEndGame(t *testing.T) {
	rs := NewRoomService(nil, 0)
	defer rs.Close()
	ctx := context.Background()

	created, err := rs.CreateRoom(ctx, dto.CreateRoomRequest{RoomName: "一号房"})
	require.NoError(t, err)

	admin, _ := joinTestRoom(t, rs, created.RoomID, "admin")
	bob, bobCh := joinTestRoom(t, rs, created.RoomID, "bob")
	joinTestRoom(t, rs, created.RoomID, "carol")
	joinTestRoom(t, rs, created.RoomID, "dave")

	rs.HandleCommand(ctx, admin, dto.Command{Action: "autoroles"})
	rs.HandleCommand(ctx, admin, dto.Command{Action: "start"})
	drain(bobCh)

	rs.HandleCommand(ctx, bob, dto.Command{Action: "endgame"})
	require.True(t, hasText(drain(bobCh), "只有房主"))

	rs.HandleCommand(ctx, admin, dto.Command{Action: "endgame"})
	require.Equal(t, "ended", rs.RoomViews()[0].Phase)
}

func TestLobbyLeaveFreesSeat(t *testing.T) {
	rs := NewRoomService(nil, 0)
	defer rs.Close()
	ctx := context.Background()

	created, err := rs.CreateRoom(ctx, dto.CreateRoomRequest{RoomName: "一号房"})
	require.NoError(t, err)

	joinTestRoom(t, rs, created.RoomID, "admin")
	bob, _ := joinTestRoom(t, rs, created.RoomID, "bob")
	joinTestRoom(t, rs, created.RoomID, "carol")

	rs.LeaveRoom(bob)

	view := rs.RoomViews()[0]
	require.Len(t, view.Players, 2)
	for _, p := range view.Players {
		require.NotEqual(t, "bob", p.Name)
	}
}

func TestBannedNameCannotJoin(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "svc.db"))
	require.NoError(t, err)
	defer st.Close()

	rs := NewRoomService(st, 0)
	defer rs.Close()
	ctx := context.Background()

	created, err := rs.CreateRoom(ctx, dto.CreateRoomRequest{RoomName: "一号房"})
	require.NoError(t, err)

	admin, _ := joinTestRoom(t, rs, created.RoomID, "admin")
	joinTestRoom(t, rs, created.RoomID, "mallory")

	rs.HandleCommand(ctx, admin, dto.Command{Action: "ban", Args: []string{"mallory"}})

	// 被封禁者已被摘除，且无法再次加入
	require.Len(t, rs.RoomViews()[0].Players, 1)

	_, err = rs.JoinRoom(ctx, dto.JoinRoomRequest{
		RoomID:   created.RoomID,
		UserName: "mallory",
	}, make(chan dto.ResponseWrapper, 4))
	require.Error(t, err)

	rs.HandleCommand(ctx, admin, dto.Command{Action: "unban", Args: []string{"mallory"}})

	_, err = rs.JoinRoom(ctx, dto.JoinRoomRequest{
		RoomID:   created.RoomID,
		UserName: "mallory",
	}, make(chan dto.ResponseWrapper, 4))
	require.NoError(t, err)
}

func TestRoomsRestoredFromStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "restore.db")
	ctx := context.Background()

	st, err := store.Open(dbPath)
	require.NoError(t, err)

	rs := NewRoomService(st, 0)
	created, err := rs.CreateRoom(ctx, dto.CreateRoomRequest{RoomName: "一号房"})
	require.NoError(t, err)
	rs.Close()
	require.NoError(t, st.Close())

	// 重新打开，房间应从库里恢复
	st2, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st2.Close()

	rs2 := NewRoomService(st2, 0)
	defer rs2.Close()

	_, err = rs2.JoinRoom(ctx, dto.JoinRoomRequest{
		RoomID:   created.RoomID,
		UserName: "alice",
	}, make(chan dto.ResponseWrapper, 4))
	require.NoError(t, err)
}
