package service

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"werewolf-be/internal/service/dto"
	"werewolf-be/internal/service/game"
	"werewolf-be/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RoomService 管理所有房间。房间表由服务级读写锁保护，
// 每个房间再有自己的互斥锁，房间内的游戏引擎不加锁，
// 全部操作经由这把房间锁串行进入。
type RoomService struct {
	st *store.Store

	mu    sync.RWMutex
	rooms map[string]*managedRoom

	minPlayers int
}

type managedRoom struct {
	mu sync.Mutex

	id   string
	name string

	game *game.Room

	// 房主（建房者或首位加入者），拥有管理指令权限
	adminID string

	// 所有挂在这个房间上的连接（玩家与旁观者）
	sessions map[string]*Session
}

func NewRoomService(st *store.Store, minPlayers int) *RoomService {
	rs := &RoomService{
		st:         st,
		rooms:      make(map[string]*managedRoom),
		minPlayers: minPlayers,
	}

	if st != nil {
		recs, err := st.ListRooms(context.Background())
		if err != nil {
			zap.S().Errorf("恢复房间列表失败：%v", err)
		}
		for _, rec := range recs {
			rs.rooms[rec.ID] = rs.newManagedRoom(rec.ID, rec.Name)
		}
		zap.S().Infof("从数据库恢复了 %d 个房间", len(recs))
	}

	return rs
}

func (rs *RoomService) newManagedRoom(id, name string) *managedRoom {
	mr := &managedRoom{
		id:       id,
		name:     name,
		sessions: make(map[string]*Session),
	}
	mr.game = game.NewRoom(id, mr)
	if rs.minPlayers > 0 {
		mr.game.SetMinPlayers(rs.minPlayers)
	}
	return mr
}

// Broadcast 把游戏消息群发给房间里的所有连接（含旁观者）。
// 调用方已持有房间锁。
func (mr *managedRoom) Broadcast(text string) {
	resp := dto.WrapResponse(dto.RESP_BROADCAST, dto.Message{Text: text})
	for _, sess := range mr.sessions {
		select {
		case sess.RespCh <- resp:
		default:
			zap.S().Warnf("房间 %s 群发失败：玩家 %s 响应通道已满", mr.id, sess.UserID)
		}
	}
}

// Notify 把游戏消息私发给某个玩家。调用方已持有房间锁。
func (mr *managedRoom) Notify(userID string, text string) {
	sess, ok := mr.sessions[userID]
	if !ok {
		zap.S().Debugf("房间 %s 私发失败：玩家 %s 不在线", mr.id, userID)
		return
	}

	resp := dto.WrapResponse(dto.RESP_PRIVATE, dto.Message{Text: text})
	select {
	case sess.RespCh <- resp:
	default:
		zap.S().Warnf("房间 %s 私发失败：玩家 %s 响应通道已满", mr.id, userID)
	}
}

func (rs *RoomService) Close() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	for _, mr := range rs.rooms {
		mr.mu.Lock()
		for _, sess := range mr.sessions {
			close(sess.RespCh)
		}
		mr.sessions = make(map[string]*Session)
		mr.mu.Unlock()
	}
	rs.rooms = make(map[string]*managedRoom)
}

// CreateRoom 登记一个新房间并落库。只有登记过的房间才能加入。
func (rs *RoomService) CreateRoom(ctx context.Context, req dto.CreateRoomRequest) (dto.CreateRoomResponse, error) {
	if req.RoomName == "" {
		return dto.CreateRoomResponse{}, errors.New("房间名称不能为空")
	}

	roomID := uuid.New().String()[:8]

	rs.mu.Lock()
	rs.rooms[roomID] = rs.newManagedRoom(roomID, req.RoomName)
	rs.mu.Unlock()

	if rs.st != nil {
		if err := rs.st.SaveRoom(ctx, roomID, req.RoomName); err != nil {
			zap.S().Errorf("房间 %s 落库失败：%v", roomID, err)
		}
	}

	zap.S().Infof("房间 %s(%s) 已创建", roomID, req.RoomName)

	return dto.CreateRoomResponse{RoomID: roomID}, nil
}

// RemoveRoom 注销房间：断开所有连接并删除落库记录。
func (rs *RoomService) RemoveRoom(ctx context.Context, roomID string) error {
	rs.mu.Lock()
	mr, ok := rs.rooms[roomID]
	if ok {
		delete(rs.rooms, roomID)
	}
	rs.mu.Unlock()

	if !ok {
		return errors.New("房间不存在")
	}

	mr.mu.Lock()
	for _, sess := range mr.sessions {
		close(sess.RespCh)
	}
	mr.sessions = make(map[string]*Session)
	mr.mu.Unlock()

	if rs.st != nil {
		if err := rs.st.DeleteRoom(ctx, roomID); err != nil {
			zap.S().Errorf("房间 %s 删库失败：%v", roomID, err)
		}
	}

	zap.S().Infof("房间 %s 已注销", roomID)
	return nil
}

func (rs *RoomService) roomByID(roomID string) *managedRoom {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.rooms[roomID]
}

// JoinRoom 把一条连接挂入房间。大厅阶段加入即占座位，
// 游戏已开始则以旁观者身份挂入（只收群发消息）。
func (rs *RoomService) JoinRoom(ctx context.Context, req dto.JoinRoomRequest, respCh chan dto.ResponseWrapper) (*Session, error) {
	if req.RoomID == "" {
		return nil, errors.New("房间 ID 不能为空")
	}
	if req.UserName == "" {
		return nil, errors.New("加入者名称不能为空")
	}

	mr := rs.roomByID(req.RoomID)
	if mr == nil {
		return nil, errors.New("房间不存在")
	}

	userID := uuid.New().String()[:8]

	if rs.st != nil {
		banned, err := rs.st.IsBanned(ctx, req.RoomID, req.UserName)
		if err != nil {
			zap.S().Errorf("房间 %s 查询封禁失败：%v", req.RoomID, err)
		}
		if banned {
			return nil, errors.New("你已被本房间封禁。")
		}
	}

	mr.mu.Lock()
	defer mr.mu.Unlock()

	seat := 0
	if mr.game.Phase() == game.PHASE_LOBBY {
		if err := mr.game.AddPlayer(userID); err != nil {
			return nil, err
		}
		seat = mr.game.PlayerByID(userID).Seat()
	}

	sess := &Session{
		UserID: userID,
		Name:   req.UserName,
		RoomID: req.RoomID,
		RespCh: respCh,
	}
	mr.sessions[userID] = sess

	if mr.adminID == "" {
		mr.adminID = userID
	}

	zap.S().Infof("房间 %s 玩家 %s(%s) 加入，座位 %d", req.RoomID, req.UserName, userID, seat)

	select {
	case respCh <- dto.WrapResponse(dto.RESP_JOIN_GAME, dto.JoinRoomResponse{
		Joiner: dto.Player{UserID: userID, Name: req.UserName, Seat: seat, Alive: true},
		RoomID: req.RoomID,
		Phase:  string(mr.game.Phase()),
	}):
	default:
		zap.S().Warnf("房间 %s 无法发送加入确认：通道已满", req.RoomID)
	}

	if seat > 0 {
		mr.Broadcast(req.UserName + " 加入了房间。")
	}

	return sess, nil
}

// LeaveRoom 摘除连接。大厅阶段同时让出座位，
// 游戏中离开只断连接，座位与身份保留（视为掉线）。
func (rs *RoomService) LeaveRoom(sess *Session) {
	mr := rs.roomByID(sess.RoomID)
	if mr == nil {
		return
	}

	mr.mu.Lock()
	defer mr.mu.Unlock()

	delete(mr.sessions, sess.UserID)

	if mr.game.Phase() == game.PHASE_LOBBY {
		if err := mr.game.RemovePlayer(sess.UserID); err == nil {
			mr.Broadcast(sess.Name + " 离开了房间。")
		}
	}

	if mr.adminID == sess.UserID {
		mr.adminID = ""
		for id := range mr.sessions {
			mr.adminID = id
			break
		}
	}

	zap.S().Infof("房间 %s 玩家 %s(%s) 离开", sess.RoomID, sess.Name, sess.UserID)
}

// RoomViews 返回所有房间的对外视图。
func (rs *RoomService) RoomViews() []dto.RoomView {
	rs.mu.RLock()
	rooms := make([]*managedRoom, 0, len(rs.rooms))
	for _, mr := range rs.rooms {
		rooms = append(rooms, mr)
	}
	rs.mu.RUnlock()

	views := make([]dto.RoomView, 0, len(rooms))
	for _, mr := range rooms {
		mr.mu.Lock()
		view := dto.RoomView{
			ID:    mr.id,
			Name:  mr.name,
			Phase: string(mr.game.Phase()),
		}
		for _, p := range mr.game.Players() {
			view.Players = append(view.Players, dto.Player{
				UserID: p.UserID,
				Name:   mr.displayName(p.UserID),
				Seat:   p.Seat(),
				Alive:  p.Alive,
			})
		}
		mr.mu.Unlock()
		views = append(views, view)
	}
	return views
}

func (mr *managedRoom) displayName(userID string) string {
	if sess, ok := mr.sessions[userID]; ok {
		return sess.Name
	}
	return userID
}

// HandleCommand 受理一条房间内指令。所有错误都以私发响应回给操作者，
// 不向连接层传播。
func (rs *RoomService) HandleCommand(ctx context.Context, sess *Session, cmd dto.Command) {
	mr := rs.roomByID(sess.RoomID)
	if mr == nil {
		return
	}

	mr.mu.Lock()
	defer mr.mu.Unlock()

	if _, ok := mr.sessions[sess.UserID]; !ok {
		return
	}

	err := rs.dispatchCommand(ctx, mr, sess, cmd)
	if err != nil {
		select {
		case sess.RespCh <- dto.WrapErrResponse(err.Error()):
		default:
			zap.S().Warnf("房间 %s 无法回传错误：玩家 %s 通道已满", mr.id, sess.UserID)
		}
	}
}

func (rs *RoomService) dispatchCommand(ctx context.Context, mr *managedRoom, sess *Session, cmd dto.Command) error {
	switch cmd.Action {
	case "addrole":
		return mr.game.AddRoles(cmd.Args)

	case "rmrole":
		return mr.game.RemoveRoles(cmd.Args)

	case "showroles":
		mr.showRoles(sess)
		return nil

	case "autoroles":
		return mr.game.AutoRoles()

	case "start":
		return mr.game.StartGame()

	case "skill":
		if len(cmd.Args) == 0 {
			return errors.New("用法：`skill <动作> [参数]`")
		}
		return mr.game.SubmitSkill(sess.UserID, cmd.Args[0], cmd.Args[1:])

	case "vote":
		if len(cmd.Args) == 0 {
			return errors.New("用法：`vote <编号>`")
		}
		seat, err := strconv.Atoi(cmd.Args[0])
		if err != nil {
			return errors.New("目标编号无效。")
		}
		return mr.game.SubmitVote(sess.UserID, seat)

	case "skip":
		return mr.game.SubmitSkip(sess.UserID)

	case "endgame":
		if sess.UserID != mr.adminID {
			return errors.New("只有房主可以强制结束游戏。")
		}
		return mr.game.EndGame()

	case "reset":
		if sess.UserID != mr.adminID {
			return errors.New("只有房主可以重开游戏。")
		}
		return mr.game.ResetKeepingPlayers()

	case "ban":
		if sess.UserID != mr.adminID {
			return errors.New("只有房主可以封禁玩家。")
		}
		return rs.banUser(ctx, mr, cmd.Args)

	case "unban":
		if sess.UserID != mr.adminID {
			return errors.New("只有房主可以解除封禁。")
		}
		return rs.unbanUser(ctx, mr, cmd.Args)

	default:
		return errors.New("未知指令：" + cmd.Action)
	}
}

func (mr *managedRoom) showRoles(sess *Session) {
	enabled := mr.game.EnabledRoles()
	if len(enabled) == 0 {
		mr.Notify(sess.UserID, "尚未配置任何角色，可用 `autoroles` 自动配置。")
		return
	}

	text := "当前启用的角色："
	for kind, count := range enabled {
		text += " " + game.KindName(kind) + " x" + strconv.Itoa(count)
	}
	mr.Notify(sess.UserID, text)
}

// banUser 封禁指定名称的用户并踢出其当前连接（按名称封禁，与加入校验对应）。
func (rs *RoomService) banUser(ctx context.Context, mr *managedRoom, args []string) error {
	if len(args) == 0 {
		return errors.New("用法：`ban <玩家名称>`")
	}
	name := args[0]

	if rs.st != nil {
		if err := rs.st.AddBan(ctx, mr.id, name); err != nil {
			return err
		}
	}

	for id, target := range mr.sessions {
		if target.Name != name {
			continue
		}
		if mr.game.Phase() == game.PHASE_LOBBY {
			_ = mr.game.RemovePlayer(id)
		}
		close(target.RespCh)
		delete(mr.sessions, id)
	}

	mr.Broadcast(name + " 已被房主封禁。")
	return nil
}

func (rs *RoomService) unbanUser(ctx context.Context, mr *managedRoom, args []string) error {
	if len(args) == 0 {
		return errors.New("用法：`unban <玩家名称>`")
	}
	if rs.st == nil {
		return nil
	}
	if err := rs.st.RemoveBan(ctx, mr.id, args[0]); err != nil {
		return err
	}
	mr.Broadcast(args[0] + " 的封禁已解除。")
	return nil
}
