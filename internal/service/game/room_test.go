package game

import (
	"fmt"
	"strings"
	"testing"
)

// fakeMessenger 收集房间发出的消息，供测试断言
type fakeMessenger struct {
	broadcasts []string
	privates   map[string][]string
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{privates: make(map[string][]string)}
}

func (m *fakeMessenger) Broadcast(text string) {
	m.broadcasts = append(m.broadcasts, text)
}

func (m *fakeMessenger) Notify(userID string, text string) {
	m.privates[userID] = append(m.privates[userID], text)
}

func (m *fakeMessenger) hasBroadcast(substr string) bool {
	for _, b := range m.broadcasts {
		if strings.Contains(b, substr) {
			return true
		}
	}
	return false
}

func (m *fakeMessenger) hasPrivate(userID, substr string) bool {
	for _, p := range m.privates[userID] {
		if strings.Contains(p, substr) {
			return true
		}
	}
	return false
}

// setupGame 建房、按池子长度加入 u1..uN 并直接按池子顺序发身份，
// 绕过洗牌保证测试可控。
func setupGame(t *testing.T, pool []RoleKind) (*Room, *fakeMessenger) {
	t.Helper()

	m := newFakeMessenger()
	r := NewRoom("room-test", m)

	for i := range pool {
		if err := r.AddPlayer(fmt.Sprintf("u%d", i+1)); err != nil {
			t.Fatalf("add player: %v", err)
		}
	}

	r.dealRoles(pool)
	return r, m
}

func TestAddPlayerRejectsDuplicate(t *testing.T) {
	r := NewRoom("room-test", newFakeMessenger())

	if err := r.AddPlayer("u1"); err != nil {
		t.Fatalf("first join should succeed: %v", err)
	}
	if err := r.AddPlayer("u1"); err == nil {
		t.Fatalf("duplicate join should be rejected")
	}
}

func TestSeatsStayContiguousAfterLeave(t *testing.T) {
	r := NewRoom("room-test", newFakeMessenger())

	for _, id := range []string{"u1", "u2", "u3", "u4"} {
		if err := r.AddPlayer(id); err != nil {
			t.Fatal(err)
		}
	}

	if err := r.RemovePlayer("u2"); err != nil {
		t.Fatalf("remove player: %v", err)
	}

	wantSeats := map[string]int{"u1": 1, "u3": 2, "u4": 3}
	for id, want := range wantSeats {
		p := r.PlayerByID(id)
		if p == nil {
			t.Fatalf("player %s missing after reseat", id)
		}
		if p.Seat() != want {
			t.Fatalf("player %s: want seat %d got %d", id, want, p.Seat())
		}
	}

	if got := r.GetPlayerBySeat(2); got == nil || got.UserID != "u3" {
		t.Fatalf("seat 2 should be u3 after reseat")
	}
	if r.GetPlayerBySeat(4) != nil {
		t.Fatalf("seat 4 should be empty after reseat")
	}
}

func TestStartGameRequiresEnoughPlayers(t *testing.T) {
	r := NewRoom("room-test", newFakeMessenger())

	for _, id := range []string{"u1", "u2", "u3"} {
		if err := r.AddPlayer(id); err != nil {
			t.Fatal(err)
		}
	}
	if err := r.AddRoles([]string{"狼人"}); err != nil {
		t.Fatal(err)
	}

	if err := r.StartGame(); err == nil {
		t.Fatalf("starting below min players should fail")
	}
}

func TestStartGameRequiresWolfCamp(t *testing.T) {
	r := NewRoom("room-test", newFakeMessenger())

	for _, id := range []string{"u1", "u2", "u3", "u4"} {
		if err := r.AddPlayer(id); err != nil {
			t.Fatal(err)
		}
	}

	// 不配任何角色，全员补为村民
	if err := r.StartGame(); err == nil {
		t.Fatalf("starting without a wolf camp role should fail")
	}
}

func TestBuildRolePoolRejectsOverflow(t *testing.T) {
	r := NewRoom("room-test", newFakeMessenger())

	for _, id := range []string{"u1", "u2", "u3", "u4"} {
		if err := r.AddPlayer(id); err != nil {
			t.Fatal(err)
		}
	}
	if err := r.AddRoles([]string{"狼人", "狼人", "预言家", "守卫", "女巫"}); err != nil {
		t.Fatal(err)
	}

	if err := r.StartGame(); err == nil {
		t.Fatalf("role pool larger than player count should fail")
	}
}

func TestDealRolesAssignsIdentitiesAndEntersNight(t *testing.T) {
	pool := []RoleKind{KIND_WOLF, KIND_SEER, KIND_VILLAGER, KIND_VILLAGER}
	r, m := setupGame(t, pool)

	if r.Phase() != PHASE_NIGHT {
		t.Fatalf("game should enter night after dealing, got %s", r.Phase())
	}

	for i, kind := range pool {
		p := r.GetPlayerBySeat(i + 1)
		if p.Role == nil || p.Role.Kind() != kind {
			t.Fatalf("seat %d: want role %s", i+1, kind)
		}
	}

	if !m.hasBroadcast("游戏开始") {
		t.Fatalf("start announcement missing, broadcasts: %v", m.broadcasts)
	}
	if !m.hasBroadcast("天黑请闭眼") {
		t.Fatalf("night announcement missing")
	}
	if !m.hasPrivate("u1", "狼人") {
		t.Fatalf("u1 should receive wolf identity privately")
	}
	if !m.hasPrivate("u2", "预言家") {
		t.Fatalf("u2 should receive seer identity privately")
	}
}

func TestAutoRolesPresetScalesWolves(t *testing.T) {
	cases := []struct {
		players    int
		wantWolves int
	}{
		{4, 1},
		{5, 1},
		{6, 2},
		{8, 2},
		{9, 3},
		{12, 4},
	}

	for _, tc := range cases {
		r := NewRoom("room-test", newFakeMessenger())
		for i := 0; i < tc.players; i++ {
			if err := r.AddPlayer(fmt.Sprintf("u%d", i+1)); err != nil {
				t.Fatal(err)
			}
		}

		if err := r.AutoRoles(); err != nil {
			t.Fatalf("%d players: autoroles failed: %v", tc.players, err)
		}

		enabled := r.EnabledRoles()
		if enabled[KIND_WOLF] != tc.wantWolves {
			t.Fatalf("%d players: want %d wolves got %d", tc.players, tc.wantWolves, enabled[KIND_WOLF])
		}
		if enabled[KIND_SEER] != 1 {
			t.Fatalf("%d players: want 1 seer got %d", tc.players, enabled[KIND_SEER])
		}
		total := enabled[KIND_WOLF] + enabled[KIND_SEER] + enabled[KIND_VILLAGER]
		if total != tc.players {
			t.Fatalf("%d players: preset covers %d seats", tc.players, total)
		}
	}
}

func TestEndGameAbortsRunningGame(t *testing.T) {
	r, m := setupGame(t, []RoleKind{KIND_WOLF, KIND_VILLAGER, KIND_VILLAGER, KIND_VILLAGER})

	if err := r.EndGame(); err != nil {
		t.Fatalf("force end: %v", err)
	}

	if r.Phase() != PHASE_ENDED {
		t.Fatalf("phase should be ended, got %s", r.Phase())
	}
	if !m.hasBroadcast("游戏已中止") {
		t.Fatalf("abort announcement missing")
	}

	if err := r.EndGame(); err == nil {
		t.Fatalf("ending twice should fail")
	}
}

func TestResetKeepingPlayersReturnsToLobby(t *testing.T) {
	r, _ := setupGame(t, []RoleKind{KIND_WOLF, KIND_VILLAGER, KIND_VILLAGER, KIND_VILLAGER})

	if err := r.EndGame(); err != nil {
		t.Fatal(err)
	}
	if err := r.ResetKeepingPlayers(); err != nil {
		t.Fatalf("reset: %v", err)
	}

	if r.Phase() != PHASE_LOBBY {
		t.Fatalf("phase should be lobby after reset, got %s", r.Phase())
	}
	for _, p := range r.Players() {
		if !p.Alive || p.Role != nil {
			t.Fatalf("player %s should be alive and roleless after reset", p.UserID)
		}
	}
}
