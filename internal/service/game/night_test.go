package game

import (
	"testing"
)

// runSpeechAndAbstainVote 把白天快进过去：按发言顺序逐个跳过，
// 再让所有存活玩家弃票，使游戏推进到下一夜。
func runSpeechAndAbstainVote(t *testing.T, r *Room) {
	t.Helper()

	if r.Phase() != PHASE_SPEECH {
		t.Fatalf("want speech phase, got %s", r.Phase())
	}

	order := append([]string(nil), r.speechOrder...)
	for _, id := range order {
		if err := r.SubmitSkip(id); err != nil {
			t.Fatalf("skip speech for %s: %v", id, err)
		}
	}

	if r.Phase() != PHASE_VOTE {
		t.Fatalf("want vote phase after speeches, got %s", r.Phase())
	}

	voters := r.alivePlayers()
	for _, p := range voters {
		if err := r.SubmitSkip(p.UserID); err != nil {
			t.Fatalf("abstain for %s: %v", p.UserID, err)
		}
	}
}

func TestWolfMajorityLocksKill(t *testing.T) {
	// 3 狼 6 民，u1/u3 刀 4 号形成严格多数
	pool := []RoleKind{
		KIND_WOLF, KIND_WOLF, KIND_WOLF,
		KIND_VILLAGER, KIND_VILLAGER, KIND_VILLAGER,
		KIND_VILLAGER, KIND_VILLAGER, KIND_VILLAGER,
	}
	r, m := setupGame(t, pool)

	if err := r.SubmitSkill("u1", "kill", []string{"4"}); err != nil {
		t.Fatal(err)
	}
	if r.nightKillLocked {
		t.Fatalf("one vote of three wolves must not lock")
	}

	if err := r.SubmitSkill("u2", "kill", []string{"5"}); err != nil {
		t.Fatal(err)
	}
	if r.nightKillLocked {
		t.Fatalf("split 1-1 vote must not lock")
	}

	if err := r.SubmitSkill("u3", "kill", []string{"4"}); err != nil {
		t.Fatal(err)
	}

	// 2/3 形成多数，刀口锁定并直接结算整夜
	p4 := r.PlayerByID("u4")
	if p4.Alive {
		t.Fatalf("u4 should be killed by the pack")
	}
	if !m.hasBroadcast("昨晚 4号 死亡") {
		t.Fatalf("dawn announcement missing, broadcasts: %v", m.broadcasts)
	}
	if r.Phase() != PHASE_SPEECH {
		t.Fatalf("game should be in speech phase, got %s", r.Phase())
	}
	if r.DayCount() != 1 {
		t.Fatalf("want day 1, got %d", r.DayCount())
	}
}

func TestAllWolvesSkipMeansPeacefulNight(t *testing.T) {
	r, m := setupGame(t, []RoleKind{KIND_WOLF, KIND_VILLAGER, KIND_VILLAGER, KIND_VILLAGER})

	if err := r.SubmitSkip("u1"); err != nil {
		t.Fatal(err)
	}

	if !m.hasBroadcast("平安夜") {
		t.Fatalf("peaceful night announcement missing")
	}
	for _, p := range r.Players() {
		if !p.Alive {
			t.Fatalf("nobody should die on a peaceful night")
		}
	}
	if r.Phase() != PHASE_SPEECH {
		t.Fatalf("game should advance to speech, got %s", r.Phase())
	}
}

func TestWolfCannotActTwiceBeforeLock(t *testing.T) {
	r, m := setupGame(t, []RoleKind{KIND_WOLF, KIND_WOLF, KIND_VILLAGER, KIND_VILLAGER, KIND_VILLAGER})

	if err := r.SubmitSkill("u1", "kill", []string{"3"}); err != nil {
		t.Fatal(err)
	}
	if err := r.SubmitSkill("u1", "kill", []string{"4"}); err != nil {
		t.Fatal(err)
	}

	if !m.hasPrivate("u1", "无法再次行动") {
		t.Fatalf("second action before lock should be rejected, privates: %v", m.privates["u1"])
	}
	if got := r.nightKillVotes["u1"]; got != "u3" {
		t.Fatalf("first vote must stand, got target %q", got)
	}
}

func TestWolfCannotTargetSelfOrDead(t *testing.T) {
	r, m := setupGame(t, []RoleKind{KIND_WOLF, KIND_WOLF, KIND_VILLAGER, KIND_VILLAGER, KIND_VILLAGER})

	if err := r.SubmitSkill("u1", "kill", []string{"1"}); err != nil {
		t.Fatal(err)
	}
	if !m.hasPrivate("u1", "不能选择自己") {
		t.Fatalf("self target should be rejected")
	}

	if err := r.SubmitSkill("u1", "kill", []string{"9"}); err != nil {
		t.Fatal(err)
	}
	if !m.hasPrivate("u1", "目标编号无效") {
		t.Fatalf("out of range seat should be rejected")
	}

	if len(r.nightWolfDone) != 0 {
		t.Fatalf("rejected attempts must not consume the wolf's action")
	}
}

func TestGuardBlocksWolfKill(t *testing.T) {
	r, m := setupGame(t, []RoleKind{KIND_WOLF, KIND_GUARD, KIND_VILLAGER, KIND_VILLAGER, KIND_VILLAGER})

	if err := r.SubmitSkill("u1", "kill", []string{"3"}); err != nil {
		t.Fatal(err)
	}
	if err := r.SubmitSkill("u2", "guard", []string{"3"}); err != nil {
		t.Fatal(err)
	}

	if !r.PlayerByID("u3").Alive {
		t.Fatalf("guarded target must survive the wolf kill")
	}
	if !m.hasBroadcast("平安夜") {
		t.Fatalf("night should resolve as peaceful")
	}
}

func TestGuardCannotRepeatTargetOnConsecutiveNights(t *testing.T) {
	r, m := setupGame(t, []RoleKind{KIND_WOLF, KIND_GUARD, KIND_VILLAGER, KIND_VILLAGER, KIND_VILLAGER})

	// 第一夜：守 3 号挡刀
	if err := r.SubmitSkill("u1", "kill", []string{"3"}); err != nil {
		t.Fatal(err)
	}
	if err := r.SubmitSkill("u2", "guard", []string{"3"}); err != nil {
		t.Fatal(err)
	}

	runSpeechAndAbstainVote(t, r)

	if r.Phase() != PHASE_NIGHT {
		t.Fatalf("want night 2, got %s", r.Phase())
	}

	// 第二夜：连守同一目标被拒，换人可以
	if err := r.SubmitSkill("u2", "guard", []string{"3"}); err != nil {
		t.Fatal(err)
	}
	if !m.hasPrivate("u2", "不能连续两晚守护同一名玩家") {
		t.Fatalf("repeat guard target should be rejected, privates: %v", m.privates["u2"])
	}

	if err := r.SubmitSkill("u2", "guard", []string{"4"}); err != nil {
		t.Fatal(err)
	}
	if !m.hasPrivate("u2", "你将守护 4号") {
		t.Fatalf("guarding another target should succeed")
	}
}

func TestWitchAntidoteIsOneShotAcrossNights(t *testing.T) {
	r, m := setupGame(t, []RoleKind{KIND_WOLF, KIND_WITCH, KIND_VILLAGER, KIND_VILLAGER, KIND_VILLAGER})

	// 第一夜：狼刀 3 号，女巫解药救下
	if err := r.SubmitSkill("u1", "kill", []string{"3"}); err != nil {
		t.Fatal(err)
	}
	if err := r.SubmitSkill("u2", "save", nil); err != nil {
		t.Fatal(err)
	}
	if err := r.SubmitSkip("u2"); err != nil {
		t.Fatal(err)
	}

	if !r.PlayerByID("u3").Alive {
		t.Fatalf("saved target must survive night 1")
	}

	runSpeechAndAbstainVote(t, r)

	// 第二夜：解药已空，同样的救人被拒，狼刀生效
	if err := r.SubmitSkill("u1", "kill", []string{"3"}); err != nil {
		t.Fatal(err)
	}
	if err := r.SubmitSkill("u2", "save", nil); err != nil {
		t.Fatal(err)
	}
	if !m.hasPrivate("u2", "解药已用完") {
		t.Fatalf("second save across nights should be rejected, privates: %v", m.privates["u2"])
	}

	if err := r.SubmitSkip("u2"); err != nil {
		t.Fatal(err)
	}

	if r.PlayerByID("u3").Alive {
		t.Fatalf("u3 should die on night 2 without the antidote")
	}
	if !m.hasPrivate("u3", "夜晚被狼人击杀") {
		t.Fatalf("death reason should reach the victim")
	}
}

func TestWitchPoisonIgnoresGuard(t *testing.T) {
	r, m := setupGame(t, []RoleKind{
		KIND_WOLF, KIND_WITCH, KIND_GUARD, KIND_VILLAGER, KIND_VILLAGER,
	})

	if err := r.SubmitSkill("u1", "kill", []string{"4"}); err != nil {
		t.Fatal(err)
	}
	// 守卫挡下狼刀
	if err := r.SubmitSkill("u3", "guard", []string{"4"}); err != nil {
		t.Fatal(err)
	}
	// 女巫毒 5 号，守护不影响毒杀
	if err := r.SubmitSkill("u2", "poison", []string{"5"}); err != nil {
		t.Fatal(err)
	}
	if err := r.SubmitSkip("u2"); err != nil {
		t.Fatal(err)
	}

	if !r.PlayerByID("u4").Alive {
		t.Fatalf("guarded wolf target must survive")
	}
	if r.PlayerByID("u5").Alive {
		t.Fatalf("poisoned target must die regardless of guard")
	}
	if !m.hasPrivate("u5", "夜晚被女巫毒杀") {
		t.Fatalf("poison death reason missing")
	}
}

func TestWitchCannotPoisonJustSavedTarget(t *testing.T) {
	r, m := setupGame(t, []RoleKind{KIND_WOLF, KIND_WITCH, KIND_VILLAGER, KIND_VILLAGER, KIND_VILLAGER})

	if err := r.SubmitSkill("u1", "kill", []string{"3"}); err != nil {
		t.Fatal(err)
	}
	if err := r.SubmitSkill("u2", "save", nil); err != nil {
		t.Fatal(err)
	}
	if err := r.SubmitSkill("u2", "poison", []string{"3"}); err != nil {
		t.Fatal(err)
	}

	if !m.hasPrivate("u2", "不能毒杀你刚救下的玩家") {
		t.Fatalf("poisoning the saved target should be rejected, privates: %v", m.privates["u2"])
	}
	if len(r.nightPoisonTarget) != 0 {
		t.Fatalf("rejected poison must not be recorded")
	}
}

func TestSeerLearnsCampThroughResultChannel(t *testing.T) {
	r, m := setupGame(t, []RoleKind{KIND_WOLF, KIND_SEER, KIND_VILLAGER, KIND_VILLAGER})

	if err := r.SubmitSkill("u2", "check", []string{"1"}); err != nil {
		t.Fatal(err)
	}
	if !m.hasPrivate("u2", "1号 是 狼人") {
		t.Fatalf("seer should learn wolf camp, privates: %v", m.privates["u2"])
	}

	// 一夜只能查验一次
	if err := r.SubmitSkill("u2", "check", []string{"3"}); err != nil {
		t.Fatal(err)
	}
	if !m.hasPrivate("u2", "无需重复操作") {
		t.Fatalf("second check in one night should be rejected")
	}
}

func TestNightWaitsForEveryGateHolder(t *testing.T) {
	r, _ := setupGame(t, []RoleKind{KIND_WOLF, KIND_SEER, KIND_VILLAGER, KIND_VILLAGER, KIND_VILLAGER})

	// 狼人刀口已锁定，但预言家还没行动，夜晚不能结算
	if err := r.SubmitSkill("u1", "kill", []string{"3"}); err != nil {
		t.Fatal(err)
	}

	if r.Phase() != PHASE_NIGHT {
		t.Fatalf("night must wait for the seer, got %s", r.Phase())
	}
	if r.PlayerByID("u3").Alive == false {
		t.Fatalf("deaths must not apply before the night resolves")
	}

	if err := r.SubmitSkip("u2"); err != nil {
		t.Fatal(err)
	}

	if r.Phase() != PHASE_SPEECH {
		t.Fatalf("night should resolve once the seer responds, got %s", r.Phase())
	}
	if r.PlayerByID("u3").Alive {
		t.Fatalf("locked wolf kill should apply at resolution")
	}
}
