package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store 负责需要跨重启保留的房间数据：
// 已创建（启用）的房间与各房间的封禁名单。
// 局内状态全部在内存里，不落库。
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at INTEGER NOT NULL DEFAULT (unixepoch())
);

CREATE TABLE IF NOT EXISTS bans (
	room_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	PRIMARY KEY (room_id, user_id)
);
`

// Open 打开（必要时创建）SQLite 数据库并建表。
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("数据库路径不能为空")
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("初始化表结构失败: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RoomRecord 是落库的房间登记条目
type RoomRecord struct {
	ID   string
	Name string
}

func (s *Store) SaveRoom(ctx context.Context, id, name string) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO rooms (id, name) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		id, name,
	)
	if err != nil {
		return fmt.Errorf("保存房间失败: %w", err)
	}
	return nil
}

func (s *Store) DeleteRoom(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM bans WHERE room_id = ?`, id); err != nil {
		return fmt.Errorf("清理封禁名单失败: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id); err != nil {
		return fmt.Errorf("删除房间失败: %w", err)
	}
	return nil
}

// ListRooms 返回所有登记过的房间，启动时用于恢复房间列表。
func (s *Store) ListRooms(ctx context.Context) ([]RoomRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM rooms ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("查询房间列表失败: %w", err)
	}
	defer rows.Close()

	var out []RoomRecord
	for rows.Next() {
		var rec RoomRecord
		if err := rows.Scan(&rec.ID, &rec.Name); err != nil {
			return nil, fmt.Errorf("读取房间记录失败: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历房间记录失败: %w", err)
	}
	return out, nil
}

func (s *Store) AddBan(ctx context.Context, roomID, userID string) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO bans (room_id, user_id) VALUES (?, ?)`,
		roomID, userID,
	)
	if err != nil {
		return fmt.Errorf("添加封禁失败: %w", err)
	}
	return nil
}

func (s *Store) RemoveBan(ctx context.Context, roomID, userID string) error {
	_, err := s.db.ExecContext(
		ctx,
		`DELETE FROM bans WHERE room_id = ? AND user_id = ?`,
		roomID, userID,
	)
	if err != nil {
		return fmt.Errorf("解除封禁失败: %w", err)
	}
	return nil
}

func (s *Store) IsBanned(ctx context.Context, roomID, userID string) (bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT 1 FROM bans WHERE room_id = ? AND user_id = ?`,
		roomID, userID,
	)

	var one int
	switch err := row.Scan(&one); err {
	case nil:
		return true, nil
	case sql.ErrNoRows:
		return false, nil
	default:
		return false, fmt.Errorf("查询封禁状态失败: %w", err)
	}
}

// ListBans 返回某房间的全部封禁用户。
func (s *Store) ListBans(ctx context.Context, roomID string) ([]string, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT user_id FROM bans WHERE room_id = ? ORDER BY user_id`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("查询封禁名单失败: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("读取封禁记录失败: %w", err)
		}
		out = append(out, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历封禁记录失败: %w", err)
	}
	return out, nil
}
