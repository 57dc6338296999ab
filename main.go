package main

import (
	"werewolf-be/internal/api/http"
	"werewolf-be/internal/config"
	"werewolf-be/internal/logger"
	"werewolf-be/internal/service"
	"werewolf-be/internal/state"
	"werewolf-be/internal/store"

	"go.uber.org/zap"
)

func main() {
	// 加载配置
	cfg := config.InitConfig()

	// 初始化日志器
	logger.InitLogger(cfg.LogLevel)

	// 打开持久化存储（可选）
	var st *store.Store
	if cfg.DBPath != "" {
		var err error
		st, err = store.Open(cfg.DBPath)
		if err != nil {
			zap.S().Fatalf("打开数据库失败：%v", err)
		}
		defer st.Close()
	}

	// 组装应用状态
	appState := state.NewAppState(
		cfg,
		service.NewRoomService(st, cfg.MinPlayers),
	)

	// 启动服务器
	http.RunServer(appState)
}
