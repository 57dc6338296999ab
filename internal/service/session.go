package service

import "werewolf-be/internal/service/dto"

// Session 是一条到玩家客户端的连接。RespCh 由连接层创建并消费，
// 服务层只向里面写响应，写不进去（缓冲满）时丢弃并告警。
type Session struct {
	UserID string
	Name   string
	RoomID string

	RespCh chan dto.ResponseWrapper
}
