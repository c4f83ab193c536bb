package services

import (
	"context"
	"time"

	"odds-engine/logger"
)

// RetentionConfig 保留期配置
type RetentionConfig struct {
	RetainDaysChanges int // 赔率变更记录保留天数
	RetainDaysVolumes int // 归档赛事的投注量统计保留天数
}

// RetentionResult 单项清理结果
type RetentionResult struct {
	Target       string
	DeletedRows  int64
	RetainedDays int
	Error        error
}

// archivedEventLister 保留期清理需要的赛事查询能力
type archivedEventLister interface {
	ListArchivedEventIDs(ctx context.Context, before time.Time) ([]string, error)
}

// volumePurger 保留期清理需要的统计删除能力
type volumePurger interface {
	PurgeEvent(ctx context.Context, eventID string) (int64, error)
}

// changePurger 保留期清理需要的审计删除能力
type changePurger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionService 数据保留期清理。
// 审计日志只在这里被批量删除；投注量统计只清理已归档赛事的。
type RetentionService struct {
	ledger  changePurger
	volumes volumePurger
	events  archivedEventLister
	config  RetentionConfig
}

// NewRetentionService 创建保留期清理服务
func NewRetentionService(ledger changePurger, volumes volumePurger,
	events archivedEventLister, config RetentionConfig) *RetentionService {
	return &RetentionService{
		ledger:  ledger,
		volumes: volumes,
		events:  events,
		config:  config,
	}
}

// Execute 执行清理，按清理项返回结果。
// 保留策略：
// - odds_change_records: 按配置天数清理（默认 30 天）
// - wagering_volumes: 赛事归档满配置天数后清理（默认 7 天）
func (s *RetentionService) Execute(ctx context.Context) []RetentionResult {
	results := []RetentionResult{}

	// 审计记录
	cutoff := time.Now().AddDate(0, 0, -s.config.RetainDaysChanges)
	deleted, err := s.ledger.PurgeBefore(ctx, cutoff)
	results = append(results, RetentionResult{
		Target:       "odds_change_records",
		DeletedRows:  deleted,
		RetainedDays: s.config.RetainDaysChanges,
		Error:        err,
	})

	// 归档赛事的投注量统计
	volumeCutoff := time.Now().AddDate(0, 0, -s.config.RetainDaysVolumes)
	eventIDs, err := s.events.ListArchivedEventIDs(ctx, volumeCutoff)
	if err != nil {
		results = append(results, RetentionResult{
			Target:       "wagering_volumes",
			RetainedDays: s.config.RetainDaysVolumes,
			Error:        err,
		})
		return results
	}

	var purged int64
	for _, eventID := range eventIDs {
		n, err := s.volumes.PurgeEvent(ctx, eventID)
		if err != nil {
			logger.Errorf("[RetentionService] Failed to purge volumes for %s: %v", eventID, err)
			continue
		}
		purged += n
	}
	results = append(results, RetentionResult{
		Target:       "wagering_volumes",
		DeletedRows:  purged,
		RetainedDays: s.config.RetainDaysVolumes,
	})

	return results
}
