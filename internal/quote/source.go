// Package quote 是行情源适配层：任何取数失败统一收敛为空结果，调用方以"空"为失败信号，永不抛错。
package quote

import (
	"context"

	"github.com/xxinine/vi-tools/internal/api"
	"github.com/xxinine/vi-tools/internal/model"
	"github.com/xxinine/vi-tools/internal/trace"
)

// Provider 驱动消费的行情源接口。空快照/空序列即失败，无 error。
type Provider interface {
	MarketSnapshot(ctx context.Context, market model.Market) model.Snapshot
	History(ctx context.Context, code string, days int) []model.HistoryBar
}

// Source 基于东方财富客户端的 Provider 实现。
type Source struct {
	client *api.Client
}

func NewSource(client *api.Client) *Source {
	return &Source{client: client}
}

// MarketSnapshot 拉取整市场快照并按代码建索引；失败时记日志并返回空快照。
func (s *Source) MarketSnapshot(ctx context.Context, market model.Market) model.Snapshot {
	quotes, err := s.client.GetSpot(ctx, market)
	if err != nil {
		trace.Log(ctx, "quote: 市场 %s 快照拉取失败 err=%v", market, err)
		return model.Snapshot{}
	}
	snap := make(model.Snapshot, len(quotes))
	for _, q := range quotes {
		snap[q.Code] = q
	}
	return snap
}

// History 拉取最近 days 个自然日的日 K；失败时记日志并返回空序列。
func (s *Source) History(ctx context.Context, code string, days int) []model.HistoryBar {
	bars, err := s.client.GetDailyKlines(ctx, code, days)
	if err != nil {
		trace.Log(ctx, "quote: %s 历史拉取失败 err=%v", code, err)
		return nil
	}
	return bars
}
