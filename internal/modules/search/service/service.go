package service

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"anoa.com/loyaltyledger/internal/entity"
	"anoa.com/loyaltyledger/pkg/logger"
	"github.com/meilisearch/meilisearch-go"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

const rewardsIndex = "rewards"

// RewardSearch indexes the reward catalog and answers free-text queries with
// matching reward ids in relevance order.
type RewardSearch interface {
	Enabled() bool
	IndexRewards(ctx context.Context, rewards []entity.Reward) error
	SearchRewards(ctx context.Context, query string, limit int) ([]string, error)
}

type meiliSearchService struct {
	client    meilisearch.ServiceManager
	sanitizer *bluemonday.Policy
}

func NewMeiliSearchService(client meilisearch.ServiceManager) RewardSearch {
	s := &meiliSearchService{
		client:    client,
		sanitizer: bluemonday.StrictPolicy(),
	}
	s.initIndexes()
	return s
}

func (s *meiliSearchService) initIndexes() {
	filterable := []any{"type", "is_active"}
	if _, err := s.client.Index(rewardsIndex).UpdateFilterableAttributes(&filterable); err != nil {
		logger.L.Warn("update rewards filterable attributes", zap.Error(err))
	}

	sortable := []string{"coins_cost"}
	if _, err := s.client.Index(rewardsIndex).UpdateSortableAttributes(&sortable); err != nil {
		logger.L.Warn("update rewards sortable attributes", zap.Error(err))
	}
}

type meiliRewardDoc struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
	CoinsCost   int64  `json:"coins_cost"`
	IsActive    bool   `json:"is_active"`
}

func (s *meiliSearchService) cleanText(content string) string {
	sanitized := s.sanitizer.Sanitize(content)
	return strings.Join(strings.Fields(html.UnescapeString(sanitized)), " ")
}

func (s *meiliSearchService) Enabled() bool { return true }

func (s *meiliSearchService) IndexRewards(ctx context.Context, rewards []entity.Reward) error {
	if len(rewards) == 0 {
		return nil
	}

	docs := make([]meiliRewardDoc, 0, len(rewards))
	for _, r := range rewards {
		docs = append(docs, meiliRewardDoc{
			ID:          r.ID,
			Name:        r.Name,
			Description: s.cleanText(r.Description),
			Type:        string(r.Type),
			CoinsCost:   r.CoinsCost,
			IsActive:    r.IsActive,
		})
	}

	pk := "id"
	task, err := s.client.Index(rewardsIndex).AddDocuments(docs, &pk)
	if err != nil {
		return fmt.Errorf("index rewards: %w", err)
	}
	logger.L.Info("rewards indexed", zap.Int("count", len(docs)), zap.Int64("task_uid", task.TaskUID))
	return nil
}

type rawHits struct {
	Hits []struct {
		ID string `json:"id"`
	} `json:"hits"`
}

func (s *meiliSearchService) SearchRewards(ctx context.Context, query string, limit int) ([]string, error) {
	raw, err := s.client.Index(rewardsIndex).SearchRaw(query, &meilisearch.SearchRequest{
		Limit:                int64(limit),
		Filter:               "is_active = true",
		AttributesToRetrieve: []string{"id"},
	})
	if err != nil {
		return nil, fmt.Errorf("search rewards: %w", err)
	}

	var res rawHits
	if err := json.Unmarshal(*raw, &res); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	ids := make([]string, 0, len(res.Hits))
	for _, h := range res.Hits {
		ids = append(ids, h.ID)
	}
	return ids, nil
}

// noopSearch is used when no search host is configured.
type noopSearch struct{}

func NewNoopSearch() RewardSearch { return noopSearch{} }

func (noopSearch) Enabled() bool { return false }

func (noopSearch) IndexRewards(context.Context, []entity.Reward) error { return nil }

func (noopSearch) SearchRewards(context.Context, string, int) ([]string, error) { return nil, nil }
