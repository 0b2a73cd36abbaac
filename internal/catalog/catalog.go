// Package catalog holds the read-mostly reference data of the loyalty engine:
// streak and course reward tiers, the level table, badges and rewards. It is
// loaded once and injected, never mutated after load.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"anoa.com/loyaltyledger/internal/entity"
	"anoa.com/loyaltyledger/pkg/dto"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"
)

//go:embed default.yaml
var defaultYAML []byte

type StreakTier struct {
	MinDays    int     `yaml:"min_days" json:"min_days"`
	Coins      int64   `yaml:"coins" json:"coins"`
	Points     int64   `yaml:"points" json:"points"`
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`
	Label      string  `yaml:"label" json:"label"`
}

type CourseTier struct {
	Difficulty string `yaml:"difficulty" json:"difficulty"`
	Coins      int64  `yaml:"coins" json:"coins"`
	Points     int64  `yaml:"points" json:"points"`
}

type Level struct {
	Level     int    `yaml:"level"`
	Name      string `yaml:"name"`
	MinPoints int64  `yaml:"min_points"`
}

type Badge struct {
	ID          string               `yaml:"id"`
	Name        string               `yaml:"name"`
	Description string               `yaml:"description"`
	Category    entity.BadgeCategory `yaml:"category"`
	Threshold   int64                `yaml:"threshold"`
	Icon        string               `yaml:"icon"`
}

type Reward struct {
	ID             string            `yaml:"id"`
	Name           string            `yaml:"name"`
	Description    string            `yaml:"description"`
	Type           entity.RewardType `yaml:"type"`
	CoinsCost      int64             `yaml:"coins_cost"`
	Value          map[string]any    `yaml:"value"`
	Active         *bool             `yaml:"active"` // defaults to true
	MaxRedemptions *int              `yaml:"max_redemptions"`
	MaxPerUser     *int              `yaml:"max_per_user"`
	ExpiresAt      *time.Time        `yaml:"expires_at"`
}

type Catalog struct {
	Streak struct {
		Tiers []StreakTier `yaml:"tiers"`
	} `yaml:"streak"`
	Courses struct {
		Tiers   []CourseTier `yaml:"tiers"`
		Default CourseTier   `yaml:"default"`
	} `yaml:"courses"`
	Levels  []Level  `yaml:"levels"`
	Badges  []Badge  `yaml:"badges"`
	Rewards []Reward `yaml:"rewards"`
}

// Load reads the catalog at path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Parse(defaultYAML)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Default returns the embedded catalog. It panics on a broken build.
func Default() *Catalog {
	c, err := Parse(defaultYAML)
	if err != nil {
		panic(err)
	}
	return c
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.normalize(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) normalize() error {
	tiers := c.Streak.Tiers
	if len(tiers) == 0 {
		return fmt.Errorf("catalog: streak tiers are required")
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].MinDays > tiers[j].MinDays })
	if tiers[len(tiers)-1].MinDays != 0 {
		return fmt.Errorf("catalog: a streak tier with min_days 0 is required")
	}
	for i, t := range tiers {
		if t.Coins <= 0 {
			return fmt.Errorf("catalog: streak tier %d must award coins", t.MinDays)
		}
		if i > 0 && t.MinDays == tiers[i-1].MinDays {
			return fmt.Errorf("catalog: duplicate streak tier %d", t.MinDays)
		}
	}

	for i := range c.Courses.Tiers {
		c.Courses.Tiers[i].Difficulty = strings.ToUpper(c.Courses.Tiers[i].Difficulty)
		if c.Courses.Tiers[i].Coins <= 0 {
			return fmt.Errorf("catalog: course tier %s must award coins", c.Courses.Tiers[i].Difficulty)
		}
	}
	if c.Courses.Default.Coins <= 0 {
		return fmt.Errorf("catalog: default course tier must award coins")
	}

	if len(c.Levels) == 0 {
		return fmt.Errorf("catalog: levels are required")
	}
	sort.Slice(c.Levels, func(i, j int) bool { return c.Levels[i].MinPoints < c.Levels[j].MinPoints })
	if c.Levels[0].MinPoints != 0 {
		return fmt.Errorf("catalog: the first level must start at 0 points")
	}

	seen := make(map[string]struct{}, len(c.Badges))
	for _, b := range c.Badges {
		if _, ok := seen[b.ID]; ok || b.ID == "" {
			return fmt.Errorf("catalog: badge id %q is empty or duplicated", b.ID)
		}
		seen[b.ID] = struct{}{}
		switch b.Category {
		case entity.BadgeCategoryStreak, entity.BadgeCategoryPoints, entity.BadgeCategoryCourse:
		default:
			return fmt.Errorf("catalog: badge %s has unknown category %q", b.ID, b.Category)
		}
		if b.Threshold <= 0 {
			return fmt.Errorf("catalog: badge %s needs a positive threshold", b.ID)
		}
	}
	sort.SliceStable(c.Badges, func(i, j int) bool {
		if c.Badges[i].Threshold != c.Badges[j].Threshold {
			return c.Badges[i].Threshold < c.Badges[j].Threshold
		}
		return c.Badges[i].ID < c.Badges[j].ID
	})

	seen = make(map[string]struct{}, len(c.Rewards))
	for i, r := range c.Rewards {
		if _, ok := seen[r.ID]; ok || r.ID == "" {
			return fmt.Errorf("catalog: reward id %q is empty or duplicated", r.ID)
		}
		seen[r.ID] = struct{}{}
		if r.CoinsCost <= 0 {
			return fmt.Errorf("catalog: reward %s needs a positive coins_cost", r.ID)
		}
		switch r.Type {
		case entity.RewardTypeDiscount, entity.RewardTypeProduct, entity.RewardTypeAccess:
		default:
			return fmt.Errorf("catalog: reward %s has unknown type %q", r.ID, r.Type)
		}
		if r.Active == nil {
			active := true
			c.Rewards[i].Active = &active
		}
	}
	return nil
}

// StreakTier returns the reward for a claim that brings the streak to days.
func (c *Catalog) StreakTier(days int) StreakTier {
	for _, t := range c.Streak.Tiers {
		if days >= t.MinDays {
			return t
		}
	}
	return c.Streak.Tiers[len(c.Streak.Tiers)-1]
}

// CourseTier looks difficulty up case-insensitively, falling back to the default.
func (c *Catalog) CourseTier(difficulty string) CourseTier {
	d := strings.ToUpper(strings.TrimSpace(difficulty))
	for _, t := range c.Courses.Tiers {
		if t.Difficulty == d {
			return t
		}
	}
	def := c.Courses.Default
	def.Difficulty = d
	return def
}

// LevelFor calculates level status from lifetime points.
func (c *Catalog) LevelFor(points int64) dto.LevelStatus {
	idx := 0
	for i, l := range c.Levels {
		if points >= l.MinPoints {
			idx = i
		}
	}

	current := c.Levels[idx]
	status := dto.LevelStatus{
		Level:         current.Level,
		LevelName:     current.Name,
		CurrentPoints: points,
	}

	if idx == len(c.Levels)-1 {
		status.NextLevel = "Max Level"
		status.TargetPoints = current.MinPoints
		status.Progress = 100
		return status
	}

	next := c.Levels[idx+1]
	status.NextLevel = next.Name
	status.TargetPoints = next.MinPoints
	if points > 0 {
		status.Progress = float64(points) / float64(next.MinPoints) * 100
	}
	// Round progress to 2 decimal places
	status.Progress = math.Round(status.Progress*100) / 100
	return status
}

// BadgesFor returns badges of a category in ascending threshold order.
func (c *Catalog) BadgesFor(category entity.BadgeCategory) []Badge {
	var out []Badge
	for _, b := range c.Badges {
		if b.Category == category {
			out = append(out, b)
		}
	}
	return out
}

func (c *Catalog) Reward(id string) (Reward, bool) {
	for _, r := range c.Rewards {
		if r.ID == id {
			return r, true
		}
	}
	return Reward{}, false
}

func (b Badge) Entity() entity.Badge {
	return entity.Badge{
		ID:          b.ID,
		Name:        b.Name,
		Description: b.Description,
		Category:    b.Category,
		Threshold:   b.Threshold,
		Icon:        b.Icon,
	}
}

func (c *Catalog) BadgeEntities() []entity.Badge {
	out := make([]entity.Badge, 0, len(c.Badges))
	for _, b := range c.Badges {
		out = append(out, b.Entity())
	}
	return out
}

func (c *Catalog) RewardEntities() ([]entity.Reward, error) {
	out := make([]entity.Reward, 0, len(c.Rewards))
	for _, r := range c.Rewards {
		var value datatypes.JSON
		if r.Value != nil {
			raw, err := json.Marshal(r.Value)
			if err != nil {
				return nil, fmt.Errorf("reward %s value: %w", r.ID, err)
			}
			value = raw
		}

		var expiresAt *time.Time
		if r.ExpiresAt != nil {
			t := r.ExpiresAt.UTC()
			expiresAt = &t
		}

		out = append(out, entity.Reward{
			ID:             r.ID,
			Name:           r.Name,
			Description:    r.Description,
			Type:           r.Type,
			CoinsCost:      r.CoinsCost,
			Value:          value,
			IsActive:       *r.Active,
			MaxRedemptions: r.MaxRedemptions,
			MaxPerUser:     r.MaxPerUser,
			ExpiresAt:      expiresAt,
		})
	}
	return out, nil
}
