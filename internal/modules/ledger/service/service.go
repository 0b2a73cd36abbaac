package service

import (
	"context"
	"html"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"anoa.com/loyaltyledger/internal/catalog"
	"anoa.com/loyaltyledger/internal/entity"
	badgeService "anoa.com/loyaltyledger/internal/modules/badge/service"
	ledgerRepo "anoa.com/loyaltyledger/internal/modules/ledger/repository"
	notifService "anoa.com/loyaltyledger/internal/modules/notification/service"
	"anoa.com/loyaltyledger/pkg/apperror"
	"anoa.com/loyaltyledger/pkg/clock"
	"anoa.com/loyaltyledger/pkg/database"
	"anoa.com/loyaltyledger/pkg/logger"
	"anoa.com/loyaltyledger/pkg/metrics"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const maxDescriptionLength = 255

var sanitizer = bluemonday.StrictPolicy()

// PostRequest describes one coin movement.
type PostRequest struct {
	UserID      uuid.UUID
	Direction   entity.Direction
	Amount      int64
	Points      int64
	Source      entity.Source
	Description string
	Metadata    map[string]any
	// ReferenceID makes the entry idempotent per (user, source).
	ReferenceID string
}

type Result struct {
	Entry         entity.LedgerEntry
	Account       entity.Account
	Badges        []entity.Badge
	PreviousLevel int
}

type LedgerService interface {
	ApplyTransaction(ctx context.Context, req PostRequest) (*Result, error)
	RecordEvent(ctx context.Context, req PostRequest) (*Result, error)
	RecordCourseCompletion(ctx context.Context, userID uuid.UUID, courseID, difficulty, title string) (*Result, error)

	// WithAccountLock runs fn in a transaction holding the account row lock,
	// retrying the whole unit on contention.
	WithAccountLock(ctx context.Context, userID uuid.UUID, fn func(tx *gorm.DB, acc *entity.Account) error) error
	// Post writes req inside tx and applies it to acc. acc must have been
	// locked by WithAccountLock.
	Post(ctx context.Context, tx *gorm.DB, acc *entity.Account, req PostRequest) (*entity.LedgerEntry, error)
	// EvaluateBadges runs extra triggers first, then the ones entry implies.
	EvaluateBadges(ctx context.Context, tx *gorm.DB, acc *entity.Account, entry *entity.LedgerEntry, extra ...badgeService.Trigger) ([]entity.Badge, error)
	// Announce emits metrics and notifications once res has committed.
	Announce(ctx context.Context, res *Result)

	GetAccount(ctx context.Context, userID uuid.UUID) (*entity.Account, error)
	GetBalance(ctx context.Context, userID uuid.UUID) (int64, error)
	ListRecent(ctx context.Context, userID uuid.UUID, limit, offset int) ([]entity.LedgerEntry, int64, error)
	SumEarnedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error)
	CountCourses(ctx context.Context, userID uuid.UUID) (int64, error)
	Reconcile(ctx context.Context) ([]Mismatch, error)
}

// Mismatch is an account whose cached balance disagrees with its entries.
type Mismatch struct {
	UserID  uuid.UUID `json:"user_id"`
	Balance int64     `json:"balance"`
	Ledger  int64     `json:"ledger"`
}

type ledgerService struct {
	db                  *gorm.DB
	repo                ledgerRepo.LedgerRepository
	badgeService        badgeService.BadgeService
	notificationService notifService.NotificationService
	catalog             *catalog.Catalog
	clock               clock.Clock
	maxRetries          int
}

func NewLedgerService(
	db *gorm.DB,
	repo ledgerRepo.LedgerRepository,
	badgeService badgeService.BadgeService,
	notificationService notifService.NotificationService,
	cat *catalog.Catalog,
	clk clock.Clock,
	maxRetries int,
) LedgerService {
	return &ledgerService{
		db:                  db,
		repo:                repo,
		badgeService:        badgeService,
		notificationService: notificationService,
		catalog:             cat,
		clock:               clk,
		maxRetries:          maxRetries,
	}
}

func validate(req PostRequest) error {
	if req.UserID == uuid.Nil {
		return fmt.Errorf("%w: user id is required", apperror.ErrInvalidInput)
	}
	if req.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", apperror.ErrInvalidInput)
	}
	if req.Points < 0 {
		return fmt.Errorf("%w: points must not be negative", apperror.ErrInvalidInput)
	}
	if !req.Direction.Valid() {
		return fmt.Errorf("%w: unknown direction %q", apperror.ErrInvalidInput, req.Direction)
	}
	if !req.Source.Valid() {
		return fmt.Errorf("%w: unknown source %q", apperror.ErrInvalidInput, req.Source)
	}
	return nil
}

func (s *ledgerService) WithAccountLock(ctx context.Context, userID uuid.UUID, fn func(tx *gorm.DB, acc *entity.Account) error) error {
	return database.Transaction(ctx, s.db, s.maxRetries, func(tx *gorm.DB) error {
		acc, err := s.repo.WithTx(tx).LockAccount(ctx, userID)
		if err != nil {
			return err
		}
		return fn(tx, acc)
	})
}

func (s *ledgerService) Post(ctx context.Context, tx *gorm.DB, acc *entity.Account, req PostRequest) (*entity.LedgerEntry, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	if req.UserID != acc.UserID {
		return nil, fmt.Errorf("%w: entry user does not match locked account", apperror.ErrInternal)
	}
	repo := s.repo.WithTx(tx)

	var ref *string
	if req.ReferenceID != "" {
		exists, err := repo.ReferenceExists(ctx, req.UserID, req.Source, req.ReferenceID)
		if err != nil {
			return nil, fmt.Errorf("check reference: %w", err)
		}
		if exists {
			return nil, apperror.ErrDuplicateEvent
		}
		ref = &req.ReferenceID
	}

	if req.Direction == entity.DirectionRedeemed && acc.Balance < req.Amount {
		return nil, apperror.ErrInsufficientBalance
	}

	var meta datatypes.JSON
	if len(req.Metadata) > 0 {
		raw, err := json.Marshal(req.Metadata)
		if err != nil {
			return nil, fmt.Errorf("%w: metadata: %v", apperror.ErrInvalidInput, err)
		}
		meta = raw
	}

	now := s.clock.Now()
	entry := &entity.LedgerEntry{
		UserID:      req.UserID,
		Direction:   req.Direction,
		Amount:      req.Amount,
		Source:      req.Source,
		ReferenceID: ref,
		Description: cleanDescription(req.Description),
		Metadata:    meta,
		CreatedAt:   now,
	}

	switch req.Direction {
	case entity.DirectionEarned:
		entry.Points = req.Points
		acc.Balance += req.Amount
		acc.TotalEarned += req.Amount
		acc.TotalPoints += req.Points
		acc.Level = s.catalog.LevelFor(acc.TotalPoints).Level
	case entity.DirectionRedeemed:
		acc.Balance -= req.Amount
		acc.TotalSpent += req.Amount
	}
	acc.UpdatedAt = now

	if err := repo.CreateEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("create ledger entry: %w", err)
	}
	if err := repo.SaveAccount(ctx, acc); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *ledgerService) EvaluateBadges(ctx context.Context, tx *gorm.DB, acc *entity.Account, entry *entity.LedgerEntry, extra ...badgeService.Trigger) ([]entity.Badge, error) {
	if s.badgeService == nil {
		return nil, nil
	}

	triggers := append([]badgeService.Trigger{}, extra...)
	if entry.Direction == entity.DirectionEarned && entry.Points > 0 {
		triggers = append(triggers, badgeService.PointsReached(acc.TotalPoints))
	}
	if entry.Source == entity.SourceCourseComplete {
		n, err := s.repo.WithTx(tx).CountBySource(ctx, acc.UserID, entity.SourceCourseComplete)
		if err != nil {
			return nil, fmt.Errorf("count courses: %w", err)
		}
		triggers = append(triggers, badgeService.CoursesCompleted(n))
	}
	if len(triggers) == 0 {
		return nil, nil
	}
	return s.badgeService.Evaluate(ctx, tx, acc.UserID, triggers...)
}

func (s *ledgerService) ApplyTransaction(ctx context.Context, req PostRequest) (*Result, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	var res *Result
	err := s.WithAccountLock(ctx, req.UserID, func(tx *gorm.DB, acc *entity.Account) error {
		prevLevel := acc.Level

		entry, err := s.Post(ctx, tx, acc, req)
		if err != nil {
			return err
		}
		badges, err := s.EvaluateBadges(ctx, tx, acc, entry)
		if err != nil {
			return err
		}

		res = &Result{Entry: *entry, Account: *acc, Badges: badges, PreviousLevel: prevLevel}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Announce(ctx, res)
	return res, nil
}

func (s *ledgerService) RecordEvent(ctx context.Context, req PostRequest) (*Result, error) {
	req.Direction = entity.DirectionEarned
	if req.Source == entity.SourceRewardRedemption || req.Source == entity.SourceDailyLogin {
		return nil, fmt.Errorf("%w: source %s cannot be recorded as an event", apperror.ErrInvalidInput, req.Source)
	}
	return s.ApplyTransaction(ctx, req)
}

func (s *ledgerService) RecordCourseCompletion(ctx context.Context, userID uuid.UUID, courseID, difficulty, title string) (*Result, error) {
	courseID = strings.TrimSpace(courseID)
	if courseID == "" {
		return nil, fmt.Errorf("%w: course id is required", apperror.ErrInvalidInput)
	}

	tier := s.catalog.CourseTier(difficulty)
	description := "Completed course"
	if title != "" {
		description = fmt.Sprintf("Completed course: %s", title)
	}

	return s.ApplyTransaction(ctx, PostRequest{
		UserID:      userID,
		Direction:   entity.DirectionEarned,
		Amount:      tier.Coins,
		Points:      tier.Points,
		Source:      entity.SourceCourseComplete,
		Description: description,
		Metadata: map[string]any{
			"course_id":  courseID,
			"difficulty": tier.Difficulty,
		},
		ReferenceID: courseID,
	})
}

func (s *ledgerService) Announce(ctx context.Context, res *Result) {
	if res == nil {
		return
	}
	e := res.Entry
	metrics.CoinsMoved.WithLabelValues(string(e.Direction), string(e.Source)).Add(float64(e.Amount))
	logger.L.Info("ledger entry posted",
		zap.String("user_id", e.UserID.String()),
		zap.String("direction", string(e.Direction)),
		zap.String("source", string(e.Source)),
		zap.Int64("amount", e.Amount),
		zap.Int64("balance", res.Account.Balance),
	)

	if s.badgeService != nil && len(res.Badges) > 0 {
		s.badgeService.Announce(ctx, e.UserID, res.Badges)
	}

	if res.PreviousLevel != 0 && res.Account.Level > res.PreviousLevel && s.notificationService != nil {
		prev := s.levelName(res.PreviousLevel)
		status := s.catalog.LevelFor(res.Account.TotalPoints)
		n := notifService.LevelUp(e.UserID, prev, status.LevelName, res.Account.TotalPoints)
		if err := s.notificationService.CreateNotification(ctx, n); err != nil {
			logger.L.Warn("level up notification", zap.String("user_id", e.UserID.String()), zap.Error(err))
		}
	}
}

func (s *ledgerService) levelName(level int) string {
	for _, l := range s.catalog.Levels {
		if l.Level == level {
			return l.Name
		}
	}
	return fmt.Sprintf("Level %d", level)
}

func (s *ledgerService) GetAccount(ctx context.Context, userID uuid.UUID) (*entity.Account, error) {
	if userID == uuid.Nil {
		return nil, apperror.ErrAccountNotFound
	}
	return s.repo.EnsureAccount(ctx, userID)
}

func (s *ledgerService) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	acc, err := s.GetAccount(ctx, userID)
	if err != nil {
		return 0, err
	}
	return acc.Balance, nil
}

func (s *ledgerService) ListRecent(ctx context.Context, userID uuid.UUID, limit, offset int) ([]entity.LedgerEntry, int64, error) {
	if limit <= 0 {
		limit = 10
	}
	entries, err := s.repo.ListRecent(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.CountEntries(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (s *ledgerService) SumEarnedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error) {
	return s.repo.SumEarnedSince(ctx, userID, since)
}

func (s *ledgerService) CountCourses(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.CountBySource(ctx, userID, entity.SourceCourseComplete)
}

const reconcileBatch = 500

func (s *ledgerService) Reconcile(ctx context.Context) ([]Mismatch, error) {
	var (
		mismatches []Mismatch
		after      = uuid.Nil
	)
	for {
		rows, err := s.repo.BalanceChecks(ctx, after, reconcileBatch)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			if row.Ledger != row.Balance {
				mismatches = append(mismatches, Mismatch{UserID: row.UserID, Balance: row.Balance, Ledger: row.Ledger})
			}
		}
		if len(rows) < reconcileBatch {
			return mismatches, nil
		}
		after = rows[len(rows)-1].UserID
	}
}

func cleanDescription(s string) string {
	s = strings.Join(strings.Fields(html.UnescapeString(sanitizer.Sanitize(s))), " ")
	if r := []rune(s); len(r) > maxDescriptionLength {
		s = string(r[:maxDescriptionLength])
	}
	return s
}
