// Package reminder はリマインダーの登録・編集を提供する。
// 配信はworker/dispatchが行う。
package reminder

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/juju/clock"

	"github.com/hitoshi/fastrack/internal/model"
	"github.com/hitoshi/fastrack/internal/repository"
)

const maxMessageLen = 500

// Sanitizer はユーザー入力のテキストを無害化するインターフェース。
type Sanitizer interface {
	Clean(s string) string
}

// URLValidator はWebhook URLのSSRF検証インターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// Input はリマインダーの作成・部分更新の入力。更新時はnilのフィールドを変更しない。
type Input struct {
	ScheduledFastID *string
	Kind            *model.ReminderKind
	Message         *string
	RemindAt        *time.Time
	Channel         *string
	WebhookURL      *string
	Enabled         *bool
}

// ListInput は一覧取得の条件。
type ListInput struct {
	Kind  model.ReminderKind
	From  *time.Time
	To    *time.Time
	Limit int
}

// Service はリマインダーのサービス層。
type Service struct {
	reminderRepo repository.ReminderRepository
	scheduleRepo repository.ScheduleRepository
	guard        URLValidator
	sanitizer    Sanitizer
	clock        clock.Clock
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	reminderRepo repository.ReminderRepository,
	scheduleRepo repository.ScheduleRepository,
	guard URLValidator,
	sanitizer Sanitizer,
	clk clock.Clock,
) *Service {
	return &Service{
		reminderRepo: reminderRepo,
		scheduleRepo: scheduleRepo,
		guard:        guard,
		sanitizer:    sanitizer,
		clock:        clk,
	}
}

// Create はリマインダーを作成する。
// 予定ファスティングを指定し、remind_atを省略した場合は予定の開始日時を使う。
func (s *Service) Create(ctx context.Context, userID string, in Input) (*model.Reminder, error) {
	now := s.clock.Now().UTC()
	rem := &model.Reminder{
		ID:        uuid.New().String(),
		UserID:    userID,
		Kind:      model.ReminderKindCustom,
		Channel:   model.ReminderChannelLog,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.apply(ctx, rem, in); err != nil {
		return nil, err
	}
	if err := s.validate(rem); err != nil {
		return nil, err
	}

	if err := s.reminderRepo.Create(ctx, rem); err != nil {
		return nil, err
	}
	return rem, nil
}

// Get は指定IDのリマインダーを返す。
func (s *Service) Get(ctx context.Context, userID, id string) (*model.Reminder, error) {
	rem, err := s.reminderRepo.FindByID(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("リマインダーの取得に失敗しました: %w", err)
	}
	if rem == nil {
		return nil, model.NewNotFoundError(model.ErrCodeReminderNotFound, "リマインダー", id)
	}
	return rem, nil
}

// Update はリマインダーを部分更新する。
// 配信日時を変更するか再度有効にした場合は未送信に戻す。
func (s *Service) Update(ctx context.Context, userID, id string, in Input) (*model.Reminder, error) {
	rem, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	prevRemindAt := rem.RemindAt
	prevEnabled := rem.Enabled
	if err := s.apply(ctx, rem, in); err != nil {
		return nil, err
	}
	if err := s.validate(rem); err != nil {
		return nil, err
	}
	if !rem.RemindAt.Equal(prevRemindAt) || (rem.Enabled && !prevEnabled) {
		rem.SentAt = nil
		rem.LastError = ""
	}
	rem.UpdatedAt = s.clock.Now().UTC()

	if err := s.reminderRepo.Update(ctx, rem); err != nil {
		return nil, err
	}
	return rem, nil
}

// Delete はリマインダーを削除する。
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	ok, err := s.reminderRepo.Delete(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return model.NewNotFoundError(model.ErrCodeReminderNotFound, "リマインダー", id)
	}
	return nil
}

// List はリマインダーをremind_at昇順で返す。
func (s *Service) List(ctx context.Context, userID string, in ListInput) ([]*model.Reminder, error) {
	if in.Kind != "" && !in.Kind.Valid() {
		return nil, model.NewFieldError("kind", "fast_start, fast_end, weigh_in, meal_log, custom のいずれかを指定してください")
	}
	if in.From != nil && in.To != nil && in.From.After(*in.To) {
		return nil, model.NewFieldError("from", "開始日は終了日以前を指定してください")
	}

	rems, err := s.reminderRepo.List(ctx, userID, model.RangeFilter{
		Type:  string(in.Kind),
		From:  in.From,
		To:    in.To,
		Limit: model.NormalizeLimit(in.Limit),
	})
	if err != nil {
		return nil, err
	}
	if rems == nil {
		rems = []*model.Reminder{}
	}
	return rems, nil
}

func (s *Service) apply(ctx context.Context, rem *model.Reminder, in Input) error {
	if in.ScheduledFastID != nil {
		if *in.ScheduledFastID == "" {
			rem.ScheduledFastID = nil
		} else {
			sched, err := s.scheduleRepo.FindByID(ctx, rem.UserID, *in.ScheduledFastID)
			if err != nil {
				return fmt.Errorf("予定の取得に失敗しました: %w", err)
			}
			if sched == nil {
				return model.NewNotFoundError(model.ErrCodeScheduleNotFound, "予定", *in.ScheduledFastID)
			}
			id := sched.ID
			rem.ScheduledFastID = &id
			if in.RemindAt == nil && rem.RemindAt.IsZero() {
				rem.RemindAt = sched.StartAt
			}
		}
	}
	if in.Kind != nil {
		rem.Kind = *in.Kind
	}
	if in.Message != nil {
		rem.Message = s.sanitizer.Clean(*in.Message)
	}
	if in.RemindAt != nil {
		rem.RemindAt = in.RemindAt.UTC()
	}
	if in.Channel != nil {
		rem.Channel = *in.Channel
	}
	if in.WebhookURL != nil {
		rem.WebhookURL = *in.WebhookURL
	}
	if in.Enabled != nil {
		rem.Enabled = *in.Enabled
	}
	return nil
}

func (s *Service) validate(rem *model.Reminder) error {
	errs := model.ValidationErrors{}
	if !rem.Kind.Valid() {
		errs.Add("kind", "fast_start, fast_end, weigh_in, meal_log, custom のいずれかを指定してください")
	}
	if utf8.RuneCountInString(rem.Message) > maxMessageLen {
		errs.Add("message", fmt.Sprintf("%d文字以内で入力してください", maxMessageLen))
	}
	if rem.RemindAt.IsZero() {
		errs.Add("remind_at", "通知日時を指定してください")
	}

	switch rem.Channel {
	case model.ReminderChannelLog:
		rem.WebhookURL = ""
	case model.ReminderChannelWebhook:
		if err := s.validateWebhookURL(rem.WebhookURL); err != nil {
			var apiErr *model.APIError
			if errors.As(err, &apiErr) {
				return apiErr
			}
			errs.Add("webhook_url", err.Error())
		}
	default:
		errs.Add("channel", "log または webhook を指定してください")
	}
	return errs.Err()
}

// validateWebhookURL はURLの形式を確認した上でSSRF検証を行う。
// 内部ネットワーク宛てはSSRF_BLOCKEDとして返す。
func (s *Service) validateWebhookURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("webhookチャネルではURLを指定してください")
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("http または https のURLを指定してください")
	}
	if err := s.guard.ValidateURL(rawURL); err != nil {
		return model.NewSSRFBlockedError()
	}
	return nil
}
