// Package profile はユーザープロフィールのドメインロジックを提供する。
package profile

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/fastrack/internal/model"
	"github.com/hitoshi/fastrack/internal/repository"
	"github.com/juju/clock"
)

// 入力値の許容範囲
const (
	MinHeightCm        = 50.0
	MaxHeightCm        = 260.0
	MinDefaultFastHour = 1.0
	maxDisplayNameLen  = 100
)

// UpdateInput はプロフィールの部分更新内容。nilのフィールドは変更しない。
type UpdateInput struct {
	DisplayName      *string
	HeightCm         *float64
	BirthDate        *time.Time
	Sex              *string
	TargetWeightKg   *float64
	DefaultFastHours *float64
	Timezone         *string
}

// Service はプロフィール管理のサービス層。
type Service struct {
	profileRepo repository.ProfileRepository
	clock       clock.Clock
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(profileRepo repository.ProfileRepository, clk clock.Clock) *Service {
	return &Service{profileRepo: profileRepo, clock: clk}
}

// Get はプロフィールを返す。未作成の場合はデフォルト値で作成する。
func (s *Service) Get(ctx context.Context, userID string) (*model.Profile, error) {
	p, err := s.profileRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if p != nil {
		return p, nil
	}

	p = model.DefaultProfile(userID)
	now := s.clock.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if err := s.profileRepo.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("プロフィールの作成に失敗しました: %w", err)
	}
	return p, nil
}

// Location はユーザーのタイムゾーンを返す。取得に失敗した場合はUTCを返す。
func (s *Service) Location(ctx context.Context, userID string) *time.Location {
	p, err := s.profileRepo.FindByUserID(ctx, userID)
	if err != nil || p == nil {
		return time.UTC
	}
	return p.Location()
}

// Update はプロフィールを部分更新する。
func (s *Service) Update(ctx context.Context, userID string, in UpdateInput) (*model.Profile, error) {
	if err := validateUpdate(in, s.clock.Now()); err != nil {
		return nil, err
	}

	p, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.DisplayName != nil {
		p.DisplayName = *in.DisplayName
	}
	if in.HeightCm != nil {
		p.HeightCm = in.HeightCm
	}
	if in.BirthDate != nil {
		p.BirthDate = in.BirthDate
	}
	if in.Sex != nil {
		p.Sex = *in.Sex
	}
	if in.TargetWeightKg != nil {
		p.TargetWeightKg = in.TargetWeightKg
	}
	if in.DefaultFastHours != nil {
		p.DefaultFastHours = *in.DefaultFastHours
	}
	if in.Timezone != nil {
		p.Timezone = *in.Timezone
	}
	p.UpdatedAt = s.clock.Now().UTC()

	if err := s.profileRepo.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}
	return p, nil
}

func validateUpdate(in UpdateInput, now time.Time) error {
	errs := model.ValidationErrors{}

	if in.DisplayName != nil && utf8.RuneCountInString(*in.DisplayName) > maxDisplayNameLen {
		errs.Add("display_name", fmt.Sprintf("%d文字以内で入力してください", maxDisplayNameLen))
	}
	if in.HeightCm != nil && (*in.HeightCm < MinHeightCm || *in.HeightCm > MaxHeightCm) {
		errs.Add("height_cm", fmt.Sprintf("%.0f〜%.0fの範囲で入力してください", MinHeightCm, MaxHeightCm))
	}
	if in.BirthDate != nil && in.BirthDate.After(now) {
		errs.Add("birth_date", "未来の日付は指定できません")
	}
	if in.Sex != nil {
		switch *in.Sex {
		case "", "female", "male", "other":
		default:
			errs.Add("sex", "female, male, other のいずれかを指定してください")
		}
	}
	if in.TargetWeightKg != nil && (*in.TargetWeightKg <= 0 || *in.TargetWeightKg >= model.MaxWeightKg) {
		errs.Add("target_weight_kg", fmt.Sprintf("0より大きく%.0f未満で入力してください", model.MaxWeightKg))
	}
	if in.DefaultFastHours != nil && (*in.DefaultFastHours < MinDefaultFastHour || *in.DefaultFastHours > model.MaxFastHours) {
		errs.Add("default_fast_hours", fmt.Sprintf("%.0f〜%.0fの範囲で入力してください", MinDefaultFastHour, model.MaxFastHours))
	}
	if in.Timezone != nil {
		if *in.Timezone == "" {
			errs.Add("timezone", "タイムゾーンを指定してください")
		} else if _, err := time.LoadLocation(*in.Timezone); err != nil {
			errs.Add("timezone", "不明なタイムゾーンです")
		}
	}

	return errs.Err()
}
