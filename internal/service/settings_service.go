package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Eursukkul/studio-ledger/internal/models"
	"github.com/Eursukkul/studio-ledger/internal/repository"
	"github.com/sirupsen/logrus"
)

const (
	settingCancellationCutoffHours = "cancellation_cutoff_hours"
	settingDefaultClassCapacity    = "default_class_capacity"
	settingRefundWindowDays        = "refund_window_days"
	settingRefundAllowPartial      = "refund_allow_partial"
)

// StudioSettings are the admin-editable policy knobs.
type StudioSettings struct {
	CancellationCutoffHours int  `json:"cancellationCutoffHours"`
	DefaultClassCapacity    int  `json:"defaultClassCapacity"`
	RefundWindowDays        int  `json:"refundWindowDays"`
	RefundAllowPartial      bool `json:"refundAllowPartial"`
}

func (s StudioSettings) CancellationCutoff() time.Duration {
	return time.Duration(s.CancellationCutoffHours) * time.Hour
}

func (s StudioSettings) RefundPolicy() RefundPolicy {
	return RefundPolicy{WindowDays: s.RefundWindowDays, AllowPartial: s.RefundAllowPartial}
}

func (s StudioSettings) validate() error {
	switch {
	case s.CancellationCutoffHours < 0 || s.CancellationCutoffHours > 168:
		return newError(KindValidation, ErrInvalidSettings.Code, "cancellation cutoff must be between 0 and 168 hours")
	case s.DefaultClassCapacity < 1:
		return newError(KindValidation, ErrInvalidSettings.Code, "default class capacity must be positive")
	case s.RefundWindowDays < 0:
		return newError(KindValidation, ErrInvalidSettings.Code, "refund window cannot be negative")
	}
	return nil
}

type SettingsService interface {
	Get(ctx context.Context) (StudioSettings, error)
	Update(ctx context.Context, in StudioSettings) (StudioSettings, error)
}

type settingsService struct {
	repo     repository.SettingsRepository
	defaults StudioSettings
}

func NewSettingsService(repo repository.SettingsRepository, defaults StudioSettings) SettingsService {
	return &settingsService{repo: repo, defaults: defaults}
}

// Get overlays persisted rows on the configured defaults. Unparseable rows
// are ignored so one bad value cannot take booking down.
func (s *settingsService) Get(ctx context.Context) (StudioSettings, error) {
	out := s.defaults
	rows, err := s.repo.All(ctx)
	if err != nil {
		return out, fmt.Errorf("load settings: %w", err)
	}
	for _, row := range rows {
		var perr error
		switch row.Key {
		case settingCancellationCutoffHours:
			out.CancellationCutoffHours, perr = strconv.Atoi(row.Value)
		case settingDefaultClassCapacity:
			out.DefaultClassCapacity, perr = strconv.Atoi(row.Value)
		case settingRefundWindowDays:
			out.RefundWindowDays, perr = strconv.Atoi(row.Value)
		case settingRefundAllowPartial:
			out.RefundAllowPartial, perr = strconv.ParseBool(row.Value)
		}
		if perr != nil {
			logrus.WithField("key", row.Key).Warnf("ignoring malformed setting %q", row.Value)
			out = s.restoreDefault(out, row.Key)
		}
	}
	return out, nil
}

func (s *settingsService) restoreDefault(out StudioSettings, key string) StudioSettings {
	switch key {
	case settingCancellationCutoffHours:
		out.CancellationCutoffHours = s.defaults.CancellationCutoffHours
	case settingDefaultClassCapacity:
		out.DefaultClassCapacity = s.defaults.DefaultClassCapacity
	case settingRefundWindowDays:
		out.RefundWindowDays = s.defaults.RefundWindowDays
	case settingRefundAllowPartial:
		out.RefundAllowPartial = s.defaults.RefundAllowPartial
	}
	return out
}

func (s *settingsService) Update(ctx context.Context, in StudioSettings) (StudioSettings, error) {
	if err := in.validate(); err != nil {
		return StudioSettings{}, err
	}
	now := time.Now()
	rows := []models.Setting{
		{Key: settingCancellationCutoffHours, Value: strconv.Itoa(in.CancellationCutoffHours), UpdatedAt: now},
		{Key: settingDefaultClassCapacity, Value: strconv.Itoa(in.DefaultClassCapacity), UpdatedAt: now},
		{Key: settingRefundWindowDays, Value: strconv.Itoa(in.RefundWindowDays), UpdatedAt: now},
		{Key: settingRefundAllowPartial, Value: strconv.FormatBool(in.RefundAllowPartial), UpdatedAt: now},
	}
	if err := s.repo.Upsert(ctx, rows); err != nil {
		return StudioSettings{}, fmt.Errorf("save settings: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"cancellation_cutoff_hours": in.CancellationCutoffHours,
		"default_class_capacity":    in.DefaultClassCapacity,
		"refund_window_days":        in.RefundWindowDays,
		"refund_allow_partial":      in.RefundAllowPartial,
	}).Info("studio settings updated")
	return in, nil
}
