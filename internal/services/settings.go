package services

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/example/paygw/internal/ifthenpay"
)

const SettingBackofficeKey = "backofficekey"

var backofficeKeyFormat = regexp.MustCompile(`^\d{4}(?:-\d{4}){3}$`)

// KeyValidator checks a backoffice key remotely.
type KeyValidator func(ctx context.Context, key string) error

// Settings manages plugin-wide settings.
type Settings struct {
	store    SettingsStore
	validate KeyValidator
	log      zerolog.Logger
}

func NewSettings(store SettingsStore, validate KeyValidator, log zerolog.Logger) *Settings {
	return &Settings{store: store, validate: validate, log: log}
}

func (s *Settings) BackofficeKey(ctx context.Context) (string, error) {
	return s.store.GetSetting(ctx, SettingBackofficeKey)
}

// SaveBackofficeKey stores value after a format check. The provider is asked only when
// the value changed, and only a definite "invalid key" answer blocks the save.
func (s *Settings) SaveBackofficeKey(ctx context.Context, value string) error {
	value = strings.TrimSpace(value)

	if value != "" && !backofficeKeyFormat.MatchString(value) {
		verr := &ValidationError{}
		verr.Add(SettingBackofficeKey, "expected format 0000-0000-0000-0000")
		return verr
	}

	current, err := s.store.GetSetting(ctx, SettingBackofficeKey)
	if err != nil {
		return err
	}
	if value == current {
		return nil
	}

	if value != "" && s.validate != nil {
		err := s.validate(ctx, value)
		switch {
		case errors.Is(err, ifthenpay.ErrInvalidBackofficeKey):
			verr := &ValidationError{}
			verr.Add(SettingBackofficeKey, "the provider rejected this backoffice key")
			return verr
		case err != nil:
			s.log.Warn().Err(err).Msg("backoffice key could not be verified, saving anyway")
		}
	}

	return s.store.SetSetting(ctx, SettingBackofficeKey, value)
}

// Seed stores value as the backoffice key when none is saved yet. No remote check.
func (s *Settings) Seed(ctx context.Context, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	current, err := s.store.GetSetting(ctx, SettingBackofficeKey)
	if err != nil || current != "" {
		return err
	}
	return s.store.SetSetting(ctx, SettingBackofficeKey, value)
}
