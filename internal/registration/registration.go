package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/findingjimoh/android-sms-gateway/internal/client"
	"github.com/findingjimoh/android-sms-gateway/internal/events"
	"github.com/findingjimoh/android-sms-gateway/internal/model"
)

const moduleName = "registration"

// ErrNotRegistered is returned by operations that require a stored device
// identity when none exists. It is never retried.
var ErrNotRegistered = errors.New("device is not registered on the server")

// State is the registration lifecycle position. Registering is transient;
// the machine re-enters it from Registered when the server rejects the
// stored access token.
type State string

const (
	StateUnregistered State = "Unregistered"
	StateRegistering  State = "Registering"
	StateRegistered   State = "Registered"
)

// Store persists the device identity and push token. Save replaces the
// whole record; there is no partial merge.
type Store interface {
	Load(ctx context.Context) (*model.RegistrationInfo, error)
	Save(ctx context.Context, info model.RegistrationInfo) error
	LoadPushToken(ctx context.Context) (string, error)
	SavePushToken(ctx context.Context, token string) error
}

// API is the slice of the gateway client the state machine uses.
type API interface {
	RegisterDevice(ctx context.Context, deviceName, pushToken string, mode model.RegistrationMode) (model.RegistrationInfo, error)
	PatchDevice(ctx context.Context, token, deviceID, pushToken string) error
	ChangePassword(ctx context.Context, token, current, newPassword string) error
	Hostname() string
}

// Service owns the device identity lifecycle. Calls are serialized; the
// newest successful registration wins wholesale.
type Service struct {
	store      Store
	api        API
	events     *events.Bus
	deviceName string
	log        *slog.Logger

	opMu sync.Mutex

	stateMu sync.Mutex
	state   State
}

func NewService(store Store, api API, bus *events.Bus, deviceName string, log *slog.Logger) *Service {
	return &Service{
		store:      store,
		api:        api,
		events:     bus,
		deviceName: deviceName,
		log:        log,
		state:      StateUnregistered,
	}
}

func (s *Service) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

func (s *Service) setState(st State) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
}

// Info returns the stored device identity, or ErrNotRegistered.
func (s *Service) Info(ctx context.Context) (model.RegistrationInfo, error) {
	info, err := s.store.Load(ctx)
	if err != nil {
		return model.RegistrationInfo{}, err
	}
	if info == nil {
		return model.RegistrationInfo{}, ErrNotRegistered
	}
	return *info, nil
}

// EnsureRegistered makes the device registered, preferring the cheap path:
// with a stored identity it only refreshes the push token. A 401 on that
// refresh invalidates the stored token and triggers a fresh registration
// with the given mode. Exactly one event is emitted per call.
func (s *Service) EnsureRegistered(ctx context.Context, pushToken string, mode model.RegistrationMode) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	info, err := s.store.Load(ctx)
	if err != nil {
		err = fmt.Errorf("failed to load registration info: %w", err)
		s.emitFailure(err)
		return err
	}

	if info != nil {
		s.setState(StateRegistered)

		err := s.api.PatchDevice(ctx, info.AccessToken, info.DeviceID, pushToken)
		if err == nil {
			if err := s.store.SavePushToken(ctx, pushToken); err != nil {
				s.log.Warn("failed to persist push token", "module", moduleName, "error", err)
			}
			s.events.Emit(events.RegistrationSucceeded{
				Hostname: s.api.Hostname(),
				Login:    info.Login,
				Password: info.Password,
			})
			return nil
		}
		if !client.IsUnauthorized(err) {
			s.emitFailure(err)
			return err
		}
		s.log.Info("access token rejected by server, re-registering", "module", moduleName)
	}

	return s.register(ctx, pushToken, mode)
}

func (s *Service) register(ctx context.Context, pushToken string, mode model.RegistrationMode) error {
	s.setState(StateRegistering)

	info, err := s.api.RegisterDevice(ctx, s.deviceName, pushToken, mode)
	if err != nil {
		s.setState(StateUnregistered)
		s.emitFailure(err)
		return err
	}

	if err := s.store.Save(ctx, info); err != nil {
		s.setState(StateUnregistered)
		err = fmt.Errorf("failed to persist registration info: %w", err)
		s.emitFailure(err)
		return err
	}
	if err := s.store.SavePushToken(ctx, pushToken); err != nil {
		s.log.Warn("failed to persist push token", "module", moduleName, "error", err)
	}

	s.setState(StateRegistered)
	s.log.Info("device registered", "module", moduleName, "login", info.Login)
	s.events.Emit(events.RegistrationSucceeded{
		Hostname: s.api.Hostname(),
		Login:    info.Login,
		Password: info.Password,
	})
	return nil
}

// ChangePassword changes the account password, keeping token and login.
// Requires an existing registration. Exactly one event is emitted per call.
func (s *Service) ChangePassword(ctx context.Context, current, newPassword string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	info, err := s.store.Load(ctx)
	if err != nil {
		s.emitFailure(err)
		return err
	}
	if info == nil {
		s.emitFailure(ErrNotRegistered)
		return ErrNotRegistered
	}

	if err := s.api.ChangePassword(ctx, info.AccessToken, current, newPassword); err != nil {
		s.emitFailure(err)
		return err
	}

	updated := *info
	updated.Password = newPassword
	if err := s.store.Save(ctx, updated); err != nil {
		err = fmt.Errorf("failed to persist password change: %w", err)
		s.emitFailure(err)
		return err
	}

	s.events.Emit(events.RegistrationSucceeded{
		Hostname: s.api.Hostname(),
		Login:    updated.Login,
		Password: updated.Password,
	})
	return nil
}

func (s *Service) emitFailure(err error) {
	s.events.Emit(events.RegistrationFailed{
		Hostname: s.api.Hostname(),
		Message:  err.Error(),
	})
}
