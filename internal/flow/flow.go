package flow

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/remootio/internal/config"
	"github.com/muurk/remootio/internal/deviceconfig"
)

// StepUser is the id of the single onboarding step.
const StepUser = "user"

// ResultType tells the caller what to do with a Result.
type ResultType string

const (
	ResultForm        ResultType = "form"
	ResultCreateEntry ResultType = "create_entry"
	ResultAbort       ResultType = "abort"
)

// FieldBase keys errors that do not belong to a single field.
const FieldBase = "base"

// Error codes shown on the form.
const (
	ErrCannotConnect   = "cannot_connect"
	ErrHostInvalid     = "host_invalid"
	ErrSecretKeyBad    = "secret__api_secret_key_invalid"
	ErrAuthKeyBad      = "secret__api_auth_key_invalid"
	ErrDeviceClassBad  = "device_class_invalid"
	ErrInvalidAuth     = "invalid_auth"
	ErrUnknown         = "unknown"
	OutcomeCreated     = "created"
	AbortUnsupported   = "unsupported_device"
	AbortAPIVersion    = "unsupported_api_version"
	AbortAlreadyExists = "already_configured"
)

// UserInput is what the user submitted on the form.
type UserInput struct {
	Host         string `json:"host"`
	APISecretKey string `json:"api_secret_key"`
	APIAuthKey   string `json:"api_auth_key"`
	DeviceClass  string `json:"device_class"`
}

// SchemaField describes one form field.
type SchemaField struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Required bool     `json:"required"`
	Default  string   `json:"default,omitempty"`
	Options  []string `json:"options,omitempty"`
}

// UserSchema returns the fields of the user step.
func UserSchema() []SchemaField {
	classes := make([]string, len(deviceconfig.DeviceClasses))
	for i, dc := range deviceconfig.DeviceClasses {
		classes[i] = string(dc)
	}
	return []SchemaField{
		{Name: deviceconfig.FieldHost, Type: "string", Required: true},
		{Name: deviceconfig.FieldAPISecretKey, Type: "string", Required: true},
		{Name: deviceconfig.FieldAPIAuthKey, Type: "string", Required: true},
		{Name: deviceconfig.FieldDeviceClass, Type: "select", Required: true, Default: string(deviceconfig.DefaultDeviceClass), Options: classes},
	}
}

// Result is the outcome of a flow step.
type Result struct {
	Type   ResultType                 `json:"type"`
	StepID string                     `json:"step_id,omitempty"`
	Schema []SchemaField              `json:"data_schema,omitempty"`
	Errors map[string]string          `json:"errors,omitempty"`
	Reason string                     `json:"reason,omitempty"`
	Title  string                     `json:"title,omitempty"`
	Data   *deviceconfig.DeviceRecord `json:"data,omitempty"`
}

// Validator checks user input against a real device.
// *deviceconfig.Bootstrapper implements it.
type Validator interface {
	Validate(ctx context.Context, params deviceconfig.ConnectionParams) (*deviceconfig.DeviceRecord, error)
}

// EntryStore persists config entries. *config.FileStore implements it.
type EntryStore interface {
	HasEntry(serial string) bool
	AddEntry(rec *deviceconfig.DeviceRecord) (config.Entry, error)
	UpdateEntry(rec *deviceconfig.DeviceRecord) (config.Entry, error)
}

// Recorder receives flow outcomes, e.g. for metrics.
type Recorder interface {
	ObserveFlowResult(outcome string)
	ObserveValidation(d time.Duration, err error)
}

// Option configures a ConfigFlow.
type Option func(*ConfigFlow)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *ConfigFlow) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithRecorder sets the outcome recorder.
func WithRecorder(r Recorder) Option {
	return func(f *ConfigFlow) {
		f.recorder = r
	}
}

// ConfigFlow is the device onboarding flow.
type ConfigFlow struct {
	validator Validator
	store     EntryStore
	logger    *zap.Logger
	recorder  Recorder
}

// New creates a flow that validates with v and stores entries in s.
func New(v Validator, s EntryStore, opts ...Option) *ConfigFlow {
	f := &ConfigFlow{validator: v, store: s, logger: zap.NewNop()}
	for _, o := range opts {
		o(f)
	}
	return f
}

// StepUser handles the user step. A nil input shows the empty form.
func (f *ConfigFlow) StepUser(ctx context.Context, input *UserInput) *Result {
	if input == nil {
		return showForm(nil)
	}

	params := deviceconfig.ConnectionParams{
		Host:         input.Host,
		APISecretKey: input.APISecretKey,
		APIAuthKey:   input.APIAuthKey,
		DeviceClass:  deviceconfig.DeviceClass(input.DeviceClass),
	}

	start := time.Now()
	rec, err := f.validator.Validate(ctx, params)
	if f.recorder != nil {
		f.recorder.ObserveValidation(time.Since(start), err)
	}
	if err != nil {
		return f.finish(f.resultForError(err))
	}

	if f.store.HasEntry(rec.SerialNumber) {
		return f.finish(f.updateAndAbort(rec))
	}

	entry, err := f.store.AddEntry(rec)
	if errors.Is(err, config.ErrEntryExists) {
		return f.finish(f.updateAndAbort(rec))
	}
	if err != nil {
		f.logger.Error("Failed to store config entry",
			zap.String("serial", rec.SerialNumber),
			zap.Error(err),
		)
		return f.finish(showForm(map[string]string{FieldBase: ErrUnknown}))
	}

	f.logger.Info("Config entry created",
		zap.String("serial", rec.SerialNumber),
		zap.String("host", rec.Host),
	)
	return f.finish(&Result{
		Type:   ResultCreateEntry,
		StepID: StepUser,
		Title:  entry.Title,
		Data:   rec,
	})
}

// updateAndAbort refreshes an existing entry with newly validated data,
// since host or keys may have changed, and aborts the flow.
func (f *ConfigFlow) updateAndAbort(rec *deviceconfig.DeviceRecord) *Result {
	if _, err := f.store.UpdateEntry(rec); err != nil {
		f.logger.Warn("Failed to update existing config entry",
			zap.String("serial", rec.SerialNumber),
			zap.Error(err),
		)
	}
	return &Result{Type: ResultAbort, StepID: StepUser, Reason: AbortAlreadyExists}
}

func (f *ConfigFlow) resultForError(err error) *Result {
	devErr, ok := deviceconfig.AsDeviceError(err)
	if !ok {
		f.logger.Error("Unexpected exception", zap.Error(err))
		return showForm(map[string]string{FieldBase: ErrUnknown})
	}

	switch devErr.Type {
	case deviceconfig.ErrTypeValidation:
		switch devErr.Field {
		case deviceconfig.FieldHost:
			return showForm(map[string]string{deviceconfig.FieldHost: ErrHostInvalid})
		case deviceconfig.FieldAPISecretKey:
			return showForm(map[string]string{deviceconfig.FieldAPISecretKey: ErrSecretKeyBad})
		case deviceconfig.FieldAPIAuthKey:
			return showForm(map[string]string{deviceconfig.FieldAPIAuthKey: ErrAuthKeyBad})
		case deviceconfig.FieldDeviceClass:
			return showForm(map[string]string{deviceconfig.FieldDeviceClass: ErrDeviceClassBad})
		}

	case deviceconfig.ErrTypeNotReady, deviceconfig.ErrTypeCannotConnect,
		deviceconfig.ErrTypeNetwork, deviceconfig.ErrTypeTimeout,
		deviceconfig.ErrTypeConnectionRefused, deviceconfig.ErrTypeDNS:
		f.logger.Info("Cannot connect to device", zap.Error(err))
		return showForm(map[string]string{FieldBase: ErrCannotConnect})

	case deviceconfig.ErrTypeAuth:
		return showForm(map[string]string{FieldBase: ErrInvalidAuth})

	case deviceconfig.ErrTypeUnsupportedDevice:
		return &Result{Type: ResultAbort, StepID: StepUser, Reason: AbortUnsupported}

	case deviceconfig.ErrTypeUnsupportedAPIVersion:
		return &Result{Type: ResultAbort, StepID: StepUser, Reason: AbortAPIVersion}
	}

	f.logger.Error("Unexpected exception", zap.Error(err))
	return showForm(map[string]string{FieldBase: ErrUnknown})
}

func (f *ConfigFlow) finish(r *Result) *Result {
	if f.recorder != nil {
		f.recorder.ObserveFlowResult(Outcome(r))
	}
	return r
}

// Outcome summarizes a result as a single label: the abort reason, the
// first error code, "created" or "form".
func Outcome(r *Result) string {
	switch r.Type {
	case ResultCreateEntry:
		return OutcomeCreated
	case ResultAbort:
		return r.Reason
	}
	if code, ok := r.Errors[FieldBase]; ok {
		return code
	}
	for _, field := range []string{deviceconfig.FieldHost, deviceconfig.FieldAPISecretKey, deviceconfig.FieldAPIAuthKey, deviceconfig.FieldDeviceClass} {
		if code, ok := r.Errors[field]; ok {
			return code
		}
	}
	return string(ResultForm)
}

func showForm(errs map[string]string) *Result {
	if errs == nil {
		errs = map[string]string{}
	}
	return &Result{
		Type:   ResultForm,
		StepID: StepUser,
		Schema: UserSchema(),
		Errors: errs,
	}
}
