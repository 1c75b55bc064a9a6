package flow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/remootio/internal/config"
	"github.com/muurk/remootio/internal/deviceconfig"
	"github.com/muurk/remootio/internal/remootio"
	"github.com/muurk/remootio/internal/remootio/remootiotest"
)

type stubValidator struct {
	rec *deviceconfig.DeviceRecord
	err error
}

func (v stubValidator) Validate(ctx context.Context, params deviceconfig.ConnectionParams) (*deviceconfig.DeviceRecord, error) {
	return v.rec, v.err
}

type recorder struct {
	mu       sync.Mutex
	outcomes []string
	observed int
}

func (r *recorder) ObserveFlowResult(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *recorder) ObserveValidation(d time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observed++
}

func openStore(t *testing.T) *config.FileStore {
	t.Helper()
	s, err := config.Open(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("config.Open() error = %v", err)
	}
	return s
}

func record(serial, host string) *deviceconfig.DeviceRecord {
	return &deviceconfig.DeviceRecord{
		Host:         host,
		APISecretKey: remootiotest.SecretKey,
		APIAuthKey:   remootiotest.AuthKey,
		DeviceClass:  deviceconfig.DeviceClassGarage,
		SerialNumber: serial,
	}
}

func someInput() *UserInput {
	return &UserInput{
		Host:         "192.168.1.50",
		APISecretKey: remootiotest.SecretKey,
		APIAuthKey:   remootiotest.AuthKey,
		DeviceClass:  "garage",
	}
}

func TestStepUser_ShowsForm(t *testing.T) {
	f := New(stubValidator{}, openStore(t))
	r := f.StepUser(context.Background(), nil)

	if r.Type != ResultForm || r.StepID != StepUser {
		t.Fatalf("StepUser(nil) = %+v, want user form", r)
	}
	if len(r.Errors) != 0 {
		t.Errorf("Errors = %v, want empty", r.Errors)
	}
	if len(r.Schema) != 4 {
		t.Fatalf("len(Schema) = %d, want 4", len(r.Schema))
	}
	dc := r.Schema[3]
	if dc.Name != deviceconfig.FieldDeviceClass || dc.Default != "garage" {
		t.Errorf("device class field = %+v", dc)
	}
}

func TestStepUser_ErrorMapping(t *testing.T) {
	host := "192.168.1.50"
	tests := []struct {
		name       string
		err        error
		wantType   ResultType
		wantField  string
		wantCode   string
		wantReason string
	}{
		{
			name:      "invalid host",
			err:       deviceconfig.NewFieldError(deviceconfig.FieldHost, "bad"),
			wantType:  ResultForm,
			wantField: deviceconfig.FieldHost,
			wantCode:  ErrHostInvalid,
		},
		{
			name:      "invalid secret key",
			err:       deviceconfig.NewFieldError(deviceconfig.FieldAPISecretKey, "bad"),
			wantType:  ResultForm,
			wantField: deviceconfig.FieldAPISecretKey,
			wantCode:  ErrSecretKeyBad,
		},
		{
			name:      "invalid auth key",
			err:       deviceconfig.NewFieldError(deviceconfig.FieldAPIAuthKey, "bad"),
			wantType:  ResultForm,
			wantField: deviceconfig.FieldAPIAuthKey,
			wantCode:  ErrAuthKeyBad,
		},
		{
			name:      "not ready",
			err:       deviceconfig.NewNotReadyError(host, errors.New("refused")),
			wantType:  ResultForm,
			wantField: FieldBase,
			wantCode:  ErrCannotConnect,
		},
		{
			name:      "connect timeout",
			err:       deviceconfig.NewConnectTimeoutError(host, context.DeadlineExceeded),
			wantType:  ResultForm,
			wantField: FieldBase,
			wantCode:  ErrCannotConnect,
		},
		{
			name:      "cannot connect",
			err:       deviceconfig.NewCannotConnectError(host, errors.New("eof")),
			wantType:  ResultForm,
			wantField: FieldBase,
			wantCode:  ErrCannotConnect,
		},
		{
			name:      "invalid auth",
			err:       deviceconfig.NewAuthError(host, remootio.ErrAuthentication),
			wantType:  ResultForm,
			wantField: FieldBase,
			wantCode:  ErrInvalidAuth,
		},
		{
			name:       "no sensor",
			err:        deviceconfig.NewUnsupportedDeviceError(host),
			wantType:   ResultAbort,
			wantReason: AbortUnsupported,
		},
		{
			name:       "old api",
			err:        deviceconfig.NewUnsupportedAPIVersionError(host, 2, 3),
			wantType:   ResultAbort,
			wantReason: AbortAPIVersion,
		},
		{
			name:      "unexpected",
			err:       errors.New("boom"),
			wantType:  ResultForm,
			wantField: FieldBase,
			wantCode:  ErrUnknown,
		},
		{
			name:      "wrapped unexpected device error",
			err:       fmt.Errorf("outer: %w", &deviceconfig.DeviceError{Type: deviceconfig.ErrTypeUnknown, Message: "odd"}),
			wantType:  ResultForm,
			wantField: FieldBase,
			wantCode:  ErrUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := openStore(t)
			rec := &recorder{}
			f := New(stubValidator{err: tt.err}, store, WithLogger(zap.NewNop()), WithRecorder(rec))

			r := f.StepUser(context.Background(), someInput())

			if r.Type != tt.wantType {
				t.Fatalf("Type = %v, want %v (result %+v)", r.Type, tt.wantType, r)
			}
			if tt.wantType == ResultForm {
				if len(r.Errors) != 1 || r.Errors[tt.wantField] != tt.wantCode {
					t.Errorf("Errors = %v, want {%s: %s}", r.Errors, tt.wantField, tt.wantCode)
				}
				if len(r.Schema) == 0 {
					t.Error("form re-shown without schema")
				}
			} else if r.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", r.Reason, tt.wantReason)
			}

			if len(store.Entries()) != 0 {
				t.Error("entry stored on failure")
			}
			want := tt.wantCode
			if tt.wantType == ResultAbort {
				want = tt.wantReason
			}
			if len(rec.outcomes) != 1 || rec.outcomes[0] != want {
				t.Errorf("recorded outcomes = %v, want [%s]", rec.outcomes, want)
			}
			if rec.observed != 1 {
				t.Errorf("validation observed %d times, want 1", rec.observed)
			}
		})
	}
}

func TestStepUser_CreatesEntry(t *testing.T) {
	store := openStore(t)
	f := New(stubValidator{rec: record("RM1", "192.168.1.50")}, store)

	r := f.StepUser(context.Background(), someInput())

	if r.Type != ResultCreateEntry {
		t.Fatalf("Type = %v, want create_entry (result %+v)", r.Type, r)
	}
	if r.Title != "Remootio Device (Host: 192.168.1.50, S/N: RM1)" {
		t.Errorf("Title = %q", r.Title)
	}
	if r.Data == nil || r.Data.SerialNumber != "RM1" {
		t.Errorf("Data = %+v", r.Data)
	}
	if !store.HasEntry("RM1") {
		t.Error("entry not stored")
	}
}

func TestStepUser_AlreadyConfiguredUpdatesEntry(t *testing.T) {
	store := openStore(t)
	if _, err := store.AddEntry(record("RM1", "192.168.1.50")); err != nil {
		t.Fatal(err)
	}

	moved := record("RM1", "192.168.1.77")
	moved.DeviceClass = deviceconfig.DeviceClassGate
	f := New(stubValidator{rec: moved}, store)

	r := f.StepUser(context.Background(), someInput())

	if r.Type != ResultAbort || r.Reason != AbortAlreadyExists {
		t.Fatalf("result = %+v, want abort already_configured", r)
	}
	e, _ := store.GetEntry("RM1")
	if e.Host != "192.168.1.77" || e.DeviceClass != "gate" {
		t.Errorf("entry not updated: %+v", e)
	}
	if len(store.Entries()) != 1 {
		t.Errorf("len(Entries()) = %d, want 1", len(store.Entries()))
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		r    *Result
		want string
	}{
		{&Result{Type: ResultCreateEntry}, OutcomeCreated},
		{&Result{Type: ResultAbort, Reason: AbortAlreadyExists}, AbortAlreadyExists},
		{showForm(map[string]string{FieldBase: ErrInvalidAuth}), ErrInvalidAuth},
		{showForm(map[string]string{deviceconfig.FieldAPIAuthKey: ErrAuthKeyBad}), ErrAuthKeyBad},
		{showForm(nil), "form"},
	}
	for _, tt := range tests {
		if got := Outcome(tt.r); got != tt.want {
			t.Errorf("Outcome(%+v) = %q, want %q", tt.r, got, tt.want)
		}
	}
}

// End to end against a fake device.
func TestStepUser_WithDevice(t *testing.T) {
	dev := remootiotest.NewDevice(remootiotest.DefaultConfig())
	defer dev.Close()

	b := deviceconfig.NewBootstrapper(zap.NewNop())
	b.ConnectTimeout = 3 * time.Second
	b.PollInterval = 20 * time.Millisecond

	store := openStore(t)
	f := New(b, store)

	input := &UserInput{
		Host:         dev.Host(),
		APISecretKey: strings.ToLower(remootiotest.SecretKey),
		APIAuthKey:   remootiotest.AuthKey,
		DeviceClass:  "gate",
	}

	r := f.StepUser(context.Background(), input)
	if r.Type != ResultCreateEntry {
		t.Fatalf("first submit = %+v, want create_entry", r)
	}
	want := fmt.Sprintf("Remootio Device (Host: %s, S/N: %s)", dev.Host(), remootiotest.SerialNumber)
	if r.Title != want {
		t.Errorf("Title = %q, want %q", r.Title, want)
	}
	if r.Data.APISecretKey != remootiotest.SecretKey {
		t.Errorf("stored secret key not normalized: %q", r.Data.APISecretKey)
	}

	r = f.StepUser(context.Background(), input)
	if r.Type != ResultAbort || r.Reason != AbortAlreadyExists {
		t.Fatalf("second submit = %+v, want abort already_configured", r)
	}

	input.APIAuthKey = remootiotest.SecretKey
	r = f.StepUser(context.Background(), input)
	if r.Type != ResultForm || r.Errors[FieldBase] != ErrInvalidAuth {
		t.Fatalf("wrong keys = %+v, want invalid_auth", r)
	}
}

func TestMessage(t *testing.T) {
	for _, code := range []string{
		ErrCannotConnect, ErrHostInvalid, ErrSecretKeyBad, ErrAuthKeyBad,
		ErrDeviceClassBad, ErrInvalidAuth, ErrUnknown,
		AbortUnsupported, AbortAPIVersion, AbortAlreadyExists,
	} {
		if _, ok := messages[code]; !ok {
			t.Errorf("no message for %q", code)
		}
	}
	if got := Message("bogus"); got != "Unexpected error (bogus)." {
		t.Errorf("Message(bogus) = %q", got)
	}
}
