package registration

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateRegister(t *testing.T) {
	const links = "</1/0>,</3/0>"

	tests := []struct {
		name    string
		query   []string
		payload string
		wantErr error
		check   func(t *testing.T, p RegisterParams)
	}{
		{
			name:    "minimal uses defaults",
			query:   []string{"ep=node-1"},
			payload: links,
			check: func(t *testing.T, p RegisterParams) {
				if p.Endpoint != "node-1" || p.Lifetime != 86400 || p.Binding != BindingUDP || p.Version != "1.0" {
					t.Errorf("params = %+v", p)
				}
				if p.RootPath != "/" || len(p.Objects) != 2 {
					t.Errorf("root=%q objects=%v", p.RootPath, p.Objects)
				}
			},
		},
		{
			name:    "all parameters",
			query:   []string{"ep=node-1", "lt=300", "b=UQ", "sms=+441234567", "lwm2m=1.1"},
			payload: links,
			check: func(t *testing.T, p RegisterParams) {
				if p.Lifetime != 300 || p.Binding != BindingUDPQueue || p.SMSNumber != "+441234567" || p.Version != "1.1" {
					t.Errorf("params = %+v", p)
				}
			},
		},
		{
			name:    "unknown parameters ignored",
			query:   []string{"ep=node-1", "foo=bar", "Q"},
			payload: links,
		},
		{
			name:    "max lifetime",
			query:   []string{"ep=node-1", "lt=4294967295"},
			payload: links,
			check: func(t *testing.T, p RegisterParams) {
				if p.Lifetime != 4294967295 {
					t.Errorf("Lifetime = %d", p.Lifetime)
				}
			},
		},
		{
			name:  "empty payload tolerated for 1.1",
			query: []string{"ep=node-1", "lwm2m=1.1"},
			check: func(t *testing.T, p RegisterParams) {
				if len(p.Objects) != 0 {
					t.Errorf("Objects = %v, want none", p.Objects)
				}
			},
		},
		{
			name:    "endpoint at max length",
			query:   []string{"ep=" + strings.Repeat("a", maxEndpointLength)},
			payload: links,
		},
		{name: "missing ep", query: []string{"lt=300"}, payload: links, wantErr: ErrInvalidEndpoint},
		{name: "empty ep", query: []string{"ep="}, payload: links, wantErr: ErrInvalidEndpoint},
		{name: "ep too long", query: []string{"ep=" + strings.Repeat("a", maxEndpointLength+1)}, payload: links, wantErr: ErrInvalidEndpoint},
		{name: "ep control character", query: []string{"ep=a\x01b"}, payload: links, wantErr: ErrInvalidEndpoint},
		{name: "ep invalid utf8", query: []string{"ep=\xff\xfe"}, payload: links, wantErr: ErrInvalidEndpoint},
		{name: "lifetime zero", query: []string{"ep=n", "lt=0"}, payload: links, wantErr: ErrInvalidLifetime},
		{name: "lifetime negative", query: []string{"ep=n", "lt=-5"}, payload: links, wantErr: ErrInvalidLifetime},
		{name: "lifetime not a number", query: []string{"ep=n", "lt=soon"}, payload: links, wantErr: ErrInvalidLifetime},
		{name: "lifetime overflow", query: []string{"ep=n", "lt=4294967296"}, payload: links, wantErr: ErrInvalidLifetime},
		{name: "lifetime empty", query: []string{"ep=n", "lt="}, payload: links, wantErr: ErrInvalidLifetime},
		{name: "unknown binding", query: []string{"ep=n", "b=T"}, payload: links, wantErr: ErrInvalidBinding},
		{name: "lowercase binding", query: []string{"ep=n", "b=uq"}, payload: links, wantErr: ErrInvalidBinding},
		{name: "sms not digits", query: []string{"ep=n", "sms=abc"}, payload: links, wantErr: ErrInvalidSMSNumber},
		{name: "sms too long", query: []string{"ep=n", "sms=1234567890123456"}, payload: links, wantErr: ErrInvalidSMSNumber},
		{name: "unsupported version", query: []string{"ep=n", "lwm2m=2.0"}, payload: links, wantErr: ErrInvalidVersion},
		{name: "duplicate parameter", query: []string{"ep=a", "ep=b"}, payload: links, wantErr: ErrDuplicateParameter},
		{name: "nameless parameter", query: []string{"ep=a", "=x"}, payload: links, wantErr: ErrInvalidQuery},
		{name: "empty payload for 1.0", query: []string{"ep=n"}, wantErr: ErrInvalidPayload},
		{name: "payload without objects", query: []string{"ep=n", "lwm2m=1.1"}, payload: `</>;rt="oma.lwm2m"`, wantErr: ErrInvalidPayload},
		{name: "malformed payload", query: []string{"ep=n"}, payload: "not links", wantErr: ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ValidateRegister(tt.query, []byte(tt.payload), 86400)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ValidateRegister() error = %v, want %v", err, tt.wantErr)
				}
				if !errors.Is(err, ErrBadRequest) {
					t.Errorf("error %v does not match ErrBadRequest", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateRegister() error = %v", err)
			}
			if tt.check != nil {
				tt.check(t, p)
			}
		})
	}
}

func TestValidateUpdate(t *testing.T) {
	tests := []struct {
		name    string
		query   []string
		payload string
		wantErr error
		check   func(t *testing.T, p UpdateParams)
	}{
		{
			name: "empty update keeps everything",
			check: func(t *testing.T, p UpdateParams) {
				if p.Lifetime != nil || p.Binding != nil || p.SMSNumber != nil || p.RootPath != nil || p.Objects != nil {
					t.Errorf("params = %+v, want all nil", p)
				}
			},
		},
		{
			name:  "lifetime binding and sms",
			query: []string{"lt=60", "b=UQS", "sms=12345"},
			check: func(t *testing.T, p UpdateParams) {
				if p.Lifetime == nil || *p.Lifetime != 60 {
					t.Errorf("Lifetime = %v", p.Lifetime)
				}
				if p.Binding == nil || *p.Binding != BindingUDPQueueSMS {
					t.Errorf("Binding = %v", p.Binding)
				}
				if p.SMSNumber == nil || *p.SMSNumber != "12345" {
					t.Errorf("SMSNumber = %v", p.SMSNumber)
				}
			},
		},
		{
			name:    "payload replaces objects",
			payload: "</5/0>",
			check: func(t *testing.T, p UpdateParams) {
				if len(p.Objects) != 1 || p.Objects[0].ObjectID != 5 {
					t.Errorf("Objects = %v", p.Objects)
				}
				if p.RootPath == nil || *p.RootPath != "/" {
					t.Errorf("RootPath = %v", p.RootPath)
				}
			},
		},
		{name: "bad lifetime", query: []string{"lt=0"}, wantErr: ErrInvalidLifetime},
		{name: "bad binding", query: []string{"b=X"}, wantErr: ErrInvalidBinding},
		{name: "bad sms", query: []string{"sms=+"}, wantErr: ErrInvalidSMSNumber},
		{name: "duplicate lt", query: []string{"lt=1", "lt=2"}, wantErr: ErrDuplicateParameter},
		{name: "bad payload", payload: "</x>", wantErr: ErrInvalidPayload},
		{name: "payload without objects", payload: `</>;rt="oma.lwm2m"`, wantErr: ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ValidateUpdate(tt.query, []byte(tt.payload))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ValidateUpdate() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateUpdate() error = %v", err)
			}
			if tt.check != nil {
				tt.check(t, p)
			}
		})
	}
}

func TestParseBinding_All(t *testing.T) {
	for _, b := range AllBindings() {
		got, err := ParseBinding(string(b))
		if err != nil || got != b {
			t.Errorf("ParseBinding(%q) = %q, %v", b, got, err)
		}
	}
}

func TestBindingModes(t *testing.T) {
	tests := []struct {
		b       Binding
		queued  bool
		usesSMS bool
	}{
		{BindingUDP, false, false},
		{BindingUDPQueue, true, false},
		{BindingSMS, false, true},
		{BindingSMSQueue, true, true},
		{BindingUDPSMS, false, true},
		{BindingUDPQueueSMS, true, true},
	}
	for _, tt := range tests {
		if tt.b.Queued() != tt.queued || tt.b.UsesSMS() != tt.usesSMS {
			t.Errorf("%s: Queued=%v UsesSMS=%v", tt.b, tt.b.Queued(), tt.b.UsesSMS())
		}
	}
}

func TestValidateLocation(t *testing.T) {
	for _, loc := range []string{"", "a/b"} {
		if err := ValidateLocation(loc); !errors.Is(err, ErrNotFound) {
			t.Errorf("ValidateLocation(%q) = %v, want ErrNotFound", loc, err)
		}
	}
	if err := ValidateLocation("5f0c1e7a"); err != nil {
		t.Errorf("ValidateLocation() = %v", err)
	}
}
