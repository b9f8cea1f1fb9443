package registration

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Query parameter names.
const (
	ParamEndpoint = "ep"
	ParamLifetime = "lt"
	ParamBinding  = "b"
	ParamSMS      = "sms"
	ParamVersion  = "lwm2m"
)

// Validation limits.
const (
	maxEndpointLength = 255
	maxQueryParams    = 32
)

// smsPattern matches an MSISDN: optional '+' then 1 to 15 digits.
var smsPattern = regexp.MustCompile(`^\+?[0-9]{1,15}$`)

var (
	validBindings map[Binding]struct{}
	validVersions = map[string]struct{}{
		"1.0": {},
		"1.1": {},
		"1.2": {},
	}
)

func init() {
	validBindings = make(map[Binding]struct{}, len(AllBindings()))
	for _, b := range AllBindings() {
		validBindings[b] = struct{}{}
	}
}

// ParseQuery splits raw Uri-Query values ("name=value") into a map.
// A parameter given more than once is rejected.
func ParseQuery(queries []string) (map[string]string, error) {
	if len(queries) > maxQueryParams {
		return nil, fmt.Errorf("%w: more than %d parameters", ErrInvalidQuery, maxQueryParams)
	}
	params := make(map[string]string, len(queries))
	for _, q := range queries {
		name, value, _ := strings.Cut(q, "=")
		if name == "" {
			return nil, fmt.Errorf("%w: %q has no name", ErrInvalidQuery, q)
		}
		if _, dup := params[name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateParameter, name)
		}
		params[name] = value
	}
	return params, nil
}

// ValidateRegister checks a Register request and returns its normalised
// parameters. defaultLifetime is used when lt is absent.
func ValidateRegister(queries []string, payload []byte, defaultLifetime uint32) (RegisterParams, error) {
	params, err := ParseQuery(queries)
	if err != nil {
		return RegisterParams{}, err
	}

	ep, ok := params[ParamEndpoint]
	if !ok {
		return RegisterParams{}, fmt.Errorf("%w: missing ep", ErrInvalidEndpoint)
	}
	if err := ValidateEndpoint(ep); err != nil {
		return RegisterParams{}, err
	}

	p := RegisterParams{
		Endpoint: ep,
		Lifetime: defaultLifetime,
		Binding:  BindingUDP,
		Version:  DefaultVersion,
	}

	if v, ok := params[ParamLifetime]; ok {
		if p.Lifetime, err = ParseLifetime(v); err != nil {
			return RegisterParams{}, err
		}
	}
	if v, ok := params[ParamBinding]; ok {
		if p.Binding, err = ParseBinding(v); err != nil {
			return RegisterParams{}, err
		}
	}
	if v, ok := params[ParamSMS]; ok {
		if err := ValidateSMSNumber(v); err != nil {
			return RegisterParams{}, err
		}
		p.SMSNumber = v
	}
	if v, ok := params[ParamVersion]; ok {
		if err := ValidateVersion(v); err != nil {
			return RegisterParams{}, err
		}
		p.Version = v
	}
	if p.Lifetime == 0 {
		return RegisterParams{}, fmt.Errorf("%w: must be positive", ErrInvalidLifetime)
	}

	root, links, err := ParseObjectLinks(payload)
	if err != nil {
		return RegisterParams{}, err
	}
	if len(links) == 0 && (len(strings.TrimSpace(string(payload))) > 0 || p.Version == DefaultVersion) {
		return RegisterParams{}, fmt.Errorf("%w: no object links", ErrInvalidPayload)
	}
	p.RootPath = root
	p.Objects = links

	return p, nil
}

// ValidateUpdate checks the optional parameters of an Update request.
// The location itself is resolved by the Registry, not here.
func ValidateUpdate(queries []string, payload []byte) (UpdateParams, error) {
	params, err := ParseQuery(queries)
	if err != nil {
		return UpdateParams{}, err
	}

	var p UpdateParams
	if v, ok := params[ParamLifetime]; ok {
		lt, err := ParseLifetime(v)
		if err != nil {
			return UpdateParams{}, err
		}
		p.Lifetime = &lt
	}
	if v, ok := params[ParamBinding]; ok {
		b, err := ParseBinding(v)
		if err != nil {
			return UpdateParams{}, err
		}
		p.Binding = &b
	}
	if v, ok := params[ParamSMS]; ok {
		if err := ValidateSMSNumber(v); err != nil {
			return UpdateParams{}, err
		}
		p.SMSNumber = &v
	}

	if len(strings.TrimSpace(string(payload))) == 0 {
		return p, nil
	}
	root, links, err := ParseObjectLinks(payload)
	if err != nil {
		return UpdateParams{}, err
	}
	if len(links) == 0 {
		return UpdateParams{}, fmt.Errorf("%w: no object links", ErrInvalidPayload)
	}
	p.RootPath = &root
	p.Objects = links

	return p, nil
}

// ValidateEndpoint checks an endpoint client name: non-empty, at most 255
// bytes, valid UTF-8 and free of control characters.
func ValidateEndpoint(ep string) error {
	if ep == "" {
		return fmt.Errorf("%w: empty", ErrInvalidEndpoint)
	}
	if len(ep) > maxEndpointLength {
		return fmt.Errorf("%w: exceeds %d bytes", ErrInvalidEndpoint, maxEndpointLength)
	}
	if !utf8.ValidString(ep) {
		return fmt.Errorf("%w: not valid UTF-8", ErrInvalidEndpoint)
	}
	for _, r := range ep {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: contains control characters", ErrInvalidEndpoint)
		}
	}
	return nil
}

// ParseLifetime parses the lt parameter: a positive integer number of
// seconds no larger than 2^32-1.
func ParseLifetime(s string) (uint32, error) {
	lt, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidLifetime, s)
	}
	if lt == 0 {
		return 0, fmt.Errorf("%w: must be positive", ErrInvalidLifetime)
	}
	if lt > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %d exceeds %d", ErrInvalidLifetime, lt, uint32(math.MaxUint32))
	}
	return uint32(lt), nil
}

// ParseBinding parses the b parameter.
func ParseBinding(s string) (Binding, error) {
	b := Binding(s)
	if _, ok := validBindings[b]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidBinding, s)
	}
	return b, nil
}

// ValidateSMSNumber checks the sms parameter.
func ValidateSMSNumber(s string) error {
	if !smsPattern.MatchString(s) {
		return fmt.Errorf("%w: %q", ErrInvalidSMSNumber, s)
	}
	return nil
}

// ValidateVersion checks the lwm2m parameter against the supported versions.
func ValidateVersion(s string) error {
	if _, ok := validVersions[s]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}
	return nil
}

// ValidateLocation checks that a location handle is well formed.
// Whether it is registered is decided by the Registry.
func ValidateLocation(handle string) error {
	if handle == "" || strings.ContainsRune(handle, '/') {
		return fmt.Errorf("%w: %q", ErrNotFound, handle)
	}
	return nil
}
