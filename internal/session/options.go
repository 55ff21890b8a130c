package session

import (
	"strconv"
	"strings"
	"time"

	"github.com/brendan.keane/sqlhttp/internal/errors"
)

// OptionType is the declared value type of a runtime option.
type OptionType int

const (
	OptionString OptionType = iota
	OptionInt
)

func (t OptionType) String() string {
	if t == OptionInt {
		return "integer"
	}
	return "string"
}

// Option is one allow-listed runtime option.
type Option struct {
	Name  string
	Type  OptionType
	apply func(s *Settings, str string, num int64) error
}

// OptionValue is a stored option as reported by ListOptions.
type OptionValue struct {
	Name  string `json:"curlopt"`
	Value string `json:"value"`
}

var allowList = []Option{
	{Name: "CURLOPT_CAINFO", Type: OptionString, apply: func(s *Settings, v string, _ int64) error {
		s.CAFile = v
		return nil
	}},
	{Name: "CURLOPT_CAINFO_BLOB", Type: OptionString, apply: func(s *Settings, v string, _ int64) error {
		s.CABlob = v
		return nil
	}},
	{Name: "CURLOPT_SSLCERT", Type: OptionString, apply: func(s *Settings, v string, _ int64) error {
		s.CertFile = v
		return nil
	}},
	{Name: "CURLOPT_SSLCERT_BLOB", Type: OptionString, apply: func(s *Settings, v string, _ int64) error {
		s.CertBlob = v
		return nil
	}},
	{Name: "CURLOPT_SSLKEY", Type: OptionString, apply: func(s *Settings, v string, _ int64) error {
		s.KeyFile = v
		return nil
	}},
	{Name: "CURLOPT_SSLKEY_BLOB", Type: OptionString, apply: func(s *Settings, v string, _ int64) error {
		s.KeyBlob = v
		return nil
	}},
	{Name: "CURLOPT_SSL_VERIFYPEER", Type: OptionInt, apply: func(s *Settings, _ string, n int64) error {
		s.VerifyPeer = n != 0
		return nil
	}},
	{Name: "CURLOPT_SSL_VERIFYHOST", Type: OptionInt, apply: func(s *Settings, _ string, n int64) error {
		s.VerifyHost = n != 0
		return nil
	}},
	{Name: "CURLOPT_TIMEOUT", Type: OptionInt, apply: func(s *Settings, _ string, n int64) error {
		return setDuration(&s.Timeout, n, time.Second)
	}},
	{Name: "CURLOPT_TIMEOUT_MS", Type: OptionInt, apply: func(s *Settings, _ string, n int64) error {
		return setDuration(&s.Timeout, n, time.Millisecond)
	}},
	{Name: "CURLOPT_CONNECTTIMEOUT", Type: OptionInt, apply: func(s *Settings, _ string, n int64) error {
		return setDuration(&s.ConnectTimeout, n, time.Second)
	}},
	{Name: "CURLOPT_CONNECTTIMEOUT_MS", Type: OptionInt, apply: func(s *Settings, _ string, n int64) error {
		return setDuration(&s.ConnectTimeout, n, time.Millisecond)
	}},
	{Name: "CURLOPT_USERAGENT", Type: OptionString, apply: func(s *Settings, v string, _ int64) error {
		s.UserAgent = v
		return nil
	}},
	{Name: "CURLOPT_USERPWD", Type: OptionString, apply: func(s *Settings, v string, _ int64) error {
		s.Username, s.Password, _ = cutUserPwd(v)
		s.HasUserPwd = v != ""
		return nil
	}},
	{Name: "CURLOPT_IPRESOLVE", Type: OptionInt, apply: func(s *Settings, _ string, n int64) error {
		if n < 0 || n > 2 {
			return errors.New(errors.ErrorTypeInvalidInput, "value must be 0 (any), 1 (IPv4) or 2 (IPv6)")
		}
		s.IPResolve = int(n)
		return nil
	}},
	{Name: "CURLOPT_PROXY", Type: OptionString, apply: func(s *Settings, v string, _ int64) error {
		s.Proxy = v
		return nil
	}},
	{Name: "CURLOPT_PROXYPORT", Type: OptionInt, apply: func(s *Settings, _ string, n int64) error {
		if n < 0 || n > 65535 {
			return errors.New(errors.ErrorTypeInvalidInput, "port out of range")
		}
		s.ProxyPort = int(n)
		return nil
	}},
	{Name: "CURLOPT_PROXYUSERPWD", Type: OptionString, apply: func(s *Settings, v string, _ int64) error {
		s.ProxyUserPwd = v
		return nil
	}},
	{Name: "CURLOPT_NOPROXY", Type: OptionString, apply: func(s *Settings, v string, _ int64) error {
		s.NoProxy = v
		return nil
	}},
	{Name: "CURLOPT_TCP_KEEPALIVE", Type: OptionInt, apply: func(s *Settings, _ string, n int64) error {
		s.TCPKeepAlive = n != 0
		return nil
	}},
	{Name: "CURLOPT_TCP_KEEPIDLE", Type: OptionInt, apply: func(s *Settings, _ string, n int64) error {
		return setDuration(&s.TCPKeepIdle, n, time.Second)
	}},
	{Name: "CURLOPT_AWS_SIGV4", Type: OptionString, apply: func(s *Settings, v string, _ int64) error {
		if v != "" {
			if _, err := ParseSigV4(v); err != nil {
				return err
			}
		}
		s.SigV4 = v
		return nil
	}},
}

var allowIndex = func() map[string]int {
	idx := make(map[string]int, len(allowList))
	for i, opt := range allowList {
		idx[opt.Name] = i
	}
	return idx
}()

// Lookup finds an allow-listed option by case-insensitive name.
func Lookup(name string) (Option, bool) {
	i, ok := allowIndex[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return Option{}, false
	}
	return allowList[i], true
}

// Options returns the allow-list in its fixed order.
func Options() []Option {
	out := make([]Option, len(allowList))
	copy(out, allowList)
	return out
}

// Apply validates value against the option's type and applies it to s.
func (o Option) Apply(s *Settings, value string) error {
	var num int64
	if o.Type == OptionInt {
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeInvalidInput, "option value must be an integer").
				WithContext("option", o.Name).
				WithContext("value", value)
		}
		num = n
	}
	if err := o.apply(s, value, num); err != nil {
		if sErr, ok := errors.As(err); ok {
			return sErr.WithContext("option", o.Name)
		}
		return errors.Wrap(err, errors.ErrorTypeInvalidInput, "invalid option value").
			WithContext("option", o.Name)
	}
	return nil
}

func setDuration(d *time.Duration, n int64, unit time.Duration) error {
	if n < 0 {
		return errors.New(errors.ErrorTypeInvalidInput, "value must not be negative")
	}
	*d = time.Duration(n) * unit
	return nil
}

func cutUserPwd(v string) (user, pass string, ok bool) {
	return strings.Cut(v, ":")
}

// OptionTable stores runtime option values by canonical name. Values
// persist until Reset.
type OptionTable struct {
	values map[string]string
}

// NewOptionTable returns an empty table.
func NewOptionTable() *OptionTable {
	return &OptionTable{values: make(map[string]string)}
}

// Set stores value under the option's canonical name.
func (t *OptionTable) Set(opt Option, value string) {
	t.values[opt.Name] = value
}

// Get returns the stored value for name.
func (t *OptionTable) Get(name string) (string, bool) {
	opt, ok := Lookup(name)
	if !ok {
		return "", false
	}
	v, ok := t.values[opt.Name]
	return v, ok
}

// Entries returns stored values in allow-list order.
func (t *OptionTable) Entries() []OptionValue {
	out := make([]OptionValue, 0, len(t.values))
	for _, opt := range allowList {
		if v, ok := t.values[opt.Name]; ok {
			out = append(out, OptionValue{Name: opt.Name, Value: v})
		}
	}
	return out
}

// Len returns the number of stored values.
func (t *OptionTable) Len() int {
	return len(t.values)
}

// Reset removes every stored value.
func (t *OptionTable) Reset() {
	clear(t.values)
}

// Replay applies every stored value to s in allow-list order, stopping at
// the first rejected value.
func (t *OptionTable) Replay(s *Settings) error {
	for _, opt := range allowList {
		v, ok := t.values[opt.Name]
		if !ok {
			continue
		}
		if err := opt.Apply(s, v); err != nil {
			return err
		}
	}
	return nil
}
