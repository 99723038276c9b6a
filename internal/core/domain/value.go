package domain

import (
	"fmt"
	"strconv"
)

// ValueKind enumerates the variants a context Value can hold.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindInt
	KindBool
	KindPlatform
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindPlatform:
		return "platform"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Platform describes an external account platform (github, twitter, ...)
// that request handlers can reach through the request context.
type Platform struct {
	Name        string
	DisplayName string
	AccountURL  string
}

// ProfileURL returns the account URL for a user name on the platform.
func (p *Platform) ProfileURL(user string) string {
	if p.AccountURL == "" {
		return ""
	}
	return fmt.Sprintf(p.AccountURL, user)
}

// Value is a tagged union stored in RequestContext.Values.
// The zero Value is null.
type Value struct {
	kind     ValueKind
	str      string
	num      int64
	flag     bool
	platform *Platform
}

// Constructors for each variant.
func NullValue() Value { return Value{} }
func StringValue(s string) Value { return Value{kind: KindString, str: s} }
func IntValue(n int64) Value { return Value{kind: KindInt, num: n} }
func BoolValue(b bool) Value { return Value{kind: KindBool, flag: b} }

// PlatformValue wraps a platform; a nil platform yields null.
func PlatformValue(p *Platform) Value {
	if p == nil {
		return NullValue()
	}
	return Value{kind: KindPlatform, platform: p}
}

// Kind returns the held variant.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsString returns the string variant.
func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }

// AsInt returns the int variant.
func (v Value) AsInt() (int64, bool) { return v.num, v.kind == KindInt }

// AsBool returns the bool variant.
func (v Value) AsBool() (bool, bool) { return v.flag, v.kind == KindBool }

// AsPlatform returns the platform variant.
func (v Value) AsPlatform() (*Platform, bool) { return v.platform, v.kind == KindPlatform }

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return strconv.FormatInt(v.num, 10)
	case KindBool:
		return strconv.FormatBool(v.flag)
	case KindPlatform:
		return v.platform.Name
	default:
		return "null"
	}
}
