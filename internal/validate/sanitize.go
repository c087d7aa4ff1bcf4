// Package validate cleans and checks untrusted request input against a fixed
// catalog of field types. Sanitizing transforms a raw value into a canonical,
// safe representation; validating checks an (already sanitized) value against
// declared constraints and reports every violated constraint as a
// human-readable message.
//
// Sanitize and Validate never fail: sanitizers return sentinel values and
// validators return message lists, leaving the decision to error out to the
// schema-level ValidateAndSanitize.
package validate

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Type selects the sanitize/validate dispatch branch for a field.
type Type string

const (
	TypeString        Type = "string"
	TypeText          Type = "text"
	TypeName          Type = "name"
	TypeEmail         Type = "email"
	TypePhone         Type = "phone"
	TypeNumber        Type = "number"
	TypeInteger       Type = "integer"
	TypeBoolean       Type = "boolean"
	TypeURL           Type = "url"
	TypeShopifyDomain Type = "shopifyDomain"
	TypeShopifyID     Type = "shopifyID"
	TypeToken         Type = "token"
	TypeArray         Type = "array"
	TypeJSON          Type = "json"
)

// Options tunes sanitization and validation for a single field.
// Zero values mean "use the type's default behavior".
type Options struct {
	Required  bool
	AllowNull bool
	MaxLength int
	MinLength int
	Min       *float64
	Max       *float64
	Pattern   *regexp.Regexp
	MinItems  int
	MaxItems  int
	ItemType  Type
}

const (
	defaultMaxLength      = 500
	nameMaxLength         = 100
	emailMaxLength        = 254
	phoneMaxLength        = 20
	tokenMaxLength        = 1000
	defaultArrayMaxItems  = 100
	myshopifyDomainSuffix = ".myshopify.com"
)

var (
	nameStripRe  = regexp.MustCompile(`[<>"'&]`)
	spaceRunRe   = regexp.MustCompile(`\s+`)
	phoneKeepRe  = regexp.MustCompile(`[^0-9+\-() ]`)
	tokenStripRe = regexp.MustCompile(`[^A-Za-z0-9_.\-]`)
)

// Sanitize transforms a raw value into the canonical form for the given
// type. It never fails: absent or nil input yields "" (or nil when
// opts.AllowNull is set) for string-like types and a type-appropriate
// default otherwise.
func Sanitize(raw any, typ Type, opts Options) any {
	switch typ {
	case TypeString, TypeText:
		return sanitizeString(raw, opts, maxLen(opts, defaultMaxLength))
	case TypeName:
		return sanitizeName(raw, opts)
	case TypeEmail:
		return sanitizeEmail(raw, opts)
	case TypePhone:
		return sanitizePhone(raw, opts)
	case TypeNumber:
		return sanitizeNumber(raw, opts)
	case TypeInteger:
		return sanitizeInteger(raw, opts)
	case TypeBoolean:
		return sanitizeBoolean(raw, opts)
	case TypeURL:
		return sanitizeURL(raw, opts)
	case TypeShopifyDomain:
		return sanitizeShopifyDomain(raw, opts)
	case TypeToken:
		return sanitizeToken(raw, opts)
	case TypeArray:
		return sanitizeArray(raw, opts)
	case TypeJSON:
		return sanitizeJSON(raw, opts)
	default:
		return sanitizeString(raw, opts, maxLen(opts, defaultMaxLength))
	}
}

func sanitizeString(raw any, opts Options, limit int) any {
	s, ok := stringInput(raw, opts)
	if !ok {
		return s
	}
	str := strings.TrimSpace(s.(string))
	str = stripControlChars(str)
	return truncate(str, limit)
}

func sanitizeName(raw any, opts Options) any {
	s, ok := stringInput(raw, opts)
	if !ok {
		return s
	}
	str := strings.TrimSpace(s.(string))
	str = nameStripRe.ReplaceAllString(str, "")
	str = spaceRunRe.ReplaceAllString(str, " ")
	return truncate(str, maxLen(opts, nameMaxLength))
}

func sanitizeEmail(raw any, opts Options) any {
	s, ok := stringInput(raw, opts)
	if !ok {
		return s
	}
	str := strings.ToLower(strings.TrimSpace(s.(string)))
	return truncate(str, emailMaxLength)
}

func sanitizePhone(raw any, opts Options) any {
	s, ok := stringInput(raw, opts)
	if !ok {
		return s
	}
	str := phoneKeepRe.ReplaceAllString(s.(string), "")
	str = strings.TrimSpace(str)
	return truncate(str, phoneMaxLength)
}

func sanitizeNumber(raw any, opts Options) any {
	f, parsed := toFloat(raw)
	if !parsed {
		if opts.AllowNull {
			return nil
		}
		f = 0
	}
	if opts.Min != nil && f < *opts.Min {
		f = *opts.Min
	}
	if opts.Max != nil && f > *opts.Max {
		f = *opts.Max
	}
	return f
}

func sanitizeInteger(raw any, opts Options) any {
	f, parsed := toFloat(raw)
	if !parsed {
		if opts.AllowNull {
			return nil
		}
		f = 0
	}
	n := int(f)
	if opts.Min != nil && float64(n) < *opts.Min {
		n = int(*opts.Min)
	}
	if opts.Max != nil && float64(n) > *opts.Max {
		n = int(*opts.Max)
	}
	return n
}

func sanitizeBoolean(raw any, opts Options) any {
	switch v := raw.(type) {
	case nil:
		if opts.AllowNull {
			return nil
		}
		return false
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes":
			return true
		}
		return false
	default:
		f, parsed := toFloat(raw)
		if parsed {
			return f != 0
		}
		return true
	}
}

func sanitizeURL(raw any, opts Options) any {
	s, ok := stringInput(raw, opts)
	if !ok {
		return s
	}
	str := strings.TrimSpace(s.(string))
	u, err := url.Parse(str)
	if err != nil || !u.IsAbs() || u.Host == "" {
		if opts.AllowNull {
			return nil
		}
		return ""
	}
	return truncate(u.String(), maxLen(opts, defaultMaxLength))
}

func sanitizeShopifyDomain(raw any, opts Options) any {
	s, ok := stringInput(raw, opts)
	if !ok {
		return s
	}
	str := strings.ToLower(strings.TrimSpace(s.(string)))
	if str == "" {
		return str
	}
	if !strings.HasSuffix(str, myshopifyDomainSuffix) {
		str += myshopifyDomainSuffix
	}
	return str
}

func sanitizeToken(raw any, opts Options) any {
	s, ok := stringInput(raw, opts)
	if !ok {
		return s
	}
	str := strings.TrimSpace(s.(string))
	str = tokenStripRe.ReplaceAllString(str, "")
	return truncate(str, tokenMaxLength)
}

func sanitizeArray(raw any, opts Options) any {
	items, ok := raw.([]any)
	if !ok {
		return []any{}
	}
	limit := opts.MaxItems
	if limit <= 0 {
		limit = defaultArrayMaxItems
	}
	if len(items) > limit {
		items = items[:limit]
	}
	itemType := opts.ItemType
	if itemType == "" {
		itemType = TypeString
	}
	cleaned := make([]any, 0, len(items))
	for _, item := range items {
		cleaned = append(cleaned, Sanitize(item, itemType, opts))
	}
	return cleaned
}

func sanitizeJSON(raw any, opts Options) any {
	switch v := raw.(type) {
	case nil:
		if opts.AllowNull {
			return nil
		}
		return map[string]any{}
	case string:
		var parsed any
		if err := json.Unmarshal([]byte(v), &parsed); err != nil {
			if opts.AllowNull {
				return nil
			}
			return map[string]any{}
		}
		return parsed
	default:
		// Already-structured input passes through unchanged.
		return raw
	}
}

// stringInput coerces raw into a string, handling the nil case. The second
// return is false when the first return is already the final sanitized
// value (nil or "").
func stringInput(raw any, opts Options) (any, bool) {
	if raw == nil {
		if opts.AllowNull {
			return nil, false
		}
		return "", false
	}
	if s, ok := raw.(string); ok {
		return s, true
	}
	return fmt.Sprintf("%v", raw), true
}

func stripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func maxLen(opts Options, fallback int) int {
	if opts.MaxLength > 0 {
		return opts.MaxLength
	}
	return fallback
}

// toFloat parses numeric input from native numbers or numeric strings.
func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
