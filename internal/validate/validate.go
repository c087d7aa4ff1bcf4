package validate

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	emailRe         = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe         = regexp.MustCompile(`^\+?[0-9 ()\-]{7,20}$`)
	shopifyDomainRe = regexp.MustCompile(`^[a-z0-9][a-z0-9\-]*\.myshopify\.com$`)
	shopifyGIDRe    = regexp.MustCompile(`^gid://shopify/[A-Za-z]+/\d+$`)
	numericIDRe     = regexp.MustCompile(`^\d+$`)
	tokenRe         = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)
)

const tokenMinLength = 10

// Validate checks a (typically already sanitized) value against the declared
// type and constraints. It returns one message per violated constraint, in
// the order checked; an empty result means the value is valid.
//
// A required empty value yields exactly one error and no further checks run.
// An optional empty value is exempt from all type checks.
func Validate(value any, typ Type, opts Options) []string {
	if isEmpty(value) {
		if opts.Required {
			return []string{"value is required"}
		}
		return nil
	}

	switch typ {
	case TypeEmail:
		return validatePattern(value, emailRe, "must be a valid email address")
	case TypePhone:
		return validatePattern(value, phoneRe, "must be a valid phone number")
	case TypeURL:
		return validateURL(value)
	case TypeShopifyDomain:
		return validatePattern(value, shopifyDomainRe, "must be a valid .myshopify.com domain")
	case TypeShopifyID:
		return validateShopifyID(value)
	case TypeToken:
		return validateToken(value)
	case TypeNumber:
		return validateNumber(value, opts, "must be a number")
	case TypeInteger:
		return validateInteger(value, opts)
	case TypeBoolean:
		return validateBoolean(value)
	case TypeArray:
		return validateArray(value, opts)
	case TypeString, TypeText, TypeName:
		return validateString(value, opts)
	default:
		return validateString(value, opts)
	}
}

func validatePattern(value any, re *regexp.Regexp, message string) []string {
	s, ok := value.(string)
	if !ok || !re.MatchString(s) {
		return []string{message}
	}
	return nil
}

func validateURL(value any) []string {
	s, ok := value.(string)
	if !ok {
		return []string{"must be a valid URL"}
	}
	u, err := url.Parse(s)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return []string{"must be a valid URL"}
	}
	return nil
}

// validateShopifyID accepts Shopify global IDs (gid://shopify/Type/123) and
// bare numeric IDs.
func validateShopifyID(value any) []string {
	s := fmt.Sprintf("%v", value)
	if shopifyGIDRe.MatchString(s) || numericIDRe.MatchString(s) {
		return nil
	}
	return []string{"must be a valid Shopify ID"}
}

func validateToken(value any) []string {
	s, ok := value.(string)
	if !ok {
		return []string{"must be a valid token"}
	}
	var errs []string
	if !tokenRe.MatchString(s) {
		errs = append(errs, "contains invalid characters")
	}
	if len(s) < tokenMinLength {
		errs = append(errs, fmt.Sprintf("must be at least %d characters", tokenMinLength))
	}
	return errs
}

func validateNumber(value any, opts Options, parseMessage string) []string {
	f, parsed := toFloat(value)
	if !parsed {
		return []string{parseMessage}
	}
	var errs []string
	if opts.Min != nil && f < *opts.Min {
		errs = append(errs, fmt.Sprintf("must be at least %v", *opts.Min))
	}
	if opts.Max != nil && f > *opts.Max {
		errs = append(errs, fmt.Sprintf("must be at most %v", *opts.Max))
	}
	return errs
}

func validateInteger(value any, opts Options) []string {
	f, parsed := toFloat(value)
	if !parsed || f != float64(int64(f)) {
		return []string{"must be an integer"}
	}
	return validateNumber(value, opts, "must be an integer")
}

func validateBoolean(value any) []string {
	if _, ok := value.(bool); !ok {
		return []string{"must be a boolean"}
	}
	return nil
}

func validateString(value any, opts Options) []string {
	s, ok := value.(string)
	if !ok {
		s = fmt.Sprintf("%v", value)
	}
	var errs []string
	length := len([]rune(s))
	if opts.MinLength > 0 && length < opts.MinLength {
		errs = append(errs, fmt.Sprintf("must be at least %d characters", opts.MinLength))
	}
	if opts.MaxLength > 0 && length > opts.MaxLength {
		errs = append(errs, fmt.Sprintf("must be at most %d characters", opts.MaxLength))
	}
	if opts.Pattern != nil && !opts.Pattern.MatchString(s) {
		errs = append(errs, "has an invalid format")
	}
	return errs
}

func validateArray(value any, opts Options) []string {
	items, ok := value.([]any)
	if !ok {
		return []string{"must be an array"}
	}
	var errs []string
	if opts.MinItems > 0 && len(items) < opts.MinItems {
		errs = append(errs, fmt.Sprintf("must have at least %d items", opts.MinItems))
	}
	if opts.MaxItems > 0 && len(items) > opts.MaxItems {
		errs = append(errs, fmt.Sprintf("must have at most %d items", opts.MaxItems))
	}
	return errs
}

// isEmpty reports whether a value counts as absent for the required check.
func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	default:
		return false
	}
}
