package log

import (
	"regexp"
	"strings"

	"github.com/cloudflare/ahocorasick"
)

// Mask is used to mask a secret in strings.
type Mask struct {
	RegExp *regexp.Regexp
	Mask   string
}

func NewMask(cfg MaskConfig) Mask {
	return Mask{regexp.MustCompile(cfg.RegExp), cfg.Mask}
}

// FieldMasker is used to mask a field in different formats.
type FieldMasker struct {
	Field string // Field is a name of a field used in RegExp, must be lowercase
	Masks []Mask
}

func NewFieldMasker(cfg MaskingRuleConfig) FieldMasker {
	fMask := FieldMasker{Field: strings.ToLower(cfg.Field), Masks: make([]Mask, 0, len(cfg.Masks))}

	for _, repCfg := range cfg.Masks {
		fMask.Masks = append(fMask.Masks, NewMask(repCfg))
	}
	for _, format := range cfg.Formats {
		switch format {
		case FieldMaskFormatHTTPHeader:
			fMask.Masks = append(fMask.Masks, NewMask(MaskConfig{`(?i)` + cfg.Field + `: .+?\r\n`, cfg.Field + ": ***\r\n"}))
		case FieldMaskFormatJSON:
			fMask.Masks = append(fMask.Masks, NewMask(MaskConfig{`(?i)"` + cfg.Field + `"\s*:\s*".*?[^\\]"`, `"` + cfg.Field + `": "***"`}))
		case FieldMaskFormatURLEncoded:
			fMask.Masks = append(fMask.Masks, NewMask(MaskConfig{`(?i)` + cfg.Field + `\s*=\s*[^&\s]+`, cfg.Field + "=***"}))
		}
	}
	return fMask
}

// Masker is used to mask various secrets in strings.
// Regexps are applied only to strings that contain the corresponding field name,
// a single Aho-Corasick pass over the lowercased input selects which rules may fire.
type Masker struct {
	FieldMasks []FieldMasker
	matcher    *ahocorasick.Matcher
}

func NewMasker(rules []MaskingRuleConfig) *Masker {
	r := &Masker{FieldMasks: make([]FieldMasker, 0, len(rules))}
	fieldIdx := make(map[string]int, len(rules))
	for _, rule := range rules {
		fMask := NewFieldMasker(rule)
		// Rules sharing a field name are merged, the matcher reports each pattern once.
		if i, ok := fieldIdx[fMask.Field]; ok {
			r.FieldMasks[i].Masks = append(r.FieldMasks[i].Masks, fMask.Masks...)
			continue
		}
		fieldIdx[fMask.Field] = len(r.FieldMasks)
		r.FieldMasks = append(r.FieldMasks, fMask)
	}
	if len(r.FieldMasks) > 0 {
		triggers := make([]string, len(r.FieldMasks))
		for i, fMask := range r.FieldMasks {
			triggers[i] = fMask.Field
		}
		r.matcher = ahocorasick.NewStringMatcher(triggers)
	}
	return r
}

func (r *Masker) Mask(s string) string {
	if r.matcher == nil {
		return s
	}
	for _, i := range r.matcher.MatchThreadSafe([]byte(strings.ToLower(s))) {
		for _, rep := range r.FieldMasks[i].Masks {
			s = rep.RegExp.ReplaceAllString(s, rep.Mask)
		}
	}
	return s
}

var DefaultMasks = []MaskingRuleConfig{
	{
		// Bot API tokens are embedded in request paths ("/bot<id>:<secret>/sendMessage"),
		// a failed call reports the full URL in its error.
		Field: "bot",
		Masks: []MaskConfig{{RegExp: `(?i)/bot\d+:[\w-]+`, Mask: "/bot***"}},
	},
	{
		Field:   "Authorization",
		Formats: []FieldMaskFormat{FieldMaskFormatHTTPHeader},
	},
	{
		Field:   "password",
		Formats: []FieldMaskFormat{FieldMaskFormatJSON, FieldMaskFormatURLEncoded},
	},
	{
		Field:   "token",
		Formats: []FieldMaskFormat{FieldMaskFormatJSON, FieldMaskFormatURLEncoded},
	},
	{
		Field:   "api_key",
		Formats: []FieldMaskFormat{FieldMaskFormatJSON, FieldMaskFormatURLEncoded},
	},
	{
		Field:   "secret",
		Formats: []FieldMaskFormat{FieldMaskFormatJSON, FieldMaskFormatURLEncoded},
	},
}
