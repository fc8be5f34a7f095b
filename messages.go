package recordperm

import (
	"fmt"
	"strconv"

	"golang.org/x/text/language"
)

// ReasonCode is the locale-independent key of a denial reason
type ReasonCode string

const (
	ReasonStatusLocked   ReasonCode = "status_locked"
	ReasonEditWindow     ReasonCode = "edit_window"
	ReasonDeleteWindow   ReasonCode = "delete_window"
	ReasonSameDay        ReasonCode = "same_day"
	ReasonEditNotOwner   ReasonCode = "edit_not_owner"
	ReasonDeleteNotOwner ReasonCode = "delete_not_owner"
	ReasonUnknownAction  ReasonCode = "unknown_action"
)

// Catalog holds the user-facing reason templates of one locale. Window
// templates take the hour limit as their only %s argument.
type Catalog struct {
	Tag      language.Tag
	messages map[ReasonCode]string
}

// NewCatalog builds a catalog. Codes missing from messages fall back to English.
func NewCatalog(tag language.Tag, messages map[ReasonCode]string) *Catalog {
	m := make(map[ReasonCode]string, len(englishMessages))
	for k, v := range englishMessages {
		m[k] = v
	}
	for k, v := range messages {
		m[k] = v
	}
	return &Catalog{Tag: tag, messages: m}
}

var englishMessages = map[ReasonCode]string{
	ReasonStatusLocked:   "record already approved, cannot edit",
	ReasonEditWindow:     "editable only within %s hours of creation",
	ReasonDeleteWindow:   "delete only within %s hours of creation",
	ReasonSameDay:        "editable only on the day it was recorded",
	ReasonEditNotOwner:   "not permitted to edit another user's record",
	ReasonDeleteNotOwner: "not permitted to delete another user's record",
	ReasonUnknownAction:  "unsupported action",
}

var thaiMessages = map[ReasonCode]string{
	ReasonStatusLocked:   "รายการนี้อนุมัติแล้ว ไม่สามารถแก้ไขได้",
	ReasonEditWindow:     "แก้ไขได้ภายใน %s ชั่วโมงหลังบันทึกเท่านั้น",
	ReasonDeleteWindow:   "ลบได้ภายใน %s ชั่วโมงหลังบันทึกเท่านั้น",
	ReasonSameDay:        "แก้ไขได้เฉพาะในวันที่บันทึกเท่านั้น",
	ReasonEditNotOwner:   "ไม่มีสิทธิ์แก้ไขข้อมูลที่ผู้อื่นบันทึก",
	ReasonDeleteNotOwner: "ไม่มีสิทธิ์ลบข้อมูลที่ผู้อื่นบันทึก",
	ReasonUnknownAction:  "ไม่รองรับการดำเนินการนี้",
}

var (
	English = NewCatalog(language.English, nil)
	Thai    = NewCatalog(language.Thai, thaiMessages)

	builtinCatalogs = []*Catalog{English, Thai}
	catalogMatcher  = language.NewMatcher([]language.Tag{language.English, language.Thai})
)

// CatalogFor picks the built-in catalog closest to locale. locale may be a
// single tag ("th-TH") or an Accept-Language header; anything unreadable
// yields English.
func CatalogFor(locale string) *Catalog {
	if locale == "" {
		return English
	}
	tags, _, err := language.ParseAcceptLanguage(locale)
	if err != nil || len(tags) == 0 {
		return English
	}
	_, idx, conf := catalogMatcher.Match(tags...)
	if conf == language.No || idx < 0 || idx >= len(builtinCatalogs) {
		return English
	}
	return builtinCatalogs[idx]
}

// Reason renders the text for code.
func (c *Catalog) Reason(code ReasonCode, args ...any) string {
	if c == nil {
		c = English
	}
	tmpl, ok := c.messages[code]
	if !ok {
		return string(code)
	}
	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}

// formatHours renders an hour limit without trailing zeros (24, 1.5).
func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64)
}
