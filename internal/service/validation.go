package service

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"

	"indi-radio-go/internal/model"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

var (
	datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	// 查询参数中的时间，HH:MM，小时可以是一位
	clockPattern = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]$`)
	// 导入文件中的时间，HH:MM:SS
	recordTimePattern = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}$`)
)

// NormalizeFileName 将所有空白字符替换为 "+"
func NormalizeFileName(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '+'
		}
		return r
	}, name)
}

func validDate(s string) bool {
	return datePattern.MatchString(s)
}

func validClipType(t string) bool {
	return t == model.ClipTypeAds || t == model.ClipTypeSongs
}

// normalizeClock 校验 H:MM / HH:MM 并补零为 HH:MM
func normalizeClock(s string) (string, bool) {
	if !clockPattern.MatchString(s) {
		return "", false
	}
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d", h, m), true
}

// Pagination 是 1 起始的页码与每页条数
type Pagination struct {
	Page  int
	Limit int
}

// normalize 修正非法值：页码小于 1 视为 1，条数缺省为 10、上限为 maxLimit。
// 页码过大时截断，使 offset 不超过 MaxInt32，查询结果为空页。
func (p Pagination) normalize(maxLimit int) Pagination {
	if maxLimit <= 0 {
		maxLimit = maxPageSize
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultPageSize
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	if lastPage := math.MaxInt32/p.Limit + 1; p.Page > lastPage {
		p.Page = lastPage
	}
	return p
}

func (p Pagination) offset() int {
	return (p.Page - 1) * p.Limit
}
