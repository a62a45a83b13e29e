package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/roach88/palletwatch/internal/model"
)

// Rule is one (predicate, extractor) pair of the line interpreter.
type Rule struct {
	Name  string
	Match func(line string) bool
	Apply func(line string, ev *model.Event)
}

// Prefix keywords of the notification template.
const (
	PrefixNetwork  = "Сеть"
	PrefixTractor  = "Тягач"
	PrefixTrailer  = "Прицеп"
	PrefixDriver   = "Ф.И.О. водителя"
	PrefixPassport = "Паспорт"
	PrefixLicense  = "Номер ВУ"
	PrefixPhone    = "Телефон"
	PrefixTaxID    = "ИНН"
	PrefixExtra    = "Дополнительная информация"
	ReturnKeyword  = "возврат"
)

const (
	networkDelimiter = "|"
	fieldDelimiter   = ":"
	bodyDateLayout   = "2.1.2006"
)

var dateToken = regexp.MustCompile(`\d{1,2}\.\d{1,2}\.\d{4}`)

// DefaultRules returns the rule list for the standard notification template.
func DefaultRules() []Rule {
	rules := []Rule{networkRule()}
	rules = append(rules,
		fieldRule(PrefixTractor, func(ev *model.Event, v string) { ev.TractorID = v }),
		fieldRule(PrefixTrailer, func(ev *model.Event, v string) { ev.TrailerID = v }),
		fieldRule(PrefixDriver, func(ev *model.Event, v string) { ev.DriverName = v }),
		fieldRule(PrefixPassport, func(ev *model.Event, v string) { ev.Passport = v }),
		fieldRule(PrefixLicense, func(ev *model.Event, v string) { ev.LicenseNumber = v }),
		fieldRule(PrefixPhone, func(ev *model.Event, v string) { ev.Phone = v }),
		fieldRule(PrefixTaxID, func(ev *model.Event, v string) { ev.TaxID = v }),
		fieldRule(PrefixExtra, func(ev *model.Event, v string) { ev.ExtraNotes = v }),
	)
	return append(rules, returnDateRule())
}

func networkRule() Rule {
	return Rule{
		Name:  "network",
		Match: hasPrefix(PrefixNetwork),
		Apply: func(line string, ev *model.Event) {
			parts := strings.Split(line, networkDelimiter)
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			if len(parts) >= 2 {
				ev.PartnerCategory = parts[1]
			}
			if len(parts) >= 3 {
				ev.RegionalCenter = parts[2]
			}
		},
	}
}

func fieldRule(prefix string, set func(ev *model.Event, v string)) Rule {
	return Rule{
		Name:  prefix,
		Match: hasPrefix(prefix),
		Apply: func(line string, ev *model.Event) {
			set(ev, valueAfterColon(line))
		},
	}
}

// returnDateRule replaces the date portion of the received timestamp with
// the stated return date. The time-of-day is kept.
func returnDateRule() Rule {
	return Rule{
		Name: "return-date",
		Match: func(line string) bool {
			return strings.Contains(strings.ToLower(line), ReturnKeyword) && dateToken.MatchString(line)
		},
		Apply: func(line string, ev *model.Event) {
			tok := dateToken.FindString(line)
			d, err := time.Parse(bodyDateLayout, tok)
			if err != nil {
				ev.Warnings = append(ev.Warnings, "unparseable return date "+tok)
				return
			}
			ev.ReturnDate = model.DateOf(d)
			r := ev.ReceivedAt
			ev.CorrelationTime = time.Date(d.Year(), d.Month(), d.Day(),
				r.Hour(), r.Minute(), r.Second(), r.Nanosecond(), r.Location())
		},
	}
}

func hasPrefix(prefix string) func(string) bool {
	return func(line string) bool { return strings.HasPrefix(line, prefix) }
}

func valueAfterColon(line string) string {
	_, v, ok := strings.Cut(line, fieldDelimiter)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}
