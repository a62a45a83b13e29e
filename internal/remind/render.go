package remind

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/roach88/palletwatch/internal/model"
)

// Rule names a reminder rule.
type Rule string

const (
	RuleNeedData    Rule = "need-data"
	RuleConfirmPass Rule = "confirm-pass"
)

// Template names accepted by Renderer.Parse.
const (
	TemplateNeedDataSameDay   = "need-data-same-day"
	TemplateNeedDataDayBefore = "need-data-day-before"
	TemplateConfirmPass       = "confirm-pass"
)

// MessageData is the template input of one reminder.
type MessageData struct {
	Category    string
	Title       string
	Rule        Rule
	ReturnDate  string
	TriggerDate string
	Center      string
	Supplier    string
	Driver      string
	Tractor     string
	Hour        string
	Missing     []string
}

const footer = "\n[Автоматическое уведомление]\n"

const keyLines = `Дата возврата: {{.ReturnDate}}
Поставщик: {{.Supplier}}
РЦ: {{.Center}}
`

var defaultTemplates = map[string][2]string{
	TemplateNeedDataSameDay: {
		"Напоминание ({{.Title}}): предоставьте данные водителя на РЦ {{.Center}}",
		keyLines + "\nНапоминаем предоставить данные для оформления пропуска.\n" + footer,
	},
	TemplateNeedDataDayBefore: {
		"{{upper .Title}}: срочно предоставьте данные водителя на РЦ {{.Center}}",
		keyLines + "\nДанные водителя или тягача отсутствуют в таблице учёта.\n" +
			"Не заполнено: {{join .Missing \", \"}}\n" + footer,
	},
	TemplateConfirmPass: {
		"Проверка ({{upper .Title}}): заказан ли пропуск на РЦ {{.Center}}?",
		keyLines + "Водитель: {{.Driver}}\nТягач: {{.Tractor}}\n" +
			"\nДанные водителя есть в таблице, подтвердите оформление пропуска.\n" + footer,
	},
}

var funcs = template.FuncMap{
	"upper": strings.ToUpper,
	"join":  strings.Join,
}

type pair struct {
	subject *template.Template
	body    *template.Template
}

// Renderer turns MessageData into subject and body text.
type Renderer struct {
	templates map[string]pair
}

// NewRenderer returns a Renderer loaded with the built-in templates.
func NewRenderer() *Renderer {
	r := &Renderer{templates: make(map[string]pair, len(defaultTemplates))}
	for name, t := range defaultTemplates {
		if err := r.Parse(name, t[0], t[1]); err != nil {
			panic(fmt.Sprintf("remind: built-in template %s: %v", name, err))
		}
	}
	return r
}

// Parse replaces the named template. An empty subject or body keeps the
// current one.
func (r *Renderer) Parse(name, subject, body string) error {
	cur, known := r.templates[name]
	if !known {
		if _, ok := defaultTemplates[name]; !ok {
			return fmt.Errorf("remind: unknown template %q", name)
		}
	}
	if subject != "" {
		t, err := template.New(name + ".subject").Funcs(funcs).Option("missingkey=error").Parse(subject)
		if err != nil {
			return fmt.Errorf("remind: template %s subject: %w", name, err)
		}
		cur.subject = t
	}
	if body != "" {
		t, err := template.New(name + ".body").Funcs(funcs).Option("missingkey=error").Parse(body)
		if err != nil {
			return fmt.Errorf("remind: template %s body: %w", name, err)
		}
		cur.body = t
	}
	if cur.subject == nil || cur.body == nil {
		return fmt.Errorf("remind: template %s: subject and body required", name)
	}
	r.templates[name] = cur
	return nil
}

// Render executes the named template.
func (r *Renderer) Render(name string, data MessageData) (subject, body string, err error) {
	p, ok := r.templates[name]
	if !ok {
		return "", "", fmt.Errorf("remind: unknown template %q", name)
	}
	var buf bytes.Buffer
	if err := p.subject.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("remind: render %s subject: %w", name, err)
	}
	subject = strings.Join(strings.Fields(buf.String()), " ")
	buf.Reset()
	if err := p.body.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("remind: render %s body: %w", name, err)
	}
	return subject, buf.String(), nil
}

func templateFor(kind Kind, rule Rule) string {
	if rule == RuleConfirmPass {
		return TemplateConfirmPass
	}
	if kind == DayBefore {
		return TemplateNeedDataDayBefore
	}
	return TemplateNeedDataSameDay
}

func newMessageData(c Category, rule Rule, t Target, trigger model.Date, hour int) MessageData {
	supplier := t.Row.Supplier
	if model.IsEmptyCell(supplier) {
		supplier = t.Label
	}
	d := MessageData{
		Category:    c.Name,
		Title:       c.title(),
		Rule:        rule,
		ReturnDate:  t.ReturnDate.Display(),
		TriggerDate: trigger.Display(),
		Center:      model.NormalizeLabel(t.Center),
		Supplier:    supplier,
		Driver:      t.Row.Driver,
		Tractor:     t.Row.Tractor,
	}
	if rule == RuleConfirmPass {
		d.Hour = fmt.Sprintf("%02d:00", hour)
	}
	for _, f := range c.Missing(t.Row) {
		d.Missing = append(d.Missing, fieldTitle(f))
	}
	return d
}

func fieldTitle(f model.Field) string {
	switch f {
	case model.FieldDriver:
		return "водитель"
	case model.FieldTractor:
		return "тягач"
	}
	return string(f)
}
