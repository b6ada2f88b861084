package domain

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
)

// Intent コマンドが要求する操作の種別
type Intent string

const (
	IntentCreateEvent    Intent = "create_event"
	IntentUpdateEvent    Intent = "update_event"
	IntentDeleteEvent    Intent = "delete_event"
	IntentCreateTodo     Intent = "create_todo"
	IntentCreateCategory Intent = "create_category"
	IntentQueryCalendar  Intent = "query_calendar"
	IntentUnknown        Intent = "unknown"
)

// DefaultClarification 言語モデルが応答文を返さなかった場合の聞き返し
const DefaultClarification = "Sorry, I didn't quite understand that. Could you rephrase your request?"

// RawExtraction 抽出サービスが返す未検証のドキュメント
//
// どのフィールドも欠落・型違いがあり得る前提で Normalize に渡す。
type RawExtraction struct {
	Intent         string         `json:"intent"`
	Entities       map[string]any `json:"entities"`
	SearchCriteria map[string]any `json:"search_criteria"`
	Updates        map[string]any `json:"updates"`
	ResponseText   string         `json:"response_text"`
}

// Command 正規化済みのコマンド。具体型は下記の *Command 構造体のいずれか
type Command interface {
	Intent() Intent
	isCommand()
}

// EventEntities イベントに関する抽出済みエンティティ
type EventEntities struct {
	Title          string
	Date           *civil.Date
	StartTime      *civil.Time
	EndTime        *civil.Time
	CategoryName   string
	Duration       string
	AutoSchedule   bool
	RangeStart     *civil.Date
	RangeEnd       *civil.Date
	RecurrenceRule string
}

// HasRangeHint 期間指定（time_range_start / time_range_end）があるか
func (e EventEntities) HasRangeHint() bool {
	return e.RangeStart != nil || e.RangeEnd != nil
}

// WantsAutoSchedule 空き時間検索で日時を決めるべきか
//
// 明示フラグがある場合に加え、開始時刻と終了時刻の両方が無い場合は期間指定の有無にかかわらず検索する。
// 終了時刻だけがある場合は所要時間から開始時刻を逆算するので検索しない。
func (e EventEntities) WantsAutoSchedule() bool {
	return e.AutoSchedule || (e.StartTime == nil && e.EndTime == nil)
}

type CreateEventCommand struct {
	Entities EventEntities
}

type UpdateEventCommand struct {
	Criteria SearchCriteria
	Changes  EventEntities
}

type DeleteEventCommand struct {
	Criteria SearchCriteria
}

type CreateTodoCommand struct {
	Title             string
	Description       string
	Priority          Priority
	DueDate           *civil.Date
	EstimatedDuration string
	CategoryName      string
}

type CreateCategoryCommand struct {
	Fields CategoryFields
}

// QueryCalendarCommand From/To が nil の場合は呼び出し側で補完する
type QueryCalendarCommand struct {
	From *civil.Date
	To   *civil.Date
}

type UnknownCommand struct{}

func (CreateEventCommand) Intent() Intent    { return IntentCreateEvent }
func (UpdateEventCommand) Intent() Intent    { return IntentUpdateEvent }
func (DeleteEventCommand) Intent() Intent    { return IntentDeleteEvent }
func (CreateTodoCommand) Intent() Intent     { return IntentCreateTodo }
func (CreateCategoryCommand) Intent() Intent { return IntentCreateCategory }
func (QueryCalendarCommand) Intent() Intent  { return IntentQueryCalendar }
func (UnknownCommand) Intent() Intent        { return IntentUnknown }

func (CreateEventCommand) isCommand()    {}
func (UpdateEventCommand) isCommand()    {}
func (DeleteEventCommand) isCommand()    {}
func (CreateTodoCommand) isCommand()     {}
func (CreateCategoryCommand) isCommand() {}
func (QueryCalendarCommand) isCommand()  {}
func (UnknownCommand) isCommand()        {}

// Interpretation 正規化したコマンドと抽出サービスの応答文
type Interpretation struct {
	Command      Command
	ResponseText string
}

// Normalize 抽出結果をコマンドに変換する
//
// 欠落フィールドはここで明示的に補完し、補完できないものは ErrMalformedExtraction で拒否する。
func Normalize(raw RawExtraction) (Interpretation, error) {
	text := strings.TrimSpace(raw.ResponseText)
	if text == "" {
		text = DefaultClarification
	}
	entities := fields(raw.Entities)

	var cmd Command
	switch Intent(strings.ToLower(strings.TrimSpace(raw.Intent))) {
	case IntentCreateEvent:
		event := eventEntities(entities)
		if event.Title == "" {
			event.Title = UntitledTitle
		}
		cmd = CreateEventCommand{Entities: event}

	case IntentUpdateEvent:
		changes := entities
		if len(raw.Updates) > 0 {
			changes = fields(raw.Updates)
		}
		cmd = UpdateEventCommand{
			Criteria: searchCriteria(fields(raw.SearchCriteria)),
			Changes:  eventEntities(changes),
		}

	case IntentDeleteEvent:
		cmd = DeleteEventCommand{Criteria: searchCriteria(fields(raw.SearchCriteria))}

	case IntentCreateTodo:
		title := entities.str("title")
		if title == "" {
			title = UntitledTitle
		}
		cmd = CreateTodoCommand{
			Title:             title,
			Description:       entities.str("description"),
			Priority:          ParsePriority(entities.str("priority")),
			DueDate:           entities.date("due_date", "dueDate"),
			EstimatedDuration: entities.str("estimated_duration", "estimatedDuration"),
			CategoryName:      entities.str("category_name", "categoryName", "category"),
		}

	case IntentCreateCategory:
		name := entities.str("name", "category_name", "categoryName")
		if name == "" {
			return Interpretation{}, fmt.Errorf("%w: create_category にカテゴリ名がありません", ErrMalformedExtraction)
		}
		color := entities.str("color")
		if color == "" {
			color = DefaultCategoryColor
		}
		cmd = CreateCategoryCommand{Fields: CategoryFields{
			Name:        name,
			Color:       color,
			Description: entities.str("description"),
		}}

	case IntentQueryCalendar:
		from := entities.date("start_date", "startDate", "time_range_start")
		to := entities.date("end_date", "endDate", "time_range_end")
		if single := entities.date("date"); single != nil {
			if from == nil {
				from = single
			}
			if to == nil {
				to = single
			}
		}
		cmd = QueryCalendarCommand{From: from, To: to}

	default:
		cmd = UnknownCommand{}
	}

	return Interpretation{Command: cmd, ResponseText: text}, nil
}

func eventEntities(f fields) EventEntities {
	return EventEntities{
		Title:          f.str("title"),
		Date:           f.date("date"),
		StartTime:      f.clock("startTime", "start_time"),
		EndTime:        f.clock("endTime", "end_time"),
		CategoryName:   f.str("category_name", "categoryName", "category"),
		Duration:       f.str("duration"),
		AutoSchedule:   f.boolean("auto_schedule", "autoSchedule"),
		RangeStart:     f.date("time_range_start", "timeRangeStart"),
		RangeEnd:       f.date("time_range_end", "timeRangeEnd"),
		RecurrenceRule: f.str("recurrence_rule", "recurrenceRule"),
	}
}

func searchCriteria(f fields) SearchCriteria {
	return SearchCriteria{
		TitleKeyword: f.str("title_keyword", "titleKeyword", "keyword", "title"),
		Date:         f.date("date"),
	}
}

// fields 型の保証が無い map からの読み出しヘルパー
type fields map[string]any

func (f fields) str(keys ...string) string {
	for _, key := range keys {
		switch v := f[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(v)
		}
	}
	return ""
}

func (f fields) boolean(keys ...string) bool {
	for _, key := range keys {
		switch v := f[key].(type) {
		case bool:
			return v
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				return b
			}
		}
	}
	return false
}

func (f fields) date(keys ...string) *civil.Date {
	for _, key := range keys {
		s := f.str(key)
		if s == "" {
			continue
		}
		d, err := civil.ParseDate(s)
		if err != nil {
			log.Printf("Warning: 日付フィールド %s を無視します: %v", key, err)
			continue
		}
		return &d
	}
	return nil
}

func (f fields) clock(keys ...string) *civil.Time {
	for _, key := range keys {
		s := f.str(key)
		if s == "" {
			continue
		}
		t, err := ParseClock(s)
		if err != nil {
			log.Printf("Warning: 時刻フィールド %s を無視します: %v", key, err)
			continue
		}
		return &t
	}
	return nil
}
