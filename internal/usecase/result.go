package usecase

import "encoding/json"

// Action 実行したアクションのタグ。空文字は「アクションなし」を表し JSON では null になる
type Action string

const (
	ActionNone           Action = ""
	ActionCreateEvent    Action = "create_event"
	ActionUpdateEvent    Action = "update_event"
	ActionDeleteEvent    Action = "delete_event"
	ActionCreateTodo     Action = "create_todo"
	ActionCreateCategory Action = "create_category"
	ActionQueryCalendar  Action = "query_calendar"
	ActionError          Action = "error"
)

// MarshalJSON ActionNone を null として出力
func (a Action) MarshalJSON() ([]byte, error) {
	if a == ActionNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(a))
}

// CommandResult コマンド処理の唯一の出力
type CommandResult struct {
	ResponseText  string         `json:"response_text"`
	ActionTaken   Action         `json:"action_taken"`
	ActionPayload map[string]any `json:"action_payload"`
}

func reply(text string) CommandResult {
	return CommandResult{ResponseText: text}
}

func errorResult(text string) CommandResult {
	return CommandResult{ResponseText: text, ActionTaken: ActionError}
}
