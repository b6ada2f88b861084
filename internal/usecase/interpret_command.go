package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"cloud.google.com/go/civil"

	"github.com/k-negishi/chat-scheduler/internal/domain"
)

const (
	msgGenericError          = "Sorry, I ran into an issue processing your request. Please try again in a moment."
	msgExtractionUnavailable = "I'm ready to help, but the language model service is not configured. Please set GEMINI_API_KEY to use the assistant."
	msgMalformedExtraction   = "Sorry, I couldn't make sense of that request. Could you rephrase it?"
)

// CommandRequest 1件の自然文コマンド
type CommandRequest struct {
	UserID  string
	Message string
	// LocalTime ユーザーの現在時刻。ゼロ値ならサーバー時刻を使う
	LocalTime time.Time
}

// InterpretCommandUseCase 自然文コマンドを解釈し、1つのアクションを実行して返答を作るユースケース
type InterpretCommandUseCase struct {
	extractor  Extractor
	events     EventRepository
	categories CategoryRepository
	todos      TodoRepository
	settings   Settings
	clock      func() time.Time
}

// NewInterpretCommandUseCase ユースケースを生成
func NewInterpretCommandUseCase(
	extractor Extractor,
	events EventRepository,
	categories CategoryRepository,
	todos TodoRepository,
	settings Settings,
) *InterpretCommandUseCase {
	return &InterpretCommandUseCase{
		extractor:  extractor,
		events:     events,
		categories: categories,
		todos:      todos,
		settings:   settings,
		clock:      time.Now,
	}
}

// commandContext 1コマンドの処理中だけ有効な状態
type commandContext struct {
	userID   string
	today    civil.Date
	resolver *CategoryResolver
}

// Execute コマンドを処理する。どんな失敗も CommandResult に変換し、エラーやパニックを外に出さない
func (uc *InterpretCommandUseCase) Execute(ctx context.Context, req CommandRequest) (result CommandResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("コマンド処理中にパニックが発生しました: %v", r)
			result = errorResult(msgGenericError)
		}
	}()

	localTime := req.LocalTime
	if localTime.IsZero() {
		localTime = uc.clock().In(uc.settings.location())
	}

	// カテゴリ一覧はコマンド開始時点のスナップショットを使う
	categories, err := uc.categories.ListCategories(ctx)
	if err != nil {
		log.Printf("カテゴリ一覧の取得に失敗しました: %v", err)
		return errorResult(msgGenericError)
	}
	cc := commandContext{
		userID:   req.UserID,
		today:    civil.DateOf(localTime),
		resolver: NewCategoryResolver(categories, uc.categories),
	}

	// 抽出が完了するまで解決処理は始めない
	raw, err := uc.extractor.Extract(ctx, ExtractionRequest{
		LocalTime:     localTime,
		CategoryNames: cc.resolver.Names(),
		Utterance:     req.Message,
	})
	if err != nil {
		return extractionFailure(err)
	}

	interp, err := domain.Normalize(raw)
	if err != nil {
		return extractionFailure(err)
	}
	log.Printf("解釈結果: intent=%s user=%s", interp.Command.Intent(), req.UserID)

	result, err = uc.dispatch(ctx, cc, interp)
	if err != nil {
		log.Printf("%s の実行に失敗しました: %v", interp.Command.Intent(), err)
		return errorResult(msgGenericError)
	}
	return result
}

func extractionFailure(err error) CommandResult {
	log.Printf("コマンドの抽出に失敗しました: %v", err)
	switch {
	case errors.Is(err, domain.ErrExtractionUnavailable):
		return errorResult(msgExtractionUnavailable)
	case errors.Is(err, domain.ErrMalformedExtraction):
		return errorResult(msgMalformedExtraction)
	default:
		return errorResult(msgGenericError)
	}
}

func (uc *InterpretCommandUseCase) dispatch(ctx context.Context, cc commandContext, interp domain.Interpretation) (CommandResult, error) {
	switch cmd := interp.Command.(type) {
	case domain.CreateCategoryCommand:
		return uc.createCategory(ctx, cc, cmd)
	case domain.CreateEventCommand:
		return uc.createEvent(ctx, cc, cmd)
	case domain.CreateTodoCommand:
		return uc.createTodo(ctx, cc, cmd)
	case domain.UpdateEventCommand:
		return uc.updateEvent(ctx, cc, cmd)
	case domain.DeleteEventCommand:
		return uc.deleteEvent(ctx, cc, cmd)
	case domain.QueryCalendarCommand:
		return uc.queryCalendar(ctx, cc, cmd)
	default:
		return reply(interp.ResponseText), nil
	}
}

// --- create_category ---

func (uc *InterpretCommandUseCase) createCategory(ctx context.Context, cc commandContext, cmd domain.CreateCategoryCommand) (CommandResult, error) {
	if existing, ok := cc.resolver.Resolve(cmd.Fields.Name); ok {
		return reply(fmt.Sprintf("Category '%s' already exists.", existing.Name)), nil
	}

	created, err := cc.resolver.EnsureCreated(ctx, cmd.Fields)
	if errors.Is(err, domain.ErrCategoryExists) {
		// 別のコマンドが先に作成した。最新の一覧で引き直す
		log.Printf("カテゴリ %q は並行して作成されていました", cmd.Fields.Name)
		return uc.existingCategoryReply(ctx, cmd.Fields.Name)
	}
	if err != nil {
		return CommandResult{}, fmt.Errorf("カテゴリの作成に失敗しました: %w", err)
	}

	return CommandResult{
		ResponseText:  fmt.Sprintf("Created category '%s'.", created.Name),
		ActionTaken:   ActionCreateCategory,
		ActionPayload: map[string]any{"id": created.ID, "name": created.Name},
	}, nil
}

func (uc *InterpretCommandUseCase) existingCategoryReply(ctx context.Context, name string) (CommandResult, error) {
	categories, err := uc.categories.ListCategories(ctx)
	if err != nil {
		return CommandResult{}, fmt.Errorf("カテゴリ一覧の再取得に失敗しました: %w", err)
	}
	if existing, ok := NewCategoryResolver(categories, uc.categories).Resolve(name); ok {
		name = existing.Name
	}
	return reply(fmt.Sprintf("Category '%s' already exists.", name)), nil
}

// resolveCategoryID 見つからないカテゴリ名は捨てて未分類にする
func resolveCategoryID(cc commandContext, name string) string {
	if name == "" {
		return ""
	}
	category, ok := cc.resolver.Resolve(name)
	if !ok {
		log.Printf("カテゴリ %q が見つからないため未分類として扱います", name)
		return ""
	}
	return category.ID
}

// --- create_event ---

func (uc *InterpretCommandUseCase) createEvent(ctx context.Context, cc commandContext, cmd domain.CreateEventCommand) (CommandResult, error) {
	entities := cmd.Entities
	fields := domain.EventFields{
		Title:          entities.Title,
		CategoryID:     resolveCategoryID(cc, entities.CategoryName),
		Duration:       entities.Duration,
		RecurrenceRule: entities.RecurrenceRule,
	}
	duration := domain.ParseDuration(entities.Duration)
	loc := uc.settings.location()

	autoScheduled := entities.WantsAutoSchedule()
	if autoScheduled {
		events, err := uc.events.ListEvents(ctx, cc.userID)
		if err != nil {
			return CommandResult{}, fmt.Errorf("イベント一覧の取得に失敗しました: %w", err)
		}

		req := uc.slotRequest(cc, entities, duration)
		slot, found := domain.FindSlot(events, req, loc)
		if !found {
			last := req.EarliestDate.AddDays(req.SearchWindowDays - 1)
			return reply(fmt.Sprintf("I couldn't find a free %d-minute slot between %s and %s.",
				int(duration.Minutes()), req.EarliestDate, last)), nil
		}

		// 見つかった枠を正とし、部分的なエンティティは上書きする
		start, end := slot.Start.In(loc), slot.End.In(loc)
		fields.Date = civil.DateOf(start)
		fields.StartTime = civil.TimeOf(start)
		fields.EndTime = civil.TimeOf(end)
	} else {
		fields.Date = cc.today
		if entities.Date != nil {
			fields.Date = *entities.Date
		}
		switch {
		case entities.StartTime != nil && entities.EndTime != nil:
			fields.StartTime = *entities.StartTime
			fields.EndTime = *entities.EndTime
		case entities.StartTime != nil:
			fields.StartTime = *entities.StartTime
			fields.EndTime = domain.EndOfDaySpan(fields.Date, fields.StartTime, duration, loc)
		default:
			// 終了時刻だけの場合は所要時間から開始時刻を逆算する
			fields.EndTime = *entities.EndTime
			fields.StartTime = domain.StartOfDaySpan(fields.Date, fields.EndTime, duration, loc)
		}

		if err := domain.CheckTimes(fields.Date, fields.StartTime, fields.EndTime, loc); err != nil {
			return reply(fmt.Sprintf("The end time %s is not after the start time %s. What time should \"%s\" end?",
				domain.FormatClock(fields.EndTime), domain.FormatClock(fields.StartTime), fields.Title)), nil
		}
	}

	created, err := uc.events.CreateEvent(ctx, cc.userID, fields)
	if err != nil {
		return CommandResult{}, fmt.Errorf("イベントの作成に失敗しました: %w", err)
	}

	payload := eventPayload(created)
	payload["auto_scheduled"] = autoScheduled
	return CommandResult{
		ResponseText: fmt.Sprintf("Scheduled \"%s\" on %s from %s to %s.",
			created.Title, created.Date, domain.FormatClock(created.StartTime), formatEnd(created)),
		ActionTaken:   ActionCreateEvent,
		ActionPayload: payload,
	}, nil
}

// slotRequest 空き時間検索の期間を決める
//
// time_range_start → date → 今日 の順で開始日を決め、time_range_end があればそこまで、
// 日付だけの指定ならその1日、それ以外は設定の日数だけ検索する。
func (uc *InterpretCommandUseCase) slotRequest(cc commandContext, entities domain.EventEntities, duration time.Duration) domain.SlotRequest {
	earliest := cc.today
	switch {
	case entities.RangeStart != nil:
		earliest = *entities.RangeStart
	case entities.Date != nil:
		earliest = *entities.Date
	}

	days := uc.settings.searchWindowDays()
	switch {
	case entities.RangeEnd != nil:
		days = entities.RangeEnd.DaysSince(earliest) + 1
	case entities.RangeStart == nil && entities.Date != nil:
		days = 1
	}
	if days < 1 {
		days = 1
	}
	days = domain.ClampSearchWindowDays(days)

	return domain.SlotRequest{
		EarliestDate:     earliest,
		Duration:         duration,
		SearchWindowDays: days,
		WorkingHours:     uc.settings.workingHours(),
	}
}

// --- create_todo ---

func (uc *InterpretCommandUseCase) createTodo(ctx context.Context, cc commandContext, cmd domain.CreateTodoCommand) (CommandResult, error) {
	created, err := uc.todos.CreateTodo(ctx, cc.userID, domain.TodoFields{
		Title:             cmd.Title,
		Description:       cmd.Description,
		Priority:          cmd.Priority,
		DueDate:           cmd.DueDate,
		EstimatedDuration: cmd.EstimatedDuration,
		CategoryID:        resolveCategoryID(cc, cmd.CategoryName),
	})
	if err != nil {
		return CommandResult{}, fmt.Errorf("TODOの作成に失敗しました: %w", err)
	}

	text := fmt.Sprintf("Added \"%s\" to your to-do list.", created.Title)
	payload := map[string]any{
		"id":       created.ID,
		"title":    created.Title,
		"priority": string(created.Priority),
	}
	if created.DueDate != nil {
		text = fmt.Sprintf("Added \"%s\" to your to-do list (due %s).", created.Title, created.DueDate)
		payload["due_date"] = created.DueDate.String()
	}
	if created.CategoryID != "" {
		payload["category_id"] = created.CategoryID
	}

	return CommandResult{ResponseText: text, ActionTaken: ActionCreateTodo, ActionPayload: payload}, nil
}

// --- update_event / delete_event ---

// findTarget 検索条件に一致するイベントを探す。見つからなければ聞き返しの返答を返す
func (uc *InterpretCommandUseCase) findTarget(ctx context.Context, cc commandContext, criteria domain.SearchCriteria) (domain.Event, *CommandResult, error) {
	events, err := uc.events.ListEvents(ctx, cc.userID)
	if err != nil {
		return domain.Event{}, nil, fmt.Errorf("イベント一覧の取得に失敗しました: %w", err)
	}

	match := domain.MatchOccurrence(events, criteria, uc.settings.location())
	event, ok := match.Resolved()
	if !ok {
		clarification := reply(clarificationText(criteria))
		return domain.Event{}, &clarification, nil
	}
	if match.Status == domain.MatchAmbiguous {
		log.Printf("%q に一致するイベントが %d 件あるため先頭 (id=%s) を対象にします",
			criteria.TitleKeyword, len(match.Candidates), event.ID)
	}

	// 繰り返しの1回分だけを変更・削除する手段は無いので、日付指定のときは聞き返す
	if criteria.Date != nil && event.RecurrenceRule != "" {
		clarification := reply(fmt.Sprintf("\"%s\" on %s is part of a repeating series. Leave out the date to change or delete the whole series.",
			event.Title, criteria.Date))
		return domain.Event{}, &clarification, nil
	}
	return event, nil, nil
}

func clarificationText(criteria domain.SearchCriteria) string {
	if criteria.TitleKeyword == "" {
		return "Which event do you mean? Please tell me its title."
	}
	if criteria.Date != nil {
		return fmt.Sprintf("I couldn't find an event matching \"%s\" on %s. Could you be more specific?", criteria.TitleKeyword, criteria.Date)
	}
	return fmt.Sprintf("I couldn't find an event matching \"%s\". Could you be more specific?", criteria.TitleKeyword)
}

func (uc *InterpretCommandUseCase) deleteEvent(ctx context.Context, cc commandContext, cmd domain.DeleteEventCommand) (CommandResult, error) {
	target, clarification, err := uc.findTarget(ctx, cc, cmd.Criteria)
	if err != nil || clarification != nil {
		return derefResult(clarification), err
	}

	if err := uc.events.DeleteEvent(ctx, cc.userID, target.ID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return reply(clarificationText(cmd.Criteria)), nil
		}
		return CommandResult{}, fmt.Errorf("イベントの削除に失敗しました: %w", err)
	}

	return CommandResult{
		ResponseText: fmt.Sprintf("Deleted \"%s\" on %s at %s.", target.Title, target.Date, domain.FormatClock(target.StartTime)),
		ActionTaken:  ActionDeleteEvent,
		ActionPayload: map[string]any{
			"id":    target.ID,
			"title": target.Title,
			"date":  target.Date.String(),
		},
	}, nil
}

func (uc *InterpretCommandUseCase) updateEvent(ctx context.Context, cc commandContext, cmd domain.UpdateEventCommand) (CommandResult, error) {
	target, clarification, err := uc.findTarget(ctx, cc, cmd.Criteria)
	if err != nil || clarification != nil {
		return derefResult(clarification), err
	}

	patch := eventPatch(cc, cmd.Changes)
	if patch.IsEmpty() {
		return reply(fmt.Sprintf("What would you like to change about \"%s\"?", target.Title)), nil
	}
	patch, err = target.CompletePatch(patch, uc.settings.location())
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInterval) {
			return reply(fmt.Sprintf("That would make \"%s\" end before it starts. What time should it end?", target.Title)), nil
		}
		return CommandResult{}, err
	}

	updated, err := uc.events.UpdateEvent(ctx, cc.userID, target.ID, patch)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return reply(clarificationText(cmd.Criteria)), nil
		}
		return CommandResult{}, fmt.Errorf("イベントの更新に失敗しました: %w", err)
	}

	return CommandResult{
		ResponseText: fmt.Sprintf("Updated \"%s\": now on %s from %s to %s.",
			updated.Title, updated.Date, domain.FormatClock(updated.StartTime), formatEnd(updated)),
		ActionTaken:   ActionUpdateEvent,
		ActionPayload: eventPayload(updated),
	}, nil
}

// eventPatch nil でないエンティティだけを更新対象にする
func eventPatch(cc commandContext, changes domain.EventEntities) domain.EventPatch {
	var patch domain.EventPatch
	if changes.Title != "" {
		title := changes.Title
		patch.Title = &title
	}
	patch.Date = changes.Date
	patch.StartTime = changes.StartTime
	patch.EndTime = changes.EndTime
	if id := resolveCategoryID(cc, changes.CategoryName); id != "" {
		patch.CategoryID = &id
	}
	if changes.Duration != "" {
		duration := changes.Duration
		patch.Duration = &duration
	}
	return patch
}

func derefResult(r *CommandResult) CommandResult {
	if r == nil {
		return CommandResult{}
	}
	return *r
}

// --- query_calendar ---

func (uc *InterpretCommandUseCase) queryCalendar(ctx context.Context, cc commandContext, cmd domain.QueryCalendarCommand) (CommandResult, error) {
	from, to := cc.today, cc.today
	switch {
	case cmd.From != nil && cmd.To != nil:
		from, to = *cmd.From, *cmd.To
	case cmd.From != nil:
		from, to = *cmd.From, *cmd.From
	case cmd.To != nil:
		from, to = *cmd.To, *cmd.To
	}
	if to.Before(from) {
		from, to = to, from
	}

	events, err := uc.events.ListEvents(ctx, cc.userID)
	if err != nil {
		return CommandResult{}, fmt.Errorf("イベント一覧の取得に失敗しました: %w", err)
	}

	occurrences := domain.OccurrencesBetween(events, from, to, uc.settings.location())

	listed := make([]map[string]any, 0, len(occurrences))
	for _, e := range occurrences {
		listed = append(listed, eventPayload(e))
	}

	return CommandResult{
		ResponseText: renderSchedule(occurrences, from, to),
		ActionTaken:  ActionQueryCalendar,
		ActionPayload: map[string]any{
			"start_date": from.String(),
			"end_date":   to.String(),
			"count":      len(occurrences),
			"events":     listed,
		},
	}, nil
}
