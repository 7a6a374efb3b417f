package conversation

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/m3rciful/newsbot/core/telegram/state"
	"github.com/m3rciful/newsbot/news/params"
	"github.com/m3rciful/newsbot/news/source"
	"github.com/m3rciful/newsbot/news/store"
)

const cmdQueryNews = "query_news"

const (
	StateQuerySelectSaved state.State = "query_news:select_saved_queries"
	StateQueryCustom      state.State = "query_news:input_custom_query"
	StateQueryTimeFilter  state.State = "query_news:time_filter_choice"
	StateQueryWhen        state.State = "query_news:input_when"
	StateQueryFromDate    state.State = "query_news:input_from_date"
	StateQueryToDate      state.State = "query_news:input_to_date"
	StateQueryPromptSave  state.State = "query_news:prompt_save_query"
)

// query types
const (
	queryCustom      = "custom"
	querySavedAll    = "saved_all"
	querySavedSingle = "saved_single"
)

// time filter choices
const (
	filterWhen    = "when"
	filterFromTo  = "from_to"
	filterDefault = "default"

	defaultWhen = "1d"
)

func (e *Engine) queryNewsFlow() flow {
	return flow{
		command:     cmdQueryNews,
		description: "News for saved search queries; -c to choose one",
		entry:       e.queryNewsEntry,
		steps: map[state.State]step{
			StateQuerySelectSaved: {accept: AcceptButton, run: e.queryNewsSelectSaved},
			StateQueryCustom:      {accept: AcceptText, run: e.queryNewsCustom},
			StateQueryTimeFilter:  {accept: AcceptButton, run: e.queryNewsTimeFilter},
			StateQueryWhen:        {accept: AcceptText, run: e.queryNewsWhen},
			StateQueryFromDate:    {accept: AcceptText, run: e.queryNewsFromDate},
			StateQueryToDate:      {accept: AcceptText, run: e.queryNewsToDate},
			StateQueryPromptSave:  {accept: AcceptAny, run: e.queryNewsPromptSave},
		},
	}
}

func timeFilterButtons() Markup {
	return Markup{Buttons: []Button{
		{Text: "Relative time (e.g. 12h, 5d)", Data: filterWhen},
		{Text: "Date range", Data: filterFromTo},
		{Text: "Default (past day)", Data: filterDefault},
	}}
}

func (e *Engine) askTimeFilter(ctx context.Context, sc *Scope) (state.State, error) {
	return StateQueryTimeFilter, sc.SayWith(ctx, "How should the results be limited in time?", timeFilterButtons())
}

func (e *Engine) queryNewsEntry(ctx context.Context, sc *Scope) (state.State, error) {
	flags := params.ExtractFlags(sc.Event.Text, "c")
	queries, err := e.repo.ListQueries(ctx, sc.UserID)
	if err != nil {
		return End, err
	}
	if _, choose := flags["c"]; choose {
		buttons := append(queryButtons(queries), Button{Text: "Other", Data: choiceOther})
		return StateQuerySelectSaved, sc.SayWith(ctx, "Select a saved query or choose Other to enter a new one:", Markup{Buttons: buttons})
	}
	if len(queries) == 0 {
		sc.Set(keyQueryType, queryCustom)
		return StateQueryCustom, sc.Say(ctx, "You don't have any saved queries. Please provide a search query:")
	}
	sc.Set(keyQueryType, querySavedAll)
	return e.askTimeFilter(ctx, sc)
}

func (e *Engine) queryNewsSelectSaved(ctx context.Context, sc *Scope) (state.State, error) {
	if sc.Input() == choiceOther {
		sc.Set(keyQueryType, queryCustom)
		return StateQueryCustom, sc.Say(ctx, "Please provide a search query:")
	}
	id, err := uuid.Parse(sc.Input())
	if err != nil {
		return StateQuerySelectSaved, invalid("Please select a query from the list above.")
	}
	q, err := e.repo.Query(ctx, sc.UserID, id)
	if errors.Is(err, store.ErrNotFound) {
		return StateQuerySelectSaved, invalid("That query no longer exists. Please select another one.")
	}
	if err != nil {
		return End, err
	}
	sc.Set(keyQueryType, querySavedSingle)
	sc.Set(keySelectedID, q.ID.String())
	sc.Set(keyQuery, q.Query)
	return e.askTimeFilter(ctx, sc)
}

func (e *Engine) queryNewsCustom(ctx context.Context, sc *Scope) (state.State, error) {
	q := sc.Input()
	if q == "" {
		return StateQueryCustom, invalid("Query cannot be empty. Please provide a search query:")
	}
	sc.Set(keyQuery, q)
	return e.askTimeFilter(ctx, sc)
}

func (e *Engine) queryNewsTimeFilter(ctx context.Context, sc *Scope) (state.State, error) {
	choice := sc.Input()
	switch choice {
	case filterWhen:
		sc.Set(keyFilter, choice)
		return StateQueryWhen, sc.Say(ctx, "Enter a relative time such as 12h, 5d or 2m:")
	case filterFromTo:
		sc.Set(keyFilter, choice)
		return StateQueryFromDate, sc.Say(ctx, "Enter the start date (YYYY-MM-DD):")
	case filterDefault:
		sc.Set(keyFilter, choice)
		sc.Set(keyWhen, defaultWhen)
		return e.queryNewsExecute(ctx, sc)
	default:
		return StateQueryTimeFilter, invalidWith("Please choose one of the options:", timeFilterButtons())
	}
}

func (e *Engine) queryNewsWhen(ctx context.Context, sc *Scope) (state.State, error) {
	when := sc.Input()
	if err := params.ValidateWhen(when); err != nil {
		return StateQueryWhen, invalid("Invalid format. Use a number followed by h, d or m, e.g. 12h, 5d or 2m:")
	}
	sc.Set(keyWhen, when)
	return e.queryNewsExecute(ctx, sc)
}

func (e *Engine) queryNewsFromDate(ctx context.Context, sc *Scope) (state.State, error) {
	from := sc.Input()
	if _, err := params.ParseDate(from); err != nil {
		return StateQueryFromDate, invalid("Invalid date. Please use the format YYYY-MM-DD:")
	}
	sc.Set(keyFromDate, from)
	return StateQueryToDate, sc.Say(ctx, "Enter the end date (YYYY-MM-DD):")
}

func (e *Engine) queryNewsToDate(ctx context.Context, sc *Scope) (state.State, error) {
	to := sc.Input()
	if _, err := params.ParseDate(to); err != nil {
		return StateQueryToDate, invalid("Invalid date. Please use the format YYYY-MM-DD:")
	}
	err := params.ValidateRange(sc.String(keyFromDate), to)
	if errors.Is(err, params.ErrDateRange) {
		sc.Unset(keyFromDate)
		return StateQueryFromDate, sc.Say(ctx, "The start date must not be after the end date. Please enter the start date (YYYY-MM-DD):")
	}
	if err != nil {
		return End, err
	}
	sc.Set(keyToDate, to)
	return e.queryNewsExecute(ctx, sc)
}

func (e *Engine) queryNewsExecute(ctx context.Context, sc *Scope) (state.State, error) {
	filter := source.Filter{
		When: sc.String(keyWhen),
		From: sc.String(keyFromDate),
		To:   sc.String(keyToDate),
	}
	switch sc.String(keyQueryType) {
	case querySavedAll:
		queries, err := e.repo.ListQueries(ctx, sc.UserID)
		if err != nil {
			return End, err
		}
		for _, q := range queries {
			if err := e.deliver(ctx, sc, e.queryDelivery(q.Query, filter)); err != nil {
				return End, err
			}
		}
		return End, nil
	case querySavedSingle:
		return End, e.deliver(ctx, sc, e.queryDelivery(sc.String(keyQuery), filter))
	default:
		if err := e.deliver(ctx, sc, e.queryDelivery(sc.String(keyQuery), filter)); err != nil {
			return End, err
		}
		return StateQueryPromptSave, sc.SayWith(ctx, "Would you like to save this query?", Markup{Buttons: yesNo})
	}
}

func (e *Engine) queryNewsPromptSave(ctx context.Context, sc *Scope) (state.State, error) {
	if !isYes(sc.Input()) {
		return End, sc.Say(ctx, "Query not saved.")
	}
	if _, err := e.repo.CreateQuery(ctx, sc.UserID, sc.String(keyQuery)); err != nil {
		return End, err
	}
	return End, sc.Say(ctx, "Query saved.")
}
