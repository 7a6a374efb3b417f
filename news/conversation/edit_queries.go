package conversation

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/m3rciful/newsbot/core/telegram/state"
	"github.com/m3rciful/newsbot/news/store"
)

const cmdEditQueries = "edit_saved_queries"

const (
	StateQueriesSelectAction state.State = "edit_queries:select_action"
	StateQueriesAdd          state.State = "edit_queries:add_query"
	StateQueriesDelete       state.State = "edit_queries:delete_query"
	StateQueriesClear        state.State = "edit_queries:clear_queries"
)

func (e *Engine) editQueriesFlow() flow {
	return flow{
		command:     cmdEditQueries,
		description: "Add, delete or clear saved search queries",
		entry:       e.editQueriesEntry,
		steps: map[state.State]step{
			StateQueriesSelectAction: {accept: AcceptButton, run: e.editQueriesSelectAction},
			StateQueriesAdd:          {accept: AcceptText, run: e.editQueriesAdd},
			StateQueriesDelete:       {accept: AcceptButton, run: e.editQueriesDelete},
			StateQueriesClear:        {accept: AcceptText, run: e.editQueriesClear},
		},
	}
}

func queryActions() Markup {
	return Markup{Buttons: []Button{
		{Text: "Add Query", Data: actionAdd},
		{Text: "Delete Query", Data: actionDelete},
		{Text: "Clear Queries", Data: actionClear},
	}}
}

func (e *Engine) editQueriesEntry(ctx context.Context, sc *Scope) (state.State, error) {
	if err := sc.Say(ctx, "Here are your current saved queries..."); err != nil {
		return End, err
	}
	if err := e.sayQueries(ctx, sc); err != nil {
		return End, err
	}
	if err := sc.SayWith(ctx, "Choose an option:", queryActions()); err != nil {
		return End, err
	}
	return StateQueriesSelectAction, nil
}

func (e *Engine) editQueriesSelectAction(ctx context.Context, sc *Scope) (state.State, error) {
	switch sc.Input() {
	case actionAdd:
		return StateQueriesAdd, sc.Say(ctx, "Please provide the query to be saved:")
	case actionDelete:
		queries, err := e.repo.ListQueries(ctx, sc.UserID)
		if err != nil {
			return End, err
		}
		if len(queries) == 0 {
			return End, sc.Say(ctx, "No user queries found...")
		}
		return StateQueriesDelete, sc.SayWith(ctx, "Select a query to delete:", Markup{Buttons: queryButtons(queries)})
	case actionClear:
		return StateQueriesClear, sc.Say(ctx, "Type CONFIRM to confirm clearing all saved queries.")
	default:
		return StateQueriesSelectAction, invalidWith("Please choose one of the options:", queryActions())
	}
}

func (e *Engine) editQueriesAdd(ctx context.Context, sc *Scope) (state.State, error) {
	q := sc.Input()
	if q == "" {
		return StateQueriesAdd, invalid("Query cannot be empty. Please provide the query to be saved:")
	}
	if _, err := e.repo.CreateQuery(ctx, sc.UserID, q); err != nil {
		return End, err
	}
	if err := sc.Say(ctx, "Query added successfully. Here is the updated saved queries..."); err != nil {
		return End, err
	}
	return End, e.sayQueries(ctx, sc)
}

func (e *Engine) editQueriesDelete(ctx context.Context, sc *Scope) (state.State, error) {
	id, err := uuid.Parse(sc.Input())
	if err != nil {
		return StateQueriesDelete, invalid("Please select a query from the list above.")
	}
	err = e.repo.DeleteQuery(ctx, sc.UserID, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if err := sc.Say(ctx, "That query no longer exists."); err != nil {
			return End, err
		}
	case err != nil:
		return End, err
	default:
		if err := sc.Say(ctx, "Query deleted successfully."); err != nil {
			return End, err
		}
	}
	if err := sc.Say(ctx, "Here is the updated saved queries..."); err != nil {
		return End, err
	}
	return End, e.sayQueries(ctx, sc)
}

func (e *Engine) editQueriesClear(ctx context.Context, sc *Scope) (state.State, error) {
	if sc.Input() != confirmWord {
		return StateQueriesClear, invalid("Action not confirmed. Type 'CONFIRM' to proceed.")
	}
	if _, err := e.repo.ClearQueries(ctx, sc.UserID); err != nil {
		return End, err
	}
	return End, sc.Say(ctx, "All queries cleared.")
}
