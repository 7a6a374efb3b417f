package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/m3rciful/newsbot/core/telegram/state"
	"github.com/m3rciful/newsbot/news/catalog"
	"github.com/m3rciful/newsbot/news/model"
	"github.com/m3rciful/newsbot/news/store"
)

const cmdEditTopics = "edit_saved_topics"

const (
	StateTopicsSelectAction state.State = "edit_topics:select_action"
	StateTopicsAddName      state.State = "edit_topics:add_topic_name"
	StateTopicsAddHash      state.State = "edit_topics:add_topic_hash"
	StateTopicsAddCountry   state.State = "edit_topics:add_topic_country"
	StateTopicsDelete       state.State = "edit_topics:delete_topic"
	StateTopicsClear        state.State = "edit_topics:clear_topics"
)

const (
	actionAdd    = "add"
	actionDelete = "delete"
	actionClear  = "clear"

	confirmWord = "CONFIRM"
)

func (e *Engine) editTopicsFlow() flow {
	return flow{
		command:     cmdEditTopics,
		description: "Add, delete or clear saved topics",
		entry:       e.editTopicsEntry,
		steps: map[state.State]step{
			StateTopicsSelectAction: {accept: AcceptButton, run: e.editTopicsSelectAction},
			StateTopicsAddName:      {accept: AcceptText, run: e.editTopicsAddName},
			StateTopicsAddHash:      {accept: AcceptText, run: e.editTopicsAddHash},
			StateTopicsAddCountry:   {accept: AcceptText, run: e.editTopicsAddCountry},
			StateTopicsDelete:       {accept: AcceptButton, run: e.editTopicsDelete},
			StateTopicsClear:        {accept: AcceptText, run: e.editTopicsClear},
		},
	}
}

func topicActions() Markup {
	return Markup{Buttons: []Button{
		{Text: "Add Topic", Data: actionAdd},
		{Text: "Delete Topic", Data: actionDelete},
		{Text: "Clear Topics", Data: actionClear},
	}}
}

func (e *Engine) editTopicsEntry(ctx context.Context, sc *Scope) (state.State, error) {
	if err := sc.Say(ctx, "Here are your current saved topics..."); err != nil {
		return End, err
	}
	if err := e.sayTopics(ctx, sc); err != nil {
		return End, err
	}
	if err := sc.SayWith(ctx, "Choose an option:", topicActions()); err != nil {
		return End, err
	}
	return StateTopicsSelectAction, nil
}

func (e *Engine) editTopicsSelectAction(ctx context.Context, sc *Scope) (state.State, error) {
	switch sc.Input() {
	case actionAdd:
		return StateTopicsAddName, sc.Say(ctx, addTopicPrompt())
	case actionDelete:
		topics, err := e.repo.ListTopics(ctx, sc.UserID)
		if err != nil {
			return End, err
		}
		if len(topics) == 0 {
			return End, sc.Say(ctx, "No user topics found...")
		}
		return StateTopicsDelete, sc.SayWith(ctx, "Select a topic to delete:", Markup{Buttons: topicButtons(topics)})
	case actionClear:
		return StateTopicsClear, sc.Say(ctx, "Type CONFIRM to confirm clearing all user topics.")
	default:
		return StateTopicsSelectAction, invalidWith("Please choose one of the options:", topicActions())
	}
}

func addTopicPrompt() string {
	return fmt.Sprintf("Please provide the topic name (public topics: %s):", strings.Join(catalog.PublicTopics(), ", "))
}

func (e *Engine) editTopicsAddName(ctx context.Context, sc *Scope) (state.State, error) {
	name := sc.Input()
	if name == "" {
		return StateTopicsAddName, invalid("Topic name cannot be empty. Please provide the topic name:")
	}
	exists, err := e.repo.TopicNameExists(ctx, sc.UserID, name)
	if err != nil {
		return End, err
	}
	if exists {
		return StateTopicsAddName, invalid(fmt.Sprintf("Topic '%s' already exists. Please choose a different topic name.", name))
	}
	sc.Set(keyTopicName, name)
	return e.askHashOrCountry(ctx, sc, name, StateTopicsAddHash, StateTopicsAddCountry)
}

// askHashOrCountry fills the hash of a public topic and asks for the country,
// otherwise asks for the hash.
func (e *Engine) askHashOrCountry(ctx context.Context, sc *Scope, name string, hashState, countryState state.State) (state.State, error) {
	if hash, ok := catalog.PublicTopicHash(name); ok {
		sc.Set(keyTopicHash, hash)
		if err := sc.Say(ctx, fmt.Sprintf("Topic '%s' is a public topic. Topic hash is added automatically.", name)); err != nil {
			return End, err
		}
		return countryState, sc.SayWith(ctx, "Please choose a country:", countryKeyboard())
	}
	return hashState, sc.Say(ctx, "Got it! Now provide the topic hash:")
}

func (e *Engine) editTopicsAddHash(ctx context.Context, sc *Scope) (state.State, error) {
	hash := sc.Input()
	if hash == "" {
		return StateTopicsAddHash, invalid("Topic hash cannot be empty. Please provide the topic hash:")
	}
	sc.Set(keyTopicHash, hash)
	return StateTopicsAddCountry, sc.SayWith(ctx, "Please choose a country:", countryKeyboard())
}

func (e *Engine) editTopicsAddCountry(ctx context.Context, sc *Scope) (state.State, error) {
	code, ok := catalog.CountryCode(sc.Input())
	if !ok {
		return StateTopicsAddCountry, invalidWith("Invalid choice. Please choose a country:", countryKeyboard())
	}
	_, err := e.repo.CreateTopic(ctx, model.TopicPreference{
		UserID:      sc.UserID,
		TopicName:   sc.String(keyTopicName),
		TopicHash:   sc.String(keyTopicHash),
		CountryCode: code,
	})
	if err != nil {
		return End, err
	}
	if err := sc.SayWith(ctx, "Topic added successfully. Here is the updated saved topics...", Markup{Remove: true}); err != nil {
		return End, err
	}
	return End, e.sayTopics(ctx, sc)
}

func (e *Engine) editTopicsDelete(ctx context.Context, sc *Scope) (state.State, error) {
	id, err := uuid.Parse(sc.Input())
	if err != nil {
		return StateTopicsDelete, invalid("Please select a topic from the list above.")
	}
	err = e.repo.DeleteTopic(ctx, sc.UserID, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if err := sc.Say(ctx, "That topic no longer exists."); err != nil {
			return End, err
		}
	case err != nil:
		return End, err
	default:
		if err := sc.Say(ctx, "Topic deleted successfully."); err != nil {
			return End, err
		}
	}
	if err := sc.Say(ctx, "Here is the updated saved topics..."); err != nil {
		return End, err
	}
	return End, e.sayTopics(ctx, sc)
}

func (e *Engine) editTopicsClear(ctx context.Context, sc *Scope) (state.State, error) {
	if sc.Input() != confirmWord {
		return StateTopicsClear, invalid("Action not confirmed. Type 'CONFIRM' to proceed.")
	}
	if _, err := e.repo.ClearTopics(ctx, sc.UserID); err != nil {
		return End, err
	}
	return End, sc.Say(ctx, "All topics cleared.")
}
