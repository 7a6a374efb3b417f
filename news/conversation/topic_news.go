package conversation

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/m3rciful/newsbot/core/telegram/state"
	"github.com/m3rciful/newsbot/news/catalog"
	"github.com/m3rciful/newsbot/news/model"
	"github.com/m3rciful/newsbot/news/params"
	"github.com/m3rciful/newsbot/news/store"
)

const cmdTopicNews = "topic_news"

const (
	StateTopicSelectSaved   state.State = "topic_news:select_saved_topics"
	StateTopicCustomName    state.State = "topic_news:input_custom_topic_name"
	StateTopicCustomHash    state.State = "topic_news:input_custom_topic_hash"
	StateTopicCustomCountry state.State = "topic_news:input_custom_topic_country"
	StateTopicPromptSave    state.State = "topic_news:prompt_if_save_topic"
)

const choiceOther = "other"

func (e *Engine) topicNewsFlow() flow {
	return flow{
		command:     cmdTopicNews,
		description: "News for saved topics; -c to choose one, -f <days> to limit age",
		entry:       e.topicNewsEntry,
		steps: map[state.State]step{
			StateTopicSelectSaved:   {accept: AcceptButton, run: e.topicNewsSelectSaved},
			StateTopicCustomName:    {accept: AcceptText, run: e.topicNewsCustomName},
			StateTopicCustomHash:    {accept: AcceptText, run: e.topicNewsCustomHash},
			StateTopicCustomCountry: {accept: AcceptText, run: e.topicNewsCustomCountry},
			StateTopicPromptSave:    {accept: AcceptAny, run: e.topicNewsPromptSave},
		},
	}
}

func (e *Engine) topicNewsEntry(ctx context.Context, sc *Scope) (state.State, error) {
	flags := params.ExtractFlags(sc.Event.Text, "c", "f")
	days := 0
	if raw, ok := flags["f"]; ok {
		n, err := params.ParseDays(raw)
		if err != nil {
			return End, err
		}
		days = n
	}
	sc.Set(keyDays, days)

	topics, err := e.repo.ListTopics(ctx, sc.UserID)
	if err != nil {
		return End, err
	}

	if _, choose := flags["c"]; choose {
		buttons := append(topicButtons(topics), Button{Text: "Other", Data: choiceOther})
		return StateTopicSelectSaved, sc.SayWith(ctx, "Select a saved topic or choose Other to enter a new one:", Markup{Buttons: buttons})
	}
	if len(topics) == 0 {
		return StateTopicCustomName, sc.Say(ctx, "You don't have any saved topics. Please provide the topic name:")
	}
	for _, t := range topics {
		if err := e.deliver(ctx, sc, e.topicDelivery(t.TopicName, t.TopicHash, t.CountryCode, days)); err != nil {
			return End, err
		}
	}
	return End, nil
}

func (e *Engine) topicNewsSelectSaved(ctx context.Context, sc *Scope) (state.State, error) {
	if sc.Input() == choiceOther {
		return StateTopicCustomName, sc.Say(ctx, "Please provide the topic name:")
	}
	id, err := uuid.Parse(sc.Input())
	if err != nil {
		return StateTopicSelectSaved, invalid("Please select a topic from the list above.")
	}
	t, err := e.repo.Topic(ctx, sc.UserID, id)
	if errors.Is(err, store.ErrNotFound) {
		return StateTopicSelectSaved, invalid("That topic no longer exists. Please select another one.")
	}
	if err != nil {
		return End, err
	}
	sc.Set(keySelectedID, t.ID.String())
	return End, e.deliver(ctx, sc, e.topicDelivery(t.TopicName, t.TopicHash, t.CountryCode, sc.Int(keyDays)))
}

func (e *Engine) topicNewsCustomName(ctx context.Context, sc *Scope) (state.State, error) {
	name := sc.Input()
	if name == "" {
		return StateTopicCustomName, invalid("Topic name cannot be empty. Please provide the topic name:")
	}
	sc.Set(keyTopicName, name)
	return e.askHashOrCountry(ctx, sc, name, StateTopicCustomHash, StateTopicCustomCountry)
}

func (e *Engine) topicNewsCustomHash(ctx context.Context, sc *Scope) (state.State, error) {
	hash := sc.Input()
	if hash == "" {
		return StateTopicCustomHash, invalid("Topic hash cannot be empty. Please provide the topic hash:")
	}
	sc.Set(keyTopicHash, hash)
	return StateTopicCustomCountry, sc.SayWith(ctx, "Please choose a country:", countryKeyboard())
}

// Unlike the edit flow, an unknown country here falls back to the default without re-prompting.
func (e *Engine) topicNewsCustomCountry(ctx context.Context, sc *Scope) (state.State, error) {
	code, ok := catalog.CountryCode(sc.Input())
	if !ok {
		if err := sc.Say(ctx, "Invalid country. Defaulting to United States....."); err != nil {
			return End, err
		}
		code = model.DefaultCountry
	}
	sc.Set(keyCountry, code)

	name, hash := sc.String(keyTopicName), sc.String(keyTopicHash)
	if err := e.deliver(ctx, sc, e.topicDelivery(name, hash, code, sc.Int(keyDays))); err != nil {
		return End, err
	}
	return StateTopicPromptSave, sc.SayWith(ctx, "Would you like to save this topic?", Markup{Buttons: yesNo})
}

func (e *Engine) topicNewsPromptSave(ctx context.Context, sc *Scope) (state.State, error) {
	if !isYes(sc.Input()) {
		return End, sc.Say(ctx, "Topic not saved.")
	}
	_, err := e.repo.CreateTopic(ctx, model.TopicPreference{
		UserID:      sc.UserID,
		TopicName:   sc.String(keyTopicName),
		TopicHash:   sc.String(keyTopicHash),
		CountryCode: sc.String(keyCountry),
	})
	if err != nil {
		return End, err
	}
	return End, sc.Say(ctx, "Topic saved.")
}
