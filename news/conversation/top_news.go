package conversation

import (
	"context"

	"github.com/m3rciful/newsbot/core/telegram/state"
	"github.com/m3rciful/newsbot/news/catalog"
	"github.com/m3rciful/newsbot/news/model"
	"github.com/m3rciful/newsbot/news/params"
)

const cmdTopNews = "top_news"

const StateTopSelectCountry state.State = "top_news:select_country"

func (e *Engine) topNewsFlow() flow {
	return flow{
		command:     cmdTopNews,
		description: "Top headlines; -c to pick the country",
		entry:       e.topNewsEntry,
		steps: map[state.State]step{
			StateTopSelectCountry: {accept: AcceptText, run: e.topNewsSelectCountry},
		},
	}
}

func countryKeyboard() Markup { return Markup{Choices: catalog.CountryNames()} }

func (e *Engine) topNewsEntry(ctx context.Context, sc *Scope) (state.State, error) {
	flags := params.ExtractFlags(sc.Event.Text, "c")
	if _, ok := flags["c"]; ok {
		if err := sc.SayWith(ctx, "Please choose a country:", countryKeyboard()); err != nil {
			return End, err
		}
		return StateTopSelectCountry, nil
	}
	return End, e.deliver(ctx, sc, e.topDelivery(model.DefaultCountry))
}

func (e *Engine) topNewsSelectCountry(ctx context.Context, sc *Scope) (state.State, error) {
	code, ok := catalog.CountryCode(sc.Input())
	if !ok {
		if err := sc.Say(ctx, "Invalid country. Defaulting to United States....."); err != nil {
			return End, err
		}
		code = model.DefaultCountry
	}
	return End, e.deliver(ctx, sc, e.topDelivery(code))
}
