package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/newsbot/core/logger"
	"github.com/m3rciful/newsbot/news/store"
)

const (
	cmdStart          = "start"
	cmdCancel         = "cancel"
	cmdDisplayTopics  = "display_user_topics"
	cmdDisplayQueries = "display_user_queries"
	cmdSearchHelp     = "search_query_help"
)

const unknownName = "Unknown"

func (e *Engine) registerBuiltins() {
	e.commands[cmdStart] = command{description: "Register with the bot", run: e.start, public: true}
	e.Command(cmdDisplayTopics, "List saved topics", func(ctx context.Context, sc *Scope) error {
		return e.sayTopics(ctx, sc)
	})
	e.Command(cmdDisplayQueries, "List saved search queries", func(ctx context.Context, sc *Scope) error {
		return e.sayQueries(ctx, sc)
	})
	e.Command(cmdSearchHelp, "Search operators cheat sheet", func(ctx context.Context, sc *Scope) error {
		if err := sc.Say(ctx, "Here is a quick cheatsheet on operators to use to refine your search queries input for this bot..."); err != nil {
			return err
		}
		return sc.Say(ctx, searchOperators)
	})
}

// start registers the sender or refreshes the stored name.
func (e *Engine) start(ctx context.Context, sc *Scope) error {
	name := strings.TrimSpace(sc.Event.Name)
	if name == "" {
		name = unknownName
	}
	ext := externalID(sc.Event.SenderID)

	u, err := e.repo.UserByExternalID(ctx, ext)
	switch {
	case errors.Is(err, store.ErrNotFound):
		u, err = e.repo.CreateUser(ctx, ext, name)
		if err != nil {
			return err
		}
		e.sessions.SetTemp(sc.Event.SenderID, keyUserID, u.ID)
		logger.Info(ctx, logger.CompConv, "user.created", slog.String("user", u.ID.String()))
		return sc.Say(ctx, fmt.Sprintf("Hello, %s! You have been added to the database.", name))
	case err != nil:
		return err
	}

	if u.Name != name {
		if err := e.repo.UpdateUserName(ctx, u.ID, name); err != nil {
			return err
		}
		logger.Debug(ctx, logger.CompConv, "user.renamed", slog.String("user", u.ID.String()))
	}
	e.sessions.SetTemp(sc.Event.SenderID, keyUserID, u.ID)
	return sc.Say(ctx, fmt.Sprintf("Hello there, %s!", name))
}

const searchOperators = `Search operators:
"exact phrase" - match the phrase exactly
word1 OR word2 - match either word
-word - exclude results containing word
intitle:word - word must appear in the headline
allintitle:word1 word2 - every word must appear in the headline
site:example.com - only results from that site
when:7d - only the last 7 days (h, d or m)
after:2024-01-01 before:2024-02-01 - only within the date range

Saved queries are sent as typed, so operators can be stored with them.`
