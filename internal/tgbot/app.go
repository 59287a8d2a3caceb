package tgbot

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"matchplayer/internal/config"
	"matchplayer/internal/credentials"
	"matchplayer/internal/models"
	"matchplayer/internal/repository"
	"matchplayer/internal/util"
)

const (
	flowAPIKey = "api_key"

	roundActive = "active"
)

// botAPI is the part of *tgbotapi.BotAPI the app talks to.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Exporter copies tournament data to a spreadsheet. *sheets.Client
// implements it.
type Exporter interface {
	ExportStandings(ctx context.Context, t models.Tournament, standings []models.Standing) error
	ExportRounds(ctx context.Context, t models.Tournament, rounds []models.Round) error
}

type App struct {
	cfg    config.Config
	bot    botAPI
	repo   repository.TournamentRepository
	keys   credentials.Store
	sheets Exporter // nil when export is not configured
	logger *slog.Logger

	// per-user input flow, touched only from the Run loop
	state map[int64]userState
}

type userState struct {
	Flow string
	Step int
	Data map[string]string
}

func New(cfg config.Config, repo repository.TournamentRepository, keys credentials.Store, sheets Exporter, logger *slog.Logger) (*App, error) {
	b, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	b.Debug = false
	return newApp(cfg, b, repo, keys, sheets, logger), nil
}

func newApp(cfg config.Config, bot botAPI, repo repository.TournamentRepository, keys credentials.Store, sheets Exporter, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		cfg:    cfg,
		bot:    bot,
		repo:   repo,
		keys:   keys,
		sheets: sheets,
		logger: logger.With(slog.String("component", "tgbot")),
		state:  map[int64]userState{},
	}
}

func (a *App) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := a.bot.GetUpdatesChan(u)
	defer a.bot.StopReceivingUpdates()

	a.logger.Info("bot started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			a.handleUpdate(ctx, upd)
		}
	}
}

func (a *App) handleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		if err := a.handleMessage(ctx, upd.Message); err != nil {
			a.logger.Error("handle message", slog.Any("error", err), slog.Int("update_id", upd.UpdateID))
		}
	} else if upd.CallbackQuery != nil {
		if err := a.handleCallback(ctx, upd.CallbackQuery); err != nil {
			a.logger.Error("handle callback", slog.Any("error", err), slog.Int("update_id", upd.UpdateID))
		}
	}
}

func (a *App) SendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := a.bot.Send(msg)
	return err
}

func (a *App) isAdmin(tgID int64) bool {
	return a.cfg.AdminTGIDs[tgID]
}

// failed logs err and tells the user the action did not go through. The
// error text never reaches the chat.
func (a *App) failed(chatID int64, op string, err error) error {
	a.logger.Warn("operation failed", slog.String("op", op), slog.Int64("chat_id", chatID), slog.Any("error", err))
	return a.SendText(chatID, failedText)
}

// ---------- Message handling ----------

func (a *App) handleMessage(ctx context.Context, m *tgbotapi.Message) error {
	if m.From == nil {
		return nil
	}
	tgID := m.From.ID
	chatID := m.Chat.ID
	if !a.isAdmin(tgID) {
		return a.SendText(chatID, "Access denied.")
	}

	cmd, args := parseCommand(m.Text)
	if cmd == "" {
		if st := a.state[tgID]; st.Flow != "" {
			return a.handleFlowInput(ctx, m, st)
		}
		return a.SendText(chatID, helpText)
	}

	// any command abandons a pending flow
	delete(a.state, tgID)

	switch cmd {
	case "/start", "/help":
		return a.showStart(ctx, chatID)
	case "/key":
		if args == "" {
			a.state[tgID] = userState{Flow: flowAPIKey, Step: 1, Data: map[string]string{}}
			return a.SendText(chatID, "🔑 Send your Matchplay API key as the next message.")
		}
		return a.saveKey(ctx, m, args)
	case "/clearkey":
		if err := a.keys.Clear(ctx); err != nil {
			return a.failed(chatID, "clear key", err)
		}
		return a.SendText(chatID, "🗑 API key removed.")
	case "/tournaments":
		return a.showTournaments(ctx, chatID)
	case "/tournament":
		if args == "" {
			return a.SendText(chatID, "Usage: /tournament <tournament id>")
		}
		return a.showTournament(ctx, chatID, args)
	case "/standings":
		if args == "" {
			return a.SendText(chatID, "Usage: /standings <tournament id>")
		}
		return a.showStandings(ctx, chatID, args)
	case "/rounds":
		f := strings.Fields(args)
		if len(f) == 0 || len(f) > 2 {
			return a.SendText(chatID, "Usage: /rounds <tournament id> [status]")
		}
		status := ""
		if len(f) == 2 {
			status = f[1]
		}
		return a.showRounds(ctx, chatID, f[0], status)
	case "/round":
		if args == "" {
			return a.SendText(chatID, "Usage: /round <round id>")
		}
		return a.showRound(ctx, chatID, args)
	case "/suggest":
		roundID, s, err := parseSuggestion(args)
		if err != nil {
			return a.SendText(chatID, err.Error())
		}
		return a.suggest(ctx, chatID, roundID, s)
	case "/export":
		if args == "" {
			return a.SendText(chatID, "Usage: /export <tournament id>")
		}
		return a.export(ctx, chatID, args)
	default:
		return a.SendText(chatID, "Unknown command.\n\n"+helpText)
	}
}

func (a *App) handleFlowInput(ctx context.Context, m *tgbotapi.Message, st userState) error {
	switch st.Flow {
	case flowAPIKey:
		delete(a.state, m.From.ID)
		return a.saveKey(ctx, m, m.Text)
	default:
		delete(a.state, m.From.ID)
		return a.SendText(m.Chat.ID, "State reset. Send /start")
	}
}

func (a *App) saveKey(ctx context.Context, m *tgbotapi.Message, key string) error {
	chatID := m.Chat.ID
	// the key should not linger in chat history
	if _, err := a.bot.Request(tgbotapi.NewDeleteMessage(chatID, m.MessageID)); err != nil {
		a.logger.Warn("delete key message", slog.Any("error", err))
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return a.SendText(chatID, "The key is empty. Send /key to try again.")
	}
	if err := a.keys.Set(ctx, key); err != nil {
		return a.failed(chatID, "save key", err)
	}
	return a.SendText(chatID, "✅ API key saved: "+util.MaskKey(key))
}

// ---------- Callback handling ----------

func (a *App) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	tgID := q.From.ID
	data := q.Data

	// ack
	cb := tgbotapi.NewCallback(q.ID, "")
	_, _ = a.bot.Request(cb)

	if !a.isAdmin(tgID) {
		return a.SendText(tgID, "Access denied.")
	}

	prefix, id, found := strings.Cut(data, ":")
	if !found || id == "" {
		return nil
	}
	switch prefix {
	case "t":
		return a.showTournament(ctx, tgID, id)
	case "s":
		return a.showStandings(ctx, tgID, id)
	case "r":
		return a.showRounds(ctx, tgID, id, "")
	case "ra":
		return a.showRounds(ctx, tgID, id, roundActive)
	case "x":
		return a.export(ctx, tgID, id)
	case "c":
		return a.SendText(tgID, "📤 Standings CSV: "+a.exportURL(id))
	}
	return nil
}

// ---------- Screens ----------

func (a *App) showStart(ctx context.Context, chatID int64) error {
	keyLine := "🔑 API key: not set (use /key)"
	key, ok, err := a.keys.Get(ctx)
	if err != nil {
		a.logger.Warn("read api key", slog.Any("error", err))
		keyLine = "🔑 API key: unreadable (use /key to replace it)"
	} else if ok {
		keyLine = "🔑 API key: " + util.MaskKey(key)
	}
	return a.SendText(chatID, util.Greeting()+"\n\n"+keyLine+"\n\n"+helpText)
}

func (a *App) showTournaments(ctx context.Context, chatID int64) error {
	ts, err := a.repo.Tournaments(ctx).Get()
	if err != nil {
		return a.failed(chatID, "tournaments", err)
	}

	msg := tgbotapi.NewMessage(chatID, formatTournamentList(ts))
	if len(ts) > 0 {
		rows := [][]tgbotapi.InlineKeyboardButton{}
		for _, t := range ts {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(statusIcon(t.Status)+" "+t.Name, "t:"+t.ID),
			))
		}
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	_, err = a.bot.Send(msg)
	return err
}

func (a *App) showTournament(ctx context.Context, chatID int64, id string) error {
	t, err := a.repo.TournamentDetails(ctx, id).Get()
	if err != nil {
		return a.failed(chatID, "tournament details", err)
	}

	msg := tgbotapi.NewMessage(chatID, formatTournament(t))
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📊 Standings", "s:"+t.ID),
			tgbotapi.NewInlineKeyboardButtonData("🎯 Rounds", "r:"+t.ID),
			tgbotapi.NewInlineKeyboardButtonData("🟢 Active", "ra:"+t.ID),
		),
	}
	exportRow := []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("📤 CSV", "c:"+t.ID),
	}
	if a.sheets != nil {
		exportRow = append(exportRow, tgbotapi.NewInlineKeyboardButtonData("📑 To sheet", "x:"+t.ID))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(exportRow...))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	_, err = a.bot.Send(msg)
	return err
}

func (a *App) showStandings(ctx context.Context, chatID int64, tournamentID string) error {
	standings, err := a.repo.TournamentStandings(ctx, tournamentID).Get()
	if err != nil {
		return a.failed(chatID, "standings", err)
	}
	return a.SendText(chatID, formatStandings(standings))
}

func (a *App) showRounds(ctx context.Context, chatID int64, tournamentID, status string) error {
	rounds, err := a.repo.TournamentRounds(ctx, tournamentID, status).Get()
	if err != nil {
		return a.failed(chatID, "rounds", err)
	}
	return a.SendText(chatID, formatRounds(rounds))
}

func (a *App) showRound(ctx context.Context, chatID int64, roundID string) error {
	round, err := a.repo.RoundDetails(ctx, roundID).Get()
	if err != nil {
		return a.failed(chatID, "round details", err)
	}
	return a.SendText(chatID, formatRound(round))
}

// ---------- Actions ----------

func (a *App) suggest(ctx context.Context, chatID int64, roundID string, s models.ScoreSuggestion) error {
	resp, err := a.repo.SuggestScore(ctx, roundID, s).Get()
	if err != nil {
		return a.failed(chatID, "suggest score", err)
	}
	return a.SendText(chatID, formatSuggestion(resp))
}

func (a *App) export(ctx context.Context, chatID int64, tournamentID string) error {
	if a.sheets == nil {
		return a.SendText(chatID, "Spreadsheet export is not configured. Use the CSV link instead:\n"+a.exportURL(tournamentID))
	}
	t, err := a.repo.TournamentDetails(ctx, tournamentID).Get()
	if err != nil {
		return a.failed(chatID, "export", err)
	}
	standings, err := a.repo.TournamentStandings(ctx, tournamentID).Get()
	if err != nil {
		return a.failed(chatID, "export", err)
	}
	rounds, err := a.repo.TournamentRounds(ctx, tournamentID, "").Get()
	if err != nil {
		return a.failed(chatID, "export", err)
	}
	if err := a.sheets.ExportStandings(ctx, t, standings); err != nil {
		return a.failed(chatID, "export standings", err)
	}
	if err := a.sheets.ExportRounds(ctx, t, rounds); err != nil {
		return a.failed(chatID, "export rounds", err)
	}
	return a.SendText(chatID, fmt.Sprintf("✅ Exported %s: %d standings, %d rounds.", t.Name, len(standings), len(rounds)))
}

// exportURL builds the signed standings CSV link served by the local web UI.
func (a *App) exportURL(tournamentID string) string {
	base := a.cfg.BasePublicURL
	if base == "" {
		base = "http://" + a.cfg.HTTPAddr
	}
	q := url.Values{}
	q.Set("tournament_id", tournamentID)
	q.Set("token", util.ExportToken(a.cfg.ExportSecret, tournamentID))
	return base + "/export/standings.csv?" + q.Encode()
}
