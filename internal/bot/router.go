package bot

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v3"

	"github.com/weichenlin/twchip/internal/market"
	"github.com/weichenlin/twchip/internal/report"
	"github.com/weichenlin/twchip/pkg/logger"
	"github.com/weichenlin/twchip/pkg/redis"
)

const noDataReply = "查無資料"

const usageText = `可用指令:
籌碼快報 - 最新完整快報
籌碼快報 大盤 - 加權指數與台指期
籌碼快報 法人 - 三大法人買賣超
籌碼快報 期貨 - 期貨與選擇權籌碼
籌碼快報 散戶 - 散戶指標
籌碼快報 20260828 - 指定日期快報
幫助 - 顯示本說明`

// RecordStore is the read side of the repository the router needs.
type RecordStore interface {
	GetByDate(ctx context.Context, date market.TradeDate) (*market.ChipRecord, error)
	GetLatest(ctx context.Context) (*market.ChipRecord, error)
}

// Router turns inbound chat text into report replies.
type Router struct {
	store RecordStore
	cache *redis.Cache
	log   zerolog.Logger
}

// New builds a Router. cache may be nil to skip reply caching.
func New(store RecordStore, cache *redis.Cache) *Router {
	return &Router{
		store: store,
		cache: cache,
		log:   logger.With("bot"),
	}
}

// Attach registers the router on the bot's text handler.
func (r *Router) Attach(b *tele.Bot) {
	b.Handle(tele.OnText, func(c tele.Context) error {
		reply := r.Reply(context.Background(), c.Text())
		if reply == "" {
			return nil
		}
		return c.Send(reply)
	})
}

// Reply maps one inbound message to its reply text. Unrecognized
// messages get an empty reply so group chatter is left alone.
func (r *Router) Reply(ctx context.Context, text string) string {
	cmd, arg := splitCommand(text)

	switch cmd {
	case "幫助", "說明", "help":
		return usageText
	case "籌碼快報", "最新籌碼快報":
		return r.report(ctx, arg)
	default:
		return ""
	}
}

func (r *Router) report(ctx context.Context, arg string) string {
	view := report.ViewFull
	var date market.TradeDate

	if arg != "" {
		if v, ok := viewKeyword(arg); ok {
			view = v
		} else {
			compact := strings.NewReplacer("/", "", "-", "").Replace(arg)
			d, err := market.ParseTradeDate(compact)
			if err != nil {
				return usageText
			}
			date = d
		}
	}

	if r.cache != nil && date != "" {
		var cached string
		if found, _ := r.cache.Get(ctx, redis.ReportKey(date.String(), string(view)), &cached); found {
			return cached
		}
	}

	rec, err := r.lookup(ctx, date)
	if err != nil {
		if errors.Is(err, report.ErrNotFound) {
			return noDataReply
		}
		r.log.Error().Err(err).Str("date", string(date)).Msg("Record lookup failed")
		return noDataReply
	}

	text := report.Format(rec, view)
	if r.cache != nil {
		_ = r.cache.Set(ctx, redis.ReportKey(rec.TradeDate.String(), string(view)), text, redis.TTLDaily)
	}
	return text
}

func (r *Router) lookup(ctx context.Context, date market.TradeDate) (*market.ChipRecord, error) {
	if date == "" {
		return r.store.GetLatest(ctx)
	}
	return r.store.GetByDate(ctx, date)
}

// viewKeyword maps a Chinese view keyword (or the view name itself) to a view.
func viewKeyword(s string) (report.View, bool) {
	switch s {
	case "大盤", "指數":
		return report.ViewTaiex, true
	case "法人":
		return report.ViewInstitutional, true
	case "期貨", "選擇權":
		return report.ViewFutures, true
	case "散戶":
		return report.ViewRetail, true
	case "完整":
		return report.ViewFull, true
	}
	if v := report.View(s); report.ValidView(v) {
		return v, true
	}
	return "", false
}

func splitCommand(text string) (cmd, arg string) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return "", ""
	}
	cmd = fields[0]
	if len(fields) > 1 {
		arg = fields[1]
	}
	return cmd, arg
}
