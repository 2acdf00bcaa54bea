// Package app assembles the SLR BOOST bot from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	botconfig "github.com/m3rciful/slrbot/bot/config"
	"github.com/m3rciful/slrbot/bot/conversation"
	"github.com/m3rciful/slrbot/bot/order"
	"github.com/m3rciful/slrbot/bot/transport"
	corecmd "github.com/m3rciful/slrbot/core/cmd"
	"github.com/m3rciful/slrbot/core/logger"
	tg "github.com/m3rciful/slrbot/core/telegram"
	"github.com/m3rciful/slrbot/core/telegram/state"
)

// App owns the order store, the conversation engine and the Telegram adapter.
type App struct {
	cfg     *botconfig.Config
	storage *Storage
	seq     *order.Sequencer
	engine  *conversation.Engine
	adapter *transport.Adapter

	mu        sync.Mutex
	stopSweep context.CancelFunc
}

// New opens the store and builds the bot components.
func New(ctx context.Context, cfg *botconfig.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	storage, err := OpenStorage(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}

	seq := order.NewSequencer(storage.Store, order.SequencerOptions{Location: cfg.Location()})
	engine := conversation.New(conversation.Options{
		Sequencer: seq,
		Sessions:  conversation.NewSessions(state.Options{IdleTTL: cfg.Session.IdleTTL}),
		Location:  cfg.Location(),
	})
	adapter, err := transport.New(transport.Options{
		Engine:           engine,
		Orders:           seq,
		BackOfficeChatID: cfg.BackOffice.ChatID,
		ShopURL:          cfg.Shop.URL,
		RecentLimit:      cfg.Orders.RecentLimit,
		Location:         cfg.Location(),
	})
	if err != nil {
		_ = storage.Close()
		return nil, err
	}
	return &App{cfg: cfg, storage: storage, seq: seq, engine: engine, adapter: adapter}, nil
}

// Bootstrap adapts New to the command runner.
func Bootstrap(ctx context.Context, carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*botconfig.Config)
	if !ok {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}
	return New(ctx, cfg, Options{})
}

// Engine returns the conversation engine.
func (a *App) Engine() *conversation.Engine {
	return a.engine
}

// Sequencer returns the order sequencer.
func (a *App) Sequencer() *order.Sequencer {
	return a.seq
}

// TelegramRunOptions wires the adapter routes into the Telegram runtime.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	reg := tg.NewRegistry()
	routes, err := a.adapter.Routes(reg, a.cfg.Telegram.AdminID)
	if err != nil {
		return tg.RunOptions{}, fmt.Errorf("app: register routes: %w", err)
	}
	core := a.cfg.CoreConfig()
	return tg.RunOptions{
		Config:            core,
		Registry:          reg,
		DispatcherOptions: tg.DispatcherOptionsFrom(core.Sender),
		Middlewares:       tg.DefaultMiddlewares(core, nil),
		Routes:            routes,
		OnStart: func(ctx context.Context, _ tg.Runtime) error {
			a.startSweeper(ctx)
			logger.Info(ctx, "app", "orders.ready",
				slog.String("driver", a.cfg.Storage.Driver),
				slog.Int64("backoffice_chat", a.cfg.BackOffice.ChatID),
				slog.Duration("session_ttl", a.cfg.Session.IdleTTL),
			)
			return nil
		},
		OnStop: func(context.Context, tg.Runtime) error {
			a.stopSweeper()
			return nil
		},
	}, nil
}

// Close stops background work and releases the store.
func (a *App) Close() error {
	a.stopSweeper()
	return a.storage.Close()
}

func (a *App) startSweeper(ctx context.Context) {
	if a.cfg.Session.IdleTTL <= 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopSweep != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	a.stopSweep = cancel
	go a.engine.Sessions().RunSweeper(ctx, a.cfg.Session.SweepInterval)
}

func (a *App) stopSweeper() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopSweep != nil {
		a.stopSweep()
		a.stopSweep = nil
	}
}
