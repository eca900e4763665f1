package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/darianrosebrook/minebot/internal/api"
	"github.com/darianrosebrook/minebot/internal/config"
	"github.com/darianrosebrook/minebot/internal/engine"
	"github.com/darianrosebrook/minebot/internal/events"
	"github.com/darianrosebrook/minebot/internal/mqtt"
	"github.com/darianrosebrook/minebot/internal/storage/postgres"
	"github.com/darianrosebrook/minebot/internal/version"
)

const monitorCheckInterval = 10 * time.Second

func main() {
	configPath := flag.String("config", "config/bot.yaml", "path to bot.yaml")
	executorsPath := flag.String("executors", "config/executors.yaml", "path to executors.yaml")
	planPath := flag.String("plan", "", "optional task plan to apply at startup")
	tick := flag.Duration("tick", time.Second, "scheduler dispatch interval")
	flag.Parse()

	botCfg, err := config.LoadBotConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load bot.yaml: %v", err)
	}
	execCfg, err := config.LoadExecutorsConfig(*executorsPath)
	if err != nil {
		log.Fatalf("failed to load executors.yaml: %v", err)
	}

	api.InitAuth()
	api.InitMetrics()
	api.SetBotName(botCfg.Bot.Name)

	pg, err := postgres.New(botCfg.Bot.ID)
	if err != nil {
		events.Emit("warning", "system.error", "event log persistence unavailable", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		events.SetPostgresClient(pg)
		api.SetPostgresConnected(true)
		defer pg.Close()
	}

	registry := mqtt.NewExecutorRegistry()
	monitor := mqtt.NewMonitor(registry, execCfg.Executors, 0)
	client := mqtt.NewClient("minebot-" + botCfg.Bot.ID)

	eng := engine.New(engine.NewMQTTDispatcher(client, registry, monitor))
	api.SetEngine(eng)

	if *planPath != "" {
		plan, err := engine.LoadPlan(*planPath)
		if err != nil {
			log.Fatalf("failed to load plan %s: %v", *planPath, err)
		}
		if err := eng.ApplyPlan(plan); err != nil {
			log.Fatalf("failed to apply plan %s: %v", *planPath, err)
		}
	}

	if pg != nil {
		state, restored, err := engine.RestoreFromEvents(pg, engine.DefaultRestoreLimit)
		if err != nil {
			events.Emit("warning", "system.error", "event replay failed", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			eng.ApplyRestoredState(state)
			engine.EmitStartupRestore(restored, botCfg.Bot.ID)
		}
	}

	if err := client.Connect(); err != nil {
		events.Emit("warning", "system.error", "mqtt broker unreachable", map[string]interface{}{
			"broker": mqtt.BrokerURL(),
			"error":  err.Error(),
		})
	} else {
		api.SetMQTTConnected(true)
	}

	subscriber := mqtt.NewTaskSubscriber(client, botCfg.Bot.ID, monitor, eng)
	if client.IsConnected() {
		if err := subscriber.SubscribeAll(); err != nil {
			events.Emit("error", "system.error", "task topic subscription failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	monitor.Start(monitorCheckInterval)

	api.SetEngineReady(true)

	hostname, _ := os.Hostname()
	events.Emit("info", "system.startup", "minebot starting", map[string]interface{}{
		"service":  "minebot",
		"bot":      botCfg.Bot.ID,
		"version":  version.Version,
		"hostname": hostname,
		"pid":      os.Getpid(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return api.ListenAndServe(ctx, botCfg.APIPort())
	})
	g.Go(func() error {
		eng.Run(ctx.Done(), *tick)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Printf("shutting down: %v", err)
	}

	monitor.Stop()
	client.Disconnect()
	events.Emit("info", "system.shutdown", "minebot stopping", map[string]interface{}{
		"bot": botCfg.Bot.ID,
	})
}
