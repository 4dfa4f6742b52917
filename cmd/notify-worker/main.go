package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/pawhub/adoption-scheduling/internal/config"
	"github.com/pawhub/adoption-scheduling/internal/notify"
	redisclient "github.com/pawhub/adoption-scheduling/internal/redis"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("notify-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running notify worker in env=%s stream=%s", cfg.Env, cfg.NotifyStream)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Printf("error closing redis: %v", err)
		}
	}()
	log.Println("connected to Redis")

	// Actual delivery channels (email, push) are an external concern;
	// the worker terminates the stream into the console notifier.
	sink := notify.NewConsoleNotifier()
	consumer := notify.NewStreamConsumer(rdb, cfg.NotifyStream, cfg.WorkerBlock)

	err = consumer.Run(rootCtx, func(ctx context.Context, ev notify.Event) {
		switch ev.Kind {
		case notify.EventBooked:
			_ = sink.NotifyBooked(ctx, ev.SubjectID, ev.SlotStart, ev.AppointmentTypeName)
		case notify.EventCanceled:
			_ = sink.NotifyCanceled(ctx, ev.SubjectID, ev.SlotStart, ev.AppointmentTypeName)
		default:
			log.Printf("unknown notification kind %q", ev.Kind)
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("consumer error: %v", err)
	}

	log.Println("shutting down notify-worker")
}
