// Worker consumes filing events from Kafka and pushes them to Loki.
// Set KAFKA_BROKERS, EFILE_EVENTS_TOPIC, KAFKA_GROUP_ID, and LOKI_URL.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"eviction-tracker/efiling/internal/config"
	"eviction-tracker/efiling/internal/telemetry/loki"
	"eviction-tracker/efiling/internal/telemetry/producer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	brokers := cfg.KafkaBrokersList()
	if len(brokers) == 0 {
		log.Fatal("worker: KAFKA_BROKERS is required")
	}
	if cfg.LokiURL == "" {
		log.Fatal("worker: LOKI_URL is required")
	}

	consumer, err := producer.NewKafkaConsumer(brokers, cfg.EventsTopic, cfg.KafkaGroupID)
	if err != nil {
		log.Fatalf("worker: %v", err)
	}
	defer consumer.Close()
	client := loki.NewClient(cfg.LokiURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("worker: shutting down...")
		cancel()
	}()

	log.Printf("worker: consuming from %s (group %s), pushing to %s", cfg.EventsTopic, cfg.KafkaGroupID, cfg.LokiURL)

	err = consumer.Run(ctx, func(ctx context.Context, msg kafka.Message) error {
		pushCtx, pushCancel := context.WithTimeout(ctx, 10*time.Second)
		defer pushCancel()
		return client.PushEventJSON(pushCtx, msg.Value)
	})
	if err != nil {
		log.Fatalf("worker: %v", err)
	}
	log.Println("worker: stopped")
}
