// Command preorder-events tails the pre-order Kafka topics and prints one JSON line per event.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ms-preorder/internal/config"
	"ms-preorder/internal/kafka"
	"ms-preorder/internal/logger"

	"github.com/joho/godotenv"
)

func main() {
	logger := logger.NewLogger()
	defer logger.Close()

	_ = godotenv.Load()
	cfg := config.Load()

	group := flag.String("group", "preorder-events-tail", "consumer group id")
	list := flag.Bool("list", false, "list existing topics and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *list {
		topics, err := kafka.ListTopics(ctx, cfg.Kafka.Brokers)
		if err != nil {
			logger.Fatal("KAFKA", err.Error())
		}
		for _, t := range topics {
			fmt.Println(t)
		}
		return
	}

	topics := []string{cfg.Kafka.Topics.PreOrderCreated, cfg.Kafka.Topics.PreOrderResumed, cfg.Kafka.Topics.CartSaved}
	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, topics, *group, logger)
	defer consumer.Close()

	enc := json.NewEncoder(os.Stdout)
	err := consumer.Start(ctx, func(e kafka.Envelope) error {
		return enc.Encode(e)
	})
	if err != nil {
		logger.Fatal("KAFKA", err.Error())
	}
}
