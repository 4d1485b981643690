package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/niksmo/storefront/config"
	"github.com/niksmo/storefront/internal/adapter"
	"github.com/niksmo/storefront/pkg/sigctx"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

const deletePolicy = "delete"

func main() {
	sigCtx, closeApp := sigctx.NotifyContext()
	defer closeApp()

	cfg := config.Load()

	tlsCfg, err := adapter.MakeTLSConfig(
		cfg.Broker.TLS.CA, cfg.Broker.TLS.Cert, cfg.Broker.TLS.Key,
	)
	if err != nil {
		printFail(err)
		return
	}

	cl := createClient(cfg.Broker.SeedBrokers, tlsCfg)
	defer cl.Close()

	topics := []string{cfg.Broker.Topics.Orders, cfg.Broker.Topics.SearchEvents}

	printStart(topics)
	defer printComplete(time.Now())

	err = makeTopics(
		sigCtx, cl,
		cfg.Broker.Topics.Partitions,
		cfg.Broker.Topics.ReplicationFactor,
		deletePolicy,
		topics...,
	)
	if err != nil {
		printFail(err)
		return
	}
}

func createClient(seedBrokers []string, tlsCfg *tls.Config) *kadm.Client {
	opts := []kgo.Opt{kgo.SeedBrokers(seedBrokers...)}
	if tlsCfg != nil {
		opts = append(opts, kgo.DialTLSConfig(tlsCfg))
	}
	cl, err := kadm.NewOptClient(opts...)
	if err != nil {
		panic(err) // develop mistake
	}
	return cl
}

func makeTopics(
	ctx context.Context,
	cl *kadm.Client,
	partitions int32,
	replicationFactor int16,
	cleanupPolicy string,
	topics ...string,
) error {
	minISR := minInSyncReplicas(replicationFactor)

	config := map[string]*string{
		"cleanup.policy":      &cleanupPolicy,
		"min.insync.replicas": &minISR,
	}

	responses, err := cl.CreateTopics(
		ctx,
		partitions,
		replicationFactor,
		config,
		topics...,
	)

	if err != nil {
		return err
	}

	var errs []error
	for _, res := range responses.Sorted() {
		err := res.Err
		if err != nil {
			if errors.Is(res.Err, kerr.TopicAlreadyExists) {
				fmt.Printf("topic: %q already exists\n", res.Topic)
			} else {
				errs = append(errs, err)
			}
			continue
		}
		fmt.Printf("topic: %q successfully created\n", res.Topic)
	}

	return errors.Join(errs...)
}

// minInSyncReplicas lets all-ISR produces survive one broker outage.
func minInSyncReplicas(replicationFactor int16) string {
	if replicationFactor <= 1 {
		return "1"
	}
	return fmt.Sprint(replicationFactor - 1)
}

func printStart(topics []string) {
	var b strings.Builder
	for _, t := range topics {
		fmt.Fprintf(&b, "\t- %q\n", t)
	}
	fmt.Printf("initializing topics...\n%s\n", b.String())
}

func printComplete(start time.Time) {
	fmt.Printf("\ncomplete in %s\n", time.Since(start))
}

func printFail(err error) {
	fmt.Printf("failed to create topics: \n%s\n", err)
}
