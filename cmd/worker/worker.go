package worker

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/easel-cloud/easel/internal/event"
	"github.com/easel-cloud/easel/internal/generation"
	"github.com/easel-cloud/easel/internal/generator"
	"github.com/easel-cloud/easel/internal/metrics"
	"github.com/easel-cloud/easel/internal/progress"
	"github.com/easel-cloud/easel/internal/queue"
	"github.com/easel-cloud/easel/internal/storage"
	workerpool "github.com/easel-cloud/easel/internal/worker"
	"github.com/easel-cloud/easel/pkg/db"
	"github.com/easel-cloud/easel/pkg/env"
	"github.com/easel-cloud/easel/pkg/log"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const (
	usage   = "worker"
	short   = "Start an easel generation worker"
	long    = "This command starts an easel worker consuming generation jobs"
	example = "easel worker"
)

var (
	// Cmd is the worker command.
	Cmd = &cobra.Command{
		Use:        usage,
		Short:      short,
		Long:       long,
		Aliases:    []string{"w"},
		SuggestFor: []string{"consume", "process"},
		Example:    example,
		RunE:       run,
	}
)

// registry holds the generators compiled into this worker build.
// Provider packages register themselves here from cmd wiring.
var registry = generator.NewRegistry()

// Registry exposes the worker's generator registry so provider
// packages can be wired in by the embedding build.
func Registry() *generator.Registry {
	return registry
}

func run(cmd *cobra.Command, args []string) error {
	vars := env.Variables()

	metrics.Register()

	var (
		manifest *generator.Manifest
		err      error
	)
	if vars.GeneratorManifest != "" {
		if manifest, err = generator.LoadManifest(vars.GeneratorManifest); err != nil {
			log.Fatal("generator manifest failure", "error", err)
		}
	}

	conn, err := amqp.Dial(vars.AmqpURL)
	if err != nil {
		log.Fatal("queue connection failure", "error", err)
	}
	defer conn.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     vars.RedisAddr,
		Password: vars.RedisPassword,
		DB:       vars.RedisDB,
	})
	defer redisClient.Close()

	objects, err := storage.NewMinioStore(storage.Config{
		Endpoint:  vars.StorageEndpoint,
		AccessKey: vars.StorageAccessKey,
		SecretKey: vars.StorageSecretKey,
		Bucket:    vars.StorageBucket,
		Secure:    vars.StorageSecure,
	})
	if err != nil {
		log.Fatal("object storage failure", "error", err)
	}

	store := generation.NewStore(db.Connection())
	publisher := progress.NewPublisher(
		store,
		progress.NewRedisBroadcaster(redisClient),
		event.New(),
	)

	runner := workerpool.NewRunner(store, registry, manifest, objects, publisher, vars.JobTimeout)
	pool := workerpool.NewPool(vars.WorkerConcurrency)

	consumer, err := queue.NewConsumer(conn, queue.ConsumerConfig{
		Exchange:    vars.QueueExchange,
		Queue:       vars.QueueName,
		MaxAttempts: vars.JobMaxAttempts,
		BackoffBase: vars.RetryBackoffBase,
		BackoffCap:  vars.RetryBackoffCap,
	}, pool, runner.Run, runner.Fail)
	if err != nil {
		log.Fatal("queue consumer failure", "error", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalChan
		log.Info("gracefully shutting down due to signal")
		cancel()
	}()

	log.Info("consuming generation jobs",
		"queue", vars.QueueName,
		"concurrency", pool.Size(),
		"generators", registry.Names())

	return consumer.Start(ctx)
}
