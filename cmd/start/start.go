package start

import (
	"context"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"

	"github.com/easel-cloud/easel/api"
	"github.com/easel-cloud/easel/api/rest/bind"
	"github.com/easel-cloud/easel/internal/event"
	"github.com/easel-cloud/easel/internal/generation"
	"github.com/easel-cloud/easel/internal/janitor"
	"github.com/easel-cloud/easel/internal/metrics"
	"github.com/easel-cloud/easel/internal/progress"
	"github.com/easel-cloud/easel/internal/queue"
	"github.com/easel-cloud/easel/internal/storage"
	"github.com/easel-cloud/easel/pkg/db"
	"github.com/easel-cloud/easel/pkg/env"
	"github.com/easel-cloud/easel/pkg/log"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const (
	usage   = "start"
	short   = "Start an easel API instance"
	long    = "This command starts an easel API instance"
	example = "easel start"
)

var (
	// Cmd is the start command.
	Cmd = &cobra.Command{
		Use:        usage,
		Short:      short,
		Long:       long,
		Aliases:    []string{"s"},
		SuggestFor: []string{"launch", "boot", "up", "run", "begin"},
		Example:    example,
		RunE:       start,
	}
)

func start(cmd *cobra.Command, args []string) error {
	signalChan := make(chan os.Signal, 1)

	go func() {
		for s := range signalChan {
			switch s {
			case syscall.SIGUSR1:
				log.Info("dumping stack traces due to SIGUSR1 signal")
				if profile := pprof.Lookup("goroutine"); profile != nil {
					if err := profile.WriteTo(os.Stdout, 1); err != nil {
						log.Error("write goroutine profile", "error", err)
					}
				}
			case syscall.SIGINT:
				log.Info("gracefully shutting down due to SIGINT signal")
				os.Exit(0)
			}
		}
	}()

	signal.Notify(signalChan, syscall.SIGUSR1, syscall.SIGINT)

	metrics.Register()

	log.Info("migrating database")
	if err := db.Migrate(); err != nil {
		log.Fatal("database migration failure", "error", err)
	}

	vars := env.Variables()

	conn, err := amqp.Dial(vars.AmqpURL)
	if err != nil {
		log.Fatal("queue connection failure", "error", err)
	}
	defer conn.Close()

	publisher, err := queue.NewPublisher(conn, vars.QueueExchange, vars.QueueName)
	if err != nil {
		log.Fatal("queue topology failure", "error", err)
	}
	defer publisher.Close()

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

	j, err := janitor.New(store, vars.JanitorSchedule, vars.JobTimeout)
	if err != nil {
		log.Fatal("janitor configuration failure", "error", err)
	}
	j.Start()
	defer j.Stop()

	bus := event.New()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     vars.RedisAddr,
		Password: vars.RedisPassword,
		DB:       vars.RedisDB,
	})
	defer redisClient.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	go func() {
		log.Info("bridging progress broadcasts onto the event stream")
		if err := progress.Listen(ctx, redisClient, bus); err != nil && ctx.Err() == nil {
			log.Error("progress listener exited", "error", err)
		}
	}()

	log.Info("spinning up api")
	return api.Start(bind.Dependencies{
		Queue:   publisher,
		Bus:     bus,
		Objects: objects,
	})
}
