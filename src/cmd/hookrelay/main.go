// Command hookrelay is the composition root: it wires config, storage,
// the delivery core, and the REST surface together behind a small set of
// cobra subcommands, the way the teacher's own cmd entry point does.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/casapps/hookrelay/src/internal/alerting"
	"github.com/casapps/hookrelay/src/internal/breaker"
	"github.com/casapps/hookrelay/src/internal/classifier"
	"github.com/casapps/hookrelay/src/internal/config"
	"github.com/casapps/hookrelay/src/internal/delivery"
	"github.com/casapps/hookrelay/src/internal/models"
	"github.com/casapps/hookrelay/src/internal/queue"
	"github.com/casapps/hookrelay/src/internal/ratelimit"
	"github.com/casapps/hookrelay/src/internal/repository"
	"github.com/casapps/hookrelay/src/internal/retrypolicy"
	"github.com/casapps/hookrelay/src/internal/server"
	"github.com/casapps/hookrelay/src/internal/worker"
)

func main() {
	root := &cobra.Command{
		Use:   "hookrelay",
		Short: "hookrelay delivers webhook events with retry, circuit breaking, and error classification",
	}

	root.AddCommand(serveCmd(), migrateCmd(), resumeCmd(), breakerCmd())

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func loadConfig() (*viper.Viper, error) {
	return config.Load()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the API server and delivery worker pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			db, err := repository.Open(cfg)
			if err != nil {
				return err
			}
			if err := repository.AutoMigrate(db); err != nil {
				return err
			}

			webhooks := repository.NewWebhookRepository(db)
			events := repository.NewEventRepository(db)
			classifications := repository.NewErrorClassificationRepository(db)

			q := buildQueue(cfg)
			client := delivery.New(delivery.Config{
				ConnectTimeout: time.Duration(cfg.GetInt("http.connectTimeoutMs")) * time.Millisecond,
				ReadTimeout:    time.Duration(cfg.GetInt("http.readTimeoutMs")) * time.Millisecond,
			})
			retry := retrypolicy.New(retrypolicy.Config{
				BaseDelayMs: cfg.GetInt("retry.baseDelayMs"),
				MaxDelayMs:  cfg.GetInt("retry.maxDelayMs"),
				MaxRetries:  cfg.GetInt("retry.maxRetries"),
			})
			cb := breaker.New(breaker.Config{
				FailureThreshold:  cfg.GetInt("circuit.failureThreshold"),
				CooldownSeconds:   cfg.GetInt("circuit.cooldownSeconds"),
				HalfOpenTestLimit: cfg.GetInt("circuit.halfOpenTestLimit"),
			})
			engine := classifier.NewRuleEngine(classifier.DefaultRules())

			var advisor *classifier.Advisor
			var limiter classifier.AdvisorLimiter
			if cfg.GetBool("advisor.enabled") {
				advisor = classifier.NewAdvisor(classifier.AdvisorConfig{
					URL:                 cfg.GetString("advisor.url"),
					Enabled:             true,
					Timeout:             time.Duration(cfg.GetInt("advisor.timeoutMs")) * time.Millisecond,
					FallbackEnabled:     cfg.GetBool("advisor.fallbackEnabled"),
					ConfidenceThreshold: cfg.GetFloat64("advisor.confidenceThreshold"),
				})
				limiter = ratelimit.New(cfg.GetInt("advisor.rateLimitPerMinute"))
			}
			cl := classifier.New(advisor, engine, limiter)

			notifier := alerting.New(alerting.Config{
				Enabled:    cfg.GetBool("email.enabled"),
				Host:       cfg.GetString("email.smtp.host"),
				Port:       cfg.GetInt("email.smtp.port"),
				Username:   cfg.GetString("email.smtp.username"),
				Password:   cfg.GetString("email.smtp.password"),
				From:       cfg.GetString("email.from"),
				To:         cfg.GetStringSlice("email.to"),
				SkipVerify: cfg.GetBool("email.smtp.skip_verify"),
			})

			pool := worker.New(worker.Config{
				WorkerThreads:   cfg.GetInt("delivery.workerThreads"),
				PollInterval:    time.Duration(cfg.GetInt("delivery.pollIntervalMs")) * time.Millisecond,
				PauseWindow:     time.Duration(cfg.GetInt("pause.windowSeconds")) * time.Second,
				CircuitCooldown: time.Duration(cfg.GetInt("circuit.cooldownSeconds")) * time.Second,
			}, q, webhooks, events, classifications, client, retry, cb, cl, notifier)

			srv := server.New(cfg, webhooks, events, classifications, q, cb)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			pool.Start(ctx)

			go func() {
				addr := fmt.Sprintf("%s:%d", cfg.GetString("server.host"), cfg.GetInt("server.port"))
				if err := srv.Start(addr); err != nil {
					log.Printf("server stopped: %v", err)
				}
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh

			log.Println("shutting down")
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			_ = srv.Shutdown(shutdownCtx)

			drainCtx, drainCancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer drainCancel()
			pool.Stop(drainCtx)
			cancel()

			return nil
		},
	}
}

func buildQueue(cfg *viper.Viper) queue.Queue {
	if cfg.GetString("delivery.queueBackend") != "redis" {
		return queue.NewInProcessQueue()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.GetString("delivery.redis.addr"),
		Password: cfg.GetString("delivery.redis.password"),
		DB:       cfg.GetInt("delivery.redis.db"),
	})
	return queue.NewRedisQueue(client, cfg.GetString("delivery.redis.key"))
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := repository.Open(cfg)
			if err != nil {
				return err
			}
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return repository.Migrate(sqlDB, cfg.GetString("database.type"))
		},
	}
}

func resumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume <event-id>",
		Short: "move a paused or failed event back onto the delivery queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid event id: %w", err)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := repository.Open(cfg)
			if err != nil {
				return err
			}
			events := repository.NewEventRepository(db)
			q := buildQueue(cfg)

			ctx := context.Background()
			event, err := events.Get(ctx, id)
			if err != nil {
				return err
			}
			if event.Status != models.EventPaused && event.Status != models.EventFailure {
				return fmt.Errorf("event %s is %s: only a PAUSED or FAILURE event can be resumed", id, event.Status)
			}
			event.Status = models.EventPending
			event.NextAttemptAt = nil
			if err := events.Update(ctx, event); err != nil {
				return err
			}
			q.Enqueue(event)
			fmt.Printf("event %s resumed\n", id)
			return nil
		},
	}
	return cmd
}

func breakerCmd() *cobra.Command {
	parent := &cobra.Command{Use: "breaker", Short: "operator controls for a webhook's circuit breaker"}

	reset := &cobra.Command{
		Use:   "reset <webhook-id>",
		Short: "force a webhook's circuit breaker back to CLOSED",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid webhook id: %w", err)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := repository.Open(cfg)
			if err != nil {
				return err
			}
			webhooks := repository.NewWebhookRepository(db)
			cb := breaker.New(breaker.Config{
				FailureThreshold:  cfg.GetInt("circuit.failureThreshold"),
				CooldownSeconds:   cfg.GetInt("circuit.cooldownSeconds"),
				HalfOpenTestLimit: cfg.GetInt("circuit.halfOpenTestLimit"),
			})

			ctx := context.Background()
			webhook, err := webhooks.Get(ctx, id)
			if err != nil {
				return err
			}
			cb.Reset(webhook)
			if err := webhooks.Update(ctx, webhook); err != nil {
				return err
			}
			fmt.Printf("webhook %s breaker reset\n", id)
			return nil
		},
	}
	parent.AddCommand(reset)
	return parent
}
