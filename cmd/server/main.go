package main

import (
	"context"
	"crypto/subtle"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"sealed_socket/internal/config"
	"sealed_socket/internal/repository/audit"
	"sealed_socket/internal/service/chat"
	redisSvc "sealed_socket/internal/service/redis"
	"sealed_socket/internal/service/server"
	"sealed_socket/internal/utils/log"
)

func main() {
	configPath := pflag.StringP("config", "c", "server.yaml", "path to the server configuration")
	logLevel := pflag.String("log-level", "", "override log.level from the configuration")
	pflag.Parse()

	cfg, err := config.LoadServer(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if err := log.Init(cfg.Log.Level, cfg.Log.Development); err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []server.Option

	if cfg.Audit.MongoURI != "" {
		mongoDBClient, err := initMongo(cfg.Audit.MongoURI)
		if err != nil {
			log.Fatal("connect mongo failed", zap.Error(err))
		}
		defer mongoDBClient.Disconnect(context.Background())

		db := mongoDBClient.Database(cfg.Audit.Database)
		opts = append(opts, server.WithAudit(audit.NewAuditRepo(db, cfg.Audit.Collection)))
	}

	if cfg.Presence.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Presence.RedisAddr,
			Password: cfg.Presence.Password,
			DB:       cfg.Presence.DB,
		})
		redis := redisSvc.NewRedis(rdb)
		defer redis.Close()

		if err := redis.Ping(ctx); err != nil {
			log.Fatal("connect redis failed", zap.Error(err))
		}
		opts = append(opts, server.WithPresence(server.NewRedisPresence(redis, cfg.Presence.TTL)))
	}

	srv, err := server.New(*cfg, opts...)
	if err != nil {
		log.Fatal("init server failed", zap.Error(err))
	}
	srv.SetConnectVerification(tokenVerifier(cfg.Tokens))
	chat.NewRelay().Attach(srv)

	if err := srv.Listen(ctx); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
	log.Info("server stopped")
}

// tokenVerifier accepts the configured tokens, or any token when none are
// configured.
func tokenVerifier(tokens []string) server.VerifyFunc {
	return func(_ context.Context, s *server.Socket) (bool, error) {
		if len(tokens) == 0 {
			return true, nil
		}
		got := []byte(s.Token())
		for _, t := range tokens {
			if subtle.ConstantTimeCompare(got, []byte(t)) == 1 {
				return true, nil
			}
		}
		return false, nil
	}
}

func initMongo(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	return client, client.Ping(ctx, nil)
}
