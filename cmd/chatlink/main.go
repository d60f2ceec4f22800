package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"chatlink/api"
	"chatlink/auth"
	"chatlink/client"
	"chatlink/config"
	"chatlink/connect"
	"chatlink/db"
	"chatlink/domain"
	"chatlink/tools"
	"github.com/sirupsen/logrus"
)

func main() {
	var room, user, nickname, setToken string
	var logout bool
	flag.StringVar(&room, "room", "", "chat room id, defaults to client-base.roomId or the first room")
	flag.StringVar(&user, "user", "", "user id, defaults to the token's claims")
	flag.StringVar(&nickname, "nickname", "", "nickname, defaults to the token's claims")
	flag.StringVar(&setToken, "set-token", "", "store a bearer token and exit")
	flag.BoolVar(&logout, "logout", false, "forget the stored token and exit")
	flag.Parse()

	config.Init()
	conf := config.Conf
	setupLogging(conf.Client.ClientBase)

	store, err := tokenStore(conf.Storage)
	if err != nil {
		logrus.Fatalf("token store err:%s", err.Error())
	}
	key := conf.Storage.StorageBase.TokenKey
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	switch {
	case logout:
		if err := store.Delete(ctx, key); err != nil {
			logrus.Fatalf("delete token err:%s", err.Error())
		}
		return
	case setToken != "":
		if err := store.Set(ctx, key, setToken); err != nil {
			logrus.Fatalf("save token err:%s", err.Error())
		}
		return
	}

	if seed := conf.Storage.StorageBase.Token; seed != "" {
		if err := store.Set(ctx, key, seed); err != nil {
			logrus.Warnf("seed token err:%s", err.Error())
		}
	}
	tokens := auth.FromStore(store, key)

	opts := client.Options{
		UserId:   domain.ID(firstOf(user, conf.Client.ClientBase.UserId)),
		Nickname: firstOf(nickname, conf.Client.ClientBase.Nickname),
		RoomId:   domain.ID(firstOf(room, conf.Client.ClientBase.RoomId)),
	}
	if opts.UserId == "" || opts.Nickname == "" {
		fillIdentity(ctx, tokens, &opts)
	}

	apiBase := conf.Api.ApiBase
	chatApi := api.New(apiBase.BaseUrl, tokens, api.WithTimeout(apiBase.Timeout()))

	messenger, err := connect.CreateClient(tokens, connect.FromConfig(conf.Connect.ConnectBase))
	if err != nil {
		logrus.Fatalf("create messaging client err:%s", err.Error())
	}

	if err := client.New(chatApi, messenger, opts).Run(ctx); err != nil {
		logrus.Errorf("client exit err:%s", err.Error())
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging(base config.ClientBase) {
	level, err := logrus.ParseLevel(base.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if base.LogFile == "" {
		return
	}
	// the TUI owns the terminal
	if err := os.MkdirAll(filepath.Dir(base.LogFile), 0o700); err != nil {
		logrus.Warnf("log dir err:%s", err.Error())
		return
	}
	f, err := os.OpenFile(base.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		logrus.Warnf("open log file err:%s", err.Error())
		return
	}
	logrus.SetOutput(f)
}

func tokenStore(conf config.StorageConfig) (auth.Store, error) {
	switch conf.StorageBase.Driver {
	case "memory":
		return auth.NewMemoryStore(), nil
	case "redis":
		r := conf.StorageRedis
		return auth.NewRedisStore(tools.RedisOption{
			Address:  r.RedisAddress,
			Password: r.RedisPassword,
			Db:       r.Db,
		}, r.Prefix), nil
	case "sqlite", "":
		s, err := db.NewStorage(conf.StorageBase.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", conf.StorageBase.Driver)
	}
}

func fillIdentity(ctx context.Context, tokens auth.TokenSource, opts *client.Options) {
	tok, err := tokens.Token(ctx)
	if err != nil || tok == "" {
		return
	}
	id, err := auth.ParseIdentity(tok)
	if err != nil {
		logrus.Warnf("read identity from token err:%s", err.Error())
		return
	}
	if opts.UserId == "" {
		opts.UserId = domain.ID(id.UserID)
	}
	if opts.Nickname == "" {
		opts.Nickname = id.Nickname
	}
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
