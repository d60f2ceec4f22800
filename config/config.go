package config

import (
	"errors"
	"os"
	"path"
	"runtime"
	"strings"
	"sync"
	"time"

	"chatlink/sockjs"
	"github.com/spf13/viper"
)

var once sync.Once
var Conf *Config

const (
	DefaultApiBaseUrl = "http://localhost/api/chat"
	DefaultConnectUrl = "http://localhost/ws"
)

// toml files merged from config/<RUN_MODE>/, later files win
var configFiles = []string{"client", "connect", "storage"}

type Config struct {
	Api     ApiConfig
	Connect ConnectConfig
	Storage StorageConfig
	Client  ClientConfig
}

func getCurDir() string {
	_, filename, _, _ := runtime.Caller(1)
	aPath := strings.Split(filename, "/")
	dir := strings.Join(aPath[:len(aPath)-1], "/")
	return dir
}

func GetMode() string {
	env := os.Getenv("RUN_MODE")
	if env == "" {
		return "dev"
	}
	return env
}

// Init loads config/<RUN_MODE> into Conf once. CHAT_CONFIG_DIR replaces the
// source directory when the binary runs somewhere else.
func Init() {
	once.Do(func() {
		dir := os.Getenv("CHAT_CONFIG_DIR")
		if dir == "" {
			dir = getCurDir()
		}
		conf, err := Load(path.Join(dir, GetMode()))
		if err != nil {
			panic(err)
		}
		Conf = conf
	})
}

// Load reads every known toml file found in dir on top of the defaults, then
// applies environment overrides. Missing files are not an error.
func Load(dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("toml")
	v.AddConfigPath(dir)
	for _, name := range configFiles {
		v.SetConfigName(name)
		if err := v.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) {
				continue
			}
			return nil, err
		}
	}
	bindEnv(v)

	conf := new(Config)
	for _, section := range []any{&conf.Api, &conf.Connect, &conf.Storage, &conf.Client} {
		if err := v.Unmarshal(section); err != nil {
			return nil, err
		}
	}
	return conf, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api-base.baseUrl", DefaultApiBaseUrl)
	v.SetDefault("api-base.timeoutMs", 0)

	v.SetDefault("connect-base.url", DefaultConnectUrl)
	v.SetDefault("connect-base.transports", append([]string(nil), sockjs.DefaultTransports...))
	v.SetDefault("connect-base.reconnectDelayMs", 5000)
	v.SetDefault("connect-base.heartbeatIncomingMs", 4000)
	v.SetDefault("connect-base.heartbeatOutgoingMs", 4000)
	v.SetDefault("connect-base.openTimeoutMs", 5000)

	v.SetDefault("storage-base.driver", "sqlite")
	v.SetDefault("storage-base.path", "./data/chatlink.db")
	v.SetDefault("storage-base.tokenKey", "token")
	v.SetDefault("storage-redis.redisAddress", "127.0.0.1:6379")
	v.SetDefault("storage-redis.prefix", "chatlink_")

	v.SetDefault("client-base.logLevel", "info")
	v.SetDefault("client-base.logFile", "./data/chatlink.log")
}

func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("api-base.baseUrl", "CHAT_API_URL")
	_ = v.BindEnv("connect-base.url", "CHAT_WS_URL")
	_ = v.BindEnv("storage-base.token", "CHAT_TOKEN")
	_ = v.BindEnv("client-base.logLevel", "CHAT_LOG_LEVEL")
}

type ApiBase struct {
	BaseUrl   string `mapstructure:"baseUrl"`
	TimeoutMs int    `mapstructure:"timeoutMs"`
}

func (b ApiBase) Timeout() time.Duration { return ms(b.TimeoutMs) }

type ApiConfig struct {
	ApiBase ApiBase `mapstructure:"api-base"`
}

type ConnectBase struct {
	Url                 string   `mapstructure:"url"`
	Transports          []string `mapstructure:"transports"`
	ReconnectDelayMs    int      `mapstructure:"reconnectDelayMs"`
	HeartbeatIncomingMs int      `mapstructure:"heartbeatIncomingMs"`
	HeartbeatOutgoingMs int      `mapstructure:"heartbeatOutgoingMs"`
	OpenTimeoutMs       int      `mapstructure:"openTimeoutMs"`
}

func (b ConnectBase) ReconnectDelay() time.Duration    { return ms(b.ReconnectDelayMs) }
func (b ConnectBase) HeartbeatIncoming() time.Duration { return ms(b.HeartbeatIncomingMs) }
func (b ConnectBase) HeartbeatOutgoing() time.Duration { return ms(b.HeartbeatOutgoingMs) }
func (b ConnectBase) OpenTimeout() time.Duration       { return ms(b.OpenTimeoutMs) }

type ConnectConfig struct {
	ConnectBase ConnectBase `mapstructure:"connect-base"`
}

type StorageBase struct {
	Driver   string `mapstructure:"driver"` // memory, sqlite or redis
	Path     string `mapstructure:"path"`
	TokenKey string `mapstructure:"tokenKey"`
	Token    string `mapstructure:"token"` // seeds the store when set
}

type StorageRedis struct {
	RedisAddress  string `mapstructure:"redisAddress"`
	RedisPassword string `mapstructure:"redisPassword"`
	Db            int    `mapstructure:"db"`
	Prefix        string `mapstructure:"prefix"`
}

type StorageConfig struct {
	StorageBase  StorageBase  `mapstructure:"storage-base"`
	StorageRedis StorageRedis `mapstructure:"storage-redis"`
}

type ClientBase struct {
	UserId   string `mapstructure:"userId"`
	Nickname string `mapstructure:"nickname"`
	RoomId   string `mapstructure:"roomId"`
	LogLevel string `mapstructure:"logLevel"`
	LogFile  string `mapstructure:"logFile"`
}

type ClientConfig struct {
	ClientBase ClientBase `mapstructure:"client-base"`
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
