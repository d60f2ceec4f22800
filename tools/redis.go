package tools

import (
	"sync"
	"time"

	"github.com/go-redis/redis"
)

// one client per address, shared by every store that points at it
var redisClientMap = map[string]*redis.Client{}
var syncLock sync.Mutex

type RedisOption struct {
	Address  string
	Password string
	Db       int
}

func GetRedisInstance(redisOpt RedisOption) *redis.Client {
	syncLock.Lock()
	defer syncLock.Unlock()
	if redisCli, ok := redisClientMap[redisOpt.Address]; ok {
		return redisCli
	}
	client := redis.NewClient(&redis.Options{
		Addr:       redisOpt.Address,
		Password:   redisOpt.Password,
		DB:         redisOpt.Db,
		MaxConnAge: 20 * time.Second,
	})
	redisClientMap[redisOpt.Address] = client
	return client
}
